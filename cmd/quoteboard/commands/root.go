package commands

import (
	"github.com/spf13/cobra"

	"github.com/wonny/quoteboard/pkg/config"
)

var (
	// Global flags
	env     string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "quoteboard",
	Short: "Quoteboard - real-time stock quote board",
	Long: `Quoteboard ingests stock quotes, keeps per-symbol state and ranks
the top gainers and losers.

Usage:
  go run ./cmd/quoteboard [command]

Examples:
  go run ./cmd/quoteboard serve
  go run ./cmd/quoteboard simulate --duration 30s
  go run ./cmd/quoteboard universe --file universe.yaml`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "environment override (development|staging|production|test)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadConfig loads the environment config and applies global flag overrides
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if env != "" {
		cfg.Env = env
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}
