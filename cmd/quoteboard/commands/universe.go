package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wonny/quoteboard/internal/quotes/universe"
)

// universeCmd represents the universe command
var universeCmd = &cobra.Command{
	Use:   "universe",
	Short: "Show or validate the simulated instrument universe",
	Long: `Prints the instruments the simulator cycles through. Without --file
the UNIVERSE_FILE setting is used, falling back to the built-in five equities.

Example:
  go run ./cmd/quoteboard universe
  go run ./cmd/quoteboard universe --file universe.yaml`,
	RunE: runUniverse,
}

var universeFile string

func init() {
	rootCmd.AddCommand(universeCmd)

	universeCmd.Flags().StringVarP(&universeFile, "file", "f", "", "universe YAML file")
}

func runUniverse(cmd *cobra.Command, args []string) error {
	path := universeFile
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		path = cfg.Feed.UniverseFile
	}

	u, err := universe.Load(path)
	if err != nil {
		color.Red("✗ %v", err)
		return err
	}

	out := cmd.OutOrStdout()
	printUniverse(out, u)
	if path == "" {
		color.New(color.FgYellow).Fprintln(out, "💡 built-in universe (set UNIVERSE_FILE to override)")
	} else {
		color.New(color.FgGreen).Fprintf(out, "✓ %s is valid\n", path)
	}
	return nil
}
