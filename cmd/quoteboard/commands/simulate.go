package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/wonny/quoteboard/internal/quotes"
	"github.com/wonny/quoteboard/internal/quotes/source"
	"github.com/wonny/quoteboard/internal/quotes/universe"
	"github.com/wonny/quoteboard/pkg/logger"
)

// simulateCmd represents the simulate command
var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the quote simulator in the terminal",
	Long: `Runs the simulator into a local engine without any server and
prints every tick, then the final gainers and losers.

Example:
  go run ./cmd/quoteboard simulate
  go run ./cmd/quoteboard simulate --duration 1m --interval 500ms --seed 42`,
	RunE: runSimulate,
}

var (
	simDuration time.Duration
	simInterval time.Duration
	simSeed     int64
	simQuiet    bool
)

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().DurationVar(&simDuration, "duration", 20*time.Second, "how long to run")
	simulateCmd.Flags().DurationVar(&simInterval, "interval", 0, "cycle interval (overrides FEED_INTERVAL)")
	simulateCmd.Flags().Int64Var(&simSeed, "seed", 0, "random seed (overrides FEED_SEED)")
	simulateCmd.Flags().BoolVarP(&simQuiet, "quiet", "q", false, "only print the final ranking")
}

// consoleSink applies quotes to the engine and echoes each tick
type consoleSink struct {
	engine *quotes.Engine
	out    io.Writer
	quiet  bool
}

func (s *consoleSink) ApplyQuote(symbol string, price float64) error {
	if err := s.engine.ApplyQuote(symbol, price); err != nil {
		fmt.Fprintf(s.out, "✗ %s rejected: %v\n", symbol, err)
		return err
	}
	if s.quiet {
		return nil
	}
	if state, ok := s.engine.Stock(symbol); ok {
		printTick(s.out, state)
	}
	return nil
}

func (s *consoleSink) SetConnectionStatus(connected bool, err error) {
	prev := s.engine.ConnectionStatus()
	s.engine.SetConnectionStatus(connected, err)
	if prev.Connected == connected && err == nil {
		return
	}

	switch {
	case err != nil:
		color.New(color.FgRed).Fprintf(s.out, "✗ source error: %v\n", err)
	case connected:
		color.New(color.FgGreen).Fprintln(s.out, "✓ connected")
	default:
		color.New(color.FgYellow).Fprintln(s.out, "• disconnected")
	}
}

func runSimulate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if simSeed != 0 {
		cfg.Feed.Seed = simSeed
	}
	if simInterval > 0 {
		cfg.Feed.Interval = simInterval
	}

	// Keep the terminal for ticks
	log := logger.NewNop()
	if verbose {
		log = logger.New(cfg)
	}

	u, err := universe.Load(cfg.Feed.UniverseFile)
	if err != nil {
		return fmt.Errorf("load universe: %w", err)
	}

	engine := quotes.NewEngine(quotes.Options{
		HistoryLimit: cfg.Quotes.HistoryLimit,
		RankingSize:  cfg.Quotes.RankingSize,
	}, log)
	sim := source.NewSimulator(u, simulatorConfig(cfg), seededRand(cfg.Feed.Seed), log)

	out := cmd.OutOrStdout()
	headerColor.Fprintf(out, "📊 Simulating %d symbols for %s (interval %s)\n", len(u.Instruments), simDuration, cfg.Feed.Interval)
	separator(out)

	ctx, cancel := context.WithTimeout(context.Background(), simDuration)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sink := &consoleSink{engine: engine, out: out, quiet: simQuiet}
	if err := sim.Run(ctx, sink); err != nil {
		return err
	}

	printRanking(out, "📈 Top gainers", engine.TopGainers())
	printRanking(out, "📉 Top losers", engine.TopLosers())

	stats := engine.Stats()
	fmt.Fprintln(out)
	color.New(color.FgYellow).Fprintf(out, "💡 %d quotes applied, %d rejected\n", stats.Applied, stats.Rejected)
	return nil
}
