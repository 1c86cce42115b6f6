package commands

import (
	"fmt"
	"math/rand"

	"github.com/wonny/quoteboard/internal/quotes/source"
	"github.com/wonny/quoteboard/internal/quotes/universe"
	"github.com/wonny/quoteboard/pkg/config"
	"github.com/wonny/quoteboard/pkg/logger"
)

// simulatorConfig maps FEED_* settings onto the simulator
func simulatorConfig(cfg *config.Config) source.SimulatorConfig {
	return source.SimulatorConfig{
		Interval:     cfg.Feed.Interval,
		Stagger:      cfg.Feed.Stagger,
		InitialDelay: cfg.Feed.InitialDelay,
		Walk: source.WalkParams{
			MaxStepPct: cfg.Feed.MaxStepPct,
			BandPct:    cfg.Feed.BandPct,
		},
	}
}

// seededRand returns nil (clock seeded) when seed is 0
func seededRand(seed int64) source.Rand {
	if seed == 0 {
		return nil
	}
	return rand.New(rand.NewSource(seed))
}

// buildSource creates the quote source selected by FEED_SOURCE
func buildSource(cfg *config.Config, u *universe.Universe, log *logger.Logger) (source.Source, error) {
	switch cfg.Feed.Source {
	case "simulator":
		return source.NewSimulator(u, simulatorConfig(cfg), seededRand(cfg.Feed.Seed), log), nil
	case "replay":
		return source.LoadReplay(cfg.Feed.ReplayFile, cfg.Feed.ReplayRate, cfg.Feed.ReplayLoop, log)
	default:
		return nil, fmt.Errorf("unknown feed source %q", cfg.Feed.Source)
	}
}
