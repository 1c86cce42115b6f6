package source

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/quoteboard/internal/quotes"
	"github.com/wonny/quoteboard/internal/quotes/universe"
	"github.com/wonny/quoteboard/pkg/logger"
)

// WalkParams bounds the random walk of every instrument
type WalkParams struct {
	MaxStepPct float64 // largest move per tick, as a fraction of base price
	BandPct    float64 // largest distance from base price, as a fraction
}

// DefaultWalkParams returns a 1% step and a ±15% band
func DefaultWalkParams() WalkParams {
	return WalkParams{MaxStepPct: 0.01, BandPct: 0.15}
}

// SimulatorConfig holds the simulator cadence and walk bounds
type SimulatorConfig struct {
	Interval     time.Duration // one full-universe cycle
	Stagger      time.Duration // delay between symbols within a cycle
	InitialDelay time.Duration // before the first cycle
	Walk         WalkParams
}

// DefaultSimulatorConfig returns the 2s / 100ms / 1s cadence
func DefaultSimulatorConfig() SimulatorConfig {
	return SimulatorConfig{
		Interval:     2 * time.Second,
		Stagger:      100 * time.Millisecond,
		InitialDelay: time.Second,
		Walk:         DefaultWalkParams(),
	}
}

// Simulator emits a bounded random walk for a fixed universe
type Simulator struct {
	universe *universe.Universe
	config   SimulatorConfig
	rand     Rand
	logger   *logger.Logger

	prices map[string]float64
}

// NewSimulator creates a simulator. A nil rnd seeds from the clock.
func NewSimulator(u *universe.Universe, cfg SimulatorConfig, rnd Rand, log *logger.Logger) *Simulator {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	prices := make(map[string]float64, len(u.Instruments))
	for _, inst := range u.Instruments {
		prices[inst.Symbol] = inst.BasePrice
	}

	return &Simulator{
		universe: u,
		config:   cfg,
		rand:     rnd,
		logger:   log.WithComponent("simulator"),
		prices:   prices,
	}
}

// Name returns the source name
func (s *Simulator) Name() string {
	return "simulator"
}

// Run emits one cycle after InitialDelay and then one every Interval
func (s *Simulator) Run(ctx context.Context, sink Sink) error {
	s.logger.WithFields(map[string]interface{}{
		"symbols":  s.universe.Symbols(),
		"interval": s.config.Interval.String(),
	}).Info("Simulator started")

	defer func() {
		sink.SetConnectionStatus(false, nil)
		s.logger.Info("Simulator stopped")
	}()

	delay := time.NewTimer(s.config.InitialDelay)
	defer delay.Stop()

	select {
	case <-ctx.Done():
		return nil
	case <-delay.C:
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		if err := s.cycle(ctx, sink); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// cycle advances every instrument once, staggered
func (s *Simulator) cycle(ctx context.Context, sink Sink) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: simulation panic: %v", quotes.ErrSourceUnavailable, r)
			sink.SetConnectionStatus(false, err)
		}
	}()

	sink.SetConnectionStatus(true, nil)

	for i, inst := range s.universe.Instruments {
		if i > 0 && s.config.Stagger > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.config.Stagger):
			}
		}

		s.step(inst, sink)
	}

	return nil
}

func (s *Simulator) step(inst universe.Instrument, sink Sink) {
	current := s.prices[inst.Symbol]
	u := (s.rand.Float64() - 0.5) * inst.Volatility
	next := NextPrice(inst, current, u, s.config.Walk)
	s.prices[inst.Symbol] = next

	if err := sink.ApplyQuote(inst.Symbol, next); err != nil {
		s.logger.WithError(err).WithField("symbol", inst.Symbol).Warn("Quote not applied")
		return
	}

	s.logger.WithFields(map[string]interface{}{
		"symbol": inst.Symbol,
		"from":   current,
		"to":     next,
	}).Debug("Quote emitted")
}

// NextPrice moves current by the relative change u, clamps the step to
// MaxStepPct of the base price, clamps the result to the BandPct band
// around the base price and rounds to cents.
func NextPrice(inst universe.Instrument, current, u float64, p WalkParams) float64 {
	candidate := current * (1 + u)

	maxStep := inst.BasePrice * p.MaxStepPct
	price := current + clamp(candidate-current, -maxStep, maxStep)

	band := inst.BasePrice * p.BandPct
	price = clamp(price, inst.BasePrice-band, inst.BasePrice+band)

	return decimal.NewFromFloat(price).Round(2).InexactFloat64()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
