package source

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/time/rate"
	"gopkg.in/yaml.v3"

	"github.com/wonny/quoteboard/internal/quotes"
	"github.com/wonny/quoteboard/pkg/logger"
)

// Replay emits a fixed list of quotes in order, paced by a rate limiter.
type Replay struct {
	quotes  []quotes.Quote
	limiter *rate.Limiter
	loop    bool
	logger  *logger.Logger
}

type replayFile struct {
	Quotes []quotes.Quote `yaml:"quotes"`
}

// NewReplay creates a replay source emitting perSecond quotes per second.
// perSecond <= 0 emits as fast as the sink accepts.
func NewReplay(qs []quotes.Quote, perSecond float64, loop bool, log *logger.Logger) *Replay {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}

	return &Replay{
		quotes:  qs,
		limiter: rate.NewLimiter(limit, 1),
		loop:    loop,
		logger:  log.WithComponent("replay"),
	}
}

// LoadReplay reads quotes from a YAML file of the form
//
//	quotes:
//	  - {symbol: PETR4, price: 38.50}
func LoadReplay(path string, perSecond float64, loop bool, log *logger.Logger) (*Replay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read replay file: %w", err)
	}

	var f replayFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse replay file: %w", err)
	}

	return NewReplay(f.Quotes, perSecond, loop, log), nil
}

// Name returns the source name
func (r *Replay) Name() string {
	return "replay"
}

// Run emits every quote in order, once or forever when looping
func (r *Replay) Run(ctx context.Context, sink Sink) error {
	if len(r.quotes) == 0 {
		err := fmt.Errorf("%w: replay has no quotes", quotes.ErrSourceUnavailable)
		sink.SetConnectionStatus(false, err)
		return err
	}

	sink.SetConnectionStatus(true, nil)
	defer sink.SetConnectionStatus(false, nil)

	for pass := 1; ; pass++ {
		for _, q := range r.quotes {
			if err := r.limiter.Wait(ctx); err != nil {
				// Cancelled, or the deadline would pass before the next token
				return nil
			}

			if err := sink.ApplyQuote(q.Symbol, q.Price); err != nil {
				r.logger.WithError(err).WithField("symbol", q.Symbol).Warn("Replayed quote rejected")
			}
		}

		r.logger.WithFields(map[string]interface{}{
			"pass":   pass,
			"quotes": len(r.quotes),
		}).Debug("Replay pass complete")

		if !r.loop {
			return nil
		}
	}
}
