package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/quoteboard/internal/quotes"
	"github.com/wonny/quoteboard/pkg/logger"
)

// StatusSink receives the watchdog verdict. *feed.Manager satisfies it.
type StatusSink interface {
	SetConnectionStatus(connected bool, err error)
}

// FeedWatchdogJob marks the source unavailable when quotes stop arriving.
// Stock data already in the engine is left untouched.
type FeedWatchdogJob struct {
	engine     *quotes.Engine
	sink       StatusSink
	staleAfter time.Duration
	now        func() time.Time
	logger     *logger.Logger
}

// NewFeedWatchdogJob creates a new feed watchdog job
func NewFeedWatchdogJob(engine *quotes.Engine, sink StatusSink, staleAfter time.Duration, log *logger.Logger) *FeedWatchdogJob {
	return &FeedWatchdogJob{
		engine:     engine,
		sink:       sink,
		staleAfter: staleAfter,
		now:        time.Now,
		logger:     log,
	}
}

// Name returns the job name
func (j *FeedWatchdogJob) Name() string {
	return "feed_watchdog"
}

// Schedule returns the cron schedule (every 5 seconds)
func (j *FeedWatchdogJob) Schedule() string {
	return "*/5 * * * * *"
}

// Run checks the age of the last accepted quote
func (j *FeedWatchdogJob) Run(ctx context.Context) error {
	if j.engine.Len() == 0 {
		return nil
	}

	status := j.engine.ConnectionStatus()
	if !status.Connected {
		return nil
	}

	age := j.now().Sub(j.engine.LastQuoteAt())
	if age <= j.staleAfter {
		return nil
	}

	err := fmt.Errorf("%w: no quote for %s", quotes.ErrSourceUnavailable, age.Truncate(time.Second))
	j.sink.SetConnectionStatus(false, err)

	j.logger.WithFields(map[string]interface{}{
		"age":         age.String(),
		"stale_after": j.staleAfter.String(),
	}).Warn("Feed is stale")

	return nil
}
