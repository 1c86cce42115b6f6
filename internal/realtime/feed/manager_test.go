package feed

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quoteboard/internal/quotes"
	"github.com/wonny/quoteboard/internal/quotes/source"
	"github.com/wonny/quoteboard/pkg/logger"
)

// funcSource adapts a function into a source.Source
type funcSource struct {
	name string
	run  func(ctx context.Context, sink source.Sink) error
}

func (s funcSource) Name() string { return s.name }

func (s funcSource) Run(ctx context.Context, sink source.Sink) error { return s.run(ctx, sink) }

type recordingPublisher struct {
	mu       sync.Mutex
	updates  []Update
	statuses []quotes.ConnectionStatus
	err      error
}

func (p *recordingPublisher) Name() string { return "recorder" }

func (p *recordingPublisher) Publish(_ context.Context, u Update) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.updates = append(p.updates, u)
	return nil
}

func (p *recordingPublisher) StatusChanged(status quotes.ConnectionStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, status)
}

func (p *recordingPublisher) snapshot() ([]Update, []quotes.ConnectionStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Update(nil), p.updates...), append([]quotes.ConnectionStatus(nil), p.statuses...)
}

func newEngine() *quotes.Engine {
	return quotes.NewEngine(quotes.Options{}, logger.NewNop())
}

func fastConfig() Config {
	return Config{
		RestartDelay:    time.Millisecond,
		MaxRestartDelay: 4 * time.Millisecond,
		PublishTimeout:  time.Second,
	}
}

func TestManager_ApplyQuotePublishes(t *testing.T) {
	engine := newEngine()
	pub := &recordingPublisher{}
	m := NewManager(engine, funcSource{name: "noop"}, fastConfig(), logger.NewNop(), pub)

	require.NoError(t, m.ApplyQuote("PETR4", 38.50))
	require.NoError(t, m.ApplyQuote("PETR4", 38.91))

	updates, _ := pub.snapshot()
	require.Len(t, updates, 2)

	last := updates[1]
	assert.Equal(t, "PETR4", last.Stock.Symbol)
	assert.Equal(t, 38.91, last.Stock.Price)
	assert.Equal(t, quotes.TrendUp, last.Stock.Trend)
	assert.Equal(t, quotes.SortUp, last.SortMode)
	require.Len(t, last.Ranking, 1)
	assert.Equal(t, "PETR4", last.Ranking[0].Symbol)

	stats := m.Stats()
	assert.Equal(t, int64(2), stats.Applied)
	assert.Equal(t, int64(2), stats.Published)
	assert.Equal(t, []string{"recorder"}, stats.Publishers)
}

func TestManager_RejectedQuoteIsNotPublished(t *testing.T) {
	engine := newEngine()
	pub := &recordingPublisher{}
	m := NewManager(engine, funcSource{name: "noop"}, fastConfig(), logger.NewNop(), pub)

	err := m.ApplyQuote("PETR4", -1)
	assert.True(t, errors.Is(err, quotes.ErrInvalidQuote))

	updates, _ := pub.snapshot()
	assert.Empty(t, updates)
	assert.Equal(t, int64(1), m.Stats().Rejected)
	assert.Equal(t, 0, engine.Len())
}

func TestManager_PublisherErrorDoesNotAffectEngine(t *testing.T) {
	engine := newEngine()
	failing := &recordingPublisher{err: errors.New("broker down")}
	ok := &recordingPublisher{}
	m := NewManager(engine, funcSource{name: "noop"}, fastConfig(), logger.NewNop(), failing, ok)

	require.NoError(t, m.ApplyQuote("VALE3", 65.20))

	_, found := engine.Stock("VALE3")
	assert.True(t, found)

	updates, _ := ok.snapshot()
	assert.Len(t, updates, 1)

	stats := m.Stats()
	assert.Equal(t, int64(1), stats.PublishErrors)
	assert.Equal(t, int64(1), stats.Published)
}

func TestManager_StatusListeners(t *testing.T) {
	engine := newEngine()
	pub := &recordingPublisher{}
	m := NewManager(engine, funcSource{name: "noop"}, fastConfig(), logger.NewNop(), pub)

	m.SetConnectionStatus(true, nil)
	m.SetConnectionStatus(false, quotes.ErrSourceUnavailable)

	_, statuses := pub.snapshot()
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Connected)
	assert.False(t, statuses[1].Connected)
	assert.NotEmpty(t, statuses[1].Error)
	assert.False(t, engine.ConnectionStatus().Connected)
}

func TestManager_RunsSourceUntilStopped(t *testing.T) {
	engine := newEngine()
	src := funcSource{name: "ticker", run: func(ctx context.Context, sink source.Sink) error {
		sink.SetConnectionStatus(true, nil)
		defer sink.SetConnectionStatus(false, nil)

		price := 10.0
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Millisecond):
				price += 0.01
				_ = sink.ApplyQuote("ABEV3", price)
			}
		}
	}}

	m := NewManager(engine, src, fastConfig(), logger.NewNop())
	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()), "second start is rejected")

	require.Eventually(t, func() bool {
		s, ok := engine.Stock("ABEV3")
		return ok && len(s.PriceHistory) >= 3
	}, time.Second, 5*time.Millisecond)
	assert.True(t, engine.ConnectionStatus().Connected)

	m.Stop()
	m.Stop()

	assert.False(t, m.Running())
	assert.False(t, engine.ConnectionStatus().Connected)
}

func TestManager_RestartsFailingSource(t *testing.T) {
	engine := newEngine()
	var runs atomic.Int32

	src := funcSource{name: "flaky", run: func(ctx context.Context, sink source.Sink) error {
		if runs.Add(1) <= 3 {
			return errors.New("connection reset")
		}
		sink.SetConnectionStatus(true, nil)
		<-ctx.Done()
		return nil
	}}

	m := NewManager(engine, src, fastConfig(), logger.NewNop())
	require.NoError(t, m.Start(context.Background()))
	defer m.Stop()

	require.Eventually(t, func() bool {
		return engine.ConnectionStatus().Connected
	}, time.Second, 2*time.Millisecond)

	assert.Equal(t, int64(3), m.Stats().Restarts)
	assert.Equal(t, int32(4), runs.Load())
}

func TestManager_FailureMarksSourceUnavailable(t *testing.T) {
	engine := newEngine()
	require.NoError(t, engine.ApplyQuote("ITUB4", 25.80))

	cfg := fastConfig()
	cfg.RestartDelay = time.Hour
	cfg.MaxRestartDelay = time.Hour

	src := funcSource{name: "broken", run: func(ctx context.Context, sink source.Sink) error {
		return errors.New("dial tcp: refused")
	}}

	m := NewManager(engine, src, cfg, logger.NewNop())
	require.NoError(t, m.Start(context.Background()))

	require.Eventually(t, func() bool {
		return m.Stats().Restarts == 1
	}, time.Second, 2*time.Millisecond)

	status := engine.ConnectionStatus()
	assert.False(t, status.Connected)
	assert.Contains(t, status.Error, quotes.ErrSourceUnavailable.Error())
	assert.Contains(t, status.Error, "refused")

	// Data already ingested survives the outage
	assert.Equal(t, 1, engine.Len())

	// Stop interrupts the backoff wait
	m.Stop()
}

func TestManager_ExhaustedSourceIsNotRestarted(t *testing.T) {
	engine := newEngine()
	var runs atomic.Int32

	src := funcSource{name: "once", run: func(ctx context.Context, sink source.Sink) error {
		runs.Add(1)
		return sink.ApplyQuote("BBDC4", 12.45)
	}}

	m := NewManager(engine, src, fastConfig(), logger.NewNop())
	require.NoError(t, m.Start(context.Background()))

	require.Eventually(t, func() bool {
		return engine.Len() == 1
	}, time.Second, 2*time.Millisecond)

	m.Stop()
	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, int64(0), m.Stats().Restarts)
}

func TestManager_ExhaustedSourceClearsRunning(t *testing.T) {
	engine := newEngine()
	var runs atomic.Int32

	src := funcSource{name: "replay", run: func(ctx context.Context, sink source.Sink) error {
		runs.Add(1)
		return nil
	}}

	m := NewManager(engine, src, fastConfig(), logger.NewNop())
	require.NoError(t, m.Start(context.Background()))

	require.Eventually(t, func() bool { return !m.Running() }, time.Second, 2*time.Millisecond)
	assert.False(t, m.Stats().Running)

	// A finished feed can be started again
	require.NoError(t, m.Start(context.Background()))
	require.Eventually(t, func() bool { return runs.Load() == 2 && !m.Running() }, time.Second, 2*time.Millisecond)

	m.Stop()
	m.Stop()
	assert.False(t, m.Running())
}

func TestManager_ParentCancelClearsRunning(t *testing.T) {
	engine := newEngine()
	src := funcSource{name: "blocking", run: func(ctx context.Context, sink source.Sink) error {
		<-ctx.Done()
		return nil
	}}

	ctx, cancel := context.WithCancel(context.Background())
	m := NewManager(engine, src, fastConfig(), logger.NewNop())
	require.NoError(t, m.Start(ctx))
	assert.True(t, m.Running())

	cancel()
	require.Eventually(t, func() bool { return !m.Running() }, time.Second, 2*time.Millisecond)

	require.NoError(t, m.Start(context.Background()))
	assert.True(t, m.Running())
	m.Stop()
	assert.False(t, m.Running())
}

func TestManager_UpdateRankingMatchesSortMode(t *testing.T) {
	engine := newEngine()
	pub := &recordingPublisher{}
	m := NewManager(engine, funcSource{name: "noop"}, fastConfig(), logger.NewNop(), pub)

	require.NoError(t, m.ApplyQuote("UP1", 10))
	require.NoError(t, m.ApplyQuote("DN1", 10))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			_ = m.ApplyQuote("UP1", 10+float64(i%5+1)*0.1)
			_ = m.ApplyQuote("DN1", 10-float64(i%5+1)*0.1)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			mode := quotes.SortUp
			if i%2 == 1 {
				mode = quotes.SortDown
			}
			_ = engine.SetSortMode(mode)
		}
	}()
	wg.Wait()

	updates, _ := pub.snapshot()
	require.NotEmpty(t, updates)
	for _, u := range updates {
		for _, s := range u.Ranking {
			if u.SortMode == quotes.SortUp {
				assert.Positive(t, s.VariationPercent, "gainers ranking under %s", u.SortMode)
			} else {
				assert.Negative(t, s.VariationPercent, "losers ranking under %s", u.SortMode)
			}
		}
	}
}

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(newEngine(), funcSource{name: "noop"}, Config{}, logger.NewNop())

	def := DefaultConfig()
	assert.Equal(t, def.RestartDelay, m.config.RestartDelay)
	assert.Equal(t, def.RestartDelay, m.config.MaxRestartDelay)
	assert.Equal(t, def.PublishTimeout, m.config.PublishTimeout)
}
