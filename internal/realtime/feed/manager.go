package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wonny/quoteboard/internal/quotes"
	"github.com/wonny/quoteboard/internal/quotes/source"
	"github.com/wonny/quoteboard/pkg/logger"
)

// Update is what publishers receive after every accepted quote
type Update struct {
	Stock    quotes.StockState   `json:"stock"`
	Ranking  []quotes.StockState `json:"ranking"`
	SortMode quotes.SortMode     `json:"sort_mode"`
}

// Publisher forwards updates to an outbound channel (websocket, redis, kafka)
type Publisher interface {
	Name() string
	Publish(ctx context.Context, u Update) error
}

// StatusListener is implemented by publishers that also want connection
// status changes.
type StatusListener interface {
	StatusChanged(status quotes.ConnectionStatus)
}

// Config holds the manager's restart and publish timing
type Config struct {
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration
	PublishTimeout  time.Duration
}

// DefaultConfig returns 1s restart backoff capped at 30s
func DefaultConfig() Config {
	return Config{
		RestartDelay:    time.Second,
		MaxRestartDelay: 30 * time.Second,
		PublishTimeout:  2 * time.Second,
	}
}

// Manager runs one quote source into the engine and fans accepted
// updates out to publishers.
type Manager struct {
	engine     *quotes.Engine
	source     source.Source
	publishers []Publisher
	config     Config
	logger     *logger.Logger

	applied       atomic.Int64
	rejected      atomic.Int64
	published     atomic.Int64
	publishErrors atomic.Int64
	restarts      atomic.Int64

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
	gen     uint64
	wg      sync.WaitGroup
}

// NewManager creates a feed manager
func NewManager(engine *quotes.Engine, src source.Source, cfg Config, log *logger.Logger, publishers ...Publisher) *Manager {
	def := DefaultConfig()
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = def.RestartDelay
	}
	if cfg.MaxRestartDelay < cfg.RestartDelay {
		cfg.MaxRestartDelay = cfg.RestartDelay
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = def.PublishTimeout
	}

	return &Manager{
		engine:     engine,
		source:     src,
		publishers: publishers,
		config:     cfg,
		logger:     log.WithComponent("feed"),
	}
}

// Start runs the source in the background until Stop or ctx is done
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.New("feed manager already running")
	}

	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.gen++

	m.wg.Add(1)
	go m.run(ctx, m.gen)

	m.logger.WithFields(map[string]interface{}{
		"source":     m.source.Name(),
		"publishers": m.publisherNames(),
	}).Info("Feed manager started")
	return nil
}

// Stop cancels the source and waits for it to return.
// It is safe to call after the source has already exited.
func (m *Manager) Stop() {
	m.mu.Lock()
	wasRunning := m.running
	if m.cancel != nil {
		m.cancel()
	}
	m.running = false
	m.mu.Unlock()

	m.wg.Wait()
	if wasRunning {
		m.logger.Info("Feed manager stopped")
	}
}

// finish clears the running flag when run gen exits on its own
func (m *Manager) finish(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.gen == gen && m.running {
		m.running = false
		m.cancel()
	}
}

// run keeps the source alive, restarting it with backoff after failures
func (m *Manager) run(ctx context.Context, gen uint64) {
	defer m.wg.Done()
	defer m.finish(gen)

	delay := m.config.RestartDelay
	for {
		started := time.Now()
		err := m.source.Run(ctx, m)

		if ctx.Err() != nil {
			return
		}
		if err == nil {
			m.logger.WithField("source", m.source.Name()).Info("Source finished")
			return
		}

		// A long healthy run resets the backoff
		if time.Since(started) > m.config.MaxRestartDelay {
			delay = m.config.RestartDelay
		}

		if !errors.Is(err, quotes.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %v", quotes.ErrSourceUnavailable, err)
		}
		m.SetConnectionStatus(false, err)
		m.restarts.Add(1)

		m.logger.WithError(err).WithFields(map[string]interface{}{
			"source": m.source.Name(),
			"retry":  delay.String(),
		}).Warn("Source failed, restarting")

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		delay *= 2
		if delay > m.config.MaxRestartDelay {
			delay = m.config.MaxRestartDelay
		}
	}
}

// ApplyQuote forwards a quote to the engine and publishes the result
func (m *Manager) ApplyQuote(symbol string, price float64) error {
	if err := m.engine.ApplyQuote(symbol, price); err != nil {
		m.rejected.Add(1)
		return err
	}
	m.applied.Add(1)

	v, ok := m.engine.View(symbol)
	if !ok {
		err := fmt.Errorf("%w: %s", quotes.ErrMissingSymbolState, symbol)
		m.logger.WithError(err).Error("Engine lost state right after apply")
		return err
	}

	m.publish(Update{
		Stock:    v.Stock,
		Ranking:  v.Ranking,
		SortMode: v.SortMode,
	})
	return nil
}

// SetConnectionStatus forwards to the engine and notifies status listeners
func (m *Manager) SetConnectionStatus(connected bool, err error) {
	m.engine.SetConnectionStatus(connected, err)

	status := m.engine.ConnectionStatus()
	for _, p := range m.publishers {
		if l, ok := p.(StatusListener); ok {
			l.StatusChanged(status)
		}
	}
}

func (m *Manager) publish(u Update) {
	if len(m.publishers) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.config.PublishTimeout)
	defer cancel()

	for _, p := range m.publishers {
		if err := p.Publish(ctx, u); err != nil {
			m.publishErrors.Add(1)
			m.logger.WithError(err).WithFields(map[string]interface{}{
				"publisher": p.Name(),
				"symbol":    u.Stock.Symbol,
			}).Warn("Publish failed")
			continue
		}
		m.published.Add(1)
	}
}

func (m *Manager) publisherNames() []string {
	names := make([]string, 0, len(m.publishers))
	for _, p := range m.publishers {
		names = append(names, p.Name())
	}
	return names
}

// Running reports whether the manager was started and not yet stopped
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Stats returns the manager counters
func (m *Manager) Stats() *FeedStats {
	return &FeedStats{
		Source:        m.source.Name(),
		Running:       m.Running(),
		Publishers:    m.publisherNames(),
		Applied:       m.applied.Load(),
		Rejected:      m.rejected.Load(),
		Published:     m.published.Load(),
		PublishErrors: m.publishErrors.Load(),
		Restarts:      m.restarts.Load(),
	}
}

// FeedStats represents statistics for the feed manager
type FeedStats struct {
	Source        string   `json:"source"`
	Running       bool     `json:"running"`
	Publishers    []string `json:"publishers"`
	Applied       int64    `json:"applied"`
	Rejected      int64    `json:"rejected"`
	Published     int64    `json:"published"`
	PublishErrors int64    `json:"publish_errors"`
	Restarts      int64    `json:"restarts"`
}
