package quotes

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/wonny/quoteboard/pkg/logger"
)

const (
	DefaultHistoryLimit = 20
	DefaultRankingSize  = 5
)

// Options configures an Engine. Zero values fall back to the defaults.
type Options struct {
	HistoryLimit int
	RankingSize  int

	// Now stamps quotes that arrive without a timestamp
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = DefaultHistoryLimit
	}
	if o.RankingSize <= 0 {
		o.RankingSize = DefaultRankingSize
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Engine owns the authoritative symbol -> StockState mapping and the
// ranking views derived from it.
// One RWMutex covers every read-modify-write of a symbol and every
// snapshot read, so readers never observe a half-applied quote.
type Engine struct {
	mu sync.RWMutex

	stocks map[string]StockState
	order  []string // symbols in creation order, for stable ranking ties

	sortMode SortMode
	status   ConnectionStatus

	lastQuoteAt time.Time
	applied     uint64
	rejected    uint64

	opts   Options
	logger *logger.Logger
}

// NewEngine creates an empty engine. Sort mode starts at "up" and the
// connection starts out disconnected.
func NewEngine(opts Options, log *logger.Logger) *Engine {
	opts = opts.withDefaults()

	return &Engine{
		stocks:   make(map[string]StockState),
		sortMode: SortUp,
		status:   ConnectionStatus{Since: opts.Now()},
		opts:     opts,
		logger:   log.WithComponent("engine"),
	}
}

// ApplyQuote ingests one observation stamped with the current time.
func (e *Engine) ApplyQuote(symbol string, price float64) error {
	return e.Apply(Quote{Symbol: symbol, Price: price})
}

// Apply ingests one observation.
// Invalid quotes are logged, counted and returned as ErrInvalidQuote
// without touching any state.
func (e *Engine) Apply(q Quote) error {
	symbol := NormalizeSymbol(q.Symbol)

	if err := validateQuote(symbol, q.Price); err != nil {
		e.mu.Lock()
		e.rejected++
		e.mu.Unlock()

		e.logger.WithError(err).WithFields(map[string]interface{}{
			"symbol": q.Symbol,
			"price":  fmt.Sprint(q.Price),
		}).Warn("Rejected quote")
		return err
	}

	at := q.At
	if at.IsZero() {
		at = e.opts.Now()
	}

	e.mu.Lock()
	current, exists := e.stocks[symbol]
	var next StockState
	if exists {
		next = current.next(q.Price, at, e.opts.HistoryLimit)
	} else {
		next = newStockState(symbol, q.Price, at)
		e.order = append(e.order, symbol)
	}
	e.stocks[symbol] = next
	e.lastQuoteAt = at
	e.applied++
	total := len(e.stocks)
	e.mu.Unlock()

	if !exists {
		e.logger.WithFields(map[string]interface{}{
			"symbol": symbol,
			"open":   q.Price,
			"total":  total,
		}).Info("New symbol")
		return nil
	}

	e.logger.WithFields(map[string]interface{}{
		"symbol":            symbol,
		"price":             next.Price,
		"variation":         next.Variation,
		"variation_percent": next.VariationPercent,
		"trend":             next.Trend,
	}).Debug("Quote applied")

	return nil
}

func validateQuote(symbol string, price float64) error {
	if symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidQuote)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return fmt.Errorf("%w: non-finite price for %s", ErrInvalidQuote, symbol)
	}
	if price <= 0 {
		return fmt.Errorf("%w: non-positive price %.4f for %s", ErrInvalidQuote, price, symbol)
	}
	return nil
}

// SetSortMode selects the ranking returned by RankedView.
func (e *Engine) SetSortMode(mode SortMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSortMode, mode)
	}

	e.mu.Lock()
	e.sortMode = mode
	e.mu.Unlock()

	e.logger.WithField("mode", mode).Info("Sort mode changed")
	return nil
}

// SortMode returns the current sort mode
func (e *Engine) SortMode() SortMode {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.sortMode
}

// SetConnectionStatus records whether the source is delivering.
// A nil err clears any previous error message.
func (e *Engine) SetConnectionStatus(connected bool, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}

	e.mu.Lock()
	changed := e.status.Connected != connected || e.status.Error != msg
	if e.status.Connected != connected {
		e.status.Since = e.opts.Now()
	}
	e.status.Connected = connected
	e.status.Error = msg
	e.mu.Unlock()

	if !changed {
		return
	}

	log := e.logger.WithField("connected", connected)
	if err != nil {
		log.WithError(err).Warn("Connection status changed")
		return
	}
	log.Info("Connection status changed")
}

// ConnectionStatus returns the current connection status
func (e *Engine) ConnectionStatus() ConnectionStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.status
}

// TopGainers returns up to RankingSize symbols with a positive variation
// percent, largest first. Ties keep creation order.
func (e *Engine) TopGainers() []StockState {
	return e.Ranking(SortUp)
}

// TopLosers returns up to RankingSize symbols with a negative variation
// percent, most negative first. Ties keep creation order.
func (e *Engine) TopLosers() []StockState {
	return e.Ranking(SortDown)
}

// RankedView returns the ranking selected by the current sort mode.
// An empty slice is a valid answer: either no data yet or no movers.
func (e *Engine) RankedView() []StockState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.rankLocked(e.sortMode)
}

// Ranking returns the view for an explicit mode
func (e *Engine) Ranking(mode SortMode) []StockState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.rankLocked(mode)
}

func (e *Engine) rankLocked(mode SortMode) []StockState {
	keep := func(s StockState) bool { return s.VariationPercent > 0 }
	less := func(a, b StockState) bool { return a.VariationPercent > b.VariationPercent }
	if mode == SortDown {
		keep = func(s StockState) bool { return s.VariationPercent < 0 }
		less = func(a, b StockState) bool { return a.VariationPercent < b.VariationPercent }
	}

	ranked := make([]StockState, 0, len(e.order))
	for _, symbol := range e.order {
		if s := e.stocks[symbol]; keep(s) {
			ranked = append(ranked, s)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j])
	})

	if len(ranked) > e.opts.RankingSize {
		ranked = ranked[:e.opts.RankingSize]
	}

	for i := range ranked {
		ranked[i] = ranked[i].clone()
	}
	return ranked
}

// StockView is one symbol's state together with the ranking it belongs to,
// read under a single lock.
type StockView struct {
	Stock    StockState
	Ranking  []StockState
	SortMode SortMode
}

// View returns a consistent StockView for symbol
func (e *Engine) View(symbol string) (StockView, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s, ok := e.stocks[NormalizeSymbol(symbol)]
	if !ok {
		return StockView{}, false
	}
	return StockView{
		Stock:    s.clone(),
		Ranking:  e.rankLocked(e.sortMode),
		SortMode: e.sortMode,
	}, true
}

// Stock returns a copy of the state for symbol
func (e *Engine) Stock(symbol string) (StockState, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s, ok := e.stocks[NormalizeSymbol(symbol)]
	if !ok {
		return StockState{}, false
	}
	return s.clone(), true
}

// Stocks returns copies of every state in creation order
func (e *Engine) Stocks() []StockState {
	e.mu.RLock()
	defer e.mu.RUnlock()

	result := make([]StockState, 0, len(e.order))
	for _, symbol := range e.order {
		result = append(result, e.stocks[symbol].clone())
	}
	return result
}

// Len returns the number of tracked symbols
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return len(e.stocks)
}

// LastQuoteAt returns the time of the most recent accepted quote,
// zero when nothing has been applied yet.
func (e *Engine) LastQuoteAt() time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.lastQuoteAt
}

// Stats returns engine counters
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return Stats{
		Symbols:     len(e.stocks),
		Applied:     e.applied,
		Rejected:    e.rejected,
		LastQuoteAt: e.lastQuoteAt,
		SortMode:    e.sortMode,
		Connected:   e.status.Connected,
	}
}
