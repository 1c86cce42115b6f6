package quotes

import (
	"fmt"
	"strings"
	"time"
)

// Trend is the tick-over-tick direction of the latest price change.
type Trend string

const (
	TrendUp      Trend = "up"
	TrendDown    Trend = "down"
	TrendNeutral Trend = "neutral"
)

// SortMode selects which ranking view is exposed.
type SortMode string

const (
	SortUp   SortMode = "up"   // top gainers
	SortDown SortMode = "down" // top losers
)

// Valid reports whether m is one of the known modes
func (m SortMode) Valid() bool {
	return m == SortUp || m == SortDown
}

// ParseSortMode parses "up" or "down" (case-insensitive)
func ParseSortMode(s string) (SortMode, error) {
	mode := SortMode(strings.ToLower(strings.TrimSpace(s)))
	if !mode.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidSortMode, s)
	}
	return mode, nil
}

// NormalizeSymbol trims and upper-cases a ticker so "petr4" and "PETR4 "
// address the same state.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Quote is a single (symbol, price) observation.
// At is optional; the engine stamps the quote on arrival when it is zero.
type Quote struct {
	Symbol string    `json:"symbol" yaml:"symbol"`
	Price  float64   `json:"price" yaml:"price"`
	At     time.Time `json:"at,omitempty" yaml:"-"`
}

// StockState is the derived state for one symbol.
// OpenPrice is the first price ever observed and is the baseline for
// Variation; Trend compares against the previous price instead.
type StockState struct {
	Symbol           string    `json:"symbol"`
	Price            float64   `json:"price"`
	OpenPrice        float64   `json:"open_price"`
	Variation        float64   `json:"variation"`
	VariationPercent float64   `json:"variation_percent"`
	PriceHistory     []float64 `json:"price_history"`
	LastUpdated      time.Time `json:"last_updated"`
	Trend            Trend     `json:"trend"`
}

func newStockState(symbol string, price float64, at time.Time) StockState {
	return StockState{
		Symbol:       symbol,
		Price:        price,
		OpenPrice:    price,
		PriceHistory: []float64{price},
		LastUpdated:  at,
		Trend:        TrendNeutral,
	}
}

// next derives the state that follows s after observing price.
// s is left untouched; the history slice is always freshly allocated.
func (s StockState) next(price float64, at time.Time, historyLimit int) StockState {
	variation := price - s.OpenPrice

	trend := TrendNeutral
	if price > s.Price {
		trend = TrendUp
	} else if price < s.Price {
		trend = TrendDown
	}

	history := make([]float64, 0, len(s.PriceHistory)+1)
	history = append(history, s.PriceHistory...)
	history = append(history, price)
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	return StockState{
		Symbol:           s.Symbol,
		Price:            price,
		OpenPrice:        s.OpenPrice,
		Variation:        variation,
		VariationPercent: variationPercent(variation, s.OpenPrice),
		PriceHistory:     history,
		LastUpdated:      at,
		Trend:            trend,
	}
}

// variationPercent never returns NaN or Inf; a zero open price yields 0.
func variationPercent(variation, openPrice float64) float64 {
	if openPrice == 0 {
		return 0
	}
	return variation / openPrice * 100
}

func (s StockState) clone() StockState {
	c := s
	c.PriceHistory = append([]float64(nil), s.PriceHistory...)
	return c
}

// ConnectionStatus reflects whether the quote source is delivering.
type ConnectionStatus struct {
	Connected bool      `json:"connected"`
	Error     string    `json:"error,omitempty"`
	Since     time.Time `json:"since"`
}

// Stats is a point-in-time summary of the engine
type Stats struct {
	Symbols     int       `json:"symbols"`
	Applied     uint64    `json:"applied"`
	Rejected    uint64    `json:"rejected"`
	LastQuoteAt time.Time `json:"last_quote_at"`
	SortMode    SortMode  `json:"sort_mode"`
	Connected   bool      `json:"connected"`
}
