// Package view holds presentation helpers for dashboard clients. Everything
// here is a pure function of engine output and the clock.
package view

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/wonny/quoteboard/internal/quotes"
)

// FlashDuration is how long a card stays highlighted after a price change
const FlashDuration = 500 * time.Millisecond

// Flash CSS classes
const (
	FlashGreen = "flash-green"
	FlashRed   = "flash-red"
)

// Flash returns the highlight class for a card whose price changed at
// changedAt. Only the current trend matters: a reversal flashes the same
// as a continuation. Neutral ticks and expired highlights return "".
func Flash(trend quotes.Trend, changedAt, now time.Time) string {
	if changedAt.IsZero() || now.Before(changedAt) || now.Sub(changedAt) >= FlashDuration {
		return ""
	}

	switch trend {
	case quotes.TrendUp:
		return FlashGreen
	case quotes.TrendDown:
		return FlashRed
	default:
		return ""
	}
}

// Banner states
const (
	BannerActive   = "active"
	BannerLoading  = "loading"
	BannerStarting = "starting"
)

// BannerState is the connection banner shown above the board
type BannerState struct {
	State   string `json:"state"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Banner derives the banner from the connection status and stock count
func Banner(status quotes.ConnectionStatus, count int) BannerState {
	switch {
	case status.Connected && count > 0:
		return BannerState{
			State:   BannerActive,
			Message: fmt.Sprintf("Simulator active - %d stocks monitored", count),
		}
	case status.Connected:
		return BannerState{
			State:   BannerLoading,
			Message: "Simulator connected - loading initial data",
		}
	default:
		return BannerState{
			State:   BannerStarting,
			Message: "Starting quote simulator",
			Error:   status.Error,
		}
	}
}

// Initials returns the avatar text for a symbol: its first two characters, upper-cased
func Initials(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	if utf8.RuneCountInString(symbol) <= 2 {
		return strings.ToUpper(symbol)
	}

	_, first := utf8.DecodeRuneInString(symbol)
	_, second := utf8.DecodeRuneInString(symbol[first:])
	return strings.ToUpper(symbol[:first+second])
}

// Stock is a StockState decorated for rendering
type Stock struct {
	quotes.StockState
	Name     string `json:"name,omitempty"`
	Initials string `json:"initials"`
	Flash    string `json:"flash,omitempty"`
	Arrow    string `json:"arrow"`
}

// Decorate renders one state. name may be empty.
func Decorate(s quotes.StockState, name string, now time.Time) Stock {
	arrow := "↑"
	if s.VariationPercent < 0 {
		arrow = "↓"
	}

	return Stock{
		StockState: s,
		Name:       name,
		Initials:   Initials(s.Symbol),
		Flash:      Flash(s.Trend, s.LastUpdated, now),
		Arrow:      arrow,
	}
}
