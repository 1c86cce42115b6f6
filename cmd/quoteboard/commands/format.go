package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/wonny/quoteboard/internal/quotes"
	"github.com/wonny/quoteboard/internal/quotes/universe"
)

var (
	upColor      = color.New(color.FgGreen)
	downColor    = color.New(color.FgRed)
	neutralColor = color.New(color.FgWhite)
	headerColor  = color.New(color.FgCyan, color.Bold)
)

func separator(w io.Writer) {
	fmt.Fprintln(w, strings.Repeat("=", 56))
}

func trendColor(t quotes.Trend) *color.Color {
	switch t {
	case quotes.TrendUp:
		return upColor
	case quotes.TrendDown:
		return downColor
	default:
		return neutralColor
	}
}

func arrow(t quotes.Trend) string {
	switch t {
	case quotes.TrendUp:
		return "▲"
	case quotes.TrendDown:
		return "▼"
	default:
		return "•"
	}
}

// formatTick renders one stock line: symbol, price, arrow and variation
func formatTick(s quotes.StockState) string {
	return fmt.Sprintf("%-6s %10.2f %s %+8.2f (%+.2f%%)",
		s.Symbol, s.Price, arrow(s.Trend), s.Variation, s.VariationPercent)
}

func printTick(w io.Writer, s quotes.StockState) {
	trendColor(s.Trend).Fprintln(w, formatTick(s))
}

func printRanking(w io.Writer, title string, stocks []quotes.StockState) {
	fmt.Fprintln(w)
	headerColor.Fprintln(w, title)
	separator(w)
	if len(stocks) == 0 {
		fmt.Fprintln(w, "  (no quotes yet)")
		return
	}
	for i, s := range stocks {
		fmt.Fprintf(w, "%2d. ", i+1)
		printTick(w, s)
	}
}

func printUniverse(w io.Writer, u *universe.Universe) {
	headerColor.Fprintln(w, "📊 Universe")
	separator(w)
	fmt.Fprintf(w, "%-6s  %-20s %10s %10s\n", "SYMBOL", "NAME", "BASE", "VOL")
	for _, inst := range u.Instruments {
		fmt.Fprintf(w, "%-6s  %-20s %10.2f %9.1f%%\n", inst.Symbol, inst.Name, inst.BasePrice, inst.Volatility*100)
	}
	separator(w)
	fmt.Fprintf(w, "%d instruments\n", len(u.Instruments))
}
