package commands

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quoteboard/internal/quotes"
	"github.com/wonny/quoteboard/internal/quotes/universe"
	"github.com/wonny/quoteboard/pkg/config"
	"github.com/wonny/quoteboard/pkg/logger"
)

func init() {
	color.NoColor = true
}

func TestFormatTick(t *testing.T) {
	s := quotes.StockState{Symbol: "PETR4", Price: 38.91, Variation: 0.41, VariationPercent: 1.06, Trend: quotes.TrendUp}
	assert.Equal(t, "PETR4       38.91 ▲    +0.41 (+1.06%)", formatTick(s))

	s = quotes.StockState{Symbol: "VALE3", Price: 64.00, Variation: -1.2, VariationPercent: -1.84, Trend: quotes.TrendDown}
	assert.Contains(t, formatTick(s), "▼")
	assert.Contains(t, formatTick(s), "(-1.84%)")
}

func TestConsoleSink(t *testing.T) {
	engine := quotes.NewEngine(quotes.Options{}, logger.NewNop())
	var out bytes.Buffer
	sink := &consoleSink{engine: engine, out: &out}

	sink.SetConnectionStatus(true, nil)
	sink.SetConnectionStatus(true, nil)
	require.NoError(t, sink.ApplyQuote("PETR4", 38.50))
	require.Error(t, sink.ApplyQuote("PETR4", -1))
	sink.SetConnectionStatus(false, errors.New("boom"))

	text := out.String()
	assert.Equal(t, 1, strings.Count(text, "✓ connected"))
	assert.Contains(t, text, "PETR4")
	assert.Contains(t, text, "rejected")
	assert.Contains(t, text, "source error: boom")
	assert.Equal(t, 1, engine.Len())
}

func TestPrintRanking_Empty(t *testing.T) {
	var out bytes.Buffer
	printRanking(&out, "Top gainers", nil)
	assert.Contains(t, out.String(), "no quotes yet")
}

func TestPrintUniverse(t *testing.T) {
	var out bytes.Buffer
	printUniverse(&out, universe.Default())
	assert.Contains(t, out.String(), "Petrobras")
	assert.Contains(t, out.String(), "5 instruments")
}

func TestBuildSource(t *testing.T) {
	cfg := &config.Config{Feed: config.FeedConfig{
		Source:   "simulator",
		Interval: time.Second,
		Seed:     7,
	}}

	src, err := buildSource(cfg, universe.Default(), logger.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "simulator", src.Name())

	cfg.Feed.Source = "replay"
	cfg.Feed.ReplayFile = "does-not-exist.json"
	_, err = buildSource(cfg, universe.Default(), logger.NewNop())
	assert.Error(t, err)

	cfg.Feed.Source = "kis"
	_, err = buildSource(cfg, universe.Default(), logger.NewNop())
	assert.ErrorContains(t, err, "unknown feed source")
}

func TestSeededRand(t *testing.T) {
	assert.Nil(t, seededRand(0))

	a, b := seededRand(42), seededRand(42)
	assert.Equal(t, a.Float64(), b.Float64())
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "simulate", "universe"} {
		assert.True(t, names[want], want)
	}
}
