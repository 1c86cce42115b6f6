// Package source defines where quotes come from. The engine only sees the
// Sink side; any Source (simulated, replayed or a real feed adapter) can be
// swapped in without touching it.
package source

import "context"

// Sink receives observations and connection status from a Source.
// *quotes.Engine and the feed manager both satisfy it.
type Sink interface {
	ApplyQuote(symbol string, price float64) error
	SetConnectionStatus(connected bool, err error)
}

// Source produces (symbol, price) observations into a Sink.
// Run blocks until ctx is cancelled (returning nil), the source is
// exhausted (returning nil) or it fails (returning an error).
type Source interface {
	Name() string
	Run(ctx context.Context, sink Sink) error
}

// Rand is the randomness a Source draws from, for deterministic testing.
// *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}
