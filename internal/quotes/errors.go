package quotes

import "errors"

var (
	// ErrInvalidQuote marks a malformed symbol or a non-finite or
	// non-positive price. The quote is dropped and nothing changes.
	ErrInvalidQuote = errors.New("invalid quote")

	// ErrMissingSymbolState means an update path expected state for a
	// symbol that does not exist. It signals a logic error.
	ErrMissingSymbolState = errors.New("missing symbol state")

	// ErrSourceUnavailable is reported through ConnectionStatus when the
	// quote source cannot produce observations.
	ErrSourceUnavailable = errors.New("quote source unavailable")

	// ErrInvalidSortMode is returned for modes other than up and down.
	ErrInvalidSortMode = errors.New("invalid sort mode")
)
