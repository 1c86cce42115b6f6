package universe

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wonny/quoteboard/internal/quotes"
)

// Instrument is one simulated symbol with its random-walk parameters
type Instrument struct {
	Symbol     string  `yaml:"symbol" json:"symbol"`
	Name       string  `yaml:"name" json:"name"`
	BasePrice  float64 `yaml:"base_price" json:"base_price"`
	Volatility float64 `yaml:"volatility" json:"volatility"`
}

// Universe is the fixed set of instruments a source cycles through.
// Order is significant: it drives the stagger within a cycle.
type Universe struct {
	Instruments []Instrument `yaml:"instruments" json:"instruments"`
}

// Default returns the built-in five Brazilian equities
func Default() *Universe {
	return &Universe{
		Instruments: []Instrument{
			{Symbol: "PETR4", Name: "Petrobras", BasePrice: 38.50, Volatility: 0.025},
			{Symbol: "VALE3", Name: "Vale", BasePrice: 65.20, Volatility: 0.020},
			{Symbol: "ITUB4", Name: "Itaú Unibanco", BasePrice: 25.80, Volatility: 0.015},
			{Symbol: "BBDC4", Name: "Bradesco", BasePrice: 12.45, Volatility: 0.015},
			{Symbol: "ABEV3", Name: "Ambev", BasePrice: 14.30, Volatility: 0.012},
		},
	}
}

// Load reads a universe from a YAML file.
// An empty path returns the default universe.
func Load(path string) (*Universe, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read universe file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates a YAML universe document
func Parse(data []byte) (*Universe, error) {
	var u Universe
	if err := yaml.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("parse universe: %w", err)
	}

	for i := range u.Instruments {
		u.Instruments[i].Symbol = quotes.NormalizeSymbol(u.Instruments[i].Symbol)
	}

	if err := u.Validate(); err != nil {
		return nil, err
	}

	return &u, nil
}

// Validate checks symbols are unique and parameters are usable
func (u *Universe) Validate() error {
	if len(u.Instruments) == 0 {
		return fmt.Errorf("universe has no instruments")
	}

	seen := make(map[string]bool, len(u.Instruments))
	for _, inst := range u.Instruments {
		if inst.Symbol == "" {
			return fmt.Errorf("instrument with empty symbol")
		}
		if seen[inst.Symbol] {
			return fmt.Errorf("duplicate symbol %s", inst.Symbol)
		}
		seen[inst.Symbol] = true

		if inst.BasePrice <= 0 {
			return fmt.Errorf("%s: base_price must be positive", inst.Symbol)
		}
		if inst.Volatility < 0 || inst.Volatility >= 1 {
			return fmt.Errorf("%s: volatility must be in [0, 1)", inst.Symbol)
		}
	}

	return nil
}

// Symbols returns the symbols in universe order
func (u *Universe) Symbols() []string {
	symbols := make([]string, len(u.Instruments))
	for i, inst := range u.Instruments {
		symbols[i] = inst.Symbol
	}
	return symbols
}

// Lookup returns the instrument for symbol
func (u *Universe) Lookup(symbol string) (Instrument, bool) {
	symbol = quotes.NormalizeSymbol(symbol)
	for _, inst := range u.Instruments {
		if inst.Symbol == symbol {
			return inst, true
		}
	}
	return Instrument{}, false
}
