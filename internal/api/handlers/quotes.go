package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/quoteboard/internal/api/view"
	"github.com/wonny/quoteboard/internal/quotes"
	"github.com/wonny/quoteboard/internal/quotes/universe"
	"github.com/wonny/quoteboard/pkg/logger"
)

// Ingestor accepts quotes from feed adapters. *feed.Manager satisfies it.
type Ingestor interface {
	ApplyQuote(symbol string, price float64) error
}

// RankingNotifier is told when the sort mode changes. *hub.Hub satisfies it.
type RankingNotifier interface {
	BroadcastRanking(mode quotes.SortMode)
}

// QuoteHandler serves stock state, rankings and the sort mode
type QuoteHandler struct {
	engine   *quotes.Engine
	ingest   Ingestor
	notifier RankingNotifier
	universe *universe.Universe
	now      func() time.Time
	logger   *logger.Logger
}

// NewQuoteHandler creates a new quote handler. notifier may be nil.
func NewQuoteHandler(
	engine *quotes.Engine,
	ingest Ingestor,
	notifier RankingNotifier,
	u *universe.Universe,
	log *logger.Logger,
) *QuoteHandler {
	return &QuoteHandler{
		engine:   engine,
		ingest:   ingest,
		notifier: notifier,
		universe: u,
		now:      time.Now,
		logger:   log,
	}
}

// RankingResponse is a ranked view with the mode that produced it
type RankingResponse struct {
	SortMode quotes.SortMode `json:"sort_mode"`
	Stocks   []view.Stock    `json:"stocks"`
}

type ingestRequest struct {
	Symbol string   `json:"symbol"`
	Price  *float64 `json:"price"`
}

type sortModeRequest struct {
	Mode string `json:"mode"`
}

func (h *QuoteHandler) decorate(states []quotes.StockState) []view.Stock {
	now := h.now()
	out := make([]view.Stock, 0, len(states))
	for _, s := range states {
		out = append(out, view.Decorate(s, h.name(s.Symbol), now))
	}
	return out
}

func (h *QuoteHandler) name(symbol string) string {
	if h.universe == nil {
		return ""
	}
	if inst, ok := h.universe.Lookup(symbol); ok {
		return inst.Name
	}
	return ""
}

// ListQuotes returns every tracked stock in creation order
// GET /api/quotes
func (h *QuoteHandler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.decorate(h.engine.Stocks()))
}

// GetQuote returns one stock
// GET /api/quotes/{symbol}
func (h *QuoteHandler) GetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]

	s, ok := h.engine.Stock(symbol)
	if !ok {
		respondError(w, http.StatusNotFound, "Unknown symbol: "+symbol)
		return
	}

	respondJSON(w, http.StatusOK, view.Decorate(s, h.name(symbol), h.now()))
}

// IngestQuote applies one observation from an external feed adapter
// POST /api/quotes {"symbol": "PETR4", "price": 38.50}
func (h *QuoteHandler) IngestQuote(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Price == nil {
		respondError(w, http.StatusBadRequest, "price is required")
		return
	}

	if err := h.ingest.ApplyQuote(req.Symbol, *req.Price); err != nil {
		if errors.Is(err, quotes.ErrInvalidQuote) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.WithError(err).WithField("symbol", req.Symbol).Error("Failed to ingest quote")
		respondError(w, http.StatusInternalServerError, "Failed to ingest quote")
		return
	}

	s, _ := h.engine.Stock(req.Symbol)
	respondJSON(w, http.StatusAccepted, view.Decorate(s, h.name(s.Symbol), h.now()))
}

// GetRanking returns the ranked view for the current sort mode
// GET /api/rankings
func (h *QuoteHandler) GetRanking(w http.ResponseWriter, r *http.Request) {
	mode := h.engine.SortMode()
	respondJSON(w, http.StatusOK, RankingResponse{
		SortMode: mode,
		Stocks:   h.decorate(h.engine.Ranking(mode)),
	})
}

// GetGainers returns the top gainers regardless of sort mode
// GET /api/rankings/gainers
func (h *QuoteHandler) GetGainers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, RankingResponse{
		SortMode: quotes.SortUp,
		Stocks:   h.decorate(h.engine.TopGainers()),
	})
}

// GetLosers returns the top losers regardless of sort mode
// GET /api/rankings/losers
func (h *QuoteHandler) GetLosers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, RankingResponse{
		SortMode: quotes.SortDown,
		Stocks:   h.decorate(h.engine.TopLosers()),
	})
}

// GetSortMode returns the current sort mode
// GET /api/sort-mode
func (h *QuoteHandler) GetSortMode(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]quotes.SortMode{"mode": h.engine.SortMode()})
}

// SetSortMode changes the sort mode and returns the new ranked view
// PUT /api/sort-mode {"mode": "down"}
func (h *QuoteHandler) SetSortMode(w http.ResponseWriter, r *http.Request) {
	var req sortModeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	mode, err := quotes.ParseSortMode(req.Mode)
	if err == nil {
		err = h.engine.SetSortMode(mode)
	}
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.notifier != nil {
		h.notifier.BroadcastRanking(mode)
	}

	h.logger.WithField("mode", string(mode)).Info("Sort mode changed")
	respondJSON(w, http.StatusOK, RankingResponse{
		SortMode: mode,
		Stocks:   h.decorate(h.engine.Ranking(mode)),
	})
}
