package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/quoteboard/internal/api/handlers"
	"github.com/wonny/quoteboard/pkg/logger"
)

// Handlers groups everything the router serves
type Handlers struct {
	Quotes *handlers.QuoteHandler
	Status *handlers.StatusHandler
	// WebSocket is mounted at /ws when set
	WebSocket http.Handler
	// IngestLimiter throttles POST /api/quotes when set
	IngestLimiter Limiter
}

// NewRouter creates and configures the HTTP router
func NewRouter(h Handlers, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Quotes
	api.HandleFunc("/quotes", h.Quotes.ListQuotes).Methods("GET")
	api.HandleFunc("/quotes/{symbol}", h.Quotes.GetQuote).Methods("GET")

	var ingest http.Handler = http.HandlerFunc(h.Quotes.IngestQuote)
	if h.IngestLimiter != nil {
		ingest = rateLimitMiddleware(h.IngestLimiter, log)(ingest)
	}
	api.Handle("/quotes", ingest).Methods("POST")

	// Rankings
	api.HandleFunc("/rankings", h.Quotes.GetRanking).Methods("GET")
	api.HandleFunc("/rankings/gainers", h.Quotes.GetGainers).Methods("GET")
	api.HandleFunc("/rankings/losers", h.Quotes.GetLosers).Methods("GET")
	api.HandleFunc("/sort-mode", h.Quotes.GetSortMode).Methods("GET")
	api.HandleFunc("/sort-mode", h.Quotes.SetSortMode).Methods("PUT")

	// Status
	api.HandleFunc("/status", h.Status.GetStatus).Methods("GET")
	api.HandleFunc("/feed/stats", h.Status.GetFeedStats).Methods("GET")
	api.HandleFunc("/jobs", h.Status.GetJobs).Methods("GET")

	if h.WebSocket != nil {
		r.Handle("/ws", h.WebSocket).Methods("GET")
	}

	// Lets the CORS middleware answer preflight requests on every path
	r.PathPrefix("/").Methods("OPTIONS").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Apply middleware
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))
	r.Use(corsMiddleware)

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": "quoteboard",
	})
}
