package handlers

import (
	"net/http"

	"github.com/wonny/quoteboard/internal/api/view"
	"github.com/wonny/quoteboard/internal/quotes"
	"github.com/wonny/quoteboard/internal/realtime/feed"
	"github.com/wonny/quoteboard/internal/scheduler"
	"github.com/wonny/quoteboard/pkg/logger"
)

// FeedStatter is satisfied by *feed.Manager
type FeedStatter interface {
	Stats() *feed.FeedStats
}

// JobStatter is satisfied by *scheduler.Scheduler
type JobStatter interface {
	GetJobStats() map[string]scheduler.JobStats
}

// StatusHandler serves connection, feed and job status
type StatusHandler struct {
	engine *quotes.Engine
	feed   FeedStatter
	jobs   JobStatter
	logger *logger.Logger
}

// NewStatusHandler creates a new status handler. jobs may be nil.
func NewStatusHandler(engine *quotes.Engine, feed FeedStatter, jobs JobStatter, log *logger.Logger) *StatusHandler {
	return &StatusHandler{
		engine: engine,
		feed:   feed,
		jobs:   jobs,
		logger: log,
	}
}

// StatusResponse is the dashboard header state
type StatusResponse struct {
	Connection quotes.ConnectionStatus `json:"connection"`
	Banner     view.BannerState        `json:"banner"`
	Stats      quotes.Stats            `json:"stats"`
}

// GetStatus returns connection status, banner and engine stats
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	stats := h.engine.Stats()
	status := h.engine.ConnectionStatus()

	respondJSON(w, http.StatusOK, StatusResponse{
		Connection: status,
		Banner:     view.Banner(status, stats.Symbols),
		Stats:      stats,
	})
}

// GetFeedStats returns feed manager counters
// GET /api/feed/stats
func (h *StatusHandler) GetFeedStats(w http.ResponseWriter, r *http.Request) {
	if h.feed == nil {
		respondError(w, http.StatusServiceUnavailable, "Feed manager not running")
		return
	}
	respondJSON(w, http.StatusOK, h.feed.Stats())
}

// GetJobs returns scheduler job statistics
// GET /api/jobs
func (h *StatusHandler) GetJobs(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		respondJSON(w, http.StatusOK, map[string]scheduler.JobStats{})
		return
	}
	respondJSON(w, http.StatusOK, h.jobs.GetJobStats())
}
