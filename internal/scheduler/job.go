package scheduler

import (
	"context"
	"time"
)

// Job is a periodic task run against the live quote board
type Job interface {
	Name() string

	// Run executes one pass. Returning an error triggers the scheduler's retries.
	Run(ctx context.Context) error

	// Schedule returns a six-field cron expression (seconds first),
	// e.g. "*/5 * * * * *", or a descriptor such as "@every 1m"
	Schedule() string
}

// JobResult is the outcome of one scheduled run, retries included
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// maxHistory bounds the results kept per job
const maxHistory = 100

// JobHistory is a bounded, oldest-first log of results.
// The scheduler guards it; callers get copies.
type JobHistory struct {
	Results []JobResult
}

// AddResult appends a result, evicting the oldest beyond maxHistory
func (h *JobHistory) AddResult(result JobResult) {
	h.Results = append(h.Results, result)

	if len(h.Results) > maxHistory {
		h.Results = append([]JobResult(nil), h.Results[len(h.Results)-maxHistory:]...)
	}
}

// GetLatestResults returns a copy of the latest n results, oldest first
func (h *JobHistory) GetLatestResults(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}
	if n <= 0 {
		return []JobResult{}
	}

	return append([]JobResult(nil), h.Results[len(h.Results)-n:]...)
}

// GetFailedResults returns all failed results
func (h *JobHistory) GetFailedResults() []JobResult {
	failed := make([]JobResult, 0)
	for _, result := range h.Results {
		if !result.Success {
			failed = append(failed, result)
		}
	}
	return failed
}

// ConsecutiveFailures counts failed runs since the last success.
func (h *JobHistory) ConsecutiveFailures() int {
	n := 0
	for i := len(h.Results) - 1; i >= 0 && !h.Results[i].Success; i-- {
		n++
	}
	return n
}

// LastError returns the error of the most recent failed run, if any
func (h *JobHistory) LastError() string {
	for i := len(h.Results) - 1; i >= 0; i-- {
		if !h.Results[i].Success {
			return h.Results[i].Error
		}
	}
	return ""
}

// GetSuccessRate returns the success rate (0.0 - 1.0)
func (h *JobHistory) GetSuccessRate() float64 {
	if len(h.Results) == 0 {
		return 0.0
	}

	successCount := 0
	for _, result := range h.Results {
		if result.Success {
			successCount++
		}
	}

	return float64(successCount) / float64(len(h.Results))
}
