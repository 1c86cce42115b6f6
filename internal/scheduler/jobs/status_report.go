package jobs

import (
	"context"

	"github.com/wonny/quoteboard/internal/quotes"
	"github.com/wonny/quoteboard/pkg/logger"
)

// StatusReportJob logs a one-line summary of the board
type StatusReportJob struct {
	engine *quotes.Engine
	logger *logger.Logger
}

// NewStatusReportJob creates a new status report job
func NewStatusReportJob(engine *quotes.Engine, log *logger.Logger) *StatusReportJob {
	return &StatusReportJob{
		engine: engine,
		logger: log,
	}
}

// Name returns the job name
func (j *StatusReportJob) Name() string {
	return "status_report"
}

// Schedule returns the cron schedule (every minute)
func (j *StatusReportJob) Schedule() string {
	return "0 * * * * *"
}

// Run logs engine stats and the current leaders
func (j *StatusReportJob) Run(ctx context.Context) error {
	stats := j.engine.Stats()

	fields := map[string]interface{}{
		"symbols":   stats.Symbols,
		"applied":   stats.Applied,
		"rejected":  stats.Rejected,
		"connected": stats.Connected,
		"sort_mode": string(stats.SortMode),
	}
	if gainers := j.engine.TopGainers(); len(gainers) > 0 {
		fields["top_gainer"] = gainers[0].Symbol
		fields["top_gainer_pct"] = gainers[0].VariationPercent
	}
	if losers := j.engine.TopLosers(); len(losers) > 0 {
		fields["top_loser"] = losers[0].Symbol
		fields["top_loser_pct"] = losers[0].VariationPercent
	}

	j.logger.WithFields(fields).Info("Board status")
	return nil
}
