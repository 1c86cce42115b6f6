package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quoteboard/pkg/logger"
)

type countingJob struct {
	name     string
	schedule string
	failures int32
	runs     atomic.Int32
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }

func (j *countingJob) Run(ctx context.Context) error {
	if j.runs.Add(1) <= j.failures {
		return errors.New("transient failure")
	}
	return nil
}

func newTestScheduler() *Scheduler {
	return New(logger.NewNop(), WithRetry(2, time.Millisecond))
}

func TestAddJob(t *testing.T) {
	s := newTestScheduler()

	require.NoError(t, s.AddJob(&countingJob{name: "b", schedule: "@every 1h"}))
	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "*/5 * * * * *"}))

	assert.Error(t, s.AddJob(&countingJob{name: "a", schedule: "@every 1h"}), "duplicate name")
	assert.Error(t, s.AddJob(&countingJob{name: "c", schedule: "not a schedule"}))

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())
}

func TestRemoveJob(t *testing.T) {
	s := newTestScheduler()
	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "@every 1h"}))

	require.NoError(t, s.RemoveJob("a"))
	assert.Empty(t, s.GetAllJobs())
	assert.Empty(t, s.cron.Entries())
	assert.Error(t, s.RemoveJob("a"))
	assert.Error(t, s.RunJob("a"))
}

func TestRunJob_RetriesThenSucceeds(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "flaky", schedule: "@every 1h", failures: 2}
	require.NoError(t, s.AddJob(job))

	s.runJob(job)

	assert.Equal(t, int32(3), job.runs.Load())

	history, err := s.GetJobHistory("flaky")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.True(t, history.Results[0].Success)
	assert.Equal(t, 3, history.Results[0].Attempts)
}

func TestRunJob_FailsAfterRetries(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "broken", schedule: "@every 1h", failures: 100}
	require.NoError(t, s.AddJob(job))

	s.runJob(job)

	assert.Equal(t, int32(3), job.runs.Load())

	stats := s.GetJobStats()["broken"]
	assert.Equal(t, 1, stats.TotalRuns)
	assert.Equal(t, 1, stats.FailureCount)
	assert.Equal(t, 0.0, stats.SuccessRate)
	require.NotNil(t, stats.LastFailure)
	assert.Nil(t, stats.LastSuccess)
	assert.Equal(t, 1, stats.ConsecutiveFailures)
	assert.Equal(t, "transient failure", stats.LastError)

	s.runJob(job)
	assert.Equal(t, 2, s.GetJobStats()["broken"].ConsecutiveFailures)
}

func TestRunJob_Async(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "now", schedule: "@every 1h"}
	require.NoError(t, s.AddJob(job))

	require.NoError(t, s.RunJob("now"))
	require.Eventually(t, func() bool {
		h, _ := s.GetJobHistory("now")
		return len(h.Results) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	s := newTestScheduler()
	job := &countingJob{name: "tick", schedule: "@every 1s"}
	require.NoError(t, s.AddJob(job))

	s.Start()
	defer s.Stop()

	require.Eventually(t, func() bool {
		return job.runs.Load() >= 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestStopAbortsRetries(t *testing.T) {
	s := New(logger.NewNop(), WithRetry(5, time.Hour))
	job := &countingJob{name: "slow", schedule: "@every 1h", failures: 100}
	require.NoError(t, s.AddJob(job))

	done := make(chan struct{})
	go func() {
		s.runJob(job)
		close(done)
	}()

	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("retry wait was not interrupted by Stop")
	}
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	assert.Equal(t, 0.0, h.GetSuccessRate())
	assert.Empty(t, h.GetLatestResults(5))

	for i := 0; i < maxHistory+10; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}

	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.GetLatestResults(3), 3)
	assert.Len(t, h.GetFailedResults(), maxHistory/2)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 1e-9)

	latest := h.GetLatestResults(1)
	latest[0].Error = "mutated"
	assert.NotEqual(t, "mutated", h.Results[len(h.Results)-1].Error)
}

func TestJobHistory_ConsecutiveFailures(t *testing.T) {
	h := &JobHistory{}
	assert.Equal(t, 0, h.ConsecutiveFailures())
	assert.Empty(t, h.LastError())

	h.AddResult(JobResult{Success: false, Error: "stale feed"})
	h.AddResult(JobResult{Success: true})
	assert.Equal(t, 0, h.ConsecutiveFailures())
	assert.Equal(t, "stale feed", h.LastError())

	h.AddResult(JobResult{Success: false, Error: "redis down"})
	h.AddResult(JobResult{Success: false, Error: "redis down again"})
	assert.Equal(t, 2, h.ConsecutiveFailures())
	assert.Equal(t, "redis down again", h.LastError())
}
