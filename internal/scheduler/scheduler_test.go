package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mx-pai/rss-recommendation-platform/internal/metrics"
	"github.com/mx-pai/rss-recommendation-platform/pkg/models"
)

type blockingRunner struct {
	started   chan struct{}
	release   chan struct{}
	calls     int32
	active    int32
	maxActive int32
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{
		started: make(chan struct{}, 10),
		release: make(chan struct{}),
	}
}

func (r *blockingRunner) FetchAllActiveSources(context.Context) models.BatchResult {
	atomic.AddInt32(&r.calls, 1)
	n := atomic.AddInt32(&r.active, 1)
	for {
		m := atomic.LoadInt32(&r.maxActive)
		if n <= m || atomic.CompareAndSwapInt32(&r.maxActive, m, n) {
			break
		}
	}
	r.started <- struct{}{}
	<-r.release
	atomic.AddInt32(&r.active, -1)
	return models.BatchResult{Success: true, Message: "done"}
}

func waitStarted(t *testing.T, r *blockingRunner) {
	t.Helper()
	select {
	case <-r.started:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not start")
	}
}

func TestStartStop(t *testing.T) {
	s := NewScheduler(nil, newBlockingRunner(), nil, logr.Discard())

	status := s.Status()
	assert.False(t, status.Running)
	assert.Empty(t, status.Jobs)
	assert.Equal(t, 0, status.JobCount)

	require.NoError(t, s.Start())
	require.NoError(t, s.Start(), "starting twice is a no-op")
	assert.True(t, s.IsRunning())

	status = s.Status()
	assert.True(t, status.Running)
	require.Equal(t, 1, status.JobCount)
	job := status.Jobs[0]
	assert.Equal(t, FetchJobID, job.ID)
	assert.Equal(t, "interval[1h0m0s]", job.Trigger)
	require.NotNil(t, job.NextRun)
	assert.WithinDuration(t, time.Now().Add(time.Hour), *job.NextRun, time.Minute)

	s.Stop()
	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Empty(t, s.Status().Jobs)
}

func TestStartRejectsInvalidInterval(t *testing.T) {
	s := NewScheduler(&Config{Interval: 0}, newBlockingRunner(), nil, logr.Discard())
	assert.Error(t, s.Start())
	assert.False(t, s.IsRunning())
}

func TestPauseResume(t *testing.T) {
	s := NewScheduler(nil, newBlockingRunner(), nil, logr.Discard())

	assert.ErrorIs(t, s.PauseJob(FetchJobID), ErrJobNotFound)

	require.NoError(t, s.Start())
	defer s.Stop()

	assert.ErrorIs(t, s.PauseJob("nope"), ErrJobNotFound)
	assert.ErrorIs(t, s.ResumeJob("nope"), ErrJobNotFound)

	require.NoError(t, s.PauseJob(FetchJobID))
	job := s.Status().Jobs[0]
	assert.True(t, job.Paused)
	assert.Nil(t, job.NextRun)

	require.NoError(t, s.ResumeJob(FetchJobID))
	job = s.Status().Jobs[0]
	assert.False(t, job.Paused)
	assert.NotNil(t, job.NextRun)
}

func TestPausedTickIsSkipped(t *testing.T) {
	runner := newBlockingRunner()
	m := metrics.New(prometheus.NewRegistry())
	s := NewScheduler(nil, runner, m, logr.Discard())
	require.NoError(t, s.Start())
	defer s.Stop()

	require.NoError(t, s.PauseJob(FetchJobID))
	s.cron.Entry(s.entryID).WrappedJob.Run()

	assert.Equal(t, int32(0), atomic.LoadInt32(&runner.calls))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SchedulerRuns.WithLabelValues(TriggerSchedule, "skipped")))
}

func TestPeriodicJobIsSingleFlight(t *testing.T) {
	runner := newBlockingRunner()
	s := NewScheduler(nil, runner, nil, logr.Discard())
	require.NoError(t, s.Start())

	job := s.cron.Entry(s.entryID).WrappedJob
	go job.Run()
	waitStarted(t, runner)

	// A second tick while the first is in flight is skipped, not queued.
	job.Run()
	assert.Equal(t, int32(1), atomic.LoadInt32(&runner.calls))
	assert.Equal(t, int32(1), atomic.LoadInt32(&runner.maxActive))

	close(runner.release)
	s.Stop()
	assert.Equal(t, int32(1), atomic.LoadInt32(&runner.calls))
}

func TestTriggerNow(t *testing.T) {
	runner := newBlockingRunner()
	m := metrics.New(prometheus.NewRegistry())
	s := NewScheduler(nil, runner, m, logr.Discard())

	assert.ErrorIs(t, s.TriggerNow(), ErrNotRunning)

	require.NoError(t, s.Start())
	require.NoError(t, s.TriggerNow())
	waitStarted(t, runner)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the triggered run finished")
	case <-time.After(100 * time.Millisecond):
	}

	close(runner.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the run finished")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SchedulerRuns.WithLabelValues(TriggerManual, "success")))
}

type failingRunner struct{}

func (failingRunner) FetchAllActiveSources(context.Context) models.BatchResult {
	return models.BatchResult{Success: false, Message: "failed to load active sources", Error: errors.New("db down").Error()}
}

func TestFailedRunIsRecorded(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	s := NewScheduler(nil, failingRunner{}, m, logr.Discard())

	s.run(TriggerSchedule)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SchedulerRuns.WithLabelValues(TriggerSchedule, "failure")))
}

func TestMisfired(t *testing.T) {
	scheduled := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	grace := 5 * time.Minute

	assert.False(t, misfired(scheduled, scheduled.Add(time.Second), grace))
	assert.False(t, misfired(scheduled, scheduled.Add(grace), grace))
	assert.True(t, misfired(scheduled, scheduled.Add(grace+time.Second), grace))
	assert.False(t, misfired(time.Time{}, scheduled, grace))
	assert.False(t, misfired(scheduled, scheduled.Add(time.Hour), 0))
}
