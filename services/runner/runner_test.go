package runner

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tbreport/metrics"
	"tbreport/runstore"
	"tbreport/scenario"
)

func passing(_ context.Context, id string) (scenario.Result, error) {
	now := time.Now()
	return scenario.Result{RunID: id, Status: scenario.StatusPassed, StartedAt: now, FinishedAt: now}, nil
}

func newService(t *testing.T, run RunFunc, opts Options) *Service {
	t.Helper()
	reg := prometheus.NewRegistry()
	opts.Metrics = metrics.New(reg)
	opts.Gatherer = reg
	s := NewService(run, opts)
	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(s.Stop)
	return s
}

func store(t *testing.T) *runstore.Store {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return runstore.New(rdb, "test", time.Hour, 10)
}

func waitStatus(t *testing.T, s *Service, id, status string) Job {
	t.Helper()
	var job Job
	require.Eventually(t, func() bool {
		var ok bool
		job, ok = s.Jobs().Get(id)
		return ok && job.Status == status
	}, 2*time.Second, 5*time.Millisecond)
	return job
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func TestStartRun(t *testing.T) {
	rs := store(t)
	s := newService(t, passing, Options{Recorder: rs})
	h := s.Router()

	rec := do(t, h, http.MethodPost, "/runs")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var started map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &started))
	id, _ := started["job_id"].(string)
	require.NotEmpty(t, id)

	job := waitStatus(t, s, id, JobStatusCompleted)
	require.NotNil(t, job.Result)
	assert.Equal(t, id, job.Result.RunID)
	assert.Equal(t, TriggerAPI, job.Trigger)
	assert.NotNil(t, job.CompletedAt)

	rec = do(t, h, http.MethodGet, "/runs/"+id)
	require.Equal(t, http.StatusOK, rec.Code)
	var got Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, JobStatusCompleted, got.Status)

	require.Eventually(t, func() bool {
		_, err := rs.Get(context.Background(), id)
		return err == nil
	}, time.Second, 5*time.Millisecond)

	// served from the run store once the job is gone
	s.Jobs().Remove(id)
	rec = do(t, h, http.MethodGet, "/runs/"+id)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, id, got.ID)
	assert.Equal(t, JobStatusCompleted, got.Status)

	rec = do(t, h, http.MethodGet, "/history")
	require.Equal(t, http.StatusOK, rec.Code)
	var history []scenario.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, id, history[0].RunID)
}

func TestStopCancelsRun(t *testing.T) {
	started := make(chan struct{})
	s := newService(t, func(ctx context.Context, id string) (scenario.Result, error) {
		close(started)
		<-ctx.Done()
		return scenario.Result{RunID: id, Status: scenario.StatusFailed}, ctx.Err()
	}, Options{Timeout: time.Minute})

	job, err := s.Enqueue(TriggerCLI)
	require.NoError(t, err)
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not start")
	}

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	got, ok := s.Jobs().Get(job.ID)
	require.True(t, ok)
	assert.Equal(t, JobStatusFailed, got.Status)
	assert.Contains(t, got.Error, context.Canceled.Error())
}

func TestFailedRun(t *testing.T) {
	s := newService(t, func(_ context.Context, id string) (scenario.Result, error) {
		return scenario.Result{RunID: id, Status: scenario.StatusFailed}, errors.New("login: boom")
	}, Options{})

	job, err := s.Enqueue(TriggerCLI)
	require.NoError(t, err)
	got := waitStatus(t, s, job.ID, JobStatusFailed)
	assert.Equal(t, "login: boom", got.Error)
}

func TestPanicRecovered(t *testing.T) {
	var calls atomic.Int32
	s := newService(t, func(_ context.Context, id string) (scenario.Result, error) {
		if calls.Add(1) == 1 {
			panic("driver crashed")
		}
		return passing(context.Background(), id)
	}, Options{})

	first, err := s.Enqueue(TriggerAPI)
	require.NoError(t, err)
	got := waitStatus(t, s, first.ID, JobStatusFailed)
	assert.Contains(t, got.Error, "driver crashed")

	second, err := s.Enqueue(TriggerAPI)
	require.NoError(t, err)
	waitStatus(t, s, second.ID, JobStatusCompleted)
}

func TestRunTimeout(t *testing.T) {
	s := newService(t, func(ctx context.Context, id string) (scenario.Result, error) {
		<-ctx.Done()
		return scenario.Result{RunID: id}, ctx.Err()
	}, Options{Timeout: 20 * time.Millisecond})

	job, err := s.Enqueue(TriggerAPI)
	require.NoError(t, err)
	got := waitStatus(t, s, job.ID, JobStatusFailed)
	assert.Contains(t, got.Error, context.DeadlineExceeded.Error())
}

func TestQueueFull(t *testing.T) {
	// not started, so nothing drains the queue
	s := NewService(passing, Options{QueueSize: 1, Gatherer: prometheus.NewRegistry()})
	_, err := s.Enqueue(TriggerAPI)
	require.NoError(t, err)

	_, err = s.Enqueue(TriggerAPI)
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Len(t, s.Jobs().List(0), 1)

	rec := do(t, s.Router(), http.MethodPost, "/runs")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSchedule(t *testing.T) {
	s := newService(t, passing, Options{Schedule: "@every 1s"})
	require.Eventually(t, func() bool {
		for _, j := range s.Jobs().List(0) {
			if j.Trigger == TriggerSchedule && j.Status == JobStatusCompleted {
				return true
			}
		}
		return false
	}, 3*time.Second, 20*time.Millisecond)
}

func TestInvalidSchedule(t *testing.T) {
	s := NewService(passing, Options{Schedule: "not a cron"})
	assert.Error(t, s.Start(context.Background()))
}

func TestRoutes(t *testing.T) {
	s := newService(t, passing, Options{})
	h := s.Router()

	rec := do(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/runs/missing").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/runs?limit=x").Code)
	assert.Equal(t, http.StatusNotImplemented, do(t, h, http.MethodGet, "/history").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodDelete, "/runs").Code)

	job, err := s.Enqueue(TriggerAPI)
	require.NoError(t, err)
	waitStatus(t, s, job.ID, JobStatusCompleted)

	rec = do(t, h, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "tbreport_scenario_runs_in_progress"))
}

func TestJobStore(t *testing.T) {
	js := NewJobStore()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	js.now = func() time.Time { return now }

	a := js.Create(TriggerAPI)
	now = now.Add(time.Minute)
	b := js.Create(TriggerSchedule)

	list := js.List(0)
	require.Len(t, list, 2)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Len(t, js.List(1), 1)

	js.UpdateStatus(a.ID, JobStatusRunning)
	js.Finish(a.ID, nil, nil)
	got, ok := js.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, JobStatusCompleted, got.Status)

	now = now.Add(time.Hour)
	assert.Equal(t, 1, js.CleanupOld(30*time.Minute))
	_, ok = js.Get(a.ID)
	assert.False(t, ok)
	_, ok = js.Get(b.ID)
	assert.True(t, ok)
}
