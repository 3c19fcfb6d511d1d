// Package runner serves scenario runs over HTTP: runs are queued as jobs, executed
// one at a time by a worker, and optionally triggered on a cron schedule.
package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"tbreport/logger"
	"tbreport/metrics"
	"tbreport/scenario"
)

// ErrQueueFull is returned by Enqueue when the worker is saturated.
var ErrQueueFull = errors.New("run queue is full")

// RunFunc executes one scenario run under runID.
type RunFunc func(ctx context.Context, runID string) (scenario.Result, error)

// Recorder persists finished runs.
type Recorder interface {
	Save(ctx context.Context, res scenario.Result) error
	Get(ctx context.Context, id string) (scenario.Result, error)
	Recent(ctx context.Context, n int) ([]scenario.Result, error)
}

// Options configures a Service.
type Options struct {
	QueueSize int
	// Schedule is a six-field cron expression (seconds first). Empty disables it.
	Schedule string
	// Timeout bounds a single run.
	Timeout  time.Duration
	Log      logger.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Recorder Recorder
	// JobMaxAge is how long finished jobs stay in memory.
	JobMaxAge time.Duration
}

// Service owns the job queue and its worker.
type Service struct {
	store    *JobStore
	run      RunFunc
	queue    chan string
	log      logger.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	recorder Recorder
	cron     *cron.Cron
	schedule string
	timeout  time.Duration
	maxAge   time.Duration

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

func NewService(run RunFunc, opts Options) *Service {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Minute
	}
	if opts.JobMaxAge <= 0 {
		opts.JobMaxAge = 24 * time.Hour
	}
	if opts.Log == nil {
		opts.Log = logger.NewNop()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &Service{
		store:    NewJobStore(),
		run:      run,
		queue:    make(chan string, opts.QueueSize),
		log:      opts.Log,
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		recorder: opts.Recorder,
		cron:     cron.New(cron.WithSeconds()),
		schedule: opts.Schedule,
		timeout:  opts.Timeout,
		maxAge:   opts.JobMaxAge,
	}
}

// Jobs exposes the in-memory job store.
func (s *Service) Jobs() *JobStore { return s.store }

// Start launches the worker, the cleanup loop and the schedule. They stop when ctx
// is cancelled or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	if s.schedule != "" {
		if _, err := s.cron.AddFunc(s.schedule, func() {
			if job, err := s.Enqueue(TriggerSchedule); err != nil {
				s.log.Warn("scheduled run skipped", logger.Error(err))
			} else {
				s.log.Info("scheduled run queued", logger.String("job_id", job.ID))
			}
		}); err != nil {
			return fmt.Errorf("invalid schedule %q: %w", s.schedule, err)
		}
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(2)
	go s.worker(ctx)
	go s.cleanupWorker(ctx)
	s.cron.Start()
	s.log.Info("runner started", logger.String("schedule", s.schedule), logger.Int("queue_size", cap(s.queue)))
	return nil
}

// Stop stops the schedule, cancels the run in progress and waits for the worker
// and cleanup loop to exit.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// Enqueue creates a job and queues it without blocking.
func (s *Service) Enqueue(trigger string) (Job, error) {
	job := s.store.Create(trigger)
	select {
	case s.queue <- job.ID:
	default:
		s.store.Remove(job.ID)
		return Job{}, ErrQueueFull
	}
	s.setQueueDepth()
	s.log.Info("run queued", logger.String("job_id", job.ID), logger.String("trigger", trigger))
	return *job, nil
}

func (s *Service) setQueueDepth() {
	if s.metrics != nil {
		s.metrics.QueueDepth.Set(float64(len(s.queue)))
	}
}

func (s *Service) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-s.queue:
			s.setQueueDepth()
			s.process(ctx, id)
		}
	}
}

func (s *Service) process(ctx context.Context, id string) {
	log := s.log.With(logger.String("job_id", id))
	defer func() {
		if r := recover(); r != nil {
			log.Error("run panicked", logger.Any("panic", r))
			s.store.Finish(id, nil, fmt.Errorf("panic: %v", r))
		}
	}()

	if _, ok := s.store.Get(id); !ok {
		log.Warn("job not found")
		return
	}
	s.store.UpdateStatus(id, JobStatusRunning)
	if s.metrics != nil {
		s.metrics.RunsInProgress.Inc()
		defer s.metrics.RunsInProgress.Dec()
	}

	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	res, err := s.run(rctx, id)
	if res.RunID == "" {
		res.RunID = id
	}
	s.store.Finish(id, &res, err)
	if err != nil {
		log.Error("run failed", logger.Error(err))
	} else {
		log.Info("run completed", logger.Duration("duration", res.Duration()))
	}

	if s.recorder != nil {
		if err := s.recorder.Save(context.WithoutCancel(ctx), res); err != nil {
			log.Warn("saving run failed", logger.Error(err))
		}
	}
}

func (s *Service) cleanupWorker(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.store.CleanupOld(s.maxAge); n > 0 {
				s.log.Debug("dropped old jobs", logger.Int("count", n))
			}
		}
	}
}
