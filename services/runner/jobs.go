package runner

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tbreport/scenario"
)

// Job status constants
const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Job triggers
const (
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
	TriggerCLI      = "cli"
)

// Job is one queued scenario run. Its ID is also the run ID.
type Job struct {
	ID          string           `json:"id"`
	Trigger     string           `json:"trigger"`
	Status      string           `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
	Result      *scenario.Result `json:"result,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// JobStore keeps jobs in memory
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	now  func() time.Time
}

func NewJobStore() *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		now:  time.Now,
	}
}

func (s *JobStore) Create(trigger string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		Trigger:   trigger,
		Status:    JobStatusPending,
		CreatedAt: s.now(),
	}
	s.jobs[job.ID] = job
	return job
}

// Get returns a copy of the job.
func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List returns copies of up to limit jobs, newest first. A limit <= 0 returns all.
func (s *JobStore) List(limit int) []Job {
	s.mu.RLock()
	out := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *JobStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
}

func (s *JobStore) UpdateStatus(id, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Status = status
		now := s.now()
		switch status {
		case JobStatusRunning:
			job.StartedAt = &now
		case JobStatusCompleted, JobStatusFailed:
			job.CompletedAt = &now
		}
	}
}

// Finish records the outcome of a run.
func (s *JobStore) Finish(id string, res *scenario.Result, err error) {
	status := JobStatusCompleted
	if err != nil {
		status = JobStatusFailed
	}
	s.UpdateStatus(id, status)

	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Result = res
		if err != nil {
			job.Error = err.Error()
		}
	}
}

// CleanupOld drops finished jobs older than maxAge.
func (s *JobStore) CleanupOld(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge)
	removed := 0
	for id, job := range s.jobs {
		if job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}
