package models

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Job tracks an async webhook operation ("webhook-create", "webhook-delete").
type Job struct {
	ID           string     `json:"id"`
	Type         string     `json:"type"`
	ConnectionID string     `json:"connection_id"`
	Status       string     `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Error        string     `json:"error,omitempty"`
	Result       any        `json:"result,omitempty"`
	Output       []string   `json:"output"`
	mu           sync.Mutex
}

// Logf appends a formatted line to the job output.
func (j *Job) Logf(format string, args ...any) {
	j.AppendLog(fmt.Sprintf(format, args...))
}

// AppendLog adds a log line to the job output.
func (j *Job) AppendLog(line string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Output = append(j.Output, line)
}

// LogsSince returns log lines starting from the given index.
func (j *Job) LogsSince(offset int) []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	if offset >= len(j.Output) {
		return nil
	}
	lines := make([]string, len(j.Output)-offset)
	copy(lines, j.Output[offset:])
	return lines
}

// Finished reports whether the job reached a terminal state.
func (j *Job) Finished() (bool, string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Status != JobRunning, j.Status
}

// Snapshot returns a copy that can be serialized without holding the lock.
func (j *Job) Snapshot() Job {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := Job{
		ID:           j.ID,
		Type:         j.Type,
		ConnectionID: j.ConnectionID,
		Status:       j.Status,
		StartedAt:    j.StartedAt,
		FinishedAt:   j.FinishedAt,
		Error:        j.Error,
		Result:       j.Result,
		Output:       append([]string(nil), j.Output...),
	}
	return out
}

// Complete marks the job as completed with an optional result.
func (j *Job) Complete(result any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = JobCompleted
	j.Result = result
	now := time.Now()
	j.FinishedAt = &now
}

// Fail marks the job as failed with an error message.
func (j *Job) Fail(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = JobFailed
	j.Error = err
	now := time.Now()
	j.FinishedAt = &now
}

// JobStore is an in-memory thread-safe store for jobs.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobStore creates an empty job store.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*Job)}
}

// Create adds a new running job, assigning it a UUID.
func (s *JobStore) Create(jobType, connectionID string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := &Job{
		ID:           uuid.New().String(),
		Type:         jobType,
		ConnectionID: connectionID,
		Status:       JobRunning,
		StartedAt:    time.Now(),
		Output:       []string{},
	}
	s.jobs[j.ID] = j
	return j
}

// Get returns a job by ID.
func (s *JobStore) Get(id string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jobs[id]
}

// List returns snapshots of all jobs, most recent first.
func (s *JobStore) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		result = append(result, j.Snapshot())
	}
	sort.Slice(result, func(a, b int) bool {
		return result[a].StartedAt.After(result[b].StartedAt)
	})
	return result
}
