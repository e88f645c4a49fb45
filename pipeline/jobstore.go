package pipeline

import (
	"crypto/rand"
	"encoding/hex"
	"sort"
	"sync"
	"time"
)

// Job lifecycle states.
const (
	JobQueued   = "queued"
	JobRunning  = "running"
	JobComplete = "complete"
	JobFailed   = "failed"
)

// Job tracks one scrape run triggered through the API.
type Job struct {
	ID            string     `json:"job_id"`
	Status        string     `json:"status"`
	Sources       []string   `json:"sources,omitempty"`
	MaxPages      int        `json:"max_pages"`
	QueuedAt      time.Time  `json:"queued_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
	Progress      int        `json:"progress"`
	Collected     int        `json:"collected"`
	CurrentSource string     `json:"current_source,omitempty"`
	Err           string     `json:"error,omitempty"`
}

// JobStore is an in-memory registry of scrape jobs with a defined
// lifecycle: created on submit, updated on progress, terminal on complete
// or fail. It is safe for concurrent use.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobStore creates an empty JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*Job)}
}

// Create registers a new queued job and returns a copy of it.
func (s *JobStore) Create(sources []string, maxPages int) Job {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := &Job{
		ID:       newJobID(),
		Status:   JobQueued,
		Sources:  sources,
		MaxPages: maxPages,
		QueuedAt: time.Now().UTC(),
	}
	s.jobs[job.ID] = job
	return *job
}

// Get returns a copy of the job, if present.
func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Update applies fn to the job under the store lock.
func (s *JobStore) Update(id string, fn func(*Job)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		fn(job)
	}
}

// MarkRunning transitions the job to the running state.
func (s *JobStore) MarkRunning(id string) {
	now := time.Now().UTC()
	s.Update(id, func(j *Job) {
		j.Status = JobRunning
		j.StartedAt = &now
	})
}

// MarkComplete transitions the job to its terminal success state.
func (s *JobStore) MarkComplete(id string, collected int) {
	now := time.Now().UTC()
	s.Update(id, func(j *Job) {
		j.Status = JobComplete
		j.FinishedAt = &now
		j.Progress = 100
		j.Collected = collected
		j.CurrentSource = ""
	})
}

// MarkFailed transitions the job to its terminal failure state.
func (s *JobStore) MarkFailed(id string, err error) {
	now := time.Now().UTC()
	s.Update(id, func(j *Job) {
		j.Status = JobFailed
		j.FinishedAt = &now
		j.Err = err.Error()
	})
}

// List returns up to limit jobs, most recently queued first.
func (s *JobStore) List(limit int) []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QueuedAt.After(out[j].QueuedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func newJobID() string {
	var b [4]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
