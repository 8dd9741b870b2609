package jobs

import (
	"fmt"
	"sync"
	"time"
)

// Status is the lifecycle state of a crawl job
type Status string

const (
	// StatusPending marks a job that has been created but not started
	StatusPending Status = "pending"
	// StatusRunning marks a job whose crawl is in progress
	StatusRunning Status = "running"
	// StatusCompleted marks a job that finished, possibly with partial results
	StatusCompleted Status = "completed"
	// StatusFailed marks a job whose crawl errored or panicked
	StatusFailed Status = "failed"
)

// Job is the state of one background crawl run.
type Job struct {
	ID              string     `json:"task_id"`
	Status          Status     `json:"status"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time,omitempty"`
	ProductsScraped int        `json:"products_scraped"`
	Error           string     `json:"error,omitempty"`
}

// Store is a concurrency-safe keyed job registry. It is injected into the
// control service and lives for the service's lifetime.
type Store interface {
	// Create registers a new job
	Create(job Job) error

	// Get returns a job by id
	Get(id string) (Job, bool)

	// Update applies fn to the stored job under the store's lock
	Update(id string, fn func(*Job)) error
}

// memoryStore is the in-process Store implementation
type memoryStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

// NewMemoryStore creates an empty in-memory job store
func NewMemoryStore() Store {
	return &memoryStore{
		jobs: make(map[string]Job),
	}
}

func (s *memoryStore) Create(job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *memoryStore) Get(id string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	return job, ok
}

func (s *memoryStore) Update(id string, fn func(*Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s not found", id)
	}
	fn(&job)
	s.jobs[id] = job
	return nil
}
