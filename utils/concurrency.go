package utils

import (
	"context"
	"sync"

	"golang.org/x/time/rate"
)

// WorkerPool runs jobs on a bounded number of goroutines. An optional rate
// limiter paces job starts so that bursts of submissions do not hammer the
// sites being fetched.
type WorkerPool struct {
	semaphore chan struct{}
	limiter   *rate.Limiter
	wg        sync.WaitGroup
}

// NewWorkerPool creates a pool with the given concurrency cap. startsPerSec
// limits how many jobs may begin per second; zero means unpaced.
func NewWorkerPool(maxWorkers int, startsPerSec float64) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	var limiter *rate.Limiter
	if startsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(startsPerSec), 1)
	}
	return &WorkerPool{
		semaphore: make(chan struct{}, maxWorkers),
		limiter:   limiter,
	}
}

// Submit enqueues a job for execution. It blocks while the pool is at its
// concurrency cap.
func (wp *WorkerPool) Submit(job func()) {
	wp.wg.Add(1)
	wp.semaphore <- struct{}{}

	go func() {
		defer wp.wg.Done()
		defer func() { <-wp.semaphore }()

		if wp.limiter != nil {
			_ = wp.limiter.Wait(context.Background())
		}
		job()
	}()
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

// URLSet is a thread-safe set for tracking visited listing URLs.
type URLSet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewURLSet creates an empty URLSet.
func NewURLSet() *URLSet {
	return &URLSet{seen: make(map[string]struct{})}
}

// Add returns true if the URL was newly added, false if already present.
func (s *URLSet) Add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[url]; exists {
		return false
	}
	s.seen[url] = struct{}{}
	return true
}

// Contains returns true if the URL has already been visited.
func (s *URLSet) Contains(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[url]
	return exists
}

// Size returns the number of unique URLs tracked.
func (s *URLSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
