package utils

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// WorkerPool runs jobs on a bounded number of goroutines and spaces job
// starts by at least rateLimit.
type WorkerPool struct {
	group   *errgroup.Group
	limiter *rate.Limiter
	ctx     context.Context
}

// NewWorkerPool creates a WorkerPool with the given concurrency and minimum
// interval between job starts. A zero interval disables spacing.
func NewWorkerPool(ctx context.Context, maxWorkers int, rateLimit time.Duration) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	g := &errgroup.Group{}
	g.SetLimit(maxWorkers)

	limit := rate.Inf
	if rateLimit > 0 {
		limit = rate.Every(rateLimit)
	}
	return &WorkerPool{
		group:   g,
		limiter: rate.NewLimiter(limit, 1),
		ctx:     ctx,
	}
}

// Submit enqueues a job, blocking while all workers are busy. Jobs are
// skipped once the pool context is done.
func (wp *WorkerPool) Submit(job func(ctx context.Context)) {
	wp.group.Go(func() error {
		if err := wp.limiter.Wait(wp.ctx); err != nil {
			return nil
		}
		job(wp.ctx)
		return nil
	})
}

// Wait blocks until all submitted jobs have completed.
func (wp *WorkerPool) Wait() {
	_ = wp.group.Wait()
}

// URLSet is a thread-safe set for tracking visited URLs.
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

// Size returns the number of unique URLs tracked.
func (s *URLSet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
