// Package refresh runs on-demand single-location ingestion requests from
// the HTTP surface through a small deduplicating worker pool.
package refresh

import (
	"context"
	"sync"
	"time"
)

type Job struct {
	Location string
}

type Refresher struct {
	ch    chan Job
	inFly sync.Map // location -> struct{}
	Do    func(ctx context.Context, j Job)
}

func New(capacity int, workerCount int, do func(ctx context.Context, j Job)) *Refresher {
	if capacity <= 0 {
		capacity = 64
	}
	if workerCount <= 0 {
		workerCount = 1
	}
	r := &Refresher{ch: make(chan Job, capacity), Do: do}
	for i := 0; i < workerCount; i++ {
		go r.worker()
	}
	return r
}

// Enqueue schedules a location unless one with the same name is already
// queued or running. Returns false when dropped (duplicate or saturated).
func (r *Refresher) Enqueue(j Job) bool {
	if _, exists := r.inFly.LoadOrStore(j.Location, struct{}{}); exists {
		return false
	}
	select {
	case r.ch <- j:
		return true
	default:
		r.inFly.Delete(j.Location)
		return false
	}
}

func (r *Refresher) worker() {
	for j := range r.ch {
		// A single location at the default page cap stays well inside
		// this window even with rate-limit backoffs.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		func() {
			defer func() {
				r.inFly.Delete(j.Location)
				cancel()
			}()
			if r.Do != nil {
				r.Do(ctx, j)
			}
		}()
	}
}
