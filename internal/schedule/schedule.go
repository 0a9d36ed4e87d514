// Package schedule wires up the cron job that periodically re-runs the
// full ingestion pass.
package schedule

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"github.com/yourorg/ingest-api/internal/ingest"
)

type Scheduler struct {
	cron *cron.Cron
	job  *ingest.Job
	spec string // cron spec, e.g. "@every 6h"
}

// New creates a Scheduler that fires every intervalHours hours.
func New(job *ingest.Job, intervalHours int) *Scheduler {
	if intervalHours < 1 {
		intervalHours = 6
	}
	return &Scheduler{
		cron: cron.New(),
		job:  job,
		spec: fmt.Sprintf("@every %dh", intervalHours),
	}
}

// Start registers the job and starts the scheduler. Also runs one ingestion
// immediately so the table is populated without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runIngest(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	log.Printf("[scheduler] cron started, spec: %s", s.spec)

	go s.runIngest(ctx)
	return nil
}

// Stop gracefully shuts down the scheduler.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	log.Println("[scheduler] cron stopped")
}

func (s *Scheduler) runIngest(ctx context.Context) {
	sum, err := s.job.RunOnce(ctx)
	if err != nil {
		log.Printf("[scheduler] ingest run error: %v", err)
		return
	}
	if sum.HasErrors() {
		log.Printf("[scheduler] ingest run %s finished with errors (partial success)", sum.RunID)
	}
}
