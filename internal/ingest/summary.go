package ingest

import (
	"time"

	"github.com/yourorg/ingest-api/internal/property"
)

// Totals aggregates counters across every location in a run.
type Totals struct {
	Attempted         int `json:"attempted"`
	Transformed       int `json:"transformed"`
	InsertedOrUpdated int `json:"inserted_or_updated"`
	Skipped           int `json:"skipped"`
}

// LocationSummary is the per-location slice of a run. Unmapped makes the
// gap between attempted and transformed+skipped explicit: items the mapper
// dropped before they ever reached the transformer.
type LocationSummary struct {
	Location          string   `json:"location"`
	Pages             int      `json:"pages"`
	Attempted         int      `json:"attempted"`
	Unmapped          int      `json:"unmapped"`
	Transformed       int      `json:"transformed"`
	InsertedOrUpdated int      `json:"inserted_or_updated"`
	Skipped           int      `json:"skipped"`
	Errors            []string `json:"errors,omitempty"`
	Aborted           bool     `json:"aborted,omitempty"`
}

// Summary is the aggregate result of one ingestion run. It is built
// incrementally and returned to the caller; it is never persisted.
type Summary struct {
	RunID              string                `json:"run_id"`
	StartedAt          time.Time             `json:"started_at"`
	FinishedAt         time.Time             `json:"finished_at"`
	Totals             Totals                `json:"totals"`
	PerLocation        []LocationSummary     `json:"per_location"`
	PropertyTypeCounts map[property.Type]int `json:"property_type_counts"`
}

// HasErrors reports whether any location recorded at least one error.
// Callers embedding the pipeline in a scheduled job should treat this as
// partial success, not failure.
func (s *Summary) HasErrors() bool {
	for _, loc := range s.PerLocation {
		if len(loc.Errors) > 0 {
			return true
		}
	}
	return false
}

func (s *Summary) add(loc LocationSummary) {
	s.PerLocation = append(s.PerLocation, loc)
	s.Totals.Attempted += loc.Attempted
	s.Totals.Transformed += loc.Transformed
	s.Totals.InsertedOrUpdated += loc.InsertedOrUpdated
	s.Totals.Skipped += loc.Skipped
}
