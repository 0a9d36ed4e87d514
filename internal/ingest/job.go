// Package ingest drives the end-to-end ingestion run: location loop, page
// loop, mapping, validation and batched upserts, with per-location failure
// isolation.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/ingest-api/internal/events"
	"github.com/yourorg/ingest-api/internal/property"
	"github.com/yourorg/ingest-api/internal/transform"
	"github.com/yourorg/ingest-api/zillow"
)

// Insert-time ceilings, a schema-safety net independent of the
// transformer's validation bounds.
const (
	hardMaxBedrooms  = 20
	hardMaxBathrooms = 20.0

	maxBackoff = 60 * time.Second
)

// Fetcher is the source-client dependency; *zillow.Client satisfies it.
type Fetcher interface {
	SearchForSale(ctx context.Context, q zillow.SearchQuery) (zillow.SearchPage, error)
}

// Upserter is the datastore dependency; *store.Store satisfies it.
type Upserter interface {
	UpsertProperties(ctx context.Context, records []property.Persistable) (int, error)
}

type Config struct {
	Locations []string
	PageSize  int           // default 20
	MaxPages  int           // per location, default 5
	Delay     time.Duration // base rate-limit delay, default 1.25s
	Sort      string
	MinPrice  int
	MaxPrice  int
}

type Job struct {
	Client Fetcher
	Store  Upserter
	Pub    events.Publisher
	Logger *log.Logger
	Config Config

	mu   sync.Mutex
	last *Summary
}

func (j *Job) logf(format string, args ...any) {
	if j.Logger != nil {
		j.Logger.Printf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (j *Job) validate() error {
	if j == nil {
		return errors.New("nil ingest job")
	}
	if j.Client == nil {
		return errors.New("ingest job missing source client")
	}
	if j.Store == nil {
		return errors.New("ingest job missing store")
	}
	if len(j.Config.Locations) == 0 {
		return errors.New("ingest job requires at least one location")
	}
	return nil
}

// LastSummary returns the most recently completed run, or nil.
func (j *Job) LastSummary() *Summary {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.last
}

// RunOnce executes one full ingestion pass over every configured location.
// Data-level failures never escape: fetch errors, validation rejections and
// upsert errors are all captured into the summary, and one location's total
// failure never prevents the others from being processed. The returned error
// is only ever a configuration problem or context cancellation.
func (j *Job) RunOnce(ctx context.Context) (*Summary, error) {
	if err := j.validate(); err != nil {
		return nil, err
	}

	sum := &Summary{
		RunID:              uuid.NewString(),
		StartedAt:          time.Now().UTC(),
		PropertyTypeCounts: make(map[property.Type]int),
	}
	j.logf("[ingest] run %s starting (%d location(s))", sum.RunID, len(j.Config.Locations))

	for _, rawLoc := range j.Config.Locations {
		loc := strings.TrimSpace(rawLoc)
		if loc == "" {
			continue
		}
		if ctx.Err() != nil {
			return sum, ctx.Err()
		}
		sum.add(j.ingestLocation(ctx, loc, sum.PropertyTypeCounts))
	}

	sum.FinishedAt = time.Now().UTC()
	j.logf("[ingest] run %s done: attempted=%d transformed=%d upserted=%d skipped=%d",
		sum.RunID, sum.Totals.Attempted, sum.Totals.Transformed,
		sum.Totals.InsertedOrUpdated, sum.Totals.Skipped)

	j.mu.Lock()
	j.last = sum
	j.mu.Unlock()
	return sum, nil
}

// RunLocation ingests a single location outside a full run, for on-demand
// refreshes. Counters and errors come back in the LocationSummary.
func (j *Job) RunLocation(ctx context.Context, location string) (LocationSummary, error) {
	if j == nil || j.Client == nil || j.Store == nil {
		return LocationSummary{}, errors.New("ingest job not configured")
	}
	location = strings.TrimSpace(location)
	if location == "" {
		return LocationSummary{}, errors.New("empty location")
	}
	return j.ingestLocation(ctx, location, make(map[property.Type]int)), ctx.Err()
}

func (j *Job) ingestLocation(ctx context.Context, location string, typeCounts map[property.Type]int) LocationSummary {
	cfg := j.Config
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = 5
	}
	delay := cfg.Delay
	if delay <= 0 {
		delay = 1250 * time.Millisecond
	}

	ls := LocationSummary{Location: location}
	page := 1
	hasMore := true
	backoff := 2 * delay // doubles on consecutive 429s, resets on success

	for hasMore && page <= maxPages {
		if ctx.Err() != nil {
			ls.Errors = append(ls.Errors, fmt.Sprintf("page %d: %v", page, ctx.Err()))
			ls.Aborted = true
			break
		}

		sp, err := j.Client.SearchForSale(ctx, zillow.SearchQuery{
			Location: location,
			Page:     page,
			PageSize: pageSize,
			Sort:     cfg.Sort,
			MinPrice: cfg.MinPrice,
			MaxPrice: cfg.MaxPrice,
		})
		if errors.Is(err, zillow.ErrRateLimited) {
			// Back off and retry the same page; nothing is counted.
			j.logf("[ingest] %s page %d rate limited, backing off %s", location, page, backoff)
			if !sleepCtx(ctx, backoff) {
				ls.Errors = append(ls.Errors, fmt.Sprintf("page %d: %v", page, ctx.Err()))
				ls.Aborted = true
				return ls
			}
			backoff = nextBackoff(backoff)
			continue
		}
		if err != nil {
			ls.Errors = append(ls.Errors, fmt.Sprintf("page %d fetch: %v", page, err))
			ls.Aborted = true
			break
		}
		backoff = 2 * delay
		ls.Pages++

		// Attempted reflects API-returned volume, mapped or not, so the
		// mapper drop rate stays visible to operators.
		ls.Attempted += len(sp.Items)

		mapped := make([]property.Record, 0, len(sp.Items))
		for _, item := range sp.Items {
			if rec := zillow.MapSearchItem(item, location); rec != nil {
				mapped = append(mapped, *rec)
			} else {
				ls.Unmapped++
			}
		}

		if len(mapped) > 0 {
			batch := make([]property.Persistable, 0, len(mapped))
			now := time.Now().UTC()
			for i, rec := range mapped {
				res := transform.Apply(rec, i)
				if !res.OK {
					ls.Skipped++
					ls.Errors = append(ls.Errors, res.Errors...)
					continue
				}
				ls.Transformed++
				batch = append(batch, property.Persistable{
					Record:    clampForInsert(res.Record),
					UpdatedAt: now,
				})
			}

			if len(batch) > 0 {
				n, err := j.Store.UpsertProperties(ctx, batch)
				if err != nil {
					ls.Errors = append(ls.Errors, fmt.Sprintf(
						"page %d upsert of %d record(s) failed (%s): %v",
						page, len(batch), typeBreakdown(batch), err))
				} else {
					ls.InsertedOrUpdated += n
					for _, rec := range batch {
						typeCounts[rec.PropertyType]++
						if j.Pub != nil {
							j.Pub.PublishPropertyIngested(ctx, events.PropertyIngested{
								ExternalID: rec.ExternalID,
								City:       rec.City,
								State:      rec.State,
							})
						}
					}
				}
			}
		}

		hasMore = sp.HasNextPage
		page++
	}

	j.logf("[ingest] %s: pages=%d attempted=%d unmapped=%d transformed=%d upserted=%d skipped=%d errors=%d",
		location, ls.Pages, ls.Attempted, ls.Unmapped, ls.Transformed,
		ls.InsertedOrUpdated, ls.Skipped, len(ls.Errors))
	return ls
}

func clampForInsert(rec property.Record) property.Record {
	if rec.Bedrooms > hardMaxBedrooms {
		rec.Bedrooms = hardMaxBedrooms
	}
	if rec.Bathrooms > hardMaxBathrooms {
		rec.Bathrooms = hardMaxBathrooms
	}
	return rec
}

func typeBreakdown(batch []property.Persistable) string {
	counts := make(map[property.Type]int)
	for _, rec := range batch {
		counts[rec.PropertyType]++
	}
	keys := make([]string, 0, len(counts))
	for t := range counts {
		keys = append(keys, string(t))
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, counts[property.Type(k)]))
	}
	return strings.Join(parts, " ")
}

// nextBackoff doubles d and holds the result at maxBackoff.
func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
