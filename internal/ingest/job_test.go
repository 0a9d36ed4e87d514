package ingest_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yourorg/ingest-api/internal/ingest"
	"github.com/yourorg/ingest-api/internal/property"
	"github.com/yourorg/ingest-api/zillow"
)

const oaklandItem = `{
    "zpid": "Z1",
    "address": "1 Main St, Oakland, CA 94612",
    "price": 500000,
    "bedrooms": 2,
    "bathrooms": 1.5,
    "homeType": "SINGLE_FAMILY",
    "statusType": "ForSale"
}`

func item(t *testing.T, payload string) zillow.RawListing {
	t.Helper()
	var raw zillow.RawListing
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}
	return raw
}

// pageStep is one scripted fetch response.
type pageStep struct {
	page zillow.SearchPage
	err  error
}

type fakeFetcher struct {
	mu    sync.Mutex
	steps map[string][]pageStep
	calls map[string][]int // location -> requested page numbers
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{steps: map[string][]pageStep{}, calls: map[string][]int{}}
}

func (f *fakeFetcher) add(location string, step pageStep) {
	f.steps[location] = append(f.steps[location], step)
}

func (f *fakeFetcher) SearchForSale(_ context.Context, q zillow.SearchQuery) (zillow.SearchPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[q.Location] = append(f.calls[q.Location], q.Page)
	steps := f.steps[q.Location]
	if len(steps) == 0 {
		return zillow.SearchPage{}, fmt.Errorf("unexpected fetch for %q page %d", q.Location, q.Page)
	}
	step := steps[0]
	f.steps[q.Location] = steps[1:]
	return step.page, step.err
}

type fakeUpserter struct {
	mu      sync.Mutex
	rows    map[string]property.Persistable
	batches [][]property.Persistable
	err     error
}

func newFakeUpserter() *fakeUpserter {
	return &fakeUpserter{rows: map[string]property.Persistable{}}
}

func (u *fakeUpserter) UpsertProperties(_ context.Context, records []property.Persistable) (int, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.err != nil {
		return 0, u.err
	}
	u.batches = append(u.batches, records)
	for _, rec := range records {
		u.rows[rec.ExternalID] = rec
	}
	return len(records), nil
}

func newJob(f ingest.Fetcher, u ingest.Upserter, locations ...string) *ingest.Job {
	return &ingest.Job{
		Client: f,
		Store:  u,
		Logger: log.New(io.Discard, "", 0),
		Config: ingest.Config{
			Locations: locations,
			Delay:     time.Millisecond,
		},
	}
}

func TestRunOnce_EndToEnd(t *testing.T) {
	f := newFakeFetcher()
	f.add("Oakland, CA", pageStep{page: zillow.SearchPage{
		Items:       []zillow.RawListing{item(t, oaklandItem)},
		HasNextPage: false,
	}})
	u := newFakeUpserter()

	sum, err := newJob(f, u, "Oakland, CA").RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}

	want := ingest.Totals{Attempted: 1, Transformed: 1, InsertedOrUpdated: 1, Skipped: 0}
	if sum.Totals != want {
		t.Errorf("totals = %+v, want %+v", sum.Totals, want)
	}
	if sum.RunID == "" {
		t.Error("missing run id")
	}
	if sum.PropertyTypeCounts[property.TypeSingleFamily] != 1 {
		t.Errorf("type counts = %v, want single_family=1", sum.PropertyTypeCounts)
	}

	rec, ok := u.rows["Z1"]
	if !ok {
		t.Fatalf("record Z1 not upserted, rows = %v", u.rows)
	}
	if rec.PropertyType != property.TypeSingleFamily {
		t.Errorf("PropertyType = %q, want single_family", rec.PropertyType)
	}
	if rec.ListingStatus != property.StatusActive {
		t.Errorf("ListingStatus = %q, want active", rec.ListingStatus)
	}
	if rec.ZipCode != "94612" {
		t.Errorf("ZipCode = %q, want 94612", rec.ZipCode)
	}
	if rec.UpdatedAt.IsZero() {
		t.Error("UpdatedAt not stamped")
	}
}

func TestRunOnce_RateLimitRetriesSamePage(t *testing.T) {
	f := newFakeFetcher()
	f.add("Oakland, CA", pageStep{err: zillow.ErrRateLimited})
	f.add("Oakland, CA", pageStep{page: zillow.SearchPage{
		Items: []zillow.RawListing{item(t, oaklandItem)},
	}})
	u := newFakeUpserter()

	sum, err := newJob(f, u, "Oakland, CA").RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}

	if got := f.calls["Oakland, CA"]; len(got) != 2 || got[0] != 1 || got[1] != 1 {
		t.Errorf("fetched pages %v, want [1 1] (same page retried)", got)
	}
	// Counted toward attempted exactly once, and never as an error.
	if sum.Totals.Attempted != 1 {
		t.Errorf("attempted = %d, want 1", sum.Totals.Attempted)
	}
	if len(sum.PerLocation[0].Errors) != 0 {
		t.Errorf("errors = %v, want none", sum.PerLocation[0].Errors)
	}
}

func TestRunOnce_FailureIsolation(t *testing.T) {
	f := newFakeFetcher()
	for _, loc := range []string{"Oakland, CA", "Denver, CO"} {
		f.add(loc, pageStep{page: zillow.SearchPage{
			Items: []zillow.RawListing{item(t, oaklandItem)},
		}})
	}
	f.add("Austin, TX", pageStep{err: &zillow.StatusError{Code: 500, Body: "boom"}})
	u := newFakeUpserter()

	sum, err := newJob(f, u, "Oakland, CA", "Austin, TX", "Denver, CO").RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}

	if len(sum.PerLocation) != 3 {
		t.Fatalf("perLocation entries = %d, want 3", len(sum.PerLocation))
	}
	first, second, third := sum.PerLocation[0], sum.PerLocation[1], sum.PerLocation[2]
	if first.InsertedOrUpdated != 1 || len(first.Errors) != 0 {
		t.Errorf("first location = %+v, want clean success", first)
	}
	if !second.Aborted || len(second.Errors) == 0 {
		t.Errorf("second location = %+v, want aborted with errors", second)
	}
	if third.InsertedOrUpdated != 1 || len(third.Errors) != 0 {
		t.Errorf("third location = %+v, want clean success", third)
	}
	if !sum.HasErrors() {
		t.Error("HasErrors() = false, want true")
	}
}

func TestRunOnce_MapperAndValidationAccounting(t *testing.T) {
	f := newFakeFetcher()
	f.add("Oakland, CA", pageStep{page: zillow.SearchPage{
		Items: []zillow.RawListing{
			item(t, oaklandItem),
			item(t, `{"address":"2 Elm Ave, Oakland, CA 94612"}`),                           // no id: unmapped
			item(t, `{"zpid":"Z9","address":"3 Elm Ave, Oakland, CA 94612","bedrooms":60}`), // fails validation
		},
	}})
	u := newFakeUpserter()

	sum, err := newJob(f, u, "Oakland, CA").RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}

	loc := sum.PerLocation[0]
	if loc.Attempted != 3 {
		t.Errorf("attempted = %d, want 3 (raw item count)", loc.Attempted)
	}
	if loc.Unmapped != 1 {
		t.Errorf("unmapped = %d, want 1", loc.Unmapped)
	}
	if loc.Transformed != 1 || loc.Skipped != 1 {
		t.Errorf("transformed/skipped = %d/%d, want 1/1", loc.Transformed, loc.Skipped)
	}
	if len(loc.Errors) != 1 || !strings.Contains(loc.Errors[0], "bedrooms") {
		t.Errorf("errors = %v, want one bedrooms rejection", loc.Errors)
	}
	if _, ok := u.rows["Z9"]; ok {
		t.Error("rejected record Z9 reached the store")
	}
}

func TestRunOnce_UpsertFailureRecordedNotFatal(t *testing.T) {
	f := newFakeFetcher()
	f.add("Oakland, CA", pageStep{page: zillow.SearchPage{
		Items: []zillow.RawListing{item(t, oaklandItem)},
	}})
	f.add("Denver, CO", pageStep{page: zillow.SearchPage{
		Items: []zillow.RawListing{item(t, oaklandItem)},
	}})
	u := newFakeUpserter()
	u.err = errors.New("connection refused")

	sum, err := newJob(f, u, "Oakland, CA", "Denver, CO").RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}

	loc := sum.PerLocation[0]
	if loc.InsertedOrUpdated != 0 {
		t.Errorf("insertedOrUpdated = %d, want 0", loc.InsertedOrUpdated)
	}
	if len(loc.Errors) != 1 {
		t.Fatalf("errors = %v, want one", loc.Errors)
	}
	// Diagnosability: the error carries the property-type breakdown.
	if !strings.Contains(loc.Errors[0], "single_family=1") || !strings.Contains(loc.Errors[0], "connection refused") {
		t.Errorf("upsert error = %q, want type breakdown and cause", loc.Errors[0])
	}
	// The run still reached the second location.
	if len(sum.PerLocation) != 2 {
		t.Errorf("perLocation = %d entries, want 2", len(sum.PerLocation))
	}
	// Transformed counts are unaffected by the write failure.
	if sum.Totals.Transformed != 2 {
		t.Errorf("transformed = %d, want 2", sum.Totals.Transformed)
	}
}

func TestRunOnce_Pagination(t *testing.T) {
	f := newFakeFetcher()
	f.add("Oakland, CA", pageStep{page: zillow.SearchPage{
		Items:       []zillow.RawListing{item(t, oaklandItem)},
		HasNextPage: true,
	}})
	f.add("Oakland, CA", pageStep{page: zillow.SearchPage{
		Items: []zillow.RawListing{item(t, `{"zpid":"Z2","address":"2 Elm Ave, Oakland, CA 94612"}`)},
	}})
	u := newFakeUpserter()

	sum, err := newJob(f, u, "Oakland, CA").RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if got := f.calls["Oakland, CA"]; len(got) != 2 || got[1] != 2 {
		t.Errorf("fetched pages %v, want [1 2]", got)
	}
	if sum.PerLocation[0].Pages != 2 {
		t.Errorf("pages = %d, want 2", sum.PerLocation[0].Pages)
	}
	if len(u.rows) != 2 {
		t.Errorf("rows = %d, want 2", len(u.rows))
	}
}

func TestRunOnce_MaxPagesCap(t *testing.T) {
	f := newFakeFetcher()
	for i := 0; i < 2; i++ {
		f.add("Oakland, CA", pageStep{page: zillow.SearchPage{
			Items:       []zillow.RawListing{item(t, oaklandItem)},
			HasNextPage: true,
		}})
	}
	u := newFakeUpserter()

	job := newJob(f, u, "Oakland, CA")
	job.Config.MaxPages = 2
	if _, err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if got := f.calls["Oakland, CA"]; len(got) != 2 {
		t.Errorf("fetch calls = %v, want exactly 2 (maxPages cap)", got)
	}
}

// Re-running with identical inputs must overwrite, not duplicate.
func TestRunOnce_Idempotent(t *testing.T) {
	u := newFakeUpserter()
	for i := 0; i < 2; i++ {
		f := newFakeFetcher()
		f.add("Oakland, CA", pageStep{page: zillow.SearchPage{
			Items: []zillow.RawListing{item(t, oaklandItem)},
		}})
		if _, err := newJob(f, u, "Oakland, CA").RunOnce(context.Background()); err != nil {
			t.Fatalf("run %d error: %v", i, err)
		}
	}
	if len(u.rows) != 1 {
		t.Errorf("rows = %d, want 1 (overwrite on conflict)", len(u.rows))
	}
	if u.rows["Z1"].Price != 500000 {
		t.Errorf("Price = %d, want 500000", u.rows["Z1"].Price)
	}
}

func TestRunOnce_HardClampBeforeInsert(t *testing.T) {
	f := newFakeFetcher()
	f.add("Oakland, CA", pageStep{page: zillow.SearchPage{
		Items: []zillow.RawListing{item(t, `{"zpid":"Z30","address":"4 Elm Ave, Oakland, CA 94612","bedrooms":30}`)},
	}})
	u := newFakeUpserter()

	if _, err := newJob(f, u, "Oakland, CA").RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce error: %v", err)
	}
	if got := u.rows["Z30"].Bedrooms; got != 20 {
		t.Errorf("Bedrooms = %d, want hard-clamped 20", got)
	}
}

func TestRunOnce_ConfigValidation(t *testing.T) {
	u := newFakeUpserter()
	j := &ingest.Job{Client: newFakeFetcher(), Store: u}
	if _, err := j.RunOnce(context.Background()); err == nil {
		t.Error("RunOnce without locations should fail")
	}
	j = &ingest.Job{Store: u, Config: ingest.Config{Locations: []string{"x"}}}
	if _, err := j.RunOnce(context.Background()); err == nil {
		t.Error("RunOnce without client should fail")
	}
}

func TestRunLocation(t *testing.T) {
	f := newFakeFetcher()
	f.add("Oakland, CA", pageStep{page: zillow.SearchPage{
		Items: []zillow.RawListing{item(t, oaklandItem)},
	}})
	u := newFakeUpserter()

	job := newJob(f, u) // no configured locations needed
	ls, err := job.RunLocation(context.Background(), "Oakland, CA")
	if err != nil {
		t.Fatalf("RunLocation error: %v", err)
	}
	if ls.InsertedOrUpdated != 1 {
		t.Errorf("insertedOrUpdated = %d, want 1", ls.InsertedOrUpdated)
	}
	if _, err := job.RunLocation(context.Background(), "  "); err == nil {
		t.Error("RunLocation with empty location should fail")
	}
}
