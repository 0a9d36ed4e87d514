// Package transform applies business-rule validation to normalized records.
// Structural parsing lives in the mapper; every domain rule lives here.
package transform

import (
	"fmt"

	"github.com/yourorg/ingest-api/internal/property"
)

// Bedrooms and bathrooms outside these bounds mean corrupt source data
// rather than an unusual listing; such records are skipped, not clamped.
const (
	maxSaneBedrooms  = 50
	maxSaneBathrooms = 50
)

// Result is the outcome for one record. When OK is false, Errors holds
// human-readable reasons; nothing here ever panics, so one bad record
// never aborts a batch.
type Result struct {
	OK     bool
	Record property.Record
	Errors []string
}

// Apply validates rec and returns it persistence-ready. index is the
// record's position in its batch, used in error messages.
func Apply(rec property.Record, index int) Result {
	var errs []string
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf("record %d: ", index)+fmt.Sprintf(format, args...))
	}

	if rec.ExternalID == "" {
		fail("missing external id")
	}
	if rec.City == "" || rec.State == "" {
		fail("missing city/state (city=%q state=%q)", rec.City, rec.State)
	}
	if rec.Price < 0 {
		fail("price must be >= 0, got %d", rec.Price)
	}
	if rec.Bedrooms < 0 || rec.Bedrooms > maxSaneBedrooms {
		fail("bedrooms out of range: %d", rec.Bedrooms)
	}
	if rec.Bathrooms < 0 || rec.Bathrooms > maxSaneBathrooms {
		fail("bathrooms out of range: %g", rec.Bathrooms)
	}

	if len(errs) > 0 {
		return Result{Errors: errs}
	}

	// Re-normalize the enums independently of the mapper so a mapper
	// regression cannot push an open value into the datastore.
	if !rec.PropertyType.Valid() {
		rec.PropertyType = property.ParseType(string(rec.PropertyType))
	}
	switch rec.ListingStatus {
	case property.StatusActive, property.StatusSold, property.StatusPending:
	default:
		rec.ListingStatus = property.ParseStatus(string(rec.ListingStatus))
	}
	rec.Price = property.ClampNumeric(rec.Price)
	rec.Bathrooms = property.ClampBathrooms(rec.Bathrooms)

	return Result{OK: true, Record: rec}
}
