// Package property defines the canonical listing shapes shared by the
// mapper, transformer and store.
package property

import (
	"math"
	"strings"
	"time"
)

// MaxNumeric is the ceiling for price, square footage and lot size.
// Values above it are clamped, never rejected; the properties table
// stores these as 32-bit integers.
const MaxNumeric = 2147483647

// MaxBathrooms caps the normalized bathroom count after rounding.
const MaxBathrooms = 9.9

// Type is the closed set of property types the datastore accepts.
type Type string

const (
	TypeSingleFamily Type = "single_family"
	TypeCondo        Type = "condo"
	TypeTownhome     Type = "townhome"
	TypeMultiFamily  Type = "multi_family"
	TypeManufactured Type = "manufactured"
	TypeLand         Type = "land"
	TypeOther        Type = "other"
)

var typeAliases = map[string]Type{
	"single_family":     TypeSingleFamily,
	"singlefamily":      TypeSingleFamily,
	"single family":     TypeSingleFamily,
	"house":             TypeSingleFamily,
	"houses":            TypeSingleFamily,
	"residential":       TypeSingleFamily,
	"condo":             TypeCondo,
	"condos":            TypeCondo,
	"condominium":       TypeCondo,
	"apartment":         TypeCondo,
	"apartments":        TypeCondo,
	"townhome":          TypeTownhome,
	"townhomes":         TypeTownhome,
	"townhouse":         TypeTownhome,
	"townhouses":        TypeTownhome,
	"multi_family":      TypeMultiFamily,
	"multifamily":       TypeMultiFamily,
	"multi family":      TypeMultiFamily,
	"duplex":            TypeMultiFamily,
	"triplex":           TypeMultiFamily,
	"manufactured":      TypeManufactured,
	"mobile":            TypeManufactured,
	"mobile_home":       TypeManufactured,
	"lot":               TypeLand,
	"lots":              TypeLand,
	"land":              TypeLand,
	"vacant_land":       TypeLand,
	"home_type_unknown": TypeOther,
	"other":             TypeOther,
}

// ParseType maps a raw source type string onto the closed enum.
// Unknown or empty values come back as TypeOther.
func ParseType(raw string) Type {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.Trim(key, "\"")
	if t, ok := typeAliases[key]; ok {
		return t
	}
	return TypeOther
}

// Valid reports whether t is a member of the closed enum.
func (t Type) Valid() bool {
	switch t {
	case TypeSingleFamily, TypeCondo, TypeTownhome, TypeMultiFamily, TypeManufactured, TypeLand, TypeOther:
		return true
	}
	return false
}

// Status is the normalized listing status.
type Status string

const (
	StatusActive  Status = "active"
	StatusSold    Status = "sold"
	StatusPending Status = "pending"
)

// ParseStatus derives the listing status by keyword containment on the raw
// status / broker-status text. Anything unrecognized is treated as active.
func ParseStatus(raw string) Status {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "sold"):
		return StatusSold
	case strings.Contains(s, "pending"), strings.Contains(s, "contingent"):
		return StatusPending
	default:
		return StatusActive
	}
}

// Record is the canonical pre-validation listing shape produced by the
// mapper. Pointer fields are absent when the source did not provide them.
type Record struct {
	ExternalID string
	Address    string
	City       string
	State      string
	ZipCode    string

	Price      int
	Bedrooms   int
	Bathrooms  float64
	SquareFeet *int
	LotSize    *int
	YearBuilt  *int

	PropertyType  Type
	ListingStatus Status

	Images    []string
	Latitude  *float64
	Longitude *float64
}

// Persistable is a validated Record plus the write-time fields the store
// needs. Only this shape ever reaches the upsert.
type Persistable struct {
	Record
	UpdatedAt time.Time
}

// ClampNumeric bounds v into [0, MaxNumeric].
func ClampNumeric(v int) int {
	if v < 0 {
		return 0
	}
	if v > MaxNumeric {
		return MaxNumeric
	}
	return v
}

// ClampBathrooms rounds to one decimal place and caps at MaxBathrooms.
func ClampBathrooms(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	r := math.Round(v*10) / 10
	if r > MaxBathrooms {
		return MaxBathrooms
	}
	return r
}
