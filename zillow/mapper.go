package zillow

import (
	"math"
	"strings"

	"github.com/yourorg/ingest-api/internal/canon"
	"github.com/yourorg/ingest-api/internal/property"
)

const sqftPerAcre = 43560

// MapSearchItem normalizes one raw search item into the canonical record.
// It is total: any unresolvable item maps to nil, never a panic. The
// locationHint is the search query string the item came from ("City, ST"),
// used to back-fill a city/state the payload itself lacks.
func MapSearchItem(raw RawListing, locationHint string) *property.Record {
	id := firstNonEmpty(string(raw.ZPID), string(raw.ID), string(raw.ListingID))
	if id == "" {
		return nil
	}

	street, city, state, zip := resolveAddress(raw, locationHint)
	if city == "" || state == "" {
		// Not a validation failure: without a city and state the record
		// cannot be normalized at all.
		return nil
	}
	if zip == "" {
		zip = canon.DefaultZip(city, state)
	}

	rec := &property.Record{
		ExternalID:    id,
		Address:       street,
		City:          city,
		State:         state,
		ZipCode:       zip,
		Price:         property.ClampNumeric(roundToInt(raw.Price)),
		Bedrooms:      maxInt(roundToInt(raw.Bedrooms), 0),
		Bathrooms:     property.ClampBathrooms(raw.Bathrooms),
		PropertyType:  property.ParseType(firstNonEmpty(raw.HomeType, raw.PropertyType)),
		ListingStatus: property.ParseStatus(raw.ListingStatus + " " + raw.StatusType + " " + raw.StatusText),
		Images:        resolveImages(raw),
		Latitude:      raw.Latitude,
		Longitude:     raw.Longitude,
	}

	if raw.LivingArea > 0 {
		v := property.ClampNumeric(roundToInt(raw.LivingArea))
		rec.SquareFeet = &v
	}
	if raw.LotAreaValue > 0 {
		lot := raw.LotAreaValue
		if strings.Contains(strings.ToLower(raw.LotAreaUnit), "acre") {
			lot *= sqftPerAcre
		}
		v := property.ClampNumeric(roundToInt(lot))
		rec.LotSize = &v
	}
	if raw.YearBuilt > 0 {
		y := raw.YearBuilt
		rec.YearBuilt = &y
	}
	return rec
}

// resolveAddress prefers the combined one-line address, then split fields
// under either naming variant, then the location hint for city/state.
func resolveAddress(raw RawListing, locationHint string) (street, city, state, zip string) {
	if raw.Address.OneLine != "" {
		p := canon.ParseOneLine(raw.Address.OneLine)
		street, city, state, zip = p.Street, p.City, p.State, p.Zip
	} else {
		street = firstNonEmpty(raw.Address.Street, raw.AddressStreet)
		city = firstNonEmpty(raw.Address.City, raw.AddressCity)
		state = strings.ToUpper(firstNonEmpty(raw.Address.State, raw.AddressState))
		zip = canon.TrimZip(firstNonEmpty(raw.Address.Zipcode, raw.AddressZipcode))
	}

	if city == "" || state == "" {
		hintCity, hintState := canon.ParseLocationHint(locationHint)
		if city == "" {
			city = hintCity
		}
		if state == "" {
			state = hintState
		}
	}
	return street, city, state, canon.TrimZip(zip)
}

func resolveImages(raw RawListing) []string {
	var srcs []string
	switch {
	case len(raw.CarouselPhotos) > 0:
		for _, p := range raw.CarouselPhotos {
			srcs = append(srcs, p.URL)
		}
	case len(raw.Photos) > 0:
		for _, p := range raw.Photos {
			srcs = append(srcs, p.URL)
		}
	case raw.ImgSrc != "":
		srcs = []string{raw.ImgSrc}
	}

	out := make([]string, 0, len(srcs))
	for _, s := range srcs {
		if s == "" {
			continue
		}
		out = append(out, upgradePhotoURL(s))
	}
	return out
}

func roundToInt(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	// Clamp before converting: float→int overflow is implementation-defined
	// and would fold huge values to the minimum int.
	if v >= property.MaxNumeric {
		return property.MaxNumeric
	}
	if v <= -property.MaxNumeric {
		return -property.MaxNumeric
	}
	return int(math.Round(v))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func maxInt(v, def int) int {
	if v > def {
		return v
	}
	return def
}
