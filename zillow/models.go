package zillow

import (
	"encoding/json"
	"math"
)

// stringNumber accepts string or number JSON and stores as string
type stringNumber string

func (s *stringNumber) UnmarshalJSON(b []byte) error {
	// empty/null -> empty string
	if string(b) == "null" {
		*s = ""
		return nil
	}
	// If already a quoted string
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*s = stringNumber(str)
		return nil
	}
	// Try as number, keep textual form
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*s = stringNumber(num.String())
	return nil
}

// flexAddress accepts either a combined address string or a split object,
// depending on the upstream API version.
type flexAddress struct {
	OneLine string
	Street  string
	City    string
	State   string
	Zipcode string
}

func (a *flexAddress) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &a.OneLine)
	}
	var obj struct {
		StreetAddress string `json:"streetAddress"`
		City          string `json:"city"`
		State         string `json:"state"`
		Zipcode       string `json:"zipcode"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	a.Street = obj.StreetAddress
	a.City = obj.City
	a.State = obj.State
	a.Zipcode = obj.Zipcode
	return nil
}

// RawListing is one search-result item from the upstream API. Field names
// drift across API versions, so both variants are carried where they exist
// and the mapper picks whichever is populated.
type RawListing struct {
	ZPID      stringNumber `json:"zpid"`
	ID        stringNumber `json:"id"`
	ListingID stringNumber `json:"listingId"`

	Address        flexAddress `json:"address"`
	AddressStreet  string      `json:"addressStreet"`
	AddressCity    string      `json:"addressCity"`
	AddressState   string      `json:"addressState"`
	AddressZipcode string      `json:"addressZipcode"`

	Price        float64 `json:"price"`
	Bedrooms     float64 `json:"bedrooms"`
	Bathrooms    float64 `json:"bathrooms"`
	LivingArea   float64 `json:"livingArea"`
	LotAreaValue float64 `json:"lotAreaValue"`
	LotAreaUnit  string  `json:"lotAreaUnit"`
	YearBuilt    int     `json:"yearBuilt"`

	HomeType     string `json:"homeType"`
	PropertyType string `json:"propertyType"`

	ListingStatus string `json:"listingStatus"`
	StatusType    string `json:"statusType"`
	StatusText    string `json:"statusText"`

	ImgSrc         string `json:"imgSrc"`
	CarouselPhotos []struct {
		URL string `json:"url"`
	} `json:"carouselPhotos"`
	Photos []struct {
		URL string `json:"url"`
	} `json:"photos"`

	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// SearchPage is one page of search results plus the continuation signal.
type SearchPage struct {
	Items       []RawListing
	HasNextPage bool
}

// searchEnvelope covers the known top-level payload shapes. Listing items
// appear under props, results, or data.results depending on API version.
type searchEnvelope struct {
	Props   []RawListing `json:"props"`
	Results []RawListing `json:"results"`
	Data    struct {
		Results []RawListing `json:"results"`
	} `json:"data"`

	HasNextPage *bool `json:"hasNextPage"`
	TotalPages  int   `json:"totalPages"`
	Pagination  struct {
		TotalPages int `json:"totalPages"`
	} `json:"pagination"`
	TotalResultCount int `json:"totalResultCount"`
}

// decodeSearchPayload probes the known envelope shapes in priority order and
// derives the continuation flag. When the payload carries no authoritative
// signal, a full page is read as "probably more", trading one possible empty
// fetch at an exact page boundary against the risk of under-fetching.
func decodeSearchPayload(raw []byte, page, pageSize int) (SearchPage, error) {
	var env searchEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return SearchPage{}, err
	}

	items := env.Props
	if len(items) == 0 {
		items = env.Results
	}
	if len(items) == 0 {
		items = env.Data.Results
	}

	out := SearchPage{Items: items}
	switch {
	case env.HasNextPage != nil:
		out.HasNextPage = *env.HasNextPage
	case env.TotalPages > 0:
		out.HasNextPage = page < env.TotalPages
	case env.Pagination.TotalPages > 0:
		out.HasNextPage = page < env.Pagination.TotalPages
	case env.TotalResultCount > 0 && pageSize > 0:
		out.HasNextPage = page < int(math.Ceil(float64(env.TotalResultCount)/float64(pageSize)))
	default:
		out.HasNextPage = pageSize > 0 && len(items) >= pageSize
	}
	return out, nil
}
