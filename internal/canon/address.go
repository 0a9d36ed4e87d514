// Package canon parses heterogeneous source address strings into
// street / city / state / zip parts and back-fills missing pieces.
package canon

import (
	"regexp"
	"strings"
)

var (
	reState = regexp.MustCompile(`\b([A-Za-z]{2})\b`)
	reZip   = regexp.MustCompile(`\b(\d{5})\b`)
)

// Parts is a decomposed postal address. Zip may be empty.
type Parts struct {
	Street string
	City   string
	State  string
	Zip    string
}

// Complete reports whether the parts are resolvable enough to identify a
// property. Zip is deliberately not required; see DefaultZip.
func (p Parts) Complete() bool {
	return p.City != "" && p.State != ""
}

// ParseOneLine splits a combined address string on commas and treats the
// last two segments as the city and the "state zip" tail. Leading segments
// form the street line.
func ParseOneLine(addr string) Parts {
	var p Parts
	segs := splitSegments(addr)
	switch {
	case len(segs) >= 3:
		p.Street = strings.Join(segs[:len(segs)-2], ", ")
		p.City = segs[len(segs)-2]
		p.State, p.Zip = parseStateZip(segs[len(segs)-1])
	case len(segs) == 2:
		p.Street = segs[0]
		// Tail may be "City" or "ST zip"; try the state/zip match first
		// and fall back to treating it as a bare city.
		if st, zip := parseStateZip(segs[1]); st != "" && len(collapseSpaces(segs[1])) <= 8 {
			p.State, p.Zip = st, zip
		} else {
			p.City = segs[1]
		}
	case len(segs) == 1:
		p.Street = segs[0]
	}
	if p.Street == "" {
		p.Street = collapseSpaces(addr)
	}
	return p
}

// ParseLocationHint extracts city and state from a search location string,
// assumed "City, ST" or similar with the state in the last segment.
func ParseLocationHint(location string) (city, state string) {
	segs := splitSegments(location)
	if len(segs) == 0 {
		return "", ""
	}
	if len(segs) == 1 {
		return segs[0], ""
	}
	city = segs[0]
	state, _ = parseStateZip(segs[len(segs)-1])
	return city, state
}

func parseStateZip(seg string) (state, zip string) {
	s := collapseSpaces(seg)
	if m := reZip.FindStringSubmatch(s); m != nil {
		zip = m[1]
		s = strings.TrimSpace(strings.Replace(s, m[1], "", 1))
	}
	if m := reState.FindStringSubmatch(s); m != nil {
		state = strings.ToUpper(m[1])
	} else if ab := stateAbbrev(strings.ToUpper(s)); len(ab) == 2 && ab != strings.ToUpper(s) {
		state = ab
	}
	return state, zip
}

func splitSegments(s string) []string {
	raw := strings.Split(s, ",")
	out := make([]string, 0, len(raw))
	for _, seg := range raw {
		seg = collapseSpaces(seg)
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TrimZip keeps the 5-digit prefix of a zip+4 code.
func TrimZip(z string) string {
	z = strings.TrimSpace(z)
	if len(z) >= 5 {
		return z[:5]
	}
	return z
}

// DefaultZip returns a representative zip code for well-known city/state
// pairs when the source record carries none. An empty return is not an
// error; records without a zip are still persistable.
func DefaultZip(city, state string) string {
	key := strings.ToLower(collapseSpaces(city)) + "|" + strings.ToUpper(strings.TrimSpace(state))
	return defaultZips[key]
}

var defaultZips = map[string]string{
	"oakland|CA":       "94612",
	"san francisco|CA": "94102",
	"berkeley|CA":      "94704",
	"san jose|CA":      "95113",
	"sacramento|CA":    "95814",
	"los angeles|CA":   "90012",
	"san diego|CA":     "92101",
	"portland|OR":      "97201",
	"seattle|WA":       "98101",
	"austin|TX":        "78701",
	"dallas|TX":        "75201",
	"houston|TX":       "77002",
	"denver|CO":        "80202",
	"phoenix|AZ":       "85003",
	"las vegas|NV":     "89101",
	"chicago|IL":       "60602",
	"atlanta|GA":       "30303",
	"miami|FL":         "33130",
	"boston|MA":        "02108",
	"new york|NY":      "10007",
}

func stateAbbrev(s string) string {
	m := map[string]string{
		"ALABAMA": "AL", "ALASKA": "AK", "ARIZONA": "AZ", "ARKANSAS": "AR", "CALIFORNIA": "CA", "COLORADO": "CO", "CONNECTICUT": "CT", "DELAWARE": "DE", "FLORIDA": "FL", "GEORGIA": "GA", "HAWAII": "HI", "IDAHO": "ID", "ILLINOIS": "IL", "INDIANA": "IN", "IOWA": "IA", "KANSAS": "KS", "KENTUCKY": "KY", "LOUISIANA": "LA", "MAINE": "ME", "MARYLAND": "MD", "MASSACHUSETTS": "MA", "MICHIGAN": "MI", "MINNESOTA": "MN", "MISSISSIPPI": "MS", "MISSOURI": "MO", "MONTANA": "MT", "NEBRASKA": "NE", "NEVADA": "NV", "NEW HAMPSHIRE": "NH", "NEW JERSEY": "NJ", "NEW MEXICO": "NM", "NEW YORK": "NY", "NORTH CAROLINA": "NC", "NORTH DAKOTA": "ND", "OHIO": "OH", "OKLAHOMA": "OK", "OREGON": "OR", "PENNSYLVANIA": "PA", "RHODE ISLAND": "RI", "SOUTH CAROLINA": "SC", "SOUTH DAKOTA": "SD", "TENNESSEE": "TN", "TEXAS": "TX", "UTAH": "UT", "VERMONT": "VT", "VIRGINIA": "VA", "WASHINGTON": "WA", "WEST VIRGINIA": "WV", "WISCONSIN": "WI", "WYOMING": "WY",
	}
	if v, ok := m[s]; ok {
		return v
	}
	return s
}
