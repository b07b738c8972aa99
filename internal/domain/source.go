package domain

import (
	"fmt"
	"strings"
)

// Source is one independently polled CHP communication center feed.
// Sources are loaded once at startup and never mutated.
type Source struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// DefaultSources is the full catalog of CHP communication centers, as
// exposed by the Traffic.aspx center dropdown.
func DefaultSources() []Source {
	return []Source{
		{Code: "BFCC", Name: "Bakersfield"},
		{Code: "BSCC", Name: "Barstow"},
		{Code: "BICC", Name: "Bishop"},
		{Code: "BCCC", Name: "Border"},
		{Code: "CCCC", Name: "Capitol"},
		{Code: "CHCC", Name: "Chico"},
		{Code: "ECCC", Name: "El Centro"},
		{Code: "FRCC", Name: "Fresno"},
		{Code: "GGCC", Name: "Golden Gate"},
		{Code: "HMCC", Name: "Humboldt"},
		{Code: "ICCC", Name: "Indio"},
		{Code: "INCC", Name: "Inland"},
		{Code: "LACC", Name: "Los Angeles"},
		{Code: "MRCC", Name: "Merced"},
		{Code: "MYCC", Name: "Monterey"},
		{Code: "OCCC", Name: "Orange County"},
		{Code: "RDCC", Name: "Redding"},
		{Code: "SACC", Name: "Sacramento"},
		{Code: "SLCC", Name: "San Luis Obispo"},
		{Code: "SKCCSTCC", Name: "Stockton"},
		{Code: "SUCC", Name: "Susanville"},
		{Code: "TKCC", Name: "Truckee"},
		{Code: "UKCC", Name: "Ukiah"},
		{Code: "VTCC", Name: "Ventura"},
		{Code: "YKCC", Name: "Yreka"},
	}
}

// ParseSources parses a comma-separated "CODE:Name" list, e.g.
// "BCCC:Border,LACC:Los Angeles". A bare code without a name uses the code
// as its display name. Duplicate codes are rejected.
func ParseSources(list string) ([]Source, error) {
	var sources []Source
	seen := make(map[string]struct{})

	for _, entry := range strings.Split(list, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		code, name, found := strings.Cut(entry, ":")
		code = strings.TrimSpace(code)
		name = strings.TrimSpace(name)
		if code == "" {
			return nil, fmt.Errorf("source entry %q has an empty code", entry)
		}
		if !found || name == "" {
			name = code
		}

		if _, dup := seen[code]; dup {
			return nil, fmt.Errorf("duplicate source code %q", code)
		}
		seen[code] = struct{}{}

		sources = append(sources, Source{Code: code, Name: name})
	}

	return sources, nil
}
