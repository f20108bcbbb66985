// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the litfinder search pipeline:
// the inbound SearchQuery, the canonical Article record every source adapter
// produces, per-source PartialResults and the final SearchResult.
package types

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Query length and pagination bounds accepted by the search pipeline.
const (
	MinQueryLength = 3
	MaxQueryLength = 500
	DefaultLimit   = 20
	MaxLimit       = 100
	MinYear        = 1900
	MaxYear        = 2100
)

// CursorStart begins a fresh cursor traversal.
const CursorStart = "*"

// ErrInvalidQuery is returned for requests that fail input validation. It is
// the only error the search pipeline reports to its caller.
var ErrInvalidQuery = errors.New("invalid search query")

// Filters narrows a search. Zero values mean "no constraint".
type Filters struct {
	// YearFrom and YearTo bound the publication year (inclusive).
	YearFrom int `json:"year_from,omitempty" yaml:"year_from,omitempty"`
	YearTo   int `json:"year_to,omitempty" yaml:"year_to,omitempty"`

	// Languages lists ISO 639-1 codes. The first entry is the preferred
	// language for ranking.
	Languages []string `json:"language,omitempty" yaml:"language,omitempty"`

	// CitedByMin and CitedByMax bound the citation count (inclusive).
	CitedByMin *int `json:"cited_by_count_min,omitempty" yaml:"cited_by_count_min,omitempty"`
	CitedByMax *int `json:"cited_by_count_max,omitempty" yaml:"cited_by_count_max,omitempty"`

	// OpenAccess restricts results to open (true) or closed (false) access.
	OpenAccess *bool `json:"is_oa,omitempty" yaml:"is_oa,omitempty"`

	// PublicationType is a catalog work type such as "article" or "book-chapter".
	PublicationType string `json:"publication_type,omitempty" yaml:"publication_type,omitempty"`

	// Sources selects adapters by name. Empty means every registered source.
	Sources []string `json:"sources,omitempty" yaml:"sources,omitempty"`

	// Concepts lists OpenAlex concept ids (e.g. "C41008148").
	Concepts []string `json:"concepts,omitempty" yaml:"concepts,omitempty"`

	// Categories lists OAI-PMH set specs harvested by the OAI source.
	Categories []string `json:"categories,omitempty" yaml:"categories,omitempty"`
}

// PreferredLanguage returns the first requested language, or "en".
func (f Filters) PreferredLanguage() string {
	if len(f.Languages) > 0 && f.Languages[0] != "" {
		return f.Languages[0]
	}
	return "en"
}

// SearchQuery is one inbound search request. Exactly one pagination mode is
// used: offset (Cursor empty) or cursor (Offset zero).
type SearchQuery struct {
	Query   string  `json:"query" yaml:"query"`
	Limit   int     `json:"limit" yaml:"limit"`
	Offset  int     `json:"offset,omitempty" yaml:"offset,omitempty"`
	Cursor  string  `json:"cursor,omitempty" yaml:"cursor,omitempty"`
	Filters Filters `json:"filters" yaml:"filters"`
}

// UsesCursor reports whether the request is cursor-paginated.
func (q SearchQuery) UsesCursor() bool {
	return q.Cursor != ""
}

// Normalize trims the query text and applies the default limit.
func (q SearchQuery) Normalize() SearchQuery {
	q.Query = strings.TrimSpace(q.Query)
	if q.Limit == 0 {
		q.Limit = DefaultLimit
	}
	return q
}

// Validate checks the request against the accepted bounds. known lists the
// registered source names; a nil slice skips the source check.
func (q SearchQuery) Validate(known []string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(q.Query))
	if n < MinQueryLength || n > MaxQueryLength {
		return fmt.Errorf("%w: query must be %d-%d characters, got %d", ErrInvalidQuery, MinQueryLength, MaxQueryLength, n)
	}
	if q.Limit < 1 || q.Limit > MaxLimit {
		return fmt.Errorf("%w: limit must be 1-%d, got %d", ErrInvalidQuery, MaxLimit, q.Limit)
	}
	if q.Offset < 0 {
		return fmt.Errorf("%w: offset must not be negative", ErrInvalidQuery)
	}
	if q.Cursor != "" && q.Offset != 0 {
		return fmt.Errorf("%w: offset and cursor are mutually exclusive", ErrInvalidQuery)
	}
	return q.Filters.validate(known)
}

func (f Filters) validate(known []string) error {
	for _, y := range []int{f.YearFrom, f.YearTo} {
		if y != 0 && (y < MinYear || y > MaxYear) {
			return fmt.Errorf("%w: year %d outside %d-%d", ErrInvalidQuery, y, MinYear, MaxYear)
		}
	}
	if f.YearFrom != 0 && f.YearTo != 0 && f.YearFrom > f.YearTo {
		return fmt.Errorf("%w: year_from %d after year_to %d", ErrInvalidQuery, f.YearFrom, f.YearTo)
	}
	if f.CitedByMin != nil && *f.CitedByMin < 0 {
		return fmt.Errorf("%w: cited_by_count_min must not be negative", ErrInvalidQuery)
	}
	if f.CitedByMax != nil && *f.CitedByMax < 0 {
		return fmt.Errorf("%w: cited_by_count_max must not be negative", ErrInvalidQuery)
	}
	if f.CitedByMin != nil && f.CitedByMax != nil && *f.CitedByMin > *f.CitedByMax {
		return fmt.Errorf("%w: cited_by_count_min %d above cited_by_count_max %d", ErrInvalidQuery, *f.CitedByMin, *f.CitedByMax)
	}
	if known == nil {
		return nil
	}
	for _, s := range f.Sources {
		if !contains(known, s) {
			return fmt.Errorf("%w: unknown source %q", ErrInvalidQuery, s)
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// PartialResult is one source's contribution to a search.
type PartialResult struct {
	// Source names the adapter that produced the result.
	Source string `json:"source"`

	// Total is the source's own match count, which may exceed len(Items).
	Total int `json:"total"`

	// Items are the normalized records in source order.
	Items []Article `json:"items"`

	// NextCursor is the provider's continuation token, when it issues one.
	NextCursor string `json:"next_cursor,omitempty"`

	// Err records why the source degraded to an empty result. It is never
	// surfaced to the caller of a search.
	Err error `json:"-"`
}

// SearchResult is the merged, ranked response to a SearchQuery.
type SearchResult struct {
	// Total is the sum of per-source totals.
	Total int `json:"total" yaml:"total"`

	// Results are the ranked records, truncated to the query limit.
	Results []Article `json:"results" yaml:"results"`

	// NextCursor continues a cursor traversal; empty in offset mode.
	NextCursor string `json:"next_cursor,omitempty" yaml:"next_cursor,omitempty"`

	// ExecutionTimeMS is the wall time spent serving the request.
	ExecutionTimeMS int64 `json:"execution_time_ms" yaml:"execution_time_ms"`

	// FromCache reports whether the result was served from the result cache.
	FromCache bool `json:"from_cache" yaml:"from_cache"`
}
