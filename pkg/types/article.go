// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "fmt"

// Author is a contributor in canonical form.
type Author struct {
	// Name is the author's name as the source spells it.
	Name string `json:"name" yaml:"name"`

	// LastName is the family name.
	LastName string `json:"last_name" yaml:"last_name"`

	// Initials holds the given-name initials, e.g. "J.P.".
	Initials string `json:"initials,omitempty" yaml:"initials,omitempty"`
}

// Formatted returns "LastName Initials", or the name when no initials exist.
func (a Author) Formatted() string {
	if a.Initials == "" {
		if a.LastName != "" {
			return a.LastName
		}
		return a.Name
	}
	return a.LastName + " " + a.Initials
}

// Concept is a topic or keyword attached to a record.
type Concept struct {
	ID    string  `json:"id,omitempty" yaml:"id,omitempty"`
	Name  string  `json:"name" yaml:"name"`
	Score float64 `json:"score" yaml:"score"`
	// Level is the depth in the OpenAlex concept tree, 0 being the root fields.
	Level int `json:"level,omitempty" yaml:"level,omitempty"`
}

// Category is a harvestable OAI-PMH set, usually a discipline or journal.
type Category struct {
	Spec string `json:"spec" yaml:"spec"`
	Name string `json:"name" yaml:"name"`
}

// Signal names one contributor to the composite relevance score.
type Signal string

const (
	SignalSemantic      Signal = "semantic_similarity"
	SignalKeyword       Signal = "keyword_match"
	SignalCitation      Signal = "citation_score"
	SignalRecency       Signal = "recency_score"
	SignalOpenAccess    Signal = "open_access"
	SignalSourceQuality Signal = "source_quality"
	SignalLanguage      Signal = "language_match"
)

// Signals lists every ranking signal in a fixed order.
var Signals = []Signal{
	SignalSemantic,
	SignalKeyword,
	SignalCitation,
	SignalRecency,
	SignalOpenAccess,
	SignalSourceQuality,
	SignalLanguage,
}

// Article is the canonical record. Source adapters construct it once at the
// adapter boundary; ranking, caching and output consume only this type.
type Article struct {
	// Source identifies the adapter that produced the record (e.g. "openalex").
	Source string `json:"source" yaml:"source"`

	// ExternalID is the provider's identifier with any URL prefix removed.
	ExternalID string `json:"external_id" yaml:"external_id"`

	Title   string   `json:"title" yaml:"title"`
	Authors []Author `json:"authors" yaml:"authors"`

	// Year is the publication year; 0 when unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	Journal string `json:"journal,omitempty" yaml:"journal,omitempty"`
	Volume  int    `json:"volume,omitempty" yaml:"volume,omitempty"`
	Issue   int    `json:"issue,omitempty" yaml:"issue,omitempty"`
	Pages   string `json:"pages,omitempty" yaml:"pages,omitempty"`

	// DOI is the bare DOI without the resolver prefix.
	DOI    string `json:"doi,omitempty" yaml:"doi,omitempty"`
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	Abstract string    `json:"abstract,omitempty" yaml:"abstract,omitempty"`
	Concepts []Concept `json:"concepts,omitempty" yaml:"concepts,omitempty"`

	CitedByCount int    `json:"cited_by_count" yaml:"cited_by_count"`
	OpenAccess   bool   `json:"open_access" yaml:"open_access"`
	Language     string `json:"language,omitempty" yaml:"language,omitempty"`

	// SourcePrior is the fixed trust score the adapter assigns before ranking.
	// It stands in for semantic similarity when no embeddings are available.
	SourcePrior float64 `json:"source_prior" yaml:"source_prior"`

	// RelevanceScore is the composite score in [0,1] assigned by ranking.
	RelevanceScore float64 `json:"relevance_score" yaml:"relevance_score"`

	// Signals is the per-signal breakdown behind RelevanceScore.
	Signals map[Signal]float64 `json:"ranking_signals,omitempty" yaml:"ranking_signals,omitempty"`

	// Embedding is an optional document vector for semantic similarity.
	Embedding []float64 `json:"-" yaml:"-"`
}

// ID returns a source-qualified identifier, e.g. "openalex_W2741809807".
func (a Article) ID() string {
	return fmt.Sprintf("%s_%s", a.Source, a.ExternalID)
}
