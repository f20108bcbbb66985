// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package search runs a federated literature search: a query fans out to
// every registered source adapter concurrently, the partial results are
// merged without deduplication, ranked and fronted by a result cache.
// This file holds the human and machine output formats.
package search

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/pdiddy/litfinder/pkg/types"
)

// FormatTable writes results as a human-readable table to w.
func FormatTable(res types.SearchResult, w io.Writer) {
	if len(res.Results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return
	}

	fmt.Fprintf(w, "%-4s  %-60s  %-20s  %-4s  %-6s  %s\n",
		"Rank", "Title", "Authors", "Year", "Score", "Source")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for i, a := range res.Results {
		year := ""
		if a.Year > 0 {
			year = fmt.Sprintf("%d", a.Year)
		}
		fmt.Fprintf(w, "%-4d  %s  %s  %-4s  %-6.4f  %s\n",
			i+1, pad(truncate(a.Title, 60), 60), pad(formatAuthors(a.Authors), 20), year, a.RelevanceScore, a.Source)
	}

	fmt.Fprintf(w, "\n%d of %d results", len(res.Results), res.Total)
	if res.FromCache {
		fmt.Fprint(w, " (cached)")
	}
	fmt.Fprintf(w, " in %dms\n", res.ExecutionTimeMS)
	if res.NextCursor != "" {
		fmt.Fprintf(w, "next cursor: %s\n", res.NextCursor)
	}
}

// FormatJSON writes the full result, including per-signal breakdowns, as
// indented JSON to w.
func FormatJSON(res types.SearchResult, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// FormatSignals writes the ranking breakdown of one article.
func FormatSignals(a types.Article, w io.Writer) {
	fmt.Fprintf(w, "%s  %.4f\n", a.ID(), a.RelevanceScore)
	for _, s := range types.Signals {
		fmt.Fprintf(w, "  %-20s %.4f\n", s, a.Signals[s])
	}
}

// FormatConcepts writes concept search hits, one per line, with the id
// first so it can be pasted into --concepts.
func FormatConcepts(concepts []types.Concept, w io.Writer) {
	if len(concepts) == 0 {
		fmt.Fprintln(w, "No concepts found.")
		return
	}
	fmt.Fprintf(w, "%-12s  %-5s  %s\n", "ID", "Level", "Name")
	for _, c := range concepts {
		fmt.Fprintf(w, "%-12s  %-5d  %s\n", c.ID, c.Level, c.Name)
	}
}

// FormatSets writes harvestable sets grouped by source, sources sorted by
// name.
func FormatSets(sets map[string][]types.Category, w io.Writer) {
	names := make([]string, 0, len(sets))
	for name := range sets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		fmt.Fprintf(w, "%s (%d sets)\n", name, len(sets[name]))
		for _, c := range sets[name] {
			fmt.Fprintf(w, "  %s  %s\n", pad(truncate(c.Spec, 40), 40), c.Name)
		}
	}
}

func formatAuthors(authors []types.Author) string {
	switch len(authors) {
	case 0:
		return ""
	case 1:
		return truncate(authors[0].Formatted(), 20)
	default:
		return truncate(authors[0].Formatted(), 14) + " et al."
	}
}

// truncate shortens s to max characters. Titles are often Cyrillic, so it
// counts runes rather than bytes.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}

func pad(s string, width int) string {
	n := utf8.RuneCountInString(s)
	if n >= width {
		return s
	}
	return s + strings.Repeat(" ", width-n)
}
