// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pdiddy/litfinder/pkg/types"
)

func TestToCSLItemJournalArticle(t *testing.T) {
	a := types.Article{
		Source:     OpenAlexSource,
		ExternalID: "W2741809807",
		Title:      "Attention Is All You Need",
		Authors: []types.Author{
			{Name: "Ashish Vaswani", LastName: "Vaswani", Initials: "A."},
			{Name: "Devlin", LastName: "Devlin"},
		},
		Year:     2017,
		Journal:  "NeurIPS",
		Volume:   30,
		Pages:    "5998-6008",
		DOI:      "10.5555/3295222.3295349",
		PDFURL:   "https://arxiv.org/pdf/1706.03762",
		Language: "en",
	}

	item := toCSLItem(a)

	if item.ID != "openalex_W2741809807" {
		t.Errorf("ID = %q, want %q", item.ID, "openalex_W2741809807")
	}
	if item.Type != "article-journal" {
		t.Errorf("Type = %q, want %q", item.Type, "article-journal")
	}
	if item.ContainerTitle != "NeurIPS" {
		t.Errorf("ContainerTitle = %q", item.ContainerTitle)
	}
	if item.Volume != "30" {
		t.Errorf("Volume = %q, want %q", item.Volume, "30")
	}
	if item.Issue != "" {
		t.Errorf("Issue should be empty when unknown, got %q", item.Issue)
	}
	if item.Page != "5998-6008" {
		t.Errorf("Page = %q", item.Page)
	}
	if item.Issued == nil || item.Issued.DateParts[0][0] != 2017 {
		t.Errorf("Issued year should be 2017")
	}
	if len(item.Author) != 2 {
		t.Fatalf("len(Author) = %d, want 2", len(item.Author))
	}
	if item.Author[0] != (CSLName{Family: "Vaswani", Given: "A."}) {
		t.Errorf("Author[0] = %+v", item.Author[0])
	}
	if item.Author[1] != (CSLName{Literal: "Devlin"}) {
		t.Errorf("Author[1] = %+v, want literal name", item.Author[1])
	}
}

func TestToCSLItemWithoutJournal(t *testing.T) {
	item := toCSLItem(types.Article{Source: CyberLeninkaSource, ExternalID: "slug", Title: "Статья"})

	if item.Type != "article" {
		t.Errorf("Type = %q, want %q", item.Type, "article")
	}
	if item.Issued != nil {
		t.Errorf("Issued should be nil without a year")
	}
	if item.Volume != "" {
		t.Errorf("Volume should be empty, got %q", item.Volume)
	}
}

func TestFormatCSL(t *testing.T) {
	res := types.SearchResult{
		Results: []types.Article{
			{Source: OpenAlexSource, ExternalID: "W1", Title: "First", Journal: "J", Year: 2020, DOI: "10.1/x"},
			{Source: CyberLeninkaSource, ExternalID: "s2", Title: "Второй", Language: "ru"},
		},
	}

	var buf bytes.Buffer
	if err := FormatCSL(res, &buf); err != nil {
		t.Fatalf("FormatCSL: %v", err)
	}
	s := buf.String()

	for _, want := range []string{
		"id: openalex_W1",
		"type: article-journal",
		"container-title: J",
		"DOI: 10.1/x",
		"id: cyberleninka_s2",
		"language: ru",
		"date-parts:",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("CSL output missing %q:\n%s", want, s)
		}
	}
	if strings.Count(s, "- id:") != 2 {
		t.Errorf("expected 2 items, got %d", strings.Count(s, "- id:"))
	}
}
