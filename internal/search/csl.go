// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"io"
	"strconv"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/litfinder/pkg/types"
)

// CSLItem represents a bibliographic entry in CSL (Citation Style Language)
// format. The field names and structure follow the CSL-JSON/CSL-YAML schema
// so that output is consumable by Pandoc and reference managers.
type CSLItem struct {
	ID             string    `yaml:"id"`
	Type           string    `yaml:"type"`
	Title          string    `yaml:"title"`
	Author         []CSLName `yaml:"author,omitempty"`
	ContainerTitle string    `yaml:"container-title,omitempty"`
	Volume         string    `yaml:"volume,omitempty"`
	Issue          string    `yaml:"issue,omitempty"`
	Page           string    `yaml:"page,omitempty"`
	Abstract       string    `yaml:"abstract,omitempty"`
	Issued         *CSLDate  `yaml:"issued,omitempty"`
	DOI            string    `yaml:"DOI,omitempty"`
	URL            string    `yaml:"URL,omitempty"`
	Language       string    `yaml:"language,omitempty"`
}

// CSLName represents a person's name in CSL format.
type CSLName struct {
	Family  string `yaml:"family,omitempty"`
	Given   string `yaml:"given,omitempty"`
	Literal string `yaml:"literal,omitempty"`
}

// CSLDate represents a date in CSL format using date-parts.
type CSLDate struct {
	DateParts [][]int `yaml:"date-parts"`
}

// FormatCSL writes search results as a CSL-YAML list to w.
func FormatCSL(res types.SearchResult, w io.Writer) error {
	items := make([]CSLItem, len(res.Results))
	for i, a := range res.Results {
		items[i] = toCSLItem(a)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	return enc.Encode(items)
}

// toCSLItem converts a canonical article to a CSLItem. Articles with a
// journal are journal articles; everything else is a generic article.
func toCSLItem(a types.Article) CSLItem {
	item := CSLItem{
		ID:             a.ID(),
		Type:           "article",
		Title:          a.Title,
		ContainerTitle: a.Journal,
		Page:           a.Pages,
		Abstract:       a.Abstract,
		DOI:            a.DOI,
		URL:            a.PDFURL,
		Language:       a.Language,
	}
	if a.Journal != "" {
		item.Type = "article-journal"
	}
	if a.Volume > 0 {
		item.Volume = strconv.Itoa(a.Volume)
	}
	if a.Issue > 0 {
		item.Issue = strconv.Itoa(a.Issue)
	}

	for _, au := range a.Authors {
		item.Author = append(item.Author, cslName(au))
	}

	if a.Year > 0 {
		item.Issued = &CSLDate{DateParts: [][]int{{a.Year}}}
	}
	return item
}

// cslName maps a canonical author to CSL family/given parts. Authors
// without a separate family name use the literal field.
func cslName(a types.Author) CSLName {
	if a.LastName == "" || a.LastName == a.Name {
		return CSLName{Literal: a.Name}
	}
	return CSLName{Family: a.LastName, Given: a.Initials}
}
