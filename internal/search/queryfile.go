// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package search

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/litfinder/pkg/types"
)

// QueryFile is the on-disk representation of a search query and its results.
// A saved search can be reloaded and rerun without retyping filters.
type QueryFile struct {
	Query   types.SearchQuery  `yaml:"query"`
	Result  types.SearchResult `yaml:"result"`
	Summary QuerySummary       `yaml:"summary"`
}

// QuerySummary stores result statistics and a timestamp.
type QuerySummary struct {
	Total     int       `yaml:"total"`
	Returned  int       `yaml:"returned"`
	FromCache bool      `yaml:"from_cache"`
	Timestamp time.Time `yaml:"timestamp"`
}

// WriteQueryFile saves a query and its result to a YAML file.
func WriteQueryFile(path string, q types.SearchQuery, res types.SearchResult) error {
	qf := QueryFile{
		Query:  q,
		Result: res,
		Summary: QuerySummary{
			Total:     res.Total,
			Returned:  len(res.Results),
			FromCache: res.FromCache,
			Timestamp: time.Now().UTC(),
		},
	}

	data, err := yaml.Marshal(&qf)
	if err != nil {
		return fmt.Errorf("marshaling query file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadQueryFile loads a previously saved query file from disk.
func ReadQueryFile(path string) (*QueryFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query file: %w", err)
	}
	var qf QueryFile
	if err := yaml.Unmarshal(data, &qf); err != nil {
		return nil, fmt.Errorf("parsing query file: %w", err)
	}
	return &qf, nil
}
