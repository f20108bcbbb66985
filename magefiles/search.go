//go:build mage

package main

import (
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Search builds the CLI and runs a query read from $QUERY, e.g.
// QUERY="graphene oxide" mage search.
func Search() error {
	mg.Deps(Build)
	query := os.Getenv("QUERY")
	if query == "" {
		query = "graphene oxide membranes"
	}
	return sh.RunV(filepath.Join(binDir, binName), "search", query)
}

// ClearCache builds the CLI and empties the configured result cache.
func ClearCache() error {
	mg.Deps(Build)
	return sh.RunV(filepath.Join(binDir, binName), "cache", "clear")
}
