// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/litfinder/internal/search"
	"github.com/pdiddy/litfinder/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search every enabled source and print ranked results",
	Long: `Search sends the query to every enabled source concurrently, merges the
results, ranks them by relevance and prints them. Sources that fail or time
out contribute nothing; the search itself only fails on invalid input.

Offset pagination (--offset) is cached; cursor pagination (--cursor '*',
then the printed next cursor) reaches past the first 10,000 OpenAlex results
and is never cached.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	addSearchFlags(searchCmd)
	rootCmd.AddCommand(searchCmd)
}

func addSearchFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("query", "", "search text (alternative to the positional argument)")
	f.String("from-file", "", "rerun the query stored in a saved query file")
	f.Int("limit", 0, "maximum number of results (default from config)")
	f.Int("offset", 0, "number of results to skip")
	f.String("cursor", "", "cursor pagination token; '*' starts a traversal")
	f.Int("year-from", 0, "earliest publication year")
	f.Int("year-to", 0, "latest publication year")
	f.StringSlice("lang", nil, "ISO 639-1 language codes; the first is preferred in ranking")
	f.Int("cited-min", -1, "minimum citation count")
	f.Int("cited-max", -1, "maximum citation count")
	f.String("oa", "", "open access filter: true or false")
	f.String("type", "", "publication type, e.g. article")
	f.StringSlice("sources", nil, "sources to query (default all enabled)")
	f.StringSlice("concepts", nil, "OpenAlex concept ids")
	f.StringSlice("categories", nil, "OAI-PMH set specs to harvest")
	f.String("format", "table", "output format: table, json, csl")
	f.Bool("signals", false, "print the ranking signal breakdown per result (table format)")
	f.String("save", "", "save query and results to a YAML file")
	f.String("metrics-textfile", "", "write Prometheus metrics to this file after the search")
}

func runSearch(cmd *cobra.Command, args []string) error {
	q, err := queryFromFlags(cmd, args)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	if err := checkFormat(format); err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.engine.Search(ctx, q)
	if err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("save"); path != "" {
		if err := search.WriteQueryFile(path, q, res); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Saved query to", path)
	}

	withSignals, _ := cmd.Flags().GetBool("signals")
	if err := writeResult(os.Stdout, format, res, withSignals); err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("metrics-textfile")
	return a.writeMetrics(path)
}

// queryFromFlags builds the query from a saved file or from flags.
func queryFromFlags(cmd *cobra.Command, args []string) (types.SearchQuery, error) {
	f := cmd.Flags()

	if path, _ := f.GetString("from-file"); path != "" {
		qf, err := search.ReadQueryFile(path)
		if err != nil {
			return types.SearchQuery{}, err
		}
		return qf.Query, nil
	}

	var q types.SearchQuery
	q.Query, _ = f.GetString("query")
	if len(args) == 1 {
		q.Query = args[0]
	}
	if strings.TrimSpace(q.Query) == "" {
		return q, fmt.Errorf("provide a query as an argument or with --query")
	}

	q.Limit, _ = f.GetInt("limit")
	if q.Limit == 0 {
		q.Limit = cfg.DefaultLimit
	}
	q.Offset, _ = f.GetInt("offset")
	q.Cursor, _ = f.GetString("cursor")

	q.Filters.YearFrom, _ = f.GetInt("year-from")
	q.Filters.YearTo, _ = f.GetInt("year-to")
	q.Filters.Languages, _ = f.GetStringSlice("lang")
	q.Filters.PublicationType, _ = f.GetString("type")
	q.Filters.Sources, _ = f.GetStringSlice("sources")
	q.Filters.Concepts, _ = f.GetStringSlice("concepts")
	q.Filters.Categories, _ = f.GetStringSlice("categories")

	if f.Changed("cited-min") {
		n, _ := f.GetInt("cited-min")
		q.Filters.CitedByMin = &n
	}
	if f.Changed("cited-max") {
		n, _ := f.GetInt("cited-max")
		q.Filters.CitedByMax = &n
	}
	switch oa, _ := f.GetString("oa"); oa {
	case "":
	case "true", "false":
		b := oa == "true"
		q.Filters.OpenAccess = &b
	default:
		return q, fmt.Errorf("--oa must be true or false, got %q", oa)
	}
	return q, nil
}

func checkFormat(format string) error {
	switch format {
	case "table", "json", "csl":
		return nil
	}
	return fmt.Errorf("unknown format %q (want table, json or csl)", format)
}

func writeResult(w io.Writer, format string, res types.SearchResult, withSignals bool) error {
	switch format {
	case "json":
		return search.FormatJSON(res, w)
	case "csl":
		return search.FormatCSL(res, w)
	}
	search.FormatTable(res, w)
	if withSignals {
		fmt.Fprintln(w)
		for _, a := range res.Results {
			search.FormatSignals(a, w)
		}
	}
	return nil
}
