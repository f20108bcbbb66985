// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/litfinder/internal/search"
	"github.com/pdiddy/litfinder/pkg/types"
)

var articleCmd = &cobra.Command{
	Use:   "article <id>...",
	Short: "Look up articles by id",
	Long: `Article fetches records by their source-qualified ids, such as
openalex_W2741809807 or cyberleninka_some-article-slug. Bare OpenAlex work
ids (W2741809807) are also accepted. Several ids are fetched concurrently.
Lookups are cached separately from searches.

Records are printed in argument order. Ids that could not be found are
listed on stderr and make the command fail after the found records are
printed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runArticle,
}

func init() {
	addArticleFlags(articleCmd)
	rootCmd.AddCommand(articleCmd)
}

func addArticleFlags(cmd *cobra.Command) {
	cmd.Flags().String("format", "yaml", "output format: yaml, json")
}

func runArticle(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "yaml" && format != "json" {
		return fmt.Errorf("unknown format %q (want yaml or json)", format)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	found, err := a.engine.Articles(ctx, args)
	if err != nil {
		return err
	}

	var (
		articles []types.Article
		missing  []string
	)
	for _, id := range args {
		art, ok := found[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		articles = append(articles, art)
	}

	if len(articles) > 0 {
		if err := writeArticles(cmd.OutOrStdout(), format, articles); err != nil {
			return err
		}
	}
	if len(missing) > 0 {
		for _, id := range missing {
			fmt.Fprintln(cmd.ErrOrStderr(), "not found:", id)
		}
		return fmt.Errorf("%d of %d articles not found: %s",
			len(missing), len(args), strings.Join(missing, ", "))
	}
	return nil
}

// writeArticles prints one record as a YAML document or several as a YAML
// list; json always uses the search result shape.
func writeArticles(w io.Writer, format string, articles []types.Article) error {
	if format == "json" {
		return search.FormatJSON(types.SearchResult{Total: len(articles), Results: articles}, w)
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if len(articles) == 1 {
		return enc.Encode(articles[0])
	}
	return enc.Encode(articles)
}
