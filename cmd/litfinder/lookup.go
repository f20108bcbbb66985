// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pdiddy/litfinder/internal/search"
)

var conceptsCmd = &cobra.Command{
	Use:   "concepts <query>",
	Short: "Find OpenAlex concept ids for --concepts",
	Long: `Concepts searches the OpenAlex topic vocabulary by name and prints the
matching concept ids with their tree level. Pass the ids to
'search --concepts' to restrict a search to those topics.`,
	Args: cobra.ExactArgs(1),
	RunE: runConcepts,
}

var setsCmd = &cobra.Command{
	Use:   "sets",
	Short: "List OAI-PMH set specs for --categories",
	Long: `Sets lists the harvestable sets (disciplines or journals) of every
enabled OAI-PMH source. Pass a set spec to 'search --categories' to harvest
only that set.`,
	Args: cobra.NoArgs,
	RunE: runSets,
}

func init() {
	addConceptsFlags(conceptsCmd)
	addSetsFlags(setsCmd)
	rootCmd.AddCommand(conceptsCmd)
	rootCmd.AddCommand(setsCmd)
}

func addConceptsFlags(cmd *cobra.Command) {
	cmd.Flags().Int("limit", 10, "maximum number of concepts (max 200)")
	cmd.Flags().String("format", "table", "output format: table, json")
}

func addSetsFlags(cmd *cobra.Command) {
	cmd.Flags().String("format", "table", "output format: table, json")
}

func runConcepts(cmd *cobra.Command, args []string) error {
	format, err := lookupFormat(cmd)
	if err != nil {
		return err
	}
	limit, _ := cmd.Flags().GetInt("limit")

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	concepts, err := a.engine.Concepts(ctx, args[0], limit)
	if err != nil {
		return err
	}
	if format == "json" {
		return writeJSON(cmd.OutOrStdout(), concepts)
	}
	search.FormatConcepts(concepts, cmd.OutOrStdout())
	return nil
}

func runSets(cmd *cobra.Command, args []string) error {
	format, err := lookupFormat(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	sets, err := a.engine.Sets(ctx)
	if err != nil {
		return err
	}
	if format == "json" {
		return writeJSON(cmd.OutOrStdout(), sets)
	}
	search.FormatSets(sets, cmd.OutOrStdout())
	return nil
}

func lookupFormat(cmd *cobra.Command) (string, error) {
	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "json" {
		return "", fmt.Errorf("unknown format %q (want table or json)", format)
	}
	return format, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
