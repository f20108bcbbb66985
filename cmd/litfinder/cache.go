// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the result cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cached search result",
	Long: `Clear deletes all cached search results from the configured backend.
Cached article lookups are kept.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cache == nil {
			return fmt.Errorf("no cache backend configured (cache.backend=%s)", cfg.Cache.Backend)
		}
		n, err := a.cache.ClearSearches(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Cleared %d cached searches\n", n)
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
