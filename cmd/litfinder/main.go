// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the litfinder CLI.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/litfinder/internal/secrets"
	"github.com/pdiddy/litfinder/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// Populated by the root command before any subcommand runs.
var (
	cfg    types.Config
	logger *zap.Logger
)

// rootCmd is the base command for the litfinder CLI.
var rootCmd = &cobra.Command{
	Use:   "litfinder",
	Short: "Federated search over scientific literature catalogs",
	Long: `litfinder queries OpenAlex and the CyberLeninka OAI-PMH repository in
parallel, merges their results into one canonical article format, ranks them
by a weighted relevance score and caches the ranked result.

Configuration is read from ./litfinder.yaml or ~/.config/litfinder/config.yaml,
then LITFINDER_* environment variables (e.g. LITFINDER_CACHE_BACKEND=redis),
then files in the secrets directory.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("verbose")
		l, err := newLogger(verbose)
		if err != nil {
			return err
		}
		logger = l

		c, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}

		dir, _ := cmd.Flags().GetString("secrets-dir")
		s, err := secrets.Load(dir, logger)
		if err != nil {
			return err
		}
		if len(s) > 0 {
			keys := make([]string, 0, len(s))
			for k := range s {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			logger.Debug("loaded secrets", zap.Strings("keys", keys))
		}
		secrets.Apply(&c, s)
		cfg = c
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./litfinder.yaml or ~/.config/litfinder/config.yaml)")
	rootCmd.PersistentFlags().String("secrets-dir", ".secrets/", "directory of secret files (openalex-email, openalex-api-key, redis-url)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "human-readable debug logging")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("litfinder")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "litfinder"))
		}
	}

	setDefaults(viper.GetViper(), types.DefaultConfig())
	viper.SetEnvPrefix("LITFINDER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key so environment variables can
// override keys absent from the config file.
func setDefaults(v *viper.Viper, d types.Config) {
	v.SetDefault("http.timeout", d.HTTP.Timeout)
	v.SetDefault("http.user_agent", d.HTTP.UserAgent)

	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.base_delay", d.Retry.BaseDelay)
	v.SetDefault("retry.max_retry_after", d.Retry.MaxRetryAfter)

	v.SetDefault("openalex.enabled", d.OpenAlex.Enabled)
	v.SetDefault("openalex.base_url", d.OpenAlex.BaseURL)
	v.SetDefault("openalex.email", d.OpenAlex.Email)
	v.SetDefault("openalex.api_key", d.OpenAlex.APIKey)
	v.SetDefault("openalex.requests_per_second", d.OpenAlex.RequestsPerSecond)

	v.SetDefault("cyberleninka.enabled", d.OAI.Enabled)
	v.SetDefault("cyberleninka.base_url", d.OAI.BaseURL)
	v.SetDefault("cyberleninka.max_pages", d.OAI.MaxPages)
	v.SetDefault("cyberleninka.requests_per_second", d.OAI.RequestsPerSecond)

	v.SetDefault("cache.backend", string(d.Cache.Backend))
	v.SetDefault("cache.redis_url", d.Cache.RedisURL)
	v.SetDefault("cache.sqlite_path", d.Cache.SQLitePath)
	v.SetDefault("cache.search_ttl", d.Cache.SearchTTL)
	v.SetDefault("cache.article_ttl", d.Cache.ArticleTTL)
	v.SetDefault("cache.op_timeout", d.Cache.OpTimeout)

	v.SetDefault("default_limit", d.DefaultLimit)
	v.SetDefault("source_timeout", d.SourceTimeout)
}

// loadConfig decodes v into a Config and checks the values the pipeline
// cannot work around.
func loadConfig(v *viper.Viper) (types.Config, error) {
	var c types.Config
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decoding config: %w", err)
	}
	if c.DefaultLimit < 1 || c.DefaultLimit > types.MaxLimit {
		return c, fmt.Errorf("default_limit must be 1-%d, got %d", types.MaxLimit, c.DefaultLimit)
	}
	if c.SourceTimeout < 0 {
		return c, fmt.Errorf("source_timeout must not be negative, got %s", c.SourceTimeout)
	}
	switch c.Cache.Backend {
	case types.CacheNone, types.CacheMemory, types.CacheRedis, types.CacheSQLite, "":
	default:
		return c, fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}
	return c, nil
}

// newLogger returns a JSON production logger, or a console development
// logger when verbose is set. Both write to stderr.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return zc.Build()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
