// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pdiddy/litfinder/internal/search"
	"github.com/pdiddy/litfinder/pkg/types"
)

func newTestViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	setDefaults(v, types.DefaultConfig())
	v.SetEnvPrefix("LITFINDER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if yaml != "" {
		path := filepath.Join(t.TempDir(), "litfinder.yaml")
		require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
		v.SetConfigFile(path)
		require.NoError(t, v.ReadInConfig())
	}
	return v
}

func TestLoadConfig_Defaults(t *testing.T) {
	c, err := loadConfig(newTestViper(t, ""))
	require.NoError(t, err)
	assert.Equal(t, types.DefaultConfig(), c)
}

func TestLoadConfig_FileAndEnv(t *testing.T) {
	t.Setenv("LITFINDER_OPENALEX_EMAIL", "env@example.com")
	t.Setenv("LITFINDER_CACHE_BACKEND", "redis")

	c, err := loadConfig(newTestViper(t, `
http:
  timeout: 5s
cache:
  backend: memory
  search_ttl: 10m
  redis_url: redis://localhost:6379/2
cyberleninka:
  enabled: false
  max_pages: 2
default_limit: 50
`))
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, c.HTTP.Timeout)
	assert.Equal(t, "litfinder/1.0", c.HTTP.UserAgent, "unset keys keep defaults")
	assert.Equal(t, types.CacheRedis, c.Cache.Backend, "environment overrides the file")
	assert.Equal(t, 10*time.Minute, c.Cache.SearchTTL)
	assert.Equal(t, "redis://localhost:6379/2", c.Cache.RedisURL)
	assert.Equal(t, "env@example.com", c.OpenAlex.Email)
	assert.False(t, c.OAI.Enabled)
	assert.Equal(t, 2, c.OAI.MaxPages)
	assert.Equal(t, 50, c.DefaultLimit)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"limit too large", "default_limit: 500\n", "default_limit"},
		{"unknown backend", "cache:\n  backend: memcached\n", "unknown cache backend"},
		{"negative source timeout", "source_timeout: -1s\n", "source_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(newTestViper(t, tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestNewRegistry(t *testing.T) {
	c := types.DefaultConfig()
	assert.Equal(t, []string{search.OpenAlexSource, search.CyberLeninkaSource}, newRegistry(c, zap.NewNop(), nil).Names())

	c.OpenAlex.Enabled = false
	assert.Equal(t, []string{search.CyberLeninkaSource}, newRegistry(c, zap.NewNop(), nil).Names())
}

func TestNewApp_NoSources(t *testing.T) {
	c := types.DefaultConfig()
	c.OpenAlex.Enabled = false
	c.OAI.Enabled = false
	_, err := newApp(t.Context(), c, zap.NewNop())
	assert.Error(t, err)
}

func TestNewApp_CacheFailureIsNotFatal(t *testing.T) {
	c := types.DefaultConfig()
	c.Cache.Backend = types.CacheRedis
	c.Cache.RedisURL = "not a url"

	a, err := newApp(t.Context(), c, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.cache)
}

// newSearchFlags returns a fresh command carrying the search flags.
func newSearchFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "search"}
	addSearchFlags(cmd)
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

func TestQueryFromFlags(t *testing.T) {
	cfg = types.DefaultConfig()

	t.Run("positional query and filters", func(t *testing.T) {
		cmd := newSearchFlags(t,
			"--year-from", "2019", "--year-to", "2022",
			"--lang", "ru,en", "--cited-min", "0", "--oa", "true",
			"--sources", "openalex", "--type", "article",
		)
		q, err := queryFromFlags(cmd, []string{"graphene"})
		require.NoError(t, err)
		assert.Equal(t, "graphene", q.Query)
		assert.Equal(t, types.DefaultLimit, q.Limit)
		assert.Equal(t, 2019, q.Filters.YearFrom)
		assert.Equal(t, 2022, q.Filters.YearTo)
		assert.Equal(t, []string{"ru", "en"}, q.Filters.Languages)
		require.NotNil(t, q.Filters.CitedByMin)
		assert.Equal(t, 0, *q.Filters.CitedByMin)
		assert.Nil(t, q.Filters.CitedByMax)
		require.NotNil(t, q.Filters.OpenAccess)
		assert.True(t, *q.Filters.OpenAccess)
		assert.Equal(t, []string{"openalex"}, q.Filters.Sources)
		assert.Equal(t, "article", q.Filters.PublicationType)
	})

	t.Run("cursor", func(t *testing.T) {
		cmd := newSearchFlags(t, "--query", "graphene", "--cursor", "*", "--limit", "50")
		q, err := queryFromFlags(cmd, nil)
		require.NoError(t, err)
		assert.True(t, q.UsesCursor())
		assert.Equal(t, 50, q.Limit)
	})

	t.Run("missing query", func(t *testing.T) {
		_, err := queryFromFlags(newSearchFlags(t), nil)
		assert.Error(t, err)
	})

	t.Run("bad open access value", func(t *testing.T) {
		cmd := newSearchFlags(t, "--oa", "maybe")
		_, err := queryFromFlags(cmd, []string{"graphene"})
		assert.Error(t, err)
	})

	t.Run("from saved file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "q.yaml")
		saved := types.SearchQuery{Query: "saved query", Limit: 7, Filters: types.Filters{YearFrom: 2001}}
		require.NoError(t, search.WriteQueryFile(path, saved, types.SearchResult{}))

		q, err := queryFromFlags(newSearchFlags(t, "--from-file", path), nil)
		require.NoError(t, err)
		assert.Equal(t, saved, q)
	})
}

func TestWriteResult(t *testing.T) {
	res := types.SearchResult{
		Total: 1,
		Results: []types.Article{{
			Source:     "openalex",
			ExternalID: "W1",
			Title:      "Graphene",
			Signals:    map[types.Signal]float64{types.SignalKeyword: 1},
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, writeResult(&buf, "table", res, true))
	assert.Contains(t, buf.String(), "Graphene")
	assert.Contains(t, buf.String(), "keyword_match")

	buf.Reset()
	require.NoError(t, writeResult(&buf, "json", res, false))
	assert.Contains(t, buf.String(), `"external_id": "W1"`)

	buf.Reset()
	require.NoError(t, writeResult(&buf, "csl", res, false))
	assert.Contains(t, buf.String(), "id: openalex_W1")

	assert.Error(t, checkFormat("xml"))
}
