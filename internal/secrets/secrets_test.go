// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pdiddy/litfinder/pkg/types"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T) string
		want   map[string]string
		errMsg string
	}{
		{
			name: "reads key files and trims whitespace",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "openalex-api-key", "  oa_abc123  \n")
				writeFile(t, dir, "redis-url", "redis://localhost:6379/0")
				writeFile(t, dir, "openalex-email", "user@example.com\n")
				return dir
			},
			want: map[string]string{
				"openalex-api-key": "oa_abc123",
				"redis-url":        "redis://localhost:6379/0",
				"openalex-email":   "user@example.com",
			},
		},
		{
			name: "returns empty map for nonexistent directory",
			setup: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
			want: map[string]string{},
		},
		{
			name: "skips empty files",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "openalex-api-key", "oa_valid")
				writeFile(t, dir, "empty-key", "")
				writeFile(t, dir, "whitespace-only", "   \n\t  ")
				return dir
			},
			want: map[string]string{
				"openalex-api-key": "oa_valid",
			},
		},
		{
			name: "skips dotfiles",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, ".gitkeep", "")
				writeFile(t, dir, ".hidden-key", "secret")
				writeFile(t, dir, "openalex-email", "me@example.com")
				return dir
			},
			want: map[string]string{
				"openalex-email": "me@example.com",
			},
		},
		{
			name: "skips subdirectories",
			setup: func(t *testing.T) string {
				dir := t.TempDir()
				writeFile(t, dir, "openalex-api-key", "oa_123")
				require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))
				return dir
			},
			want: map[string]string{
				"openalex-api-key": "oa_123",
			},
		},
		{
			name: "returns empty map for empty directory",
			setup: func(t *testing.T) string {
				return t.TempDir()
			},
			want: map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.setup(t)
			got, err := Load(dir, zap.NewNop())
			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadUnreadableFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("file permissions are not enforced for root")
	}
	dir := t.TempDir()
	writeFile(t, dir, "good-key", "value123")

	// Create a file then remove read permission.
	badPath := filepath.Join(dir, "bad-key")
	require.NoError(t, os.WriteFile(badPath, []byte("secret"), 0o000))
	t.Cleanup(func() { os.Chmod(badPath, 0o644) })

	core, logs := observer.New(zap.WarnLevel)
	got, err := Load(dir, zap.New(core))
	require.NoError(t, err)
	assert.Equal(t, 1, logs.FilterMessage("could not read secret").Len())
	// The good file should still be returned; the bad file is skipped with a warning.
	assert.Equal(t, "value123", got["good-key"])
	_, hasBad := got["bad-key"]
	assert.False(t, hasBad, "unreadable file should not appear in result")
}

func TestApply(t *testing.T) {
	secrets := map[string]string{
		OpenAlexEmail:  "me@example.com",
		OpenAlexAPIKey: "oa_key",
		RedisURL:       "redis://cache:6379/1",
	}

	t.Run("fills empty fields", func(t *testing.T) {
		cfg := types.DefaultConfig()
		Apply(&cfg, secrets)
		assert.Equal(t, "me@example.com", cfg.OpenAlex.Email)
		assert.Equal(t, "oa_key", cfg.OpenAlex.APIKey)
		assert.Equal(t, "redis://cache:6379/1", cfg.Cache.RedisURL)
	})

	t.Run("configured values win", func(t *testing.T) {
		cfg := types.DefaultConfig()
		cfg.OpenAlex.Email = "config@example.com"
		Apply(&cfg, secrets)
		assert.Equal(t, "config@example.com", cfg.OpenAlex.Email)
		assert.Equal(t, "oa_key", cfg.OpenAlex.APIKey)
	})

	t.Run("no secrets", func(t *testing.T) {
		cfg := types.DefaultConfig()
		Apply(&cfg, map[string]string{})
		assert.Empty(t, cfg.OpenAlex.Email)
		assert.Empty(t, cfg.Cache.RedisURL)
	})
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}
