package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadEmbeddedDefaults(t *testing.T) {
	t.Setenv(EnvConfigPath, "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "data/grants.db", cfg.Database.Path)
	assert.Equal(t, "0 */6 * * *", cfg.Schedule.Cron)
	assert.Equal(t, 20*time.Second, cfg.HTTP.Timeout)
	assert.Len(t, cfg.HTTP.UserAgents, 3)
	require.Len(t, cfg.Sources, 6)
	assert.Equal(t, "gggi", cfg.Sources[0].Name)
	assert.Equal(t, []string{"call for project concept notes", "submit via email"}, cfg.Sources[0].Keywords)
	assert.True(t, cfg.NeedsBrowser())
}

func TestLoadFileAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
sources:
  - name: demo
    url: https://example.org/grants
    keywords: [apply now]
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, defaultDBPath, cfg.Database.Path)
	assert.Equal(t, defaultConcurrency, cfg.Schedule.Concurrency)
	assert.Equal(t, FetchHTTP, cfg.Sources[0].Fetch)
	assert.Equal(t, int64(defaultMaxBodyBytes), cfg.HTTP.MaxBodyBytes)
	assert.False(t, cfg.NeedsBrowser())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv(EnvDBPath, "/tmp/override.db")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvSchedule, "@hourly")
	t.Setenv(EnvServerAddr, ":9999")

	cfg, err := Parse([]byte("sources: []"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "@hourly", cfg.Schedule.Cron)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestEnvFile(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("GRANTWATCH_DB_PATH=/from/env/file.db\n"), 0o644))
	t.Setenv("ENV_FILE", envPath)
	t.Setenv(EnvDBPath, "")
	os.Unsetenv(EnvDBPath)

	_, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/from/env/file.db", os.Getenv(EnvDBPath))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"missing name", "sources: [{url: 'https://a.org', keywords: [x]}]", "sources[0].name"},
		{"bad scheme", "sources: [{name: a, url: 'ftp://a.org', keywords: [x]}]", "sources[a].url"},
		{"missing url", "sources: [{name: a, keywords: [x]}]", "sources[a].url"},
		{"bad fetch", "sources: [{name: a, url: 'https://a.org', fetch: curl, keywords: [x]}]", "sources[a].fetch"},
		{"blank keywords", "sources: [{name: a, url: 'https://a.org', keywords: ['  ']}]", "sources[a].keywords"},
		{"duplicate url", "sources: [{name: a, url: 'https://a.org', keywords: [x]}, {name: b, url: 'https://a.org', keywords: [y]}]", "sources[b].url"},
		{"bad level", "logging: {level: loud}", "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}
