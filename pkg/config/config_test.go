package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, SourceFile, cfg.Knowledge.Source)
	assert.Equal(t, 3, cfg.Search.DefaultLimit)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "retrieval-events", cfg.Kafka.AnalyticsTopic)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowOrigins)
	assert.Equal(t, 100, cfg.Analytics.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.Analytics.FlushInterval)
	assert.Zero(t, cfg.Analytics.SnapshotInterval)
}

func TestLoadAnalyticsEnvOverrides(t *testing.T) {
	t.Setenv("GS_ANALYTICS_SNAPSHOT_INTERVAL", "1m")
	t.Setenv("GS_ADMIN_TOKEN", "s3cret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, time.Minute, cfg.Analytics.SnapshotInterval)
	assert.Equal(t, "analytics_snapshots", cfg.Analytics.SnapshotTable)
	assert.Equal(t, "s3cret", cfg.Server.AdminToken)
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yml := `
server:
  port: 9000
knowledge:
  source: file
  path: kb.json
redis:
  enabled: true
  cacheTTL: 30s
search:
  defaultLimit: 5
  maxResults: 10
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("GS_REDIS_ADDR", "cache:6379")
	t.Setenv("GS_SERVER_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "kb.json", cfg.Knowledge.Path)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.Equal(t, 5, cfg.Search.DefaultLimit)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{"unknown source", "knowledge:\n  source: s3\n"},
		{"file without path", "knowledge:\n  source: file\n  path: \"\"\n"},
		{"limit above max", "search:\n  defaultLimit: 50\n  maxResults: 10\n"},
		{"snapshots without table", "analytics:\n  snapshotInterval: 1m\n  snapshotTable: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "c.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yml), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "kb", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=kb sslmode=disable", p.DSN())
}
