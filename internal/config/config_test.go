package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintboard/internal/storage/sqlite"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "data/sprintboard.db", cfg.Database.Path)
	assert.Equal(t, 30*time.Second, cfg.Metrics.CacheTTL)
	assert.Equal(t, 512, cfg.Metrics.CacheSize)
	assert.Equal(t, time.Hour, cfg.Snapshot.Interval)
	assert.Equal(t, sqlite.ClearAllMemberships, cfg.BacklogPolicy())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sprintboard.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
addr = ":9090"

[metrics]
cache_ttl = "5s"
location = "Europe/Berlin"

[planning]
backlog_column_policy = "clear_active"
`), 0o644))
	t.Setenv("SPRINTBOARD_DATABASE_PATH", filepath.Join(dir, "env.db"))
	t.Setenv("SPRINTBOARD_SNAPSHOT_WORKERS", "8")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Metrics.CacheTTL)
	assert.Equal(t, filepath.Join(dir, "env.db"), cfg.Database.Path)
	assert.Equal(t, 8, cfg.Snapshot.Workers)
	assert.Equal(t, sqlite.ClearActiveMembership, cfg.BacklogPolicy())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	t.Setenv("SPRINTBOARD_PLANNING_BACKLOG_COLUMN_POLICY", "archive")
	_, err := Load("")
	require.Error(t, err)

	t.Setenv("SPRINTBOARD_PLANNING_BACKLOG_COLUMN_POLICY", "keep")
	t.Setenv("SPRINTBOARD_METRICS_LOCATION", "Mars/Olympus")
	_, err = Load("")
	require.Error(t, err)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
