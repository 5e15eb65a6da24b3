package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.StoreOptions().Driver)
	assert.Equal(t, 5*time.Second, cfg.StoreOptions().BusyTimeout)
}

func TestLoad_YAML(t *testing.T) {
	cfg, err := Load("testdata/qms.yaml")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Equal(t, Duration(2*time.Second), cfg.Database.BusyTimeout)
	assert.Equal(t, Duration(5*time.Minute), cfg.Cache.ReloadInterval)
	assert.Equal(t, 5, cfg.Workflow.ClaimRetries)
	assert.Equal(t, 3, cfg.Workflow.CreateRetries, "unset fields keep defaults")

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Ho_Chi_Minh", loc.String())

	lvl, err := cfg.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestLoad_JSONC(t *testing.T) {
	cfg, err := Load("testdata/qms.jsonc")
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "dev.db", cfg.Database.DSN)
	assert.Equal(t, Duration(750*time.Millisecond), cfg.Database.BusyTimeout)
	assert.Equal(t, "UTC", cfg.Facility.TimeZone)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(write("qms.toml", "x = 1"))
	assert.ErrorContains(t, err, "unsupported config format")

	_, err = Load(write("typo.yaml", "databse:\n  dsn: x\n"))
	assert.Error(t, err, "unknown keys are rejected")

	_, err = Load(write("typo.json", `{"cache": {"reload": "1m"}}`))
	assert.Error(t, err)

	_, err = Load(write("bad.yaml", "cache:\n  reload_interval: soon\n"))
	assert.Error(t, err)

	cfg, err := Load(write("empty.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"driver", func(c *Config) { c.Database.Driver = "postgres" }, "database.driver"},
		{"dsn", func(c *Config) { c.Database.DSN = " " }, "database.dsn"},
		{"busy timeout", func(c *Config) { c.Database.BusyTimeout = -1 }, "busy_timeout"},
		{"time zone", func(c *Config) { c.Facility.TimeZone = "Mars/Olympus" }, "time_zone"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"reload interval", func(c *Config) { c.Cache.ReloadInterval = Duration(-time.Second) }, "reload_interval"},
		{"retries", func(c *Config) { c.Workflow.ClaimRetries = -1 }, "retry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestDurationRoundTrip(t *testing.T) {
	b, err := Duration(90 * time.Second).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(b))

	var d Duration
	require.NoError(t, d.UnmarshalJSON(b))
	assert.Equal(t, Duration(90*time.Second), d)
	assert.Error(t, d.UnmarshalJSON([]byte(`90`)))
}
