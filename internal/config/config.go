// Package config loads the qms configuration file.
//
// YAML (.yaml, .yml) and JSON with comments (.json, .jsonc) are accepted.
// Defaults are applied first, the file overrides them, and command-line
// flags override the file.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/roach88/qms/internal/store"
)

type Config struct {
	Database DatabaseConfig `yaml:"database" json:"database"`
	Facility FacilityConfig `yaml:"facility" json:"facility"`
	Log      LogConfig      `yaml:"log" json:"log"`
	Cache    CacheConfig    `yaml:"cache" json:"cache"`
	Workflow WorkflowConfig `yaml:"workflow" json:"workflow"`
}

type DatabaseConfig struct {
	Driver      string   `yaml:"driver" json:"driver"`
	DSN         string   `yaml:"dsn" json:"dsn"`
	BusyTimeout Duration `yaml:"busy_timeout" json:"busy_timeout"`
}

type FacilityConfig struct {
	// TimeZone names the IANA zone the facility's calendar day follows.
	TimeZone string `yaml:"time_zone" json:"time_zone"`
}

type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

type CacheConfig struct {
	// ReloadInterval of zero disables the periodic reload; day rollover is
	// still honoured while the refresher runs.
	ReloadInterval Duration `yaml:"reload_interval" json:"reload_interval"`
}

type WorkflowConfig struct {
	CreateRetries int `yaml:"create_retries" json:"create_retries"`
	ClaimRetries  int `yaml:"claim_retries" json:"claim_retries"`
}

// Defaults returns the configuration used when no file is given.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:      "sqlite",
			DSN:         "qms.db",
			BusyTimeout: Duration(store.DefaultBusyTimeout),
		},
		Facility: FacilityConfig{TimeZone: "Local"},
		Log:      LogConfig{Level: "info", Format: "text"},
		Cache:    CacheConfig{ReloadInterval: Duration(15 * time.Minute)},
		Workflow: WorkflowConfig{CreateRetries: 3, ClaimRetries: 3},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	case ".json", ".jsonc":
		dec := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&cfg); err != nil {
			return Config{}, fmt.Errorf("parse %s: %w", path, err)
		}
	default:
		return Config{}, fmt.Errorf("unsupported config format %q", ext)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "sqlite3", "mysql":
	default:
		return fmt.Errorf("database.driver %q: must be sqlite or mysql", c.Database.Driver)
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("database.busy_timeout must not be negative")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format %q: must be text or json", c.Log.Format)
	}
	if c.Cache.ReloadInterval < 0 {
		return fmt.Errorf("cache.reload_interval must not be negative")
	}
	if c.Workflow.CreateRetries < 0 || c.Workflow.ClaimRetries < 0 {
		return fmt.Errorf("workflow retry counts must not be negative")
	}
	return nil
}

// Location resolves the facility time zone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Facility.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("facility.time_zone %q: %w", c.Facility.TimeZone, err)
	}
	return loc, nil
}

// Level maps log.level to a slog level.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level %q: must be debug, info, warn or error", c.Log.Level)
	}
	return l, nil
}

// StoreOptions returns the database settings in the store's terms.
func (c Config) StoreOptions() store.Options {
	return store.Options{
		Driver:      c.Database.Driver,
		DSN:         c.Database.DSN,
		BusyTimeout: time.Duration(c.Database.BusyTimeout),
	}
}
