// Package config provides centralized configuration for the force server and CLI.
// Values come from built-in defaults, then an optional TOML file, then
// environment variables (including a .env.local file), each layer overriding
// the one before.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// scheduleParser accepts the same 5-field expressions as the digest.
var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// DefaultFile is read when FORCE_CONFIG is unset and the file exists.
const DefaultFile = "force.toml"

// Config holds all server configuration values.
type Config struct {
	// Port is the HTTP server listen port.
	Port string

	// DBPath is the path to the SQLite database file.
	DBPath string

	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// LogFormat is "auto" (text on a terminal, JSON otherwise), "text" or "json".
	LogFormat string

	// CORSOrigin is the allowed CORS origin. Defaults to "*".
	CORSOrigin string

	// SweepInterval is the polling interval for the block sweeper.
	SweepInterval time.Duration

	// BlockDuration is how long a block may run before it is force-ended.
	BlockDuration time.Duration

	// Timezone names the location whose Sunday midnight starts a week.
	Timezone string

	// DigestSchedule is the 5-field cron expression of the weekly digest.
	DigestSchedule string

	// CheckpointPct is the completion percentage required at the checkpoint.
	CheckpointPct float64
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port:           "8080",
		DBPath:         "force.db",
		LogLevel:       "info",
		LogFormat:      "auto",
		CORSOrigin:     "*",
		SweepInterval:  15 * time.Second,
		BlockDuration:  30 * time.Minute,
		Timezone:       "Local",
		DigestSchedule: "0 0 * * 0",
		CheckpointPct:  50,
	}
}

// Load builds the configuration. path names a TOML file that must exist; an
// empty path uses FORCE_CONFIG, or DefaultFile when present.
func Load(path string) (Config, error) {
	loadEnvFile(".env.local")

	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = os.Getenv("FORCE_CONFIG")
		explicit = path != ""
	}
	if path == "" {
		path = DefaultFile
	}
	if err := cfg.loadFile(path, explicit); err != nil {
		return Config{}, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// fileConfig mirrors Config in the TOML file. Durations are strings such as "15s".
type fileConfig struct {
	Port           string  `toml:"port"`
	DBPath         string  `toml:"db_path"`
	LogLevel       string  `toml:"log_level"`
	LogFormat      string  `toml:"log_format"`
	CORSOrigin     string  `toml:"cors_origin"`
	SweepInterval  string  `toml:"sweep_interval"`
	BlockDuration  string  `toml:"block_duration"`
	Timezone       string  `toml:"timezone"`
	DigestSchedule string  `toml:"digest_schedule"`
	CheckpointPct  float64 `toml:"checkpoint_required_pct"`
}

func (c *Config) loadFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !required {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var f fileConfig
	if err := toml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&c.Port, f.Port)
	setString(&c.DBPath, f.DBPath)
	setString(&c.LogLevel, f.LogLevel)
	setString(&c.LogFormat, f.LogFormat)
	setString(&c.CORSOrigin, f.CORSOrigin)
	setString(&c.Timezone, f.Timezone)
	setString(&c.DigestSchedule, f.DigestSchedule)
	if f.CheckpointPct != 0 {
		c.CheckpointPct = f.CheckpointPct
	}
	if err := setDuration(&c.SweepInterval, "sweep_interval", f.SweepInterval); err != nil {
		return err
	}
	return setDuration(&c.BlockDuration, "block_duration", f.BlockDuration)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key, v string) error {
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func (c *Config) applyEnv() {
	c.Port = envOr("PORT", c.Port)
	c.DBPath = envOr("DB_PATH", c.DBPath)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)
	c.LogFormat = envOr("LOG_FORMAT", c.LogFormat)
	c.CORSOrigin = envOr("CORS_ORIGIN", c.CORSOrigin)
	c.SweepInterval = envDuration("SWEEP_INTERVAL", c.SweepInterval)
	c.BlockDuration = envDuration("BLOCK_DURATION", c.BlockDuration)
	c.Timezone = envOr("TIMEZONE", c.Timezone)
	c.DigestSchedule = envOr("DIGEST_SCHEDULE", c.DigestSchedule)
	c.CheckpointPct = envFloat("CHECKPOINT_REQUIRED_PCT", c.CheckpointPct)
}

// Validate rejects values the engine cannot run with.
func (c Config) Validate() error {
	if c.BlockDuration <= 0 {
		return fmt.Errorf("block_duration must be positive, got %v", c.BlockDuration)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive, got %v", c.SweepInterval)
	}
	if c.CheckpointPct <= 0 || c.CheckpointPct > 100 {
		return fmt.Errorf("checkpoint_required_pct must be in (0, 100], got %v", c.CheckpointPct)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := scheduleParser.Parse(c.DigestSchedule); err != nil {
		return fmt.Errorf("digest_schedule %q: %w", c.DigestSchedule, err)
	}
	switch c.LogFormat {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("log_format must be auto, text or json, got %q", c.LogFormat)
	}
	return nil
}

// Location resolves Timezone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SlogLevel parses LogLevel, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// loadEnvFile sets variables from a KEY=VALUE file. Variables already present
// in the environment win. A missing file is ignored.
func loadEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if len(value) >= 2 && (value[0] == '"' || value[0] == '\'') && value[len(value)-1] == value[0] {
			value = value[1 : len(value)-1]
		}
		if _, set := os.LookupEnv(key); !set {
			os.Setenv(key, value)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return n
}
