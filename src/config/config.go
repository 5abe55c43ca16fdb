// Package config loads wifibench settings from an optional YAML file, an optional .env file
// and WIFIBENCH_* environment variables, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when --config is not given. A missing default file is not an error.
const DefaultPath = "wifibench.yaml"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WIFIBENCH_"

type Logging struct {
	Level string `yaml:"level" validate:"oneof=debug info warn warning error"`
	JSON  bool   `yaml:"json"`
}

type Analysis struct {
	GapThreshold          time.Duration `yaml:"gap_threshold" validate:"gt=0"`
	LegacyPrefix          string        `yaml:"legacy_prefix" validate:"required"`
	DisplayUTCOffsetHours int           `yaml:"display_utc_offset_hours" validate:"gte=-12,lte=14"`
}

// Location returns the display zone described by DisplayUTCOffsetHours.
func (a Analysis) Location() *time.Location {
	if a.DisplayUTCOffsetHours == 9 {
		return time.FixedZone("JST", 9*3600)
	}
	return time.FixedZone(fmt.Sprintf("UTC%+d", a.DisplayUTCOffsetHours), a.DisplayUTCOffsetHours*3600)
}

type Collect struct {
	SSIDs          []string      `yaml:"ssids" validate:"dive,required"`
	Count          int           `yaml:"count" validate:"gte=1"`
	Interval       time.Duration `yaml:"interval" validate:"gte=0"` // settle time after a switch
	Interface      string        `yaml:"interface" validate:"required"`
	SwitchAttempts uint          `yaml:"switch_attempts" validate:"gte=1"`
}

type S3 struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint" validate:"required_if=Enabled true"`
	Bucket    string `yaml:"bucket" validate:"required_if=Enabled true"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type Influx struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url" validate:"required_if=Enabled true"`
	Token   string `yaml:"token"`
	Org     string `yaml:"org" validate:"required_if=Enabled true"`
	Bucket  string `yaml:"bucket" validate:"required_if=Enabled true"`
}

type Export struct {
	OutDir     string `yaml:"out_dir" validate:"required"`
	SQLitePath string `yaml:"sqlite_path"`
	S3         S3     `yaml:"s3"`
	Influx     Influx `yaml:"influx"`
}

type Validate struct {
	MapPath string `yaml:"map_path" validate:"required"`
}

type Serve struct {
	Addr string `yaml:"addr" validate:"required"`
}

type Metrics struct {
	Textfile string `yaml:"textfile"`
}

// Config is the complete settings tree.
type Config struct {
	LogPath    string   `yaml:"log_path" validate:"required"`
	Logging    Logging  `yaml:"logging"`
	Analysis   Analysis `yaml:"analysis"`
	Collect    Collect  `yaml:"collect"`
	Export     Export   `yaml:"export"`
	Validation Validate `yaml:"validate"`
	Serve      Serve    `yaml:"serve"`
	Metrics    Metrics  `yaml:"metrics"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	return &Config{
		LogPath: "logs/wifi_bench.jsonl",
		Logging: Logging{Level: "info"},
		Analysis: Analysis{
			GapThreshold:          300 * time.Second,
			LegacyPrefix:          "LEGACY_",
			DisplayUTCOffsetHours: 9,
		},
		Collect: Collect{
			Count:          3,
			Interval:       10 * time.Second,
			Interface:      "en0",
			SwitchAttempts: 1,
		},
		Export:     Export{OutDir: "charts"},
		Validation: Validate{MapPath: "ssid_band_map.json"},
		Serve:      Serve{Addr: ":8080"},
	}
}

var validate = validator.New()

// Load builds the configuration. path may be empty, in which case DefaultPath is tried.
// envFile names a dotenv file to load into the process environment first; a missing one is
// ignored.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// optional
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
		return nil
	}
	str("LOG_PATH", &c.LogPath)
	str("LOG_LEVEL", &c.Logging.Level)
	str("OUT_DIR", &c.Export.OutDir)
	str("SQLITE_PATH", &c.Export.SQLitePath)
	str("S3_ENDPOINT", &c.Export.S3.Endpoint)
	str("S3_BUCKET", &c.Export.S3.Bucket)
	str("S3_ACCESS_KEY", &c.Export.S3.AccessKey)
	str("S3_SECRET_KEY", &c.Export.S3.SecretKey)
	str("INFLUX_URL", &c.Export.Influx.URL)
	str("INFLUX_TOKEN", &c.Export.Influx.Token)
	str("INFLUX_ORG", &c.Export.Influx.Org)
	str("INFLUX_BUCKET", &c.Export.Influx.Bucket)
	str("SERVE_ADDR", &c.Serve.Addr)
	str("INTERFACE", &c.Collect.Interface)
	if err := boolean("LOG_JSON", &c.Logging.JSON); err != nil {
		return err
	}
	if v, ok := lookup(EnvPrefix + "GAP_THRESHOLD"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sGAP_THRESHOLD: %w", EnvPrefix, err)
		}
		c.Analysis.GapThreshold = d
	}
	if v, ok := lookup(EnvPrefix + "SSIDS"); ok && v != "" {
		c.Collect.SSIDs = splitList(v)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
