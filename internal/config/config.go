package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rogersnm/fieldsync/internal/logger"
	"github.com/rogersnm/fieldsync/internal/media"
	"gopkg.in/yaml.v3"
)

const (
	FileName    = "config.yaml"
	EnvFileName = ".env"

	DefaultAPIURL = "https://api.fieldsync.dev/v1"
	DefaultListen = "127.0.0.1:7420"
)

// Environment variables that override the config file.
const (
	EnvAPIURL      = "FIELDSYNC_API_URL"
	EnvToken       = "FIELDSYNC_TOKEN"
	EnvAssetBucket = "FIELDSYNC_ASSET_BUCKET"
	EnvLogLevel    = "FIELDSYNC_LOG_LEVEL"
	EnvLogFormat   = "FIELDSYNC_LOG_FORMAT"
	EnvListen      = "FIELDSYNC_LISTEN"
)

type Config struct {
	DefaultProject string        `yaml:"default_project,omitempty"`
	API            APIConfig     `yaml:"api,omitempty"`
	Media          media.Options `yaml:"media,omitempty"`
	Sync           SyncConfig    `yaml:"sync,omitempty"`
	Log            LogConfig     `yaml:"log,omitempty"`
	Listen         string        `yaml:"listen,omitempty" validate:"required,hostname_port"`
}

type APIConfig struct {
	URL         string   `yaml:"url,omitempty" validate:"required,url"`
	Token       string   `yaml:"token,omitempty"`
	AssetBucket string   `yaml:"asset_bucket,omitempty"`
	Timeout     Duration `yaml:"timeout,omitempty" validate:"gt=0"`
}

type SyncConfig struct {
	FallbackInterval Duration `yaml:"fallback_interval,omitempty" validate:"gt=0"`
	ProbeInterval    Duration `yaml:"probe_interval,omitempty" validate:"gt=0"`
	CacheSize        int      `yaml:"cache_size,omitempty" validate:"gt=0"`
	CacheTTL         Duration `yaml:"cache_ttl,omitempty" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `yaml:"level,omitempty" validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN ERROR"`
	Format string `yaml:"format,omitempty" validate:"omitempty,oneof=text json"`
}

// Duration reads and writes as a Go duration string such as "60s".
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := parseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}

// LoadFile reads config.yaml alone. A missing file is an empty config.
func LoadFile(dataDir string) (*Config, error) {
	path := filepath.Join(dataDir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

// Load reads config.yaml, overlays <dataDir>/.env and then the process
// environment, and fills in defaults.
func Load(dataDir string) (*Config, error) {
	cfg, err := LoadFile(dataDir)
	if err != nil {
		return nil, err
	}

	env, err := godotenv.Read(filepath.Join(dataDir, EnvFileName))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", EnvFileName, err)
		}
		env = map[string]string{}
	}
	lookup := func(key string) (string, bool) {
		if v := os.Getenv(key); v != "" {
			return v, true
		}
		v, ok := env[key]
		return v, ok
	}

	overlay := map[string]*string{
		EnvAPIURL:      &cfg.API.URL,
		EnvToken:       &cfg.API.Token,
		EnvAssetBucket: &cfg.API.AssetBucket,
		EnvLogLevel:    &cfg.Log.Level,
		EnvLogFormat:   &cfg.Log.Format,
		EnvListen:      &cfg.Listen,
	}
	for key, dst := range overlay {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.API.URL == "" {
		c.API.URL = DefaultAPIURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = Duration(30 * time.Second)
	}
	if c.Media == (media.Options{}) {
		c.Media = media.DefaultOptions
	}
	if c.Sync.FallbackInterval == 0 {
		c.Sync.FallbackInterval = Duration(60 * time.Second)
	}
	if c.Sync.ProbeInterval == 0 {
		c.Sync.ProbeInterval = Duration(15 * time.Second)
	}
	if c.Sync.CacheSize == 0 {
		c.Sync.CacheSize = 32
	}
	if c.Sync.CacheTTL == 0 {
		c.Sync.CacheTTL = Duration(10 * time.Minute)
	}
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a loaded config.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Logger turns the log section into a logger config.
func (c *Config) Logger(version string) logger.Config {
	lc := logger.DefaultConfig()
	if c.Log.Level != "" {
		lc.Level = c.Log.Level
	}
	if c.Log.Format != "" {
		lc.Format = c.Log.Format
	}
	lc.Version = version
	return lc
}

func Save(dataDir string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	path := filepath.Join(dataDir, FileName)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}
