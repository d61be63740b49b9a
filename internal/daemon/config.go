package daemon

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all avatargw configuration. It is read once at startup.
type Config struct {
	API       APIConfig       `toml:"api"`
	Upstream  UpstreamConfig  `toml:"upstream"`
	Polling   PollingConfig   `toml:"polling"`
	Locale    LocaleConfig    `toml:"locale"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

type APIConfig struct {
	Host           string        `toml:"host" validate:"required"`
	Port           int           `toml:"port" validate:"min=1,max=65535"`
	CORSOrigins    []string      `toml:"cors_origins"`
	RequestTimeout time.Duration `toml:"request_timeout" validate:"gte=0"`
}

type UpstreamConfig struct {
	BaseURL        string        `toml:"base_url" validate:"required,url"`
	AuthPath       string        `toml:"auth_path"`
	DefaultTimeout time.Duration `toml:"default_timeout" validate:"gte=0"`
	TTSTimeout     time.Duration `toml:"tts_timeout" validate:"gte=0"`
}

type PollingConfig struct {
	Interval    time.Duration `toml:"interval" validate:"gt=0"`
	MaxAttempts uint64        `toml:"max_attempts" validate:"gt=0"`
	MaxElapsed  time.Duration `toml:"max_elapsed" validate:"gt=0"`
}

type LocaleConfig struct {
	Default   string   `toml:"default" validate:"required"`
	Supported []string `toml:"supported" validate:"min=1"`
}

type LoggingConfig struct {
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	Format string `toml:"format" validate:"oneof=text json"`
}

type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns sensible defaults. The upstream base URL has no
// default and must come from the file or AVATARGW_BASE_URL.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8787,
			CORSOrigins:    []string{"*"},
			RequestTimeout: 10 * time.Minute,
		},
		Upstream: UpstreamConfig{
			AuthPath:       "/",
			DefaultTimeout: 60 * time.Second,
			TTSTimeout:     300 * time.Second,
		},
		Polling: PollingConfig{
			Interval:    500 * time.Millisecond,
			MaxAttempts: 600,
			MaxElapsed:  5 * time.Minute,
		},
		Locale: LocaleConfig{
			Default:   "en",
			Supported: []string{"en", "zh"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Prometheus: true,
		},
	}
}

// LoadConfig loads .env files, then ~/.avatargw/config.toml over the
// defaults, then environment overrides. A missing file is not an error.
func LoadConfig() (Config, error) {
	loadDotEnv(".env")
	loadDotEnv(filepath.Join(Home(), ".env"))

	cfg := DefaultConfig()
	path := filepath.Join(Home(), "config.toml")
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.applyEnv()
	return cfg, nil
}

// loadDotEnv loads one .env file if it exists. Variables already set in
// the environment win.
func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

// applyEnv overrides file settings with AVATARGW_* variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("AVATARGW_BASE_URL"); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := os.Getenv("AVATARGW_AUTH_PATH"); v != "" {
		c.Upstream.AuthPath = v
	}
	if v := os.Getenv("AVATARGW_LOCALES"); v != "" {
		var locales []string
		for _, l := range strings.Split(v, ",") {
			if l = strings.TrimSpace(l); l != "" {
				locales = append(locales, l)
			}
		}
		if len(locales) > 0 {
			c.Locale.Supported = locales
		}
	}
	if v := os.Getenv("AVATARGW_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
}

// Validate checks the settings the daemon needs to start.
func (c Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q", fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SaveConfig writes config to ~/.avatargw/config.toml.
func SaveConfig(cfg Config) error {
	dir := Home()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.Create(filepath.Join(dir, "config.toml"))
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// Home returns the avatargw state directory, honoring AVATARGW_HOME.
func Home() string {
	if h := os.Getenv("AVATARGW_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".avatargw"
	}
	return filepath.Join(home, ".avatargw")
}
