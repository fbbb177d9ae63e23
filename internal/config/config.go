package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Forward ForwardConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host        string `validate:"omitempty,hostname_rfc1123|ip"`
	Port        int    `validate:"min=1,max=65535"`
	IngestToken string // optional; when set, ingest requires a bearer token
}

type StorageConfig struct {
	DataDir string `validate:"required"`
}

type ForwardConfig struct {
	PeerURL     string `validate:"omitempty,http_url"` // empty disables forwarding
	Timeout     string `validate:"required"`
	MaxInFlight int    `validate:"min=1,max=1024"`
	PeerToken   string
}

type LogConfig struct {
	Level string `validate:"oneof=debug info warn error"`
	File  string // empty logs to stderr
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Enabled reports whether a peer is configured.
func (f ForwardConfig) Enabled() bool {
	return f.PeerURL != ""
}

// TimeoutDuration parses Timeout.
func (f ForwardConfig) TimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(f.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parsing forward timeout %q: %w", f.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("forward timeout %q must be positive", f.Timeout)
	}
	return d, nil
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5000,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Forward: ForwardConfig{
			Timeout:     "2s",
			MaxInFlight: 8,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the config file ($XDG_CONFIG_HOME/relaybot/config.json,
// or $RELAYBOT_CONFIG), then applies RELAYBOT_* environment overrides.
// Secrets (tokens) are read from the environment only.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)

	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
