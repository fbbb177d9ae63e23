package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "RELAYBOT_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "RELAYBOT_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.ingest_token", typ: kString, env: "RELAYBOT_INGEST_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.IngestToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.IngestToken },
	},
	{
		key: "storage.data_dir", typ: kString, env: "RELAYBOT_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "forward.peer_url", typ: kString, env: "RELAYBOT_FORWARD_PEER_URL",
		apply:   func(cfg *Config, v any) { cfg.Forward.PeerURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Forward.PeerURL },
	},
	{
		key: "forward.timeout", typ: kString, env: "RELAYBOT_FORWARD_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Forward.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Forward.Timeout },
	},
	{
		key: "forward.max_in_flight", typ: kInt, env: "RELAYBOT_FORWARD_MAX_IN_FLIGHT",
		apply:   func(cfg *Config, v any) { cfg.Forward.MaxInFlight = v.(int) },
		extract: func(cfg Config) any { return cfg.Forward.MaxInFlight },
	},
	{
		key: "forward.peer_token", typ: kString, env: "RELAYBOT_FORWARD_PEER_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Forward.PeerToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Forward.PeerToken },
	},
	{
		key: "log.level", typ: kString, env: "RELAYBOT_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "log.file", typ: kString, env: "RELAYBOT_LOG_FILE",
		apply:   func(cfg *Config, v any) { cfg.Log.File = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.File },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
