package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

// TestDefaults verifies all default values are applied when no config file exists.
func TestDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "missing.json")

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Forward.Enabled() {
		t.Errorf("Forward enabled by default with peer %q", cfg.Forward.PeerURL)
	}
	if d, err := cfg.Forward.TimeoutDuration(); err != nil || d != 2*time.Second {
		t.Errorf("Forward.TimeoutDuration() = %v, %v; want 2s", d, err)
	}
	if cfg.Forward.MaxInFlight != 8 {
		t.Errorf("Forward.MaxInFlight = %d, want 8", cfg.Forward.MaxInFlight)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Storage.DataDir == "" {
		t.Error("Storage.DataDir is empty")
	}
}

func TestFileValues(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{
  "server": {"host": "127.0.0.1", "port": 8080},
  "forward": {"peer_url": "http://peer.local:5000", "timeout": "750ms", "max_in_flight": 2},
  "log": {"level": "DEBUG"}
}`)

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := cfg.Server.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Server.Addr() = %q, want %q", got, "127.0.0.1:8080")
	}
	if cfg.Forward.PeerURL != "http://peer.local:5000" {
		t.Errorf("Forward.PeerURL = %q", cfg.Forward.PeerURL)
	}
	if d, _ := cfg.Forward.TimeoutDuration(); d != 750*time.Millisecond {
		t.Errorf("Forward timeout = %v, want 750ms", d)
	}
	if cfg.Forward.MaxInFlight != 2 {
		t.Errorf("Forward.MaxInFlight = %d, want 2", cfg.Forward.MaxInFlight)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want lower-cased %q", cfg.Log.Level, "debug")
	}
}

// TestEnvOverride verifies that environment variables override config file values.
func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{"server": {"port": 8080}}`)

	t.Setenv("RELAYBOT_SERVER_PORT", "9090")
	t.Setenv("RELAYBOT_INGEST_TOKEN", "s3cret")

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.IngestToken != "s3cret" {
		t.Errorf("Server.IngestToken = %q, want %q", cfg.Server.IngestToken, "s3cret")
	}
}

func TestEnvOverride_BadIntKeepsValue(t *testing.T) {
	clearEnv(t)
	t.Setenv("RELAYBOT_SERVER_PORT", "not-a-port")

	cfg, err := loadWith(newFileBackend(filepath.Join(t.TempDir(), "none.json")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want default 5000", cfg.Server.Port)
	}
}

// TestSecretsIgnoredInFile verifies tokens are only taken from the environment.
func TestSecretsIgnoredInFile(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{"server": {"ingest_token": "from-file"}}`)

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.IngestToken != "" {
		t.Errorf("Server.IngestToken = %q, want empty", cfg.Server.IngestToken)
	}
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		file string
	}{
		{"bad peer url", `{"forward": {"peer_url": "not a url"}}`},
		{"port out of range", `{"server": {"port": 70000}}`},
		{"unknown log level", `{"log": {"level": "chatty"}}`},
		{"zero in flight", `{"forward": {"max_in_flight": 0}}`},
		{"fractional port", `{"server": {"port": 50.5}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			if _, err := loadWith(newFileBackend(writeTempConfig(t, tt.file))); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestTimeoutDuration_Invalid(t *testing.T) {
	for _, v := range []string{"soon", "-1s", "0s"} {
		if _, err := (ForwardConfig{Timeout: v}).TimeoutDuration(); err == nil {
			t.Errorf("TimeoutDuration(%q) succeeded, want error", v)
		}
	}
}

func TestSetKeyRoundTrip(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "relaybot", "config.json")

	if err := setKeyWith(newFileBackend(path), "server.port", "6000"); err != nil {
		t.Fatalf("setKeyWith port: %v", err)
	}
	if err := setKeyWith(newFileBackend(path), "forward.peer_url", "http://peer:5000"); err != nil {
		t.Fatalf("setKeyWith peer_url: %v", err)
	}

	cfg, err := loadWith(newFileBackend(path))
	if err != nil {
		t.Fatalf("loadWith: %v", err)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.Forward.PeerURL != "http://peer:5000" {
		t.Errorf("Forward.PeerURL = %q, want %q", cfg.Forward.PeerURL, "http://peer:5000")
	}
}

func TestSetKeyErrors(t *testing.T) {
	b := newFileBackend(filepath.Join(t.TempDir(), "config.json"))

	if err := setKeyWith(b, "server.ingest_token", "x"); err == nil || !strings.Contains(err.Error(), "RELAYBOT_INGEST_TOKEN") {
		t.Errorf("setting secret: err = %v, want hint about env var", err)
	}
	if err := setKeyWith(b, "server.port", "abc"); err == nil {
		t.Error("setting non-integer port succeeded")
	}
	if err := setKeyWith(b, "nope.key", "1"); err == nil {
		t.Error("setting unknown key succeeded")
	}
}

func TestShowAllMasksSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Server.IngestToken = "hunter2"

	for _, info := range ShowAll(cfg) {
		if strings.Contains(info.Value, "hunter2") {
			t.Errorf("ShowAll leaked secret for %s", info.Key)
		}
		if info.Key == "server.ingest_token" && info.Value != "(set)" {
			t.Errorf("server.ingest_token shown as %q, want (set)", info.Value)
		}
	}
}

func TestValidKeysExcludeSecrets(t *testing.T) {
	for _, k := range ValidKeys() {
		if k == "server.ingest_token" || k == "forward.peer_token" {
			t.Errorf("ValidKeys includes secret %q", k)
		}
	}
}
