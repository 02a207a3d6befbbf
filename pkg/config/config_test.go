package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		FileEnv, "LISTEN_ADDR", "PORT", "SIGNAL_PORT", "ALLOWED_ORIGINS", "OUTBOX_SIZE",
		"LOG_LEVEL", "LOG_FORMAT", "SIGNAL_URL", "STUN_SERVERS", "TURN_SERVERS",
		"TURN_USERNAME", "TURN_PASSWORD", "TURN_ONLY", "POS_INTERVAL", "RECONNECT_DELAY",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadServerDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer: %v", err)
	}
	if cfg.Port != DefaultPort {
		t.Fatalf("port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.Address() != ":4001" {
		t.Fatalf("address = %q", cfg.Address())
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
	if cfg.OutboxSize != DefaultOutboxSize {
		t.Fatalf("outbox = %d", cfg.OutboxSize)
	}
}

func TestLoadServerPortPriority(t *testing.T) {
	tests := []struct {
		name       string
		port       string
		signalPort string
		want       int
	}{
		{"default", "", "", 4001},
		{"signal port", "", "5000", 5000},
		{"port wins", "6000", "5000", 6000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("PORT", tt.port)
			t.Setenv("SIGNAL_PORT", tt.signalPort)

			cfg, err := LoadServer()
			if err != nil {
				t.Fatalf("LoadServer: %v", err)
			}
			if cfg.Port != tt.want {
				t.Fatalf("port = %d, want %d", cfg.Port, tt.want)
			}
		})
	}
}

func TestLoadServerRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "abc")
	if _, err := LoadServer(); err == nil {
		t.Fatal("expected error for non-numeric port")
	}

	clearEnv(t)
	t.Setenv("OUTBOX_SIZE", "0")
	if _, err := LoadServer(); err == nil {
		t.Fatal("expected error for zero outbox")
	}
}

func TestLoadServerFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "roomlink.yaml")
	data := []byte("server:\n  listen_addr: 127.0.0.1\n  port: 7000\n  allowed_origins:\n    - https://example.com\n")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(FileEnv, path)
	t.Setenv("ALLOWED_ORIGINS", "https://a.test, https://b.test")

	cfg, err := LoadServer()
	if err != nil {
		t.Fatalf("LoadServer: %v", err)
	}
	if cfg.Address() != "127.0.0.1:7000" {
		t.Fatalf("address = %q", cfg.Address())
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.test" {
		t.Fatalf("origins = %v", cfg.AllowedOrigins)
	}
}

func TestLoadClient(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadClient()
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if cfg.SignalURL != DefaultSignalURL {
		t.Fatalf("url = %q", cfg.SignalURL)
	}
	if len(cfg.STUNServers) != 2 {
		t.Fatalf("stun = %v", cfg.STUNServers)
	}
	if cfg.PosInterval != 100*time.Millisecond {
		t.Fatalf("interval = %v", cfg.PosInterval)
	}

	t.Setenv("POS_INTERVAL", "250")
	t.Setenv("RECONNECT_DELAY", "5s")
	t.Setenv("TURN_SERVERS", "turn:turn.example.com:3478")
	t.Setenv("TURN_ONLY", "yes")
	cfg, err = LoadClient()
	if err != nil {
		t.Fatalf("LoadClient: %v", err)
	}
	if cfg.PosInterval != 250*time.Millisecond || cfg.ReconnectDelay != 5*time.Second {
		t.Fatalf("durations = %v %v", cfg.PosInterval, cfg.ReconnectDelay)
	}
	if !cfg.TURNOnly || len(cfg.TURNServers) != 1 {
		t.Fatalf("turn = %v %v", cfg.TURNOnly, cfg.TURNServers)
	}
}

func TestClientValidate(t *testing.T) {
	clearEnv(t)
	t.Setenv("TURN_ONLY", "true")
	if _, err := LoadClient(); err == nil {
		t.Fatal("expected error for TURN only without servers")
	}

	clearEnv(t)
	t.Setenv("POS_INTERVAL", "nope")
	if _, err := LoadClient(); err == nil {
		t.Fatal("expected error for bad interval")
	}
}
