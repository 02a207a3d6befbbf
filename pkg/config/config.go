// Package config loads relay server and client configuration.
//
// Values are resolved as defaults, then an optional YAML file named by
// ROOMLINK_CONFIG, then environment variables. The client CLI applies its
// flags on top of the result.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultPort           = 4001
	DefaultOutboxSize     = 256
	DefaultSignalURL      = "ws://localhost:4001/ws"
	DefaultPosInterval    = 100 * time.Millisecond
	DefaultReconnectDelay = 2 * time.Second
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"

	FileEnv = "ROOMLINK_CONFIG"
)

var DefaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:global.stun.twilio.com:3478",
}

// Server holds relay server settings.
type Server struct {
	ListenAddr     string   `yaml:"listen_addr"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"` // browser origins; requests without Origin always pass
	OutboxSize     int      `yaml:"outbox_size"`
	LogLevel       string   `yaml:"log_level"`
	LogFormat      string   `yaml:"log_format"`
}

// Client holds settings for the room client and its peer connections.
type Client struct {
	SignalURL      string        `yaml:"signal_url"`
	STUNServers    []string      `yaml:"stun_servers"`
	TURNServers    []string      `yaml:"turn_servers"`
	TURNUsername   string        `yaml:"turn_username"`
	TURNPassword   string        `yaml:"turn_password"`
	TURNOnly       bool          `yaml:"turn_only"`
	PosInterval    time.Duration `yaml:"pos_interval"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
}

type file struct {
	Server Server `yaml:"server"`
	Client Client `yaml:"client"`
}

// Address returns the host:port the server listens on.
func (c Server) Address() string {
	return net.JoinHostPort(c.ListenAddr, strconv.Itoa(c.Port))
}

// LoadServer resolves the server configuration.
func LoadServer() (Server, error) {
	cfg := Server{
		Port:           DefaultPort,
		AllowedOrigins: []string{"*"},
		OutboxSize:     DefaultOutboxSize,
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
	}

	f, err := loadFile(os.Getenv(FileEnv))
	if err != nil {
		return Server{}, err
	}
	mergeServer(&cfg, f.Server)

	cfg.ListenAddr = envString("LISTEN_ADDR", cfg.ListenAddr)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envString("LOG_FORMAT", cfg.LogFormat)
	cfg.AllowedOrigins = envList("ALLOWED_ORIGINS", cfg.AllowedOrigins)

	// PORT wins over SIGNAL_PORT.
	port, err := envInt("SIGNAL_PORT", cfg.Port)
	if err != nil {
		return Server{}, err
	}
	port, err = envInt("PORT", port)
	if err != nil {
		return Server{}, err
	}
	if port <= 0 || port > 65535 {
		return Server{}, fmt.Errorf("port must be 1-65535, got %d", port)
	}
	cfg.Port = port

	outbox, err := envInt("OUTBOX_SIZE", cfg.OutboxSize)
	if err != nil {
		return Server{}, err
	}
	if outbox <= 0 {
		return Server{}, errors.New("OUTBOX_SIZE must be > 0")
	}
	cfg.OutboxSize = outbox

	return cfg, nil
}

// LoadClient resolves the client configuration.
func LoadClient() (Client, error) {
	cfg := Client{
		SignalURL:      DefaultSignalURL,
		STUNServers:    append([]string(nil), DefaultSTUNServers...),
		PosInterval:    DefaultPosInterval,
		ReconnectDelay: DefaultReconnectDelay,
		LogLevel:       DefaultLogLevel,
		LogFormat:      DefaultLogFormat,
	}

	f, err := loadFile(os.Getenv(FileEnv))
	if err != nil {
		return Client{}, err
	}
	mergeClient(&cfg, f.Client)

	cfg.SignalURL = envString("SIGNAL_URL", cfg.SignalURL)
	cfg.STUNServers = envList("STUN_SERVERS", cfg.STUNServers)
	cfg.TURNServers = envList("TURN_SERVERS", cfg.TURNServers)
	cfg.TURNUsername = envString("TURN_USERNAME", cfg.TURNUsername)
	cfg.TURNPassword = envString("TURN_PASSWORD", cfg.TURNPassword)
	cfg.TURNOnly = envBool("TURN_ONLY", cfg.TURNOnly)
	cfg.LogLevel = envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envString("LOG_FORMAT", cfg.LogFormat)

	if cfg.PosInterval, err = envDuration("POS_INTERVAL", cfg.PosInterval); err != nil {
		return Client{}, err
	}
	if cfg.ReconnectDelay, err = envDuration("RECONNECT_DELAY", cfg.ReconnectDelay); err != nil {
		return Client{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Client{}, err
	}
	return cfg, nil
}

// Validate checks values that flags may have changed after loading.
func (c Client) Validate() error {
	if c.SignalURL == "" {
		return errors.New("signal URL is required")
	}
	if c.PosInterval <= 0 {
		return errors.New("position interval must be > 0")
	}
	if c.ReconnectDelay < 0 {
		return errors.New("reconnect delay must be >= 0")
	}
	if c.TURNOnly && len(c.TURNServers) == 0 {
		return errors.New("TURN only mode needs at least one TURN server")
	}
	return nil
}

// loadFile reads the optional YAML file. An empty path means no file.
func loadFile(path string) (file, error) {
	var f file
	if path == "" {
		return f, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return f, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return f, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return f, nil
}

func mergeServer(dst *Server, src Server) {
	if src.ListenAddr != "" {
		dst.ListenAddr = src.ListenAddr
	}
	if src.Port != 0 {
		dst.Port = src.Port
	}
	if len(src.AllowedOrigins) > 0 {
		dst.AllowedOrigins = src.AllowedOrigins
	}
	if src.OutboxSize != 0 {
		dst.OutboxSize = src.OutboxSize
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogFormat != "" {
		dst.LogFormat = src.LogFormat
	}
}

func mergeClient(dst *Client, src Client) {
	if src.SignalURL != "" {
		dst.SignalURL = src.SignalURL
	}
	if len(src.STUNServers) > 0 {
		dst.STUNServers = src.STUNServers
	}
	if len(src.TURNServers) > 0 {
		dst.TURNServers = src.TURNServers
	}
	if src.TURNUsername != "" {
		dst.TURNUsername = src.TURNUsername
	}
	if src.TURNPassword != "" {
		dst.TURNPassword = src.TURNPassword
	}
	if src.TURNOnly {
		dst.TURNOnly = true
	}
	if src.PosInterval != 0 {
		dst.PosInterval = src.PosInterval
	}
	if src.ReconnectDelay != 0 {
		dst.ReconnectDelay = src.ReconnectDelay
	}
	if src.LogLevel != "" {
		dst.LogLevel = src.LogLevel
	}
	if src.LogFormat != "" {
		dst.LogFormat = src.LogFormat
	}
}

// envString returns an env override when present, otherwise a default.
func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envList splits a comma separated env override.
func envList(key string, def []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// envInt returns an int env override when present, otherwise a default.
func envInt(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, nil
}

// envDuration accepts Go durations ("250ms") or plain milliseconds ("250").
func envDuration(key string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	if ms, err := strconv.Atoi(raw); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return value, nil
}

// envBool returns a bool env override when present, otherwise a default.
func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	switch strings.ToLower(raw) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
