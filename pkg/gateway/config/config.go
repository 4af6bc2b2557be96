// Package config holds the gateway configuration, loaded from environment
// variables with sane demo defaults.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ResponderKind selects the reply-generation backend.
type ResponderKind string

const (
	ResponderCanned ResponderKind = "canned"
	ResponderHTTP   ResponderKind = "http"
	ResponderGemini ResponderKind = "gemini"
)

type Config struct {
	Addr string

	ReadHeaderTimeout   time.Duration
	ShutdownGracePeriod time.Duration

	// Live websocket session limits.
	WSMaxMessageBytes  int64
	WSHandshakeTimeout time.Duration
	WSPingInterval     time.Duration
	WSWriteTimeout     time.Duration
	WSMaxSessionTime   time.Duration

	// Origin allowlist for websocket upgrades; empty allows any origin
	// (demo default).
	AllowedOrigins map[string]struct{}

	// Conversation behavior.
	Responder        ResponderKind
	ResponderAPIKey  string
	ResponderModel   string
	ResponderBaseURL string
	ResponderSeed    int64
	AutoPlayDelay    time.Duration

	// Voice pipeline.
	SynthSampleRate int
	SynthLatency    time.Duration
	CloneDelay      time.Duration
}

// LoadFromEnv builds the config from REPLITONE_* environment variables.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                envOr("REPLITONE_ADDR", ":8080"),
		ReadHeaderTimeout:   envDurationOr("REPLITONE_READ_HEADER_TIMEOUT", 10*time.Second),
		ShutdownGracePeriod: envDurationOr("REPLITONE_SHUTDOWN_GRACE_PERIOD", 15*time.Second),
		WSMaxMessageBytes:   envInt64Or("REPLITONE_WS_MAX_MESSAGE_BYTES", 8<<20),
		WSHandshakeTimeout:  envDurationOr("REPLITONE_WS_HANDSHAKE_TIMEOUT", 5*time.Second),
		WSPingInterval:      envDurationOr("REPLITONE_WS_PING_INTERVAL", 20*time.Second),
		WSWriteTimeout:      envDurationOr("REPLITONE_WS_WRITE_TIMEOUT", 5*time.Second),
		WSMaxSessionTime:    envDurationOr("REPLITONE_WS_MAX_SESSION_DURATION", 2*time.Hour),
		AllowedOrigins:      make(map[string]struct{}),
		Responder:           ResponderKind(envOr("REPLITONE_RESPONDER", string(ResponderCanned))),
		ResponderAPIKey:     os.Getenv("REPLITONE_RESPONDER_API_KEY"),
		ResponderModel:      os.Getenv("REPLITONE_RESPONDER_MODEL"),
		ResponderBaseURL:    os.Getenv("REPLITONE_RESPONDER_BASE_URL"),
		ResponderSeed:       envInt64Or("REPLITONE_RESPONDER_SEED", time.Now().UnixNano()),
		AutoPlayDelay:       envDurationOr("REPLITONE_AUTOPLAY_DELAY", 300*time.Millisecond),
		SynthSampleRate:     envIntOr("REPLITONE_SYNTH_SAMPLE_RATE", 16000),
		SynthLatency:        envDurationOr("REPLITONE_SYNTH_LATENCY", 150*time.Millisecond),
		CloneDelay:          envDurationOr("REPLITONE_CLONE_DELAY", 3*time.Second),
	}

	switch cfg.Responder {
	case ResponderCanned, ResponderHTTP, ResponderGemini:
	default:
		return Config{}, fmt.Errorf("REPLITONE_RESPONDER must be one of canned|http|gemini")
	}
	if cfg.Responder != ResponderCanned && strings.TrimSpace(cfg.ResponderAPIKey) == "" {
		return Config{}, fmt.Errorf("REPLITONE_RESPONDER_API_KEY is required for the %s responder", cfg.Responder)
	}
	if cfg.SynthSampleRate <= 0 {
		return Config{}, fmt.Errorf("REPLITONE_SYNTH_SAMPLE_RATE must be positive")
	}

	for _, origin := range splitCSV(os.Getenv("REPLITONE_ALLOWED_ORIGINS")) {
		cfg.AllowedOrigins[origin] = struct{}{}
	}

	return cfg, nil
}

// OriginAllowed reports whether a websocket upgrade from origin is permitted.
func (c Config) OriginAllowed(origin string) bool {
	if len(c.AllowedOrigins) == 0 {
		return true
	}
	_, ok := c.AllowedOrigins[strings.TrimSpace(origin)]
	return ok
}

func envOr(key, def string) string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	return raw
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
