package config

import (
	"testing"
	"time"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("Addr=%q, want %q", cfg.Addr, ":8080")
	}
	if cfg.Responder != ResponderCanned {
		t.Fatalf("Responder=%q, want %q", cfg.Responder, ResponderCanned)
	}
	if cfg.CloneDelay != 3*time.Second {
		t.Fatalf("CloneDelay=%v, want %v", cfg.CloneDelay, 3*time.Second)
	}
	if cfg.SynthSampleRate != 16000 {
		t.Fatalf("SynthSampleRate=%d, want 16000", cfg.SynthSampleRate)
	}
	if len(cfg.AllowedOrigins) != 0 {
		t.Fatalf("AllowedOrigins=%v, want empty", cfg.AllowedOrigins)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("REPLITONE_ADDR", "127.0.0.1:9090")
	t.Setenv("REPLITONE_CLONE_DELAY", "250ms")
	t.Setenv("REPLITONE_WS_MAX_MESSAGE_BYTES", "1024")
	t.Setenv("REPLITONE_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.Addr != "127.0.0.1:9090" {
		t.Fatalf("Addr=%q", cfg.Addr)
	}
	if cfg.CloneDelay != 250*time.Millisecond {
		t.Fatalf("CloneDelay=%v", cfg.CloneDelay)
	}
	if cfg.WSMaxMessageBytes != 1024 {
		t.Fatalf("WSMaxMessageBytes=%d", cfg.WSMaxMessageBytes)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("AllowedOrigins=%v, want 2 entries", cfg.AllowedOrigins)
	}
}

func TestLoadFromEnvMalformedFallsBack(t *testing.T) {
	t.Setenv("REPLITONE_WS_PING_INTERVAL", "not-a-duration")
	t.Setenv("REPLITONE_SYNTH_SAMPLE_RATE", "abc")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.WSPingInterval != 20*time.Second {
		t.Fatalf("WSPingInterval=%v, want default", cfg.WSPingInterval)
	}
	if cfg.SynthSampleRate != 16000 {
		t.Fatalf("SynthSampleRate=%d, want default", cfg.SynthSampleRate)
	}
}

func TestLoadFromEnvRejectsUnknownResponder(t *testing.T) {
	t.Setenv("REPLITONE_RESPONDER", "psychic")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error for unknown responder")
	}
}

func TestLoadFromEnvRequiresAPIKey(t *testing.T) {
	t.Setenv("REPLITONE_RESPONDER", "gemini")
	if _, err := LoadFromEnv(); err == nil {
		t.Fatal("expected error for missing API key")
	}
	t.Setenv("REPLITONE_RESPONDER_API_KEY", "k-123")
	if _, err := LoadFromEnv(); err != nil {
		t.Fatalf("LoadFromEnv with key: %v", err)
	}
}

func TestOriginAllowed(t *testing.T) {
	open := Config{AllowedOrigins: map[string]struct{}{}}
	if !open.OriginAllowed("https://anything.example") {
		t.Fatal("empty allowlist should allow any origin")
	}

	closed := Config{AllowedOrigins: map[string]struct{}{"https://a.example": {}}}
	if !closed.OriginAllowed("https://a.example") {
		t.Fatal("listed origin rejected")
	}
	if closed.OriginAllowed("https://b.example") {
		t.Fatal("unlisted origin allowed")
	}
}
