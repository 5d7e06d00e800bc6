package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ALLOWED_ORIGINS", "ICE_SERVERS", "NEGOTIATION_TIMEOUT", "SEND_QUEUE_SIZE", "REDIS_DB"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.Call.NegotiationTimeout != DefaultNegotiationTimeout {
		t.Fatalf("NegotiationTimeout = %v, want %v", cfg.Call.NegotiationTimeout, DefaultNegotiationTimeout)
	}
	if cfg.SendQueueSize != DefaultSendQueueSize {
		t.Fatalf("SendQueueSize = %d, want %d", cfg.SendQueueSize, DefaultSendQueueSize)
	}
	if len(cfg.AllowedOrigins) != 2 {
		t.Fatalf("AllowedOrigins = %v, want two defaults", cfg.AllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("ICE_SERVERS", "stun:one:3478,turn:two:3478")
	t.Setenv("NEGOTIATION_TIMEOUT", "5s")
	t.Setenv("SEND_QUEUE_SIZE", "16")
	t.Setenv("DEADLOCK_DETECTION", "true")

	cfg := Load()
	if want := []string{"https://a.example", "https://b.example"}; !reflect.DeepEqual(cfg.AllowedOrigins, want) {
		t.Fatalf("AllowedOrigins = %v, want %v", cfg.AllowedOrigins, want)
	}
	if want := []string{"stun:one:3478", "turn:two:3478"}; !reflect.DeepEqual(cfg.Call.ICEServers, want) {
		t.Fatalf("ICEServers = %v, want %v", cfg.Call.ICEServers, want)
	}
	if cfg.Call.NegotiationTimeout != 5*time.Second {
		t.Fatalf("NegotiationTimeout = %v", cfg.Call.NegotiationTimeout)
	}
	if cfg.SendQueueSize != 16 {
		t.Fatalf("SendQueueSize = %d", cfg.SendQueueSize)
	}
	if !cfg.DeadlockDetection {
		t.Fatalf("DeadlockDetection = false")
	}
}

func TestLoadIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("SEND_QUEUE_SIZE", "lots")
	t.Setenv("NEGOTIATION_TIMEOUT", "-1s")

	cfg := Load()
	if cfg.SendQueueSize != DefaultSendQueueSize {
		t.Fatalf("SendQueueSize = %d", cfg.SendQueueSize)
	}
	if cfg.Call.NegotiationTimeout != DefaultNegotiationTimeout {
		t.Fatalf("NegotiationTimeout = %v", cfg.Call.NegotiationTimeout)
	}
}
