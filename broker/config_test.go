package broker

import (
	"testing"
	"time"

	"github.com/spokewise/spokewise-go/internal/defaults"
)

func TestNormalizeDefaults(t *testing.T) {
	cfg, err := normalize(Config{ListenAddr: ":0"})
	if err != nil {
		t.Fatalf("normalize() failed: %v", err)
	}
	if cfg.MaxHeartbeatFailures != defaults.MaxHeartbeatFailures {
		t.Fatalf("expected default heartbeat failures, got %d", cfg.MaxHeartbeatFailures)
	}
	if cfg.MaxFrameBytes != defaults.MaxFrameBytes {
		t.Fatalf("expected default frame cap, got %d", cfg.MaxFrameBytes)
	}
	if cfg.Observer == nil || cfg.Events == nil {
		t.Fatalf("expected observer and events defaults")
	}
}

func TestNormalizeClampsHeartbeat(t *testing.T) {
	cfg, err := normalize(Config{ListenAddr: ":0", HeartbeatInterval: time.Millisecond})
	if err != nil {
		t.Fatalf("normalize() failed: %v", err)
	}
	if cfg.HeartbeatInterval != defaults.MinHeartbeatInterval {
		t.Fatalf("expected clamped interval, got %v", cfg.HeartbeatInterval)
	}
	cfg, err = normalize(Config{ListenAddr: ":0", HeartbeatInterval: -1})
	if err != nil {
		t.Fatalf("normalize() failed: %v", err)
	}
	if cfg.HeartbeatInterval != 0 {
		t.Fatalf("expected non-positive interval to disable heartbeats")
	}
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	if _, err := normalize(Config{}); err == nil {
		t.Fatalf("expected missing listen address to fail")
	}
	if _, err := normalize(Config{ListenAddr: ":0", MaxConns: -1}); err == nil {
		t.Fatalf("expected negative max conns to fail")
	}
	if _, err := normalize(Config{ListenAddr: ":0", AcceptRatePerSec: -0.5}); err == nil {
		t.Fatalf("expected negative accept rate to fail")
	}
}
