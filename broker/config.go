package broker

import (
	"crypto/tls"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spokewise/spokewise-go/internal/defaults"
	"github.com/spokewise/spokewise-go/observability"
)

type Config struct {
	ListenAddr string      // TCP listen address (host:port).
	TLS        *tls.Config // Optional; nil serves plaintext streams.

	SendAcknowledgements         bool // Reply send-success to relayed async messages.
	SendServerJoinNotifications  bool // Emit ClientJoinedServer/ClientLeftServer events.
	SendChannelJoinNotifications bool // Emit ClientJoinedChannel/ClientLeftChannel events.

	HeartbeatInterval    time.Duration // 0 disables; else clamped to >=100ms.
	MaxHeartbeatFailures int           // Consecutive write failures before eviction.

	MaxFrameBytes int           // Maximum inbound frame size.
	WriteTimeout  time.Duration // Per-frame write deadline (0 disables).
	MaxConns      int           // Maximum concurrent connections (0 = unlimited).

	AcceptRatePerSec float64 // Accept-loop rate limit (0 disables).
	AcceptBurst      int     // Accept-loop burst allowance.

	Logger   zerolog.Logger               // Structured logger; defaults to a no-op logger.
	Observer observability.BrokerObserver // Optional metrics observer.
	Events   Events                       // Optional embedder callbacks.
}

// DefaultConfig returns conservative defaults for a broker.
func DefaultConfig() Config {
	return Config{
		ListenAddr:           ":7070",
		HeartbeatInterval:    30 * time.Second,
		MaxHeartbeatFailures: defaults.MaxHeartbeatFailures,
		MaxFrameBytes:        defaults.MaxFrameBytes,
		WriteTimeout:         defaults.WriteTimeout,
		MaxConns:             10000,
		AcceptBurst:          32,
		Logger:               zerolog.Nop(),
		Observer:             observability.NoopBrokerObserver,
		Events:               NoopEvents{},
	}
}

func normalize(cfg Config) (Config, error) {
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return Config{}, errors.New("missing listen address")
	}
	cfg.HeartbeatInterval = defaults.HeartbeatInterval(cfg.HeartbeatInterval)
	if cfg.MaxHeartbeatFailures <= 0 {
		cfg.MaxHeartbeatFailures = defaults.MaxHeartbeatFailures
	}
	if cfg.MaxFrameBytes <= 0 {
		cfg.MaxFrameBytes = defaults.MaxFrameBytes
	}
	if cfg.WriteTimeout < 0 {
		return Config{}, errors.New("write timeout must be >= 0")
	}
	if cfg.MaxConns < 0 {
		return Config{}, errors.New("max conns must be >= 0")
	}
	if cfg.AcceptRatePerSec < 0 {
		return Config{}, errors.New("accept rate must be >= 0")
	}
	if cfg.AcceptRatePerSec > 0 && cfg.AcceptBurst <= 0 {
		cfg.AcceptBurst = 1
	}
	if cfg.Observer == nil {
		cfg.Observer = observability.NoopBrokerObserver
	}
	if cfg.Events == nil {
		cfg.Events = NoopEvents{}
	}
	return cfg, nil
}
