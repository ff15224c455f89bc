package client

import (
	"crypto/tls"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/spokewise/spokewise-go/internal/defaults"
)

// Option configures dialing, timeouts, and limits for a broker connection.
//
// Omit an option to use the library default. For timeouts, a value of 0
// disables the timeout.
type Option func(*options) error

type options struct {
	tlsConfig *tls.Config

	connectTimeout    time.Duration
	loginTimeout      time.Duration
	syncTimeout       time.Duration
	writeTimeout      time.Duration
	heartbeatInterval time.Duration

	maxFrameBytes int

	logger zerolog.Logger
	events Events
}

func defaultOptions() options {
	return options{
		connectTimeout:    defaults.ConnectTimeout,
		loginTimeout:      defaults.LoginTimeout,
		syncTimeout:       defaults.SyncTimeout,
		writeTimeout:      defaults.WriteTimeout,
		heartbeatInterval: 30 * time.Second,
		maxFrameBytes:     defaults.MaxFrameBytes,
		logger:            zerolog.Nop(),
		events:            NoopEvents{},
	}
}

func applyOptions(opts []Option) (options, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return options{}, err
		}
	}
	return cfg, nil
}

// WithTLS wraps the stream in TLS using the given config.
func WithTLS(cfg *tls.Config) Option {
	return func(o *options) error {
		o.tlsConfig = cfg
		return nil
	}
}

// WithConnectTimeout sets the dial timeout; 0 disables the timeout.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return fmt.Errorf("connect timeout must be >= 0")
		}
		o.connectTimeout = d
		return nil
	}
}

// WithLoginTimeout sets the timeout for the login exchange; 0 disables it.
func WithLoginTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return fmt.Errorf("login timeout must be >= 0")
		}
		o.loginTimeout = d
		return nil
	}
}

// WithSyncTimeout sets how long SendSync waits for a correlated response.
func WithSyncTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return fmt.Errorf("sync timeout must be > 0")
		}
		o.syncTimeout = d
		return nil
	}
}

// WithHeartbeatInterval sets how often the client sends a keepalive frame
// after login; 0 disables client-side heartbeats. The broker consumes them
// silently, so the frames only keep NAT and firewall state alive.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return fmt.Errorf("heartbeat interval must be >= 0")
		}
		o.heartbeatInterval = d
		return nil
	}
}

// WithWriteTimeout sets the per-frame write deadline; 0 disables it.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d < 0 {
			return fmt.Errorf("write timeout must be >= 0")
		}
		o.writeTimeout = d
		return nil
	}
}

// WithMaxFrameBytes sets the maximum inbound frame size.
func WithMaxFrameBytes(n int) Option {
	return func(o *options) error {
		if n <= 0 {
			return fmt.Errorf("max frame bytes must be > 0")
		}
		o.maxFrameBytes = n
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) error {
		o.logger = log
		return nil
	}
}

// WithEvents installs the application callback surface.
func WithEvents(ev Events) Option {
	return func(o *options) error {
		if ev == nil {
			return fmt.Errorf("events must not be nil")
		}
		o.events = ev
		return nil
	}
}
