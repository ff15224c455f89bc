package defaults

import "time"

const (
	// ConnectTimeout is the default timeout for establishing a broker connection.
	ConnectTimeout = 10 * time.Second
	// LoginTimeout is the default timeout for completing the login exchange.
	LoginTimeout = 10 * time.Second
	// SyncTimeout is the default wait for a correlated sync response.
	SyncTimeout = 10 * time.Second
	// WriteTimeout is the default per-frame write deadline.
	WriteTimeout = 5 * time.Second
	// MaxFrameBytes is the default maximum size of a single framed message.
	MaxFrameBytes = 1 << 20
	// MaxHeartbeatFailures is the default number of consecutive heartbeat
	// write failures tolerated before a connection is evicted.
	MaxHeartbeatFailures = 5
)

// MinHeartbeatInterval is the smallest heartbeat cadence the broker accepts.
const MinHeartbeatInterval = 100 * time.Millisecond

// HeartbeatInterval normalizes a configured heartbeat interval.
//
// A non-positive interval disables heartbeats entirely. Anything else is
// clamped to MinHeartbeatInterval so a misconfigured broker cannot busy-spin
// probing its peers.
func HeartbeatInterval(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	if d < MinHeartbeatInterval {
		return MinHeartbeatInterval
	}
	return d
}

// SweepInterval derives the expiry sweep cadence for pending sync requests
// from the configured sync timeout. The result is always positive and
// strictly less than the timeout so an expired slot is removed within one
// extra timeout period.
func SweepInterval(syncTimeout time.Duration) time.Duration {
	if syncTimeout <= 0 {
		syncTimeout = SyncTimeout
	}
	interval := syncTimeout / 2
	if interval < 100*time.Millisecond {
		interval = 100 * time.Millisecond
	}
	if interval >= syncTimeout {
		interval = syncTimeout / 2
	}
	return interval
}
