package client

import (
	"testing"
	"time"

	"github.com/spokewise/spokewise-go/internal/defaults"
)

func TestApplyOptionsDefaults(t *testing.T) {
	cfg, err := applyOptions(nil)
	if err != nil {
		t.Fatalf("applyOptions() failed: %v", err)
	}
	if cfg.connectTimeout != defaults.ConnectTimeout || cfg.syncTimeout != defaults.SyncTimeout {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.maxFrameBytes != defaults.MaxFrameBytes {
		t.Fatalf("unexpected frame cap: %d", cfg.maxFrameBytes)
	}
	if cfg.events == nil {
		t.Fatalf("expected default events")
	}
}

func TestApplyOptionsRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		opt  Option
	}{
		{"negative_connect_timeout", WithConnectTimeout(-time.Second)},
		{"negative_login_timeout", WithLoginTimeout(-1)},
		{"zero_sync_timeout", WithSyncTimeout(0)},
		{"negative_write_timeout", WithWriteTimeout(-1)},
		{"negative_heartbeat_interval", WithHeartbeatInterval(-1)},
		{"zero_frame_cap", WithMaxFrameBytes(0)},
		{"nil_events", WithEvents(nil)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := applyOptions([]Option{tc.opt}); err == nil {
				t.Fatalf("expected option to be rejected")
			}
		})
	}
}

func TestApplyOptionsSkipsNil(t *testing.T) {
	if _, err := applyOptions([]Option{nil, WithSyncTimeout(time.Second)}); err != nil {
		t.Fatalf("applyOptions() failed: %v", err)
	}
}
