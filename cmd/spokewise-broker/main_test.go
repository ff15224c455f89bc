package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/caarlos0/env/v11"
)

func TestRun_VersionFlag(t *testing.T) {
	oldVersion := buildVersion
	t.Cleanup(func() { buildVersion = oldVersion })
	buildVersion = "v9.9.9"

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	code := run([]string{"--version"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit 0, got %d (stderr=%q)", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "v9.9.9") {
		t.Fatalf("expected version output, got %q", stdout.String())
	}
}

func TestRun_RejectsHalfTLS(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--tls-cert-file", "/tmp/cert.pem"}, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
	if !strings.Contains(stderr.String(), "tls requires both") {
		t.Fatalf("expected tls validation error, got %q", stderr.String())
	}
}

func TestRun_RejectsBadLogLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	code := run([]string{"--log-level", "chatty"}, &stdout, &stderr)
	if code != 2 {
		t.Fatalf("expected exit 2, got %d", code)
	}
}

func TestEnvConfigParsing(t *testing.T) {
	t.Setenv("SPOKEWISE_LISTEN", "127.0.0.1:9999")
	t.Setenv("SPOKEWISE_HEARTBEAT_INTERVAL", "250ms")
	t.Setenv("SPOKEWISE_SEND_ACKS", "true")
	t.Setenv("SPOKEWISE_ACCEPT_RATE", "12.5")

	var ec envConfig
	if err := env.Parse(&ec); err != nil {
		t.Fatalf("env.Parse() failed: %v", err)
	}
	if ec.Listen != "127.0.0.1:9999" {
		t.Fatalf("unexpected listen %q", ec.Listen)
	}
	if ec.HeartbeatInterval != 250*time.Millisecond {
		t.Fatalf("unexpected heartbeat interval %v", ec.HeartbeatInterval)
	}
	if !ec.SendAcks {
		t.Fatalf("expected acks enabled")
	}
	if ec.AcceptRatePerSec != 12.5 {
		t.Fatalf("unexpected accept rate %v", ec.AcceptRatePerSec)
	}
}

func TestValidateTLSFiles(t *testing.T) {
	if err := validateTLSFiles("", ""); err != nil {
		t.Fatalf("expected no error when TLS disabled, got %v", err)
	}
	if err := validateTLSFiles("cert.pem", "key.pem"); err != nil {
		t.Fatalf("expected no error with both files, got %v", err)
	}
	if err := validateTLSFiles("", "key.pem"); err == nil {
		t.Fatalf("expected error with key only")
	}
}
