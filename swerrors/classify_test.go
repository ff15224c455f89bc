package swerrors

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/spokewise/spokewise-go/framing"
	"github.com/spokewise/spokewise-go/syncreq"
)

func TestClassifyConnectCode(t *testing.T) {
	t.Run("timeout", func(t *testing.T) {
		if got := ClassifyConnectCode(context.DeadlineExceeded); got != CodeTimeout {
			t.Fatalf("expected %q, got %q", CodeTimeout, got)
		}
	})
	t.Run("canceled", func(t *testing.T) {
		if got := ClassifyConnectCode(context.Canceled); got != CodeCanceled {
			t.Fatalf("expected %q, got %q", CodeCanceled, got)
		}
	})
	t.Run("fallback", func(t *testing.T) {
		if got := ClassifyConnectCode(errors.New("x")); got != CodeDialFailed {
			t.Fatalf("expected %q, got %q", CodeDialFailed, got)
		}
	})
}

func TestClassifySyncCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"timeout", syncreq.ErrTimeout, CodeTimeout},
		{"duplicate", syncreq.ErrDuplicateID, CodeDuplicateRequest},
		{"closed", syncreq.ErrClosed, CodeConnectionClosed},
		{"deadline", context.DeadlineExceeded, CodeTimeout},
		{"fallback", errors.New("x"), CodeWriteFailed},
		{"wrapped", fmt.Errorf("wrap: %w", syncreq.ErrTimeout), CodeTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifySyncCode(tc.err); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestClassifyFrameCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Code
	}{
		{"too_large", framing.ErrFrameTooLarge, CodeFrameTooLarge},
		{"malformed", fmt.Errorf("%w: bad json", framing.ErrMalformed), CodeMalformedFrame},
		{"fallback", errors.New("x"), CodeReadFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyFrameCode(tc.err); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	base := errors.New("boom")
	err := Wrap(PathClient, StageConnect, CodeDialFailed, base)
	if got := err.Error(); got != "client connect (dial_failed): boom" {
		t.Fatalf("unexpected message %q", got)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to unwrap")
	}
	var se *Error
	if !errors.As(err, &se) || se.Code != CodeDialFailed {
		t.Fatalf("expected structured error, got %v", err)
	}
}
