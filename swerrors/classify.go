package swerrors

import (
	"context"
	"errors"

	"github.com/spokewise/spokewise-go/framing"
	"github.com/spokewise/spokewise-go/syncreq"
)

// ClassifyConnectCode maps a connect-layer error to a stable Code.
func ClassifyConnectCode(err error) Code {
	return classifyContextCode(err, CodeDialFailed)
}

// ClassifyLoginCode maps a login-exchange error to a stable Code.
func ClassifyLoginCode(err error) Code {
	return classifyContextCode(err, CodeLoginFailed)
}

// ClassifySyncCode maps a sync round-trip error to a stable Code.
func ClassifySyncCode(err error) Code {
	switch {
	case errors.Is(err, syncreq.ErrTimeout):
		return CodeTimeout
	case errors.Is(err, syncreq.ErrDuplicateID):
		return CodeDuplicateRequest
	case errors.Is(err, syncreq.ErrClosed):
		return CodeConnectionClosed
	default:
		return classifyContextCode(err, CodeWriteFailed)
	}
}

// ClassifyFrameCode maps a framing-layer error to a stable Code.
func ClassifyFrameCode(err error) Code {
	switch {
	case errors.Is(err, framing.ErrFrameTooLarge):
		return CodeFrameTooLarge
	case errors.Is(err, framing.ErrMalformed):
		return CodeMalformedFrame
	default:
		return classifyContextCode(err, CodeReadFailed)
	}
}

func classifyContextCode(err error, fallback Code) Code {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	default:
		return fallback
	}
}
