// Package swerrors defines structured, programmatically identifiable errors
// for the user-facing broker and client entrypoints.
package swerrors

import "fmt"

// Path identifies the top-level surface an error came from.
type Path string

const (
	PathBroker Path = "broker"
	PathClient Path = "client"
)

// Stage identifies which step of the messaging stack failed.
type Stage string

const (
	StageValidate Stage = "validate"
	StageListen   Stage = "listen"
	StageConnect  Stage = "connect"
	StageLogin    Stage = "login"
	StageSend     Stage = "send"
	StageSync     Stage = "sync"
	StageCommand  Stage = "command"
	StageClose    Stage = "close"
)

// Code is a stable, programmatic error identifier for user-facing operations.
type Code string

const (
	CodeTimeout           Code = "timeout"
	CodeCanceled          Code = "canceled"
	CodeInvalidInput      Code = "invalid_input"
	CodeInvalidOption     Code = "invalid_option"
	CodeMissingAddress    Code = "missing_address"
	CodeMissingIdentity   Code = "missing_identity"
	CodeNotConnected      Code = "not_connected"
	CodeNotLoggedIn       Code = "not_logged_in"
	CodeDialFailed        Code = "dial_failed"
	CodeListenFailed      Code = "listen_failed"
	CodeTLSFailed         Code = "tls_failed"
	CodeLoginFailed       Code = "login_failed"
	CodeWriteFailed       Code = "write_failed"
	CodeReadFailed        Code = "read_failed"
	CodeFrameTooLarge     Code = "frame_too_large"
	CodeMalformedFrame    Code = "malformed_frame"
	CodeDuplicateRequest  Code = "duplicate_request"
	CodeRequestRejected   Code = "request_rejected"
	CodeRecipientNotFound Code = "recipient_not_found"
	CodeChannelNotFound   Code = "channel_not_found"
	CodeConnectionClosed  Code = "connection_closed"
)

// Error is a structured error for user-facing operations.
type Error struct {
	Path  Path
	Stage Stage
	Code  Code
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s (%s): %v", e.Path, e.Stage, e.Code, e.Err)
	}
	return fmt.Sprintf("%s %s (%s)", e.Path, e.Stage, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

func Wrap(path Path, stage Stage, code Code, err error) error {
	return &Error{Path: path, Stage: stage, Code: code, Err: err}
}
