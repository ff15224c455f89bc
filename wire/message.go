// Package wire defines the broker message envelope and its canonical JSON
// encoding. Every frame exchanged between a client and the broker carries
// exactly one Message.
package wire

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/spokewise/spokewise-go/internal/guid"
)

// ServerGUID is the reserved all-zero GUID denoting the broker itself as
// sender or addressee.
const ServerGUID = guid.Server

// Administrative commands understood by the broker. Command values are
// compared case-insensitively on the wire.
const (
	CommandEcho                   = "Echo"
	CommandLogin                  = "Login"
	CommandHeartbeatRequest       = "HeartbeatRequest"
	CommandJoinChannel            = "JoinChannel"
	CommandLeaveChannel           = "LeaveChannel"
	CommandCreateChannel          = "CreateChannel"
	CommandDeleteChannel          = "DeleteChannel"
	CommandListChannels           = "ListChannels"
	CommandListChannelSubscribers = "ListChannelSubscribers"
	CommandListClients            = "ListClients"
	CommandIsClientConnected      = "IsClientConnected"
)

var (
	ErrMissingSender    = errors.New("message has no sender")
	ErrMissingRecipient = errors.New("message has neither recipient nor channel")
	ErrAmbiguousTarget  = errors.New("message has both recipient and channel")
	ErrSyncConflict     = errors.New("message is both sync request and sync response")
)

// Message is the canonical envelope. All fields are optional on the wire;
// Validate enforces the combinations the broker accepts.
type Message struct {
	MessageID     string    `json:"MessageId,omitempty"`     // Correlation id, unique per request.
	SenderGUID    string    `json:"SenderGuid,omitempty"`    // Originating client, or ServerGUID.
	RecipientGUID string    `json:"RecipientGuid,omitempty"` // Directed message target.
	ChannelGUID   string    `json:"ChannelGuid,omitempty"`   // Channel fan-out target.
	Command       string    `json:"Command,omitempty"`       // Administrative operation, empty for payload messages.
	CreatedUTC    time.Time `json:"CreatedUTC,omitempty"`    // Stamped by the originator.
	Email         string    `json:"Email,omitempty"`         // Login credential; stripped before any relay.
	Password      string    `json:"Password,omitempty"`      // Login credential; stripped before any relay.
	SyncRequest   bool      `json:"SyncRequest,omitempty"`   // Sender blocks awaiting the correlated response.
	SyncResponse  bool      `json:"SyncResponse,omitempty"`  // Correlated response to an earlier sync request.
	Success       *bool     `json:"Success,omitempty"`       // Set by the broker on replies.
	Data          []byte    `json:"Data,omitempty"`          // Opaque payload.
}

// Bool returns a pointer suitable for the Success field.
func Bool(v bool) *bool { return &v }

// Succeeded reports whether Success is present and true.
func (m *Message) Succeeded() bool {
	return m != nil && m.Success != nil && *m.Success
}

// Is reports whether the message carries the named command. Comparison is
// case-insensitive per the wire contract.
func (m *Message) Is(command string) bool {
	return m != nil && m.Command != "" && strings.EqualFold(m.Command, command)
}

// HasCommand reports whether the message is administrative rather than payload.
func (m *Message) HasCommand() bool {
	return m != nil && strings.TrimSpace(m.Command) != ""
}

// Validate enforces the envelope invariant: a message must carry a command,
// or address exactly one of recipient/channel with a non-empty sender.
// Server-origin messages are exempt from the sender requirement.
func (m *Message) Validate() error {
	if m.SyncRequest && m.SyncResponse {
		return ErrSyncConflict
	}
	if m.HasCommand() {
		return nil
	}
	hasRecipient := m.RecipientGUID != ""
	hasChannel := m.ChannelGUID != ""
	switch {
	case hasRecipient && hasChannel:
		return ErrAmbiguousTarget
	case !hasRecipient && !hasChannel:
		return ErrMissingRecipient
	}
	if m.SenderGUID == "" {
		return ErrMissingSender
	}
	return nil
}

// Redacted returns a shallow copy with credentials stripped. Every copy the
// broker relays or generates goes through this.
func (m *Message) Redacted() *Message {
	cp := *m
	cp.Email = ""
	cp.Password = ""
	return &cp
}

// Reply builds a server-origin reply to req. The reply mirrors the request's
// correlation id, swaps the request's SyncRequest into SyncResponse, scrubs
// credentials, and addresses the original sender.
func Reply(req *Message, success bool, data []byte) *Message {
	reply := &Message{
		MessageID:     req.MessageID,
		SenderGUID:    ServerGUID,
		RecipientGUID: req.SenderGUID,
		CreatedUTC:    time.Now().UTC(),
		SyncResponse:  req.SyncRequest,
		Success:       Bool(success),
		Data:          data,
	}
	return reply
}

// Marshal encodes the message with the canonical JSON encoding.
func (m *Message) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// Unmarshal decodes a message from its canonical JSON encoding.
func Unmarshal(b []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
