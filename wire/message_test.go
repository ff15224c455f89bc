package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		msg  Message
		want error
	}{
		{"command only", Message{Command: "Login"}, nil},
		{"directed payload", Message{SenderGUID: "c1", RecipientGUID: "c2"}, nil},
		{"channel payload", Message{SenderGUID: "c1", ChannelGUID: "ch1"}, nil},
		{"no target", Message{SenderGUID: "c1"}, ErrMissingRecipient},
		{"both targets", Message{SenderGUID: "c1", RecipientGUID: "c2", ChannelGUID: "ch1"}, ErrAmbiguousTarget},
		{"missing sender", Message{RecipientGUID: "c2"}, ErrMissingSender},
		{"sync conflict", Message{Command: "Echo", SyncRequest: true, SyncResponse: true}, ErrSyncConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.msg.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCommandMatchingIsCaseInsensitive(t *testing.T) {
	m := &Message{Command: "lOgIn"}
	if !m.Is(CommandLogin) {
		t.Fatalf("expected %q to match %q", m.Command, CommandLogin)
	}
	if m.Is(CommandEcho) {
		t.Fatalf("did not expect %q to match %q", m.Command, CommandEcho)
	}
}

func TestRedactedStripsCredentials(t *testing.T) {
	m := &Message{SenderGUID: "c1", RecipientGUID: "c2", Email: "c1@x", Password: "secret", Data: []byte("hi")}
	r := m.Redacted()
	if r.Email != "" || r.Password != "" {
		t.Fatalf("expected credentials stripped, got email=%q password=%q", r.Email, r.Password)
	}
	if !bytes.Equal(r.Data, m.Data) || r.SenderGUID != m.SenderGUID {
		t.Fatalf("expected non-credential fields preserved")
	}
	if m.Email == "" {
		t.Fatalf("expected original message to be untouched")
	}
}

func TestReplyMirrorsSyncRequest(t *testing.T) {
	req := &Message{
		MessageID:   "m1",
		SenderGUID:  "c1",
		SyncRequest: true,
		Email:       "c1@x",
		Password:    "secret",
	}
	reply := Reply(req, true, []byte("ok"))
	if reply.SenderGUID != ServerGUID {
		t.Fatalf("expected server sender, got %q", reply.SenderGUID)
	}
	if reply.RecipientGUID != "c1" {
		t.Fatalf("expected reply addressed to original sender, got %q", reply.RecipientGUID)
	}
	if !reply.SyncResponse || reply.SyncRequest {
		t.Fatalf("expected SyncResponse=true SyncRequest=false, got %v/%v", reply.SyncResponse, reply.SyncRequest)
	}
	if reply.Email != "" || reply.Password != "" {
		t.Fatalf("expected no credentials on reply")
	}
	if !reply.Succeeded() {
		t.Fatalf("expected success reply")
	}
	if reply.MessageID != "m1" {
		t.Fatalf("expected correlation id preserved, got %q", reply.MessageID)
	}
	if reply.CreatedUTC.IsZero() {
		t.Fatalf("expected CreatedUTC stamped")
	}
}

func TestReplyToAsyncRequestIsAsync(t *testing.T) {
	reply := Reply(&Message{MessageID: "m2", SenderGUID: "c1"}, false, nil)
	if reply.SyncResponse || reply.SyncRequest {
		t.Fatalf("expected async reply for async request")
	}
	if reply.Succeeded() {
		t.Fatalf("expected failure reply")
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	m := &Message{
		MessageID:     "m1",
		SenderGUID:    "c1",
		RecipientGUID: "c2",
		SyncRequest:   true,
		Success:       Bool(false),
		Data:          []byte("payload"),
	}
	b, err := m.Marshal()
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	got, err := Unmarshal(b)
	if err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if got.MessageID != m.MessageID || got.SenderGUID != m.SenderGUID || !bytes.Equal(got.Data, m.Data) {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Success == nil || *got.Success {
		t.Fatalf("expected Success=false to survive the round trip")
	}
}
