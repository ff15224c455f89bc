package wire

import (
	"encoding/json"
	"strings"
)

// Reply reason tokens carried in Data on server-generated failure replies.
// They are stable identifiers clients may match on.
const (
	ReasonLoginRequired     = "login-required"
	ReasonUnknownCommand    = "unknown-command"
	ReasonRecipientNotFound = "recipient-not-found"
	ReasonChannelNotFound   = "channel-not-found"
	ReasonNotChannelMember  = "not-channel-member"
	ReasonChannelExists     = "already-exists"
	ReasonNotChannelOwner   = "not-channel-owner"
	ReasonInvalidMessage    = "invalid-message"
	ReasonSendSuccess       = "send-success"
)

// ChannelSpec describes a channel to create. It travels in Data on a
// CreateChannel request, either as a JSON object or as a bare name string.
type ChannelSpec struct {
	Name    string `json:"Name"`
	Private bool   `json:"Private,omitempty"`
}

// DecodeChannelSpec interprets a CreateChannel payload. A payload that is not
// a JSON spec object is taken verbatim as a public channel name.
func DecodeChannelSpec(data []byte) (ChannelSpec, bool) {
	name := strings.TrimSpace(string(data))
	if name == "" {
		return ChannelSpec{}, false
	}
	if name[0] == '{' {
		var spec ChannelSpec
		if err := json.Unmarshal(data, &spec); err == nil && strings.TrimSpace(spec.Name) != "" {
			spec.Name = strings.TrimSpace(spec.Name)
			return spec, true
		}
		return ChannelSpec{}, false
	}
	return ChannelSpec{Name: name}, true
}

// ChannelInfo is the scrubbed channel record returned by listing commands.
type ChannelInfo struct {
	GUID      string `json:"Guid"`
	Name      string `json:"Name"`
	OwnerGUID string `json:"OwnerGuid"`
	Private   bool   `json:"Private,omitempty"`
}

// ClientInfo is the scrubbed client record returned by listing commands.
// It never carries credentials or transport state.
type ClientInfo struct {
	GUID  string `json:"Guid"`
	Email string `json:"Email,omitempty"`
}

// EncodeList marshals a listing payload for a reply's Data field.
func EncodeList(v any) ([]byte, error) {
	return json.Marshal(v)
}

// DecodeChannelList decodes a ListChannels reply payload.
func DecodeChannelList(data []byte) ([]ChannelInfo, error) {
	var out []ChannelInfo
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeClientList decodes a ListClients or ListChannelSubscribers reply
// payload.
func DecodeClientList(data []byte) ([]ClientInfo, error) {
	var out []ClientInfo
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
