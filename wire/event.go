package wire

import "encoding/json"

// EventType names a broker-originated notification carried in Message.Data.
type EventType string

const (
	EventClientJoinedServer    EventType = "ClientJoinedServer"
	EventClientLeftServer      EventType = "ClientLeftServer"
	EventClientJoinedChannel   EventType = "ClientJoinedChannel"
	EventClientLeftChannel     EventType = "ClientLeftChannel"
	EventChannelDeletedByOwner EventType = "ChannelDeletedByOwner"
)

// Event is the structured record nested inside Data for broker notifications.
// Data holds the subject client GUID, or the channel GUID for
// ChannelDeletedByOwner.
type Event struct {
	EventType EventType `json:"EventType"`
	Data      string    `json:"Data,omitempty"`
}

// EventMessage wraps an event record in a server-origin envelope addressed
// to a single recipient.
func EventMessage(recipientGUID string, ev Event) (*Message, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	m := &Message{
		SenderGUID:    ServerGUID,
		RecipientGUID: recipientGUID,
		Data:          body,
	}
	return m, nil
}

// DecodeEvent attempts to interpret a payload as an event record. The second
// return is false when the payload is not an event (recipients dispatch on
// the presence of EventType).
func DecodeEvent(data []byte) (Event, bool) {
	var ev Event
	if len(data) == 0 {
		return Event{}, false
	}
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, false
	}
	if ev.EventType == "" {
		return Event{}, false
	}
	return ev, true
}
