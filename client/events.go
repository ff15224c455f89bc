package client

import "github.com/spokewise/spokewise-go/wire"

// Events is the application callback surface. Callbacks run on the client's
// reader goroutine; a blocking callback stalls inbound processing, so hand
// slow work off to another goroutine.
type Events interface {
	// OnMessage fires for payload messages that were not consumed as sync
	// responses, including relayed sync requests awaiting a Respond call.
	OnMessage(m *wire.Message)
	// OnEvent fires for broker notifications (peers joining or leaving,
	// channels deleted).
	OnEvent(ev wire.Event, m *wire.Message)
	// OnDisconnected fires once when the connection ends. err is nil after a
	// local Close and non-nil when the broker went away.
	OnDisconnected(err error)
}

// NoopEvents is the default Events implementation. Embed it to implement only
// the methods you care about.
type NoopEvents struct{}

func (NoopEvents) OnMessage(*wire.Message)           {}
func (NoopEvents) OnEvent(wire.Event, *wire.Message) {}
func (NoopEvents) OnDisconnected(error)              {}
