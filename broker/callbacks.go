package broker

import (
	"github.com/spokewise/spokewise-go/registry"
	"github.com/spokewise/spokewise-go/wire"
)

// Events is the capability surface the embedding application plugs in. Every
// method is invoked from broker goroutines and must return promptly; blocking
// here stalls the connection that fired the event.
type Events interface {
	// OnMessageReceived fires for every decoded inbound frame, before the
	// login gate and dispatch.
	OnMessageReceived(m *wire.Message)
	// OnClientConnected fires when a connection is accepted and registered.
	OnClientConnected(c registry.Client)
	// OnClientLogin fires after a successful login reply has been written.
	OnClientLogin(c registry.Client)
	// OnClientDisconnected fires once per eviction.
	OnClientDisconnected(c registry.Client)
	// OnServerStopped fires when the accept loop has stopped and every
	// connection has been evicted.
	OnServerStopped()
}

// NoopEvents is the default Events implementation. Embed it to implement only
// the methods you care about.
type NoopEvents struct{}

func (NoopEvents) OnMessageReceived(*wire.Message)      {}
func (NoopEvents) OnClientConnected(registry.Client)    {}
func (NoopEvents) OnClientLogin(registry.Client)        {}
func (NoopEvents) OnClientDisconnected(registry.Client) {}
func (NoopEvents) OnServerStopped()                     {}
