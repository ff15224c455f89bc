// Package registry is the sole authority over client and channel state.
//
// The client collection and the channel collection are each guarded by their
// own mutex. No registry method calls another registry method while holding a
// lock, and no method holds both locks at once; cross-collection operations
// (channel deletion notifying clients, eviction cleanup) return snapshots and
// leave dispatch to the caller.
package registry

import (
	"errors"
	"sync"
)

var (
	ErrChannelExists   = errors.New("channel guid already exists")
	ErrChannelNotFound = errors.New("channel not found")
)

// Registry owns the canonical client and channel collections.
type Registry struct {
	clientsMu sync.Mutex
	clients   map[string]*Client // keyed by source "ip:port"

	channelsMu sync.Mutex
	channels   map[string]*Channel // keyed by channel GUID
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		clients:  make(map[string]*Client),
		channels: make(map[string]*Channel),
	}
}

// Counts returns a point-in-time view of collection sizes.
func (r *Registry) Counts() (clients int, channels int) {
	r.clientsMu.Lock()
	clients = len(r.clients)
	r.clientsMu.Unlock()
	r.channelsMu.Lock()
	channels = len(r.channels)
	r.channelsMu.Unlock()
	return clients, channels
}
