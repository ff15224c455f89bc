package registry

import (
	"net"
	"strconv"
	"time"

	"github.com/spokewise/spokewise-go/wire"
)

// Transport is the write side of a client connection. The connection worker
// owns the underlying stream; the registry only stores the handle so lookups
// can address the peer.
type Transport interface {
	Send(m *wire.Message) error
	Close() error
}

// Client is the canonical record for one connected peer. Identity fields are
// assigned or confirmed at login; before login the client is addressable only
// by its source tuple.
type Client struct {
	GUID       string
	Email      string
	IP         string
	Port       int
	LoggedIn   bool
	CreatedUTC time.Time
	UpdatedUTC time.Time
	Transport  Transport
}

// Addr returns the client's source tuple in "ip:port" form.
func (c Client) Addr() string {
	return net.JoinHostPort(c.IP, strconv.Itoa(c.Port))
}

// AddClient inserts the record, replacing any record that shares its source
// tuple. For an existing unauthenticated record the transport handle is
// swapped for the new one and the update timestamp refreshed, which lets a
// client reconnect through the same tuple before login completes. The
// displaced transport, if any, is returned so the caller can close it.
func (r *Registry) AddClient(c Client) (Client, Transport) {
	now := time.Now().UTC()
	if c.CreatedUTC.IsZero() {
		c.CreatedUTC = now
	}
	c.UpdatedUTC = now

	var displaced Transport
	r.clientsMu.Lock()
	key := c.Addr()
	if existing, ok := r.clients[key]; ok {
		if existing.Transport != nil && existing.Transport != c.Transport {
			displaced = existing.Transport
		}
		// Preserve identity; only the handle and timestamps change.
		existing.Transport = c.Transport
		existing.UpdatedUTC = now
		c = *existing
	} else {
		stored := c
		r.clients[key] = &stored
	}
	r.clientsMu.Unlock()
	return c, displaced
}

// RemoveClient removes the record by GUID if present, else by source tuple.
// It reports whether a record was removed.
func (r *Registry) RemoveClient(c Client) bool {
	r.clientsMu.Lock()
	defer r.clientsMu.Unlock()
	if c.GUID != "" {
		for key, existing := range r.clients {
			if existing.GUID == c.GUID {
				delete(r.clients, key)
				return true
			}
		}
	}
	if _, ok := r.clients[c.Addr()]; ok {
		delete(r.clients, c.Addr())
		return true
	}
	return false
}

// UpdateClient is the login path. It matches the record by source tuple,
// overwrites identity fields and the transport handle, and marks the client
// logged in. If another record already carries the same GUID (a logged-in
// client reconnecting from a new source tuple) that record is removed and its
// transport returned for eviction: identity survives, the handle is replaced.
func (r *Registry) UpdateClient(c Client) (Client, Transport) {
	now := time.Now().UTC()
	var displaced Transport

	r.clientsMu.Lock()
	key := c.Addr()
	for k, existing := range r.clients {
		if k != key && c.GUID != "" && existing.GUID == c.GUID {
			displaced = existing.Transport
			delete(r.clients, k)
		}
	}
	cur, ok := r.clients[key]
	if !ok {
		stored := c
		stored.CreatedUTC = now
		cur = &stored
		r.clients[key] = cur
	}
	cur.GUID = c.GUID
	cur.Email = c.Email
	cur.LoggedIn = true
	cur.UpdatedUTC = now
	if c.Transport != nil {
		cur.Transport = c.Transport
	}
	snapshot := *cur
	r.clientsMu.Unlock()
	return snapshot, displaced
}

// GetClientByGUID returns the record carrying the GUID.
func (r *Registry) GetClientByGUID(guid string) (Client, bool) {
	if guid == "" {
		return Client{}, false
	}
	r.clientsMu.Lock()
	defer r.clientsMu.Unlock()
	for _, c := range r.clients {
		if c.GUID == guid {
			return *c, true
		}
	}
	return Client{}, false
}

// GetClientByAddr returns the record for a source tuple.
func (r *Registry) GetClientByAddr(ip string, port int) (Client, bool) {
	r.clientsMu.Lock()
	defer r.clientsMu.Unlock()
	if c, ok := r.clients[Client{IP: ip, Port: port}.Addr()]; ok {
		return *c, true
	}
	return Client{}, false
}

// GetAllClients returns a snapshot of every record, safe to iterate without
// external locking.
func (r *Registry) GetAllClients() []Client {
	r.clientsMu.Lock()
	defer r.clientsMu.Unlock()
	out := make([]Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, *c)
	}
	return out
}

// IsClientConnected reports whether a logged-in record carries the GUID.
func (r *Registry) IsClientConnected(guid string) bool {
	if guid == "" {
		return false
	}
	r.clientsMu.Lock()
	defer r.clientsMu.Unlock()
	for _, c := range r.clients {
		if c.GUID == guid && c.LoggedIn {
			return true
		}
	}
	return false
}
