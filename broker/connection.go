package broker

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spokewise/spokewise-go/framing"
	"github.com/spokewise/spokewise-go/internal/guid"
	"github.com/spokewise/spokewise-go/observability"
	"github.com/spokewise/spokewise-go/registry"
	"github.com/spokewise/spokewise-go/wire"
)

var errConnClosed = errors.New("connection closed")

// conn is one accepted client connection. The read loop and the heartbeat
// supervisor share it; writes are serialized by writeMu so no two frames
// interleave on the wire.
type conn struct {
	srv  *Server
	nc   net.Conn
	ip   string
	port int
	log  zerolog.Logger

	writeMu sync.Mutex
	closed  atomic.Bool
	done    chan struct{}
}

func newConn(s *Server, nc net.Conn, ip string, port int) *conn {
	return &conn{
		srv:  s,
		nc:   nc,
		ip:   ip,
		port: port,
		log:  s.log.With().Str("remote", nc.RemoteAddr().String()).Logger(),
		done: make(chan struct{}),
	}
}

// Send writes one frame under the write mutex. It satisfies
// registry.Transport; callers treat an error as a broken connection.
func (c *conn) Send(m *wire.Message) error {
	if c.closed.Load() {
		return errConnClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		return errConnClosed
	}
	if c.srv.cfg.WriteTimeout > 0 {
		c.nc.SetWriteDeadline(time.Now().Add(c.srv.cfg.WriteTimeout))
		defer c.nc.SetWriteDeadline(time.Time{})
	}
	return framing.WriteFrame(c.nc, m)
}

// Close tears the connection down through the eviction path.
func (c *conn) Close() error {
	c.evict(observability.EvictReasonReplaced)
	return nil
}

// send writes a frame and evicts on failure. Used for server-originated
// writes where the caller has no better recovery than teardown.
func (c *conn) send(m *wire.Message) bool {
	if err := c.Send(m); err != nil {
		if !c.closed.Load() {
			c.log.Debug().Err(err).Msg("write failed")
		}
		c.evict(observability.EvictReasonWriteError)
		return false
	}
	return true
}

func (c *conn) reply(req *wire.Message, success bool, data []byte) {
	c.send(wire.Reply(req, success, data))
}

// record returns the registry record currently bound to this source tuple.
func (c *conn) record() (registry.Client, bool) {
	return c.srv.reg.GetClientByAddr(c.ip, c.port)
}

// readLoop reads frames until the peer dies or the connection is evicted.
func (c *conn) readLoop() {
	for {
		if c.closed.Load() {
			return
		}
		if !framing.PeerAlive(c.nc) {
			c.evict(observability.EvictReasonPeerClosed)
			return
		}
		m, err := framing.ReadFrame(c.nc, c.srv.cfg.MaxFrameBytes)
		if err != nil {
			switch {
			case errors.Is(err, framing.ErrMalformed):
				// The declared body was consumed; the stream is still in
				// sync, so the offender just loses this message.
				c.log.Debug().Err(err).Msg("malformed frame")
				continue
			case errors.Is(err, io.EOF):
				c.evict(observability.EvictReasonPeerClosed)
			default:
				if !c.closed.Load() {
					c.log.Debug().Err(err).Msg("read failed")
				}
				c.evict(observability.EvictReasonReadError)
			}
			return
		}

		c.srv.events.OnMessageReceived(m)

		if !c.loginGatePassed(m) {
			c.reply(m, false, []byte(wire.ReasonLoginRequired))
			continue
		}
		c.srv.process(c, m)
	}
}

// loginGatePassed enforces that every message except Login comes from a
// known, logged-in sender. Server-origin senders pass unconditionally.
func (c *conn) loginGatePassed(m *wire.Message) bool {
	if m.Is(wire.CommandLogin) {
		return true
	}
	if m.SenderGUID == "" {
		return false
	}
	if guid.IsServer(m.SenderGUID) {
		return true
	}
	return c.srv.reg.IsClientConnected(m.SenderGUID)
}

// evict removes the connection from all shared state and tears the socket
// down. Safe to call from any worker, any number of times.
func (c *conn) evict(reason observability.EvictReason) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	close(c.done)
	c.nc.Close()

	record, known := c.record()
	if known && record.Transport != registry.Transport(c) {
		// The source tuple has been rebound to a newer connection. Its
		// registry state belongs to that connection now, not to us.
		known = false
	}
	if known {
		c.srv.reg.RemoveClient(registry.Client{GUID: record.GUID, IP: c.ip, Port: c.port})
		if record.GUID != "" {
			for _, removed := range c.srv.reg.RemoveClientChannels(record.GUID) {
				c.srv.publishChannelDeleted(removed)
			}
			c.srv.reg.RemoveSubscriberAll(record.GUID)
			if record.LoggedIn && c.srv.cfg.SendServerJoinNotifications {
				c.srv.publishServerEvent(wire.EventClientLeftServer, record.GUID)
			}
		}
	}
	_, channels := c.srv.reg.Counts()
	c.srv.obs.ChannelCount(channels)
	c.srv.obs.Evict(reason)
	c.srv.dropConn(c)
	c.log.Debug().Str("reason", string(reason)).Msg("connection evicted")
	if known {
		c.srv.events.OnClientDisconnected(record)
	}
}
