// Package client is the embedding library for talking to a spokewise broker:
// it dials the framed stream, performs login, correlates synchronous
// requests, and surfaces inbound traffic through a callback interface.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/spokewise/spokewise-go/framing"
	"github.com/spokewise/spokewise-go/internal/contextutil"
	"github.com/spokewise/spokewise-go/internal/guid"
	"github.com/spokewise/spokewise-go/swerrors"
	"github.com/spokewise/spokewise-go/syncreq"
	"github.com/spokewise/spokewise-go/wire"
)

var (
	ErrNotConnected = errors.New("not connected")
	ErrNotLoggedIn  = errors.New("not logged in")
	// ErrRejected marks a broker reply with Success=false; the reply's Data
	// carries the reason token.
	ErrRejected = errors.New("request rejected by broker")
)

// Client is one connection to a broker. All methods are safe for concurrent
// use; outbound frames are serialized so no two writes interleave.
type Client struct {
	guid  string
	email string
	cfg   options
	log   zerolog.Logger

	nc   net.Conn
	corr *syncreq.Correlator

	writeMu  sync.Mutex
	closed   atomic.Bool
	loggedIn atomic.Bool
	done     chan struct{}
	hbOnce   sync.Once
}

// Connect dials the broker and starts the reader. The connection is
// unauthenticated until Login succeeds; the broker rejects everything except
// Login until then.
func Connect(ctx context.Context, addr string, clientGUID, email string, opts ...Option) (*Client, error) {
	cfg, err := applyOptions(opts)
	if err != nil {
		return nil, swerrors.Wrap(swerrors.PathClient, swerrors.StageValidate, swerrors.CodeInvalidOption, err)
	}
	if !guid.Valid(clientGUID) || guid.IsServer(clientGUID) {
		return nil, swerrors.Wrap(swerrors.PathClient, swerrors.StageValidate, swerrors.CodeMissingIdentity,
			errors.New("client guid must be a non-reserved uuid"))
	}

	dialCtx, cancel := contextutil.WithTimeout(ctx, cfg.connectTimeout)
	defer cancel()
	var d net.Dialer
	nc, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, swerrors.Wrap(swerrors.PathClient, swerrors.StageConnect, swerrors.ClassifyConnectCode(err), err)
	}
	if cfg.tlsConfig != nil {
		tc := tls.Client(nc, cfg.tlsConfig)
		if err := tc.HandshakeContext(dialCtx); err != nil {
			nc.Close()
			return nil, swerrors.Wrap(swerrors.PathClient, swerrors.StageConnect, swerrors.CodeTLSFailed, err)
		}
		nc = tc
	}

	c := &Client{
		guid:  clientGUID,
		email: email,
		cfg:   cfg,
		log:   cfg.logger.With().Str("client", clientGUID).Logger(),
		nc:    nc,
		corr:  syncreq.New(cfg.syncTimeout),
		done:  make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// GUID returns the client's identity.
func (c *Client) GUID() string { return c.guid }

// LoggedIn reports whether a Login round-trip has succeeded.
func (c *Client) LoggedIn() bool { return c.loggedIn.Load() }

// Login presents credentials and blocks until the broker confirms or rejects
// them. Credentials travel only on this message.
func (c *Client) Login(ctx context.Context, password string) error {
	m := &wire.Message{
		MessageID:   guid.New(),
		SenderGUID:  c.guid,
		Command:     wire.CommandLogin,
		Email:       c.email,
		Password:    password,
		SyncRequest: true,
		CreatedUTC:  time.Now().UTC(),
	}
	loginCtx, cancel := contextutil.WithTimeout(ctx, c.cfg.loginTimeout)
	defer cancel()
	reply, err := c.roundTrip(loginCtx, m)
	if err != nil {
		return swerrors.Wrap(swerrors.PathClient, swerrors.StageLogin, swerrors.ClassifyLoginCode(err), err)
	}
	if !reply.Succeeded() {
		return swerrors.Wrap(swerrors.PathClient, swerrors.StageLogin, swerrors.CodeLoginFailed, rejection(reply))
	}
	c.loggedIn.Store(true)
	c.startHeartbeat()
	c.log.Debug().Msg("logged in")
	return nil
}

// SendAsync fires a payload message without waiting for any reply. The
// message id, sender, and timestamp are stamped when absent.
func (c *Client) SendAsync(m *wire.Message) error {
	if !c.loggedIn.Load() {
		return swerrors.Wrap(swerrors.PathClient, swerrors.StageSend, swerrors.CodeNotLoggedIn, ErrNotLoggedIn)
	}
	c.stamp(m)
	if err := c.write(m); err != nil {
		return swerrors.Wrap(swerrors.PathClient, swerrors.StageSend, swerrors.CodeWriteFailed, err)
	}
	return nil
}

// SendSync sends a payload message flagged as a sync request and blocks until
// the correlated response arrives, the context ends, or the sync timeout
// sweeps the slot.
func (c *Client) SendSync(ctx context.Context, m *wire.Message) (*wire.Message, error) {
	if !c.loggedIn.Load() {
		return nil, swerrors.Wrap(swerrors.PathClient, swerrors.StageSync, swerrors.CodeNotLoggedIn, ErrNotLoggedIn)
	}
	c.stamp(m)
	m.SyncRequest = true
	m.SyncResponse = false
	reply, err := c.roundTrip(ctx, m)
	if err != nil {
		return nil, swerrors.Wrap(swerrors.PathClient, swerrors.StageSync, swerrors.ClassifySyncCode(err), err)
	}
	return reply, nil
}

// Respond answers a relayed sync request. The response mirrors the request's
// correlation id and addresses its sender.
func (c *Client) Respond(req *wire.Message, data []byte) error {
	resp := &wire.Message{
		MessageID:     req.MessageID,
		SenderGUID:    c.guid,
		RecipientGUID: req.SenderGUID,
		SyncResponse:  true,
		CreatedUTC:    time.Now().UTC(),
		Data:          data,
	}
	if err := c.write(resp); err != nil {
		return swerrors.Wrap(swerrors.PathClient, swerrors.StageSend, swerrors.CodeWriteFailed, err)
	}
	return nil
}

// Close tears the connection down and releases every pending sync waiter. It
// is safe to call more than once.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)
	c.corr.Close()
	err := c.nc.Close()
	c.loggedIn.Store(false)
	return err
}

func (c *Client) stamp(m *wire.Message) {
	if m.MessageID == "" {
		m.MessageID = guid.New()
	}
	if m.SenderGUID == "" {
		m.SenderGUID = c.guid
	}
	if m.CreatedUTC.IsZero() {
		m.CreatedUTC = time.Now().UTC()
	}
}

// roundTrip registers the message id, writes the frame, and awaits the
// correlated response.
func (c *Client) roundTrip(ctx context.Context, m *wire.Message) (*wire.Message, error) {
	if err := c.corr.Register(m.MessageID); err != nil {
		return nil, err
	}
	if err := c.write(m); err != nil {
		return nil, err
	}
	return c.corr.Await(ctx, m.MessageID)
}

func (c *Client) write(m *wire.Message) error {
	if c.closed.Load() {
		return ErrNotConnected
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		return ErrNotConnected
	}
	if c.cfg.writeTimeout > 0 {
		c.nc.SetWriteDeadline(time.Now().Add(c.cfg.writeTimeout))
		defer c.nc.SetWriteDeadline(time.Time{})
	}
	return framing.WriteFrame(c.nc, m)
}

// readLoop consumes inbound frames until the connection ends. Sync responses
// feed the correlator; broker notifications and payload messages surface
// through the Events callbacks. Heartbeat requests are consumed silently.
func (c *Client) readLoop() {
	for {
		m, err := framing.ReadFrame(c.nc, c.cfg.maxFrameBytes)
		if err != nil {
			if errors.Is(err, framing.ErrMalformed) {
				c.log.Debug().Err(err).Msg("malformed frame")
				continue
			}
			deliberate := c.closed.Load()
			c.Close()
			if deliberate {
				c.cfg.events.OnDisconnected(nil)
			} else {
				c.log.Debug().Err(err).Msg("connection lost")
				c.cfg.events.OnDisconnected(err)
			}
			return
		}
		switch {
		case m.Is(wire.CommandHeartbeatRequest):
			// Liveness probe; no response required.
		case m.SyncResponse && c.corr.Deliver(m):
			// Consumed by a waiting SendSync.
		default:
			if ev, ok := wire.DecodeEvent(m.Data); ok && guid.IsServer(m.SenderGUID) {
				c.cfg.events.OnEvent(ev, m)
				continue
			}
			c.cfg.events.OnMessage(m)
		}
	}
}

// rejection turns a failed broker reply into an error carrying the reason.
func rejection(reply *wire.Message) error {
	if len(reply.Data) == 0 {
		return ErrRejected
	}
	return &rejectionError{reason: string(reply.Data)}
}

type rejectionError struct {
	reason string
}

func (e *rejectionError) Error() string { return "request rejected by broker: " + e.reason }

func (e *rejectionError) Is(target error) bool { return target == ErrRejected }

// Reason returns the broker's reason token from a rejection error, or "".
func Reason(err error) string {
	var re *rejectionError
	if errors.As(err, &re) {
		return re.reason
	}
	return ""
}
