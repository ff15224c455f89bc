// Package broker implements the hub of the messaging system: a stream server
// that accepts framed client connections, authenticates them, relays directed
// and channel messages, and reaps dead peers.
//
// One Server owns the canonical client and channel registries. Each accepted
// connection runs two workers, a frame reader and a heartbeat supervisor, and
// every outbound relay or notification is scheduled as its own unit of work.
package broker

import (
	"crypto/tls"
	"errors"
	"net"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/spokewise/spokewise-go/observability"
	"github.com/spokewise/spokewise-go/registry"
	"github.com/spokewise/spokewise-go/swerrors"
	"golang.org/x/time/rate"
)

// Server accepts client connections and mediates all traffic between them.
type Server struct {
	cfg    Config
	log    zerolog.Logger
	obs    observability.BrokerObserver
	events Events
	reg    *registry.Registry

	limiter *rate.Limiter // nil when accept rate limiting is disabled

	ln        net.Listener
	connCount int64
	conns     sync.Map // key: *conn, value: struct{}

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}
}

// Stats is a snapshot of broker counts.
type Stats struct {
	ConnCount    int64
	ClientCount  int
	ChannelCount int
}

// New validates and normalizes the config. The server does not listen until
// Start is called.
func New(cfg Config) (*Server, error) {
	cfg, err := normalize(cfg)
	if err != nil {
		return nil, swerrors.Wrap(swerrors.PathBroker, swerrors.StageValidate, swerrors.CodeInvalidInput, err)
	}
	s := &Server{
		cfg:    cfg,
		log:    cfg.Logger,
		obs:    cfg.Observer,
		events: cfg.Events,
		reg:    registry.New(),
		stopCh: make(chan struct{}),
	}
	if cfg.AcceptRatePerSec > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.AcceptRatePerSec), cfg.AcceptBurst)
	}
	return s, nil
}

// Start binds the listener and launches the accept loop. It returns once the
// listener is bound; accepting proceeds in the background until Close.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return swerrors.Wrap(swerrors.PathBroker, swerrors.StageListen, swerrors.CodeListenFailed, err)
	}
	if s.cfg.TLS != nil {
		ln = tls.NewListener(ln, s.cfg.TLS)
	}
	s.ln = ln
	s.log.Info().Str("addr", ln.Addr().String()).Bool("tls", s.cfg.TLS != nil).Msg("broker listening")
	s.wg.Add(1)
	go s.acceptLoop(ln)
	return nil
}

// Addr returns the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Registry exposes the canonical client/channel state for embedders and tests.
func (s *Server) Registry() *registry.Registry { return s.reg }

// Stats returns a snapshot of broker counts.
func (s *Server) Stats() Stats {
	clients, channels := s.reg.Counts()
	return Stats{
		ConnCount:    atomic.LoadInt64(&s.connCount),
		ClientCount:  clients,
		ChannelCount: channels,
	}
}

// Close stops the accept loop, evicts every connection, and fires
// OnServerStopped. It is safe to call more than once.
func (s *Server) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.ln != nil {
			s.ln.Close()
		}
		s.conns.Range(func(key, _ any) bool {
			key.(*conn).evict(observability.EvictReasonServerShutdown)
			return true
		})
		s.wg.Wait()
		s.log.Info().Msg("broker stopped")
		s.events.OnServerStopped()
	})
	return nil
}

func (s *Server) acceptLoop(ln net.Listener) {
	defer s.wg.Done()
	for {
		nc, err := ln.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.obs.Accept(observability.AcceptResultFail, observability.AcceptReasonListenerError)
			s.log.Warn().Err(err).Msg("accept failed")
			continue
		}
		if s.limiter != nil && !s.limiter.Allow() {
			s.obs.Accept(observability.AcceptResultFail, observability.AcceptReasonRateLimited)
			s.log.Debug().Str("remote", nc.RemoteAddr().String()).Msg("connection rate limited")
			nc.Close()
			continue
		}
		if s.cfg.MaxConns > 0 && atomic.LoadInt64(&s.connCount) >= int64(s.cfg.MaxConns) {
			s.obs.Accept(observability.AcceptResultFail, observability.AcceptReasonTooManyConnections)
			s.log.Warn().Str("remote", nc.RemoteAddr().String()).Msg("connection limit reached")
			nc.Close()
			continue
		}
		s.startConn(nc)
	}
}

func (s *Server) startConn(nc net.Conn) {
	ip, port := splitAddr(nc.RemoteAddr())
	c := newConn(s, nc, ip, port)

	record, displaced := s.reg.AddClient(registry.Client{IP: ip, Port: port, Transport: c})
	if displaced != nil {
		// A stale unauthenticated connection shared this source tuple; its
		// worker notices the close and finishes its own eviction.
		displaced.Close()
	}

	s.conns.Store(c, struct{}{})
	n := atomic.AddInt64(&s.connCount, 1)
	s.obs.ConnCount(n)
	s.obs.Accept(observability.AcceptResultOK, observability.AcceptReasonOK)
	c.log.Debug().Msg("connection accepted")
	s.events.OnClientConnected(record)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		c.readLoop()
	}()
	go func() {
		defer s.wg.Done()
		c.heartbeatLoop()
	}()
}

func (s *Server) dropConn(c *conn) {
	if _, loaded := s.conns.LoadAndDelete(c); !loaded {
		return
	}
	n := atomic.AddInt64(&s.connCount, -1)
	s.obs.ConnCount(n)
}

func splitAddr(addr net.Addr) (string, int) {
	host, portStr, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String(), 0
	}
	port, _ := strconv.Atoi(portStr)
	return host, port
}
