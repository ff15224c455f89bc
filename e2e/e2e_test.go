package e2e_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/spokewise/spokewise-go/broker"
	"github.com/spokewise/spokewise-go/client"
	"github.com/spokewise/spokewise-go/framing"
	"github.com/spokewise/spokewise-go/wire"
)

const (
	guidC1 = "11111111-1111-1111-1111-111111111111"
	guidC2 = "22222222-2222-2222-2222-222222222222"
	guidC3 = "33333333-3333-3333-3333-333333333333"
)

// newTestTLS builds a self-signed server certificate for 127.0.0.1 and a
// client config that trusts it.
func newTestTLS(t *testing.T) (*tls.Config, *tls.Config) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "spokewise-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	pool := x509.NewCertPool()
	pool.AddCert(cert)

	serverCfg := &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{der}, PrivateKey: key}},
	}
	clientCfg := &tls.Config{RootCAs: pool, ServerName: "127.0.0.1"}
	return serverCfg, clientCfg
}

type collector struct {
	client.NoopEvents
	mu       sync.Mutex
	messages []*wire.Message
	events   []wire.Event
}

func (c *collector) OnMessage(m *wire.Message) {
	c.mu.Lock()
	c.messages = append(c.messages, m)
	c.mu.Unlock()
}

func (c *collector) OnEvent(ev wire.Event, _ *wire.Message) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *collector) waitMessage(t *testing.T) *wire.Message {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		if len(c.messages) > 0 {
			m := c.messages[0]
			c.messages = c.messages[1:]
			c.mu.Unlock()
			return m
		}
		c.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("no message arrived")
	return nil
}

func (c *collector) waitEvent(t *testing.T, want wire.EventType) wire.Event {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		for _, ev := range c.events {
			if ev.EventType == want {
				c.mu.Unlock()
				return ev
			}
		}
		c.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("event %s never arrived", want)
	return wire.Event{}
}

func (c *collector) messageCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

func startBroker(t *testing.T, mutate func(*broker.Config)) *broker.Server {
	t.Helper()
	cfg := broker.DefaultConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.HeartbeatInterval = 0
	if mutate != nil {
		mutate(&cfg)
	}
	s, err := broker.New(cfg)
	if err != nil {
		t.Fatalf("broker.New() failed: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("broker.Start() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func dialAndLogin(t *testing.T, ctx context.Context, s *broker.Server, g, email string, opts ...client.Option) *client.Client {
	t.Helper()
	c, err := client.Connect(ctx, s.Addr().String(), g, email, opts...)
	if err != nil {
		t.Fatalf("connect %s failed: %v", g, err)
	}
	t.Cleanup(func() { c.Close() })
	if err := c.Login(ctx, "secret"); err != nil {
		t.Fatalf("login %s failed: %v", g, err)
	}
	return c
}

// Full flow over TLS: login, server-join events, channel fan-out with the
// sender excluded, private sync round-trip, owner-leave deletion notice.
func TestE2E_TLSBrokerFullFlow(t *testing.T) {
	serverTLS, clientTLS := newTestTLS(t)
	s := startBroker(t, func(cfg *broker.Config) {
		cfg.TLS = serverTLS
		cfg.SendServerJoinNotifications = true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	col1 := &collector{}
	col2 := &collector{}
	col3 := &collector{}
	c1 := dialAndLogin(t, ctx, s, guidC1, "c1@x", client.WithTLS(clientTLS), client.WithEvents(col1))
	c2 := dialAndLogin(t, ctx, s, guidC2, "c2@x", client.WithTLS(clientTLS), client.WithEvents(col2))
	c3 := dialAndLogin(t, ctx, s, guidC3, "c3@x", client.WithTLS(clientTLS), client.WithEvents(col3))

	// c1 observes the later arrivals joining the server.
	col1.waitEvent(t, wire.EventClientJoinedServer)

	chGUID, err := c1.CreateChannel(ctx, "general", false)
	if err != nil {
		t.Fatal(err)
	}
	if err := c2.JoinChannel(ctx, chGUID); err != nil {
		t.Fatal(err)
	}
	if err := c3.JoinChannel(ctx, chGUID); err != nil {
		t.Fatal(err)
	}

	if err := c1.SendChannel(chGUID, []byte("to-all")); err != nil {
		t.Fatal(err)
	}
	for _, col := range []*collector{col2, col3} {
		got := col.waitMessage(t)
		if string(got.Data) != "to-all" || got.SenderGUID != guidC1 {
			t.Fatalf("unexpected fan-out copy: %+v", got)
		}
	}
	// The sender receives no copy of its own broadcast.
	time.Sleep(100 * time.Millisecond)
	if n := col1.messageCount(); n != 0 {
		t.Fatalf("sender received %d stray messages", n)
	}

	// Owner abandons the channel; remaining subscribers get the deletion
	// notice and the channel disappears from listings.
	if err := c1.LeaveChannel(ctx, chGUID); err != nil {
		t.Fatal(err)
	}
	ev := col2.waitEvent(t, wire.EventChannelDeletedByOwner)
	if ev.Data != chGUID {
		t.Fatalf("unexpected deleted channel %q", ev.Data)
	}
	channels, err := c2.ListChannels(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for _, ch := range channels {
		if ch.GUID == chGUID {
			t.Fatalf("deleted channel still listed")
		}
	}
}

// A peer that vanishes without a clean close is reaped by the heartbeat
// probe, and the survivors learn about it through a server-leave event.
func TestE2E_DeadPeerReaped(t *testing.T) {
	s := startBroker(t, func(cfg *broker.Config) {
		cfg.HeartbeatInterval = 100 * time.Millisecond
		cfg.SendServerJoinNotifications = true
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	col1 := &collector{}
	dialAndLogin(t, ctx, s, guidC1, "c1@x", client.WithEvents(col1))

	// The doomed peer speaks the raw protocol so its death can be abrupt.
	nc, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatal(err)
	}
	if err := framing.WriteFrame(nc, &wire.Message{
		MessageID:   "login-doomed",
		SenderGUID:  guidC2,
		Command:     wire.CommandLogin,
		Email:       "c2@x",
		SyncRequest: true,
	}); err != nil {
		t.Fatal(err)
	}
	nc.SetReadDeadline(time.Now().Add(2 * time.Second))
	if reply, err := framing.ReadFrame(nc, 0); err != nil || !reply.Succeeded() {
		t.Fatalf("raw login failed: %v %+v", err, reply)
	}
	col1.waitEvent(t, wire.EventClientJoinedServer)

	// Kill the socket without a goodbye.
	if tc, ok := nc.(*net.TCPConn); ok {
		tc.SetLinger(0)
	}
	nc.Close()

	ev := col1.waitEvent(t, wire.EventClientLeftServer)
	if ev.Data != guidC2 {
		t.Fatalf("unexpected departed peer %q", ev.Data)
	}
	deadline := time.Now().Add(3 * time.Second)
	for {
		if clients, _ := s.Registry().Counts(); clients == 1 {
			break
		}
		if time.Now().After(deadline) {
			clients, _ := s.Registry().Counts()
			t.Fatalf("dead peer still registered, %d clients", clients)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
