package observability

import (
	"sync"
	"sync/atomic"
)

type AcceptResult string

const (
	AcceptResultOK   AcceptResult = "ok"
	AcceptResultFail AcceptResult = "fail"
)

type AcceptReason string

const (
	AcceptReasonOK                 AcceptReason = "ok"
	AcceptReasonTooManyConnections AcceptReason = "too_many_connections"
	AcceptReasonRateLimited        AcceptReason = "rate_limited"
	AcceptReasonListenerError      AcceptReason = "listener_error"
)

type EvictReason string

const (
	EvictReasonPeerClosed      EvictReason = "peer_closed"
	EvictReasonReadError       EvictReason = "read_error"
	EvictReasonWriteError      EvictReason = "write_error"
	EvictReasonProbeDead       EvictReason = "probe_dead"
	EvictReasonHeartbeatFailed EvictReason = "heartbeat_failed"
	EvictReasonReplaced        EvictReason = "replaced"
	EvictReasonServerShutdown  EvictReason = "server_shutdown"
)

type CommandResult string

const (
	CommandResultOK           CommandResult = "ok"
	CommandResultError        CommandResult = "error"
	CommandResultNotFound     CommandResult = "not_found"
	CommandResultUnauthorized CommandResult = "unauthorized"
	CommandResultUnknown      CommandResult = "unknown"
)

type DeliverKind string

const (
	DeliverKindPrivate DeliverKind = "private"
	DeliverKindChannel DeliverKind = "channel"
	DeliverKindEvent   DeliverKind = "event"
	DeliverKindReply   DeliverKind = "reply"
)

type DeliverResult string

const (
	DeliverResultOK            DeliverResult = "ok"
	DeliverResultRecipientGone DeliverResult = "recipient_gone"
	DeliverResultWriteError    DeliverResult = "write_error"
)

type HeartbeatResult string

const (
	HeartbeatResultOK          HeartbeatResult = "ok"
	HeartbeatResultWriteFailed HeartbeatResult = "write_failed"
)

// BrokerObserver receives broker-level metric events.
type BrokerObserver interface {
	ConnCount(n int64)
	ChannelCount(n int)
	Accept(result AcceptResult, reason AcceptReason)
	Evict(reason EvictReason)
	Command(name string, result CommandResult)
	Deliver(kind DeliverKind, result DeliverResult)
	Heartbeat(result HeartbeatResult)
}

type noopBrokerObserver struct{}

func (noopBrokerObserver) ConnCount(int64)                    {}
func (noopBrokerObserver) ChannelCount(int)                   {}
func (noopBrokerObserver) Accept(AcceptResult, AcceptReason)  {}
func (noopBrokerObserver) Evict(EvictReason)                  {}
func (noopBrokerObserver) Command(string, CommandResult)      {}
func (noopBrokerObserver) Deliver(DeliverKind, DeliverResult) {}
func (noopBrokerObserver) Heartbeat(HeartbeatResult)          {}

// NoopBrokerObserver is a zero-cost observer used when metrics are disabled.
var NoopBrokerObserver BrokerObserver = noopBrokerObserver{}

// AtomicBrokerObserver swaps its delegate at runtime.
type AtomicBrokerObserver struct {
	once sync.Once
	v    atomic.Value
}

type brokerObserverHolder struct {
	obs BrokerObserver
}

// NewAtomicBrokerObserver returns an initialized atomic observer.
func NewAtomicBrokerObserver() *AtomicBrokerObserver {
	a := &AtomicBrokerObserver{}
	a.once.Do(func() { a.v.Store(&brokerObserverHolder{obs: NoopBrokerObserver}) })
	return a
}

// Set replaces the delegate, falling back to the no-op observer on nil.
func (a *AtomicBrokerObserver) Set(obs BrokerObserver) {
	if obs == nil {
		obs = NoopBrokerObserver
	}
	a.once.Do(func() { a.v.Store(&brokerObserverHolder{obs: NoopBrokerObserver}) })
	a.v.Store(&brokerObserverHolder{obs: obs})
}

func (a *AtomicBrokerObserver) load() BrokerObserver {
	a.once.Do(func() { a.v.Store(&brokerObserverHolder{obs: NoopBrokerObserver}) })
	return a.v.Load().(*brokerObserverHolder).obs
}

func (a *AtomicBrokerObserver) ConnCount(n int64)  { a.load().ConnCount(n) }
func (a *AtomicBrokerObserver) ChannelCount(n int) { a.load().ChannelCount(n) }
func (a *AtomicBrokerObserver) Accept(result AcceptResult, reason AcceptReason) {
	a.load().Accept(result, reason)
}
func (a *AtomicBrokerObserver) Evict(reason EvictReason) { a.load().Evict(reason) }
func (a *AtomicBrokerObserver) Command(name string, result CommandResult) {
	a.load().Command(name, result)
}
func (a *AtomicBrokerObserver) Deliver(kind DeliverKind, result DeliverResult) {
	a.load().Deliver(kind, result)
}
func (a *AtomicBrokerObserver) Heartbeat(result HeartbeatResult) { a.load().Heartbeat(result) }
