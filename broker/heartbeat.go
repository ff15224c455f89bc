package broker

import (
	"time"

	"github.com/spokewise/spokewise-go/framing"
	"github.com/spokewise/spokewise-go/observability"
	"github.com/spokewise/spokewise-go/wire"
)

// heartbeatLoop probes the peer on the configured cadence and evicts it when
// the socket shows a dead peer or writes keep failing. A zero interval
// disables the supervisor.
func (c *conn) heartbeatLoop() {
	interval := c.srv.cfg.HeartbeatInterval
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
		}
		if c.closed.Load() {
			return
		}
		if !framing.PeerAlive(c.nc) {
			c.evict(observability.EvictReasonProbeDead)
			return
		}
		if c.heartbeatOnce() {
			failures = 0
			continue
		}
		failures++
		if failures >= c.srv.cfg.MaxHeartbeatFailures {
			c.evict(observability.EvictReasonHeartbeatFailed)
			return
		}
	}
}

// heartbeatOnce sends a single heartbeat request and reports write success.
// Clients consume these silently; liveness is inferred from write success
// alone.
func (c *conn) heartbeatOnce() bool {
	hb := &wire.Message{
		SenderGUID: wire.ServerGUID,
		Command:    wire.CommandHeartbeatRequest,
		CreatedUTC: time.Now().UTC(),
	}
	if err := c.Send(hb); err != nil {
		c.srv.obs.Heartbeat(observability.HeartbeatResultWriteFailed)
		return false
	}
	c.srv.obs.Heartbeat(observability.HeartbeatResultOK)
	return true
}
