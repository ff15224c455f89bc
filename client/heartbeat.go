package client

import (
	"time"

	"github.com/spokewise/spokewise-go/internal/defaults"
	"github.com/spokewise/spokewise-go/wire"
)

// startHeartbeat launches the keepalive sender once per client. Heartbeats
// start only after a successful login; before that the broker would reject
// the frames at the login gate anyway.
func (c *Client) startHeartbeat() {
	interval := defaults.HeartbeatInterval(c.cfg.heartbeatInterval)
	if interval <= 0 {
		return
	}
	c.hbOnce.Do(func() { go c.heartbeatLoop(interval) })
}

func (c *Client) heartbeatLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
		}
		hb := &wire.Message{
			SenderGUID: c.guid,
			Command:    wire.CommandHeartbeatRequest,
			CreatedUTC: time.Now().UTC(),
		}
		if err := c.write(hb); err != nil {
			// The reader notices the broken connection and finishes teardown.
			c.log.Debug().Err(err).Msg("heartbeat write failed")
			return
		}
	}
}
