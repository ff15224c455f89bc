// Package syncreq correlates synchronous requests with their responses.
//
// A caller registers an outstanding MessageId, sends the request, and blocks
// in Await until the matching response is delivered or the deadline elapses.
// A background sweep removes registrations and unconsumed responses that
// outlive the configured timeout.
package syncreq

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/spokewise/spokewise-go/internal/defaults"
	"github.com/spokewise/spokewise-go/wire"
)

var (
	ErrDuplicateID = errors.New("sync request id already registered")
	ErrTimeout     = errors.New("sync response timed out")
	ErrClosed      = errors.New("correlator closed")
)

type slot struct {
	issued time.Time
	ch     chan *wire.Message // closed by sweep or Close to release waiters
	closed bool
}

// Correlator owns the pending sync-request slots for one logical caller.
type Correlator struct {
	timeout time.Duration

	mu    sync.Mutex
	slots map[string]*slot

	stopCh   chan struct{}
	stopOnce sync.Once
}

// New returns a correlator sweeping expired slots in the background. A
// non-positive timeout falls back to the package default.
func New(timeout time.Duration) *Correlator {
	if timeout <= 0 {
		timeout = defaults.SyncTimeout
	}
	c := &Correlator{
		timeout: timeout,
		slots:   make(map[string]*slot),
		stopCh:  make(chan struct{}),
	}
	go c.sweepLoop(defaults.SweepInterval(timeout))
	return c
}

// Register records an outstanding request under its id. It fails when the id
// is already pending.
func (c *Correlator) Register(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.slots[id]; ok {
		return ErrDuplicateID
	}
	c.slots[id] = &slot{issued: time.Now(), ch: make(chan *wire.Message, 1)}
	return nil
}

// Deliver hands a response to the waiter registered under its MessageId. It
// returns false when no request was registered, signalling the caller to
// route the message through the async path instead.
func (c *Correlator) Deliver(m *wire.Message) bool {
	if m == nil || m.MessageID == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.slots[m.MessageID]
	if !ok || s.closed {
		return false
	}
	select {
	case s.ch <- m:
		return true
	default:
		// A response is already buffered for this id; treat the duplicate
		// as unsolicited.
		return false
	}
}

// Await blocks until Deliver fires for the id, the context ends, or the slot
// is swept. The slot is always removed before Await returns.
func (c *Correlator) Await(ctx context.Context, id string) (*wire.Message, error) {
	c.mu.Lock()
	s, ok := c.slots[id]
	c.mu.Unlock()
	if !ok {
		return nil, ErrTimeout
	}
	defer c.remove(id)

	select {
	case m, ok := <-s.ch:
		if !ok || m == nil {
			// Swept or closed while waiting.
			return nil, ErrTimeout
		}
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.stopCh:
		return nil, ErrClosed
	}
}

// Sweep removes every registration whose issue time plus the timeout is in
// the past, along with any response that was never consumed. It returns the
// number of slots removed.
func (c *Correlator) Sweep() int {
	cutoff := time.Now().Add(-c.timeout)
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, s := range c.slots {
		if s.issued.Before(cutoff) {
			if !s.closed {
				s.closed = true
				close(s.ch)
			}
			delete(c.slots, id)
			removed++
		}
	}
	return removed
}

// Pending returns the number of outstanding slots.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

// Close stops the sweep loop and releases every waiter with ErrClosed.
func (c *Correlator) Close() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
		c.mu.Lock()
		for id, s := range c.slots {
			if !s.closed {
				s.closed = true
				close(s.ch)
			}
			delete(c.slots, id)
		}
		c.mu.Unlock()
	})
}

func (c *Correlator) remove(id string) {
	c.mu.Lock()
	if s, ok := c.slots[id]; ok {
		if !s.closed {
			s.closed = true
			close(s.ch)
		}
		delete(c.slots, id)
	}
	c.mu.Unlock()
}

func (c *Correlator) sweepLoop(interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-t.C:
			c.Sweep()
		}
	}
}
