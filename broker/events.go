package broker

import (
	"github.com/spokewise/spokewise-go/observability"
	"github.com/spokewise/spokewise-go/registry"
	"github.com/spokewise/spokewise-go/wire"
)

// publishServerEvent notifies every other logged-in client that the subject
// joined or left the server. Each recipient gets its own independently
// scheduled send.
func (s *Server) publishServerEvent(evType wire.EventType, subjectGUID string) {
	ev := wire.Event{EventType: evType, Data: subjectGUID}
	for _, cl := range s.reg.GetAllClients() {
		if !cl.LoggedIn || cl.GUID == subjectGUID {
			continue
		}
		s.scheduleEvent(cl.GUID, ev)
	}
}

// publishChannelEvent notifies every other subscriber of the channel that the
// subject joined or left it.
func (s *Server) publishChannelEvent(evType wire.EventType, ch registry.Channel, subjectGUID string) {
	ev := wire.Event{EventType: evType, Data: subjectGUID}
	for _, sub := range ch.Subscribers {
		if sub.GUID == subjectGUID {
			continue
		}
		s.scheduleEvent(sub.GUID, ev)
	}
}

// publishChannelDeleted tells every remaining subscriber the owner deleted
// the channel. This is a correctness notification and is never gated by the
// channel-event flag.
func (s *Server) publishChannelDeleted(removed registry.RemovedChannel) {
	ev := wire.Event{EventType: wire.EventChannelDeletedByOwner, Data: removed.Channel.GUID}
	for _, sub := range removed.Subscribers {
		if sub.GUID == removed.Channel.OwnerGUID {
			continue
		}
		s.scheduleEvent(sub.GUID, ev)
	}
}

// scheduleEvent resolves the recipient's live transport at dispatch time and
// sends the event in its own goroutine. A recipient that vanished between
// snapshot and dispatch is skipped.
func (s *Server) scheduleEvent(recipientGUID string, ev wire.Event) {
	go func() {
		m, err := wire.EventMessage(recipientGUID, ev)
		if err != nil {
			return
		}
		rec, ok := s.reg.GetClientByGUID(recipientGUID)
		if !ok || rec.Transport == nil {
			s.obs.Deliver(observability.DeliverKindEvent, observability.DeliverResultRecipientGone)
			return
		}
		s.deliver(observability.DeliverKindEvent, rec, m)
	}()
}
