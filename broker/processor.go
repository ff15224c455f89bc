package broker

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/spokewise/spokewise-go/internal/guid"
	"github.com/spokewise/spokewise-go/observability"
	"github.com/spokewise/spokewise-go/registry"
	"github.com/spokewise/spokewise-go/wire"
)

// process dispatches one decoded, gate-passed message. Administrative
// commands are handled inline; payload messages route to a peer or a channel.
func (s *Server) process(c *conn, m *wire.Message) {
	if m.HasCommand() {
		s.processCommand(c, m)
		return
	}
	s.route(c, m)
}

func (s *Server) processCommand(c *conn, m *wire.Message) {
	switch {
	case m.Is(wire.CommandHeartbeatRequest):
		// Consumed silently.
	case m.Is(wire.CommandEcho):
		s.processEcho(c, m)
	case m.Is(wire.CommandLogin):
		s.processLogin(c, m)
	case m.Is(wire.CommandJoinChannel):
		s.processJoinChannel(c, m)
	case m.Is(wire.CommandLeaveChannel):
		s.processLeaveChannel(c, m)
	case m.Is(wire.CommandCreateChannel):
		s.processCreateChannel(c, m)
	case m.Is(wire.CommandDeleteChannel):
		s.processDeleteChannel(c, m)
	case m.Is(wire.CommandListChannels):
		s.processListChannels(c, m)
	case m.Is(wire.CommandListChannelSubscribers):
		s.processListChannelSubscribers(c, m)
	case m.Is(wire.CommandListClients):
		s.processListClients(c, m)
	case m.Is(wire.CommandIsClientConnected):
		s.processIsClientConnected(c, m)
	default:
		s.obs.Command(m.Command, observability.CommandResultUnknown)
		c.reply(m, false, []byte(wire.ReasonUnknownCommand))
	}
}

// processEcho returns a scrubbed copy of the request with sender and
// recipient swapped.
func (s *Server) processEcho(c *conn, m *wire.Message) {
	echo := m.Redacted()
	echo.SenderGUID, echo.RecipientGUID = m.RecipientGUID, m.SenderGUID
	if echo.SenderGUID == "" {
		echo.SenderGUID = wire.ServerGUID
	}
	echo.Success = wire.Bool(true)
	echo.SyncResponse = m.SyncRequest
	echo.SyncRequest = false
	echo.CreatedUTC = time.Now().UTC()
	s.obs.Command(wire.CommandEcho, observability.CommandResultOK)
	c.send(echo)
}

// processLogin binds identity to the connection's source tuple. The reply is
// written before the join event is published so the new client observes its
// own login before any fan-out.
func (s *Server) processLogin(c *conn, m *wire.Message) {
	if m.SenderGUID == "" || guid.IsServer(m.SenderGUID) || !guid.Valid(m.SenderGUID) {
		s.obs.Command(wire.CommandLogin, observability.CommandResultError)
		c.reply(m, false, []byte("login rejected: invalid client guid"))
		return
	}
	record, displaced := s.reg.UpdateClient(registry.Client{
		GUID:      m.SenderGUID,
		Email:     m.Email,
		IP:        c.ip,
		Port:      c.port,
		Transport: c,
	})
	if displaced != nil {
		// Same identity reconnecting from a new source tuple; the stale
		// connection is torn down without a server-leave event.
		displaced.Close()
	}
	s.obs.Command(wire.CommandLogin, observability.CommandResultOK)
	c.log.Info().Str("client", record.GUID).Str("email", record.Email).Msg("client logged in")
	c.reply(m, true, nil)
	if s.cfg.SendServerJoinNotifications {
		s.publishServerEvent(wire.EventClientJoinedServer, record.GUID)
	}
	s.events.OnClientLogin(record)
}

func (s *Server) processJoinChannel(c *conn, m *wire.Message) {
	sub := s.subscriberFor(m.SenderGUID)
	ch, err := s.reg.AddChannelSubscriber(m.ChannelGUID, sub)
	if err != nil {
		if errors.Is(err, registry.ErrChannelNotFound) {
			s.obs.Command(wire.CommandJoinChannel, observability.CommandResultNotFound)
			c.reply(m, false, []byte(wire.ReasonChannelNotFound))
			return
		}
		s.obs.Command(wire.CommandJoinChannel, observability.CommandResultError)
		c.reply(m, false, []byte("join failed"))
		return
	}
	s.obs.Command(wire.CommandJoinChannel, observability.CommandResultOK)
	c.reply(m, true, []byte(ch.GUID))
	if s.cfg.SendChannelJoinNotifications {
		s.publishChannelEvent(wire.EventClientJoinedChannel, ch, m.SenderGUID)
	}
}

func (s *Server) processLeaveChannel(c *conn, m *wire.Message) {
	ch, ok := s.reg.GetChannelByGUID(m.ChannelGUID)
	if !ok {
		s.obs.Command(wire.CommandLeaveChannel, observability.CommandResultNotFound)
		c.reply(m, false, []byte(wire.ReasonChannelNotFound))
		return
	}
	if ch.OwnerGUID == m.SenderGUID {
		// The owner leaving deletes the channel for everyone.
		removed, _ := s.reg.RemoveChannel(ch.GUID)
		s.obs.Command(wire.CommandLeaveChannel, observability.CommandResultOK)
		s.observeChannelCount()
		c.reply(m, true, []byte(ch.GUID))
		s.publishChannelDeleted(removed)
		return
	}
	removed, err := s.reg.RemoveChannelSubscriber(ch.GUID, m.SenderGUID)
	if err != nil || !removed {
		s.obs.Command(wire.CommandLeaveChannel, observability.CommandResultError)
		c.reply(m, false, []byte(wire.ReasonNotChannelMember))
		return
	}
	s.obs.Command(wire.CommandLeaveChannel, observability.CommandResultOK)
	c.reply(m, true, []byte(ch.GUID))
	if s.cfg.SendChannelJoinNotifications {
		s.publishChannelEvent(wire.EventClientLeftChannel, ch, m.SenderGUID)
	}
}

func (s *Server) processCreateChannel(c *conn, m *wire.Message) {
	spec, ok := wire.DecodeChannelSpec(m.Data)
	if !ok {
		s.obs.Command(wire.CommandCreateChannel, observability.CommandResultError)
		c.reply(m, false, []byte(wire.ReasonInvalidMessage))
		return
	}
	if _, exists := s.reg.GetChannelByName(spec.Name); exists {
		s.obs.Command(wire.CommandCreateChannel, observability.CommandResultError)
		c.reply(m, false, []byte(wire.ReasonChannelExists))
		return
	}
	owner := s.subscriberFor(m.SenderGUID)
	ch, err := s.reg.AddChannel(owner, registry.Channel{
		GUID:    guid.New(),
		Name:    spec.Name,
		Private: spec.Private,
	})
	if err != nil {
		s.obs.Command(wire.CommandCreateChannel, observability.CommandResultError)
		c.reply(m, false, []byte(wire.ReasonChannelExists))
		return
	}
	s.obs.Command(wire.CommandCreateChannel, observability.CommandResultOK)
	s.observeChannelCount()
	c.log.Info().Str("channel", ch.GUID).Str("name", ch.Name).Msg("channel created")
	c.reply(m, true, []byte(ch.GUID))
}

func (s *Server) processDeleteChannel(c *conn, m *wire.Message) {
	ch, ok := s.reg.GetChannelByGUID(m.ChannelGUID)
	if !ok {
		s.obs.Command(wire.CommandDeleteChannel, observability.CommandResultNotFound)
		c.reply(m, false, []byte(wire.ReasonChannelNotFound))
		return
	}
	if ch.OwnerGUID != m.SenderGUID {
		s.obs.Command(wire.CommandDeleteChannel, observability.CommandResultUnauthorized)
		c.reply(m, false, []byte(wire.ReasonNotChannelOwner))
		return
	}
	removed, _ := s.reg.RemoveChannel(ch.GUID)
	s.obs.Command(wire.CommandDeleteChannel, observability.CommandResultOK)
	s.observeChannelCount()
	c.log.Info().Str("channel", ch.GUID).Msg("channel deleted")
	c.reply(m, true, []byte(ch.GUID))
	s.publishChannelDeleted(removed)
}

// processListChannels lists every channel visible to the requester. Private
// channels appear only in their owner's listing.
func (s *Server) processListChannels(c *conn, m *wire.Message) {
	all := s.reg.GetAllChannels()
	infos := make([]wire.ChannelInfo, 0, len(all))
	for _, ch := range all {
		if ch.Private && ch.OwnerGUID != m.SenderGUID {
			continue
		}
		infos = append(infos, wire.ChannelInfo{
			GUID:      ch.GUID,
			Name:      ch.Name,
			OwnerGUID: ch.OwnerGUID,
			Private:   ch.Private,
		})
	}
	data, err := wire.EncodeList(infos)
	if err != nil {
		s.obs.Command(wire.CommandListChannels, observability.CommandResultError)
		c.reply(m, false, nil)
		return
	}
	s.obs.Command(wire.CommandListChannels, observability.CommandResultOK)
	c.reply(m, true, data)
}

func (s *Server) processListChannelSubscribers(c *conn, m *wire.Message) {
	subs, ok := s.reg.GetChannelSubscribers(m.ChannelGUID)
	if !ok {
		s.obs.Command(wire.CommandListChannelSubscribers, observability.CommandResultNotFound)
		c.reply(m, false, []byte(wire.ReasonChannelNotFound))
		return
	}
	infos := make([]wire.ClientInfo, 0, len(subs))
	for _, sub := range subs {
		infos = append(infos, wire.ClientInfo{GUID: sub.GUID, Email: sub.Email})
	}
	data, err := wire.EncodeList(infos)
	if err != nil {
		s.obs.Command(wire.CommandListChannelSubscribers, observability.CommandResultError)
		c.reply(m, false, nil)
		return
	}
	s.obs.Command(wire.CommandListChannelSubscribers, observability.CommandResultOK)
	c.reply(m, true, data)
}

func (s *Server) processListClients(c *conn, m *wire.Message) {
	all := s.reg.GetAllClients()
	infos := make([]wire.ClientInfo, 0, len(all))
	for _, cl := range all {
		if !cl.LoggedIn {
			continue
		}
		infos = append(infos, wire.ClientInfo{GUID: cl.GUID, Email: cl.Email})
	}
	data, err := wire.EncodeList(infos)
	if err != nil {
		s.obs.Command(wire.CommandListClients, observability.CommandResultError)
		c.reply(m, false, nil)
		return
	}
	s.obs.Command(wire.CommandListClients, observability.CommandResultOK)
	c.reply(m, true, data)
}

func (s *Server) processIsClientConnected(c *conn, m *wire.Message) {
	target := strings.TrimSpace(string(m.Data))
	connected := target != "" && s.reg.IsClientConnected(target)
	s.obs.Command(wire.CommandIsClientConnected, observability.CommandResultOK)
	c.reply(m, true, []byte(strconv.FormatBool(connected)))
}

// route relays a payload message to its recipient or channel.
func (s *Server) route(c *conn, m *wire.Message) {
	if err := m.Validate(); err != nil {
		c.reply(m, false, []byte(wire.ReasonInvalidMessage))
		return
	}
	if m.RecipientGUID != "" {
		s.routePrivate(c, m)
		return
	}
	s.routeChannel(c, m)
}

// routePrivate relays to a single peer. Sync traffic never gets a broker
// acknowledgement; the correlated response is the acknowledgement.
func (s *Server) routePrivate(c *conn, m *wire.Message) {
	rec, ok := s.reg.GetClientByGUID(m.RecipientGUID)
	if !ok || rec.Transport == nil {
		s.obs.Deliver(observability.DeliverKindPrivate, observability.DeliverResultRecipientGone)
		c.reply(m, false, []byte(wire.ReasonRecipientNotFound))
		return
	}
	relayed := m.Redacted()
	go s.deliver(observability.DeliverKindPrivate, rec, relayed)
	if m.SyncRequest || m.SyncResponse {
		return
	}
	if s.cfg.SendAcknowledgements {
		c.reply(m, true, []byte(wire.ReasonSendSuccess))
	}
}

// routeChannel fans a payload out to every other subscriber of the channel.
// Each delivery is independently scheduled; a slow or dead subscriber never
// blocks the rest.
func (s *Server) routeChannel(c *conn, m *wire.Message) {
	ch, ok := s.reg.GetChannelByGUID(m.ChannelGUID)
	if !ok {
		c.reply(m, false, []byte(wire.ReasonChannelNotFound))
		return
	}
	if !s.reg.IsChannelSubscriber(ch.GUID, m.SenderGUID) {
		c.reply(m, false, []byte(wire.ReasonNotChannelMember))
		return
	}
	relayed := m.Redacted()
	for _, sub := range ch.Subscribers {
		if sub.GUID == m.SenderGUID {
			continue
		}
		subGUID := sub.GUID
		go func() {
			rec, ok := s.reg.GetClientByGUID(subGUID)
			if !ok || rec.Transport == nil {
				s.obs.Deliver(observability.DeliverKindChannel, observability.DeliverResultRecipientGone)
				return
			}
			s.deliver(observability.DeliverKindChannel, rec, relayed)
		}()
	}
	if !m.SyncRequest && !m.SyncResponse && s.cfg.SendAcknowledgements {
		c.reply(m, true, []byte(wire.ReasonSendSuccess))
	}
}

func (s *Server) deliver(kind observability.DeliverKind, rec registry.Client, m *wire.Message) {
	if err := rec.Transport.Send(m); err != nil {
		s.obs.Deliver(kind, observability.DeliverResultWriteError)
		// A failed write may leave a half-framed record on the wire; the
		// recipient's stream is unusable and the connection must go.
		if tc, ok := rec.Transport.(*conn); ok {
			tc.evict(observability.EvictReasonWriteError)
		} else {
			rec.Transport.Close()
		}
		return
	}
	s.obs.Deliver(kind, observability.DeliverResultOK)
}

// subscriberFor builds a light channel-member reference for a sender.
func (s *Server) subscriberFor(senderGUID string) registry.Subscriber {
	sub := registry.Subscriber{GUID: senderGUID}
	if cl, ok := s.reg.GetClientByGUID(senderGUID); ok {
		sub.Email = cl.Email
	}
	return sub
}

func (s *Server) observeChannelCount() {
	_, channels := s.reg.Counts()
	s.obs.ChannelCount(channels)
}
