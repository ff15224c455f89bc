package registry

import (
	"strings"
	"time"
)

// Subscriber is a light reference to a channel member. It carries only
// identity fields, so subscriber listings are already scrubbed of credentials
// and transport state. Deliveries resolve the live transport through the
// client collection at dispatch time.
type Subscriber struct {
	GUID  string
	Email string
}

// Channel is the canonical record for one pub/sub channel. The owner is
// always present in the subscriber list, and the list holds no duplicates by
// client GUID.
type Channel struct {
	GUID        string
	Name        string
	OwnerGUID   string
	Private     bool
	CreatedUTC  time.Time
	UpdatedUTC  time.Time
	Subscribers []Subscriber
}

func (ch *Channel) hasSubscriber(guid string) bool {
	for _, s := range ch.Subscribers {
		if s.GUID == guid {
			return true
		}
	}
	return false
}

func (ch *Channel) snapshot() Channel {
	cp := *ch
	cp.Subscribers = append([]Subscriber(nil), ch.Subscribers...)
	return cp
}

// RemovedChannel pairs a deleted channel with the subscribers that must be
// told about the deletion. Dispatch is the caller's job; the registry never
// sends while holding a lock.
type RemovedChannel struct {
	Channel     Channel
	Subscribers []Subscriber
}

// AddChannel inserts the channel, stamps timestamps, assigns the owner, and
// seeds the subscriber list with the owner. It fails with ErrChannelExists
// when the GUID is already present; name collisions are the caller's
// responsibility to pre-check.
func (r *Registry) AddChannel(owner Subscriber, ch Channel) (Channel, error) {
	now := time.Now().UTC()
	ch.OwnerGUID = owner.GUID
	ch.CreatedUTC = now
	ch.UpdatedUTC = now
	ch.Subscribers = []Subscriber{owner}

	r.channelsMu.Lock()
	defer r.channelsMu.Unlock()
	if _, ok := r.channels[ch.GUID]; ok {
		return Channel{}, ErrChannelExists
	}
	stored := ch.snapshot()
	r.channels[ch.GUID] = &stored
	return stored.snapshot(), nil
}

// RemoveChannel deletes the channel and returns it together with its
// subscriber snapshot so the caller can emit channel-deleted notifications.
func (r *Registry) RemoveChannel(guid string) (RemovedChannel, bool) {
	r.channelsMu.Lock()
	ch, ok := r.channels[guid]
	if !ok {
		r.channelsMu.Unlock()
		return RemovedChannel{}, false
	}
	delete(r.channels, guid)
	removed := RemovedChannel{Channel: ch.snapshot(), Subscribers: append([]Subscriber(nil), ch.Subscribers...)}
	r.channelsMu.Unlock()
	return removed, true
}

// AddChannelSubscriber adds the subscriber unless already present. Joining
// twice yields a single subscription.
func (r *Registry) AddChannelSubscriber(guid string, sub Subscriber) (Channel, error) {
	r.channelsMu.Lock()
	defer r.channelsMu.Unlock()
	ch, ok := r.channels[guid]
	if !ok {
		return Channel{}, ErrChannelNotFound
	}
	if !ch.hasSubscriber(sub.GUID) {
		ch.Subscribers = append(ch.Subscribers, sub)
		ch.UpdatedUTC = time.Now().UTC()
	}
	return ch.snapshot(), nil
}

// RemoveChannelSubscriber drops the subscriber if present. It reports whether
// a subscription was removed.
func (r *Registry) RemoveChannelSubscriber(guid string, clientGUID string) (bool, error) {
	r.channelsMu.Lock()
	defer r.channelsMu.Unlock()
	ch, ok := r.channels[guid]
	if !ok {
		return false, ErrChannelNotFound
	}
	for i, s := range ch.Subscribers {
		if s.GUID == clientGUID {
			ch.Subscribers = append(ch.Subscribers[:i], ch.Subscribers[i+1:]...)
			ch.UpdatedUTC = time.Now().UTC()
			return true, nil
		}
	}
	return false, nil
}

// IsChannelSubscriber reports whether the client subscribes to the channel.
func (r *Registry) IsChannelSubscriber(guid string, clientGUID string) bool {
	r.channelsMu.Lock()
	defer r.channelsMu.Unlock()
	ch, ok := r.channels[guid]
	if !ok {
		return false
	}
	return ch.hasSubscriber(clientGUID)
}

// GetChannelByGUID returns a snapshot of the channel.
func (r *Registry) GetChannelByGUID(guid string) (Channel, bool) {
	r.channelsMu.Lock()
	defer r.channelsMu.Unlock()
	if ch, ok := r.channels[guid]; ok {
		return ch.snapshot(), true
	}
	return Channel{}, false
}

// GetChannelByName returns a snapshot of the channel matched by name,
// compared case-insensitively.
func (r *Registry) GetChannelByName(name string) (Channel, bool) {
	r.channelsMu.Lock()
	defer r.channelsMu.Unlock()
	for _, ch := range r.channels {
		if strings.EqualFold(ch.Name, name) {
			return ch.snapshot(), true
		}
	}
	return Channel{}, false
}

// GetAllChannels returns a snapshot of every channel.
func (r *Registry) GetAllChannels() []Channel {
	r.channelsMu.Lock()
	defer r.channelsMu.Unlock()
	out := make([]Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		out = append(out, ch.snapshot())
	}
	return out
}

// GetChannelSubscribers returns the subscriber snapshot for a channel.
func (r *Registry) GetChannelSubscribers(guid string) ([]Subscriber, bool) {
	r.channelsMu.Lock()
	defer r.channelsMu.Unlock()
	ch, ok := r.channels[guid]
	if !ok {
		return nil, false
	}
	return append([]Subscriber(nil), ch.Subscribers...), true
}

// RemoveClientChannels deletes every channel owned by the client and returns
// the removals so the caller can notify the remaining subscribers.
func (r *Registry) RemoveClientChannels(ownerGUID string) []RemovedChannel {
	var removed []RemovedChannel
	r.channelsMu.Lock()
	for guid, ch := range r.channels {
		if ch.OwnerGUID == ownerGUID {
			delete(r.channels, guid)
			removed = append(removed, RemovedChannel{
				Channel:     ch.snapshot(),
				Subscribers: append([]Subscriber(nil), ch.Subscribers...),
			})
		}
	}
	r.channelsMu.Unlock()
	return removed
}

// RemoveSubscriberAll drops the client from every channel it subscribes to
// and returns snapshots of the affected channels. Owned channels are expected
// to have been removed through RemoveClientChannels first.
func (r *Registry) RemoveSubscriberAll(clientGUID string) []Channel {
	var affected []Channel
	r.channelsMu.Lock()
	for _, ch := range r.channels {
		for i, s := range ch.Subscribers {
			if s.GUID == clientGUID {
				ch.Subscribers = append(ch.Subscribers[:i], ch.Subscribers[i+1:]...)
				ch.UpdatedUTC = time.Now().UTC()
				affected = append(affected, ch.snapshot())
				break
			}
		}
	}
	r.channelsMu.Unlock()
	return affected
}
