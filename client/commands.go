package client

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/spokewise/spokewise-go/internal/guid"
	"github.com/spokewise/spokewise-go/swerrors"
	"github.com/spokewise/spokewise-go/wire"
)

// Echo round-trips a payload through the broker unchanged.
func (c *Client) Echo(ctx context.Context, data []byte) ([]byte, error) {
	reply, err := c.command(ctx, &wire.Message{Command: wire.CommandEcho, Data: data})
	if err != nil {
		return nil, err
	}
	return reply.Data, nil
}

// SendPrivate sends an async payload to a single peer.
func (c *Client) SendPrivate(recipientGUID string, data []byte) error {
	return c.SendAsync(&wire.Message{RecipientGUID: recipientGUID, Data: data})
}

// SendPrivateSync sends a payload to a peer and blocks for the peer's
// correlated response.
func (c *Client) SendPrivateSync(ctx context.Context, recipientGUID string, data []byte) ([]byte, error) {
	reply, err := c.SendSync(ctx, &wire.Message{RecipientGUID: recipientGUID, Data: data})
	if err != nil {
		return nil, err
	}
	return reply.Data, nil
}

// SendChannel publishes an async payload to every other subscriber of the
// channel.
func (c *Client) SendChannel(channelGUID string, data []byte) error {
	return c.SendAsync(&wire.Message{ChannelGUID: channelGUID, Data: data})
}

// CreateChannel creates a channel owned by this client and returns its GUID.
func (c *Client) CreateChannel(ctx context.Context, name string, private bool) (string, error) {
	spec, err := json.Marshal(wire.ChannelSpec{Name: name, Private: private})
	if err != nil {
		return "", swerrors.Wrap(swerrors.PathClient, swerrors.StageValidate, swerrors.CodeInvalidInput, err)
	}
	reply, err := c.command(ctx, &wire.Message{Command: wire.CommandCreateChannel, Data: spec})
	if err != nil {
		return "", err
	}
	return string(reply.Data), nil
}

// JoinChannel subscribes this client to the channel.
func (c *Client) JoinChannel(ctx context.Context, channelGUID string) error {
	_, err := c.command(ctx, &wire.Message{Command: wire.CommandJoinChannel, ChannelGUID: channelGUID})
	return err
}

// LeaveChannel unsubscribes from the channel. When this client owns it, the
// broker deletes the channel and notifies the remaining subscribers.
func (c *Client) LeaveChannel(ctx context.Context, channelGUID string) error {
	_, err := c.command(ctx, &wire.Message{Command: wire.CommandLeaveChannel, ChannelGUID: channelGUID})
	return err
}

// DeleteChannel deletes an owned channel.
func (c *Client) DeleteChannel(ctx context.Context, channelGUID string) error {
	_, err := c.command(ctx, &wire.Message{Command: wire.CommandDeleteChannel, ChannelGUID: channelGUID})
	return err
}

// ListChannels returns every channel visible to this client. Foreign private
// channels are omitted by the broker.
func (c *Client) ListChannels(ctx context.Context) ([]wire.ChannelInfo, error) {
	reply, err := c.command(ctx, &wire.Message{Command: wire.CommandListChannels})
	if err != nil {
		return nil, err
	}
	return wire.DecodeChannelList(reply.Data)
}

// ListChannelSubscribers returns the scrubbed member list of a channel.
func (c *Client) ListChannelSubscribers(ctx context.Context, channelGUID string) ([]wire.ClientInfo, error) {
	reply, err := c.command(ctx, &wire.Message{Command: wire.CommandListChannelSubscribers, ChannelGUID: channelGUID})
	if err != nil {
		return nil, err
	}
	return wire.DecodeClientList(reply.Data)
}

// ListClients returns every logged-in client, scrubbed of credentials.
func (c *Client) ListClients(ctx context.Context) ([]wire.ClientInfo, error) {
	reply, err := c.command(ctx, &wire.Message{Command: wire.CommandListClients})
	if err != nil {
		return nil, err
	}
	return wire.DecodeClientList(reply.Data)
}

// IsClientConnected asks the broker whether a peer is logged in.
func (c *Client) IsClientConnected(ctx context.Context, clientGUID string) (bool, error) {
	reply, err := c.command(ctx, &wire.Message{Command: wire.CommandIsClientConnected, Data: []byte(clientGUID)})
	if err != nil {
		return false, err
	}
	return strconv.ParseBool(string(reply.Data))
}

// command runs one administrative sync round-trip and maps a Success=false
// reply to a rejection error.
func (c *Client) command(ctx context.Context, m *wire.Message) (*wire.Message, error) {
	if !c.loggedIn.Load() {
		return nil, swerrors.Wrap(swerrors.PathClient, swerrors.StageCommand, swerrors.CodeNotLoggedIn, ErrNotLoggedIn)
	}
	m.MessageID = guid.New()
	m.SenderGUID = c.guid
	m.SyncRequest = true
	m.CreatedUTC = time.Now().UTC()
	reply, err := c.roundTrip(ctx, m)
	if err != nil {
		return nil, swerrors.Wrap(swerrors.PathClient, swerrors.StageCommand, swerrors.ClassifySyncCode(err), err)
	}
	if !reply.Succeeded() {
		return nil, swerrors.Wrap(swerrors.PathClient, swerrors.StageCommand, swerrors.CodeRequestRejected, rejection(reply))
	}
	return reply, nil
}
