package client

import (
	"context"
	"fmt"

	"github.com/jjones-jr/parview/rvp"
	"github.com/jjones-jr/parview/stream"
)

// Subscribe subscribes to a stream topic and returns a channel of events.
// The channel is closed when the client disconnects or Unsubscribe is
// called.
//
// Topics follow the parview stream convention:
//   - "actor:<actorID>"  — events for a specific actor
//   - "rank:<n>"         — events for one compositing rank
//   - "session:<id>"     — events for one interactive session
//   - "actors"           — all actor lifecycle events
//   - "frames"           — all frame and camera events
//   - "cluster"          — worker, block, and dataset events
//   - "firehose"         — everything
func (c *Client) Subscribe(ctx context.Context, channel string) (<-chan *stream.Event, error) {
	_, err := c.request(ctx, rvp.MethodSubscribe, rvp.SubscribeRequest{
		Channel: channel,
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %q: %w", channel, err)
	}

	ch := make(chan *stream.Event, 64)
	c.subs.Store(channel, ch)

	return ch, nil
}

// Unsubscribe removes a subscription.
func (c *Client) Unsubscribe(ctx context.Context, channel string) error {
	_, err := c.request(ctx, rvp.MethodUnsubscribe, rvp.UnsubscribeRequest{
		Channel: channel,
	})

	// Close and remove the local channel regardless.
	if val, ok := c.subs.LoadAndDelete(channel); ok {
		ch := val.(chan *stream.Event) //nolint:errcheck // subs map always stores chan *stream.Event
		close(ch)
	}

	return err
}

// WatchActor subscribes to events for a specific actor. This is a
// convenience method that subscribes to "actor:<actorID>".
func (c *Client) WatchActor(ctx context.Context, actorID string) (<-chan *stream.Event, error) {
	return c.Subscribe(ctx, stream.ActorTopic(actorID))
}

// WatchRank subscribes to frame events for one compositing rank. This
// is a convenience method that subscribes to "rank:<n>".
func (c *Client) WatchRank(ctx context.Context, rank int) (<-chan *stream.Event, error) {
	return c.Subscribe(ctx, stream.RankTopic(rank))
}

// AddCredits replenishes flow-control credits for this connection's
// event subscriber. The server pauses event delivery when credits run
// out.
func (c *Client) AddCredits(n int) error {
	return c.writeFrame(&rvp.Frame{
		ID:      rvp.GenerateFrameID(),
		Type:    rvp.FrameRequest,
		Credits: n,
	})
}

// Stats retrieves actor, broker, and subscription statistics from the
// worker.
func (c *Client) Stats(ctx context.Context) (map[string]any, error) {
	resp, err := c.request(ctx, rvp.MethodStats, nil)
	if err != nil {
		return nil, err
	}
	var stats map[string]any
	if err := c.codec.DecodePayload(resp.Data, &stats); err != nil {
		return nil, fmt.Errorf("unmarshal stats response: %w", err)
	}
	return stats, nil
}
