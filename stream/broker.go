package stream

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jjones-jr/parview/cluster"
	"github.com/jjones-jr/parview/dataset"
	"github.com/jjones-jr/parview/ext"
	"github.com/jjones-jr/parview/grid"
	"github.com/jjones-jr/parview/id"
	"github.com/jjones-jr/parview/render"
)

// Compile-time interface checks.
var (
	_ ext.Extension     = (*Broker)(nil)
	_ ext.ActorSpawned  = (*Broker)(nil)
	_ ext.ActorReady    = (*Broker)(nil)
	_ ext.ActorFailed   = (*Broker)(nil)
	_ ext.ActorClosed   = (*Broker)(nil)
	_ ext.FrameRendered = (*Broker)(nil)
	_ ext.FrameFailed   = (*Broker)(nil)
	_ ext.CameraUpdated = (*Broker)(nil)
	_ ext.WorkerJoined  = (*Broker)(nil)
	_ ext.WorkerLeft    = (*Broker)(nil)
	_ ext.BlockAssigned = (*Broker)(nil)
	_ ext.DatasetLoaded = (*Broker)(nil)
	_ ext.Shutdown      = (*Broker)(nil)
)

// DefaultBufferSize is the default per-subscriber event buffer.
const DefaultBufferSize = 256

// DefaultCredits is the default initial credits for new subscribers.
const DefaultCredits int64 = 1000

// Broker is the real-time stream broker. It implements the
// ext.Extension hooks to receive lifecycle events and fans them out to
// subscribers via topic-based pub/sub.
type Broker struct {
	topics *TopicRegistry
	logger *slog.Logger

	// Subscriber management.
	subscribers sync.Map // subscriberID → *Subscriber

	// Metrics.
	totalPublished atomic.Int64

	// Config.
	bufferSize     int
	defaultCredits int64
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithBufferSize sets the per-subscriber event buffer size.
func WithBufferSize(size int) BrokerOption {
	return func(b *Broker) { b.bufferSize = size }
}

// WithDefaultCredits sets the initial credits for new subscribers.
func WithDefaultCredits(credits int64) BrokerOption {
	return func(b *Broker) { b.defaultCredits = credits }
}

// NewBroker creates a new stream broker.
func NewBroker(logger *slog.Logger, opts ...BrokerOption) *Broker {
	b := &Broker{
		topics:         NewTopicRegistry(),
		logger:         logger,
		bufferSize:     DefaultBufferSize,
		defaultCredits: DefaultCredits,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name implements ext.Extension.
func (b *Broker) Name() string { return "stream-broker" }

// Topics returns the topic registry for external use (e.g., the RVP
// server's subscribe handler).
func (b *Broker) Topics() *TopicRegistry { return b.topics }

// Subscribe creates a new subscriber on the given topics.
func (b *Broker) Subscribe(subscriberID string, topics ...string) *Subscriber {
	sub := NewSubscriber(subscriberID, b.bufferSize, b.defaultCredits)
	b.subscribers.Store(subscriberID, sub)
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
	return sub
}

// SubscribeTo adds an existing subscriber to additional topics.
func (b *Broker) SubscribeTo(subscriberID string, topics ...string) {
	val, ok := b.subscribers.Load(subscriberID)
	if !ok {
		return
	}
	sub := val.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
	for _, topic := range topics {
		b.topics.Subscribe(topic, sub)
	}
}

// Unsubscribe removes a subscriber from specific topics.
func (b *Broker) Unsubscribe(subscriberID string, topics ...string) {
	for _, topic := range topics {
		b.topics.Unsubscribe(topic, subscriberID)
	}
}

// RemoveSubscriber removes a subscriber from all topics and closes it.
func (b *Broker) RemoveSubscriber(subscriberID string) {
	b.topics.UnsubscribeAll(subscriberID)
	if val, ok := b.subscribers.LoadAndDelete(subscriberID); ok {
		val.(*Subscriber).Close() //nolint:errcheck // sync.Map always stores *Subscriber
	}
}

// GetSubscriber returns a subscriber by ID.
func (b *Broker) GetSubscriber(subscriberID string) (*Subscriber, bool) {
	val, ok := b.subscribers.Load(subscriberID)
	if !ok {
		return nil, false
	}
	return val.(*Subscriber), true //nolint:errcheck // sync.Map always stores *Subscriber
}

// Stats returns broker statistics.
func (b *Broker) Stats() BrokerStats {
	count := 0
	b.subscribers.Range(func(_, _ any) bool {
		count++
		return true
	})
	return BrokerStats{
		TopicCount:      b.topics.TopicCount(),
		SubscriberCount: count,
		TotalPublished:  b.totalPublished.Load(),
	}
}

// BrokerStats contains broker metrics.
type BrokerStats struct {
	TopicCount      int   `json:"topic_count"`
	SubscriberCount int   `json:"subscriber_count"`
	TotalPublished  int64 `json:"total_published"`
}

// publish creates an event and broadcasts it to all matching topics.
func (b *Broker) publish(evt *Event) {
	topics := resolveTopics(evt)
	delivered := b.topics.Broadcast(topics, evt)
	b.totalPublished.Add(int64(delivered))
}

// mustMarshal marshals data to JSON, panicking on error (programming error).
func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic("stream: marshal event data: " + err.Error())
	}
	return data
}

// ── Actor lifecycle hooks ───────────────────────────

func (b *Broker) OnActorSpawned(_ context.Context, actorID id.ActorID, rank int) error {
	b.publish(&Event{
		Type:      EventActorSpawned,
		Timestamp: time.Now().UTC(),
		Topic:     ActorTopic(actorID.String()),
		Data: mustMarshal(ActorEventData{
			ActorID: actorID.String(),
			Rank:    rank,
		}),
	})
	return nil
}

func (b *Broker) OnActorReady(_ context.Context, actorID id.ActorID, block grid.Block) error {
	b.publish(&Event{
		Type:      EventActorReady,
		Timestamp: time.Now().UTC(),
		Topic:     ActorTopic(actorID.String()),
		Data: mustMarshal(ActorEventData{
			ActorID: actorID.String(),
			Rank:    block.Rank,
			Extent:  block.Extent.String(),
		}),
	})
	return nil
}

func (b *Broker) OnActorFailed(_ context.Context, actorID id.ActorID, actorErr error) error {
	b.publish(&Event{
		Type:      EventActorFailed,
		Timestamp: time.Now().UTC(),
		Topic:     ActorTopic(actorID.String()),
		Data: mustMarshal(ActorEventData{
			ActorID: actorID.String(),
			Error:   actorErr.Error(),
		}),
	})
	return nil
}

func (b *Broker) OnActorClosed(_ context.Context, actorID id.ActorID) error {
	b.publish(&Event{
		Type:      EventActorClosed,
		Timestamp: time.Now().UTC(),
		Topic:     ActorTopic(actorID.String()),
		Data: mustMarshal(ActorEventData{
			ActorID: actorID.String(),
		}),
	})
	return nil
}

// ── Frame lifecycle hooks ───────────────────────────

func (b *Broker) OnFrameRendered(_ context.Context, f *render.Frame, elapsed time.Duration) error {
	b.publish(&Event{
		Type:      EventFrameRendered,
		Timestamp: time.Now().UTC(),
		Topic:     RankTopic(f.Rank),
		Data: mustMarshal(FrameEventData{
			FrameID:   f.ID.String(),
			Rank:      f.Rank,
			Width:     f.Width,
			Height:    f.Height,
			ViewDepth: f.ViewDepth,
			ElapsedMs: elapsed.Milliseconds(),
		}),
	})
	return nil
}

func (b *Broker) OnFrameFailed(_ context.Context, actorID id.ActorID, frameErr error) error {
	b.publish(&Event{
		Type:      EventFrameFailed,
		Timestamp: time.Now().UTC(),
		Topic:     ActorTopic(actorID.String()),
		Data: mustMarshal(FrameEventData{
			ActorID: actorID.String(),
			Error:   frameErr.Error(),
		}),
	})
	return nil
}

func (b *Broker) OnCameraUpdated(_ context.Context, sessionID id.SessionID, cam render.Camera) error {
	b.publish(&Event{
		Type:      EventCameraUpdated,
		Timestamp: time.Now().UTC(),
		Topic:     SessionTopic(sessionID.String()),
		Data: mustMarshal(CameraEventData{
			SessionID:  sessionID.String(),
			Position:   [3]float64{cam.Position.X, cam.Position.Y, cam.Position.Z},
			FocalPoint: [3]float64{cam.FocalPoint.X, cam.FocalPoint.Y, cam.FocalPoint.Z},
			ViewUp:     [3]float64{cam.ViewUp.X, cam.ViewUp.Y, cam.ViewUp.Z},
			FOV:        cam.FOV,
		}),
	})
	return nil
}

// ── Cluster lifecycle hooks ─────────────────────────

func (b *Broker) OnWorkerJoined(_ context.Context, w *cluster.Worker) error {
	b.publish(&Event{
		Type:      EventWorkerJoined,
		Timestamp: time.Now().UTC(),
		Data: mustMarshal(ClusterEventData{
			WorkerID: w.ID.String(),
			Hostname: w.Hostname,
			Addr:     w.Addr,
			Rank:     w.Rank,
		}),
	})
	return nil
}

func (b *Broker) OnWorkerLeft(_ context.Context, workerID id.WorkerID) error {
	b.publish(&Event{
		Type:      EventWorkerLeft,
		Timestamp: time.Now().UTC(),
		Data: mustMarshal(ClusterEventData{
			WorkerID: workerID.String(),
			Rank:     -1,
		}),
	})
	return nil
}

func (b *Broker) OnBlockAssigned(_ context.Context, block grid.Block) error {
	b.publish(&Event{
		Type:      EventBlockAssigned,
		Timestamp: time.Now().UTC(),
		Topic:     RankTopic(block.Rank),
		Data: mustMarshal(ClusterEventData{
			WorkerID: block.Worker.String(),
			Rank:     block.Rank,
			BlockID:  block.ID.String(),
			Extent:   block.Extent.String(),
		}),
	})
	return nil
}

func (b *Broker) OnDatasetLoaded(_ context.Context, m *dataset.Meta, elapsed time.Duration) error {
	b.publish(&Event{
		Type:      EventDatasetLoaded,
		Timestamp: time.Now().UTC(),
		Data: mustMarshal(DatasetEventData{
			DatasetID: m.ID.String(),
			Name:      m.Name,
			ElapsedMs: elapsed.Milliseconds(),
		}),
	})
	return nil
}

// ── Shutdown ────────────────────────────────────────

func (b *Broker) OnShutdown(_ context.Context) error {
	b.subscribers.Range(func(key, value any) bool {
		sub := value.(*Subscriber) //nolint:errcheck // sync.Map always stores *Subscriber
		sub.Close()
		b.subscribers.Delete(key)
		return true
	})
	b.logger.Info("stream broker shut down")
	return nil
}
