// Package stream provides a real-time event broker for parview
// lifecycle events. It bridges the ext.Extension system to connected
// clients via topic-based pub/sub: a notebook widget subscribes to the
// frames topic to drive its display, a dashboard to the cluster topic.
package stream

import (
	"encoding/json"
	"time"
)

// EventType identifies the kind of lifecycle event.
type EventType string

const (
	// Actor events.
	EventActorSpawned EventType = "actor.spawned"
	EventActorReady   EventType = "actor.ready"
	EventActorFailed  EventType = "actor.failed"
	EventActorClosed  EventType = "actor.closed"

	// Frame events.
	EventFrameRendered EventType = "frame.rendered"
	EventFrameFailed   EventType = "frame.failed"
	EventCameraUpdated EventType = "camera.updated"

	// Cluster events.
	EventWorkerJoined  EventType = "worker.joined"
	EventWorkerLeft    EventType = "worker.left"
	EventBlockAssigned EventType = "block.assigned"
	EventDatasetLoaded EventType = "dataset.loaded"
)

// Event is the envelope sent to subscribers on a topic channel.
type Event struct {
	// Type identifies the lifecycle event.
	Type EventType `json:"type"`

	// Timestamp is when the event was emitted.
	Timestamp time.Time `json:"ts"`

	// Topic is the entity-specific channel this event belongs to.
	Topic string `json:"topic"`

	// Data is the event-specific payload.
	Data json.RawMessage `json:"data"`
}

// ActorEventData is the payload for actor lifecycle events.
type ActorEventData struct {
	ActorID string `json:"actor_id"`
	Rank    int    `json:"rank"`
	Extent  string `json:"extent,omitempty"`
	Error   string `json:"error,omitempty"`
}

// FrameEventData is the payload for frame lifecycle events. The pixel
// buffer itself travels over the wire protocol, not the event stream;
// subscribers get the frame identity and timing.
type FrameEventData struct {
	FrameID   string  `json:"frame_id,omitempty"`
	ActorID   string  `json:"actor_id,omitempty"`
	Rank      int     `json:"rank"`
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
	ViewDepth float64 `json:"view_depth,omitempty"`
	ElapsedMs int64   `json:"elapsed_ms,omitempty"`
	Error     string  `json:"error,omitempty"`
}

// CameraEventData is the payload for camera interaction events.
type CameraEventData struct {
	SessionID  string     `json:"session_id"`
	Position   [3]float64 `json:"position"`
	FocalPoint [3]float64 `json:"focal_point"`
	ViewUp     [3]float64 `json:"view_up"`
	FOV        float64    `json:"fov"`
}

// ClusterEventData is the payload for worker and block events.
type ClusterEventData struct {
	WorkerID string `json:"worker_id,omitempty"`
	Hostname string `json:"hostname,omitempty"`
	Addr     string `json:"addr,omitempty"`
	Rank     int    `json:"rank"`
	BlockID  string `json:"block_id,omitempty"`
	Extent   string `json:"extent,omitempty"`
}

// DatasetEventData is the payload for dataset load events.
type DatasetEventData struct {
	DatasetID string `json:"dataset_id"`
	Name      string `json:"name"`
	ElapsedMs int64  `json:"elapsed_ms"`
}
