// Package rvp implements the Render View Protocol (RVP) — a message-based
// protocol between viewing clients and rendering workers. RVP is
// transported over WebSocket (primary), SSE (read-only fallback), and
// HTTP (one-shot RPC).
package rvp

import (
	"encoding/json"
	"time"

	"github.com/jjones-jr/parview/actor"
	"github.com/jjones-jr/parview/render"
)

// FrameType identifies the frame category.
type FrameType string

const (
	FrameRequest  FrameType = "request"
	FrameResponse FrameType = "response"
	FrameEvent    FrameType = "event"
	FrameErr      FrameType = "error"
	FramePing     FrameType = "ping"
	FramePong     FrameType = "pong"
)

// Frame is the RVP message envelope. Every message exchanged over
// the protocol is a Frame.
type Frame struct {
	// ID uniquely identifies this frame.
	ID string `json:"id" msgpack:"id"`

	// Type categorizes the frame.
	Type FrameType `json:"type" msgpack:"type"`

	// Method names the operation for request frames (e.g., "actor.render").
	Method string `json:"method,omitempty" msgpack:"method,omitempty"`

	// CorrelID links a response to its originating request.
	CorrelID string `json:"correl_id,omitempty" msgpack:"correl_id,omitempty"`

	// Token carries auth credentials (typically only on the auth frame).
	Token string `json:"token,omitempty" msgpack:"token,omitempty"`

	// Data carries the method-specific payload, encoded with the
	// connection's negotiated codec.
	Data json.RawMessage `json:"data,omitempty" msgpack:"data,omitempty"`

	// Error carries error details for error frames.
	Error *ErrorDetail `json:"error,omitempty" msgpack:"error,omitempty"`

	// Channel identifies the subscription channel for event/subscribe frames.
	Channel string `json:"channel,omitempty" msgpack:"channel,omitempty"`

	// Credits replenishes flow-control credits (backpressure).
	Credits int `json:"credits,omitempty" msgpack:"credits,omitempty"`

	// Timestamp records when this frame was created.
	Timestamp time.Time `json:"ts" msgpack:"ts"`
}

// ErrorDetail describes an error in a response or error frame.
type ErrorDetail struct {
	Code    int    `json:"code" msgpack:"code"`
	Message string `json:"message" msgpack:"message"`
	Details string `json:"details,omitempty" msgpack:"details,omitempty"`
}

// ── Well-known methods ──────────────────────────────

const (
	// Auth methods.
	MethodAuth = "auth"

	// Actor methods.
	MethodActorSetup    = "actor.setup"
	MethodActorRender   = "actor.render"
	MethodActorTransfer = "actor.transfer"
	MethodActorMode     = "actor.mode"
	MethodActorResize   = "actor.resize"
	MethodActorInfo     = "actor.info"
	MethodActorList     = "actor.list"
	MethodActorClose    = "actor.close"

	// Subscription methods.
	MethodSubscribe   = "subscribe"
	MethodUnsubscribe = "unsubscribe"

	// Admin methods.
	MethodStats = "stats"
)

// ── Well-known error codes ──────────────────────────

const (
	ErrCodeBadRequest     = 400
	ErrCodeUnauthorized   = 401
	ErrCodeForbidden      = 403
	ErrCodeNotFound       = 404
	ErrCodeMethodNotFound = 405
	ErrCodeConflict       = 409
	ErrCodeInternal       = 500
)

// ── Request/Response payloads ───────────────────────

// AuthRequest is sent by clients to authenticate. Auth frames travel as
// JSON regardless of the requested format: the codec is not negotiated
// until the auth exchange completes.
type AuthRequest struct {
	Token  string `json:"token"`
	Format string `json:"format,omitempty"` // "json" (default) or "msgpack"
}

// AuthResponse is returned after successful authentication, encoded
// with the codec it confirms.
type AuthResponse struct {
	Format    string `json:"format" msgpack:"format"`
	SessionID string `json:"session_id" msgpack:"session_id"`
}

// SetupRequest arms an actor with its block. An empty ActorID spawns a
// new actor for the block's rank; a redelivered setup names the actor
// it already created.
type SetupRequest struct {
	ActorID string          `json:"actor_id,omitempty" msgpack:"actor_id,omitempty"`
	Spec    actor.SetupSpec `json:"spec" msgpack:"spec"`
}

// SetupResponse confirms the actor is armed.
type SetupResponse struct {
	ActorID string `json:"actor_id" msgpack:"actor_id"`
	Rank    int    `json:"rank" msgpack:"rank"`
	State   string `json:"state" msgpack:"state"`
}

// RenderRequest casts one frame from an actor's block.
type RenderRequest struct {
	ActorID string        `json:"actor_id" msgpack:"actor_id"`
	Camera  render.Camera `json:"camera" msgpack:"camera"`
}

// RenderResponse carries the rendered frame, packed for the wire. The
// pixel buffers make these large; clients that render interactively
// should negotiate the msgpack codec so the buffers travel as raw
// binary.
type RenderResponse struct {
	Frame *FramePayload `json:"frame" msgpack:"frame"`
}

// TransferRequest replaces an actor's transfer function. A nil Transfer
// resets to the data-range default.
type TransferRequest struct {
	ActorID  string                   `json:"actor_id" msgpack:"actor_id"`
	Transfer *render.TransferFunction `json:"transfer,omitempty" msgpack:"transfer,omitempty"`
}

// ModeRequest switches an actor's shading mode.
type ModeRequest struct {
	ActorID  string      `json:"actor_id" msgpack:"actor_id"`
	Mode     render.Mode `json:"mode" msgpack:"mode"`
	IsoValue float64     `json:"iso_value,omitempty" msgpack:"iso_value,omitempty"`
}

// ResizeRequest changes an actor's viewport.
type ResizeRequest struct {
	ActorID string `json:"actor_id" msgpack:"actor_id"`
	Width   int    `json:"width" msgpack:"width"`
	Height  int    `json:"height" msgpack:"height"`
}

// InfoRequest retrieves an actor snapshot.
type InfoRequest struct {
	ActorID string `json:"actor_id" msgpack:"actor_id"`
}

// CloseRequest shuts an actor down.
type CloseRequest struct {
	ActorID string `json:"actor_id" msgpack:"actor_id"`
}

// ListResponse snapshots every actor hosted by the worker.
type ListResponse struct {
	Actors []actor.Info `json:"actors" msgpack:"actors"`
}

// SubscribeRequest subscribes to a topic channel.
type SubscribeRequest struct {
	Channel string `json:"channel" msgpack:"channel"`
	Credits int    `json:"credits,omitempty" msgpack:"credits,omitempty"` // Initial credits (0 = use default)
}

// UnsubscribeRequest removes a subscription.
type UnsubscribeRequest struct {
	Channel string `json:"channel" msgpack:"channel"`
}

// NewRequestFrame creates a new request frame with the payload encoded
// by the given codec.
func NewRequestFrame(c Codec, id, method string, data any) (*Frame, error) {
	raw, err := c.EncodePayload(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        id,
		Type:      FrameRequest,
		Method:    method,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewResponseFrame creates a response to a request with the payload
// encoded by the given codec.
func NewResponseFrame(c Codec, correlID string, data any) (*Frame, error) {
	raw, err := c.EncodePayload(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameResponse,
		CorrelID:  correlID,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// NewErrorFrame creates an error response to a request.
func NewErrorFrame(correlID string, code int, message string) *Frame {
	return &Frame{
		ID:       GenerateFrameID(),
		Type:     FrameErr,
		CorrelID: correlID,
		Error: &ErrorDetail{
			Code:    code,
			Message: message,
		},
		Timestamp: time.Now().UTC(),
	}
}

// NewEventFrame creates an event frame for a subscription channel with
// the payload encoded by the given codec.
func NewEventFrame(c Codec, channel string, data any) (*Frame, error) {
	raw, err := c.EncodePayload(data)
	if err != nil {
		return nil, err
	}
	return &Frame{
		ID:        GenerateFrameID(),
		Type:      FrameEvent,
		Channel:   channel,
		Data:      raw,
		Timestamp: time.Now().UTC(),
	}, nil
}

// GenerateFrameID returns a new unique frame ID.
// Uses a simple timestamp approach for performance.
func GenerateFrameID() string {
	return time.Now().UTC().Format("20060102150405.000000000")
}
