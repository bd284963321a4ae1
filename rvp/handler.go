package rvp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jjones-jr/parview"
	"github.com/jjones-jr/parview/actor"
	"github.com/jjones-jr/parview/ext"
	"github.com/jjones-jr/parview/id"
	"github.com/jjones-jr/parview/middleware"
	"github.com/jjones-jr/parview/stream"
)

// Handler dispatches RVP frames to actor operations on the hosting
// worker.
type Handler struct {
	actors *actor.Registry
	broker *stream.Broker
	exts   *ext.Registry
	chain  middleware.Middleware
	logger *slog.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerExtensions sets the registry lifecycle events are emitted to.
func WithHandlerExtensions(exts *ext.Registry) HandlerOption {
	return func(h *Handler) { h.exts = exts }
}

// WithHandlerChain sets the middleware chain actor invocations pass
// through.
func WithHandlerChain(chain middleware.Middleware) HandlerOption {
	return func(h *Handler) { h.chain = chain }
}

// NewHandler creates a new RVP method handler.
func NewHandler(actors *actor.Registry, broker *stream.Broker, logger *slog.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{actors: actors, broker: broker, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle processes a single RVP request frame and returns a response.
// Payloads are decoded and encoded with the connection's negotiated
// codec.
func (h *Handler) Handle(ctx context.Context, frame *Frame, conn *Connection) *Frame {
	switch frame.Method {
	case MethodActorSetup:
		return h.handleSetup(ctx, frame, conn)
	case MethodActorRender:
		return h.handleRender(ctx, frame, conn)
	case MethodActorTransfer:
		return h.handleTransfer(ctx, frame, conn)
	case MethodActorMode:
		return h.handleMode(ctx, frame, conn)
	case MethodActorResize:
		return h.handleResize(frame, conn)
	case MethodActorInfo:
		return h.handleInfo(ctx, frame, conn)
	case MethodActorList:
		return h.handleList(frame, conn)
	case MethodActorClose:
		return h.handleClose(ctx, frame, conn)
	case MethodSubscribe:
		return h.handleSubscribe(frame, conn)
	case MethodUnsubscribe:
		return h.handleUnsubscribe(frame, conn)
	case MethodStats:
		return h.handleStats(frame, conn)
	default:
		return NewErrorFrame(frame.ID, ErrCodeMethodNotFound, "unknown method: "+frame.Method)
	}
}

// codecOf returns the connection's negotiated codec, defaulting to JSON
// for connections that never negotiated one.
func codecOf(conn *Connection) Codec {
	if conn != nil && conn.Codec != nil {
		return conn.Codec
	}
	return &JSONCodec{}
}

// handleOf wraps an actor in a local handle carrying the handler's
// middleware chain and extension registry.
func (h *Handler) handleOf(a *actor.Actor) *actor.LocalHandle {
	opts := make([]actor.LocalOption, 0, 2)
	if h.chain != nil {
		opts = append(opts, actor.WithChain(h.chain))
	}
	if h.exts != nil {
		opts = append(opts, actor.WithExtensions(h.exts))
	}
	return actor.NewLocalHandle(a, opts...)
}

// lookup resolves an actor ID string to a registered actor.
func (h *Handler) lookup(actorID string) (*actor.Actor, *ErrorDetail) {
	aid, err := id.ParseActorID(actorID)
	if err != nil {
		return nil, &ErrorDetail{Code: ErrCodeBadRequest, Message: "invalid actor ID: " + err.Error()}
	}
	a, err := h.actors.Get(aid)
	if err != nil {
		return nil, &ErrorDetail{Code: ErrCodeNotFound, Message: "actor not found: " + actorID}
	}
	return a, nil
}

// errCode maps actor errors onto RVP error codes.
func errCode(err error) int {
	switch {
	case errors.Is(err, parview.ErrActorNotFound),
		errors.Is(err, parview.ErrDatasetNotFound),
		errors.Is(err, parview.ErrBlockNotFound):
		return ErrCodeNotFound
	case errors.Is(err, parview.ErrActorClosed),
		errors.Is(err, parview.ErrActorNotReady):
		return ErrCodeConflict
	case errors.Is(err, parview.ErrRankMismatch),
		errors.Is(err, parview.ErrInvalidDims):
		return ErrCodeBadRequest
	default:
		return ErrCodeInternal
	}
}

// mustResponseFrame creates a response frame, returning an error frame on marshal failure.
func mustResponseFrame(c Codec, frameID string, data any) *Frame {
	resp, err := NewResponseFrame(c, frameID, data)
	if err != nil {
		return NewErrorFrame(frameID, ErrCodeInternal, "marshal response: "+err.Error())
	}
	return resp
}

func (h *Handler) handleSetup(ctx context.Context, frame *Frame, conn *Connection) *Frame {
	c := codecOf(conn)
	var req SetupRequest
	if err := c.DecodePayload(frame.Data, &req); err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid request: "+err.Error())
	}

	var a *actor.Actor
	if req.ActorID == "" {
		a = actor.New(req.Spec.Block.Rank, h.logger)
		h.actors.Add(a)
		if h.exts != nil {
			h.exts.EmitActorSpawned(ctx, a.ID, a.Rank())
		}
	} else {
		var detail *ErrorDetail
		a, detail = h.lookup(req.ActorID)
		if detail != nil {
			return NewErrorFrame(frame.ID, detail.Code, detail.Message)
		}
	}

	if err := h.handleOf(a).Setup(ctx, req.Spec); err != nil {
		return NewErrorFrame(frame.ID, errCode(err), "setup failed: "+err.Error())
	}

	return mustResponseFrame(c, frame.ID, SetupResponse{
		ActorID: a.ID.String(),
		Rank:    a.Rank(),
		State:   string(a.State()),
	})
}

func (h *Handler) handleRender(ctx context.Context, frame *Frame, conn *Connection) *Frame {
	c := codecOf(conn)
	var req RenderRequest
	if err := c.DecodePayload(frame.Data, &req); err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid request: "+err.Error())
	}

	a, detail := h.lookup(req.ActorID)
	if detail != nil {
		return NewErrorFrame(frame.ID, detail.Code, detail.Message)
	}

	rendered, err := h.handleOf(a).Render(ctx, req.Camera)
	if err != nil {
		return NewErrorFrame(frame.ID, errCode(err), "render failed: "+err.Error())
	}

	return mustResponseFrame(c, frame.ID, RenderResponse{Frame: NewFramePayload(rendered)})
}

func (h *Handler) handleTransfer(ctx context.Context, frame *Frame, conn *Connection) *Frame {
	c := codecOf(conn)
	var req TransferRequest
	if err := c.DecodePayload(frame.Data, &req); err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid request: "+err.Error())
	}

	a, detail := h.lookup(req.ActorID)
	if detail != nil {
		return NewErrorFrame(frame.ID, detail.Code, detail.Message)
	}

	if err := h.handleOf(a).UpdateTransfer(ctx, req.Transfer); err != nil {
		return NewErrorFrame(frame.ID, errCode(err), "transfer update failed: "+err.Error())
	}

	return mustResponseFrame(c, frame.ID, map[string]string{"status": "updated"})
}

func (h *Handler) handleMode(ctx context.Context, frame *Frame, conn *Connection) *Frame {
	c := codecOf(conn)
	var req ModeRequest
	if err := c.DecodePayload(frame.Data, &req); err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid request: "+err.Error())
	}

	a, detail := h.lookup(req.ActorID)
	if detail != nil {
		return NewErrorFrame(frame.ID, detail.Code, detail.Message)
	}

	if err := h.handleOf(a).UpdateMode(ctx, req.Mode, req.IsoValue); err != nil {
		return NewErrorFrame(frame.ID, errCode(err), "mode update failed: "+err.Error())
	}

	return mustResponseFrame(c, frame.ID, map[string]string{"status": "updated"})
}

func (h *Handler) handleResize(frame *Frame, conn *Connection) *Frame {
	c := codecOf(conn)
	var req ResizeRequest
	if err := c.DecodePayload(frame.Data, &req); err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid request: "+err.Error())
	}

	a, detail := h.lookup(req.ActorID)
	if detail != nil {
		return NewErrorFrame(frame.ID, detail.Code, detail.Message)
	}

	if err := a.Resize(req.Width, req.Height); err != nil {
		return NewErrorFrame(frame.ID, errCode(err), "resize failed: "+err.Error())
	}

	return mustResponseFrame(c, frame.ID, map[string]string{"status": "resized"})
}

func (h *Handler) handleInfo(ctx context.Context, frame *Frame, conn *Connection) *Frame {
	c := codecOf(conn)
	var req InfoRequest
	if err := c.DecodePayload(frame.Data, &req); err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid request: "+err.Error())
	}

	a, detail := h.lookup(req.ActorID)
	if detail != nil {
		return NewErrorFrame(frame.ID, detail.Code, detail.Message)
	}

	info, err := h.handleOf(a).Info(ctx)
	if err != nil {
		return NewErrorFrame(frame.ID, errCode(err), "info failed: "+err.Error())
	}

	return mustResponseFrame(c, frame.ID, info)
}

func (h *Handler) handleList(frame *Frame, conn *Connection) *Frame {
	actors := h.actors.List()
	infos := make([]actor.Info, 0, len(actors))
	for _, a := range actors {
		infos = append(infos, a.Info())
	}
	return mustResponseFrame(codecOf(conn), frame.ID, ListResponse{Actors: infos})
}

func (h *Handler) handleClose(ctx context.Context, frame *Frame, conn *Connection) *Frame {
	c := codecOf(conn)
	var req CloseRequest
	if err := c.DecodePayload(frame.Data, &req); err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid request: "+err.Error())
	}

	a, detail := h.lookup(req.ActorID)
	if detail != nil {
		return NewErrorFrame(frame.ID, detail.Code, detail.Message)
	}

	if err := h.handleOf(a).Close(ctx); err != nil {
		return NewErrorFrame(frame.ID, errCode(err), "close failed: "+err.Error())
	}
	h.actors.Remove(a.ID)

	return mustResponseFrame(c, frame.ID, map[string]string{"status": "closed"})
}

func (h *Handler) handleSubscribe(frame *Frame, conn *Connection) *Frame {
	c := codecOf(conn)
	var req SubscribeRequest
	if err := c.DecodePayload(frame.Data, &req); err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid request: "+err.Error())
	}

	if err := stream.ValidateTopic(req.Channel); err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, err.Error())
	}

	// Actual subscription is done in the server loop after response is sent.
	return mustResponseFrame(c, frame.ID, map[string]string{
		"channel": req.Channel,
		"status":  "subscribed",
	})
}

func (h *Handler) handleUnsubscribe(frame *Frame, conn *Connection) *Frame {
	c := codecOf(conn)
	var req UnsubscribeRequest
	if err := c.DecodePayload(frame.Data, &req); err != nil {
		return NewErrorFrame(frame.ID, ErrCodeBadRequest, "invalid request: "+err.Error())
	}

	// Actual unsubscription is done in the server loop after response is sent.
	return mustResponseFrame(c, frame.ID, map[string]string{
		"channel": req.Channel,
		"status":  "unsubscribed",
	})
}

func (h *Handler) handleStats(frame *Frame, conn *Connection) *Frame {
	stats := map[string]any{
		"actors": h.actors.Len(),
	}
	if h.broker != nil {
		stats["broker"] = h.broker.Stats()
	}
	if conn != nil {
		stats["subscriptions"] = conn.Subscriptions()
	}
	return mustResponseFrame(codecOf(conn), frame.ID, stats)
}
