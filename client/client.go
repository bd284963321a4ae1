// Package client provides a Go client for driving remote rendering
// workers over the Render View Protocol (RVP) WebSocket endpoint.
//
// Usage:
//
//	c, err := client.Dial("ws://worker:9400/rvp",
//	    client.WithToken("pv_..."),
//	)
//	defer c.Close()
//
//	// Arm an actor with its block, then render.
//	setup, err := c.Setup(ctx, rvp.SetupRequest{Spec: spec})
//	frame, err := c.Render(ctx, setup.ActorID, cam)
//
//	// Watch frame events.
//	ch, err := c.Subscribe(ctx, "frames")
//	for evt := range ch {
//	    fmt.Printf("%s rank %d\n", evt.Type, evt.Topic)
//	}
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/jjones-jr/parview/backoff"
	"github.com/jjones-jr/parview/rvp"
	"github.com/jjones-jr/parview/stream"
)

// Client is an RVP client that communicates with a remote rendering
// worker.
type Client struct {
	url    string
	token  string
	format string
	codec  rvp.Codec
	logger *slog.Logger

	// Reconnection.
	reconnect  bool
	maxRetries int
	bo         backoff.Strategy

	// Connection state. mu guards conn and sessionID across
	// reconnects, and serializes frame writes.
	conn      net.Conn
	mu        sync.Mutex
	closed    atomic.Bool
	sessionID string

	// Request-response correlation.
	pending sync.Map // frameID → chan *rvp.Frame

	// Subscriptions.
	subs sync.Map // channel → chan *stream.Event
}

// RPCError is a protocol-level error returned by the worker.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rvp error %d: %s", e.Code, e.Message)
}

// Dial connects to an RVP server and authenticates.
func Dial(url string, opts ...Option) (*Client, error) {
	return DialContext(context.Background(), url, opts...)
}

// DialContext connects to an RVP server with a context.
func DialContext(ctx context.Context, url string, opts ...Option) (*Client, error) {
	c := &Client{
		url:        url,
		format:     rvp.CodecNameJSON,
		logger:     slog.Default(),
		maxRetries: 5,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.bo == nil {
		c.bo = backoff.NewExponential(time.Second, 30*time.Second)
	}
	c.codec = rvp.GetCodec(c.format)

	conn, err := c.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("parview/client: dial: %w", err)
	}

	// Start the read loop.
	go c.readLoop(conn)

	return c, nil
}

// connect establishes the WebSocket connection and performs the auth
// handshake, returning the connection on success. The auth frame itself
// is always JSON; the response arrives in the negotiated codec. The
// response is read directly since the readLoop hasn't started yet.
func (c *Client) connect(ctx context.Context) (net.Conn, error) {
	conn, _, _, err := ws.Dial(ctx, c.url)
	if err != nil {
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	authFrame := &rvp.Frame{
		ID:        rvp.GenerateFrameID(),
		Type:      rvp.FrameRequest,
		Method:    rvp.MethodAuth,
		Token:     c.token,
		Timestamp: time.Now().UTC(),
	}
	authData, marshalErr := json.Marshal(rvp.AuthRequest{
		Token:  c.token,
		Format: c.format,
	})
	if marshalErr != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("marshal auth request: %w", marshalErr)
	}
	authFrame.Data = authData

	rawFrame, marshalErr := json.Marshal(authFrame)
	if marshalErr != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("marshal auth frame: %w", marshalErr)
	}
	if writeErr := wsutil.WriteClientText(conn, rawFrame); writeErr != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("write auth frame: %w", writeErr)
	}

	type readResult struct {
		resp *rvp.Frame
		err  error
	}
	resultCh := make(chan readResult, 1)

	go func() {
		data, _, readErr := wsutil.ReadServerData(conn)
		if readErr != nil {
			resultCh <- readResult{err: fmt.Errorf("read auth response: %w", readErr)}
			return
		}
		frame, decErr := c.decodeAuthResponse(data)
		if decErr != nil {
			resultCh <- readResult{err: fmt.Errorf("decode auth response: %w", decErr)}
			return
		}
		resultCh <- readResult{resp: frame}
	}()

	select {
	case result := <-resultCh:
		if result.err != nil {
			_ = conn.Close()
			return nil, result.err
		}
		resp := result.resp
		if resp.Type == rvp.FrameErr {
			_ = conn.Close()
			msg := "unknown error"
			if resp.Error != nil {
				msg = resp.Error.Message
			}
			return nil, fmt.Errorf("auth failed: %s", msg)
		}
		var authResp rvp.AuthResponse
		if len(resp.Data) > 0 {
			if unmarshalErr := c.codec.DecodePayload(resp.Data, &authResp); unmarshalErr != nil {
				c.logger.Warn("failed to unmarshal auth response", slog.String("error", unmarshalErr.Error()))
			}
		}
		c.mu.Lock()
		c.conn = conn
		c.sessionID = authResp.SessionID
		c.mu.Unlock()
		c.logger.Info("RVP client connected",
			slog.String("session_id", authResp.SessionID),
			slog.String("format", authResp.Format),
		)
		return conn, nil
	case <-ctx.Done():
		_ = conn.Close()
		return nil, ctx.Err()
	case <-time.After(10 * time.Second):
		_ = conn.Close()
		return nil, fmt.Errorf("auth timeout")
	}
}

// decodeAuthResponse handles the handshake's codec ambiguity: a success
// response arrives in the negotiated codec, but a rejection is sent
// before negotiation completes and is always JSON.
func (c *Client) decodeAuthResponse(data []byte) (*rvp.Frame, error) {
	frame, err := c.codec.Decode(data)
	if err == nil {
		return frame, nil
	}
	var jf rvp.Frame
	if jsonErr := json.Unmarshal(data, &jf); jsonErr == nil {
		return &jf, nil
	}
	return nil, err
}

// readLoop reads frames from one WebSocket connection and dispatches
// them. It exits when the connection drops; a reconnect starts a fresh
// loop on the new connection.
func (c *Client) readLoop(conn net.Conn) {
	for {
		if c.closed.Load() {
			return
		}

		data, _, err := wsutil.ReadServerData(conn)
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.logger.Warn("RVP client read error", slog.String("error", err.Error()))
			// In-flight requests can never be answered on this
			// connection; unblock them now.
			c.failPending("connection lost: " + err.Error())
			if c.reconnect {
				c.tryReconnect()
			}
			return
		}

		frame, decErr := c.codec.Decode(data)
		if decErr != nil {
			c.logger.Warn("RVP client: invalid frame", slog.String("error", decErr.Error()))
			continue
		}

		// Route the frame.
		switch frame.Type {
		case rvp.FrameResponse, rvp.FrameErr:
			// Correlate with pending request.
			if val, ok := c.pending.Load(frame.CorrelID); ok {
				ch := val.(chan *rvp.Frame) //nolint:errcheck // pending map always stores chan *rvp.Frame
				select {
				case ch <- frame:
				default:
				}
			}
		case rvp.FrameEvent:
			// Route to subscription channel.
			if val, ok := c.subs.Load(frame.Channel); ok {
				ch := val.(chan *stream.Event) //nolint:errcheck // subs map always stores chan *stream.Event
				var evt stream.Event
				if c.codec.DecodePayload(frame.Data, &evt) == nil {
					select {
					case ch <- &evt:
					default:
						// Drop if subscriber is slow.
					}
				}
			}
		case rvp.FramePong:
			// Ignore pong frames.
		}
	}
}

// tryReconnect attempts to reconnect, sleeping per the backoff strategy
// between attempts.
func (c *Client) tryReconnect() {
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		delay := c.bo.Delay(attempt)
		c.logger.Info("RVP client reconnecting",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)
		time.Sleep(delay)

		conn, err := c.connect(context.Background())
		if err != nil {
			c.logger.Warn("RVP client reconnect failed", slog.String("error", err.Error()))
			continue
		}

		c.logger.Info("RVP client reconnected")
		go c.readLoop(conn)
		return
	}
	c.logger.Error("RVP client: max reconnection attempts reached")
}

// failPending answers every in-flight request with an error frame so
// callers are not left blocking on a dead connection.
func (c *Client) failPending(msg string) {
	c.pending.Range(func(key, val any) bool {
		ch := val.(chan *rvp.Frame) //nolint:errcheck // pending map always stores chan *rvp.Frame
		select {
		case ch <- &rvp.Frame{
			Type:  rvp.FrameErr,
			Error: &rvp.ErrorDetail{Code: rvp.ErrCodeInternal, Message: msg},
		}:
		default:
		}
		c.pending.Delete(key)
		return true
	})
}

// request sends a request frame and waits for the correlated response.
func (c *Client) request(ctx context.Context, method string, data any) (*rvp.Frame, error) {
	frame := &rvp.Frame{
		ID:        rvp.GenerateFrameID(),
		Type:      rvp.FrameRequest,
		Method:    method,
		Timestamp: time.Now().UTC(),
	}

	if data != nil {
		raw, err := c.codec.EncodePayload(data)
		if err != nil {
			return nil, fmt.Errorf("marshal request data: %w", err)
		}
		frame.Data = raw
	}

	respCh := make(chan *rvp.Frame, 1)
	c.pending.Store(frame.ID, respCh)
	defer c.pending.Delete(frame.ID)

	if err := c.writeFrame(frame); err != nil {
		return nil, err
	}

	select {
	case resp := <-respCh:
		if resp.Type == rvp.FrameErr {
			rpcErr := &RPCError{Code: rvp.ErrCodeInternal, Message: "unknown error"}
			if resp.Error != nil {
				rpcErr.Code = resp.Error.Code
				rpcErr.Message = resp.Error.Message
			}
			return nil, rpcErr
		}
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// writeFrame encodes and sends a frame over the WebSocket. JSON travels
// as text frames, msgpack as binary.
func (c *Client) writeFrame(frame *rvp.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	data, err := c.codec.Encode(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	op := ws.OpBinary
	if c.codec.Name() == rvp.CodecNameJSON {
		op = ws.OpText
	}
	return wsutil.WriteClientMessage(c.conn, op, data)
}

// SessionID returns the session ID assigned by the server.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Close closes the client connection.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil // already closed
	}

	// Unblock in-flight requests and close all subscription channels.
	c.failPending("client closed")
	c.subs.Range(func(key, val any) bool {
		ch := val.(chan *stream.Event) //nolint:errcheck // subs map always stores chan *stream.Event
		close(ch)
		c.subs.Delete(key)
		return true
	})

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}
