package rvp

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/jjones-jr/parview/stream"
)

// Server is the RVP server that handles WebSocket, SSE, and HTTP RPC
// connections. It runs on every rendering worker: clients connect,
// authenticate, and drive the worker's actors frame by frame while the
// stream broker pushes lifecycle events back.
type Server struct {
	broker       *stream.Broker
	handler      *Handler
	auth         Authenticator
	defaultCodec Codec
	conns        *ConnectionManager
	logger       *slog.Logger
	basePath     string
}

// NewServer creates a new RVP server.
func NewServer(broker *stream.Broker, handler *Handler, opts ...Option) *Server {
	s := &Server{
		broker:       broker,
		handler:      handler,
		defaultCodec: &JSONCodec{},
		conns:        NewConnectionManager(),
		logger:       slog.Default(),
		basePath:     "/rvp",
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.auth == nil {
		s.auth = &NoopAuthenticator{}
	}
	return s
}

// Broker returns the underlying stream broker.
func (s *Server) Broker() *stream.Broker { return s.broker }

// Connections returns the connection manager.
func (s *Server) Connections() *ConnectionManager { return s.conns }

// RegisterRoutes mounts RVP endpoints on an HTTP mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	// Primary: WebSocket
	mux.HandleFunc(s.basePath, s.handleWebSocket)

	// Fallback: SSE for read-only subscriptions.
	mux.HandleFunc(s.basePath+"/sse", s.handleSSE)

	// One-shot: HTTP RPC
	mux.HandleFunc(s.basePath+"/rpc", s.handleHTTPRPC)
}

// handleWebSocket upgrades and serves the main WebSocket connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		s.logger.Error("RVP WebSocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	if err := s.serveConn(r, conn); err != nil {
		s.logger.Warn("RVP WebSocket closed", slog.String("error", err.Error()))
	}
}

// serveConn runs the frame loop for one upgraded connection.
func (s *Server) serveConn(r *http.Request, conn net.Conn) error {
	connID := "ws-" + GenerateFrameID()
	s.logger.Info("RVP WebSocket connected", slog.String("conn_id", connID))

	// Wait for auth frame. Auth frames are always JSON (before codec
	// negotiation).
	authData, readErr := wsutil.ReadClientData(conn)
	if readErr != nil {
		return fmt.Errorf("rvp: read auth frame: %w", readErr)
	}

	var authFrame Frame
	if err := json.Unmarshal(authData, &authFrame); err != nil {
		//nolint:errcheck // best-effort error response before disconnect
		s.writeJSON(conn, NewErrorFrame("", ErrCodeBadRequest, "invalid auth frame"))
		return fmt.Errorf("rvp: unmarshal auth frame: %w", err)
	}

	if authFrame.Method != MethodAuth {
		//nolint:errcheck // best-effort error response before disconnect
		s.writeJSON(conn, NewErrorFrame(authFrame.ID, ErrCodeBadRequest, "first frame must be auth"))
		return fmt.Errorf("rvp: expected auth frame, got %q", authFrame.Method)
	}

	// Parse auth request.
	var authReq AuthRequest
	if len(authFrame.Data) > 0 {
		if err := json.Unmarshal(authFrame.Data, &authReq); err != nil {
			//nolint:errcheck // best-effort error response before disconnect
			s.writeJSON(conn, NewErrorFrame(authFrame.ID, ErrCodeBadRequest, "invalid auth data"))
			return err
		}
	}

	// Authenticate.
	token := authReq.Token
	if token == "" {
		token = authFrame.Token
	}
	identity, authErr := s.auth.Authenticate(r.Context(), token)
	if authErr != nil {
		//nolint:errcheck // best-effort error response before disconnect
		s.writeJSON(conn, NewErrorFrame(authFrame.ID, ErrCodeUnauthorized, "authentication failed"))
		return fmt.Errorf("rvp: auth failed: %w", authErr)
	}

	// Negotiate codec.
	codec := s.defaultCodec
	if authReq.Format != "" {
		codec = GetCodec(authReq.Format)
	}

	// Create connection state.
	rvpConn := NewConnection(connID, identity, codec)
	s.conns.Add(rvpConn)
	defer func() {
		s.broker.RemoveSubscriber(connID)
		s.conns.Remove(connID)
		s.logger.Info("RVP WebSocket disconnected", slog.String("conn_id", connID))
	}()

	// The request loop and the event forwarder both write this
	// connection; all post-auth writes go through the shared writer.
	w := &connWriter{conn: conn}

	// Send auth response.
	resp, respErr := NewResponseFrame(codec, authFrame.ID, AuthResponse{
		Format:    codec.Name(),
		SessionID: connID,
	})
	if respErr != nil {
		return fmt.Errorf("rvp: marshal auth response: %w", respErr)
	}
	if err := w.write(codec, resp); err != nil {
		return err
	}

	s.logger.Info("RVP authenticated",
		slog.String("conn_id", connID),
		slog.String("subject", identity.Subject),
		slog.String("codec", codec.Name()),
	)

	// Create a subscriber for this connection and start a goroutine
	// to forward broker events to the WebSocket.
	sub := s.broker.Subscribe(connID)
	go s.forwardEvents(w, codec, sub)

	// Frame processing loop.
	for {
		data, err := wsutil.ReadClientData(conn)
		if err != nil {
			return nil // Connection closed.
		}

		rvpConn.Touch()

		frame, decErr := codec.Decode(data)
		if decErr != nil {
			errFrame := NewErrorFrame("", ErrCodeBadRequest, "invalid frame: "+decErr.Error())
			if writeErr := w.write(codec, errFrame); writeErr != nil {
				s.logger.Warn("failed to write error frame", slog.String("error", writeErr.Error()))
			}
			continue
		}

		// Handle ping/pong.
		if frame.Type == FramePing {
			pong := &Frame{
				ID:        GenerateFrameID(),
				Type:      FramePong,
				CorrelID:  frame.ID,
				Timestamp: frame.Timestamp,
			}
			if writeErr := w.write(codec, pong); writeErr != nil {
				s.logger.Warn("failed to write pong frame", slog.String("error", writeErr.Error()))
			}
			continue
		}

		// Check authorization for the method.
		if frame.Method != "" {
			reqScope := RequiredScope(frame.Method)
			if reqScope != "" && !identity.HasScope(reqScope) {
				errFrame := NewErrorFrame(frame.ID, ErrCodeForbidden, "insufficient permissions")
				if writeErr := w.write(codec, errFrame); writeErr != nil {
					s.logger.Warn("failed to write forbidden frame", slog.String("error", writeErr.Error()))
				}
				continue
			}
		}

		// Handle credits replenishment.
		if frame.Credits > 0 {
			sub.AddCredits(int64(frame.Credits))
			continue
		}

		// Dispatch to handler.
		respFrame := s.handler.Handle(r.Context(), frame, rvpConn)
		if respFrame != nil {
			// Handle subscribe/unsubscribe side effects.
			if frame.Method == MethodSubscribe && respFrame.Type == FrameResponse {
				var subReq SubscribeRequest
				if codec.DecodePayload(frame.Data, &subReq) == nil {
					s.broker.SubscribeTo(connID, subReq.Channel)
					rvpConn.AddSubscription(subReq.Channel)
					if subReq.Credits > 0 {
						sub.AddCredits(int64(subReq.Credits))
					}
				}
			} else if frame.Method == MethodUnsubscribe && respFrame.Type == FrameResponse {
				var unsubReq UnsubscribeRequest
				if codec.DecodePayload(frame.Data, &unsubReq) == nil {
					s.broker.Unsubscribe(connID, unsubReq.Channel)
					rvpConn.RemoveSubscription(unsubReq.Channel)
				}
			}

			if writeErr := w.write(codec, respFrame); writeErr != nil {
				s.logger.Warn("failed to write response frame", slog.String("error", writeErr.Error()))
			}
		}
	}
}

// forwardEvents reads from the subscriber channel and writes events
// to the WebSocket connection.
func (s *Server) forwardEvents(w *connWriter, codec Codec, sub *stream.Subscriber) {
	for evt := range sub.C() {
		evtFrame, err := NewEventFrame(codec, evt.Topic, evt)
		if err != nil {
			continue
		}
		if writeErr := w.write(codec, evtFrame); writeErr != nil {
			return // Connection gone.
		}
	}
}

// connWriter serializes frame writes to one WebSocket connection.
type connWriter struct {
	mu   sync.Mutex
	conn net.Conn
}

// write encodes and writes a frame. JSON travels as text frames,
// everything else as binary.
func (w *connWriter) write(codec Codec, frame *Frame) error {
	data, err := codec.Encode(frame)
	if err != nil {
		return err
	}
	op := ws.OpBinary
	if codec.Name() == CodecNameJSON {
		op = ws.OpText
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return wsutil.WriteServerMessage(w.conn, op, data)
}

// writeJSON writes a frame as a JSON text message regardless of the
// negotiated codec. Used before negotiation completes.
func (s *Server) writeJSON(conn net.Conn, frame *Frame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return wsutil.WriteServerText(conn, data)
}

// handleSSE serves read-only Server-Sent Events for clients that
// cannot establish WebSocket connections.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	identity, err := s.auth.Authenticate(r.Context(), token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	channel := r.URL.Query().Get("channel")
	if channel == "" {
		http.Error(w, "channel parameter required", http.StatusBadRequest)
		return
	}

	if !identity.HasScope(ScopeSubscribe) && !identity.HasScope(ScopeAll) {
		http.Error(w, "insufficient permissions", http.StatusForbidden)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	connID := "sse-" + GenerateFrameID()
	sub := s.broker.Subscribe(connID, channel)
	defer s.broker.RemoveSubscriber(connID)

	for {
		select {
		case evt, chOK := <-sub.C():
			if !chOK {
				return
			}
			data, marshalErr := json.Marshal(evt)
			if marshalErr != nil {
				continue
			}
			if _, writeErr := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data); writeErr != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

// handleHTTPRPC handles one-shot HTTP RPC requests for simple operations.
func (s *Server) handleHTTPRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var frame Frame
	if err := json.NewDecoder(r.Body).Decode(&frame); err != nil {
		s.writeRPCResponse(w, http.StatusBadRequest,
			NewErrorFrame("", ErrCodeBadRequest, "invalid request body"))
		return
	}

	// Authenticate.
	token := frame.Token
	if token == "" {
		token = r.Header.Get("Authorization")
	}
	identity, err := s.auth.Authenticate(r.Context(), token)
	if err != nil {
		s.writeRPCResponse(w, http.StatusUnauthorized,
			NewErrorFrame(frame.ID, ErrCodeUnauthorized, "unauthorized"))
		return
	}

	// Check authorization.
	reqScope := RequiredScope(frame.Method)
	if reqScope != "" && !identity.HasScope(reqScope) {
		s.writeRPCResponse(w, http.StatusForbidden,
			NewErrorFrame(frame.ID, ErrCodeForbidden, "forbidden"))
		return
	}

	// Create a temporary connection for scope.
	conn := NewConnection("rpc-"+GenerateFrameID(), identity, &JSONCodec{})

	resp := s.handler.Handle(r.Context(), &frame, conn)
	if resp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	status := http.StatusOK
	if resp.Type == FrameErr && resp.Error != nil {
		status = resp.Error.Code
		if status < 100 || status > 599 {
			status = http.StatusInternalServerError
		}
	}

	s.writeRPCResponse(w, status, resp)
}

func (s *Server) writeRPCResponse(w http.ResponseWriter, status int, frame *Frame) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(frame); err != nil {
		s.logger.Warn("failed to write RPC response", slog.String("error", err.Error()))
	}
}
