package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jjones-jr/parview"
	"github.com/jjones-jr/parview/actor"
	"github.com/jjones-jr/parview/client"
	"github.com/jjones-jr/parview/dataset"
	"github.com/jjones-jr/parview/ext"
	"github.com/jjones-jr/parview/grid"
	"github.com/jjones-jr/parview/id"
	"github.com/jjones-jr/parview/render"
	"github.com/jjones-jr/parview/view"
)

// Session owns a set of actor handles and the view composited over
// them. Closing the session closes every actor (remote actors are
// destroyed on their workers) and then the transport connections.
type Session struct {
	id      id.SessionID
	meta    *dataset.Meta
	layout  *grid.Layout
	view    *view.View
	handles []actor.Handle
	clients []*client.Client
	exts    *ext.Registry
	logger  *slog.Logger

	mu     sync.Mutex
	closed bool
}

func newSession(
	sid id.SessionID,
	meta *dataset.Meta,
	layout *grid.Layout,
	v *view.View,
	handles []actor.Handle,
	clients []*client.Client,
	exts *ext.Registry,
	logger *slog.Logger,
) *Session {
	return &Session{
		id:      sid,
		meta:    meta,
		layout:  layout,
		view:    v,
		handles: handles,
		clients: clients,
		exts:    exts,
		logger:  logger,
	}
}

// ID returns the session identifier.
func (s *Session) ID() id.SessionID { return s.id }

// Meta returns the dataset this session renders.
func (s *Session) Meta() *dataset.Meta { return s.meta }

// Layout returns the block partition, one block per rank.
func (s *Session) Layout() *grid.Layout { return s.layout }

// View returns the display view over the session's handles.
func (s *Session) View() *view.View { return s.view }

// Handles returns the session's actor handles in rank order.
func (s *Session) Handles() []actor.Handle { return s.handles }

// Extensions returns the session's extension registry.
func (s *Session) Extensions() *ext.Registry { return s.exts }

// Render produces one composited frame with the session tagged on the
// context.
func (s *Session) Render(ctx context.Context) (*render.Frame, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, parview.ErrSessionClosed
	}
	s.mu.Unlock()

	return s.view.Render(parview.WithSession(ctx, s.id))
}

// Close destroys every actor and disconnects from the workers.
// Idempotent; per-handle errors are joined rather than short-circuiting
// so each actor gets its close delivered.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	ctx = parview.WithSession(ctx, s.id)

	var errs []error
	for _, h := range s.handles {
		if err := h.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close actor rank %d: %w", h.Rank(), err))
		}
	}
	for _, c := range s.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	s.exts.EmitShutdown(ctx)
	s.logger.Info("session closed", slog.String("session_id", s.id.String()))
	return errors.Join(errs...)
}
