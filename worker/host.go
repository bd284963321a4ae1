// Package worker runs the rendering daemon on each cluster node. A Host
// registers itself in the cluster store, serves the Render View Protocol
// for its actors, heartbeats while alive, and — when it holds the
// cluster leader lease — reaps workers that stopped heartbeating.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/jjones-jr/parview"
	"github.com/jjones-jr/parview/actor"
	"github.com/jjones-jr/parview/cluster"
	"github.com/jjones-jr/parview/ext"
	"github.com/jjones-jr/parview/id"
	"github.com/jjones-jr/parview/middleware"
	"github.com/jjones-jr/parview/rvp"
	"github.com/jjones-jr/parview/stream"
)

// Host is one worker daemon: cluster membership, an RVP server, and the
// actor registry behind it.
type Host struct {
	store  cluster.Store
	broker *stream.Broker
	exts   *ext.Registry
	actors *actor.Registry
	logger *slog.Logger

	worker *cluster.Worker
	server *rvp.Server

	listenAddr    string
	advertiseAddr string
	rank          int
	metadata      map[string]string
	auth          rvp.Authenticator
	chain         middleware.Middleware

	heartbeatInterval time.Duration
	reapThreshold     time.Duration
	leaderTTL         time.Duration

	httpSrv  *http.Server
	listener net.Listener

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithListenAddr sets the address the RVP server listens on.
func WithListenAddr(addr string) HostOption {
	return func(h *Host) { h.listenAddr = addr }
}

// WithAdvertiseAddr sets the address published to the cluster store.
// Defaults to the listen address.
func WithAdvertiseAddr(addr string) HostOption {
	return func(h *Host) { h.advertiseAddr = addr }
}

// WithRank sets the compositing rank this worker renders for.
func WithRank(rank int) HostOption {
	return func(h *Host) { h.rank = rank }
}

// WithMetadata attaches arbitrary key/value pairs to the worker's
// cluster record.
func WithMetadata(md map[string]string) HostOption {
	return func(h *Host) { h.metadata = md }
}

// WithAuth sets the authenticator for incoming RVP connections.
func WithAuth(auth rvp.Authenticator) HostOption {
	return func(h *Host) { h.auth = auth }
}

// WithHostExtensions registers extra lifecycle extensions beyond the
// stream broker.
func WithHostExtensions(extensions ...ext.Extension) HostOption {
	return func(h *Host) {
		for _, e := range extensions {
			h.exts.Register(e)
		}
	}
}

// WithChain replaces the middleware chain actor invocations pass
// through.
func WithChain(chain middleware.Middleware) HostOption {
	return func(h *Host) { h.chain = chain }
}

// WithHeartbeatInterval sets how often the host refreshes its last-seen
// timestamp in the cluster store.
func WithHeartbeatInterval(d time.Duration) HostOption {
	return func(h *Host) { h.heartbeatInterval = d }
}

// WithReapThreshold sets how stale a worker's heartbeat must be before
// the leader removes it from the cluster.
func WithReapThreshold(d time.Duration) HostOption {
	return func(h *Host) { h.reapThreshold = d }
}

// WithLeaderTTL sets the leader lease duration.
func WithLeaderTTL(d time.Duration) HostOption {
	return func(h *Host) { h.leaderTTL = d }
}

// NewHost creates a worker host backed by the given cluster store. The
// host owns its stream broker, extension registry, and actor registry;
// the broker is registered as an extension so every lifecycle event
// reaches RVP subscribers.
func NewHost(store cluster.Store, logger *slog.Logger, opts ...HostOption) *Host {
	if logger == nil {
		logger = slog.Default()
	}

	h := &Host{
		store:             store,
		broker:            stream.NewBroker(logger),
		exts:              ext.NewRegistry(logger),
		actors:            actor.NewRegistry(),
		logger:            logger,
		listenAddr:        ":9400",
		heartbeatInterval: 10 * time.Second,
		reapThreshold:     45 * time.Second,
		leaderTTL:         30 * time.Second,
		stopCh:            make(chan struct{}),
	}
	h.exts.Register(h.broker)

	for _, opt := range opts {
		opt(h)
	}

	if h.chain == nil {
		h.chain = middleware.Chain(
			middleware.Recover(logger),
			middleware.Logging(logger),
			middleware.Timeout(logger),
		)
	}
	if h.advertiseAddr == "" {
		h.advertiseAddr = h.listenAddr
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	now := time.Now().UTC()
	h.worker = &cluster.Worker{
		ID:        id.NewWorkerID(),
		Hostname:  hostname,
		Addr:      h.advertiseAddr,
		Rank:      h.rank,
		State:     cluster.WorkerActive,
		LastSeen:  now,
		Metadata:  h.metadata,
		CreatedAt: now,
	}

	handler := rvp.NewHandler(h.actors, h.broker, logger,
		rvp.WithHandlerExtensions(h.exts),
		rvp.WithHandlerChain(h.chain),
	)
	serverOpts := []rvp.Option{rvp.WithLogger(logger)}
	if h.auth != nil {
		serverOpts = append(serverOpts, rvp.WithAuth(h.auth))
	}
	h.server = rvp.NewServer(h.broker, handler, serverOpts...)

	return h
}

// WorkerID returns this host's cluster identity.
func (h *Host) WorkerID() id.WorkerID { return h.worker.ID }

// Rank returns the compositing rank this host renders for.
func (h *Host) Rank() int { return h.rank }

// Addr returns the address the RVP server is listening on. Valid after
// Start; with a ":0" listen address this is the resolved port.
func (h *Host) Addr() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.listener != nil {
		return h.listener.Addr().String()
	}
	return h.listenAddr
}

// Broker returns the host's stream broker.
func (h *Host) Broker() *stream.Broker { return h.broker }

// Actors returns the host's actor registry.
func (h *Host) Actors() *actor.Registry { return h.actors }

// Extensions returns the host's extension registry.
func (h *Host) Extensions() *ext.Registry { return h.exts }

// Start registers the worker in the cluster, begins serving RVP, and
// launches the heartbeat and leader loops. It returns once the listener
// is accepting connections.
func (h *Host) Start(ctx context.Context) error {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = true
	h.mu.Unlock()

	if err := h.store.RegisterWorker(ctx, h.worker); err != nil {
		return fmt.Errorf("worker: register: %w", err)
	}
	h.exts.EmitWorkerJoined(ctx, h.worker)

	ln, err := net.Listen("tcp", h.listenAddr)
	if err != nil {
		return fmt.Errorf("worker: listen %s: %w", h.listenAddr, err)
	}

	mux := http.NewServeMux()
	h.server.RegisterRoutes(mux)

	h.mu.Lock()
	h.listener = ln
	h.httpSrv = &http.Server{Handler: mux}
	h.mu.Unlock()

	h.logger.Info("worker host started",
		slog.String("worker_id", h.worker.ID.String()),
		slog.Int("rank", h.rank),
		slog.String("addr", ln.Addr().String()),
	)

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if serveErr := h.httpSrv.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			h.logger.Error("RVP serve error", slog.String("error", serveErr.Error()))
		}
	}()

	h.wg.Add(1)
	go h.heartbeatLoop()

	h.wg.Add(1)
	go h.leaderLoop()

	return nil
}

// Stop drains the host: actors close, the worker deregisters, and the
// RVP server shuts down. The context bounds the HTTP shutdown.
func (h *Host) Stop(ctx context.Context) error {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return nil
	}
	h.running = false
	httpSrv := h.httpSrv
	h.mu.Unlock()

	h.logger.Info("worker host stopping", slog.String("worker_id", h.worker.ID.String()))

	h.worker.State = cluster.WorkerDraining
	if err := h.store.RegisterWorker(ctx, h.worker); err != nil {
		h.logger.Warn("failed to mark worker draining", slog.String("error", err.Error()))
	}

	close(h.stopCh)

	if err := h.actors.CloseAll(); err != nil {
		h.logger.Warn("failed to close actors", slog.String("error", err.Error()))
	}

	if httpSrv != nil {
		if err := httpSrv.Shutdown(ctx); err != nil {
			h.logger.Warn("RVP shutdown error", slog.String("error", err.Error()))
		}
	}

	if err := h.store.DeregisterWorker(ctx, h.worker.ID); err != nil {
		h.logger.Warn("failed to deregister worker", slog.String("error", err.Error()))
	}
	h.exts.EmitWorkerLeft(ctx, h.worker.ID)
	h.exts.EmitShutdown(ctx)

	h.wg.Wait()
	h.logger.Info("worker host stopped", slog.String("worker_id", h.worker.ID.String()))
	return nil
}

// heartbeatLoop refreshes this worker's last-seen timestamp.
func (h *Host) heartbeatLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			if err := h.store.HeartbeatWorker(context.Background(), h.worker.ID); err != nil {
				h.logger.Warn("heartbeat failed", slog.String("error", err.Error()))
			}
		}
	}
}

// leaderLoop competes for the leader lease and, while holding it,
// renews the lease and reaps workers whose heartbeat went stale. Losing
// the lease drops the host back to competing for it.
func (h *Host) leaderLoop() {
	defer h.wg.Done()

	ticker := time.NewTicker(h.leaderTTL / 3)
	defer ticker.Stop()

	isLeader := false
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			ctx := context.Background()
			if isLeader {
				ok, err := h.store.RenewLeadership(ctx, h.worker.ID, h.leaderTTL)
				if errors.Is(err, parview.ErrLeadershipLost) || (err == nil && !ok) {
					h.logger.Warn("leadership lost", slog.String("worker_id", h.worker.ID.String()))
					isLeader = false
					continue
				}
				if err != nil {
					h.logger.Warn("leadership renew failed", slog.String("error", err.Error()))
					continue
				}
			} else {
				ok, err := h.store.AcquireLeadership(ctx, h.worker.ID, h.leaderTTL)
				if err != nil {
					h.logger.Warn("leadership acquire failed", slog.String("error", err.Error()))
					continue
				}
				if !ok {
					continue
				}
				isLeader = true
				h.logger.Info("leadership acquired", slog.String("worker_id", h.worker.ID.String()))
			}
			h.reapDeadWorkers(ctx)
		}
	}
}

// reapDeadWorkers removes workers whose heartbeat is older than the
// reap threshold and announces their departure.
func (h *Host) reapDeadWorkers(ctx context.Context) {
	dead, err := h.store.ReapDeadWorkers(ctx, h.reapThreshold)
	if err != nil {
		h.logger.Error("reap dead workers error", slog.String("error", err.Error()))
		return
	}

	for _, w := range dead {
		if w.ID.String() == h.worker.ID.String() {
			continue
		}
		if err := h.store.DeregisterWorker(ctx, w.ID); err != nil {
			h.logger.Warn("failed to deregister dead worker",
				slog.String("worker_id", w.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		h.exts.EmitWorkerLeft(ctx, w.ID)
		h.logger.Info("reaped dead worker",
			slog.String("worker_id", w.ID.String()),
			slog.Int("rank", w.Rank),
		)
	}
}
