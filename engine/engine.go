package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jjones-jr/parview"
	"github.com/jjones-jr/parview/actor"
	"github.com/jjones-jr/parview/client"
	"github.com/jjones-jr/parview/cluster"
	"github.com/jjones-jr/parview/dataset"
	"github.com/jjones-jr/parview/ext"
	"github.com/jjones-jr/parview/grid"
	"github.com/jjones-jr/parview/id"
	mw "github.com/jjones-jr/parview/middleware"
	"github.com/jjones-jr/parview/observability"
	"github.com/jjones-jr/parview/render"
	"github.com/jjones-jr/parview/view"
)

// settings collects everything the session constructors need.
type settings struct {
	config   parview.Config
	logger   *slog.Logger
	token    string
	format   string
	mode     render.Mode
	isoValue float64
	transfer *render.TransferFunction
	exts     []ext.Extension
	fetcher  *dataset.Fetcher
	maxRate  float64
	chain    mw.Middleware
}

// Option configures a session under construction.
type Option func(*settings)

// WithConfig replaces the default configuration.
func WithConfig(c parview.Config) Option {
	return func(s *settings) { s.config = c }
}

// WithLogger sets the structured logger for the session and everything
// built under it.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithToken sets the auth token presented to remote workers.
func WithToken(token string) Option {
	return func(s *settings) { s.token = token }
}

// WithFormat sets the wire codec negotiated with remote workers
// ("json" or "msgpack").
func WithFormat(format string) Option {
	return func(s *settings) { s.format = format }
}

// WithMode sets the shading mode actors start in.
func WithMode(mode render.Mode) Option {
	return func(s *settings) { s.mode = mode }
}

// WithIsoValue sets the isosurface crossing value for ModeIsosurface.
func WithIsoValue(v float64) Option {
	return func(s *settings) { s.isoValue = v }
}

// WithTransfer sets the initial transfer function pushed to every
// actor. Nil leaves the data-range default.
func WithTransfer(tf *render.TransferFunction) Option {
	return func(s *settings) { s.transfer = tf }
}

// WithExtension registers a lifecycle extension with the session.
func WithExtension(e ext.Extension) Option {
	return func(s *settings) { s.exts = append(s.exts, e) }
}

// WithFetcher replaces the dataset fetcher used by Connect.
func WithFetcher(f *dataset.Fetcher) Option {
	return func(s *settings) { s.fetcher = f }
}

// WithMaxRate caps interactive re-renders per second on the view.
func WithMaxRate(n float64) Option {
	return func(s *settings) { s.maxRate = n }
}

// WithChain replaces the middleware chain local actor invocations pass
// through.
func WithChain(chain mw.Middleware) Option {
	return func(s *settings) { s.chain = chain }
}

func newSettings(opts ...Option) *settings {
	s := &settings{
		config: parview.DefaultConfig(),
		logger: slog.Default(),
		format: "json",
		mode:   render.ModeVolume,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.fetcher == nil {
		s.fetcher = dataset.NewFetcher(dataset.WithFetchLogger(s.logger))
	}
	if s.chain == nil {
		s.chain = mw.Chain(
			mw.Recover(s.logger),
			mw.Tracing(),
			mw.Metrics(),
			mw.Logging(s.logger),
			mw.Timeout(s.logger),
		)
	}
	return s
}

// registry builds the extension registry: the OpenTelemetry metrics
// extension first, then user extensions in registration order.
func (s *settings) registry() *ext.Registry {
	exts := ext.NewRegistry(s.logger)
	exts.Register(observability.NewMetricsExtension())
	for _, e := range s.exts {
		exts.Register(e)
	}
	return exts
}

func (s *settings) setupSpec(block grid.Block, meta *dataset.Meta) actor.SetupSpec {
	return actor.SetupSpec{
		Dataset:     meta,
		Block:       block,
		Mode:        s.mode,
		IsoValue:    s.isoValue,
		Transfer:    s.transfer,
		Width:       s.config.FrameWidth,
		Height:      s.config.FrameHeight,
		Concurrency: s.config.RenderConcurrency,
	}
}

func (s *settings) buildView(handles []actor.Handle, meta *dataset.Meta, exts *ext.Registry, sid id.SessionID) (*view.View, error) {
	lo, hi := view.Bounds(meta)
	viewOpts := []view.Option{
		view.WithBounds(lo, hi),
		view.WithExtensions(exts),
		view.WithSession(sid),
		view.WithLogger(s.logger),
	}
	if s.maxRate != 0 {
		viewOpts = append(viewOpts, view.WithMaxRate(s.maxRate))
	}
	return view.New(handles, viewOpts...)
}

// Local builds an in-process session: one actor per rank, all in this
// process, reading their blocks from the dataset's local cache path.
// This is the single-machine path of the toolkit; no cluster store, no
// network.
func Local(ctx context.Context, meta *dataset.Meta, workers int, opts ...Option) (*Session, error) {
	s := newSettings(opts...)

	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	layout, err := grid.Partition(meta.Dims, workers)
	if err != nil {
		return nil, fmt.Errorf("engine: partition: %w", err)
	}

	sid := id.NewSessionID()
	exts := s.registry()
	ctx = parview.WithSession(ctx, sid)

	handles := make([]actor.Handle, workers)
	for rank := range workers {
		block, blockErr := layout.BlockForRank(rank)
		if blockErr != nil {
			return nil, fmt.Errorf("engine: %w", blockErr)
		}

		a := actor.New(rank, s.logger)
		h := actor.NewLocalHandle(a,
			actor.WithChain(s.chain),
			actor.WithExtensions(exts),
			actor.WithSession(sid),
			actor.WithTimeouts(s.config.SetupTimeout, s.config.RenderTimeout),
		)
		exts.EmitActorSpawned(ctx, a.ID, rank)
		exts.EmitBlockAssigned(ctx, *block)

		if setupErr := h.Setup(ctx, s.setupSpec(*block, meta)); setupErr != nil {
			return nil, fmt.Errorf("engine: setup rank %d: %w", rank, setupErr)
		}
		handles[rank] = h
	}

	v, err := s.buildView(handles, meta, exts, sid)
	if err != nil {
		return nil, err
	}

	s.logger.Info("local session ready",
		slog.String("session_id", sid.String()),
		slog.Int("actors", workers),
		slog.String("dataset", meta.Name),
	)
	return newSession(sid, meta, layout, v, handles, nil, exts, s.logger), nil
}

// Connect builds a distributed session from a cluster descriptor file:
// fetch the dataset into the local cache, partition it one Z-slab per
// worker, dial every worker, spawn and set up a remote actor per rank,
// and bind a view over the resulting handles.
func Connect(ctx context.Context, descriptorPath string, meta *dataset.Meta, opts ...Option) (*Session, error) {
	s := newSettings(opts...)

	desc, err := cluster.LoadDescriptor(descriptorPath)
	if err != nil {
		return nil, err
	}

	if err := meta.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	sid := id.NewSessionID()
	exts := s.registry()
	ctx = parview.WithSession(ctx, sid)

	fetchStart := time.Now()
	if err := s.fetcher.Fetch(ctx, meta); err != nil {
		return nil, fmt.Errorf("engine: fetch dataset: %w", err)
	}
	exts.EmitDatasetLoaded(ctx, meta, time.Since(fetchStart))

	layout, err := grid.Partition(meta.Dims, desc.WorkerCount())
	if err != nil {
		return nil, fmt.Errorf("engine: partition: %w", err)
	}

	workers := make([]*cluster.Worker, len(desc.Endpoints))
	for i, ep := range desc.Endpoints {
		workers[i] = &cluster.Worker{
			ID:    ep.ID,
			Addr:  ep.Addr,
			Rank:  ep.Rank,
			State: cluster.WorkerActive,
		}
	}
	if err := grid.Rebalance(layout, workers); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	s.logger.Info("connecting to cluster",
		slog.String("session_id", sid.String()),
		slog.String("cluster", desc.Name),
		slog.Int("workers", desc.WorkerCount()),
	)

	clients := make([]*client.Client, len(desc.Endpoints))
	handles := make([]actor.Handle, len(desc.Endpoints))
	closeAll := func() {
		for _, c := range clients {
			if c != nil {
				c.Close() //nolint:errcheck
			}
		}
	}

	for i, ep := range desc.Endpoints {
		c, dialErr := client.DialContext(ctx, endpointURL(ep.Addr),
			client.WithToken(s.token),
			client.WithFormat(s.format),
			client.WithLogger(s.logger),
		)
		if dialErr != nil {
			closeAll()
			return nil, fmt.Errorf("engine: dial rank %d at %s: %w", ep.Rank, ep.Addr, dialErr)
		}
		clients[i] = c
		handles[i] = client.NewRemoteHandle(c, ep.Rank)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, h := range handles {
		g.Go(func() error {
			block, blockErr := layout.BlockForRank(h.Rank())
			if blockErr != nil {
				return blockErr
			}
			exts.EmitBlockAssigned(gctx, *block)
			if setupErr := h.Setup(gctx, s.setupSpec(*block, meta)); setupErr != nil {
				return fmt.Errorf("setup rank %d: %w", h.Rank(), setupErr)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		closeAll()
		return nil, fmt.Errorf("engine: %w", err)
	}

	v, err := s.buildView(handles, meta, exts, sid)
	if err != nil {
		closeAll()
		return nil, err
	}

	s.logger.Info("cluster session ready",
		slog.String("session_id", sid.String()),
		slog.String("cluster", desc.Name),
		slog.Int("actors", len(handles)),
	)
	return newSession(sid, meta, layout, v, handles, clients, exts, s.logger), nil
}

// endpointURL turns a descriptor address into the worker's RVP
// WebSocket URL. Bare host:port addresses get the ws scheme and the
// default path.
func endpointURL(addr string) string {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return addr
	}
	return "ws://" + addr + "/rvp"
}
