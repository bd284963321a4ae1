package parview

import (
	"context"
	"log/slog"
)

// Option configures a Node.
type Option func(*Node) error

// Storer is the minimal store interface held by the Node. It covers
// lifecycle operations only. The full aggregate interface (store.Store)
// is used in subsystem layers that don't create import cycles.
type Storer interface {
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// hostRunner is an internal interface for the worker host lifecycle.
type hostRunner interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Node is the per-process coordinator. On a worker it carries the
// cluster store, the RVP listen address, and the host runtime; on a
// client it carries configuration and logging for the engine layer.
//
// Create one with New() and functional options. Use worker.NewHost to
// wire a Node into a serving worker.
type Node struct {
	config        Config
	logger        *slog.Logger
	store         Storer
	host          hostRunner
	listenAddr    string
	advertiseAddr string

	// started tracks whether Start has been called.
	started bool
}

// New creates a new Node with the given options.
func New(opts ...Option) (*Node, error) {
	n := &Node{
		config:     DefaultConfig(),
		logger:     slog.Default(),
		listenAddr: ":9780",
	}
	for _, opt := range opts {
		if err := opt(n); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// Logger returns the node's logger.
func (n *Node) Logger() *slog.Logger { return n.logger }

// Store returns the node's store.
func (n *Node) Store() Storer { return n.store }

// Config returns a copy of the node's configuration.
func (n *Node) Config() Config { return n.config }

// ListenAddr returns the RVP listen address.
func (n *Node) ListenAddr() string { return n.listenAddr }

// AdvertiseAddr returns the address other processes use to reach this
// node. Falls back to the listen address when unset.
func (n *Node) AdvertiseAddr() string {
	if n.advertiseAddr != "" {
		return n.advertiseAddr
	}
	return n.listenAddr
}

// SetHost sets the worker host runtime. Callers build the host with
// worker.NewHost and hand it to the node before Start.
func (n *Node) SetHost(h hostRunner) { n.host = h }

// Start begins serving actors.
func (n *Node) Start(ctx context.Context) error {
	if n.host == nil {
		return ErrNoHost
	}
	if err := n.host.Start(ctx); err != nil {
		return err
	}
	n.started = true
	return nil
}

// Stop gracefully shuts down the node.
func (n *Node) Stop(ctx context.Context) error {
	if n.host != nil && n.started {
		if err := n.host.Stop(ctx); err != nil {
			n.logger.Error("host stop error", "error", err)
		}
	}
	if n.store != nil {
		return n.store.Close()
	}
	return nil
}

// WithConfig replaces the node's configuration.
func WithConfig(c Config) Option {
	return func(n *Node) error {
		n.config = c
		return nil
	}
}

// WithLogger sets the structured logger for the node.
func WithLogger(l *slog.Logger) Option {
	return func(n *Node) error {
		n.logger = l
		return nil
	}
}

// WithStore sets the persistence backend for the node.
// The store must implement Storer at minimum; typically it will be a
// store.Store which embeds the cluster store interface.
func WithStore(s Storer) Option {
	return func(n *Node) error {
		n.store = s
		return nil
	}
}

// WithListenAddr sets the address the RVP server listens on.
func WithListenAddr(addr string) Option {
	return func(n *Node) error {
		n.listenAddr = addr
		return nil
	}
}

// WithAdvertiseAddr sets the externally reachable RVP address recorded
// in the cluster registry and descriptor.
func WithAdvertiseAddr(addr string) Option {
	return func(n *Node) error {
		n.advertiseAddr = addr
		return nil
	}
}
