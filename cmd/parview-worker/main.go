// Command parview-worker runs one rendering worker: it joins the
// cluster store, serves the Render View Protocol, and optionally writes
// the cluster descriptor file once the expected number of workers has
// registered.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jjones-jr/parview"
	"github.com/jjones-jr/parview/cluster"
	"github.com/jjones-jr/parview/rvp"
	"github.com/jjones-jr/parview/store"
	"github.com/jjones-jr/parview/store/memory"
	storepg "github.com/jjones-jr/parview/store/postgres"
	storeredis "github.com/jjones-jr/parview/store/redis"
	"github.com/jjones-jr/parview/worker"
)

func main() {
	var (
		listenAddr    = flag.String("listen", ":9400", "RVP listen address")
		advertiseAddr = flag.String("advertise", "", "address published to the cluster (defaults to listen)")
		rank          = flag.Int("rank", 0, "compositing rank of this worker")
		storeKind     = flag.String("store", "memory", "cluster store backend: memory, redis, postgres")
		redisAddr     = flag.String("redis-addr", "localhost:6379", "redis address for -store=redis")
		postgresDSN   = flag.String("postgres-dsn", "", "connection string for -store=postgres")
		token         = flag.String("token", "", "require this API token on RVP connections")
		heartbeat     = flag.Duration("heartbeat", 10*time.Second, "cluster heartbeat interval")
		reapThreshold = flag.Duration("reap-threshold", 45*time.Second, "stale-worker threshold for leader reaping")
		leaderTTL     = flag.Duration("leader-ttl", 30*time.Second, "leader lease duration")
		descriptor    = flag.String("descriptor", "", "write the cluster descriptor to this path once the cluster is full")
		clusterName   = flag.String("cluster", "parview", "cluster name written to the descriptor")
		clusterSize   = flag.Int("workers", 0, "expected worker count for descriptor emission")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(logger, runConfig{
		listenAddr:    *listenAddr,
		advertiseAddr: *advertiseAddr,
		rank:          *rank,
		storeKind:     *storeKind,
		redisAddr:     *redisAddr,
		postgresDSN:   *postgresDSN,
		token:         *token,
		heartbeat:     *heartbeat,
		reapThreshold: *reapThreshold,
		leaderTTL:     *leaderTTL,
		descriptor:    *descriptor,
		clusterName:   *clusterName,
		clusterSize:   *clusterSize,
	}); err != nil {
		logger.Error("worker exited", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

type runConfig struct {
	listenAddr    string
	advertiseAddr string
	rank          int
	storeKind     string
	redisAddr     string
	postgresDSN   string
	token         string
	heartbeat     time.Duration
	reapThreshold time.Duration
	leaderTTL     time.Duration
	descriptor    string
	clusterName   string
	clusterSize   int
}

func run(logger *slog.Logger, cfg runConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := buildStore(ctx, logger, cfg)
	if err != nil {
		return err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return fmt.Errorf("migrate store: %w", err)
	}

	node, err := parview.New(
		parview.WithStore(st),
		parview.WithLogger(logger),
		parview.WithListenAddr(cfg.listenAddr),
		parview.WithAdvertiseAddr(cfg.advertiseAddr),
	)
	if err != nil {
		_ = st.Close()
		return err
	}

	hostOpts := []worker.HostOption{
		worker.WithListenAddr(node.ListenAddr()),
		worker.WithAdvertiseAddr(node.AdvertiseAddr()),
		worker.WithRank(cfg.rank),
		worker.WithHeartbeatInterval(cfg.heartbeat),
		worker.WithReapThreshold(cfg.reapThreshold),
		worker.WithLeaderTTL(cfg.leaderTTL),
	}
	if cfg.token != "" {
		hostOpts = append(hostOpts, worker.WithAuth(rvp.NewAPIKeyAuthenticator(rvp.APIKeyEntry{
			Token:    cfg.token,
			Identity: rvp.Identity{Subject: "worker-client", Scopes: []string{rvp.ScopeAll}},
		})))
	}

	node.SetHost(worker.NewHost(st, node.Logger(), hostOpts...))
	if err := node.Start(ctx); err != nil {
		_ = st.Close()
		return err
	}

	if cfg.descriptor != "" && cfg.clusterSize > 0 {
		go emitDescriptor(ctx, logger, st, cfg)
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	// Node.Stop drains the host and closes the store.
	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return node.Stop(stopCtx)
}

func buildStore(ctx context.Context, logger *slog.Logger, cfg runConfig) (store.Store, error) {
	switch cfg.storeKind {
	case "memory":
		return memory.New(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return storeredis.New(client, storeredis.WithLogger(logger)), nil
	case "postgres":
		if cfg.postgresDSN == "" {
			return nil, fmt.Errorf("-store=postgres requires -postgres-dsn")
		}
		return storepg.New(ctx, cfg.postgresDSN, storepg.WithLogger(logger))
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.storeKind)
	}
}

// emitDescriptor polls the cluster store until the expected number of
// active workers has registered, then writes the descriptor file
// clients use to connect.
func emitDescriptor(ctx context.Context, logger *slog.Logger, st store.Store, cfg runConfig) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		workers, err := st.ListWorkers(ctx)
		if err != nil {
			logger.Warn("descriptor poll failed", slog.String("error", err.Error()))
			continue
		}
		active := 0
		for _, w := range workers {
			if w.State == cluster.WorkerActive {
				active++
			}
		}
		if active < cfg.clusterSize {
			continue
		}

		desc, err := cluster.DescriptorFromWorkers(cfg.clusterName, workers)
		if err != nil {
			logger.Warn("descriptor build failed", slog.String("error", err.Error()))
			continue
		}
		if err := cluster.WriteDescriptor(desc, cfg.descriptor); err != nil {
			logger.Error("descriptor write failed", slog.String("error", err.Error()))
			return
		}
		logger.Info("cluster descriptor written",
			slog.String("path", cfg.descriptor),
			slog.Int("workers", desc.WorkerCount()),
		)
		return
	}
}
