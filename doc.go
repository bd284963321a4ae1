// Package parview provides a composable toolkit for interactive,
// distributed scientific visualization in Go. It loads a volumetric
// dataset, splits it into one block per worker, instantiates a persistent
// rendering actor on each worker, and drives the remote pipelines from a
// single client-side display view that composites per-worker frames.
//
// Parview is designed as a library, not a service. Import it, configure a
// cluster store, and build a view over local or remote rendering actors.
//
// # Quick Start (single process)
//
//	sess, err := engine.Local(ctx, meta, 4,
//	    engine.WithMode(render.ModeIsosurface),
//	    engine.WithIsoValue(0.5),
//	)
//	frame, err := sess.Render(ctx)
//	err = sess.View().Snapshot("frame.png")
//
// For a cluster, start parview-worker daemons and connect through their
// descriptor file:
//
//	sess, err := engine.Connect(ctx, "cluster.json", meta,
//	    engine.WithToken(token),
//	)
//
// # Architecture
//
// Parview follows a composable store pattern: the cluster subsystem
// defines its own store interface, implemented by memory, Redis, and
// PostgreSQL backends. Rendering actors live on workers behind the
// Render View Protocol (RVP) — a frame-based WebSocket protocol with
// JSON and MessagePack codecs. The client side never holds bulk data,
// only actor handles and futures.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based,
// compile-time safe identifiers.
package parview
