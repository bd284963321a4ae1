// Package engine builds rendering sessions: it wires the dataset, the
// block partition, the actors, and the display view into one object.
//
// The engine package exists to break an import cycle: the root parview
// package defines Entity and Config (imported by dataset, actor, etc.)
// and therefore cannot import those packages back. Engine sits above
// all subsystem packages and below the application.
//
// # Single process
//
//	sess, err := engine.Local(ctx, meta, 4,
//	    engine.WithMode(render.ModeIsosurface),
//	    engine.WithIsoValue(0.5),
//	)
//	frame, err := sess.Render(ctx)
//
// # Distributed
//
//	sess, err := engine.Connect(ctx, "cluster.json", meta,
//	    engine.WithToken(token),
//	    engine.WithFormat("msgpack"),
//	)
//	frame, err := sess.Render(ctx)
//	err = sess.View().Snapshot("frame.png")
//
// Connect reads the cluster descriptor, fetches the dataset into the
// local cache, partitions it into one Z-slab per worker, dials each
// worker's RVP endpoint, and sets up one remote actor per rank. Close
// the session to destroy the actors and disconnect.
package engine
