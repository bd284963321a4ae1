// Package actor implements the per-worker rendering actor.
//
// An [Actor] owns exactly one block of the distributed volume. Its
// lifecycle is created → ready → closed: [Actor.Setup] loads the block
// from the local dataset cache and arms the raycaster, render requests
// are only served while ready, and [Actor.Close] releases the block.
// Setup is guarded so redelivered setup requests are acknowledged with
// [parview.ErrActorReady] instead of reloading the block.
//
// A [Handle] is the uniform way to drive an actor. [LocalHandle] runs
// the actor in-process behind a middleware chain; the client package
// provides the remote equivalent over the wire protocol.
package actor
