// Package cluster provides distributed worker coordination: worker
// registration, heartbeats, TTL-based leader election, and the JSON
// descriptor file clients use to locate a running cluster.
//
// # Worker Entity
//
// Each running parview worker registers itself as a [Worker] with:
//   - a unique [id.WorkerID]
//   - its hostname and RVP endpoint address
//   - its rank (the dense 0..n-1 index that decides which data block
//     the worker owns)
//   - a state: [WorkerActive], [WorkerDraining], or [WorkerDead]
//
// Workers send periodic heartbeats. If a heartbeat is not received within
// the configured threshold, the worker is considered dead and the cluster
// needs a rebalance before the next render session.
//
// # Leader Election
//
// One worker at a time holds leadership. The leader reaps dead workers
// from the registry. Leadership is managed by [Store.AcquireLeadership]
// using a TTL; if the hold is lost mid-operation,
// [parview.ErrLeadershipLost] is returned.
//
// # Descriptor
//
// A [Descriptor] is a small JSON file naming the cluster and listing the
// worker endpoints in rank order. Clients pass its path to the engine's
// connect call; it is the moral equivalent of a scheduler discovery file.
package cluster
