package cluster

import (
	"time"

	"github.com/jjones-jr/parview/id"
)

// WorkerState represents the lifecycle state of a worker.
type WorkerState string

const (
	// WorkerActive means the worker is healthy and serving actors.
	WorkerActive WorkerState = "active"
	// WorkerDraining means the worker is finishing in-flight renders
	// but not accepting new sessions (graceful shutdown).
	WorkerDraining WorkerState = "draining"
	// WorkerDead means the worker has stopped responding and its block
	// assignment is stale.
	WorkerDead WorkerState = "dead"
)

// Worker represents a parview worker instance in a distributed cluster.
type Worker struct {
	ID          id.WorkerID       `json:"id"`
	Hostname    string            `json:"hostname"`
	Addr        string            `json:"addr"`
	Rank        int               `json:"rank"`
	State       WorkerState       `json:"state"`
	IsLeader    bool              `json:"is_leader"`
	LeaderUntil *time.Time        `json:"leader_until,omitempty"`
	LastSeen    time.Time         `json:"last_seen"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}
