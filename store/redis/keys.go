package redis

// Redis key naming conventions for parview cluster data.
// All keys are prefixed with "parview:" to avoid collisions.

const keyPrefix = "parview:"

// workerKey returns the key for a worker entity: parview:worker:{id}
func workerKey(id string) string { return keyPrefix + "worker:" + id }

// workerIDsKey is the Set tracking all worker IDs for enumeration.
const workerIDsKey = keyPrefix + "worker_ids"

// leaderKey stores the current leader worker ID.
const leaderKey = keyPrefix + "leader"
