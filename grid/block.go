package grid

import "github.com/jjones-jr/parview/id"

// Block is one contiguous piece of the distributed array, owned by
// exactly one worker.
type Block struct {
	ID     id.BlockID  `json:"id"`
	Index  int         `json:"index"`
	Extent Extent      `json:"extent"`
	Worker id.WorkerID `json:"worker,omitempty"`
	Rank   int         `json:"rank"`
}

// Assigned reports whether the block has an owning worker.
func (b *Block) Assigned() bool { return !b.Worker.IsNil() }
