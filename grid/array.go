package grid

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Loader realizes the data for a single block. Implementations typically
// call into an actor's one-time setup or read the block from disk.
type Loader func(ctx context.Context, b *Block) error

// Array is the lazy distributed array abstraction: a layout plus a
// per-block loader. Construction is cheap; Persist realizes every block
// concurrently, after which Realized reports per-block state.
type Array struct {
	layout *Layout
	load   Loader

	mu       sync.Mutex
	realized map[int]bool
}

// NewArray creates a lazy array over the layout.
func NewArray(layout *Layout, load Loader) *Array {
	return &Array{
		layout:   layout,
		load:     load,
		realized: make(map[int]bool, len(layout.Blocks)),
	}
}

// Layout returns the array's block layout.
func (a *Array) Layout() *Layout { return a.layout }

// Persist realizes all unrealized blocks concurrently. Already realized
// blocks are skipped, so Persist is safe to call again after a partial
// failure. The first loader error aborts the remaining loads.
func (a *Array) Persist(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	for _, b := range a.layout.Blocks {
		a.mu.Lock()
		done := a.realized[b.Index]
		a.mu.Unlock()
		if done {
			continue
		}

		g.Go(func() error {
			if err := a.load(ctx, b); err != nil {
				return fmt.Errorf("grid: persist block %d: %w", b.Index, err)
			}
			a.mu.Lock()
			a.realized[b.Index] = true
			a.mu.Unlock()
			return nil
		})
	}

	return g.Wait()
}

// Realized reports whether the block with the given index has been loaded.
func (a *Array) Realized(index int) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.realized[index]
}
