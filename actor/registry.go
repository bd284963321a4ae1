package actor

import (
	"sync"

	"github.com/jjones-jr/parview"
	"github.com/jjones-jr/parview/id"
)

// Registry tracks the live actors hosted by one worker process.
type Registry struct {
	mu     sync.RWMutex
	actors map[id.ActorID]*Actor
}

// NewRegistry returns an empty actor registry.
func NewRegistry() *Registry {
	return &Registry{actors: make(map[id.ActorID]*Actor)}
}

// Add registers an actor.
func (r *Registry) Add(a *Actor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actors[a.ID] = a
}

// Get returns the actor with the given ID.
func (r *Registry) Get(actorID id.ActorID) (*Actor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actors[actorID]
	if !ok {
		return nil, parview.ErrActorNotFound
	}
	return a, nil
}

// Remove deletes an actor from the registry. The actor is not closed;
// callers close it first.
func (r *Registry) Remove(actorID id.ActorID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.actors, actorID)
}

// List returns a snapshot of all registered actors.
func (r *Registry) List() []*Actor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Actor, 0, len(r.actors))
	for _, a := range r.actors {
		out = append(out, a)
	}
	return out
}

// Len returns the number of registered actors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actors)
}

// CloseAll closes every actor and empties the registry. The first close
// error is returned; remaining actors are still closed.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for aid, a := range r.actors {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.actors, aid)
	}
	return firstErr
}
