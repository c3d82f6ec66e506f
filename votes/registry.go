package votes

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Registry hands out one reconciler per entity for a view's lifetime.
// Different entities vote independently; the per-entity in-flight guard
// lives inside each reconciler, not here.
type Registry struct {
	caller   Caller
	viewer   Viewer
	notifier Notifier
	log      *logrus.Logger

	mutex       sync.Mutex
	reconcilers map[int64]*Reconciler
}

// NewRegistry creates an empty registry for one entity kind
func NewRegistry(caller Caller, viewer Viewer, notifier Notifier, log *logrus.Logger) *Registry {
	return &Registry{
		caller:      caller,
		viewer:      viewer,
		notifier:    notifier,
		log:         log,
		reconcilers: make(map[int64]*Reconciler),
	}
}

// Get returns the reconciler for entityID, creating one seeded with
// initialScore on first sight of the entity.
func (g *Registry) Get(entityID int64, initialScore int) *Reconciler {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if r, ok := g.reconcilers[entityID]; ok {
		return r
	}

	r := NewReconciler(g.caller, entityID, initialScore, g.viewer, g.notifier, g.log)
	g.reconcilers[entityID] = r
	return r
}

// Drop forgets the reconciler for entityID (entity removed from the view)
func (g *Registry) Drop(entityID int64) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	delete(g.reconcilers, entityID)
}
