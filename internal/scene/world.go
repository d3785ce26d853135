// Package scene is the proxy cache over a remote scene graph: one live
// Node proxy per remote handle, write-through field caches, recursive
// invalidation on structural edits, breadth-first search, and pure local
// Plans for speculative subtrees.
//
// The package is single-threaded by contract. Every remote call is a
// blocking round trip on the caller's goroutine; mutations update or
// invalidate caches before returning. Consistency holds only while this
// process is the sole writer: mutations made by another process to the
// same remote graph are not detected or repaired.
package scene

import (
	"github.com/danmuck/scenectl/internal/engine"
)

// World is the per-process context: the engine connection, the handle
// registry, and the scene root. Construct one at startup and hand it to
// whatever needs the tree.
type World struct {
	eng      engine.Engine
	registry *registry
	root     *Node
}

// NewWorld resolves the remote root and builds the context around it.
func NewWorld(eng engine.Engine) (*World, error) {
	w := &World{eng: eng}
	w.registry = newRegistry(w)
	rootHandle, err := eng.RootNode()
	if err != nil {
		return nil, err
	}
	root, err := w.registry.lookupOrCreate(rootHandle)
	if err != nil {
		return nil, err
	}
	w.root = root
	return w, nil
}

// Root returns the scene root proxy.
func (w *World) Root() *Node {
	return w.root
}

// Find searches the whole tree for a single match. See Node.Find.
func (w *World) Find(identifier string) (*Node, error) {
	return w.root.Find(identifier)
}

// FindAll searches the whole tree for every match in breadth-first order.
func (w *World) FindAll(identifier string) ([]*Node, error) {
	return w.root.FindAll(identifier)
}
