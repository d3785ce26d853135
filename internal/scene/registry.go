package scene

import (
	"github.com/danmuck/scenectl/internal/observability"
	"github.com/danmuck/scenectl/internal/protocol"
	"github.com/rs/zerolog/log"
)

// registry is the handle arena: at most one live Node proxy per remote
// handle. Entries carry a liveness flag instead of weak pointers; a
// stale proxy stays usable only for reporting its own staleness.
type registry struct {
	world *World
	nodes map[protocol.NodeHandle]*Node
}

func newRegistry(w *World) *registry {
	return &registry{
		world: w,
		nodes: make(map[protocol.NodeHandle]*Node),
	}
}

// lookupOrCreate returns the live proxy for a handle, constructing one
// on first sight. Construction queries the node's type and DEF name
// exactly once; both are immutable for the handle's lifetime.
func (r *registry) lookupOrCreate(h protocol.NodeHandle) (*Node, error) {
	if n, ok := r.nodes[h]; ok {
		observability.RecordCacheLookup("node", true)
		return n, nil
	}
	observability.RecordCacheLookup("node", false)
	typ, err := r.world.eng.NodeType(h)
	if err != nil {
		return nil, err
	}
	def, err := r.world.eng.DefName(h)
	if err != nil {
		return nil, err
	}
	n := &Node{
		world:  r.world,
		handle: h,
		typ:    typ,
		def:    def,
		live:   true,
		fields: make(map[string]*Field),
	}
	r.nodes[h] = n
	return n, nil
}

// invalidate marks the proxy for a deleted handle stale, along with
// every registered proxy that descends from it: nodes whose parent
// chain reaches a victim, and nodes cached inside a victim's fields.
// Every code path that deletes or replaces a remote node calls this
// before returning.
func (r *registry) invalidate(h protocol.NodeHandle, trigger string) {
	seed, ok := r.nodes[h]
	if !ok {
		return
	}
	victims := map[*Node]bool{seed: true}
	for {
		grew := false
		for _, n := range r.nodes {
			if victims[n] {
				continue
			}
			if n.parent != nil && victims[n.parent] {
				victims[n] = true
				grew = true
			}
		}
		for v := range victims {
			for _, child := range r.cachedChildren(v) {
				if !victims[child] {
					victims[child] = true
					grew = true
				}
			}
		}
		if !grew {
			break
		}
	}
	for v := range victims {
		v.live = false
		delete(r.nodes, v.handle)
	}
	observability.RecordInvalidation(trigger, len(victims))
	log.Trace().
		Uint64("handle", uint64(h)).
		Str("trigger", trigger).
		Int("count", len(victims)).
		Msg("proxies invalidated")
}

// cachedChildren lists registered proxies reachable through a node's
// field caches.
func (r *registry) cachedChildren(n *Node) []*Node {
	var out []*Node
	appendHandle := func(h protocol.NodeHandle) {
		if child, ok := r.nodes[h]; ok {
			out = append(out, child)
		}
	}
	for _, f := range n.fields {
		if f.spec.Kind != protocol.KindNode {
			continue
		}
		if f.cached && f.value.Node != 0 {
			appendHandle(f.value.Node)
		}
		if f.seqValid {
			for _, item := range f.items {
				appendHandle(item.Node)
			}
		}
	}
	return out
}
