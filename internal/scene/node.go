package scene

import (
	"errors"
	"fmt"

	"github.com/danmuck/scenectl/internal/engine"
	"github.com/danmuck/scenectl/internal/protocol"
)

// Node is the live proxy for one remote node. Type and DEF name are
// fetched once at construction; everything else goes through Field
// proxies. A Node turns stale the moment a mutation from this process
// deletes its handle, and every later operation on it fails.
type Node struct {
	world  *World
	handle protocol.NodeHandle
	typ    string
	def    string
	parent *Node
	live   bool
	fields map[string]*Field
}

func (n *Node) Handle() protocol.NodeHandle { return n.handle }

// Type returns the cached node type tag.
func (n *Node) Type() string { return n.typ }

// DefName returns the cached DEF name, empty when the node is unnamed.
func (n *Node) DefName() string { return n.def }

// Parent returns the node this one was reached through, nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// IsLive reports whether the backing handle is still believed valid.
func (n *Node) IsLive() bool { return n.live }

func (n *Node) staleErr() error {
	return fmt.Errorf("%w: node %d (%s)", ErrStaleReference, n.handle, n.typ)
}

// Field resolves a declared field by name, constructing the proxy on
// first access. The proxy lives as long as its node.
func (n *Node) Field(name string) (*Field, error) {
	if !n.live {
		return nil, n.staleErr()
	}
	if f, ok := n.fields[name]; ok {
		return f, nil
	}
	fh, err := n.world.eng.Field(n.handle, name)
	if err != nil {
		if errors.Is(err, engine.ErrNoSuchField) {
			return nil, fmt.Errorf("%w: %s has no field %q", ErrFieldNotFound, n.typ, name)
		}
		return nil, err
	}
	spec, err := n.world.eng.FieldSpec(fh)
	if err != nil {
		return nil, err
	}
	f := &Field{
		node:   n,
		name:   name,
		handle: fh,
		spec:   spec,
	}
	n.fields[name] = f
	return f, nil
}

// FieldNames lists the node's declared field names.
func (n *Node) FieldNames() ([]string, error) {
	if !n.live {
		return nil, n.staleErr()
	}
	return n.world.eng.FieldNames(n.handle)
}

// Children returns the structural children sequence for node types that
// have one.
func (n *Node) Children() (*Field, error) {
	return n.Field("children")
}

// Get reads a single-value field through its cache.
func (n *Node) Get(name string) (protocol.Value, error) {
	f, err := n.Field(name)
	if err != nil {
		return protocol.Value{}, err
	}
	return f.Get()
}

// Set coerces and writes a single-value field.
func (n *Node) Set(name string, value any) error {
	f, err := n.Field(name)
	if err != nil {
		return err
	}
	return f.Set(value)
}

// Export renders this node and its descendants in the engine's textual
// subtree format.
func (n *Node) Export() (string, error) {
	if !n.live {
		return "", n.staleErr()
	}
	return n.world.eng.ExportSubtree(n.handle)
}

// adopt records the parent a node was reached through. The first
// traversal wins; handles have one structural parent.
func (n *Node) adopt(parent *Node) {
	if n.parent == nil && parent != n {
		n.parent = parent
	}
}
