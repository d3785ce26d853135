// Package enginemem is an in-memory scene graph implementing the engine
// surface. It backs the daemon and the test suites; nodes live in a
// handle arena and die when removed from their parent.
package enginemem

import (
	"fmt"
	"sync"

	"github.com/danmuck/scenectl/internal/engine"
	"github.com/danmuck/scenectl/internal/protocol"
)

type node struct {
	handle protocol.NodeHandle
	typ    string
	def    string
	order  []string
	fields map[string]*field
}

type field struct {
	handle protocol.FieldHandle
	owner  *node
	name   string
	spec   engine.FieldSpec
	value  protocol.Value   // single-value slot
	items  []protocol.Value // sequence slot
}

// World is the authoritative scene state. All methods lock; the wire
// server runs one goroutine per connection.
type World struct {
	mu sync.Mutex

	nodes  map[protocol.NodeHandle]*node
	fields map[protocol.FieldHandle]*field

	nextNode  uint64
	nextField uint64
	root      protocol.NodeHandle
}

// NewWorld builds a world holding a single root Group.
func NewWorld() *World {
	w := &World{
		nodes:  make(map[protocol.NodeHandle]*node),
		fields: make(map[protocol.FieldHandle]*field),
	}
	root, err := w.newNode("Group", "")
	if err != nil {
		panic(err) // Group is always in the schema
	}
	w.root = root.handle
	return w
}

func (w *World) newNode(typ, def string) (*node, error) {
	defs, ok := nodeSchema[typ]
	if !ok {
		return nil, fmt.Errorf("%w: unknown node type %q", engine.ErrBadSubtree, typ)
	}
	w.nextNode++
	n := &node{
		handle: protocol.NodeHandle(w.nextNode),
		typ:    typ,
		def:    def,
		fields: make(map[string]*field, len(defs)),
	}
	for _, fd := range defs {
		w.nextField++
		f := &field{
			handle: protocol.FieldHandle(w.nextField),
			owner:  n,
			name:   fd.name,
			spec:   engine.FieldSpec{Kind: fd.kind, Multi: fd.multi},
		}
		if fd.multi {
			f.items = []protocol.Value{}
		} else {
			f.value = fd.initial
		}
		n.order = append(n.order, fd.name)
		n.fields[fd.name] = f
		w.fields[f.handle] = f
	}
	w.nodes[n.handle] = n
	return n, nil
}

// destroyNode drops a node, its field slots, and every node reachable
// through them from the arena.
func (w *World) destroyNode(h protocol.NodeHandle) {
	n, ok := w.nodes[h]
	if !ok {
		return
	}
	delete(w.nodes, h)
	for _, f := range n.fields {
		delete(w.fields, f.handle)
		if f.spec.Kind != protocol.KindNode {
			continue
		}
		if f.spec.Multi {
			for _, item := range f.items {
				w.destroyNode(item.Node)
			}
		} else if f.value.Node != 0 {
			w.destroyNode(f.value.Node)
		}
	}
}

func (w *World) nodeByHandle(h protocol.NodeHandle) (*node, error) {
	n, ok := w.nodes[h]
	if !ok {
		return nil, fmt.Errorf("%w: node %d", engine.ErrNoSuchHandle, h)
	}
	return n, nil
}

func (w *World) fieldByHandle(h protocol.FieldHandle) (*field, error) {
	f, ok := w.fields[h]
	if !ok {
		return nil, fmt.Errorf("%w: field %d", engine.ErrNoSuchHandle, h)
	}
	return f, nil
}

func (w *World) singleField(h protocol.FieldHandle) (*field, error) {
	f, err := w.fieldByHandle(h)
	if err != nil {
		return nil, err
	}
	if f.spec.Multi {
		return nil, fmt.Errorf("%w: %s holds a sequence", engine.ErrKindMismatch, f.name)
	}
	return f, nil
}

func (w *World) multiField(h protocol.FieldHandle) (*field, error) {
	f, err := w.fieldByHandle(h)
	if err != nil {
		return nil, err
	}
	if !f.spec.Multi {
		return nil, fmt.Errorf("%w: %s holds a single value", engine.ErrKindMismatch, f.name)
	}
	return f, nil
}

func (w *World) RootNode() (protocol.NodeHandle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.root, nil
}

func (w *World) NodeType(h protocol.NodeHandle) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.nodeByHandle(h)
	if err != nil {
		return "", err
	}
	return n.typ, nil
}

func (w *World) DefName(h protocol.NodeHandle) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.nodeByHandle(h)
	if err != nil {
		return "", err
	}
	return n.def, nil
}

func (w *World) FieldNames(h protocol.NodeHandle) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.nodeByHandle(h)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(n.order))
	copy(names, n.order)
	return names, nil
}

func (w *World) Field(h protocol.NodeHandle, name string) (protocol.FieldHandle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.nodeByHandle(h)
	if err != nil {
		return 0, err
	}
	f, ok := n.fields[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s.%s", engine.ErrNoSuchField, n.typ, name)
	}
	return f.handle, nil
}

func (w *World) FieldSpec(h protocol.FieldHandle) (engine.FieldSpec, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := w.fieldByHandle(h)
	if err != nil {
		return engine.FieldSpec{}, err
	}
	return f.spec, nil
}

func (w *World) Value(h protocol.FieldHandle) (protocol.Value, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := w.singleField(h)
	if err != nil {
		return protocol.Value{}, err
	}
	return f.value, nil
}

func (w *World) SetValue(h protocol.FieldHandle, v protocol.Value) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := w.singleField(h)
	if err != nil {
		return err
	}
	if v.Kind != f.spec.Kind {
		return fmt.Errorf("%w: %s wants %s, got %s", engine.ErrKindMismatch, f.name, f.spec.Kind, v.Kind)
	}
	if v.Kind == protocol.KindNode {
		if v.Node != 0 {
			if _, err := w.nodeByHandle(v.Node); err != nil {
				return err
			}
		}
		if old := f.value.Node; old != 0 && old != v.Node {
			w.destroyNode(old)
		}
	}
	f.value = v
	return nil
}

func (w *World) Count(h protocol.FieldHandle) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := w.multiField(h)
	if err != nil {
		return 0, err
	}
	return len(f.items), nil
}

func (w *World) Item(h protocol.FieldHandle, index int) (protocol.Value, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := w.multiField(h)
	if err != nil {
		return protocol.Value{}, err
	}
	if index < 0 || index >= len(f.items) {
		return protocol.Value{}, indexError(f, index)
	}
	return f.items[index], nil
}

func (w *World) SetItem(h protocol.FieldHandle, index int, v protocol.Value) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := w.multiField(h)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(f.items) {
		return indexError(f, index)
	}
	if err := w.checkElement(f, v); err != nil {
		return err
	}
	if f.spec.Kind == protocol.KindNode {
		if old := f.items[index].Node; old != 0 && old != v.Node {
			w.destroyNode(old)
		}
	}
	f.items[index] = v
	return nil
}

func (w *World) Insert(h protocol.FieldHandle, index int, v protocol.Value) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := w.multiField(h)
	if err != nil {
		return err
	}
	if index < 0 || index > len(f.items) {
		return indexError(f, index)
	}
	if err := w.checkElement(f, v); err != nil {
		return err
	}
	f.items = append(f.items[:index], append([]protocol.Value{v}, f.items[index:]...)...)
	return nil
}

func (w *World) Remove(h protocol.FieldHandle, index int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := w.multiField(h)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(f.items) {
		return indexError(f, index)
	}
	if f.spec.Kind == protocol.KindNode {
		w.destroyNode(f.items[index].Node)
	}
	f.items = append(f.items[:index], f.items[index+1:]...)
	return nil
}

func (w *World) checkElement(f *field, v protocol.Value) error {
	if v.Kind != f.spec.Kind {
		return fmt.Errorf("%w: %s wants %s, got %s", engine.ErrKindMismatch, f.name, f.spec.Kind, v.Kind)
	}
	if v.Kind == protocol.KindNode {
		if _, err := w.nodeByHandle(v.Node); err != nil {
			return err
		}
	}
	return nil
}

func indexError(f *field, index int) error {
	return fmt.Errorf("%w: %s[%d] with %d items", engine.ErrIndexOutOfRange, f.name, index, len(f.items))
}

var _ engine.Engine = (*World)(nil)
