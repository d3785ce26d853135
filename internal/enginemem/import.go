package enginemem

import (
	"fmt"

	"github.com/danmuck/scenectl/internal/engine"
	"github.com/danmuck/scenectl/internal/protocol"
)

// ImportSubtree parses the textual subtree and splices its root into a
// node-valued sequence field at index. New handles come back in document
// order, root first.
func (w *World) ImportSubtree(h protocol.FieldHandle, index int, subtree string) ([]protocol.NodeHandle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	f, err := w.multiField(h)
	if err != nil {
		return nil, err
	}
	if f.spec.Kind != protocol.KindNode {
		return nil, fmt.Errorf("%w: %s is not node-valued", engine.ErrKindMismatch, f.name)
	}
	if index < 0 || index > len(f.items) {
		return nil, indexError(f, index)
	}
	parsed, err := protocol.ParseSubtree(subtree)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", engine.ErrBadSubtree, err)
	}
	var created []protocol.NodeHandle
	root, err := w.buildNode(parsed, &created)
	if err != nil {
		for _, h := range created {
			w.destroyNode(h)
		}
		return nil, err
	}
	f.items = append(f.items[:index], append([]protocol.Value{protocol.NodeValue(root.handle)}, f.items[index:]...)...)
	return created, nil
}

// LoadSubtree appends a parsed subtree to the root's children. The daemon
// uses it to seed a world from a file.
func (w *World) LoadSubtree(subtree string) ([]protocol.NodeHandle, error) {
	w.mu.Lock()
	children := w.nodes[w.root].fields["children"]
	handle := children.handle
	count := len(children.items)
	w.mu.Unlock()
	return w.ImportSubtree(handle, count, subtree)
}

// buildNode materializes one parsed node and its descendants, tracking
// every created handle in document order.
func (w *World) buildNode(sn *protocol.SubtreeNode, created *[]protocol.NodeHandle) (*node, error) {
	n, err := w.newNode(sn.Type, sn.DefName)
	if err != nil {
		return nil, err
	}
	*created = append(*created, n.handle)
	for _, sf := range sn.Fields {
		f, ok := n.fields[sf.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %s has no field %q", engine.ErrBadSubtree, sn.Type, sf.Name)
		}
		if f.spec.Multi {
			if err := w.fillSequence(f, sf.Value, created); err != nil {
				return nil, err
			}
			continue
		}
		if f.spec.Kind == protocol.KindNode {
			if sf.Value.Kind != protocol.SVNode {
				return nil, fmt.Errorf("%w: %s.%s wants a node", engine.ErrBadSubtree, sn.Type, sf.Name)
			}
			child, err := w.buildNode(sf.Value.Node, created)
			if err != nil {
				return nil, err
			}
			f.value = protocol.NodeValue(child.handle)
			continue
		}
		v, err := sf.Value.Bind(f.spec.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: %s.%s: %v", engine.ErrBadSubtree, sn.Type, sf.Name, err)
		}
		f.value = v
	}
	return n, nil
}

func (w *World) fillSequence(f *field, sv protocol.SubtreeValue, created *[]protocol.NodeHandle) error {
	elems := sv.List
	if sv.Kind != protocol.SVList {
		// a bare value is a one-element sequence
		elems = []protocol.SubtreeValue{sv}
	}
	for _, elem := range elems {
		if f.spec.Kind == protocol.KindNode {
			if elem.Kind != protocol.SVNode {
				return fmt.Errorf("%w: %s holds nodes", engine.ErrBadSubtree, f.name)
			}
			child, err := w.buildNode(elem.Node, created)
			if err != nil {
				return err
			}
			f.items = append(f.items, protocol.NodeValue(child.handle))
			continue
		}
		v, err := elem.Bind(f.spec.Kind)
		if err != nil {
			return fmt.Errorf("%w: %s: %v", engine.ErrBadSubtree, f.name, err)
		}
		f.items = append(f.items, v)
	}
	return nil
}

// ExportSubtree renders a node and its descendants in the textual format.
// Fields still holding their type default are omitted.
func (w *World) ExportSubtree(h protocol.NodeHandle) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	n, err := w.nodeByHandle(h)
	if err != nil {
		return "", err
	}
	sn, err := w.exportNode(n)
	if err != nil {
		return "", err
	}
	return protocol.FormatSubtree(sn), nil
}

func (w *World) exportNode(n *node) (*protocol.SubtreeNode, error) {
	sn := &protocol.SubtreeNode{Type: n.typ, DefName: n.def}
	defs := nodeSchema[n.typ]
	for _, fd := range defs {
		f := n.fields[fd.name]
		if f.spec.Multi {
			if len(f.items) == 0 {
				continue
			}
			list := protocol.SubtreeValue{Kind: protocol.SVList}
			for _, item := range f.items {
				elem, err := w.exportValue(item)
				if err != nil {
					return nil, err
				}
				list.List = append(list.List, elem)
			}
			sn.Fields = append(sn.Fields, protocol.SubtreeField{Name: fd.name, Value: list})
			continue
		}
		if f.value.Equal(fd.initial) {
			continue
		}
		elem, err := w.exportValue(f.value)
		if err != nil {
			return nil, err
		}
		sn.Fields = append(sn.Fields, protocol.SubtreeField{Name: fd.name, Value: elem})
	}
	return sn, nil
}

func (w *World) exportValue(v protocol.Value) (protocol.SubtreeValue, error) {
	if v.Kind != protocol.KindNode {
		return protocol.ScalarSubtreeValue(v)
	}
	child, err := w.nodeByHandle(v.Node)
	if err != nil {
		return protocol.SubtreeValue{}, err
	}
	sn, err := w.exportNode(child)
	if err != nil {
		return protocol.SubtreeValue{}, err
	}
	return protocol.SubtreeValue{Kind: protocol.SVNode, Node: sn}, nil
}
