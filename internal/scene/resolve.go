package scene

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/danmuck/scenectl/internal/protocol"
)

// Find searches the descendants of this node breadth-first for a single
// match, skipping intermediate levels: the identifier is tested against
// every descendant regardless of depth. A DEF name, a node type tag, a
// device name (the node's string "name" field), or a decimal handle all
// match. The shallowest match wins; more than one match at that depth is
// an ambiguity, not a pick. No match returns (nil, nil).
func (n *Node) Find(identifier string) (*Node, error) {
	if !n.live {
		return nil, n.staleErr()
	}
	level := []*Node{n}
	seen := map[protocol.NodeHandle]bool{n.handle: true}
	for len(level) > 0 {
		var next []*Node
		var matches []*Node
		for _, cur := range level {
			kids, err := cur.childNodes()
			if err != nil {
				return nil, err
			}
			for _, kid := range kids {
				if seen[kid.handle] {
					continue
				}
				seen[kid.handle] = true
				next = append(next, kid)
				ok, err := matchIdentifier(kid, identifier)
				if err != nil {
					return nil, err
				}
				if ok {
					matches = append(matches, kid)
				}
			}
		}
		if len(matches) == 1 {
			return matches[0], nil
		}
		if len(matches) > 1 {
			return nil, fmt.Errorf("%w: %q matches %d nodes at the same depth",
				ErrAmbiguousReference, identifier, len(matches))
		}
		level = next
	}
	return nil, nil
}

// FindAll returns every matching descendant in breadth-first order.
func (n *Node) FindAll(identifier string) ([]*Node, error) {
	if !n.live {
		return nil, n.staleErr()
	}
	var matches []*Node
	level := []*Node{n}
	seen := map[protocol.NodeHandle]bool{n.handle: true}
	for len(level) > 0 {
		var next []*Node
		for _, cur := range level {
			kids, err := cur.childNodes()
			if err != nil {
				return nil, err
			}
			for _, kid := range kids {
				if seen[kid.handle] {
					continue
				}
				seen[kid.handle] = true
				next = append(next, kid)
				ok, err := matchIdentifier(kid, identifier)
				if err != nil {
					return nil, err
				}
				if ok {
					matches = append(matches, kid)
				}
			}
		}
		level = next
	}
	return matches, nil
}

// childNodes lists the nodes one structural level down, in field
// declaration order then sibling order. Traversal populates proxies and
// field caches the same way direct access would, nothing more.
func (n *Node) childNodes() ([]*Node, error) {
	names, err := n.FieldNames()
	if err != nil {
		return nil, err
	}
	var out []*Node
	for _, name := range names {
		f, err := n.Field(name)
		if err != nil {
			return nil, err
		}
		if f.spec.Kind != protocol.KindNode {
			continue
		}
		if !f.spec.Multi {
			child, err := f.GetNode()
			if err != nil {
				return nil, err
			}
			if child != nil {
				out = append(out, child)
			}
			continue
		}
		count, err := f.Len()
		if err != nil {
			return nil, err
		}
		for i := 0; i < count; i++ {
			child, err := f.NodeAt(i)
			if err != nil {
				return nil, err
			}
			out = append(out, child)
		}
	}
	return out, nil
}

func matchIdentifier(n *Node, identifier string) (bool, error) {
	if identifier == "" {
		return false, nil
	}
	if n.def != "" && n.def == identifier {
		return true, nil
	}
	if n.typ == identifier {
		return true, nil
	}
	// A decimal identifier is a handle lookup, never a device name.
	// A mismatch here does not fall through to the name field.
	if h, err := strconv.ParseUint(identifier, 10, 64); err == nil {
		return protocol.NodeHandle(h) == n.handle, nil
	}
	return matchDeviceName(n, identifier)
}

// matchDeviceName compares the identifier against the node's string
// "name" field, when the type declares one.
func matchDeviceName(n *Node, identifier string) (bool, error) {
	f, err := n.Field("name")
	if err != nil {
		if errors.Is(err, ErrFieldNotFound) {
			return false, nil
		}
		return false, err
	}
	if f.spec.Kind != protocol.KindString || f.spec.Multi {
		return false, nil
	}
	v, err := f.Get()
	if err != nil {
		return false, err
	}
	return v.Str == identifier, nil
}
