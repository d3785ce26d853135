package scene

import (
	"errors"
	"fmt"

	"github.com/danmuck/scenectl/internal/engine"
	"github.com/danmuck/scenectl/internal/observability"
	"github.com/danmuck/scenectl/internal/protocol"
)

// Field is the proxy for one field slot of its owning node. Single-value
// fields keep a write-through cache: a successful set is authoritative,
// so the next get needs no remote read. Sequence fields cache the whole
// index-aligned remote container and splice it in step with every
// mutation; whenever a multi-call edit fails partway, the sequence cache
// is dropped rather than left unproven.
type Field struct {
	node   *Node
	name   string
	handle protocol.FieldHandle
	spec   engine.FieldSpec

	cached bool
	value  protocol.Value

	seqValid bool
	items    []protocol.Value
}

func (f *Field) Name() string { return f.name }

func (f *Field) Kind() protocol.Kind { return f.spec.Kind }

// IsSequence reports MF (sequence) cardinality.
func (f *Field) IsSequence() bool { return f.spec.Multi }

func (f *Field) eng() engine.Engine { return f.node.world.eng }

func (f *Field) check(wantSeq bool) error {
	if !f.node.live {
		return f.node.staleErr()
	}
	if f.spec.Multi != wantSeq {
		if wantSeq {
			return fmt.Errorf("%w: %s holds a single value", engine.ErrKindMismatch, f.name)
		}
		return fmt.Errorf("%w: %s holds a sequence", engine.ErrKindMismatch, f.name)
	}
	return nil
}

// Refresh drops cached state so the next access re-reads the engine.
func (f *Field) Refresh() {
	f.cached = false
	f.seqValid = false
	f.items = nil
}

// Get returns the single value, reading the engine at most once until
// the next mutation or refresh.
func (f *Field) Get() (protocol.Value, error) {
	if err := f.check(false); err != nil {
		return protocol.Value{}, err
	}
	if f.cached {
		observability.RecordCacheLookup("field", true)
		return f.value, nil
	}
	observability.RecordCacheLookup("field", false)
	v, err := f.eng().Value(f.handle)
	if err != nil {
		return protocol.Value{}, err
	}
	f.value = v
	f.cached = true
	return v, nil
}

// GetNode resolves a node-valued single field to its proxy, nil when
// the slot is empty.
func (f *Field) GetNode() (*Node, error) {
	v, err := f.Get()
	if err != nil {
		return nil, err
	}
	if v.Kind != protocol.KindNode {
		return nil, fmt.Errorf("%w: %s holds %s", engine.ErrKindMismatch, f.name, v.Kind)
	}
	if v.Node == 0 {
		return nil, nil
	}
	n, err := f.node.world.registry.lookupOrCreate(v.Node)
	if err != nil {
		return nil, err
	}
	n.adopt(f.node)
	return n, nil
}

// Set coerces the input to the field's kind, writes it, and installs the
// canonical value in the cache. The write is authoritative; no re-read.
func (f *Field) Set(input any) error {
	if err := f.check(false); err != nil {
		return err
	}
	v, err := Coerce(f.spec.Kind, input)
	if err != nil {
		return err
	}
	var replaced protocol.NodeHandle
	if f.spec.Kind == protocol.KindNode {
		old, err := f.Get()
		if err != nil {
			return err
		}
		if old.Node != 0 && old.Node != v.Node {
			replaced = old.Node
		}
	}
	if err := f.eng().SetValue(f.handle, v); err != nil {
		return err
	}
	f.value = v
	f.cached = true
	if replaced != 0 {
		f.node.world.registry.invalidate(replaced, "replace")
	}
	return nil
}

// Len returns the sequence length, from cache when the sequence is held.
func (f *Field) Len() (int, error) {
	if err := f.check(true); err != nil {
		return 0, err
	}
	if f.seqValid {
		return len(f.items), nil
	}
	return f.eng().Count(f.handle)
}

// ensureSeq pulls the whole remote container into the cache once.
func (f *Field) ensureSeq() error {
	if f.seqValid {
		observability.RecordCacheLookup("field", true)
		return nil
	}
	observability.RecordCacheLookup("field", false)
	n, err := f.eng().Count(f.handle)
	if err != nil {
		return err
	}
	items := make([]protocol.Value, n)
	for i := 0; i < n; i++ {
		v, err := f.eng().Item(f.handle, i)
		if err != nil {
			return err
		}
		items[i] = v
	}
	f.items = items
	f.seqValid = true
	return nil
}

// At returns the element at index; negative indices count from the end.
func (f *Field) At(index int) (protocol.Value, error) {
	if err := f.check(true); err != nil {
		return protocol.Value{}, err
	}
	if err := f.ensureSeq(); err != nil {
		return protocol.Value{}, err
	}
	idx, err := normIndex(index, len(f.items), f.name)
	if err != nil {
		return protocol.Value{}, err
	}
	return f.items[idx], nil
}

// NodeAt resolves a node-valued element to its proxy.
func (f *Field) NodeAt(index int) (*Node, error) {
	v, err := f.At(index)
	if err != nil {
		return nil, err
	}
	if v.Kind != protocol.KindNode {
		return nil, fmt.Errorf("%w: %s holds %s", engine.ErrKindMismatch, f.name, v.Kind)
	}
	n, err := f.node.world.registry.lookupOrCreate(v.Node)
	if err != nil {
		return nil, err
	}
	n.adopt(f.node)
	return n, nil
}

// Values returns a copy of the cached sequence.
func (f *Field) Values() ([]protocol.Value, error) {
	if err := f.check(true); err != nil {
		return nil, err
	}
	if err := f.ensureSeq(); err != nil {
		return nil, err
	}
	out := make([]protocol.Value, len(f.items))
	copy(out, f.items)
	return out, nil
}

// SetItem replaces the element at index. Node-valued elements are
// replaced by value: the source is imported beside the old element,
// which is then removed and its proxies invalidated.
func (f *Field) SetItem(index int, input any) error {
	if err := f.check(true); err != nil {
		return err
	}
	n, err := f.Len()
	if err != nil {
		return err
	}
	idx, err := normIndex(index, n, f.name)
	if err != nil {
		return err
	}
	if f.spec.Kind == protocol.KindNode {
		_, err := f.importAt(idx, input, true)
		return err
	}
	v, err := Coerce(f.spec.Kind, input)
	if err != nil {
		return err
	}
	if err := f.eng().SetItem(f.handle, idx, v); err != nil {
		return err
	}
	if f.seqValid {
		f.items[idx] = v
	}
	return nil
}

// Insert places a new element at index, clamped to [0, len]. Node
// sources (Plan, Node, subtree text, filename) go through import.
func (f *Field) Insert(index int, input any) error {
	if err := f.check(true); err != nil {
		return err
	}
	n, err := f.Len()
	if err != nil {
		return err
	}
	idx := normInsert(index, n)
	if f.spec.Kind == protocol.KindNode {
		_, err := f.importAt(idx, input, false)
		return err
	}
	v, err := Coerce(f.spec.Kind, input)
	if err != nil {
		return err
	}
	if err := f.eng().Insert(f.handle, idx, v); err != nil {
		return err
	}
	if f.seqValid {
		f.items = append(f.items[:idx], append([]protocol.Value{v}, f.items[idx:]...)...)
	}
	return nil
}

// Append adds an element at the end.
func (f *Field) Append(input any) error {
	return f.Insert(mfEnd, input)
}

// Extend appends every input in order.
func (f *Field) Extend(inputs []any) error {
	for _, in := range inputs {
		if err := f.Append(in); err != nil {
			return err
		}
	}
	return nil
}

// Import gives a Plan, Node copy, subtree text, or subtree file remote
// existence at index and returns the proxy for the created root.
func (f *Field) Import(index int, source any) (*Node, error) {
	if err := f.check(true); err != nil {
		return nil, err
	}
	if f.spec.Kind != protocol.KindNode {
		return nil, fmt.Errorf("%w: %s is not node-valued", engine.ErrKindMismatch, f.name)
	}
	n, err := f.Len()
	if err != nil {
		return nil, err
	}
	return f.importAt(normInsert(index, n), source, false)
}

// importAt runs the import call sequence. With replace set, the old
// element at idx is removed after the import and its proxies
// invalidated. The sequence cache is updated on success and dropped
// whenever a partial edit leaves the index mapping unproven.
func (f *Field) importAt(idx int, source any, replace bool) (*Node, error) {
	text, err := subtreeSource(f.node.world, source)
	if err != nil {
		return nil, err
	}
	var replaced protocol.NodeHandle
	if replace {
		old, err := f.itemAt(idx)
		if err != nil {
			return nil, err
		}
		replaced = old.Node
	}
	handles, err := f.eng().ImportSubtree(f.handle, idx, text)
	if err != nil {
		if errors.Is(err, engine.ErrBadSubtree) {
			return nil, fmt.Errorf("%w: %v", ErrImportFailure, err)
		}
		return nil, err
	}
	if len(handles) == 0 {
		return nil, fmt.Errorf("%w: engine returned no handles", ErrImportFailure)
	}
	if replace {
		if err := f.eng().Remove(f.handle, idx+1); err != nil {
			// import landed, removal did not: cache can't be trusted
			f.seqValid = false
			f.items = nil
			return nil, err
		}
		f.node.world.registry.invalidate(replaced, "set_item")
	}
	root, err := f.registerImported(handles)
	if err != nil {
		return nil, err
	}
	if f.seqValid {
		rootValue := protocol.NodeValue(root.handle)
		if replace {
			f.items[idx] = rootValue
		} else {
			f.items = append(f.items[:idx], append([]protocol.Value{rootValue}, f.items[idx:]...)...)
		}
	}
	return root, nil
}

// registerImported creates the proxy for the imported subtree root,
// handles[0] in document order. Descendant proxies are created lazily
// by traversal, which is what links their parent chains; registering
// them here would leave orphans that invalidation cannot reach.
func (f *Field) registerImported(handles []protocol.NodeHandle) (*Node, error) {
	root, err := f.node.world.registry.lookupOrCreate(handles[0])
	if err != nil {
		return nil, err
	}
	root.adopt(f.node)
	return root, nil
}

// itemAt reads one element without populating the whole cache.
func (f *Field) itemAt(idx int) (protocol.Value, error) {
	if f.seqValid {
		return f.items[idx], nil
	}
	return f.eng().Item(f.handle, idx)
}

// Remove deletes the element at index. A removed node-valued element
// invalidates its proxy and every registered descendant.
func (f *Field) Remove(index int) error {
	if err := f.check(true); err != nil {
		return err
	}
	n, err := f.Len()
	if err != nil {
		return err
	}
	idx, err := normIndex(index, n, f.name)
	if err != nil {
		return err
	}
	var removed protocol.NodeHandle
	if f.spec.Kind == protocol.KindNode {
		old, err := f.itemAt(idx)
		if err != nil {
			return err
		}
		removed = old.Node
	}
	if err := f.eng().Remove(f.handle, idx); err != nil {
		return err
	}
	if removed != 0 {
		f.node.world.registry.invalidate(removed, "remove")
	}
	if f.seqValid {
		f.items = append(f.items[:idx], f.items[idx+1:]...)
	}
	return nil
}

// Pop removes and returns the element at index (negative counts from
// the end). Popping a node element leaves only its raw handle value;
// the proxy is already invalid.
func (f *Field) Pop(index int) (protocol.Value, error) {
	v, err := f.At(index)
	if err != nil {
		return protocol.Value{}, err
	}
	if err := f.Remove(index); err != nil {
		return protocol.Value{}, err
	}
	return v, nil
}

// Clear removes every element, right to left.
func (f *Field) Clear() error {
	n, err := f.Len()
	if err != nil {
		return err
	}
	for i := n - 1; i >= 0; i-- {
		if err := f.Remove(i); err != nil {
			return err
		}
	}
	return nil
}

// SetRange replaces the clamped slice [from, to) with the inputs:
// overlapping positions are overwritten, leftover old elements removed
// right to left, leftover inputs inserted in order.
func (f *Field) SetRange(from, to int, inputs []any) error {
	if err := f.check(true); err != nil {
		return err
	}
	n, err := f.Len()
	if err != nil {
		return err
	}
	lo, hi := normRange(from, to, n)
	span := hi - lo
	overlap := span
	if len(inputs) < overlap {
		overlap = len(inputs)
	}
	for k := 0; k < overlap; k++ {
		if err := f.SetItem(lo+k, inputs[k]); err != nil {
			return err
		}
	}
	for i := hi - 1; i >= lo+overlap; i-- {
		if err := f.Remove(i); err != nil {
			return err
		}
	}
	for k := overlap; k < len(inputs); k++ {
		if err := f.Insert(lo+k, inputs[k]); err != nil {
			return err
		}
	}
	return nil
}

// SetAll replaces the whole sequence.
func (f *Field) SetAll(inputs []any) error {
	if err := f.check(true); err != nil {
		return err
	}
	n, err := f.Len()
	if err != nil {
		return err
	}
	return f.SetRange(0, n, inputs)
}

// mfEnd sorts above any real sequence length so Append clamps to len.
const mfEnd = int(^uint(0) >> 1)

func normIndex(index, n int, name string) (int, error) {
	idx := index
	if idx < 0 {
		idx += n
	}
	if idx < 0 || idx >= n {
		return 0, fmt.Errorf("%w: %s[%d] with %d items", engine.ErrIndexOutOfRange, name, index, n)
	}
	return idx, nil
}

func normRange(from, to, n int) (int, int) {
	lo := normInsert(from, n)
	hi := normInsert(to, n)
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func normInsert(index, n int) int {
	idx := index
	if idx < 0 {
		idx += n
	}
	if idx < 0 {
		return 0
	}
	if idx > n {
		return n
	}
	return idx
}
