package scene

import (
	"testing"

	"github.com/danmuck/scenectl/internal/engine"
	"github.com/danmuck/scenectl/internal/enginemem"
	"github.com/danmuck/scenectl/internal/protocol"
	"github.com/danmuck/scenectl/internal/testutil/testlog"
)

// countingEngine wraps a real engine and tallies every remote call.
type countingEngine struct {
	inner engine.Engine
	calls map[string]int
	total int
}

func newCountingEngine() *countingEngine {
	return &countingEngine{inner: enginemem.NewWorld(), calls: make(map[string]int)}
}

func (c *countingEngine) bump(op string) {
	c.calls[op]++
	c.total++
}

func (c *countingEngine) RootNode() (protocol.NodeHandle, error) {
	c.bump("root_node")
	return c.inner.RootNode()
}

func (c *countingEngine) NodeType(n protocol.NodeHandle) (string, error) {
	c.bump("node_type")
	return c.inner.NodeType(n)
}

func (c *countingEngine) DefName(n protocol.NodeHandle) (string, error) {
	c.bump("def_name")
	return c.inner.DefName(n)
}

func (c *countingEngine) FieldNames(n protocol.NodeHandle) ([]string, error) {
	c.bump("field_names")
	return c.inner.FieldNames(n)
}

func (c *countingEngine) Field(n protocol.NodeHandle, name string) (protocol.FieldHandle, error) {
	c.bump("field")
	return c.inner.Field(n, name)
}

func (c *countingEngine) FieldSpec(f protocol.FieldHandle) (engine.FieldSpec, error) {
	c.bump("field_spec")
	return c.inner.FieldSpec(f)
}

func (c *countingEngine) Value(f protocol.FieldHandle) (protocol.Value, error) {
	c.bump("value")
	return c.inner.Value(f)
}

func (c *countingEngine) SetValue(f protocol.FieldHandle, v protocol.Value) error {
	c.bump("set_value")
	return c.inner.SetValue(f, v)
}

func (c *countingEngine) Count(f protocol.FieldHandle) (int, error) {
	c.bump("count")
	return c.inner.Count(f)
}

func (c *countingEngine) Item(f protocol.FieldHandle, i int) (protocol.Value, error) {
	c.bump("item")
	return c.inner.Item(f, i)
}

func (c *countingEngine) SetItem(f protocol.FieldHandle, i int, v protocol.Value) error {
	c.bump("set_item")
	return c.inner.SetItem(f, i, v)
}

func (c *countingEngine) Insert(f protocol.FieldHandle, i int, v protocol.Value) error {
	c.bump("insert")
	return c.inner.Insert(f, i, v)
}

func (c *countingEngine) Remove(f protocol.FieldHandle, i int) error {
	c.bump("remove")
	return c.inner.Remove(f, i)
}

func (c *countingEngine) ImportSubtree(f protocol.FieldHandle, i int, subtree string) ([]protocol.NodeHandle, error) {
	c.bump("import_subtree")
	return c.inner.ImportSubtree(f, i, subtree)
}

func (c *countingEngine) ExportSubtree(n protocol.NodeHandle) (string, error) {
	c.bump("export_subtree")
	return c.inner.ExportSubtree(n)
}

// newTestWorld builds a fresh cache over a counting in-memory engine.
func newTestWorld(t *testing.T) (*World, *countingEngine) {
	t.Helper()
	testlog.Start(t)
	eng := newCountingEngine()
	w, err := NewWorld(eng)
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	return w, eng
}

// mustImport appends a subtree to a node sequence and returns the root proxy.
func mustImport(t *testing.T, f *Field, src any) *Node {
	t.Helper()
	n, err := f.Import(mfEnd, src)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	return n
}

func mustChildren(t *testing.T, n *Node) *Field {
	t.Helper()
	f, err := n.Children()
	if err != nil {
		t.Fatalf("Children: %v", err)
	}
	return f
}
