package engine

import (
	"errors"
	"fmt"
	"net"
	"reflect"
	"testing"

	"github.com/danmuck/scenectl/internal/protocol"
	"github.com/danmuck/scenectl/internal/testutil/testlog"
)

// scriptEngine is a minimal in-process engine for wire tests.
type scriptEngine struct {
	root   protocol.NodeHandle
	types  map[protocol.NodeHandle]string
	defs   map[protocol.NodeHandle]string
	names  map[protocol.NodeHandle][]string
	fields map[string]protocol.FieldHandle
	specs  map[protocol.FieldHandle]FieldSpec
	values map[protocol.FieldHandle]protocol.Value
	items  map[protocol.FieldHandle][]protocol.Value
}

func newScriptEngine() *scriptEngine {
	return &scriptEngine{
		root:   1,
		types:  map[protocol.NodeHandle]string{1: "Group"},
		defs:   map[protocol.NodeHandle]string{1: "ROOT"},
		names:  map[protocol.NodeHandle][]string{1: {"children", "locked"}},
		fields: map[string]protocol.FieldHandle{"1/children": 10, "1/locked": 11},
		specs: map[protocol.FieldHandle]FieldSpec{
			10: {Kind: protocol.KindNode, Multi: true},
			11: {Kind: protocol.KindBool},
		},
		values: map[protocol.FieldHandle]protocol.Value{11: protocol.BoolValue(false)},
		items:  map[protocol.FieldHandle][]protocol.Value{10: {}},
	}
}

func (e *scriptEngine) RootNode() (protocol.NodeHandle, error) { return e.root, nil }

func (e *scriptEngine) NodeType(n protocol.NodeHandle) (string, error) {
	t, ok := e.types[n]
	if !ok {
		return "", ErrNoSuchHandle
	}
	return t, nil
}

func (e *scriptEngine) DefName(n protocol.NodeHandle) (string, error) {
	if _, ok := e.types[n]; !ok {
		return "", ErrNoSuchHandle
	}
	return e.defs[n], nil
}

func (e *scriptEngine) FieldNames(n protocol.NodeHandle) ([]string, error) {
	names, ok := e.names[n]
	if !ok {
		return nil, ErrNoSuchHandle
	}
	return names, nil
}

func (e *scriptEngine) Field(n protocol.NodeHandle, name string) (protocol.FieldHandle, error) {
	fh, ok := e.fields[fmt.Sprintf("%d/%s", n, name)]
	if !ok {
		return 0, ErrNoSuchField
	}
	return fh, nil
}

func (e *scriptEngine) FieldSpec(f protocol.FieldHandle) (FieldSpec, error) {
	spec, ok := e.specs[f]
	if !ok {
		return FieldSpec{}, ErrNoSuchHandle
	}
	return spec, nil
}

func (e *scriptEngine) Value(f protocol.FieldHandle) (protocol.Value, error) {
	v, ok := e.values[f]
	if !ok {
		return protocol.Value{}, ErrNoSuchHandle
	}
	return v, nil
}

func (e *scriptEngine) SetValue(f protocol.FieldHandle, v protocol.Value) error {
	if _, ok := e.values[f]; !ok {
		return ErrNoSuchHandle
	}
	e.values[f] = v
	return nil
}

func (e *scriptEngine) Count(f protocol.FieldHandle) (int, error) {
	items, ok := e.items[f]
	if !ok {
		return 0, ErrNoSuchHandle
	}
	return len(items), nil
}

func (e *scriptEngine) Item(f protocol.FieldHandle, i int) (protocol.Value, error) {
	items, ok := e.items[f]
	if !ok {
		return protocol.Value{}, ErrNoSuchHandle
	}
	if i < 0 || i >= len(items) {
		return protocol.Value{}, ErrIndexOutOfRange
	}
	return items[i], nil
}

func (e *scriptEngine) SetItem(f protocol.FieldHandle, i int, v protocol.Value) error {
	items, ok := e.items[f]
	if !ok {
		return ErrNoSuchHandle
	}
	if i < 0 || i >= len(items) {
		return ErrIndexOutOfRange
	}
	items[i] = v
	return nil
}

func (e *scriptEngine) Insert(f protocol.FieldHandle, i int, v protocol.Value) error {
	items, ok := e.items[f]
	if !ok {
		return ErrNoSuchHandle
	}
	if i < 0 || i > len(items) {
		return ErrIndexOutOfRange
	}
	items = append(items[:i], append([]protocol.Value{v}, items[i:]...)...)
	e.items[f] = items
	return nil
}

func (e *scriptEngine) Remove(f protocol.FieldHandle, i int) error {
	items, ok := e.items[f]
	if !ok {
		return ErrNoSuchHandle
	}
	if i < 0 || i >= len(items) {
		return ErrIndexOutOfRange
	}
	e.items[f] = append(items[:i], items[i+1:]...)
	return nil
}

func (e *scriptEngine) ImportSubtree(f protocol.FieldHandle, i int, subtree string) ([]protocol.NodeHandle, error) {
	node, err := protocol.ParseSubtree(subtree)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSubtree, err)
	}
	h := protocol.NodeHandle(100 + len(e.types))
	e.types[h] = node.Type
	e.defs[h] = node.DefName
	if err := e.Insert(f, i, protocol.NodeValue(h)); err != nil {
		return nil, err
	}
	return []protocol.NodeHandle{h}, nil
}

func (e *scriptEngine) ExportSubtree(n protocol.NodeHandle) (string, error) {
	t, ok := e.types[n]
	if !ok {
		return "", ErrNoSuchHandle
	}
	return protocol.FormatSubtree(&protocol.SubtreeNode{Type: t, DefName: e.defs[n]}), nil
}

func startPair(t *testing.T) (*Client, *scriptEngine) {
	t.Helper()
	testlog.Start(t)
	eng := newScriptEngine()
	srv := NewServer(eng, DefaultServerConfig())
	clientConn, serverConn := net.Pipe()
	go srv.handleConn(serverConn)
	client := NewClient(clientConn, ClientConfig{Address: "pipe"})
	t.Cleanup(func() { _ = client.Close() })
	return client, eng
}

func TestClientServerRoundTrip(t *testing.T) {
	client, eng := startPair(t)

	root, err := client.RootNode()
	if err != nil || root != 1 {
		t.Fatalf("RootNode = (%d, %v)", root, err)
	}
	if typ, err := client.NodeType(root); err != nil || typ != "Group" {
		t.Fatalf("NodeType = (%q, %v)", typ, err)
	}
	if def, err := client.DefName(root); err != nil || def != "ROOT" {
		t.Fatalf("DefName = (%q, %v)", def, err)
	}
	names, err := client.FieldNames(root)
	if err != nil || !reflect.DeepEqual(names, []string{"children", "locked"}) {
		t.Fatalf("FieldNames = (%v, %v)", names, err)
	}

	locked, err := client.Field(root, "locked")
	if err != nil {
		t.Fatalf("Field(locked): %v", err)
	}
	spec, err := client.FieldSpec(locked)
	if err != nil || spec.Kind != protocol.KindBool || spec.Multi {
		t.Fatalf("FieldSpec(locked) = (%+v, %v)", spec, err)
	}
	if err := client.SetValue(locked, protocol.BoolValue(true)); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	v, err := client.Value(locked)
	if err != nil || !v.Equal(protocol.BoolValue(true)) {
		t.Fatalf("Value = (%+v, %v)", v, err)
	}

	children, err := client.Field(root, "children")
	if err != nil {
		t.Fatalf("Field(children): %v", err)
	}
	if err := client.Insert(children, 0, protocol.NodeValue(42)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if n, err := client.Count(children); err != nil || n != 1 {
		t.Fatalf("Count = (%d, %v)", n, err)
	}
	if item, err := client.Item(children, 0); err != nil || !item.Equal(protocol.NodeValue(42)) {
		t.Fatalf("Item = (%+v, %v)", item, err)
	}
	if err := client.SetItem(children, 0, protocol.NodeValue(43)); err != nil {
		t.Fatalf("SetItem: %v", err)
	}
	if err := client.Remove(children, 0); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	handles, err := client.ImportSubtree(children, 0, "DEF BOX Solid {\n}\n")
	if err != nil || len(handles) != 1 {
		t.Fatalf("ImportSubtree = (%v, %v)", handles, err)
	}
	if typ := eng.types[handles[0]]; typ != "Solid" {
		t.Fatalf("imported type = %q", typ)
	}
	exported, err := client.ExportSubtree(handles[0])
	if err != nil {
		t.Fatalf("ExportSubtree: %v", err)
	}
	if _, err := protocol.ParseSubtree(exported); err != nil {
		t.Fatalf("export not parseable: %v", err)
	}
}

func TestClientServerErrorMapping(t *testing.T) {
	client, _ := startPair(t)

	if _, err := client.NodeType(999); !errors.Is(err, ErrNoSuchHandle) {
		t.Fatalf("NodeType(999) = %v, want ErrNoSuchHandle", err)
	}
	root, _ := client.RootNode()
	if _, err := client.Field(root, "missing"); !errors.Is(err, ErrNoSuchField) {
		t.Fatalf("Field(missing) = %v, want ErrNoSuchField", err)
	}
	children, _ := client.Field(root, "children")
	if _, err := client.Item(children, 5); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("Item(5) = %v, want ErrIndexOutOfRange", err)
	}
	if _, err := client.ImportSubtree(children, 0, "not a subtree"); !errors.Is(err, ErrBadSubtree) {
		t.Fatalf("ImportSubtree(garbage) = %v, want ErrBadSubtree", err)
	}
}
