// Package engine defines the remote scene-graph surface the proxy layer
// talks to, plus a TCP client and server speaking the frame/tlv protocol.
//
// Calls are blocking round trips. Handles are opaque engine-side
// identifiers; the engine never calls back into the client.
package engine

import (
	"errors"
	"fmt"

	"github.com/danmuck/scenectl/internal/protocol"
)

var (
	ErrNoSuchHandle    = errors.New("engine: no such handle")
	ErrNoSuchField     = errors.New("engine: no such field")
	ErrKindMismatch    = errors.New("engine: value kind mismatch")
	ErrIndexOutOfRange = errors.New("engine: index out of range")
	ErrBadSubtree      = errors.New("engine: bad subtree")
	ErrRemote          = errors.New("engine: remote failure")
)

// FieldSpec describes one field slot: its element kind and whether it
// holds a sequence or a single value.
type FieldSpec struct {
	Kind  protocol.Kind
	Multi bool
}

// Engine is the authoritative scene graph. Single-field (SF) operations
// are Value/SetValue; sequence (MF) operations take an index that the
// caller has already normalized to [0, Count].
type Engine interface {
	// RootNode returns the handle of the scene root.
	RootNode() (protocol.NodeHandle, error)

	// NodeType returns the node's type name.
	NodeType(node protocol.NodeHandle) (string, error)

	// DefName returns the node's DEF name, empty when unnamed.
	DefName(node protocol.NodeHandle) (string, error)

	// FieldNames lists the node's declared field names.
	FieldNames(node protocol.NodeHandle) ([]string, error)

	// Field resolves a named field slot on a node.
	Field(node protocol.NodeHandle, name string) (protocol.FieldHandle, error)

	// FieldSpec returns the slot's kind and arity.
	FieldSpec(field protocol.FieldHandle) (FieldSpec, error)

	Value(field protocol.FieldHandle) (protocol.Value, error)
	SetValue(field protocol.FieldHandle, v protocol.Value) error

	Count(field protocol.FieldHandle) (int, error)
	Item(field protocol.FieldHandle, index int) (protocol.Value, error)
	SetItem(field protocol.FieldHandle, index int, v protocol.Value) error
	Insert(field protocol.FieldHandle, index int, v protocol.Value) error
	Remove(field protocol.FieldHandle, index int) error

	// ImportSubtree parses a textual subtree and inserts its root node
	// at index in a node-valued sequence field. It returns every created
	// node handle in document order, the subtree root first.
	ImportSubtree(field protocol.FieldHandle, index int, subtree string) ([]protocol.NodeHandle, error)

	// ExportSubtree renders the node and its descendants in the textual
	// subtree format.
	ExportSubtree(node protocol.NodeHandle) (string, error)
}

// CodeFor maps an engine error to its wire error code.
func CodeFor(err error) protocol.ErrorCode {
	switch {
	case errors.Is(err, ErrNoSuchHandle):
		return protocol.CodeNoSuchHandle
	case errors.Is(err, ErrNoSuchField):
		return protocol.CodeNoSuchField
	case errors.Is(err, ErrKindMismatch):
		return protocol.CodeKindMismatch
	case errors.Is(err, ErrIndexOutOfRange):
		return protocol.CodeIndexOutOfRange
	case errors.Is(err, ErrBadSubtree):
		return protocol.CodeBadSubtree
	default:
		return protocol.CodeInternal
	}
}

// ErrorFor maps a wire error code back to the engine sentinel.
func ErrorFor(code protocol.ErrorCode, text string) error {
	var base error
	switch code {
	case protocol.CodeNoSuchHandle:
		base = ErrNoSuchHandle
	case protocol.CodeNoSuchField:
		base = ErrNoSuchField
	case protocol.CodeKindMismatch:
		base = ErrKindMismatch
	case protocol.CodeIndexOutOfRange:
		base = ErrIndexOutOfRange
	case protocol.CodeBadSubtree:
		base = ErrBadSubtree
	default:
		base = ErrRemote
	}
	if text == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, text)
}
