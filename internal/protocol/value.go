package protocol

import (
	"strconv"
	"strings"
)

// NodeHandle is the engine-side identity of a node. Handle zero is never
// a live node.
type NodeHandle uint64

// FieldHandle is the engine-side identity of a field slot on a node.
type FieldHandle uint64

// Kind tags the payload slot of a Value.
type Kind int32

const (
	KindInvalid Kind = iota
	KindBool
	KindInt32
	KindFloat
	KindVec3
	KindRotation
	KindColor
	KindString
	KindNode
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt32:
		return "int32"
	case KindFloat:
		return "float"
	case KindVec3:
		return "vec3"
	case KindRotation:
		return "rotation"
	case KindColor:
		return "color"
	case KindString:
		return "string"
	case KindNode:
		return "node"
	default:
		return "invalid"
	}
}

// Value is a tagged union over every scalar kind the engine speaks. Only
// the slot selected by Kind is meaningful.
type Value struct {
	Kind  Kind
	Bool  bool
	Int32 int32
	Float float64
	Vec3  [3]float64
	Rot   [4]float64
	Color [3]float64
	Str   string
	Node  NodeHandle
}

func BoolValue(b bool) Value           { return Value{Kind: KindBool, Bool: b} }
func Int32Value(i int32) Value         { return Value{Kind: KindInt32, Int32: i} }
func FloatValue(f float64) Value       { return Value{Kind: KindFloat, Float: f} }
func Vec3Value(v [3]float64) Value     { return Value{Kind: KindVec3, Vec3: v} }
func RotationValue(r [4]float64) Value { return Value{Kind: KindRotation, Rot: r} }
func ColorValue(c [3]float64) Value    { return Value{Kind: KindColor, Color: c} }
func StringValue(s string) Value       { return Value{Kind: KindString, Str: s} }
func NodeValue(h NodeHandle) Value     { return Value{Kind: KindNode, Node: h} }

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindBool:
		return v.Bool == o.Bool
	case KindInt32:
		return v.Int32 == o.Int32
	case KindFloat:
		return v.Float == o.Float
	case KindVec3:
		return v.Vec3 == o.Vec3
	case KindRotation:
		return v.Rot == o.Rot
	case KindColor:
		return v.Color == o.Color
	case KindString:
		return v.Str == o.Str
	case KindNode:
		return v.Node == o.Node
	default:
		return true
	}
}

// String renders the value in its textual scalar form. Node references
// render as a handle placeholder; they have no stable textual form.
func (v Value) String() string {
	switch v.Kind {
	case KindBool:
		if v.Bool {
			return "TRUE"
		}
		return "FALSE"
	case KindInt32:
		return strconv.FormatInt(int64(v.Int32), 10)
	case KindFloat:
		return formatFloat(v.Float)
	case KindVec3:
		return joinFloats(v.Vec3[:])
	case KindRotation:
		return joinFloats(v.Rot[:])
	case KindColor:
		return joinFloats(v.Color[:])
	case KindString:
		return strconv.Quote(v.Str)
	case KindNode:
		return "node#" + strconv.FormatUint(uint64(v.Node), 10)
	default:
		return "<invalid>"
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func joinFloats(fs []float64) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		parts[i] = formatFloat(f)
	}
	return strings.Join(parts, " ")
}
