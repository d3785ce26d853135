// Package protocol defines the engine wire contract: the tagged value
// model, per-operation message shapes, and the textual subtree format.
// Framing and field encoding live in the frame and tlv subpackages.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/danmuck/scenectl/internal/protocol/tlv"
)

// Op identifies one remote engine operation.
type Op uint16

const (
	OpRootNode Op = iota + 1
	OpNodeType
	OpDefName
	OpFieldNames
	OpField
	OpFieldSpec
	OpValue
	OpSetValue
	OpCount
	OpItem
	OpSetItem
	OpInsert
	OpRemove
	OpImportSubtree
	OpExportSubtree
)

func (op Op) String() string {
	switch op {
	case OpRootNode:
		return "root_node"
	case OpNodeType:
		return "node_type"
	case OpDefName:
		return "def_name"
	case OpFieldNames:
		return "field_names"
	case OpField:
		return "field"
	case OpFieldSpec:
		return "field_spec"
	case OpValue:
		return "value"
	case OpSetValue:
		return "set_value"
	case OpCount:
		return "count"
	case OpItem:
		return "item"
	case OpSetItem:
		return "set_item"
	case OpInsert:
		return "insert"
	case OpRemove:
		return "remove"
	case OpImportSubtree:
		return "import_subtree"
	case OpExportSubtree:
		return "export_subtree"
	default:
		return "unknown"
	}
}

// TLV field IDs shared by requests and responses.
const (
	FieldNodeHandle  uint16 = 1
	FieldFieldHandle uint16 = 2
	FieldName        uint16 = 3 // repeated in field_names responses
	FieldIndex       uint16 = 4
	FieldValueKind   uint16 = 5
	FieldValueData   uint16 = 6
	FieldCount       uint16 = 7
	FieldSubtree     uint16 = 8
	FieldHandles     uint16 = 9 // packed big-endian uint64s
	FieldMulti       uint16 = 10
	FieldErrorCode   uint16 = 11
	FieldErrorText   uint16 = 12
)

// ErrorCode classifies a remote failure on the wire.
type ErrorCode uint32

const (
	CodeInternal ErrorCode = iota + 1
	CodeNoSuchHandle
	CodeNoSuchField
	CodeKindMismatch
	CodeIndexOutOfRange
	CodeBadSubtree
)

var (
	ErrMissingField = errors.New("protocol: missing required field")
	ErrBadValue     = errors.New("protocol: malformed value")
)

// Require returns the field with the given id or a wrapped ErrMissingField.
func Require(fields []tlv.Field, id uint16) (tlv.Field, error) {
	f, ok := tlv.GetField(fields, id)
	if !ok {
		return tlv.Field{}, fmt.Errorf("%w: %d", ErrMissingField, id)
	}
	return f, nil
}

// AppendValue appends the TLV encoding of a tagged value.
func AppendValue(fields []tlv.Field, v Value) ([]tlv.Field, error) {
	fields = append(fields, tlv.I32Field(FieldValueKind, int32(v.Kind)))
	switch v.Kind {
	case KindBool:
		fields = append(fields, tlv.BoolField(FieldValueData, v.Bool))
	case KindInt32:
		fields = append(fields, tlv.I32Field(FieldValueData, v.Int32))
	case KindFloat:
		fields = append(fields, tlv.F64Field(FieldValueData, v.Float))
	case KindVec3:
		fields = append(fields, tlv.F64VecField(FieldValueData, v.Vec3[:]))
	case KindRotation:
		fields = append(fields, tlv.F64VecField(FieldValueData, v.Rot[:]))
	case KindColor:
		fields = append(fields, tlv.F64VecField(FieldValueData, v.Color[:]))
	case KindString:
		fields = append(fields, tlv.StringField(FieldValueData, v.Str))
	case KindNode:
		fields = append(fields, tlv.U64Field(FieldValueData, uint64(v.Node)))
	default:
		return nil, fmt.Errorf("%w: kind %d", ErrBadValue, v.Kind)
	}
	return fields, nil
}

// DecodeValue extracts a tagged value from decoded TLV fields.
func DecodeValue(fields []tlv.Field) (Value, error) {
	kindField, err := Require(fields, FieldValueKind)
	if err != nil {
		return Value{}, err
	}
	rawKind, err := kindField.I32()
	if err != nil {
		return Value{}, err
	}
	data, err := Require(fields, FieldValueData)
	if err != nil {
		return Value{}, err
	}

	kind := Kind(rawKind)
	switch kind {
	case KindBool:
		b, err := data.Bool()
		if err != nil {
			return Value{}, err
		}
		return BoolValue(b), nil
	case KindInt32:
		i, err := data.I32()
		if err != nil {
			return Value{}, err
		}
		return Int32Value(i), nil
	case KindFloat:
		f, err := data.F64()
		if err != nil {
			return Value{}, err
		}
		return FloatValue(f), nil
	case KindVec3, KindColor:
		vs, err := data.F64Vec()
		if err != nil {
			return Value{}, err
		}
		if len(vs) != 3 {
			return Value{}, fmt.Errorf("%w: want 3 components, got %d", ErrBadValue, len(vs))
		}
		if kind == KindColor {
			return ColorValue([3]float64{vs[0], vs[1], vs[2]}), nil
		}
		return Vec3Value([3]float64{vs[0], vs[1], vs[2]}), nil
	case KindRotation:
		vs, err := data.F64Vec()
		if err != nil {
			return Value{}, err
		}
		if len(vs) != 4 {
			return Value{}, fmt.Errorf("%w: want 4 components, got %d", ErrBadValue, len(vs))
		}
		return RotationValue([4]float64{vs[0], vs[1], vs[2], vs[3]}), nil
	case KindString:
		s, err := data.String()
		if err != nil {
			return Value{}, err
		}
		return StringValue(s), nil
	case KindNode:
		h, err := data.U64()
		if err != nil {
			return Value{}, err
		}
		return NodeValue(NodeHandle(h)), nil
	default:
		return Value{}, fmt.Errorf("%w: kind %d", ErrBadValue, rawKind)
	}
}

// EncodeHandles packs node handles for a FieldHandles response field.
func EncodeHandles(handles []NodeHandle) tlv.Field {
	b := make([]byte, 8*len(handles))
	for i, h := range handles {
		binary.BigEndian.PutUint64(b[8*i:], uint64(h))
	}
	return tlv.BytesField(FieldHandles, b)
}

// DecodeHandles unpacks a FieldHandles field.
func DecodeHandles(f tlv.Field) ([]NodeHandle, error) {
	b, err := f.Bytes()
	if err != nil {
		return nil, err
	}
	if len(b)%8 != 0 {
		return nil, fmt.Errorf("%w: ragged handle list", ErrBadValue)
	}
	out := make([]NodeHandle, len(b)/8)
	for i := range out {
		out[i] = NodeHandle(binary.BigEndian.Uint64(b[8*i:]))
	}
	return out, nil
}
