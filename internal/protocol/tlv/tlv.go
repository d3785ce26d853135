package tlv

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

const HeaderLen = 7

var (
	ErrShortFieldHeader = errors.New("tlv: short field header")
	ErrShortFieldValue  = errors.New("tlv: short field value")
	ErrBadValueLength   = errors.New("tlv: bad value length")
)

// Wire type IDs. F64Vec carries a packed sequence of big-endian float64s
// and is used for vectors, rotations, and colors.
const (
	TypeBool   uint8 = 1
	TypeI32    uint8 = 2
	TypeU64    uint8 = 3
	TypeF64    uint8 = 4
	TypeF64Vec uint8 = 5
	TypeString uint8 = 6
	TypeBytes  uint8 = 7
)

// Field is one decoded TLV field.
type Field struct {
	ID    uint16
	Type  uint8
	Value []byte
}

func EncodeField(f Field) []byte {
	buf := make([]byte, HeaderLen+len(f.Value))
	binary.BigEndian.PutUint16(buf[0:2], f.ID)
	buf[2] = f.Type
	binary.BigEndian.PutUint32(buf[3:7], uint32(len(f.Value)))
	copy(buf[7:], f.Value)
	return buf
}

func DecodeFields(payload []byte) ([]Field, error) {
	fields := make([]Field, 0)
	i := 0
	for i < len(payload) {
		if len(payload)-i < HeaderLen {
			return nil, ErrShortFieldHeader
		}
		id := binary.BigEndian.Uint16(payload[i : i+2])
		typeID := payload[i+2]
		l := binary.BigEndian.Uint32(payload[i+3 : i+7])
		i += HeaderLen
		if uint32(len(payload)-i) < l {
			return nil, ErrShortFieldValue
		}
		val := make([]byte, l)
		copy(val, payload[i:i+int(l)])
		i += int(l)
		fields = append(fields, Field{ID: id, Type: typeID, Value: val})
	}
	return fields, nil
}

func EncodeFields(fields []Field) []byte {
	out := make([]byte, 0)
	for _, f := range fields {
		out = append(out, EncodeField(f)...)
	}
	return out
}

func GetField(fields []Field, id uint16) (Field, bool) {
	for _, f := range fields {
		if f.ID == id {
			return f, true
		}
	}
	return Field{}, false
}

func MustType(f Field, expected uint8) error {
	if f.Type != expected {
		return fmt.Errorf("tlv: field %d type mismatch: got %d want %d", f.ID, f.Type, expected)
	}
	return nil
}

// --- typed constructors ---

func BoolField(id uint16, v bool) Field {
	b := []byte{0}
	if v {
		b[0] = 1
	}
	return Field{ID: id, Type: TypeBool, Value: b}
}

func I32Field(id uint16, v int32) Field {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	return Field{ID: id, Type: TypeI32, Value: b}
}

func U64Field(id uint16, v uint64) Field {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return Field{ID: id, Type: TypeU64, Value: b}
}

func F64Field(id uint16, v float64) Field {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(v))
	return Field{ID: id, Type: TypeF64, Value: b}
}

func F64VecField(id uint16, vs []float64) Field {
	b := make([]byte, 8*len(vs))
	for i, v := range vs {
		binary.BigEndian.PutUint64(b[8*i:], math.Float64bits(v))
	}
	return Field{ID: id, Type: TypeF64Vec, Value: b}
}

func StringField(id uint16, v string) Field {
	return Field{ID: id, Type: TypeString, Value: []byte(v)}
}

func BytesField(id uint16, v []byte) Field {
	return Field{ID: id, Type: TypeBytes, Value: v}
}

// --- typed accessors ---

func (f Field) Bool() (bool, error) {
	if err := MustType(f, TypeBool); err != nil {
		return false, err
	}
	if len(f.Value) != 1 {
		return false, ErrBadValueLength
	}
	return f.Value[0] != 0, nil
}

func (f Field) I32() (int32, error) {
	if err := MustType(f, TypeI32); err != nil {
		return 0, err
	}
	if len(f.Value) != 4 {
		return 0, ErrBadValueLength
	}
	return int32(binary.BigEndian.Uint32(f.Value)), nil
}

func (f Field) U64() (uint64, error) {
	if err := MustType(f, TypeU64); err != nil {
		return 0, err
	}
	if len(f.Value) != 8 {
		return 0, ErrBadValueLength
	}
	return binary.BigEndian.Uint64(f.Value), nil
}

func (f Field) F64() (float64, error) {
	if err := MustType(f, TypeF64); err != nil {
		return 0, err
	}
	if len(f.Value) != 8 {
		return 0, ErrBadValueLength
	}
	return math.Float64frombits(binary.BigEndian.Uint64(f.Value)), nil
}

func (f Field) F64Vec() ([]float64, error) {
	if err := MustType(f, TypeF64Vec); err != nil {
		return nil, err
	}
	if len(f.Value)%8 != 0 {
		return nil, ErrBadValueLength
	}
	out := make([]float64, len(f.Value)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.BigEndian.Uint64(f.Value[8*i:]))
	}
	return out, nil
}

func (f Field) String() (string, error) {
	if err := MustType(f, TypeString); err != nil {
		return "", err
	}
	return string(f.Value), nil
}

func (f Field) Bytes() ([]byte, error) {
	if err := MustType(f, TypeBytes); err != nil {
		return nil, err
	}
	return f.Value, nil
}
