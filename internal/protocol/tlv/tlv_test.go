package tlv

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeDecodeFieldsRoundTrip(t *testing.T) {
	in := []Field{
		StringField(1, "translation"),
		U64Field(2, 42),
		F64VecField(3, []float64{1, 0, 0}),
	}
	b := EncodeFields(in)
	out, err := DecodeFields(b)
	if err != nil {
		t.Fatalf("decode fields: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("expected 3 fields, got %d", len(out))
	}
	if s, _ := out[0].String(); s != "translation" {
		t.Fatalf("string field mangled: %+v", out[0])
	}
	if h, _ := out[1].U64(); h != 42 {
		t.Fatalf("u64 field mangled: %+v", out[1])
	}
	vs, err := out[2].F64Vec()
	if err != nil || len(vs) != 3 || vs[0] != 1 || vs[1] != 0 || vs[2] != 0 {
		t.Fatalf("f64vec field mangled: %v %v", vs, err)
	}
}

func TestDecodeFieldsMalformedHeaderIsDeterministic(t *testing.T) {
	_, err := DecodeFields([]byte{1, 2, 3})
	if !errors.Is(err, ErrShortFieldHeader) {
		t.Fatalf("expected ErrShortFieldHeader, got %v", err)
	}
}

func TestDecodeFieldsMalformedLengthIsDeterministic(t *testing.T) {
	// id=1, type=string, len=5, value only 2 bytes
	payload := []byte{0, 1, TypeString, 0, 0, 0, 5, 'a', 'b'}
	_, err := DecodeFields(payload)
	if !errors.Is(err, ErrShortFieldValue) {
		t.Fatalf("expected ErrShortFieldValue, got %v", err)
	}
}

func TestTypedAccessorsRejectWrongType(t *testing.T) {
	f := BoolField(7, true)
	if _, err := f.U64(); err == nil {
		t.Fatalf("expected type mismatch error")
	}
	v, err := f.Bool()
	if err != nil || !v {
		t.Fatalf("bool accessor: %v %v", v, err)
	}
}

func TestF64VecRejectsRaggedPayload(t *testing.T) {
	f := Field{ID: 1, Type: TypeF64Vec, Value: bytes.Repeat([]byte{0}, 12)}
	if _, err := f.F64Vec(); !errors.Is(err, ErrBadValueLength) {
		t.Fatalf("expected ErrBadValueLength, got %v", err)
	}
}
