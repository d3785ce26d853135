package protocol

import (
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/scenectl/internal/protocol/tlv"
)

func TestValueWireRoundTrip(t *testing.T) {
	values := []Value{
		BoolValue(true),
		Int32Value(-42),
		FloatValue(9.81),
		Vec3Value([3]float64{1, 0, -0.5}),
		RotationValue([4]float64{0, 1, 0, 3.14159}),
		ColorValue([3]float64{0.2, 0.4, 0.6}),
		StringValue("solid body"),
		NodeValue(NodeHandle(77)),
	}
	for _, want := range values {
		fields, err := AppendValue(nil, want)
		if err != nil {
			t.Fatalf("AppendValue(%s): %v", want.Kind, err)
		}
		decoded, err := tlv.DecodeFields(tlv.EncodeFields(fields))
		if err != nil {
			t.Fatalf("tlv round trip (%s): %v", want.Kind, err)
		}
		got, err := DecodeValue(decoded)
		if err != nil {
			t.Fatalf("DecodeValue(%s): %v", want.Kind, err)
		}
		if !got.Equal(want) {
			t.Fatalf("round trip: got %+v, want %+v", got, want)
		}
	}
}

func TestDecodeValueMissingFields(t *testing.T) {
	if _, err := DecodeValue(nil); !errors.Is(err, ErrMissingField) {
		t.Fatalf("DecodeValue(nil) = %v, want ErrMissingField", err)
	}
	onlyKind := []tlv.Field{tlv.I32Field(FieldValueKind, int32(KindBool))}
	if _, err := DecodeValue(onlyKind); !errors.Is(err, ErrMissingField) {
		t.Fatalf("DecodeValue without data = %v, want ErrMissingField", err)
	}
}

func TestDecodeValueBadVectorWidth(t *testing.T) {
	fields := []tlv.Field{
		tlv.I32Field(FieldValueKind, int32(KindVec3)),
		tlv.F64VecField(FieldValueData, []float64{1, 2}),
	}
	if _, err := DecodeValue(fields); !errors.Is(err, ErrBadValue) {
		t.Fatalf("two-component vec3 decoded: %v", err)
	}
}

func TestAppendValueRejectsInvalidKind(t *testing.T) {
	if _, err := AppendValue(nil, Value{}); !errors.Is(err, ErrBadValue) {
		t.Fatalf("AppendValue(invalid) = %v, want ErrBadValue", err)
	}
}

func TestHandlesRoundTrip(t *testing.T) {
	want := []NodeHandle{1, 99, 1 << 40}
	got, err := DecodeHandles(EncodeHandles(want))
	if err != nil {
		t.Fatalf("DecodeHandles: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	ragged := tlv.BytesField(FieldHandles, []byte{1, 2, 3})
	if _, err := DecodeHandles(ragged); !errors.Is(err, ErrBadValue) {
		t.Fatalf("ragged handle list decoded: %v", err)
	}
}
