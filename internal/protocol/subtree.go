package protocol

import (
	"errors"
	"fmt"
	"strings"
)

// The serialized-subtree format is a line-oriented textual node description:
//
//	DEF BOX1 Solid {
//	  translation 1 0 0
//	  name "box"
//	  children [
//	    Shape {
//	    }
//	  ]
//	}
//
// Booleans are TRUE/FALSE, strings are double-quoted, vector-like values are
// naked space-separated number runs, MF values are bracketed lists.

var ErrSubtreeSyntax = errors.New("protocol: bad subtree syntax")

// SubtreeNode is the neutral parsed/printable form of one node.
type SubtreeNode struct {
	Type    string
	DefName string
	Fields  []SubtreeField // declaration order is preserved
}

// SubtreeField is one named field value within a SubtreeNode.
type SubtreeField struct {
	Name  string
	Value SubtreeValue
}

// SubtreeValueKind tags the payload slot of a SubtreeValue.
type SubtreeValueKind int

const (
	SVBool SubtreeValueKind = iota + 1
	SVNumber
	SVNumbers
	SVString
	SVNode
	SVList
)

// SubtreeValue is one field value in the textual format. Numbers remain
// untyped here; binding them to a Kind happens against a field spec.
type SubtreeValue struct {
	Kind    SubtreeValueKind
	Bool    bool
	Number  float64
	Numbers []float64
	Str     string
	Node    *SubtreeNode
	List    []SubtreeValue
}

// Field returns the named field value, if declared.
func (n *SubtreeNode) Field(name string) (SubtreeValue, bool) {
	for _, f := range n.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return SubtreeValue{}, false
}

// SetField appends or replaces a named field value.
func (n *SubtreeNode) SetField(name string, v SubtreeValue) {
	for i, f := range n.Fields {
		if f.Name == name {
			n.Fields[i].Value = v
			return
		}
	}
	n.Fields = append(n.Fields, SubtreeField{Name: name, Value: v})
}

// Bind coerces an untyped subtree value into the given kind.
// Node-valued and list-valued entries never bind to scalar kinds.
func (sv SubtreeValue) Bind(kind Kind) (Value, error) {
	switch kind {
	case KindBool:
		if sv.Kind == SVBool {
			return BoolValue(sv.Bool), nil
		}
	case KindInt32:
		if sv.Kind == SVNumber && sv.Number == float64(int32(sv.Number)) {
			return Int32Value(int32(sv.Number)), nil
		}
	case KindFloat:
		if sv.Kind == SVNumber {
			return FloatValue(sv.Number), nil
		}
	case KindVec3:
		if sv.Kind == SVNumbers && len(sv.Numbers) == 3 {
			return Vec3Value([3]float64{sv.Numbers[0], sv.Numbers[1], sv.Numbers[2]}), nil
		}
	case KindRotation:
		if sv.Kind == SVNumbers && len(sv.Numbers) == 4 {
			return RotationValue([4]float64{sv.Numbers[0], sv.Numbers[1], sv.Numbers[2], sv.Numbers[3]}), nil
		}
	case KindColor:
		if sv.Kind == SVNumbers && len(sv.Numbers) == 3 {
			return ColorValue([3]float64{sv.Numbers[0], sv.Numbers[1], sv.Numbers[2]}), nil
		}
	case KindString:
		if sv.Kind == SVString {
			return StringValue(sv.Str), nil
		}
	}
	return Value{}, fmt.Errorf("%w: value does not bind to %s", ErrSubtreeSyntax, kind)
}

// ScalarSubtreeValue converts a tagged value to its textual form.
// Node-reference values have no textual scalar form.
func ScalarSubtreeValue(v Value) (SubtreeValue, error) {
	switch v.Kind {
	case KindBool:
		return SubtreeValue{Kind: SVBool, Bool: v.Bool}, nil
	case KindInt32:
		return SubtreeValue{Kind: SVNumber, Number: float64(v.Int32)}, nil
	case KindFloat:
		return SubtreeValue{Kind: SVNumber, Number: v.Float}, nil
	case KindVec3:
		return SubtreeValue{Kind: SVNumbers, Numbers: v.Vec3[:]}, nil
	case KindRotation:
		return SubtreeValue{Kind: SVNumbers, Numbers: v.Rot[:]}, nil
	case KindColor:
		return SubtreeValue{Kind: SVNumbers, Numbers: v.Color[:]}, nil
	case KindString:
		return SubtreeValue{Kind: SVString, Str: v.Str}, nil
	}
	return SubtreeValue{}, fmt.Errorf("%w: kind %s has no textual form", ErrSubtreeSyntax, v.Kind)
}

// FormatSubtree renders a node tree in the textual subtree format.
func FormatSubtree(n *SubtreeNode) string {
	var b strings.Builder
	writeNode(&b, n, 0)
	b.WriteString("\n")
	return b.String()
}

func writeNode(b *strings.Builder, n *SubtreeNode, indent int) {
	if n.DefName != "" {
		fmt.Fprintf(b, "DEF %s ", n.DefName)
	}
	b.WriteString(n.Type)
	b.WriteString(" {")
	for _, f := range n.Fields {
		b.WriteString("\n")
		pad(b, indent+2)
		b.WriteString(f.Name)
		b.WriteString(" ")
		writeValue(b, f.Value, indent+2)
	}
	b.WriteString("\n")
	pad(b, indent)
	b.WriteString("}")
}

func writeValue(b *strings.Builder, v SubtreeValue, indent int) {
	switch v.Kind {
	case SVBool:
		if v.Bool {
			b.WriteString("TRUE")
		} else {
			b.WriteString("FALSE")
		}
	case SVNumber:
		b.WriteString(formatFloat(v.Number))
	case SVNumbers:
		b.WriteString(joinFloats(v.Numbers))
	case SVString:
		writeQuoted(b, v.Str)
	case SVNode:
		writeNode(b, v.Node, indent)
	case SVList:
		b.WriteString("[")
		for _, item := range v.List {
			b.WriteString("\n")
			pad(b, indent+2)
			writeValue(b, item, indent+2)
		}
		b.WriteString("\n")
		pad(b, indent)
		b.WriteString("]")
	}
}

// writeQuoted escapes exactly what the scanner unescapes: backslash and
// double quote.
func writeQuoted(b *strings.Builder, s string) {
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		if s[i] == '"' || s[i] == '\\' {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	b.WriteByte('"')
}

func pad(b *strings.Builder, n int) {
	for i := 0; i < n; i++ {
		b.WriteByte(' ')
	}
}
