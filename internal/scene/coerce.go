package scene

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/danmuck/scenectl/internal/protocol"
)

// coercionRule tries to turn one input shape into a canonical value of
// a fixed kind. Rules either succeed or decline; the first success in a
// kind's ordered list wins.
type coercionRule func(input any) (protocol.Value, bool)

var coercionRules = map[protocol.Kind][]coercionRule{
	protocol.KindBool: {
		func(in any) (protocol.Value, bool) {
			if b, ok := in.(bool); ok {
				return protocol.BoolValue(b), true
			}
			return protocol.Value{}, false
		},
	},
	protocol.KindInt32: {
		func(in any) (protocol.Value, bool) {
			switch v := in.(type) {
			case int32:
				return protocol.Int32Value(v), true
			case int:
				if v >= math.MinInt32 && v <= math.MaxInt32 {
					return protocol.Int32Value(int32(v)), true
				}
			case int64:
				if v >= math.MinInt32 && v <= math.MaxInt32 {
					return protocol.Int32Value(int32(v)), true
				}
			}
			return protocol.Value{}, false
		},
		func(in any) (protocol.Value, bool) {
			if f, ok := in.(float64); ok && f == math.Trunc(f) &&
				f >= math.MinInt32 && f <= math.MaxInt32 {
				return protocol.Int32Value(int32(f)), true
			}
			return protocol.Value{}, false
		},
	},
	protocol.KindFloat: {
		func(in any) (protocol.Value, bool) {
			switch v := in.(type) {
			case float64:
				return protocol.FloatValue(v), true
			case float32:
				return protocol.FloatValue(float64(v)), true
			case int:
				return protocol.FloatValue(float64(v)), true
			case int32:
				return protocol.FloatValue(float64(v)), true
			case int64:
				return protocol.FloatValue(float64(v)), true
			}
			return protocol.Value{}, false
		},
	},
	protocol.KindVec3: {
		func(in any) (protocol.Value, bool) {
			if a, ok := floats3(in); ok {
				return protocol.Vec3Value(a), true
			}
			return protocol.Value{}, false
		},
	},
	protocol.KindRotation: {
		func(in any) (protocol.Value, bool) {
			if a, ok := floats4(in); ok {
				return protocol.RotationValue(a), true
			}
			return protocol.Value{}, false
		},
	},
	protocol.KindColor: {
		func(in any) (protocol.Value, bool) {
			if a, ok := floats3(in); ok {
				return protocol.ColorValue(a), true
			}
			return protocol.Value{}, false
		},
	},
	protocol.KindString: {
		func(in any) (protocol.Value, bool) {
			if s, ok := in.(string); ok {
				return protocol.StringValue(s), true
			}
			return protocol.Value{}, false
		},
	},
	protocol.KindNode: {
		func(in any) (protocol.Value, bool) {
			if n, ok := in.(*Node); ok && n != nil && n.live {
				return protocol.NodeValue(n.handle), true
			}
			return protocol.Value{}, false
		},
		func(in any) (protocol.Value, bool) {
			if in == nil {
				return protocol.NodeValue(0), true
			}
			return protocol.Value{}, false
		},
	},
}

func floats3(in any) ([3]float64, bool) {
	switch v := in.(type) {
	case [3]float64:
		return v, true
	case []float64:
		if len(v) == 3 {
			return [3]float64{v[0], v[1], v[2]}, true
		}
	case [3]int:
		return [3]float64{float64(v[0]), float64(v[1]), float64(v[2])}, true
	}
	return [3]float64{}, false
}

func floats4(in any) ([4]float64, bool) {
	switch v := in.(type) {
	case [4]float64:
		return v, true
	case []float64:
		if len(v) == 4 {
			return [4]float64{v[0], v[1], v[2], v[3]}, true
		}
	}
	return [4]float64{}, false
}

// Coerce normalizes an input into the canonical value for a kind. A
// value already carrying the right kind passes through untouched.
func Coerce(kind protocol.Kind, input any) (protocol.Value, error) {
	if v, ok := input.(protocol.Value); ok {
		if v.Kind == kind {
			return v, nil
		}
		return protocol.Value{}, coercionErr(kind, input)
	}
	for _, rule := range coercionRules[kind] {
		if v, ok := rule(input); ok {
			return v, nil
		}
	}
	return protocol.Value{}, coercionErr(kind, input)
}

func coercionErr(kind protocol.Kind, input any) error {
	return fmt.Errorf("%w: want %s, rejected %T(%v)", ErrTypeCoercion, kind, input, input)
}

// subtreeSource normalizes every accepted node-source shape into the
// textual subtree form the engine imports: a Plan, a live Node (copied
// by value via export), inline subtree text, or a filename.
func subtreeSource(w *World, input any) (string, error) {
	switch v := input.(type) {
	case *Plan:
		return v.Subtree()
	case *Node:
		if !v.live {
			return "", v.staleErr()
		}
		return v.Export()
	case string:
		if looksLikeSubtree(v) {
			return v, nil
		}
		data, err := os.ReadFile(v)
		if err != nil {
			return "", fmt.Errorf("%w: subtree file %q: %v", ErrImportFailure, v, err)
		}
		return string(data), nil
	default:
		return "", coercionErr(protocol.KindNode, input)
	}
}

// looksLikeSubtree distinguishes inline subtree text from a filename:
// inline text opens with an optional DEF clause, then a node type word
// and an opening brace. Paths never fit that shape, braces in the path
// or not.
func looksLikeSubtree(s string) bool {
	s = strings.TrimSpace(s)
	if def, ok := strings.CutPrefix(s, "DEF "); ok {
		s = strings.TrimSpace(def)
		if i := strings.IndexAny(s, " \t\n"); i >= 0 {
			s = strings.TrimSpace(s[i:])
		}
	}
	i := 0
	for i < len(s) && isTypeByte(s[i]) {
		i++
	}
	if i == 0 {
		return false
	}
	return strings.HasPrefix(strings.TrimSpace(s[i:]), "{")
}

func isTypeByte(c byte) bool {
	return c == '_' || c == '-' ||
		(c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
