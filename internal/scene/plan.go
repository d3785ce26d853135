package scene

import (
	"fmt"

	"github.com/danmuck/scenectl/internal/protocol"
)

// Plan is a locally-held descriptor for a node subtree that does not
// exist remotely. Plans are pure values: building, copying, and
// rewriting them never touches the engine. A Plan only gains remote
// existence through Field.Import (or Insert/Append on a node sequence).
type Plan struct {
	typ    string
	def    string
	fields []planField
}

type planField struct {
	name  string
	value any
}

// NewPlan starts a plan for one node type.
func NewPlan(nodeType string) *Plan {
	return &Plan{typ: nodeType}
}

// Type returns the planned node type.
func (p *Plan) Type() string { return p.typ }

// DefName returns the planned DEF name.
func (p *Plan) DefName() string { return p.def }

// WithDef names the planned node and returns the plan for chaining.
func (p *Plan) WithDef(def string) *Plan {
	p.def = def
	return p
}

// Set records a field value: a literal, a nested *Plan, or a []any of
// either for sequence fields. Later sets of the same name win.
func (p *Plan) Set(name string, value any) *Plan {
	for i := range p.fields {
		if p.fields[i].name == name {
			p.fields[i].value = value
			return p
		}
	}
	p.fields = append(p.fields, planField{name: name, value: value})
	return p
}

// Field returns a recorded value, if set.
func (p *Plan) Field(name string) (any, bool) {
	for _, f := range p.fields {
		if f.name == name {
			return f.value, true
		}
	}
	return nil, false
}

// Unset drops a recorded field.
func (p *Plan) Unset(name string) *Plan {
	for i := range p.fields {
		if p.fields[i].name == name {
			p.fields = append(p.fields[:i], p.fields[i+1:]...)
			return p
		}
	}
	return p
}

// Copy deep-copies the plan; the copy and the original never share
// nested plans or lists.
func (p *Plan) Copy() *Plan {
	out := &Plan{typ: p.typ, def: p.def, fields: make([]planField, len(p.fields))}
	for i, f := range p.fields {
		out.fields[i] = planField{name: f.name, value: copyPlanValue(f.value)}
	}
	return out
}

func copyPlanValue(v any) any {
	switch t := v.(type) {
	case *Plan:
		return t.Copy()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyPlanValue(e)
		}
		return out
	default:
		return v
	}
}

// Subtree serializes the plan into the textual form the engine imports.
func (p *Plan) Subtree() (string, error) {
	sn, err := p.subtreeNode()
	if err != nil {
		return "", err
	}
	return protocol.FormatSubtree(sn), nil
}

func (p *Plan) subtreeNode() (*protocol.SubtreeNode, error) {
	sn := &protocol.SubtreeNode{Type: p.typ, DefName: p.def}
	for _, f := range p.fields {
		sv, err := planSubtreeValue(f.value)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", p.typ, f.name, err)
		}
		sn.Fields = append(sn.Fields, protocol.SubtreeField{Name: f.name, Value: sv})
	}
	return sn, nil
}

func planSubtreeValue(v any) (protocol.SubtreeValue, error) {
	switch t := v.(type) {
	case *Plan:
		sn, err := t.subtreeNode()
		if err != nil {
			return protocol.SubtreeValue{}, err
		}
		return protocol.SubtreeValue{Kind: protocol.SVNode, Node: sn}, nil
	case []any:
		out := protocol.SubtreeValue{Kind: protocol.SVList, List: []protocol.SubtreeValue{}}
		for _, e := range t {
			sv, err := planSubtreeValue(e)
			if err != nil {
				return protocol.SubtreeValue{}, err
			}
			out.List = append(out.List, sv)
		}
		return out, nil
	case bool:
		return protocol.SubtreeValue{Kind: protocol.SVBool, Bool: t}, nil
	case int:
		return protocol.SubtreeValue{Kind: protocol.SVNumber, Number: float64(t)}, nil
	case int32:
		return protocol.SubtreeValue{Kind: protocol.SVNumber, Number: float64(t)}, nil
	case int64:
		return protocol.SubtreeValue{Kind: protocol.SVNumber, Number: float64(t)}, nil
	case float64:
		return protocol.SubtreeValue{Kind: protocol.SVNumber, Number: t}, nil
	case float32:
		return protocol.SubtreeValue{Kind: protocol.SVNumber, Number: float64(t)}, nil
	case [3]float64:
		return protocol.SubtreeValue{Kind: protocol.SVNumbers, Numbers: t[:]}, nil
	case [4]float64:
		return protocol.SubtreeValue{Kind: protocol.SVNumbers, Numbers: t[:]}, nil
	case []float64:
		return protocol.SubtreeValue{Kind: protocol.SVNumbers, Numbers: append([]float64(nil), t...)}, nil
	case string:
		return protocol.SubtreeValue{Kind: protocol.SVString, Str: t}, nil
	case protocol.Value:
		return protocol.ScalarSubtreeValue(t)
	default:
		return protocol.SubtreeValue{}, fmt.Errorf("%w: no textual form for %T(%v)", ErrTypeCoercion, v, v)
	}
}

// ParsePlan rebuilds a plan from subtree text, typically a prior export.
func ParsePlan(text string) (*Plan, error) {
	sn, err := protocol.ParseSubtree(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImportFailure, err)
	}
	return planFromSubtree(sn), nil
}

// PlanOf exports a live node and re-parses it into a pure plan, so the
// subtree can be reworked locally and imported again.
func PlanOf(n *Node) (*Plan, error) {
	text, err := n.Export()
	if err != nil {
		return nil, err
	}
	return ParsePlan(text)
}

func planFromSubtree(sn *protocol.SubtreeNode) *Plan {
	p := &Plan{typ: sn.Type, def: sn.DefName}
	for _, f := range sn.Fields {
		p.fields = append(p.fields, planField{name: f.Name, value: planValueFromSubtree(f.Value)})
	}
	return p
}

func planValueFromSubtree(sv protocol.SubtreeValue) any {
	switch sv.Kind {
	case protocol.SVBool:
		return sv.Bool
	case protocol.SVNumber:
		return sv.Number
	case protocol.SVNumbers:
		return append([]float64(nil), sv.Numbers...)
	case protocol.SVString:
		return sv.Str
	case protocol.SVNode:
		return planFromSubtree(sv.Node)
	case protocol.SVList:
		out := make([]any, len(sv.List))
		for i, e := range sv.List {
			out[i] = planValueFromSubtree(e)
		}
		return out
	default:
		return nil
	}
}
