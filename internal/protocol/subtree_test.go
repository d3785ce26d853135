package protocol

import (
	"errors"
	"reflect"
	"testing"
)

const sampleSubtree = `DEF BALL Solid {
  translation 0 1 0.5
  name "ball"
  locked FALSE
  children [
    Shape {
      castShadows TRUE
    }
    DEF BALL_PHYSICS Physics {
      mass 2
    }
  ]
}
`

func TestParseSubtree(t *testing.T) {
	node, err := ParseSubtree(sampleSubtree)
	if err != nil {
		t.Fatalf("ParseSubtree: %v", err)
	}
	if node.Type != "Solid" || node.DefName != "BALL" {
		t.Fatalf("got %s %s, want DEF BALL Solid", node.DefName, node.Type)
	}
	tr, ok := node.Field("translation")
	if !ok || tr.Kind != SVNumbers || !reflect.DeepEqual(tr.Numbers, []float64{0, 1, 0.5}) {
		t.Fatalf("translation = %+v", tr)
	}
	name, ok := node.Field("name")
	if !ok || name.Kind != SVString || name.Str != "ball" {
		t.Fatalf("name = %+v", name)
	}
	locked, ok := node.Field("locked")
	if !ok || locked.Kind != SVBool || locked.Bool {
		t.Fatalf("locked = %+v", locked)
	}
	children, ok := node.Field("children")
	if !ok || children.Kind != SVList || len(children.List) != 2 {
		t.Fatalf("children = %+v", children)
	}
	if children.List[0].Kind != SVNode || children.List[0].Node.Type != "Shape" {
		t.Fatalf("children[0] = %+v", children.List[0])
	}
	phys := children.List[1]
	if phys.Kind != SVNode || phys.Node.DefName != "BALL_PHYSICS" {
		t.Fatalf("children[1] = %+v", phys)
	}
	mass, ok := phys.Node.Field("mass")
	if !ok || mass.Kind != SVNumber || mass.Number != 2 {
		t.Fatalf("mass = %+v", mass)
	}
}

func TestParseSubtreeCommentsAndCommas(t *testing.T) {
	src := `Transform { # root of the arm
  # nothing else matters here
  rotation 0 1 0 1.5708, # axis then angle
  scale [ 1, 2, 3 ]
}
`
	node, err := ParseSubtree(src)
	if err != nil {
		t.Fatalf("ParseSubtree: %v", err)
	}
	rot, _ := node.Field("rotation")
	if rot.Kind != SVNumbers || len(rot.Numbers) != 4 {
		t.Fatalf("rotation = %+v", rot)
	}
	scale, _ := node.Field("scale")
	if scale.Kind != SVList || len(scale.List) != 3 {
		t.Fatalf("commas should split list elements, got %+v", scale)
	}
	for i, v := range scale.List {
		if v.Kind != SVNumber {
			t.Fatalf("scale[%d] = %+v", i, v)
		}
	}
}

func TestParseSubtreeVectorListGrouping(t *testing.T) {
	src := `Mesh {
  points [
    1 0 0
    0 1 0, 0 0 1
  ]
}
`
	node, err := ParseSubtree(src)
	if err != nil {
		t.Fatalf("ParseSubtree: %v", err)
	}
	pts, _ := node.Field("points")
	if pts.Kind != SVList || len(pts.List) != 3 {
		t.Fatalf("want three vectors, got %+v", pts)
	}
	for i, v := range pts.List {
		if v.Kind != SVNumbers || len(v.Numbers) != 3 {
			t.Fatalf("points[%d] = %+v", i, v)
		}
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	node, err := ParseSubtree(sampleSubtree)
	if err != nil {
		t.Fatalf("ParseSubtree: %v", err)
	}
	again, err := ParseSubtree(FormatSubtree(node))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if !reflect.DeepEqual(node, again) {
		t.Fatalf("round trip diverged:\n%+v\n%+v", node, again)
	}
}

func TestFormatEscapesQuotedStrings(t *testing.T) {
	node := &SubtreeNode{Type: "Solid"}
	node.SetField("name", SubtreeValue{Kind: SVString, Str: `say "hi" c:\tmp`})

	again, err := ParseSubtree(FormatSubtree(node))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	v, ok := again.Field("name")
	if !ok || v.Str != `say "hi" c:\tmp` {
		t.Fatalf("name = %+v", v)
	}
}

func TestParseSubtreeSyntaxErrors(t *testing.T) {
	cases := []string{
		``,
		`Solid {`,
		`Solid { name "unterminated }`,
		`Solid {} Solid {}`,
		`42 {}`,
		`DEF X {}`,
		`Solid { children [ }`,
	}
	for _, src := range cases {
		if _, err := ParseSubtree(src); !errors.Is(err, ErrSubtreeSyntax) {
			t.Fatalf("ParseSubtree(%q) = %v, want ErrSubtreeSyntax", src, err)
		}
	}
}

func TestBind(t *testing.T) {
	cases := []struct {
		sv   SubtreeValue
		kind Kind
		want Value
	}{
		{SubtreeValue{Kind: SVBool, Bool: true}, KindBool, BoolValue(true)},
		{SubtreeValue{Kind: SVNumber, Number: 7}, KindInt32, Int32Value(7)},
		{SubtreeValue{Kind: SVNumber, Number: 7}, KindFloat, FloatValue(7)},
		{SubtreeValue{Kind: SVNumbers, Numbers: []float64{1, 2, 3}}, KindVec3, Vec3Value([3]float64{1, 2, 3})},
		{SubtreeValue{Kind: SVNumbers, Numbers: []float64{0, 1, 0, 3.14}}, KindRotation, RotationValue([4]float64{0, 1, 0, 3.14})},
		{SubtreeValue{Kind: SVNumbers, Numbers: []float64{0.5, 0.5, 1}}, KindColor, ColorValue([3]float64{0.5, 0.5, 1})},
		{SubtreeValue{Kind: SVString, Str: "x"}, KindString, StringValue("x")},
	}
	for _, c := range cases {
		got, err := c.sv.Bind(c.kind)
		if err != nil {
			t.Fatalf("Bind(%s): %v", c.kind, err)
		}
		if !got.Equal(c.want) {
			t.Fatalf("Bind(%s) = %+v, want %+v", c.kind, got, c.want)
		}
	}
}

func TestBindRejects(t *testing.T) {
	cases := []struct {
		sv   SubtreeValue
		kind Kind
	}{
		{SubtreeValue{Kind: SVNumber, Number: 1.5}, KindInt32},
		{SubtreeValue{Kind: SVNumbers, Numbers: []float64{1, 2}}, KindVec3},
		{SubtreeValue{Kind: SVString, Str: "TRUE"}, KindBool},
		{SubtreeValue{Kind: SVNode, Node: &SubtreeNode{Type: "Shape"}}, KindString},
	}
	for _, c := range cases {
		if _, err := c.sv.Bind(c.kind); !errors.Is(err, ErrSubtreeSyntax) {
			t.Fatalf("Bind(%+v, %s) should fail", c.sv, c.kind)
		}
	}
}
