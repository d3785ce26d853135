package enginemem

import (
	"github.com/danmuck/scenectl/internal/protocol"
)

// fieldDef declares one field slot of a node type: element kind, arity,
// and the default an instance starts with.
type fieldDef struct {
	name    string
	kind    protocol.Kind
	multi   bool
	initial protocol.Value
}

func sfBool(name string, v bool) fieldDef {
	return fieldDef{name: name, kind: protocol.KindBool, initial: protocol.BoolValue(v)}
}

func sfInt32(name string, v int32) fieldDef {
	return fieldDef{name: name, kind: protocol.KindInt32, initial: protocol.Int32Value(v)}
}

func sfFloat(name string, v float64) fieldDef {
	return fieldDef{name: name, kind: protocol.KindFloat, initial: protocol.FloatValue(v)}
}

func sfVec3(name string, x, y, z float64) fieldDef {
	return fieldDef{name: name, kind: protocol.KindVec3, initial: protocol.Vec3Value([3]float64{x, y, z})}
}

func sfRotation(name string) fieldDef {
	return fieldDef{name: name, kind: protocol.KindRotation, initial: protocol.RotationValue([4]float64{0, 0, 1, 0})}
}

func sfColor(name string, r, g, b float64) fieldDef {
	return fieldDef{name: name, kind: protocol.KindColor, initial: protocol.ColorValue([3]float64{r, g, b})}
}

func sfString(name string, v string) fieldDef {
	return fieldDef{name: name, kind: protocol.KindString, initial: protocol.StringValue(v)}
}

func sfNode(name string) fieldDef {
	return fieldDef{name: name, kind: protocol.KindNode, initial: protocol.NodeValue(0)}
}

func mf(name string, kind protocol.Kind) fieldDef {
	return fieldDef{name: name, kind: kind, multi: true}
}

// nodeSchema lists the field slots of every known node type, in
// declaration order.
var nodeSchema = map[string][]fieldDef{
	"Group": {
		mf("children", protocol.KindNode),
	},
	"Transform": {
		sfVec3("translation", 0, 0, 0),
		sfRotation("rotation"),
		sfVec3("scale", 1, 1, 1),
		mf("children", protocol.KindNode),
	},
	"Solid": {
		sfVec3("translation", 0, 0, 0),
		sfRotation("rotation"),
		sfString("name", "solid"),
		sfBool("locked", false),
		sfNode("physics"),
		sfNode("boundingObject"),
		mf("children", protocol.KindNode),
	},
	"Robot": {
		sfVec3("translation", 0, 0, 0),
		sfRotation("rotation"),
		sfString("name", "robot"),
		sfString("controller", "void"),
		sfBool("supervisor", false),
		sfBool("locked", false),
		sfNode("physics"),
		sfNode("boundingObject"),
		mf("children", protocol.KindNode),
	},
	"Shape": {
		sfNode("appearance"),
		sfNode("geometry"),
		sfBool("castShadows", true),
	},
	"Appearance": {
		sfNode("material"),
		sfNode("texture"),
	},
	"Material": {
		sfColor("diffuseColor", 0.8, 0.8, 0.8),
		sfColor("emissiveColor", 0, 0, 0),
		sfFloat("shininess", 0.2),
		sfFloat("transparency", 0),
	},
	"ImageTexture": {
		mf("url", protocol.KindString),
		sfBool("repeatS", true),
		sfBool("repeatT", true),
	},
	"Box": {
		sfVec3("size", 2, 2, 2),
	},
	"Sphere": {
		sfFloat("radius", 1),
		sfInt32("subdivision", 1),
	},
	"Cylinder": {
		sfFloat("height", 2),
		sfFloat("radius", 1),
	},
	"Plane": {
		sfVec3("size", 1, 1, 1),
	},
	"Physics": {
		sfFloat("mass", -1),
		sfFloat("density", 1000),
	},
	"Camera": {
		sfFloat("fieldOfView", 0.7854),
		sfInt32("width", 64),
		sfInt32("height", 64),
		sfString("name", "camera"),
	},
	"PointLight": {
		sfColor("color", 1, 1, 1),
		sfFloat("intensity", 1),
		sfVec3("location", 0, 0, 0),
		sfBool("on", true),
	},
	"WorldInfo": {
		sfString("title", ""),
		sfFloat("basicTimeStep", 32),
		sfVec3("gravity", 0, 0, -9.81),
		mf("info", protocol.KindString),
	},
	"Viewpoint": {
		sfVec3("position", 0, 0, 10),
		sfRotation("orientation"),
		sfFloat("fieldOfView", 0.7854),
	},
}
