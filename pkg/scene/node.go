// Package scene provides the renderer-agnostic scene graph that ingestion
// pipelines build: groups, triangle meshes, line strips and the resources
// (geometry buffers, materials) they own.
package scene

import (
	"github.com/Faultbox/cadview/pkg/math"
)

// Transform is a node's local placement. A zero Rotation or zero Scale is
// treated as unset (identity), so a zero Transform is the identity.
type Transform struct {
	Position math.Vec3
	Rotation math.Quat
	Scale    math.Vec3
}

// Identity returns a transform with no translation, rotation or scaling.
func Identity() Transform {
	return Transform{
		Rotation: math.QuatIdentity(),
		Scale:    math.Vec3{X: 1, Y: 1, Z: 1},
	}
}

// Matrix returns translation * rotation * scale.
func (t Transform) Matrix() math.Mat4 {
	rot := t.Rotation
	if rot.IsZero() {
		rot = math.QuatIdentity()
	}
	scale := t.Scale
	if scale == (math.Vec3{}) {
		scale = math.Vec3{X: 1, Y: 1, Z: 1}
	}
	return math.Compose(t.Position, rot, scale)
}

// Object holds the fields every node has.
type Object struct {
	Name      string
	Transform Transform
}

// Node is one entity of the scene graph: *Group, *Mesh or *Lines.
type Node interface {
	// Base returns the node's name and local transform.
	Base() *Object

	expand(world math.Mat4, box *math.Box3)
}

// Group is an ordered list of child nodes sharing a local transform.
type Group struct {
	Object
	children []Node
}

// NewGroup creates an empty group with an identity transform.
func NewGroup(name string) *Group {
	return &Group{Object: Object{Name: name, Transform: Identity()}}
}

// Base implements Node.
func (g *Group) Base() *Object { return &g.Object }

// Add appends children in order.
func (g *Group) Add(children ...Node) {
	for _, c := range children {
		if c != nil {
			g.children = append(g.children, c)
		}
	}
}

// Children returns the child nodes in insertion order.
func (g *Group) Children() []Node {
	return g.children
}

// Len returns the number of direct children.
func (g *Group) Len() int {
	return len(g.children)
}

func (g *Group) expand(world math.Mat4, box *math.Box3) {
	for _, c := range g.children {
		c.expand(world.Mul(c.Base().Transform.Matrix()), box)
	}
}

// Mesh is an indexed (or non-indexed) triangle mesh with one material.
type Mesh struct {
	Object
	Geometry *Geometry
	Material *Material
}

// NewMesh creates a mesh node with an identity transform.
func NewMesh(name string, geom *Geometry, mat *Material) *Mesh {
	return &Mesh{
		Object:   Object{Name: name, Transform: Identity()},
		Geometry: geom,
		Material: mat,
	}
}

// Base implements Node.
func (m *Mesh) Base() *Object { return &m.Object }

func (m *Mesh) expand(world math.Mat4, box *math.Box3) {
	if m.Geometry == nil {
		return
	}
	n := m.Geometry.VertexCount()
	for i := 0; i < n; i++ {
		box.Expand(world.TransformVec3(m.Geometry.Vertex(i)))
	}
}

// Lines is a connected line strip: consecutive points are joined.
type Lines struct {
	Object
	Points   []math.Vec3
	Material *Material
}

// NewLines creates a line strip node with an identity transform.
func NewLines(name string, points []math.Vec3, mat *Material) *Lines {
	return &Lines{
		Object:   Object{Name: name, Transform: Identity()},
		Points:   points,
		Material: mat,
	}
}

// Base implements Node.
func (l *Lines) Base() *Object { return &l.Object }

// Segments returns the number of line segments in the strip.
func (l *Lines) Segments() int {
	if len(l.Points) < 2 {
		return 0
	}
	return len(l.Points) - 1
}

func (l *Lines) expand(world math.Mat4, box *math.Box3) {
	for _, p := range l.Points {
		box.Expand(world.TransformVec3(p))
	}
}

// Bounds returns the world-space box of n and its descendants, applying
// n's own transform as if n were the root.
func Bounds(n Node) math.Box3 {
	box := math.EmptyBox()
	n.expand(n.Base().Transform.Matrix(), &box)
	return box
}

// Walk visits n and every descendant depth-first with its world matrix.
func Walk(n Node, fn func(n Node, world math.Mat4)) {
	walk(n, n.Base().Transform.Matrix(), fn)
}

func walk(n Node, world math.Mat4, fn func(n Node, world math.Mat4)) {
	fn(n, world)
	if g, ok := n.(*Group); ok {
		for _, c := range g.children {
			walk(c, world.Mul(c.Base().Transform.Matrix()), fn)
		}
	}
}
