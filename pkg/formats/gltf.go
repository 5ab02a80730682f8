package formats

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/Faultbox/cadview/pkg/math"
	"github.com/Faultbox/cadview/pkg/scene"
)

// ErrInvalidGLTF is returned when a glTF or GLB document cannot be decoded.
var ErrInvalidGLTF = errors.New("invalid glTF")

// maxNodeDepth bounds node recursion for documents with cyclic hierarchies.
const maxNodeDepth = 64

// DecodeGLTF decodes a GLB container or a glTF document with embedded
// buffers into a group mirroring the default scene's node hierarchy.
// Triangle primitives become meshes; other primitive modes are skipped.
// Meshes without a material take palette entries in insertion order; pal
// may be nil.
func DecodeGLTF(data []byte, pal *scene.Palette) (*scene.Group, error) {
	doc := new(gltf.Document)
	if err := gltf.NewDecoder(bytes.NewReader(data)).Decode(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGLTF, err)
	}

	d := &gltfDecoder{doc: doc, pal: pal, materials: make(map[int]*scene.Material)}
	root := scene.NewGroup("gltf")
	for _, idx := range sceneRoots(doc) {
		n, err := d.node(idx, 0)
		if err != nil {
			return nil, err
		}
		root.Add(n)
	}
	return root, nil
}

type gltfDecoder struct {
	doc       *gltf.Document
	pal       *scene.Palette
	materials map[int]*scene.Material
	meshes    int
}

func sceneRoots(doc *gltf.Document) []int {
	if len(doc.Scenes) > 0 {
		s := 0
		if doc.Scene != nil && *doc.Scene < len(doc.Scenes) {
			s = *doc.Scene
		}
		return doc.Scenes[s].Nodes
	}
	// No scene: every node that is nobody's child is a root.
	child := make(map[int]bool)
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			child[c] = true
		}
	}
	var roots []int
	for i := range doc.Nodes {
		if !child[i] {
			roots = append(roots, i)
		}
	}
	return roots
}

func (d *gltfDecoder) node(idx, depth int) (*scene.Group, error) {
	if idx < 0 || idx >= len(d.doc.Nodes) {
		return nil, fmt.Errorf("%w: node %d out of range", ErrInvalidGLTF, idx)
	}
	if depth > maxNodeDepth {
		return nil, fmt.Errorf("%w: node hierarchy deeper than %d", ErrInvalidGLTF, maxNodeDepth)
	}
	src := d.doc.Nodes[idx]
	g := scene.NewGroup(src.Name)
	g.Transform = nodeTransform(src)

	if src.Mesh != nil {
		if err := d.mesh(g, *src.Mesh); err != nil {
			return nil, err
		}
	}
	for _, c := range src.Children {
		child, err := d.node(c, depth+1)
		if err != nil {
			return nil, err
		}
		g.Add(child)
	}
	return g, nil
}

func nodeTransform(n *gltf.Node) scene.Transform {
	t := scene.Identity()
	var m math.Mat4
	for i, v := range n.Matrix {
		m[i] = float32(v)
	}
	if m != (math.Mat4{}) && m != math.Identity() {
		t.Position, t.Rotation, t.Scale = m.Decompose()
		return t
	}
	t.Position = math.Vec3{X: float32(n.Translation[0]), Y: float32(n.Translation[1]), Z: float32(n.Translation[2])}
	if r := n.Rotation; r != [4]float64{} {
		t.Rotation = math.Quat{X: float32(r[0]), Y: float32(r[1]), Z: float32(r[2]), W: float32(r[3])}.Normalize()
	}
	if s := n.Scale; s != [3]float64{} {
		t.Scale = math.Vec3{X: float32(s[0]), Y: float32(s[1]), Z: float32(s[2])}
	}
	return t
}

func (d *gltfDecoder) mesh(parent *scene.Group, idx int) error {
	if idx < 0 || idx >= len(d.doc.Meshes) {
		return fmt.Errorf("%w: mesh %d out of range", ErrInvalidGLTF, idx)
	}
	src := d.doc.Meshes[idx]
	for i, prim := range src.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			continue
		}
		geom, err := d.primitive(prim)
		if err != nil {
			return fmt.Errorf("mesh %q primitive %d: %w", src.Name, i, err)
		}
		parent.Add(scene.NewMesh(src.Name, geom, d.material(prim.Material)))
		d.meshes++
	}
	return nil
}

func (d *gltfDecoder) primitive(prim *gltf.Primitive) (*scene.Geometry, error) {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok || posIdx >= len(d.doc.Accessors) {
		return nil, fmt.Errorf("%w: primitive has no POSITION accessor", ErrInvalidGLTF)
	}
	pos, err := modeler.ReadPosition(d.doc, d.doc.Accessors[posIdx], nil)
	if err != nil {
		return nil, fmt.Errorf("%w: read positions: %v", ErrInvalidGLTF, err)
	}

	var indices []uint32
	if prim.Indices != nil && *prim.Indices < len(d.doc.Accessors) {
		indices, err = modeler.ReadIndices(d.doc, d.doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: read indices: %v", ErrInvalidGLTF, err)
		}
	}

	var normals []float32
	if nIdx, ok := prim.Attributes[gltf.NORMAL]; ok && nIdx < len(d.doc.Accessors) {
		n, err := modeler.ReadNormal(d.doc, d.doc.Accessors[nIdx], nil)
		if err != nil {
			return nil, fmt.Errorf("%w: read normals: %v", ErrInvalidGLTF, err)
		}
		normals = flatten(n)
	}

	geom := scene.NewGeometry(flatten(pos), indices, normals)
	for _, i := range indices {
		if int(i) >= geom.VertexCount() {
			return nil, fmt.Errorf("%w: index %d out of range", ErrInvalidGLTF, i)
		}
	}
	if len(normals) != len(geom.Positions) {
		geom.ComputeVertexNormals()
	}
	return geom, nil
}

func (d *gltfDecoder) material(idx *int) *scene.Material {
	if idx == nil || *idx >= len(d.doc.Materials) {
		if d.pal == nil {
			return nil
		}
		return d.pal.At(d.meshes)
	}
	if m, ok := d.materials[*idx]; ok {
		return m
	}
	src := d.doc.Materials[*idx]
	m := &scene.Material{
		Name:      src.Name,
		Kind:      scene.MaterialShaded,
		Color:     [3]float32{1, 1, 1},
		Metalness: 1,
		Roughness: 1,
	}
	if pbr := src.PBRMetallicRoughness; pbr != nil {
		c := pbr.BaseColorFactorOrDefault()
		m.Color = [3]float32{float32(c[0]), float32(c[1]), float32(c[2])}
		m.Metalness = float32(pbr.MetallicFactorOrDefault())
		m.Roughness = float32(pbr.RoughnessFactorOrDefault())
	}
	d.materials[*idx] = m
	return m
}

func flatten(v [][3]float32) []float32 {
	out := make([]float32, 0, len(v)*3)
	for _, p := range v {
		out = append(out, p[0], p[1], p[2])
	}
	return out
}
