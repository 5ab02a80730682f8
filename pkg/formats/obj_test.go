package formats

import (
	"errors"
	"testing"

	"github.com/Faultbox/cadview/pkg/scene"
)

func TestDecodeOBJ(t *testing.T) {
	src := `# quad and triangle
o plate
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vn 0 0 1
f 1//1 2//1 3//1 4//1
o wedge
v 0 0 1
f -1 1 2
`
	objects, err := DecodeOBJ([]byte(src))
	if err != nil {
		t.Fatalf("DecodeOBJ failed: %v", err)
	}
	if len(objects) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(objects))
	}

	plate := objects[0]
	if plate.Name != "plate" {
		t.Errorf("expected name 'plate', got %q", plate.Name)
	}
	if plate.Geometry.VertexCount() != 4 || plate.Geometry.TriangleCount() != 2 {
		t.Errorf("plate: %d vertices, %d triangles", plate.Geometry.VertexCount(), plate.Geometry.TriangleCount())
	}

	wedge := objects[1]
	if wedge.Geometry.TriangleCount() != 1 {
		t.Errorf("wedge: expected 1 triangle, got %d", wedge.Geometry.TriangleCount())
	}
	if len(wedge.Geometry.Normals) != 9 {
		t.Errorf("wedge normals should be computed, got %d components", len(wedge.Geometry.Normals))
	}
}

func TestDecodeOBJ_BadIndex(t *testing.T) {
	_, err := DecodeOBJ([]byte("v 0 0 0\nv 1 0 0\nf 1 2 3\n"))
	if !errors.Is(err, ErrInvalidOBJ) {
		t.Errorf("expected ErrInvalidOBJ, got %v", err)
	}
}

func TestDecodeMesh_PaletteAssignment(t *testing.T) {
	src := "v 0 0 0\nv 1 0 0\nv 0 1 0\no a\nf 1 2 3\no b\nf 1 2 3\no c\nf 1 2 3\n"
	pal := scene.NewPalette()

	root, err := DecodeMesh("obj", "parts.obj", []byte(src), pal)
	if err != nil {
		t.Fatalf("DecodeMesh failed: %v", err)
	}
	if root.Len() != 3 {
		t.Fatalf("expected 3 meshes, got %d", root.Len())
	}
	for i, n := range root.Children() {
		m := n.(*scene.Mesh)
		if m.Material != pal.At(i) {
			t.Errorf("mesh %d: material is not palette entry %d", i, i)
		}
	}
}
