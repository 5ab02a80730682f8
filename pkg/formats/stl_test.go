package formats

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

// createTestSTL builds a binary STL with count facets lying in the XY plane.
func createTestSTL(count int) []byte {
	buf := new(bytes.Buffer)
	buf.Write(make([]byte, stlHeaderSize))
	binary.Write(buf, binary.LittleEndian, uint32(count))
	for i := 0; i < count; i++ {
		x := float32(i)
		facet := []float32{
			0, 0, 0, // normal left zero for recomputation
			x, 0, 0,
			x + 1, 0, 0,
			x, 1, 0,
		}
		binary.Write(buf, binary.LittleEndian, facet)
		binary.Write(buf, binary.LittleEndian, uint16(0))
	}
	return buf.Bytes()
}

func TestDecodeSTL_Binary(t *testing.T) {
	geom, err := DecodeSTL(createTestSTL(3))
	if err != nil {
		t.Fatalf("DecodeSTL failed: %v", err)
	}
	if geom.VertexCount() != 9 || geom.TriangleCount() != 3 {
		t.Errorf("got %d vertices, %d triangles", geom.VertexCount(), geom.TriangleCount())
	}
	if geom.Normals[2] != 1 {
		t.Errorf("recomputed normal Z = %v, want 1", geom.Normals[2])
	}
}

func TestDecodeSTL_BinaryWithSolidHeader(t *testing.T) {
	data := createTestSTL(1)
	copy(data, "solid exported-by-cad")

	geom, err := DecodeSTL(data)
	if err != nil {
		t.Fatalf("DecodeSTL failed: %v", err)
	}
	if geom.TriangleCount() != 1 {
		t.Errorf("expected 1 triangle, got %d", geom.TriangleCount())
	}
}

func TestDecodeSTL_ASCII(t *testing.T) {
	src := `solid cube
  facet normal 0 0 1
    outer loop
      vertex 0 0 0
      vertex 1 0 0
      vertex 0 1 0
    endloop
  endfacet
  facet normal 0 0 1
    outer loop
      vertex 1 0 0
      vertex 1 1 0
      vertex 0 1 0
    endloop
  endfacet
endsolid cube
`
	geom, err := DecodeSTL([]byte(src))
	if err != nil {
		t.Fatalf("DecodeSTL failed: %v", err)
	}
	if geom.TriangleCount() != 2 {
		t.Errorf("expected 2 triangles, got %d", geom.TriangleCount())
	}
}

func TestDecodeSTL_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"short", []byte("abc"), ErrInvalidSTL},
		{"truncated", createTestSTL(4)[:150], ErrTruncatedSTL},
		{"bad vertex", []byte("solid x\nfacet normal 0 0 1\nvertex a b c\n"), ErrInvalidSTL},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeSTL(tt.data); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}
