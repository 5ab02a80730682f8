// Package formats classifies CAD and mesh files by extension and decodes the
// polygon-mesh formats (glTF/GLB, STL, OBJ) that need no geometry kernel.
package formats

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Kind is the ingestion route for a file.
type Kind int

const (
	KindUnsupported Kind = iota
	KindMesh             // pass-through polygon mesh
	KindStep             // STEP family, needs the geometry kernel
	KindDXF              // DXF text drawing
	KindDWG              // DWG, converted to DXF first
)

// String returns a short lowercase name for the kind.
func (k Kind) String() string {
	switch k {
	case KindMesh:
		return "mesh"
	case KindStep:
		return "step"
	case KindDXF:
		return "dxf"
	case KindDWG:
		return "dwg"
	default:
		return "unsupported"
	}
}

// Detection is the result of classifying a file name.
type Detection struct {
	Kind Kind
	Ext  string // lowercase extension without the dot, e.g. "glb"
}

// ErrUnsupported is returned for extensions outside the accepted set.
var ErrUnsupported = errors.New("unsupported file format")

// Accepted lists the accepted extensions in display order.
var Accepted = []string{".glb", ".gltf", ".stl", ".obj", ".step", ".stp", ".stpz", ".dxf", ".dwg"}

var kinds = map[string]Kind{
	"glb":  KindMesh,
	"gltf": KindMesh,
	"stl":  KindMesh,
	"obj":  KindMesh,
	"step": KindStep,
	"stp":  KindStep,
	"stpz": KindStep,
	"dxf":  KindDXF,
	"dwg":  KindDWG,
}

// Detect classifies name by its extension, case-insensitively.
func Detect(name string) (Detection, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	kind, ok := kinds[ext]
	if !ok {
		shown := "." + ext
		if ext == "" {
			shown = "(none)"
		}
		return Detection{Kind: KindUnsupported, Ext: ext},
			fmt.Errorf("%w %s; accepted: %s", ErrUnsupported, shown, strings.Join(Accepted, ", "))
	}
	return Detection{Kind: kind, Ext: ext}, nil
}
