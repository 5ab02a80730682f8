package formats

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Faultbox/cadview/pkg/scene"
)

// DecodeMesh decodes a pass-through mesh file into a group without
// normalizing it. ext is a Detection.Ext of KindMesh.
func DecodeMesh(ext, name string, data []byte, pal *scene.Palette) (*scene.Group, error) {
	switch ext {
	case "glb", "gltf":
		return DecodeGLTF(data, pal)
	case "stl":
		geom, err := DecodeSTL(data)
		if err != nil {
			return nil, err
		}
		root := scene.NewGroup(name)
		root.Add(scene.NewMesh(baseName(name), geom, paletteAt(pal, 0)))
		return root, nil
	case "obj":
		objects, err := DecodeOBJ(data)
		if err != nil {
			return nil, err
		}
		root := scene.NewGroup(name)
		for i, o := range objects {
			meshName := o.Name
			if meshName == "" {
				meshName = fmt.Sprintf("%s_%d", baseName(name), i)
			}
			root.Add(scene.NewMesh(meshName, o.Geometry, paletteAt(pal, i)))
		}
		return root, nil
	default:
		return nil, fmt.Errorf("%w .%s: not a mesh format", ErrUnsupported, ext)
	}
}

func paletteAt(pal *scene.Palette, i int) *scene.Material {
	if pal == nil {
		return nil
	}
	return pal.At(i)
}

func baseName(name string) string {
	base := filepath.Base(name)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
