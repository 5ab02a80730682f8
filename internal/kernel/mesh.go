package kernel

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrInvalidMesh is returned by MeshRecord.Validate.
var ErrInvalidMesh = errors.New("invalid mesh record")

// MeshRecord is one mesh produced by the raw-mesh entry point.
type MeshRecord struct {
	Name      string
	Positions []float32 // 3 components per vertex
	Indices   []uint32  // optional triangle triples
	Normals   []float32 // optional, 3 components per vertex
}

// VertexCount returns the number of vertices.
func (m MeshRecord) VertexCount() int {
	return len(m.Positions) / 3
}

// Validate checks buffer shapes and index bounds.
func (m MeshRecord) Validate() error {
	if len(m.Positions) == 0 {
		return fmt.Errorf("%w %q: no positions", ErrInvalidMesh, m.Name)
	}
	if len(m.Positions)%3 != 0 {
		return fmt.Errorf("%w %q: %d position components", ErrInvalidMesh, m.Name, len(m.Positions))
	}
	if m.Normals != nil && len(m.Normals) != len(m.Positions) {
		return fmt.Errorf("%w %q: %d normal components for %d vertices", ErrInvalidMesh, m.Name, len(m.Normals), m.VertexCount())
	}
	if len(m.Indices)%3 != 0 {
		return fmt.Errorf("%w %q: %d indices", ErrInvalidMesh, m.Name, len(m.Indices))
	}
	n := uint32(m.VertexCount())
	for _, idx := range m.Indices {
		if idx >= n {
			return fmt.Errorf("%w %q: index %d >= vertex count %d", ErrInvalidMesh, m.Name, idx, n)
		}
	}
	return nil
}

type floatArray struct {
	Array []float32 `json:"array"`
}

type indexArray struct {
	Array []uint32 `json:"array"`
}

type meshResult struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Meshes  []struct {
		Name       string `json:"name"`
		Attributes struct {
			Position floatArray  `json:"position"`
			Normal   *floatArray `json:"normal"`
		} `json:"attributes"`
		Index *indexArray `json:"index"`
	} `json:"meshes"`
}

// DecodeMeshes parses the raw-mesh result document:
//
//	{"success": true, "meshes": [{"name": "...",
//	  "attributes": {"position": {"array": [...]}, "normal": {"array": [...]}},
//	  "index": {"array": [...]}}]}
//
// Records are returned unvalidated.
func DecodeMeshes(data []byte) ([]MeshRecord, error) {
	var res meshResult
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("%w: decode mesh result: %v", ErrCallFailed, err)
	}
	if res.Success != nil && !*res.Success {
		reason := res.Error
		if reason == "" {
			reason = "kernel reported failure"
		}
		return nil, fmt.Errorf("%w: %s", ErrCallFailed, reason)
	}

	out := make([]MeshRecord, 0, len(res.Meshes))
	for _, m := range res.Meshes {
		rec := MeshRecord{Name: m.Name, Positions: m.Attributes.Position.Array}
		if m.Attributes.Normal != nil && len(m.Attributes.Normal.Array) > 0 {
			rec.Normals = m.Attributes.Normal.Array
		}
		if m.Index != nil && len(m.Index.Array) > 0 {
			rec.Indices = m.Index.Array
		}
		out = append(out, rec)
	}
	return out, nil
}
