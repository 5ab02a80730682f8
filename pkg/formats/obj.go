package formats

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Faultbox/cadview/pkg/scene"
)

// ErrInvalidOBJ is returned for malformed Wavefront OBJ input.
var ErrInvalidOBJ = errors.New("invalid OBJ")

// OBJObject is one named object of an OBJ file.
type OBJObject struct {
	Name     string
	Geometry *scene.Geometry
}

type objCorner struct {
	v, vn int // zero-based, vn < 0 when absent
}

type objBuilder struct {
	name      string
	positions []float32
	normals   []float32
	indices   []uint32
	seen      map[objCorner]uint32
	missingN  bool
}

func newOBJBuilder(name string) *objBuilder {
	return &objBuilder{name: name, seen: make(map[objCorner]uint32)}
}

func (b *objBuilder) vertex(c objCorner, v, vn [][3]float32) uint32 {
	if idx, ok := b.seen[c]; ok {
		return idx
	}
	idx := uint32(len(b.positions) / 3)
	p := v[c.v]
	b.positions = append(b.positions, p[0], p[1], p[2])
	if c.vn >= 0 {
		n := vn[c.vn]
		b.normals = append(b.normals, n[0], n[1], n[2])
	} else {
		b.normals = append(b.normals, 0, 0, 0)
		b.missingN = true
	}
	b.seen[c] = idx
	return idx
}

func (b *objBuilder) build() *OBJObject {
	if len(b.indices) == 0 {
		return nil
	}
	g := scene.NewGeometry(b.positions, b.indices, b.normals)
	if b.missingN {
		g.ComputeVertexNormals()
	}
	return &OBJObject{Name: b.name, Geometry: g}
}

// DecodeOBJ parses vertex, normal and face statements. Faces with more than
// three corners are fan-triangulated. Each "o" or "g" statement starts a new
// object; texture coordinates and materials are ignored.
func DecodeOBJ(data []byte) ([]*OBJObject, error) {
	var (
		v, vn   [][3]float32
		objects []*OBJObject
		line    int
	)
	cur := newOBJBuilder("")
	flush := func(next string) {
		if o := cur.build(); o != nil {
			objects = append(objects, o)
		}
		cur = newOBJBuilder(next)
	}

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || text[0] == '#' {
			continue
		}
		fields := strings.Fields(text)
		switch fields[0] {
		case "v", "vn":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: %s needs 3 components", ErrInvalidOBJ, line, fields[0])
			}
			p, err := parseVec3(fields[1:4])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidOBJ, line, err)
			}
			if fields[0] == "v" {
				v = append(v, [3]float32{p.X, p.Y, p.Z})
			} else {
				vn = append(vn, [3]float32{p.X, p.Y, p.Z})
			}
		case "o", "g":
			name := ""
			if len(fields) > 1 {
				name = strings.Join(fields[1:], " ")
			}
			if len(cur.indices) == 0 {
				cur.name = name
				continue
			}
			flush(name)
		case "f":
			if len(fields) < 4 {
				return nil, fmt.Errorf("%w: line %d: face needs 3 corners", ErrInvalidOBJ, line)
			}
			corners := make([]uint32, 0, len(fields)-1)
			for _, ref := range fields[1:] {
				c, err := parseOBJCorner(ref, len(v), len(vn))
				if err != nil {
					return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidOBJ, line, err)
				}
				corners = append(corners, cur.vertex(c, v, vn))
			}
			for i := 1; i+1 < len(corners); i++ {
				cur.indices = append(cur.indices, corners[0], corners[i], corners[i+1])
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOBJ, err)
	}
	flush("")
	return objects, nil
}

// parseOBJCorner resolves "v", "v/vt", "v//vn" or "v/vt/vn" references,
// including negative (relative) indices.
func parseOBJCorner(ref string, nv, nvn int) (objCorner, error) {
	parts := strings.Split(ref, "/")
	vi, err := resolveOBJIndex(parts[0], nv)
	if err != nil {
		return objCorner{}, fmt.Errorf("vertex %q: %w", ref, err)
	}
	c := objCorner{v: vi, vn: -1}
	if len(parts) == 3 && parts[2] != "" {
		ni, err := resolveOBJIndex(parts[2], nvn)
		if err != nil {
			return objCorner{}, fmt.Errorf("normal %q: %w", ref, err)
		}
		c.vn = ni
	}
	return c, nil
}

func resolveOBJIndex(s string, count int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		i += count
	} else {
		i--
	}
	if i < 0 || i >= count {
		return 0, fmt.Errorf("index out of range (%d defined)", count)
	}
	return i, nil
}
