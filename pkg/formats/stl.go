package formats

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/chewxy/math32"

	"github.com/Faultbox/cadview/pkg/math"
	"github.com/Faultbox/cadview/pkg/scene"
)

// STL errors.
var (
	ErrTruncatedSTL = errors.New("truncated binary STL")
	ErrInvalidSTL   = errors.New("invalid STL")
)

const (
	stlHeaderSize = 80
	stlFacetSize  = 50 // normal + 3 vertices + attribute word
)

// DecodeSTL parses binary or ASCII STL into non-indexed geometry with flat
// per-facet normals.
func DecodeSTL(data []byte) (*scene.Geometry, error) {
	if len(data) >= stlHeaderSize+4 {
		count := binary.LittleEndian.Uint32(data[stlHeaderSize:])
		if int64(stlHeaderSize+4)+int64(count)*stlFacetSize == int64(len(data)) {
			return decodeBinarySTL(data, int(count))
		}
	}
	if bytes.HasPrefix(bytes.TrimSpace(data[:min(len(data), 512)]), []byte("solid")) {
		return decodeASCIISTL(data)
	}
	if len(data) >= stlHeaderSize+4 {
		return nil, ErrTruncatedSTL
	}
	return nil, fmt.Errorf("%w: %d bytes is too short", ErrInvalidSTL, len(data))
}

func decodeBinarySTL(data []byte, count int) (*scene.Geometry, error) {
	positions := make([]float32, 0, count*9)
	normals := make([]float32, 0, count*9)

	off := stlHeaderSize + 4
	f := func(i int) float32 {
		return math32.Float32frombits(binary.LittleEndian.Uint32(data[off+i*4:]))
	}
	for i := 0; i < count; i++ {
		n := math.Vec3{X: f(0), Y: f(1), Z: f(2)}
		var tri [3]math.Vec3
		for v := 0; v < 3; v++ {
			tri[v] = math.Vec3{X: f(3 + v*3), Y: f(4 + v*3), Z: f(5 + v*3)}
		}
		positions, normals = appendFacet(positions, normals, n, tri)
		off += stlFacetSize
	}
	return scene.NewGeometry(positions, nil, normals), nil
}

func decodeASCIISTL(data []byte) (*scene.Geometry, error) {
	var (
		positions, normals []float32
		normal             math.Vec3
		tri                [3]math.Vec3
		corner             int
		line               int
	)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		switch strings.ToLower(fields[0]) {
		case "facet":
			if len(fields) < 5 {
				return nil, fmt.Errorf("%w: line %d: short facet normal", ErrInvalidSTL, line)
			}
			v, err := parseVec3(fields[2:5])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidSTL, line, err)
			}
			normal, corner = v, 0
		case "vertex":
			if len(fields) < 4 || corner > 2 {
				return nil, fmt.Errorf("%w: line %d: bad vertex", ErrInvalidSTL, line)
			}
			v, err := parseVec3(fields[1:4])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidSTL, line, err)
			}
			tri[corner] = v
			corner++
		case "endfacet":
			if corner != 3 {
				return nil, fmt.Errorf("%w: line %d: facet has %d vertices", ErrInvalidSTL, line, corner)
			}
			positions, normals = appendFacet(positions, normals, normal, tri)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSTL, err)
	}
	return scene.NewGeometry(positions, nil, normals), nil
}

// appendFacet adds one triangle. Exporters often write zero normals, so a
// degenerate normal is recomputed from the winding.
func appendFacet(positions, normals []float32, n math.Vec3, tri [3]math.Vec3) ([]float32, []float32) {
	if n.Length() < 1e-6 {
		n = tri[1].Sub(tri[0]).Cross(tri[2].Sub(tri[0])).Normalize()
	}
	for _, v := range tri {
		positions = append(positions, v.X, v.Y, v.Z)
		normals = append(normals, n.X, n.Y, n.Z)
	}
	return positions, normals
}

func parseVec3(fields []string) (math.Vec3, error) {
	var out [3]float32
	for i, s := range fields[:3] {
		v, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return math.Vec3{}, err
		}
		out[i] = float32(v)
	}
	return math.Vec3{X: out[0], Y: out[1], Z: out[2]}, nil
}
