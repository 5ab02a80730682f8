// Package dxf reads DXF drawings into a generic entity list.
//
// Entities are tagged records: a type discriminator plus loosely typed
// fields. Two coordinate naming schemes are accepted by the accessors:
// nested points ({"start": {"x": 0, "y": 0, "z": 0}}) and flat fields
// ("startX", "startY", "startZ"). The text parser emits the flat scheme;
// JSON documents from other toolchains usually carry the nested one.
package dxf

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Parse errors.
var (
	ErrMalformed  = errors.New("malformed DXF")
	ErrNoEntities = fmt.Errorf("%w: no ENTITIES section", ErrMalformed)
)

// Point is a drawing coordinate. Drawings keep float64 precision; callers
// narrow after recentering.
type Point struct {
	X, Y, Z float64
}

// Document is a parsed drawing.
type Document struct {
	Version  string // $ACADVER, e.g. "AC1015"
	Codepage string // $DWGCODEPAGE, e.g. "ANSI_1252"
	Entities []Entity
}

// Entity is one drawing entity.
type Entity struct {
	Type   string // upper-case kind, e.g. "LINE"
	Layer  string
	Fields map[string]any
}

// NewEntity creates an entity with an empty field set.
func NewEntity(kind string) Entity {
	return Entity{Type: strings.ToUpper(kind), Fields: make(map[string]any)}
}

// Float returns a numeric field.
func (e Entity) Float(name string) (float64, bool) {
	return toFloat(e.Fields[name])
}

// Point returns a coordinate field in either naming scheme. Missing Z
// components default to zero; X and Y are required.
func (e Entity) Point(name string) (Point, bool) {
	if v, ok := e.Fields[name]; ok {
		if p, ok := toPoint(v); ok {
			return p, true
		}
	}
	x, okX := toFloat(e.Fields[name+"X"])
	y, okY := toFloat(e.Fields[name+"Y"])
	if !okX || !okY {
		return Point{}, false
	}
	z, _ := toFloat(e.Fields[name+"Z"])
	return Point{X: x, Y: y, Z: z}, true
}

// Points returns a vertex list field. Entries that are not coordinates make
// the whole list invalid.
func (e Entity) Points(name string) ([]Point, bool) {
	switch v := e.Fields[name].(type) {
	case []Point:
		return v, true
	case []any:
		out := make([]Point, 0, len(v))
		for _, item := range v {
			p, ok := toPoint(item)
			if !ok {
				return nil, false
			}
			out = append(out, p)
		}
		return out, true
	}
	return nil, false
}

// Bool returns a boolean field. Numeric values are true when non-zero.
func (e Entity) Bool(name string) (bool, bool) {
	switch v := e.Fields[name].(type) {
	case bool:
		return v, true
	case nil:
		return false, false
	}
	f, ok := toFloat(e.Fields[name])
	return f != 0, ok
}

// Closed reports whether a polyline is closed: a "shape" or "closed" flag,
// or bit 1 of its DXF flags word.
func (e Entity) Closed() bool {
	for _, name := range []string{"shape", "closed"} {
		if b, ok := e.Bool(name); ok {
			return b
		}
	}
	if f, ok := e.Float("flags"); ok {
		return int(f)&1 != 0
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func toPoint(v any) (Point, bool) {
	switch p := v.(type) {
	case Point:
		return p, true
	case *Point:
		if p == nil {
			return Point{}, false
		}
		return *p, true
	case map[string]any:
		x, okX := toFloat(p["x"])
		y, okY := toFloat(p["y"])
		if !okX || !okY {
			return Point{}, false
		}
		z, _ := toFloat(p["z"])
		return Point{X: x, Y: y, Z: z}, true
	case []any:
		if len(p) < 2 {
			return Point{}, false
		}
		x, okX := toFloat(p[0])
		y, okY := toFloat(p[1])
		if !okX || !okY {
			return Point{}, false
		}
		var z float64
		if len(p) > 2 {
			z, _ = toFloat(p[2])
		}
		return Point{X: x, Y: y, Z: z}, true
	}
	return Point{}, false
}
