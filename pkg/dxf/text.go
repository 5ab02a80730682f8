package dxf

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rpaloschi/dxf-go/core"
	"github.com/rpaloschi/dxf-go/sections"
	xenc "golang.org/x/text/encoding"

	"github.com/Faultbox/cadview/pkg/encoding"
)

const binarySentinel = "AutoCAD Binary DXF"

var endSection = core.NewTag(0, core.NewStringValue("ENDSEC"))

// TextParser parses ASCII DXF.
type TextParser struct{}

// Parse implements the drawing parser used by the ingestion pipeline.
func (TextParser) Parse(data []byte) (*Document, error) {
	if bytes.HasPrefix(data, []byte(binarySentinel)) {
		return nil, fmt.Errorf("%w: binary DXF is not supported", ErrMalformed)
	}
	return Parse(bytes.NewReader(data))
}

// Parse reads the tag stream and collects the ENTITIES section.
// POLYLINE entities absorb the VERTEX records that follow them up to SEQEND.
// Strings are decoded from $DWGCODEPAGE for drawings older than AC1021,
// which are stored in UTF-8.
func Parse(r io.Reader) (*Document, error) {
	tags, err := readTags(r)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformed)
	}

	b := &builder{doc: &Document{}}
	sawEnts := false
	for i := 0; i < len(tags); {
		start := tags[i]
		if isMarker(start, "EOF") {
			break
		}
		if !isMarker(start, "SECTION") {
			i++
			continue
		}
		end := sectionEnd(tags, i+1)
		sec := tags[i:end]
		i = end
		if end < len(tags) && isMarker(tags[end], "ENDSEC") {
			i++
		}
		if len(sec) < 2 || sec[1].Code != 2 {
			continue
		}

		body := sec[2:]
		switch strings.ToUpper(sec[1].Value.ToString()) {
		case "HEADER":
			full := append(append(core.TagSlice{}, sec...), endSection)
			b.header(sections.NewHeaderSection(full))
		case "ENTITIES":
			sawEnts = true
			b.entities(body)
		}
	}
	if !sawEnts {
		return nil, ErrNoEntities
	}
	return b.doc, nil
}

// readTags drains the tag stream. Pairs whose group code the reader has no
// value type for are dropped.
func readTags(r io.Reader) (core.TagSlice, error) {
	next := core.Tagger(r)
	var tags core.TagSlice
	for {
		tag, err := nextTag(next)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if tag == nil {
			continue
		}
		if *tag == core.NoneTag {
			return tags, nil
		}
		tags = append(tags, tag)
	}
}

// nextTag returns a nil tag for unknown group codes. The tagger has
// already consumed both lines of the pair when it fails on them.
func nextTag(next core.NextTagFunction) (tag *core.Tag, err error) {
	defer func() {
		if recover() != nil {
			tag, err = nil, nil
		}
	}()
	return next()
}

func isMarker(t *core.Tag, name string) bool {
	if t.Code != 0 {
		return false
	}
	s, ok := core.AsString(t.Value)
	return ok && strings.EqualFold(s, name)
}

// sectionEnd returns the index of the ENDSEC or EOF closing the section
// that starts before i, or len(tags) for a truncated file.
func sectionEnd(tags core.TagSlice, i int) int {
	for ; i < len(tags); i++ {
		if isMarker(tags[i], "ENDSEC") || isMarker(tags[i], "EOF") {
			return i
		}
	}
	return i
}

type builder struct {
	doc  *Document
	cur  *Entity
	poly *Entity // open POLYLINE collecting VERTEX records
	enc  xenc.Encoding
}

func (b *builder) header(h *sections.HeaderSection) {
	b.doc.Version = strings.ToUpper(headerString(h, "$ACADVER"))
	b.doc.Codepage = headerString(h, "$DWGCODEPAGE")
	b.enc = nil
	if b.doc.Version < "AC1021" {
		b.enc = encoding.ForCodepage(b.doc.Codepage)
	}
}

func headerString(h *sections.HeaderSection, key string) string {
	if tags := h.Get(key); len(tags) > 0 {
		return strings.TrimSpace(tags[0].Value.ToString())
	}
	return ""
}

func (b *builder) entities(body core.TagSlice) {
	for _, t := range body {
		if t.Code == 0 {
			b.begin(t.Value.ToString())
			continue
		}
		b.field(t.Code, t.Value)
	}
	b.flush()
}

func (b *builder) text(s string) string {
	return encoding.UnescapeUnicode(encoding.Decode(b.enc, s))
}

func (b *builder) begin(kind string) {
	b.finish()
	kind = strings.ToUpper(kind)
	switch kind {
	case "SEQEND":
		b.closePoly()
		return
	case "VERTEX":
	default:
		b.closePoly()
	}
	e := NewEntity(kind)
	b.cur = &e
}

// finish completes the entity being filled.
func (b *builder) finish() {
	e := b.cur
	if e == nil {
		return
	}
	b.cur = nil

	switch e.Type {
	case "VERTEX":
		if b.poly == nil {
			return
		}
		if p, ok := e.Point("location"); ok {
			pts, _ := b.poly.Fields["vertices"].([]Point)
			b.poly.Fields["vertices"] = append(pts, p)
		}
	case "POLYLINE":
		if _, ok := e.Fields["vertices"]; !ok {
			e.Fields["vertices"] = []Point{}
		}
		b.poly = e
	case "LWPOLYLINE":
		if z, ok := e.Float("elevation"); ok {
			pts, _ := e.Fields["vertices"].([]Point)
			for i := range pts {
				pts[i].Z = z
			}
		}
		b.doc.Entities = append(b.doc.Entities, *e)
	default:
		b.doc.Entities = append(b.doc.Entities, *e)
	}
}

func (b *builder) closePoly() {
	if b.poly != nil {
		b.doc.Entities = append(b.doc.Entities, *b.poly)
		b.poly = nil
	}
}

func (b *builder) flush() {
	b.finish()
	b.closePoly()
}

func (b *builder) field(code int, v core.DataType) {
	e := b.cur
	if e == nil {
		return
	}
	if code == 8 {
		e.Layer = b.text(v.ToString())
		return
	}

	if e.Type == "LWPOLYLINE" && (code == 10 || code == 20) {
		pts, _ := e.Fields["vertices"].([]Point)
		f, _ := number(v)
		if code == 10 {
			pts = append(pts, Point{X: f})
		} else if len(pts) > 0 {
			pts[len(pts)-1].Y = f
		}
		e.Fields["vertices"] = pts
		return
	}

	name := fieldName(e.Type, code)
	if name == "" {
		return
	}
	if f, ok := number(v); ok {
		e.Fields[name] = f
	} else {
		e.Fields[name] = b.text(v.ToString())
	}
}

func number(v core.DataType) (float64, bool) {
	switch x := v.Value().(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	}
	return 0, false
}

// fieldName maps a group code to the flat field name used for kind.
func fieldName(kind string, code int) string {
	axis := ""
	switch code {
	case 10, 11, 12:
		axis = "X"
	case 20, 21, 22:
		axis = "Y"
	case 30, 31, 32:
		axis = "Z"
	}
	if axis != "" {
		var base string
		switch code % 10 {
		case 0:
			switch kind {
			case "LINE":
				base = "start"
			case "CIRCLE", "ARC", "ELLIPSE":
				base = "center"
			case "VERTEX":
				base = "location"
			default:
				base = "point"
			}
		case 1:
			switch kind {
			case "LINE":
				base = "end"
			case "ELLIPSE":
				base = "majorAxisEndPoint"
			default:
				base = "point2"
			}
		default:
			base = "point3"
		}
		return base + axis
	}

	switch code {
	case 38:
		return "elevation"
	case 40:
		switch kind {
		case "ELLIPSE":
			return "axisRatio"
		default:
			return "radius"
		}
	case 41:
		if kind == "ELLIPSE" {
			return "startAngle"
		}
	case 42:
		if kind == "ELLIPSE" {
			return "endAngle"
		}
	case 50:
		return "startAngle"
	case 51:
		return "endAngle"
	case 62:
		return "color"
	case 70:
		return "flags"
	}
	return ""
}
