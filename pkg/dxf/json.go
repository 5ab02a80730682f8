package dxf

import (
	"encoding/json"
	"fmt"
	"strings"
)

// JSONParser reads drawings already converted to JSON by another toolchain:
// {"entities": [{"type": "LINE", "layer": "0", "vertices": [...]}, ...]}.
type JSONParser struct{}

// Parse implements the drawing parser used by the ingestion pipeline.
func (JSONParser) Parse(data []byte) (*Document, error) {
	return DecodeJSON(data)
}

// DecodeJSON decodes a JSON drawing. A document without an "entities" key
// is rejected; an empty list is valid.
func DecodeJSON(data []byte) (*Document, error) {
	var raw struct {
		Entities *[]map[string]any `json:"entities"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if raw.Entities == nil {
		return nil, ErrNoEntities
	}

	doc := &Document{Entities: make([]Entity, 0, len(*raw.Entities))}
	for _, fields := range *raw.Entities {
		kind, _ := fields["type"].(string)
		layer, _ := fields["layer"].(string)
		delete(fields, "type")
		delete(fields, "layer")
		doc.Entities = append(doc.Entities, Entity{
			Type:   strings.ToUpper(kind),
			Layer:  layer,
			Fields: fields,
		})
	}
	return doc, nil
}
