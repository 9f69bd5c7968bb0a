// Package codec converts smart object descriptors to and from the flat JSON
// record stored in the room property table.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/minigames/smartsync/pkg/core"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrMalformedDescriptor is returned when a property value cannot be read as a descriptor.
var ErrMalformedDescriptor = errors.New("malformed descriptor")

// record is the wire layout. Field names are shared with the other clients in
// the room and must not change.
type record struct {
	ID     int32  `json:"id"`
	Bundle string `json:"bundle"`
	Asset  string `json:"asset"`

	PosX float32 `json:"posx"`
	PosY float32 `json:"posy"`
	PosZ float32 `json:"posz"`
	RotX float32 `json:"rotx"`
	RotY float32 `json:"roty"`
	RotZ float32 `json:"rotz"`
	RotW float32 `json:"rotw"`

	Damage              int32 `json:"damage"`
	SendingProperties   int32 `json:"sendingProperties"`
	ReceivingProperties int32 `json:"receivingProperties"`
	Destroyed           bool  `json:"destroyed"`
	Score               int32 `json:"score"`

	Rev    uint64 `json:"rev,omitempty"`
	Writer string `json:"writer,omitempty"`
}

const schemaURL = "smartsync://descriptor.schema.json"

const schemaSource = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id"],
  "properties": {
    "id": {"type": "integer", "minimum": -2147483648, "maximum": 2147483647},
    "bundle": {"type": "string"},
    "asset": {"type": "string"},
    "posx": {"type": "number"},
    "posy": {"type": "number"},
    "posz": {"type": "number"},
    "rotx": {"type": "number"},
    "roty": {"type": "number"},
    "rotz": {"type": "number"},
    "rotw": {"type": "number"},
    "damage": {"type": "integer"},
    "sendingProperties": {"type": "integer"},
    "receivingProperties": {"type": "integer"},
    "destroyed": {"type": "boolean"},
    "score": {"type": "integer"},
    "rev": {"type": "integer", "minimum": 0},
    "writer": {"type": "string"}
  }
}`

var schema = jsonschema.MustCompileString(schemaURL, schemaSource)

// Encode serializes d into its wire form.
func Encode(d core.Descriptor) (string, error) {
	data, err := json.Marshal(toRecord(d))
	if err != nil {
		return "", fmt.Errorf("encode descriptor %d: %w", d.ID, err)
	}
	return string(data), nil
}

// Decode parses a property table value. Accepted value types are string,
// []byte, json.RawMessage and map[string]any, the last being a record that a
// transport already decoded as a JSON object.
func Decode(value any) (core.Descriptor, error) {
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case json.RawMessage:
		raw = v
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return core.Descriptor{}, fmt.Errorf("%w: %v", ErrMalformedDescriptor, err)
		}
		raw = data
	default:
		return core.Descriptor{}, fmt.Errorf("%w: unexpected value type %T", ErrMalformedDescriptor, value)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return core.Descriptor{}, fmt.Errorf("%w: %v", ErrMalformedDescriptor, err)
	}
	if err := schema.Validate(doc); err != nil {
		return core.Descriptor{}, fmt.Errorf("%w: %v", ErrMalformedDescriptor, err)
	}

	var r record
	if err := json.Unmarshal(raw, &r); err != nil {
		return core.Descriptor{}, fmt.Errorf("%w: %v", ErrMalformedDescriptor, err)
	}
	return fromRecord(r), nil
}

func toRecord(d core.Descriptor) record {
	return record{
		ID:                  d.ID,
		Bundle:              d.Bundle,
		Asset:               d.Asset,
		PosX:                d.Position.X,
		PosY:                d.Position.Y,
		PosZ:                d.Position.Z,
		RotX:                d.Rotation.X,
		RotY:                d.Rotation.Y,
		RotZ:                d.Rotation.Z,
		RotW:                d.Rotation.W,
		Damage:              d.Damage,
		SendingProperties:   d.SendingProperties,
		ReceivingProperties: d.ReceivingProperties,
		Destroyed:           d.Destroyed,
		Score:               d.Score,
		Rev:                 d.Rev,
		Writer:              d.Writer,
	}
}

func fromRecord(r record) core.Descriptor {
	return core.Descriptor{
		ID:                  r.ID,
		Bundle:              r.Bundle,
		Asset:               r.Asset,
		Position:            core.Vec3{X: r.PosX, Y: r.PosY, Z: r.PosZ},
		Rotation:            core.Quat{X: r.RotX, Y: r.RotY, Z: r.RotZ, W: r.RotW},
		Damage:              r.Damage,
		SendingProperties:   r.SendingProperties,
		ReceivingProperties: r.ReceivingProperties,
		Destroyed:           r.Destroyed,
		Score:               r.Score,
		Rev:                 r.Rev,
		Writer:              r.Writer,
	}
}
