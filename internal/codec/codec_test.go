package codec

import (
	"encoding/json"
	"testing"

	"github.com/minigames/smartsync/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	in := core.Descriptor{
		ID:       5,
		Bundle:   "B",
		Asset:    "A",
		Position: core.Vec3{X: 1, Y: 2, Z: 3},
	}

	s, err := Encode(in)
	require.NoError(t, err)

	out, err := Decode(s)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncodeDecode_AllFields(t *testing.T) {
	in := core.Descriptor{
		ID:                  42,
		Bundle:              "props",
		Asset:               "Barrel",
		Position:            core.Vec3{X: -1.5, Y: 0.25, Z: 1000},
		Rotation:            core.YawQuat(1.2),
		Damage:              7,
		SendingProperties:   core.PropertyDamage,
		ReceivingProperties: core.PropertyPoint | core.PropertyDestroy,
		Destroyed:           true,
		Score:               12,
		Rev:                 3,
		Writer:              "p2",
	}

	s, err := Encode(in)
	require.NoError(t, err)
	out, err := Decode([]byte(s))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestEncode_WireFieldNames(t *testing.T) {
	s, err := Encode(core.Descriptor{ID: 1, Bundle: "b", Asset: "a", Position: core.Vec3{X: 1, Y: 2, Z: 3}})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &fields))
	for _, k := range []string{"id", "bundle", "asset", "posx", "posy", "posz", "rotx", "roty", "rotz", "rotw", "damage"} {
		assert.Contains(t, fields, k)
	}
	assert.NotContains(t, fields, "rev", "zero revision is omitted")
}

func TestDecode_PartialRecordDefaults(t *testing.T) {
	d, err := Decode(`{"id":7,"damage":5}`)
	require.NoError(t, err)
	assert.Equal(t, int32(7), d.ID)
	assert.Equal(t, int32(5), d.Damage)
	assert.False(t, d.Creatable())
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"not json", "{nope"},
		{"missing id", `{"bundle":"b","asset":"a"}`},
		{"id not integer", `{"id":"x"}`},
		{"fractional id", `{"id":1.5}`},
		{"bundle wrong type", `{"id":1,"bundle":3}`},
		{"json array", `[1,2,3]`},
		{"unsupported value type", 12},
		{"map missing id", map[string]any{"bundle": "b"}},
		{"map fractional id", map[string]any{"id": 1.5}},
		{"nil", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.value)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedDescriptor)
		})
	}
}

func TestDecode_RawMessage(t *testing.T) {
	d, err := Decode(json.RawMessage(`{"id":3,"bundle":"b","asset":"a"}`))
	require.NoError(t, err)
	assert.Equal(t, "asset_3", d.Key())
	assert.True(t, d.Creatable())
}

func TestDecode_Map(t *testing.T) {
	// Numbers arrive as float64 after a generic JSON decode.
	d, err := Decode(map[string]any{
		"id":        float64(7),
		"bundle":    "props",
		"asset":     "rock",
		"damage":    float64(10),
		"destroyed": true,
		"rev":       float64(2),
		"writer":    "host",
	})
	require.NoError(t, err)
	assert.Equal(t, "asset_7", d.Key())
	assert.Equal(t, core.Template{Bundle: "props", Asset: "rock"}, d.Template())
	assert.Equal(t, int32(10), d.Damage)
	assert.True(t, d.Destroyed)
	assert.Equal(t, uint64(2), d.Rev)
	assert.Equal(t, "host", d.Writer)
}
