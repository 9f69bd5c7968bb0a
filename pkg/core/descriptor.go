// pkg/core/descriptor.go
package core

// Descriptor is the shared snapshot of one smart object. It is published under
// its Key in the room property table and applied on every participant.
//
// Rev and Writer order successive writes of the same key: a higher Rev wins,
// equal revisions are broken by the lexically greater Writer.
type Descriptor struct {
	ID       int32
	Bundle   string
	Asset    string
	Position Vec3
	Rotation Quat

	Damage              int32
	SendingProperties   int32
	ReceivingProperties int32
	Destroyed           bool
	Score               int32

	Rev    uint64
	Writer string
}

// Key returns the property table key of the descriptor.
func (d Descriptor) Key() string {
	return Key(d.ID)
}

// Template returns the bundle/asset pair the descriptor is built from.
func (d Descriptor) Template() Template {
	return Template{Bundle: d.Bundle, Asset: d.Asset}
}

// Creatable reports whether the descriptor carries enough to build a new object.
func (d Descriptor) Creatable() bool {
	return !d.Template().Empty()
}

// Versioned reports whether d carries a revision. Peers that do not stamp
// their writes send descriptors without one.
func (d Descriptor) Versioned() bool {
	return d.Rev != 0 || d.Writer != ""
}

// NewerThan reports whether d should replace other for the same key.
func (d Descriptor) NewerThan(other Descriptor) bool {
	if d.Rev != other.Rev {
		return d.Rev > other.Rev
	}
	return d.Writer > other.Writer
}

// SmartObjectData returns the gameplay component described by d.
func (d Descriptor) SmartObjectData() SmartObjectData {
	return SmartObjectData{
		ID:                  d.ID,
		SendingProperties:   d.SendingProperties,
		ReceivingProperties: d.ReceivingProperties,
		DamageSend:          d.Damage,
	}
}

// Transform returns the placement component described by d.
func (d Descriptor) Transform() Transform {
	return Transform{Position: d.Position, Rotation: d.Rotation, Scale: UnitScale}
}
