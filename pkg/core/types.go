// pkg/core/types.go
package core

import "math"

// Vec3 is a position or scale in local scene units.
type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Quat is a rotation quaternion.
type Quat struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
	W float32 `json:"w"`
}

// IdentityQuat is the zero rotation.
var IdentityQuat = Quat{W: 1}

// UnitScale is the scale every placed object is created with.
var UnitScale = Vec3{X: 1, Y: 1, Z: 1}

// YawQuat returns the rotation of yaw radians around the vertical axis.
func YawQuat(yaw float64) Quat {
	half := yaw / 2
	return Quat{Y: float32(math.Sin(half)), W: float32(math.Cos(half))}
}

// Template names the asset package and the asset inside it that a smart
// object is built from.
type Template struct {
	Bundle string `json:"bundle" mapstructure:"bundle"`
	Asset  string `json:"asset" mapstructure:"asset"`
}

// Empty reports whether either half of the pair is missing.
func (t Template) Empty() bool {
	return t.Bundle == "" || t.Asset == ""
}

func (t Template) String() string {
	return t.Bundle + "/" + t.Asset
}

// Entity is an opaque handle into the entity/component store.
type Entity uint64

// ComponentKind names a component type attached to an entity.
type ComponentKind string

const (
	ComponentSmartObject ComponentKind = "SmartObjectData"
	ComponentTransform   ComponentKind = "Transform"
)

// Interaction property bits for SmartObjectData.SendingProperties and
// ReceivingProperties.
const (
	PropertyDamage int32 = 1 << iota
	PropertyPoint
	PropertyDestroy
)

// SmartObjectData is the gameplay component attached to every smart object entity.
type SmartObjectData struct {
	ID                  int32 `json:"id"`
	SendingProperties   int32 `json:"sendingProperties"`
	ReceivingProperties int32 `json:"receivingProperties"`
	DamageSend          int32 `json:"damageSend"`
}

// Transform is the placement component of a smart object entity.
type Transform struct {
	Position Vec3 `json:"position"`
	Rotation Quat `json:"rotation"`
	Scale    Vec3 `json:"scale"`
}
