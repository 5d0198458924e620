package fragment

import (
	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// forwardAxis is the local forward direction of a root or joint.
var forwardAxis = r3.Vec{Z: 1}

// Transform is a rigid transform: a rotation followed by a translation.
// The zero value is the identity.
type Transform struct {
	Position r3.Vec
	Rotation r3.Rotation
}

// Identity returns the identity transform.
func Identity() Transform {
	return Transform{Rotation: r3.Rotation{Real: 1}}
}

// NewTransform returns a transform rotating by angle radians around axis and
// then translating by position.
func NewTransform(position r3.Vec, angle float64, axis r3.Vec) Transform {
	return Transform{Position: position, Rotation: r3.NewRotation(angle, axis)}
}

func (t Transform) rotation() r3.Rotation {
	if t.Rotation == (r3.Rotation{}) {
		return r3.Rotation{Real: 1}
	}
	return t.Rotation
}

func (t Transform) inverseRotation() r3.Rotation {
	return r3.Rotation(quat.Inv(quat.Number(t.rotation())))
}

// TransformPoint maps p from local into parent space.
func (t Transform) TransformPoint(p r3.Vec) r3.Vec {
	return r3.Add(t.rotation().Rotate(p), t.Position)
}

// TransformDirection rotates d from local into parent space.
func (t Transform) TransformDirection(d r3.Vec) r3.Vec {
	return t.rotation().Rotate(d)
}

// InverseTransformPoint maps p from parent into local space.
func (t Transform) InverseTransformPoint(p r3.Vec) r3.Vec {
	return t.inverseRotation().Rotate(r3.Sub(p, t.Position))
}

// InverseTransformDirection rotates d from parent into local space.
func (t Transform) InverseTransformDirection(d r3.Vec) r3.Vec {
	return t.inverseRotation().Rotate(d)
}

// Forward returns the transform's forward axis in parent space.
func (t Transform) Forward() r3.Vec {
	return t.TransformDirection(forwardAxis)
}

func putVec(dst []float32, v r3.Vec) {
	dst[0] = float32(v.X)
	dst[1] = float32(v.Y)
	dst[2] = float32(v.Z)
}
