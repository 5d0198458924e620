package fragment_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/hupe1980/motionvq/fragment"
)

func assertVecInDelta(t *testing.T, want, got r3.Vec, delta float64) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, delta, "x")
	assert.InDelta(t, want.Y, got.Y, delta, "y")
	assert.InDelta(t, want.Z, got.Z, delta, "z")
}

func TestTransform_InverseRoundTrip(t *testing.T) {
	tr := fragment.NewTransform(r3.Vec{X: 1, Y: -2, Z: 3}, 0.8, r3.Unit(r3.Vec{X: 1, Y: 1, Z: 0.5}))
	p := r3.Vec{X: 0.3, Y: 4, Z: -1}

	assertVecInDelta(t, p, tr.InverseTransformPoint(tr.TransformPoint(p)), 1e-12)
	assertVecInDelta(t, p, tr.InverseTransformDirection(tr.TransformDirection(p)), 1e-12)
}

func TestTransform_ZeroValueIsIdentity(t *testing.T) {
	var tr fragment.Transform
	p := r3.Vec{X: 1, Y: 2, Z: 3}

	assert.Equal(t, p, tr.TransformPoint(p))
	assert.Equal(t, p, tr.InverseTransformPoint(p))
	assert.Equal(t, r3.Vec{Z: 1}, fragment.Identity().Forward())
}

func TestTransform_ForwardRotatesAroundUp(t *testing.T) {
	tr := fragment.NewTransform(r3.Vec{}, math.Pi/2, r3.Vec{Y: 1})

	assertVecInDelta(t, r3.Vec{X: 1}, tr.Forward(), 1e-12)
	assertVecInDelta(t, r3.Vec{Z: 1}, tr.InverseTransformDirection(r3.Vec{X: 1}), 1e-12)
}
