package model

import "github.com/go-gl/mathgl/mgl32"

// Transform places a model in world space. Rotation is Euler degrees applied
// X, then Y, then Z.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Vec3
	Scale    mgl32.Vec3
}

func IdentityTransform() Transform {
	return Transform{Scale: mgl32.Vec3{1, 1, 1}}
}

func (t Transform) Matrix() mgl32.Mat4 {
	m := mgl32.Translate3D(t.Position.X(), t.Position.Y(), t.Position.Z())
	m = m.Mul4(mgl32.HomogRotate3DX(mgl32.DegToRad(t.Rotation.X())))
	m = m.Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(t.Rotation.Y())))
	m = m.Mul4(mgl32.HomogRotate3DZ(mgl32.DegToRad(t.Rotation.Z())))
	return m.Mul4(mgl32.Scale3D(t.Scale.X(), t.Scale.Y(), t.Scale.Z()))
}
