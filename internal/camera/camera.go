// Package camera holds a free-look camera whose state is written by the input
// goroutine and read by the render loop.
//
// Axis convention: a positive Z input moves along the view direction, a
// positive X input moves along normalize(front x up), a positive Y input
// moves along up. Yaw and pitch are in degrees and pitch is held to
// [-80, 80]. Yaw starts at -90 so the camera initially looks down -Z.
package camera

import (
	"math"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"
)

const maxPitch = 80.0

type atomicFloat struct {
	bits atomic.Uint32
}

func (f *atomicFloat) Load() float32 {
	return math.Float32frombits(f.bits.Load())
}

func (f *atomicFloat) Store(v float32) {
	f.bits.Store(math.Float32bits(v))
}

// atomicVec3 stores each component atomically. A reader may observe a mix of
// two consecutive writes, which is acceptable for camera state.
type atomicVec3 struct {
	x, y, z atomicFloat
}

func (v *atomicVec3) Load() mgl32.Vec3 {
	return mgl32.Vec3{v.x.Load(), v.y.Load(), v.z.Load()}
}

func (v *atomicVec3) Store(vec mgl32.Vec3) {
	v.x.Store(vec[0])
	v.y.Store(vec[1])
	v.z.Store(vec[2])
}

type Camera struct {
	position atomicVec3
	front    atomicVec3
	up       atomicVec3

	yaw   atomicFloat
	pitch atomicFloat

	speed       atomicFloat
	sensitivity atomicFloat
}

func New() *Camera {
	c := &Camera{}
	c.position.Store(mgl32.Vec3{0, 0, -10})
	c.front.Store(mgl32.Vec3{0, 0, -1})
	c.up.Store(mgl32.Vec3{0, 1, 0})
	// Yaw -90 keeps the initial front consistent with yaw/pitch.
	c.yaw.Store(-90)
	c.speed.Store(1)
	c.sensitivity.Store(1)
	return c
}

func (c *Camera) SetSpeed(speed float32)             { c.speed.Store(speed) }
func (c *Camera) SetSensitivity(sensitivity float32) { c.sensitivity.Store(sensitivity) }

func (c *Camera) Position() mgl32.Vec3 { return c.position.Load() }
func (c *Camera) Front() mgl32.Vec3    { return c.front.Load() }
func (c *Camera) Up() mgl32.Vec3       { return c.up.Load() }
func (c *Camera) Yaw() float32         { return c.yaw.Load() }
func (c *Camera) Pitch() float32       { return c.pitch.Load() }

// Move translates the camera by dir and turns it by ang. Both inputs are
// normalized first, so only their direction matters. ang.Y() turns yaw and
// ang.X() turns pitch. Move must be called from a single goroutine.
func (c *Camera) Move(dir, ang mgl32.Vec3) {
	if dir.Len() > 0 {
		dir = dir.Normalize()
	}
	if ang.Len() > 0 {
		ang = ang.Normalize()
	}

	speed := c.speed.Load()
	position := c.position.Load()
	front := c.front.Load()
	up := c.up.Load()

	if dir.Z() != 0 {
		position = position.Add(front.Mul(dir.Z() * speed))
	}
	if dir.Y() != 0 {
		position = position.Add(up.Mul(dir.Y() * speed))
	}
	if dir.X() != 0 {
		right := front.Cross(up)
		if right.Len() > 0 {
			position = position.Add(right.Normalize().Mul(dir.X() * speed))
		}
	}
	c.position.Store(position)

	sensitivity := c.sensitivity.Load()
	yaw := c.yaw.Load() + ang.Y()*sensitivity
	pitch := c.pitch.Load() + ang.X()*sensitivity

	// Front is built from the clamped pitch so it never tips past the limit.
	pitch = mgl32.Clamp(pitch, -maxPitch, maxPitch)
	c.front.Store(frontFromAngles(yaw, pitch))
	c.yaw.Store(yaw)
	c.pitch.Store(pitch)
}

func frontFromAngles(yaw, pitch float32) mgl32.Vec3 {
	yawRad := float64(mgl32.DegToRad(yaw))
	pitchRad := float64(mgl32.DegToRad(pitch))
	direction := mgl32.Vec3{
		float32(math.Cos(yawRad) * math.Cos(pitchRad)),
		float32(math.Sin(pitchRad)),
		float32(math.Sin(yawRad) * math.Cos(pitchRad)),
	}
	return direction.Normalize()
}

// View returns the world-to-view matrix for the current camera state.
func (c *Camera) View() mgl32.Mat4 {
	position := c.position.Load()
	return mgl32.LookAtV(position, position.Add(c.front.Load()), c.up.Load())
}
