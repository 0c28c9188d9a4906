package camera

import (
	"math"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

const epsilon = 1e-4

// vecClose compares per component with an absolute tolerance, so values
// that should be zero compare equal to tiny float residue.
func vecClose(a, b mgl32.Vec3) bool {
	for i := range a {
		if mgl32.Abs(a[i]-b[i]) > epsilon {
			return false
		}
	}
	return true
}

func TestInitialState(t *testing.T) {
	c := New()

	if !vecClose(c.Position(), mgl32.Vec3{0, 0, -10}) {
		t.Errorf("unexpected position %v", c.Position())
	}
	if !vecClose(c.Front(), mgl32.Vec3{0, 0, -1}) {
		t.Errorf("unexpected front %v", c.Front())
	}
	if !vecClose(frontFromAngles(c.Yaw(), c.Pitch()), c.Front()) {
		t.Error("initial yaw/pitch disagree with the initial front vector")
	}
}

func TestMoveForward(t *testing.T) {
	c := New()
	c.SetSpeed(0.5)

	// Magnitude is normalized away.
	c.Move(mgl32.Vec3{0, 0, 10}, mgl32.Vec3{})

	if !vecClose(c.Position(), mgl32.Vec3{0, 0, -10.5}) {
		t.Errorf("expected to move half a unit along -Z, got %v", c.Position())
	}
	if !vecClose(c.Front(), mgl32.Vec3{0, 0, -1}) {
		t.Errorf("front should not change without angular input, got %v", c.Front())
	}
}

func TestMoveRight(t *testing.T) {
	c := New()

	c.Move(mgl32.Vec3{1, 0, 0}, mgl32.Vec3{})

	// front (0,0,-1) x up (0,1,0) = (1,0,0)
	if !vecClose(c.Position(), mgl32.Vec3{1, 0, -10}) {
		t.Errorf("expected to strafe along +X, got %v", c.Position())
	}
}

func TestTurnYaw(t *testing.T) {
	c := New()
	c.SetSensitivity(90)

	c.Move(mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})

	if c.Yaw() != 0 {
		t.Errorf("expected yaw 0, got %g", c.Yaw())
	}
	if !vecClose(c.Front(), mgl32.Vec3{1, 0, 0}) {
		t.Errorf("expected to face +X, got %v", c.Front())
	}
}

func TestPitchClamp(t *testing.T) {
	c := New()
	c.SetSensitivity(50)

	for i := 0; i < 5; i++ {
		c.Move(mgl32.Vec3{}, mgl32.Vec3{1, 0, 0})
	}
	if c.Pitch() != maxPitch {
		t.Errorf("expected pitch clamped to %g, got %g", maxPitch, c.Pitch())
	}

	for i := 0; i < 10; i++ {
		c.Move(mgl32.Vec3{}, mgl32.Vec3{-1, 0, 0})
	}
	if c.Pitch() != -maxPitch {
		t.Errorf("expected pitch clamped to %g, got %g", -maxPitch, c.Pitch())
	}
}

func TestFrontFollowsClampedPitch(t *testing.T) {
	c := New()
	c.SetSensitivity(100)

	c.Move(mgl32.Vec3{}, mgl32.Vec3{1, 0, 0})

	expected := frontFromAngles(c.Yaw(), maxPitch)
	if !vecClose(c.Front(), expected) {
		t.Errorf("expected front %v at the pitch limit, got %v", expected, c.Front())
	}
	limit := float32(math.Sin(float64(mgl32.DegToRad(maxPitch))))
	if c.Front().Y() > limit+epsilon {
		t.Errorf("front rose past the pitch limit: %v", c.Front())
	}
}

func TestViewLooksAlongFront(t *testing.T) {
	c := New()
	view := c.View()

	// A point straight ahead of the camera lands on the -Z view axis.
	ahead := view.Mul4x1(c.Position().Add(c.Front().Mul(5)).Vec4(1))
	if !vecClose(ahead.Vec3(), mgl32.Vec3{0, 0, -5}) {
		t.Errorf("expected point at (0,0,-5) in view space, got %v", ahead.Vec3())
	}
}

func TestConcurrentReadWrite(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			c.Move(mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0})
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			_ = c.View()
		}
	}()

	wg.Wait()
}
