// Package input maps keyboard and pointer state onto camera movement.
package input

import (
	"context"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/TetyLike3/NebulaEngine/internal/window"
)

const DefaultInterval = 10 * time.Millisecond

type KeySource interface {
	KeyDown(key window.Key) bool
	CursorPos() (float64, float64)
	SetShouldClose()
}

type CameraMover interface {
	Move(dir, ang mgl32.Vec3)
}

type WireframeToggler interface {
	RequestWireframeToggle()
}

// Controller samples a KeySource at a fixed interval. It is not safe for use
// by more than one goroutine.
type Controller struct {
	keys    KeySource
	camera  CameraMover
	toggler WireframeToggler

	interval time.Duration

	hasCursor bool
	lastX     float64
	lastY     float64

	toggleHeld bool
}

func NewController(keys KeySource, camera CameraMover, toggler WireframeToggler) *Controller {
	return &Controller{
		keys:     keys,
		camera:   camera,
		toggler:  toggler,
		interval: DefaultInterval,
	}
}

// Step reads the current input state once and applies it.
func (c *Controller) Step() {
	if c.keys.KeyDown(window.KeyEscape) {
		c.keys.SetShouldClose()
	}

	var dir mgl32.Vec3
	if c.keys.KeyDown(window.KeyW) {
		dir[2] = 1
	}
	if c.keys.KeyDown(window.KeyS) {
		dir[2] = -1
	}
	if c.keys.KeyDown(window.KeyA) {
		dir[0] = -1
	}
	if c.keys.KeyDown(window.KeyD) {
		dir[0] = 1
	}

	toggleDown := c.keys.KeyDown(window.KeyP)
	if toggleDown && !c.toggleHeld && c.toggler != nil {
		c.toggler.RequestWireframeToggle()
	}
	c.toggleHeld = toggleDown

	var ang mgl32.Vec3
	x, y := c.keys.CursorPos()
	if c.hasCursor {
		ang[1] = float32(x - c.lastX)
		ang[0] = float32(c.lastY - y)
	}
	c.lastX, c.lastY = x, y
	c.hasCursor = true

	if dir == (mgl32.Vec3{}) && ang == (mgl32.Vec3{}) {
		return
	}
	c.camera.Move(dir, ang)
}

// Run calls Step every interval until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.Step()
		}
	}
}
