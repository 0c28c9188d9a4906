// Package window wraps an SDL2 window for Vulkan rendering. Events are pumped
// on the goroutine that created the window. The resulting input state is
// readable from any goroutine.
package window

import (
	"math"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
	"github.com/vkngwrapper/core/v3"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	vkng_sdl2 "github.com/vkngwrapper/integrations/sdl2/v3"

	"github.com/TetyLike3/NebulaEngine/internal/settings"
)

type Key int

const (
	KeyW Key = iota
	KeyA
	KeyS
	KeyD
	KeyP
	KeyEscape
	keyCount
)

var scancodes = map[sdl.Scancode]Key{
	sdl.SCANCODE_W:      KeyW,
	sdl.SCANCODE_A:      KeyA,
	sdl.SCANCODE_S:      KeyS,
	sdl.SCANCODE_D:      KeyD,
	sdl.SCANCODE_P:      KeyP,
	sdl.SCANCODE_ESCAPE: KeyEscape,
}

type Window struct {
	handle *sdl.Window

	shouldClose atomic.Bool
	resized     atomic.Bool
	minimized   atomic.Bool

	keys    [keyCount]atomic.Bool
	cursorX atomic.Uint64
	cursorY atomic.Uint64
}

func New(s settings.WindowSettings) (*Window, error) {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return nil, errors.Wrap(err, "init sdl")
	}

	handle, err := sdl.CreateWindow(s.Title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(s.Width), int32(s.Height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "create window")
	}

	w := &Window{handle: handle}
	w.storeCursor(float64(s.Width)/2, float64(s.Height)/2)
	sdl.SetRelativeMouseMode(true)

	return w, nil
}

func (w *Window) Destroy() {
	if w.handle != nil {
		_ = w.handle.Destroy()
		w.handle = nil
	}
	sdl.Quit()
}

// VulkanDriver loads the Vulkan loader SDL was initialized with.
func (w *Window) VulkanDriver() (core1_0.GlobalDriver, error) {
	driver, err := core.CreateDriverFromProcAddr(sdl.VulkanGetVkGetInstanceProcAddr())
	if err != nil {
		return nil, errors.Wrap(err, "load vulkan driver")
	}
	return driver, nil
}

func (w *Window) RequiredInstanceExtensions() []string {
	return w.handle.VulkanGetInstanceExtensions()
}

func (w *Window) CreateSurface(instance core1_0.Instance, surfaceExtension khr_surface.ExtensionDriver) (khr_surface.Surface, error) {
	surface, err := vkng_sdl2.CreateSurface(instance, surfaceExtension, w.handle)
	if err != nil {
		return khr_surface.Surface{}, errors.Wrap(err, "create window surface")
	}
	return surface, nil
}

// FramebufferSize is the drawable size in pixels, which is zero in both
// dimensions while the window is minimized.
func (w *Window) FramebufferSize() (int, int) {
	if w.minimized.Load() {
		return 0, 0
	}
	width, height := w.handle.VulkanGetDrawableSize()
	return int(width), int(height)
}

// PollEvents drains the SDL event queue without blocking.
func (w *Window) PollEvents() {
	for event := sdl.PollEvent(); event != nil; event = sdl.PollEvent() {
		w.handleEvent(event)
	}
}

// WaitEvents blocks until at least one event arrives, then drains the queue.
func (w *Window) WaitEvents() {
	if event := sdl.WaitEvent(); event != nil {
		w.handleEvent(event)
	}
	w.PollEvents()
}

func (w *Window) handleEvent(event sdl.Event) {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		w.shouldClose.Store(true)
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_MINIMIZED:
			w.minimized.Store(true)
		case sdl.WINDOWEVENT_RESTORED:
			w.minimized.Store(false)
			w.resized.Store(true)
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
			w.resized.Store(true)
		}
	case *sdl.KeyboardEvent:
		key, tracked := scancodes[e.Keysym.Scancode]
		if tracked {
			w.keys[key].Store(e.Type == sdl.KEYDOWN)
		}
	case *sdl.MouseMotionEvent:
		x, y := w.CursorPos()
		w.storeCursor(x+float64(e.XRel), y+float64(e.YRel))
	}
}

func (w *Window) storeCursor(x, y float64) {
	w.cursorX.Store(math.Float64bits(x))
	w.cursorY.Store(math.Float64bits(y))
}

// CursorPos is the accumulated pointer position. The pointer is captured in
// relative mode, so it is not bounded by the window.
func (w *Window) CursorPos() (float64, float64) {
	return math.Float64frombits(w.cursorX.Load()), math.Float64frombits(w.cursorY.Load())
}

func (w *Window) KeyDown(key Key) bool {
	if key < 0 || key >= keyCount {
		return false
	}
	return w.keys[key].Load()
}

// ConsumeResized reports whether the framebuffer changed size since the last
// call and clears the flag.
func (w *Window) ConsumeResized() bool {
	return w.resized.Swap(false)
}

func (w *Window) ShouldClose() bool {
	return w.shouldClose.Load()
}

func (w *Window) SetShouldClose() {
	w.shouldClose.Store(true)
}
