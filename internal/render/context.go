// Package render drives a Vulkan device: swapchain lifecycle, per-frame
// synchronization, command recording and resource upload.
package render

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/ext_debug_utils"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/TetyLike3/NebulaEngine/internal/settings"
)

// Surface is the window the renderer presents to.
type Surface interface {
	RequiredInstanceExtensions() []string
	CreateSurface(instance core1_0.Instance, surfaceExtension khr_surface.ExtensionDriver) (khr_surface.Surface, error)
	FramebufferSize() (int, int)
	PollEvents()
	WaitEvents()
	ConsumeResized() bool
	ShouldClose() bool
}

// ViewSource supplies the world-to-view matrix for each frame.
type ViewSource interface {
	View() mgl32.Mat4
}

// Context owns the instance, the device and the queues. Every other renderer
// component is built from one.
type Context struct {
	Settings *settings.Settings

	Global   core1_0.GlobalDriver
	Instance core1_0.CoreInstanceDriver
	Device   core1_0.CoreDeviceDriver

	debugDriver    ext_debug_utils.ExtensionDriver
	debugMessenger ext_debug_utils.DebugUtilsMessenger

	SurfaceDriver   khr_surface.ExtensionDriver
	Surface         khr_surface.Surface
	SwapchainDriver khr_swapchain.ExtensionDriver

	PhysicalDevice   core1_0.PhysicalDevice
	Properties       *core1_0.PhysicalDeviceProperties
	MemoryProperties *core1_0.PhysicalDeviceMemoryProperties
	Families         QueueFamilies

	GraphicsQueue core1_0.Queue
	PresentQueue  core1_0.Queue

	teardown teardown
}

func NewContext(global core1_0.GlobalDriver, s *settings.Settings, window Surface) (*Context, error) {
	c := &Context{
		Settings: s,
		Global:   global,
	}

	err := c.init(window)
	if err != nil {
		c.Destroy()
		return nil, err
	}

	return c, nil
}

func (c *Context) init(window Surface) error {
	err := c.createInstance(window.RequiredInstanceExtensions())
	if err != nil {
		return err
	}

	err = c.setupDebugMessenger()
	if err != nil {
		return err
	}

	c.SurfaceDriver = khr_surface.CreateExtensionDriverFromCoreDriver(c.Instance)
	c.Surface, err = window.CreateSurface(c.Instance.Instance(), c.SurfaceDriver)
	if err != nil {
		return err
	}
	c.teardown.push(func() {
		c.SurfaceDriver.DestroySurface(c.Surface, nil)
	})

	err = c.pickPhysicalDevice()
	if err != nil {
		return err
	}

	return c.createLogicalDevice()
}

// Destroy releases everything the context created, newest first.
func (c *Context) Destroy() {
	c.teardown.run()
}

func (c *Context) WaitIdle() error {
	_, err := c.Device.DeviceWaitIdle()
	if err != nil {
		return errors.Wrap(err, "wait for device idle")
	}
	return nil
}
