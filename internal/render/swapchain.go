package render

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// Swapchain owns the presentable images and one view per image. It is never
// patched in place: invalidation destroys it and creates a new one.
type Swapchain struct {
	ctx    *Context
	window Surface

	Handle khr_swapchain.Swapchain
	Images []core1_0.Image
	Views  []core1_0.ImageView
	Format core1_0.Format
	Extent core1_0.Extent2D

	teardown teardown
}

func NewSwapchain(ctx *Context, window Surface) (*Swapchain, error) {
	s := &Swapchain{
		ctx:    ctx,
		window: window,
	}

	err := s.create()
	if err != nil {
		s.Destroy()
		return nil, err
	}

	return s, nil
}

func (s *Swapchain) create() error {
	support, err := s.ctx.querySwapchainSupport(s.ctx.PhysicalDevice)
	if err != nil {
		return err
	}
	if !support.Adequate() {
		return errors.New("surface reports no formats or present modes")
	}

	graphics := s.ctx.Settings.Graphics
	surfaceFormat := chooseSurfaceFormat(support.Formats)
	presentMode := choosePresentMode(support.PresentModes, graphics.TripleBuffering, graphics.Vsync)
	width, height := s.window.FramebufferSize()
	extent := chooseSwapExtent(support.Capabilities, width, height)
	sharingMode, queueFamilyIndices := chooseSharing(s.ctx.Families)

	swapchain, _, err := s.ctx.SwapchainDriver.CreateSwapchain(nil, khr_swapchain.SwapchainCreateInfo{
		Surface: s.ctx.Surface,

		MinImageCount:    chooseImageCount(support.Capabilities),
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   support.Capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    presentMode,
		Clipped:        true,
	})
	if err != nil {
		return errors.Wrap(err, "create swapchain")
	}
	s.Handle = swapchain
	s.Extent = extent
	s.Format = surfaceFormat.Format
	s.teardown.push(func() {
		s.ctx.SwapchainDriver.DestroySwapchain(s.Handle, nil)
		s.Handle = khr_swapchain.Swapchain{}
	})

	images, _, err := s.ctx.SwapchainDriver.GetSwapchainImages(s.Handle)
	if err != nil {
		return errors.Wrap(err, "get swapchain images")
	}
	s.Images = images

	s.Views = make([]core1_0.ImageView, 0, len(images))
	for _, image := range images {
		view, err := s.ctx.createImageView(image, s.Format, core1_0.ImageAspectColor)
		if err != nil {
			return err
		}
		s.Views = append(s.Views, view)
	}
	s.teardown.push(func() {
		for _, view := range s.Views {
			s.ctx.Device.DestroyImageView(view, nil)
		}
		s.Views = nil
	})

	log.Printf("Swapchain created: %d images, %dx%d, %v", len(s.Images), extent.Width, extent.Height, presentMode)
	return nil
}

// Destroy releases the image views, then the swapchain.
func (s *Swapchain) Destroy() {
	s.teardown.run()
	s.Images = nil
}

// Recreate replaces the swapchain with one matching the current surface. The
// caller must have waited for the device to go idle and destroyed everything
// built on the old images.
func (s *Swapchain) Recreate() error {
	s.Destroy()
	return s.create()
}

func chooseSurfaceFormat(availableFormats []khr_surface.SurfaceFormat) khr_surface.SurfaceFormat {
	for _, format := range availableFormats {
		if format.Format == core1_0.FormatB8G8R8A8SRGB && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return availableFormats[0]
}

// choosePresentMode prefers mailbox for triple buffering. Without it,
// immediate is used when vsync is off and FIFO otherwise. FIFO is always
// available.
func choosePresentMode(availablePresentModes []khr_surface.PresentMode, tripleBuffering, vsync bool) khr_surface.PresentMode {
	preferred := khr_surface.PresentModeFIFO
	switch {
	case tripleBuffering:
		preferred = khr_surface.PresentModeMailbox
	case !vsync:
		preferred = khr_surface.PresentModeImmediate
	}

	for _, presentMode := range availablePresentModes {
		if presentMode == preferred {
			return presentMode
		}
	}

	return khr_surface.PresentModeFIFO
}

// chooseSwapExtent uses the surface's current extent unless the surface
// leaves it to the application, in which case the drawable size is clamped to
// the supported range.
func chooseSwapExtent(capabilities *khr_surface.SurfaceCapabilities, drawableWidth, drawableHeight int) core1_0.Extent2D {
	if capabilities.CurrentExtent.Width != -1 {
		return capabilities.CurrentExtent
	}

	return core1_0.Extent2D{
		Width:  clampInt(drawableWidth, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width),
		Height: clampInt(drawableHeight, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func chooseImageCount(capabilities *khr_surface.SurfaceCapabilities) int {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && capabilities.MaxImageCount < imageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

func chooseSharing(families QueueFamilies) (core1_0.SharingMode, []int) {
	if families.Shared() {
		return core1_0.SharingModeExclusive, nil
	}
	return core1_0.SharingModeConcurrent, []int{*families.Graphics, *families.Present}
}

// waitForDrawable blocks on window events while the framebuffer has no area,
// which is the case while the window is minimized.
func waitForDrawable(window Surface) (int, int) {
	width, height := window.FramebufferSize()
	for (width == 0 || height == 0) && !window.ShouldClose() {
		window.WaitEvents()
		width, height = window.FramebufferSize()
	}
	return width, height
}
