package render

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_surface"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/TetyLike3/NebulaEngine/internal/settings"
)

var deviceExtensions = []string{khr_swapchain.ExtensionName}

// QueueFamilies holds the queue family indices the renderer submits to. The
// graphics and present families may be the same.
type QueueFamilies struct {
	Graphics *int
	Present  *int
}

func (f QueueFamilies) IsComplete() bool {
	return f.Graphics != nil && f.Present != nil
}

// Shared reports whether one family serves both graphics and present.
func (f QueueFamilies) Shared() bool {
	return f.IsComplete() && *f.Graphics == *f.Present
}

func (f QueueFamilies) Unique() []int {
	unique := []int{*f.Graphics}
	if !f.Shared() {
		unique = append(unique, *f.Present)
	}
	return unique
}

// findQueueFamilies picks the first graphics-capable family and the first
// family that can present. A family that does both is preferred.
func findQueueFamilies(familyFlags []core1_0.QueueFlags, presentSupport func(family int) (bool, error)) (QueueFamilies, error) {
	families := QueueFamilies{}

	for familyIdx, flags := range familyFlags {
		graphics := flags&core1_0.QueueGraphics != 0

		present, err := presentSupport(familyIdx)
		if err != nil {
			return families, err
		}

		if graphics && present {
			index := familyIdx
			return QueueFamilies{Graphics: &index, Present: &index}, nil
		}

		if graphics && families.Graphics == nil {
			families.Graphics = new(int)
			*families.Graphics = familyIdx
		}

		if present && families.Present == nil {
			families.Present = new(int)
			*families.Present = familyIdx
		}
	}

	return families, nil
}

type SwapchainSupport struct {
	Capabilities *khr_surface.SurfaceCapabilities
	Formats      []khr_surface.SurfaceFormat
	PresentModes []khr_surface.PresentMode
}

func (s SwapchainSupport) Adequate() bool {
	return len(s.Formats) > 0 && len(s.PresentModes) > 0
}

func (c *Context) querySwapchainSupport(device core1_0.PhysicalDevice) (SwapchainSupport, error) {
	var details SwapchainSupport
	var err error

	details.Capabilities, _, err = c.SurfaceDriver.GetPhysicalDeviceSurfaceCapabilities(c.Surface, device)
	if err != nil {
		return details, errors.Wrap(err, "query surface capabilities")
	}

	details.Formats, _, err = c.SurfaceDriver.GetPhysicalDeviceSurfaceFormats(c.Surface, device)
	if err != nil {
		return details, errors.Wrap(err, "query surface formats")
	}

	details.PresentModes, _, err = c.SurfaceDriver.GetPhysicalDeviceSurfacePresentModes(c.Surface, device)
	if err != nil {
		return details, errors.Wrap(err, "query surface present modes")
	}

	return details, nil
}

func (c *Context) queueFamilies(device core1_0.PhysicalDevice) (QueueFamilies, error) {
	var flags []core1_0.QueueFlags
	for _, family := range c.Instance.GetPhysicalDeviceQueueFamilyProperties(device) {
		flags = append(flags, family.QueueFlags)
	}

	return findQueueFamilies(flags, func(family int) (bool, error) {
		supported, _, err := c.SurfaceDriver.GetPhysicalDeviceSurfaceSupport(c.Surface, device, family)
		return supported, err
	})
}

func (c *Context) supportsDeviceExtensions(device core1_0.PhysicalDevice) bool {
	extensions, _, err := c.Instance.EnumerateDeviceExtensionProperties(device)
	if err != nil {
		return false
	}

	for _, extension := range deviceExtensions {
		_, hasExtension := extensions[extension]
		if !hasExtension {
			return false
		}
	}

	return true
}

func (c *Context) isDeviceSuitable(device core1_0.PhysicalDevice) bool {
	families, err := c.queueFamilies(device)
	if err != nil || !families.IsComplete() {
		return false
	}

	if !c.supportsDeviceExtensions(device) {
		return false
	}

	support, err := c.querySwapchainSupport(device)
	if err != nil || !support.Adequate() {
		return false
	}

	if c.Settings.Graphics.EnabledFeatures.SamplerAnisotropy {
		features := c.Instance.GetPhysicalDeviceFeatures(device)
		if !features.SamplerAnisotropy {
			return false
		}
	}

	return true
}

func (c *Context) pickPhysicalDevice() error {
	physicalDevices, _, err := c.Instance.EnumeratePhysicalDevices()
	if err != nil {
		return errors.Wrap(err, "enumerate physical devices")
	}

	for _, device := range physicalDevices {
		if c.isDeviceSuitable(device) {
			c.PhysicalDevice = device
			break
		}
	}

	if !c.PhysicalDevice.Initialized() {
		return errors.New("failed to find a suitable GPU")
	}

	c.Families, err = c.queueFamilies(c.PhysicalDevice)
	if err != nil {
		return err
	}

	c.Properties, err = c.Instance.GetPhysicalDeviceProperties(c.PhysicalDevice)
	if err != nil {
		return errors.Wrap(err, "query device properties")
	}
	c.MemoryProperties = c.Instance.GetPhysicalDeviceMemoryProperties(c.PhysicalDevice)

	log.Printf("Selected GPU: %s", c.Properties.Name)
	return nil
}

func (c *Context) deviceLimits() settings.DeviceLimits {
	features := c.Instance.GetPhysicalDeviceFeatures(c.PhysicalDevice)
	return settings.DeviceLimits{
		MaxSamplerAnisotropy: c.Properties.Limits.MaxSamplerAnisotropy,
		SamplerAnisotropy:    features.SamplerAnisotropy,
		FillModeNonSolid:     features.FillModeNonSolid,
		WideLines:            features.WideLines,
		SampleRateShading:    features.SampleRateShading,
	}
}

func (c *Context) findSupportedFormat(formats []core1_0.Format, tiling core1_0.ImageTiling, features core1_0.FormatFeatureFlags) (core1_0.Format, error) {
	for _, format := range formats {
		props := c.Instance.GetPhysicalDeviceFormatProperties(c.PhysicalDevice, format)

		if tiling == core1_0.ImageTilingLinear && (props.LinearTilingFeatures&features) == features {
			return format, nil
		} else if tiling == core1_0.ImageTilingOptimal && (props.OptimalTilingFeatures&features) == features {
			return format, nil
		}
	}

	return 0, errors.Newf("failed to find supported format for tiling %s, featureset %s", tiling, features)
}

func (c *Context) findDepthFormat() (core1_0.Format, error) {
	return c.findSupportedFormat([]core1_0.Format{core1_0.FormatD32SignedFloat, core1_0.FormatD32SignedFloatS8UnsignedInt, core1_0.FormatD24UnsignedNormalizedS8UnsignedInt},
		core1_0.ImageTilingOptimal,
		core1_0.FormatFeatureDepthStencilAttachment)
}

func hasStencilComponent(format core1_0.Format) bool {
	return format == core1_0.FormatD32SignedFloatS8UnsignedInt || format == core1_0.FormatD24UnsignedNormalizedS8UnsignedInt
}
