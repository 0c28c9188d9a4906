package render

import (
	"log"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_portability_subset"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/TetyLike3/NebulaEngine/internal/settings"
)

// enabledFeatures turns the requested features into the set passed at device
// creation. Settings must already be downgraded against the device.
func enabledFeatures(g settings.GraphicsSettings) *core1_0.PhysicalDeviceFeatures {
	return &core1_0.PhysicalDeviceFeatures{
		SamplerAnisotropy: g.EnabledFeatures.SamplerAnisotropy,
		FillModeNonSolid:  g.EnabledFeatures.FillModeNonSolid,
		WideLines:         g.EnabledFeatures.WideLines,
		SampleRateShading: g.EnabledFeatures.SampleRateShading,
		DepthClamp:        g.RasterizerDepthClamp,
	}
}

func (c *Context) createLogicalDevice() error {
	c.Settings.Graphics.Downgrade(c.deviceLimits())

	var queueFamilyOptions []core1_0.DeviceQueueCreateInfo
	queuePriority := float32(1.0)
	for _, queueFamily := range c.Families.Unique() {
		queueFamilyOptions = append(queueFamilyOptions, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: queueFamily,
			QueuePriorities:  []float32{queuePriority},
		})
	}

	var extensionNames []string
	extensionNames = append(extensionNames, deviceExtensions...)

	// Required by portability implementations such as MoltenVK.
	extensions, _, err := c.Instance.EnumerateDeviceExtensionProperties(c.PhysicalDevice)
	if err != nil {
		return errors.Wrap(err, "enumerate device extensions")
	}

	_, supported := extensions[khr_portability_subset.ExtensionName]
	if supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	supportedFeatures := c.Instance.GetPhysicalDeviceFeatures(c.PhysicalDevice)
	if c.Settings.Graphics.RasterizerDepthClamp && !supportedFeatures.DepthClamp {
		log.Printf("Depth clamp is not supported by the device. Disabling.")
		c.Settings.Graphics.RasterizerDepthClamp = false
	}

	c.Device, _, err = c.Instance.CreateDevice(c.PhysicalDevice, nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos:      queueFamilyOptions,
		EnabledFeatures:       enabledFeatures(c.Settings.Graphics),
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return errors.Wrap(err, "create logical device")
	}
	c.teardown.push(func() {
		c.Device.DestroyDevice(nil)
	})

	c.GraphicsQueue = c.Device.GetQueue(*c.Families.Graphics, 0)
	c.PresentQueue = c.Device.GetQueue(*c.Families.Present, 0)
	c.SwapchainDriver = khr_swapchain.CreateExtensionDriverFromCoreDriver(c.Device)

	return nil
}
