package render

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// ErrUnsupportedTransition is returned for any layout pair outside the
// transition table.
var ErrUnsupportedTransition = errors.New("unsupported image layout transition")

type Buffer struct {
	Handle core1_0.Buffer
	Memory core1_0.DeviceMemory
	Size   int
}

type Image struct {
	Handle core1_0.Image
	Memory core1_0.DeviceMemory
	Format core1_0.Format
	Width  int
	Height int
}

func findMemoryTypeIndex(memoryTypes []core1_0.MemoryType, typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	for i, memoryType := range memoryTypes {
		typeBit := uint32(1 << i)

		if (typeFilter&typeBit) != 0 && (memoryType.PropertyFlags&properties) == properties {
			return i, nil
		}
	}

	return 0, errors.Newf("no memory type matches filter %#x with properties %s", typeFilter, properties)
}

func (c *Context) findMemoryType(typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	return findMemoryTypeIndex(c.MemoryProperties.MemoryTypes, typeFilter, properties)
}

// CreateBuffer allocates and binds exactly the memory size the driver asks
// for.
func (c *Context) CreateBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (Buffer, error) {
	buffer, _, err := c.Device.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return Buffer{}, errors.Wrap(err, "create buffer")
	}
	result := Buffer{Handle: buffer, Size: size}

	memRequirements := c.Device.GetBufferMemoryRequirements(buffer)
	memoryTypeIndex, err := c.findMemoryType(memRequirements.MemoryTypeBits, properties)
	if err != nil {
		c.DestroyBuffer(result)
		return Buffer{}, err
	}

	result.Memory, _, err = c.Device.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		c.DestroyBuffer(result)
		return Buffer{}, errors.Wrap(err, "allocate buffer memory")
	}

	_, err = c.Device.BindBufferMemory(buffer, result.Memory, 0)
	if err != nil {
		c.DestroyBuffer(result)
		return Buffer{}, errors.Wrap(err, "bind buffer memory")
	}

	return result, nil
}

func (c *Context) DestroyBuffer(buffer Buffer) {
	if buffer.Handle.Initialized() {
		c.Device.DestroyBuffer(buffer.Handle, nil)
	}
	if buffer.Memory.Initialized() {
		c.Device.FreeMemory(buffer.Memory, nil)
	}
}

// writeData encodes data in device byte order into host-visible memory.
func writeData(driver core1_0.DeviceDriver, memory core1_0.DeviceMemory, offset int, data any) error {
	bufferSize := binary.Size(data)
	if bufferSize < 0 {
		return errors.Newf("cannot encode %T", data)
	}

	memoryPtr, _, err := driver.MapMemory(memory, offset, bufferSize, 0)
	if err != nil {
		return errors.Wrap(err, "map memory")
	}
	defer driver.UnmapMemory(memory)

	dataBuffer := unsafe.Slice((*byte)(memoryPtr), bufferSize)

	buf := &bytes.Buffer{}
	err = binary.Write(buf, common.ByteOrder, data)
	if err != nil {
		return errors.Wrap(err, "encode data")
	}

	copy(dataBuffer, buf.Bytes())
	return nil
}

// UploadBuffer copies data into a new device-local buffer through a staging
// buffer. The staging buffer is freed before returning.
func (c *Context) UploadBuffer(cmds *Commands, data any, usage core1_0.BufferUsageFlags) (Buffer, error) {
	bufferSize := binary.Size(data)
	if bufferSize <= 0 {
		return Buffer{}, errors.Newf("cannot upload %T of size %d", data, bufferSize)
	}

	staging, err := c.CreateBuffer(bufferSize, core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return Buffer{}, err
	}
	defer c.DestroyBuffer(staging)

	err = writeData(c.Device, staging.Memory, 0, data)
	if err != nil {
		return Buffer{}, err
	}

	buffer, err := c.CreateBuffer(bufferSize, core1_0.BufferUsageTransferDst|usage, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return Buffer{}, err
	}

	err = cmds.SingleTime(func(cmd core1_0.CommandBuffer) error {
		return c.Device.CmdCopyBuffer(cmd, staging.Handle, buffer.Handle,
			core1_0.BufferCopy{
				SrcOffset: 0,
				DstOffset: 0,
				Size:      bufferSize,
			},
		)
	})
	if err != nil {
		c.DestroyBuffer(buffer)
		return Buffer{}, errors.Wrap(err, "copy staging buffer")
	}

	return buffer, nil
}

// CreateImage creates a 2D image with one mip level and one layer, backed by
// its own allocation.
func (c *Context) CreateImage(width, height int, format core1_0.Format, tiling core1_0.ImageTiling, usage core1_0.ImageUsageFlags, memoryProperties core1_0.MemoryPropertyFlags) (Image, error) {
	image, _, err := c.Device.CreateImage(nil, core1_0.ImageCreateInfo{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        tiling,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         usage,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       core1_0.Samples1,
	})
	if err != nil {
		return Image{}, errors.Wrap(err, "create image")
	}
	result := Image{Handle: image, Format: format, Width: width, Height: height}

	memReqs := c.Device.GetImageMemoryRequirements(image)
	memoryIndex, err := c.findMemoryType(memReqs.MemoryTypeBits, memoryProperties)
	if err != nil {
		c.DestroyImage(result)
		return Image{}, err
	}

	result.Memory, _, err = c.Device.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memoryIndex,
	})
	if err != nil {
		c.DestroyImage(result)
		return Image{}, errors.Wrap(err, "allocate image memory")
	}

	_, err = c.Device.BindImageMemory(image, result.Memory, 0)
	if err != nil {
		c.DestroyImage(result)
		return Image{}, errors.Wrap(err, "bind image memory")
	}

	return result, nil
}

func (c *Context) DestroyImage(image Image) {
	if image.Handle.Initialized() {
		c.Device.DestroyImage(image.Handle, nil)
	}
	if image.Memory.Initialized() {
		c.Device.FreeMemory(image.Memory, nil)
	}
}

func (c *Context) createImageView(image core1_0.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags) (core1_0.ImageView, error) {
	imageView, _, err := c.Device.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	if err != nil {
		return core1_0.ImageView{}, errors.Wrap(err, "create image view")
	}
	return imageView, nil
}

type layoutTransition struct {
	oldLayout core1_0.ImageLayout
	newLayout core1_0.ImageLayout

	srcAccess core1_0.AccessFlags
	dstAccess core1_0.AccessFlags
	srcStage  core1_0.PipelineStageFlags
	dstStage  core1_0.PipelineStageFlags
}

var layoutTransitions = []layoutTransition{
	{
		oldLayout: core1_0.ImageLayoutUndefined,
		newLayout: core1_0.ImageLayoutTransferDstOptimal,
		srcAccess: 0,
		dstAccess: core1_0.AccessTransferWrite,
		srcStage:  core1_0.PipelineStageTopOfPipe,
		dstStage:  core1_0.PipelineStageTransfer,
	},
	{
		oldLayout: core1_0.ImageLayoutTransferDstOptimal,
		newLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
		srcAccess: core1_0.AccessTransferWrite,
		dstAccess: core1_0.AccessShaderRead,
		srcStage:  core1_0.PipelineStageTransfer,
		dstStage:  core1_0.PipelineStageFragmentShader,
	},
	{
		oldLayout: core1_0.ImageLayoutUndefined,
		newLayout: core1_0.ImageLayoutDepthStencilAttachmentOptimal,
		srcAccess: 0,
		dstAccess: core1_0.AccessDepthStencilAttachmentRead | core1_0.AccessDepthStencilAttachmentWrite,
		srcStage:  core1_0.PipelineStageTopOfPipe,
		dstStage:  core1_0.PipelineStageEarlyFragmentTests,
	},
}

func findTransition(oldLayout, newLayout core1_0.ImageLayout) (layoutTransition, error) {
	for _, transition := range layoutTransitions {
		if transition.oldLayout == oldLayout && transition.newLayout == newLayout {
			return transition, nil
		}
	}
	return layoutTransition{}, errors.Wrapf(ErrUnsupportedTransition, "%s -> %s", oldLayout, newLayout)
}

func transitionAspect(newLayout core1_0.ImageLayout, format core1_0.Format) core1_0.ImageAspectFlags {
	if newLayout != core1_0.ImageLayoutDepthStencilAttachmentOptimal {
		return core1_0.ImageAspectColor
	}

	aspect := core1_0.ImageAspectDepth
	if hasStencilComponent(format) {
		aspect |= core1_0.ImageAspectStencil
	}
	return aspect
}

func transitionBarrier(image core1_0.Image, format core1_0.Format, oldLayout, newLayout core1_0.ImageLayout) (core1_0.ImageMemoryBarrier, layoutTransition, error) {
	transition, err := findTransition(oldLayout, newLayout)
	if err != nil {
		return core1_0.ImageMemoryBarrier{}, transition, err
	}

	return core1_0.ImageMemoryBarrier{
		OldLayout:           oldLayout,
		NewLayout:           newLayout,
		SrcQueueFamilyIndex: -1,
		DstQueueFamilyIndex: -1,
		Image:               image,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     transitionAspect(newLayout, format),
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		SrcAccessMask: transition.srcAccess,
		DstAccessMask: transition.dstAccess,
	}, transition, nil
}

// TransitionImageLayout moves image between two layouts with a pipeline
// barrier on a one-shot command buffer.
func (c *Context) TransitionImageLayout(cmds *Commands, image core1_0.Image, format core1_0.Format, oldLayout, newLayout core1_0.ImageLayout) error {
	barrier, transition, err := transitionBarrier(image, format, oldLayout, newLayout)
	if err != nil {
		return err
	}

	return cmds.SingleTime(func(cmd core1_0.CommandBuffer) error {
		return c.Device.CmdPipelineBarrier(cmd, transition.srcStage, transition.dstStage, 0, nil, nil, []core1_0.ImageMemoryBarrier{barrier})
	})
}

func (c *Context) copyBufferToImage(cmds *Commands, buffer core1_0.Buffer, image core1_0.Image, width, height int) error {
	return cmds.SingleTime(func(cmd core1_0.CommandBuffer) error {
		return c.Device.CmdCopyBufferToImage(cmd, buffer, image, core1_0.ImageLayoutTransferDstOptimal,
			core1_0.BufferImageCopy{
				BufferOffset:      0,
				BufferRowLength:   0,
				BufferImageHeight: 0,

				ImageSubresource: core1_0.ImageSubresourceLayers{
					AspectMask:     core1_0.ImageAspectColor,
					MipLevel:       0,
					BaseArrayLayer: 0,
					LayerCount:     1,
				},
				ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
				ImageExtent: core1_0.Extent3D{Width: width, Height: height, Depth: 1},
			},
		)
	})
}
