package render

import (
	"bytes"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
)

const fieldOfView = 70.0

type UniformBufferObject struct {
	Model mgl32.Mat4
	View  mgl32.Mat4
	Proj  mgl32.Mat4
}

var uniformSize = binary.Size(UniformBufferObject{})

// projection is a right-handed perspective matrix with a [0, 1] depth range
// and Y pointing down in clip space.
func projection(aspect, near, far float32) mgl32.Mat4 {
	f := float32(1 / math.Tan(float64(mgl32.DegToRad(fieldOfView))/2))

	var m mgl32.Mat4
	m[0] = f / aspect
	m[5] = -f
	m[10] = far / (near - far)
	m[11] = -1
	m[14] = near * far / (near - far)
	return m
}

// uniformRegion is host memory that a uniform buffer is mapped to.
type uniformRegion []byte

func (r uniformRegion) write(ubo *UniformBufferObject) error {
	buf := bytes.NewBuffer(make([]byte, 0, uniformSize))
	err := binary.Write(buf, common.ByteOrder, ubo)
	if err != nil {
		return errors.Wrap(err, "encode uniforms")
	}
	if len(r) < buf.Len() {
		return errors.Newf("uniform region holds %d bytes, need %d", len(r), buf.Len())
	}

	copy(r, buf.Bytes())
	return nil
}

func (r uniformRegion) read() (UniformBufferObject, error) {
	var ubo UniformBufferObject
	err := binary.Read(bytes.NewReader(r), common.ByteOrder, &ubo)
	if err != nil {
		return ubo, errors.Wrap(err, "decode uniforms")
	}
	return ubo, nil
}

// uniformRegions has one region per swapchain image.
type uniformRegions []uniformRegion

func (r uniformRegions) write(imageIndex int, ubo *UniformBufferObject) error {
	if imageIndex < 0 || imageIndex >= len(r) {
		return errors.Newf("no uniform buffer for image %d of %d", imageIndex, len(r))
	}
	return r[imageIndex].write(ubo)
}

// UniformBuffers are host-visible uniform buffers, one per swapchain image,
// that stay mapped for their whole lifetime.
type UniformBuffers struct {
	ctx *Context

	Buffers []Buffer
	regions uniformRegions
}

func NewUniformBuffers(ctx *Context, imageCount int) (*UniformBuffers, error) {
	u := &UniformBuffers{ctx: ctx}

	for i := 0; i < imageCount; i++ {
		buffer, err := ctx.CreateBuffer(uniformSize, core1_0.BufferUsageUniformBuffer, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
		if err != nil {
			u.Destroy()
			return nil, err
		}

		memoryPtr, _, err := ctx.Device.MapMemory(buffer.Memory, 0, uniformSize, 0)
		if err != nil {
			ctx.DestroyBuffer(buffer)
			u.Destroy()
			return nil, errors.Wrap(err, "map uniform buffer")
		}

		u.Buffers = append(u.Buffers, buffer)
		u.regions = append(u.regions, unsafe.Slice((*byte)(memoryPtr), uniformSize))
	}

	return u, nil
}

func (u *UniformBuffers) Write(imageIndex int, ubo *UniformBufferObject) error {
	return u.regions.write(imageIndex, ubo)
}

func (u *UniformBuffers) Destroy() {
	for i := len(u.Buffers) - 1; i >= 0; i-- {
		u.ctx.Device.UnmapMemory(u.Buffers[i].Memory)
		u.ctx.DestroyBuffer(u.Buffers[i])
	}
	u.Buffers = nil
	u.regions = nil
}
