package render

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/TetyLike3/NebulaEngine/internal/model"
)

// ModelResources is everything the device needs to draw one model: vertex
// and index buffers, a texture, and a uniform buffer and descriptor set per
// swapchain image.
type ModelResources struct {
	ctx    *Context
	layout core1_0.DescriptorSetLayout

	Model *model.Model

	Vertex     Buffer
	Index      Buffer
	IndexCount int
	Texture    *Texture

	Uniforms       *UniformBuffers
	DescriptorPool core1_0.DescriptorPool
	DescriptorSets []core1_0.DescriptorSet

	teardown teardown
}

func NewModelResources(ctx *Context, cmds *Commands, layout core1_0.DescriptorSetLayout, m *model.Model, imageCount int) (*ModelResources, error) {
	r := &ModelResources{
		ctx:    ctx,
		layout: layout,
		Model:  m,
	}

	err := r.create(cmds, imageCount)
	if err != nil {
		r.Destroy()
		return nil, errors.Wrapf(err, "upload model %s", m.Name)
	}

	return r, nil
}

func (r *ModelResources) create(cmds *Commands, imageCount int) error {
	var err error
	r.Vertex, err = r.ctx.UploadBuffer(cmds, r.Model.Mesh.Vertices, core1_0.BufferUsageVertexBuffer)
	if err != nil {
		return err
	}
	r.teardown.push(func() {
		r.ctx.DestroyBuffer(r.Vertex)
	})

	r.Index, err = r.ctx.UploadBuffer(cmds, r.Model.Mesh.Indices, core1_0.BufferUsageIndexBuffer)
	if err != nil {
		return err
	}
	r.IndexCount = len(r.Model.Mesh.Indices)
	r.teardown.push(func() {
		r.ctx.DestroyBuffer(r.Index)
	})

	r.Texture, err = NewTexture(r.ctx, cmds, r.Model.Texture)
	if err != nil {
		return err
	}
	r.teardown.push(func() {
		r.Texture.Destroy()
	})

	return r.createPerImage(imageCount)
}

func (r *ModelResources) createPerImage(imageCount int) error {
	var err error
	r.Uniforms, err = NewUniformBuffers(r.ctx, imageCount)
	if err != nil {
		return err
	}

	r.DescriptorPool, _, err = r.ctx.Device.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets: imageCount,
		PoolSizes: []core1_0.DescriptorPoolSize{
			{
				Type:            core1_0.DescriptorTypeUniformBuffer,
				DescriptorCount: imageCount,
			},
			{
				Type:            core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: imageCount,
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "create descriptor pool")
	}

	allocLayouts := make([]core1_0.DescriptorSetLayout, imageCount)
	for i := range allocLayouts {
		allocLayouts[i] = r.layout
	}

	r.DescriptorSets, _, err = r.ctx.Device.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: r.DescriptorPool,
		SetLayouts:     allocLayouts,
	})
	if err != nil {
		return errors.Wrap(err, "allocate descriptor sets")
	}

	for i := 0; i < imageCount; i++ {
		err = r.ctx.Device.UpdateDescriptorSets([]core1_0.WriteDescriptorSet{
			{
				DstSet:          r.DescriptorSets[i],
				DstBinding:      0,
				DstArrayElement: 0,

				DescriptorType: core1_0.DescriptorTypeUniformBuffer,

				BufferInfo: []core1_0.DescriptorBufferInfo{
					{
						Buffer: r.Uniforms.Buffers[i].Handle,
						Offset: 0,
						Range:  uniformSize,
					},
				},
			},
			{
				DstSet:          r.DescriptorSets[i],
				DstBinding:      1,
				DstArrayElement: 0,

				DescriptorType: core1_0.DescriptorTypeCombinedImageSampler,

				ImageInfo: []core1_0.DescriptorImageInfo{
					{
						ImageView:   r.Texture.View,
						Sampler:     r.Texture.Sampler,
						ImageLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
					},
				},
			},
		}, nil)
		if err != nil {
			return errors.Wrap(err, "update descriptor sets")
		}
	}

	return nil
}

// destroyPerImage frees the descriptor sets with their pool, then the
// uniform buffers they point at.
func (r *ModelResources) destroyPerImage() {
	if r.DescriptorPool.Initialized() {
		r.ctx.Device.DestroyDescriptorPool(r.DescriptorPool, nil)
		r.DescriptorPool = core1_0.DescriptorPool{}
	}
	r.DescriptorSets = nil

	if r.Uniforms != nil {
		r.Uniforms.Destroy()
		r.Uniforms = nil
	}
}

// Resize rebuilds the per-image uniform buffers and descriptor sets when the
// swapchain image count changes. The device must be idle.
func (r *ModelResources) Resize(imageCount int) error {
	if imageCount == len(r.DescriptorSets) {
		return nil
	}

	r.destroyPerImage()
	return r.createPerImage(imageCount)
}

func (r *ModelResources) UpdateUniforms(imageIndex int, view, proj mgl32.Mat4) error {
	ubo := UniformBufferObject{
		Model: r.Model.Transform.Matrix(),
		View:  view,
		Proj:  proj,
	}
	return r.Uniforms.Write(imageIndex, &ubo)
}

func (r *ModelResources) DrawCall(imageIndex int) DrawCall {
	return DrawCall{
		VertexBuffer:  r.Vertex.Handle,
		IndexBuffer:   r.Index.Handle,
		IndexCount:    r.IndexCount,
		DescriptorSet: r.DescriptorSets[imageIndex],
	}
}

// Destroy releases descriptor sets, uniform buffers, the texture, then the
// index and vertex buffers.
func (r *ModelResources) Destroy() {
	r.destroyPerImage()
	r.teardown.run()
}
