package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

var clearColor = core1_0.ClearValueFloat{0.1, 0.1, 0.1, 1}

// DrawCall is one indexed draw of a model into the current frame.
type DrawCall struct {
	VertexBuffer  core1_0.Buffer
	IndexBuffer   core1_0.Buffer
	IndexCount    int
	DescriptorSet core1_0.DescriptorSet
}

// DrawPass is everything one frame's command buffer is recorded from.
type DrawPass struct {
	RenderPass  core1_0.RenderPass
	Framebuffer core1_0.Framebuffer
	Extent      core1_0.Extent2D
	Pipeline    core1_0.Pipeline
	Layout      core1_0.PipelineLayout
	Draws       []DrawCall
}

// Commands owns the device's command pool, one reusable command buffer per
// frame slot, and the one-shot buffers used for uploads.
type Commands struct {
	ctx *Context

	Pool  core1_0.CommandPool
	Frame []core1_0.CommandBuffer
}

func NewCommands(ctx *Context) (*Commands, error) {
	pool, _, err := ctx.Device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		Flags:            core1_0.CommandPoolCreateResetBuffer,
		QueueFamilyIndex: *ctx.Families.Graphics,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create command pool")
	}

	return &Commands{ctx: ctx, Pool: pool}, nil
}

// AllocateFrameBuffers replaces the per-slot command buffers with n new ones.
func (c *Commands) AllocateFrameBuffers(n int) error {
	c.freeFrameBuffers()

	buffers, _, err := c.ctx.Device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        c.Pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: n,
	})
	if err != nil {
		return errors.Wrap(err, "allocate frame command buffers")
	}
	c.Frame = buffers

	return nil
}

func (c *Commands) freeFrameBuffers() {
	if len(c.Frame) > 0 {
		c.ctx.Device.FreeCommandBuffers(c.Frame...)
		c.Frame = nil
	}
}

// SingleTime records into a temporary command buffer, submits it to the
// graphics queue and waits for the queue to drain before freeing it.
func (c *Commands) SingleTime(record func(cmd core1_0.CommandBuffer) error) error {
	buffers, _, err := c.ctx.Device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        c.Pool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return errors.Wrap(err, "allocate one-shot command buffer")
	}

	buffer := buffers[0]
	defer c.ctx.Device.FreeCommandBuffers(buffer)

	_, err = c.ctx.Device.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		return errors.Wrap(err, "begin one-shot command buffer")
	}

	err = record(buffer)
	if err != nil {
		return err
	}

	_, err = c.ctx.Device.EndCommandBuffer(buffer)
	if err != nil {
		return errors.Wrap(err, "end one-shot command buffer")
	}

	_, err = c.ctx.Device.QueueSubmit(c.ctx.GraphicsQueue, nil,
		core1_0.SubmitInfo{
			CommandBuffers: []core1_0.CommandBuffer{buffer},
		},
	)
	if err != nil {
		return errors.Wrap(err, "submit one-shot command buffer")
	}

	_, err = c.ctx.Device.QueueWaitIdle(c.ctx.GraphicsQueue)
	if err != nil {
		return errors.Wrap(err, "wait for one-shot command buffer")
	}

	return nil
}

// Record resets the slot's command buffer and records pass into it. The
// slot's fence must be signaled.
func (c *Commands) Record(slot int, pass DrawPass) error {
	buffer := c.Frame[slot]

	_, err := c.ctx.Device.ResetCommandBuffer(buffer, 0)
	if err != nil {
		return errors.Wrap(err, "reset command buffer")
	}

	_, err = c.ctx.Device.BeginCommandBuffer(buffer, core1_0.CommandBufferBeginInfo{})
	if err != nil {
		return errors.Wrap(err, "begin command buffer")
	}

	err = c.ctx.Device.CmdBeginRenderPass(buffer, core1_0.SubpassContentsInline,
		core1_0.RenderPassBeginInfo{
			RenderPass:  pass.RenderPass,
			Framebuffer: pass.Framebuffer,
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: pass.Extent,
			},
			ClearValues: []core1_0.ClearValue{
				clearColor,
				core1_0.ClearValueDepthStencil{Depth: 1.0, Stencil: 0},
			},
		})
	if err != nil {
		return errors.Wrap(err, "begin render pass")
	}

	c.ctx.Device.CmdSetViewport(buffer, core1_0.Viewport{
		X:        0,
		Y:        0,
		Width:    float32(pass.Extent.Width),
		Height:   float32(pass.Extent.Height),
		MinDepth: 0,
		MaxDepth: 1,
	})
	c.ctx.Device.CmdSetScissor(buffer, core1_0.Rect2D{
		Offset: core1_0.Offset2D{X: 0, Y: 0},
		Extent: pass.Extent,
	})

	for _, draw := range pass.Draws {
		c.ctx.Device.CmdBindPipeline(buffer, core1_0.PipelineBindPointGraphics, pass.Pipeline)
		c.ctx.Device.CmdBindVertexBuffers(buffer, 0, []core1_0.Buffer{draw.VertexBuffer}, []int{0})
		c.ctx.Device.CmdBindIndexBuffer(buffer, draw.IndexBuffer, 0, core1_0.IndexTypeUInt32)
		c.ctx.Device.CmdBindDescriptorSets(buffer, core1_0.PipelineBindPointGraphics, pass.Layout, 0, []core1_0.DescriptorSet{
			draw.DescriptorSet,
		}, nil)
		c.ctx.Device.CmdDrawIndexed(buffer, draw.IndexCount, 1, 0, 0, 0)
	}

	c.ctx.Device.CmdEndRenderPass(buffer)

	_, err = c.ctx.Device.EndCommandBuffer(buffer)
	if err != nil {
		return errors.Wrap(err, "end command buffer")
	}

	return nil
}

func (c *Commands) Destroy() {
	c.freeFrameBuffers()
	c.ctx.Device.DestroyCommandPool(c.Pool, nil)
}
