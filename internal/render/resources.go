package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// FrameResources are the attachments sized to the swapchain: one depth
// buffer and one framebuffer per swapchain image.
type FrameResources struct {
	ctx *Context

	Depth        Image
	DepthView    core1_0.ImageView
	Framebuffers []core1_0.Framebuffer

	teardown teardown
}

func NewFrameResources(ctx *Context, cmds *Commands, swapchain *Swapchain, renderPass core1_0.RenderPass, depthFormat core1_0.Format) (*FrameResources, error) {
	r := &FrameResources{ctx: ctx}

	err := r.create(cmds, swapchain, renderPass, depthFormat)
	if err != nil {
		r.Destroy()
		return nil, err
	}

	return r, nil
}

func (r *FrameResources) create(cmds *Commands, swapchain *Swapchain, renderPass core1_0.RenderPass, depthFormat core1_0.Format) error {
	var err error
	r.Depth, err = r.ctx.CreateImage(swapchain.Extent.Width,
		swapchain.Extent.Height,
		depthFormat,
		core1_0.ImageTilingOptimal,
		core1_0.ImageUsageDepthStencilAttachment,
		core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return errors.Wrap(err, "create depth image")
	}
	r.teardown.push(func() {
		r.ctx.DestroyImage(r.Depth)
		r.Depth = Image{}
	})

	r.DepthView, err = r.ctx.createImageView(r.Depth.Handle, depthFormat, core1_0.ImageAspectDepth)
	if err != nil {
		return err
	}
	r.teardown.push(func() {
		r.ctx.Device.DestroyImageView(r.DepthView, nil)
		r.DepthView = core1_0.ImageView{}
	})

	err = r.ctx.TransitionImageLayout(cmds, r.Depth.Handle, depthFormat, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutDepthStencilAttachmentOptimal)
	if err != nil {
		return err
	}

	r.teardown.push(func() {
		for _, framebuffer := range r.Framebuffers {
			r.ctx.Device.DestroyFramebuffer(framebuffer, nil)
		}
		r.Framebuffers = nil
	})
	for _, imageView := range swapchain.Views {
		framebuffer, _, err := r.ctx.Device.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass: renderPass,
			Layers:     1,
			Attachments: []core1_0.ImageView{
				imageView,
				r.DepthView,
			},
			Width:  swapchain.Extent.Width,
			Height: swapchain.Extent.Height,
		})
		if err != nil {
			return errors.Wrap(err, "create framebuffer")
		}

		r.Framebuffers = append(r.Framebuffers, framebuffer)
	}

	return nil
}

// Destroy releases the framebuffers, then the depth view and image.
func (r *FrameResources) Destroy() {
	r.teardown.run()
}

// Recreate rebuilds every attachment against a new swapchain.
func (r *FrameResources) Recreate(cmds *Commands, swapchain *Swapchain, renderPass core1_0.RenderPass, depthFormat core1_0.Format) error {
	r.Destroy()
	return r.create(cmds, swapchain, renderPass, depthFormat)
}
