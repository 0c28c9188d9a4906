package render

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/TetyLike3/NebulaEngine/internal/model"
)

// Renderer draws a fixed set of models every frame. All of its methods except
// RequestWireframeToggle must be called from the goroutine that owns the
// window.
type Renderer struct {
	ctx    *Context
	window Surface
	view   ViewSource

	cache     *PipelineCache
	commands  *Commands
	swapchain *Swapchain
	pipeline  *Pipeline
	resources *FrameResources
	models    []*ModelResources
	sync      *frameSync
	loop      *FrameLoop

	wireframeRequested atomic.Bool

	teardown teardown
}

func NewRenderer(ctx *Context, window Surface, view ViewSource, models []*model.Model) (*Renderer, error) {
	r := &Renderer{
		ctx:    ctx,
		window: window,
		view:   view,
	}

	err := r.init(models)
	if err != nil {
		r.teardown.run()
		return nil, err
	}

	return r, nil
}

func (r *Renderer) init(models []*model.Model) error {
	var err error
	r.cache, err = NewPipelineCache(r.ctx, r.ctx.Settings.Paths.PipelineCachePath)
	if err != nil {
		return err
	}
	r.teardown.push(func() {
		err := r.cache.Save()
		if err != nil {
			log.Printf("Saving pipeline cache: %v", err)
		}
		r.cache.Destroy()
	})

	r.commands, err = NewCommands(r.ctx)
	if err != nil {
		return err
	}
	r.teardown.push(r.commands.Destroy)

	r.swapchain, err = NewSwapchain(r.ctx, r.window)
	if err != nil {
		return err
	}
	r.teardown.push(r.swapchain.Destroy)

	r.pipeline, err = NewPipeline(r.ctx, r.cache, r.swapchain.Format)
	if err != nil {
		return err
	}
	r.teardown.push(r.pipeline.Destroy)

	r.resources, err = NewFrameResources(r.ctx, r.commands, r.swapchain, r.pipeline.RenderPass, r.pipeline.DepthFormat)
	if err != nil {
		return err
	}
	r.teardown.push(r.resources.Destroy)

	for _, m := range models {
		resources, err := NewModelResources(r.ctx, r.commands, r.pipeline.DescriptorSetLayout, m, len(r.swapchain.Images))
		if err != nil {
			return err
		}
		r.models = append(r.models, resources)
		r.teardown.push(resources.Destroy)
	}

	slots := r.ctx.Settings.Graphics.MaxFramesInFlight
	err = r.commands.AllocateFrameBuffers(slots)
	if err != nil {
		return err
	}

	r.sync, err = newFrameSync(r.ctx, slots)
	if err != nil {
		return err
	}
	r.teardown.push(r.sync.Destroy)

	r.loop = newFrameLoop(deviceBackend{r: r}, slots, r.ctx.Settings.Graphics.TargetFrameDelta(), r.window.ConsumeResized, NewStats(len(r.models)))

	log.Printf("Renderer ready: %d model(s), %d frame(s) in flight", len(r.models), slots)
	return nil
}

// RequestWireframeToggle asks the render loop to flip wireframe mode before
// its next frame. It is safe to call from any goroutine.
func (r *Renderer) RequestWireframeToggle() {
	r.wireframeRequested.Store(true)
}

func (r *Renderer) Frames() uint64 {
	return r.loop.Frames()
}

// Run renders until the window asks to close or ctx is cancelled, then waits
// for the device to finish outstanding work.
func (r *Renderer) Run(ctx context.Context) error {
	for !r.window.ShouldClose() {
		select {
		case <-ctx.Done():
			return r.ctx.WaitIdle()
		default:
		}

		r.window.PollEvents()

		if r.wireframeRequested.Swap(false) {
			err := r.toggleWireframe()
			if err != nil {
				return err
			}
		}

		width, height := r.window.FramebufferSize()
		if width == 0 || height == 0 {
			waitForDrawable(r.window)
			continue
		}

		_, err := r.loop.Cycle()
		if err != nil {
			return err
		}
	}

	err := r.loop.Drain()
	if err != nil {
		return err
	}
	return r.ctx.WaitIdle()
}

func (r *Renderer) toggleWireframe() error {
	graphics := &r.ctx.Settings.Graphics
	if !graphics.Wireframe && !graphics.EnabledFeatures.FillModeNonSolid {
		log.Printf("Wireframe rendering is not available on this device")
		return nil
	}

	graphics.Wireframe = !graphics.Wireframe
	err := r.pipeline.Rebuild()
	if err != nil {
		return err
	}

	return r.commands.AllocateFrameBuffers(graphics.MaxFramesInFlight)
}

// recreateSwapchain rebuilds the swapchain and everything sized to it. Frame
// slots and their sync objects are kept.
func (r *Renderer) recreateSwapchain() error {
	waitForDrawable(r.window)
	if r.window.ShouldClose() {
		return nil
	}

	err := r.ctx.WaitIdle()
	if err != nil {
		return err
	}

	r.resources.Destroy()

	err = r.swapchain.Recreate()
	if err != nil {
		return err
	}

	err = r.resources.Recreate(r.commands, r.swapchain, r.pipeline.RenderPass, r.pipeline.DepthFormat)
	if err != nil {
		return err
	}

	for _, m := range r.models {
		err = m.Resize(len(r.swapchain.Images))
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *Renderer) projection() mgl32.Mat4 {
	extent := r.swapchain.Extent
	aspect := float32(extent.Width) / float32(extent.Height)
	graphics := r.ctx.Settings.Graphics
	return projection(aspect, graphics.NearClip, graphics.FarClip)
}

func (r *Renderer) drawPass(imageIndex int) DrawPass {
	pass := DrawPass{
		RenderPass:  r.pipeline.RenderPass,
		Framebuffer: r.resources.Framebuffers[imageIndex],
		Extent:      r.swapchain.Extent,
		Pipeline:    r.pipeline.Handle,
		Layout:      r.pipeline.Layout,
		Draws:       make([]DrawCall, 0, len(r.models)),
	}
	for _, m := range r.models {
		pass.Draws = append(pass.Draws, m.DrawCall(imageIndex))
	}
	return pass
}

// Destroy waits for the device and releases every renderer resource in
// reverse creation order. The Context is not destroyed.
func (r *Renderer) Destroy() {
	err := r.ctx.WaitIdle()
	if err != nil {
		log.Printf("Destroying renderer: %v", err)
	}
	r.teardown.run()
}
