package render

import (
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// deviceBackend performs each frame step on the renderer's device.
type deviceBackend struct {
	r *Renderer
}

func (b deviceBackend) WaitForFence(slot int) error {
	_, err := b.r.ctx.Device.WaitForFences(true, common.NoTimeout, b.r.sync.inFlight[slot])
	return err
}

func (b deviceBackend) ResetFence(slot int) error {
	_, err := b.r.ctx.Device.ResetFences(b.r.sync.inFlight[slot])
	return err
}

func (b deviceBackend) AcquireNextImage(slot int) (int, common.VkResult, error) {
	return b.r.ctx.SwapchainDriver.AcquireNextImage(b.r.swapchain.Handle, common.NoTimeout, &b.r.sync.imageAcquired[slot], nil)
}

func (b deviceBackend) UpdateUniforms(imageIndex int) error {
	view := b.r.view.View()
	proj := b.r.projection()

	for _, m := range b.r.models {
		err := m.UpdateUniforms(imageIndex, view, proj)
		if err != nil {
			return err
		}
	}
	return nil
}

func (b deviceBackend) RecordCommands(slot, imageIndex int) error {
	return b.r.commands.Record(slot, b.r.drawPass(imageIndex))
}

func (b deviceBackend) Submit(slot, imageIndex int) error {
	_, err := b.r.ctx.Device.QueueSubmit(b.r.ctx.GraphicsQueue, &b.r.sync.inFlight[slot],
		core1_0.SubmitInfo{
			WaitSemaphores:   []core1_0.Semaphore{b.r.sync.imageAcquired[slot]},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
			CommandBuffers:   []core1_0.CommandBuffer{b.r.commands.Frame[slot]},
			SignalSemaphores: []core1_0.Semaphore{b.r.sync.renderFinished[slot]},
		},
	)
	return err
}

func (b deviceBackend) Present(slot, imageIndex int) (common.VkResult, error) {
	return b.r.ctx.SwapchainDriver.QueuePresent(b.r.ctx.PresentQueue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{b.r.sync.renderFinished[slot]},
		Swapchains:     []khr_swapchain.Swapchain{b.r.swapchain.Handle},
		ImageIndices:   []int{imageIndex},
	})
}

func (b deviceBackend) RecreateSwapchain() error {
	return b.r.recreateSwapchain()
}

func (b deviceBackend) ImageCount() int {
	return len(b.r.swapchain.Images)
}
