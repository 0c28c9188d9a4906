package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"
)

// frameSync holds each frame slot's semaphore pair and fence. They live for
// the whole renderer and survive swapchain recreation.
type frameSync struct {
	ctx *Context

	imageAcquired  []core1_0.Semaphore
	renderFinished []core1_0.Semaphore
	inFlight       []core1_0.Fence
}

func newFrameSync(ctx *Context, slots int) (*frameSync, error) {
	s := &frameSync{ctx: ctx}

	for i := 0; i < slots; i++ {
		semaphore, _, err := ctx.Device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			s.Destroy()
			return nil, errors.Wrap(err, "create image acquired semaphore")
		}
		s.imageAcquired = append(s.imageAcquired, semaphore)

		semaphore, _, err = ctx.Device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			s.Destroy()
			return nil, errors.Wrap(err, "create render finished semaphore")
		}
		s.renderFinished = append(s.renderFinished, semaphore)

		// Signaled so the first wait on each slot returns at once.
		fence, _, err := ctx.Device.CreateFence(nil, core1_0.FenceCreateInfo{
			Flags: core1_0.FenceCreateSignaled,
		})
		if err != nil {
			s.Destroy()
			return nil, errors.Wrap(err, "create in-flight fence")
		}
		s.inFlight = append(s.inFlight, fence)
	}

	return s, nil
}

func (s *frameSync) Destroy() {
	for _, fence := range s.inFlight {
		s.ctx.Device.DestroyFence(fence, nil)
	}
	for _, semaphore := range s.renderFinished {
		s.ctx.Device.DestroySemaphore(semaphore, nil)
	}
	for _, semaphore := range s.imageAcquired {
		s.ctx.Device.DestroySemaphore(semaphore, nil)
	}
	s.inFlight = nil
	s.renderFinished = nil
	s.imageAcquired = nil
}
