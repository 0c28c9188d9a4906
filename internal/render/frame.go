package render

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

// frameBackend is the device work behind one frame cycle.
type frameBackend interface {
	WaitForFence(slot int) error
	ResetFence(slot int) error
	AcquireNextImage(slot int) (int, common.VkResult, error)
	UpdateUniforms(imageIndex int) error
	RecordCommands(slot, imageIndex int) error
	Submit(slot, imageIndex int) error
	Present(slot, imageIndex int) (common.VkResult, error)
	RecreateSwapchain() error
	ImageCount() int
}

// FrameLoop runs acquire, record, submit and present over a fixed set of
// frame slots. A slot's fence is the only backpressure: at most one
// submission per slot is ever outstanding.
type FrameLoop struct {
	backend frameBackend
	slots   int
	current int
	frames  uint64

	// imageSlots records which slot last rendered to each swapchain image,
	// or -1.
	imageSlots []int

	interval  time.Duration
	now       func() time.Duration
	lastFrame time.Duration
	rendered  bool

	resized func() bool
	stats   *Stats
}

func newFrameLoop(backend frameBackend, slots int, interval time.Duration, resized func() bool, stats *Stats) *FrameLoop {
	l := &FrameLoop{
		backend:  backend,
		slots:    slots,
		interval: interval,
		now:      hrtime.Now,
		resized:  resized,
		stats:    stats,
	}
	l.resetImageSlots()
	return l
}

func (l *FrameLoop) resetImageSlots() {
	l.imageSlots = make([]int, l.backend.ImageCount())
	for i := range l.imageSlots {
		l.imageSlots[i] = -1
	}
}

func (l *FrameLoop) Frames() uint64 {
	return l.frames
}

func (l *FrameLoop) CurrentSlot() int {
	return l.current
}

// Drain waits until every slot's last submission has completed.
func (l *FrameLoop) Drain() error {
	for slot := 0; slot < l.slots; slot++ {
		err := l.backend.WaitForFence(slot)
		if err != nil {
			return errors.Wrap(err, "drain in-flight fence")
		}
	}
	return nil
}

func (l *FrameLoop) recreate() error {
	err := l.backend.RecreateSwapchain()
	if err != nil {
		return err
	}
	l.resetImageSlots()
	return nil
}

// Cycle renders and presents one frame. It reports false without touching
// any state when the frame-rate cap says it is too early, and false after
// recreating the swapchain when the acquired image was out of date.
func (l *FrameLoop) Cycle() (bool, error) {
	start := l.now()
	if l.interval > 0 && l.rendered && start-l.lastFrame < l.interval {
		return false, nil
	}

	slot := l.current
	err := l.backend.WaitForFence(slot)
	if err != nil {
		return false, errors.Wrap(err, "wait for in-flight fence")
	}
	gpu := l.now() - start

	imageIndex, res, err := l.backend.AcquireNextImage(slot)
	if res == khr_swapchain.VKErrorOutOfDate {
		return false, l.recreate()
	} else if err != nil {
		return false, errors.Wrap(err, "acquire swapchain image")
	}

	if imageIndex < 0 || imageIndex >= len(l.imageSlots) {
		return false, errors.Newf("acquired image %d of %d", imageIndex, len(l.imageSlots))
	}

	// Another slot may still be rendering to this image.
	previous := l.imageSlots[imageIndex]
	if previous >= 0 && previous != slot {
		waitStart := l.now()
		err = l.backend.WaitForFence(previous)
		if err != nil {
			return false, errors.Wrap(err, "wait for image fence")
		}
		gpu += l.now() - waitStart
	}

	err = l.backend.UpdateUniforms(imageIndex)
	if err != nil {
		return false, err
	}

	err = l.backend.ResetFence(slot)
	if err != nil {
		return false, errors.Wrap(err, "reset in-flight fence")
	}

	err = l.backend.RecordCommands(slot, imageIndex)
	if err != nil {
		return false, err
	}

	err = l.backend.Submit(slot, imageIndex)
	if err != nil {
		return false, errors.Wrap(err, "submit frame")
	}
	l.imageSlots[imageIndex] = slot
	cpu := l.now() - start - gpu

	res, err = l.backend.Present(slot, imageIndex)
	resized := l.resized != nil && l.resized()
	if err != nil && res != khr_swapchain.VKErrorOutOfDate {
		return false, errors.Wrap(err, "present frame")
	}
	if res == khr_swapchain.VKErrorOutOfDate || res == khr_swapchain.VKSuboptimal || resized {
		err = l.recreate()
		if err != nil {
			return false, err
		}
	}

	l.frames++
	l.current = (l.current + 1) % l.slots
	l.lastFrame = l.now()
	l.rendered = true

	if l.stats != nil {
		l.stats.Record(cpu, gpu)
	}

	return true, nil
}
