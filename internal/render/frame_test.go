package render

import (
	"fmt"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"
)

type submission struct {
	slot    int
	image   int
	retired bool
}

// fakeGPU keeps every submission in order. Work only completes when the loop
// waits on the submitting slot's fence or the swapchain is recreated, which
// waits for the device to go idle.
type fakeGPU struct {
	images      int
	submissions []*submission
	signaled    []bool
	maxPending  int

	imageOrder []int
	nextImage  int

	acquireRes  []common.VkResult
	acquireErr  error
	presentRes  []common.VkResult
	presentErr  error
	resizeTo    int
	recreations int
	resets      int

	events []string
}

func newFakeGPU(slots, images int) *fakeGPU {
	gpu := &fakeGPU{
		images:   images,
		signaled: make([]bool, slots),
	}
	for i := range gpu.signaled {
		gpu.signaled[i] = true
	}
	return gpu
}

func (g *fakeGPU) outstanding() int {
	count := 0
	for _, s := range g.submissions {
		if !s.retired {
			count++
		}
	}
	return count
}

func (g *fakeGPU) inFlight(match func(*submission) bool) bool {
	for _, s := range g.submissions {
		if !s.retired && match(s) {
			return true
		}
	}
	return false
}

func (g *fakeGPU) retireAll() {
	for _, s := range g.submissions {
		s.retired = true
	}
	for i := range g.signaled {
		g.signaled[i] = true
	}
}

func (g *fakeGPU) WaitForFence(slot int) error {
	g.events = append(g.events, fmt.Sprintf("wait %d", slot))
	for _, s := range g.submissions {
		if s.slot == slot {
			s.retired = true
		}
	}
	g.signaled[slot] = true
	return nil
}

func (g *fakeGPU) ResetFence(slot int) error {
	g.signaled[slot] = false
	g.resets++
	return nil
}

func (g *fakeGPU) AcquireNextImage(slot int) (int, common.VkResult, error) {
	if len(g.acquireRes) > 0 {
		res := g.acquireRes[0]
		g.acquireRes = g.acquireRes[1:]
		if res != core1_0.VKSuccess {
			return 0, res, errors.New("acquire failed")
		}
	}
	if g.acquireErr != nil {
		return 0, core1_0.VKErrorUnknown, g.acquireErr
	}

	if len(g.imageOrder) > 0 {
		image := g.imageOrder[0]
		g.imageOrder = g.imageOrder[1:]
		return image, core1_0.VKSuccess, nil
	}
	image := g.nextImage
	g.nextImage = (g.nextImage + 1) % g.images
	return image, core1_0.VKSuccess, nil
}

func (g *fakeGPU) UpdateUniforms(imageIndex int) error {
	g.events = append(g.events, fmt.Sprintf("uniforms %d", imageIndex))
	if g.inFlight(func(s *submission) bool { return s.image == imageIndex }) {
		return errors.Newf("uniforms for image %d written while the GPU reads them", imageIndex)
	}
	return nil
}

func (g *fakeGPU) RecordCommands(slot, _ int) error {
	if g.inFlight(func(s *submission) bool { return s.slot == slot }) {
		return errors.Newf("slot %d re-recorded while in flight", slot)
	}
	return nil
}

func (g *fakeGPU) Submit(slot, imageIndex int) error {
	if g.signaled[slot] {
		return errors.New("submitted with a signaled fence")
	}
	if g.inFlight(func(s *submission) bool { return s.slot == slot }) {
		return errors.Newf("slot %d submitted before its previous work retired", slot)
	}

	g.events = append(g.events, fmt.Sprintf("submit %d", slot))
	g.submissions = append(g.submissions, &submission{slot: slot, image: imageIndex})
	if n := g.outstanding(); n > g.maxPending {
		g.maxPending = n
	}
	return nil
}

func (g *fakeGPU) Present(int, int) (common.VkResult, error) {
	if g.presentErr != nil {
		return core1_0.VKErrorUnknown, g.presentErr
	}
	if len(g.presentRes) > 0 {
		res := g.presentRes[0]
		g.presentRes = g.presentRes[1:]
		if res == khr_swapchain.VKErrorOutOfDate {
			return res, errors.New("out of date")
		}
		return res, nil
	}
	return core1_0.VKSuccess, nil
}

func (g *fakeGPU) RecreateSwapchain() error {
	g.recreations++
	g.retireAll()
	if g.resizeTo > 0 {
		g.images = g.resizeTo
		g.nextImage = 0
	}
	return nil
}

func (g *fakeGPU) ImageCount() int { return g.images }

type fakeClock struct {
	t time.Duration
}

func (c *fakeClock) now() time.Duration { return c.t }

func newTestLoop(gpu *fakeGPU, slots int, interval time.Duration, resized func() bool) (*FrameLoop, *fakeClock) {
	clock := &fakeClock{}
	loop := newFrameLoop(gpu, slots, interval, resized, nil)
	loop.now = clock.now
	return loop, clock
}

func TestFrameLoopBoundsOutstandingSubmissions(t *testing.T) {
	for _, slots := range []int{1, 2, 3} {
		for _, images := range []int{1, 2, 3, 4} {
			gpu := newFakeGPU(slots, images)
			loop, _ := newTestLoop(gpu, slots, 0, nil)

			for i := 0; i < 20; i++ {
				ok, err := loop.Cycle()
				if err != nil {
					t.Fatalf("slots=%d images=%d frame %d: %v", slots, images, i, err)
				}
				if !ok {
					t.Fatalf("slots=%d images=%d: frame %d was skipped", slots, images, i)
				}
			}

			if gpu.maxPending > slots {
				t.Errorf("slots=%d images=%d: %d submissions were outstanding", slots, images, gpu.maxPending)
			}
			if len(gpu.submissions) != 20 || loop.Frames() != 20 {
				t.Errorf("slots=%d images=%d: expected 20 frames, got %d submitted and %d counted",
					slots, images, len(gpu.submissions), loop.Frames())
			}
		}
	}
}

func TestFrameLoopSingleCycle(t *testing.T) {
	gpu := newFakeGPU(2, 3)
	loop, _ := newTestLoop(gpu, 2, 0, nil)

	ok, err := loop.Cycle()
	if err != nil || !ok {
		t.Fatalf("expected a rendered frame, got %t %v", ok, err)
	}
	if loop.Frames() != 1 {
		t.Errorf("expected 1 frame, got %d", loop.Frames())
	}
	if loop.CurrentSlot() != 1 {
		t.Errorf("expected slot 1 next, got %d", loop.CurrentSlot())
	}
	if gpu.outstanding() != 1 || gpu.signaled[0] {
		t.Errorf("slot 0 should have one submission in flight, got %d", gpu.outstanding())
	}

	err = loop.Drain()
	if err != nil {
		t.Fatal(err)
	}
	if !gpu.signaled[0] || gpu.outstanding() != 0 {
		t.Error("draining should retire slot 0's submission")
	}
}

func TestFrameLoopWaitsForImageOwner(t *testing.T) {
	gpu := newFakeGPU(2, 1)
	loop, _ := newTestLoop(gpu, 2, 0, nil)

	for i := 0; i < 2; i++ {
		if _, err := loop.Cycle(); err != nil {
			t.Fatal(err)
		}
	}

	// The second frame runs on slot 1 but reuses image 0 from slot 0.
	expected := []string{"wait 0", "uniforms 0", "submit 0", "wait 1", "wait 0", "uniforms 0", "submit 1"}
	if fmt.Sprint(gpu.events) != fmt.Sprint(expected) {
		t.Errorf("expected %v, got %v", expected, gpu.events)
	}
}

func TestFrameLoopWaitsForOutOfOrderImages(t *testing.T) {
	gpu := newFakeGPU(3, 3)
	gpu.imageOrder = []int{0, 1, 1, 0, 2, 2}
	loop, _ := newTestLoop(gpu, 3, 0, nil)

	for i := 0; i < 6; i++ {
		if _, err := loop.Cycle(); err != nil {
			t.Fatalf("frame %d: %v", i, err)
		}
	}
}

func TestFrameLoopRecreateResetsImageTracking(t *testing.T) {
	gpu := newFakeGPU(2, 1)
	gpu.presentRes = []common.VkResult{khr_swapchain.VKSuboptimal}
	gpu.resizeTo = 3
	loop, _ := newTestLoop(gpu, 2, 0, nil)

	if _, err := loop.Cycle(); err != nil {
		t.Fatal(err)
	}
	if gpu.recreations != 1 {
		t.Fatalf("expected 1 recreation, got %d", gpu.recreations)
	}

	gpu.events = nil
	gpu.imageOrder = []int{2}
	if _, err := loop.Cycle(); err != nil {
		t.Fatalf("image 2 should be valid after recreation: %v", err)
	}

	expected := []string{"wait 1", "uniforms 2", "submit 1"}
	if fmt.Sprint(gpu.events) != fmt.Sprint(expected) {
		t.Errorf("expected %v, got %v", expected, gpu.events)
	}
}

func TestFrameLoopAcquireOutOfDate(t *testing.T) {
	gpu := newFakeGPU(2, 3)
	gpu.acquireRes = []common.VkResult{khr_swapchain.VKErrorOutOfDate}
	loop, _ := newTestLoop(gpu, 2, 0, nil)

	ok, err := loop.Cycle()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("an out of date acquire should not render")
	}
	if gpu.recreations != 1 {
		t.Errorf("expected 1 recreation, got %d", gpu.recreations)
	}
	if gpu.resets != 0 || !gpu.signaled[0] {
		t.Error("the fence must stay signaled when no work is submitted")
	}
	if loop.Frames() != 0 || loop.CurrentSlot() != 0 {
		t.Error("the frame should not advance")
	}

	ok, err = loop.Cycle()
	if err != nil || !ok {
		t.Errorf("the next cycle should render, got %t %v", ok, err)
	}
}

func TestFrameLoopPresentRecreates(t *testing.T) {
	tests := []struct {
		name    string
		res     common.VkResult
		resized bool
	}{
		{"suboptimal", khr_swapchain.VKSuboptimal, false},
		{"out of date", khr_swapchain.VKErrorOutOfDate, false},
		{"resized", core1_0.VKSuccess, true},
		{"out of date and resized", khr_swapchain.VKErrorOutOfDate, true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			gpu := newFakeGPU(2, 3)
			gpu.presentRes = []common.VkResult{test.res}
			resized := test.resized
			loop, _ := newTestLoop(gpu, 2, 0, func() bool {
				r := resized
				resized = false
				return r
			})

			ok, err := loop.Cycle()
			if err != nil {
				t.Fatal(err)
			}
			if !ok {
				t.Error("the frame was submitted and should count")
			}
			if gpu.recreations != 1 {
				t.Errorf("expected 1 recreation, got %d", gpu.recreations)
			}
			if resized {
				t.Error("the resize flag was not consumed")
			}
		})
	}
}

func TestFrameLoopPresentFailure(t *testing.T) {
	for _, resized := range []bool{false, true} {
		gpu := newFakeGPU(2, 3)
		gpu.presentErr = errors.New("device lost")
		loop, _ := newTestLoop(gpu, 2, 0, func() bool { return resized })

		ok, err := loop.Cycle()
		if !errors.Is(err, gpu.presentErr) {
			t.Errorf("resized=%t: expected the present error, got %v", resized, err)
		}
		if ok || loop.Frames() != 0 {
			t.Errorf("resized=%t: a failed present should not count", resized)
		}
		if gpu.recreations != 0 {
			t.Errorf("resized=%t: a fatal present should not recreate the swapchain", resized)
		}
	}
}

func TestFrameLoopThrottle(t *testing.T) {
	gpu := newFakeGPU(2, 3)
	loop, clock := newTestLoop(gpu, 2, 10*time.Millisecond, nil)

	ok, err := loop.Cycle()
	if err != nil || !ok {
		t.Fatalf("first frame should render, got %t %v", ok, err)
	}

	clock.t += 5 * time.Millisecond
	submitted, slot := len(gpu.submissions), loop.CurrentSlot()
	ok, err = loop.Cycle()
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("frame should be skipped before the interval elapses")
	}
	if len(gpu.submissions) != submitted || loop.CurrentSlot() != slot || loop.Frames() != 1 {
		t.Error("a skipped frame must not change any state")
	}

	clock.t += 5 * time.Millisecond
	ok, err = loop.Cycle()
	if err != nil || !ok {
		t.Errorf("frame should render once the interval elapses, got %t %v", ok, err)
	}
}

func TestFrameLoopAcquireFailure(t *testing.T) {
	gpu := newFakeGPU(2, 3)
	gpu.acquireErr = errors.New("device lost")
	loop, _ := newTestLoop(gpu, 2, 0, nil)

	_, err := loop.Cycle()
	if !errors.Is(err, gpu.acquireErr) {
		t.Errorf("expected the acquire error, got %v", err)
	}
	if gpu.recreations != 0 {
		t.Error("a fatal error should not recreate the swapchain")
	}
}
