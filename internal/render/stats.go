package render

import (
	"log"
	"time"

	"github.com/loov/hrtime"
)

// Stats averages frame timings and logs them once per second. CPU time is
// the part of a cycle spent recording and submitting. GPU time is the part
// spent blocked on fences.
type Stats struct {
	now  func() time.Duration
	logf func(format string, args ...any)

	models      int
	windowStart time.Duration
	frames      int
	cpu         time.Duration
	gpu         time.Duration
}

func NewStats(models int) *Stats {
	s := &Stats{
		now:    hrtime.Now,
		logf:   log.Printf,
		models: models,
	}
	s.windowStart = s.now()
	return s
}

func (s *Stats) Record(cpu, gpu time.Duration) {
	s.frames++
	s.cpu += cpu
	s.gpu += gpu

	now := s.now()
	elapsed := now - s.windowStart
	if elapsed < time.Second {
		return
	}

	fps := float64(s.frames) / elapsed.Seconds()
	s.logf("FPS: %.0f | CPU: %.3fms | GPU: %.3fms | Models: %d",
		fps, averageMillis(s.cpu, s.frames), averageMillis(s.gpu, s.frames), s.models)

	s.windowStart = now
	s.frames = 0
	s.cpu = 0
	s.gpu = 0
}

func averageMillis(total time.Duration, frames int) float64 {
	if frames == 0 {
		return 0
	}
	return float64(total) / float64(frames) / float64(time.Millisecond)
}
