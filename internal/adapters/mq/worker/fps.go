package worker

import (
	"time"

	"github.com/okian/episodecam/pkg/metrics"
	"gonum.org/v1/gonum/stat"
)

// DefaultFPSWindow is how many frames feed one FPS estimate.
const DefaultFPSWindow = 30

// fpsMeter estimates the capture rate from frame timestamps. The estimate is
// refreshed once per window from the mean and standard deviation of the
// intervals between consecutive frames.
type fpsMeter struct {
	window    int
	last      time.Time
	intervals []float64
	fps       float64
	jitter    float64
}

func newFPSMeter(window int) *fpsMeter {
	if window < 2 {
		window = 2
	}
	return &fpsMeter{window: window, intervals: make([]float64, 0, window)}
}

// observe records a frame timestamp and reports whether the estimate changed.
func (m *fpsMeter) observe(ts time.Time) bool {
	if ts.IsZero() {
		return false
	}
	prev := m.last
	m.last = ts
	if prev.IsZero() || !ts.After(prev) {
		return false
	}
	m.intervals = append(m.intervals, ts.Sub(prev).Seconds())
	if len(m.intervals) < m.window {
		return false
	}
	mean, std := stat.MeanStdDev(m.intervals, nil)
	m.intervals = m.intervals[:0]
	if mean <= 0 {
		return false
	}
	m.fps = 1 / mean
	m.jitter = std
	metrics.UpdateFPS(m.fps, m.jitter)
	return true
}

// FPS returns the latest estimate, zero before the first full window.
func (m *fpsMeter) FPS() float64 { return m.fps }

// Jitter returns the standard deviation of frame intervals in seconds.
func (m *fpsMeter) Jitter() float64 { return m.jitter }
