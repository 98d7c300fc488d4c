package source

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/okian/episodecam/internal/domain/types"
	"github.com/okian/episodecam/pkg/logger"
)

var blockColor = color.RGBA{R: 240, G: 240, B: 240, A: 255}

// Synthetic renders a static textured scene and slides a bright block across
// it during periodic motion bursts. Each period starts calm so the
// background can settle.
type Synthetic struct {
	cfg     settings
	id      string
	pacer   pacer
	scene   *image.RGBA
	started time.Time
	running atomic.Bool
	seq     uint64
}

// NewSynthetic creates a synthetic source.
func NewSynthetic(opts ...Option) *Synthetic {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Get().Named("source.synthetic")
	}
	return &Synthetic{cfg: cfg, id: uuid.NewString(), pacer: newPacer(cfg.fps)}
}

// ID identifies this source instance in logs.
func (s *Synthetic) ID() string { return s.id }

// Start renders the scene and starts the burst schedule.
func (s *Synthetic) Start(ctx context.Context) error {
	s.scene = renderScene(s.cfg.width, s.cfg.height)
	s.started = s.cfg.clock()
	s.running.Store(true)
	s.cfg.logger.Info(ctx, "synthetic source started",
		logger.String("source_id", s.id),
		logger.Int("width", s.cfg.width),
		logger.Int("height", s.cfg.height),
		logger.Float64("fps", s.cfg.fps))
	return nil
}

// Stop ends capture. It is safe to call from another goroutine.
func (s *Synthetic) Stop(ctx context.Context) error {
	if s.running.Swap(false) {
		s.cfg.logger.Info(ctx, "synthetic source stopped", logger.String("source_id", s.id))
	}
	return nil
}

// Capture returns the next frame.
func (s *Synthetic) Capture(ctx context.Context) (types.Frame, error) {
	if !s.running.Load() {
		return types.Frame{}, ErrNotStarted
	}
	if err := s.pacer.wait(ctx); err != nil {
		return types.Frame{}, fmt.Errorf("synthetic capture: %w", err)
	}
	now := s.cfg.clock()
	img := &image.RGBA{
		Pix:    append([]uint8(nil), s.scene.Pix...),
		Stride: s.scene.Stride,
		Rect:   s.scene.Rect,
	}
	if progress, ok := s.burst(now); ok {
		drawBlock(img, progress)
	}
	s.seq++
	return types.Frame{Seq: s.seq, Timestamp: now, Image: img}, nil
}

// InBurst reports whether a frame captured at t shows motion.
func (s *Synthetic) InBurst(t time.Time) bool {
	_, ok := s.burst(t)
	return ok
}

// burst returns how far through the current burst t is, in [0,1).
func (s *Synthetic) burst(t time.Time) (float64, bool) {
	every, length := s.cfg.burstEvery, s.cfg.burstLength
	if every <= 0 || length <= 0 {
		return 0, false
	}
	if length > every {
		length = every
	}
	phase := t.Sub(s.started) % every
	calm := every - length
	if phase < calm {
		return 0, false
	}
	return float64(phase-calm) / float64(length), true
}

// renderScene draws a smooth gradient with a faint checker texture.
func renderScene(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := 80 + 40*x/max(w-1, 1)
			if (x/16+y/16)%2 == 0 {
				v += 6
			}
			g := uint8(v)
			img.SetRGBA(x, y, color.RGBA{R: g, G: g + 4, B: g + 8, A: 255})
		}
	}
	return img
}

// drawBlock slides a block a sixth of the frame in size from left to right.
func drawBlock(img *image.RGBA, progress float64) {
	b := img.Bounds()
	bw, bh := max(b.Dx()/6, 1), max(b.Dy()/6, 1)
	x0 := b.Min.X + int(progress*float64(b.Dx()-bw))
	y0 := b.Min.Y + (b.Dy()-bh)/2
	for y := y0; y < y0+bh; y++ {
		for x := x0; x < x0+bw; x++ {
			img.SetRGBA(x, y, blockColor)
		}
	}
}
