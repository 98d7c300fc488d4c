package testscene

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"golang.org/x/image/bmp"

	"github.com/okian/episodecam/pkg/logger"
)

// File permission constants.
const (
	directoryPermission = 0750
	filePermission      = 0640
)

// ErrInvalidScene is returned for a scene shape that cannot be generated.
var ErrInvalidScene = errors.New("invalid scene")

// Plan lays out the bursts without writing anything. Calm runs surround
// every burst, so the scene starts and ends still.
func Plan(cfg *Config) (Scene, error) {
	if cfg.Width < 16 || cfg.Height < 16 {
		return Scene{}, fmt.Errorf("%w: frame size %dx%d is below 16x16", ErrInvalidScene, cfg.Width, cfg.Height)
	}
	if cfg.Bursts < 0 || cfg.CalmFrames < 1 || cfg.MotionFrames < 1 {
		return Scene{}, fmt.Errorf("%w: bursts, calm and motion frames must be positive", ErrInvalidScene)
	}
	scene := Scene{Dir: cfg.OutputDir}
	next := cfg.CalmFrames
	for i := 0; i < cfg.Bursts; i++ {
		scene.Bursts = append(scene.Bursts, Burst{Start: next, End: next + cfg.MotionFrames})
		next += cfg.MotionFrames + cfg.CalmFrames
	}
	scene.Frames = next
	return scene, nil
}

// Generate writes the planned scene to cfg.OutputDir as numbered frames.
func Generate(ctx context.Context, cfg *Config, stats *Stats) (Scene, error) {
	scene, err := Plan(cfg)
	if err != nil {
		return Scene{}, err
	}
	encode, ext, err := encoder(cfg.Format)
	if err != nil {
		return Scene{}, err
	}
	if err := os.MkdirAll(cfg.OutputDir, directoryPermission); err != nil {
		return Scene{}, fmt.Errorf("failed to create output dir: %w", err)
	}

	logger.Get().Info(ctx, "generating scene",
		logger.String("dir", cfg.OutputDir),
		logger.Int("frames", scene.Frames),
		logger.Int("bursts", len(scene.Bursts)))

	background := renderBackground(cfg.Width, cfg.Height)
	for i := 0; i < scene.Frames; i++ {
		if err := ctx.Err(); err != nil {
			return Scene{}, err
		}
		frame := background
		if b, ok := burstAt(scene.Bursts, i); ok {
			frame = cloneRGBA(background)
			drawMover(frame, float64(i-b.Start)/float64(b.End-b.Start))
		}
		name := fmt.Sprintf("frame_%06d%s", i, ext)
		if err := writeFrame(filepath.Join(cfg.OutputDir, name), frame, encode); err != nil {
			return Scene{}, fmt.Errorf("failed to write %s: %w", name, err)
		}
		scene.Files = append(scene.Files, name)
	}

	if stats != nil {
		stats.FramesWritten = scene.Frames
		stats.BurstsGenerated = len(scene.Bursts)
		stats.EpisodesExpected = len(scene.Bursts)
	}
	return scene, nil
}

type encodeFunc func(io.Writer, image.Image) error

func encoder(format string) (encodeFunc, string, error) {
	switch format {
	case FormatJPEG, "jpg", "":
		return func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: jpegQuality})
		}, ".jpg", nil
	case FormatPNG:
		return png.Encode, ".png", nil
	case FormatBMP:
		return bmp.Encode, ".bmp", nil
	default:
		return nil, "", fmt.Errorf("%w: unknown format %q", ErrInvalidScene, format)
	}
}

func writeFrame(path string, img image.Image, encode encodeFunc) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, filePermission)
	if err != nil {
		return err
	}
	if err := encode(f, img); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func burstAt(bursts []Burst, frame int) (Burst, bool) {
	for _, b := range bursts {
		if frame >= b.Start && frame < b.End {
			return b, true
		}
	}
	return Burst{}, false
}

// renderBackground draws a static gradient with a faint grid so the scene
// has texture but no motion.
func renderBackground(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(50 + 60*y/h)
			if x%32 == 0 || y%32 == 0 {
				v += 12
			}
			img.SetRGBA(x, y, color.RGBA{R: v, G: v + 5, B: v + 10, A: 255})
		}
	}
	return img
}

// drawMover paints a bright square that crosses the frame left to right
// as progress goes from 0 to 1.
func drawMover(img *image.RGBA, progress float64) {
	b := img.Bounds()
	size := b.Dy() / 4
	x0 := int(progress * float64(b.Dx()-size))
	y0 := (b.Dy() - size) / 2
	for y := y0; y < y0+size; y++ {
		for x := x0; x < x0+size; x++ {
			img.SetRGBA(x, y, color.RGBA{R: 235, G: 220, B: 200, A: 255})
		}
	}
}

func cloneRGBA(src *image.RGBA) *image.RGBA {
	return &image.RGBA{
		Pix:    append([]uint8(nil), src.Pix...),
		Stride: src.Stride,
		Rect:   src.Rect,
	}
}
