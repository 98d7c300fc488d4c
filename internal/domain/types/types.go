// Package types contains common types used across the application.
package types

import (
	"image"
	"image/draw"
	"time"
)

// Frame is a captured color image with its capture timestamp.
// Frames are treated as immutable once produced; use Clone before retaining
// or mutating pixels.
type Frame struct {
	Seq       uint64
	Timestamp time.Time
	Image     *image.RGBA
}

// NewFrame copies img into an RGBA frame anchored at the origin.
func NewFrame(img image.Image, seq uint64, ts time.Time) Frame {
	if img == nil {
		return Frame{Seq: seq, Timestamp: ts}
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return Frame{Seq: seq, Timestamp: ts, Image: rgba}
}

// Empty reports whether the frame carries no pixels.
func (f Frame) Empty() bool {
	return f.Image == nil || f.Image.Bounds().Empty()
}

// Width returns the frame width in pixels.
func (f Frame) Width() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

// Height returns the frame height in pixels.
func (f Frame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

// Clone returns a deep copy of the frame.
func (f Frame) Clone() Frame {
	out := f
	if f.Image != nil {
		out.Image = &image.RGBA{
			Pix:    append([]uint8(nil), f.Image.Pix...),
			Stride: f.Image.Stride,
			Rect:   f.Image.Rect,
		}
	}
	return out
}

// Observation is the classifier's verdict for one frame.
type Observation struct {
	Detected  bool              `json:"detected"`
	Regions   []image.Rectangle `json:"regions"`
	TotalArea int               `json:"total_area"`
}

// FrameMeta travels with a frame into the recorder.
type FrameMeta struct {
	MotionDetected bool   `json:"motion_detected"`
	Regions        int    `json:"regions"`
	TotalArea      int    `json:"total_area"`
	State          string `json:"state"`
}

// EpisodeInfo describes the episode currently being recorded.
type EpisodeInfo struct {
	ID         string    `json:"id"`
	FrameCount int       `json:"frame_count"`
	StartTime  time.Time `json:"start_time"`
}

// Status is the read-only snapshot published by the camera worker.
// A published Status is never mutated.
type Status struct {
	CameraActive   bool         `json:"camera_active"`
	MotionDetected bool         `json:"motion_detected"`
	FPS            float64      `json:"fps"`
	MotionCount    int          `json:"motion_count"`
	StartTime      time.Time    `json:"start_time"`
	Uptime         float64      `json:"uptime_seconds"`
	State          string       `json:"state"`
	Episode        *EpisodeInfo `json:"current_episode,omitempty"`
	FramesCaptured uint64       `json:"frames_captured"`
	UpdatedAt      time.Time    `json:"updated_at"`

	// Frame is the latest annotated frame, nil until the first capture.
	Frame *image.RGBA `json:"-"`
}
