// Package motion detects motion by differencing frames against an adaptive
// background reference.
//
// The pipeline per frame is: optional downscale, BT.601 grayscale, Gaussian
// blur, absolute difference against the reference, binary threshold, 3x3
// dilation, 8-connected component labelling and a minimum-area filter.
// A Classifier is not safe for concurrent use; the camera worker owns it.
package motion

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/okian/episodecam/internal/domain/types"
	"github.com/okian/episodecam/pkg/logger"
)

// Defaults for a 1080p/720p camera.
const (
	DefaultThreshold            = 30
	DefaultMinArea              = 500
	DefaultBlurKernel           = 5
	DefaultBackgroundUpdateRate = 0.1
	DefaultMaxDetectHeight      = 720
	DefaultDetectHeight         = 360
)

// Config holds the classifier tuning parameters.
type Config struct {
	Threshold            int     `json:"motion_threshold"`
	MinArea              int     `json:"min_area"`
	BlurKernel           int     `json:"blur_kernel"`
	BackgroundUpdateRate float64 `json:"background_update_rate"`
	MaxDetectHeight      int     `json:"max_detect_height"`
	DetectHeight         int     `json:"detect_height"`
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		Threshold:            DefaultThreshold,
		MinArea:              DefaultMinArea,
		BlurKernel:           DefaultBlurKernel,
		BackgroundUpdateRate: DefaultBackgroundUpdateRate,
		MaxDetectHeight:      DefaultMaxDetectHeight,
		DetectHeight:         DefaultDetectHeight,
	}
}

// Update carries optional runtime changes; nil fields are left alone.
type Update struct {
	Threshold            *int     `json:"motion_threshold,omitempty"`
	MinArea              *int     `json:"min_area,omitempty"`
	BlurKernel           *int     `json:"blur_kernel,omitempty"`
	BackgroundUpdateRate *float64 `json:"background_update_rate,omitempty"`
}

// FieldError describes one rejected Update field. It unwraps to types.ErrConfig.
type FieldError struct {
	Field  string
	Value  any
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s=%v rejected: %s", e.Field, e.Value, e.Reason)
}

func (e *FieldError) Unwrap() error { return types.ErrConfig }

// RejectedFields lists the fields named by FieldErrors inside err.
func RejectedFields(err error) []string {
	if err == nil {
		return nil
	}
	var out []string
	var fe *FieldError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, RejectedFields(e)...)
		}
		return out
	}
	if errors.As(err, &fe) {
		out = append(out, fe.Field)
	}
	return out
}

// Classifier turns frames into motion observations.
type Classifier struct {
	cfg    Config
	bg     Background
	logger logger.Logger

	// last classified frame, reused by UpdateBackground
	lastImage    *image.RGBA
	lastGray     *image.Gray
	lastDetected bool
}

// NewClassifier builds a classifier with defaults overridden by opts.
// An even blur kernel is bumped to the next odd size with a warning.
func NewClassifier(opts ...Option) *Classifier {
	c := &Classifier{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Get().Named("motion")
	}
	if k, bumped := oddKernel(c.cfg.BlurKernel); bumped {
		c.logger.Warn(context.Background(), "blur kernel must be odd; using next odd size",
			logger.Int("requested", c.cfg.BlurKernel), logger.Int("using", k))
		c.cfg.BlurKernel = k
	}
	return c
}

// Config returns the active tuning.
func (c *Classifier) Config() Config { return c.cfg }

// HasBackground reports whether a background reference exists.
func (c *Classifier) HasBackground() bool { return c.bg.Ready() }

// prepare validates f and returns its blurred grayscale at detection scale.
func (c *Classifier) prepare(f types.Frame) (*image.Gray, float64, error) {
	if f.Empty() {
		return nil, 0, fmt.Errorf("%w: empty frame", types.ErrInput)
	}
	src, scale := downscale(f.Image, c.cfg.MaxDetectHeight, c.cfg.DetectHeight)
	return gaussianBlur(grayscale(src), c.cfg.BlurKernel), scale, nil
}

// SetBackground makes f the background reference.
func (c *Classifier) SetBackground(f types.Frame) error {
	gray, _, err := c.prepare(f)
	if err != nil {
		return err
	}
	c.bg.Set(gray)
	return nil
}

// Classify compares f with the background. Without a background, or when the
// frame size changed, f becomes the new reference and no motion is reported.
// The returned frame is a copy of f with a green box around every region.
func (c *Classifier) Classify(f types.Frame) (types.Observation, types.Frame, error) {
	gray, scale, err := c.prepare(f)
	if err != nil {
		return types.Observation{}, types.Frame{}, err
	}
	annotated := f.Clone()
	c.lastImage, c.lastGray, c.lastDetected = f.Image, gray, false

	if !c.bg.Matches(gray.Rect) {
		if c.bg.Ready() {
			c.logger.Info(context.Background(), "frame size changed; rebuilding background",
				logger.Int("width", f.Width()), logger.Int("height", f.Height()))
		}
		c.bg.Set(gray)
		return types.Observation{}, annotated, nil
	}

	bounds := image.Rect(0, 0, f.Width(), f.Height())
	var obs types.Observation
	for _, b := range diffMask(gray, c.bg.Reference(), c.cfg.Threshold).dilate(dilateIterations).blobs() {
		if b.area < c.cfg.MinArea {
			continue
		}
		r := upscaleRect(b.bounds, scale, bounds).Add(f.Image.Rect.Min)
		obs.Regions = append(obs.Regions, r)
		obs.TotalArea += int(math.Round(float64(b.area) * scale * scale))
	}
	obs.Detected = len(obs.Regions) > 0
	c.lastDetected = obs.Detected

	if obs.Detected {
		annotate(annotated.Image, obs.Regions)
	}
	return obs, annotated, nil
}

// UpdateBackground blends f into the reference using the configured rate.
// It does nothing when the last classification reported motion, so moving
// objects are never absorbed into the background.
func (c *Classifier) UpdateBackground(f types.Frame) error {
	if c.lastDetected {
		return nil
	}
	gray := c.lastGray
	if gray == nil || f.Image != c.lastImage {
		var err error
		if gray, _, err = c.prepare(f); err != nil {
			return err
		}
	}
	c.bg.Blend(gray, c.cfg.BackgroundUpdateRate)
	return nil
}

// ResetBackground drops the reference; the next frame recalibrates.
func (c *Classifier) ResetBackground() {
	c.bg.Reset()
	c.lastImage, c.lastGray, c.lastDetected = nil, nil, false
}

// UpdateConfig applies every valid field of u and rejects the rest, keeping
// their previous values. The error joins one FieldError per rejected field.
func (c *Classifier) UpdateConfig(u Update) (Config, error) {
	ctx := context.Background()
	var errs []error
	reject := func(field string, value any, reason string) {
		c.logger.Warn(ctx, "rejected classifier setting",
			logger.String("field", field), logger.Any("value", value), logger.String("reason", reason))
		errs = append(errs, &FieldError{Field: field, Value: value, Reason: reason})
	}

	if u.Threshold != nil {
		if v := *u.Threshold; v < 0 || v > 255 {
			reject("motion_threshold", v, "must be within [0,255]")
		} else {
			c.cfg.Threshold = v
		}
	}
	if u.MinArea != nil {
		if v := *u.MinArea; v <= 0 {
			reject("min_area", v, "must be positive")
		} else {
			c.cfg.MinArea = v
		}
	}
	if u.BackgroundUpdateRate != nil {
		if v := *u.BackgroundUpdateRate; math.IsNaN(v) || v < 0 || v > 1 {
			reject("background_update_rate", v, "must be within [0,1]")
		} else {
			c.cfg.BackgroundUpdateRate = v
		}
	}
	if u.BlurKernel != nil {
		if v := *u.BlurKernel; v < 1 {
			reject("blur_kernel", v, "must be positive")
		} else {
			k, bumped := oddKernel(v)
			if bumped {
				c.logger.Warn(ctx, "blur kernel must be odd; using next odd size",
					logger.Int("requested", v), logger.Int("using", k))
			}
			if k != c.cfg.BlurKernel {
				c.cfg.BlurKernel = k
				// references blurred with another kernel are not comparable
				c.ResetBackground()
			}
		}
	}

	return c.cfg, errors.Join(errs...)
}
