// Package recorder stores episodes on disk as a directory of JPEG frames with
// JSON metadata.
//
// Layout of a saved episode:
//
//	<episode_dir>/<id>/images/frame_000000.jpg
//	<episode_dir>/<id>/metadata.json
//	<episode_dir>/<id>/info.json
//
// Frames are encoded when added and written when the episode is saved. The
// episode directory appears atomically through a rename.
package recorder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/okian/episodecam/internal/domain/episode"
	"github.com/okian/episodecam/internal/domain/types"
	"github.com/okian/episodecam/pkg/logger"
)

const (
	imagesDir    = "images"
	metadataFile = "metadata.json"
	infoFile     = "info.json"
	tmpSuffix    = ".partial"
	dataset      = "episodecam"
)

type frameEntry struct {
	index int
	ts    time.Time
	jpeg  []byte
	meta  types.FrameMeta
}

type recording struct {
	id     string
	start  time.Time
	width  int
	height int
	frames []frameEntry
}

// Recorder buffers one episode at a time.
type Recorder struct {
	dir       string
	quality   int
	maxFrames int
	clock     func() time.Time
	newID     episode.IDFunc
	logger    logger.Logger

	mu      sync.Mutex
	current *recording
	dropped int
}

// New creates a recorder writing under dir.
func New(dir string, opts ...Option) *Recorder {
	r := &Recorder{
		dir:       dir,
		quality:   DefaultQuality,
		maxFrames: DefaultMaxFrames,
		clock:     time.Now,
		newID:     episode.NewID,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = logger.Get().Named("recorder")
	}
	return r
}

// StartEpisode begins buffering a new episode started now and returns its
// id. An empty id is generated. An episode still in progress is discarded
// with a warning.
func (r *Recorder) StartEpisode(ctx context.Context, id string) (string, error) {
	return r.StartEpisodeAt(ctx, id, time.Time{})
}

// StartEpisodeAt is StartEpisode with the start time the controller opened
// the episode at, so metadata.json agrees with the episode row. A zero start
// uses the recorder clock.
func (r *Recorder) StartEpisodeAt(ctx context.Context, id string, start time.Time) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := start
	if now.IsZero() {
		now = r.clock()
	}
	if id == "" {
		id = r.newID(now)
	}
	if r.current != nil {
		r.logger.Warn(ctx, "discarding unsaved episode",
			logger.String("episode_id", r.current.id), logger.Int("frames", len(r.current.frames)))
	}
	r.current = &recording{id: id, start: now}
	r.dropped = 0
	return id, nil
}

// AddFrame encodes f and appends it to the current episode.
func (r *Recorder) AddFrame(ctx context.Context, f types.Frame, meta types.FrameMeta) error {
	if f.Empty() {
		return fmt.Errorf("%w: empty frame", types.ErrInput)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.Image, &jpeg.Options{Quality: r.quality}); err != nil {
		return fmt.Errorf("%w: encode frame: %w", types.ErrPersistence, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return ErrNoEpisode
	}
	if len(r.current.frames) >= r.maxFrames {
		if r.dropped == 0 {
			r.logger.Warn(ctx, "episode frame limit reached; dropping frames",
				logger.String("episode_id", r.current.id), logger.Int("max_frames", r.maxFrames))
		}
		r.dropped++
		return nil
	}
	if len(r.current.frames) == 0 {
		r.current.width, r.current.height = f.Width(), f.Height()
	}
	ts := f.Timestamp
	if ts.IsZero() {
		ts = r.clock()
	}
	r.current.frames = append(r.current.frames, frameEntry{
		index: len(r.current.frames),
		ts:    ts,
		jpeg:  buf.Bytes(),
		meta:  meta,
	})
	return nil
}

// CurrentEpisode returns the id and frame count of the episode in progress.
func (r *Recorder) CurrentEpisode() (types.EpisodeInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return types.EpisodeInfo{}, false
	}
	return types.EpisodeInfo{ID: r.current.id, FrameCount: len(r.current.frames), StartTime: r.current.start}, true
}

// EpisodePath returns where episode id is, or will be, saved.
func (r *Recorder) EpisodePath(id string) string {
	return filepath.Join(r.dir, id)
}

// SaveEpisode writes the current episode and returns its directory, or "" when
// it has no frames. The in-memory episode is cleared whether or not the
// write succeeds.
func (r *Recorder) SaveEpisode(ctx context.Context) (string, error) {
	r.mu.Lock()
	rec := r.current
	r.current = nil
	r.mu.Unlock()

	if rec == nil {
		return "", ErrNoEpisode
	}
	if len(rec.frames) == 0 {
		r.logger.Info(ctx, "episode has no frames; nothing saved", logger.String("episode_id", rec.id))
		return "", nil
	}

	final := r.EpisodePath(rec.id)
	tmp := final + tmpSuffix
	if err := r.write(tmp, rec); err != nil {
		_ = os.RemoveAll(tmp)
		return "", fmt.Errorf("%w: save %s: %w", types.ErrPersistence, rec.id, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		_ = os.RemoveAll(tmp)
		return "", fmt.Errorf("%w: save %s: %w", types.ErrPersistence, rec.id, err)
	}
	r.logger.Info(ctx, "episode saved",
		logger.String("episode_id", rec.id),
		logger.String("path", final),
		logger.Int("frames", len(rec.frames)))
	return final, nil
}

func (r *Recorder) write(dir string, rec *recording) error {
	if err := os.MkdirAll(filepath.Join(dir, imagesDir), 0o755); err != nil {
		return err
	}
	paths := make([]string, len(rec.frames))
	frames := make([]frameMetadata, len(rec.frames))
	motion := false
	for i, fr := range rec.frames {
		rel := filepath.Join(imagesDir, fmt.Sprintf("frame_%06d.jpg", fr.index))
		if err := os.WriteFile(filepath.Join(dir, rel), fr.jpeg, 0o644); err != nil {
			return err
		}
		paths[i] = filepath.ToSlash(rel)
		frames[i] = frameMetadata{Index: fr.index, Timestamp: fr.ts, Path: paths[i], FrameMeta: fr.meta}
		motion = motion || fr.meta.MotionDetected
	}

	first, last := rec.frames[0].ts, rec.frames[len(rec.frames)-1].ts
	duration := last.Sub(first).Seconds()
	var fps float64
	if duration > 0 {
		fps = float64(len(rec.frames)-1) / duration
	}
	meta := metadata{
		EpisodeID:       rec.id,
		StartTime:       rec.start,
		EndTime:         last,
		FPS:             fps,
		Resolution:      [2]int{rec.width, rec.height},
		MotionDetected:  motion,
		TotalFrames:     len(rec.frames),
		FramePaths:      paths,
		DurationSeconds: duration,
		Frames:          frames,
	}
	info := info{
		Dataset:     dataset,
		Version:     1,
		EpisodeID:   rec.id,
		TotalFrames: len(rec.frames),
		FPS:         fps,
		Features: map[string]string{
			"observation.image": "jpeg",
			"motion_detected":   "bool",
		},
		CreatedAt: r.clock(),
	}
	if err := writeJSON(filepath.Join(dir, metadataFile), meta); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, infoFile), info)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
