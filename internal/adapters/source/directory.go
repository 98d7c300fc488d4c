package source

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg" // register decoders
	_ "image/png"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/okian/episodecam/internal/domain/types"
	"github.com/okian/episodecam/pkg/logger"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var imageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".bmp": true, ".webp": true,
}

// Directory replays image files from a directory in lexical order. Running
// past the last file is a transient miss unless looping is enabled.
type Directory struct {
	cfg     settings
	dir     string
	pacer   pacer
	files   []string
	next    int
	running atomic.Bool
	seq     uint64
}

// NewDirectory creates a replay source over dir.
func NewDirectory(dir string, opts ...Option) *Directory {
	cfg := defaultSettings()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Get().Named("source.directory")
	}
	return &Directory{cfg: cfg, dir: dir, pacer: newPacer(cfg.fps)}
}

// Start lists the image files. An unreadable or empty directory is fatal.
func (d *Directory) Start(ctx context.Context) error {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", types.ErrFatal, d.dir, err)
	}
	d.files = d.files[:0]
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		d.files = append(d.files, filepath.Join(d.dir, e.Name()))
	}
	if len(d.files) == 0 {
		return fmt.Errorf("%w: %s: %w", types.ErrFatal, d.dir, ErrNoFrames)
	}
	slices.Sort(d.files)
	d.next = 0
	d.running.Store(true)
	d.cfg.logger.Info(ctx, "directory source started",
		logger.String("dir", d.dir),
		logger.Int("files", len(d.files)),
		logger.Bool("loop", d.cfg.loop))
	return nil
}

// Stop ends replay. It is safe to call from another goroutine.
func (d *Directory) Stop(ctx context.Context) error {
	if d.running.Swap(false) {
		d.cfg.logger.Info(ctx, "directory source stopped", logger.String("dir", d.dir))
	}
	return nil
}

// Len returns the number of files found by Start.
func (d *Directory) Len() int { return len(d.files) }

// Capture decodes the next file. Unreadable files are skipped as misses.
func (d *Directory) Capture(ctx context.Context) (types.Frame, error) {
	if !d.running.Load() {
		return types.Frame{}, ErrNotStarted
	}
	if d.next >= len(d.files) {
		if !d.cfg.loop {
			return types.Frame{}, fmt.Errorf("%w: end of %s", types.ErrTransientCapture, d.dir)
		}
		d.next = 0
	}
	if err := d.pacer.wait(ctx); err != nil {
		return types.Frame{}, fmt.Errorf("directory capture: %w", err)
	}
	path := d.files[d.next]
	d.next++

	img, err := decodeFile(path)
	if err != nil {
		d.cfg.logger.Warn(ctx, "skipping unreadable frame", logger.String("path", path), logger.Error(err))
		return types.Frame{}, fmt.Errorf("%w: %s: %w", types.ErrTransientCapture, path, err)
	}
	d.seq++
	return types.NewFrame(img, d.seq, d.cfg.clock()), nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	return img, err
}
