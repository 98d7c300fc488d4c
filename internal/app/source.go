package service

import (
	"fmt"

	"github.com/okian/episodecam/internal/adapters/mq/worker"
	"github.com/okian/episodecam/internal/adapters/source"
	"github.com/okian/episodecam/internal/config"
	"github.com/okian/episodecam/internal/domain/types"
	"github.com/okian/episodecam/pkg/logger"
)

// NewSource builds the frame source selected by cfg.Kind.
func NewSource(cfg config.SourceConfig, l logger.Logger) (worker.FrameSource, error) {
	opts := []source.Option{
		source.WithFPS(cfg.FPS),
		source.WithLogger(l),
	}
	switch cfg.Kind {
	case config.SourceSynthetic:
		opts = append(opts,
			source.WithSize(cfg.Width, cfg.Height),
			source.WithBursts(cfg.BurstEvery, cfg.BurstLength),
		)
		return source.NewSynthetic(opts...), nil
	case config.SourceDirectory:
		return source.NewDirectory(cfg.Dir, append(opts, source.WithLoop(cfg.Loop))...), nil
	default:
		return nil, fmt.Errorf("%w: unknown source kind %q", types.ErrFatal, cfg.Kind)
	}
}
