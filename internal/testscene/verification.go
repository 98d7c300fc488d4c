package testscene

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/episodecam/internal/domain/model"
	"github.com/okian/episodecam/pkg/logger"
)

// ErrEpisodesMissing is returned when the service never records the
// expected number of episodes.
var ErrEpisodesMissing = errors.New("expected episodes not recorded")

// pollLimit bounds one episode query.
const pollLimit = 500

// waitForEpisodes polls the service until it holds at least
// stats.EpisodesExpected closed motion episodes that started after since.
func waitForEpisodes(ctx context.Context, config *Config, since time.Time, stats *Stats) ([]model.EpisodeRecord, error) {
	logger.Get().Info(ctx, "waiting for episodes",
		logger.Int("expected", stats.EpisodesExpected),
		logger.Duration("timeout", config.WaitTimeout))

	ctx, cancel := context.WithTimeout(ctx, config.WaitTimeout)
	defer cancel()

	client := newHTTPClient(config.Timeout)
	ticker := time.NewTicker(config.PollInterval)
	defer ticker.Stop()

	for {
		stats.Polls++
		resp, err := fetchEpisodes(ctx, client, config.BaseURL, pollLimit)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", ErrEpisodesMissing, ctx.Err())
			}
			logger.Get().Warn(ctx, "episode poll failed", logger.Error(err))
		} else {
			found, closed := countEpisodes(resp.Episodes, since)
			stats.EpisodesFound = len(found)
			stats.EpisodesClosed = len(closed)
			if config.Verbose {
				logger.Get().Debug(ctx, "polled episodes",
					logger.Int("found", len(found)),
					logger.Int("closed", len(closed)))
			}
			if len(closed) >= stats.EpisodesExpected {
				return closed, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: found %d of %d", ErrEpisodesMissing, stats.EpisodesClosed, stats.EpisodesExpected)
		case <-ticker.C:
		}
	}
}

// countEpisodes splits episodes started at or after since into all and
// closed ones.
func countEpisodes(eps []model.EpisodeRecord, since time.Time) (found, closed []model.EpisodeRecord) {
	for _, ep := range eps {
		if ep.StartTime.Before(since) {
			continue
		}
		found = append(found, ep)
		if ep.EndTime != nil {
			closed = append(closed, ep)
		}
	}
	return found, closed
}

// verifyEpisodes checks every closed episode against the burst length.
// An episode must last at least as long as the motion it recorded.
func verifyEpisodes(ctx context.Context, config *Config, fps float64, eps []model.EpisodeRecord) error {
	if fps <= 0 {
		return nil
	}
	minDuration := float64(config.MotionFrames) / fps / 2
	var errs []error
	for _, ep := range eps {
		if ep.DurationSeconds == nil {
			errs = append(errs, fmt.Errorf("episode %s has no duration", ep.EpisodeID))
			continue
		}
		if *ep.DurationSeconds < minDuration {
			errs = append(errs, fmt.Errorf("episode %s lasted %.2fs, want at least %.2fs", ep.EpisodeID, *ep.DurationSeconds, minDuration))
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	logger.Get().Info(ctx, "episodes verified", logger.Int("episodes", len(eps)))
	return nil
}
