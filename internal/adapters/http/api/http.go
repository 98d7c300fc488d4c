// Package api serves the REST API, the live MJPEG feed and the metrics
// endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/okian/episodecam/internal/adapters/mq/queue"
	"github.com/okian/episodecam/internal/adapters/repository"
	"github.com/okian/episodecam/internal/domain/model"
	"github.com/okian/episodecam/internal/domain/motion"
	"github.com/okian/episodecam/internal/domain/types"
	"github.com/okian/episodecam/pkg/logger"
)

// StatusProvider exposes the latest camera snapshot.
type StatusProvider interface {
	Status() *types.Status
}

// ConfigService reads and changes the classifier tuning.
type ConfigService interface {
	ClassifierConfig() motion.Config
	UpdateConfig(ctx context.Context, u motion.Update) (motion.Config, error)
}

// Store is the read side of the episode and event repository.
type Store interface {
	GetEpisode(ctx context.Context, episodeID string) (model.EpisodeRecord, error)
	ListEpisodes(ctx context.Context, f model.EpisodeFilter) ([]model.EpisodeRecord, error)
	ListEvents(ctx context.Context, f model.EventFilter) ([]model.EventRecord, error)
	Stats(ctx context.Context) (model.Stats, error)
}

// FrameFeed hands out live frame subscriptions.
type FrameFeed interface {
	Subscribe(ctx context.Context) (<-chan queue.Frame, func(), error)
}

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	StatusProvider
	ConfigService
	Store
	FrameFeed
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	statusHandler   *StatusHandler
	episodesHandler *EpisodesHandler
	eventsHandler   *EventsHandler
	configHandler   *ConfigHandler
	feedHandler     *FeedHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("api")
	}
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(statsProvider),
		statusHandler:   NewStatusHandler(deps, deps, o.clock, o.logger),
		episodesHandler: NewEpisodesHandler(deps),
		eventsHandler:   NewEventsHandler(deps),
		configHandler:   NewConfigHandler(deps),
		feedHandler:     NewFeedHandler(deps, deps, o.maxFPS, o.jpegQuality, o.logger),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("GET /api/status", MetricsMiddleware(s.statusHandler.HandleStatus, "status"))
	mux.HandleFunc("GET /api/episodes", MetricsMiddleware(s.episodesHandler.HandleList, "episodes"))
	mux.HandleFunc("GET /api/episodes/{episode_id}", MetricsMiddleware(s.episodesHandler.HandleGet, "episode"))
	mux.HandleFunc("GET /api/events", MetricsMiddleware(s.eventsHandler.HandleList, "events"))
	mux.HandleFunc("GET /api/config", MetricsMiddleware(s.configHandler.HandleGet, "config"))
	mux.HandleFunc("POST /api/config", MetricsMiddleware(s.configHandler.HandleUpdate, "config"))
	mux.HandleFunc("GET /video_feed", MetricsMiddleware(s.feedHandler.HandleFeed, "video_feed"))
	mux.HandleFunc("GET /snapshot.jpg", MetricsMiddleware(s.feedHandler.HandleSnapshot, "snapshot"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// isNotFound translates upstream not-found errors to 404.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound) || errors.Is(err, ErrNotFound)
}

// Option applies a configuration option to the Server.
type Option func(*options)

type options struct {
	maxFPS      float64
	jpegQuality int
	clock       func() time.Time
	logger      logger.Logger
}

// Feed defaults.
const (
	DefaultFeedMaxFPS      = 10
	DefaultFeedJPEGQuality = 70
)

func defaultOptions() options {
	return options{
		maxFPS:      DefaultFeedMaxFPS,
		jpegQuality: DefaultFeedJPEGQuality,
		clock:       time.Now,
	}
}

// WithFeedMaxFPS caps the MJPEG frame rate per client.
func WithFeedMaxFPS(fps float64) Option {
	return func(o *options) {
		if fps > 0 {
			o.maxFPS = fps
		}
	}
}

// WithFeedQuality sets the MJPEG and snapshot JPEG quality.
func WithFeedQuality(q int) Option {
	return func(o *options) {
		if q >= 1 && q <= 100 {
			o.jpegQuality = q
		}
	}
}

// WithClock sets the time source used for uptime.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithLogger sets a custom logger for the handlers.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}
