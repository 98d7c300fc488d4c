package api

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"time"

	"github.com/okian/episodecam/pkg/logger"
)

const feedBoundary = "frame"

// FeedHandler streams annotated frames.
type FeedHandler struct {
	feed     FrameFeed
	status   StatusProvider
	interval time.Duration
	quality  int
	logger   logger.Logger
}

// NewFeedHandler creates a feed handler sending at most maxFPS frames per
// second to each client.
func NewFeedHandler(feed FrameFeed, status StatusProvider, maxFPS float64, quality int, l logger.Logger) *FeedHandler {
	return &FeedHandler{
		feed:     feed,
		status:   status,
		interval: time.Duration(float64(time.Second) / maxFPS),
		quality:  quality,
		logger:   l,
	}
}

// HandleFeed handles GET /video_feed with a multipart/x-mixed-replace
// MJPEG stream. The stream ends when the client goes away or the feed
// closes.
func (h *FeedHandler) HandleFeed(w http.ResponseWriter, r *http.Request) {
	const op = "api.video_feed"
	ctx := r.Context()
	frames, cancel, err := h.feed.Subscribe(ctx)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
		return
	}
	defer cancel()

	mw := multipart.NewWriter(w)
	if err := mw.SetBoundary(feedBoundary); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+feedBoundary)
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	rc := http.NewResponseController(w)

	var buf bytes.Buffer
	var last time.Time
	send := func(img *image.RGBA) error {
		buf.Reset()
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: h.quality}); err != nil {
			return fmt.Errorf("encode frame: %w", err)
		}
		part, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":   {"image/jpeg"},
			"Content-Length": {strconv.Itoa(buf.Len())},
		})
		if err != nil {
			return err
		}
		if _, err := part.Write(buf.Bytes()); err != nil {
			return err
		}
		last = time.Now()
		return rc.Flush()
	}

	if st := h.status.Status(); st != nil && st.Frame != nil {
		if err := send(st.Frame); err != nil {
			return
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-frames:
			if !ok {
				return
			}
			if f.Empty() || time.Since(last) < h.interval {
				continue
			}
			if err := send(f.Image); err != nil {
				if !errors.Is(err, ctx.Err()) {
					h.logger.Debug(ctx, "feed client dropped", logger.Error(err))
				}
				return
			}
		}
	}
}

// HandleSnapshot handles GET /snapshot.jpg with the latest annotated frame.
func (h *FeedHandler) HandleSnapshot(w http.ResponseWriter, r *http.Request) {
	const op = "api.snapshot"
	st := h.status.Status()
	if st == nil || st.Frame == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, errors.New("no frame captured yet")))
		return
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, st.Frame, &jpeg.Options{Quality: h.quality}); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
