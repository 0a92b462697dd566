package handlers

import (
	"errors"
	"net/http"

	"github.com/cinevault/backend/internal/logging"
	"github.com/cinevault/backend/internal/realtime"
)

// LiveHandler upgrades viewers to a websocket that streams a video's stats.
type LiveHandler struct {
	Videos VideoStore
	Hub    LiveHub
}

// Serve handles GET /api/v1/videos/{id}/live.
func (h LiveHandler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := pathID(r, "id")
	if !ok {
		respondError(ctx, w, http.StatusNotFound, "video not found")
		return
	}

	video, err := h.Videos.Get(ctx, id)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load video")
		return
	}
	if !video.Published() {
		respondError(ctx, w, http.StatusNotFound, "video not found")
		return
	}

	// The upgrader has already answered the request when Serve fails.
	err = h.Hub.Serve(w, r, id, video.Stats())
	switch {
	case errors.Is(err, realtime.ErrClosed):
		logging.FromContext(ctx).Info("live listener refused during shutdown", "video_id", id)
	case err != nil:
		logging.FromContext(ctx).Warn("live upgrade failed", "error", err, "video_id", id)
	}
}
