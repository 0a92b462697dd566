package handlers

import (
	"errors"
	"net/http"

	"github.com/cinevault/backend/internal/engagement"
	"github.com/cinevault/backend/internal/logging"
	"github.com/cinevault/backend/internal/models"
)

// EngagementHandler exposes the reaction, rating and favorite toggles.
type EngagementHandler struct {
	Engagement EngagementService
}

type reactionRequest struct {
	Kind string `json:"kind"`
}

type ratingRequest struct {
	Value int `json:"value"`
}

// React handles PUT /api/v1/videos/{id}/reaction. Sending the current kind
// again clears the reaction.
func (h EngagementHandler) React(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := pathID(r, "id")
	if !ok {
		respondError(ctx, w, http.StatusNotFound, "video not found")
		return
	}

	var req reactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.Engagement.ToggleReaction(ctx, logging.UserIDFromContext(ctx), id, req.Kind)
	if err != nil {
		if errors.Is(err, engagement.ErrInvalidReaction) {
			respondError(ctx, w, http.StatusBadRequest, err.Error())
			return
		}
		respondStoreError(ctx, w, err, "failed to update reaction")
		return
	}

	respondJSON(ctx, w, http.StatusOK, result)
}

// Rate handles PUT /api/v1/videos/{id}/rating.
func (h EngagementHandler) Rate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := pathID(r, "id")
	if !ok {
		respondError(ctx, w, http.StatusNotFound, "video not found")
		return
	}

	var req ratingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	stats, err := h.Engagement.Rate(ctx, logging.UserIDFromContext(ctx), id, req.Value)
	if err != nil {
		if errors.Is(err, engagement.ErrInvalidRating) {
			respondError(ctx, w, http.StatusBadRequest, err.Error())
			return
		}
		respondStoreError(ctx, w, err, "failed to save rating")
		return
	}

	respondJSON(ctx, w, http.StatusOK, ratingResponse{Rating: req.Value, Stats: stats})
}

type ratingResponse struct {
	Rating int               `json:"rating"`
	Stats  models.VideoStats `json:"stats"`
}

// Favorite handles POST /api/v1/videos/{id}/favorite.
func (h EngagementHandler) Favorite(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := pathID(r, "id")
	if !ok {
		respondError(ctx, w, http.StatusNotFound, "video not found")
		return
	}

	favorited, err := h.Engagement.ToggleFavorite(ctx, logging.UserIDFromContext(ctx), id)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to update favorite")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]bool{"favorited": favorited})
}

// State handles GET /api/v1/videos/{id}/engagement.
func (h EngagementHandler) State(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := pathID(r, "id")
	if !ok {
		respondError(ctx, w, http.StatusNotFound, "video not found")
		return
	}

	state, err := h.Engagement.State(ctx, logging.UserIDFromContext(ctx), id)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load engagement")
		return
	}

	respondJSON(ctx, w, http.StatusOK, state)
}
