package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/cinevault/backend/internal/logging"
	"github.com/cinevault/backend/internal/repositories"
)

const maxJSONBody = 1 << 20

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func respondError(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, map[string]string{"error": message})
}

// respondStoreError maps repository sentinels onto statuses; anything else is
// logged and reported as a 500 with fallback as the message.
func respondStoreError(ctx context.Context, w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		respondError(ctx, w, http.StatusNotFound, "not found")
	case errors.Is(err, repositories.ErrConflict):
		respondError(ctx, w, http.StatusConflict, "conflicts with the current state")
	case errors.Is(err, context.Canceled):
		logging.FromContext(ctx).Info("request cancelled", "error", err)
	default:
		logging.FromContext(ctx).Error(fallback, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, fallback)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

// pathID returns the named path value when it is a valid UUID.
func pathID(r *http.Request, name string) (string, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return "", false
	}
	return id.String(), true
}
