// Package engagement applies reaction, rating and favorite toggles and
// announces the resulting changes.
package engagement

import (
	"context"
	"errors"
	"time"

	"github.com/cinevault/backend/internal/events"
	"github.com/cinevault/backend/internal/logging"
	"github.com/cinevault/backend/internal/metrics"
	"github.com/cinevault/backend/internal/models"
	"github.com/cinevault/backend/internal/repositories"
)

var (
	// ErrInvalidReaction indicates an unknown reaction kind.
	ErrInvalidReaction = errors.New("reaction must be one of heart, fire, hot-face")
	// ErrInvalidRating indicates a rating outside 1..5.
	ErrInvalidRating = errors.New("rating must be an integer between 1 and 5")
)

// ReactionKinds lists the accepted reaction kinds.
var ReactionKinds = []string{"heart", "fire", "hot-face"}

// ValidReaction reports whether kind is an accepted reaction.
func ValidReaction(kind string) bool {
	for _, k := range ReactionKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Store persists engagement rows.
type Store interface {
	ToggleReaction(ctx context.Context, userID, videoID, kind string) (string, models.VideoStats, error)
	Rate(ctx context.Context, userID, videoID string, value int) (models.VideoStats, error)
	ToggleFavorite(ctx context.Context, userID, videoID string) (bool, error)
	State(ctx context.Context, userID, videoID string) (models.Engagement, error)
}

// CounterStore bumps view and download counters.
type CounterStore interface {
	Increment(ctx context.Context, videoID string, counter repositories.Counter) (models.VideoStats, error)
}

// Notifier hands events to the asynchronous sinks.
type Notifier interface {
	Dispatch(event events.Event) error
}

// ReactionResult is the outcome of a reaction toggle.
type ReactionResult struct {
	Reaction string            `json:"reaction"`
	Stats    models.VideoStats `json:"stats"`
}

// Service coordinates engagement writes with event dispatch.
type Service struct {
	store    Store
	counters CounterStore
	notifier Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewService constructs a Service. notifier and m may be nil.
func NewService(store Store, counters CounterStore, notifier Notifier, m *metrics.Metrics) *Service {
	return &Service{
		store:    store,
		counters: counters,
		notifier: notifier,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ToggleReaction sets, switches or clears the user's reaction on a video.
func (s *Service) ToggleReaction(ctx context.Context, userID, videoID, kind string) (ReactionResult, error) {
	if !ValidReaction(kind) {
		return ReactionResult{}, ErrInvalidReaction
	}

	current, stats, err := s.store.ToggleReaction(ctx, userID, videoID, kind)
	if err != nil {
		return ReactionResult{}, err
	}

	s.observe("reaction")
	s.notify(ctx, events.Event{
		Type:     events.TypeReactionToggled,
		VideoID:  videoID,
		UserID:   userID,
		Reaction: current,
		Stats:    stats,
	})

	return ReactionResult{Reaction: current, Stats: stats}, nil
}

// Rate records the user's rating of a video.
func (s *Service) Rate(ctx context.Context, userID, videoID string, value int) (models.VideoStats, error) {
	if value < 1 || value > 5 {
		return models.VideoStats{}, ErrInvalidRating
	}

	stats, err := s.store.Rate(ctx, userID, videoID, value)
	if err != nil {
		return models.VideoStats{}, err
	}

	s.observe("rating")
	s.notify(ctx, events.Event{
		Type:    events.TypeRatingSet,
		VideoID: videoID,
		UserID:  userID,
		Rating:  value,
		Stats:   stats,
	})

	return stats, nil
}

// ToggleFavorite flips the favorite flag and returns the new state.
func (s *Service) ToggleFavorite(ctx context.Context, userID, videoID string) (bool, error) {
	favorited, err := s.store.ToggleFavorite(ctx, userID, videoID)
	if err != nil {
		return false, err
	}

	s.observe("favorite")
	s.notify(ctx, events.Event{
		Type:      events.TypeFavoriteToggled,
		VideoID:   videoID,
		UserID:    userID,
		Favorited: &favorited,
	})

	return favorited, nil
}

// State returns the caller's engagement with a video.
func (s *Service) State(ctx context.Context, userID, videoID string) (models.Engagement, error) {
	return s.store.State(ctx, userID, videoID)
}

// RecordView counts a playback of a published video.
func (s *Service) RecordView(ctx context.Context, videoID string) (models.VideoStats, error) {
	return s.count(ctx, videoID, repositories.CounterView, events.TypeVideoViewed)
}

// RecordDownload counts a download of a published video.
func (s *Service) RecordDownload(ctx context.Context, videoID string) (models.VideoStats, error) {
	return s.count(ctx, videoID, repositories.CounterDownload, events.TypeVideoDownloaded)
}

func (s *Service) count(ctx context.Context, videoID string, counter repositories.Counter, kind events.Type) (models.VideoStats, error) {
	stats, err := s.counters.Increment(ctx, videoID, counter)
	if err != nil {
		return models.VideoStats{}, err
	}

	s.observe(string(counter))
	s.notify(ctx, events.Event{Type: kind, VideoID: videoID, UserID: logging.UserIDFromContext(ctx), Stats: stats})
	return stats, nil
}

func (s *Service) notify(ctx context.Context, event events.Event) {
	if s.notifier == nil {
		return
	}
	event.OccurredAt = s.now()
	if err := s.notifier.Dispatch(event); err != nil {
		logging.FromContext(ctx).Warn("engagement event not dispatched", "type", event.Type, "error", err)
	}
}

func (s *Service) observe(kind string) {
	if s.metrics != nil {
		s.metrics.EngagementTotal.WithLabelValues(kind).Inc()
	}
}
