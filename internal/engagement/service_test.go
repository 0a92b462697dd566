package engagement

import (
	"context"
	"errors"
	"testing"

	"github.com/cinevault/backend/internal/events"
	"github.com/cinevault/backend/internal/logging"
	"github.com/cinevault/backend/internal/metrics"
	"github.com/cinevault/backend/internal/models"
	"github.com/cinevault/backend/internal/repositories"
)

// memoryStore mirrors the toggle semantics of the database repository.
type memoryStore struct {
	reactions map[string]string
	ratings   map[string]int
	favorites map[string]bool
	videos    map[string]bool
}

func newMemoryStore(videoIDs ...string) *memoryStore {
	s := &memoryStore{
		reactions: map[string]string{},
		ratings:   map[string]int{},
		favorites: map[string]bool{},
		videos:    map[string]bool{},
	}
	for _, id := range videoIDs {
		s.videos[id] = true
	}
	return s
}

func key(userID, videoID string) string { return userID + "/" + videoID }

func (s *memoryStore) stats(videoID string) models.VideoStats {
	stats := models.VideoStats{VideoID: videoID}
	var total int
	for k, kind := range s.reactions {
		if kind != "" && k[len(k)-len(videoID):] == videoID {
			stats.ReactionCount++
		}
	}
	for k, v := range s.ratings {
		if k[len(k)-len(videoID):] == videoID {
			stats.RatingCount++
			total += v
		}
	}
	if stats.RatingCount > 0 {
		stats.Rating = float64(total) / float64(stats.RatingCount)
	}
	return stats
}

func (s *memoryStore) ToggleReaction(_ context.Context, userID, videoID, kind string) (string, models.VideoStats, error) {
	if !s.videos[videoID] {
		return "", models.VideoStats{}, repositories.ErrNotFound
	}
	k := key(userID, videoID)
	if s.reactions[k] == kind {
		delete(s.reactions, k)
	} else {
		s.reactions[k] = kind
	}
	return s.reactions[k], s.stats(videoID), nil
}

func (s *memoryStore) Rate(_ context.Context, userID, videoID string, value int) (models.VideoStats, error) {
	if !s.videos[videoID] {
		return models.VideoStats{}, repositories.ErrNotFound
	}
	s.ratings[key(userID, videoID)] = value
	return s.stats(videoID), nil
}

func (s *memoryStore) ToggleFavorite(_ context.Context, userID, videoID string) (bool, error) {
	if !s.videos[videoID] {
		return false, repositories.ErrNotFound
	}
	k := key(userID, videoID)
	s.favorites[k] = !s.favorites[k]
	return s.favorites[k], nil
}

func (s *memoryStore) State(_ context.Context, userID, videoID string) (models.Engagement, error) {
	k := key(userID, videoID)
	return models.Engagement{Reaction: s.reactions[k], Rating: s.ratings[k], Favorited: s.favorites[k]}, nil
}

type stubCounters struct {
	counts map[repositories.Counter]int
	err    error
}

func (c *stubCounters) Increment(_ context.Context, videoID string, counter repositories.Counter) (models.VideoStats, error) {
	if c.err != nil {
		return models.VideoStats{}, c.err
	}
	if c.counts == nil {
		c.counts = map[repositories.Counter]int{}
	}
	c.counts[counter]++
	return models.VideoStats{VideoID: videoID, ViewCount: c.counts[repositories.CounterView], DownloadCount: c.counts[repositories.CounterDownload]}, nil
}

type recordingNotifier struct {
	events []events.Event
	err    error
}

func (n *recordingNotifier) Dispatch(event events.Event) error {
	n.events = append(n.events, event)
	return n.err
}

func newTestService(store Store) (*Service, *recordingNotifier, *stubCounters) {
	notifier := &recordingNotifier{}
	counters := &stubCounters{}
	return NewService(store, counters, notifier, metrics.New(nil)), notifier, counters
}

func TestToggleReactionSemantics(t *testing.T) {
	svc, notifier, _ := newTestService(newMemoryStore("v1"))
	ctx := context.Background()

	res, err := svc.ToggleReaction(ctx, "u1", "v1", "heart")
	if err != nil || res.Reaction != "heart" || res.Stats.ReactionCount != 1 {
		t.Fatalf("first reaction: %+v %v", res, err)
	}

	res, err = svc.ToggleReaction(ctx, "u1", "v1", "fire")
	if err != nil || res.Reaction != "fire" || res.Stats.ReactionCount != 1 {
		t.Fatalf("different kind should overwrite: %+v %v", res, err)
	}

	res, err = svc.ToggleReaction(ctx, "u1", "v1", "fire")
	if err != nil || res.Reaction != "" || res.Stats.ReactionCount != 0 {
		t.Fatalf("same kind should toggle off: %+v %v", res, err)
	}

	if len(notifier.events) != 3 {
		t.Fatalf("expected an event per toggle, got %d", len(notifier.events))
	}
	last := notifier.events[2]
	if last.Type != events.TypeReactionToggled || last.Reaction != "" || last.OccurredAt.IsZero() {
		t.Fatalf("unexpected event: %+v", last)
	}
}

func TestToggleReactionRejectsUnknownKind(t *testing.T) {
	svc, notifier, _ := newTestService(newMemoryStore("v1"))

	if _, err := svc.ToggleReaction(context.Background(), "u1", "v1", "thumbs-down"); !errors.Is(err, ErrInvalidReaction) {
		t.Fatalf("expected ErrInvalidReaction got %v", err)
	}
	if len(notifier.events) != 0 {
		t.Fatal("rejected toggles must not emit events")
	}
}

func TestToggleFavoriteTwiceReturnsToUnfavorited(t *testing.T) {
	svc, notifier, _ := newTestService(newMemoryStore("v1"))
	ctx := context.Background()

	first, err := svc.ToggleFavorite(ctx, "u1", "v1")
	if err != nil || !first {
		t.Fatalf("first toggle: %v %v", first, err)
	}
	second, err := svc.ToggleFavorite(ctx, "u1", "v1")
	if err != nil || second {
		t.Fatalf("second toggle: %v %v", second, err)
	}

	state, err := svc.State(ctx, "u1", "v1")
	if err != nil || state.Favorited {
		t.Fatalf("expected unfavorited state, got %+v %v", state, err)
	}
	if got := notifier.events[1].Favorited; got == nil || *got {
		t.Fatalf("expected event to carry unfavorited flag, got %v", got)
	}
}

func TestRateValidatesAndAggregates(t *testing.T) {
	svc, _, _ := newTestService(newMemoryStore("v1"))
	ctx := context.Background()

	for _, bad := range []int{0, 6, -1} {
		if _, err := svc.Rate(ctx, "u1", "v1", bad); !errors.Is(err, ErrInvalidRating) {
			t.Fatalf("value %d: expected ErrInvalidRating got %v", bad, err)
		}
	}

	if _, err := svc.Rate(ctx, "u1", "v1", 2); err != nil {
		t.Fatalf("rate: %v", err)
	}
	if _, err := svc.Rate(ctx, "u1", "v1", 4); err != nil {
		t.Fatalf("re-rate: %v", err)
	}
	stats, err := svc.Rate(ctx, "u2", "v1", 5)
	if err != nil {
		t.Fatalf("rate u2: %v", err)
	}
	if stats.RatingCount != 2 || stats.Rating != 4.5 {
		t.Fatalf("expected one rating per user, got %+v", stats)
	}
}

func TestMissingVideoPropagatesNotFound(t *testing.T) {
	svc, notifier, _ := newTestService(newMemoryStore())

	if _, err := svc.ToggleFavorite(context.Background(), "u1", "missing"); !errors.Is(err, repositories.ErrNotFound) {
		t.Fatalf("expected ErrNotFound got %v", err)
	}
	if len(notifier.events) != 0 {
		t.Fatal("failed writes must not emit events")
	}
}

func TestRecordCountersEmitEvents(t *testing.T) {
	svc, notifier, counters := newTestService(newMemoryStore("v1"))
	ctx := logging.WithUserID(context.Background(), "u1")

	if _, err := svc.RecordView(ctx, "v1"); err != nil {
		t.Fatalf("view: %v", err)
	}
	stats, err := svc.RecordDownload(ctx, "v1")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if stats.DownloadCount != 1 || counters.counts[repositories.CounterView] != 1 {
		t.Fatalf("unexpected counters: %+v %v", stats, counters.counts)
	}
	if len(notifier.events) != 2 || notifier.events[1].Type != events.TypeVideoDownloaded || notifier.events[1].UserID != "u1" {
		t.Fatalf("unexpected events: %+v", notifier.events)
	}
}

func TestNotifierErrorsDoNotFailTheWrite(t *testing.T) {
	svc, notifier, _ := newTestService(newMemoryStore("v1"))
	notifier.err = errors.New("closed")

	if _, err := svc.ToggleReaction(context.Background(), "u1", "v1", "heart"); err != nil {
		t.Fatalf("expected dispatch failure to be swallowed, got %v", err)
	}
}
