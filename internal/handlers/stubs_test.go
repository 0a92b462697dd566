package handlers

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/cinevault/backend/internal/engagement"
	"github.com/cinevault/backend/internal/metadata"
	"github.com/cinevault/backend/internal/models"
	"github.com/cinevault/backend/internal/pagination"
	"github.com/cinevault/backend/internal/repositories"
	"github.com/cinevault/backend/internal/trending"
)

const (
	videoFree  = "11111111-1111-4111-8111-111111111111"
	videoPro   = "22222222-2222-4222-8222-222222222222"
	videoTrash = "33333333-3333-4333-8333-333333333333"
	missingID  = "99999999-9999-4999-8999-999999999999"
)

type inMemoryUserStore struct {
	mu        sync.Mutex
	users     map[string]models.User
	favorites int
	playlists int
}

func newInMemoryUserStore(users ...models.User) *inMemoryUserStore {
	s := &inMemoryUserStore{users: make(map[string]models.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *inMemoryUserStore) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *inMemoryUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *inMemoryUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return u, nil
}

func (s *inMemoryUserStore) UpdateDisplayName(_ context.Context, id, displayName string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	u.DisplayName = displayName
	s.users[id] = u
	return u, nil
}

func (s *inMemoryUserStore) TouchLastSeen(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u.LastSeenAt = &at
	s.users[id] = u
	return nil
}

func (s *inMemoryUserStore) Counts(_ context.Context, id string) (int, int, error) {
	return s.favorites, s.playlists, nil
}

type videoStoreStub struct {
	mu      sync.Mutex
	videos  map[string]models.Video
	created []models.Video
	after   pagination.Cursor
	limit   int
}

func newVideoStoreStub() *videoStoreStub {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	trashedAt := base.Add(24 * time.Hour)
	return &videoStoreStub{videos: map[string]models.Video{
		videoFree: {
			ID: videoFree, Title: "Beta", Description: "free video", VideoURL: "https://cdn.example.com/free.mp4",
			Status: models.VideoStatusPublished, AccessLevel: models.AccessFree, CreatedAt: base,
		},
		videoPro: {
			ID: videoPro, Title: "Alpha", Description: "pro video", VideoURL: "https://cdn.example.com/pro.mp4",
			Status: models.VideoStatusPublished, AccessLevel: models.AccessPro, CreatedAt: base.Add(time.Hour),
		},
		videoTrash: {
			ID: videoTrash, Title: "Gone", Description: "trashed video", VideoURL: "https://cdn.example.com/gone.mp4",
			Status: models.VideoStatusTrashed, AccessLevel: models.AccessFree, CreatedAt: base.Add(2 * time.Hour), TrashedAt: &trashedAt,
		},
	}}
}

func (s *videoStoreStub) published() []models.Video {
	var out []models.Video
	for _, v := range s.videos {
		if v.Published() {
			out = append(out, v)
		}
	}
	return out
}

func (s *videoStoreStub) Create(_ context.Context, v models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, v)
	s.videos[v.ID] = v
	return nil
}

func (s *videoStoreStub) ListHome(context.Context) ([]models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.published()
	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (s *videoStoreStub) ListLatest(_ context.Context, after pagination.Cursor, limit int) ([]models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.after, s.limit = after, limit
	out := s.published()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	var page []models.Video
	for _, v := range out {
		if !after.IsZero() && !v.CreatedAt.Before(after.CreatedAt) {
			continue
		}
		if len(page) == limit {
			break
		}
		page = append(page, v)
	}
	return page, nil
}

func (s *videoStoreStub) Get(_ context.Context, id string) (models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return v, nil
}

func (s *videoStoreStub) Trash(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if !v.Published() {
		return repositories.ErrConflict
	}
	v.Status, v.TrashedAt = models.VideoStatusTrashed, &at
	s.videos[id] = v
	return nil
}

func (s *videoStoreStub) Restore(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return repositories.ErrNotFound
	}
	if v.Published() {
		return repositories.ErrConflict
	}
	v.Status, v.TrashedAt = models.VideoStatusPublished, nil
	s.videos[id] = v
	return nil
}

func (s *videoStoreStub) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.videos[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(s.videos, id)
	return nil
}

func (s *videoStoreStub) ListTrashed(context.Context) ([]models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Video
	for _, v := range s.videos {
		if !v.Published() {
			out = append(out, v)
		}
	}
	return out, nil
}

type trendingStub struct {
	ranked        []trending.Ranked
	limit         int
	invalidations int
}

func (t *trendingStub) Invalidate(context.Context) error {
	t.invalidations++
	return nil
}

func (t *trendingStub) Trending(_ context.Context, limit int) ([]trending.Ranked, error) {
	t.limit = limit
	return t.ranked, nil
}

type engagementStub struct {
	calls    []string
	userID   string
	reaction string
	err      error
}

func (e *engagementStub) record(call, userID string) {
	e.calls = append(e.calls, call)
	e.userID = userID
}

func (e *engagementStub) ToggleReaction(_ context.Context, userID, videoID, kind string) (engagement.ReactionResult, error) {
	e.record("reaction", userID)
	if !engagement.ValidReaction(kind) {
		return engagement.ReactionResult{}, engagement.ErrInvalidReaction
	}
	if e.err != nil {
		return engagement.ReactionResult{}, e.err
	}
	if e.reaction == kind {
		e.reaction = ""
	} else {
		e.reaction = kind
	}
	count := 0
	if e.reaction != "" {
		count = 1
	}
	return engagement.ReactionResult{Reaction: e.reaction, Stats: models.VideoStats{VideoID: videoID, ReactionCount: count}}, nil
}

func (e *engagementStub) Rate(_ context.Context, userID, videoID string, value int) (models.VideoStats, error) {
	e.record("rating", userID)
	if value < 1 || value > 5 {
		return models.VideoStats{}, engagement.ErrInvalidRating
	}
	return models.VideoStats{VideoID: videoID, Rating: float64(value), RatingCount: 1}, e.err
}

func (e *engagementStub) ToggleFavorite(_ context.Context, userID, videoID string) (bool, error) {
	e.record("favorite", userID)
	return true, e.err
}

func (e *engagementStub) State(_ context.Context, userID, videoID string) (models.Engagement, error) {
	e.record("state", userID)
	return models.Engagement{Reaction: e.reaction}, e.err
}

func (e *engagementStub) RecordView(ctx context.Context, videoID string) (models.VideoStats, error) {
	e.record("view", "")
	return models.VideoStats{VideoID: videoID, ViewCount: 1}, e.err
}

func (e *engagementStub) RecordDownload(ctx context.Context, videoID string) (models.VideoStats, error) {
	e.record("download", "")
	return models.VideoStats{VideoID: videoID, DownloadCount: 1}, e.err
}

type metadataStub struct {
	meta  metadata.Metadata
	err   error
	calls int
}

func (m *metadataStub) Lookup(context.Context, string) (metadata.Metadata, error) {
	m.calls++
	return m.meta, m.err
}

type thumbnailStub struct {
	name string
	data []byte
	err  error
}

func (t *thumbnailStub) Save(_ context.Context, filename string, r io.Reader) (string, error) {
	if t.err != nil {
		return "", t.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	t.name, t.data = filename, data
	return "https://cdn.example.com/thumbnails/" + filename, nil
}

type retentionStub struct{ retention time.Duration }

func (r retentionStub) PurgeAt(trashedAt time.Time) time.Time { return trashedAt.Add(r.retention) }

type favoritesStub struct{ videos *videoStoreStub }

func (f favoritesStub) ListFavorites(ctx context.Context, userID string) ([]models.Video, error) {
	return f.videos.ListHome(ctx)
}

type playlistStoreStub struct {
	mu        sync.Mutex
	playlists map[string][]models.Playlist
	saved     models.PlaylistMembership
}

func newPlaylistStoreStub() *playlistStoreStub {
	return &playlistStoreStub{playlists: make(map[string][]models.Playlist)}
}

func (p *playlistStoreStub) List(_ context.Context, userID string) ([]models.Playlist, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playlists[userID], nil
}

func (p *playlistStoreStub) Create(_ context.Context, playlist models.Playlist) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, existing := range p.playlists[playlist.UserID] {
		if existing.Name == models.WatchLaterName && playlist.Name == models.WatchLaterName {
			return repositories.ErrConflict
		}
	}
	p.playlists[playlist.UserID] = append(p.playlists[playlist.UserID], playlist)
	return nil
}

func (p *playlistStoreStub) SaveMembership(_ context.Context, userID string, membership models.PlaylistMembership) ([]models.Playlist, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.saved = membership

	selected := make(map[string]bool, len(membership.PlaylistIDs))
	for _, id := range membership.PlaylistIDs {
		selected[id] = true
	}
	owned := make(map[string]bool)
	for _, pl := range p.playlists[userID] {
		owned[pl.ID] = true
	}
	for id := range selected {
		if !owned[id] {
			return nil, repositories.ErrNotFound
		}
	}

	out := make([]models.Playlist, 0, len(p.playlists[userID]))
	for _, pl := range p.playlists[userID] {
		want := selected[pl.ID]
		if pl.Name == models.WatchLaterName {
			want = membership.WatchLater
		}
		var ids []string
		for _, id := range pl.VideoIDs {
			if id != membership.VideoID {
				ids = append(ids, id)
			}
		}
		if want {
			ids = append(ids, membership.VideoID)
		}
		pl.VideoIDs = ids
		out = append(out, pl)
	}
	p.playlists[userID] = out
	return out, nil
}

type paymentStoreStub struct {
	mu       sync.Mutex
	payments []models.Payment
}

func (s *paymentStoreStub) ListProviders(context.Context) ([]models.ServiceProvider, error) {
	return []models.ServiceProvider{
		{Name: "Dialog", Status: models.ProviderAllow, Amounts: []float64{500, 1000}},
		{Name: "Hutch", Status: models.ProviderDeny, Amounts: []float64{1000}},
	}, nil
}

func (s *paymentStoreStub) Create(_ context.Context, payment models.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = append(s.payments, payment)
	return nil
}

func (s *paymentStoreStub) ListPending(context.Context) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Payment
	for _, p := range s.payments {
		if p.Status == models.PaymentPending {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *paymentStoreStub) ListForUser(_ context.Context, userID string) ([]models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Payment
	for _, p := range s.payments {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *paymentStoreStub) Decide(_ context.Context, paymentID string, approve bool, at time.Time) (models.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.payments {
		if p.ID != paymentID {
			continue
		}
		if p.Status != models.PaymentPending {
			return models.Payment{}, repositories.ErrConflict
		}
		p.Status = models.PaymentFailed
		if approve {
			p.Status = models.PaymentCompleted
		}
		p.UpdatedAt = at
		s.payments[i] = p
		return p, nil
	}
	return models.Payment{}, repositories.ErrNotFound
}
