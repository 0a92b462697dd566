package handlers

import (
	"net/http"

	"github.com/cinevault/backend/internal/middleware"
)

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users      UserStore
	Sessions   SessionManager
	Videos     VideoStore
	Trending   TrendingRanker
	Engagement EngagementService
	Favorites  FavoriteStore
	Playlists  PlaylistStore
	Billing    BillingService
	Metadata   VideoMetadataProvider
	Thumbnails ThumbnailStorage
	Retention  RetentionPolicy
	Live       LiveHub
	DB         Pinger
	Metrics    http.Handler

	// AuthLimiter throttles credential endpoints; WriteLimiter throttles
	// engagement writes. Either may be nil.
	AuthLimiter  middleware.RateLimiter
	WriteLimiter middleware.RateLimiter
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{DB: deps.DB}
	authH := AuthHandler{Users: deps.Users, Sessions: deps.Sessions}
	profile := ProfileHandler{Users: deps.Users}
	videos := VideoHandler{Videos: deps.Videos, Trending: deps.Trending, Engagement: deps.Engagement, Users: deps.Users}
	engagementH := EngagementHandler{Engagement: deps.Engagement}
	library := LibraryHandler{Favorites: deps.Favorites, Playlists: deps.Playlists, Users: deps.Users}
	payments := PaymentHandler{Billing: deps.Billing, Users: deps.Users}
	admin := AdminVideoHandler{
		Videos:     deps.Videos,
		Metadata:   deps.Metadata,
		Thumbnails: deps.Thumbnails,
		Retention:  deps.Retention,
		Trending:   deps.Trending,
	}
	live := LiveHandler{Videos: deps.Videos, Hub: deps.Live}

	optional := middleware.Authenticate(deps.Sessions, false)
	required := middleware.Authenticate(deps.Sessions, true)
	adminOnly := middleware.RequireAdmin(deps.Users)
	authLimit := middleware.RateLimit(deps.AuthLimiter, "auth")
	writeLimit := middleware.RateLimit(deps.WriteLimiter, "write")

	public := func(h http.HandlerFunc) http.Handler { return optional(h) }
	user := func(h http.HandlerFunc) http.Handler { return required(h) }
	userWrite := func(h http.HandlerFunc) http.Handler { return writeLimit(required(h)) }
	adminRoute := func(h http.HandlerFunc) http.Handler { return required(adminOnly(h)) }

	mux.HandleFunc("GET /healthz", health.Handle)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}

	mux.Handle("POST /api/v1/auth/signup", authLimit(http.HandlerFunc(authH.SignUp)))
	mux.Handle("POST /api/v1/auth/login", authLimit(http.HandlerFunc(authH.Login)))
	mux.Handle("POST /api/v1/auth/refresh", authLimit(http.HandlerFunc(authH.Refresh)))
	mux.Handle("POST /api/v1/auth/password-reset", authLimit(http.HandlerFunc(authH.RequestPasswordReset)))
	mux.HandleFunc("POST /api/v1/auth/logout", authH.Logout)

	mux.Handle("GET /api/v1/me", user(profile.Me))
	mux.Handle("PATCH /api/v1/me", user(profile.UpdateMe))

	mux.Handle("GET /api/v1/videos", public(videos.Home))
	mux.Handle("GET /api/v1/videos/latest", public(videos.Latest))
	mux.Handle("GET /api/v1/videos/trending", public(videos.Trending))
	mux.Handle("GET /api/v1/videos/{id}", public(videos.Detail))
	mux.Handle("POST /api/v1/videos/{id}/view", writeLimit(public(videos.View)))
	mux.Handle("POST /api/v1/videos/{id}/download", userWrite(videos.Download))
	mux.Handle("GET /api/v1/videos/{id}/live", public(live.Serve))

	mux.Handle("GET /api/v1/videos/{id}/engagement", user(engagementH.State))
	mux.Handle("PUT /api/v1/videos/{id}/reaction", userWrite(engagementH.React))
	mux.Handle("PUT /api/v1/videos/{id}/rating", userWrite(engagementH.Rate))
	mux.Handle("POST /api/v1/videos/{id}/favorite", userWrite(engagementH.Favorite))

	mux.Handle("GET /api/v1/favorites", user(library.Favorites))
	mux.Handle("GET /api/v1/playlists", user(library.Playlists))
	mux.Handle("POST /api/v1/playlists", userWrite(library.CreatePlaylist))
	mux.Handle("PUT /api/v1/playlists/membership", userWrite(library.SaveMembership))

	mux.Handle("GET /api/v1/payments/providers", public(payments.Providers))
	mux.Handle("GET /api/v1/payments", user(payments.History))
	mux.Handle("POST /api/v1/payments", userWrite(payments.Submit))

	mux.Handle("POST /api/v1/admin/videos", adminRoute(admin.Upload))
	mux.Handle("GET /api/v1/admin/videos/trash", adminRoute(admin.Trashed))
	mux.Handle("POST /api/v1/admin/videos/{id}/trash", adminRoute(admin.Trash))
	mux.Handle("POST /api/v1/admin/videos/{id}/restore", adminRoute(admin.Restore))
	mux.Handle("DELETE /api/v1/admin/videos/{id}", adminRoute(admin.Delete))
	mux.Handle("GET /api/v1/admin/payments", adminRoute(payments.Pending))
	mux.Handle("POST /api/v1/admin/payments/{id}/approve", adminRoute(payments.Approve))
	mux.Handle("POST /api/v1/admin/payments/{id}/reject", adminRoute(payments.Reject))
}
