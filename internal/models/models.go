package models

import "time"

// Video statuses.
const (
	VideoStatusPublished = "published"
	VideoStatusTrashed   = "trashed"
)

// Access levels gate who may stream or download a video.
const (
	AccessFree = "free"
	AccessPro  = "pro"
)

// User roles.
const (
	RoleUser  = "user"
	RolePro   = "pro"
	RoleAdmin = "admin"
)

// Payment statuses.
const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"
)

// Provider statuses.
const (
	ProviderAllow = "allow"
	ProviderDeny  = "deny"
)

// WatchLaterName is the name of the per-user special playlist.
const WatchLaterName = "Watch Later"

// Video is a catalog entry.
type Video struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Description   string     `json:"description"`
	VideoURL      string     `json:"videoUrl,omitempty"`
	ThumbnailURL  string     `json:"thumbnailUrl"`
	ThumbnailHint string     `json:"thumbnailHint,omitempty"`
	Rating        float64    `json:"rating"`
	RatingCount   int        `json:"ratingCount"`
	ReactionCount int        `json:"reactionCount"`
	DownloadCount int        `json:"downloadCount"`
	ViewCount     int        `json:"viewCount"`
	Status        string     `json:"status"`
	AccessLevel   string     `json:"accessLevel"`
	CreatedAt     time.Time  `json:"createdAt"`
	TrashedAt     *time.Time `json:"trashedAt,omitempty"`
}

// Published reports whether the video is visible in public listings.
func (v Video) Published() bool {
	return v.Status == VideoStatusPublished
}

// Stats returns the engagement counters of the video.
func (v Video) Stats() VideoStats {
	return VideoStats{
		VideoID:       v.ID,
		Rating:        v.Rating,
		RatingCount:   v.RatingCount,
		ReactionCount: v.ReactionCount,
		DownloadCount: v.DownloadCount,
		ViewCount:     v.ViewCount,
	}
}

// VideoStats is the snapshot pushed to live listeners after engagement changes.
type VideoStats struct {
	VideoID       string  `json:"videoId"`
	Rating        float64 `json:"rating"`
	RatingCount   int     `json:"ratingCount"`
	ReactionCount int     `json:"reactionCount"`
	DownloadCount int     `json:"downloadCount"`
	ViewCount     int     `json:"viewCount"`
}

// Interaction is a single reaction or rating used for trending scores.
// Value is zero for reactions and 1..5 for ratings.
type Interaction struct {
	VideoID   string
	Kind      string
	Value     int
	CreatedAt time.Time
}

// Interaction kinds.
const (
	InteractionReaction = "reaction"
	InteractionRating   = "rating"
)

// Engagement is the caller's current relationship with a video.
type Engagement struct {
	Reaction  string `json:"reaction,omitempty"`
	Rating    int    `json:"rating,omitempty"`
	Favorited bool   `json:"favorited"`
}

// Playlist groups videos for a user.
type Playlist struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Name      string    `json:"name"`
	VideoIDs  []string  `json:"videoIds"`
	CreatedAt time.Time `json:"createdAt"`
}

// Contains reports whether the playlist already holds the video.
func (p Playlist) Contains(videoID string) bool {
	for _, id := range p.VideoIDs {
		if id == videoID {
			return true
		}
	}
	return false
}

// PlaylistMembership describes which playlists should contain a video.
type PlaylistMembership struct {
	VideoID     string   `json:"videoId"`
	PlaylistIDs []string `json:"playlistIds"`
	WatchLater  bool     `json:"watchLater"`
}

// Card is a single recharge card submitted as part of a payment.
type Card struct {
	Provider string  `json:"provider"`
	Amount   float64 `json:"amount"`
	PIN      string  `json:"pin"`
}

// Payment is a manual pro-plan payment awaiting or past admin review.
type Payment struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	UserName    string    `json:"userName,omitempty"`
	TotalAmount float64   `json:"totalAmount"`
	Status      string    `json:"status"`
	Cards       []Card    `json:"cards"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// ServiceProvider is a recharge card issuer accepted for payments.
type ServiceProvider struct {
	Name    string    `json:"name"`
	Status  string    `json:"status"`
	Amounts []float64 `json:"amounts"`
}

// Allowed reports whether cards from this provider may be submitted.
func (p ServiceProvider) Allowed() bool {
	return p.Status == ProviderAllow
}

// User represents an account within the CineVault platform.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Password         string     `json:"-"`
	DisplayName      string     `json:"displayName"`
	PhotoURL         string     `json:"photoUrl,omitempty"`
	Role             string     `json:"role"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
	LastSeenAt       *time.Time `json:"lastSeenAt,omitempty"`
	ProActivatedAt   *time.Time `json:"proActivatedAt,omitempty"`
	RejectedPayments int        `json:"rejectedPayments"`
}

// CanAccess reports whether the user may stream videos of the given access level.
func (u User) CanAccess(level string) bool {
	if level != AccessPro {
		return true
	}
	return u.Role == RolePro || u.Role == RoleAdmin
}

// IsAdmin reports whether the user may use admin routes.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}
