// Package events defines the engagement change notifications emitted after
// successful writes and the sinks they are published to.
package events

import (
	"time"

	"github.com/cinevault/backend/internal/models"
)

// Type names the change that produced an event.
type Type string

const (
	TypeReactionToggled Type = "reaction.toggled"
	TypeRatingSet       Type = "rating.set"
	TypeFavoriteToggled Type = "favorite.toggled"
	TypeVideoViewed     Type = "video.viewed"
	TypeVideoDownloaded Type = "video.downloaded"
)

// Event describes a single engagement change on a video.
type Event struct {
	Type       Type              `json:"type"`
	VideoID    string            `json:"videoId"`
	UserID     string            `json:"userId,omitempty"`
	Reaction   string            `json:"reaction,omitempty"`
	Rating     int               `json:"rating,omitempty"`
	Favorited  *bool             `json:"favorited,omitempty"`
	Stats      models.VideoStats `json:"stats"`
	OccurredAt time.Time         `json:"occurredAt"`
}

// ChangesStats reports whether listeners of the video should receive new stats.
func (e Event) ChangesStats() bool {
	return e.Type != TypeFavoriteToggled
}
