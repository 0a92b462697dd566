// Package trending ranks recently published videos by a time-decayed score of
// their reactions and ratings.
package trending

import (
	"math"
	"sort"
	"time"

	"github.com/cinevault/backend/internal/models"
)

// Params tunes the scoring function.
type Params struct {
	// Window bounds both candidate videos and counted interactions.
	Window time.Duration
	// DecayDays is the e-folding time of the recency decay, in days.
	DecayDays float64
	// ReactionWeight is the contribution of a single fresh reaction.
	ReactionWeight float64
	// MaxRating normalises rating values.
	MaxRating float64
}

// DefaultParams returns the production scoring parameters.
func DefaultParams() Params {
	return Params{
		Window:         30 * 24 * time.Hour,
		DecayDays:      10,
		ReactionWeight: 1.5,
		MaxRating:      5,
	}
}

// Ranked pairs a video with its trending score.
type Ranked struct {
	Video models.Video `json:"video"`
	Score float64      `json:"score"`
}

// Score sums the decayed contribution of every interaction inside the window,
// keyed by video id.
func Score(interactions []models.Interaction, now time.Time, p Params) map[string]float64 {
	scores := make(map[string]float64)
	cutoff := now.Add(-p.Window)

	for _, in := range interactions {
		if in.CreatedAt.Before(cutoff) {
			continue
		}
		daysOld := now.Sub(in.CreatedAt).Hours() / 24
		if daysOld < 0 {
			daysOld = 0
		}
		decay := math.Exp(-daysOld / p.DecayDays)

		switch in.Kind {
		case models.InteractionReaction:
			scores[in.VideoID] += p.ReactionWeight * decay
		case models.InteractionRating:
			scores[in.VideoID] += (float64(in.Value) / p.MaxRating) * decay
		}
	}

	return scores
}

// Rank scores the candidate videos and orders them by score descending. Equal
// scores fall back to the newest video first, then to the smaller id.
func Rank(videos []models.Video, interactions []models.Interaction, now time.Time, p Params) []Ranked {
	scores := Score(interactions, now, p)

	ranked := make([]Ranked, 0, len(videos))
	for _, v := range videos {
		ranked = append(ranked, Ranked{Video: v, Score: scores[v.ID]})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Video.CreatedAt.Equal(b.Video.CreatedAt) {
			return a.Video.CreatedAt.After(b.Video.CreatedAt)
		}
		return a.Video.ID < b.Video.ID
	})

	return ranked
}
