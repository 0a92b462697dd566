package trending

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/cinevault/backend/internal/models"
)

var now = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

func daysAgo(d float64) time.Time {
	return now.Add(-time.Duration(d * 24 * float64(time.Hour)))
}

func TestScoreWeightsAndDecay(t *testing.T) {
	interactions := []models.Interaction{
		{VideoID: "a", Kind: models.InteractionReaction, CreatedAt: now},
		{VideoID: "a", Kind: models.InteractionRating, Value: 5, CreatedAt: now},
		{VideoID: "b", Kind: models.InteractionReaction, CreatedAt: daysAgo(10)},
		{VideoID: "c", Kind: models.InteractionRating, Value: 2, CreatedAt: daysAgo(5)},
	}

	scores := Score(interactions, now, DefaultParams())

	assertClose(t, "a", scores["a"], 1.5+1.0)
	assertClose(t, "b", scores["b"], 1.5*math.Exp(-1))
	assertClose(t, "c", scores["c"], 0.4*math.Exp(-0.5))
}

func TestScoreIgnoresInteractionsOutsideWindow(t *testing.T) {
	interactions := []models.Interaction{
		{VideoID: "a", Kind: models.InteractionReaction, CreatedAt: daysAgo(31)},
		{VideoID: "a", Kind: models.InteractionReaction, CreatedAt: daysAgo(29)},
	}

	scores := Score(interactions, now, DefaultParams())
	assertClose(t, "a", scores["a"], 1.5*math.Exp(-2.9))
}

func TestScoreClampsFutureInteractions(t *testing.T) {
	interactions := []models.Interaction{
		{VideoID: "a", Kind: models.InteractionReaction, CreatedAt: now.Add(time.Hour)},
	}
	scores := Score(interactions, now, DefaultParams())
	assertClose(t, "a", scores["a"], 1.5)
}

func TestRankOrdersByScoreThenRecencyThenID(t *testing.T) {
	videos := []models.Video{
		{ID: "old-quiet", CreatedAt: daysAgo(20)},
		{ID: "popular", CreatedAt: daysAgo(15)},
		{ID: "new-quiet-b", CreatedAt: daysAgo(1)},
		{ID: "new-quiet-a", CreatedAt: daysAgo(1)},
	}
	interactions := []models.Interaction{
		{VideoID: "popular", Kind: models.InteractionReaction, CreatedAt: daysAgo(2)},
	}

	ranked := Rank(videos, interactions, now, DefaultParams())

	want := []string{"popular", "new-quiet-a", "new-quiet-b", "old-quiet"}
	if len(ranked) != len(want) {
		t.Fatalf("expected %d results got %d", len(want), len(ranked))
	}
	for i, id := range want {
		if ranked[i].Video.ID != id {
			t.Fatalf("position %d: expected %s got %s", i, id, ranked[i].Video.ID)
		}
	}
	if ranked[1].Score != 0 {
		t.Fatalf("expected videos without interactions to score zero, got %v", ranked[1].Score)
	}
}

func TestRankIsMonotonicallyNonIncreasing(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iteration := 0; iteration < 50; iteration++ {
		var videos []models.Video
		var interactions []models.Interaction
		for i := 0; i < 20; i++ {
			id := string(rune('a' + i))
			videos = append(videos, models.Video{ID: id, CreatedAt: daysAgo(rng.Float64() * 30)})
			for j := rng.Intn(6); j > 0; j-- {
				in := models.Interaction{VideoID: id, CreatedAt: daysAgo(rng.Float64() * 40)}
				if rng.Intn(2) == 0 {
					in.Kind = models.InteractionReaction
				} else {
					in.Kind = models.InteractionRating
					in.Value = 1 + rng.Intn(5)
				}
				interactions = append(interactions, in)
			}
		}

		ranked := Rank(videos, interactions, now, DefaultParams())
		for i := 1; i < len(ranked); i++ {
			if ranked[i].Score > ranked[i-1].Score {
				t.Fatalf("iteration %d: score increased at %d (%v > %v)", iteration, i, ranked[i].Score, ranked[i-1].Score)
			}
		}
	}
}

func assertClose(t *testing.T, name string, got, want float64) {
	t.Helper()
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("%s: expected %.6f got %.6f", name, want, got)
	}
}
