package analytics

import (
	"context"
	"math"
	"time"
)

const (
	baseHealthScore = 70.0
	minHealthScore  = 10
	maxHealthScore  = 99
)

// HealthScore is a coarse wellness indicator derived from booking history.
type HealthScore struct {
	UserID     string    `json:"userId"`
	Score      int       `json:"score"`
	ComputedAt time.Time `json:"computedAt"`
}

// ScoreAmounts starts at 70, subtracts min(10, amount/1000*5) per booking,
// rounds half up and clamps to 10..99.
func ScoreAmounts(amounts []int64) int {
	score := baseHealthScore
	for _, a := range amounts {
		score -= math.Min(10, float64(a)/1000*5)
	}
	rounded := int(math.Floor(score + 0.5))
	if rounded < minHealthScore {
		return minHealthScore
	}
	if rounded > maxHealthScore {
		return maxHealthScore
	}
	return rounded
}

// Service answers dashboard and health score queries.
type Service struct {
	source Source
	now    func() time.Time
}

func NewService(source Source) *Service {
	return &Service{source: source, now: time.Now}
}

func (s *Service) Stats(ctx context.Context) (Stats, error) { return s.source.Stats(ctx) }

func (s *Service) UserGrowth(ctx context.Context) (map[string]int, error) {
	return s.source.UserGrowth(ctx)
}

func (s *Service) Revenue(ctx context.Context) (map[string]int64, error) {
	return s.source.Revenue(ctx)
}

// HealthScore computes the score for userID. Users without bookings score 70.
func (s *Service) HealthScore(ctx context.Context, userID string) (HealthScore, error) {
	amounts, err := s.source.BookingAmounts(ctx, userID)
	if err != nil {
		return HealthScore{}, err
	}
	return HealthScore{UserID: userID, Score: ScoreAmounts(amounts), ComputedAt: s.now().UTC()}, nil
}
