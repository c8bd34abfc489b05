package search

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/vaidya/internal/appointment"
	"github.com/hackgods/vaidya/internal/config"
	"github.com/hackgods/vaidya/internal/logging"
)

const (
	candidateLimit = 50
	resultLimit    = 5
	slotListLimit  = 10
	enrichWorkers  = 8
	defaultTier    = 3
)

type Service struct {
	repo    Repository
	weights config.RankingWeights
	logger  *zap.Logger
}

func NewService(repo Repository, weights config.RankingWeights, logger *zap.Logger) *Service {
	return &Service{repo: repo, weights: weights, logger: logging.OrNop(logger)}
}

// Search returns up to five ranked doctors matching c, each with its earliest open slot on or
// after date. Query failures yield an empty result.
func (s *Service) Search(ctx context.Context, c Criteria, date string) []Doctor {
	doctors, err := s.repo.FindDoctors(ctx, c, candidateLimit)
	if err != nil {
		s.logger.Error("doctor search failed", zap.String("specialty", c.Specialty), zap.Error(err))
		return nil
	}
	if len(doctors) == 0 {
		return nil
	}

	var g errgroup.Group
	g.SetLimit(enrichWorkers)
	for i := range doctors {
		d := &doctors[i]
		g.Go(func() error {
			slot, err := s.repo.NextAvailableSlot(ctx, d.ID, date)
			if err != nil {
				s.logger.Warn("next slot lookup failed", zap.Stringer("doctor_id", d.ID), zap.Error(err))
				return nil
			}
			d.NextSlot = slot
			return nil
		})
	}
	_ = g.Wait()

	Rank(doctors, s.weights)
	if len(doctors) > resultLimit {
		doctors = doctors[:resultLimit]
	}
	return doctors
}

// AvailableSlots lists up to ten open slots for the doctor on date. Errors yield an empty list.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) []appointment.Slot {
	slots, err := s.repo.AvailableSlots(ctx, doctorID, date, slotListLimit)
	if err != nil {
		s.logger.Warn("slot lookup failed", zap.Stringer("doctor_id", doctorID), zap.String("date", date), zap.Error(err))
		return nil
	}
	return slots
}

// Score is the ranking key of d under w. Higher ranks first.
func Score(d Doctor, w config.RankingWeights) float64 {
	var score float64
	switch d.Hospital.Promotion {
	case PromotionPremium:
		score += w.Premium
	case PromotionPromoted:
		score += w.Promoted
	}

	tier := d.Hospital.Tier
	if tier == 0 {
		tier = defaultTier
	}
	score += float64(4-tier) * w.Tier
	score += d.Rating * w.Rating

	if d.NextSlot != nil {
		score += w.Availability
	}
	return score
}

// Rank orders doctors by descending score, keeping input order among equals.
func Rank(doctors []Doctor, w config.RankingWeights) {
	sort.SliceStable(doctors, func(i, j int) bool {
		return Score(doctors[i], w) > Score(doctors[j], w)
	})
}

// ResolveDate turns the intent's date token into a calendar date. Absent and "today" map to
// today, "tomorrow" to the next day; anything else is returned unchanged.
func ResolveDate(token string, now time.Time) string {
	switch token {
	case "", "today":
		return now.Format(appointment.DateLayout)
	case "tomorrow":
		return now.AddDate(0, 0, 1).Format(appointment.DateLayout)
	}
	return token
}
