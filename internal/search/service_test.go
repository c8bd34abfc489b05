package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/vaidya/internal/appointment"
	"github.com/hackgods/vaidya/internal/config"
)

var defaultWeights = config.RankingWeights{Premium: 1000, Promoted: 500, Tier: 100, Rating: 50, Availability: 50}

type fakeRepo struct {
	mu       sync.Mutex
	doctors  []Doctor
	findErr  error
	next     map[uuid.UUID]*appointment.Slot
	slots    map[string][]appointment.Slot
	gotLimit int
	gotFrom  map[uuid.UUID]string
}

func (f *fakeRepo) FindDoctors(_ context.Context, _ Criteria, limit int) ([]Doctor, error) {
	f.gotLimit = limit
	out := make([]Doctor, len(f.doctors))
	copy(out, f.doctors)
	return out, f.findErr
}

func (f *fakeRepo) NextAvailableSlot(_ context.Context, doctorID uuid.UUID, fromDate string) (*appointment.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gotFrom == nil {
		f.gotFrom = map[uuid.UUID]string{}
	}
	f.gotFrom[doctorID] = fromDate
	return f.next[doctorID], nil
}

func (f *fakeRepo) AvailableSlots(_ context.Context, doctorID uuid.UUID, date string, _ int) ([]appointment.Slot, error) {
	return f.slots[doctorID.String()+date], nil
}

func doctor(name string, promo PromotionLevel, tier int, rating float64) Doctor {
	return Doctor{
		ID:             uuid.New(),
		Name:           name,
		Specialization: "Cardiologist",
		Rating:         rating,
		Hospital:       Hospital{ID: uuid.New(), Name: name + " Hospital", Tier: tier, Promotion: promo},
	}
}

func TestRankPremiumFirstRegardlessOfTierAndRating(t *testing.T) {
	premium := doctor("premium", PromotionPremium, 3, 3.0)
	tierOne := doctor("tier-one", PromotionNone, 1, 4.9)
	tierTwo := doctor("tier-two", PromotionNone, 2, 4.5)

	doctors := []Doctor{tierTwo, tierOne, premium}
	Rank(doctors, defaultWeights)

	assert.Equal(t, []string{"premium", "tier-one", "tier-two"}, []string{doctors[0].Name, doctors[1].Name, doctors[2].Name})
}

func TestRankAvailabilityBonusAndStableTies(t *testing.T) {
	a := doctor("a", PromotionNone, 2, 4.0)
	b := doctor("b", PromotionNone, 2, 4.0)
	c := doctor("c", PromotionNone, 2, 4.0)
	c.NextSlot = &appointment.Slot{ID: uuid.New(), Date: "2026-10-17", Time: "09:00"}

	doctors := []Doctor{a, b, c}
	Rank(doctors, defaultWeights)
	assert.Equal(t, []string{"c", "a", "b"}, []string{doctors[0].Name, doctors[1].Name, doctors[2].Name})
}

func TestScoreDefaultsMissingTier(t *testing.T) {
	d := doctor("x", PromotionPromoted, 0, 4.0)
	assert.InDelta(t, 500+100+200, Score(d, defaultWeights), 0.001)
}

func TestSearchEnrichesAndKeepsTopFive(t *testing.T) {
	repo := &fakeRepo{next: map[uuid.UUID]*appointment.Slot{}}
	for i := 0; i < 8; i++ {
		repo.doctors = append(repo.doctors, doctor(fmt.Sprintf("d%d", i), PromotionNone, 2, float64(i)/2))
	}
	withSlot := repo.doctors[0]
	repo.next[withSlot.ID] = &appointment.Slot{ID: uuid.New(), DoctorID: withSlot.ID, Date: "2026-10-18", Time: "11:00"}

	svc := NewService(repo, defaultWeights, nil)
	got := svc.Search(context.Background(), Criteria{Specialty: "cardiologist"}, "2026-10-16")

	require.Len(t, got, 5)
	assert.Equal(t, candidateLimit, repo.gotLimit)
	assert.Equal(t, "d7", got[0].Name)
	for _, d := range repo.doctors {
		assert.Equal(t, "2026-10-16", repo.gotFrom[d.ID])
	}
}

func TestSearchFailsSoft(t *testing.T) {
	repo := &fakeRepo{findErr: errors.New("db down")}
	svc := NewService(repo, defaultWeights, nil)
	assert.Empty(t, svc.Search(context.Background(), Criteria{}, "2026-10-16"))
}

func TestResolveDate(t *testing.T) {
	now := time.Date(2026, 12, 31, 23, 0, 0, 0, time.UTC)

	assert.Equal(t, "2026-12-31", ResolveDate("", now))
	assert.Equal(t, "2026-12-31", ResolveDate("today", now))
	assert.Equal(t, "2027-01-01", ResolveDate("tomorrow", now))
	assert.Equal(t, "2027-02-14", ResolveDate("2027-02-14", now))
}

func TestContainsPatternEscapes(t *testing.T) {
	assert.Equal(t, "", containsPattern("  "))
	assert.Equal(t, "%cardio%", containsPattern(" cardio "))
	assert.Equal(t, `%100\%\_x%`, containsPattern("100%_x"))
}
