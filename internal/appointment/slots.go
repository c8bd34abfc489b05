package appointment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/vaidya/internal/logging"
	"github.com/hackgods/vaidya/internal/metrics"
)

var (
	defaultWorkingDays = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
)

const (
	defaultDayStart    = "09:00"
	defaultDayEnd      = "17:00"
	defaultSlotMinutes = 30
)

// SlotGenerator keeps each active doctor's slot inventory populated up to a horizon.
type SlotGenerator struct {
	repo        SlotRepository
	horizonDays int
	metrics     *metrics.Metrics
	logger      *zap.Logger
	loc         *time.Location
	now         func() time.Time
}

func NewSlotGenerator(repo SlotRepository, horizonDays int, loc *time.Location, m *metrics.Metrics, logger *zap.Logger) *SlotGenerator {
	if loc == nil {
		loc = time.UTC
	}
	if horizonDays <= 0 {
		horizonDays = 30
	}
	return &SlotGenerator{
		repo:        repo,
		horizonDays: horizonDays,
		metrics:     m,
		logger:      logging.OrNop(logger),
		loc:         loc,
		now:         time.Now,
	}
}

// SetClock overrides the time source.
func (g *SlotGenerator) SetClock(now func() time.Time) {
	g.now = now
}

// Regenerate fills missing slots for every active doctor and returns how many were inserted.
// One doctor failing does not stop the others.
func (g *SlotGenerator) Regenerate(ctx context.Context) (int, error) {
	schedules, err := g.repo.ListSchedules(ctx)
	if err != nil {
		return 0, fmt.Errorf("list schedules: %w", err)
	}

	now := g.now().In(g.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, g.loc)
	tomorrow := today.AddDate(0, 0, 1)
	until := today.AddDate(0, 0, g.horizonDays)

	total := 0
	for _, s := range schedules {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		from := tomorrow
		if s.LastSlotDate != "" {
			last, err := time.ParseInLocation(DateLayout, s.LastSlotDate, g.loc)
			if err == nil && !last.Before(from) {
				from = last.AddDate(0, 0, 1)
			}
		}

		slots, err := buildSlots(s, from, until)
		if err != nil {
			g.logger.Warn("bad doctor schedule", zap.Stringer("doctor_id", s.DoctorID), zap.Error(err))
			continue
		}
		if len(slots) == 0 {
			continue
		}

		n, err := g.repo.InsertSlots(ctx, s.DoctorID, slots)
		if err != nil {
			g.logger.Warn("insert slots", zap.Stringer("doctor_id", s.DoctorID), zap.Error(err))
			continue
		}
		total += int(n)
	}

	g.metrics.AddSlotsCreated(total)
	g.logger.Info("slot regeneration done", zap.Int("doctors", len(schedules)), zap.Int("created", total))
	return total, nil
}

// buildSlots lists slot start times on working days in [from, until]. A slot is kept only when
// it ends by the working-hours end.
func buildSlots(s DoctorSchedule, from, until time.Time) ([]SlotTime, error) {
	days := s.WorkingDays
	if len(days) == 0 {
		days = defaultWorkingDays
	}
	startClock, endClock := s.Start, s.End
	if startClock == "" {
		startClock = defaultDayStart
	}
	if endClock == "" {
		endClock = defaultDayEnd
	}
	step := s.SlotMinutes
	if step <= 0 {
		step = defaultSlotMinutes
	}

	start, err := time.Parse(TimeLayout, startClock)
	if err != nil {
		return nil, fmt.Errorf("working hours start %q: %w", startClock, err)
	}
	end, err := time.Parse(TimeLayout, endClock)
	if err != nil {
		return nil, fmt.Errorf("working hours end %q: %w", endClock, err)
	}

	working := make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		working[d] = true
	}

	duration := time.Duration(step) * time.Minute
	var out []SlotTime
	for day := from; !day.After(until); day = day.AddDate(0, 0, 1) {
		if !working[day.Weekday()] {
			continue
		}
		date := day.Format(DateLayout)
		for t := start; !t.Add(duration).After(end); t = t.Add(duration) {
			out = append(out, SlotTime{Date: date, Time: t.Format(TimeLayout)})
		}
	}
	return out, nil
}
