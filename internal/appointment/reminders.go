package appointment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/vaidya/internal/logging"
	"github.com/hackgods/vaidya/internal/metrics"
)

// Notifier delivers one outbound message and returns the provider message id.
type Notifier interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// ReminderComposer renders reminder texts.
type ReminderComposer interface {
	Reminder24h(a AppointmentDetail) string
	Reminder1h(a AppointmentDetail) string
}

type SweepResult struct {
	Sent24h int
	Sent1h  int
	Errors  int
}

// Reminders sends 24-hour and 1-hour appointment reminders. Each reminder flag is claimed
// before sending, so overlapping sweeps deliver at most once per appointment and kind.
type Reminders struct {
	repo     ReminderRepository
	notifier Notifier
	composer ReminderComposer
	metrics  *metrics.Metrics
	logger   *zap.Logger
	loc      *time.Location
	now      func() time.Time
}

func NewReminders(repo ReminderRepository, n Notifier, c ReminderComposer, loc *time.Location, m *metrics.Metrics, logger *zap.Logger) *Reminders {
	if loc == nil {
		loc = time.UTC
	}
	return &Reminders{
		repo:     repo,
		notifier: n,
		composer: c,
		metrics:  m,
		logger:   logging.OrNop(logger),
		loc:      loc,
		now:      time.Now,
	}
}

// SetClock overrides the time source.
func (r *Reminders) SetClock(now func() time.Time) {
	r.now = now
}

func (r *Reminders) Sweep(ctx context.Context) (SweepResult, error) {
	var res SweepResult
	now := r.now().In(r.loc)

	tomorrow := now.AddDate(0, 0, 1).Format(DateLayout)
	due, err := r.repo.ListDueReminders(ctx, Reminder24h, tomorrow, "00:00", "23:59")
	if err != nil {
		return res, fmt.Errorf("list 24h reminders: %w", err)
	}
	res.Sent24h, res.Errors = r.deliver(ctx, Reminder24h, due, r.composer.Reminder24h)

	due, err = r.dueWithinHour(ctx, now)
	if err != nil {
		return res, fmt.Errorf("list 1h reminders: %w", err)
	}
	sent, failed := r.deliver(ctx, Reminder1h, due, r.composer.Reminder1h)
	res.Sent1h = sent
	res.Errors += failed

	return res, nil
}

// dueWithinHour lists appointments in [now, now+1h]. A window crossing midnight is split
// into the rest of today and the start of tomorrow.
func (r *Reminders) dueWithinHour(ctx context.Context, now time.Time) ([]AppointmentDetail, error) {
	to := now.Add(time.Hour)
	today := now.Format(DateLayout)
	if to.Format(DateLayout) == today {
		return r.repo.ListDueReminders(ctx, Reminder1h, today, now.Format(TimeLayout), to.Format(TimeLayout))
	}

	due, err := r.repo.ListDueReminders(ctx, Reminder1h, today, now.Format(TimeLayout), "23:59")
	if err != nil {
		return nil, err
	}
	early, err := r.repo.ListDueReminders(ctx, Reminder1h, to.Format(DateLayout), "00:00", to.Format(TimeLayout))
	if err != nil {
		return nil, err
	}
	return append(due, early...), nil
}

func (r *Reminders) deliver(ctx context.Context, kind ReminderKind, due []AppointmentDetail, render func(AppointmentDetail) string) (sent, failed int) {
	for _, a := range due {
		if ctx.Err() != nil {
			return sent, failed
		}
		if a.PatientPhone == nil || *a.PatientPhone == "" {
			continue
		}

		claimed, err := r.repo.ClaimReminder(ctx, a.ID, kind)
		if err != nil {
			r.logger.Warn("claim reminder", zap.Stringer("appointment_id", a.ID), zap.Error(err))
			failed++
			continue
		}
		if !claimed {
			continue
		}

		if _, err := r.notifier.Send(ctx, *a.PatientPhone, render(a)); err != nil {
			r.logger.Warn("send reminder",
				zap.String("kind", string(kind)),
				zap.Stringer("appointment_id", a.ID),
				zap.String("phone", logging.MaskPhone(*a.PatientPhone)),
				zap.Error(err),
			)
			failed++
			if err := r.repo.ReleaseReminder(context.WithoutCancel(ctx), a.ID, kind); err != nil {
				r.logger.Error("release reminder", zap.Stringer("appointment_id", a.ID), zap.Error(err))
			}
			continue
		}

		sent++
		r.metrics.ObserveReminder(string(kind))
	}
	return sent, failed
}
