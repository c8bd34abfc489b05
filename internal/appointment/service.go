package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/vaidya/internal/audit"
	"github.com/hackgods/vaidya/internal/logging"
	"github.com/hackgods/vaidya/internal/metrics"
)

const (
	EventAppointmentBooked    = "appointment.booked"
	EventAppointmentCancelled = "appointment.cancelled"

	// MinCancelNotice is how far ahead an appointment must be to be cancellable.
	MinCancelNotice = 2 * time.Hour
	// AvgConsultation drives queue wait and delay estimates.
	AvgConsultation = 30 * time.Minute

	upcomingLimit = 5
)

type Service struct {
	repo    Repository
	audit   audit.Recorder
	metrics *metrics.Metrics
	logger  *zap.Logger
	loc     *time.Location
	now     func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = logging.OrNop(l) }
}

func NewService(repo Repository, rec audit.Recorder, loc *time.Location, opts ...Option) *Service {
	if loc == nil {
		loc = time.UTC
	}
	s := &Service{
		repo:   repo,
		audit:  rec,
		logger: zap.NewNop(),
		loc:    loc,
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Today is the current calendar date in the service's time zone.
func (s *Service) Today() string {
	return s.now().In(s.loc).Format(DateLayout)
}

// ConfirmationCode derives the patient-facing code from the appointment id.
func ConfirmationCode(id uuid.UUID) string {
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

// Book reserves a slot exactly once. Every error it returns is a *Failure.
func (s *Service) Book(ctx context.Context, req BookRequest) (*BookResult, error) {
	if req.UserID == uuid.Nil || req.DoctorID == uuid.Nil || req.SlotID == uuid.Nil {
		s.metrics.ObserveBooking(ErrInvalidBooking.Code)
		return nil, ErrInvalidBooking
	}
	if req.Source == "" {
		req.Source = SourceWhatsApp
	}

	id := uuid.New()
	code := ConfirmationCode(id)

	if err := s.repo.Book(ctx, id, code, req); err != nil {
		var f *Failure
		if !errors.As(err, &f) {
			s.logger.Error("booking failed", zap.Stringer("slot_id", req.SlotID), zap.Error(err))
			f = ErrBookingFailed.wrap(err)
		}
		s.metrics.ObserveBooking(f.Code)
		return nil, f
	}

	s.metrics.ObserveBooking("ok")
	userID := req.UserID
	audit.Log(ctx, s.audit, s.logger, audit.Event{
		ActorID:    &userID,
		ActorType:  audit.ActorPatient,
		Action:     EventAppointmentBooked,
		EntityType: "appointment",
		EntityID:   &id,
		Metadata: map[string]any{
			"slot_id":   req.SlotID.String(),
			"doctor_id": req.DoctorID.String(),
			"source":    string(req.Source),
		},
		CreatedAt: s.now(),
	})

	return &BookResult{AppointmentID: id, ConfirmationCode: code}, nil
}

// Cancel cancels an appointment scheduled more than two hours ahead and frees its slot.
// Every error it returns is a *Failure.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor Actor, reason string) error {
	err := s.cancel(ctx, id, actor, reason)
	if err != nil {
		var f *Failure
		if !errors.As(err, &f) {
			s.logger.Error("cancel failed", zap.Stringer("appointment_id", id), zap.Error(err))
			err = ErrCancelFailed.wrap(err)
			f = ErrCancelFailed
		}
		s.metrics.ObserveCancel(f.Code)
		return err
	}
	s.metrics.ObserveCancel("ok")
	return nil
}

func (s *Service) cancel(ctx context.Context, id uuid.UUID, actor Actor, reason string) error {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		return err
	}

	switch appt.Status {
	case StatusCompleted:
		return ErrAlreadyCompleted
	case StatusCancelled:
		return ErrAlreadyCancelled
	case StatusNoShow:
		return ErrMissedAppointment
	}

	at, err := time.ParseInLocation(DateLayout+" "+TimeLayout, appt.Date+" "+appt.Time, s.loc)
	if err != nil {
		return fmt.Errorf("parse appointment time: %w", err)
	}

	now := s.now()
	if !at.After(now.Add(MinCancelNotice)) {
		return ErrTooLateToCancel
	}

	if actor == "" {
		actor = ActorPatient
	}
	if _, err := s.repo.CancelAppointment(ctx, id, now, fmt.Sprintf("%s: %s", actor, reason)); err != nil {
		return err
	}

	actorID := appt.UserID
	audit.Log(ctx, s.audit, s.logger, audit.Event{
		ActorID:    &actorID,
		ActorType:  string(actor),
		Action:     EventAppointmentCancelled,
		EntityType: "appointment",
		EntityID:   &id,
		Metadata:   map[string]any{"reason": reason},
		CreatedAt:  now,
	})
	return nil
}

// QueueStatus summarizes a doctor's queue for date. Errors and empty days yield the zero value.
func (s *Service) QueueStatus(ctx context.Context, doctorID uuid.UUID, date string) QueueStatus {
	entries, err := s.repo.ListDayQueue(ctx, doctorID, date)
	if err != nil {
		s.logger.Warn("queue lookup failed", zap.Stringer("doctor_id", doctorID), zap.Error(err))
		return QueueStatus{}
	}
	if len(entries) == 0 {
		return QueueStatus{}
	}

	q := QueueStatus{Entries: entries}
	for i := range entries {
		e := &entries[i]
		switch e.Status {
		case StatusInConsultation:
			if q.InConsultation == nil {
				q.InConsultation = e
			}
		case StatusCheckedIn:
			q.CheckedIn++
		case StatusConfirmed:
			q.Waiting++
		}
	}

	q.EstimatedWaitMinutes = q.CheckedIn * int(AvgConsultation/time.Minute)

	if q.InConsultation != nil && q.InConsultation.ConsultationStartedAt != nil {
		elapsed := s.now().Sub(*q.InConsultation.ConsultationStartedAt)
		if over := elapsed - AvgConsultation; over > 0 {
			q.CurrentDelayMinutes = int(over / time.Minute)
		}
	}
	return q
}

// TodayAppointment returns the user's earliest live appointment today, or nil.
func (s *Service) TodayAppointment(ctx context.Context, userID uuid.UUID) *AppointmentDetail {
	d, err := s.repo.FindActiveForDay(ctx, userID, s.Today())
	if err != nil {
		if !errors.Is(err, ErrAppointmentNotFound) {
			s.logger.Warn("today appointment lookup failed", zap.Error(err))
		}
		return nil
	}
	return d
}

// UpcomingAppointments lists up to five confirmed appointments from today on.
func (s *Service) UpcomingAppointments(ctx context.Context, userID uuid.UUID) []AppointmentDetail {
	list, err := s.repo.ListUpcoming(ctx, userID, s.Today(), upcomingLimit)
	if err != nil {
		s.logger.Warn("upcoming appointments lookup failed", zap.Error(err))
		return nil
	}
	return list
}
