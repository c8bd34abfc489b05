package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains the DB interactions the booking service needs.
type Repository interface {
	// Book reserves the slot and inserts the appointment in one transaction.
	// It returns ErrSlotUnavailable when the slot is gone and ErrInvalidBooking when
	// the user, doctor or slot details do not line up.
	Book(ctx context.Context, id uuid.UUID, confirmationCode string, req BookRequest) error

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// CancelAppointment moves a live appointment to cancelled and frees its slot in one transaction.
	// It returns ErrNotCancellable when the appointment is already terminal.
	CancelAppointment(ctx context.Context, id uuid.UUID, at time.Time, reason string) (*Appointment, error)

	ListDayQueue(ctx context.Context, doctorID uuid.UUID, date string) ([]QueueEntry, error)
	FindActiveForDay(ctx context.Context, userID uuid.UUID, date string) (*AppointmentDetail, error)
	ListUpcoming(ctx context.Context, userID uuid.UUID, fromDate string, limit int) ([]AppointmentDetail, error)
}

type ReminderKind string

const (
	Reminder24h ReminderKind = "24h"
	Reminder1h  ReminderKind = "1h"
)

// ReminderRepository backs the reminder sweep.
type ReminderRepository interface {
	// ListDueReminders returns confirmed appointments on date with appointment_time in [from, to]
	// whose kind flag is still unset.
	ListDueReminders(ctx context.Context, kind ReminderKind, date, from, to string) ([]AppointmentDetail, error)
	// ClaimReminder sets the kind flag if it was unset and reports whether this call set it.
	ClaimReminder(ctx context.Context, id uuid.UUID, kind ReminderKind) (bool, error)
	ReleaseReminder(ctx context.Context, id uuid.UUID, kind ReminderKind) error
}

// SlotRepository backs slot regeneration.
type SlotRepository interface {
	ListSchedules(ctx context.Context) ([]DoctorSchedule, error)
	InsertSlots(ctx context.Context, doctorID uuid.UUID, slots []SlotTime) (int64, error)
}
