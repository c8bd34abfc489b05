package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bookRequest() BookRequest {
	return BookRequest{
		UserID:   uuid.New(),
		DoctorID: uuid.New(),
		SlotID:   uuid.New(),
		Date:     "2026-10-20",
		Time:     "10:30",
		Source:   SourceWhatsApp,
	}
}

func TestPgBookReservesSlotAndInserts(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	req := bookRequest()
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointment_slots").
		WithArgs(req.SlotID, req.DoctorID).
		WillReturnRows(pgxmock.NewRows([]string{"slot_date", "slot_time"}).AddRow("2026-10-20", "10:30"))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(id, req.UserID, req.DoctorID, req.SlotID, "2026-10-20", "10:30", "whatsapp", "ABCDEF12", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(id))
	mock.ExpectCommit()

	repo := NewPgRepository(mock)
	require.NoError(t, repo.Book(context.Background(), id, "ABCDEF12", req))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgBookLosesSlotRace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	req := bookRequest()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointment_slots").
		WithArgs(req.SlotID, req.DoctorID).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	repo := NewPgRepository(mock)
	err = repo.Book(context.Background(), uuid.New(), "ABCDEF12", req)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgBookRejectsMismatchedSlotTime(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	req := bookRequest()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointment_slots").
		WithArgs(req.SlotID, req.DoctorID).
		WillReturnRows(pgxmock.NewRows([]string{"slot_date", "slot_time"}).AddRow("2026-10-20", "11:00"))
	mock.ExpectRollback()

	repo := NewPgRepository(mock)
	err = repo.Book(context.Background(), uuid.New(), "ABCDEF12", req)
	assert.ErrorIs(t, err, ErrInvalidBooking)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgBookMapsUniqueViolationToUnavailable(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	req := bookRequest()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointment_slots").
		WithArgs(req.SlotID, req.DoctorID).
		WillReturnRows(pgxmock.NewRows([]string{"slot_date", "slot_time"}).AddRow("2026-10-20", "10:30"))
	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), req.UserID, req.DoctorID, req.SlotID, "2026-10-20", "10:30",
			string(SourceWhatsApp), "ABCDEF12", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_appointments_live_slot"})
	mock.ExpectRollback()

	repo := NewPgRepository(mock)
	err = repo.Book(context.Background(), uuid.New(), "ABCDEF12", req)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgCancelTerminalAppointment(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	at := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE appointments a").
		WithArgs(id, at, "patient: changed plans").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	repo := NewPgRepository(mock)
	_, err = repo.CancelAppointment(context.Background(), id, at, "patient: changed plans")
	assert.ErrorIs(t, err, ErrNotCancellable)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgListDayQueue(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doctorID := uuid.New()
	first, second := uuid.New(), uuid.New()
	started := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	name := "Asha"

	mock.ExpectQuery("FROM appointments a").
		WithArgs(doctorID, "2026-10-16").
		WillReturnRows(pgxmock.NewRows([]string{"id", "time", "status", "patient_name", "consultation_started_at"}).
			AddRow(first, "09:00", StatusInConsultation, &name, &started).
			AddRow(second, "09:30", StatusCheckedIn, &name, (*time.Time)(nil)))

	repo := NewPgRepository(mock)
	entries, err := repo.ListDayQueue(context.Background(), doctorID, "2026-10-16")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first, entries[0].AppointmentID)
	assert.Equal(t, StatusCheckedIn, entries[1].Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgClaimReminderOnlyOnce(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	id := uuid.New()
	mock.ExpectExec("UPDATE appointments SET reminder_sent_24h = true").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE appointments SET reminder_sent_24h = true").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	repo := NewPgRepository(mock)
	ok, err := repo.ClaimReminder(context.Background(), id, Reminder24h)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ClaimReminder(context.Background(), id, Reminder24h)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgReminderRejectsUnknownKind(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgRepository(mock)
	_, err = repo.ClaimReminder(context.Background(), uuid.New(), ReminderKind("2h"))
	assert.Error(t, err)
}

func TestPgInsertSlots(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doctorID := uuid.New()
	slots := []SlotTime{{Date: "2026-10-19", Time: "09:00"}, {Date: "2026-10-19", Time: "09:30"}}

	mock.ExpectExec("INSERT INTO appointment_slots").
		WithArgs(doctorID, []string{"2026-10-19", "2026-10-19"}, []string{"09:00", "09:30"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))

	repo := NewPgRepository(mock)
	n, err := repo.InsertSlots(context.Background(), doctorID, slots)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	n, err = repo.InsertSlots(context.Background(), doctorID, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	require.NoError(t, mock.ExpectationsWereMet())
}
