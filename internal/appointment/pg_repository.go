package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/vaidya/internal/db"
)

type PgRepository struct {
	db db.DBTX
}

func NewPgRepository(db db.DBTX) *PgRepository {
	return &PgRepository{db: db}
}

const appointmentColumns = `
	a.id, a.user_id, a.doctor_id, a.hospital_id, a.slot_id,
	a.appointment_date::text, to_char(a.appointment_time, 'HH24:MI'),
	a.status, a.booking_source, a.confirmation_code, a.patient_name, a.patient_phone,
	a.checked_in_at, a.consultation_started_at, a.cancelled_at, a.cancellation_reason,
	a.reminder_sent_24h, a.reminder_sent_1h, a.created_at, a.updated_at`

const detailColumns = appointmentColumns + `,
	d.name, d.specialization, h.name, h.address, h.city`

const detailFrom = `
	FROM appointments a
	LEFT JOIN doctors d ON d.id = a.doctor_id
	LEFT JOIN hospitals h ON h.id = a.hospital_id`

// Helpers

func appointmentDest(a *Appointment) []any {
	return []any{
		&a.ID, &a.UserID, &a.DoctorID, &a.HospitalID, &a.SlotID,
		&a.Date, &a.Time,
		&a.Status, &a.Source, &a.ConfirmationCode, &a.PatientName, &a.PatientPhone,
		&a.CheckedInAt, &a.ConsultationStartedAt, &a.CancelledAt, &a.CancellationReason,
		&a.ReminderSent24h, &a.ReminderSent1h, &a.CreatedAt, &a.UpdatedAt,
	}
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	if err := row.Scan(appointmentDest(&a)...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}
	return &a, nil
}

// scanDetail is the one place joined doctor/hospital columns become optional refs.
func scanDetail(row pgx.Row) (*AppointmentDetail, error) {
	var (
		d                        AppointmentDetail
		doctorName, doctorSpec   *string
		hospitalName             *string
		hospitalAddr, hospitalCy *string
	)

	dest := append(appointmentDest(&d.Appointment), &doctorName, &doctorSpec, &hospitalName, &hospitalAddr, &hospitalCy)
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	if doctorName != nil {
		d.Doctor = &DoctorRef{ID: d.DoctorID, Name: *doctorName}
		if doctorSpec != nil {
			d.Doctor.Specialization = *doctorSpec
		}
	}
	if hospitalName != nil {
		d.Hospital = &HospitalRef{ID: d.HospitalID, Name: *hospitalName, Address: hospitalAddr, City: hospitalCy}
	}
	return &d, nil
}

func collectDetails(rows pgx.Rows) ([]AppointmentDetail, error) {
	defer rows.Close()

	var result []AppointmentDetail
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// Interface methods

func (r *PgRepository) Book(ctx context.Context, id uuid.UUID, confirmationCode string, req BookRequest) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// compare-and-swap on the slot row; losers of a race see no row
	var slotDate, slotTime string
	err = tx.QueryRow(ctx, `
		UPDATE appointment_slots
		SET is_available = false
		WHERE id = $1
		  AND doctor_id = $2
		  AND is_available = true
		RETURNING slot_date::text, to_char(slot_time, 'HH24:MI')
	`, req.SlotID, req.DoctorID).Scan(&slotDate, &slotTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrSlotUnavailable
		}
		return fmt.Errorf("reserve slot: %w", err)
	}

	if (req.Date != "" && req.Date != slotDate) || (req.Time != "" && req.Time != slotTime) {
		return ErrInvalidBooking
	}

	var reason *string
	if req.Reason != "" {
		reason = &req.Reason
	}

	var created uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (
			id, user_id, doctor_id, hospital_id, slot_id, appointment_date, appointment_time,
			status, booking_source, confirmation_code, patient_name, patient_phone,
			reason_for_visit, consultation_fee, created_at, updated_at
		)
		SELECT $1, u.id, d.id, d.hospital_id, $4, $5::date, $6::time,
		       'confirmed', $7, $8, u.name, u.phone, $9, d.consultation_fee, now(), now()
		FROM users u
		JOIN doctors d ON d.id = $3 AND d.is_active
		WHERE u.id = $2
		RETURNING id
	`, id, req.UserID, req.DoctorID, req.SlotID, slotDate, slotTime, string(req.Source), confirmationCode, reason).Scan(&created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrInvalidBooking
		}
		if db.IsUniqueViolation(err) {
			return ErrSlotUnavailable
		}
		return fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit booking: %w", err)
	}
	return nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments a WHERE a.id = $1`, id)
	return scanAppointment(row)
}

func (r *PgRepository) CancelAppointment(ctx context.Context, id uuid.UUID, at time.Time, reason string) (*Appointment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin cancel tx: %w", err)
	}
	defer tx.Rollback(ctx)

	appt, err := scanAppointment(tx.QueryRow(ctx, `
		UPDATE appointments a
		SET status = 'cancelled',
		    cancelled_at = $2,
		    cancellation_reason = $3,
		    updated_at = now()
		WHERE a.id = $1
		  AND a.status NOT IN ('completed', 'cancelled', 'no_show')
		RETURNING `+appointmentColumns, id, at, reason))
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, ErrNotCancellable
		}
		return nil, fmt.Errorf("cancel appointment: %w", err)
	}

	if appt.SlotID != nil {
		if _, err := tx.Exec(ctx, `UPDATE appointment_slots SET is_available = true WHERE id = $1`, *appt.SlotID); err != nil {
			return nil, fmt.Errorf("release slot: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit cancel: %w", err)
	}
	return appt, nil
}

func (r *PgRepository) ListDayQueue(ctx context.Context, doctorID uuid.UUID, date string) ([]QueueEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, to_char(a.appointment_time, 'HH24:MI'), a.status, a.patient_name, a.consultation_started_at
		FROM appointments a
		WHERE a.doctor_id = $1
		  AND a.appointment_date = $2::date
		  AND a.status IN ('confirmed', 'checked_in', 'in_consultation')
		ORDER BY a.appointment_time
	`, doctorID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []QueueEntry
	for rows.Next() {
		var e QueueEntry
		if err := rows.Scan(&e.AppointmentID, &e.Time, &e.Status, &e.PatientName, &e.ConsultationStartedAt); err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) FindActiveForDay(ctx context.Context, userID uuid.UUID, date string) (*AppointmentDetail, error) {
	row := r.db.QueryRow(ctx, `SELECT `+detailColumns+detailFrom+`
		WHERE a.user_id = $1
		  AND a.appointment_date = $2::date
		  AND a.status IN ('confirmed', 'checked_in', 'in_consultation')
		ORDER BY a.appointment_time
		LIMIT 1
	`, userID, date)
	return scanDetail(row)
}

func (r *PgRepository) ListUpcoming(ctx context.Context, userID uuid.UUID, fromDate string, limit int) ([]AppointmentDetail, error) {
	rows, err := r.db.Query(ctx, `SELECT `+detailColumns+detailFrom+`
		WHERE a.user_id = $1
		  AND a.appointment_date >= $2::date
		  AND a.status = 'confirmed'
		ORDER BY a.appointment_date, a.appointment_time
		LIMIT $3
	`, userID, fromDate, limit)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

// reminderColumn maps a kind to its flag column. Only these two literals reach SQL.
func reminderColumn(kind ReminderKind) (string, error) {
	switch kind {
	case Reminder24h:
		return "reminder_sent_24h", nil
	case Reminder1h:
		return "reminder_sent_1h", nil
	}
	return "", fmt.Errorf("unknown reminder kind %q", kind)
}

func (r *PgRepository) ListDueReminders(ctx context.Context, kind ReminderKind, date, from, to string) ([]AppointmentDetail, error) {
	col, err := reminderColumn(kind)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `SELECT `+detailColumns+detailFrom+`
		WHERE a.appointment_date = $1::date
		  AND a.appointment_time BETWEEN $2::time AND $3::time
		  AND a.status = 'confirmed'
		  AND NOT a.`+col+`
		ORDER BY a.appointment_time
	`, date, from, to)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

func (r *PgRepository) ClaimReminder(ctx context.Context, id uuid.UUID, kind ReminderKind) (bool, error) {
	col, err := reminderColumn(kind)
	if err != nil {
		return false, err
	}
	tag, err := r.db.Exec(ctx, `
		UPDATE appointments SET `+col+` = true, updated_at = now()
		WHERE id = $1 AND NOT `+col+` AND status = 'confirmed'
	`, id)
	if err != nil {
		return false, fmt.Errorf("claim reminder: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PgRepository) ReleaseReminder(ctx context.Context, id uuid.UUID, kind ReminderKind) error {
	col, err := reminderColumn(kind)
	if err != nil {
		return err
	}
	if _, err := r.db.Exec(ctx, `UPDATE appointments SET `+col+` = false WHERE id = $1`, id); err != nil {
		return fmt.Errorf("release reminder: %w", err)
	}
	return nil
}

func (r *PgRepository) ListSchedules(ctx context.Context) ([]DoctorSchedule, error) {
	rows, err := r.db.Query(ctx, `
		SELECT d.id, d.working_days,
		       to_char(d.working_hours_start, 'HH24:MI'), to_char(d.working_hours_end, 'HH24:MI'),
		       d.slot_duration,
		       COALESCE((SELECT max(s.slot_date)::text FROM appointment_slots s WHERE s.doctor_id = d.id), '')
		FROM doctors d
		WHERE d.is_active
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DoctorSchedule
	for rows.Next() {
		var (
			s    DoctorSchedule
			days []int16
		)
		if err := rows.Scan(&s.DoctorID, &days, &s.Start, &s.End, &s.SlotMinutes, &s.LastSlotDate); err != nil {
			return nil, err
		}
		for _, d := range days {
			s.WorkingDays = append(s.WorkingDays, time.Weekday(d%7))
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) InsertSlots(ctx context.Context, doctorID uuid.UUID, slots []SlotTime) (int64, error) {
	if len(slots) == 0 {
		return 0, nil
	}
	dates := make([]string, len(slots))
	times := make([]string, len(slots))
	for i, s := range slots {
		dates[i] = s.Date
		times[i] = s.Time
	}

	tag, err := r.db.Exec(ctx, `
		INSERT INTO appointment_slots (doctor_id, slot_date, slot_time, is_available)
		SELECT $1, s.d::date, s.t::time, true
		FROM unnest($2::text[], $3::text[]) AS s(d, t)
		ON CONFLICT (doctor_id, slot_date, slot_time) DO NOTHING
	`, doctorID, dates, times)
	if err != nil {
		return 0, fmt.Errorf("insert slots: %w", err)
	}
	return tag.RowsAffected(), nil
}
