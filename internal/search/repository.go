package search

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/vaidya/internal/appointment"
	"github.com/hackgods/vaidya/internal/db"
)

// Repository contains the read queries doctor search needs.
type Repository interface {
	FindDoctors(ctx context.Context, c Criteria, limit int) ([]Doctor, error)
	// NextAvailableSlot returns the earliest open slot on or after fromDate, or nil.
	NextAvailableSlot(ctx context.Context, doctorID uuid.UUID, fromDate string) (*appointment.Slot, error)
	AvailableSlots(ctx context.Context, doctorID uuid.UUID, date string, limit int) ([]appointment.Slot, error)
}

type PgRepository struct {
	db db.DBTX
}

func NewPgRepository(db db.DBTX) *PgRepository {
	return &PgRepository{db: db}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching s anywhere. Empty input stays empty.
func containsPattern(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return "%" + likeEscaper.Replace(s) + "%"
}

func (r *PgRepository) FindDoctors(ctx context.Context, c Criteria, limit int) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT d.id, d.name, d.specialization, d.qualifications, d.experience_years,
		       d.consultation_fee::float8, d.rating::float8, d.languages,
		       h.id, h.name, h.address, h.city, h.tier, COALESCE(h.promotion_level, '')
		FROM doctors d
		JOIN hospitals h ON h.id = d.hospital_id
		WHERE d.is_active
		  AND ($1 = '' OR d.specialization ILIKE $1)
		  AND ($2 = '' OR h.city ILIKE $2)
		  AND ($3 = '' OR h.name ILIKE $3)
		ORDER BY d.created_at, d.id
		LIMIT $4
	`, containsPattern(c.Specialty), containsPattern(c.Location), containsPattern(c.Hospital), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		var (
			d     Doctor
			tier  int16
			promo string
		)
		if err := rows.Scan(
			&d.ID, &d.Name, &d.Specialization, &d.Qualifications, &d.ExperienceYears,
			&d.Fee, &d.Rating, &d.Languages,
			&d.Hospital.ID, &d.Hospital.Name, &d.Hospital.Address, &d.Hospital.City, &tier, &promo,
		); err != nil {
			return nil, err
		}
		d.Hospital.Tier = int(tier)
		d.Hospital.Promotion = PromotionLevel(promo)
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) NextAvailableSlot(ctx context.Context, doctorID uuid.UUID, fromDate string) (*appointment.Slot, error) {
	s := appointment.Slot{DoctorID: doctorID}
	err := r.db.QueryRow(ctx, `
		SELECT id, slot_date::text, to_char(slot_time, 'HH24:MI')
		FROM appointment_slots
		WHERE doctor_id = $1
		  AND is_available
		  AND slot_date >= $2::date
		ORDER BY slot_date, slot_time
		LIMIT 1
	`, doctorID, fromDate).Scan(&s.ID, &s.Date, &s.Time)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *PgRepository) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date string, limit int) ([]appointment.Slot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, slot_date::text, to_char(slot_time, 'HH24:MI')
		FROM appointment_slots
		WHERE doctor_id = $1
		  AND slot_date = $2::date
		  AND is_available
		ORDER BY slot_time
		LIMIT $3
	`, doctorID, date, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []appointment.Slot
	for rows.Next() {
		s := appointment.Slot{DoctorID: doctorID}
		if err := rows.Scan(&s.ID, &s.Date, &s.Time); err != nil {
			return nil, err
		}
		result = append(result, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
