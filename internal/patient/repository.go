package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/hackgods/vaidya/internal/db"
)

const unknownHospital = "Unknown Hospital"

type Repository interface {
	FindByPhone(ctx context.Context, phone string) (*User, error)
	// Create inserts the user. It returns ErrUserExists when the phone is already registered.
	Create(ctx context.Context, u NewUser) (*User, error)
	RecentRecords(ctx context.Context, userID uuid.UUID, limit int) ([]RecordSummary, error)
	GetRecord(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)
}

type PgRepository struct {
	db db.DBTX
}

func NewPgRepository(db db.DBTX) *PgRepository {
	return &PgRepository{db: db}
}

const userColumns = `id, phone, name, age, preferred_language, city, latitude, longitude, created_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	if err := row.Scan(&u.ID, &u.Phone, &u.Name, &u.Age, &u.Language, &u.City, &u.Latitude, &u.Longitude, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *PgRepository) FindByPhone(ctx context.Context, phone string) (*User, error) {
	return scanUser(r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE phone = $1`, phone))
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (r *PgRepository) Create(ctx context.Context, u NewUser) (*User, error) {
	lang := u.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	user, err := scanUser(r.db.QueryRow(ctx, `
		INSERT INTO users (phone, name, age, preferred_language, city, latitude, longitude, whatsapp_name)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+userColumns,
		u.Phone, u.Name, u.Age, lang, nullable(u.City), u.Latitude, u.Longitude, nullable(u.WhatsAppName),
	))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}

func (r *PgRepository) RecentRecords(ctx context.Context, userID uuid.UUID, limit int) ([]RecordSummary, error) {
	rows, err := r.db.Query(ctx, `
		SELECT m.id, m.title, m.record_type, m.created_at, COALESCE(h.name, $3)
		FROM medical_records m
		LEFT JOIN hospitals h ON h.id = m.hospital_id
		WHERE m.user_id = $1
		ORDER BY m.created_at DESC
		LIMIT $2
	`, userID, limit, unknownHospital)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []RecordSummary
	for rows.Next() {
		var rec RecordSummary
		if err := rows.Scan(&rec.ID, &rec.Title, &rec.Type, &rec.CreatedAt, &rec.HospitalName); err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *PgRepository) GetRecord(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	var m MedicalRecord
	err := r.db.QueryRow(ctx, `
		SELECT id, user_id, record_type, title, file_url, created_at
		FROM medical_records
		WHERE id = $1
	`, id).Scan(&m.ID, &m.UserID, &m.Type, &m.Title, &m.FileURL, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &m, nil
}
