package search

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgFindDoctorsFilters(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doctorID, hospitalID := uuid.New(), uuid.New()
	city := "Hyderabad"

	mock.ExpectQuery("FROM doctors d").
		WithArgs("%cardio%", "%Hyderabad%", "", 50).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "specialization", "qualifications", "experience_years",
			"fee", "rating", "languages",
			"hid", "hname", "address", "city", "tier", "promotion_level",
		}).AddRow(
			doctorID, "Dr. Rao", "Cardiologist", (*string)(nil), (*int)(nil),
			800.0, 4.7, []string{"English", "Telugu"},
			hospitalID, "Apollo", (*string)(nil), &city, int16(1), "premium",
		))

	repo := NewPgRepository(mock)
	doctors, err := repo.FindDoctors(context.Background(), Criteria{Specialty: "cardio", Location: "Hyderabad"}, 50)
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, "Dr. Rao", doctors[0].Name)
	assert.Equal(t, 1, doctors[0].Hospital.Tier)
	assert.Equal(t, PromotionPremium, doctors[0].Hospital.Promotion)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgNextAvailableSlotNone(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doctorID := uuid.New()
	mock.ExpectQuery("FROM appointment_slots").
		WithArgs(doctorID, "2026-10-16").
		WillReturnError(pgx.ErrNoRows)

	repo := NewPgRepository(mock)
	slot, err := repo.NextAvailableSlot(context.Background(), doctorID, "2026-10-16")
	require.NoError(t, err)
	assert.Nil(t, slot)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgAvailableSlots(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	doctorID := uuid.New()
	mock.ExpectQuery("FROM appointment_slots").
		WithArgs(doctorID, "2026-10-17", 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "slot_date", "slot_time"}).
			AddRow(uuid.New(), "2026-10-17", "09:00").
			AddRow(uuid.New(), "2026-10-17", "09:30"))

	repo := NewPgRepository(mock)
	slots, err := repo.AvailableSlots(context.Background(), doctorID, "2026-10-17", 10)
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "09:30", slots[1].Time)
	assert.Equal(t, doctorID, slots[1].DoctorID)
	require.NoError(t, mock.ExpectationsWereMet())
}
