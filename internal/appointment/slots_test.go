package appointment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSlotsDefaults(t *testing.T) {
	// Friday through Monday
	from := time.Date(2026, 10, 16, 0, 0, 0, 0, ist)
	until := time.Date(2026, 10, 19, 0, 0, 0, 0, ist)

	slots, err := buildSlots(DoctorSchedule{}, from, until)
	require.NoError(t, err)

	// 09:00..16:30 on Friday and Monday
	require.Len(t, slots, 32)
	assert.Equal(t, SlotTime{Date: "2026-10-16", Time: "09:00"}, slots[0])
	assert.Equal(t, SlotTime{Date: "2026-10-16", Time: "16:30"}, slots[15])
	assert.Equal(t, SlotTime{Date: "2026-10-19", Time: "09:00"}, slots[16])
}

func TestBuildSlotsDropsOverrunningSlot(t *testing.T) {
	day := time.Date(2026, 10, 17, 0, 0, 0, 0, ist)
	s := DoctorSchedule{
		WorkingDays: []time.Weekday{time.Saturday},
		Start:       "10:00",
		End:         "11:00",
		SlotMinutes: 25,
	}

	slots, err := buildSlots(s, day, day)
	require.NoError(t, err)
	assert.Equal(t, []SlotTime{{"2026-10-17", "10:00"}, {"2026-10-17", "10:25"}}, slots)
}

func TestBuildSlotsBadHours(t *testing.T) {
	day := time.Date(2026, 10, 17, 0, 0, 0, 0, ist)
	_, err := buildSlots(DoctorSchedule{Start: "nine"}, day, day)
	assert.Error(t, err)
}

type memSlotRepo struct {
	schedules []DoctorSchedule
	inserted  map[uuid.UUID][]SlotTime
}

func (m *memSlotRepo) ListSchedules(context.Context) ([]DoctorSchedule, error) {
	return m.schedules, nil
}

func (m *memSlotRepo) InsertSlots(_ context.Context, doctorID uuid.UUID, slots []SlotTime) (int64, error) {
	if m.inserted == nil {
		m.inserted = map[uuid.UUID][]SlotTime{}
	}
	m.inserted[doctorID] = append(m.inserted[doctorID], slots...)
	return int64(len(slots)), nil
}

func TestRegenerateContinuesAfterLastSlot(t *testing.T) {
	fresh, stocked := uuid.New(), uuid.New()
	repo := &memSlotRepo{schedules: []DoctorSchedule{
		{DoctorID: fresh, WorkingDays: []time.Weekday{time.Saturday}, Start: "09:00", End: "10:00", SlotMinutes: 30},
		{DoctorID: stocked, WorkingDays: []time.Weekday{time.Saturday}, Start: "09:00", End: "10:00", SlotMinutes: 30, LastSlotDate: "2026-10-24"},
	}}

	g := NewSlotGenerator(repo, 15, ist, nil, nil)
	g.SetClock(fixedNow)

	n, err := g.Regenerate(context.Background())
	require.NoError(t, err)

	// Saturdays 17, 24, 31 for the fresh doctor; only the 31st for the stocked one
	assert.Equal(t, 8, n)
	assert.Len(t, repo.inserted[fresh], 6)
	assert.Equal(t, []SlotTime{{"2026-10-31", "09:00"}, {"2026-10-31", "09:30"}}, repo.inserted[stocked])
}
