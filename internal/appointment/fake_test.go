package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memRepo is an in-memory Repository and ReminderRepository. Book holds the mutex for the
// whole reservation, mirroring the single storage transaction.
type memRepo struct {
	mu           sync.Mutex
	slots        map[uuid.UUID]*memSlot
	appointments map[uuid.UUID]*AppointmentDetail
	queue        []QueueEntry
	queueErr     error
}

type memSlot struct {
	doctorID  uuid.UUID
	date      string
	time      string
	available bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		slots:        map[uuid.UUID]*memSlot{},
		appointments: map[uuid.UUID]*AppointmentDetail{},
	}
}

func (m *memRepo) addSlot(doctorID uuid.UUID, date, clock string) uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.slots[id] = &memSlot{doctorID: doctorID, date: date, time: clock, available: true}
	return id
}

func (m *memRepo) addAppointment(a AppointmentDetail) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appointments[a.ID] = &a
}

func (m *memRepo) Book(_ context.Context, id uuid.UUID, code string, req BookRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.slots[req.SlotID]
	if !ok || !s.available || s.doctorID != req.DoctorID {
		return ErrSlotUnavailable
	}
	s.available = false
	slotID := req.SlotID
	m.appointments[id] = &AppointmentDetail{Appointment: Appointment{
		ID:               id,
		UserID:           req.UserID,
		DoctorID:         req.DoctorID,
		SlotID:           &slotID,
		Date:             s.date,
		Time:             s.time,
		Status:           StatusConfirmed,
		Source:           req.Source,
		ConfirmationCode: code,
	}}
	return nil
}

func (m *memRepo) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := a.Appointment
	return &cp, nil
}

func (m *memRepo) CancelAppointment(_ context.Context, id uuid.UUID, at time.Time, reason string) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok || a.Status.Terminal() {
		return nil, ErrNotCancellable
	}
	a.Status = StatusCancelled
	a.CancelledAt = &at
	a.CancellationReason = &reason
	if a.SlotID != nil {
		if s, ok := m.slots[*a.SlotID]; ok {
			s.available = true
		}
	}
	cp := a.Appointment
	return &cp, nil
}

func (m *memRepo) ListDayQueue(_ context.Context, _ uuid.UUID, _ string) ([]QueueEntry, error) {
	return m.queue, m.queueErr
}

func (m *memRepo) FindActiveForDay(_ context.Context, userID uuid.UUID, date string) (*AppointmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.appointments {
		if a.UserID == userID && a.Date == date && !a.Status.Terminal() {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (m *memRepo) ListUpcoming(_ context.Context, userID uuid.UUID, fromDate string, limit int) ([]AppointmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AppointmentDetail
	for _, a := range m.appointments {
		if a.UserID == userID && a.Date >= fromDate && a.Status == StatusConfirmed {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date+out[i].Time < out[j].Date+out[j].Time })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memRepo) liveForSlot(slotID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.appointments {
		if a.SlotID != nil && *a.SlotID == slotID && a.Status != StatusCancelled {
			n++
		}
	}
	return n
}

func (m *memRepo) ListDueReminders(_ context.Context, kind ReminderKind, date, from, to string) ([]AppointmentDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []AppointmentDetail
	for _, a := range m.appointments {
		if a.Date != date || a.Time < from || a.Time > to || a.Status != StatusConfirmed {
			continue
		}
		if (kind == Reminder24h && a.ReminderSent24h) || (kind == Reminder1h && a.ReminderSent1h) {
			continue
		}
		out = append(out, *a)
	}
	return out, nil
}

func (m *memRepo) ClaimReminder(_ context.Context, id uuid.UUID, kind ReminderKind) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appointments[id]
	if !ok {
		return false, nil
	}
	flag := &a.ReminderSent24h
	if kind == Reminder1h {
		flag = &a.ReminderSent1h
	}
	if *flag {
		return false, nil
	}
	*flag = true
	return true, nil
}

func (m *memRepo) ReleaseReminder(_ context.Context, id uuid.UUID, kind ReminderKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a, ok := m.appointments[id]; ok {
		if kind == Reminder1h {
			a.ReminderSent1h = false
		} else {
			a.ReminderSent24h = false
		}
	}
	return nil
}
