package processor

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/vaidya/internal/appointment"
	"github.com/hackgods/vaidya/internal/conversation"
	"github.com/hackgods/vaidya/internal/intent"
	"github.com/hackgods/vaidya/internal/llm"
	"github.com/hackgods/vaidya/internal/patient"
	"github.com/hackgods/vaidya/internal/records"
	"github.com/hackgods/vaidya/internal/search"
)

type memConversations struct {
	mu      sync.Mutex
	byPhone map[string]*conversation.Conversation
	logs    []conversation.Message
	now     func() time.Time
}

func newMemConversations(now func() time.Time) *memConversations {
	return &memConversations{byPhone: map[string]*conversation.Conversation{}, now: now}
}

func (m *memConversations) GetOrCreate(_ context.Context, phone string) (*conversation.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.byPhone[phone]
	if !ok {
		c = &conversation.Conversation{ID: uuid.New(), Phone: phone, State: conversation.StateIdle, LastMessageAt: m.now(), CreatedAt: m.now()}
		m.byPhone[phone] = c
	}
	cp := *c
	return &cp, nil
}

func (m *memConversations) Update(_ context.Context, id uuid.UUID, state conversation.State, cc conversation.Context, userID *uuid.UUID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.byPhone {
		if c.ID == id {
			c.State, c.Context, c.LastMessageAt = state, cc, at
			if userID != nil {
				c.UserID = userID
			}
			return nil
		}
	}
	return conversation.ErrConversationNotFound
}

func (m *memConversations) LogMessage(_ context.Context, msg conversation.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, msg)
	return nil
}

func (m *memConversations) seed(phone string, userID *uuid.UUID, state conversation.State, cc conversation.Context, last time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.byPhone[phone] = &conversation.Conversation{
		ID: uuid.New(), Phone: phone, UserID: userID, State: state, Context: cc, LastMessageAt: last, CreatedAt: last,
	}
}

func (m *memConversations) get(phone string) conversation.Conversation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.byPhone[phone]
}

type fakeIntents struct {
	mu          sync.Mutex
	byText      map[string]intent.Intent
	lastHistory []llm.Message
	translated  []string
}

func newFakeIntents() *fakeIntents {
	return &fakeIntents{byText: map[string]intent.Intent{}}
}

func (f *fakeIntents) on(text string, in intent.Intent) {
	f.byText[strings.ToLower(text)] = in
}

func (f *fakeIntents) Extract(_ context.Context, text string, history []llm.Message) intent.Intent {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastHistory = history
	if in, ok := f.byText[strings.ToLower(strings.TrimSpace(text))]; ok {
		in.RawText = text
		return in
	}
	if n, err := strconv.Atoi(strings.TrimSpace(text)); err == nil {
		return intent.Intent{Kind: intent.Number, Number: &n, RawText: text}
	}
	return intent.Intent{Kind: intent.Unclear, RawText: text}
}

func (f *fakeIntents) Translate(_ context.Context, text, target string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.translated = append(f.translated, target)
	return "[" + target + "] " + text
}

type fakePatients struct {
	users   map[string]*patient.User
	created []patient.NewUser
	records []patient.RecordSummary
}

func newFakePatients() *fakePatients {
	return &fakePatients{users: map[string]*patient.User{}}
}

func (f *fakePatients) register(phone, name, language string) *patient.User {
	lat, lng := 17.4239, 78.4738
	age := 34
	u := &patient.User{ID: uuid.New(), Phone: phone, Name: name, Age: &age, Language: language, Latitude: &lat, Longitude: &lng}
	f.users[phone] = u
	return u
}

func (f *fakePatients) FindByPhone(_ context.Context, phone string) (*patient.User, error) {
	u, ok := f.users[phone]
	if !ok {
		return nil, patient.ErrUserNotFound
	}
	return u, nil
}

func (f *fakePatients) Create(_ context.Context, nu patient.NewUser) (*patient.User, error) {
	if _, ok := f.users[nu.Phone]; ok {
		return nil, patient.ErrUserExists
	}
	f.created = append(f.created, nu)
	city := nu.City
	u := &patient.User{
		ID: uuid.New(), Phone: nu.Phone, Name: nu.Name, Age: nu.Age, Language: nu.Language,
		City: &city, Latitude: nu.Latitude, Longitude: nu.Longitude,
	}
	f.users[nu.Phone] = u
	return u, nil
}

func (f *fakePatients) RecentRecords(_ context.Context, _ uuid.UUID, limit int) ([]patient.RecordSummary, error) {
	if len(f.records) > limit {
		return f.records[:limit], nil
	}
	return f.records, nil
}

type fakeSearch struct {
	doctors   []search.Doctor
	slots     map[string][]appointment.Slot
	criteria  []search.Criteria
	slotDates []string
	panics    bool
}

func slotKey(doctorID uuid.UUID, date string) string {
	return doctorID.String() + "/" + date
}

func (f *fakeSearch) Search(_ context.Context, c search.Criteria, _ string) []search.Doctor {
	if f.panics {
		panic("search index corrupted")
	}
	f.criteria = append(f.criteria, c)
	return f.doctors
}

func (f *fakeSearch) AvailableSlots(_ context.Context, doctorID uuid.UUID, date string) []appointment.Slot {
	f.slotDates = append(f.slotDates, date)
	return f.slots[slotKey(doctorID, date)]
}

type fakeBooking struct {
	booked    []appointment.BookRequest
	bookErr   error
	cancelled []uuid.UUID
	cancelErr error
	upcoming  []appointment.AppointmentDetail
	today     *appointment.AppointmentDetail
	queue     appointment.QueueStatus
}

func (f *fakeBooking) Book(_ context.Context, req appointment.BookRequest) (*appointment.BookResult, error) {
	f.booked = append(f.booked, req)
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	return &appointment.BookResult{AppointmentID: uuid.New(), ConfirmationCode: "ABCD1234"}, nil
}

func (f *fakeBooking) Cancel(_ context.Context, id uuid.UUID, _ appointment.Actor, _ string) error {
	f.cancelled = append(f.cancelled, id)
	return f.cancelErr
}

func (f *fakeBooking) QueueStatus(context.Context, uuid.UUID, string) appointment.QueueStatus {
	return f.queue
}

func (f *fakeBooking) TodayAppointment(context.Context, uuid.UUID) *appointment.AppointmentDetail {
	return f.today
}

func (f *fakeBooking) UpcomingAppointments(context.Context, uuid.UUID) []appointment.AppointmentDetail {
	return f.upcoming
}

type fakeRecords struct {
	now    func() time.Time
	issued []uuid.UUID
	err    error
}

func (f *fakeRecords) Issue(_ context.Context, _ uuid.UUID, recordID uuid.UUID) (*records.Access, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.issued = append(f.issued, recordID)
	return &records.Access{
		Link:      "https://mediconnect.test/view-record?token=tok",
		OTP:       "123456",
		ExpiresAt: f.now().Add(5 * time.Minute),
	}, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	to   []string
	err  error
}

func (f *fakeSender) Send(_ context.Context, to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.to = append(f.to, to)
	f.sent = append(f.sent, body)
	return "SM-out-" + strconv.Itoa(len(f.sent)), nil
}
