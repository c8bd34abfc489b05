package processor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/vaidya/internal/appointment"
	"github.com/hackgods/vaidya/internal/audit"
	"github.com/hackgods/vaidya/internal/conversation"
	"github.com/hackgods/vaidya/internal/intent"
	"github.com/hackgods/vaidya/internal/llm"
	"github.com/hackgods/vaidya/internal/logging"
	"github.com/hackgods/vaidya/internal/metrics"
	"github.com/hackgods/vaidya/internal/patient"
	"github.com/hackgods/vaidya/internal/records"
	"github.com/hackgods/vaidya/internal/reply"
	"github.com/hackgods/vaidya/internal/search"
)

// Inbound is one message received from the WhatsApp webhook. From has the "whatsapp:" prefix removed.
type Inbound struct {
	From        string   `json:"from"`
	Body        string   `json:"body"`
	SID         string   `json:"sid"`
	ProfileName string   `json:"profileName,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
}

type IntentExtractor interface {
	Extract(ctx context.Context, text string, history []llm.Message) intent.Intent
	Translate(ctx context.Context, text, target string) string
}

type ConversationStore interface {
	GetOrCreate(ctx context.Context, phone string) (*conversation.Conversation, error)
	Update(ctx context.Context, c *conversation.Conversation, state conversation.State, cc conversation.Context, userID *uuid.UUID) error
	Reset(ctx context.Context, c *conversation.Conversation) error
	ResetIfStale(ctx context.Context, c *conversation.Conversation) (bool, error)
	LogMessage(ctx context.Context, c *conversation.Conversation, dir conversation.Direction, text, sid string)
}

type Patients interface {
	FindByPhone(ctx context.Context, phone string) (*patient.User, error)
	Create(ctx context.Context, u patient.NewUser) (*patient.User, error)
	RecentRecords(ctx context.Context, userID uuid.UUID, limit int) ([]patient.RecordSummary, error)
}

type DoctorSearch interface {
	Search(ctx context.Context, c search.Criteria, date string) []search.Doctor
	AvailableSlots(ctx context.Context, doctorID uuid.UUID, date string) []appointment.Slot
}

type Booking interface {
	Book(ctx context.Context, req appointment.BookRequest) (*appointment.BookResult, error)
	Cancel(ctx context.Context, id uuid.UUID, actor appointment.Actor, reason string) error
	QueueStatus(ctx context.Context, doctorID uuid.UUID, date string) appointment.QueueStatus
	TodayAppointment(ctx context.Context, userID uuid.UUID) *appointment.AppointmentDetail
	UpcomingAppointments(ctx context.Context, userID uuid.UUID) []appointment.AppointmentDetail
}

type RecordAccess interface {
	Issue(ctx context.Context, userID, recordID uuid.UUID) (*records.Access, error)
}

// Deps are the collaborators of a Processor. Audit, Metrics and Logger may be nil.
type Deps struct {
	Intents  IntentExtractor
	Store    ConversationStore
	Patients Patients
	Geocoder patient.Geocoder
	Search   DoctorSearch
	Booking  Booking
	Records  RecordAccess
	Replies  *reply.Generator
	Audit    audit.Recorder
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	Location *time.Location
}

const (
	recordListLimit = 10
	probeDays       = 7
	cancelReason    = "User requested cancellation"

	EventUserRegistered = "user.registered"
)

var languages = []string{"English", "Hindi", "Telugu", "Tamil"}

// Processor runs one conversation turn. It holds no per-conversation state.
type Processor struct {
	Deps
	now func() time.Time
}

func New(d Deps) *Processor {
	if d.Location == nil {
		d.Location = time.UTC
	}
	d.Logger = logging.OrNop(d.Logger)
	return &Processor{Deps: d, now: time.Now}
}

// SetClock overrides the time source used for date resolution.
func (p *Processor) SetClock(now func() time.Time) {
	p.now = now
}

// Result is the outcome of one turn. Conversation is nil only when it could not be loaded.
// FlowEnded is set when the turn left a multi-step flow for idle, so earlier turns no longer
// describe the conversation.
type Result struct {
	Conversation *conversation.Conversation
	Reply        string
	FlowEnded    bool
}

// State is the conversation state after the turn, for metrics.
func (r Result) State() conversation.State {
	if r.Conversation == nil {
		return ""
	}
	return r.Conversation.State
}

// turn is the per-message working set passed to state handlers.
type turn struct {
	conv   *conversation.Conversation
	user   *patient.User
	in     Inbound
	intent intent.Intent
}

// Process handles one inbound message and returns the reply to send. It never fails: any
// error or panic in a handler resets the conversation and yields the generic error reply.
func (p *Processor) Process(ctx context.Context, in Inbound, history []llm.Message) (res Result) {
	logger := p.Logger.With(zap.String("phone", logging.MaskPhone(in.From)), zap.String("sid", in.SID))

	c, err := p.Store.GetOrCreate(ctx, in.From)
	if err != nil {
		logger.Error("load conversation", zap.Error(err))
		return Result{Reply: p.Replies.GenericError()}
	}
	res.Conversation = c

	initial := c.State
	discarded := false
	defer func() {
		if res.Conversation == nil || res.Conversation.State != conversation.StateIdle {
			return
		}
		res.FlowEnded = discarded || initial != conversation.StateIdle
	}()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("turn panicked", zap.Any("panic", r), zap.String("state", string(c.State)), zap.Stack("stack"))
			res.Reply = p.fail(ctx, c, logger)
		}
	}()

	stale, err := p.Store.ResetIfStale(ctx, c)
	if err != nil {
		logger.Error("stale reset", zap.Error(err))
		return Result{Conversation: c, Reply: p.Replies.GenericError()}
	}
	if stale {
		discarded, history = true, nil
	}
	if !c.Context.Supports(c.State) {
		discarded, history = true, nil
		logger.Warn("conversation context inconsistent with state, resetting", zap.String("state", string(c.State)))
		if err := p.Store.Reset(ctx, c); err != nil {
			logger.Error("consistency reset", zap.Error(err))
			return Result{Conversation: c, Reply: p.Replies.GenericError()}
		}
	}

	p.Store.LogMessage(ctx, c, conversation.Inbound, in.Body, in.SID)

	user, err := p.Patients.FindByPhone(ctx, in.From)
	switch {
	case errors.Is(err, patient.ErrUserNotFound):
		user = nil
	case err != nil:
		logger.Error("find user", zap.Error(err))
		return Result{Conversation: c, Reply: p.Replies.GenericError()}
	}

	if user == nil && !c.State.Registration() {
		if err := p.Store.Update(ctx, c, conversation.StateRegistrationName, conversation.Context{}, nil); err != nil {
			logger.Error("start registration", zap.Error(err))
			return Result{Conversation: c, Reply: p.Replies.GenericError()}
		}
		return Result{Conversation: c, Reply: p.Replies.WelcomeNewUser()}
	}

	t := &turn{conv: c, user: user, in: in}
	t.intent = p.Intents.Extract(ctx, in.Body, history)
	p.Metrics.ObserveIntent(string(t.intent.Kind))

	if t.intent.Kind == intent.CancelFlow || strings.EqualFold(strings.TrimSpace(in.Body), "cancel") {
		if err := p.Store.Reset(ctx, c); err != nil {
			logger.Error("cancel flow reset", zap.Error(err))
			return Result{Conversation: c, Reply: p.Replies.GenericError()}
		}
		return Result{Conversation: c, Reply: p.translate(ctx, t, p.Replies.CancelFlow())}
	}

	out, err := p.dispatch(ctx, t)
	if err != nil {
		logger.Error("turn failed", zap.String("state", string(c.State)), zap.Error(err))
		return Result{Conversation: c, Reply: p.fail(ctx, c, logger)}
	}
	return Result{Conversation: c, Reply: p.translate(ctx, t, out)}
}

func (p *Processor) fail(ctx context.Context, c *conversation.Conversation, logger *zap.Logger) string {
	if err := p.Store.Reset(ctx, c); err != nil {
		logger.Error("reset after failure", zap.Error(err))
	}
	return p.Replies.GenericError()
}

func (p *Processor) translate(ctx context.Context, t *turn, text string) string {
	if t.user == nil || t.user.Language == "" || strings.EqualFold(t.user.Language, patient.DefaultLanguage) {
		return text
	}
	return p.Intents.Translate(ctx, text, t.user.Language)
}

func (p *Processor) dispatch(ctx context.Context, t *turn) (string, error) {
	switch t.conv.State {
	case conversation.StateRegistrationName:
		return p.registrationName(ctx, t)
	case conversation.StateRegistrationAge:
		return p.registrationAge(ctx, t)
	case conversation.StateRegistrationLanguage:
		return p.registrationLanguage(ctx, t)
	case conversation.StateRegistrationLocation:
		return p.registrationLocation(ctx, t)
	}

	if t.user == nil {
		return "", errors.New("no registered user outside registration")
	}

	switch t.conv.State {
	case conversation.StateSelectingDoctor:
		return p.selectingDoctor(ctx, t)
	case conversation.StateSelectingSlot:
		return p.selectingSlot(ctx, t)
	case conversation.StateConfirmingBooking:
		return p.confirmingBooking(ctx, t)
	case conversation.StateSelectingRecord:
		return p.selectingRecord(ctx, t)
	case conversation.StateSelectingCancel:
		return p.selectingCancel(ctx, t)
	default:
		return p.idle(ctx, t)
	}
}

func (p *Processor) today() time.Time {
	return p.now().In(p.Location)
}

// selection is the 1-based number the user replied with, or 0. The extracted number wins;
// otherwise leading digits of the raw text are used.
func selection(in intent.Intent) int {
	if in.Number != nil {
		return *in.Number
	}
	n, _ := leadingInt(in.RawText)
	return n
}

// leadingInt parses the integer at the start of s, so "34 years" and "1. English" read as 34 and 1.
func leadingInt(s string) (int, bool) {
	raw := strings.TrimSpace(s)
	end := 0
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(raw[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

func inRange(n, size int) bool {
	return n >= 1 && n <= size
}

func wrapUpdate(err error, state conversation.State) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("move to %s: %w", state, err)
}
