package conversation

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/vaidya/internal/appointment"
	"github.com/hackgods/vaidya/internal/patient"
	"github.com/hackgods/vaidya/internal/search"
)

var ErrConversationNotFound = errors.New("conversation not found")

type State string

const (
	StateIdle                 State = "idle"
	StateRegistrationName     State = "registration_name"
	StateRegistrationAge      State = "registration_age"
	StateRegistrationLanguage State = "registration_language"
	StateRegistrationLocation State = "registration_location"
	StateSelectingDoctor      State = "selecting_doctor"
	StateSelectingSlot        State = "selecting_slot"
	StateConfirmingBooking    State = "confirming_booking"
	StateSelectingRecord      State = "selecting_record"
	StateSelectingCancel      State = "selecting_appointment_to_cancel"
	// StateUpdatingProfile is reserved. No transition leads to it.
	StateUpdatingProfile State = "updating_profile"
)

func (s State) Registration() bool {
	return strings.HasPrefix(string(s), "registration_")
}

type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// SearchParams is the resolved search a doctor list came from.
type SearchParams struct {
	Specialty string `json:"specialty,omitempty"`
	Location  string `json:"location,omitempty"`
	Hospital  string `json:"hospital,omitempty"`
	Date      string `json:"date"`
}

// CancelOption is one appointment offered in the cancellation list.
type CancelOption struct {
	AppointmentID uuid.UUID `json:"appointmentId"`
	Date          string    `json:"date"`
	Time          string    `json:"time"`
	DoctorName    string    `json:"doctorName,omitempty"`
	HospitalName  string    `json:"hospitalName,omitempty"`
}

// Context is the in-progress flow data persisted with the conversation.
type Context struct {
	Name     string `json:"name,omitempty"`
	Age      *int   `json:"age,omitempty"`
	Language string `json:"language,omitempty"`

	SearchParams   *SearchParams      `json:"searchParams,omitempty"`
	SearchResults  []search.Doctor    `json:"searchResults,omitempty"`
	SelectedDoctor *search.Doctor     `json:"selectedDoctor,omitempty"`
	AvailableSlots []appointment.Slot `json:"availableSlots,omitempty"`
	SelectedSlot   *appointment.Slot  `json:"selectedSlot,omitempty"`

	Records       []patient.RecordSummary `json:"records,omitempty"`
	CancelOptions []CancelOption          `json:"cancelOptions,omitempty"`
}

// Supports reports whether c carries everything state s reads.
func (c Context) Supports(s State) bool {
	switch s {
	case StateIdle, StateRegistrationName:
		return true
	case StateRegistrationAge:
		return c.Name != ""
	case StateRegistrationLanguage:
		return c.Name != "" && c.Age != nil
	case StateRegistrationLocation:
		return c.Name != "" && c.Age != nil && c.Language != ""
	case StateSelectingDoctor:
		return c.SearchParams != nil && len(c.SearchResults) > 0
	case StateSelectingSlot:
		return c.SelectedDoctor != nil && len(c.AvailableSlots) > 0
	case StateConfirmingBooking:
		return c.SelectedDoctor != nil && c.SelectedSlot != nil
	case StateSelectingRecord:
		return len(c.Records) > 0
	case StateSelectingCancel:
		return len(c.CancelOptions) > 0
	}
	return false
}

type Conversation struct {
	ID            uuid.UUID
	Phone         string
	UserID        *uuid.UUID
	State         State
	Context       Context
	LastMessageAt time.Time
	CreatedAt     time.Time
}

type Message struct {
	ConversationID uuid.UUID
	UserID         *uuid.UUID
	Direction      Direction
	Text           string
	ProviderSID    string
}
