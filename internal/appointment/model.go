package appointment

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	StatusConfirmed      AppointmentStatus = "confirmed"
	StatusCheckedIn      AppointmentStatus = "checked_in"
	StatusInConsultation AppointmentStatus = "in_consultation"
	StatusCompleted      AppointmentStatus = "completed"
	StatusCancelled      AppointmentStatus = "cancelled"
	StatusNoShow         AppointmentStatus = "no_show"
)

func (s AppointmentStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusNoShow
}

type BookingSource string

const (
	SourceWhatsApp     BookingSource = "whatsapp"
	SourceWalkIn       BookingSource = "walk_in"
	SourcePhone        BookingSource = "phone"
	SourceReceptionist BookingSource = "receptionist"
)

// Actor prefixes cancellation reasons.
type Actor string

const (
	ActorPatient  Actor = "patient"
	ActorHospital Actor = "hospital"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Slot is one bookable (doctor, date, time) unit. Date is YYYY-MM-DD, Time is HH:MM.
type Slot struct {
	ID       uuid.UUID `json:"id"`
	DoctorID uuid.UUID `json:"doctorId"`
	Date     string    `json:"date"`
	Time     string    `json:"time"`
}

type Appointment struct {
	ID                    uuid.UUID
	UserID                uuid.UUID
	DoctorID              uuid.UUID
	HospitalID            uuid.UUID
	SlotID                *uuid.UUID
	Date                  string
	Time                  string
	Status                AppointmentStatus
	Source                BookingSource
	ConfirmationCode      string
	PatientName           *string
	PatientPhone          *string
	CheckedInAt           *time.Time
	ConsultationStartedAt *time.Time
	CancelledAt           *time.Time
	CancellationReason    *string
	ReminderSent24h       bool
	ReminderSent1h        bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

type DoctorRef struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Specialization string    `json:"specialization"`
}

type HospitalRef struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Address *string   `json:"address,omitempty"`
	City    *string   `json:"city,omitempty"`
}

// AppointmentDetail carries the joined doctor and hospital. Either may be nil when the join found nothing.
type AppointmentDetail struct {
	Appointment
	Doctor   *DoctorRef
	Hospital *HospitalRef
}

func (d AppointmentDetail) DoctorName() string {
	if d.Doctor == nil {
		return ""
	}
	return d.Doctor.Name
}

func (d AppointmentDetail) HospitalName() string {
	if d.Hospital == nil {
		return ""
	}
	return d.Hospital.Name
}

func (d AppointmentDetail) HospitalAddress() string {
	if d.Hospital == nil {
		return ""
	}
	if d.Hospital.Address != nil {
		return *d.Hospital.Address
	}
	if d.Hospital.City != nil {
		return *d.Hospital.City
	}
	return ""
}

type BookRequest struct {
	UserID   uuid.UUID
	DoctorID uuid.UUID
	SlotID   uuid.UUID
	Date     string
	Time     string
	Source   BookingSource
	Reason   string
}

type BookResult struct {
	AppointmentID    uuid.UUID
	ConfirmationCode string
}

type QueueEntry struct {
	AppointmentID         uuid.UUID
	Time                  string
	Status                AppointmentStatus
	PatientName           *string
	ConsultationStartedAt *time.Time
}

// QueueStatus is a same-day snapshot of one doctor's queue. The zero value means no queue.
type QueueStatus struct {
	InConsultation       *QueueEntry
	CheckedIn            int
	Waiting              int
	EstimatedWaitMinutes int
	CurrentDelayMinutes  int
	Entries              []QueueEntry
}

// PatientsAhead counts entries ordered before id. Unknown ids count the whole queue.
func (q QueueStatus) PatientsAhead(id uuid.UUID) int {
	for i, e := range q.Entries {
		if e.AppointmentID == id {
			return i
		}
	}
	return len(q.Entries)
}

// DoctorSchedule is what slot regeneration needs about one active doctor.
type DoctorSchedule struct {
	DoctorID     uuid.UUID
	WorkingDays  []time.Weekday
	Start        string // HH:MM
	End          string // HH:MM
	SlotMinutes  int
	LastSlotDate string // empty when the doctor has no slots yet
}

type SlotTime struct {
	Date string
	Time string
}
