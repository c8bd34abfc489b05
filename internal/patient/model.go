package patient

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrUserNotFound   = errors.New("user not found")
	ErrUserExists     = errors.New("user already registered")
	ErrRecordNotFound = errors.New("medical record not found")
)

const DefaultLanguage = "English"

type User struct {
	ID        uuid.UUID
	Phone     string
	Name      string
	Age       *int
	Language  string
	City      *string
	Latitude  *float64
	Longitude *float64
	CreatedAt time.Time
}

// NewUser is what registration collects before the user row exists.
type NewUser struct {
	Phone        string
	Name         string
	Age          *int
	Language     string
	City         string
	Latitude     *float64
	Longitude    *float64
	WhatsAppName string
}

// RecordSummary is one row of the records list. It is stored in the conversation context.
type RecordSummary struct {
	ID           uuid.UUID `json:"id"`
	Title        *string   `json:"title,omitempty"`
	Type         string    `json:"recordType"`
	CreatedAt    time.Time `json:"createdAt"`
	HospitalName string    `json:"hospitalName"`
}

func (r RecordSummary) DisplayTitle() string {
	if r.Title != nil && *r.Title != "" {
		return *r.Title
	}
	return r.Type
}

type MedicalRecord struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Type      string
	Title     *string
	FileURL   *string
	CreatedAt time.Time
}
