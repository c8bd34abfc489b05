package search

import (
	"github.com/google/uuid"

	"github.com/hackgods/vaidya/internal/appointment"
)

type PromotionLevel string

const (
	PromotionNone     PromotionLevel = ""
	PromotionPromoted PromotionLevel = "promoted"
	PromotionPremium  PromotionLevel = "premium"
)

// Criteria filters a doctor search. Empty strings mean no filter.
type Criteria struct {
	Specialty string
	Location  string
	Hospital  string
	// Lat/Lng are carried for future distance scoring and do not affect ranking.
	Lat *float64
	Lng *float64
}

type Hospital struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Address   *string        `json:"address,omitempty"`
	City      *string        `json:"city,omitempty"`
	Tier      int            `json:"tier"`
	Promotion PromotionLevel `json:"promotionLevel,omitempty"`
}

// Doctor is a search hit. It is stored in the conversation context between turns.
type Doctor struct {
	ID              uuid.UUID         `json:"id"`
	Name            string            `json:"name"`
	Specialization  string            `json:"specialization"`
	Qualifications  *string           `json:"qualifications,omitempty"`
	ExperienceYears *int              `json:"experienceYears,omitempty"`
	Fee             float64           `json:"fee"`
	Rating          float64           `json:"rating"`
	Languages       []string          `json:"languages,omitempty"`
	Hospital        Hospital          `json:"hospital"`
	NextSlot        *appointment.Slot `json:"nextSlot,omitempty"`
}

func (d Doctor) Promoted() bool {
	return d.Hospital.Promotion == PromotionPromoted || d.Hospital.Promotion == PromotionPremium
}
