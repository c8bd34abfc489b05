package intent

// Kind is the action category of a message.
type Kind string

const (
	FindDoctor        Kind = "find_doctor"
	BookAppointment   Kind = "book_appointment"
	ViewRecords       Kind = "view_records"
	CancelAppointment Kind = "cancel_appointment"
	CheckQueue        Kind = "check_queue"
	CheckStatus       Kind = "check_status"
	ViewAppointments  Kind = "view_appointments"
	UpdateProfile     Kind = "update_profile"
	AddFamily         Kind = "add_family"
	Favorites         Kind = "favorites"
	Help              Kind = "help"
	Greeting          Kind = "greeting"
	Yes               Kind = "yes"
	No                Kind = "no"
	Number            Kind = "number"
	CancelFlow        Kind = "cancel_flow"
	Unclear           Kind = "unclear"
)

var known = map[Kind]struct{}{
	FindDoctor: {}, BookAppointment: {}, ViewRecords: {}, CancelAppointment: {}, CheckQueue: {},
	CheckStatus: {}, ViewAppointments: {}, UpdateProfile: {}, AddFamily: {}, Favorites: {}, Help: {},
	Greeting: {}, Yes: {}, No: {}, Number: {}, CancelFlow: {}, Unclear: {},
}

func (k Kind) Valid() bool {
	_, ok := known[k]
	return ok
}

// Intent is the per-turn classification of an inbound message. It is never persisted.
type Intent struct {
	Kind               Kind    `json:"intent"`
	Specialty          *string `json:"specialty"`
	Location           *string `json:"location"`
	Date               *string `json:"date"`
	HospitalPreference *string `json:"hospital_preference"`
	Language           *string `json:"language"`
	Number             *int    `json:"number"`
	RawText            string  `json:"-"`
}

func unclear(text string) Intent {
	return Intent{Kind: Unclear, RawText: text}
}

// Str dereferences an optional entity.
func Str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
