package appointment

import "errors"

// Failure is a business outcome of booking or cancelling. Reason is safe to show to a patient.
type Failure struct {
	Code   string
	Reason string
	cause  error
}

func (f *Failure) Error() string {
	if f.cause != nil {
		return f.Code + ": " + f.cause.Error()
	}
	return f.Code + ": " + f.Reason
}

func (f *Failure) Unwrap() error {
	return f.cause
}

// Is matches on Code so wrapped copies still compare equal to the sentinels.
func (f *Failure) Is(target error) bool {
	t, ok := target.(*Failure)
	return ok && t.Code == f.Code
}

func (f *Failure) wrap(cause error) *Failure {
	return &Failure{Code: f.Code, Reason: f.Reason, cause: cause}
}

var (
	ErrSlotUnavailable = &Failure{Code: "slot_unavailable", Reason: "That slot was just taken by someone else."}
	ErrInvalidBooking  = &Failure{Code: "invalid_request", Reason: "The booking details are no longer valid."}
	ErrBookingFailed   = &Failure{Code: "booking_failed", Reason: "Booking failed. Please try again."}

	ErrAppointmentNotFound = &Failure{Code: "not_found", Reason: "Appointment not found."}
	ErrAlreadyCompleted    = &Failure{Code: "already_completed", Reason: "Cannot cancel a completed appointment."}
	ErrAlreadyCancelled    = &Failure{Code: "already_cancelled", Reason: "Appointment is already cancelled."}
	ErrMissedAppointment   = &Failure{Code: "no_show", Reason: "Cannot cancel a missed appointment."}
	ErrTooLateToCancel     = &Failure{Code: "too_late", Reason: "Appointments can only be cancelled at least 2 hours in advance."}
	ErrNotCancellable      = &Failure{Code: "not_cancellable", Reason: "This appointment can no longer be cancelled."}
	ErrCancelFailed        = &Failure{Code: "cancel_failed", Reason: "Failed to cancel. Try again."}
)

// Reason extracts the patient-facing text from err, falling back to def.
func Reason(err error, def string) string {
	var f *Failure
	if errors.As(err, &f) {
		return f.Reason
	}
	return def
}
