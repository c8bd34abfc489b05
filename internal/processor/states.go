package processor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/vaidya/internal/appointment"
	"github.com/hackgods/vaidya/internal/audit"
	"github.com/hackgods/vaidya/internal/conversation"
	"github.com/hackgods/vaidya/internal/intent"
	"github.com/hackgods/vaidya/internal/patient"
	"github.com/hackgods/vaidya/internal/search"
)

// Registration

func (p *Processor) registrationName(ctx context.Context, t *turn) (string, error) {
	name := strings.TrimSpace(t.in.Body)
	if len([]rune(name)) < 2 {
		return p.Replies.AskName(), nil
	}
	cc := conversation.Context{Name: name}
	if err := p.Store.Update(ctx, t.conv, conversation.StateRegistrationAge, cc, nil); err != nil {
		return "", wrapUpdate(err, conversation.StateRegistrationAge)
	}
	return p.Replies.AskAge(name), nil
}

func (p *Processor) registrationAge(ctx context.Context, t *turn) (string, error) {
	age, ok := leadingInt(t.in.Body)
	if !ok || age < 1 || age > 120 {
		return p.Replies.InvalidAge(), nil
	}
	cc := t.conv.Context
	cc.Age = &age
	if err := p.Store.Update(ctx, t.conv, conversation.StateRegistrationLanguage, cc, nil); err != nil {
		return "", wrapUpdate(err, conversation.StateRegistrationLanguage)
	}
	return p.Replies.AskLanguage(), nil
}

func (p *Processor) registrationLanguage(ctx context.Context, t *turn) (string, error) {
	sel, ok := leadingInt(t.in.Body)
	if !ok || !inRange(sel, len(languages)) {
		return p.Replies.InvalidLanguage(), nil
	}
	cc := t.conv.Context
	cc.Language = languages[sel-1]
	if err := p.Store.Update(ctx, t.conv, conversation.StateRegistrationLocation, cc, nil); err != nil {
		return "", wrapUpdate(err, conversation.StateRegistrationLocation)
	}
	return p.Replies.AskLocation(), nil
}

func (p *Processor) registrationLocation(ctx context.Context, t *turn) (string, error) {
	cc := t.conv.Context
	nu := patient.NewUser{
		Phone:        t.in.From,
		Name:         cc.Name,
		Age:          cc.Age,
		Language:     cc.Language,
		WhatsAppName: t.in.ProfileName,
	}
	if nu.WhatsAppName == "" {
		nu.WhatsAppName = cc.Name
	}

	if t.in.Latitude != nil && t.in.Longitude != nil {
		nu.City = strings.TrimSpace(t.in.Body)
		nu.Latitude, nu.Longitude = t.in.Latitude, t.in.Longitude
	} else {
		place, err := p.Geocoder.Geocode(ctx, t.in.Body)
		if err != nil {
			p.Logger.Warn("geocoding failed", zap.Error(err))
			place = patient.Place{City: strings.TrimSpace(t.in.Body)}
		}
		nu.City, nu.Latitude, nu.Longitude = place.City, place.Latitude, place.Longitude
	}

	user, err := p.Patients.Create(ctx, nu)
	if errors.Is(err, patient.ErrUserExists) {
		user, err = p.Patients.FindByPhone(ctx, t.in.From)
	}
	if err != nil {
		return "", fmt.Errorf("register user: %w", err)
	}

	if err := p.Store.Update(ctx, t.conv, conversation.StateIdle, conversation.Context{}, &user.ID); err != nil {
		return "", wrapUpdate(err, conversation.StateIdle)
	}
	t.user = user

	audit.Log(ctx, p.Audit, p.Logger, audit.Event{
		ActorID:    &user.ID,
		ActorType:  audit.ActorPatient,
		Action:     EventUserRegistered,
		EntityType: "user",
		EntityID:   &user.ID,
		Metadata:   map[string]any{"city": nu.City, "language": nu.Language},
	})
	return p.Replies.RegistrationComplete(user.Name), nil
}

// Idle

func (p *Processor) idle(ctx context.Context, t *turn) (string, error) {
	switch t.intent.Kind {
	case intent.Greeting:
		return p.Replies.Greeting(), nil
	case intent.Help:
		return p.Replies.Help(), nil
	case intent.FindDoctor, intent.BookAppointment:
		return p.findDoctors(ctx, t)
	case intent.ViewRecords:
		return p.listRecords(ctx, t)
	case intent.CheckQueue, intent.CheckStatus:
		return p.queueStatus(ctx, t), nil
	case intent.CancelAppointment:
		return p.listCancellable(ctx, t)
	case intent.ViewAppointments:
		return p.Replies.UpcomingAppointments(p.Booking.UpcomingAppointments(ctx, t.user.ID)), nil
	}
	return p.Replies.Unclear(), nil
}

func (p *Processor) findDoctors(ctx context.Context, t *turn) (string, error) {
	params := conversation.SearchParams{
		Specialty: intent.Str(t.intent.Specialty),
		Location:  intent.Str(t.intent.Location),
		Hospital:  intent.Str(t.intent.HospitalPreference),
		Date:      search.ResolveDate(intent.Str(t.intent.Date), p.today()),
	}
	criteria := search.Criteria{
		Specialty: params.Specialty,
		Location:  params.Location,
		Hospital:  params.Hospital,
		Lat:       t.user.Latitude,
		Lng:       t.user.Longitude,
	}

	doctors := p.Search.Search(ctx, criteria, params.Date)
	if len(doctors) == 0 {
		return p.Replies.DoctorList(nil), nil
	}

	cc := conversation.Context{SearchParams: &params, SearchResults: doctors}
	if err := p.Store.Update(ctx, t.conv, conversation.StateSelectingDoctor, cc, nil); err != nil {
		return "", wrapUpdate(err, conversation.StateSelectingDoctor)
	}
	return p.Replies.DoctorList(doctors), nil
}

func (p *Processor) listRecords(ctx context.Context, t *turn) (string, error) {
	recs, err := p.Patients.RecentRecords(ctx, t.user.ID, recordListLimit)
	if err != nil {
		p.Logger.Warn("record listing failed", zap.Error(err))
		recs = nil
	}
	if len(recs) == 0 {
		return p.Replies.RecordList(nil), nil
	}

	cc := conversation.Context{Records: recs}
	if err := p.Store.Update(ctx, t.conv, conversation.StateSelectingRecord, cc, nil); err != nil {
		return "", wrapUpdate(err, conversation.StateSelectingRecord)
	}
	return p.Replies.RecordList(recs), nil
}

func (p *Processor) queueStatus(ctx context.Context, t *turn) string {
	appt := p.Booking.TodayAppointment(ctx, t.user.ID)
	if appt == nil {
		return p.Replies.NoAppointmentToday()
	}
	q := p.Booking.QueueStatus(ctx, appt.DoctorID, appt.Date)
	return p.Replies.QueueStatus(appt.Time, q.PatientsAhead(appt.ID), q)
}

func (p *Processor) listCancellable(ctx context.Context, t *turn) (string, error) {
	upcoming := p.Booking.UpcomingAppointments(ctx, t.user.ID)
	if len(upcoming) == 0 {
		return p.Replies.NoAppointmentsToCancel(), nil
	}

	options := make([]conversation.CancelOption, 0, len(upcoming))
	for _, a := range upcoming {
		options = append(options, conversation.CancelOption{
			AppointmentID: a.ID,
			Date:          a.Date,
			Time:          a.Time,
			DoctorName:    a.DoctorName(),
			HospitalName:  a.HospitalName(),
		})
	}

	cc := conversation.Context{CancelOptions: options}
	if err := p.Store.Update(ctx, t.conv, conversation.StateSelectingCancel, cc, nil); err != nil {
		return "", wrapUpdate(err, conversation.StateSelectingCancel)
	}
	return p.Replies.CancelList(options), nil
}

// Selections

func (p *Processor) selectingDoctor(ctx context.Context, t *turn) (string, error) {
	cc := t.conv.Context
	sel := selection(t.intent)
	if !inRange(sel, len(cc.SearchResults)) {
		return p.Replies.ChooseNumber(len(cc.SearchResults)), nil
	}
	doctor := cc.SearchResults[sel-1]

	date := cc.SearchParams.Date
	if date == "" {
		date = p.today().Format(appointment.DateLayout)
	}
	slots := p.Search.AvailableSlots(ctx, doctor.ID, date)
	if len(slots) == 0 {
		slots = p.probeAhead(ctx, doctor, date)
	}
	if len(slots) == 0 {
		if err := p.Store.Reset(ctx, t.conv); err != nil {
			return "", wrapUpdate(err, conversation.StateIdle)
		}
		return p.Replies.NoSlots(doctor.Name), nil
	}

	cc.SelectedDoctor = &doctor
	cc.AvailableSlots = slots
	if err := p.Store.Update(ctx, t.conv, conversation.StateSelectingSlot, cc, nil); err != nil {
		return "", wrapUpdate(err, conversation.StateSelectingSlot)
	}
	return p.Replies.SlotList(doctor, slots), nil
}

// probeAhead returns the slots of the first of the seven days after date that has any.
func (p *Processor) probeAhead(ctx context.Context, doctor search.Doctor, date string) []appointment.Slot {
	start, err := time.ParseInLocation(appointment.DateLayout, date, p.Location)
	if err != nil {
		start = p.today()
	}
	for i := 1; i <= probeDays; i++ {
		day := start.AddDate(0, 0, i).Format(appointment.DateLayout)
		if slots := p.Search.AvailableSlots(ctx, doctor.ID, day); len(slots) > 0 {
			return slots
		}
	}
	return nil
}

func (p *Processor) selectingSlot(ctx context.Context, t *turn) (string, error) {
	cc := t.conv.Context
	sel := selection(t.intent)
	if !inRange(sel, len(cc.AvailableSlots)) {
		return p.Replies.ChooseNumber(len(cc.AvailableSlots)), nil
	}
	slot := cc.AvailableSlots[sel-1]

	cc.SelectedSlot = &slot
	if err := p.Store.Update(ctx, t.conv, conversation.StateConfirmingBooking, cc, nil); err != nil {
		return "", wrapUpdate(err, conversation.StateConfirmingBooking)
	}
	return p.Replies.ConfirmBooking(*cc.SelectedDoctor, slot), nil
}

func (p *Processor) confirmingBooking(ctx context.Context, t *turn) (string, error) {
	switch t.intent.Kind {
	case intent.No:
		if err := p.Store.Reset(ctx, t.conv); err != nil {
			return "", wrapUpdate(err, conversation.StateIdle)
		}
		return p.Replies.CancelFlow(), nil
	case intent.Yes:
	default:
		return p.Replies.ConfirmYesNo(), nil
	}

	doctor, slot := *t.conv.Context.SelectedDoctor, *t.conv.Context.SelectedSlot
	res, bookErr := p.Booking.Book(ctx, appointment.BookRequest{
		UserID:   t.user.ID,
		DoctorID: doctor.ID,
		SlotID:   slot.ID,
		Date:     slot.Date,
		Time:     slot.Time,
		Source:   appointment.SourceWhatsApp,
	})

	if err := p.Store.Reset(ctx, t.conv); err != nil {
		return "", wrapUpdate(err, conversation.StateIdle)
	}
	if bookErr != nil {
		p.Logger.Info("booking failed", zap.Stringer("slot_id", slot.ID), zap.Error(bookErr))
		return p.Replies.BookingFailed(appointment.Reason(bookErr, "Slot may have just been taken.")), nil
	}
	return p.Replies.BookingSuccess(doctor, slot, res.ConfirmationCode), nil
}

func (p *Processor) selectingRecord(ctx context.Context, t *turn) (string, error) {
	recs := t.conv.Context.Records
	sel := selection(t.intent)
	if !inRange(sel, len(recs)) {
		return p.Replies.ChooseNumber(len(recs)), nil
	}
	rec := recs[sel-1]

	access, err := p.Records.Issue(ctx, t.user.ID, rec.ID)
	if err != nil {
		return "", fmt.Errorf("issue record access: %w", err)
	}
	if err := p.Store.Reset(ctx, t.conv); err != nil {
		return "", wrapUpdate(err, conversation.StateIdle)
	}
	ttl := access.ExpiresAt.Sub(p.now()).Round(time.Minute)
	return p.Replies.SecureRecordLink(rec.DisplayTitle(), access.Link, access.OTP, ttl), nil
}

func (p *Processor) selectingCancel(ctx context.Context, t *turn) (string, error) {
	options := t.conv.Context.CancelOptions
	sel := selection(t.intent)
	if !inRange(sel, len(options)) {
		return p.Replies.InvalidSelection(), nil
	}
	opt := options[sel-1]

	cancelErr := p.Booking.Cancel(ctx, opt.AppointmentID, appointment.ActorPatient, cancelReason)
	if err := p.Store.Reset(ctx, t.conv); err != nil {
		return "", wrapUpdate(err, conversation.StateIdle)
	}
	if cancelErr != nil {
		p.Logger.Info("cancellation failed", zap.Stringer("appointment_id", opt.AppointmentID), zap.Error(cancelErr))
		return p.Replies.CancellationFailed(appointment.Reason(cancelErr, "Unknown error")), nil
	}
	return p.Replies.CancellationSuccess(), nil
}
