package reply

import (
	"fmt"
	"strings"
	"time"

	"github.com/hackgods/vaidya/internal/appointment"
	"github.com/hackgods/vaidya/internal/conversation"
	"github.com/hackgods/vaidya/internal/patient"
	"github.com/hackgods/vaidya/internal/search"
)

// Generator renders every user-facing text. It does no I/O; the clock only decides
// Today/Tomorrow labels.
type Generator struct {
	appName      string
	supportEmail string
	loc          *time.Location
	now          func() time.Time
}

func New(appName, supportEmail string, loc *time.Location) *Generator {
	if loc == nil {
		loc = time.UTC
	}
	return &Generator{
		appName:      orDefault(appName, "MediConnect"),
		supportEmail: orDefault(supportEmail, "support@mediconnect.com"),
		loc:          loc,
		now:          time.Now,
	}
}

// SetClock overrides the time source.
func (g *Generator) SetClock(now func() time.Time) {
	g.now = now
}

func (g *Generator) day(date string) string {
	return Day(date, g.now().In(g.loc))
}

func (g *Generator) when(date, clock string) string {
	return g.day(date) + " at " + Clock(clock)
}

// Greeting and registration

func (g *Generator) Greeting() string {
	return fmt.Sprintf(`👋 Hi! I'm your %s health assistant.

I can help you:
🔍 Find doctors by specialty
📅 Book appointments
📋 View your medical records
🏥 Check queue status

Just tell me what you need! For example:
• "I need a cardiologist"
• "Book appointment with Dr. Sharma"
• "My records"
• "Help"`, g.appName)
}

func (g *Generator) WelcomeNewUser() string {
	return fmt.Sprintf(`👋 Welcome to %s!

I'll help you book doctor appointments across hospitals in your city.

Let's get you set up in 30 seconds.

*What's your name?*`, g.appName)
}

func (g *Generator) AskName() string {
	return "Please enter your full name."
}

func (g *Generator) AskAge(name string) string {
	return fmt.Sprintf("Nice to meet you, *%s*! 😊\n\nHow old are you? _(just the number, e.g. 28)_", name)
}

func (g *Generator) InvalidAge() string {
	return "Please enter a valid age (number only, e.g. 28)."
}

func (g *Generator) AskLanguage() string {
	return `Almost done!

Which language do you prefer?

1️⃣ English
2️⃣ हिंदी (Hindi)
3️⃣ తెలుగు (Telugu)
4️⃣ தமிழ் (Tamil)

Reply with 1, 2, 3, or 4`
}

func (g *Generator) InvalidLanguage() string {
	return "Please reply with 1, 2, 3, or 4."
}

func (g *Generator) AskLocation() string {
	return `Last step: share your location so I can find hospitals near you.

📍 *Option 1:* Use WhatsApp's location sharing button
📝 *Option 2:* Just type your area/city (e.g. "Banjara Hills, Hyderabad")`
}

func (g *Generator) RegistrationComplete(name string) string {
	return fmt.Sprintf(`✅ You're all set, *%s*!

You can now:
🔍 Say *"I need a cardiologist"* to find doctors
📅 Book appointments instantly
📋 Say *"my records"* to view medical records
🏥 Say *"queue status"* before your appointment

What would you like to do?`, orDefault(name, "there"))
}

// Search and booking

func (g *Generator) DoctorList(doctors []search.Doctor) string {
	if len(doctors) == 0 {
		return `😕 Sorry, I couldn't find any doctors matching your request.

Try:
• A different specialty
• Broader location
• "Help" for more options`
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found *%s*:\n\n", plural(len(doctors), "doctor"))
	for i, d := range doctors {
		promoted := ""
		if d.Promoted() {
			promoted = "⭐ "
		}
		slot := "\n   ❌ No slots available soon"
		if d.NextSlot != nil {
			slot = "\n   📅 Next: " + g.when(d.NextSlot.Date, d.NextSlot.Time)
		}
		fmt.Fprintf(&b, "*%d. Dr. %s*\n", i+1, d.Name)
		fmt.Fprintf(&b, "   %s%s | ⭐ %s\n", promoted, d.Specialization, rating(d.Rating))
		fmt.Fprintf(&b, "   🏥 %s\n", d.Hospital.Name)
		fmt.Fprintf(&b, "   💰 %s%s\n\n", money(d.Fee), slot)
	}
	fmt.Fprintf(&b, "Reply with a number (1-%d) to book", len(doctors))
	return b.String()
}

func (g *Generator) NoSlots(doctorName string) string {
	return fmt.Sprintf(`😕 Dr. %s has no available slots in the coming week.

Try another doctor, or ask for a specific date (e.g. "cardiologist on 2026-11-02").`, doctorName)
}

func (g *Generator) SlotList(d search.Doctor, slots []appointment.Slot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Dr. %s* - %s\n", d.Name, d.Specialization)
	fmt.Fprintf(&b, "🏥 %s\n", d.Hospital.Name)
	fmt.Fprintf(&b, "⭐ %s | 💰 %s\n\n", rating(d.Rating), money(d.Fee))
	b.WriteString("*Available slots:*\n\n")
	for i, s := range slots {
		fmt.Fprintf(&b, "%s %s\n", keycap(i+1), g.when(s.Date, s.Time))
	}
	b.WriteString("\nReply with slot number")
	return b.String()
}

func (g *Generator) ChooseNumber(max int) string {
	return fmt.Sprintf("Please reply with a number between 1 and %d.", max)
}

func (g *Generator) ConfirmBooking(d search.Doctor, s appointment.Slot) string {
	return "*Confirm your booking?*\n\n" +
		fmt.Sprintf("👨‍⚕️ Dr. %s\n", d.Name) +
		fmt.Sprintf("🏥 %s\n", d.Hospital.Name) +
		fmt.Sprintf("📅 %s\n", g.when(s.Date, s.Time)) +
		fmt.Sprintf("💰 %s\n\n", money(d.Fee)) +
		"Reply *YES* to confirm or *NO* to cancel"
}

func (g *Generator) ConfirmYesNo() string {
	return "Please reply *YES* to confirm or *NO* to cancel."
}

func (g *Generator) BookingSuccess(d search.Doctor, s appointment.Slot, code string) string {
	address := ""
	if d.Hospital.Address != nil {
		address = *d.Hospital.Address
	} else if d.Hospital.City != nil {
		address = *d.Hospital.City
	}
	return "✅ *Appointment Confirmed!*\n\n" +
		"📋 *Your Details:*\n" +
		fmt.Sprintf("👨‍⚕️ Dr. %s - %s\n", d.Name, d.Specialization) +
		fmt.Sprintf("🏥 %s\n", d.Hospital.Name) +
		fmt.Sprintf("📍 %s\n", address) +
		fmt.Sprintf("📅 %s\n", g.when(s.Date, s.Time)) +
		fmt.Sprintf("💰 Fee: %s\n", money(d.Fee)) +
		fmt.Sprintf("🔖 Code: *%s*\n\n", code) +
		"I'll remind you 1 day before and 1 hour before your appointment.\n\n" +
		`Reply *"queue status"* on the day to check your position.`
}

func (g *Generator) BookingFailed(reason string) string {
	return fmt.Sprintf("❌ Booking failed: %s\n\nPlease try again or choose a different slot.", reason)
}

// Records

func (g *Generator) RecordList(records []patient.RecordSummary) string {
	if len(records) == 0 {
		return "📋 You don't have any medical records yet.\n\nYour records will appear here after your first consultation."
	}
	var b strings.Builder
	b.WriteString("📋 *Your Medical Records:*\n\n")
	for i, r := range records {
		fmt.Fprintf(&b, "%s %s\n", keycap(i+1), r.DisplayTitle())
		fmt.Fprintf(&b, "   📅 %s | 🏥 %s\n\n", r.CreatedAt.In(g.loc).Format("2 Jan 2006"), r.HospitalName)
	}
	b.WriteString("Reply with number to view securely 🔒")
	return b.String()
}

func (g *Generator) SecureRecordLink(title, link, otp string, ttl time.Duration) string {
	return "🔒 *Secure Access*\n\n" +
		fmt.Sprintf("To view your *%s*:\n\n", title) +
		fmt.Sprintf("👆 Tap this link:\n%s\n\n", link) +
		fmt.Sprintf("🔑 Your OTP: *%s*\n\n", otp) +
		fmt.Sprintf("⏰ Expires in %s", plural(int(ttl/time.Minute), "minute"))
}

// Queue

func (g *Generator) QueueStatus(appointmentTime string, ahead int, q appointment.QueueStatus) string {
	status := "✅ Roughly on schedule"
	if q.CurrentDelayMinutes > 15 {
		status = fmt.Sprintf("⚠️ Doctor is running ~%d mins late", q.CurrentDelayMinutes)
	}
	return "📊 *Queue Status*\n\n" +
		fmt.Sprintf("Your appointment: %s\n\n", Clock(appointmentTime)) +
		fmt.Sprintf("├─ 👥 %s ahead\n", plural(ahead, "patient")) +
		fmt.Sprintf("├─ ⏱️ Est. wait: %d mins\n", q.EstimatedWaitMinutes) +
		fmt.Sprintf("└─ %s", status)
}

func (g *Generator) NoAppointmentToday() string {
	return "📅 You don't have any appointments today.\n\nSay *\"I need a doctor\"* to book one!"
}

// Appointments and cancellation

func (g *Generator) UpcomingAppointments(list []appointment.AppointmentDetail) string {
	if len(list) == 0 {
		return "📅 No upcoming appointments."
	}
	var b strings.Builder
	b.WriteString("📅 *Your Upcoming Appointments:*\n\n")
	for i, a := range list {
		fmt.Fprintf(&b, "%d. %s\n", i+1, g.when(a.Date, a.Time))
		fmt.Fprintf(&b, "   Dr. %s @ %s\n\n", orDefault(a.DoctorName(), "-"), orDefault(a.HospitalName(), "-"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (g *Generator) NoAppointmentsToCancel() string {
	return "📅 You have no upcoming appointments to cancel."
}

func (g *Generator) CancelList(options []conversation.CancelOption) string {
	var b strings.Builder
	b.WriteString("📅 *Your Upcoming Appointments:*\n\n")
	for i, o := range options {
		fmt.Fprintf(&b, "%s %s\n", keycap(i+1), g.when(o.Date, o.Time))
		fmt.Fprintf(&b, "   Dr. %s\n\n", orDefault(o.DoctorName, "Unknown"))
	}
	b.WriteString("Reply with number to cancel, or *MENU* to go back")
	return b.String()
}

func (g *Generator) InvalidSelection() string {
	return "Invalid selection. Please reply with a valid number."
}

func (g *Generator) CancellationSuccess() string {
	return "✅ *Appointment Cancelled*\n\nYour appointment has been cancelled and the slot is now free.\n\nNeed to rebook? Just say *\"I need a doctor\"*"
}

func (g *Generator) CancellationFailed(reason string) string {
	return "❌ Could not cancel: " + reason
}

// Generic

func (g *Generator) Help() string {
	return "❓ *How can I help?*\n\n" +
		"📚 *Quick commands:*\n" +
		"• *\"I need a [specialty]\"*: find doctors\n" +
		"• *\"My appointments\"*: view upcoming\n" +
		"• *\"Cancel appointment\"*: cancel a booking\n" +
		"• *\"My records\"*: medical records\n" +
		"• *\"Queue status\"*: today's queue\n\n" +
		"📞 *Human support:*\n" +
		"Email: " + g.supportEmail
}

func (g *Generator) Unclear() string {
	return "🤔 I didn't quite understand that.\n\nTry saying:\n• \"I need a cardiologist\"\n• \"Book appointment\"\n• \"My records\"\n• \"Help\""
}

func (g *Generator) GenericError() string {
	return "😕 Something went wrong on my end. Please try again in a moment.\n\nType *\"help\"* if the issue persists."
}

func (g *Generator) CancelFlow() string {
	return "↩️ Okay, cancelled. Back to the main menu.\n\nWhat would you like to do? Type *\"help\"* to see options."
}

// Reminders

func (g *Generator) Reminder24h(a appointment.AppointmentDetail) string {
	return fmt.Sprintf("⏰ *Reminder*: you have an appointment *tomorrow* at *%s*\n\n", Clock(a.Time)) +
		fmt.Sprintf("👨‍⚕️ Dr. %s\n", orDefault(a.DoctorName(), "Doctor")) +
		fmt.Sprintf("🏥 %s\n\n", orDefault(a.HospitalName(), "Hospital")) +
		"Reply *\"cancel appointment\"* if you need to cancel."
}

func (g *Generator) Reminder1h(a appointment.AppointmentDetail) string {
	return "🔔 *1-hour reminder*: your appointment is in about an hour!\n\n" +
		fmt.Sprintf("👨‍⚕️ Dr. %s at %s\n", orDefault(a.DoctorName(), "Doctor"), Clock(a.Time)) +
		fmt.Sprintf("🏥 %s\n", orDefault(a.HospitalName(), "Hospital")) +
		fmt.Sprintf("📍 %s\n\n", a.HospitalAddress()) +
		`Reply *"queue status"* to check your position in the queue.`
}
