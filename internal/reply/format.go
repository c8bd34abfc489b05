package reply

import (
	"strconv"
	"strings"
	"time"

	"github.com/hackgods/vaidya/internal/appointment"
)

// Clock renders "15:04" as "3:04 PM". Unparseable input is returned as is.
func Clock(hhmm string) string {
	if len(hhmm) > 5 {
		hhmm = hhmm[:5]
	}
	t, err := time.Parse(appointment.TimeLayout, hhmm)
	if err != nil {
		return hhmm
	}
	return t.Format("3:04 PM")
}

// Day renders a calendar date as Today, Tomorrow or "Mon, Oct 20" relative to today.
func Day(date string, today time.Time) string {
	d, err := time.Parse(appointment.DateLayout, date)
	if err != nil {
		return date
	}
	switch date {
	case today.Format(appointment.DateLayout):
		return "Today"
	case today.AddDate(0, 0, 1).Format(appointment.DateLayout):
		return "Tomorrow"
	}
	return d.Format("Mon, Jan 2")
}

func money(v float64) string {
	return "₹" + strconv.FormatFloat(v, 'f', -1, 64)
}

func rating(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// keycap numbers list items the way WhatsApp users expect for reply-by-number.
func keycap(n int) string {
	switch {
	case n >= 0 && n <= 9:
		return strconv.Itoa(n) + "\uFE0F\u20E3"
	case n == 10:
		return "🔟"
	}
	return strconv.Itoa(n) + "."
}

func plural(n int, word string) string {
	if n == 1 {
		return strconv.Itoa(n) + " " + word
	}
	return strconv.Itoa(n) + " " + word + "s"
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
