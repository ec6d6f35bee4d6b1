package dates

import (
	"fmt"
	"time"
)

// FormatRelativeTime renders a timestamp as a short relative string
// ("just now", "2h ago", "yesterday"), falling back to YYYY-MM-DD for
// older or future dates.
func FormatRelativeTime(t time.Time, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	t = t.Local()
	if t.After(now) {
		return t.Format("2006-01-02")
	}

	diff := now.Sub(t)
	days := int(diff.Hours() / 24)

	switch {
	case days == 0:
		hours := int(diff.Hours())
		if hours == 0 {
			minutes := int(diff.Minutes())
			if minutes < 5 {
				return "just now"
			}
			return fmt.Sprintf("%dm ago", minutes)
		}
		return fmt.Sprintf("%dh ago", hours)
	case days == 1:
		return "yesterday"
	case days < 7:
		return fmt.Sprintf("%dd ago", days)
	case days < 30:
		return fmt.Sprintf("%dw ago", days/7)
	default:
		return t.Format("2006-01-02")
	}
}

// DaysLeft returns the number of whole days until the deadline string
// (YYYY-MM-DD). Negative values mean overdue; zero means due today or
// an unparseable input.
func DaysLeft(deadline string, now time.Time) int {
	if len(deadline) < 10 {
		return 0
	}
	d, err := time.ParseInLocation("2006-01-02", deadline[:10], time.Local)
	if err != nil {
		return 0
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local)
	return int(d.Sub(today).Hours() / 24)
}

// FormatCountdown renders a deadline as a countdown string for display.
func FormatCountdown(deadline string, now time.Time) string {
	if deadline == "" {
		return ""
	}
	days := DaysLeft(deadline, now)
	switch {
	case days < 0:
		return "overdue"
	case days == 0:
		return "due today!"
	case days <= 3:
		return fmt.Sprintf("%dd left!", days)
	default:
		return fmt.Sprintf("%dd left", days)
	}
}
