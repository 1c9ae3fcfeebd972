package services

import (
	"field-visit-service/internal/domain"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultDurationMinutes applies when no duration text is given at all.
	DefaultDurationMinutes = 120
	// MinDurationMinutes is the floor applied to every parsed duration.
	MinDurationMinutes = 30
	// MaxDurationMinutes caps parsed durations at one week.
	MaxDurationMinutes = 7 * minutesPerDay

	minutesPerDay = 24 * 60
	dateLayout    = "2006-01-02"
)

var (
	durationTerm = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(hours|hour|hrs|hr|h|minutes|minute|mins|min|m)`)
	bareNumber   = regexp.MustCompile(`^\d+(?:\.\d+)?$`)
	durationGlue = strings.NewReplacer(" ", "", ",", "", "and", "", "\t", "")
)

// ParseDurationMinutes parses free-form duration text into whole minutes.
//
// Accepted forms: "2 hours", "90m", "1.5h", "1h 30m", or a bare number of
// minutes. Empty text yields DefaultDurationMinutes. Results are floored at
// MinDurationMinutes; anything above MaxDurationMinutes is rejected.
func ParseDurationMinutes(text string) (int, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return DefaultDurationMinutes, nil
	}

	if bareNumber.MatchString(s) {
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, domain.NewValidationError("duration", "parse %q: %v", text, err)
		}
		return floorDuration(text, n)
	}

	matches := durationTerm.FindAllStringSubmatch(s, -1)
	if len(matches) == 0 {
		return 0, domain.NewValidationError("duration", "unrecognised duration %q", text)
	}

	rest := strings.ToLower(durationTerm.ReplaceAllString(s, ""))
	if durationGlue.Replace(rest) != "" {
		return 0, domain.NewValidationError("duration", "unrecognised duration %q", text)
	}

	total := 0.0
	for _, m := range matches {
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, domain.NewValidationError("duration", "parse %q: %v", m[0], err)
		}
		if strings.HasPrefix(strings.ToLower(m[2]), "h") {
			n *= 60
		}
		total += n
	}

	return floorDuration(text, total)
}

// DurationMinutesOr parses text and falls back to fallback when the text is
// malformed. Empty text still yields the default duration.
func DurationMinutesOr(text string, fallback int) int {
	n, err := ParseDurationMinutes(text)
	if err != nil {
		return fallback
	}
	return n
}

func floorDuration(text string, minutes float64) (int, error) {
	if minutes > MaxDurationMinutes {
		return 0, domain.NewValidationError("duration", "%q exceeds %d minutes", text, MaxDurationMinutes)
	}
	n := int(math.Round(minutes))
	if n < MinDurationMinutes {
		return MinDurationMinutes, nil
	}
	return n, nil
}

// ParseClock parses "HH:MM" (24h) or "h:MM AM/PM" into minutes after midnight.
func ParseClock(text string) (int, error) {
	s := strings.ToUpper(strings.TrimSpace(text))
	if s == "" {
		return 0, domain.NewValidationError("time", "time must be non-empty")
	}

	for _, layout := range []string{"15:04", "3:04PM", "3:04 PM", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Hour()*60 + t.Minute(), nil
		}
	}

	return 0, domain.NewValidationError("time", "unrecognised time %q", text)
}

// FormatClock renders minutes after midnight as "HH:MM", wrapping at 24h.
func FormatClock(minutes int) string {
	m := ((minutes % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// NormalizeDate accepts "YYYY-MM-DD" or an RFC 3339 timestamp and returns
// the calendar date as "YYYY-MM-DD".
func NormalizeDate(text string) (string, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return "", domain.NewValidationError("date", "date must be non-empty")
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t.Format(dateLayout), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(dateLayout), nil
	}
	return "", domain.NewValidationError("date", "unrecognised date %q", text)
}
