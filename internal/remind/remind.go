// Package remind parses reminder requests such as "in 30 minutes buy milk"
// or "tomorrow 9am standup". Wall-clock times are read in the user's zone
// and the result is always in UTC.
package remind

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // zone lookups must not depend on the host's zoneinfo
)

// MaxAhead is the furthest a reminder may be scheduled.
const MaxAhead = 365 * 24 * time.Hour

var (
	// ErrNoTime is returned when the text does not start with a time.
	ErrNoTime = errors.New("no reminder time given")
	// ErrNoMessage is returned when nothing follows the time.
	ErrNoMessage = errors.New("nothing to remind about")
	// ErrInvalidTime is returned for times that do not exist, like 25:00.
	ErrInvalidTime = errors.New("invalid time")
	// ErrPast is returned for times that are not after now.
	ErrPast = errors.New("reminder time is in the past")
	// ErrTooFar is returned for times more than MaxAhead away.
	ErrTooFar = errors.New("reminder time is too far ahead")
	// ErrUnknownZone is returned by LoadZone for names it cannot resolve.
	ErrUnknownZone = errors.New("unknown timezone")
)

// Request is a parsed reminder.
type Request struct {
	At      time.Time // UTC
	Message string
}

var (
	relativeRe = regexp.MustCompile(`(?i)^(?:in\s+)?(\d{1,6})\s*(minutes?|mins?|hours?|hrs?|days?|m|h|d)\b`)
	isoDateRe  = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})\s+(\d{1,2}):(\d{2})\b`)
	usDateRe   = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})\s+(\d{1,2}):(\d{2})\b`)
	clockRe    = regexp.MustCompile(`(?i)^(tomorrow\s+)?(\d{1,2}):(\d{2})(?:\s*(am|pm)\b)?`)
	hourRe     = regexp.MustCompile(`(?i)^(tomorrow\s+)?(\d{1,2})\s*(am|pm)\b`)
)

// Parse reads a leading time expression from text and returns when to fire
// and the rest of the text as the message. Supported forms:
//
//	in 30 minutes | 30m | 2 hours | 1d
//	15:30 | 9am | 10:15pm | tomorrow 9am
//	2026-12-25 10:00 | 12/25 10:00
//
// A bare clock time that already passed today means tomorrow.
func Parse(text string, now time.Time, loc *time.Location) (*Request, error) {
	if loc == nil {
		loc = time.UTC
	}
	text = strings.TrimSpace(text)
	local := now.In(loc)

	at, rest, err := parseTime(text, local, loc)
	if err != nil {
		return nil, err
	}

	msg := strings.TrimSpace(rest)
	if msg == "" {
		return nil, ErrNoMessage
	}
	if !at.After(now) {
		return nil, ErrPast
	}
	if at.Sub(now) > MaxAhead {
		return nil, ErrTooFar
	}
	return &Request{At: at.UTC(), Message: msg}, nil
}

func parseTime(text string, local time.Time, loc *time.Location) (time.Time, string, error) {
	if m := relativeRe.FindStringSubmatch(text); m != nil {
		n, _ := strconv.Atoi(m[1])
		var unit time.Duration
		switch strings.ToLower(m[2])[0] {
		case 'm':
			unit = time.Minute
		case 'h':
			unit = time.Hour
		default:
			unit = 24 * time.Hour
		}
		if n == 0 {
			return time.Time{}, "", ErrPast
		}
		return local.Add(time.Duration(n) * unit), text[len(m[0]):], nil
	}

	if m := isoDateRe.FindStringSubmatch(text); m != nil {
		at, err := date(atoi(m[1]), atoi(m[2]), atoi(m[3]), atoi(m[4]), atoi(m[5]), loc)
		return at, text[len(m[0]):], err
	}

	if m := usDateRe.FindStringSubmatch(text); m != nil {
		at, err := date(local.Year(), atoi(m[1]), atoi(m[2]), atoi(m[3]), atoi(m[4]), loc)
		return at, text[len(m[0]):], err
	}

	if m := clockRe.FindStringSubmatch(text); m != nil {
		at, err := clock(local, m[1] != "", atoi(m[2]), atoi(m[3]), m[4], loc)
		return at, text[len(m[0]):], err
	}

	if m := hourRe.FindStringSubmatch(text); m != nil {
		at, err := clock(local, m[1] != "", atoi(m[2]), 0, m[3], loc)
		return at, text[len(m[0]):], err
	}

	return time.Time{}, "", ErrNoTime
}

// clock resolves a wall-clock time to today or tomorrow in loc.
func clock(local time.Time, tomorrow bool, hour, minute int, meridiem string, loc *time.Location) (time.Time, error) {
	switch strings.ToLower(meridiem) {
	case "am", "pm":
		if hour < 1 || hour > 12 {
			return time.Time{}, fmt.Errorf("%w: hour %d with %s", ErrInvalidTime, hour, meridiem)
		}
		hour %= 12
		if strings.EqualFold(meridiem, "pm") {
			hour += 12
		}
	}
	if hour > 23 || minute > 59 {
		return time.Time{}, fmt.Errorf("%w: %02d:%02d", ErrInvalidTime, hour, minute)
	}

	at := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if tomorrow || !at.After(local) {
		at = at.AddDate(0, 0, 1)
	}
	return at, nil
}

// date builds a calendar time, rejecting values time.Date would normalize.
func date(year, month, day, hour, minute int, loc *time.Location) (time.Time, error) {
	at := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	if at.Year() != year || int(at.Month()) != month || at.Day() != day || at.Hour() != hour || at.Minute() != minute {
		return time.Time{}, fmt.Errorf("%w: %04d-%02d-%02d %02d:%02d", ErrInvalidTime, year, month, day, hour, minute)
	}
	return at, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// LoadZone resolves an IANA zone name. Spaces become underscores, so
// "America/New York" works.
func LoadZone(name string) (*time.Location, error) {
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	if name == "" || strings.EqualFold(name, "local") {
		return nil, fmt.Errorf("%w: %q", ErrUnknownZone, name)
	}
	if strings.EqualFold(name, "utc") {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownZone, name)
	}
	return loc, nil
}

// Offset renders the zone offset at t, e.g. "UTC+05:30".
func Offset(t time.Time) string {
	return "UTC" + t.Format("-07:00")
}
