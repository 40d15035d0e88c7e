package calendar

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	// Embedded IANA database so America/Chicago resolves on minimal images.
	_ "time/tzdata"
)

// DefaultTimezone is the civil zone recurring-pattern keys are derived in.
const DefaultTimezone = "America/Chicago"

// LoadLocation resolves name, defaulting to DefaultTimezone when empty.
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// CivilSlot returns the weekday (Sunday=0) and "HH:MM" wall clock time of
// t as read in loc.
func CivilSlot(t time.Time, loc *time.Location) (int, string) {
	local := t.In(loc)
	return int(local.Weekday()), local.Format("15:04")
}

// ParseTimeOfDay validates and normalises an "H:MM" or "HH:MM" value.
func ParseTimeOfDay(s string) (string, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok || len(mm) != 2 || len(hh) == 0 || len(hh) > 2 {
		return "", fmt.Errorf("time %q is not HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return "", fmt.Errorf("time %q has an invalid hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return "", fmt.Errorf("time %q has invalid minutes", s)
	}
	return fmt.Sprintf("%02d:%02d", h, m), nil
}
