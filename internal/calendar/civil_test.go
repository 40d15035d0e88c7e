package calendar

import (
	"regexp"
	"testing"
	"time"
)

var hhmm = regexp.MustCompile(`^\d{2}:\d{2}$`)

func chicago(t *testing.T) *time.Location {
	t.Helper()
	loc, err := LoadLocation("")
	if err != nil {
		t.Fatalf("LoadLocation: %v", err)
	}
	return loc
}

func TestCivilSlotAcrossDST(t *testing.T) {
	loc := chicago(t)

	tests := []struct {
		name    string
		instant string
		wantDOW int
		wantTOD string
	}{
		// Wednesday 19:00 CST is 01:00Z Thursday.
		{"standard time", "2025-03-06T01:00:00Z", 3, "19:00"},
		// Same wall clock after spring forward is 00:00Z Thursday.
		{"daylight time", "2025-03-13T00:00:00Z", 3, "19:00"},
		// Sunday of the spring transition, after 02:00 local.
		{"transition day", "2025-03-09T15:30:00Z", 0, "10:30"},
		// Sunday of the fall transition.
		{"fall back", "2025-11-02T16:30:00Z", 0, "10:30"},
		{"late saturday", "2025-11-02T04:59:00Z", 6, "23:59"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := time.Parse(time.RFC3339, tt.instant)
			if err != nil {
				t.Fatal(err)
			}
			dow, tod := CivilSlot(ts, loc)
			if dow != tt.wantDOW || tod != tt.wantTOD {
				t.Errorf("CivilSlot(%s) = %d %s, want %d %s", tt.instant, dow, tod, tt.wantDOW, tt.wantTOD)
			}
		})
	}
}

func TestCivilSlotRange(t *testing.T) {
	loc := chicago(t)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 365*24; i += 7 {
		dow, tod := CivilSlot(start.Add(time.Duration(i)*time.Hour), loc)
		if dow < 0 || dow > 6 {
			t.Fatalf("day of week out of range: %d", dow)
		}
		if !hhmm.MatchString(tod) {
			t.Fatalf("time %q is not HH:MM", tod)
		}
	}
}

func TestParseTimeOfDay(t *testing.T) {
	good := map[string]string{"19:00": "19:00", "7:05": "07:05", " 00:00 ": "00:00"}
	for in, want := range good {
		got, err := ParseTimeOfDay(in)
		if err != nil || got != want {
			t.Errorf("ParseTimeOfDay(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, in := range []string{"", "19", "24:00", "12:60", "ab:cd", "123:00", "7:5"} {
		if _, err := ParseTimeOfDay(in); err == nil {
			t.Errorf("ParseTimeOfDay(%q) should fail", in)
		}
	}
}
