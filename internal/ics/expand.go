package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "churchsite/internal/log"
	"churchsite/internal/model"
)

const (
	defaultMaxOccurrencesPerEvent = 2000

	instanceLayout = "20060102T150405Z"
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// RangeStart / RangeEnd define the time window for occurrences.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single series. Zero uses the default.
	MaxOccurrencesPerEvent int

	// FetchedAt is stamped on every produced event.
	FetchedAt time.Time
}

// ExpandResult wraps the expanded occurrences.
type ExpandResult struct {
	Events []model.CachedEvent
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
}

// ExpandOccurrences turns parsed VEVENTs into one CachedEvent per concrete
// occurrence inside the configured range. It applies RRULE, EXDATE,
// RECURRENCE-ID overrides and STATUS:CANCELLED. Times are stored in UTC.
//
// Provider ids are "<source>:<uid>" for single events and
// "<source>:<uid>_<UTC start>" for occurrences of a series, mirroring the
// instance ids calendar services hand out.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}
	if cfg.FetchedAt.IsZero() {
		cfg.FetchedAt = time.Now()
	}

	// Group base events and overrides by source+UID.
	type seriesKey struct{ source, uid string }
	bases := make(map[seriesKey][]ParsedEvent)
	overrides := make(map[seriesKey][]ParsedEvent)
	var order []seriesKey

	for _, ev := range events {
		k := seriesKey{ev.Source.ID, ev.UID}
		if ev.IsOverride && ev.Recurrence != nil {
			overrides[k] = append(overrides[k], ev)
			continue
		}
		if _, seen := bases[k]; !seen {
			order = append(order, k)
		}
		bases[k] = append(bases[k], ev)
	}

	out := make([]model.CachedEvent, 0)
	for _, k := range order {
		truncated := false
		for _, ev := range bases[k] {
			if ev.Cancelled() {
				continue
			}
			var occ []model.CachedEvent
			var hitCap bool
			if ev.RawRRule == "" {
				occ = expandSingleEvent(ev, cfg)
			} else {
				occ, hitCap = expandRecurringEvent(ev, overrides[k], cfg)
			}
			truncated = truncated || hitCap
			out = append(out, occ...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, k.uid)
			appLog.Warn("expand: truncated occurrences for UID due to cap",
				"uid", k.uid,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	result.Events = out
	return result, nil
}

func expandSingleEvent(ev ParsedEvent, cfg ExpandConfig) []model.CachedEvent {
	if !inRange(ev.Start, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}
	ce := makeCachedEvent(ev, ev.Start, ev.End, cfg.FetchedAt)
	ce.ProviderID = ev.Source.ID + ":" + ev.UID
	return []model.CachedEvent{ce}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.CachedEvent, bool) {
	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	loc := ev.Start.Location()
	occTimes := set.Between(cfg.RangeStart.In(loc), cfg.RangeEnd.In(loc), true)
	// Between includes both bounds; the window is half-open.
	for len(occTimes) > 0 && !occTimes[len(occTimes)-1].Before(cfg.RangeEnd) {
		occTimes = occTimes[:len(occTimes)-1]
	}

	hitCap := false
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	seriesID := ev.Source.ID + ":" + ev.UID
	dur := ev.End.Sub(ev.Start)
	out := make([]model.CachedEvent, 0, len(occTimes))
	used := make(map[int]bool)

	emit := func(src ParsedEvent, instanceID string, start, end time.Time) {
		ce := makeCachedEvent(src, start, end, cfg.FetchedAt)
		ce.ProviderID = instanceID
		ce.IsRecurring = true
		ce.RecurringEventID = seriesID
		out = append(out, ce)
	}

	for _, occStart := range occTimes {
		occEnd := occStart.Add(dur)
		if ev.AllDay {
			day := time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occStart, occEnd = day, day.AddDate(0, 0, 1)
		}

		instanceID := seriesID + "_" + occStart.UTC().Format(instanceLayout)

		src := ev
		if i, ok := findOverrideForStart(overrides, occStart); ok {
			used[i] = true
			o := overrides[i]
			if o.Cancelled() || !inRange(o.Start, cfg.RangeStart, cfg.RangeEnd) {
				continue
			}
			src, occStart, occEnd = o, o.Start, o.End
		}
		emit(src, instanceID, occStart, occEnd)
	}

	// Overrides moved into the window from an occurrence outside it.
	for i, o := range overrides {
		if used[i] || o.Cancelled() || !inRange(o.Start, cfg.RangeStart, cfg.RangeEnd) {
			continue
		}
		emit(o, seriesID+"_"+o.Recurrence.UTC().Format(instanceLayout), o.Start, o.End)
	}

	return out, hitCap
}

// findOverrideForStart returns the index of the override whose RECURRENCE-ID
// equals start.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (int, bool) {
	for i, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.Equal(start) {
			return i, true
		}
	}
	return -1, false
}

func makeCachedEvent(ev ParsedEvent, start, end time.Time, fetchedAt time.Time) model.CachedEvent {
	return model.CachedEvent{
		Title:       ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		AllDay:      ev.AllDay,
		Start:       start.UTC(),
		End:         end.UTC(),
		FetchedAt:   fetchedAt.UTC(),
	}
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
