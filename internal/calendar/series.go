package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	appLog "churchsite/internal/log"
	"churchsite/internal/model"
)

// SeriesCriteria selects a weekly slot. A nil or blank Location matches
// any location in the cache scan.
type SeriesCriteria struct {
	Title     string  `json:"title"`
	DayOfWeek int     `json:"dayOfWeek"`
	Time      string  `json:"time"`
	Location  *string `json:"location,omitempty"`
}

// SeriesResult reports an apply-to-series run. Applied counts cached
// events whose record now carries the flag.
type SeriesResult struct {
	OK              bool     `json:"ok"`
	Applied         int      `json:"applied"`
	RecordsUpdated  int64    `json:"recordsUpdated"`
	PatternsUpdated int64    `json:"patternsUpdated"`
	Errors          []string `json:"errors,omitempty"`
}

type seriesMatcher struct {
	title    string
	dow      int
	tod      string
	location *string
	loc      *time.Location
}

func (m seriesMatcher) match(title string, start time.Time, location string) bool {
	if strings.TrimSpace(title) != m.title {
		return false
	}
	dow, tod := CivilSlot(start, m.loc)
	if dow != m.dow || tod != m.tod {
		return false
	}
	return m.location == nil || strings.TrimSpace(location) == *m.location
}

func (s *Service) newMatcher(c SeriesCriteria) (seriesMatcher, error) {
	m := seriesMatcher{title: strings.TrimSpace(c.Title), dow: c.DayOfWeek, loc: s.loc}
	if m.title == "" {
		return m, model.Invalid("seriesCriteria.title", "is required")
	}
	if c.DayOfWeek < 0 || c.DayOfWeek > 6 {
		return m, model.Invalid("seriesCriteria.dayOfWeek", "must be between 0 and 6, got %d", c.DayOfWeek)
	}
	tod, err := ParseTimeOfDay(c.Time)
	if err != nil {
		return m, model.Invalid("seriesCriteria.time", "%v", err)
	}
	m.tod = tod
	if c.Location != nil {
		m.location = nullable(*c.Location)
	}
	return m, nil
}

// ApplyToSeries sets IsExternal on every cached event in the slot, on
// records whose own snapshot is in the slot, and on the matching pattern
// rows. Pattern rows are keyed by exact location, or by NULL location
// when none is given, so a location-less call flags events at every
// location but only location-less patterns.
func (s *Service) ApplyToSeries(ctx context.Context, c SeriesCriteria, isExternal bool) (SeriesResult, error) {
	m, err := s.newMatcher(c)
	if err != nil {
		return SeriesResult{}, err
	}

	all, err := s.stores.Events.All(ctx)
	if err != nil {
		return SeriesResult{}, fmt.Errorf("list cached events: %w", err)
	}

	res := SeriesResult{OK: true}
	touched := make(map[string]bool)
	for _, ev := range all {
		if !m.match(ev.Title, ev.Start, ev.Location) {
			continue
		}
		ev := ev
		_, _, err := s.stores.Records.Upsert(ctx, ev.ProviderID,
			func() model.CalendarEventRecord {
				return model.CalendarEventRecord{
					Title:     ev.Title,
					StartTime: ev.Start,
					EndTime:   ev.End,
					Location:  ev.Location,
				}
			},
			func(r *model.CalendarEventRecord) { r.IsExternal = isExternal },
		)
		if err != nil {
			appLog.Error("calendar: series upsert failed", err, "event_id", ev.ProviderID)
			res.Errors = append(res.Errors, fmt.Sprintf("event %s could not be updated", ev.ProviderID))
			continue
		}
		touched[ev.ProviderID] = true
		res.Applied++
	}

	// Records whose event has left the cache window still belong to the series.
	if recs, err := s.stores.Records.List(ctx); err != nil {
		appLog.Error("calendar: list records for series failed", err)
	} else {
		var ids []uint
		for _, r := range recs {
			if touched[r.ProviderEventID] || r.IsExternal == isExternal {
				continue
			}
			if m.match(r.Title, r.StartTime, r.Location) {
				ids = append(ids, r.ID)
			}
		}
		n, err := s.stores.Records.SetExternalByIDs(ctx, ids, isExternal)
		if err != nil {
			appLog.Error("calendar: series record update failed", err)
		}
		res.RecordsUpdated = n
	}

	n, err := s.stores.Patterns.SetExternal(ctx, m.title, m.dow, m.tod, m.location, isExternal)
	if err != nil {
		s.metrics.Error("series_patterns")
		appLog.Error("calendar: series pattern update failed", err, "title", m.title)
	}
	res.PatternsUpdated = n

	s.metrics.AddSeriesApplied(res.Applied)
	appLog.Info("calendar: applied series flag",
		"title", m.title,
		"day_of_week", m.dow,
		"time", m.tod,
		"is_external", isExternal,
		"applied", res.Applied,
		"patterns", res.PatternsUpdated,
	)
	return res, nil
}
