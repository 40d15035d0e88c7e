package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"churchsite/internal/database"
	"churchsite/internal/model"
)

// Annotation is a full replacement of the church fields on one event.
// Title, Start, End and Location seed the snapshot when the event is not
// in the cache.
type Annotation struct {
	EventID            string
	MinistryID         *uint
	SpecialEventID     *uint
	IsSpecialEvent     bool
	IsExternal         bool
	TitleOverride      string
	Note               string
	ImageURL           string
	ContactPerson      string
	SeriesName         string
	EndsBy             *time.Time
	FeaturedOnHomepage bool
	Active             *bool

	Title    string
	Start    *time.Time
	End      *time.Time
	Location string
}

// Annotate creates or updates the record for a.EventID. The bool reports
// whether the record was created.
func (s *Service) Annotate(ctx context.Context, a Annotation) (*model.CalendarEventRecord, bool, error) {
	a.EventID = strings.TrimSpace(a.EventID)
	if a.EventID == "" {
		return nil, false, model.Invalid("eventId", "is required")
	}
	if a.MinistryID != nil {
		if _, err := s.stores.Ministries.Get(ctx, *a.MinistryID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return nil, false, model.Invalid("ministryId", "unknown ministry %d", *a.MinistryID)
			}
			return nil, false, fmt.Errorf("load ministry: %w", err)
		}
	}
	if a.SpecialEventID != nil {
		if _, err := s.stores.SpecialTypes.Get(ctx, *a.SpecialEventID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return nil, false, model.Invalid("specialEventId", "unknown special event type %d", *a.SpecialEventID)
			}
			return nil, false, fmt.Errorf("load special event type: %w", err)
		}
	}
	if a.Start != nil && a.End != nil && a.End.Before(*a.Start) {
		return nil, false, model.Invalid("end", "must not be before start")
	}

	cached, err := s.stores.Events.Get(ctx, a.EventID)
	if errors.Is(err, database.ErrNotFound) {
		cached = nil
	} else if err != nil {
		return nil, false, fmt.Errorf("load cached event: %w", err)
	}

	now := s.now().UTC()
	init := func() model.CalendarEventRecord {
		r := model.CalendarEventRecord{
			Title:     strings.TrimSpace(a.Title),
			Location:  strings.TrimSpace(a.Location),
			StartTime: now,
			EndTime:   now,
		}
		if a.Start != nil {
			r.StartTime = a.Start.UTC()
			r.EndTime = r.StartTime
		}
		if a.End != nil {
			r.EndTime = a.End.UTC()
		}
		return r
	}

	rec, created, err := s.stores.Records.Upsert(ctx, a.EventID, init, func(r *model.CalendarEventRecord) {
		if cached != nil {
			r.Title = cached.Title
			r.StartTime = cached.Start
			r.EndTime = cached.End
			r.Location = cached.Location
		}
		r.MinistryID = a.MinistryID
		r.SpecialEventID = a.SpecialEventID
		r.IsSpecialEvent = a.IsSpecialEvent
		r.IsExternal = a.IsExternal
		r.TitleOverride = strings.TrimSpace(a.TitleOverride)
		r.Note = strings.TrimSpace(a.Note)
		r.ImageURL = strings.TrimSpace(a.ImageURL)
		r.ContactPerson = strings.TrimSpace(a.ContactPerson)
		r.SeriesName = strings.TrimSpace(a.SeriesName)
		r.EndsBy = nil
		if a.EndsBy != nil {
			t := a.EndsBy.UTC()
			r.EndsBy = &t
		}
		r.FeaturedOnHomepage = a.FeaturedOnHomepage
		if a.Active != nil {
			if *a.Active {
				r.Status = model.StatusActive
			} else {
				r.Status = model.StatusInactive
			}
		}
	})
	if err != nil {
		return nil, false, fmt.Errorf("upsert calendar record: %w", err)
	}
	return rec, created, nil
}

// Record returns the annotation for eventID, or database.ErrNotFound.
func (s *Service) Record(ctx context.Context, eventID string) (*model.CalendarEventRecord, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return nil, model.Invalid("eventId", "is required")
	}
	return s.stores.Records.GetByProviderID(ctx, eventID)
}
