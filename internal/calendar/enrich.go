package calendar

import (
	"time"

	"churchsite/internal/model"
)

// MinistryConnection is the stored annotation behind an event.
type MinistryConnection struct {
	RecordID       uint  `json:"recordId"`
	MinistryID     *uint `json:"ministryId,omitempty"`
	SpecialEventID *uint `json:"specialEventId,omitempty"`
	IsSpecialEvent bool  `json:"isSpecialEvent"`
}

type MinistryInfo struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	ImageURL     string `json:"imageUrl,omitempty"`
	ContactName  string `json:"contactName,omitempty"`
	ContactEmail string `json:"contactEmail,omitempty"`
	MeetingInfo  string `json:"meetingInfo,omitempty"`
}

// SpecialEventInfo carries the record's special-event fields, with the
// type's image and contact filling in blanks.
type SpecialEventInfo struct {
	TypeID        *uint      `json:"typeId,omitempty"`
	TypeName      string     `json:"typeName,omitempty"`
	Title         string     `json:"title,omitempty"`
	Note          string     `json:"note,omitempty"`
	ImageURL      string     `json:"imageUrl,omitempty"`
	ContactPerson string     `json:"contactPerson,omitempty"`
	SeriesName    string     `json:"seriesName,omitempty"`
	EndsBy        *time.Time `json:"endsBy,omitempty"`
}

func (i *SpecialEventInfo) hasDisplayFields() bool {
	return i.Title != "" || i.Note != "" || i.ImageURL != "" || i.ContactPerson != ""
}

// Display is what a page shows for an event after enrichment.
type Display struct {
	Title    string `json:"title"`
	Note     string `json:"note,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
	Contact  string `json:"contact,omitempty"`
}

type EnrichedEvent struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description,omitempty"`
	Location         string    `json:"location,omitempty"`
	Start            time.Time `json:"start"`
	End              time.Time `json:"end"`
	AllDay           bool      `json:"allDay"`
	IsRecurring      bool      `json:"isRecurring"`
	RecurringEventID string    `json:"recurringEventId,omitempty"`

	IsExternal bool    `json:"isExternal"`
	Featured   bool    `json:"featuredOnHomepage"`
	Display    Display `json:"display"`

	MinistryConnection *MinistryConnection `json:"ministryConnection,omitempty"`
	MinistryInfo       *MinistryInfo       `json:"ministryInfo,omitempty"`
	SpecialEventInfo   *SpecialEventInfo   `json:"specialEventInfo,omitempty"`
}

// Enrich joins events with their records by provider id. Only explicit
// links are followed; events without an active record pass through.
func Enrich(
	events []model.CachedEvent,
	records map[string]model.CalendarEventRecord,
	ministries map[uint]model.Ministry,
	types map[uint]model.SpecialEventType,
) []EnrichedEvent {
	out := make([]EnrichedEvent, 0, len(events))
	for _, ev := range events {
		e := EnrichedEvent{
			ID:               ev.ProviderID,
			Title:            ev.Title,
			Description:      ev.Description,
			Location:         ev.Location,
			Start:            ev.Start,
			End:              ev.End,
			AllDay:           ev.AllDay,
			IsRecurring:      ev.IsRecurring,
			RecurringEventID: ev.RecurringEventID,
			Display:          Display{Title: ev.Title},
		}

		rec, ok := records[ev.ProviderID]
		if !ok || !rec.IsActive() {
			out = append(out, e)
			continue
		}

		e.IsExternal = rec.IsExternal
		e.Featured = rec.FeaturedOnHomepage
		e.MinistryConnection = &MinistryConnection{
			RecordID:       rec.ID,
			MinistryID:     rec.MinistryID,
			SpecialEventID: rec.SpecialEventID,
			IsSpecialEvent: rec.IsSpecialEvent,
		}

		if rec.MinistryID != nil {
			if m, ok := ministries[*rec.MinistryID]; ok && m.Status != model.StatusInactive {
				e.MinistryInfo = &MinistryInfo{
					ID:           m.ID,
					Name:         m.Name,
					ImageURL:     m.ImageURL,
					ContactName:  m.ContactName,
					ContactEmail: m.ContactEmail,
					MeetingInfo:  m.MeetingInfo,
				}
				e.Display.ImageURL = m.ImageURL
				e.Display.Contact = m.ContactName
			}
		}

		if rec.IsSpecialEvent {
			info := specialInfo(rec, types)
			e.SpecialEventInfo = info
			if info.hasDisplayFields() {
				overlay(&e.Display, info)
			}
		}
		out = append(out, e)
	}
	return out
}

func specialInfo(rec model.CalendarEventRecord, types map[uint]model.SpecialEventType) *SpecialEventInfo {
	info := &SpecialEventInfo{
		TypeID:        rec.SpecialEventID,
		Title:         rec.TitleOverride,
		Note:          rec.Note,
		ImageURL:      rec.ImageURL,
		ContactPerson: rec.ContactPerson,
		SeriesName:    rec.SeriesName,
		EndsBy:        rec.EndsBy,
	}
	if rec.SpecialEventID != nil {
		if t, ok := types[*rec.SpecialEventID]; ok {
			info.TypeName = t.Name
			if info.ImageURL == "" {
				info.ImageURL = t.ImageURL
			}
			if info.ContactPerson == "" {
				info.ContactPerson = t.ContactPerson
			}
		}
	}
	return info
}

func overlay(d *Display, info *SpecialEventInfo) {
	if info.Title != "" {
		d.Title = info.Title
	}
	if info.Note != "" {
		d.Note = info.Note
	}
	if info.ImageURL != "" {
		d.ImageURL = info.ImageURL
	}
	if info.ContactPerson != "" {
		d.Contact = info.ContactPerson
	}
}
