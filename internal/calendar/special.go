package calendar

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"churchsite/internal/model"
)

const (
	ItemSeries     = "series"
	ItemIndividual = "individual"
)

type SpecialOccurrence struct {
	EventID  string    `json:"eventId"`
	Title    string    `json:"title"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
	Location string    `json:"location,omitempty"`
}

// SpecialItem is either one special event or a named series of them.
type SpecialItem struct {
	Type           string     `json:"type"`
	EventID        string     `json:"eventId,omitempty"`
	Title          string     `json:"title"`
	TypeName       string     `json:"typeName,omitempty"`
	SpecialEventID *uint      `json:"specialEventId,omitempty"`
	Note           string     `json:"note,omitempty"`
	ImageURL       string     `json:"imageUrl,omitempty"`
	ContactPerson  string     `json:"contactPerson,omitempty"`
	SeriesName     string     `json:"seriesName,omitempty"`
	Location       string     `json:"location,omitempty"`
	Start          time.Time  `json:"start"`
	End            time.Time  `json:"end"`
	EndsBy         *time.Time `json:"endsBy,omitempty"`
	Featured       bool       `json:"featuredOnHomepage"`

	FirstDate   *time.Time          `json:"firstDate,omitempty"`
	LastDate    *time.Time          `json:"lastDate,omitempty"`
	Occurrences []SpecialOccurrence `json:"occurrences,omitempty"`

	sortKey time.Time
}

type SpecialListing struct {
	Items           []SpecialItem `json:"items"`
	TotalSeries     int           `json:"totalSeries"`
	TotalIndividual int           `json:"totalIndividual"`
}

type SpecialQuery struct {
	IncludeExternal bool
	IncludePast     bool
}

// SpecialEvents lists active special-event records as series and
// individual items.
func (s *Service) SpecialEvents(ctx context.Context, q SpecialQuery) (SpecialListing, error) {
	recs, err := s.stores.Records.ListSpecial(ctx, q.IncludeExternal)
	if err != nil {
		return SpecialListing{}, fmt.Errorf("list special events: %w", err)
	}
	var typeIDs []uint
	for _, r := range recs {
		if r.SpecialEventID != nil {
			typeIDs = append(typeIDs, *r.SpecialEventID)
		}
	}
	types, err := s.stores.SpecialTypes.GetMany(ctx, typeIDs)
	if err != nil {
		return SpecialListing{}, fmt.Errorf("load special event types: %w", err)
	}
	return BuildSpecialListing(recs, types, s.now(), q.IncludePast), nil
}

// BuildSpecialListing groups records by series name. Unless includePast is
// set a record drops once its cutoff passes: EndsBy when set, otherwise
// its own start. The combined list is ordered by each item's last known
// date.
func BuildSpecialListing(recs []model.CalendarEventRecord, types map[uint]model.SpecialEventType, now time.Time, includePast bool) SpecialListing {
	var (
		items  []SpecialItem
		series = make(map[string][]model.CalendarEventRecord)
		order  []string
	)
	for _, r := range recs {
		if !r.IsActive() || !r.IsSpecialEvent {
			continue
		}
		cutoff := r.StartTime
		if r.EndsBy != nil {
			cutoff = *r.EndsBy
		}
		if !includePast && cutoff.Before(now) {
			continue
		}
		name := strings.TrimSpace(r.SeriesName)
		if name == "" {
			items = append(items, individualItem(r, types))
			continue
		}
		if _, ok := series[name]; !ok {
			order = append(order, name)
		}
		series[name] = append(series[name], r)
	}

	listing := SpecialListing{TotalIndividual: len(items), TotalSeries: len(order)}
	for _, name := range order {
		items = append(items, seriesItem(name, series[name], types))
	}

	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].sortKey.Equal(items[j].sortKey) {
			return items[i].sortKey.Before(items[j].sortKey)
		}
		return items[i].Title < items[j].Title
	})
	if items == nil {
		items = []SpecialItem{}
	}
	listing.Items = items
	return listing
}

func individualItem(r model.CalendarEventRecord, types map[uint]model.SpecialEventType) SpecialItem {
	it := SpecialItem{
		Type:           ItemIndividual,
		EventID:        r.ProviderEventID,
		Title:          firstNonEmpty(r.TitleOverride, r.Title),
		SpecialEventID: r.SpecialEventID,
		Note:           r.Note,
		ImageURL:       r.ImageURL,
		ContactPerson:  r.ContactPerson,
		Location:       r.Location,
		Start:          r.StartTime,
		End:            r.EndTime,
		EndsBy:         r.EndsBy,
		Featured:       r.FeaturedOnHomepage,
	}
	applyType(&it, types)
	it.sortKey = lastKnown(r.EndsBy, r.EndTime, r.StartTime)
	return it
}

func seriesItem(name string, recs []model.CalendarEventRecord, types map[uint]model.SpecialEventType) SpecialItem {
	sort.SliceStable(recs, func(i, j int) bool { return recs[i].StartTime.Before(recs[j].StartTime) })

	it := SpecialItem{Type: ItemSeries, Title: name, SeriesName: name}
	for _, r := range recs {
		it.Occurrences = append(it.Occurrences, SpecialOccurrence{
			EventID:  r.ProviderEventID,
			Title:    firstNonEmpty(r.TitleOverride, r.Title),
			Start:    r.StartTime,
			End:      r.EndTime,
			Location: r.Location,
		})
		// First non-empty value across the series wins.
		it.Note = firstNonEmpty(it.Note, r.Note)
		it.ImageURL = firstNonEmpty(it.ImageURL, r.ImageURL)
		it.ContactPerson = firstNonEmpty(it.ContactPerson, r.ContactPerson)
		it.Location = firstNonEmpty(it.Location, r.Location)
		if it.SpecialEventID == nil {
			it.SpecialEventID = r.SpecialEventID
		}
		if r.EndsBy != nil && (it.EndsBy == nil || r.EndsBy.After(*it.EndsBy)) {
			it.EndsBy = r.EndsBy
		}
		it.Featured = it.Featured || r.FeaturedOnHomepage
	}
	first, last := recs[0], recs[len(recs)-1]
	it.Start, it.End = first.StartTime, last.EndTime
	it.FirstDate = &first.StartTime
	it.LastDate = &last.StartTime
	applyType(&it, types)
	it.sortKey = lastKnown(it.EndsBy, last.EndTime, last.StartTime)
	return it
}

func applyType(it *SpecialItem, types map[uint]model.SpecialEventType) {
	if it.SpecialEventID == nil {
		return
	}
	t, ok := types[*it.SpecialEventID]
	if !ok {
		return
	}
	it.TypeName = t.Name
	it.ImageURL = firstNonEmpty(it.ImageURL, t.ImageURL)
	it.ContactPerson = firstNonEmpty(it.ContactPerson, t.ContactPerson)
}

func lastKnown(endsBy *time.Time, end, start time.Time) time.Time {
	if endsBy != nil {
		return *endsBy
	}
	if !end.IsZero() {
		return end
	}
	return start
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
