package calendar

import (
	"fmt"
	"sort"
	"time"

	"churchsite/internal/model"
)

type sampleSlot struct {
	key      string
	title    string
	location string
	weekday  time.Weekday
	hour     int
	minute   int
	length   time.Duration
}

var sampleSchedule = []sampleSlot{
	{"worship", "Sunday Worship", "Sanctuary", time.Sunday, 10, 30, 90 * time.Minute},
	{"sunday-school", "Sunday School", "Education Wing", time.Sunday, 9, 15, time.Hour},
	{"bible-study", "Bible Study", "Fellowship Hall", time.Wednesday, 19, 0, 90 * time.Minute},
	{"youth", "Youth Group", "Youth Room", time.Friday, 18, 30, 2 * time.Hour},
}

// SampleEvents returns placeholder weekly events starting in [start, end).
// They stand in for the provider when no refresh has ever succeeded.
func SampleEvents(start, end time.Time, loc *time.Location) []model.CachedEvent {
	out := make([]model.CachedEvent, 0)
	first := time.Date(start.In(loc).Year(), start.In(loc).Month(), start.In(loc).Day(), 0, 0, 0, 0, loc)
	for day := first; day.Before(end); day = day.AddDate(0, 0, 1) {
		for _, s := range sampleSchedule {
			if day.Weekday() != s.weekday {
				continue
			}
			st := time.Date(day.Year(), day.Month(), day.Day(), s.hour, s.minute, 0, 0, loc)
			if st.Before(start) || !st.Before(end) {
				continue
			}
			out = append(out, model.CachedEvent{
				ProviderID:       fmt.Sprintf("sample:%s_%s", s.key, st.UTC().Format("20060102T150405Z")),
				Title:            s.title,
				Location:         s.location,
				Start:            st.UTC(),
				End:              st.Add(s.length).UTC(),
				IsRecurring:      true,
				RecurringEventID: "sample:" + s.key,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}
