package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"churchsite/internal/calendar"
	"churchsite/internal/model"
)

const (
	defaultDays = 30
	maxDays     = 366
	maxBackfill = 60
)

// GET /api/calendar/events?days=N&backfill=N
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := clamp(parseIntDefault(q.Get("days"), defaultDays), 1, maxDays)
	backfill := clamp(parseIntDefault(q.Get("backfill"), 0), 0, maxBackfill)

	now := time.Now().UTC()
	start := now.AddDate(0, 0, -backfill)
	end := now.AddDate(0, 0, days)

	events, err := s.deps.Calendar.Events(r.Context(), start, end)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if events == nil {
		events = []calendar.EnrichedEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

type patternResponse struct {
	ID              uint      `json:"id"`
	Title           string    `json:"title"`
	DayOfWeek       int       `json:"dayOfWeek"`
	Time            string    `json:"time"`
	Location        *string   `json:"location"`
	IsExternal      bool      `json:"isExternal"`
	OccurrenceCount int       `json:"occurrenceCount"`
	FirstStart      time.Time `json:"firstStart"`
	LastStart       time.Time `json:"lastStart"`
}

// GET /api/calendar/patterns
func (s *Server) handlePatterns(w http.ResponseWriter, r *http.Request) {
	patterns, err := s.deps.Calendar.Patterns(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]patternResponse, 0, len(patterns))
	for _, p := range patterns {
		out = append(out, patternResponse{
			ID:              p.ID,
			Title:           p.Title,
			DayOfWeek:       p.DayOfWeek,
			Time:            p.TimeOfDay,
			Location:        p.Location,
			IsExternal:      p.IsExternal,
			OccurrenceCount: p.OccurrenceCount,
			FirstStart:      p.FirstStart,
			LastStart:       p.LastStart,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /api/special-events?includeExternal=true&includePast=true
func (s *Server) handleSpecialEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	listing, err := s.deps.Calendar.SpecialEvents(r.Context(), calendar.SpecialQuery{
		IncludeExternal: parseBool(q.Get("includeExternal")),
		IncludePast:     parseBool(q.Get("includePast")),
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if listing.Items == nil {
		listing.Items = []calendar.SpecialItem{}
	}
	writeJSON(w, http.StatusOK, listing)
}

type recordResponse struct {
	ID                 uint       `json:"id"`
	EventID            string     `json:"eventId"`
	Title              string     `json:"title"`
	StartTime          time.Time  `json:"startTime"`
	EndTime            time.Time  `json:"endTime"`
	Location           string     `json:"location"`
	MinistryID         *uint      `json:"ministryId"`
	SpecialEventID     *uint      `json:"specialEventId"`
	IsSpecialEvent     bool       `json:"isSpecialEvent"`
	IsExternal         bool       `json:"isExternal"`
	TitleOverride      string     `json:"titleOverride"`
	Note               string     `json:"note"`
	ImageURL           string     `json:"imageUrl"`
	ContactPerson      string     `json:"contactPerson"`
	SeriesName         string     `json:"seriesName"`
	EndsBy             *time.Time `json:"endsBy"`
	FeaturedOnHomepage bool       `json:"featuredOnHomepage"`
	IsActive           bool       `json:"isActive"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func newRecordResponse(rec *model.CalendarEventRecord) recordResponse {
	return recordResponse{
		ID:                 rec.ID,
		EventID:            rec.ProviderEventID,
		Title:              rec.Title,
		StartTime:          rec.StartTime,
		EndTime:            rec.EndTime,
		Location:           rec.Location,
		MinistryID:         rec.MinistryID,
		SpecialEventID:     rec.SpecialEventID,
		IsSpecialEvent:     rec.IsSpecialEvent,
		IsExternal:         rec.IsExternal,
		TitleOverride:      rec.TitleOverride,
		Note:               rec.Note,
		ImageURL:           rec.ImageURL,
		ContactPerson:      rec.ContactPerson,
		SeriesName:         rec.SeriesName,
		EndsBy:             rec.EndsBy,
		FeaturedOnHomepage: rec.FeaturedOnHomepage,
		IsActive:           rec.IsActive(),
		CreatedAt:          rec.CreatedAt,
		UpdatedAt:          rec.UpdatedAt,
	}
}

// GET /api/admin/calendar/events/{eventId...}
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.deps.Calendar.Record(r.Context(), r.PathValue("eventId"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newRecordResponse(rec))
}

// flexTime accepts RFC 3339 timestamps and bare YYYY-MM-DD dates.
type flexTime struct {
	t        time.Time
	dateOnly bool
}

func (f *flexTime) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		f.t = t
		return nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return errors.New("expected RFC 3339 timestamp or YYYY-MM-DD date")
	}
	f.t, f.dateOnly = t, true
	return nil
}

// at resolves the value. Bare dates mean the given civil day in loc,
// at its start or, with endOfDay, its last second.
func (f *flexTime) at(loc *time.Location, endOfDay bool) *time.Time {
	if f == nil || f.t.IsZero() {
		return nil
	}
	if !f.dateOnly {
		t := f.t.UTC()
		return &t
	}
	y, m, d := f.t.Date()
	t := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Second)
	}
	t = t.UTC()
	return &t
}

type seriesCriteriaRequest struct {
	Title     string  `json:"title"`
	DayOfWeek *int    `json:"dayOfWeek"`
	Time      string  `json:"time"`
	Location  *string `json:"location"`
}

type annotateRequest struct {
	EventID string `json:"eventId"`

	ApplyToSeries  bool                   `json:"applyToSeries"`
	SeriesCriteria *seriesCriteriaRequest `json:"seriesCriteria"`

	MinistryID         *uint     `json:"ministryId"`
	SpecialEventID     *uint     `json:"specialEventId"`
	IsSpecialEvent     bool      `json:"isSpecialEvent"`
	IsExternal         bool      `json:"isExternal"`
	TitleOverride      string    `json:"titleOverride"`
	Note               string    `json:"note"`
	ImageURL           string    `json:"imageUrl"`
	ContactPerson      string    `json:"contactPerson"`
	SeriesName         string    `json:"seriesName"`
	EndsBy             *flexTime `json:"endsBy"`
	FeaturedOnHomepage bool      `json:"featuredOnHomepage"`
	IsActive           *bool     `json:"isActive"`

	Title    string    `json:"title"`
	Start    *flexTime `json:"start"`
	End      *flexTime `json:"end"`
	Location string    `json:"location"`
}

// POST /api/admin/calendar/events
//
// Annotates one event, or with applyToSeries flips the external flag on
// every event of a weekly slot.
func (s *Server) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	var req annotateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, err)
		return
	}

	if req.ApplyToSeries {
		s.applyToSeries(w, r, req)
		return
	}

	rec, created, err := s.deps.Calendar.Annotate(r.Context(), calendar.Annotation{
		EventID:            req.EventID,
		MinistryID:         req.MinistryID,
		SpecialEventID:     req.SpecialEventID,
		IsSpecialEvent:     req.IsSpecialEvent,
		IsExternal:         req.IsExternal,
		TitleOverride:      req.TitleOverride,
		Note:               req.Note,
		ImageURL:           req.ImageURL,
		ContactPerson:      req.ContactPerson,
		SeriesName:         req.SeriesName,
		EndsBy:             req.EndsBy.at(s.loc, true),
		FeaturedOnHomepage: req.FeaturedOnHomepage,
		Active:             req.IsActive,
		Title:              req.Title,
		Start:              req.Start.at(s.loc, false),
		End:                req.End.at(s.loc, false),
		Location:           req.Location,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, newRecordResponse(rec))
}

func (s *Server) applyToSeries(w http.ResponseWriter, r *http.Request, req annotateRequest) {
	c := req.SeriesCriteria
	if c == nil {
		writeServiceError(w, r, model.Invalid("seriesCriteria", "is required when applyToSeries is set"))
		return
	}
	if c.DayOfWeek == nil {
		writeServiceError(w, r, model.Invalid("seriesCriteria.dayOfWeek", "is required"))
		return
	}
	res, err := s.deps.Calendar.ApplyToSeries(r.Context(), calendar.SeriesCriteria{
		Title:     c.Title,
		DayOfWeek: *c.DayOfWeek,
		Time:      c.Time,
		Location:  c.Location,
	}, req.IsExternal)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /api/admin/calendar/refresh
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Calendar.Refresh(r.Context())
	if err != nil {
		if errors.Is(err, calendar.ErrProviderUnavailable) {
			writeError(w, http.StatusBadGateway, "calendar provider unavailable")
			return
		}
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type calendarStatusResponse struct {
	Refreshed     bool       `json:"refreshed"`
	RefreshedAt   *time.Time `json:"refreshedAt,omitempty"`
	WindowStart   *time.Time `json:"windowStart,omitempty"`
	WindowEnd     *time.Time `json:"windowEnd,omitempty"`
	EventCount    int        `json:"eventCount"`
	LastAttemptAt *time.Time `json:"lastAttemptAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
	Timezone      string     `json:"timezone"`
}

// GET /api/admin/calendar/status
func (s *Server) handleCalendarStatus(w http.ResponseWriter, r *http.Request) {
	meta, err := s.deps.Calendar.Meta(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := calendarStatusResponse{Timezone: s.loc.String()}
	if meta != nil {
		out.Refreshed = !meta.RefreshedAt.IsZero()
		out.RefreshedAt = timePtr(meta.RefreshedAt)
		out.WindowStart = timePtr(meta.WindowStart)
		out.WindowEnd = timePtr(meta.WindowEnd)
		out.EventCount = meta.EventCount
		out.LastAttemptAt = timePtr(meta.LastAttemptAt)
		out.LastError = meta.LastError
	}
	writeJSON(w, http.StatusOK, out)
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
