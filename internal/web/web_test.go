package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"churchsite/internal/calendar"
	"churchsite/internal/config"
	"churchsite/internal/database/testdb"
	"churchsite/internal/importer"
	"churchsite/internal/model"
	"churchsite/internal/notify"
	"churchsite/internal/repository"
)

type stubProvider struct {
	events []model.CachedEvent
	err    error
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Fetch(ctx context.Context, start, end time.Time) ([]model.CachedEvent, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.events, nil
}

type testServer struct {
	srv        *httptest.Server
	provider   *stubProvider
	mailer     *notify.LogMailer
	ministries *repository.MinistryRepository
	members    *repository.MemberRepository
}

const (
	adminUser = "admin"
	adminPass = "s3cret"
)

func newTestServer(t *testing.T, auth *config.BasicAuthConfig) *testServer {
	t.Helper()
	db := testdb.New(t)
	loc, err := calendar.LoadLocation("")
	if err != nil {
		t.Fatal(err)
	}

	ts := &testServer{
		provider:   &stubProvider{},
		mailer:     &notify.LogMailer{},
		ministries: repository.NewMinistryRepository(db),
		members:    repository.NewMemberRepository(db),
	}
	families := repository.NewFamilyRepository(db)
	types := repository.NewSpecialEventTypeRepository(db)

	svc := calendar.NewService(ts.provider, calendar.Stores{
		Events:       repository.NewCachedEventRepository(db),
		Records:      repository.NewCalendarRecordRepository(db),
		Patterns:     repository.NewPatternRepository(db),
		Ministries:   ts.ministries,
		SpecialTypes: types,
	}, calendar.Options{Location: loc})

	notifier := notify.NewService(repository.NewContactMessageRepository(db), ts.ministries,
		ts.mailer, "web@church.test", "office@church.test", nil)

	s := NewServer(Deps{
		Calendar:     svc,
		Members:      ts.members,
		Families:     families,
		Ministries:   ts.ministries,
		SpecialTypes: types,
		Importer:     importer.New(ts.members, families, ts.ministries, nil),
		Notify:       notifier,
		BasicAuth:    auth,
	})
	ts.srv = httptest.NewServer(s.Handler())
	t.Cleanup(ts.srv.Close)
	return ts
}

func defaultAuth() *config.BasicAuthConfig {
	return &config.BasicAuthConfig{Username: adminUser, Password: adminPass}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, admin bool) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if admin {
		req.SetBasicAuth(adminUser, adminPass)
	}
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: status = %d, want %d (body %s)",
			resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, want, body)
	}
}

// weekly returns n weekly 19:00 local occurrences starting two days from
// now.
func weekly(t *testing.T, title string, n int) []model.CachedEvent {
	t.Helper()
	loc, err := calendar.LoadLocation("")
	if err != nil {
		t.Fatal(err)
	}
	y, m, d := time.Now().In(loc).AddDate(0, 0, 2).Date()
	out := make([]model.CachedEvent, 0, n)
	for i := 0; i < n; i++ {
		st := time.Date(y, m, d+7*i, 19, 0, 0, 0, loc).UTC()
		out = append(out, model.CachedEvent{
			ProviderID: "ev_" + st.Format("20060102"),
			Title:      title,
			Location:   "Fellowship Hall",
			Start:      st,
			End:        st.Add(time.Hour),
		})
	}
	return out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := ts.do(t, http.MethodGet, "/health", nil, false)
	expectStatus(t, resp, http.StatusOK)
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "OK" {
		t.Errorf("body = %q", body)
	}
}

func TestAdminRequiresAuth(t *testing.T) {
	ts := newTestServer(t, defaultAuth())

	resp := ts.do(t, http.MethodGet, "/api/admin/members", nil, false)
	expectStatus(t, resp, http.StatusUnauthorized)
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate header")
	}

	resp = ts.do(t, http.MethodGet, "/api/admin/members", nil, true)
	expectStatus(t, resp, http.StatusOK)

	// Public endpoints stay open.
	resp = ts.do(t, http.MethodGet, "/api/ministries", nil, false)
	expectStatus(t, resp, http.StatusOK)
}

func TestAdminRejectedWithoutConfiguredAuth(t *testing.T) {
	ts := newTestServer(t, nil)
	resp := ts.do(t, http.MethodGet, "/api/admin/members", nil, true)
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestEventsServesSamplesBeforeFirstRefresh(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.provider.err = context.DeadlineExceeded

	resp := ts.do(t, http.MethodGet, "/api/calendar/events?days=14", nil, false)
	expectStatus(t, resp, http.StatusOK)
	events := decode[[]calendar.EnrichedEvent](t, resp)
	if len(events) == 0 {
		t.Fatal("expected sample events")
	}
	for _, ev := range events {
		if !strings.HasPrefix(ev.ID, "sample:") {
			t.Errorf("unexpected event %s", ev.ID)
		}
	}
}

func TestRefreshAndApplyToSeries(t *testing.T) {
	ts := newTestServer(t, defaultAuth())
	ts.provider.events = weekly(t, "Bible Study", 4)

	resp := ts.do(t, http.MethodPost, "/api/admin/calendar/refresh", nil, true)
	expectStatus(t, resp, http.StatusOK)
	res := decode[calendar.RefreshResult](t, resp)
	if res.Count != 4 || res.Patterns != 1 {
		t.Fatalf("unexpected refresh result %+v", res)
	}

	resp = ts.do(t, http.MethodGet, "/api/calendar/patterns", nil, false)
	expectStatus(t, resp, http.StatusOK)
	patterns := decode[[]patternResponse](t, resp)
	if len(patterns) != 1 {
		t.Fatalf("expected 1 pattern, got %d", len(patterns))
	}
	p := patterns[0]
	if p.Location == nil || *p.Location != "Fellowship Hall" {
		t.Fatalf("unexpected pattern location %v", p.Location)
	}

	// Patterns match location exactly, so it must be sent.
	resp = ts.do(t, http.MethodPost, "/api/admin/calendar/events", map[string]any{
		"applyToSeries": true,
		"isExternal":    true,
		"seriesCriteria": map[string]any{
			"title":     p.Title,
			"dayOfWeek": p.DayOfWeek,
			"time":      p.Time,
			"location":  *p.Location,
		},
	}, true)
	expectStatus(t, resp, http.StatusOK)
	series := decode[calendar.SeriesResult](t, resp)
	if !series.OK || series.Applied != 4 || series.PatternsUpdated != 1 {
		t.Fatalf("unexpected series result %+v", series)
	}

	resp = ts.do(t, http.MethodGet, "/api/calendar/events?days=60", nil, false)
	expectStatus(t, resp, http.StatusOK)
	for _, ev := range decode[[]calendar.EnrichedEvent](t, resp) {
		if !ev.IsExternal {
			t.Errorf("event %s should be external", ev.ID)
		}
	}

	resp = ts.do(t, http.MethodGet, "/api/calendar/patterns", nil, false)
	if got := decode[[]patternResponse](t, resp); !got[0].IsExternal {
		t.Error("pattern should be external")
	}
}

func TestApplyToSeriesRequiresDayOfWeek(t *testing.T) {
	ts := newTestServer(t, defaultAuth())
	resp := ts.do(t, http.MethodPost, "/api/admin/calendar/events", map[string]any{
		"applyToSeries":  true,
		"seriesCriteria": map[string]any{"title": "Bible Study", "time": "19:00"},
	}, true)
	expectStatus(t, resp, http.StatusBadRequest)
	body := decode[map[string]string](t, resp)
	if !strings.Contains(body["error"], "dayOfWeek") {
		t.Errorf("error = %q", body["error"])
	}
}

func TestRefreshProviderFailureIsBadGateway(t *testing.T) {
	ts := newTestServer(t, defaultAuth())
	ts.provider.err = context.DeadlineExceeded
	resp := ts.do(t, http.MethodPost, "/api/admin/calendar/refresh", nil, true)
	expectStatus(t, resp, http.StatusBadGateway)

	resp = ts.do(t, http.MethodGet, "/api/admin/calendar/status", nil, true)
	expectStatus(t, resp, http.StatusOK)
	st := decode[calendarStatusResponse](t, resp)
	if st.Refreshed || st.LastError == "" {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestAnnotateCreatesThenUpdates(t *testing.T) {
	ts := newTestServer(t, defaultAuth())
	ts.provider.events = weekly(t, "Youth Night", 1)
	expectStatus(t, ts.do(t, http.MethodPost, "/api/admin/calendar/refresh", nil, true), http.StatusOK)
	eventID := ts.provider.events[0].ProviderID

	m := model.Ministry{Name: "Youth"}
	if err := ts.ministries.Create(context.Background(), &m); err != nil {
		t.Fatal(err)
	}

	body := map[string]any{"eventId": eventID, "ministryId": m.ID, "note": "Bring a friend"}
	resp := ts.do(t, http.MethodPost, "/api/admin/calendar/events", body, true)
	expectStatus(t, resp, http.StatusCreated)
	rec := decode[recordResponse](t, resp)
	if rec.Title != "Youth Night" || rec.MinistryID == nil || *rec.MinistryID != m.ID {
		t.Errorf("unexpected record %+v", rec)
	}

	body["note"] = "Pizza provided"
	resp = ts.do(t, http.MethodPost, "/api/admin/calendar/events", body, true)
	expectStatus(t, resp, http.StatusOK)

	resp = ts.do(t, http.MethodGet, "/api/admin/calendar/events/"+eventID, nil, true)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[recordResponse](t, resp); got.Note != "Pizza provided" || got.ID != rec.ID {
		t.Errorf("unexpected record after update %+v", got)
	}

	resp = ts.do(t, http.MethodGet, "/api/calendar/events", nil, false)
	events := decode[[]calendar.EnrichedEvent](t, resp)
	if len(events) != 1 || events[0].MinistryInfo == nil || events[0].MinistryInfo.Name != "Youth" {
		t.Fatalf("expected enriched event, got %+v", events)
	}

	resp = ts.do(t, http.MethodPost, "/api/admin/calendar/events",
		map[string]any{"eventId": eventID, "ministryId": 999}, true)
	expectStatus(t, resp, http.StatusBadRequest)

	resp = ts.do(t, http.MethodGet, "/api/admin/calendar/events/missing", nil, true)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestAnnotateEndsByDate(t *testing.T) {
	ts := newTestServer(t, defaultAuth())
	resp := ts.do(t, http.MethodPost, "/api/admin/calendar/events", map[string]any{
		"eventId":        "lent_1",
		"isSpecialEvent": true,
		"seriesName":     "Lenten Suppers",
		"endsBy":         "2025-04-13",
	}, true)
	expectStatus(t, resp, http.StatusCreated)
	rec := decode[recordResponse](t, resp)
	if rec.EndsBy == nil {
		t.Fatal("expected endsBy")
	}
	loc, _ := calendar.LoadLocation("")
	local := rec.EndsBy.In(loc)
	if local.Format(time.DateOnly) != "2025-04-13" || local.Hour() != 23 {
		t.Errorf("endsBy = %s, want end of 2025-04-13 local", local)
	}
}

func TestMemberCRUD(t *testing.T) {
	ts := newTestServer(t, defaultAuth())

	resp := ts.do(t, http.MethodPost, "/api/admin/members", map[string]any{"firstName": "Ann"}, true)
	expectStatus(t, resp, http.StatusBadRequest)

	resp = ts.do(t, http.MethodPost, "/api/admin/families", map[string]any{"familyName": "Smith"}, true)
	expectStatus(t, resp, http.StatusCreated)
	fam := decode[model.Family](t, resp)

	resp = ts.do(t, http.MethodPost, "/api/admin/families", map[string]any{"familyName": "Smith"}, true)
	expectStatus(t, resp, http.StatusBadRequest)

	resp = ts.do(t, http.MethodPost, "/api/admin/members", map[string]any{
		"firstName": "Ann", "lastName": "Smith", "email": "Ann@Example.com",
		"familyId": fam.ID, "birthday": "1980-02-03",
	}, true)
	expectStatus(t, resp, http.StatusCreated)
	m := decode[model.Member](t, resp)
	if m.Email != "ann@example.com" || m.Status != model.StatusActive || m.Birthday == nil {
		t.Errorf("unexpected member %+v", m)
	}

	resp = ts.do(t, http.MethodPut, "/api/admin/members/"+itoa(m.ID), map[string]any{
		"firstName": "Anne", "lastName": "Smith", "familyId": fam.ID,
	}, true)
	expectStatus(t, resp, http.StatusOK)

	resp = ts.do(t, http.MethodGet, "/api/admin/families/"+itoa(fam.ID), nil, true)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[model.Family](t, resp); len(got.Members) != 1 || got.Members[0].FirstName != "Anne" {
		t.Errorf("unexpected family members %+v", got.Members)
	}

	resp = ts.do(t, http.MethodDelete, "/api/admin/members/"+itoa(m.ID), nil, true)
	expectStatus(t, resp, http.StatusOK)

	resp = ts.do(t, http.MethodGet, "/api/admin/members?status=active", nil, true)
	if got := decode[[]model.Member](t, resp); len(got) != 0 {
		t.Errorf("expected no active members, got %d", len(got))
	}

	resp = ts.do(t, http.MethodGet, "/api/admin/members/999", nil, true)
	expectStatus(t, resp, http.StatusNotFound)
	resp = ts.do(t, http.MethodGet, "/api/admin/members/abc", nil, true)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestMinistriesPublicAndAdmin(t *testing.T) {
	ts := newTestServer(t, defaultAuth())

	resp := ts.do(t, http.MethodPost, "/api/admin/ministries", map[string]any{"name": "Choir", "contactEmail": "Choir@Church.test"}, true)
	expectStatus(t, resp, http.StatusCreated)
	choir := decode[model.Ministry](t, resp)
	resp = ts.do(t, http.MethodPost, "/api/admin/ministries", map[string]any{"name": "Food Pantry"}, true)
	expectStatus(t, resp, http.StatusCreated)
	pantry := decode[model.Ministry](t, resp)

	member := model.Member{FirstName: "Ann", LastName: "Smith"}
	if err := ts.members.Create(context.Background(), &member); err != nil {
		t.Fatal(err)
	}
	resp = ts.do(t, http.MethodPost, "/api/admin/ministries/"+itoa(choir.ID)+"/leaders", map[string]any{"memberId": member.ID}, true)
	expectStatus(t, resp, http.StatusOK)
	if got := decode[model.Ministry](t, resp); len(got.Leaders) != 1 || got.Leaders[0].Role != "leader" {
		t.Errorf("unexpected leaders %+v", got.Leaders)
	}

	resp = ts.do(t, http.MethodDelete, "/api/admin/ministries/"+itoa(pantry.ID), nil, true)
	expectStatus(t, resp, http.StatusOK)

	resp = ts.do(t, http.MethodGet, "/api/ministries", nil, false)
	if got := decode[[]publicMinistry](t, resp); len(got) != 1 || got[0].Name != "Choir" {
		t.Errorf("unexpected public ministries %+v", got)
	}
	resp = ts.do(t, http.MethodGet, "/api/ministries/"+itoa(pantry.ID), nil, false)
	expectStatus(t, resp, http.StatusNotFound)

	resp = ts.do(t, http.MethodGet, "/api/admin/ministries", nil, true)
	if got := decode[[]model.Ministry](t, resp); len(got) != 2 {
		t.Errorf("admin list should include inactive ministries, got %d", len(got))
	}
}

func TestContactAndInquiry(t *testing.T) {
	ts := newTestServer(t, nil)

	resp := ts.do(t, http.MethodPost, "/api/contact", map[string]any{
		"name": "Visitor", "email": "visitor@example.com", "message": "What time is service?",
	}, false)
	expectStatus(t, resp, http.StatusAccepted)
	ack := decode[messageAccepted](t, resp)
	if ack.ID == "" || ack.Delivery != model.DeliverySent {
		t.Errorf("unexpected ack %+v", ack)
	}

	resp = ts.do(t, http.MethodPost, "/api/contact", map[string]any{"name": "Visitor", "email": "nope"}, false)
	expectStatus(t, resp, http.StatusBadRequest)

	m := model.Ministry{Name: "Choir", ContactEmail: "choir@church.test"}
	if err := ts.ministries.Create(context.Background(), &m); err != nil {
		t.Fatal(err)
	}
	resp = ts.do(t, http.MethodPost, "/api/ministries/"+itoa(m.ID)+"/inquiry", map[string]any{
		"name": "Visitor", "email": "visitor@example.com", "message": "Can I join?",
	}, false)
	expectStatus(t, resp, http.StatusAccepted)

	if len(ts.mailer.Sent) != 2 || ts.mailer.Sent[1].To[0] != "choir@church.test" {
		t.Errorf("unexpected sent mail %+v", ts.mailer.Sent)
	}

	resp = ts.do(t, http.MethodPost, "/api/ministries/999/inquiry", map[string]any{
		"name": "Visitor", "email": "visitor@example.com", "message": "Hello",
	}, false)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestImportMembersUpload(t *testing.T) {
	ts := newTestServer(t, defaultAuth())

	csv := "First Name,Last Name,Email,Family\nann,smith,ann@example.com,Smith\nBob,,bob@example.com,Smith\n"
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "members.csv")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := io.WriteString(fw, csv); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req, _ := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/admin/import/members", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetBasicAuth(adminUser, adminPass)
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	res := decode[importer.MemberResult](t, resp)
	if res.Total != 2 || res.Created != 1 || res.FamiliesCreated != 1 || len(res.Errors) != 1 {
		t.Errorf("unexpected import result %+v", res)
	}

	resp = ts.do(t, http.MethodPost, "/api/admin/import/pets", nil, true)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestImportRequiresFile(t *testing.T) {
	ts := newTestServer(t, defaultAuth())
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("note", "no file")
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/admin/import/families", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetBasicAuth(adminUser, adminPass)
	resp, err := ts.srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestSpecialEventsListing(t *testing.T) {
	ts := newTestServer(t, defaultAuth())

	resp := ts.do(t, http.MethodPost, "/api/admin/special-event-types", map[string]any{"name": "Revival", "imageUrl": "https://img.test/revival.png"}, true)
	expectStatus(t, resp, http.StatusCreated)
	typ := decode[model.SpecialEventType](t, resp)

	start := time.Now().UTC().Add(72 * time.Hour).Truncate(time.Minute)
	resp = ts.do(t, http.MethodPost, "/api/admin/calendar/events", map[string]any{
		"eventId":        "revival_1",
		"isSpecialEvent": true,
		"specialEventId": typ.ID,
		"title":          "Fall Revival",
		"start":          start.Format(time.RFC3339),
		"end":            start.Add(2 * time.Hour).Format(time.RFC3339),
	}, true)
	expectStatus(t, resp, http.StatusCreated)

	resp = ts.do(t, http.MethodGet, "/api/special-events", nil, false)
	expectStatus(t, resp, http.StatusOK)
	listing := decode[calendar.SpecialListing](t, resp)
	if listing.TotalIndividual != 1 || len(listing.Items) != 1 {
		t.Fatalf("unexpected listing %+v", listing)
	}
	if it := listing.Items[0]; it.TypeName != "Revival" || it.ImageURL != "https://img.test/revival.png" {
		t.Errorf("unexpected item %+v", it)
	}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
