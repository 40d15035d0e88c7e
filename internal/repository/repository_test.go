package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"churchsite/internal/database"
	"churchsite/internal/database/testdb"
	"churchsite/internal/model"
)

var day0 = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

func cached(id string, offsetDays int) model.CachedEvent {
	st := day0.AddDate(0, 0, offsetDays).Add(18 * time.Hour)
	return model.CachedEvent{ProviderID: id, Title: id, Start: st, End: st.Add(time.Hour)}
}

func TestReplaceWindow(t *testing.T) {
	ctx := context.Background()
	repo := NewCachedEventRepository(testdb.New(t))

	first := []model.CachedEvent{cached("a", 1), cached("b", 2), cached("old", -10)}
	if err := repo.ReplaceWindow(ctx, day0.AddDate(0, 0, -20), day0.AddDate(0, 0, 30), first); err != nil {
		t.Fatalf("ReplaceWindow: %v", err)
	}

	// Second window starts at day0: "old" lies outside and survives, "b"
	// vanished from the provider, and "a" moved.
	moved := cached("a", 5)
	if err := repo.ReplaceWindow(ctx, day0, day0.AddDate(0, 0, 30), []model.CachedEvent{moved, cached("c", 3)}); err != nil {
		t.Fatalf("ReplaceWindow: %v", err)
	}

	all, err := repo.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	got := make([]string, 0, len(all))
	for _, ev := range all {
		got = append(got, ev.ProviderID)
	}
	want := []string{"old", "c", "a"}
	if len(got) != len(want) {
		t.Fatalf("cache = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("cache = %v, want %v", got, want)
		}
	}

	ev, err := repo.Get(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	if !ev.Start.Equal(moved.Start) {
		t.Errorf("a.Start = %s, want %s", ev.Start, moved.Start)
	}

	window, err := repo.ListWindow(ctx, day0, day0.AddDate(0, 0, 4))
	if err != nil {
		t.Fatal(err)
	}
	if len(window) != 1 || window[0].ProviderID != "c" {
		t.Errorf("unexpected window %+v", window)
	}
}

func TestMetaRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewCachedEventRepository(testdb.New(t))

	if _, err := repo.Meta(ctx); !errors.Is(err, database.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before first save, got %v", err)
	}
	meta := &model.CacheMeta{RefreshedAt: day0, EventCount: 3}
	if err := repo.SaveMeta(ctx, meta); err != nil {
		t.Fatal(err)
	}
	meta.LastError = "timeout"
	if err := repo.SaveMeta(ctx, meta); err != nil {
		t.Fatal(err)
	}
	got, err := repo.Meta(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.EventCount != 3 || got.LastError != "timeout" || !got.RefreshedAt.Equal(day0) {
		t.Errorf("unexpected meta %+v", got)
	}
}

func TestCalendarRecordUpsert(t *testing.T) {
	ctx := context.Background()
	repo := NewCalendarRecordRepository(testdb.New(t))

	init := func() model.CalendarEventRecord {
		return model.CalendarEventRecord{Title: "Choir Practice", StartTime: day0, EndTime: day0.Add(time.Hour)}
	}
	rec, created, err := repo.Upsert(ctx, "evt1", init, func(r *model.CalendarEventRecord) { r.Note = "first" })
	if err != nil || !created {
		t.Fatalf("Upsert: created=%v err=%v", created, err)
	}
	if rec.Status != model.StatusActive {
		t.Errorf("status = %q", rec.Status)
	}

	again, created, err := repo.Upsert(ctx, "evt1", init, func(r *model.CalendarEventRecord) { r.Note = "second" })
	if err != nil || created {
		t.Fatalf("second Upsert: created=%v err=%v", created, err)
	}
	if again.ID != rec.ID || again.Note != "second" || again.Title != "Choir Practice" {
		t.Errorf("unexpected record %+v", again)
	}

	all, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one record, got %d", len(all))
	}

	if _, err := repo.GetByProviderID(ctx, "nope"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetExternalByIDsAndListSpecial(t *testing.T) {
	ctx := context.Background()
	repo := NewCalendarRecordRepository(testdb.New(t))

	var ids []uint
	for _, id := range []string{"s1", "s2", "plain"} {
		special := id != "plain"
		rec, _, err := repo.Upsert(ctx, id, func() model.CalendarEventRecord {
			return model.CalendarEventRecord{Title: id, StartTime: day0, EndTime: day0}
		}, func(r *model.CalendarEventRecord) { r.IsSpecialEvent = special })
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, rec.ID)
	}

	n, err := repo.SetExternalByIDs(ctx, ids[:1], true)
	if err != nil || n != 1 {
		t.Fatalf("SetExternalByIDs: n=%d err=%v", n, err)
	}
	if n, err := repo.SetExternalByIDs(ctx, nil, true); err != nil || n != 0 {
		t.Fatalf("empty SetExternalByIDs: n=%d err=%v", n, err)
	}

	visible, err := repo.ListSpecial(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(visible) != 1 || visible[0].ProviderEventID != "s2" {
		t.Errorf("unexpected special list %+v", visible)
	}
	withExternal, err := repo.ListSpecial(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(withExternal) != 2 {
		t.Errorf("expected 2 special records with external, got %d", len(withExternal))
	}
}

func strPtr(s string) *string { return &s }

func TestPatternRebuildKeepsExternalFlag(t *testing.T) {
	ctx := context.Background()
	repo := NewPatternRepository(testdb.New(t))

	hall := model.RecurringPatternSummary{Title: "Bible Study", DayOfWeek: 3, TimeOfDay: "19:00", Location: strPtr("Hall"), OccurrenceCount: 4}
	prayer := model.RecurringPatternSummary{Title: "Prayer", DayOfWeek: 0, TimeOfDay: "08:00", OccurrenceCount: 2}
	if err := repo.Rebuild(ctx, []model.RecurringPatternSummary{hall, prayer}); err != nil {
		t.Fatal(err)
	}

	n, err := repo.SetExternal(ctx, "Bible Study", 3, "19:00", strPtr("Hall"), true)
	if err != nil || n != 1 {
		t.Fatalf("SetExternal: n=%d err=%v", n, err)
	}

	// Prayer has no location: only the IS NULL branch reaches it.
	if n, _ := repo.SetExternal(ctx, "Prayer", 0, "08:00", strPtr(""), true); n != 0 {
		t.Errorf("empty-string location should not match a NULL row, updated %d", n)
	}
	if n, _ := repo.SetExternal(ctx, "Prayer", 0, "08:00", nil, true); n != 1 {
		t.Errorf("nil location should match the NULL row, updated %d", n)
	}

	// The next refresh sees Bible Study again but no Prayer.
	hall.OccurrenceCount = 6
	if err := repo.Rebuild(ctx, []model.RecurringPatternSummary{hall}); err != nil {
		t.Fatal(err)
	}
	list, err := repo.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 listed pattern, got %d", len(list))
	}
	if !list[0].IsExternal || list[0].OccurrenceCount != 6 {
		t.Errorf("unexpected pattern %+v", list[0])
	}

	// Prayer returns and keeps its flag.
	if err := repo.Rebuild(ctx, []model.RecurringPatternSummary{hall, prayer}); err != nil {
		t.Fatal(err)
	}
	list, _ = repo.List(ctx)
	for _, p := range list {
		if !p.IsExternal {
			t.Errorf("pattern %s lost its external flag", p.Title)
		}
	}
}

func TestMemberAndFamilyLookups(t *testing.T) {
	ctx := context.Background()
	db := testdb.New(t)
	families := NewFamilyRepository(db)
	members := NewMemberRepository(db)

	fam := model.Family{FamilyName: "Smith"}
	if err := families.Create(ctx, &fam); err != nil {
		t.Fatal(err)
	}
	if err := families.Create(ctx, &model.Family{FamilyName: "Smith"}); !errors.Is(err, database.ErrConflict) {
		t.Errorf("expected ErrConflict for duplicate family, got %v", err)
	}
	if got, err := families.FindByName(ctx, "SMITH"); err != nil || got.ID != fam.ID {
		t.Errorf("FindByName: %+v %v", got, err)
	}

	ann := model.Member{FirstName: "Ann", LastName: "Smith", Email: "ann@example.com", FamilyID: &fam.ID}
	bob := model.Member{FirstName: "Bob", LastName: "Smith", FamilyID: &fam.ID}
	for _, m := range []*model.Member{&ann, &bob} {
		if err := members.Create(ctx, m); err != nil {
			t.Fatal(err)
		}
	}
	if err := members.SetStatus(ctx, bob.ID, model.StatusInactive); err != nil {
		t.Fatal(err)
	}
	if err := members.SetStatus(ctx, 999, model.StatusInactive); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if got, err := members.FindByEmail(ctx, "ANN@example.com"); err != nil || got.ID != ann.ID {
		t.Errorf("FindByEmail: %+v %v", got, err)
	}

	loaded, err := families.Get(ctx, fam.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Members) != 1 || loaded.Members[0].FirstName != "Ann" {
		t.Errorf("family should list only active members, got %+v", loaded.Members)
	}

	found, err := members.List(ctx, MemberFilter{Search: "ann"})
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 {
		t.Errorf("search returned %d members", len(found))
	}
	active, _ := members.List(ctx, MemberFilter{Status: model.StatusActive, FamilyID: fam.ID})
	if len(active) != 1 {
		t.Errorf("active filter returned %d members", len(active))
	}
}

func TestMinistryLeaders(t *testing.T) {
	ctx := context.Background()
	db := testdb.New(t)
	ministries := NewMinistryRepository(db)
	members := NewMemberRepository(db)

	m := model.Ministry{Name: "Choir"}
	if err := ministries.Create(ctx, &m); err != nil {
		t.Fatal(err)
	}
	ann := model.Member{FirstName: "Ann", LastName: "Smith"}
	if err := members.Create(ctx, &ann); err != nil {
		t.Fatal(err)
	}

	if err := ministries.AddLeader(ctx, m.ID, ann.ID, "leader"); err != nil {
		t.Fatal(err)
	}
	if err := ministries.AddLeader(ctx, m.ID, ann.ID, "director"); err != nil {
		t.Fatal(err)
	}
	got, err := ministries.Get(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Leaders) != 1 || got.Leaders[0].Role != "director" {
		t.Errorf("unexpected leaders %+v", got.Leaders)
	}

	byID, err := ministries.GetMany(ctx, []uint{m.ID, 42})
	if err != nil {
		t.Fatal(err)
	}
	if len(byID) != 1 || byID[m.ID].Name != "Choir" {
		t.Errorf("unexpected GetMany result %+v", byID)
	}
}
