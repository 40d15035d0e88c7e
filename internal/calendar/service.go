package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"churchsite/internal/database"
	appLog "churchsite/internal/log"
	"churchsite/internal/metrics"
	"churchsite/internal/model"
)

// ErrProviderUnavailable wraps every provider failure seen by Refresh.
var ErrProviderUnavailable = errors.New("calendar provider unavailable")

// EventStore persists the provider snapshot.
type EventStore interface {
	ReplaceWindow(ctx context.Context, start, end time.Time, events []model.CachedEvent) error
	ListWindow(ctx context.Context, start, end time.Time) ([]model.CachedEvent, error)
	All(ctx context.Context) ([]model.CachedEvent, error)
	Get(ctx context.Context, providerID string) (*model.CachedEvent, error)
	Meta(ctx context.Context) (*model.CacheMeta, error)
	SaveMeta(ctx context.Context, meta *model.CacheMeta) error
}

// RecordStore holds the church's annotations of provider events.
type RecordStore interface {
	GetByProviderID(ctx context.Context, providerID string) (*model.CalendarEventRecord, error)
	Upsert(ctx context.Context, providerID string, init func() model.CalendarEventRecord, mutate func(*model.CalendarEventRecord)) (*model.CalendarEventRecord, bool, error)
	List(ctx context.Context) ([]model.CalendarEventRecord, error)
	ListSpecial(ctx context.Context, includeExternal bool) ([]model.CalendarEventRecord, error)
	SetExternalByIDs(ctx context.Context, ids []uint, isExternal bool) (int64, error)
}

type PatternStore interface {
	List(ctx context.Context) ([]model.RecurringPatternSummary, error)
	Rebuild(ctx context.Context, derived []model.RecurringPatternSummary) error
	SetExternal(ctx context.Context, title string, dayOfWeek int, timeOfDay string, location *string, isExternal bool) (int64, error)
}

type MinistryLookup interface {
	Get(ctx context.Context, id uint) (*model.Ministry, error)
	GetMany(ctx context.Context, ids []uint) (map[uint]model.Ministry, error)
}

type SpecialTypeLookup interface {
	Get(ctx context.Context, id uint) (*model.SpecialEventType, error)
	GetMany(ctx context.Context, ids []uint) (map[uint]model.SpecialEventType, error)
}

// Stores groups the persistence the service needs.
type Stores struct {
	Events       EventStore
	Records      RecordStore
	Patterns     PatternStore
	Ministries   MinistryLookup
	SpecialTypes SpecialTypeLookup
}

type Options struct {
	Location     *time.Location
	HorizonDays  int
	BackfillDays int
	// MaxAge is how old the cache may get before reads trigger a refresh.
	// Zero disables lazy refresh.
	MaxAge time.Duration
	// RetryAfter throttles lazy refreshes after a failed attempt.
	RetryAfter time.Duration
	Metrics    *metrics.Metrics
	Now        func() time.Time
}

// Service is the calendar cache, reconciliation and read model.
type Service struct {
	provider Provider
	stores   Stores
	loc      *time.Location
	horizon  int
	backfill int
	maxAge   time.Duration
	retry    time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewService(provider Provider, stores Stores, opts Options) *Service {
	s := &Service{
		provider: provider,
		stores:   stores,
		loc:      opts.Location,
		horizon:  opts.HorizonDays,
		backfill: opts.BackfillDays,
		maxAge:   opts.MaxAge,
		retry:    opts.RetryAfter,
		metrics:  opts.Metrics,
		now:      opts.Now,
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.horizon <= 0 {
		s.horizon = 120
	}
	if s.backfill < 0 {
		s.backfill = 0
	}
	if s.retry <= 0 {
		s.retry = 5 * time.Minute
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Location is the civil zone used for pattern keys.
func (s *Service) Location() *time.Location { return s.loc }

// RefreshResult describes a successful refresh.
type RefreshResult struct {
	Count       int       `json:"count"`
	Patterns    int       `json:"patterns"`
	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`
	RefreshedAt time.Time `json:"refreshedAt"`
}

// Refresh fetches [now-backfill, now+horizon) from the provider and
// replaces the cached window. On provider failure the cache is kept and
// the failure is recorded in the cache meta row.
func (s *Service) Refresh(ctx context.Context) (RefreshResult, error) {
	now := s.now().UTC()
	start := now.AddDate(0, 0, -s.backfill)
	end := now.AddDate(0, 0, s.horizon)

	meta, err := s.stores.Events.Meta(ctx)
	if errors.Is(err, database.ErrNotFound) {
		meta = &model.CacheMeta{}
	} else if err != nil {
		return RefreshResult{}, fmt.Errorf("load cache meta: %w", err)
	}
	meta.LastAttemptAt = now

	began := time.Now()
	events, err := s.provider.Fetch(ctx, start, end)
	if err != nil {
		s.metrics.ObserveRefresh("error", time.Since(began), 0)
		meta.LastError = err.Error()
		if serr := s.stores.Events.SaveMeta(ctx, meta); serr != nil {
			appLog.Error("calendar: save cache meta failed", serr)
		}
		appLog.Error("calendar: provider fetch failed", err, "provider", s.provider.Name())
		return RefreshResult{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	events = dedupe(events)

	if err := s.stores.Events.ReplaceWindow(ctx, start, end, events); err != nil {
		s.metrics.ObserveRefresh("error", time.Since(began), 0)
		return RefreshResult{}, fmt.Errorf("replace cached events: %w", err)
	}

	patterns := DerivePatterns(events, s.loc)
	if err := s.stores.Patterns.Rebuild(ctx, patterns); err != nil {
		s.metrics.Error("rebuild_patterns")
		appLog.Error("calendar: rebuild recurring patterns failed", err)
	}

	meta.RefreshedAt = now
	meta.WindowStart = start
	meta.WindowEnd = end
	meta.EventCount = len(events)
	meta.LastError = ""
	if err := s.stores.Events.SaveMeta(ctx, meta); err != nil {
		return RefreshResult{}, fmt.Errorf("save cache meta: %w", err)
	}

	s.metrics.ObserveRefresh("ok", time.Since(began), len(events))
	appLog.Info("calendar: refresh completed",
		"provider", s.provider.Name(),
		"event_count", len(events),
		"pattern_count", len(patterns),
	)
	return RefreshResult{
		Count:       len(events),
		Patterns:    len(patterns),
		WindowStart: start,
		WindowEnd:   end,
		RefreshedAt: now,
	}, nil
}

// EnsureFresh refreshes when the cache is older than MaxAge. Failed
// attempts are retried at most once per RetryAfter.
func (s *Service) EnsureFresh(ctx context.Context) error {
	if s.maxAge <= 0 {
		return nil
	}
	now := s.now()
	meta, err := s.stores.Events.Meta(ctx)
	switch {
	case errors.Is(err, database.ErrNotFound):
	case err != nil:
		return err
	case now.Sub(meta.RefreshedAt) < s.maxAge:
		return nil
	case meta.LastError != "" && now.Sub(meta.LastAttemptAt) < s.retry:
		return nil
	}
	_, err = s.Refresh(ctx)
	return err
}

// Meta exposes the refresh bookkeeping; nil before the first attempt.
func (s *Service) Meta(ctx context.Context) (*model.CacheMeta, error) {
	meta, err := s.stores.Events.Meta(ctx)
	if errors.Is(err, database.ErrNotFound) {
		return nil, nil
	}
	return meta, err
}

// Events returns enriched events starting in [start, end). A cache that
// has never been filled is replaced by SampleEvents.
func (s *Service) Events(ctx context.Context, start, end time.Time) ([]EnrichedEvent, error) {
	if !end.After(start) {
		return nil, model.Invalid("range", "end must be after start")
	}
	if err := s.EnsureFresh(ctx); err != nil {
		appLog.Warn("calendar: lazy refresh failed, serving cache", "cause", err.Error())
	}

	cached, err := s.stores.Events.ListWindow(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list cached events: %w", err)
	}
	if len(cached) == 0 {
		meta, err := s.Meta(ctx)
		if err != nil {
			return nil, fmt.Errorf("load cache meta: %w", err)
		}
		if meta == nil || meta.RefreshedAt.IsZero() {
			s.metrics.SampleFallback()
			cached = SampleEvents(start, end, s.loc)
		}
	}
	return s.enrich(ctx, cached)
}

// Patterns lists recurring slots seen in the latest refresh.
func (s *Service) Patterns(ctx context.Context) ([]model.RecurringPatternSummary, error) {
	return s.stores.Patterns.List(ctx)
}

func (s *Service) enrich(ctx context.Context, events []model.CachedEvent) ([]EnrichedEvent, error) {
	recs, err := s.stores.Records.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list calendar records: %w", err)
	}
	byID := make(map[string]model.CalendarEventRecord, len(recs))
	var ministryIDs, typeIDs []uint
	for _, r := range recs {
		if !r.IsActive() {
			continue
		}
		byID[r.ProviderEventID] = r
		if r.MinistryID != nil {
			ministryIDs = append(ministryIDs, *r.MinistryID)
		}
		if r.SpecialEventID != nil {
			typeIDs = append(typeIDs, *r.SpecialEventID)
		}
	}

	ministries, err := s.stores.Ministries.GetMany(ctx, ministryIDs)
	if err != nil {
		return nil, fmt.Errorf("load ministries: %w", err)
	}
	types, err := s.stores.SpecialTypes.GetMany(ctx, typeIDs)
	if err != nil {
		return nil, fmt.Errorf("load special event types: %w", err)
	}
	return Enrich(events, byID, ministries, types), nil
}

// dedupe keeps the last event for each provider id.
func dedupe(events []model.CachedEvent) []model.CachedEvent {
	idx := make(map[string]int, len(events))
	out := make([]model.CachedEvent, 0, len(events))
	for _, ev := range events {
		if ev.ProviderID == "" {
			continue
		}
		if i, ok := idx[ev.ProviderID]; ok {
			out[i] = ev
			continue
		}
		idx[ev.ProviderID] = len(out)
		out = append(out, ev)
	}
	return out
}

// DerivePatterns groups timed events by title, civil slot and location and
// keeps the groups seen at least twice.
func DerivePatterns(events []model.CachedEvent, loc *time.Location) []model.RecurringPatternSummary {
	type key struct {
		title string
		dow   int
		tod   string
		loc   string
	}
	groups := make(map[key]*model.RecurringPatternSummary)
	for _, ev := range events {
		title := strings.TrimSpace(ev.Title)
		if ev.AllDay || title == "" {
			continue
		}
		dow, tod := CivilSlot(ev.Start, loc)
		k := key{title, dow, tod, strings.TrimSpace(ev.Location)}
		p, ok := groups[k]
		if !ok {
			p = &model.RecurringPatternSummary{
				Title:      title,
				DayOfWeek:  dow,
				TimeOfDay:  tod,
				Location:   nullable(k.loc),
				FirstStart: ev.Start,
				LastStart:  ev.Start,
			}
			groups[k] = p
		}
		p.OccurrenceCount++
		if ev.Start.Before(p.FirstStart) {
			p.FirstStart = ev.Start
		}
		if ev.Start.After(p.LastStart) {
			p.LastStart = ev.Start
		}
	}

	out := make([]model.RecurringPatternSummary, 0, len(groups))
	for _, p := range groups {
		if p.OccurrenceCount >= 2 {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		if a.TimeOfDay != b.TimeOfDay {
			return a.TimeOfDay < b.TimeOfDay
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return derefString(a.Location) < derefString(b.Location)
	})
	return out
}

// nullable maps blank strings to nil.
func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
