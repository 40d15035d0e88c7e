package calendar

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"churchsite/internal/ics"
	appLog "churchsite/internal/log"
	"churchsite/internal/model"
)

// Provider is a read-only external calendar.
type Provider interface {
	// Fetch returns every event occurrence starting in [start, end).
	Fetch(ctx context.Context, start, end time.Time) ([]model.CachedEvent, error)
	Name() string
}

// GoogleProvider reads a public Google calendar with an API key.
type GoogleProvider struct {
	svc        *gcal.Service
	calendarID string
	loc        *time.Location
}

// NewGoogleProvider builds a provider for calendarID. loc interprets
// all-day dates. Extra opts are appended after the API key.
func NewGoogleProvider(ctx context.Context, apiKey, calendarID string, loc *time.Location, opts ...option.ClientOption) (*GoogleProvider, error) {
	if calendarID == "" {
		return nil, errors.New("google calendar id is empty")
	}
	if apiKey != "" {
		opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	}
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &GoogleProvider{svc: svc, calendarID: calendarID, loc: loc}, nil
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) Fetch(ctx context.Context, start, end time.Time) ([]model.CachedEvent, error) {
	fetchedAt := time.Now().UTC()
	out := make([]model.CachedEvent, 0)

	call := p.svc.Events.List(p.calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		ShowDeleted(false).
		TimeMin(start.UTC().Format(time.RFC3339)).
		TimeMax(end.UTC().Format(time.RFC3339)).
		MaxResults(2500)

	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			ev, err := p.convert(item, fetchedAt)
			if err != nil {
				appLog.Warn("google calendar: skipping event", "id", item.Id, "cause", err.Error())
				continue
			}
			out = append(out, ev)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list google calendar events: %w", err)
	}

	appLog.Debug("google calendar fetch completed", "calendar", p.calendarID, "event_count", len(out))
	return out, nil
}

func (p *GoogleProvider) convert(item *gcal.Event, fetchedAt time.Time) (model.CachedEvent, error) {
	ev := model.CachedEvent{
		ProviderID:       item.Id,
		Title:            strings.TrimSpace(item.Summary),
		Description:      item.Description,
		Location:         strings.TrimSpace(item.Location),
		IsRecurring:      item.RecurringEventId != "",
		RecurringEventID: item.RecurringEventId,
		FetchedAt:        fetchedAt,
	}
	if item.Start == nil {
		return ev, errors.New("missing start")
	}

	var err error
	if item.Start.DateTime == "" {
		ev.AllDay = true
		if ev.Start, err = time.ParseInLocation("2006-01-02", item.Start.Date, p.loc); err != nil {
			return ev, err
		}
		ev.End = ev.Start.AddDate(0, 0, 1)
		if item.End != nil && item.End.Date != "" {
			if end, err := time.ParseInLocation("2006-01-02", item.End.Date, p.loc); err == nil && end.After(ev.Start) {
				ev.End = end
			}
		}
	} else {
		if ev.Start, err = time.Parse(time.RFC3339, item.Start.DateTime); err != nil {
			return ev, err
		}
		ev.End = ev.Start
		if item.End != nil && item.End.DateTime != "" {
			if end, err := time.Parse(time.RFC3339, item.End.DateTime); err == nil && !end.Before(ev.Start) {
				ev.End = end
			}
		}
	}
	ev.Start = ev.Start.UTC()
	ev.End = ev.End.UTC()
	return ev, nil
}

// ICSProvider expands one or more ICS subscriptions.
type ICSProvider struct {
	fetcher *ics.Fetcher
	sources []ics.Source
}

func NewICSProvider(fetcher *ics.Fetcher, sources []ics.Source) *ICSProvider {
	return &ICSProvider{fetcher: fetcher, sources: sources}
}

func (p *ICSProvider) Name() string { return "ics" }

// Fetch succeeds when at least one source produced a feed. Sources that
// failed without a cached copy are logged and left out.
func (p *ICSProvider) Fetch(ctx context.Context, start, end time.Time) ([]model.CachedEvent, error) {
	if len(p.sources) == 0 {
		return nil, errors.New("no ICS sources configured")
	}

	results, errs := p.fetcher.FetchAll(ctx, p.sources)
	if len(results) == 0 {
		return nil, errors.Join(errs...)
	}

	var parsed []ics.ParsedEvent
	for _, res := range results {
		evs, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			errs = append(errs, fmt.Errorf("parse %s: %w", res.Source.ID, err))
			continue
		}
		parsed = append(parsed, evs...)
	}
	if len(parsed) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	expanded, err := ics.ExpandOccurrences(parsed, ics.ExpandConfig{
		RangeStart: start,
		RangeEnd:   end,
	})
	if err != nil {
		return nil, err
	}
	if len(errs) > 0 {
		appLog.Warn("ics provider: partial fetch", "failed_sources", len(errs), "event_count", len(expanded.Events))
	}
	return expanded.Events, nil
}
