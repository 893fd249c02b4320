package calendar

import (
	"context"
	"errors"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Google mirrors events into Google Calendar using a service account.
type Google struct {
	events *gcal.EventsService
}

func NewGoogle(ctx context.Context, credentialsFile string) (*Google, error) {
	svc, err := gcal.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gcal.CalendarScope),
	)
	if err != nil {
		return nil, err
	}
	return &Google{events: svc.Events}, nil
}

func (g *Google) CreateEvent(ctx context.Context, calendarID string, ev Event) (string, error) {
	created, err := g.events.Insert(calendarID, googleEvent(ev)).
		SendUpdates("all").
		Context(ctx).
		Do()
	if err != nil {
		return "", err
	}
	return created.Id, nil
}

func (g *Google) UpdateEvent(ctx context.Context, calendarID, eventID string, ev Event) error {
	existing, err := g.events.Get(calendarID, eventID).Context(ctx).Do()
	if err != nil {
		return googleNotFound(err)
	}

	next := googleEvent(ev)
	existing.Summary = next.Summary
	existing.Description = next.Description
	existing.Start = next.Start
	existing.End = next.End

	_, err = g.events.Update(calendarID, eventID, existing).
		SendUpdates("all").
		Context(ctx).
		Do()
	return googleNotFound(err)
}

func (g *Google) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	err := g.events.Delete(calendarID, eventID).
		SendUpdates("all").
		Context(ctx).
		Do()
	return googleNotFound(err)
}

func googleEvent(ev Event) *gcal.Event {
	return &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Start:       &gcal.EventDateTime{DateTime: ev.Start.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:         &gcal.EventDateTime{DateTime: ev.End.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 30},
			},
			ForceSendFields: []string{"UseDefault"},
		},
	}
}

func googleNotFound(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) && (gErr.Code == http.StatusNotFound || gErr.Code == http.StatusGone) {
		return ErrEventNotFound
	}
	return err
}
