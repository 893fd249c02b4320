// Package roster loads providers, their availability and clients from a YAML
// file and applies them through store.Admin.
package roster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"caresched/backend/internal/domain"
	"caresched/backend/internal/store"
)

type Roster struct {
	Providers []Provider `yaml:"providers"`
	Clients   []Client   `yaml:"clients"`
}

type Provider struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Email        string   `yaml:"email"`
	Specialty    string   `yaml:"specialty"`
	Active       *bool    `yaml:"active"`
	CalendarID   string   `yaml:"calendar_id"`
	Availability []Window `yaml:"availability"`
}

// Window is a weekly rule when Weekday is set and a dated override when Date
// is set. An override with Closed and no times blocks the whole day.
type Window struct {
	Weekday string `yaml:"weekday"`
	Date    string `yaml:"date"`
	Start   string `yaml:"start"`
	End     string `yaml:"end"`
	Closed  bool   `yaml:"closed"`
}

type Client struct {
	ID             string                 `yaml:"id"`
	Name           string                 `yaml:"name"`
	Email          string                 `yaml:"email"`
	Phone          string                 `yaml:"phone"`
	DateOfBirth    string                 `yaml:"date_of_birth"`
	Active         *bool                  `yaml:"active"`
	MedicalHistory *domain.MedicalHistory `yaml:"medical_history"`
	History        []domain.HistoryEntry  `yaml:"history"`
}

// Decode parses r strictly: unknown keys are errors.
func Decode(r io.Reader) (Roster, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var out Roster
	if err := dec.Decode(&out); err != nil {
		if errors.Is(err, io.EOF) {
			return Roster{}, nil
		}
		return Roster{}, fmt.Errorf("decode roster: %w", err)
	}
	return out, nil
}

type Result struct {
	ProvidersCreated int
	ProvidersUpdated int
	ClientsCreated   int
	ClientsSkipped   int
	Windows          int
}

// Apply validates every entry before writing any of them. Providers with an
// id that already exists get their settings and availability replaced;
// existing clients are left untouched.
func Apply(ctx context.Context, admin store.Admin, r Roster, log *slog.Logger) (Result, error) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "roster"))

	providers := make([]domain.Provider, 0, len(r.Providers))
	windows := make([][]domain.AvailabilityWindow, 0, len(r.Providers))
	for i, p := range r.Providers {
		dp, ws, err := p.toDomain()
		if err != nil {
			return Result{}, fmt.Errorf("providers[%d]: %w", i, err)
		}
		providers = append(providers, dp)
		windows = append(windows, ws)
	}
	clients := make([]domain.Client, 0, len(r.Clients))
	for i, c := range r.Clients {
		dc, err := c.toDomain()
		if err != nil {
			return Result{}, fmt.Errorf("clients[%d]: %w", i, err)
		}
		clients = append(clients, dc)
	}

	var res Result
	for i, p := range providers {
		saved, err := admin.CreateProvider(ctx, p)
		switch {
		case errors.Is(err, store.ErrConflict) && p.ID != uuid.Nil:
			saved, err = admin.UpdateProviderSettings(ctx, p.ID, p.Active, p.CalendarID)
			if err != nil {
				return res, fmt.Errorf("update provider %s: %w", p.ID, err)
			}
			res.ProvidersUpdated++
		case err != nil:
			return res, fmt.Errorf("create provider %q: %w", p.Name, err)
		default:
			res.ProvidersCreated++
		}

		if len(windows[i]) > 0 {
			stored, err := admin.ReplaceAvailability(ctx, saved.ID, windows[i])
			if err != nil {
				return res, fmt.Errorf("availability for %q: %w", p.Name, err)
			}
			res.Windows += len(stored)
		}
		log.Info("provider applied", slog.String("provider_id", saved.ID.String()), slog.Int("windows", len(windows[i])))
	}

	for _, c := range clients {
		saved, err := admin.CreateClient(ctx, c)
		if errors.Is(err, store.ErrConflict) {
			res.ClientsSkipped++
			continue
		}
		if err != nil {
			return res, fmt.Errorf("create client %q: %w", c.Name, err)
		}
		res.ClientsCreated++
		log.Debug("client created", slog.String("client_id", saved.ID.String()))
	}
	return res, nil
}

func (p Provider) toDomain() (domain.Provider, []domain.AvailabilityWindow, error) {
	id, err := optionalID(p.ID)
	if err != nil {
		return domain.Provider{}, nil, err
	}
	if strings.TrimSpace(p.Name) == "" {
		return domain.Provider{}, nil, domain.Validationf("name is required")
	}
	if strings.TrimSpace(p.Specialty) == "" {
		return domain.Provider{}, nil, domain.Validationf("specialty is required")
	}
	out := domain.Provider{
		ID:         id,
		Name:       strings.TrimSpace(p.Name),
		Email:      strings.TrimSpace(p.Email),
		Specialty:  strings.ToLower(strings.TrimSpace(p.Specialty)),
		Active:     p.Active == nil || *p.Active,
		CalendarID: strings.TrimSpace(p.CalendarID),
	}

	ws := make([]domain.AvailabilityWindow, 0, len(p.Availability))
	for j, w := range p.Availability {
		dw, err := w.toDomain()
		if err != nil {
			return domain.Provider{}, nil, fmt.Errorf("availability[%d]: %w", j, err)
		}
		ws = append(ws, dw)
	}
	return out, ws, nil
}

var weekdays = map[string]int16{
	"monday": 1, "mon": 1,
	"tuesday": 2, "tue": 2,
	"wednesday": 3, "wed": 3,
	"thursday": 4, "thu": 4,
	"friday": 5, "fri": 5,
	"saturday": 6, "sat": 6,
	"sunday": 7, "sun": 7,
}

func (w Window) toDomain() (domain.AvailabilityWindow, error) {
	var out domain.AvailabilityWindow
	switch {
	case w.Weekday != "" && w.Date != "":
		return out, domain.Validationf("set either weekday or date, not both")
	case w.Weekday != "":
		wd, ok := weekdays[strings.ToLower(strings.TrimSpace(w.Weekday))]
		if !ok {
			return out, domain.Validationf("unknown weekday %q", w.Weekday)
		}
		out.Kind = domain.WindowRecurring
		out.Weekday = wd
	case w.Date != "":
		d, err := time.Parse(time.DateOnly, strings.TrimSpace(w.Date))
		if err != nil {
			return out, domain.Validationf("date %q must be YYYY-MM-DD", w.Date)
		}
		out.Kind = domain.WindowOverride
		out.Date = &d
	default:
		return out, domain.Validationf("weekday or date is required")
	}

	if w.Closed {
		if w.Start != "" || w.End != "" {
			return out, domain.Validationf("a closed window has no start or end")
		}
	} else {
		start, err := domain.ParseTimeOfDay(w.Start)
		if err != nil {
			return out, err
		}
		end, err := domain.ParseTimeOfDay(w.End)
		if err != nil {
			return out, err
		}
		out.StartMinute, out.EndMinute = &start, &end
	}
	return out, out.Validate()
}

func (c Client) toDomain() (domain.Client, error) {
	id, err := optionalID(c.ID)
	if err != nil {
		return domain.Client{}, err
	}
	if strings.TrimSpace(c.Name) == "" {
		return domain.Client{}, domain.Validationf("name is required")
	}
	out := domain.Client{
		ID:             id,
		Name:           strings.TrimSpace(c.Name),
		Email:          strings.TrimSpace(c.Email),
		Phone:          strings.TrimSpace(c.Phone),
		Active:         c.Active == nil || *c.Active,
		MedicalHistory: c.MedicalHistory,
		History:        c.History,
	}
	if c.DateOfBirth != "" {
		dob, err := time.Parse(time.DateOnly, strings.TrimSpace(c.DateOfBirth))
		if err != nil {
			return domain.Client{}, domain.Validationf("date_of_birth %q must be YYYY-MM-DD", c.DateOfBirth)
		}
		out.DateOfBirth = &dob
	}
	return out, nil
}

func optionalID(raw string) (uuid.UUID, error) {
	if strings.TrimSpace(raw) == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, domain.Validationf("id %q must be a UUID", raw)
	}
	return id, nil
}
