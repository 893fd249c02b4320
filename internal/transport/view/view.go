// Package view holds the JSON shapes shared by the gRPC and REST transports.
package view

import (
	"time"

	"caresched/backend/internal/domain"
)

type Booking struct {
	ID              string    `json:"id" yaml:"id"`
	ProviderID      string    `json:"provider_id" yaml:"provider_id"`
	ClientID        string    `json:"client_id" yaml:"client_id"`
	StartTime       time.Time `json:"start_time" yaml:"start_time"`
	EndTime         time.Time `json:"end_time" yaml:"end_time"`
	AppointmentType string    `json:"appointment_type" yaml:"appointment_type"`
	Urgency         int       `json:"urgency" yaml:"urgency"`
	Status          string    `json:"status" yaml:"status"`
	Notes           string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	ExternalEventID string    `json:"external_event_id,omitempty" yaml:"external_event_id,omitempty"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" yaml:"updated_at"`
}

func FromBooking(b domain.Booking) Booking {
	return Booking{
		ID:              b.ID.String(),
		ProviderID:      b.ProviderID.String(),
		ClientID:        b.ClientID.String(),
		StartTime:       b.StartTime.UTC(),
		EndTime:         b.EndTime.UTC(),
		AppointmentType: b.AppointmentType,
		Urgency:         b.Urgency,
		Status:          string(b.Status),
		Notes:           b.Notes,
		ExternalEventID: b.ExternalEventID,
		CreatedAt:       b.CreatedAt.UTC(),
		UpdatedAt:       b.UpdatedAt.UTC(),
	}
}

func FromBookings(bs []domain.Booking) []Booking {
	out := make([]Booking, 0, len(bs))
	for _, b := range bs {
		out = append(out, FromBooking(b))
	}
	return out
}

type Breakdown struct {
	Load       float64 `json:"load" yaml:"load"`
	Preference float64 `json:"preference" yaml:"preference"`
	Urgency    float64 `json:"urgency" yaml:"urgency"`
}

type Slot struct {
	StartTime    time.Time `json:"start_time" yaml:"start_time"`
	EndTime      time.Time `json:"end_time" yaml:"end_time"`
	ProviderID   string    `json:"provider_id" yaml:"provider_id"`
	ProviderName string    `json:"provider_name" yaml:"provider_name"`
	Score        float64   `json:"score" yaml:"score"`
	Breakdown    Breakdown `json:"breakdown" yaml:"breakdown"`
}

func FromSlots(cs []domain.CandidateSlot) []Slot {
	out := make([]Slot, 0, len(cs))
	for _, c := range cs {
		out = append(out, Slot{
			StartTime:    c.Start.UTC(),
			EndTime:      c.End.UTC(),
			ProviderID:   c.ProviderID.String(),
			ProviderName: c.ProviderName,
			Score:        c.Score,
			Breakdown:    Breakdown(c.Breakdown),
		})
	}
	return out
}

type Provider struct {
	ID         string `json:"id" yaml:"id"`
	Name       string `json:"name" yaml:"name"`
	Email      string `json:"email" yaml:"email"`
	Specialty  string `json:"specialty" yaml:"specialty"`
	Active     bool   `json:"active" yaml:"active"`
	CalendarID string `json:"calendar_id,omitempty" yaml:"calendar_id,omitempty"`
}

func FromProviders(ps []domain.Provider) []Provider {
	out := make([]Provider, 0, len(ps))
	for _, p := range ps {
		out = append(out, Provider{
			ID:         p.ID.String(),
			Name:       p.Name,
			Email:      p.Email,
			Specialty:  p.Specialty,
			Active:     p.Active,
			CalendarID: p.CalendarID,
		})
	}
	return out
}
