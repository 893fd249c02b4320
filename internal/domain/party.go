package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Provider struct {
	bun.BaseModel `bun:"table:providers"`

	ID         uuid.UUID `bun:"id,pk,type:uuid"`
	Name       string    `bun:"name,notnull"`
	Email      string    `bun:"email,notnull"`
	Specialty  string    `bun:"specialty,notnull"`
	Active     bool      `bun:"active,notnull"`
	CalendarID string    `bun:"calendar_id"`
	CreatedAt  time.Time `bun:"created_at,notnull"`
	UpdatedAt  time.Time `bun:"updated_at,notnull"`
}

func (p *Provider) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stamp(query, &p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// MedicalHistory and HistoryEntry are carried for clients but never read by
// scheduling. They are stored as jsonb.
type MedicalHistory struct {
	Conditions  []string `json:"conditions,omitempty" yaml:"conditions"`
	Allergies   []string `json:"allergies,omitempty" yaml:"allergies"`
	Medications []string `json:"medications,omitempty" yaml:"medications"`
	Notes       string   `json:"notes,omitempty" yaml:"notes"`
}

type HistoryEntry struct {
	Date    time.Time `json:"date" yaml:"date"`
	Kind    string    `json:"kind" yaml:"kind"`
	Summary string    `json:"summary,omitempty" yaml:"summary"`
}

type Client struct {
	bun.BaseModel `bun:"table:clients"`

	ID             uuid.UUID       `bun:"id,pk,type:uuid"`
	Name           string          `bun:"name,notnull"`
	Email          string          `bun:"email,notnull"`
	Phone          string          `bun:"phone"`
	DateOfBirth    *time.Time      `bun:"date_of_birth,type:date"`
	MedicalHistory *MedicalHistory `bun:"medical_history,type:jsonb"`
	History        []HistoryEntry  `bun:"booking_history,type:jsonb"`
	Active         bool            `bun:"active,notnull"`
	CreatedAt      time.Time       `bun:"created_at,notnull"`
	UpdatedAt      time.Time       `bun:"updated_at,notnull"`
}

func (c *Client) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	return stamp(query, &c.ID, &c.CreatedAt, &c.UpdatedAt)
}
