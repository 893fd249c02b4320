package roster

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"caresched/backend/internal/domain"
	"caresched/backend/internal/store"
	"caresched/backend/internal/store/memory"
)

const sample = `
providers:
  - id: 6f1c2a9e-8d4b-4c3a-9f0e-1a2b3c4d5e6f
    name: Dr. Okafor
    email: okafor@clinic.test
    specialty: Cardiology
    calendar_id: okafor@clinic.test
    availability:
      - weekday: monday
        start: "09:00"
        end: "12:00"
      - weekday: wed
        start: "13:00"
        end: "17:00"
      - date: 2026-03-10
        closed: true
  - name: Dr. Lindqvist
    specialty: dermatology
    active: false
clients:
  - name: Ada Obi
    email: ada@example.test
    date_of_birth: 1988-04-12
    medical_history:
      conditions: [hypertension]
      allergies: [penicillin]
    history:
      - date: 2025-11-03T10:00:00Z
        kind: follow_up
        summary: blood pressure review
`

func TestDecodeAndApply(t *testing.T) {
	r, err := Decode(strings.NewReader(sample))
	if err != nil {
		t.Fatalf("Decode error: %v", err)
	}

	s := memory.New()
	res, err := Apply(context.Background(), s, r, nil)
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if res.ProvidersCreated != 2 || res.ClientsCreated != 1 || res.Windows != 3 {
		t.Fatalf("result = %+v", res)
	}

	id := uuid.MustParse("6f1c2a9e-8d4b-4c3a-9f0e-1a2b3c4d5e6f")
	p, err := s.GetProvider(context.Background(), id)
	if err != nil {
		t.Fatalf("GetProvider error: %v", err)
	}
	if p.Specialty != "cardiology" || !p.Active || p.CalendarID != "okafor@clinic.test" {
		t.Fatalf("provider = %+v", p)
	}
	ws, _ := s.ListAvailability(context.Background(), id)
	if len(ws) != 3 || ws[1].Weekday != 3 || !ws[2].Closed() {
		t.Fatalf("windows = %+v", ws)
	}

	active, _ := s.ListProviders(context.Background(), store.ProviderFilter{ActiveOnly: true})
	if len(active) != 1 {
		t.Fatalf("active providers = %d, want 1", len(active))
	}

	// Re-applying updates the provider with a fixed id.
	res, err = Apply(context.Background(), s, Roster{Providers: r.Providers[:1]}, nil)
	if err != nil {
		t.Fatalf("second Apply error: %v", err)
	}
	if res.ProvidersUpdated != 1 || res.ProvidersCreated != 0 {
		t.Fatalf("second result = %+v", res)
	}
}

func TestDecode_RejectsUnknownKeys(t *testing.T) {
	_, err := Decode(strings.NewReader("providers:\n  - name: A\n    specialty: x\n    shoe_size: 44\n"))
	if err == nil {
		t.Fatalf("Decode succeeded, want unknown field error")
	}
}

func TestApply_ValidatesBeforeWriting(t *testing.T) {
	tests := []struct {
		name string
		r    Roster
	}{
		{name: "missing specialty", r: Roster{Providers: []Provider{{Name: "A"}}}},
		{name: "bad weekday", r: Roster{Providers: []Provider{{Name: "A", Specialty: "x", Availability: []Window{{Weekday: "funday", Start: "09:00", End: "10:00"}}}}}},
		{name: "inverted window", r: Roster{Providers: []Provider{{Name: "A", Specialty: "x", Availability: []Window{{Weekday: "mon", Start: "12:00", End: "09:00"}}}}}},
		{name: "weekday and date", r: Roster{Providers: []Provider{{Name: "A", Specialty: "x", Availability: []Window{{Weekday: "mon", Date: "2026-03-02", Start: "09:00", End: "10:00"}}}}}},
		{name: "closed with times", r: Roster{Providers: []Provider{{Name: "A", Specialty: "x", Availability: []Window{{Date: "2026-03-02", Closed: true, Start: "09:00"}}}}}},
		{name: "bad client id", r: Roster{Clients: []Client{{ID: "nope", Name: "B"}}}},
		{name: "bad birth date", r: Roster{Clients: []Client{{Name: "B", DateOfBirth: "12/04/1988"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := memory.New()
			if _, err := Apply(context.Background(), s, tt.r, nil); err == nil {
				t.Fatalf("Apply succeeded, want error")
			}
			all, _ := s.ListProviders(context.Background(), store.ProviderFilter{})
			if len(all) != 0 {
				t.Fatalf("providers written despite invalid roster: %d", len(all))
			}
		})
	}

	var ve *domain.ValidationError
	_, err := Apply(context.Background(), memory.New(), Roster{Providers: []Provider{{Name: "A"}}}, nil)
	if !errors.As(err, &ve) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
}
