package domain

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
)

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestScore_Components(t *testing.T) {
	s := Scorer{Weights: DefaultWeights(), FullDayCapacity: 10}
	today := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	pref := MustTimeOfDay("10:00")

	tests := []struct {
		name      string
		slot      time.Time
		count     int
		urgency   int
		preferred *TimeOfDay
		want      ScoreBreakdown
	}{
		{
			name:    "empty day no preference same day routine",
			slot:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
			urgency: 3,
			want:    ScoreBreakdown{Load: 1, Preference: 0.5, Urgency: 0.8},
		},
		{
			name:      "half booked two hours from preference",
			slot:      time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC),
			count:     5,
			urgency:   2,
			preferred: &pref,
			want:      ScoreBreakdown{Load: 0.5, Preference: 0.75, Urgency: 0.7},
		},
		{
			name:    "overbooked day clamps load",
			slot:    time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
			count:   14,
			urgency: 5,
			want:    ScoreBreakdown{Load: 0.1, Preference: 0.5, Urgency: 1},
		},
		{
			name:    "urgent a week out clamps urgency",
			slot:    time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC),
			urgency: 4,
			want:    ScoreBreakdown{Load: 1, Preference: 0.5, Urgency: 0.1},
		},
		{
			name:    "past date",
			slot:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
			urgency: 5,
			want:    ScoreBreakdown{Load: 1, Preference: 0.5, Urgency: 0.1},
		},
		{
			name:      "far from preference clamps",
			slot:      time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC),
			urgency:   1,
			preferred: &pref,
			want:      ScoreBreakdown{Load: 1, Preference: 0.1, Urgency: 0.8},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			total, got := s.Score(tt.slot, tt.count, tt.urgency, tt.preferred, today)
			if !approx(got.Load, tt.want.Load) || !approx(got.Preference, tt.want.Preference) || !approx(got.Urgency, tt.want.Urgency) {
				t.Fatalf("breakdown = %+v, want %+v", got, tt.want)
			}
			want := 0.3*tt.want.Load + 0.2*tt.want.Preference + 0.5*tt.want.Urgency
			if !approx(total, want) {
				t.Fatalf("score = %v, want %v", total, want)
			}
			if total < 0.1 || total > 1.0 {
				t.Fatalf("score %v outside [0.1, 1.0]", total)
			}
		})
	}
}

func TestScore_UrgentPrefersSooner(t *testing.T) {
	s := Scorer{Weights: DefaultWeights(), FullDayCapacity: 10}
	today := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

	soon, _ := s.Score(today.AddDate(0, 0, 1).Add(2*time.Hour), 0, 5, nil, today)
	later, _ := s.Score(today.AddDate(0, 0, 10).Add(2*time.Hour), 0, 5, nil, today)
	if soon <= later {
		t.Fatalf("1 day ahead scored %v, 10 days ahead %v; want sooner higher", soon, later)
	}
}

func TestWeightsValidate(t *testing.T) {
	if err := DefaultWeights().Validate(); err != nil {
		t.Fatalf("default weights: %v", err)
	}
	if err := (Weights{Load: 0.5, Preference: 0.5, Urgency: 0.5}).Validate(); err == nil {
		t.Fatalf("expected error for weights summing to 1.5")
	}
	if err := (Weights{Load: -0.5, Preference: 1, Urgency: 0.5}).Validate(); err == nil {
		t.Fatalf("expected error for negative weight")
	}
}

func TestRank_OrdersAndTruncates(t *testing.T) {
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	p1 := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	p2 := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	in := []CandidateSlot{
		{Start: base.Add(time.Hour), ProviderID: p1, Score: 0.5},
		{Start: base, ProviderID: p2, Score: 0.9},
		{Start: base, ProviderID: p1, Score: 0.9},
		{Start: base.Add(-time.Hour), ProviderID: p2, Score: 0.9},
		{Start: base, ProviderID: p1, Score: 0.2},
	}

	got := Rank(in, 3)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if !got[0].Start.Equal(base.Add(-time.Hour)) {
		t.Fatalf("first start = %v, want earliest tie", got[0].Start)
	}
	if got[1].ProviderID != p1 || got[2].ProviderID != p2 {
		t.Fatalf("tie on start not broken by provider id: %v, %v", got[1].ProviderID, got[2].ProviderID)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Score > got[i-1].Score {
			t.Fatalf("scores not descending at %d", i)
		}
	}
	if in[0].Score != 0.5 {
		t.Fatalf("input slice was reordered")
	}
}

func TestRank_DefaultLimit(t *testing.T) {
	in := make([]CandidateSlot, 25)
	if got := Rank(in, 0); len(got) != DefaultSlotLimit {
		t.Fatalf("len = %d, want %d", len(got), DefaultSlotLimit)
	}
	if got := Rank(in[:4], 0); len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
}
