package slots

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"caresched/backend/internal/domain"
	"caresched/backend/internal/service/availability"
	"caresched/backend/internal/store"
	"caresched/backend/internal/store/memory"
)

// Monday 2026-03-02 08:00 UTC.
var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func testSettings() Settings {
	return Settings{
		Types:             domain.DefaultAppointmentTypes(),
		Buffer:            5 * time.Minute,
		Step:              15 * time.Minute,
		Scorer:            domain.Scorer{Weights: domain.DefaultWeights(), FullDayCapacity: 10},
		MaxSlots:          10,
		MaxBookingsPerDay: 12,
		LookaheadDays:     30,
		DefaultSearchDays: 14,
	}
}

func newTestRecommender(t *testing.T, s *memory.Store, cfg Settings) *Recommender {
	t.Helper()
	res := availability.NewResolver(s, availability.BusinessHours{
		Start: domain.MustTimeOfDay("09:00"),
		End:   domain.MustTimeOfDay("17:00"),
	}, time.UTC)
	r := NewRecommender(s, res, cfg, slog.Default())
	r.now = func() time.Time { return testNow }
	return r
}

func addProvider(t *testing.T, s *memory.Store, name, specialty string, active bool) domain.Provider {
	t.Helper()
	p, err := s.CreateProvider(context.Background(), domain.Provider{Name: name, Specialty: specialty, Active: active})
	if err != nil {
		t.Fatalf("CreateProvider error: %v", err)
	}
	return p
}

func addBooking(t *testing.T, s *memory.Store, providerID uuid.UUID, start time.Time, d time.Duration, status domain.BookingStatus) {
	t.Helper()
	err := s.InProviderTransaction(context.Background(), providerID, func(ctx context.Context, tx store.ScheduleTx) error {
		_, err := tx.CreateBooking(ctx, domain.Booking{ProviderID: providerID, StartTime: start, EndTime: start.Add(d), Status: status, Urgency: 3})
		return err
	})
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}
}

func TestSuggest_ValidatesInput(t *testing.T) {
	s := memory.New()
	r := newTestRecommender(t, s, testSettings())

	tests := []struct {
		name string
		req  Request
	}{
		{name: "unknown type", req: Request{AppointmentType: "surgery", Urgency: 3}},
		{name: "urgency too low", req: Request{AppointmentType: "follow_up", Urgency: 0}},
		{name: "urgency too high", req: Request{AppointmentType: "follow_up", Urgency: 6}},
		{name: "inverted range", req: Request{AppointmentType: "follow_up", Urgency: 3, From: testNow.Add(time.Hour), To: testNow}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Suggest(context.Background(), tt.req)
			var ve *domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want ValidationError", err)
			}
		})
	}
}

func TestSuggest_AvoidsBookingsAndRanks(t *testing.T) {
	s := memory.New()
	p := addProvider(t, s, "Dr. Okafor", "cardiology", true)
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	addBooking(t, s, p.ID, monday.Add(10*time.Hour), 30*time.Minute, domain.StatusScheduled)
	addBooking(t, s, p.ID, monday.Add(11*time.Hour), 30*time.Minute, domain.StatusCancelled)

	cfg := testSettings()
	cfg.MaxSlots = 200
	r := newTestRecommender(t, s, cfg)

	got, err := r.Suggest(context.Background(), Request{
		AppointmentType: "routine_checkup",
		Urgency:         3,
		To:              monday.AddDate(0, 0, 1),
		Limit:           200,
	})
	if err != nil {
		t.Fatalf("Suggest error: %v", err)
	}

	booked := domain.Interval{Start: monday.Add(10 * time.Hour), End: monday.Add(10*time.Hour + 30*time.Minute)}
	starts := make(map[time.Time]bool)
	for i, c := range got {
		starts[c.Start] = true
		if domain.BufferedOverlap(domain.Interval{Start: c.Start, End: c.End}, booked, 5*time.Minute) {
			t.Fatalf("slot %v overlaps booking", c.Start)
		}
		if c.Score < 0.1 || c.Score > 1 {
			t.Fatalf("score %v out of range", c.Score)
		}
		if i > 0 && c.Score > got[i-1].Score {
			t.Fatalf("not sorted at %d", i)
		}
		if c.ProviderID != p.ID || c.ProviderName != "Dr. Okafor" {
			t.Fatalf("provider not attached: %+v", c)
		}
	}
	if !starts[monday.Add(11*time.Hour)] {
		t.Fatalf("cancelled booking still blocks 11:00")
	}
	if len(got) != 26 {
		t.Fatalf("len = %d, want 26", len(got))
	}
}

func TestSuggest_ExcludesPastAndFullDays(t *testing.T) {
	s := memory.New()
	p := addProvider(t, s, "Dr. Okafor", "cardiology", true)
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)
	for i := 0; i < 2; i++ {
		addBooking(t, s, p.ID, tuesday.Add(time.Duration(9+2*i)*time.Hour), 15*time.Minute, domain.StatusScheduled)
	}

	cfg := testSettings()
	cfg.MaxSlots = 500
	cfg.MaxBookingsPerDay = 2
	r := newTestRecommender(t, s, cfg)
	r.now = func() time.Time { return monday.Add(10*time.Hour + 7*time.Minute) }

	got, err := r.Suggest(context.Background(), Request{
		AppointmentType: "follow_up",
		Urgency:         5,
		To:              monday.AddDate(0, 0, 3),
		Limit:           500,
	})
	if err != nil {
		t.Fatalf("Suggest error: %v", err)
	}
	for _, c := range got {
		if c.Start.Before(monday.Add(10*time.Hour + 7*time.Minute)) {
			t.Fatalf("past slot %v suggested", c.Start)
		}
		if c.Start.YearDay() == tuesday.YearDay() {
			t.Fatalf("slot %v on a full day", c.Start)
		}
	}
	if len(got) == 0 {
		t.Fatalf("expected slots on monday and wednesday")
	}
	if got[0].Start.YearDay() != monday.YearDay() {
		t.Fatalf("urgent request should rank today first, got %v", got[0].Start)
	}
}

func TestSuggest_ProviderSelection(t *testing.T) {
	s := memory.New()
	cardio := addProvider(t, s, "A", "cardiology", true)
	derm := addProvider(t, s, "B", "dermatology", true)
	inactive := addProvider(t, s, "C", "cardiology", false)

	r := newTestRecommender(t, s, testSettings())
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	base := Request{AppointmentType: "procedure", Urgency: 3, From: monday.Add(9 * time.Hour), To: monday.Add(17 * time.Hour), Limit: 50}

	providersOf := func(req Request) map[uuid.UUID]bool {
		t.Helper()
		got, err := r.Suggest(context.Background(), req)
		if err != nil {
			t.Fatalf("Suggest error: %v", err)
		}
		out := make(map[uuid.UUID]bool)
		for _, c := range got {
			out[c.ProviderID] = true
		}
		return out
	}

	req := base
	req.Specialty = "cardiology"
	if got := providersOf(req); len(got) != 1 || !got[cardio.ID] {
		t.Fatalf("specialty providers = %v", got)
	}

	req = base
	req.ProviderIDs = []uuid.UUID{derm.ID, inactive.ID, uuid.New()}
	if got := providersOf(req); len(got) != 1 || !got[derm.ID] {
		t.Fatalf("explicit providers = %v", got)
	}

	if got := providersOf(base); len(got) != 2 {
		t.Fatalf("all active providers = %v", got)
	}
}

func TestSuggest_LimitClampedToMax(t *testing.T) {
	s := memory.New()
	addProvider(t, s, "A", "cardiology", true)
	r := newTestRecommender(t, s, testSettings())

	got, err := r.Suggest(context.Background(), Request{AppointmentType: "follow_up", Urgency: 3, Limit: 1000})
	if err != nil {
		t.Fatalf("Suggest error: %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("len = %d, want 10", len(got))
	}
}

func TestSearchRange_ClampsToLookahead(t *testing.T) {
	r := newTestRecommender(t, memory.New(), testSettings())

	from, to := r.searchRange(testNow, time.Time{}, time.Time{})
	if !from.Equal(testNow) || !to.Equal(testNow.AddDate(0, 0, 14)) {
		t.Fatalf("default range = %v..%v", from, to)
	}
	_, to = r.searchRange(testNow, testNow, testNow.AddDate(0, 0, 90))
	if !to.Equal(testNow.AddDate(0, 0, 30)) {
		t.Fatalf("to = %v, want lookahead horizon", to)
	}
	from, _ = r.searchRange(testNow, testNow.AddDate(0, 0, -3), time.Time{})
	if !from.Equal(testNow) {
		t.Fatalf("from = %v, want now", from)
	}
}
