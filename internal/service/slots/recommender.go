package slots

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"caresched/backend/internal/domain"
	"caresched/backend/internal/store"
)

type repository interface {
	GetProvider(ctx context.Context, id uuid.UUID) (domain.Provider, error)
	ListProviders(ctx context.Context, filter store.ProviderFilter) ([]domain.Provider, error)
	ListProviderBookings(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Booking, error)
}

type resolver interface {
	ResolveRange(ctx context.Context, providerID uuid.UUID, from, to time.Time) (map[time.Time][]domain.Interval, error)
	Day(t time.Time) time.Time
}

type Settings struct {
	Types             domain.AppointmentTypes
	Buffer            time.Duration
	Step              time.Duration
	Scorer            domain.Scorer
	MaxSlots          int
	MaxBookingsPerDay int
	LookaheadDays     int
	DefaultSearchDays int
}

type Request struct {
	AppointmentType string
	Urgency         int
	ProviderIDs     []uuid.UUID
	Specialty       string
	PreferredTime   *domain.TimeOfDay
	From            time.Time
	To              time.Time
	Limit           int
}

type Recommender struct {
	repo     repository
	resolver resolver
	cfg      Settings
	log      *slog.Logger
	now      func() time.Time
}

func NewRecommender(repo repository, res resolver, cfg Settings, log *slog.Logger) *Recommender {
	if cfg.MaxSlots <= 0 {
		cfg.MaxSlots = domain.DefaultSlotLimit
	}
	if cfg.DefaultSearchDays <= 0 {
		cfg.DefaultSearchDays = 14
	}
	if log == nil {
		log = slog.Default()
	}
	return &Recommender{
		repo:     repo,
		resolver: res,
		cfg:      cfg,
		log:      log.With(slog.String("component", "service.slots")),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *Recommender) Suggest(ctx context.Context, req Request) ([]domain.CandidateSlot, error) {
	duration, err := r.cfg.Types.Duration(req.AppointmentType)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateUrgency(req.Urgency); err != nil {
		return nil, err
	}
	if !req.From.IsZero() && !req.To.IsZero() && !req.From.Before(req.To) {
		return nil, domain.Validationf("search range end must be after start")
	}

	now := r.now()
	from, to := r.searchRange(now, req.From, req.To)
	if !from.Before(to) {
		return nil, nil
	}

	limit := req.Limit
	if limit <= 0 || limit > r.cfg.MaxSlots {
		limit = r.cfg.MaxSlots
	}

	providers, err := r.selectProviders(ctx, req)
	if err != nil {
		return nil, err
	}

	var candidates []domain.CandidateSlot
	for _, p := range providers {
		slots, err := r.providerSlots(ctx, p, duration, from, to, req, now)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, slots...)
	}

	ranked := domain.Rank(candidates, limit)
	r.log.Debug(
		"slots suggested",
		slog.String("appointment_type", req.AppointmentType),
		slog.Int("providers", len(providers)),
		slog.Int("candidates", len(candidates)),
		slog.Int("returned", len(ranked)),
	)
	return ranked, nil
}

// searchRange applies the default span and clamps to [now, now+lookahead].
func (r *Recommender) searchRange(now, from, to time.Time) (time.Time, time.Time) {
	if from.IsZero() || from.Before(now) {
		from = now
	}
	if to.IsZero() {
		to = from.AddDate(0, 0, r.cfg.DefaultSearchDays)
	}
	if r.cfg.LookaheadDays > 0 {
		if horizon := now.AddDate(0, 0, r.cfg.LookaheadDays); to.After(horizon) {
			to = horizon
		}
	}
	return from, to
}

func (r *Recommender) selectProviders(ctx context.Context, req Request) ([]domain.Provider, error) {
	if len(req.ProviderIDs) > 0 {
		out := make([]domain.Provider, 0, len(req.ProviderIDs))
		for _, id := range req.ProviderIDs {
			p, err := r.repo.GetProvider(ctx, id)
			if errors.Is(err, store.ErrNotFound) {
				r.log.Warn("skipping unknown provider", slog.String("provider_id", id.String()))
				continue
			}
			if err != nil {
				return nil, domain.Persistence("get provider", err)
			}
			if !p.Active {
				r.log.Warn("skipping inactive provider", slog.String("provider_id", id.String()))
				continue
			}
			out = append(out, p)
		}
		return out, nil
	}

	providers, err := r.repo.ListProviders(ctx, store.ProviderFilter{Specialty: req.Specialty, ActiveOnly: true})
	if err != nil {
		return nil, domain.Persistence("list providers", err)
	}
	return providers, nil
}

func (r *Recommender) providerSlots(ctx context.Context, p domain.Provider, duration time.Duration, from, to time.Time, req Request, now time.Time) ([]domain.CandidateSlot, error) {
	windowsByDay, err := r.resolver.ResolveRange(ctx, p.ID, from, to)
	if err != nil {
		return nil, err
	}

	lookupStart := r.resolver.Day(from).Add(-r.cfg.Buffer)
	lookupEnd := r.resolver.Day(to).AddDate(0, 0, 1).Add(r.cfg.Buffer)
	bookings, err := r.repo.ListProviderBookings(ctx, p.ID, lookupStart, lookupEnd)
	if err != nil {
		return nil, domain.Persistence("list provider bookings", err)
	}

	var booked []domain.Interval
	perDay := make(map[time.Time]int)
	for _, b := range bookings {
		if !b.Blocking() {
			continue
		}
		booked = append(booked, b.Interval())
		perDay[r.resolver.Day(b.StartTime)]++
	}

	var out []domain.CandidateSlot
	for day, windows := range windowsByDay {
		count := perDay[day]
		if r.cfg.MaxBookingsPerDay > 0 && count >= r.cfg.MaxBookingsPerDay {
			continue
		}
		for _, iv := range domain.Enumerate(windows, duration, booked, r.cfg.Buffer, r.cfg.Step) {
			if iv.Start.Before(from) || !iv.Start.Before(to) {
				continue
			}
			score, breakdown := r.cfg.Scorer.Score(iv.Start, count, req.Urgency, req.PreferredTime, now)
			out = append(out, domain.CandidateSlot{
				Start:        iv.Start,
				End:          iv.End,
				ProviderID:   p.ID,
				ProviderName: p.Name,
				Score:        score,
				Breakdown:    breakdown,
			})
		}
	}
	return out, nil
}
