package booking

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"caresched/backend/internal/domain"
	"caresched/backend/internal/store"
)

type mirror interface {
	Create(ctx context.Context, provider domain.Provider, b domain.Booking) (string, bool)
	Update(ctx context.Context, provider domain.Provider, b domain.Booking) bool
	Delete(ctx context.Context, provider domain.Provider, b domain.Booking) bool
}

type Settings struct {
	Types               domain.AppointmentTypes
	Buffer              time.Duration
	MaxBookingsPerDay   int
	DefaultScheduleDays int
	Location            *time.Location
}

// Coordinator owns every booking write. Conflict checks and writes for a
// provider run inside that provider's transaction; calendar mirroring runs
// after commit and never fails the operation.
type Coordinator struct {
	repo   store.Repository
	mirror mirror
	cfg    Settings
	log    *slog.Logger
	now    func() time.Time
}

func NewCoordinator(repo store.Repository, m mirror, cfg Settings, log *slog.Logger) *Coordinator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultScheduleDays <= 0 {
		cfg.DefaultScheduleDays = 7
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		repo:   repo,
		mirror: m,
		cfg:    cfg,
		log:    log.With(slog.String("component", "service.booking")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type CreateInput struct {
	ProviderID      uuid.UUID
	ClientID        uuid.UUID
	StartTime       time.Time
	EndTime         time.Time // zero derives the end from the appointment type
	AppointmentType string
	Urgency         int // zero means the default urgency
	Notes           string
	IdempotencyKey  string
}

func (c *Coordinator) Create(ctx context.Context, in CreateInput) (domain.Booking, error) {
	duration, err := c.cfg.Types.Duration(in.AppointmentType)
	if err != nil {
		return domain.Booking{}, err
	}
	urgency := in.Urgency
	if urgency == 0 {
		urgency = domain.DefaultUrgency
	}
	if err := domain.ValidateUrgency(urgency); err != nil {
		return domain.Booking{}, err
	}
	if in.StartTime.IsZero() {
		return domain.Booking{}, domain.Validationf("start_time is required")
	}

	start := in.StartTime.UTC()
	end := start.Add(duration)
	if !in.EndTime.IsZero() {
		end = in.EndTime.UTC()
	}
	if err := checkSpan(start, end, duration, in.AppointmentType); err != nil {
		return domain.Booking{}, err
	}

	provider, err := c.activeProvider(ctx, in.ProviderID)
	if err != nil {
		return domain.Booking{}, err
	}
	if err := c.activeClient(ctx, in.ClientID); err != nil {
		return domain.Booking{}, err
	}

	b := domain.Booking{
		ProviderID:      provider.ID,
		ClientID:        in.ClientID,
		StartTime:       start,
		EndTime:         end,
		AppointmentType: in.AppointmentType,
		Urgency:         urgency,
		Status:          domain.StatusScheduled,
		Notes:           strings.TrimSpace(in.Notes),
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > 256 {
			return domain.Booking{}, domain.Validationf("idempotency_key too long")
		}
		b.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("caresched:create_booking:"+provider.ID.String()+":"+in.ClientID.String()+":"+key))
	}

	var (
		out    domain.Booking
		replay bool
	)
	err = c.repo.InProviderTransaction(ctx, provider.ID, func(ctx context.Context, tx store.ScheduleTx) error {
		if b.ID != uuid.Nil {
			existing, err := tx.GetBooking(ctx, b.ID)
			if err == nil {
				if !store.SameBooking(existing, b) {
					return store.ErrIdempotencyConflict
				}
				out, replay = existing, true
				return nil
			}
			if !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}

		if err := c.checkConflicts(ctx, tx, b); err != nil {
			return err
		}
		if err := c.checkDailyCap(ctx, tx, b); err != nil {
			return err
		}
		created, err := tx.CreateBooking(ctx, b)
		if err != nil {
			return err
		}
		out = created
		return nil
	})
	if err != nil {
		return domain.Booking{}, translate("create booking", err)
	}
	if replay {
		return out, nil
	}

	c.log.Info(
		"booking created",
		slog.String("booking_id", out.ID.String()),
		slog.String("provider_id", out.ProviderID.String()),
		slog.Time("start_time", out.StartTime),
	)

	if eventID, ok := c.mirror.Create(ctx, provider, out); ok {
		err := c.repo.InProviderTransaction(context.WithoutCancel(ctx), out.ProviderID, func(ctx context.Context, tx store.ScheduleTx) error {
			return tx.SetBookingEventID(ctx, out.ID, eventID)
		})
		if err != nil {
			c.log.Warn("attach calendar event failed", slog.String("booking_id", out.ID.String()), slog.Any("err", err))
		} else {
			out.ExternalEventID = eventID
		}
	}
	return out, nil
}

type UpdateInput struct {
	ID        uuid.UUID
	StartTime *time.Time
	EndTime   *time.Time
	Status    *domain.BookingStatus
	Notes     *string
	Urgency   *int
}

func (in UpdateInput) empty() bool {
	return in.StartTime == nil && in.EndTime == nil && in.Status == nil && in.Notes == nil && in.Urgency == nil
}

func (c *Coordinator) Update(ctx context.Context, in UpdateInput) (domain.Booking, error) {
	if in.Urgency != nil {
		if err := domain.ValidateUrgency(*in.Urgency); err != nil {
			return domain.Booking{}, err
		}
	}

	current, err := c.repo.GetBooking(ctx, in.ID)
	if err != nil {
		return domain.Booking{}, c.lookupErr("booking", in.ID, err)
	}
	if in.empty() {
		return current, nil
	}

	var out, prev domain.Booking
	err = c.repo.InProviderTransaction(ctx, current.ProviderID, func(ctx context.Context, tx store.ScheduleTx) error {
		b, err := tx.GetBooking(ctx, in.ID)
		if err != nil {
			return err
		}
		prev = b

		if b.Status.Terminal() {
			if in.Status != nil && *in.Status == b.Status && in.StartTime == nil && in.EndTime == nil && in.Notes == nil && in.Urgency == nil {
				out = b
				return nil
			}
			return domain.WrapValidation("booking is "+string(b.Status)+" and can no longer change", domain.ErrInvalidTransition)
		}

		if in.Status != nil && *in.Status != b.Status {
			if !domain.CanTransition(b.Status, *in.Status) {
				return domain.WrapValidation("cannot move booking from "+string(b.Status)+" to "+string(*in.Status), domain.ErrInvalidTransition)
			}
			b.Status = *in.Status
		}

		if in.StartTime != nil || in.EndTime != nil {
			duration, err := c.cfg.Types.Duration(b.AppointmentType)
			if err != nil {
				duration = b.EndTime.Sub(b.StartTime)
			}
			start := b.StartTime
			if in.StartTime != nil {
				start = in.StartTime.UTC()
			}
			end := start.Add(duration)
			if in.EndTime != nil {
				end = in.EndTime.UTC()
			}
			if err := checkSpan(start, end, duration, b.AppointmentType); err != nil {
				return err
			}
			moved := b
			moved.StartTime, moved.EndTime = start, end
			if moved.Blocking() {
				if err := c.checkConflicts(ctx, tx, moved); err != nil {
					return err
				}
				if !c.sameDay(start, b.StartTime) {
					if err := c.checkDailyCap(ctx, tx, moved); err != nil {
						return err
					}
				}
			}
			b = moved
		}

		if in.Notes != nil {
			b.Notes = strings.TrimSpace(*in.Notes)
		}
		if in.Urgency != nil {
			b.Urgency = *in.Urgency
		}

		updated, err := tx.UpdateBooking(ctx, b)
		if err != nil {
			return err
		}
		out = updated
		return nil
	})
	if err != nil {
		return domain.Booking{}, translate("update booking", err)
	}
	if out.UpdatedAt.Equal(prev.UpdatedAt) && out.Status == prev.Status {
		return out, nil
	}

	c.log.Info(
		"booking updated",
		slog.String("booking_id", out.ID.String()),
		slog.String("status", string(out.Status)),
	)
	c.syncUpdate(ctx, prev, out)
	return out, nil
}

// Cancel is idempotent: cancelling a cancelled booking returns it unchanged.
func (c *Coordinator) Cancel(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	current, err := c.repo.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, c.lookupErr("booking", id, err)
	}
	switch current.Status {
	case domain.StatusCancelled:
		return current, nil
	case domain.StatusCompleted, domain.StatusNoShow:
		return domain.Booking{}, domain.WrapValidation("booking is "+string(current.Status)+" and cannot be cancelled", domain.ErrInvalidTransition)
	}

	cancelled := domain.StatusCancelled
	return c.Update(ctx, UpdateInput{ID: id, Status: &cancelled})
}

func (c *Coordinator) Get(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	b, err := c.repo.GetBooking(ctx, id)
	if err != nil {
		return domain.Booking{}, c.lookupErr("booking", id, err)
	}
	return b, nil
}

// ProviderSchedule lists bookings overlapping [from, to). Zero bounds default
// to now and the configured schedule span.
func (c *Coordinator) ProviderSchedule(ctx context.Context, providerID uuid.UUID, from, to time.Time) ([]domain.Booking, error) {
	if _, err := c.repo.GetProvider(ctx, providerID); err != nil {
		return nil, c.lookupErr("provider", providerID, err)
	}
	if from.IsZero() {
		from = c.now()
	}
	if to.IsZero() {
		to = from.AddDate(0, 0, c.cfg.DefaultScheduleDays)
	}
	if !from.Before(to) {
		return nil, domain.Validationf("schedule range end must be after start")
	}
	rows, err := c.repo.ListProviderBookings(ctx, providerID, from.UTC(), to.UTC())
	if err != nil {
		return nil, domain.Persistence("list provider bookings", err)
	}
	return rows, nil
}

func (c *Coordinator) ClientBookings(ctx context.Context, clientID uuid.UUID, includePast bool) ([]domain.Booking, error) {
	if _, err := c.repo.GetClient(ctx, clientID); err != nil {
		return nil, c.lookupErr("client", clientID, err)
	}
	var from time.Time
	if !includePast {
		from = c.now()
	}
	rows, err := c.repo.ListClientBookings(ctx, clientID, from)
	if err != nil {
		return nil, domain.Persistence("list client bookings", err)
	}
	return rows, nil
}

func (c *Coordinator) ListProviders(ctx context.Context, specialty string, includeInactive bool) ([]domain.Provider, error) {
	rows, err := c.repo.ListProviders(ctx, store.ProviderFilter{Specialty: strings.TrimSpace(specialty), ActiveOnly: !includeInactive})
	if err != nil {
		return nil, domain.Persistence("list providers", err)
	}
	return rows, nil
}

func (c *Coordinator) checkConflicts(ctx context.Context, tx store.ScheduleTx, b domain.Booking) error {
	rows, err := tx.ListBookings(ctx, b.ProviderID, b.StartTime.Add(-c.cfg.Buffer), b.EndTime.Add(c.cfg.Buffer))
	if err != nil {
		return err
	}
	for _, existing := range rows {
		if existing.ID == b.ID || !existing.Blocking() {
			continue
		}
		if domain.BufferedOverlap(b.Interval(), existing.Interval(), c.cfg.Buffer) {
			return &domain.ConflictError{BookingID: existing.ID}
		}
	}
	return nil
}

func (c *Coordinator) checkDailyCap(ctx context.Context, tx store.ScheduleTx, b domain.Booking) error {
	if c.cfg.MaxBookingsPerDay <= 0 {
		return nil
	}
	local := b.StartTime.In(c.cfg.Location)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.cfg.Location)
	rows, err := tx.ListBookings(ctx, b.ProviderID, dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return err
	}
	count := 0
	for _, existing := range rows {
		if existing.ID != b.ID && existing.Blocking() && c.sameDay(existing.StartTime, b.StartTime) {
			count++
		}
	}
	if count >= c.cfg.MaxBookingsPerDay {
		return domain.Validationf("provider already has %d bookings on %s", count, dayStart.Format(time.DateOnly))
	}
	return nil
}

func (c *Coordinator) sameDay(a, b time.Time) bool {
	ay, am, ad := a.In(c.cfg.Location).Date()
	by, bm, bd := b.In(c.cfg.Location).Date()
	return ay == by && am == bm && ad == bd
}

func (c *Coordinator) activeProvider(ctx context.Context, id uuid.UUID) (domain.Provider, error) {
	p, err := c.repo.GetProvider(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Provider{}, domain.Validationf("unknown provider %s", id)
	}
	if err != nil {
		return domain.Provider{}, domain.Persistence("get provider", err)
	}
	if !p.Active {
		return domain.Provider{}, domain.Validationf("provider %s is not active", id)
	}
	return p, nil
}

func (c *Coordinator) activeClient(ctx context.Context, id uuid.UUID) error {
	cl, err := c.repo.GetClient(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Validationf("unknown client %s", id)
	}
	if err != nil {
		return domain.Persistence("get client", err)
	}
	if !cl.Active {
		return domain.Validationf("client %s is not active", id)
	}
	return nil
}

func (c *Coordinator) syncUpdate(ctx context.Context, prev, next domain.Booking) {
	provider, err := c.repo.GetProvider(ctx, next.ProviderID)
	if err != nil {
		c.log.Warn("calendar sync skipped", slog.String("booking_id", next.ID.String()), slog.Any("err", err))
		return
	}
	if next.Status == domain.StatusCancelled && prev.Status != domain.StatusCancelled {
		c.mirror.Delete(ctx, provider, next)
		return
	}
	c.mirror.Update(ctx, provider, next)
}

func (c *Coordinator) lookupErr(entity string, id uuid.UUID, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.NotFound(entity, id)
	}
	return domain.Persistence("get "+entity, err)
}

func checkSpan(start, end time.Time, duration time.Duration, appointmentType string) error {
	if !start.Before(end) {
		return domain.Validationf("end_time must be after start_time")
	}
	if end.Sub(start) != duration {
		return domain.Validationf("%s lasts %s, got %s", appointmentType, duration, end.Sub(start))
	}
	return nil
}

// translate keeps typed errors and maps store sentinels onto them.
func translate(op string, err error) error {
	var (
		ve *domain.ValidationError
		ce *domain.ConflictError
		nf *domain.NotFoundError
	)
	switch {
	case errors.As(err, &ve), errors.As(err, &ce), errors.As(err, &nf):
		return err
	case errors.Is(err, store.ErrConflict):
		return &domain.ConflictError{}
	case errors.Is(err, store.ErrIdempotencyConflict):
		return domain.WrapValidation("idempotency key was already used for a different booking", err)
	case errors.Is(err, store.ErrNotFound):
		return &domain.NotFoundError{Entity: "booking"}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return domain.Persistence(op, err)
}
