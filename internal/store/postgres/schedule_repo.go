package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"caresched/backend/internal/domain"
	"caresched/backend/internal/store"
)

type ScheduleRepo struct {
	db *bun.DB
}

func NewScheduleRepo(db *bun.DB) *ScheduleRepo {
	return &ScheduleRepo{db: db}
}

var (
	_ store.Store      = (*ScheduleRepo)(nil)
	_ store.ScheduleTx = scheduleTx{}
)

type scheduleTx struct {
	tx bun.Tx
}

func (r *ScheduleRepo) GetProvider(ctx context.Context, id uuid.UUID) (domain.Provider, error) {
	var p domain.Provider
	err := r.db.NewSelect().Model(&p).Where("id = ?", id).Limit(1).Scan(ctx)
	return p, notFound(err)
}

func (r *ScheduleRepo) ListProviders(ctx context.Context, filter store.ProviderFilter) ([]domain.Provider, error) {
	var rows []domain.Provider
	q := r.db.NewSelect().Model(&rows)
	if filter.ActiveOnly {
		q = q.Where("active")
	}
	if filter.Specialty != "" {
		q = q.Where("lower(specialty) = lower(?)", filter.Specialty)
	}
	if err := q.OrderExpr("name ASC, id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ScheduleRepo) GetClient(ctx context.Context, id uuid.UUID) (domain.Client, error) {
	var c domain.Client
	err := r.db.NewSelect().Model(&c).Where("id = ?", id).Limit(1).Scan(ctx)
	return c, notFound(err)
}

func (r *ScheduleRepo) ListAvailability(ctx context.Context, providerID uuid.UUID) ([]domain.AvailabilityWindow, error) {
	var rows []domain.AvailabilityWindow
	err := r.db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		OrderExpr("kind ASC, weekday ASC, date ASC NULLS LAST, start_minute ASC NULLS FIRST").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ScheduleRepo) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return getBooking(ctx, r.db, id)
}

func (r *ScheduleRepo) ListProviderBookings(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Booking, error) {
	return listProviderBookings(ctx, r.db, providerID, windowStart, windowEnd)
}

func (r *ScheduleRepo) ListClientBookings(ctx context.Context, clientID uuid.UUID, from time.Time) ([]domain.Booking, error) {
	var rows []domain.Booking
	q := r.db.NewSelect().Model(&rows).Where("client_id = ?", clientID)
	if !from.IsZero() {
		q = q.Where("start_time >= ?", from)
	}
	if err := q.OrderExpr("start_time ASC, id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ScheduleRepo) InProviderTransaction(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context, tx store.ScheduleTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockProviderSchedule(ctx, tx, providerID); err != nil {
			return err
		}
		return fn(ctx, scheduleTx{tx: tx})
	})
}

func lockProviderSchedule(ctx context.Context, tx bun.Tx, providerID uuid.UUID) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", providerID.String()).Exec(ctx)
	return err
}

func (r scheduleTx) ListBookings(ctx context.Context, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Booking, error) {
	return listProviderBookings(ctx, r.tx, providerID, windowStart, windowEnd)
}

func (r scheduleTx) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return getBooking(ctx, r.tx, id)
}

// CreateBooking checks for a replayed id before inserting; a failed insert
// aborts the surrounding transaction, so the lookup cannot happen afterwards.
func (r scheduleTx) CreateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	if b.ID != uuid.Nil {
		existing, err := getBooking(ctx, r.tx, b.ID)
		switch {
		case err == nil:
			if !store.SameBooking(existing, b) {
				return domain.Booking{}, store.ErrIdempotencyConflict
			}
			return existing, nil
		case !errors.Is(err, store.ErrNotFound):
			return domain.Booking{}, err
		}
	}

	m := b
	_, err := r.tx.NewInsert().Model(&m).Exec(ctx)
	if err == nil {
		return m, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23P01" && pgErr.ConstraintName == "bookings_no_overlap" {
			return domain.Booking{}, store.ErrConflict
		}
		if pgErr.Code == "23505" {
			return domain.Booking{}, store.ErrIdempotencyConflict
		}
	}
	return domain.Booking{}, err
}

func (r scheduleTx) UpdateBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	res, err := r.tx.NewUpdate().
		Model(&b).
		Column("start_time", "end_time", "urgency", "status", "notes", "updated_at").
		WherePK().
		Exec(ctx)
	if err := affectedOne(res, err); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23P01" {
			return domain.Booking{}, store.ErrConflict
		}
		return domain.Booking{}, err
	}
	return b, nil
}

func (r scheduleTx) SetBookingEventID(ctx context.Context, id uuid.UUID, eventID string) error {
	res, err := r.tx.NewUpdate().
		Model((*domain.Booking)(nil)).
		Set("external_event_id = ?", eventID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	return affectedOne(res, err)
}

func getBooking(ctx context.Context, db bun.IDB, id uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := db.NewSelect().Model(&b).Where("id = ?", id).Limit(1).Scan(ctx)
	return b, notFound(err)
}

func listProviderBookings(ctx context.Context, db bun.IDB, providerID uuid.UUID, windowStart, windowEnd time.Time) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := db.NewSelect().
		Model(&rows).
		Where("provider_id = ?", providerID).
		Where("start_time < ?", windowEnd).
		Where("end_time > ?", windowStart).
		OrderExpr("start_time ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
