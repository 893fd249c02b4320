package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"caresched/backend/internal/domain"
	"caresched/backend/internal/store"
)

func (r *ScheduleRepo) CreateProvider(ctx context.Context, p domain.Provider) (domain.Provider, error) {
	_, err := r.db.NewInsert().Model(&p).Exec(ctx)
	if err != nil {
		return domain.Provider{}, uniqueConflict(err)
	}
	return p, nil
}

func (r *ScheduleRepo) UpdateProviderSettings(ctx context.Context, id uuid.UUID, active bool, calendarID string) (domain.Provider, error) {
	var p domain.Provider
	_, err := r.db.NewUpdate().
		Model(&p).
		Set("active = ?", active).
		Set("calendar_id = ?", calendarID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return domain.Provider{}, notFound(err)
	}
	if p.ID == uuid.Nil {
		return domain.Provider{}, store.ErrNotFound
	}
	return p, nil
}

func (r *ScheduleRepo) CreateClient(ctx context.Context, c domain.Client) (domain.Client, error) {
	_, err := r.db.NewInsert().Model(&c).Exec(ctx)
	if err != nil {
		return domain.Client{}, uniqueConflict(err)
	}
	return c, nil
}

func (r *ScheduleRepo) ReplaceAvailability(ctx context.Context, providerID uuid.UUID, windows []domain.AvailabilityWindow) ([]domain.AvailabilityWindow, error) {
	out := make([]domain.AvailabilityWindow, len(windows))
	copy(out, windows)
	for i := range out {
		out[i].ProviderID = providerID
	}

	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		exists, err := tx.NewSelect().Model((*domain.Provider)(nil)).Where("id = ?", providerID).Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			return store.ErrNotFound
		}
		if _, err := tx.NewDelete().Model((*domain.AvailabilityWindow)(nil)).Where("provider_id = ?", providerID).Exec(ctx); err != nil {
			return err
		}
		if len(out) == 0 {
			return nil
		}
		_, err = tx.NewInsert().Model(&out).Exec(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ScheduleRepo) DeleteBooking(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.NewDelete().
		Model((*domain.Booking)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return affectedOne(res, err)
}

func uniqueConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return store.ErrConflict
	}
	return err
}
