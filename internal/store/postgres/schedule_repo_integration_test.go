package postgres

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"caresched/backend/internal/domain"
	"caresched/backend/internal/store"
)

func TestPostgresIntegration_BookingCreateListOverlapAndIdempotency(t *testing.T) {
	databaseURL := strings.TrimSpace(os.Getenv("CARESCHED_TEST_DATABASE_URL"))
	if databaseURL == "" {
		t.Skip("CARESCHED_TEST_DATABASE_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := Open(ctx, databaseURL, PoolConfig{MaxOpenConns: 1})
	if err != nil {
		t.Fatalf("Open error: %v", err)
	}
	t.Cleanup(func() {
		_ = Close(db)
	})

	schema := "caresched_test_" + randomHex(t, 8)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_, _ = db.NewRaw("DROP SCHEMA IF EXISTS " + schema + " CASCADE").Exec(ctx)
	})

	errRollback := errors.New("rollback")
	err = db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("CREATE SCHEMA " + schema).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewRaw("SET LOCAL search_path TO " + schema + ", public").Exec(ctx); err != nil {
			return err
		}
		applied, err := applyMigrations(ctx, tx)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			return fmt.Errorf("no migrations applied")
		}
		if again, err := applyMigrations(ctx, tx); err != nil || len(again) != 0 {
			return fmt.Errorf("second migrate = %v, %v; want nothing applied", again, err)
		}

		provider := domain.Provider{Name: "Dr. Okafor", Email: "okafor@example.test", Specialty: "cardiology", Active: true}
		if _, err := tx.NewInsert().Model(&provider).Exec(ctx); err != nil {
			return err
		}
		client := domain.Client{
			Name:           "Ada",
			Email:          "ada@example.test",
			Active:         true,
			MedicalHistory: &domain.MedicalHistory{Allergies: []string{"penicillin"}},
		}
		if _, err := tx.NewInsert().Model(&client).Exec(ctx); err != nil {
			return err
		}

		var gotClient domain.Client
		if err := tx.NewSelect().Model(&gotClient).Where("id = ?", client.ID).Scan(ctx); err != nil {
			return err
		}
		if gotClient.MedicalHistory == nil || len(gotClient.MedicalHistory.Allergies) != 1 {
			return fmt.Errorf("medical history did not round trip: %+v", gotClient.MedicalHistory)
		}

		c := scheduleTx{tx: tx}
		start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
		end := start.Add(30 * time.Minute)
		base := domain.Booking{
			ProviderID:      provider.ID,
			ClientID:        client.ID,
			AppointmentType: "routine_checkup",
			Urgency:         3,
			Status:          domain.StatusScheduled,
		}

		b1 := base
		b1.ID = uuid.MustParse("00000000-0000-0000-0000-000000000901")
		b1.StartTime, b1.EndTime = start, end
		created, err := c.CreateBooking(ctx, b1)
		if err != nil {
			return err
		}

		rows, err := c.ListBookings(ctx, provider.ID, start.Add(-time.Minute), end.Add(time.Minute))
		if err != nil {
			return err
		}
		if len(rows) != 1 || rows[0].ID != created.ID {
			return fmt.Errorf("listed %d rows, want created booking", len(rows))
		}

		overlapping := base
		overlapping.StartTime, overlapping.EndTime = start.Add(15*time.Minute), end.Add(15*time.Minute)
		err = withSavepoint(ctx, tx, func() error {
			_, err := c.CreateBooking(ctx, overlapping)
			return err
		})
		if !errors.Is(err, store.ErrConflict) {
			return fmt.Errorf("overlap err = %v, want %v", err, store.ErrConflict)
		}

		adjacent := base
		adjacent.StartTime, adjacent.EndTime = end, end.Add(30*time.Minute)
		if _, err := c.CreateBooking(ctx, adjacent); err != nil {
			return err
		}

		if _, err := c.CreateBooking(ctx, b1); err != nil {
			return fmt.Errorf("idempotent replay: %w", err)
		}
		changed := b1
		changed.Notes = "different"
		if _, err := c.CreateBooking(ctx, changed); !errors.Is(err, store.ErrIdempotencyConflict) {
			return fmt.Errorf("idempotency err = %v, want %v", err, store.ErrIdempotencyConflict)
		}

		if err := c.SetBookingEventID(ctx, created.ID, "evt-1"); err != nil {
			return err
		}
		created.Status = domain.StatusCancelled
		if _, err := c.UpdateBooking(ctx, created); err != nil {
			return err
		}
		stored, err := c.GetBooking(ctx, created.ID)
		if err != nil {
			return err
		}
		if stored.ExternalEventID != "evt-1" {
			return fmt.Errorf("external event id = %q after update, want evt-1", stored.ExternalEventID)
		}
		again := base
		again.StartTime, again.EndTime = start, end
		if _, err := c.CreateBooking(ctx, again); err != nil {
			return fmt.Errorf("cancelled booking still blocks: %w", err)
		}

		return errRollback
	})
	if !errors.Is(err, errRollback) {
		t.Fatalf("tx error: %v", err)
	}
}

// withSavepoint rolls back to a savepoint when fn fails so the outer
// transaction stays usable.
func withSavepoint(ctx context.Context, tx bun.Tx, fn func() error) error {
	if _, err := tx.NewRaw("SAVEPOINT expect_err").Exec(ctx); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if _, rbErr := tx.NewRaw("ROLLBACK TO SAVEPOINT expect_err").Exec(ctx); rbErr != nil {
			return rbErr
		}
		return err
	}
	_, err := tx.NewRaw("RELEASE SAVEPOINT expect_err").Exec(ctx)
	return err
}

func randomHex(t *testing.T, bytesLen int) string {
	t.Helper()
	b := make([]byte, bytesLen)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("rand.Read error: %v", err)
	}
	return hex.EncodeToString(b)
}
