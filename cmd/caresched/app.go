package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"caresched/backend/internal/calendar"
	"caresched/backend/internal/config"
	"caresched/backend/internal/domain"
	"caresched/backend/internal/service/availability"
	"caresched/backend/internal/service/booking"
	"caresched/backend/internal/service/slots"
	"caresched/backend/internal/store"
	"caresched/backend/internal/store/memory"
	"caresched/backend/internal/store/postgres"
)

// app is the wired object graph shared by every command.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	db       *bun.DB
	store    store.Store
	slots    *slots.Recommender
	bookings *booking.Coordinator
}

func newApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store; data is lost on exit", storeLogAttrs(cfg)...)
		a.store = memory.New()
	default:
		log.Info("connecting to database", storeLogAttrs(cfg)...)
		db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
			MaxOpenConns:    cfg.DBMaxOpenConns,
			MaxIdleConns:    cfg.DBMaxIdleConns,
			ConnMaxLifetime: cfg.DBConnMaxLifetime,
			ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		})
		if err != nil {
			args := append([]any{slog.Any("err", err)}, storeLogAttrs(cfg)...)
			log.Error("database connection failed", args...)
			return nil, err
		}
		a.db = db
		a.store = postgres.NewScheduleRepo(db)
	}

	calClient, err := newCalendarClient(ctx, cfg.Calendar)
	if err != nil {
		a.close()
		return nil, err
	}
	mirror := calendar.NewMirror(calClient, cfg.Calendar.Timeout, log)

	sc := cfg.Scheduling
	resolver := availability.NewResolver(a.store, availability.BusinessHours{Start: sc.BusinessStart, End: sc.BusinessEnd}, sc.Location)
	a.slots = slots.NewRecommender(a.store, resolver, slots.Settings{
		Types:             sc.AppointmentTypes,
		Buffer:            sc.Buffer,
		Step:              sc.Step,
		Scorer:            domain.Scorer{Weights: sc.Weights, FullDayCapacity: sc.FullDayCapacity},
		MaxSlots:          sc.MaxSlots,
		MaxBookingsPerDay: sc.MaxBookingsPerDay,
		LookaheadDays:     sc.LookaheadDays,
		DefaultSearchDays: sc.DefaultSearchDays,
	}, log)
	a.bookings = booking.NewCoordinator(a.store, mirror, booking.Settings{
		Types:               sc.AppointmentTypes,
		Buffer:              sc.Buffer,
		MaxBookingsPerDay:   sc.MaxBookingsPerDay,
		DefaultScheduleDays: sc.DefaultScheduleDays,
		Location:            sc.Location,
	}, log)
	return a, nil
}

func (a *app) close() {
	if err := postgres.Close(a.db); err != nil {
		a.log.Warn("database close failed", slog.Any("err", err))
	}
}

func newCalendarClient(ctx context.Context, cfg config.Calendar) (calendar.Client, error) {
	switch cfg.Driver {
	case "google":
		c, err := calendar.NewGoogle(ctx, cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("google calendar: %w", err)
		}
		return c, nil
	case "ics":
		c, err := calendar.NewICSDir(cfg.ICSDir)
		if err != nil {
			return nil, fmt.Errorf("ics calendar dir: %w", err)
		}
		return c, nil
	default:
		return calendar.Noop{}, nil
	}
}

// storeLogAttrs describes the configured store without leaking credentials.
func storeLogAttrs(cfg config.Config) []any {
	attrs := []any{slog.String("store", cfg.StoreDriver)}
	if cfg.StoreDriver != "postgres" {
		return attrs
	}
	pc, err := pgconn.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return append(attrs, slog.String("db", "unparseable"))
	}
	return append(attrs, slog.Group("db",
		slog.String("host", pc.Host),
		slog.Int("port", int(pc.Port)),
		slog.String("name", pc.Database),
	))
}
