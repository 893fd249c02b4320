package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"caresched/backend/internal/domain"
	"caresched/backend/internal/roster"
	"caresched/backend/internal/service/booking"
	"caresched/backend/internal/service/slots"
	"caresched/backend/internal/store/postgres"
	"caresched/backend/internal/transport/view"
)

// run loads config, wires the app and hands it to fn. Logs go to stderr so
// command output stays clean on stdout.
func run(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app, out *printer) error) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	log := newLogger(os.Stderr, cfg.LogLevel)

	out, err := newPrinter(cmd.OutOrStdout(), opts.output)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(ctx, a, out)
}

func migrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply embedded database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app, out *printer) error {
				if a.db == nil {
					return fmt.Errorf("migrate needs store.driver=postgres")
				}
				applied, err := postgres.Migrate(ctx, a.db)
				if err != nil {
					return err
				}
				a.log.Info("migrations applied", slog.Int("count", len(applied)))
				return out.lines("applied", applied)
			})
		},
	}
}

func rosterCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roster",
		Short: "Manage providers, availability and clients",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "import <file>",
		Short: "Create or update providers and clients from a roster YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app, out *printer) error {
				return importRoster(ctx, a, args[0])
			})
		},
	})
	return cmd
}

func importRoster(ctx context.Context, a *app, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := roster.Decode(f)
	if err != nil {
		return err
	}
	res, err := roster.Apply(ctx, a.store, r, a.log)
	if err != nil {
		return err
	}
	a.log.Info("roster imported",
		slog.Int("providers_created", res.ProvidersCreated),
		slog.Int("providers_updated", res.ProvidersUpdated),
		slog.Int("clients_created", res.ClientsCreated),
		slog.Int("clients_skipped", res.ClientsSkipped),
		slog.Int("windows", res.Windows),
	)
	return nil
}

func providersCmd(opts *rootOptions) *cobra.Command {
	var (
		specialty       string
		includeInactive bool
	)
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "List providers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, func(ctx context.Context, a *app, out *printer) error {
				rows, err := a.bookings.ListProviders(ctx, specialty, includeInactive)
				if err != nil {
					return err
				}
				return out.providers(view.FromProviders(rows))
			})
		},
	}
	cmd.Flags().StringVar(&specialty, "specialty", "", "Only providers of this specialty")
	cmd.Flags().BoolVar(&includeInactive, "all", false, "Include inactive providers")
	return cmd
}

func slotsCmd(opts *rootOptions) *cobra.Command {
	var (
		apptType    string
		urgency     int
		providerIDs []string
		specialty   string
		preferred   string
		from, to    string
		limit       int
	)
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Suggest ranked appointment slots",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := slots.Request{AppointmentType: apptType, Urgency: urgency, Specialty: specialty, Limit: limit}
			for _, raw := range providerIDs {
				id, err := uuid.Parse(raw)
				if err != nil {
					return fmt.Errorf("--provider %q: %w", raw, err)
				}
				req.ProviderIDs = append(req.ProviderIDs, id)
			}
			if preferred != "" {
				t, err := domain.ParseTimeOfDay(preferred)
				if err != nil {
					return err
				}
				req.PreferredTime = &t
			}
			var err error
			if req.From, err = parseOptionalTime(from); err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			if req.To, err = parseOptionalTime(to); err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			return run(cmd, opts, func(ctx context.Context, a *app, out *printer) error {
				got, err := a.slots.Suggest(ctx, req)
				if err != nil {
					return err
				}
				return out.slots(view.FromSlots(got))
			})
		},
	}
	cmd.Flags().StringVar(&apptType, "type", "", "Appointment type")
	cmd.Flags().IntVar(&urgency, "urgency", domain.DefaultUrgency, "Urgency 1..5")
	cmd.Flags().StringSliceVar(&providerIDs, "provider", nil, "Restrict to these provider ids")
	cmd.Flags().StringVar(&specialty, "specialty", "", "Restrict to a specialty")
	cmd.Flags().StringVar(&preferred, "preferred-time", "", "Preferred time of day (HH:MM)")
	cmd.Flags().StringVar(&from, "from", "", "Search start (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Search end (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of slots")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func bookCmd(opts *rootOptions) *cobra.Command {
	var (
		in              booking.CreateInput
		provider, client string
		start, end       string
	)
	cmd := &cobra.Command{
		Use:   "book",
		Short: "Create a booking",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			if in.ProviderID, err = uuid.Parse(provider); err != nil {
				return fmt.Errorf("--provider: %w", err)
			}
			if in.ClientID, err = uuid.Parse(client); err != nil {
				return fmt.Errorf("--client: %w", err)
			}
			if in.StartTime, err = time.Parse(time.RFC3339, start); err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			if in.EndTime, err = parseOptionalTime(end); err != nil {
				return fmt.Errorf("--end: %w", err)
			}
			return run(cmd, opts, func(ctx context.Context, a *app, out *printer) error {
				b, err := a.bookings.Create(ctx, in)
				if err != nil {
					return err
				}
				return out.bookings([]view.Booking{view.FromBooking(b)})
			})
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Provider id")
	cmd.Flags().StringVar(&client, "client", "", "Client id")
	cmd.Flags().StringVar(&start, "start", "", "Start time (RFC 3339)")
	cmd.Flags().StringVar(&end, "end", "", "End time (RFC 3339); derived from the type when omitted")
	cmd.Flags().StringVar(&in.AppointmentType, "type", "", "Appointment type")
	cmd.Flags().IntVar(&in.Urgency, "urgency", domain.DefaultUrgency, "Urgency 1..5")
	cmd.Flags().StringVar(&in.Notes, "notes", "", "Free-form notes")
	cmd.Flags().StringVar(&in.IdempotencyKey, "idempotency-key", "", "Replays return the original booking")
	for _, f := range []string{"provider", "client", "start", "type"} {
		_ = cmd.MarkFlagRequired(f)
	}
	return cmd
}

func updateCmd(opts *rootOptions) *cobra.Command {
	var start, end, status, notes string
	var urgency int
	cmd := &cobra.Command{
		Use:   "update <booking-id>",
		Short: "Reschedule a booking or change its status, notes or urgency",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}
			in := booking.UpdateInput{ID: id}
			flags := cmd.Flags()
			if flags.Changed("start") {
				t, err := time.Parse(time.RFC3339, start)
				if err != nil {
					return fmt.Errorf("--start: %w", err)
				}
				in.StartTime = &t
			}
			if flags.Changed("end") {
				t, err := time.Parse(time.RFC3339, end)
				if err != nil {
					return fmt.Errorf("--end: %w", err)
				}
				in.EndTime = &t
			}
			if flags.Changed("status") {
				st, err := domain.ParseBookingStatus(status)
				if err != nil {
					return err
				}
				in.Status = &st
			}
			if flags.Changed("notes") {
				in.Notes = &notes
			}
			if flags.Changed("urgency") {
				in.Urgency = &urgency
			}
			return run(cmd, opts, func(ctx context.Context, a *app, out *printer) error {
				b, err := a.bookings.Update(ctx, in)
				if err != nil {
					return err
				}
				return out.bookings([]view.Booking{view.FromBooking(b)})
			})
		},
	}
	cmd.Flags().StringVar(&start, "start", "", "New start time (RFC 3339)")
	cmd.Flags().StringVar(&end, "end", "", "New end time (RFC 3339)")
	cmd.Flags().StringVar(&status, "status", "", "completed, cancelled or no_show")
	cmd.Flags().StringVar(&notes, "notes", "", "Replace notes")
	cmd.Flags().IntVar(&urgency, "urgency", 0, "New urgency 1..5")
	return cmd
}

func cancelCmd(opts *rootOptions) *cobra.Command {
	return bookingIDCmd(opts, "cancel <booking-id>", "Cancel a booking", func(ctx context.Context, a *app, id uuid.UUID) (domain.Booking, error) {
		return a.bookings.Cancel(ctx, id)
	})
}

func getCmd(opts *rootOptions) *cobra.Command {
	return bookingIDCmd(opts, "get <booking-id>", "Show a booking", func(ctx context.Context, a *app, id uuid.UUID) (domain.Booking, error) {
		return a.bookings.Get(ctx, id)
	})
}

func bookingIDCmd(opts *rootOptions, use, short string, fn func(ctx context.Context, a *app, id uuid.UUID) (domain.Booking, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}
			return run(cmd, opts, func(ctx context.Context, a *app, out *printer) error {
				b, err := fn(ctx, a, id)
				if err != nil {
					return err
				}
				return out.bookings([]view.Booking{view.FromBooking(b)})
			})
		},
	}
}

func scheduleCmd(opts *rootOptions) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "schedule <provider-id>",
		Short: "List a provider's bookings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}
			fromT, err := parseOptionalTime(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			toT, err := parseOptionalTime(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}
			return run(cmd, opts, func(ctx context.Context, a *app, out *printer) error {
				rows, err := a.bookings.ProviderSchedule(ctx, id, fromT, toT)
				if err != nil {
					return err
				}
				return out.bookings(view.FromBookings(rows))
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "Range start (default now)")
	cmd.Flags().StringVar(&to, "to", "", "Range end (default a week after start)")
	return cmd
}

func bookingsCmd(opts *rootOptions) *cobra.Command {
	var includePast bool
	cmd := &cobra.Command{
		Use:   "bookings <client-id>",
		Short: "List a client's bookings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}
			return run(cmd, opts, func(ctx context.Context, a *app, out *printer) error {
				rows, err := a.bookings.ClientBookings(ctx, id, includePast)
				if err != nil {
					return err
				}
				return out.bookings(view.FromBookings(rows))
			})
		},
	}
	cmd.Flags().BoolVar(&includePast, "past", false, "Include bookings that already started")
	return cmd
}

func deleteBookingCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-booking <booking-id>",
		Short: "Remove a booking record outright (administrative)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return err
			}
			return run(cmd, opts, func(ctx context.Context, a *app, out *printer) error {
				if err := a.store.DeleteBooking(ctx, id); err != nil {
					return err
				}
				a.log.Info("booking deleted", slog.String("booking_id", id.String()))
				return nil
			})
		},
	}
}

// parseOptionalTime accepts RFC 3339 or a bare date (midnight UTC).
func parseOptionalTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}
