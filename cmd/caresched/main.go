package main

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"caresched/backend/internal/config"
)

const serviceName = "caresched"

type rootOptions struct {
	configPath string
	storeFlag  string
	output     string
}

func main() {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           serviceName,
		Short:         "Appointment slot recommendation and booking engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to a YAML config file (default $CARESCHED_CONFIG)")
	root.PersistentFlags().StringVar(&opts.storeFlag, "store", "", "Override store.driver (postgres or memory)")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "Output format: table, yaml or json")

	root.AddCommand(
		serveCmd(opts),
		migrateCmd(opts),
		rosterCmd(opts),
		providersCmd(opts),
		slotsCmd(opts),
		bookCmd(opts),
		updateCmd(opts),
		cancelCmd(opts),
		getCmd(opts),
		scheduleCmd(opts),
		bookingsCmd(opts),
		deleteBookingCmd(opts),
	)

	if err := root.Execute(); err != nil {
		newLogger(os.Stderr, "info").Error("command failed", slog.Any("err", err))
		os.Exit(1)
	}
}

func (o *rootOptions) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if o.storeFlag != "" {
		cfg.StoreDriver = strings.ToLower(o.storeFlag)
	}
	return cfg, nil
}

// newLogger builds the JSON logger. level uses slog's own names (debug, info,
// warn, error, optionally with an offset such as "info+2"); anything else
// falls back to info.
func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})).With(
		slog.String("service", serviceName),
	)
}
