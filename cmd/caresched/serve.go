package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"caresched/backend/internal/ratelimit"
	grpcTransport "caresched/backend/internal/transport/grpc"
	"caresched/backend/internal/transport/rest"
)

func serveCmd(opts *rootOptions) *cobra.Command {
	var rosterPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC server and, when http.addr is set, the REST gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(opts, rosterPath)
		},
	}
	cmd.Flags().StringVar(&rosterPath, "roster", "", "Seed providers and clients from a roster YAML file before serving")
	return cmd
}

func runServer(opts *rootOptions, rosterPath string) error {
	log := newLogger(os.Stdout, "info")
	slog.SetDefault(log)

	cfg, err := opts.load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		return err
	}

	log = newLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(log)

	log.Info("starting",
		slog.String("grpc_addr", cfg.GRPCAddr),
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("store", cfg.StoreDriver),
		slog.String("calendar", cfg.Calendar.Driver),
		slog.String("log_level", cfg.LogLevel),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.close()

	if rosterPath != "" {
		if err := importRoster(ctx, a, rosterPath); err != nil {
			log.Error("roster seed failed", slog.Any("err", err))
			return err
		}
	}

	limiter := ratelimit.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	interceptors := []grpc.UnaryServerInterceptor{grpcTransport.DefaultRequestTimeout(cfg.GRPCRequestTimeout)}
	if limiter != nil {
		interceptors = append(interceptors, grpcTransport.RateLimit(limiter, log))
	}
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(interceptors...))
	grpcTransport.RegisterSchedulingService(grpcServer, grpcTransport.NewSchedulingServer(a.slots, a.bookings, log))

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr))
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr))

	var httpServer *http.Server
	if cfg.HTTPAddr != "" {
		handler := rest.NewHandler(a.slots, a.bookings, log)
		httpServer = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           rest.NewRouter(handler, limiter, cfg.GRPCRequestTimeout, cfg.HTTPCORSOrigins...),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		log.Info("http gateway started", slog.String("http_addr", cfg.HTTPAddr))
	}

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
		shutdown(log, grpcServer, httpServer, cfg.ShutdownTimeout)
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("server stopped with error", slog.Any("err", err))
			shutdown(log, grpcServer, httpServer, cfg.ShutdownTimeout)
			return err
		}
		return nil
	}
}

func shutdown(log *slog.Logger, s *grpc.Server, h *http.Server, timeout time.Duration) {
	log.Info("shutting down servers", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if h != nil {
		if err := h.Shutdown(ctx); err != nil {
			log.Warn("http graceful shutdown failed", slog.Any("err", err))
		}
	}

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}
