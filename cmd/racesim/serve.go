package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"

	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/metrics"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/montecarlo"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/internal/server"
	"github.com/emy-olivieri/Formula-1-Race-Time-Simulation-and-Strategy-Optimization/pkg/config"
)

// runServer serves batches over HTTP and gRPC until ctx is cancelled
func runServer(ctx context.Context, cfg *config.Config, runner *montecarlo.Runner, m *metrics.Manager, log *slog.Logger) error {
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	store := server.NewBatchStore()
	executor := server.NewBatchExecutor(store, runner,
		server.WithExecutorLogger(log),
		server.WithExecutorMetrics(m),
		server.WithNotifier(server.NewNotifier()),
	)

	grpcServer := grpc.NewServer()
	server.RegisterRaceSimServer(grpcServer, server.NewRaceSimGRPCServer(store, executor))

	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen for gRPC on %s: %w", cfg.GRPCAddr, err)
	}

	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewHTTPServer(store, executor, m).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Info("gRPC server listening", "addr", cfg.GRPCAddr)
		if err := grpcServer.Serve(grpcLis); err != nil {
			log.Error("gRPC server error", "error", err)
			stop()
		}
	}()

	go func() {
		log.Info("HTTP server listening", "addr", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("Shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown error", "error", err)
	}
	// SimulateRace calls block on their batch, so batches stop before gRPC drains.
	if err := executor.Shutdown(shutdownCtx); err != nil {
		log.Error("Batch shutdown error", "error", err)
	}
	grpcServer.GracefulStop()
	return nil
}
