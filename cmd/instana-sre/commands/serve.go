package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/miradorstack/instana-sre/internal/actions"
	"github.com/miradorstack/instana-sre/internal/api"
	"github.com/miradorstack/instana-sre/internal/services"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the operations over HTTP and, when configured, gRPC",
	Long: `Serve GET /prc-details, /trigger and /recommend on server.address, the
instana.sre.v1.Operations gRPC service on server.grpcAddress and Prometheus
metrics on server.metricsAddress.`,
	RunE: runServe,
}

func runServe(_ *cobra.Command, _ []string) error {
	rt, err := setup(false)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := rt.cfg
	logger := rt.logger
	logger.Info("starting instana-sre", slog.String("address", cfg.Server.Address), slog.String("version", Version))

	ops := services.NewOpsService(
		logger,
		rt.pipeline(cfg.Output.Path(cfg.Output.PRCFile)),
		actions.NewRecommender(logger, rt.client, rt.actionOptions(cfg.Output.Path(cfg.Output.RecommendFile))),
		actions.NewRemediator(logger, rt.client, rt.resolver(), rt.actionOptions(cfg.Output.Path(cfg.Output.RemediationFile))),
	)

	ctx, stop := signalContext()
	defer stop()

	httpServer, err := api.NewHTTPServer(cfg.Server, api.NewHandler(logger, ops))
	if err != nil {
		return err
	}
	go func() {
		logger.Info("http server listening", slog.String("address", httpServer.Address()))
		if err := httpServer.Start(); err != nil {
			logger.Error("http server exited", slog.Any("error", err))
			stop()
		}
	}()

	var grpcServer *api.Server
	if cfg.Server.GRPCAddress != "" {
		grpcServer, err = api.NewServer(cfg.Server, ops)
		if err != nil {
			return err
		}
		go func() {
			logger.Info("grpc server listening", slog.String("address", grpcServer.Address()))
			if err := grpcServer.Start(); err != nil {
				logger.Error("grpc server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}
	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
	}

	logger.Info("instana-sre stopped")
	return nil
}
