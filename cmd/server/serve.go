package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/dasmlab/neurotranslate/pkg/server"
	"github.com/dasmlab/neurotranslate/pkg/service"
)

func newServeCommand(v *viper.Viper, load loadFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC and HTTP servers",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runServe(load)
		},
	}

	cmd.Flags().Int("grpc-port", 50051, "gRPC server port")
	cmd.Flags().String("http-addr", ":8080", "HTTP listen address for the web UI and API")
	cmd.Flags().Bool("insecure", true, "Run gRPC server in insecure mode (no TLS)")
	bindFlags(v, cmd, map[string]string{
		"server.grpc_port": "grpc-port",
		"server.http_addr": "http-addr",
		"server.insecure":  "insecure",
	})

	return cmd
}

func runServe(load loadFunc) error {
	cfg, logger, err := load()
	if err != nil {
		return err
	}

	logger.WithFields(logrus.Fields{
		"grpc_port":    cfg.Server.GRPCPort,
		"http_addr":    cfg.Server.HTTPAddr,
		"engine":       cfg.Engine.Backend,
		"device":       cfg.Engine.Device,
		"cache_policy": cfg.Engine.CachePolicy,
		"log_level":    cfg.Log.Level.String(),
	}).Info("Starting neurotranslate server")

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	// Verify backend is healthy
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	logger.Info("Checking inference backend health...")
	if err := a.backend.CheckHealth(ctx); err != nil {
		logger.WithError(err).Warn("Inference backend health check failed, but continuing anyway")
		logger.Warn("Server will start, but model loads may fail until the backend is ready")
	} else {
		logger.Info("Inference backend health check passed")
	}
	cancel()

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", cfg.Server.GRPCPort, err)
	}

	var opts []grpc.ServerOption
	if !cfg.Server.Insecure {
		logger.Warn("TLS requested but not configured, using insecure mode")
	}
	opts = append(opts, grpc.Creds(insecure.NewCredentials()))

	// Clients ping every 30s; allow down to 15s before treating it as abuse.
	opts = append(opts, grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
		MinTime:             15 * time.Second,
		PermitWithoutStream: true,
	}))
	opts = append(opts, grpc.KeepaliveParams(keepalive.ServerParameters{
		MaxConnectionIdle:     5 * time.Minute,
		MaxConnectionAge:      30 * time.Minute,
		MaxConnectionAgeGrace: 5 * time.Second,
		Time:                  30 * time.Second,
		Timeout:               10 * time.Second,
	}))

	s := grpc.NewServer(opts...)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(service.TranslatorServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	service.RegisterTranslatorServer(s, service.NewTranslationService(a.orchestrator, logger))

	// Enable reflection for grpcurl/debugging
	reflection.Register(s)

	jobQueue := service.NewJobQueue(logger)
	jobQueue.SetProcessor(service.NewJobProcessor(a.orchestrator, cfg.Requests.JobTimeout, logger))
	httpServer := server.NewHTTPServer(a.orchestrator, jobQueue, a.backend.CheckHealth, logger, cfg.Server.HTTPAddr)

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				jobQueue.CleanupOldJobs(cfg.Requests.JobRetention)
				logger.WithFields(logrus.Fields{
					"jobs":          jobQueue.Len(),
					"cached_models": a.engine.CachedModels(),
				}).Debug("Server metrics")
			case <-bgCtx.Done():
				return
			}
		}
	}()
	logger.WithFields(logrus.Fields{
		"cleanup_interval": "1m",
		"job_retention":    cfg.Requests.JobRetention.String(),
	}).Info("Started job cleanup goroutine")

	errChan := make(chan error, 2)
	go func() {
		logger.WithFields(logrus.Fields{
			"port": cfg.Server.GRPCPort,
		}).Info("gRPC server listening")
		if err := s.Serve(lis); err != nil {
			errChan <- fmt.Errorf("failed to serve gRPC: %w", err)
		}
	}()
	go func() {
		if err := httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("failed to serve HTTP: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		s.Stop()
		return err
	case sig := <-sigChan:
		logger.WithFields(logrus.Fields{
			"signal": sig.String(),
		}).Info("Received signal, shutting down gracefully...")
	}

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown failed")
	}

	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		logger.Info("Server stopped gracefully")
	case <-ctx.Done():
		logger.Warn("Graceful shutdown timeout, forcing stop...")
		s.Stop()
	}
	return nil
}
