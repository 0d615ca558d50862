package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/ssj-sketch/Statuswindow-sub001/internal/config"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/hudrpc"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/logging"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/orchestrator"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/scheduler"
	"github.com/ssj-sketch/Statuswindow-sub001/internal/state"
)

// #region main
func main() {
	configPath := flag.String("config", envOr("HUD_CONFIG", "config/hud.yaml"), "path to the YAML config")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("controller: %v", err)
	}
}

// #endregion main

// #region run
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if dir := filepath.Dir(cfg.Database.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}
	store, err := state.NewStore(cfg.Database.SQLitePath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	orchCfg, err := cfg.Orchestrator()
	if err != nil {
		return err
	}
	orch, err := orchestrator.New(store, orchCfg,
		orchestrator.WithLogger(logger),
		orchestrator.WithProvenance(store.DB()),
	)
	if err != nil {
		return err
	}

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.GRPCAddr, err)
	}
	srv := grpc.NewServer()
	hudrpc.RegisterHudServiceServer(srv, hudrpc.NewServer(orch, logger))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)
	healthSrv.SetServingStatus(hudrpc.ServiceName, healthpb.HealthCheckResponse_SERVING)

	sched := scheduler.New(ctx, orch, logger, time.Minute)
	if err := sched.Register(cfg.Schedule.RefreshCron, cfg.Schedule.PruneCron); err != nil {
		return err
	}

	logger.Info("controller ready",
		zap.String("db", cfg.Database.SQLitePath),
		zap.String("grpc", lis.Addr().String()),
		zap.String("refresh_cron", cfg.Schedule.RefreshCron),
		zap.String("prune_cron", cfg.Schedule.PruneCron),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve grpc: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		sched.Start()
		<-gctx.Done()

		logger.Info("shutting down")
		healthSrv.Shutdown()
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		srv.GracefulStop()
		return sched.Stop(stopCtx)
	})
	return g.Wait()
}

// #endregion run

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
