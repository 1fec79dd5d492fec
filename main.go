package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"matchserver/internal/config"
	"matchserver/internal/db"
	"matchserver/internal/gateway"
	"matchserver/internal/match"
	"matchserver/internal/room"
	"matchserver/internal/session"
	"matchserver/internal/store"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg := config.Config

	if err := db.InitMySQL(); err != nil {
		logger.Fatal("mysql init failed", zap.Error(err))
	}
	defer func() {
		if err := db.CloseMySQL(); err != nil {
			logger.Error("mysql close failed", zap.Error(err))
		}
	}()

	if err := db.InitMongo(); err != nil {
		logger.Fatal("mongo init failed", zap.Error(err))
	}
	defer db.CloseMongo()

	registry := session.NewRegistry(logger)
	queues := match.NewQueues()
	pool := room.NewPool(logger)
	recorder := store.NewMatchRecorder(db.DB, logger)

	modes := match.DefaultModes()
	if cfg.MatchModes != "" {
		modes, err = match.ParseModes(cfg.MatchModes)
		if err != nil {
			logger.Fatal("bad MATCH_MODES", zap.Error(err))
		}
	}

	svc := match.NewService(modes, queues, pool, registry, recorder, logger)
	registry.OnDisconnect(svc.Disconnect)

	gw := gateway.NewServer(registry, svc, logger)
	mux := http.NewServeMux()
	gw.RegisterRoutes(mux)

	addr := cfg.WSHost + ":" + strconv.Itoa(cfg.WSPort)
	srv := &http.Server{Addr: addr, Handler: mux}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server running", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return registry.RunSweep(ctx, cfg.SweepInterval, cfg.HeartbeatTimeout)
	})

	g.Go(func() error {
		return svc.RunSweep(ctx, cfg.MatchSweepInterval)
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("server error", zap.Error(err))
	}
	logger.Info("server stopped")
}
