package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/dispute-service/internal/api/http"
	"github.com/spec-kit/dispute-service/internal/api/http/handlers"
	"github.com/spec-kit/dispute-service/internal/auth"
	"github.com/spec-kit/dispute-service/internal/config"
	"github.com/spec-kit/dispute-service/internal/events"
	"github.com/spec-kit/dispute-service/internal/observability"
	"github.com/spec-kit/dispute-service/internal/persistence"
	"github.com/spec-kit/dispute-service/internal/repository"
	"github.com/spec-kit/dispute-service/internal/service"
	"github.com/spec-kit/dispute-service/internal/worker"
	"github.com/spec-kit/dispute-service/internal/workflow"
)

type stores struct {
	disputes repository.DisputeRepository
	orders   repository.OrderLookup
	parties  repository.PartyDirectory
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	broadcaster := events.NewRedisBroadcaster(redis.Client, redis.ChannelPrefix, logger)
	notifications := service.NewNotificationService(dispatcher, broadcaster, logger, cfg.Notification)
	stopNotifications := worker.StartNotificationWorker(notifications)
	defer stopNotifications()

	st := openStores(pg, logger)
	disputeService := service.NewDisputeService(service.DisputeDependencies{
		DisputeRepo:    st.disputes,
		OrderLookup:    st.orders,
		PartyDirectory: st.parties,
		Machine: workflow.NewMachine(workflow.Policy{
			NegotiationWindow:        cfg.Dispute.NegotiationWindow(),
			RescheduleCeilingDays:    cfg.Dispute.RescheduleCeilingDays,
			EvidenceWindow:           cfg.Dispute.EvidenceWindow(),
			ReschedulePenaltyPercent: cfg.Dispute.ReschedulePenaltyPercent,
		}),
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Disputes:       handlers.NewDisputesHandler(disputeService),
		Admin:          handlers.NewAdminDisputesHandler(disputeService),
		Settlements:    handlers.NewSettlementsHandler(disputeService),
		Events:         handlers.NewEventsHandler(disputeService, broadcaster, logger),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			return fmt.Errorf("fiber listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return worker.StartDeadlineWorker(gctx, disputeService, cfg.Dispute.SweepInterval(), logger)
	})
	g.Go(func() error {
		waitForShutdown(gctx, logger)
		cancel()
		return app.Shutdown()
	})

	if err := g.Wait(); err != nil {
		logger.Error("service stopped with error", zap.Error(err))
	}
}

// openStores picks Postgres-backed stores when a pool is available and the
// in-memory ones otherwise.
func openStores(pg *persistence.Postgres, logger *zap.Logger) stores {
	if pool := pg.PoolHandle(); pool != nil {
		return stores{
			disputes: repository.NewDisputeRepository(pool),
			orders:   repository.NewOrderLookup(pool),
			parties:  repository.NewPartyDirectory(pool),
		}
	}
	logger.Warn("running with in-memory stores; data is lost on restart")
	return stores{
		disputes: repository.NewMemoryDisputeRepository(),
		orders:   repository.NewMemoryOrderLookup(),
		parties:  repository.NewMemoryPartyDirectory(),
	}
}

func waitForShutdown(ctx context.Context, logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logger.Info("shutting down", zap.Error(ctx.Err()))
	}
}
