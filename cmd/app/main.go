// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course-platform/internal/config"
	pg "course-platform/internal/infra/db/postgres"
	"course-platform/internal/infra/logging"
	"course-platform/internal/infra/metrics"
	"course-platform/internal/infra/payment"
	"course-platform/internal/infra/progress"
	red "course-platform/internal/infra/redis"
	"course-platform/internal/infra/sched"
	"course-platform/internal/infra/web"
	"course-platform/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	env := flag.String("env", "dev", "deployment environment (dev|staging|production)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *env)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, !cfg.Runtime.Production())
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	throttle := red.NewReverifyThrottle(redisClient, cfg.Redis.TTL)

	// ---- Repositories ----
	txManager := pg.NewTxManager(pool)
	purchaseRepo := pg.NewPurchaseRepo(pool)
	courseRepo := pg.NewCourseRepo(pool)
	userRepo := pg.NewUserRepo(pool)
	enrollRepo := pg.NewEnrollmentRepo(pool)

	// ---- Provider ----
	provider := payment.NewStripeProvider(
		cfg.Checkout.SecretKey,
		cfg.Checkout.WebhookSecret,
		cfg.Checkout.SuccessURL,
		cfg.Checkout.CancelURL,
	)
	tracker := progress.NewNoopTracker()

	// ---- Use cases ----
	enrollUC := usecase.NewEnrollmentUseCase(enrollRepo, txManager, logger)
	reconcileUC := usecase.NewReconcileUseCase(purchaseRepo, provider, enrollUC, locker, cfg.Checkout.VerifyTimeout, logger)

	recheck := sched.NewRecheck(reconcileUC, cfg.Sweeper.RecheckDelay, logger)
	defer recheck.Stop()

	checkoutUC := usecase.NewCheckoutUseCase(purchaseRepo, courseRepo, userRepo, provider, recheck, logger)
	webhookUC := usecase.NewWebhookUseCase(purchaseRepo, reconcileUC, logger)
	queryUC := usecase.NewQueryUseCase(purchaseRepo, courseRepo, enrollUC, tracker, reconcileUC, throttle, logger)

	// Force-all is an operator escape hatch for non-production environments;
	// the capability is decided here, once, not read ambiently later.
	adminUC := usecase.NewAdminUseCase(purchaseRepo, reconcileUC, usecase.Capability{
		AllowForceAll: !cfg.Runtime.Production(),
	}, logger)

	// ---- Sweeper ----
	sweeper := sched.NewSweeper(reconcileUC, purchaseRepo, cfg.Sweeper.Interval, cfg.Sweeper.Grace, cfg.Sweeper.LongAfter, cfg.Sweeper.Batch, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Auth.SessionSecret)
	srv := web.NewServer(checkoutUC, webhookUC, queryUC, adminUC, provider, auth, logger)
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: srv.Router(),
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Str("env", cfg.Runtime.Environment).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("http server")
		}
	}()

	// ---- Shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info().Msg("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
