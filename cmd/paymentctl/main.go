// File: cmd/paymentctl/main.go
//
// paymentctl is the operator tool for the payment reconciliation subsystem.
// It connects straight to the datastore and provider, bypassing the HTTP
// layer, so it works even when the API is down.
//
//	paymentctl -mode list  [-status pending] [-older 24h] [-limit 50]
//	paymentctl -mode fix     -id <purchase-id> [-force]
//	paymentctl -mode fix-all [-older 1h] [-force]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"course-platform/internal/config"
	"course-platform/internal/domain/model"
	"course-platform/internal/domain/ports/repository"
	pg "course-platform/internal/infra/db/postgres"
	"course-platform/internal/infra/logging"
	"course-platform/internal/infra/metrics"
	"course-platform/internal/infra/payment"
	red "course-platform/internal/infra/redis"
	"course-platform/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	env := flag.String("env", "dev", "deployment environment (dev|staging|production)")
	mode := flag.String("mode", "list", "list | fix | fix-all")
	id := flag.String("id", "", "purchase ID (fix mode)")
	status := flag.String("status", "", "status filter (list mode)")
	older := flag.Duration("older", 0, "minimum pending age (list, fix-all)")
	limit := flag.Int("limit", 50, "max rows (list mode)")
	force := flag.Bool("force", false, "mark succeeded without provider confirmation")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *env)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, !cfg.Runtime.Production())
	metrics.MustRegister()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	txManager := pg.NewTxManager(pool)
	purchaseRepo := pg.NewPurchaseRepo(pool)
	enrollRepo := pg.NewEnrollmentRepo(pool)
	provider := payment.NewStripeProvider(
		cfg.Checkout.SecretKey,
		cfg.Checkout.WebhookSecret,
		cfg.Checkout.SuccessURL,
		cfg.Checkout.CancelURL,
	)

	enrollUC := usecase.NewEnrollmentUseCase(enrollRepo, txManager, logger)
	reconcileUC := usecase.NewReconcileUseCase(purchaseRepo, provider, enrollUC, red.NewLocker(redisClient), cfg.Checkout.VerifyTimeout, logger)
	adminUC := usecase.NewAdminUseCase(purchaseRepo, reconcileUC, usecase.Capability{
		AllowForceAll: !cfg.Runtime.Production(),
	}, logger)

	switch *mode {
	case "list":
		f := repository.PurchaseFilter{Status: model.PurchaseStatus(*status), Limit: *limit}
		if *older > 0 {
			f.OlderThan = time.Now().Add(-*older)
		}
		list, err := adminUC.ListPurchases(ctx, f)
		if err != nil {
			logger.Fatal().Err(err).Msg("list purchases")
		}
		printTable(list)

	case "fix":
		if *id == "" {
			logger.Fatal().Msg("fix mode requires -id")
		}
		out, err := adminUC.FixPurchase(ctx, *id, *force)
		if err != nil {
			logger.Fatal().Err(err).Str("purchase_id", *id).Msg("fix failed")
		}
		fmt.Printf("%s\t%s\n", *id, out)

	case "fix-all":
		report, err := adminUC.FixAllPending(ctx, *older, *force)
		if err != nil {
			logger.Fatal().Err(err).Msg("fix-all failed")
		}
		fmt.Printf("examined=%d fixed=%d errors=%d\n", report.Examined, report.Fixed, report.Errors)
		if report.Errors > 0 {
			os.Exit(1)
		}

	default:
		logger.Fatal().Str("mode", *mode).Msg("unknown mode")
	}
}

func printTable(list []*model.Purchase) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSER\tCOURSE\tSTATUS\tAMOUNT\tCREATED\tSESSION")
	for _, p := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d %s\t%s\t%s\n",
			p.ID, p.UserID, p.CourseID, p.Status, p.Amount, p.Currency,
			p.CreatedAt.Format(time.RFC3339), p.SessionID)
	}
	w.Flush()
	fmt.Printf("%d purchase(s)\n", len(list))
}
