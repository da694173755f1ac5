package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gameportal/portal-api/internal/config"
	"github.com/gameportal/portal-api/internal/domain/payment"
	"github.com/gameportal/portal-api/internal/domain/wallet"
	"github.com/gameportal/portal-api/internal/pkg/database"
	"github.com/gameportal/portal-api/internal/pkg/logger"
	"github.com/gameportal/portal-api/internal/pkg/mercadopago"
	"github.com/gameportal/portal-api/internal/pkg/stripehook"
)

// One-shot reconciliation sweep for operators: settles orders stuck in
// pending or processing from the provider's records. The API server runs the
// same sweep on a schedule; this binary exists for manual runs and cron jobs
// outside the server process.
func main() {
	cutoffMinutes := flag.Int("cutoff-minutes", 5, "only orders older than this many minutes are considered")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall run timeout")
	flag.Parse()

	cfg := config.Load()
	// Quiet by default; this runs from cron and only failures matter.
	logger.Init(logger.Config{Level: "warn", Environment: cfg.Env})

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to PostgreSQL")
		os.Exit(1)
	}
	defer database.ClosePostgres(db)

	mpClient := mercadopago.NewClient(cfg.MercadoPagoAccessToken, cfg.MercadoPagoBaseURL, 10*time.Second)

	svc := payment.NewService(payment.Config{
		BonusPercent: cfg.PurchaseBonusPercent,
	},
		payment.NewRepository(db),
		wallet.NewRepository(db),
		nil,
		mercadopago.NewVerifier(cfg.MercadoPagoSecret, cfg.MercadoPagoMaxSkew),
		stripehook.NewVerifier(cfg.StripeWebhookSecret, cfg.StripeMaxSkew),
		mpClient,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	n, err := svc.ReconcilePending(ctx, time.Duration(*cutoffMinutes)*time.Minute)
	if err != nil {
		log.Error().Err(err).Msg("Reconciliation sweep failed")
		os.Exit(1)
	}

	fmt.Printf("%d order(s) reconciled\n", n)
}
