package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/gameportal/portal-api/internal/config"
	"github.com/gameportal/portal-api/internal/domain/fraud"
	"github.com/gameportal/portal-api/internal/domain/payment"
	"github.com/gameportal/portal-api/internal/domain/transfer"
	"github.com/gameportal/portal-api/internal/domain/wallet"
	"github.com/gameportal/portal-api/internal/middleware"
	"github.com/gameportal/portal-api/internal/pkg/database"
	"github.com/gameportal/portal-api/internal/pkg/gamedb"
	"github.com/gameportal/portal-api/internal/pkg/idempotency"
	"github.com/gameportal/portal-api/internal/pkg/jwt"
	"github.com/gameportal/portal-api/internal/pkg/logger"
	"github.com/gameportal/portal-api/internal/pkg/mercadopago"
	"github.com/gameportal/portal-api/internal/pkg/response"
	"github.com/gameportal/portal-api/internal/pkg/stripehook"
)

func main() {
	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, Environment: cfg.Env})

	log.Info().
		Str("env", cfg.Env).
		Str("port", cfg.Port).
		Msg("Starting Portal API")

	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer database.ClosePostgres(db)

	redis, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer database.CloseRedis(redis)

	jwtService := jwt.NewService(cfg.JWTSecret, cfg.JWTAccessTTL)

	// ---------- Game store gateway ----------
	gameHealth := gamedb.NewHealth(gamedb.HealthConfig{
		CheckCooldown:        cfg.GameDBCheckCooldown,
		ResetCooldown:        cfg.GameDBResetCooldown,
		ErrorWindow:          cfg.GameDBErrorWindow,
		MaxConsecutiveErrors: cfg.GameDBMaxConsecutiveErrs,
	})
	gateway := gamedb.New(gamedb.Config{
		Enabled:        cfg.GameDBEnabled,
		User:           cfg.GameDBUser,
		Password:       cfg.GameDBPassword,
		Host:           cfg.GameDBHost,
		Port:           cfg.GameDBPort,
		Name:           cfg.GameDBName,
		PoolSize:       cfg.GameDBPoolSize,
		MaxOverflow:    cfg.GameDBMaxOverflow,
		ConnectTimeout: cfg.GameDBConnectTimeout,
		ReadTimeout:    cfg.GameDBReadTimeout,
		WriteTimeout:   cfg.GameDBWriteTimeout,
		PoolTimeout:    cfg.GameDBPoolTimeout,
		PingTimeout:    cfg.GameDBPingTimeout,
		CacheTTL:       cfg.GameDBCacheTTL,
	}, gameHealth)
	defer gateway.Close()

	catalog, err := gamedb.NewCatalog(gamedb.CatalogConfig{
		Variant:      cfg.GameDBSchemaVariant,
		CharIDColumn: cfg.GameDBCharIDColumn,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid game schema configuration")
	}
	characterStore := gamedb.NewCharacterStore(gateway, catalog)

	// ---------- Repositories ----------
	walletRepo := wallet.NewRepository(db)
	paymentRepo := payment.NewRepository(db)
	fraudRepo := fraud.NewRepository(db)
	incidentRepo := transfer.NewIncidentRepository(db)
	accountRepo := transfer.NewAccountRepository(db)

	// ---------- Services ----------
	walletService := wallet.NewService(walletRepo)

	keeper := idempotency.NewKeeper(redis, cfg.TransferLockTTL, cfg.TransferMarkerTTL)

	transferService := transfer.NewService(transfer.Config{
		MinAmount:      cfg.TransferMinAmount,
		MaxAmount:      cfg.TransferMaxAmount,
		CoinID:         cfg.CoinID,
		CoinMultiplier: cfg.CoinMultiplier,
		BonusEnabled:   cfg.BonusTransferEnable,
	}, walletRepo, characterStore, accountRepo, keeper, incidentRepo)

	fraudService := fraud.NewService(fraud.Config{
		Threshold:     cfg.FraudAlertThreshold,
		Window:        cfg.FraudAlertWindow,
		AlertCooldown: cfg.FraudAlertCooldown,
	}, fraudRepo, fraud.LogNotifier{})

	mpVerifier := mercadopago.NewVerifier(cfg.MercadoPagoSecret, cfg.MercadoPagoMaxSkew)
	stripeVerifier := stripehook.NewVerifier(cfg.StripeWebhookSecret, cfg.StripeMaxSkew)
	mpClient := mercadopago.NewClient(cfg.MercadoPagoAccessToken, cfg.MercadoPagoBaseURL, 10*time.Second)

	paymentService := payment.NewService(payment.Config{
		BonusPercent: cfg.PurchaseBonusPercent,
	}, paymentRepo, walletRepo, fraudService, mpVerifier, stripeVerifier, mpClient)

	// ---------- Handlers ----------
	walletHandler := wallet.NewHandler(walletService)
	transferHandler := transfer.NewHandler(transferService)
	paymentHandler := payment.NewHandler(paymentService)

	authMiddleware := middleware.Auth(jwtService)

	// ---------- Router ----------
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recover)
	r.Use(middleware.CORSHandler(cfg.AllowedOrigins))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]any{
			"status":  "ok",
			"gamedb":  gameHealth.Snapshot(),
			"version": "1.0.0",
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		// Provider callbacks authenticate by signature, not session.
		r.Mount("/webhooks", paymentHandler.WebhookRoutes())

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Mount("/wallet", walletHandler.Routes())
			r.Mount("/transfers", transferHandler.Routes())
			r.Mount("/payments", paymentHandler.Routes())
		})
	})

	// ---------- Reconciliation sweep ----------
	scheduler := cron.New()
	_, err = scheduler.AddFunc(cfg.ReconcileSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := paymentService.ReconcilePending(ctx, cfg.ReconcileCutoff); err != nil {
			log.Error().Err(err).Msg("Reconciliation sweep failed")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.ReconcileSchedule).Msg("Invalid reconcile schedule")
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited properly")
}
