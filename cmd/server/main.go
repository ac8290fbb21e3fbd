package main

import (
	"context"
	"fmt"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"iotgate/internal/api"
	apihandlers "iotgate/internal/api/handlers"
	"iotgate/internal/engine/notify"
	"iotgate/internal/engine/storage"
	"iotgate/internal/gateway"
	"iotgate/internal/gateway/handlers"
	"iotgate/internal/platform/audit"
	"iotgate/internal/platform/auth"
	"iotgate/internal/platform/config"
	"iotgate/internal/platform/database"
	"iotgate/internal/platform/repositories"
	"iotgate/internal/pkg/logger"
)

func main() {
	configPath := "configs/config.yaml"
	if v := os.Getenv("IOTGATE_CONFIG"); v != "" {
		configPath = v
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		stdlog.Fatalf("Failed to load config: %v", err)
	}

	logger.Init(cfg.Logging)

	db, err := database.New(cfg.Database)
	if err != nil {
		stdlog.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	clock := clockwork.NewRealClock()

	// Repositories
	orgRepo := repositories.NewOrganizationRepository(db)
	userRepo := repositories.NewUserRepository(db)
	membershipRepo := repositories.NewMembershipRepository(db)
	apiKeyRepo := repositories.NewAPIKeyRepository(db)
	quotaRepo := repositories.NewQuotaRepository(db)
	logRepo := repositories.NewRequestLogRepository(db)
	deviceRepo := repositories.NewDeviceRepository(db)
	endpointRepo := repositories.NewEndpointRepository(db)
	storageRepo := repositories.NewStorageProfileRepository(db)
	billingRepo := repositories.NewBillingRepository(db)

	// Services
	tokenSvc := auth.NewTokenService(cfg.JWT)
	auditLog := audit.NewLogger(db)
	dispatcher := notify.NewDispatcher(cfg.Notify.DeliveryTimeout)
	fileStore := storage.NewLocal(cfg.Storage.BasePath)

	validator := gateway.NewCredentialValidator(apiKeyRepo, membershipRepo, tokenSvc, clock)
	tracker := gateway.NewQuotaTracker(quotaRepo, clock)
	recorder := gateway.NewRecorder(logRepo, clock, cfg.Telemetry.BufferSize, cfg.Telemetry.FlushInterval)
	recorder.Start()
	defer recorder.Stop()

	analyticsSvc := gateway.NewAnalyticsService(logRepo)

	// Gateway route table
	gwRouter := gateway.NewRouter()
	handlers.Register(gwRouter, &handlers.Dependencies{
		Devices:   handlers.NewDeviceHandler(deviceRepo),
		Endpoints: handlers.NewEndpointHandler(endpointRepo, dispatcher),
		Files:     handlers.NewFilesHandler(storageRepo, fileStore),
		Orgs:      handlers.NewOrgHandler(orgRepo, membershipRepo),
		Billing:   handlers.NewBillingHandler(billingRepo),
		Keys:      handlers.NewKeyHandler(apiKeyRepo, quotaRepo, logRepo, tracker, auditLog, cfg.Quota),
		Analytics: handlers.NewAnalyticsHandler(analyticsSvc),
	})

	gw := gateway.New(gwRouter, validator, tracker, recorder, cfg.Gateway.MountPrefix, clock)

	// Outer surface
	authHandler := apihandlers.NewAuthHandler(userRepo, orgRepo, membershipRepo, billingRepo, tokenSvc)
	healthHandler := apihandlers.NewHealthHandler(db)
	router := api.NewRouter(authHandler, healthHandler, gw)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			stdlog.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}
