package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"voice-platform/internal/audit"
	"voice-platform/internal/auth"
	"voice-platform/internal/config"
	"voice-platform/internal/gate"
	"voice-platform/internal/httpapi"
	"voice-platform/internal/ledger"
	"voice-platform/internal/profile"
	"voice-platform/internal/recording"
	"voice-platform/internal/telephony"
	"voice-platform/internal/verify"
	"voice-platform/pkg/logger"
	"voice-platform/pkg/utils"

	"github.com/gin-gonic/gin"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, "pgx", cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
	if err != nil {
		log.Error("redis init failed", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	// Stores.
	profiles := profile.NewPostgresStore(db)
	entries := ledger.NewPostgresRepository(db)
	artifacts := recording.NewPostgresArtifactStore(db)
	auditSvc := audit.NewService(audit.NewPostgresRepo(db))

	// Billing: synchronous service plus the async worker the webhook path
	// enqueues into.
	ledgerSvc := ledger.NewService(profiles, entries)
	billing := ledger.NewWorker(ledgerSvc, log, ledger.WorkerConfig{})
	billing.Start(rootCtx)
	defer billing.Stop()

	callGate := &gate.Gate{
		Profiles:              profiles,
		DefaultCallerID:       cfg.Twilio.CallerID,
		RecordingCallbackURL:  cfg.WebhookURL("/webhooks/twilio/recording"),
		CallStatusCallbackURL: cfg.WebhookURL("/webhooks/twilio/call-status"),
		Log:                   log,
	}

	// Per-user active-call lease; a zero limit disables the cap entirely.
	var releaseLease func(ctx context.Context, userID string) error
	if cfg.Calls.LeaseLimit > 0 {
		lease := gate.NewRedisCallLease(rdb, cfg.Calls.LeaseLimit, cfg.Calls.LeaseTTL)
		callGate.Lease = lease
		releaseLease = lease.Release
	}

	pipeline := &recording.Pipeline{
		Billing:      billing,
		Audio:        recording.NewProviderAudioFetcher(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken),
		Objects:      recording.NewRESTObjectStore(cfg.Storage.BaseURL, cfg.Storage.ServiceKey, cfg.Storage.Bucket),
		Artifacts:    artifacts,
		ReleaseLease: releaseLease,
		Log:          log,
	}

	verifier, err := telephony.NewTwilioVerifier(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.VerifyServiceSID)
	if err != nil {
		log.Error("twilio verifier init failed", "err", err)
		os.Exit(1)
	}
	sessions := verify.NewSessions(func(userID string) *verify.Machine {
		return verify.NewMachine(verify.MachineConfig{
			UserID:            userID,
			Sender:            verifier,
			Checker:           verifier,
			Validator:         verifier,
			Profiles:          profiles,
			StatusCallbackURL: cfg.WebhookURL("/webhooks/twilio/caller-id"),
		})
	})

	deps := appDeps{
		Auth:     authManager,
		Gate:     callGate,
		Pipeline: pipeline,
		Profiles: profiles,
		Ledger:   ledgerSvc,
		Audit:    auditSvc,
		Sessions: sessions,
		API: httpapi.Handlers{
			Auth:     authManager,
			Profiles: profiles,
			Ledger:   ledgerSvc,
			Audit:    auditSvc,
		},
		VoiceToken: telephony.VoiceTokenIssuer{
			AccountSID:   cfg.Twilio.AccountSID,
			APIKeySID:    cfg.Twilio.APIKeySID,
			APIKeySecret: cfg.Twilio.APIKeySecret,
			TwiMLAppSID:  cfg.Twilio.TwiMLAppSID,
		},
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, deps)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}

	// Drain queued billing work before exit.
	billing.Stop()

	_ = logger.ShutdownFlush(shutdownCtx, 2*time.Second)
}
