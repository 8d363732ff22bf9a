package main

import (
	"errors"
	"net/http"
	"os"
	"sync"

	"tally/internal/bank"
	"tally/internal/cli"
	apphttp "tally/internal/http"
	applog "tally/internal/log"
	"tally/internal/realtime"
	"tally/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	b := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("Backend close error", "error", err)
		}
	}()

	var wg sync.WaitGroup
	if b.UsesBroker() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.ConsumeChanges(ctx); err != nil && !errors.Is(err, ctx.Err()) {
				logger.Error("Change consumer stopped", "error", err)
			}
		}()
	}

	var syncer *bank.SyncProcessor
	if cfg.PlaidEnabled() {
		syncer = bank.NewSyncProcessor(b.Bank, bank.SyncProcessorConfig{PollInterval: cfg.BankSyncInterval})
		if err := syncer.Start(ctx); err != nil {
			logger.Error("Failed to start bank sync processor", "error", err)
			os.Exit(1)
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Accounts:      b.Accounts,
		Access:        b.Access,
		Ledger:        b.Ledger,
		Collaborators: b.Collaborators,
		Records:       b.Records,
		Reports:       b.Reports,
		Importer:      b.Importer,
		Bank:          b.Bank,
		Hub:           b.Hub,
		Tokens:        apphttp.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		DB:            b.Store,
		Logger:        logger.WithComponent(applog.ComponentHTTP),

		CORSOrigins:       cfg.CORSOrigins,
		RequestsPerMinute: cfg.RequestsPerMinute,
		InviteTTL:         services.DefaultInviteTTL,
		StreamHeartbeat:   realtime.DefaultHeartbeat,
	})

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, shutdownCancel := cli.ShutdownContext()
		defer shutdownCancel()

		if syncer != nil {
			if err := syncer.Stop(shutdownCtx); err != nil {
				logger.Error("Bank sync processor shutdown error", "error", err)
			}
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", "error", err)
		}
	}()

	logger.Info("Starting tally server",
		"port", cfg.Port,
		"amqp_enabled", b.UsesBroker(),
		"plaid_enabled", cfg.PlaidEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		cancel()
		<-shutdownDone
		wg.Wait()
		_ = b.Close()
		os.Exit(1)
	}

	<-shutdownDone
	wg.Wait()

	requests, limits, detection := srv.Metrics()
	logger.Info("Server stopped gracefully",
		"requests", requests.TotalRequests,
		"rate_limit_hits", limits.TotalHits,
		"blocked", detection.BlockedRequests)
}
