package main

import (
	"context"
	"fmt"
	"os"

	"github.com/robfig/cron/v3"

	"tally/internal/cli"
	"tally/internal/config"
	applog "tally/internal/log"
	"tally/internal/notify"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentNotifier)
	logger.Info("Starting tally-notifier")

	cfg := cli.LoadAndValidateConfig(logger)
	store := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer store.Close()

	drainer := notify.NewDrainer(store, mailerFor(cfg, logger), cfg.NotifyBatchSize)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	// Drains must not overlap; two runs would pick up the same pending rows.
	scheduler := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	spec := fmt.Sprintf("@every %s", cfg.NotifyInterval)
	if _, err := scheduler.AddFunc(spec, func() { drain(ctx, logger, drainer) }); err != nil {
		logger.Error("Failed to schedule notification drain", "error", err, "schedule", spec)
		os.Exit(1)
	}

	drain(ctx, logger, drainer)
	scheduler.Start()
	logger.Info("Notification drainer scheduled",
		"schedule", spec,
		"batch_size", cfg.NotifyBatchSize,
		"smtp_enabled", cfg.SMTPHost != "")

	<-ctx.Done()

	logger.Info("Shutting down notifier...")
	stopped := scheduler.Stop()
	shutdownCtx, shutdownCancel := cli.ShutdownContext()
	defer shutdownCancel()
	select {
	case <-stopped.Done():
		logger.Info("Notifier stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown timeout reached with a drain still running")
	}
}

func drain(ctx context.Context, logger *applog.Logger, drainer *notify.Drainer) {
	if ctx.Err() != nil {
		return
	}
	if _, err := drainer.DrainOnce(ctx); err != nil && ctx.Err() == nil {
		logger.Error("Notification drain failed", "error", err)
	}
}

func mailerFor(cfg *config.Config, logger *applog.Logger) notify.Mailer {
	if cfg.SMTPHost == "" {
		logger.Info("SMTP disabled - notifications are logged instead of sent")
		return notify.LogMailer{}
	}
	return notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
}
