// Package backend assembles the service graph shared by the tally binaries.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tally/internal/amqp"
	"tally/internal/bank"
	"tally/internal/cache"
	"tally/internal/config"
	"tally/internal/importer"
	"tally/internal/realtime"
	"tally/internal/report"
	"tally/internal/services"
	gsheet "tally/internal/sheets/google"
	"tally/internal/storage"
	"tally/internal/worker"
)

// Backend holds every service wired against one SQLite store.
type Backend struct {
	Store         *storage.SQLiteRepository
	Access        *services.AccessService
	Accounts      *services.AccountService
	Ledger        *services.LedgerService
	Collaborators *services.CollaboratorService
	Records       *services.RecordService
	Reports       *report.Service
	Hub           *realtime.Hub
	Changes       *worker.ChangeWorker
	Importer      *importer.Importer
	Bank          *bank.Service
	// Sheets is nil unless a service account is configured.
	Sheets *gsheet.Client

	broker   *amqp.Client
	cleanups []func() error
}

// Factory builds backends from the application config.
type Factory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{logger: logger}
}

// Build opens the store and wires the services. Change events go through
// the AMQP broker when one is configured and straight to the local
// ChangeWorker otherwise.
func (f *Factory) Build(ctx context.Context, cfg *config.Config) (*Backend, error) {
	store, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("initialize SQLite repository: %w", err)
	}
	b := &Backend{Store: store}
	b.onClose(store.Close)

	access, err := services.NewAccessService(store, cfg.AccessCacheTTL)
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("initialize access service: %w", err)
	}
	b.Access = access
	b.onClose(func() error { access.Close(); return nil })

	b.Reports = report.NewService(store, cfg.ReportCacheTTL)
	if cleaner, ok := b.Reports.Cache().(cache.Cleaner); ok && cfg.ReportCacheTTL > 0 {
		sweeper := cache.NewManager()
		sweeper.Register(cleaner)
		sweeper.StartCleanup(cfg.ReportCacheTTL)
		b.onClose(func() error { sweeper.Stop(); return nil })
	}
	b.Hub = realtime.NewHub(0)
	b.Changes = worker.NewChangeWorker(b.Reports, worker.ChangeSinkFunc(b.Hub.PublishChange))

	var publisher services.ChangePublisher = b.Changes
	if cfg.AMQPURL != "" {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, publishing changes in-process", "error", err)
		} else {
			f.logger.Info("Initialized AMQP client",
				"exchange", cfg.AMQPExchange,
				"queue", cfg.AMQPQueue)
			b.broker = client
			b.onClose(client.Close)
			publisher = client
		}
	}

	b.Accounts = services.NewAccountService(store)
	b.Ledger = services.NewLedgerService(store, publisher)
	b.Collaborators = services.NewCollaboratorService(store, access, publisher)
	b.Records = services.NewRecordService(store)

	opts := []importer.Option{importer.WithBatchSize(cfg.ImportBatchSize)}
	if cfg.GoogleServiceAccountJSON != "" || cfg.GoogleServiceAccountFile != "" {
		client, err := gsheet.New(ctx, gsheet.Credentials{
			JSON: cfg.GoogleServiceAccountJSON,
			File: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("initialize Google Sheets client: %w", err)
		}
		b.Sheets = client
		opts = append(opts, importer.WithSheets(client))
		f.logger.Info("Initialized Google Sheets client")
	}
	b.Importer = importer.New(store, b.Ledger, publisher, opts...)

	var provider bank.Provider
	if cfg.PlaidEnabled() {
		client, err := bank.NewPlaidClient(cfg.PlaidClientID, cfg.PlaidSecret, cfg.PlaidEnv)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("initialize Plaid client: %w", err)
		}
		provider = client
		f.logger.Info("Initialized Plaid client", "env", cfg.PlaidEnv)
	}
	b.Bank = bank.NewService(store, b.Ledger, publisher, provider)

	f.logger.Info("Initialized backend",
		"db_path", cfg.SQLiteDBPath,
		"amqp_enabled", b.broker != nil,
		"sheets_enabled", b.Sheets != nil,
		"plaid_enabled", provider != nil)

	return b, nil
}

// UsesBroker reports whether change events travel through AMQP.
func (b *Backend) UsesBroker() bool {
	return b.broker != nil
}

// ConsumeChanges feeds broker deliveries to the local ChangeWorker until ctx
// is done. Without a broker it returns immediately.
func (b *Backend) ConsumeChanges(ctx context.Context) error {
	if b.broker == nil {
		return nil
	}
	return b.broker.ConsumeChanges(ctx, b.Changes.HandleChange)
}

func (b *Backend) onClose(fn func() error) {
	b.cleanups = append(b.cleanups, fn)
}

// Close releases resources in reverse order of acquisition.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.cleanups) - 1; i >= 0; i-- {
		if err := b.cleanups[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.cleanups = nil
	return errors.Join(errs...)
}
