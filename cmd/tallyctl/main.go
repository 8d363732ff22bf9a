package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tally/internal/backend"
	"tally/internal/cli"
	"tally/internal/config"
	applog "tally/internal/log"
)

var (
	dbPath  string
	cfg     *config.Config
	logger  *applog.Logger
	rootCmd = &cobra.Command{
		Use:   "tallyctl",
		Short: "Administrative tasks for a tally database",
		Long: `tallyctl runs the maintenance jobs of a tally deployment from the shell:
schema migrations, offline imports, notification drains and bank syncs.

Configuration is read from the environment (and .env when present), the
same way the server reads it.`,
		SilenceUsage:      true,
		PersistentPreRunE: initConfig,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default: $SQLITE_DB_PATH)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(templateCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(drainCmd())
	rootCmd.AddCommand(syncBankCmd())
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received interrupt signal, shutting down gracefully...")
		cancel()
	}()

	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig loads the environment without the server-only checks: the
// CLI never issues tokens or listens on a port.
func initConfig(_ *cobra.Command, _ []string) error {
	cli.LoadEnvFile()
	logger = cli.SetupLogger(applog.ComponentCLI)
	cfg = config.Load()
	if dbPath != "" {
		cfg.SQLiteDBPath = dbPath
	}
	if cfg.SQLiteDBPath == "" {
		return fmt.Errorf("no database path: set --db or SQLITE_DB_PATH")
	}
	return nil
}

// openBackend wires the full service graph for commands that write ledgers.
func openBackend(ctx context.Context) (*backend.Backend, error) {
	b, err := backend.NewFactory(logger.Logger).Build(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open backend: %w", err)
	}
	return b, nil
}
