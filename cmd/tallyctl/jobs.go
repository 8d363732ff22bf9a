package main

import (
	"github.com/spf13/cobra"

	"tally/internal/notify"
	"tally/internal/storage"
)

func drainCmd() *cobra.Command {
	var batch int
	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Send one batch of pending notifications",
		Long: `Send up to one batch of pending notifications, oldest first. Failed rows
keep their error and are not retried.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
			if err != nil {
				return err
			}
			defer store.Close()

			var mailer notify.Mailer = notify.LogMailer{}
			if cfg.SMTPHost != "" {
				mailer = notify.NewSMTPMailer(notify.SMTPConfig{
					Host:     cfg.SMTPHost,
					Port:     cfg.SMTPPort,
					Username: cfg.SMTPUsername,
					Password: cfg.SMTPPassword,
					From:     cfg.SMTPFrom,
				})
			}
			if batch <= 0 {
				batch = cfg.NotifyBatchSize
			}

			res, err := notify.NewDrainer(store, mailer, batch).DrainOnce(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
	cmd.Flags().IntVar(&batch, "batch", 0, "rows to drain, at most 10 (default: $NOTIFY_BATCH_SIZE)")
	return cmd
}

func syncBankCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-bank",
		Short: "Sync every linked bank item once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := openBackend(cmd.Context())
			if err != nil {
				return err
			}
			defer b.Close()

			failed, err := b.Bank.SyncAll(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, map[string]int{"failed_items": failed})
		},
	}
}
