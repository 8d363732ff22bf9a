package backend

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/bank"
	"tally/internal/config"
	"tally/internal/core"
	"tally/internal/importer"
	"tally/internal/services"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		SQLiteDBPath:    filepath.Join(t.TempDir(), "tally.db"),
		ImportBatchSize: 50,
		ReportCacheTTL:  time.Minute,
		AccessCacheTTL:  time.Second,
	}
}

func TestFactory_BuildWithoutBroker(t *testing.T) {
	ctx := context.Background()
	b, err := NewFactory(nil).Build(ctx, testConfig(t))
	require.NoError(t, err)
	defer b.Close()

	assert.False(t, b.UsesBroker())
	assert.Nil(t, b.Sheets)
	assert.NoError(t, b.ConsumeChanges(ctx))

	owner, err := b.Accounts.Register(ctx, "owner@example.com", "Owner", "correct horse battery")
	require.NoError(t, err)

	sub := b.Hub.Subscribe(owner.ID)
	defer b.Hub.Unsubscribe(sub)

	tx, err := b.Ledger.CreateTransaction(ctx, owner.ID, owner.ID, services.TransactionInput{
		Type: core.Expense, Amount: core.Money{Cents: 1250}, Description: "coffee", Date: core.NewDate(2024, 3, 1),
	})
	require.NoError(t, err)

	select {
	case ev := <-sub.C:
		assert.Equal(t, core.EntityTransaction, ev.Entity)
		assert.Equal(t, tx.ID, ev.ID)
	case <-time.After(time.Second):
		t.Fatal("change event did not reach the hub")
	}

	_, err = b.Bank.CreateLinkToken(ctx, owner.ID)
	assert.ErrorIs(t, err, bank.ErrDisabled)

	_, err = b.Importer.ImportSheet(ctx, owner.ID, owner.ID, "sheet-id", "A:E")
	assert.ErrorIs(t, err, importer.ErrSheetsDisabled)
}

func TestBackend_CloseIsIdempotent(t *testing.T) {
	b, err := NewFactory(nil).Build(context.Background(), testConfig(t))
	require.NoError(t, err)
	require.NoError(t, b.Close())
	assert.NoError(t, b.Close())
}
