package bank

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tally/internal/core"
	"tally/internal/services"
	"tally/internal/storage"
)

type fakeProvider struct {
	mu      sync.Mutex
	pages   map[string]SyncPage // keyed by incoming cursor
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (f *fakeProvider) CreateLinkToken(_ context.Context, userID int64) (string, error) {
	return "link-sandbox-token", nil
}

func (f *fakeProvider) ExchangePublicToken(_ context.Context, publicToken string) (Link, error) {
	return Link{ItemID: "item-" + publicToken, AccessToken: "access-" + publicToken, InstitutionName: "First Platypus Bank"}, nil
}

func (f *fakeProvider) SyncTransactions(ctx context.Context, accessToken, cursor string) (SyncPage, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pages[cursor], nil
}

type countingPublisher struct {
	mu     sync.Mutex
	events []core.ChangeEvent
}

func (p *countingPublisher) PublishChange(_ context.Context, ev core.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func newService(t *testing.T, provider Provider) (*Service, *storage.SQLiteRepository, core.User) {
	t.Helper()
	store, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "tally.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	owner, err := store.CreateUser(context.Background(), core.User{Email: "owner@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	events := &countingPublisher{}
	ledger := services.NewLedgerService(store, events)
	return NewService(store, ledger, events, provider), store, owner
}

func TestService_Disabled(t *testing.T) {
	svc, _, owner := newService(t, nil)
	ctx := context.Background()

	assert.False(t, svc.Enabled())
	_, err := svc.CreateLinkToken(ctx, owner.ID)
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = svc.Link(ctx, owner.ID, "public")
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = svc.SyncItem(ctx, core.BankItem{})
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = svc.SyncAll(ctx)
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestService_LinkAndUnlink(t *testing.T) {
	svc, _, owner := newService(t, &fakeProvider{})
	ctx := context.Background()

	token, err := svc.CreateLinkToken(ctx, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, "link-sandbox-token", token)

	item, err := svc.Link(ctx, owner.ID, "abc")
	require.NoError(t, err)
	assert.Equal(t, "item-abc", item.ItemID)
	assert.Equal(t, "First Platypus Bank", item.InstitutionName)

	items, err := svc.ListItems(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	require.NoError(t, svc.Unlink(ctx, owner.ID, item.ID))
	items, err = svc.ListItems(ctx, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = svc.Link(ctx, owner.ID, "  ")
	assert.Error(t, err)
}

func TestService_SyncItem(t *testing.T) {
	provider := &fakeProvider{pages: map[string]SyncPage{
		"": {
			Added: []Txn{
				{ID: "t1", Amount: 12.34, Name: "SQ *BLUE BOTTLE", Merchant: "Blue Bottle", Date: "2024-06-01", Category: "FOOD_AND_DRINK"},
				{ID: "t2", Amount: -1000, Name: "ACME PAYROLL", Date: "2024-06-01", Category: "INCOME"},
				{ID: "t3", Amount: 5, Name: "Pending coffee", Date: "2024-06-02", Pending: true},
			},
			NextCursor: "c1",
			HasMore:    true,
		},
		"c1": {
			Modified:   []Txn{{ID: "t1", Amount: 15, Merchant: "Blue Bottle", Date: "2024-06-01", Category: "FOOD_AND_DRINK"}},
			Removed:    []string{"t2", "never-seen"},
			NextCursor: "c2",
		},
	}}
	svc, store, owner := newService(t, provider)
	ctx := context.Background()

	item, err := svc.Link(ctx, owner.ID, "abc")
	require.NoError(t, err)

	res, err := svc.SyncItem(ctx, item)
	require.NoError(t, err)
	assert.Equal(t, SyncResult{Added: 2, Modified: 1, Removed: 2, Skipped: 1}, res)
	assert.EqualValues(t, 2, provider.calls.Load())

	txs, err := store.ListTransactions(ctx, owner.ID, storage.TransactionFilter{})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "t1", txs[0].ExternalID)
	assert.Equal(t, int64(1500), txs[0].Amount.Cents)
	assert.Equal(t, core.Expense, txs[0].Type)
	assert.Equal(t, core.SourceBank, txs[0].Source)
	require.NotNil(t, txs[0].CategoryID)

	cat, err := store.GetCategory(ctx, owner.ID, *txs[0].CategoryID)
	require.NoError(t, err)
	assert.Equal(t, "Food and drink", cat.Name)

	saved, err := store.GetBankItem(ctx, owner.ID, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "c2", saved.Cursor)

	res, err = svc.SyncItem(ctx, item)
	require.NoError(t, err, "the stored cursor is reloaded before syncing")
	assert.Equal(t, SyncResult{}, res)
}

func TestService_SyncItemCollapsesConcurrentCalls(t *testing.T) {
	provider := &fakeProvider{
		pages:   map[string]SyncPage{"": {NextCursor: "c1"}},
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	svc, _, owner := newService(t, provider)
	ctx := context.Background()

	item, err := svc.Link(ctx, owner.ID, "abc")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SyncItem(ctx, item)
			assert.NoError(t, err)
		}()
	}

	<-provider.entered
	time.Sleep(50 * time.Millisecond)
	close(provider.release)
	wg.Wait()

	assert.EqualValues(t, 1, provider.calls.Load())
}

func TestService_SyncAll(t *testing.T) {
	provider := &fakeProvider{pages: map[string]SyncPage{"": {NextCursor: "done"}}}
	svc, _, owner := newService(t, provider)
	ctx := context.Background()

	_, err := svc.Link(ctx, owner.ID, "a")
	require.NoError(t, err)
	_, err = svc.Link(ctx, owner.ID, "b")
	require.NoError(t, err)

	failed, err := svc.SyncAll(ctx)
	require.NoError(t, err)
	assert.Zero(t, failed)
	assert.EqualValues(t, 2, provider.calls.Load())
}

func TestToTransaction(t *testing.T) {
	tests := []struct {
		name      string
		in        Txn
		wantType  core.TransactionType
		wantCents int64
		wantDesc  string
		wantErr   bool
	}{
		{name: "debit", in: Txn{ID: "a", Amount: 4.335, Name: "Shop", Date: "2024-01-02"}, wantType: core.Expense, wantCents: 434, wantDesc: "Shop"},
		{name: "credit", in: Txn{ID: "b", Amount: -250, Merchant: "Employer", Name: "ACH", Date: "2024-01-02"}, wantType: core.Income, wantCents: 25000, wantDesc: "Employer"},
		{name: "no name", in: Txn{ID: "c", Amount: 1, Date: "2024-01-02"}, wantType: core.Expense, wantCents: 100, wantDesc: "Bank transaction"},
		{name: "zero", in: Txn{ID: "d", Amount: 0.001, Date: "2024-01-02"}, wantErr: true},
		{name: "bad date", in: Txn{ID: "e", Amount: 1, Date: "02/01/2024"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := toTransaction(7, tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.wantCents, got.Amount.Cents)
			assert.Equal(t, tt.wantDesc, got.Description)
			assert.Equal(t, tt.in.ID, got.ExternalID)
			assert.Equal(t, int64(7), got.OwnerID)
		})
	}
}

func TestCategoryName(t *testing.T) {
	assert.Equal(t, "Food and drink", categoryName("FOOD_AND_DRINK"))
	assert.Equal(t, "Income", categoryName("INCOME"))
	assert.Equal(t, fallbackCategory, categoryName(""))
}
