package bank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"tally/internal/core"
	"tally/internal/services"
	"tally/internal/storage"
)

// ErrDisabled is returned when no aggregator is configured.
var ErrDisabled = errors.New("bank aggregation is not configured")

const (
	fallbackCategory = "Bank"
	maxSyncPages     = 100
)

// SyncResult counts the changes applied by one item sync.
type SyncResult struct {
	Added    int `json:"added"`
	Modified int `json:"modified"`
	Removed  int `json:"removed"`
	Skipped  int `json:"skipped"`
}

// Service links bank items to ledgers and keeps their transactions current.
type Service struct {
	storage  *storage.SQLiteRepository
	ledger   *services.LedgerService
	events   services.ChangePublisher
	provider Provider
	group    singleflight.Group
}

// NewService returns a Service. A nil provider disables linking and syncing.
func NewService(store *storage.SQLiteRepository, ledger *services.LedgerService, events services.ChangePublisher, provider Provider) *Service {
	return &Service{
		storage:  store,
		ledger:   ledger,
		events:   events,
		provider: provider,
	}
}

// Enabled reports whether an aggregator is configured.
func (s *Service) Enabled() bool {
	return s.provider != nil
}

func (s *Service) CreateLinkToken(ctx context.Context, ownerID int64) (string, error) {
	if s.provider == nil {
		return "", ErrDisabled
	}
	token, err := s.provider.CreateLinkToken(ctx, ownerID)
	if err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "Link token created", "owner_id", ownerID)
	return token, nil
}

// Link exchanges a public token and stores the resulting item.
func (s *Service) Link(ctx context.Context, ownerID int64, publicToken string) (core.BankItem, error) {
	if s.provider == nil {
		return core.BankItem{}, ErrDisabled
	}
	if strings.TrimSpace(publicToken) == "" {
		return core.BankItem{}, fmt.Errorf("%w: public token is required", core.ErrEmptyName)
	}
	link, err := s.provider.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return core.BankItem{}, err
	}
	item, err := s.storage.SaveBankItem(ctx, core.BankItem{
		OwnerID:         ownerID,
		ItemID:          link.ItemID,
		AccessToken:     link.AccessToken,
		InstitutionName: link.InstitutionName,
	})
	if err != nil {
		return core.BankItem{}, fmt.Errorf("save bank item: %w", err)
	}
	slog.InfoContext(ctx, "Bank item linked",
		"owner_id", ownerID,
		"item_id", item.ItemID,
		"institution", item.InstitutionName)
	s.publish(ctx, ownerID, core.EntityBankItem, core.ActionCreated, item.ID)
	return item, nil
}

func (s *Service) ListItems(ctx context.Context, ownerID int64) ([]core.BankItem, error) {
	return s.storage.ListBankItems(ctx, ownerID)
}

// Unlink forgets an item. Transactions already mirrored stay in the ledger.
func (s *Service) Unlink(ctx context.Context, ownerID, id int64) error {
	if err := s.storage.DeleteBankItem(ctx, ownerID, id); err != nil {
		return err
	}
	s.publish(ctx, ownerID, core.EntityBankItem, core.ActionDeleted, id)
	return nil
}

// SyncOwnerItem syncs one of ownerID's items.
func (s *Service) SyncOwnerItem(ctx context.Context, ownerID, id int64) (SyncResult, error) {
	item, err := s.storage.GetBankItem(ctx, ownerID, id)
	if err != nil {
		return SyncResult{}, err
	}
	return s.SyncItem(ctx, item)
}

// SyncItem pulls every page after the stored cursor. Concurrent calls for the
// same item share one run.
func (s *Service) SyncItem(ctx context.Context, item core.BankItem) (SyncResult, error) {
	if s.provider == nil {
		return SyncResult{}, ErrDisabled
	}
	v, err, shared := s.group.Do(item.ItemID, func() (any, error) {
		return s.syncItem(ctx, item)
	})
	if shared {
		slog.DebugContext(ctx, "Joined in-flight bank sync", "item_id", item.ItemID)
	}
	if err != nil {
		return SyncResult{}, err
	}
	return v.(SyncResult), nil
}

func (s *Service) syncItem(ctx context.Context, item core.BankItem) (SyncResult, error) {
	// The stored cursor may be stale if another sync finished first.
	current, err := s.storage.GetBankItem(ctx, item.OwnerID, item.ID)
	if err != nil {
		return SyncResult{}, fmt.Errorf("reload bank item: %w", err)
	}

	var (
		res    SyncResult
		cursor = current.Cursor
	)
	for page := 0; page < maxSyncPages; page++ {
		p, err := s.provider.SyncTransactions(ctx, current.AccessToken, cursor)
		if err != nil {
			return res, err
		}
		for _, t := range p.Added {
			if s.upsert(ctx, current.OwnerID, t) {
				res.Added++
			} else {
				res.Skipped++
			}
		}
		for _, t := range p.Modified {
			if s.upsert(ctx, current.OwnerID, t) {
				res.Modified++
			} else {
				res.Skipped++
			}
		}
		for _, id := range p.Removed {
			if err := s.storage.DeleteExternalTransaction(ctx, current.OwnerID, id); err != nil {
				slog.ErrorContext(ctx, "Failed to delete removed bank transaction", "external_id", id, "error", err)
				continue
			}
			res.Removed++
		}

		// Save progress after every page so a failure resumes from here.
		if p.NextCursor != "" && p.NextCursor != cursor {
			cursor = p.NextCursor
			if err := s.storage.UpdateBankCursor(ctx, current.ID, cursor); err != nil {
				return res, fmt.Errorf("save cursor: %w", err)
			}
		}
		if !p.HasMore {
			break
		}
	}

	slog.InfoContext(ctx, "Bank item synced",
		"owner_id", current.OwnerID,
		"item_id", current.ItemID,
		"added", res.Added,
		"modified", res.Modified,
		"removed", res.Removed,
		"skipped", res.Skipped)
	if res.Added+res.Modified+res.Removed > 0 {
		s.publish(ctx, current.OwnerID, core.EntityTransaction, core.ActionBulk, 0)
	}
	return res, nil
}

// upsert stores one bank transaction, reporting whether it was applied.
// Pending rows are skipped; Plaid reports them again once posted.
func (s *Service) upsert(ctx context.Context, ownerID int64, t Txn) bool {
	if t.Pending {
		return false
	}
	tx, err := toTransaction(ownerID, t)
	if err != nil {
		slog.WarnContext(ctx, "Skipping bank transaction", "external_id", t.ID, "error", err)
		return false
	}
	cat, err := s.ledger.ResolveCategory(ctx, ownerID, categoryName(t.Category), tx.Type == core.Income)
	if err != nil {
		slog.WarnContext(ctx, "Failed to resolve bank category", "category", t.Category, "error", err)
	} else if cat.IsIncome == (tx.Type == core.Income) {
		tx.CategoryID = &cat.ID
		if tx.Type == core.Expense {
			tx.ExpenseType = cat.ExpenseType
		}
	}
	if _, err := s.storage.UpsertExternalTransaction(ctx, tx); err != nil {
		slog.ErrorContext(ctx, "Failed to store bank transaction", "external_id", t.ID, "error", err)
		return false
	}
	return true
}

// toTransaction maps Plaid's sign convention: positive amounts are money out.
func toTransaction(ownerID int64, t Txn) (core.Transaction, error) {
	date, err := core.ParseDate(t.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse date %q: %w", t.Date, err)
	}
	amount := decimal.NewFromFloat(t.Amount)
	cents := amount.Abs().Shift(2).Round(0).IntPart()
	if cents == 0 {
		return core.Transaction{}, core.ErrInvalidAmount
	}
	txType := core.Expense
	if amount.IsNegative() {
		txType = core.Income
	}
	desc := strings.TrimSpace(t.Merchant)
	if desc == "" {
		desc = strings.TrimSpace(t.Name)
	}
	if desc == "" {
		desc = "Bank transaction"
	}
	desc = core.ClipDescription(desc)
	return core.Transaction{
		OwnerID:     ownerID,
		CreatedBy:   ownerID,
		Type:        txType,
		Amount:      core.Money{Cents: cents},
		Description: desc,
		Date:        date,
		Source:      core.SourceBank,
		ExternalID:  t.ID,
	}, nil
}

// categoryName turns a Plaid primary category such as FOOD_AND_DRINK into "Food and drink".
func categoryName(primary string) string {
	primary = strings.TrimSpace(primary)
	if primary == "" {
		return fallbackCategory
	}
	words := strings.Fields(strings.ToLower(strings.ReplaceAll(primary, "_", " ")))
	name := strings.Join(words, " ")
	return strings.ToUpper(name[:1]) + name[1:]
}

// SyncAll syncs every linked item and returns the number that failed.
func (s *Service) SyncAll(ctx context.Context) (int, error) {
	if s.provider == nil {
		return 0, ErrDisabled
	}
	items, err := s.storage.ListBankItems(ctx, 0)
	if err != nil {
		return 0, fmt.Errorf("list bank items: %w", err)
	}
	failed := 0
	for _, item := range items {
		if ctx.Err() != nil {
			return failed, ctx.Err()
		}
		if _, err := s.SyncItem(ctx, item); err != nil {
			failed++
			slog.ErrorContext(ctx, "Bank item sync failed",
				"owner_id", item.OwnerID,
				"item_id", item.ItemID,
				"error", err)
		}
	}
	return failed, nil
}

func (s *Service) publish(ctx context.Context, ownerID int64, entity, action string, id int64) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishChange(ctx, core.NewChangeEvent(ownerID, entity, action, id)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish change event", "owner_id", ownerID, "entity", entity, "error", err)
	}
}
