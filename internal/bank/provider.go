// Package bank links Plaid items to ledgers and mirrors their transactions.
package bank

import "context"

// Link is the result of exchanging a Plaid Link public token.
type Link struct {
	ItemID          string
	AccessToken     string
	InstitutionName string
}

// Txn is one bank transaction as reported by the aggregator. Amount is
// positive when money leaves the account.
type Txn struct {
	ID       string
	Amount   float64
	Name     string
	Merchant string
	Date     string
	Category string
	Pending  bool
}

// SyncPage is one page of incremental updates after a cursor.
type SyncPage struct {
	Added      []Txn
	Modified   []Txn
	Removed    []string
	NextCursor string
	HasMore    bool
}

// Provider is the aggregator boundary.
type Provider interface {
	CreateLinkToken(ctx context.Context, userID int64) (string, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (Link, error)
	SyncTransactions(ctx context.Context, accessToken, cursor string) (SyncPage, error)
}
