package bank

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/plaid/plaid-go/v41/plaid"
)

const syncPageSize = 500

// PlaidClient implements Provider over the Plaid API.
type PlaidClient struct {
	api        *plaid.APIClient
	clientName string
}

var _ Provider = (*PlaidClient)(nil)

func NewPlaidClient(clientID, secret, env string) (*PlaidClient, error) {
	configuration := plaid.NewConfiguration()
	configuration.AddDefaultHeader("PLAID-CLIENT-ID", clientID)
	configuration.AddDefaultHeader("PLAID-SECRET", secret)

	switch env {
	case "sandbox":
		configuration.UseEnvironment(plaid.Sandbox)
	case "production":
		configuration.UseEnvironment(plaid.Production)
	default:
		return nil, fmt.Errorf("invalid Plaid environment: %s", env)
	}

	return &PlaidClient{api: plaid.NewAPIClient(configuration), clientName: "Tally"}, nil
}

func (c *PlaidClient) CreateLinkToken(ctx context.Context, userID int64) (string, error) {
	user := plaid.LinkTokenCreateRequestUser{
		ClientUserId: strconv.FormatInt(userID, 10),
	}
	request := plaid.NewLinkTokenCreateRequest(
		c.clientName,
		"en",
		[]plaid.CountryCode{plaid.COUNTRYCODE_US},
	)
	request.SetUser(user)
	request.SetProducts([]plaid.Products{plaid.PRODUCTS_TRANSACTIONS})

	resp, _, err := c.api.PlaidApi.LinkTokenCreate(ctx).LinkTokenCreateRequest(*request).Execute()
	if err != nil {
		return "", fmt.Errorf("create link token: %w", err)
	}
	return resp.GetLinkToken(), nil
}

func (c *PlaidClient) ExchangePublicToken(ctx context.Context, publicToken string) (Link, error) {
	exchangeReq := plaid.NewItemPublicTokenExchangeRequest(publicToken)
	exchangeResp, _, err := c.api.PlaidApi.ItemPublicTokenExchange(ctx).ItemPublicTokenExchangeRequest(*exchangeReq).Execute()
	if err != nil {
		return Link{}, fmt.Errorf("exchange public token: %w", err)
	}

	link := Link{
		ItemID:      exchangeResp.GetItemId(),
		AccessToken: exchangeResp.GetAccessToken(),
	}

	// Institution details are optional; a failed lookup does not fail the link.
	itemReq := plaid.NewItemGetRequest(link.AccessToken)
	itemResp, _, err := c.api.PlaidApi.ItemGet(ctx).ItemGetRequest(*itemReq).Execute()
	if err != nil {
		slog.WarnContext(ctx, "Failed to fetch Plaid item details", "item_id", link.ItemID, "error", err)
		return link, nil
	}
	item := itemResp.GetItem()
	if name, ok := item.AdditionalProperties["institution_name"].(string); ok {
		link.InstitutionName = name
	} else if item.InstitutionId.IsSet() && item.InstitutionId.Get() != nil {
		link.InstitutionName = *item.InstitutionId.Get()
	}
	return link, nil
}

func (c *PlaidClient) SyncTransactions(ctx context.Context, accessToken, cursor string) (SyncPage, error) {
	request := plaid.NewTransactionsSyncRequest(accessToken)
	if cursor != "" {
		request.SetCursor(cursor)
	}
	request.SetCount(syncPageSize)

	resp, _, err := c.api.PlaidApi.TransactionsSync(ctx).TransactionsSyncRequest(*request).Execute()
	if err != nil {
		return SyncPage{}, fmt.Errorf("transactions sync: %w", err)
	}

	page := SyncPage{
		NextCursor: resp.GetNextCursor(),
		HasMore:    resp.GetHasMore(),
	}
	for _, t := range resp.GetAdded() {
		page.Added = append(page.Added, fromPlaid(t))
	}
	for _, t := range resp.GetModified() {
		page.Modified = append(page.Modified, fromPlaid(t))
	}
	for _, r := range resp.GetRemoved() {
		page.Removed = append(page.Removed, r.GetTransactionId())
	}
	return page, nil
}

func fromPlaid(t plaid.Transaction) Txn {
	pfc := t.GetPersonalFinanceCategory()
	return Txn{
		ID:       t.GetTransactionId(),
		Amount:   t.GetAmount(),
		Name:     t.GetName(),
		Merchant: t.GetMerchantName(),
		Date:     t.GetDate(),
		Category: pfc.GetPrimary(),
		Pending:  t.GetPending(),
	}
}
