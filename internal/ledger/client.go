// =============================================================================
// posledger - Ledger API Client
// =============================================================================
//
// A small REST client for the accounting ledger (Moneybird API v2 wire
// format). Every request carries a bearer token and is scoped to one
// administration.
//
// READS:
//   - Paginated collections are fetched page by page (page, per_page) until
//     a short page is returned
//   - Financial mutations use the two-phase synchronization endpoint: first
//     the ids in the period, then the full records in chunks of 100 ids
//
// WRITES:
//   - POST creates invoices, purchase invoices and financial statements
//   - PATCH links bookings and sends invoices
//
// Any non-2xx response is returned as *APIError. There are no retries.
//
// =============================================================================

package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// syncChunkSize is the maximum number of ids per synchronization POST.
const syncChunkSize = 100

// APIError is returned for every non-2xx ledger response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ledger api error %d: %s %s: %s", e.StatusCode, e.Method, e.Path, e.Body)
}

// Options configures a Client.
type Options struct {
	BaseURL          string
	AdministrationID string
	Token            string
	PerPage          int
	Timeout          time.Duration

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Client talks to one ledger administration.
type Client struct {
	baseURL string
	token   string
	perPage int
	http    *http.Client
}

// NewClient creates a ledger client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Token) == "" {
		return nil, errors.New("ledger token is empty")
	}
	if strings.TrimSpace(opts.AdministrationID) == "" {
		return nil, errors.New("ledger administration id is empty")
	}
	if opts.PerPage <= 0 || opts.PerPage > 100 {
		opts.PerPage = 100
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/") + "/" + url.PathEscape(opts.AdministrationID),
		token:   opts.Token,
		perPage: opts.PerPage,
		http:    httpClient,
	}, nil
}

// =============================================================================
// READS
// =============================================================================

// Contacts returns every contact.
func (c *Client) Contacts(ctx context.Context) ([]Contact, error) {
	var out []Contact
	if err := getPaged(ctx, c, "/contacts.json", nil, &out); err != nil {
		return nil, fmt.Errorf("failed to download contacts: %w", err)
	}
	return out, nil
}

// FinancialAccounts returns every financial account.
func (c *Client) FinancialAccounts(ctx context.Context) ([]FinancialAccount, error) {
	var out []FinancialAccount
	if err := c.do(ctx, http.MethodGet, "/financial_accounts.json", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to download financial accounts: %w", err)
	}
	return out, nil
}

// LedgerAccounts returns every ledger account.
func (c *Client) LedgerAccounts(ctx context.Context) ([]LedgerAccount, error) {
	var out []LedgerAccount
	if err := c.do(ctx, http.MethodGet, "/ledger_accounts.json", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to download ledger accounts: %w", err)
	}
	return out, nil
}

// TaxRates returns every tax rate.
func (c *Client) TaxRates(ctx context.Context) ([]TaxRate, error) {
	var out []TaxRate
	if err := c.do(ctx, http.MethodGet, "/tax_rates.json", nil, nil, &out); err != nil {
		return nil, fmt.Errorf("failed to download tax rates: %w", err)
	}
	return out, nil
}

// SalesInvoices returns the sales invoices dated in the period.
func (c *Client) SalesInvoices(ctx context.Context, p Period) ([]SalesInvoice, error) {
	var out []SalesInvoice
	q := url.Values{"filter": {p.Filter()}}
	if err := getPaged(ctx, c, "/sales_invoices.json", q, &out); err != nil {
		return nil, fmt.Errorf("failed to download sales invoices: %w", err)
	}
	return out, nil
}

// PurchaseInvoices returns the purchase invoices dated in the period.
func (c *Client) PurchaseInvoices(ctx context.Context, p Period) ([]PurchaseInvoice, error) {
	var out []PurchaseInvoice
	q := url.Values{"filter": {p.Filter()}}
	if err := getPaged(ctx, c, "/documents/purchase_invoices.json", q, &out); err != nil {
		return nil, fmt.Errorf("failed to download purchase invoices: %w", err)
	}
	return out, nil
}

type syncEntry struct {
	ID      string `json:"id"`
	Version int64  `json:"version"`
}

// FinancialMutations returns the mutations in the period using the
// synchronization endpoint.
func (c *Client) FinancialMutations(ctx context.Context, p Period) ([]FinancialMutation, error) {
	// Phase 1: ids
	var entries []syncEntry
	q := url.Values{"filter": {p.Filter()}}
	if err := c.do(ctx, http.MethodGet, "/financial_mutations/synchronization.json", q, nil, &entries); err != nil {
		return nil, fmt.Errorf("failed to list financial mutation ids: %w", err)
	}

	// Phase 2: records, in chunks
	out := make([]FinancialMutation, 0, len(entries))
	for start := 0; start < len(entries); start += syncChunkSize {
		end := start + syncChunkSize
		if end > len(entries) {
			end = len(entries)
		}
		ids := make([]string, 0, end-start)
		for _, e := range entries[start:end] {
			ids = append(ids, e.ID)
		}

		var chunk []FinancialMutation
		body := map[string][]string{"ids": ids}
		if err := c.do(ctx, http.MethodPost, "/financial_mutations/synchronization.json", nil, body, &chunk); err != nil {
			return nil, fmt.Errorf("failed to download financial mutations: %w", err)
		}
		out = append(out, chunk...)
	}
	return out, nil
}

// =============================================================================
// WRITES
// =============================================================================

// CreateSalesInvoice creates a sales invoice.
func (c *Client) CreateSalesInvoice(ctx context.Context, req SalesInvoiceRequest) (SalesInvoice, error) {
	var out SalesInvoice
	body := map[string]SalesInvoiceRequest{"sales_invoice": req}
	if err := c.do(ctx, http.MethodPost, "/sales_invoices.json", nil, body, &out); err != nil {
		return SalesInvoice{}, fmt.Errorf("failed to create sales invoice %q: %w", req.Reference, err)
	}
	return out, nil
}

// SendInvoice marks a sales invoice as sent without delivering it.
func (c *Client) SendInvoice(ctx context.Context, invoiceID string) error {
	body := map[string]any{
		"sales_invoice_sending": map[string]string{"delivery_method": "Manual"},
	}
	path := "/sales_invoices/" + url.PathEscape(invoiceID) + "/send_invoice.json"
	if err := c.do(ctx, http.MethodPatch, path, nil, body, nil); err != nil {
		return fmt.Errorf("failed to send sales invoice %s: %w", invoiceID, err)
	}
	return nil
}

// CreatePurchaseInvoice creates a purchase invoice document.
func (c *Client) CreatePurchaseInvoice(ctx context.Context, req PurchaseInvoiceRequest) (PurchaseInvoice, error) {
	var out PurchaseInvoice
	body := map[string]PurchaseInvoiceRequest{"purchase_invoice": req}
	if err := c.do(ctx, http.MethodPost, "/documents/purchase_invoices.json", nil, body, &out); err != nil {
		return PurchaseInvoice{}, fmt.Errorf("failed to create purchase invoice %q: %w", req.Reference, err)
	}
	return out, nil
}

// CreateFinancialStatement posts a statement with its mutations.
func (c *Client) CreateFinancialStatement(ctx context.Context, req FinancialStatementRequest) (FinancialStatement, error) {
	// The API takes the mutations as an object keyed by position.
	mutations := make(map[string]MutationRequest, len(req.Mutations))
	for i, m := range req.Mutations {
		mutations[strconv.Itoa(i+1)] = m
	}
	body := map[string]any{
		"financial_statement": map[string]any{
			"reference":                      req.Reference,
			"financial_account_id":           req.FinancialAccountID,
			"financial_mutations_attributes": mutations,
		},
	}

	var out FinancialStatement
	if err := c.do(ctx, http.MethodPost, "/financial_statements.json", nil, body, &out); err != nil {
		return FinancialStatement{}, fmt.Errorf("failed to create financial statement %q: %w", req.Reference, err)
	}
	return out, nil
}

// LinkBooking links a financial mutation to a booking.
func (c *Client) LinkBooking(ctx context.Context, mutationID string, link BookingLink) error {
	path := "/financial_mutations/" + url.PathEscape(mutationID) + "/link_booking.json"
	if err := c.do(ctx, http.MethodPatch, path, nil, link, nil); err != nil {
		return fmt.Errorf("failed to link mutation %s to %s %s: %w", mutationID, link.BookingType, link.BookingID, err)
	}
	return nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// getPaged fetches every page of a collection into out.
func getPaged[T any](ctx context.Context, c *Client, path string, query url.Values, out *[]T) error {
	for page := 1; ; page++ {
		q := url.Values{}
		for k, v := range query {
			q[k] = v
		}
		q.Set("page", strconv.Itoa(page))
		q.Set("per_page", strconv.Itoa(c.perPage))

		var items []T
		if err := c.do(ctx, http.MethodGet, path, q, nil, &items); err != nil {
			return err
		}
		*out = append(*out, items...)
		if len(items) < c.perPage {
			return nil
		}
	}
}

// do performs one request. body is JSON-encoded when non-nil; the response
// is decoded into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
