// Package apiclient provides an HTTP client for the BudgetBuddy transaction API.
// It satisfies viewcache.Remote.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"budgetbuddy/internal/aggregate"
	apperrors "budgetbuddy/internal/errors"
	"budgetbuddy/internal/models"
	"budgetbuddy/internal/pagination"
)

// listPageSize is the largest page the server accepts.
const listPageSize = 100

// Client talks to the transaction endpoints as a single authenticated user.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client. baseURL is the server root, e.g. http://localhost:5000.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

type transactionPayload struct {
	Type        models.TransactionType `json:"type"`
	Amount      int64                  `json:"amount"`
	Category    string                 `json:"category"`
	Description string                 `json:"description"`
	Date        string                 `json:"date,omitempty"`
	Notes       string                 `json:"notes,omitempty"`
}

type transactionEnvelope struct {
	Transaction models.Transaction `json:"transaction"`
}

func payloadOf(tx models.Transaction) transactionPayload {
	p := transactionPayload{
		Type:        tx.Type,
		Amount:      tx.Amount,
		Category:    tx.Category,
		Description: tx.Description,
		Notes:       tx.Notes,
	}
	if !tx.Date.IsZero() {
		p.Date = tx.Date.UTC().Format(time.RFC3339)
	}
	return p
}

// ListTransactions fetches every transaction inside r, following pagination.
func (c *Client) ListTransactions(ctx context.Context, r aggregate.DateRange) ([]models.Transaction, error) {
	query := url.Values{}
	if r.Start != nil {
		query.Set("start_date", r.Start.UTC().Format(time.RFC3339))
	}
	if r.End != nil {
		query.Set("end_date", r.End.UTC().Format(time.RFC3339))
	}
	query.Set("page_size", strconv.Itoa(listPageSize))

	all := []models.Transaction{}
	for page := 1; ; page++ {
		query.Set("page", strconv.Itoa(page))

		var result pagination.PageResponse[models.Transaction]
		if err := c.do(ctx, http.MethodGet, "/api/v1/transactions?"+query.Encode(), nil, http.StatusOK, &result); err != nil {
			return nil, fmt.Errorf("fetching transactions: %w", err)
		}
		all = append(all, result.Data...)
		if page >= result.TotalPages || len(result.Data) == 0 {
			return all, nil
		}
	}
}

// CreateTransaction posts tx and returns the server's canonical record.
func (c *Client) CreateTransaction(ctx context.Context, tx models.Transaction) (*models.Transaction, error) {
	var result transactionEnvelope
	if err := c.do(ctx, http.MethodPost, "/api/v1/transactions", payloadOf(tx), http.StatusCreated, &result); err != nil {
		return nil, fmt.Errorf("creating transaction: %w", err)
	}
	return &result.Transaction, nil
}

// UpdateTransaction replaces the transaction with tx.ID.
func (c *Client) UpdateTransaction(ctx context.Context, tx models.Transaction) (*models.Transaction, error) {
	var result transactionEnvelope
	path := "/api/v1/transactions/" + url.PathEscape(tx.ID)
	if err := c.do(ctx, http.MethodPut, path, payloadOf(tx), http.StatusOK, &result); err != nil {
		return nil, fmt.Errorf("updating transaction: %w", err)
	}
	return &result.Transaction, nil
}

// DeleteTransaction deletes the transaction with id.
func (c *Client) DeleteTransaction(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/api/v1/transactions/"+url.PathEscape(id), nil, http.StatusOK, nil); err != nil {
		return fmt.Errorf("deleting transaction: %w", err)
	}
	return nil
}

// GetSummary fetches the server-side summary for r.
func (c *Client) GetSummary(ctx context.Context, r aggregate.DateRange) (aggregate.Summary, error) {
	query := url.Values{}
	if r.Start != nil {
		query.Set("start_date", r.Start.UTC().Format(time.RFC3339))
	}
	if r.End != nil {
		query.Set("end_date", r.End.UTC().Format(time.RFC3339))
	}
	path := "/api/v1/transactions/summary"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var result aggregate.Summary
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &result); err != nil {
		return aggregate.Summary{}, fmt.Errorf("fetching summary: %w", err)
	}
	return result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != wantStatus {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// decodeError turns an error body into an *apperrors.AppError so callers can
// match it with errors.Is against the server's sentinels.
func decodeError(resp *http.Response) error {
	var body struct {
		Error apperrors.AppError `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, &body); err != nil || body.Error.Code == "" {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	appErr := body.Error
	appErr.StatusCode = resp.StatusCode
	return &appErr
}
