// Package bank is the HTTP client for the external ledger (the bank
// feed). The bank is the source of truth for transactions and stock
// positions; SpendWise only mirrors it.
package bank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// UpstreamError wraps any failure talking to the bank: network errors,
// timeouts, and non-2xx responses.
type UpstreamError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("bank %s: unexpected status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("bank %s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsUpstream reports whether err is a bank upstream failure.
func IsUpstream(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// Transaction is one bank-side ledger entry.
type Transaction struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"-"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Description string    `json:"description"`
}

type wireTransaction struct {
	ID          string  `json:"id"`
	Date        string  `json:"date"`
	Amount      float64 `json:"amount"`
	Currency    string  `json:"currency"`
	Description string  `json:"description"`
}

// Position is one stock holding.
type Position struct {
	Ticker string  `json:"ticker"`
	Shares float64 `json:"shares"`
	Price  float64 `json:"price"`
	Value  float64 `json:"value"`
}

// Client talks to the bank API.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the bank at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// parseDate accepts both RFC3339 timestamps and plain dates.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// FetchTransactions returns every transaction the bank currently holds.
func (c *Client) FetchTransactions(ctx context.Context) ([]Transaction, error) {
	var wire []wireTransaction
	if err := c.get(ctx, "/api/transactions", &wire); err != nil {
		return nil, err
	}

	out := make([]Transaction, 0, len(wire))
	for _, w := range wire {
		date, err := parseDate(w.Date)
		if err != nil {
			return nil, &UpstreamError{Op: "fetch", Err: fmt.Errorf("bad date %q: %w", w.Date, err)}
		}
		out = append(out, Transaction{ID: w.ID, Date: date, Amount: w.Amount, Currency: w.Currency, Description: w.Description})
	}
	return out, nil
}

// CreateTransaction posts a new transaction to the bank.
func (c *Client) CreateTransaction(ctx context.Context, t Transaction) error {
	body := wireTransaction{
		ID:          t.ID,
		Date:        t.Date.Format("2006-01-02"),
		Amount:      t.Amount,
		Currency:    t.Currency,
		Description: t.Description,
	}
	return c.post(ctx, "/api/transactions", body, nil)
}

// Positions returns the current stock portfolio.
func (c *Client) Positions(ctx context.Context) ([]Position, error) {
	var out []Position
	if err := c.get(ctx, "/api/stocks", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Quote returns the current price for a ticker.
func (c *Client) Quote(ctx context.Context, ticker string) (float64, error) {
	positions, err := c.Positions(ctx)
	if err != nil {
		return 0, err
	}
	ticker = strings.ToUpper(ticker)
	for _, p := range positions {
		if strings.ToUpper(p.Ticker) == ticker {
			return p.Price, nil
		}
	}
	return 0, fmt.Errorf("unknown ticker %q", ticker)
}

// Buy adds amount (in account currency) of a ticker to the portfolio.
func (c *Client) Buy(ctx context.Context, ticker string, amount float64) error {
	path := "/api/stocks/" + url.PathEscape(strings.ToUpper(ticker)) + "/add"
	return c.post(ctx, path, map[string]float64{"amount": amount}, nil)
}

// Sell removes amount of a ticker from the portfolio.
func (c *Client) Sell(ctx context.Context, ticker string, amount float64) error {
	path := "/api/stocks/" + url.PathEscape(strings.ToUpper(ticker)) + "/remove"
	return c.post(ctx, path, map[string]float64{"amount": amount}, nil)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &UpstreamError{Op: "get " + path, Err: err}
	}
	return c.do(req, path, out)
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &UpstreamError{Op: "post " + path, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &UpstreamError{Op: "post " + path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return &UpstreamError{Op: req.Method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &UpstreamError{Op: req.Method + " " + path, StatusCode: resp.StatusCode}
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &UpstreamError{Op: req.Method + " " + path, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
