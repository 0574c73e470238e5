package client

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

// ErrNotFound is returned when the server answers 404, e.g. before the first
// background audit has completed.
var ErrNotFound = errors.New("not found")

// Block is one ledger entry as served by the API.
type Block struct {
	ID          int64     `json:"id"`
	VendorID    int64     `json:"vendor_id"`
	Action      string    `json:"action"`
	PayloadHash string    `json:"payload_hash"`
	PrevHash    string    `json:"prev_hash"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// VerifyResult is the outcome of auditing one vendor chain.
type VerifyResult struct {
	VendorID     int64  `json:"vendor_id"`
	Status       string `json:"status"`
	TotalEntries int    `json:"total_entries"`
	IsValid      bool   `json:"is_valid"`
	Message      string `json:"message,omitempty"`
	Reason       string `json:"reason,omitempty"`

	BrokenAtID       int64  `json:"broken_at_id,omitempty"`
	ExpectedPrevHash string `json:"expected_prev_hash,omitempty"`
	FoundPrevHash    string `json:"found_prev_hash,omitempty"`
	ExpectedHash     string `json:"expected_hash,omitempty"`
	FoundHash        string `json:"found_hash,omitempty"`

	FirstEntry    *Block `json:"first_entry,omitempty"`
	BrokenEntry   *Block `json:"broken_entry,omitempty"`
	PreviousEntry *Block `json:"previous_entry,omitempty"`
}

// FleetResult is the outcome of auditing every vendor chain.
type FleetResult struct {
	OverallValid   bool            `json:"overall_valid"`
	VendorsChecked int             `json:"vendors_checked"`
	Results        []*VerifyResult `json:"results"`
	CheckedAt      time.Time       `json:"checked_at"`
}

// Client talks to a trustchaind server.
type Client struct {
	base        string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("nil http client")
		}
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches a vendor session token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// New creates a Client for the server at base (e.g. "http://localhost:8080").
func New(base string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	c := &Client{
		base:       strings.TrimRight(base, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Append records action with payload on the authenticated vendor's chain.
// Requires WithBearerToken.
func (c *Client) Append(ctx context.Context, action string, payload any) (*Block, error) {
	body := map[string]any{"action": action}
	if payload != nil {
		body["payload"] = payload
	}
	var b Block
	if err := c.call(ctx, http.MethodPost, "/api/v1/chain/me/blocks", body, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Verify audits a single vendor chain. strict also recomputes every block
// hash.
func (c *Client) Verify(ctx context.Context, vendorID int64, strict bool) (*VerifyResult, error) {
	path := "/api/v1/chain/verify/" + strconv.FormatInt(vendorID, 10) + strictQuery(strict)
	var res VerifyResult
	if err := c.call(ctx, http.MethodGet, path, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// VerifyMe audits the authenticated vendor's own chain in strict mode.
func (c *Client) VerifyMe(ctx context.Context) (*VerifyResult, error) {
	var res VerifyResult
	if err := c.call(ctx, http.MethodGet, "/api/v1/chain/me/verify", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// VerifyAll audits every vendor chain on the server.
func (c *Client) VerifyAll(ctx context.Context, strict bool) (*FleetResult, error) {
	var res FleetResult
	if err := c.call(ctx, http.MethodGet, "/api/v1/chain/verify"+strictQuery(strict), nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Blocks lists a vendor's chain in append order.
func (c *Client) Blocks(ctx context.Context, vendorID int64) ([]Block, error) {
	var resp struct {
		Blocks []Block `json:"blocks"`
	}
	path := "/api/v1/chain/vendors/" + strconv.FormatInt(vendorID, 10) + "/blocks"
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Blocks, nil
}

// LatestAudit returns the most recent background audit report. It returns
// ErrNotFound until the first audit has completed.
func (c *Client) LatestAudit(ctx context.Context) (*FleetResult, error) {
	var res FleetResult
	if err := c.call(ctx, http.MethodGet, "/api/v1/chain/audit/latest", nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func strictQuery(strict bool) string {
	if strict {
		return "?strict=true"
	}
	return ""
}

func (c *Client) call(ctx context.Context, method, path string, reqBody, respBody any) error {
	var rdr io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	body, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, respBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// do executes an HTTP request, attaching the Bearer token if present.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, req.URL.Path)
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, fmt.Errorf("unauthorized: %s", apiError(body))
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, apiError(body))
	}
	return body, nil
}

// apiError extracts the {"error": "..."} message, falling back to the raw body.
func apiError(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return string(body)
}
