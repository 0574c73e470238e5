// Package alerts notifies external systems when a chain audit detects
// tampering. Alerts are HMAC-SHA256 signed JSON POSTs.
package alerts

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmerrifield20/trustchain/internal/chain"
	"go.uber.org/zap"
)

// EventChainTampered is the only alert type emitted today.
const EventChainTampered = "chain.tampered"

// SignatureHeader carries "sha256=<hex hmac>" of the request body.
const SignatureHeader = "X-TrustChain-Signature"

// Alert is the JSON body delivered to every configured endpoint.
type Alert struct {
	ID               string       `json:"id"`
	Type             string       `json:"type"`
	Timestamp        time.Time    `json:"timestamp"`
	VendorID         int64        `json:"vendor_id"`
	Status           chain.Status `json:"status"`
	Reason           string       `json:"reason,omitempty"`
	BrokenAtID       int64        `json:"broken_at_id,omitempty"`
	ExpectedPrevHash string       `json:"expected_prev_hash,omitempty"`
	FoundPrevHash    string       `json:"found_prev_hash,omitempty"`
	TotalEntries     int          `json:"total_entries"`
}

// MetricsRecorder is an optional callback for recording delivery outcomes.
type MetricsRecorder func(success bool)

// Dispatcher fans alerts out to a fixed set of webhook URLs.
type Dispatcher struct {
	urls       []string
	secret     string
	httpClient *http.Client
	delays     []time.Duration
	onMetrics  MetricsRecorder
	wg         sync.WaitGroup
	logger     *zap.Logger
}

// NewDispatcher creates a Dispatcher. An empty url list makes every
// notification a no-op.
func NewDispatcher(urls []string, secret string, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		urls:       urls,
		secret:     secret,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		// Retry with backoff: immediately, then 1s, then 5s.
		delays: []time.Duration{0, 1 * time.Second, 5 * time.Second},
		logger: logger,
	}
}

// SetMetricsRecorder configures the metrics callback.
func (d *Dispatcher) SetMetricsRecorder(fn MetricsRecorder) {
	d.onMetrics = fn
}

// NotifyBroken sends a chain.tampered alert for res to every endpoint.
// Deliveries run in the background; use Wait to drain them.
func (d *Dispatcher) NotifyBroken(ctx context.Context, res *chain.Result) {
	if len(d.urls) == 0 {
		return
	}

	alert := Alert{
		ID:               uuid.New().String(),
		Type:             EventChainTampered,
		Timestamp:        time.Now().UTC(),
		VendorID:         res.VendorID,
		Status:           res.Status,
		Reason:           res.Reason,
		BrokenAtID:       res.BrokenAtID,
		ExpectedPrevHash: res.ExpectedPrevHash,
		FoundPrevHash:    res.FoundPrevHash,
		TotalEntries:     res.TotalEntries,
	}
	body, err := json.Marshal(alert)
	if err != nil {
		d.logger.Error("alerts: marshal alert", zap.Error(err))
		return
	}
	signature := Sign(body, d.secret)

	// Deliveries outlive the audit sweep that triggered them.
	ctx = context.WithoutCancel(ctx)
	for _, url := range d.urls {
		d.wg.Add(1)
		go func(url string) {
			defer d.wg.Done()
			d.deliver(ctx, url, body, signature)
		}(url)
	}
}

// Wait blocks until all in-flight deliveries have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, url string, body []byte, signature string) {
	for attempt, delay := range d.delays {
		if delay > 0 {
			time.Sleep(delay)
		}

		err := d.post(ctx, url, body, signature)
		if d.onMetrics != nil {
			d.onMetrics(err == nil)
		}
		if err == nil {
			return
		}

		d.logger.Warn("alerts: delivery failed",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
}

// post performs a single HTTP POST delivery.
func (d *Dispatcher) post(ctx context.Context, url string, body []byte, signature string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return nil
}

// Sign computes the signature header value for body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
