package alerts

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmerrifield20/trustchain/internal/chain"
	"go.uber.org/zap"
)

func brokenResult() *chain.Result {
	return &chain.Result{
		VendorID:         7,
		Status:           chain.StatusBrokenLink,
		Reason:           "prev_hash mismatch (tamper suspected)",
		BrokenAtID:       3,
		ExpectedPrevHash: "aa",
		FoundPrevHash:    "bb",
		TotalEntries:     2,
	}
}

func TestNotifyBroken_signedDelivery(t *testing.T) {
	var got Alert
	var sigOK atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		sigOK.Store(r.Header.Get(SignatureHeader) == Sign(body, "s3cret"))
		json.Unmarshal(body, &got) //nolint:errcheck
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDispatcher([]string{srv.URL}, "s3cret", zap.NewNop())
	d.NotifyBroken(context.Background(), brokenResult())
	d.Wait()

	if !sigOK.Load() {
		t.Error("signature header did not match body HMAC")
	}
	if got.Type != EventChainTampered || got.VendorID != 7 || got.BrokenAtID != 3 || got.Status != chain.StatusBrokenLink {
		t.Errorf("unexpected alert: %+v", got)
	}
	if got.ID == "" {
		t.Error("expected alert ID")
	}
}

func TestNotifyBroken_retriesThenSucceeds(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := NewDispatcher([]string{srv.URL}, "k", zap.NewNop())
	d.delays = []time.Duration{0, time.Millisecond, time.Millisecond}
	var outcomes []bool
	d.SetMetricsRecorder(func(ok bool) { outcomes = append(outcomes, ok) })

	d.NotifyBroken(context.Background(), brokenResult())
	d.Wait()

	if hits.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", hits.Load())
	}
	if len(outcomes) != 3 || outcomes[0] || outcomes[1] || !outcomes[2] {
		t.Errorf("metrics outcomes = %v, want [false false true]", outcomes)
	}
}

func TestNotifyBroken_survivesCancelledSweep(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	d := NewDispatcher([]string{srv.URL}, "k", zap.NewNop())
	d.NotifyBroken(ctx, brokenResult())
	cancel()
	d.Wait()

	if hits.Load() != 1 {
		t.Errorf("expected delivery despite cancelled sweep, got %d hits", hits.Load())
	}
}

func TestNotifyBroken_noURLs(t *testing.T) {
	d := NewDispatcher(nil, "k", zap.NewNop())
	d.NotifyBroken(context.Background(), brokenResult())
	d.Wait()
}
