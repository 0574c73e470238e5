package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmerrifield20/trustchain/internal/chain"
	"go.uber.org/zap"
)

// ── Stubs ────────────────────────────────────────────────────────────────

type stubVerifier struct {
	fleets []*chain.FleetResult
	err    error
	calls  int
}

func (s *stubVerifier) VerifyAll(_ context.Context) (*chain.FleetResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	f := s.fleets[s.calls%len(s.fleets)]
	s.calls++
	return f, nil
}

func fleetOf(results ...*chain.Result) *chain.FleetResult {
	f := &chain.FleetResult{OverallValid: true, VendorsChecked: len(results), Results: results}
	for _, r := range results {
		if !r.IsValid {
			f.OverallValid = false
		}
	}
	return f
}

func valid(vendorID int64) *chain.Result {
	return &chain.Result{VendorID: vendorID, Status: chain.StatusValid, IsValid: true, TotalEntries: 2}
}

func broken(vendorID, at int64) *chain.Result {
	return &chain.Result{VendorID: vendorID, Status: chain.StatusBrokenLink, BrokenAtID: at, TotalEntries: 3}
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestRunOnce_cachesReport(t *testing.T) {
	cache := NewMemoryReportCache()
	v := &stubVerifier{fleets: []*chain.FleetResult{fleetOf(valid(1))}}
	a := New(v, cache, Config{}, zap.NewNop())

	if _, err := cache.Latest(context.Background()); !errors.Is(err, ErrNoReport) {
		t.Fatalf("expected ErrNoReport before first sweep, got %v", err)
	}

	if _, err := a.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	got, err := cache.Latest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !got.OverallValid || got.VendorsChecked != 1 {
		t.Errorf("cached report = %+v", got)
	}
}

func TestRunOnce_reportsEachBreakOnce(t *testing.T) {
	v := &stubVerifier{fleets: []*chain.FleetResult{
		fleetOf(valid(1), broken(2, 10)),
		fleetOf(valid(1), broken(2, 10)),
		fleetOf(broken(1, 4), broken(2, 10)),
		fleetOf(valid(1), broken(2, 12)),
	}}
	a := New(v, nil, Config{}, zap.NewNop())

	var alerted []int64
	a.SetBrokenChainHandler(func(_ context.Context, res *chain.Result) {
		alerted = append(alerted, res.VendorID)
	})

	for i := 0; i < 4; i++ {
		if _, err := a.RunOnce(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	want := []int64{2, 1, 2}
	if len(alerted) != len(want) {
		t.Fatalf("alerts = %v, want %v", alerted, want)
	}
	for i := range want {
		if alerted[i] != want[i] {
			t.Errorf("alert %d = vendor %d, want %d", i, alerted[i], want[i])
		}
	}
}

func TestRunOnce_verifierError(t *testing.T) {
	v := &stubVerifier{err: errors.New("db down")}
	a := New(v, NewMemoryReportCache(), Config{}, zap.NewNop())

	var gotErr error
	a.SetMetricsRecord(func(_ *chain.FleetResult, err error) { gotErr = err })

	if _, err := a.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if gotErr == nil {
		t.Error("expected metrics callback to observe the error")
	}
}

func TestRun_stopsOnCancel(t *testing.T) {
	v := &stubVerifier{fleets: []*chain.FleetResult{fleetOf(valid(1))}}
	a := New(v, nil, Config{Interval: 10 * time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
