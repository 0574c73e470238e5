// Package audit runs the periodic fleet-wide chain audit and keeps the most
// recent report available to the API.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/jmerrifield20/trustchain/internal/chain"
	"go.uber.org/zap"
)

// Config holds audit sweep configuration.
type Config struct {
	Interval time.Duration
	Timeout  time.Duration
}

// FleetVerifier runs a full audit across all vendors.
type FleetVerifier interface {
	VerifyAll(ctx context.Context) (*chain.FleetResult, error)
}

// BrokenChainFunc is an optional callback invoked once per newly detected
// chain break.
type BrokenChainFunc func(ctx context.Context, res *chain.Result)

// MetricsRecordFunc is an optional callback for recording sweep outcomes.
// fleet is nil when err is non-nil.
type MetricsRecordFunc func(fleet *chain.FleetResult, err error)

// Auditor runs periodic fleet verification.
type Auditor struct {
	verifier  FleetVerifier
	cache     ReportCache
	cfg       Config
	mu        sync.Mutex
	known     map[int64]breakKey
	onBroken  BrokenChainFunc
	onMetrics MetricsRecordFunc
	logger    *zap.Logger
}

// breakKey identifies a specific break so a chain that stays broken is not
// reported again on every sweep.
type breakKey struct {
	status     chain.Status
	brokenAtID int64
}

// New creates an Auditor. cache may be nil to skip report caching.
func New(verifier FleetVerifier, cache ReportCache, cfg Config, logger *zap.Logger) *Auditor {
	if cfg.Interval == 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Auditor{
		verifier: verifier,
		cache:    cache,
		cfg:      cfg,
		known:    make(map[int64]breakKey),
		logger:   logger,
	}
}

// SetBrokenChainHandler configures the callback for newly broken chains.
func (a *Auditor) SetBrokenChainHandler(fn BrokenChainFunc) {
	a.onBroken = fn
}

// SetMetricsRecord configures the metrics recording callback.
func (a *Auditor) SetMetricsRecord(fn MetricsRecordFunc) {
	a.onMetrics = fn
}

// Run sweeps the fleet every Interval until ctx is cancelled.
func (a *Auditor) Run(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sweepCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
			_, _ = a.RunOnce(sweepCtx)
			cancel()
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce performs a single fleet audit, caches the report and dispatches
// newly broken chains.
func (a *Auditor) RunOnce(ctx context.Context) (*chain.FleetResult, error) {
	start := time.Now()
	fleet, err := a.verifier.VerifyAll(ctx)
	if a.onMetrics != nil {
		a.onMetrics(fleet, err)
	}
	if err != nil {
		a.logger.Error("audit: fleet verification", zap.Error(err))
		return nil, err
	}

	a.logger.Info("audit: sweep complete",
		zap.Bool("overall_valid", fleet.OverallValid),
		zap.Int("vendors_checked", fleet.VendorsChecked),
		zap.Duration("took", time.Since(start)),
	)

	if a.cache != nil {
		if err := a.cache.Store(ctx, fleet); err != nil {
			a.logger.Warn("audit: cache report", zap.Error(err))
		}
	}

	for _, res := range a.newlyBroken(fleet) {
		a.logger.Warn("audit: chain broken",
			zap.Int64("vendor_id", res.VendorID),
			zap.String("status", string(res.Status)),
			zap.Int64("broken_at_id", res.BrokenAtID),
		)
		if a.onBroken != nil {
			a.onBroken(ctx, res)
		}
	}
	return fleet, nil
}

// newlyBroken diffs fleet against the previous sweep.
func (a *Auditor) newlyBroken(fleet *chain.FleetResult) []*chain.Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []*chain.Result
	seen := make(map[int64]bool, len(fleet.Results))
	for _, res := range fleet.Results {
		if res.IsValid {
			continue
		}
		seen[res.VendorID] = true
		k := breakKey{status: res.Status, brokenAtID: res.BrokenAtID}
		if prev, ok := a.known[res.VendorID]; ok && prev == k {
			continue
		}
		a.known[res.VendorID] = k
		out = append(out, res)
	}
	for id := range a.known {
		if !seen[id] {
			delete(a.known, id)
		}
	}
	return out
}
