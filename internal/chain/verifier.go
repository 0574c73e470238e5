package chain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status is the outcome of verifying one vendor chain.
type Status string

const (
	StatusEmpty         Status = "EMPTY"
	StatusValid         Status = "VALID"
	StatusBrokenGenesis Status = "BROKEN_GENESIS"
	StatusBrokenLink    Status = "BROKEN_LINK"
	// StatusHashMismatch is only reported in recompute mode.
	StatusHashMismatch Status = "HASH_MISMATCH"
)

// Result describes a single vendor chain audit. Tampering is reported here,
// never as an error.
type Result struct {
	VendorID     int64  `json:"vendor_id"`
	Status       Status `json:"status"`
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

// FleetResult aggregates the audit of every vendor in the store.
type FleetResult struct {
	OverallValid   bool      `json:"overall_valid"`
	VendorsChecked int       `json:"vendors_checked"`
	Results        []*Result `json:"results"`
	CheckedAt      time.Time `json:"checked_at"`
}

// BrokenVendors returns the results that failed verification.
func (f *FleetResult) BrokenVendors() []*Result {
	var out []*Result
	for _, r := range f.Results {
		if !r.IsValid {
			out = append(out, r)
		}
	}
	return out
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithRecompute makes the verifier also recompute every block's hash from its
// stored fields and report StatusHashMismatch when it differs. This is
// strictly stronger than the default link-continuity check, which trusts the
// stored hash values.
func WithRecompute() VerifierOption {
	return func(v *Verifier) { v.recompute = true }
}

// WithConcurrency bounds the number of vendors VerifyAll checks in parallel.
func WithConcurrency(n int) VerifierOption {
	return func(v *Verifier) {
		if n > 0 {
			v.concurrency = n
		}
	}
}

// Verifier replays vendor chains read-only. It takes no locks, so a chain may
// be observed without an append that is still in flight.
type Verifier struct {
	store       Store
	recompute   bool
	concurrency int
	logger      *zap.Logger
}

// NewVerifier creates a Verifier reading from store.
func NewVerifier(store Store, logger *zap.Logger, opts ...VerifierOption) *Verifier {
	v := &Verifier{
		store:       store,
		concurrency: 8,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Strict returns a copy of v with recompute mode enabled.
func (v *Verifier) Strict() *Verifier {
	c := *v
	c.recompute = true
	return &c
}

// Verify audits a single vendor chain. A vendor without blocks is reported as
// StatusEmpty and valid; the only error is a failure to read the store.
func (v *Verifier) Verify(ctx context.Context, vendorID int64) (*Result, error) {
	blocks, err := v.store.ListByVendor(ctx, vendorID)
	if err != nil {
		return nil, fmt.Errorf("load chain for vendor %d: %w", vendorID, err)
	}

	res := checkChain(vendorID, blocks, v.recompute)
	if !res.IsValid {
		v.logger.Warn("chain integrity check failed",
			zap.Int64("vendor_id", vendorID),
			zap.String("status", string(res.Status)),
			zap.Int64("broken_at_id", res.BrokenAtID),
		)
	}
	return res, nil
}

// VerifyAll audits every vendor present in the store. Every vendor is
// checked even when earlier ones are broken; a store read failure aborts the
// sweep. Results are ordered by vendor ID.
func (v *Verifier) VerifyAll(ctx context.Context) (*FleetResult, error) {
	ids, err := v.store.Vendors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list vendors: %w", err)
	}

	results := make([]*Result, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			r, err := v.Verify(gctx, id)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	fleet := &FleetResult{
		OverallValid:   true,
		VendorsChecked: len(ids),
		Results:        results,
		CheckedAt:      time.Now().UTC(),
	}
	for _, r := range results {
		if !r.IsValid {
			fleet.OverallValid = false
		}
	}
	return fleet, nil
}

// checkChain walks blocks (ascending by ID) and reports the first point of
// divergence. Later blocks are not examined once a break is found.
func checkChain(vendorID int64, blocks []*Block, recompute bool) *Result {
	res := &Result{
		VendorID:     vendorID,
		TotalEntries: len(blocks),
	}

	if len(blocks) == 0 {
		res.Status = StatusEmpty
		res.IsValid = true
		res.Message = "No entries for this vendor"
		return res
	}

	first := blocks[0]
	if strings.ToUpper(first.PrevHash) != Genesis {
		res.Status = StatusBrokenGenesis
		res.Reason = "First entry prev_hash is not GENESIS"
		res.BrokenAtID = first.ID
		res.ExpectedPrevHash = Genesis
		res.FoundPrevHash = first.PrevHash
		res.FirstEntry = first
		return res
	}
	if recompute && hashMismatch(res, first) {
		return res
	}

	expected := first.Hash
	for i := 1; i < len(blocks); i++ {
		cur := blocks[i]
		if cur.PrevHash != expected {
			res.Status = StatusBrokenLink
			res.Reason = "prev_hash mismatch (tamper suspected)"
			res.BrokenAtID = cur.ID
			res.ExpectedPrevHash = expected
			res.FoundPrevHash = cur.PrevHash
			res.BrokenEntry = cur
			res.PreviousEntry = blocks[i-1]
			return res
		}
		if recompute && hashMismatch(res, cur) {
			res.PreviousEntry = blocks[i-1]
			return res
		}
		expected = cur.Hash
	}

	res.Status = StatusValid
	res.IsValid = true
	res.Message = "Chain is valid"
	return res
}

// hashMismatch fills res and returns true when b's stored hash does not match
// the hash recomputed from its stored fields.
func hashMismatch(res *Result, b *Block) bool {
	want := HashBlock(b)
	if want == b.Hash {
		return false
	}
	res.Status = StatusHashMismatch
	res.Reason = "stored hash does not match recomputed hash"
	res.BrokenAtID = b.ID
	res.ExpectedHash = want
	res.FoundHash = b.Hash
	res.BrokenEntry = b
	return true
}
