package chain

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AppendRecorder is an optional callback for recording append outcomes.
type AppendRecorder func(action string, ok bool)

// Writer appends blocks to vendor chains.
type Writer struct {
	store    Store
	now      func() time.Time
	onAppend AppendRecorder
	logger   *zap.Logger
}

// NewWriter creates a Writer that persists to store.
func NewWriter(store Store, logger *zap.Logger) *Writer {
	return &Writer{
		store:  store,
		now:    time.Now,
		logger: logger,
	}
}

// SetClock replaces the wall clock used for created_at.
func (w *Writer) SetClock(now func() time.Time) {
	w.now = now
}

// SetMetricsRecorder configures the append metrics callback.
func (w *Writer) SetMetricsRecorder(fn AppendRecorder) {
	w.onAppend = fn
}

// Append records action for vendorID and returns the persisted block.
//
// The payload digest is computed before the vendor lock is taken. The tail
// read, created_at capture and hash derivation all happen inside the store's
// per-vendor critical section, so concurrent appends never fork a chain.
// Persistence failures are returned as *AppendError.
func (w *Writer) Append(ctx context.Context, vendorID int64, action string, payload any) (*Block, error) {
	if vendorID <= 0 {
		return nil, ErrInvalidVendor
	}
	if strings.TrimSpace(action) == "" {
		return nil, ErrEmptyAction
	}

	payloadHash, err := PayloadDigest(payload)
	if err != nil {
		return nil, err
	}

	b, err := w.store.Append(ctx, vendorID, func(prevHash string) (*Block, error) {
		b := &Block{
			VendorID:    vendorID,
			Action:      action,
			PayloadHash: payloadHash,
			PrevHash:    prevHash,
			CreatedAt:   normalizeTime(w.now()),
		}
		b.Hash = HashBlock(b)
		return b, nil
	})
	if err != nil {
		w.record(action, false)
		w.logger.Error("chain append failed",
			zap.Int64("vendor_id", vendorID),
			zap.String("action", action),
			zap.Error(err),
		)
		return nil, &AppendError{VendorID: vendorID, Action: action, Err: err}
	}

	w.record(action, true)
	w.logger.Debug("chain block appended",
		zap.Int64("id", b.ID),
		zap.Int64("vendor_id", b.VendorID),
		zap.String("action", b.Action),
		zap.String("hash", b.Hash),
	)
	return b, nil
}

func (w *Writer) record(action string, ok bool) {
	if w.onAppend != nil {
		w.onAppend(action, ok)
	}
}
