package chain

import (
	"errors"
	"fmt"
)

var (
	// ErrPersistence matches every append whose durable write did not happen.
	// No block was recorded; the caller may retry.
	ErrPersistence = errors.New("chain: persistence failure")

	ErrEmptyAction    = errors.New("chain: action must not be empty")
	ErrInvalidVendor  = errors.New("chain: vendor id must be positive")
	ErrInvalidPayload = errors.New("chain: payload is not JSON-serializable")
)

// AppendError reports a failed durable append. It wraps the store error and
// satisfies errors.Is(err, ErrPersistence).
type AppendError struct {
	VendorID int64
	Action   string
	Err      error
}

func (e *AppendError) Error() string {
	return fmt.Sprintf("append %s for vendor %d: %v", e.Action, e.VendorID, e.Err)
}

func (e *AppendError) Unwrap() error { return e.Err }

func (e *AppendError) Is(target error) bool { return target == ErrPersistence }
