package chain

import "context"

// BuildFunc derives the next block of a vendor chain from the hash of the
// current tail (Genesis for an empty chain). The store assigns the ID.
type BuildFunc func(prevHash string) (*Block, error)

// Store is the ordered, append-only block store shared by Writer and
// Verifier. It deliberately has no update or delete operation.
type Store interface {
	// Append reads the vendor's tail, calls build and persists the result as
	// one atomic step. Appends for the same vendor are mutually exclusive;
	// appends for different vendors may run concurrently.
	Append(ctx context.Context, vendorID int64, build BuildFunc) (*Block, error)

	// Latest returns the vendor's most recent block, or nil if it has none.
	Latest(ctx context.Context, vendorID int64) (*Block, error)

	// ListByVendor returns all of a vendor's blocks in ascending ID order.
	ListByVendor(ctx context.Context, vendorID int64) ([]*Block, error)

	// Vendors returns the distinct vendor IDs present, ascending.
	Vendors(ctx context.Context) ([]int64, error)
}
