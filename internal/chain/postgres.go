package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// advisoryLockNamespace is the first key of the two-key advisory lock taken
// per append; the second key is derived from the vendor ID. The value must be
// identical across all server instances.
const advisoryLockNamespace = int32(0x7c4a1)

const blockColumns = `id, vendor_id, action, payload_hash, prev_hash, hash, created_at`

// PostgresStore persists vendor chains in the chain_entries table.
// It implements the Store interface.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a PostgresStore backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// Append implements Store.
// It acquires a vendor-scoped advisory lock, reads the vendor's tail, builds
// the new block and inserts it, all within a single transaction. The lock is
// released when the transaction commits or rolls back.
func (s *PostgresStore) Append(ctx context.Context, vendorID int64, build BuildFunc) (*Block, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx,
		"SELECT pg_advisory_xact_lock($1::int4, $2::int4)",
		advisoryLockNamespace, vendorLockKey(vendorID),
	); err != nil {
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	prevHash := Genesis
	err = tx.QueryRow(ctx,
		"SELECT hash FROM chain_entries WHERE vendor_id = $1 ORDER BY id DESC LIMIT 1",
		vendorID,
	).Scan(&prevHash)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("read chain tail: %w", err)
	}

	b, err := build(prevHash)
	if err != nil {
		return nil, fmt.Errorf("build block: %w", err)
	}

	if err := tx.QueryRow(ctx,
		`INSERT INTO chain_entries (vendor_id, action, payload_hash, prev_hash, hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		b.VendorID, b.Action, b.PayloadHash, b.PrevHash, b.Hash, b.CreatedAt,
	).Scan(&b.ID); err != nil {
		return nil, fmt.Errorf("insert chain entry: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit chain tx: %w", err)
	}

	s.logger.Debug("chain entry persisted",
		zap.Int64("id", b.ID),
		zap.Int64("vendor_id", b.VendorID),
	)
	return b, nil
}

// Latest implements Store.
func (s *PostgresStore) Latest(ctx context.Context, vendorID int64) (*Block, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+blockColumns+` FROM chain_entries
		 WHERE vendor_id = $1 ORDER BY id DESC LIMIT 1`, vendorID,
	)
	b, err := scanBlock(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get chain tail for vendor %d: %w", vendorID, err)
	}
	return b, nil
}

// ListByVendor implements Store. O(n) in chain length.
func (s *PostgresStore) ListByVendor(ctx context.Context, vendorID int64) ([]*Block, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+blockColumns+` FROM chain_entries
		 WHERE vendor_id = $1 ORDER BY id ASC`, vendorID,
	)
	if err != nil {
		return nil, fmt.Errorf("query chain entries: %w", err)
	}
	defer rows.Close()

	var blocks []*Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, fmt.Errorf("scan chain entry: %w", err)
		}
		blocks = append(blocks, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chain entries: %w", err)
	}
	return blocks, nil
}

// Vendors implements Store.
func (s *PostgresStore) Vendors(ctx context.Context) ([]int64, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT DISTINCT vendor_id FROM chain_entries ORDER BY vendor_id ASC",
	)
	if err != nil {
		return nil, fmt.Errorf("query vendors: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("collect vendors: %w", err)
	}
	return ids, nil
}

func scanBlock(row pgx.Row) (*Block, error) {
	b := &Block{}
	if err := row.Scan(
		&b.ID, &b.VendorID, &b.Action, &b.PayloadHash,
		&b.PrevHash, &b.Hash, &b.CreatedAt,
	); err != nil {
		return nil, err
	}
	b.CreatedAt = b.CreatedAt.UTC()
	return b, nil
}

// vendorLockKey folds a vendor ID into the int4 advisory key space. Two
// vendors sharing a key only serialize against each other.
func vendorLockKey(vendorID int64) int32 {
	return int32(vendorID ^ (vendorID >> 32))
}
