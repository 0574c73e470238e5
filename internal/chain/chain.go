// Package chain implements the per-vendor tamper-evident ledger.
//
// Every state-changing vendor action is recorded as a Block whose Hash binds
// the vendor, the action, a digest of the canonical payload, the previous
// block's hash and the creation time. A vendor's first block links to the
// literal sentinel Genesis. Blocks are ordered by their store-assigned ID and
// are never updated or deleted, so retroactive edits surface as a broken link
// when the chain is replayed by a Verifier.
//
// Two Store implementations are provided:
//   - MemoryStore: in-process, for tests and single-process deployments.
//   - PostgresStore: durable, for production use.
//
// Writer and Verifier share the store and HashBlock; the hash scheme is a
// versioned wire contract (see HashSchemeVersion).
package chain
