package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Genesis is the prev_hash sentinel carried by a vendor's first block.
const Genesis = "GENESIS"

// HashSchemeVersion identifies the signing-string layout produced by
// SigningString. Changing field order, delimiter or timestamp layout requires
// a new version; chains written under v1 must keep verifying under v1.
const HashSchemeVersion = 1

// TimestampLayout is the fixed-precision UTC rendering of created_at used in
// the signing string.
const TimestampLayout = "2006-01-02T15:04:05.000000Z"

// Business events recorded by the vendor application.
const (
	ActionSignup         = "SIGNUP"
	ActionLogin          = "LOGIN"
	ActionAddCustomer    = "ADD_CUSTOMER"
	ActionDeleteCustomer = "DELETE_CUSTOMER"
	ActionAddCredit      = "ADD_CREDIT"
	ActionPayCredit      = "PAY_CREDIT"
	ActionAddSale        = "ADD_SALE"
	ActionUploadPhoto    = "UPLOAD_PHOTO"
)

// Block is a single immutable ledger entry.
type Block struct {
	ID          int64     `json:"id"`
	VendorID    int64     `json:"vendor_id"`
	Action      string    `json:"action"`
	PayloadHash string    `json:"payload_hash"`
	PrevHash    string    `json:"prev_hash"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// FormatTimestamp renders t the way it enters the signing string.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// normalizeTime drops everything the signing string and the database cannot
// represent, so a stored block re-hashes to the same value after a round trip.
func normalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// SigningString builds the v1 hash input:
//
//	vendor_id|action|payload_hash|prev_hash|created_at
func SigningString(vendorID int64, action, payloadHash, prevHash string, createdAt time.Time) string {
	return fmt.Sprintf("%d|%s|%s|%s|%s",
		vendorID, action, payloadHash, prevHash, FormatTimestamp(createdAt),
	)
}

// HashBlock computes the hash a block should carry given its other fields.
// The block's own Hash and ID are ignored.
func HashBlock(b *Block) string {
	return sha256Sum([]byte(SigningString(b.VendorID, b.Action, b.PayloadHash, b.PrevHash, b.CreatedAt)))
}

// sha256Sum returns the hex-encoded SHA-256 digest of data.
func sha256Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func cloneBlock(b *Block) *Block {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}
