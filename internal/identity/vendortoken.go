package identity

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL matches the vendor session lifetime of the web app.
const DefaultTokenTTL = 30 * 24 * time.Hour

// ErrEmptySecret is returned when a token issuer is built without a key.
var ErrEmptySecret = errors.New("identity: signing secret must not be empty")

// VendorClaims are the JWT claims of a vendor session token. The vendor ID is
// carried in the standard "sub" claim as a decimal string.
type VendorClaims struct {
	jwt.RegisteredClaims
}

// VendorID parses the subject claim.
func (c *VendorClaims) VendorID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid vendor subject %q", c.Subject)
	}
	return id, nil
}

// VendorTokenIssuer issues and verifies vendor session JWTs signed with a
// shared HMAC secret.
type VendorTokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// NewVendorTokenIssuer creates a VendorTokenIssuer.
//
//	secret — HMAC key shared with the vendor application.
//	issuer — the "iss" claim value.
//	ttl    — token lifetime (default: DefaultTokenTTL).
func NewVendorTokenIssuer(secret []byte, issuer string, ttl time.Duration) (*VendorTokenIssuer, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	return &VendorTokenIssuer{secret: secret, issuer: issuer, ttl: ttl}, nil
}

// Issue creates a signed session token for vendorID.
func (v *VendorTokenIssuer) Issue(vendorID int64) (string, error) {
	if vendorID <= 0 {
		return "", fmt.Errorf("issue vendor token: vendor id must be positive")
	}
	now := time.Now().UTC()
	claims := VendorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			Subject:   strconv.FormatInt(vendorID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("sign vendor token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a vendor session token, returning its claims.
func (v *VendorTokenIssuer) Verify(tokenStr string) (*VendorClaims, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&VendorClaims{},
		func(tok *jwt.Token) (any, error) {
			if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", tok.Header["alg"])
			}
			return v.secret, nil
		},
		jwt.WithIssuer(v.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("verify vendor token: %w", err)
	}
	claims, ok := token.Claims.(*VendorClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid vendor token claims")
	}
	if _, err := claims.VendorID(); err != nil {
		return nil, err
	}
	return claims, nil
}
