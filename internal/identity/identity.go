// Package identity authenticates vendors for the chain API.
//
// It provides:
//   - VendorTokenIssuer   — issues and verifies HS256 vendor session JWTs
//   - RequireVendorToken  — Gin middleware enforcing a Bearer vendor token
package identity
