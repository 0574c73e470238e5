// Package client is the TrustChain Go SDK.
//
// It wraps the trustchaind HTTP API: appending blocks to a vendor's ledger,
// verifying one vendor or the whole fleet, listing blocks, and reading the
// latest background audit.
//
// # Recording an action as a vendor
//
// Vendors authenticate with a session token issued by the operator
// (chainctl token <vendor-id>):
//
//	c, err := client.New("https://ledger.example.com",
//	    client.WithBearerToken(os.Getenv("TRUSTCHAIN_TOKEN")),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	block, err := c.Append(ctx, "CREDIT", map[string]any{"customerId": 4, "amount": 250})
//
// # Auditing
//
// Verification endpoints are public. Tampering is reported in the result,
// never as an error:
//
//	res, err := c.Verify(ctx, 7, false)
//	if err == nil && !res.IsValid {
//	    fmt.Println(res.Status, res.BrokenAtID)
//	}
package client
