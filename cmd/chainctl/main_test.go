package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmerrifield20/trustchain/internal/chain"
)

func TestParseVendorID(t *testing.T) {
	if id, err := parseVendorID("42"); err != nil || id != 42 {
		t.Errorf("parseVendorID(42) = %d, %v", id, err)
	}
	for _, bad := range []string{"", "0", "-1", "seven"} {
		if _, err := parseVendorID(bad); err == nil {
			t.Errorf("parseVendorID(%q): expected error", bad)
		}
	}
}

func TestConvertResult_keepsBreakDetails(t *testing.T) {
	res := &chain.Result{
		VendorID:         7,
		Status:           chain.StatusBrokenLink,
		TotalEntries:     2,
		BrokenAtID:       3,
		ExpectedPrevHash: "aaa",
		FoundPrevHash:    "bbb",
	}
	got, err := convertResult(res)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != "BROKEN_LINK" || got.BrokenAtID != 3 || got.ExpectedPrevHash != "aaa" || got.FoundPrevHash != "bbb" {
		t.Errorf("convertResult = %+v", got)
	}
}

func TestVerifyCommand_brokenChainExits2(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"vendor_id": 7, "status": "BROKEN_GENESIS", "total_entries": 1,
			"is_valid": false, "broken_at_id": 1,
		})
	}))
	defer srv.Close()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"verify", "7", "--server", srv.URL, "--format", "json"})
	t.Cleanup(func() { serverURL, outputFormat = "", "text" })

	err := rootCmd.Execute()
	if !errors.Is(err, errChainInvalid) {
		t.Fatalf("expected errChainInvalid, got %v", err)
	}
	if !strings.Contains(out.String(), `"status": "BROKEN_GENESIS"`) {
		t.Errorf("unexpected output: %s", out.String())
	}
}

func TestShort(t *testing.T) {
	if got := short("GENESIS"); got != "GENESIS" {
		t.Errorf("short(GENESIS) = %q", got)
	}
	if got := short(strings.Repeat("a", 64)); got != "aaaaaaaaaaaa…" {
		t.Errorf("short(digest) = %q", got)
	}
}
