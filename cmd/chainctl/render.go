package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/jmerrifield20/trustchain/internal/chain"
	"github.com/jmerrifield20/trustchain/pkg/client"
	"github.com/pterm/pterm"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// convertResult maps a locally computed result onto the wire type so both
// verification paths render identically.
func convertResult(res *chain.Result) (*client.VerifyResult, error) {
	var out client.VerifyResult
	if err := roundTrip(res, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func convertFleet(fleet *chain.FleetResult) (*client.FleetResult, error) {
	var out client.FleetResult
	if err := roundTrip(fleet, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func roundTrip(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return json.Unmarshal(data, out)
}

func renderResult(w io.Writer, res *client.VerifyResult) {
	if res.IsValid {
		pterm.Success.WithWriter(w).Printfln("Vendor %d: %s (%d entries)", res.VendorID, res.Status, res.TotalEntries)
		return
	}

	pterm.Error.WithWriter(w).Printfln("Vendor %d: %s at block %d", res.VendorID, res.Status, res.BrokenAtID)
	data := pterm.TableData{
		{"Field", "Value"},
		{"Message", res.Message},
		{"Total entries", strconv.Itoa(res.TotalEntries)},
	}
	if res.Reason != "" {
		data = append(data, []string{"Reason", res.Reason})
	}
	if res.ExpectedPrevHash != "" || res.FoundPrevHash != "" {
		data = append(data,
			[]string{"Expected prev_hash", res.ExpectedPrevHash},
			[]string{"Found prev_hash", res.FoundPrevHash},
		)
	}
	if res.ExpectedHash != "" {
		data = append(data,
			[]string{"Expected hash", res.ExpectedHash},
			[]string{"Found hash", res.FoundHash},
		)
	}
	_ = pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
}

func renderFleet(w io.Writer, fleet *client.FleetResult) {
	data := pterm.TableData{{"Vendor", "Status", "Entries", "Broken at"}}
	for _, r := range fleet.Results {
		brokenAt := ""
		if r.BrokenAtID != 0 {
			brokenAt = strconv.FormatInt(r.BrokenAtID, 10)
		}
		data = append(data, []string{
			strconv.FormatInt(r.VendorID, 10),
			r.Status,
			strconv.Itoa(r.TotalEntries),
			brokenAt,
		})
	}
	if len(fleet.Results) > 0 {
		_ = pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
	}

	if fleet.OverallValid {
		pterm.Success.WithWriter(w).Printfln("All %d vendor chain(s) valid", fleet.VendorsChecked)
		return
	}
	broken := 0
	for _, r := range fleet.Results {
		if !r.IsValid {
			broken++
		}
	}
	pterm.Error.WithWriter(w).Printfln("%d of %d vendor chain(s) broken", broken, fleet.VendorsChecked)
}

func renderBlocks(w io.Writer, blocks []client.Block) {
	data := pterm.TableData{{"ID", "Action", "Created", "Prev hash", "Hash"}}
	for _, b := range blocks {
		data = append(data, []string{
			strconv.FormatInt(b.ID, 10),
			b.Action,
			b.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			short(b.PrevHash),
			short(b.Hash),
		})
	}
	_ = pterm.DefaultTable.WithHasHeader().WithWriter(w).WithData(data).Render()
}

// short abbreviates a hex digest for table output.
func short(h string) string {
	if len(h) <= 12 {
		return h
	}
	return h[:12] + "…"
}
