package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jmerrifield20/trustchain/pkg/client"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	verifyStrict bool
	verifyDirect bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify <vendor-id>",
	Short: "Verify a single vendor chain",
	Long: `Verify walks one vendor's chain and reports the first broken link.

  chainctl verify 7
  chainctl verify 7 --strict           # also recompute every block hash
  chainctl verify 7 --direct           # read postgres (database.url) directly

Exits 2 when the chain is broken.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

var verifyAllCmd = &cobra.Command{
	Use:   "verify-all",
	Short: "Verify every vendor chain",
	Args:  cobra.NoArgs,
	RunE:  runVerifyAll,
}

func init() {
	for _, c := range []*cobra.Command{verifyCmd, verifyAllCmd} {
		c.Flags().BoolVar(&verifyStrict, "strict", false, "Recompute every block hash in addition to link checks")
		c.Flags().BoolVar(&verifyDirect, "direct", false, "Verify against the database instead of the server")
	}
}

func runVerify(cmd *cobra.Command, args []string) error {
	vendorID, err := parseVendorID(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	res, err := verifyOne(ctx, vendorID)
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		if err := printJSON(cmd.OutOrStdout(), res); err != nil {
			return err
		}
	} else {
		renderResult(cmd.OutOrStdout(), res)
	}
	if !res.IsValid {
		return errChainInvalid
	}
	return nil
}

func verifyOne(ctx context.Context, vendorID int64) (*client.VerifyResult, error) {
	if !verifyDirect {
		c, err := newClient()
		if err != nil {
			return nil, err
		}
		return c.Verify(ctx, vendorID, verifyStrict)
	}

	v, closeFn, err := directVerifier(ctx, verifyStrict)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	res, err := v.Verify(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	return convertResult(res)
}

func runVerifyAll(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var spinner *pterm.SpinnerPrinter
	if outputFormat == "text" {
		spinner, _ = pterm.DefaultSpinner.WithWriter(cmd.ErrOrStderr()).Start("Verifying vendor chains...")
	}
	fleet, err := verifyFleet(ctx)
	if spinner != nil {
		if err != nil {
			spinner.Fail(err.Error())
		} else {
			spinner.Success(fmt.Sprintf("Checked %d vendor chain(s)", fleet.VendorsChecked))
		}
	}
	if err != nil {
		return err
	}

	if outputFormat == "json" {
		if err := printJSON(cmd.OutOrStdout(), fleet); err != nil {
			return err
		}
	} else {
		renderFleet(cmd.OutOrStdout(), fleet)
	}
	if !fleet.OverallValid {
		return errChainInvalid
	}
	return nil
}

func verifyFleet(ctx context.Context) (*client.FleetResult, error) {
	if !verifyDirect {
		c, err := newClient()
		if err != nil {
			return nil, err
		}
		return c.VerifyAll(ctx, verifyStrict)
	}

	v, closeFn, err := directVerifier(ctx, verifyStrict)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	fleet, err := v.VerifyAll(ctx)
	if err != nil {
		return nil, err
	}
	return convertFleet(fleet)
}

func parseVendorID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid vendor id %q: must be a positive integer", s)
	}
	return id, nil
}
