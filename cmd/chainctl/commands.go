package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmerrifield20/trustchain/internal/identity"
	"github.com/jmerrifield20/trustchain/pkg/client"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ── append ───────────────────────────────────────────────────────────────────

var (
	appendPayload string
	appendToken   string
)

var appendCmd = &cobra.Command{
	Use:   "append <action>",
	Short: "Append a block to the authenticated vendor's chain",
	Long: `Append records an action on the vendor chain identified by the token.

  chainctl append CREDIT --payload '{"customerId":4,"amount":250}' --token $TRUSTCHAIN_TOKEN

The token may also come from the "token" config key or TOKEN env var.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token := appendToken
		if token == "" {
			token = viper.GetString("token")
		}
		if token == "" {
			return errors.New("a vendor token is required (--token)")
		}

		var payload any
		if appendPayload != "" {
			if !json.Valid([]byte(appendPayload)) {
				return errors.New("--payload must be valid JSON")
			}
			payload = json.RawMessage(appendPayload)
		}

		c, err := newClient(client.WithBearerToken(token))
		if err != nil {
			return err
		}
		b, err := c.Append(cmd.Context(), args[0], payload)
		if err != nil {
			return err
		}

		if outputFormat == "json" {
			return printJSON(cmd.OutOrStdout(), b)
		}
		pterm.Success.WithWriter(cmd.OutOrStdout()).Printfln("Appended block %d for vendor %d", b.ID, b.VendorID)
		renderBlocks(cmd.OutOrStdout(), []client.Block{*b})
		return nil
	},
}

func init() {
	appendCmd.Flags().StringVar(&appendPayload, "payload", "", "JSON payload recorded with the action")
	appendCmd.Flags().StringVar(&appendToken, "token", "", "Vendor session token")
}

// ── blocks ───────────────────────────────────────────────────────────────────

var blocksCmd = &cobra.Command{
	Use:   "blocks <vendor-id>",
	Short: "List a vendor's chain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vendorID, err := parseVendorID(args[0])
		if err != nil {
			return err
		}
		c, err := newClient()
		if err != nil {
			return err
		}
		blocks, err := c.Blocks(cmd.Context(), vendorID)
		if err != nil {
			return err
		}

		if outputFormat == "json" {
			return printJSON(cmd.OutOrStdout(), blocks)
		}
		if len(blocks) == 0 {
			pterm.Info.WithWriter(cmd.OutOrStdout()).Printfln("Vendor %d has no blocks", vendorID)
			return nil
		}
		renderBlocks(cmd.OutOrStdout(), blocks)
		return nil
	},
}

// ── audit ────────────────────────────────────────────────────────────────────

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show the server's latest background audit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}
		fleet, err := c.LatestAudit(cmd.Context())
		if errors.Is(err, client.ErrNotFound) {
			return errors.New("no audit has completed yet")
		}
		if err != nil {
			return err
		}

		if outputFormat == "json" {
			return printJSON(cmd.OutOrStdout(), fleet)
		}
		renderFleet(cmd.OutOrStdout(), fleet)
		return nil
	},
}

// ── token ────────────────────────────────────────────────────────────────────

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <vendor-id>",
	Short: "Mint a vendor session token",
	Long: `Token signs a vendor session token with the server's shared secret
(auth.secret_key, or AUTH_SECRET_KEY in the environment).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		vendorID, err := parseVendorID(args[0])
		if err != nil {
			return err
		}
		issuerName := viper.GetString("auth.issuer")
		if issuerName == "" {
			issuerName = "trustchain"
		}
		tokens, err := identity.NewVendorTokenIssuer([]byte(viper.GetString("auth.secret_key")), issuerName, tokenTTL)
		if err != nil {
			return fmt.Errorf("set auth.secret_key or AUTH_SECRET_KEY: %w", err)
		}
		tok, err := tokens.Issue(vendorID)
		if err != nil {
			return err
		}

		if outputFormat == "json" {
			return printJSON(cmd.OutOrStdout(), map[string]any{"vendor_id": vendorID, "token": tok})
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", identity.DefaultTokenTTL, "Token lifetime")
}
