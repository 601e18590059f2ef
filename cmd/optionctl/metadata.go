package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"
	"github.com/wyfcoding/optionsdesk/internal/option/domain"
)

func newMetadataCmd() *cobra.Command {
	var (
		flags  contractFlags
		intent bool
	)

	cmd := &cobra.Command{
		Use:   "metadata",
		Short: "Render the NFT metadata of an option",
		Example: `  optionctl metadata --type put --strike 0.35 --expiry 2026-06-01T00:00:00Z
  optionctl metadata --owner addr_test1... --intent`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := flags.contract(time.Now().UTC())
			if err != nil {
				return err
			}

			var payload any = domain.RenderMetadata(c)
			if intent {
				payload = domain.MintIntent(c)
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(payload)
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&intent, "intent", false, "wrap the metadata in a mint intent under label 721")
	return cmd
}
