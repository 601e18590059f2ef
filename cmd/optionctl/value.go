package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newValueCmd() *cobra.Command {
	var (
		flags   contractFlags
		spotRaw string
		atRaw   string
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "value",
		Short: "Value an option at a spot price",
		Example: `  optionctl value --type call --strike 0.40 --premium 0.10 --spot 0.50 --expiry 2026-06-01T00:00:00Z
  optionctl value --type put --strike 0.35 --spot 0.30 --at 2026-05-31T12:00:00Z --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			spot, err := decimal.NewFromString(spotRaw)
			if err != nil {
				return fmt.Errorf("invalid --spot %q: %w", spotRaw, err)
			}
			now := time.Now().UTC()
			if atRaw != "" {
				if now, err = time.Parse(time.RFC3339, atRaw); err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}

			c, err := flags.contract(now)
			if err != nil {
				return err
			}
			v := c.Value(spot, now)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(v)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "option\t%s %s @ %s\n", c.OptionType, c.UnderlyingAsset, c.StrikePrice)
			fmt.Fprintf(tw, "spot\t%s\n", v.SpotPrice)
			fmt.Fprintf(tw, "intrinsic\t%s\n", v.IntrinsicValue)
			fmt.Fprintf(tw, "p/l\t%s\n", v.ProfitLoss)
			fmt.Fprintf(tw, "status\t%s\n", v.Status)
			fmt.Fprintf(tw, "exercisable\t%t\n", v.Exercisable)
			fmt.Fprintf(tw, "expires in\t%s\n", v.Countdown)
			if v.ExpiresSoon {
				fmt.Fprintf(tw, "warning\texpires soon\n")
			}
			return tw.Flush()
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&spotRaw, "spot", "", "spot price of the underlying in USD")
	cmd.Flags().StringVar(&atRaw, "at", "", "valuation time (RFC3339), defaults to now")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the valuation as JSON")
	_ = cmd.MarkFlagRequired("spot")
	return cmd
}
