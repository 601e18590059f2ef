// optionctl 离线期权估值与元数据渲染工具，兼带事件流查看与服务健康检查
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/wyfcoding/optionsdesk/internal/option/domain"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "optionctl",
		Short:         "Offline tooling for option NFTs",
		Long:          `Value option contracts at a given spot price, render their NFT metadata, and tail lifecycle events.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newValueCmd(), newMetadataCmd(), newTailCmd(), newHealthCmd())
	return root
}

// contractFlags value 与 metadata 共用的合约参数
type contractFlags struct {
	optionType string
	strike     string
	premium    string
	asset      string
	owner      string
	expiry     string
	created    string
	exercised  bool
}

func (f *contractFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.optionType, "type", "call", "option type: call or put")
	cmd.Flags().StringVar(&f.strike, "strike", "0.40", "strike price in USD")
	cmd.Flags().StringVar(&f.premium, "premium", "0.1", "premium paid in ADA")
	cmd.Flags().StringVar(&f.asset, "asset", "ADA", "underlying asset")
	cmd.Flags().StringVar(&f.owner, "owner", "", "holder address")
	cmd.Flags().StringVar(&f.expiry, "expiry", "", "expiry time (RFC3339), defaults to created + 24h")
	cmd.Flags().StringVar(&f.created, "created", "", "creation time (RFC3339), defaults to expiry - 24h or now")
	cmd.Flags().BoolVar(&f.exercised, "exercised", false, "mark the contract as already exercised")
}

func (f *contractFlags) contract(now time.Time) (domain.OptionContract, error) {
	typ, err := domain.ParseOptionType(f.optionType)
	if err != nil {
		return domain.OptionContract{}, err
	}
	strike, err := decimal.NewFromString(f.strike)
	if err != nil {
		return domain.OptionContract{}, fmt.Errorf("invalid --strike %q: %w", f.strike, err)
	}
	premium, err := decimal.NewFromString(f.premium)
	if err != nil {
		return domain.OptionContract{}, fmt.Errorf("invalid --premium %q: %w", f.premium, err)
	}

	created, expiry := now, time.Time{}
	if f.expiry != "" {
		if expiry, err = time.Parse(time.RFC3339, f.expiry); err != nil {
			return domain.OptionContract{}, fmt.Errorf("invalid --expiry: %w", err)
		}
		created = expiry.Add(-24 * time.Hour)
	}
	if f.created != "" {
		if created, err = time.Parse(time.RFC3339, f.created); err != nil {
			return domain.OptionContract{}, fmt.Errorf("invalid --created: %w", err)
		}
	}
	if expiry.IsZero() {
		expiry = created.Add(24 * time.Hour)
	}

	c, err := domain.NewOptionContract("offline", f.owner, domain.ContractTerms{
		OptionType:      typ,
		StrikePrice:     strike,
		Premium:         premium,
		UnderlyingAsset: f.asset,
		CreatedAt:       created.UTC(),
		ExpiryAt:        expiry.UTC(),
	})
	if err != nil {
		return domain.OptionContract{}, err
	}
	c.Exercised = f.exercised
	return c, nil
}
