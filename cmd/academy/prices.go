package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ZanzyTHEbar/crypto-academy/academy/errs"
	"github.com/ZanzyTHEbar/crypto-academy/academy/market"
)

func newPricesCmd(opts *rootOptions) *cobra.Command {
	var (
		limit       int
		coinType    string
		stablecoins bool
	)

	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Print coins ranked by market cap",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := buildApp(ctx, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			coins, err := a.Market.ListCoins(ctx, market.ListOptions{Limit: limit, Type: coinType})
			if err != nil {
				a.Logger.Debug().Err(err).Msg("Listing coins failed")
				return fmt.Errorf("%s", errs.UserMessage(err))
			}
			if !stablecoins {
				coins = market.FilterStablecoins(coins, false)
			}

			return printCoins(cmd.OutOrStdout(), market.RankByMarketCap(coins))
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of coins to request (0 uses the configured default)")
	cmd.Flags().StringVar(&coinType, "type", "", "only coins of this type")
	cmd.Flags().BoolVar(&stablecoins, "stablecoins", true, "include stablecoins")
	return cmd
}

func printCoins(w io.Writer, coins []market.Coin) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tSYMBOL\tNAME\tPRICE (USD)\t24H %\tMARKET CAP (USD)\t")
	for i, c := range coins {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.4f\t%+.2f\t%.0f\t\n", i+1, c.Symbol, c.Name, c.PriceUSD, c.PercentChange24h, c.MarketCapUSD)
	}

	s := market.Summarize(coins)
	fmt.Fprintf(tw, "\t\t%d coins\t\tmean %+.2f\t%.0f\t\n", s.Count, s.MeanChange24h, s.TotalMarketCap)
	return tw.Flush()
}
