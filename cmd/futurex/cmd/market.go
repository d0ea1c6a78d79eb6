package cmd

import (
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"futurex/pkg/futures"
)

var contractsCmd = &cobra.Command{
	Use:   "contracts [SYMBOL...]",
	Short: "List tradable contracts with their tick and step sizes",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		defer client.Close()

		contracts, err := client.GetContracts(cmd.Context())
		if err != nil {
			return err
		}

		symbols := make([]string, 0, len(contracts))
		for symbol := range contracts {
			if len(args) == 0 || slices.ContainsFunc(args, func(a string) bool { return strings.EqualFold(a, symbol) }) {
				symbols = append(symbols, symbol)
			}
		}
		slices.Sort(symbols)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SYMBOL\tTYPE\tMARGIN\tTICK\tSTEP")
		for _, symbol := range symbols {
			c := contracts[symbol]
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", c.Symbol, c.ContractType, c.MarginAsset, c.TickSize.String(), c.StepSize.String())
		}
		return w.Flush()
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Show futures wallet balances",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		defer client.Close()

		balances, err := client.GetBalance(cmd.Context())
		if err != nil {
			return err
		}

		assets := make([]string, 0, len(balances))
		for asset := range balances {
			assets = append(assets, asset)
		}
		slices.Sort(assets)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ASSET\tWALLET\tAVAILABLE\tUNREALIZED")
		for _, asset := range assets {
			b := balances[asset]
			fmt.Fprintf(w, "%s\t%g\t%g\t%g\n", b.Asset, b.WalletBalance, b.AvailableBalance, b.UnrealizedProfit)
		}
		return w.Flush()
	},
}

var (
	candleInterval string
	candleLast     int
)

var candlesCmd = &cobra.Command{
	Use:   "candles SYMBOL",
	Short: "Print historical candles, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		defer client.Close()

		contract, err := resolveContract(cmd.Context(), client, args[0])
		if err != nil {
			return err
		}

		candles, err := client.GetHistoricalCandles(cmd.Context(), contract, candleInterval)
		if err != nil {
			return err
		}
		if candleLast > 0 && len(candles) > candleLast {
			candles = candles[len(candles)-candleLast:]
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "OPEN TIME\tOPEN\tHIGH\tLOW\tCLOSE\tVOLUME")
		for _, c := range candles {
			fmt.Fprintf(w, "%s\t%g\t%g\t%g\t%g\t%g\n",
				time.UnixMilli(c.OpenTime).UTC().Format(time.DateTime), c.Open, c.High, c.Low, c.Close, c.Volume)
		}
		return w.Flush()
	},
}

var bidAskCmd = &cobra.Command{
	Use:   "bidask SYMBOL",
	Short: "Print the best bid and ask",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client := newClient()
		defer client.Close()

		contract, err := resolveContract(cmd.Context(), client, args[0])
		if err != nil {
			return err
		}

		quote, err := client.GetBidAsk(cmd.Context(), contract)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s bid %s ask %s spread %g\n",
			quote.Symbol, contract.FormatPrice(quote.Bid), contract.FormatPrice(quote.Ask), quote.Spread())
		return nil
	},
}

func init() {
	candlesCmd.Flags().StringVarP(&candleInterval, "interval", "i", "1h",
		"kline interval ("+strings.Join(futures.Intervals, ", ")+")")
	candlesCmd.Flags().IntVarP(&candleLast, "last", "n", 0, "only print the last N candles")

	rootCmd.AddCommand(contractsCmd, balanceCmd, candlesCmd, bidAskCmd)
}
