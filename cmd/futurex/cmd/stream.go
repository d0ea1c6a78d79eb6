package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"futurex/pkg/futures"
)

var printEvery time.Duration

var streamCmd = &cobra.Command{
	Use:   "stream [SYMBOL...]",
	Short: "Follow best bid and ask over the websocket until interrupted",
	Long: `Follow best bid and ask over the websocket until interrupted.

Symbols given as arguments are added to the configured stream symbols.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, a := range args {
			cfg.StreamSymbols = append(cfg.StreamSymbols, strings.ToUpper(a))
		}
		if len(cfg.StreamSymbols) == 0 {
			return cmd.Usage()
		}

		stream, err := futures.NewStream(cfg, futures.WithLogger(logger))
		if err != nil {
			logger.Fatal().Err(err).Msg("create stream")
		}
		defer stream.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		connectCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		if err := stream.Connect(connectCtx); err != nil {
			return err
		}
		logger.Info().Strs("symbols", stream.Watched()).Msg("streaming")

		ticker := time.NewTicker(printEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				for _, symbol := range stream.Prices().Symbols() {
					quote, _ := stream.Prices().Get(symbol)
					fmt.Fprintf(cmd.OutOrStdout(), "%s bid %g ask %g mid %g\n", quote.Symbol, quote.Bid, quote.Ask, quote.Mid())
				}
			}
		}
	},
}

func init() {
	streamCmd.Flags().DurationVar(&printEvery, "every", time.Second, "print interval")
	rootCmd.AddCommand(streamCmd)
}
