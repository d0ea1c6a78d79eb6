package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"futurex/internal/config"
	"futurex/pkg/core"
	"futurex/pkg/futures"
)

var (
	configPath string
	testnet    bool
	logLevel   string

	cfg    *core.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "futurex",
	Short: "Binance USD-M futures from the command line",
	Long: `futurex talks to the Binance USD-M futures REST API and bookTicker stream.

Credentials are read from the config file or from FUTUREX_PUBLIC_KEY and
FUTUREX_SECRET_KEY. FUTUREX_TESTNET=true selects the testnet.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("testnet") {
			cfg.WithTestnet(testnet)
		}
		if logLevel != "" {
			cfg.LogLevel = strings.ToLower(logLevel)
		}

		level, err := zerolog.ParseLevel(cfg.LogLevel)
		if err != nil {
			return err
		}
		zerolog.SetGlobalLevel(level)
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Exchange rejections with a known cause get a hint after cobra's error line.
func Execute() error {
	err := rootCmd.Execute()
	if hint := errorHint(err); hint != "" {
		fmt.Fprintln(rootCmd.ErrOrStderr(), "hint:", hint)
	}
	return err
}

func errorHint(err error) string {
	switch {
	case err == nil:
		return ""
	case core.IsErrorCode(err, core.CodeTimestampOutOfWindow):
		return "local clock is out of sync with the exchange; sync it or raise recv_window"
	case core.IsErrorCode(err, core.CodeInvalidSignature),
		core.IsErrorCode(err, core.CodeRejectedMBXKey),
		core.IsErrorCode(err, core.CodeUnauthorized):
		return "check the API key and secret, and that the key is enabled for futures"
	case core.IsErrorCode(err, core.CodeInvalidSymbol):
		return "symbol is not listed; run `futurex contracts` to see listed contracts"
	case core.IsErrorCode(err, core.CodeTooManyRequests):
		return "request weight exhausted; lower rate_limit.weight or wait a minute"
	case core.IsErrorCode(err, core.CodeMarginInsufficient):
		return "available balance does not cover the order margin"
	default:
		return ""
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVar(&testnet, "testnet", false, "use the testnet endpoints")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "trace, debug, info, warn or error")
}

// newClient builds the REST client. A client that cannot be built is fatal.
func newClient() *futures.Client {
	client, err := futures.New(cfg, futures.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("create futures client")
	}
	return client
}

func resolveContract(ctx context.Context, client *futures.Client, symbol string) (core.Contract, error) {
	if _, err := client.GetContracts(ctx); err != nil {
		return core.Contract{}, err
	}
	return client.Contract(strings.ToUpper(symbol))
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}
