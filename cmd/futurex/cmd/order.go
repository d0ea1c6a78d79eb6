package cmd

import (
	"context"
	"errors"
	"strconv"

	"github.com/spf13/cobra"

	"futurex/internal/id"
	"futurex/pkg/core"
	"futurex/pkg/futures"
)

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Place, cancel and query orders",
}

var (
	orderType     string
	orderPrice    float64
	orderTIF      string
	orderClientID string
	reduceOnly    bool

	refOrderID  int64
	refClientID string
)

var placeCmd = &cobra.Command{
	Use:   "place SYMBOL SIDE QUANTITY",
	Short: "Place a new order",
	Example: `  futurex order place BTCUSDT BUY 0.001 --type MARKET
  futurex order place BTCUSDT SELL 0.001 --type LIMIT --price 70000 --tif GTC`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		side, err := core.ParseOrderSide(args[1])
		if err != nil {
			return err
		}
		quantity, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return err
		}
		typ, err := core.ParseOrderType(orderType)
		if err != nil {
			return err
		}

		opts := []futures.OrderOption{}
		if cmd.Flags().Changed("price") {
			opts = append(opts, futures.WithPrice(orderPrice))
		}
		if orderTIF != "" {
			tif, err := core.ParseTimeInForce(orderTIF)
			if err != nil {
				return err
			}
			opts = append(opts, futures.WithTimeInForce(tif))
		}
		if orderClientID == "" {
			orderClientID = id.ClientOrderID("fx-")
		}
		opts = append(opts, futures.WithClientOrderID(orderClientID))
		if reduceOnly {
			opts = append(opts, futures.WithReduceOnly())
		}

		client := newClient()
		defer client.Close()

		contract, err := resolveContract(cmd.Context(), client, args[0])
		if err != nil {
			return err
		}

		order, err := client.PlaceOrder(cmd.Context(), contract, side, quantity, typ, opts...)
		if err != nil {
			return err
		}
		return printJSON(cmd, order)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel SYMBOL",
	Short: "Cancel an order by --id or --client-id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOrderRef(cmd, args[0], (*futures.Client).CancelOrder)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status SYMBOL",
	Short: "Query an order by --id or --client-id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOrderRef(cmd, args[0], (*futures.Client).GetOrderStatus)
	},
}

type orderRefCall func(*futures.Client, context.Context, core.Contract, core.OrderRef) (*core.OrderStatus, error)

func runOrderRef(cmd *cobra.Command, symbol string, call orderRefCall) error {
	ref := core.OrderRef{OrderID: refOrderID, ClientOrderID: refClientID}
	if err := ref.Validate(); err != nil {
		return errors.New("set exactly one of --id and --client-id")
	}

	client := newClient()
	defer client.Close()

	contract, err := resolveContract(cmd.Context(), client, symbol)
	if err != nil {
		return err
	}

	order, err := call(client, cmd.Context(), contract, ref)
	if err != nil {
		return err
	}
	return printJSON(cmd, order)
}

func init() {
	placeCmd.Flags().StringVarP(&orderType, "type", "t", "MARKET", "order type")
	placeCmd.Flags().Float64VarP(&orderPrice, "price", "p", 0, "limit price")
	placeCmd.Flags().StringVar(&orderTIF, "tif", "", "time in force (GTC, IOC, FOK, GTX)")
	placeCmd.Flags().StringVar(&orderClientID, "client-id", "", "client order id (default generated)")
	placeCmd.Flags().BoolVar(&reduceOnly, "reduce-only", false, "only reduce an open position")

	for _, c := range []*cobra.Command{cancelCmd, statusCmd} {
		c.Flags().Int64Var(&refOrderID, "id", 0, "exchange order id")
		c.Flags().StringVar(&refClientID, "client-id", "", "client order id")
		c.MarkFlagsMutuallyExclusive("id", "client-id")
		c.MarkFlagsOneRequired("id", "client-id")
	}

	orderCmd.AddCommand(placeCmd, cancelCmd, statusCmd)
	rootCmd.AddCommand(orderCmd)
}
