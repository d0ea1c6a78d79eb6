package core

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// OrderSide represents the direction of an order (buy or sell).
type OrderSide int

// Order side constants define the direction of a trade.
const (
	// SideBuy indicates an order to purchase a contract.
	SideBuy OrderSide = iota
	// SideSell indicates an order to sell a contract.
	SideSell
)

var orderSideNames = [...]string{"BUY", "SELL"}

// String returns the wire representation of the order side ("BUY" or "SELL").
func (s OrderSide) String() string {
	return enumName(orderSideNames[:], int(s))
}

// MarshalJSON implements json.Marshaler for OrderSide.
func (s OrderSide) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderSide.
func (s *OrderSide) UnmarshalJSON(data []byte) error {
	v, err := ParseOrderSide(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseOrderSide parses "BUY" or "SELL", case-insensitively.
func ParseOrderSide(s string) (OrderSide, error) {
	i, err := parseEnum(orderSideNames[:], "order side", s)
	return OrderSide(i), err
}

// OrderType represents the futures order types.
type OrderType int

// Order type constants define how an order is executed.
const (
	// TypeLimit executes at a specified price or better.
	TypeLimit OrderType = iota
	// TypeMarket executes immediately at the best available price.
	TypeMarket
	// TypeStop triggers a limit order at the stop price.
	TypeStop
	// TypeStopMarket triggers a market order at the stop price.
	TypeStopMarket
	// TypeTakeProfit triggers a limit order at the target price.
	TypeTakeProfit
	// TypeTakeProfitMarket triggers a market order at the target price.
	TypeTakeProfitMarket
	// TypeTrailingStopMarket follows the price by a callback rate.
	TypeTrailingStopMarket
)

var orderTypeNames = [...]string{
	"LIMIT",
	"MARKET",
	"STOP",
	"STOP_MARKET",
	"TAKE_PROFIT",
	"TAKE_PROFIT_MARKET",
	"TRAILING_STOP_MARKET",
}

// String returns the wire representation of the order type.
func (t OrderType) String() string {
	return enumName(orderTypeNames[:], int(t))
}

// MarshalJSON implements json.Marshaler for OrderType.
func (t OrderType) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderType.
func (t *OrderType) UnmarshalJSON(data []byte) error {
	v, err := ParseOrderType(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseOrderType parses an order type name, case-insensitively.
func ParseOrderType(s string) (OrderType, error) {
	i, err := parseEnum(orderTypeNames[:], "order type", s)
	return OrderType(i), err
}

// OrderState represents the lifecycle state of an order on the exchange.
type OrderState int

const (
	StateNew OrderState = iota
	StatePartiallyFilled
	StateFilled
	StateCanceled
	StateRejected
	StateExpired
	StateExpiredInMatch
)

var orderStateNames = [...]string{
	"NEW",
	"PARTIALLY_FILLED",
	"FILLED",
	"CANCELED",
	"REJECTED",
	"EXPIRED",
	"EXPIRED_IN_MATCH",
}

func (s OrderState) String() string {
	return enumName(orderStateNames[:], int(s))
}

// IsTerminal returns true if no further changes to the order are possible.
func (s OrderState) IsTerminal() bool {
	return s != StateNew && s != StatePartiallyFilled
}

// MarshalJSON implements json.Marshaler for OrderState.
func (s OrderState) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for OrderState.
func (s *OrderState) UnmarshalJSON(data []byte) error {
	v, err := ParseOrderState(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseOrderState parses an order status name, case-insensitively.
func ParseOrderState(s string) (OrderState, error) {
	i, err := parseEnum(orderStateNames[:], "order status", s)
	return OrderState(i), err
}

// TimeInForce defines how long an order remains active.
type TimeInForce int

// Time in force constants define order lifetime behavior.
const (
	// GTC (Good Till Canceled) keeps the order active until filled or canceled.
	GTC TimeInForce = iota
	// IOC (Immediate Or Cancel) cancels any unfilled portion immediately.
	IOC
	// FOK (Fill Or Kill) requires complete immediate execution or cancellation.
	FOK
	// GTX (Good Till Crossing) is post-only.
	GTX
	// GTD (Good Till Date) expires at the order's goodTillDate.
	GTD
)

var timeInForceNames = [...]string{"GTC", "IOC", "FOK", "GTX", "GTD"}

// String returns the wire representation of time in force.
func (t TimeInForce) String() string {
	return enumName(timeInForceNames[:], int(t))
}

// MarshalJSON implements json.Marshaler for TimeInForce.
func (t TimeInForce) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

// UnmarshalJSON implements json.Unmarshaler for TimeInForce.
func (t *TimeInForce) UnmarshalJSON(data []byte) error {
	v, err := ParseTimeInForce(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// ParseTimeInForce parses a time-in-force name, case-insensitively.
func ParseTimeInForce(s string) (TimeInForce, error) {
	i, err := parseEnum(timeInForceNames[:], "time in force", s)
	return TimeInForce(i), err
}

func enumName(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return "UNKNOWN(" + strconv.Itoa(i) + ")"
	}
	return names[i]
}

func parseEnum(names []string, kind, s string) (int, error) {
	for i, name := range names {
		if strings.EqualFold(name, s) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", kind, s)
}

// Contract describes a tradable futures instrument. Contracts are immutable
// once fetched and are keyed by Symbol.
type Contract struct {
	Symbol            string      `json:"symbol"`
	Pair              string      `json:"pair"`
	ContractType      string      `json:"contract_type"`
	BaseAsset         string      `json:"base_asset"`
	QuoteAsset        string      `json:"quote_asset"`
	MarginAsset       string      `json:"margin_asset"`
	PricePrecision    int         `json:"price_precision"`
	QuantityPrecision int         `json:"quantity_precision"`
	TickSize          apd.Decimal `json:"tick_size"`
	StepSize          apd.Decimal `json:"step_size"`
}

// FormatPrice renders price on the contract's tick grid with its price precision.
func (c Contract) FormatPrice(price float64) string {
	return formatOnGrid(price, &c.TickSize, c.PricePrecision)
}

// FormatQuantity renders quantity on the contract's step grid with its quantity precision.
func (c Contract) FormatQuantity(qty float64) string {
	return formatOnGrid(qty, &c.StepSize, c.QuantityPrecision)
}

var gridContext = apd.BaseContext.WithPrecision(34)

// formatOnGrid truncates v to a multiple of step and renders it with
// precision fractional digits. A contract without filters or precision
// renders v unchanged.
func formatOnGrid(v float64, step *apd.Decimal, precision int) string {
	if step.Sign() <= 0 && precision <= 0 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	var d apd.Decimal
	if _, err := d.SetFloat64(v); err != nil {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	if step.Sign() > 0 {
		var n apd.Decimal
		if _, err := gridContext.QuoInteger(&n, &d, step); err == nil {
			_, _ = gridContext.Mul(&d, &n, step)
		}
	}

	if _, err := gridContext.Quantize(&d, &d, int32(-precision)); err != nil {
		return strconv.FormatFloat(v, 'f', precision, 64)
	}
	return d.Text('f')
}

// Candle is one kline, ordered oldest to newest in a series.
type Candle struct {
	// OpenTime is the candle open time in epoch milliseconds.
	OpenTime int64   `json:"open_time"`
	Open     float64 `json:"open"`
	High     float64 `json:"high"`
	Low      float64 `json:"low"`
	Close    float64 `json:"close"`
	Volume   float64 `json:"volume"`
}

// Balance is the futures wallet state of one asset.
type Balance struct {
	Asset            string  `json:"asset"`
	WalletBalance    float64 `json:"wallet_balance"`
	AvailableBalance float64 `json:"available_balance"`
	UnrealizedProfit float64 `json:"unrealized_profit"`
	MarginBalance    float64 `json:"margin_balance"`
}

// OrderStatus is a snapshot of exchange-side order state at fetch time.
type OrderStatus struct {
	OrderID       int64       `json:"order_id"`
	ClientOrderID string      `json:"client_order_id"`
	Symbol        string      `json:"symbol"`
	Side          OrderSide   `json:"side"`
	Type          OrderType   `json:"type"`
	Status        OrderState  `json:"status"`
	TimeInForce   TimeInForce `json:"time_in_force"`
	Price         float64     `json:"price"`
	AvgPrice      float64     `json:"avg_price"`
	OrigQty       float64     `json:"orig_qty"`
	ExecutedQty   float64     `json:"executed_qty"`
	UpdateTime    int64       `json:"update_time"`
}

// BookTicker is the best bid and ask of one symbol.
type BookTicker struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}

// OrderRef identifies an existing order by exactly one of its exchange id or
// its client order id.
type OrderRef struct {
	OrderID       int64
	ClientOrderID string
}

// ByOrderID references an order by exchange id.
func ByOrderID(id int64) OrderRef {
	return OrderRef{OrderID: id}
}

// ByClientOrderID references an order by client order id.
func ByClientOrderID(id string) OrderRef {
	return OrderRef{ClientOrderID: id}
}

// Validate enforces that exactly one identifier is set.
func (r OrderRef) Validate() error {
	hasID := r.OrderID != 0
	hasClient := r.ClientOrderID != ""
	switch {
	case hasID && hasClient:
		return NewExchangeError(ErrorTypeClient, 0, "order reference must set exactly one of orderId and origClientOrderId, got both")
	case !hasID && !hasClient:
		return NewExchangeError(ErrorTypeClient, 0, "order reference must set exactly one of orderId and origClientOrderId, got neither")
	}
	return nil
}
