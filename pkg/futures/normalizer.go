package futures

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/apd/v3"
	"github.com/go-playground/validator/v10"

	"futurex/pkg/core"
)

// rawContract is one entry of the exchangeInfo symbols list.
type rawContract struct {
	Symbol            string      `json:"symbol" validate:"required"`
	Pair              string      `json:"pair"`
	ContractType      string      `json:"contractType"`
	BaseAsset         string      `json:"baseAsset" validate:"required"`
	QuoteAsset        string      `json:"quoteAsset" validate:"required"`
	MarginAsset       string      `json:"marginAsset"`
	PricePrecision    *int        `json:"pricePrecision" validate:"required"`
	QuantityPrecision *int        `json:"quantityPrecision" validate:"required"`
	Filters           []rawFilter `json:"filters"`
}

type rawFilter struct {
	FilterType string `json:"filterType"`
	TickSize   string `json:"tickSize"`
	StepSize   string `json:"stepSize"`
}

type rawExchangeInfo struct {
	Symbols []rawContract `json:"symbols" validate:"required,dive"`
}

type rawBalance struct {
	Asset            string `json:"asset" validate:"required"`
	WalletBalance    string `json:"walletBalance" validate:"required"`
	AvailableBalance string `json:"availableBalance" validate:"required"`
	UnrealizedProfit string `json:"unrealizedProfit"`
	MarginBalance    string `json:"marginBalance"`
}

type rawAccount struct {
	Assets []rawBalance `json:"assets" validate:"required,dive"`
}

type rawOrder struct {
	OrderID       *int64 `json:"orderId" validate:"required"`
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol" validate:"required"`
	Side          string `json:"side" validate:"required"`
	Type          string `json:"type" validate:"required"`
	Status        string `json:"status" validate:"required"`
	TimeInForce   string `json:"timeInForce"`
	Price         string `json:"price" validate:"required"`
	AvgPrice      string `json:"avgPrice"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty" validate:"required"`
	UpdateTime    int64  `json:"updateTime"`
}

type rawBookTicker struct {
	Symbol   string `json:"symbol" validate:"required"`
	BidPrice string `json:"bidPrice" validate:"required"`
	AskPrice string `json:"askPrice" validate:"required"`
}

// rawBookTickerEvent is a bookTicker stream frame. Keys differ only by case
// (e/E, b/B, a/A), so every key is declared and frames are decoded with
// case-sensitive matching.
type rawBookTickerEvent struct {
	Event           string `json:"e" validate:"required"`
	EventTime       int64  `json:"E"`
	TransactionTime int64  `json:"T"`
	UpdateID        int64  `json:"u"`
	Symbol          string `json:"s" validate:"required"`
	Bid             string `json:"b" validate:"required"`
	BidQty          string `json:"B"`
	Ask             string `json:"a" validate:"required"`
	AskQty          string `json:"A"`
}

// exchangeJSON matches object keys exactly as the exchange sends them.
var exchangeJSON = sonic.Config{CaseSensitive: true}.Froze()

// Normalizer converts raw exchange JSON into core types. Unknown fields are
// ignored; a missing required field is a parse_error naming the JSON field.
type Normalizer struct {
	validate *validator.Validate
}

func NewNormalizer() *Normalizer {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Normalizer{validate: v}
}

func (n *Normalizer) decode(data []byte, dest any) error {
	if err := exchangeJSON.Unmarshal(data, dest); err != nil {
		return core.NewParseError("", fmt.Sprintf("decode %T: %v", dest, err))
	}
	if err := n.validate.Struct(dest); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return core.NewParseError(verrs[0].Field(), "missing required field")
		}
		return core.NewParseError("", err.Error())
	}
	return nil
}

// NormalizeContracts decodes an exchangeInfo body into contracts keyed by symbol.
func (n *Normalizer) NormalizeContracts(data []byte) (map[string]core.Contract, error) {
	var info rawExchangeInfo
	if err := n.decode(data, &info); err != nil {
		return nil, err
	}

	contracts := make(map[string]core.Contract, len(info.Symbols))
	for _, raw := range info.Symbols {
		c, err := n.NormalizeContract(&raw)
		if err != nil {
			return nil, err
		}
		contracts[c.Symbol] = c
	}
	return contracts, nil
}

func (n *Normalizer) NormalizeContract(data *rawContract) (core.Contract, error) {
	c := core.Contract{
		Symbol:            data.Symbol,
		Pair:              data.Pair,
		ContractType:      data.ContractType,
		BaseAsset:         data.BaseAsset,
		QuoteAsset:        data.QuoteAsset,
		MarginAsset:       data.MarginAsset,
		PricePrecision:    *data.PricePrecision,
		QuantityPrecision: *data.QuantityPrecision,
	}

	for _, f := range data.Filters {
		switch f.FilterType {
		case "PRICE_FILTER":
			if err := parseDecimal(&c.TickSize, f.TickSize); err != nil {
				return core.Contract{}, core.NewParseError("tickSize", err.Error())
			}
		case "LOT_SIZE":
			if err := parseDecimal(&c.StepSize, f.StepSize); err != nil {
				return core.Contract{}, core.NewParseError("stepSize", err.Error())
			}
		}
	}
	return c, nil
}

// NormalizeBalances decodes an account body into balances keyed by asset.
func (n *Normalizer) NormalizeBalances(data []byte) (map[string]core.Balance, error) {
	var account rawAccount
	if err := n.decode(data, &account); err != nil {
		return nil, err
	}

	balances := make(map[string]core.Balance, len(account.Assets))
	for _, raw := range account.Assets {
		b, err := n.NormalizeBalance(&raw)
		if err != nil {
			return nil, err
		}
		balances[b.Asset] = b
	}
	return balances, nil
}

func (n *Normalizer) NormalizeBalance(data *rawBalance) (core.Balance, error) {
	b := core.Balance{Asset: data.Asset}
	var err error
	if b.WalletBalance, err = parseFloat("walletBalance", data.WalletBalance); err != nil {
		return core.Balance{}, err
	}
	if b.AvailableBalance, err = parseFloat("availableBalance", data.AvailableBalance); err != nil {
		return core.Balance{}, err
	}
	if b.UnrealizedProfit, err = parseOptionalFloat("unrealizedProfit", data.UnrealizedProfit); err != nil {
		return core.Balance{}, err
	}
	if b.MarginBalance, err = parseOptionalFloat("marginBalance", data.MarginBalance); err != nil {
		return core.Balance{}, err
	}
	return b, nil
}

// NormalizeCandles decodes a klines body. Each row is
// [openTime, open, high, low, close, volume, ...]; volume is optional.
func (n *Normalizer) NormalizeCandles(data []byte) ([]core.Candle, error) {
	var rows [][]any
	if err := exchangeJSON.Unmarshal(data, &rows); err != nil {
		return nil, core.NewParseError("", fmt.Sprintf("decode klines: %v", err))
	}

	candles := make([]core.Candle, 0, len(rows))
	for i, row := range rows {
		c, err := n.NormalizeCandle(row)
		if err != nil {
			var exErr *core.ExchangeError
			if errors.As(err, &exErr) {
				exErr.Field = fmt.Sprintf("klines[%d].%s", i, exErr.Field)
			}
			return nil, err
		}
		candles = append(candles, c)
	}
	return candles, nil
}

var candleFields = [...]string{"openTime", "open", "high", "low", "close", "volume"}

func (n *Normalizer) NormalizeCandle(row []any) (core.Candle, error) {
	if len(row) < 5 {
		return core.Candle{}, core.NewParseError(candleFields[len(row)], "missing required field")
	}

	var values [6]float64
	for i := 0; i < len(candleFields) && i < len(row); i++ {
		v, err := anyToFloat(candleFields[i], row[i])
		if err != nil {
			return core.Candle{}, err
		}
		values[i] = v
	}

	return core.Candle{
		OpenTime: int64(values[0]),
		Open:     values[1],
		High:     values[2],
		Low:      values[3],
		Close:    values[4],
		Volume:   values[5],
	}, nil
}

// NormalizeOrder decodes an order body returned by place, cancel and query.
func (n *Normalizer) NormalizeOrder(data []byte) (*core.OrderStatus, error) {
	var raw rawOrder
	if err := n.decode(data, &raw); err != nil {
		return nil, err
	}

	side, err := core.ParseOrderSide(raw.Side)
	if err != nil {
		return nil, core.NewParseError("side", err.Error())
	}
	orderType, err := core.ParseOrderType(raw.Type)
	if err != nil {
		return nil, core.NewParseError("type", err.Error())
	}
	status, err := core.ParseOrderState(raw.Status)
	if err != nil {
		return nil, core.NewParseError("status", err.Error())
	}

	order := &core.OrderStatus{
		OrderID:       *raw.OrderID,
		ClientOrderID: raw.ClientOrderID,
		Symbol:        raw.Symbol,
		Side:          side,
		Type:          orderType,
		Status:        status,
		UpdateTime:    raw.UpdateTime,
	}
	if raw.TimeInForce != "" {
		if order.TimeInForce, err = core.ParseTimeInForce(raw.TimeInForce); err != nil {
			return nil, core.NewParseError("timeInForce", err.Error())
		}
	}
	if order.Price, err = parseFloat("price", raw.Price); err != nil {
		return nil, err
	}
	if order.ExecutedQty, err = parseFloat("executedQty", raw.ExecutedQty); err != nil {
		return nil, err
	}
	if order.AvgPrice, err = parseOptionalFloat("avgPrice", raw.AvgPrice); err != nil {
		return nil, err
	}
	if order.OrigQty, err = parseOptionalFloat("origQty", raw.OrigQty); err != nil {
		return nil, err
	}
	return order, nil
}

// NormalizeBookTicker decodes a REST bookTicker body.
func (n *Normalizer) NormalizeBookTicker(data []byte) (core.BookTicker, error) {
	var raw rawBookTicker
	if err := n.decode(data, &raw); err != nil {
		return core.BookTicker{}, err
	}
	return bookTicker(raw.Symbol, raw.BidPrice, raw.AskPrice, "bidPrice", "askPrice")
}

// NormalizeBookTickerEvent decodes a bookTicker stream frame.
func (n *Normalizer) NormalizeBookTickerEvent(data []byte) (core.BookTicker, error) {
	var raw rawBookTickerEvent
	if err := n.decode(data, &raw); err != nil {
		return core.BookTicker{}, err
	}
	if raw.Event != "bookTicker" {
		return core.BookTicker{}, core.NewParseError("e", fmt.Sprintf("unexpected event %q", raw.Event))
	}
	return bookTicker(raw.Symbol, raw.Bid, raw.Ask, "b", "a")
}

func bookTicker(symbol, bid, ask, bidField, askField string) (core.BookTicker, error) {
	t := core.BookTicker{Symbol: symbol}
	var err error
	if t.Bid, err = parseFloat(bidField, bid); err != nil {
		return core.BookTicker{}, err
	}
	if t.Ask, err = parseFloat(askField, ask); err != nil {
		return core.BookTicker{}, err
	}
	return t, nil
}

func parseFloat(field, s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, core.NewParseError(field, fmt.Sprintf("invalid number %q", s))
	}
	return v, nil
}

func parseOptionalFloat(field, s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return parseFloat(field, s)
}

func anyToFloat(field string, v any) (float64, error) {
	switch val := v.(type) {
	case string:
		return parseFloat(field, val)
	case float64:
		return val, nil
	case int64:
		return float64(val), nil
	case nil:
		return 0, core.NewParseError(field, "missing required field")
	default:
		return 0, core.NewParseError(field, fmt.Sprintf("unsupported type %T", v))
	}
}

func parseDecimal(dest *apd.Decimal, s string) error {
	if s == "" {
		*dest = apd.Decimal{}
		return nil
	}

	_, _, err := apd.BaseContext.SetString(dest, s)
	if err != nil {
		return fmt.Errorf("set decimal from string: %w", err)
	}

	return nil
}
