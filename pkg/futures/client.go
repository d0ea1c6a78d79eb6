// Package futures is a client for the Binance USD-M futures REST API and its
// bookTicker stream.
package futures

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	httpClient "futurex/internal/http"
	"futurex/internal/ratelimit"
	"futurex/pkg/core"
	"futurex/pkg/prices"
)

const candleLimit = 1000

// Intervals lists the kline intervals the exchange accepts.
var Intervals = []string{
	"1m", "3m", "5m", "15m", "30m",
	"1h", "2h", "4h", "6h", "8h", "12h",
	"1d", "3d", "1w", "1M",
}

// Client composes signing, transport and normalization into the REST
// operations. Construction performs no I/O; call WarmUp to load contracts
// and balances.
type Client struct {
	config      *core.Config
	httpClient  *httpClient.Client
	signer      *Signer
	normalizer  *Normalizer
	rateLimiter *ratelimit.RateLimiter
	prices      *prices.Store
	logger      zerolog.Logger
	now         func() time.Time

	mu        sync.RWMutex
	contracts map[string]core.Contract
	balances  map[string]core.Balance
}

// New validates config and builds a Client. Missing credentials return
// core.ErrNoCredentials.
func New(config *core.Config, opts ...Option) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is nil")
	}
	if config.Credentials == nil || config.Credentials.APIKey == "" || config.Credentials.SecretKey == "" {
		return nil, core.ErrNoCredentials
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	options := applyOptions(opts...)

	hc, err := httpClient.NewClient(&httpClient.Config{
		BaseURL: config.RESTURL(),
		Timeout: config.Timeout,
		Headers: map[string]string{"X-MBX-APIKEY": config.Credentials.APIKey},
	}, httpClient.WithLogger(options.Logger))
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}

	var rl *ratelimit.RateLimiter
	if config.RateLimitWeight > 0 {
		rl = ratelimit.New(config.RateLimitWeight, config.RateLimitPeriod)
	}

	return &Client{
		config:      config,
		httpClient:  hc,
		signer:      NewSigner(config.Credentials.SecretKey),
		normalizer:  NewNormalizer(),
		rateLimiter: rl,
		prices:      options.Prices,
		logger:      options.Logger,
		now:         options.Clock,
	}, nil
}

// Close releases the HTTP client.
func (c *Client) Close() error {
	return c.httpClient.Close()
}

// Prices returns the price store updated by GetBidAsk.
func (c *Client) Prices() *prices.Store {
	return c.prices
}

// RateLimitMetrics reports the throttling counters. ok is false when
// throttling is disabled.
func (c *Client) RateLimitMetrics() (snapshot ratelimit.MetricsSnapshot, ok bool) {
	if c.rateLimiter == nil {
		return ratelimit.MetricsSnapshot{}, false
	}
	return c.rateLimiter.Metrics(), true
}

// WarmUp loads contracts and then balances.
func (c *Client) WarmUp(ctx context.Context) error {
	if _, err := c.GetContracts(ctx); err != nil {
		return fmt.Errorf("warm up contracts: %w", err)
	}
	if _, err := c.GetBalance(ctx); err != nil {
		return fmt.Errorf("warm up balances: %w", err)
	}
	c.logger.Info().
		Int("contracts", len(c.Contracts())).
		Int("balances", len(c.Balances())).
		Msg("client warmed up")
	return nil
}

// GetContracts fetches exchangeInfo and replaces the contract cache.
func (c *Client) GetContracts(ctx context.Context) (map[string]core.Contract, error) {
	body, err := c.doRequest(ctx, core.OpGetContracts.NewRequest())
	if err != nil {
		return nil, err
	}

	contracts, err := c.normalizer.NormalizeContracts(body)
	if err != nil {
		c.logParseError(core.OpGetContracts, err)
		return nil, err
	}

	c.mu.Lock()
	c.contracts = contracts
	c.mu.Unlock()

	return maps.Clone(contracts), nil
}

// Contracts returns the cached contracts.
func (c *Client) Contracts() map[string]core.Contract {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.contracts)
}

// Contract looks up a cached contract by symbol.
func (c *Client) Contract(symbol string) (core.Contract, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	contract, ok := c.contracts[symbol]
	if !ok {
		return core.Contract{}, fmt.Errorf("%w: %s", core.ErrUnknownContract, symbol)
	}
	return contract, nil
}

// GetBalance fetches the account and replaces the balance snapshot wholesale.
func (c *Client) GetBalance(ctx context.Context) (map[string]core.Balance, error) {
	body, err := c.doRequest(ctx, core.OpGetBalance.NewRequest())
	if err != nil {
		return nil, err
	}

	balances, err := c.normalizer.NormalizeBalances(body)
	if err != nil {
		c.logParseError(core.OpGetBalance, err)
		return nil, err
	}

	c.mu.Lock()
	c.balances = balances
	c.mu.Unlock()

	return maps.Clone(balances), nil
}

// GetAssetBalance returns asset to available balance.
func (c *Client) GetAssetBalance(ctx context.Context) (map[string]float64, error) {
	balances, err := c.GetBalance(ctx)
	if err != nil {
		return nil, err
	}

	available := make(map[string]float64, len(balances))
	for asset, b := range balances {
		available[asset] = b.AvailableBalance
	}
	return available, nil
}

// Balances returns the last fetched balances.
func (c *Client) Balances() map[string]core.Balance {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.balances)
}

// GetHistoricalCandles returns up to 1000 candles for contract, oldest first.
func (c *Client) GetHistoricalCandles(ctx context.Context, contract core.Contract, interval string) ([]core.Candle, error) {
	if !slices.Contains(Intervals, interval) {
		return nil, core.NewExchangeError(core.ErrorTypeClient, 0, fmt.Sprintf("unsupported interval %q", interval))
	}

	req := core.OpGetCandles.NewRequest().
		SetQuery("symbol", contract.Symbol).
		SetQuery("interval", interval).
		SetQuery("limit", candleLimit)

	body, err := c.doRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	candles, err := c.normalizer.NormalizeCandles(body)
	if err != nil {
		c.logParseError(core.OpGetCandles, err)
		return nil, err
	}
	return candles, nil
}

// GetBidAsk fetches the book ticker of contract, merges it into the price
// store and returns the merged entry.
func (c *Client) GetBidAsk(ctx context.Context, contract core.Contract) (prices.BidAsk, error) {
	req := core.OpGetBookTicker.NewRequest().
		SetQuery("symbol", contract.Symbol)

	body, err := c.doRequest(ctx, req)
	if err != nil {
		return prices.BidAsk{}, err
	}

	ticker, err := c.normalizer.NormalizeBookTicker(body)
	if err != nil {
		c.logParseError(core.OpGetBookTicker, err)
		return prices.BidAsk{}, err
	}

	return c.prices.Upsert(contract.Symbol, &ticker.Bid, &ticker.Ask), nil
}

// PlaceOrder submits a new order. Price, time in force and client order id
// are only transmitted when set through opts.
func (c *Client) PlaceOrder(ctx context.Context, contract core.Contract, side core.OrderSide, quantity float64, orderType core.OrderType, opts ...OrderOption) (*core.OrderStatus, error) {
	var o orderOptions
	for _, opt := range opts {
		opt(&o)
	}

	req := core.OpPlaceOrder.NewRequest().
		SetQuery("symbol", contract.Symbol).
		SetQuery("side", side).
		SetQuery("type", orderType).
		SetQuery("quantity", contract.FormatQuantity(quantity))
	if o.price != nil {
		req.SetQuery("price", contract.FormatPrice(*o.price))
	}
	if o.timeInForce != nil {
		req.SetQuery("timeInForce", *o.timeInForce)
	}
	if o.clientOrderID != "" {
		req.SetQuery("newClientOrderId", o.clientOrderID)
	}
	if o.reduceOnly {
		req.SetQuery("reduceOnly", true)
	}

	order, err := c.doOrderRequest(ctx, core.OpPlaceOrder, req)
	if err != nil {
		return nil, err
	}

	c.logger.Info().
		Str("symbol", order.Symbol).
		Int64("order_id", order.OrderID).
		Str("side", order.Side.String()).
		Str("status", order.Status.String()).
		Msg("order placed")
	return order, nil
}

// CancelOrder cancels the order identified by ref.
func (c *Client) CancelOrder(ctx context.Context, contract core.Contract, ref core.OrderRef) (*core.OrderStatus, error) {
	req, err := orderRefRequest(core.OpCancelOrder, contract, ref)
	if err != nil {
		return nil, err
	}
	return c.doOrderRequest(ctx, core.OpCancelOrder, req)
}

// GetOrderStatus queries the order identified by ref.
func (c *Client) GetOrderStatus(ctx context.Context, contract core.Contract, ref core.OrderRef) (*core.OrderStatus, error) {
	req, err := orderRefRequest(core.OpGetOrder, contract, ref)
	if err != nil {
		return nil, err
	}
	return c.doOrderRequest(ctx, core.OpGetOrder, req)
}

func orderRefRequest(op core.Operation, contract core.Contract, ref core.OrderRef) (*core.Request, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}

	req := op.NewRequest().SetQuery("symbol", contract.Symbol)
	if ref.OrderID != 0 {
		req.SetQuery("orderId", ref.OrderID)
	} else {
		req.SetQuery("origClientOrderId", ref.ClientOrderID)
	}
	return req, nil
}

func (c *Client) doOrderRequest(ctx context.Context, op core.Operation, req *core.Request) (*core.OrderStatus, error) {
	body, err := c.doRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	order, err := c.normalizer.NormalizeOrder(body)
	if err != nil {
		c.logParseError(op, err)
		return nil, err
	}
	return order, nil
}

// doRequest paces, signs and sends req. Signed requests get recvWindow
// (when configured), then timestamp, then signature as the final parameter.
func (c *Client) doRequest(ctx context.Context, req *core.Request) ([]byte, error) {
	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx, req.Weight); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	params := req.Query.Clone()
	if req.Signed {
		if c.config.RecvWindow > 0 {
			params.Add("recvWindow", c.config.RecvWindow.Milliseconds())
		}
		params.Add("timestamp", c.now().UnixMilli())

		signature, err := c.signer.Sign(params)
		if err != nil {
			c.logger.Error().
				Err(err).
				Str("method", req.Method).
				Str("path", req.Path).
				Msg("sign request")
			return nil, err
		}
		params.Add("signature", signature)
	}

	return c.httpClient.Do(ctx, req.Method, req.Path, params, nil)
}

func (c *Client) logParseError(op core.Operation, err error) {
	c.logger.Error().
		Err(err).
		Str("operation", op.String()).
		Msg("parse response")
}
