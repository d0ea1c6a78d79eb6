package futures

import (
	"time"

	"github.com/rs/zerolog"

	"futurex/pkg/core"
	"futurex/pkg/prices"
)

// Option configures a Client or a Stream.
type Option func(*Options)

// Options holds the collaborators shared by Client and Stream.
type Options struct {
	Logger zerolog.Logger
	Prices *prices.Store
	Clock  func() time.Time
}

func defaultOptions() *Options {
	return &Options{
		Logger: zerolog.Nop(),
		Clock:  time.Now,
	}
}

func applyOptions(opts ...Option) *Options {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	if options.Prices == nil {
		options.Prices = prices.NewStore()
	}
	return options
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithPriceStore shares store between a Client and a Stream.
func WithPriceStore(store *prices.Store) Option {
	return func(o *Options) {
		o.Prices = store
	}
}

// WithClock overrides the time source used for request timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) {
		o.Clock = clock
	}
}

// OrderOption sets an optional field of a new order. Fields left unset are
// not transmitted.
type OrderOption func(*orderOptions)

type orderOptions struct {
	price         *float64
	timeInForce   *core.TimeInForce
	clientOrderID string
	reduceOnly    bool
}

// WithPrice sets the limit price.
func WithPrice(price float64) OrderOption {
	return func(o *orderOptions) {
		o.price = &price
	}
}

// WithTimeInForce sets the time in force.
func WithTimeInForce(tif core.TimeInForce) OrderOption {
	return func(o *orderOptions) {
		o.timeInForce = &tif
	}
}

// WithClientOrderID sets newClientOrderId.
func WithClientOrderID(id string) OrderOption {
	return func(o *orderOptions) {
		o.clientOrderID = id
	}
}

// WithReduceOnly marks the order reduce-only.
func WithReduceOnly() OrderOption {
	return func(o *orderOptions) {
		o.reduceOnly = true
	}
}
