package core

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

const (
	TestnetRESTURL    = "https://testnet.binancefuture.com"
	ProductionRESTURL = "https://fapi.binance.com"
	TestnetStreamURL  = "wss://stream.binancefuture.com/ws"
	ProductionStream  = "wss://fstream.binance.com/ws"
)

// Credentials holds the API key pair. The secret is only ever used as an HMAC key.
type Credentials struct {
	// APIKey is the public key sent in the X-MBX-APIKEY header.
	APIKey string `json:"api_key" yaml:"api_key" validate:"required"`
	// SecretKey signs authenticated requests.
	SecretKey string `json:"secret_key" yaml:"secret_key" validate:"required"`
}

// String masks both keys so credentials are safe to log.
func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{APIKey:%s, SecretKey:%s}", MaskKey(c.APIKey), MaskKey(c.SecretKey))
}

// MaskKey keeps the first and last four characters of key.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "****" + key[len(key)-4:]
}

// Config contains all configuration options for the futures client and stream.
type Config struct {
	// Testnet selects the testnet endpoints. Chosen once at construction.
	Testnet     bool         `json:"testnet"`
	Credentials *Credentials `json:"credentials,omitempty"`

	// BaseURL and StreamURL override the endpoints selected by Testnet.
	BaseURL   string `json:"base_url,omitempty" validate:"omitempty,url"`
	StreamURL string `json:"stream_url,omitempty" validate:"omitempty,url"`

	// Timeout is the maximum duration of one HTTP request.
	Timeout time.Duration `json:"timeout" validate:"min=1ms"`
	// RecvWindow is sent with signed requests when non-zero.
	RecvWindow time.Duration `json:"recv_window" validate:"min=0,max=60s"`

	// RateLimitWeight is the request weight allowed per RateLimitPeriod; zero disables throttling.
	RateLimitWeight int           `json:"rate_limit_weight" validate:"min=0"`
	RateLimitPeriod time.Duration `json:"rate_limit_period" validate:"min=0"`

	// StreamBufferSize is the capacity of the inbound frame channel.
	StreamBufferSize int `json:"stream_buffer_size" validate:"min=1"`
	// StreamSymbols are subscribed to each time the stream opens.
	StreamSymbols []string `json:"stream_symbols,omitempty" validate:"dive,required"`

	LogLevel string `json:"log_level" validate:"omitempty,oneof=trace debug info warn error"`
}

// DefaultConfig returns a Config for the production endpoints with a 10s timeout
// and client-side throttling disabled.
func DefaultConfig() *Config {
	return &Config{
		Testnet:          false,
		Timeout:          10 * time.Second,
		RateLimitPeriod:  time.Minute,
		StreamBufferSize: 256,
		LogLevel:         "info",
	}
}

var validate = validator.New()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.RateLimitWeight > 0 && c.RateLimitPeriod <= 0 {
		return errors.New("RateLimitPeriod must be positive when RateLimitWeight is set")
	}
	return nil
}

// RESTURL returns the REST base URL selected by Testnet unless overridden.
func (c *Config) RESTURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.Testnet {
		return TestnetRESTURL
	}
	return ProductionRESTURL
}

// WebsocketURL returns the stream URL selected by Testnet unless overridden.
func (c *Config) WebsocketURL() string {
	if c.StreamURL != "" {
		return c.StreamURL
	}
	if c.Testnet {
		return TestnetStreamURL
	}
	return ProductionStream
}

// WithCredentials sets the API credentials and returns the config for chaining.
func (c *Config) WithCredentials(apiKey, secretKey string) *Config {
	c.Credentials = &Credentials{APIKey: apiKey, SecretKey: secretKey}
	return c
}

// WithTestnet selects the testnet or production endpoints and returns the config for chaining.
func (c *Config) WithTestnet(testnet bool) *Config {
	c.Testnet = testnet
	return c
}

// WithBaseURL overrides the REST endpoint and returns the config for chaining.
func (c *Config) WithBaseURL(url string) *Config {
	c.BaseURL = url
	return c
}

// WithStreamURL overrides the websocket endpoint and returns the config for chaining.
func (c *Config) WithStreamURL(url string) *Config {
	c.StreamURL = url
	return c
}

// WithTimeout sets the request timeout and returns the config for chaining.
func (c *Config) WithTimeout(timeout time.Duration) *Config {
	c.Timeout = timeout
	return c
}

// WithRecvWindow sets the signed request validity window and returns the config for chaining.
func (c *Config) WithRecvWindow(window time.Duration) *Config {
	c.RecvWindow = window
	return c
}

// WithRateLimit sets the weight budget per period and returns the config for chaining.
func (c *Config) WithRateLimit(weight int, period time.Duration) *Config {
	c.RateLimitWeight = weight
	c.RateLimitPeriod = period
	return c
}

// WithStreamSymbols sets the symbols subscribed on open and returns the config for chaining.
func (c *Config) WithStreamSymbols(symbols ...string) *Config {
	c.StreamSymbols = symbols
	return c
}
