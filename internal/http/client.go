package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"resty.dev/v3"

	"futurex/pkg/core"
)

// Client performs single-attempt REST calls against one base URL and
// classifies every outcome into a body or a *core.ExchangeError.
type Client struct {
	client *resty.Client
	logger zerolog.Logger
	mu     sync.RWMutex
	closed bool
}

type Config struct {
	BaseURL string            `validate:"required,url"`
	Timeout time.Duration     `validate:"min=1ms"`
	Headers map[string]string `validate:"omitempty"`
}

type Option func(*Client)

// WithLogger sets the logger used for request, response and failure logging.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(config *Config, opts ...Option) (*Client, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client := resty.New()
	client.SetBaseURL(config.BaseURL)
	client.SetTimeout(config.Timeout)
	client.SetRetryCount(0)
	client.AddContentTypeEncoder("application/json", func(w io.Writer, v any) error {
		data, err := sonic.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
	client.AddContentTypeDecoder("application/json", func(r io.Reader, v any) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		return sonic.Unmarshal(data, v)
	})

	for k, v := range config.Headers {
		client.SetHeader(k, v)
	}

	c := &Client{
		client: client,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	client.AddRequestMiddleware(func(_ *resty.Client, req *resty.Request) error {
		c.logger.Debug().
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("http request")
		return nil
	})

	client.AddResponseMiddleware(func(_ *resty.Client, resp *resty.Response) error {
		c.logger.Debug().
			Str("method", resp.Request.Method).
			Str("url", resp.Request.URL).
			Int("status", resp.StatusCode()).
			Int("size", len(resp.Bytes())).
			Msg("http response")
		return nil
	})

	return c, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}

// Do sends one request and returns the body of a 200 response.
//
// params are written to the raw query string in insertion order for every
// method, so the transmitted bytes equal the bytes that were signed.
// A method other than GET, POST or DELETE is a programming error and panics.
func (c *Client) Do(ctx context.Context, method, path string, params core.Params, headers map[string]string) ([]byte, error) {
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodDelete:
	default:
		panic(fmt.Sprintf("http: unsupported method %q", method))
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, core.ErrClientClosed
	}

	url := path
	if len(params) > 0 {
		url = path + "?" + params.Encode()
	}

	req := c.client.R().SetContext(ctx)
	for k, v := range headers {
		req.SetHeader(k, v)
	}

	resp, err := req.Execute(method, url)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("method", method).
			Str("path", path).
			Msg("request failed")
		return nil, core.NewConnectionError(err).WithRequest(method, path)
	}

	status := resp.StatusCode()
	body := resp.Bytes()

	switch status {
	case http.StatusOK:
		return body, nil
	case http.StatusBadRequest, http.StatusNotFound:
		c.logger.Error().
			Int("status", status).
			Str("method", method).
			Str("path", path).
			Msg("client error")
		c.logger.Debug().
			Bytes("body", body).
			Str("path", path).
			Msg("client error body")
		return nil, withAPIError(core.NewExchangeError(core.ErrorTypeClient, status, http.StatusText(status)), body).
			WithRequest(method, path)
	default:
		c.logger.Error().
			Int("status", status).
			Str("method", method).
			Str("path", path).
			Msg("unexpected status")
		return nil, withAPIError(core.NewExchangeError(core.ErrorTypeUnexpectedStatus, status, http.StatusText(status)), body).
			WithRequest(method, path)
	}
}

type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func withAPIError(e *core.ExchangeError, body []byte) *core.ExchangeError {
	var apiErr apiError
	if len(body) == 0 || sonic.Unmarshal(body, &apiErr) != nil {
		return e
	}
	if apiErr.Code == 0 && apiErr.Msg == "" {
		return e
	}
	return e.WithCode(apiErr.Code, apiErr.Msg)
}
