package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futurex/pkg/core"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(&Config{
		BaseURL: server.URL,
		Timeout: 2 * time.Second,
		Headers: map[string]string{"X-MBX-APIKEY": "public"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, server
}

func TestNewClient_InvalidConfig(t *testing.T) {
	_, err := NewClient(&Config{BaseURL: "", Timeout: time.Second})
	assert.Error(t, err)
}

func TestClient_Do_OK(t *testing.T) {
	var gotQuery, gotKey, gotMethod string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("X-MBX-APIKEY")
		gotMethod = r.Method
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	var params core.Params
	params.Add("symbol", "BTCUSDT").Add("side", "BUY").Add("timestamp", int64(1)).Add("signature", "abc")

	body, err := client.Do(context.Background(), http.MethodPost, "/fapi/v1/order", params, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, "symbol=BTCUSDT&side=BUY&timestamp=1&signature=abc", gotQuery)
	assert.Equal(t, "public", gotKey)
	assert.Equal(t, http.MethodPost, gotMethod)
}

func TestClient_Do_PerRequestHeaders(t *testing.T) {
	var got string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("X-Test")
		_, _ = w.Write([]byte(`{}`))
	})

	_, err := client.Do(context.Background(), http.MethodGet, "/fapi/v1/exchangeInfo", nil, map[string]string{"X-Test": "1"})
	require.NoError(t, err)
	assert.Equal(t, "1", got)
}

func TestClient_Do_StatusClassification(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantType core.ErrorType
		wantCode int
		wantMsg  string
	}{
		{"not_found", http.StatusNotFound, `{"code":-1121,"msg":"Invalid symbol."}`, core.ErrorTypeClient, -1121, "Invalid symbol."},
		{"bad_request", http.StatusBadRequest, `{"code":-1102,"msg":"Mandatory parameter 'symbol' was not sent."}`, core.ErrorTypeClient, -1102, "Mandatory parameter 'symbol' was not sent."},
		{"bad_request_plain_body", http.StatusBadRequest, `oops`, core.ErrorTypeClient, 0, "Bad Request"},
		{"unauthorized", http.StatusUnauthorized, `{"code":-2015,"msg":"Invalid API-key."}`, core.ErrorTypeUnexpectedStatus, -2015, "Invalid API-key."},
		{"server_error", http.StatusInternalServerError, ``, core.ErrorTypeUnexpectedStatus, 0, "Internal Server Error"},
		{"rate_limited", http.StatusTooManyRequests, `{"code":-1003,"msg":"Too many requests."}`, core.ErrorTypeUnexpectedStatus, -1003, "Too many requests."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			body, err := client.Do(context.Background(), http.MethodGet, "/fapi/v1/exchangeInfo", nil, nil)
			require.Error(t, err)
			assert.Nil(t, body)

			var exErr *core.ExchangeError
			require.ErrorAs(t, err, &exErr)
			assert.Equal(t, tt.wantType, exErr.Type)
			assert.Equal(t, tt.status, exErr.StatusCode)
			assert.Equal(t, tt.wantCode, exErr.Code)
			assert.Equal(t, tt.wantMsg, exErr.Message)
			assert.Equal(t, http.MethodGet, exErr.Method)
			assert.Equal(t, "/fapi/v1/exchangeInfo", exErr.Path)
		})
	}
}

func TestClient_Do_ConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, err := NewClient(&Config{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)
	defer client.Close()

	body, err := client.Do(context.Background(), http.MethodGet, "/fapi/v1/exchangeInfo", nil, nil)
	assert.Nil(t, body)
	assert.True(t, core.IsConnectionError(err))
}

func TestClient_Do_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client, err := NewClient(&Config{BaseURL: server.URL, Timeout: 20 * time.Millisecond})
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Do(context.Background(), http.MethodGet, "/slow", nil, nil)
	assert.True(t, core.IsConnectionError(err))
}

func TestClient_Do_UnsupportedMethodPanics(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	assert.Panics(t, func() {
		_, _ = client.Do(context.Background(), http.MethodPut, "/fapi/v1/order", nil, nil)
	})
}

func TestClient_Close(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, err := client.Do(context.Background(), http.MethodGet, "/", nil, nil)
	assert.ErrorIs(t, err, core.ErrClientClosed)
}
