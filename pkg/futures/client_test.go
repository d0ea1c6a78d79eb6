package futures

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"futurex/pkg/core"
	"futurex/pkg/prices"
)

const (
	testAPIKey = "test-api-key"
	testSecret = "test-secret-key"
)

var fixedClock = func() time.Time { return time.UnixMilli(1700000000000) }

func newTestFuturesClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	config := core.DefaultConfig().
		WithTestnet(true).
		WithCredentials(testAPIKey, testSecret).
		WithBaseURL(server.URL).
		WithTimeout(2 * time.Second)

	client, err := New(config, append([]Option{WithClock(fixedClock)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func btcContract(t *testing.T) core.Contract {
	t.Helper()
	contracts, err := NewNormalizer().NormalizeContracts([]byte(exchangeInfoBTC))
	require.NoError(t, err)
	return contracts["BTCUSDT"]
}

func querySignature(t *testing.T, rawQuery string) (payload, signature string) {
	t.Helper()
	idx := strings.LastIndex(rawQuery, "&signature=")
	require.NotEqual(t, -1, idx, "query has no signature: %s", rawQuery)
	return rawQuery[:idx], rawQuery[idx+len("&signature="):]
}

func expectedSignature(payload string) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

func queryKeys(rawQuery string) []string {
	var keys []string
	for _, pair := range strings.Split(rawQuery, "&") {
		key, _, _ := strings.Cut(pair, "=")
		keys = append(keys, key)
	}
	return keys
}

func TestNew_MissingCredentials(t *testing.T) {
	tests := []struct {
		name   string
		config *core.Config
	}{
		{"nil_credentials", core.DefaultConfig()},
		{"empty_secret", core.DefaultConfig().WithCredentials("key", "")},
		{"empty_key", core.DefaultConfig().WithCredentials("", "secret")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			assert.ErrorIs(t, err, core.ErrNoCredentials)
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	config := core.DefaultConfig().WithCredentials("key", "secret").WithTimeout(0)
	_, err := New(config)
	assert.Error(t, err)
}

func TestNew_NoIO(t *testing.T) {
	var hits atomic.Int32
	client := newTestFuturesClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	assert.Empty(t, client.Contracts())
	assert.Empty(t, client.Balances())
	assert.Zero(t, hits.Load())
}

func TestClient_GetContracts(t *testing.T) {
	var gotPath, gotQuery, gotKey string
	client := newTestFuturesClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("X-MBX-APIKEY")
		_, _ = w.Write([]byte(exchangeInfoBTC))
	})

	contracts, err := client.GetContracts(context.Background())
	require.NoError(t, err)
	require.Len(t, contracts, 1)
	assert.Contains(t, contracts, "BTCUSDT")

	assert.Equal(t, "/fapi/v1/exchangeInfo", gotPath)
	assert.Empty(t, gotQuery)
	assert.Equal(t, testAPIKey, gotKey)

	cached, err := client.Contract("BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, "BTC", cached.BaseAsset)

	_, err = client.Contract("ETHUSDT")
	assert.ErrorIs(t, err, core.ErrUnknownContract)
}

func TestClient_GetContracts_ClientError(t *testing.T) {
	client := newTestFuturesClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	})

	contracts, err := client.GetContracts(context.Background())
	assert.Nil(t, contracts)
	require.Error(t, err)
	assert.True(t, core.IsClientError(err))
	assert.True(t, core.IsErrorCode(err, core.CodeInvalidSymbol))

	var exErr *core.ExchangeError
	require.ErrorAs(t, err, &exErr)
	assert.Equal(t, http.StatusNotFound, exErr.StatusCode)
	assert.Equal(t, "Invalid symbol.", exErr.Message)
}

func TestClient_GetContracts_UnexpectedStatus(t *testing.T) {
	client := newTestFuturesClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	contracts, err := client.GetContracts(context.Background())
	assert.Nil(t, contracts)
	assert.True(t, core.IsUnexpectedStatus(err))
}

func TestClient_GetContracts_ParseError(t *testing.T) {
	client := newTestFuturesClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"symbols":[{"symbol":"BTCUSDT"}]}`))
	})

	contracts, err := client.GetContracts(context.Background())
	assert.Nil(t, contracts)
	assert.True(t, core.IsParseError(err))
	assert.Empty(t, client.Contracts())
}

func TestClient_GetBalance_Signed(t *testing.T) {
	var gotQuery string
	client := newTestFuturesClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"assets":[{"asset":"USDT","walletBalance":"100","availableBalance":"80"}]}`))
	})

	balances, err := client.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 80.0, balances["USDT"].AvailableBalance)

	payload, sig := querySignature(t, gotQuery)
	assert.Equal(t, "timestamp=1700000000000", payload)
	assert.Equal(t, expectedSignature(payload), sig)
}

func TestClient_GetBalance_ReplacesSnapshot(t *testing.T) {
	var calls atomic.Int32
	client := newTestFuturesClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"assets":[{"asset":"USDT","walletBalance":"1","availableBalance":"1"},{"asset":"BNB","walletBalance":"2","availableBalance":"2"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"assets":[{"asset":"USDT","walletBalance":"5","availableBalance":"4"}]}`))
	})

	_, err := client.GetBalance(context.Background())
	require.NoError(t, err)
	require.Len(t, client.Balances(), 2)

	available, err := client.GetAssetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"USDT": 4}, available)
	assert.Len(t, client.Balances(), 1)
}

func TestClient_RecvWindow(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"assets":[]}`))
	}))
	t.Cleanup(server.Close)

	config := core.DefaultConfig().
		WithCredentials(testAPIKey, testSecret).
		WithBaseURL(server.URL).
		WithRecvWindow(5 * time.Second)
	client, err := New(config, WithClock(fixedClock))
	require.NoError(t, err)

	_, err = client.GetBalance(context.Background())
	require.NoError(t, err)

	payload, sig := querySignature(t, gotQuery)
	assert.Equal(t, "recvWindow=5000&timestamp=1700000000000", payload)
	assert.Equal(t, expectedSignature(payload), sig)
}

func TestClient_GetHistoricalCandles(t *testing.T) {
	var gotQuery string
	client := newTestFuturesClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[[1499040000000,"1","2","0.5","1.5","10",1499040059999,"0",1,"0","0","0"]]`))
	})

	candles, err := client.GetHistoricalCandles(context.Background(), btcContract(t), "1h")
	require.NoError(t, err)
	require.Len(t, candles, 1)
	assert.Equal(t, 1.5, candles[0].Close)
	assert.Equal(t, "symbol=BTCUSDT&interval=1h&limit=1000", gotQuery)
}

func TestClient_GetHistoricalCandles_InvalidInterval(t *testing.T) {
	var hits atomic.Int32
	client := newTestFuturesClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	_, err := client.GetHistoricalCandles(context.Background(), btcContract(t), "7m")
	assert.True(t, core.IsClientError(err))
	assert.Zero(t, hits.Load())
}

func TestClient_GetBidAsk_MergesIntoStore(t *testing.T) {
	store := prices.NewStore()
	store.Set("BTCUSDT", 1, 2)

	client := newTestFuturesClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "symbol=BTCUSDT", r.URL.RawQuery)
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","bidPrice":"43000.10","bidQty":"1","askPrice":"43000.20","askQty":"2","time":1}`))
	}, WithPriceStore(store))

	got, err := client.GetBidAsk(context.Background(), btcContract(t))
	require.NoError(t, err)
	assert.Equal(t, 43000.1, got.Bid)
	assert.Equal(t, 43000.2, got.Ask)

	stored, ok := client.Prices().Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, got.Bid, stored.Bid)
	assert.Equal(t, got.Ask, stored.Ask)
	assert.Same(t, store, client.Prices())
}

func TestClient_GetBidAsk_ErrorKeepsStore(t *testing.T) {
	store := prices.NewStore()
	store.Set("BTCUSDT", 1, 2)

	client := newTestFuturesClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}, WithPriceStore(store))

	_, err := client.GetBidAsk(context.Background(), btcContract(t))
	assert.True(t, core.IsClientError(err))

	stored, ok := store.Get("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 1.0, stored.Bid)
	assert.Equal(t, 2.0, stored.Ask)
}

func TestClient_PlaceOrder_Market(t *testing.T) {
	var gotMethod, gotQuery string
	client := newTestFuturesClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(orderBody))
	})

	order, err := client.PlaceOrder(context.Background(), btcContract(t), core.SideBuy, 0.0129, core.TypeMarket)
	require.NoError(t, err)
	assert.Equal(t, int64(22542179), order.OrderID)

	assert.Equal(t, http.MethodPost, gotMethod)
	keys := queryKeys(gotQuery)
	assert.Equal(t, []string{"symbol", "side", "type", "quantity", "timestamp", "signature"}, keys)
	assert.NotContains(t, keys, "price")
	assert.NotContains(t, keys, "timeInForce")

	payload, sig := querySignature(t, gotQuery)
	assert.Equal(t, "symbol=BTCUSDT&side=BUY&type=MARKET&quantity=0.012&timestamp=1700000000000", payload)
	assert.Equal(t, expectedSignature(payload), sig)
}

func TestClient_PlaceOrder_Limit(t *testing.T) {
	var gotQuery string
	client := newTestFuturesClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(orderBody))
	})

	_, err := client.PlaceOrder(context.Background(), btcContract(t), core.SideSell, 0.01, core.TypeLimit,
		WithPrice(43210.57),
		WithTimeInForce(core.GTC),
		WithClientOrderID("my-order"),
		WithReduceOnly(),
	)
	require.NoError(t, err)

	payload, _ := querySignature(t, gotQuery)
	assert.Equal(t,
		"symbol=BTCUSDT&side=SELL&type=LIMIT&quantity=0.010&price=43210.50&timeInForce=GTC&newClientOrderId=my-order&reduceOnly=true&timestamp=1700000000000",
		payload)
}

func TestClient_OrderRef(t *testing.T) {
	tests := []struct {
		name      string
		ref       core.OrderRef
		wantQuery string
	}{
		{"by_order_id", core.ByOrderID(22542179), "symbol=BTCUSDT&orderId=22542179&timestamp=1700000000000"},
		{"by_client_order_id", core.ByClientOrderID("testOrder"), "symbol=BTCUSDT&origClientOrderId=testOrder&timestamp=1700000000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var methods []string
			var queries []string
			client := newTestFuturesClient(t, func(w http.ResponseWriter, r *http.Request) {
				methods = append(methods, r.Method)
				queries = append(queries, r.URL.RawQuery)
				_, _ = w.Write([]byte(orderBody))
			})

			_, err := client.GetOrderStatus(context.Background(), btcContract(t), tt.ref)
			require.NoError(t, err)
			_, err = client.CancelOrder(context.Background(), btcContract(t), tt.ref)
			require.NoError(t, err)

			assert.Equal(t, []string{http.MethodGet, http.MethodDelete}, methods)
			for _, q := range queries {
				payload, sig := querySignature(t, q)
				assert.Equal(t, tt.wantQuery, payload)
				assert.Equal(t, expectedSignature(payload), sig)
			}
		})
	}
}

func TestClient_OrderRef_Invalid(t *testing.T) {
	var hits atomic.Int32
	client := newTestFuturesClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	_, err := client.CancelOrder(context.Background(), btcContract(t), core.OrderRef{})
	assert.True(t, core.IsClientError(err))

	_, err = client.GetOrderStatus(context.Background(), btcContract(t), core.OrderRef{OrderID: 1, ClientOrderID: "x"})
	assert.True(t, core.IsClientError(err))

	assert.Zero(t, hits.Load())
}

func TestClient_WarmUp(t *testing.T) {
	var paths []string
	client := newTestFuturesClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		switch r.URL.Path {
		case "/fapi/v1/exchangeInfo":
			_, _ = w.Write([]byte(exchangeInfoBTC))
		case "/fapi/v1/account":
			_, _ = w.Write([]byte(`{"assets":[{"asset":"USDT","walletBalance":"1","availableBalance":"1"}]}`))
		}
	})

	require.NoError(t, client.WarmUp(context.Background()))
	assert.Equal(t, []string{"/fapi/v1/exchangeInfo", "/fapi/v1/account"}, paths)
	assert.Len(t, client.Contracts(), 1)
	assert.Len(t, client.Balances(), 1)
}

func TestClient_WarmUp_StopsOnContractsFailure(t *testing.T) {
	var paths []string
	client := newTestFuturesClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.WriteHeader(http.StatusInternalServerError)
	})

	err := client.WarmUp(context.Background())
	assert.True(t, core.IsUnexpectedStatus(err))
	assert.Equal(t, []string{"/fapi/v1/exchangeInfo"}, paths)
}

func TestClient_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(exchangeInfoBTC))
	}))
	t.Cleanup(server.Close)

	config := core.DefaultConfig().
		WithCredentials(testAPIKey, testSecret).
		WithBaseURL(server.URL).
		WithRateLimit(100, time.Minute)
	client, err := New(config)
	require.NoError(t, err)

	_, err = client.GetContracts(context.Background())
	require.NoError(t, err)

	metrics, ok := client.RateLimitMetrics()
	require.True(t, ok)
	assert.Equal(t, int64(1), metrics.AllowedRequests)
	assert.Equal(t, int64(1), metrics.ConsumedWeight)

	unthrottled := newTestFuturesClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, ok = unthrottled.RateLimitMetrics()
	assert.False(t, ok)
}

func TestClient_Closed(t *testing.T) {
	client := newTestFuturesClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(exchangeInfoBTC))
	})
	require.NoError(t, client.Close())

	_, err := client.GetContracts(context.Background())
	assert.ErrorIs(t, err, core.ErrClientClosed)
}
