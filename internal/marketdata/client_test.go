package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/artpar/coinshelf/internal/currency"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const marketsJSON = `[
	{"id":"bitcoin","name":"Bitcoin","symbol":"btc","image":"https://img/btc.png","current_price":43250.5,"price_change_percentage_24h":2.45,"market_cap":850000000000},
	{"id":"ethereum","name":"Ethereum","symbol":"eth","image":"https://img/eth.png","current_price":2650.3,"price_change_percentage_24h":null,"market_cap":320000000000}
]`

func newTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server, &hits
}

func TestNewClient(t *testing.T) {
	t.Run("creates client with defaults", func(t *testing.T) {
		client := NewClient()
		assert.Equal(t, DefaultBaseURL, client.baseURL)
		assert.Equal(t, "usd", client.vsCurrency)
		assert.Equal(t, 10*time.Second, client.httpClient.Timeout)
	})

	t.Run("applies options", func(t *testing.T) {
		client := NewClient(
			WithBaseURL("http://example.test/api/"),
			WithTimeout(3*time.Second),
			WithVsCurrency("EUR"),
		)
		assert.Equal(t, "http://example.test/api", client.baseURL)
		assert.Equal(t, "eur", client.vsCurrency)
		assert.Equal(t, 3*time.Second, client.httpClient.Timeout)
	})
}

func TestClient_FetchTopCurrencies(t *testing.T) {
	server, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/markets", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
		assert.Equal(t, "market_cap_desc", r.URL.Query().Get("order"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(marketsJSON))
	})

	client := NewClient(WithBaseURL(server.URL))
	ctx := context.Background()

	records, err := client.FetchTopCurrencies(ctx, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)

	btc := records[0]
	assert.Equal(t, "bitcoin", btc.ID)
	assert.Equal(t, "BTC", btc.Symbol)
	assert.Equal(t, "https://img/btc.png", btc.ImageURL)
	assert.Equal(t, currency.ListCrypto, btc.List)
	require.NotNil(t, btc.Price)
	assert.InDelta(t, 43250.5, *btc.Price, 0.001)
	assert.Nil(t, records[1].Change24h)

	t.Run("second call is served from cache", func(t *testing.T) {
		_, err := client.FetchTopCurrencies(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(hits))
		assert.Equal(t, 1, client.CacheSize())
	})

	t.Run("clear cache forces refetch", func(t *testing.T) {
		client.ClearCache()
		_, err := client.FetchTopCurrencies(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(hits))
	})
}

func TestClient_CacheDisabled(t *testing.T) {
	server, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(marketsJSON))
	})

	client := NewClient(WithBaseURL(server.URL), WithCacheTTL(0))
	ctx := context.Background()

	_, err := client.FetchTopCurrencies(ctx, 2)
	require.NoError(t, err)
	_, err = client.FetchTopCurrencies(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(hits))
}

func TestClient_ConcurrentRequestsShareResult(t *testing.T) {
	release := make(chan struct{})
	server, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Write([]byte(marketsJSON))
	})

	client := NewClient(WithBaseURL(server.URL))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			records, err := client.FetchTopCurrencies(ctx, 10)
			assert.NoError(t, err)
			assert.Len(t, records, 2)
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(hits), int32(5))
	assert.GreaterOrEqual(t, atomic.LoadInt32(hits), int32(1))
}

func TestClient_CancelledCallerDoesNotFailPeers(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	server, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		once.Do(func() { close(started) })
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		w.Write([]byte(marketsJSON))
	})

	client := NewClient(WithBaseURL(server.URL), WithTimeout(5*time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := client.FetchTopCurrencies(ctx, 10)
		first <- err
	}()

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("request did not reach the server")
	}

	peer := make(chan error, 1)
	var peerRecords []currency.Record
	go func() {
		records, err := client.FetchTopCurrencies(context.Background(), 10)
		peerRecords = records
		peer <- err
	}()
	time.Sleep(50 * time.Millisecond)

	cancel()
	err := <-first
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, ErrFetch)

	close(release)
	require.NoError(t, <-peer)
	assert.Len(t, peerRecords, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestClient_FetchByID(t *testing.T) {
	server, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("ids") {
		case "bitcoin":
			w.Write([]byte(`[{"id":"bitcoin","name":"Bitcoin","symbol":"btc","current_price":1}]`))
		default:
			w.Write([]byte(`[]`))
		}
	})

	client := NewClient(WithBaseURL(server.URL))
	ctx := context.Background()

	t.Run("known id", func(t *testing.T) {
		r, err := client.FetchByID(ctx, "bitcoin")
		require.NoError(t, err)
		require.NotNil(t, r)
		assert.Equal(t, "Bitcoin", r.Name)
	})

	t.Run("unknown id returns nil", func(t *testing.T) {
		r, err := client.FetchByID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, r)
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := client.FetchByID(ctx, "")
		assert.ErrorIs(t, err, ErrFetch)
	})
}

func TestClient_Errors(t *testing.T) {
	t.Run("non-200 status", func(t *testing.T) {
		server, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		})
		client := NewClient(WithBaseURL(server.URL))

		_, err := client.FetchTopCurrencies(context.Background(), 5)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrFetch)

		var fe *FetchError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, http.StatusTooManyRequests, fe.StatusCode)
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("failed response is not cached", func(t *testing.T) {
		var fail atomic.Bool
		fail.Store(true)
		server, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			if fail.Load() {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.Write([]byte(marketsJSON))
		})
		client := NewClient(WithBaseURL(server.URL))
		ctx := context.Background()

		_, err := client.FetchTopCurrencies(ctx, 5)
		require.Error(t, err)

		fail.Store(false)
		records, err := client.FetchTopCurrencies(ctx, 5)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("malformed body", func(t *testing.T) {
		server, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{not json`))
		})
		client := NewClient(WithBaseURL(server.URL))

		_, err := client.FetchTopCurrencies(context.Background(), 5)
		assert.ErrorIs(t, err, ErrFetch)
	})

	t.Run("unreachable server", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		base := server.URL
		server.Close()

		client := NewClient(WithBaseURL(base), WithTimeout(time.Second))
		_, err := client.FetchTopCurrencies(context.Background(), 5)
		assert.ErrorIs(t, err, ErrFetch)
	})
}

func TestClient_Search(t *testing.T) {
	server, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/search":
			if r.URL.Query().Get("query") == "bit" {
				w.Write([]byte(`{"coins":[{"id":"bitcoin"},{"id":"ethereum"}]}`))
				return
			}
			w.Write([]byte(`{"coins":[]}`))
		case "/coins/markets":
			assert.Equal(t, "bitcoin,ethereum", r.URL.Query().Get("ids"))
			w.Write([]byte(marketsJSON))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	client := NewClient(WithBaseURL(server.URL))
	ctx := context.Background()

	records, err := client.Search(ctx, " bit ")
	require.NoError(t, err)
	assert.Equal(t, []string{"bitcoin", "ethereum"}, currency.IDs(records))

	records, err = client.Search(ctx, "zzz")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestClient_PriceHistory(t *testing.T) {
	server, hits := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/bitcoin/market_chart", r.URL.Path)
		assert.Equal(t, "3", r.URL.Query().Get("days"))
		w.Write([]byte(`{"prices":[[1704067200000,42000.5],[1704153600000,43000]]}`))
	})

	client := NewClient(WithBaseURL(server.URL))
	ctx := context.Background()

	points, err := client.PriceHistory(ctx, "bitcoin", 3)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), points[0].Time)
	assert.InDelta(t, 42000.5, points[0].Price, 0.001)

	_, err = client.PriceHistory(ctx, "bitcoin", 3)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))

	_, err = client.PriceHistory(ctx, "", 3)
	assert.ErrorIs(t, err, ErrFetch)
}
