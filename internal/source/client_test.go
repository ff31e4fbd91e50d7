package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnayoung/go-crypto-scraper/internal/config"
	apperrors "github.com/johnayoung/go-crypto-scraper/internal/errors"
)

const historyPage = `<html><body>
<table class="table">
  <thead>
    <tr><th>Date</th><th>Open*</th><th>High</th><th>Low</th><th>Close**</th><th>Volume</th><th>Market Cap</th></tr>
  </thead>
  <tbody>
    <tr><td>Apr 29, 2013</td><td>134.44</td><td>147.49</td><td>134.00</td><td>144.54</td><td>-</td><td>1,603,768,865</td></tr>
    <tr><td>Apr 28, 2013</td><td>135.30</td><td>135.98</td><td>132.10</td><td>134.21</td><td>-</td><td>1,488,566,728</td></tr>
  </tbody>
</table>
</body></html>`

var (
	testStart = time.Date(2013, 4, 28, 0, 0, 0, 0, time.UTC)
	testEnd   = time.Date(2013, 4, 29, 0, 0, 0, 0, time.UTC)
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func createTestClient(serverURL string) *Client {
	cfg := config.DefaultConfig().Source
	cfg.BaseURL = serverURL
	cfg.ListingURL = serverURL + "/v1/ticker/?limit=0"
	return NewClient(cfg, createTestLogger())
}

func createMockServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// Compile-time interface check
var _ Source = (*Client)(nil)

func TestClient_HistoryURL(t *testing.T) {
	client := createTestClient("https://example.com/")

	got := client.HistoryURL("bitcoin", testStart, testEnd)
	assert.Equal(t, "https://example.com/currencies/bitcoin/historical-data/?end=20130429&start=20130428", got)

	got = client.HistoryURL("bit coin", testStart, testEnd)
	assert.Contains(t, got, "/currencies/bit%20coin/historical-data/")
}

func TestClient_FetchRawTable(t *testing.T) {
	t.Run("successful fetch", func(t *testing.T) {
		var (
			gotPath      string
			gotStart     string
			gotEnd       string
			gotUserAgent string
		)
		server := createMockServer(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotStart = r.URL.Query().Get("start")
			gotEnd = r.URL.Query().Get("end")
			gotUserAgent = r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte(historyPage))
		})

		table, err := createTestClient(server.URL).FetchRawTable(context.Background(), "bitcoin", testStart, testEnd)
		require.NoError(t, err)

		assert.Equal(t, "/currencies/bitcoin/historical-data/", gotPath)
		assert.Equal(t, "20130428", gotStart)
		assert.Equal(t, "20130429", gotEnd)
		assert.Equal(t, "crypto-scraper/0.0.1", gotUserAgent)

		assert.Equal(t, []string{"Date", "Open*", "High", "Low", "Close**", "Volume", "Market Cap"}, table.Headers)
		require.Equal(t, 2, table.Len())
		assert.Equal(t, "Apr 28, 2013", table.Rows[1][0])
		assert.Equal(t, "1,488,566,728", table.Rows[1][6])
	})

	t.Run("non-success status is a fetch error", func(t *testing.T) {
		server := createMockServer(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "not found", http.StatusNotFound)
		})

		table, err := createTestClient(server.URL).FetchRawTable(context.Background(), "aaa", testStart, testEnd)
		require.Error(t, err)
		assert.Nil(t, table)

		var fetchErr *apperrors.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Equal(t, "aaa", fetchErr.Symbol)
		assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("page without table is a fetch error", func(t *testing.T) {
		server := createMockServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html><body><p>Nothing here</p></body></html>"))
		})

		_, err := createTestClient(server.URL).FetchRawTable(context.Background(), "aaa", testStart, testEnd)
		require.Error(t, err)
		assert.Equal(t, apperrors.ErrorTypeFetch, apperrors.GetErrorType(err))
		assert.True(t, errors.Is(err, ErrNoTable))
	})

	t.Run("transport failure is a fetch error", func(t *testing.T) {
		server := httptest.NewServer(http.NotFoundHandler())
		serverURL := server.URL
		server.Close()

		_, err := createTestClient(serverURL).FetchRawTable(context.Background(), "aaa", testStart, testEnd)
		require.Error(t, err)

		var fetchErr *apperrors.FetchError
		require.True(t, errors.As(err, &fetchErr))
		assert.Zero(t, fetchErr.StatusCode)
	})

	t.Run("empty symbol issues no request", func(t *testing.T) {
		var calls int32
		server := createMockServer(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
		})

		_, err := createTestClient(server.URL).FetchRawTable(context.Background(), "  ", testStart, testEnd)
		require.Error(t, err)
		assert.True(t, apperrors.IsSymbolScoped(err))
		assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	})

	t.Run("exactly one request per call", func(t *testing.T) {
		var calls int32
		server := createMockServer(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusServiceUnavailable)
		})

		_, err := createTestClient(server.URL).FetchRawTable(context.Background(), "bitcoin", testStart, testEnd)
		require.Error(t, err)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("cancelled context", func(t *testing.T) {
		server := createMockServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(historyPage))
		})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := createTestClient(server.URL).FetchRawTable(ctx, "bitcoin", testStart, testEnd)
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestClient_ListSymbols(t *testing.T) {
	t.Run("parses and sorts listing", func(t *testing.T) {
		var gotUserAgent string
		server := createMockServer(t, func(w http.ResponseWriter, r *http.Request) {
			gotUserAgent = r.Header.Get("User-Agent")
			assert.Equal(t, "/v1/ticker/", r.URL.Path)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[
				{"id": "ethereum", "name": "Ethereum", "rank": "2"},
				{"id": "bitcoin", "name": "Bitcoin", "rank": "1"},
				{"id": "", "name": "Broken", "rank": "3"},
				{"id": "cardano", "name": "Cardano", "rank": 4}
			]`))
		})

		symbols, err := createTestClient(server.URL).ListSymbols(context.Background())
		require.NoError(t, err)

		assert.Equal(t, "crypto-scraper/0.0.1", gotUserAgent)
		require.Len(t, symbols, 3)
		assert.Equal(t, "bitcoin", symbols[0].ID)
		assert.Equal(t, 1, symbols[0].Rank)
		assert.Equal(t, "cardano", symbols[1].ID)
		assert.Equal(t, 4, symbols[1].Rank)
		assert.Equal(t, "ethereum", symbols[2].ID)
		assert.Equal(t, "Ethereum", symbols[2].Name)
	})

	t.Run("server error", func(t *testing.T) {
		server := createMockServer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})

		_, err := createTestClient(server.URL).ListSymbols(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to fetch symbol listing")
	})

	t.Run("malformed listing", func(t *testing.T) {
		server := createMockServer(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"id": "bitcoin", "rank": "first"}]`))
		})

		_, err := createTestClient(server.URL).ListSymbols(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse symbol listing")
	})
}

func TestClient_WithHTTPClient(t *testing.T) {
	release := make(chan struct{})
	server := createMockServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		_, _ = w.Write([]byte(historyPage))
	})
	t.Cleanup(func() { close(release) })

	client := createTestClient(server.URL).WithHTTPClient(&http.Client{Timeout: 50 * time.Millisecond})

	_, err := client.FetchRawTable(context.Background(), "bitcoin", testStart, testEnd)
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrorTypeFetch, apperrors.GetErrorType(err))

	var fetchErr *apperrors.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, 0, fetchErr.StatusCode)
}
