package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/johnayoung/go-crypto-scraper/internal/config"
	apperrors "github.com/johnayoung/go-crypto-scraper/internal/errors"
	"github.com/johnayoung/go-crypto-scraper/internal/models"
)

const (
	// historyEndpoint is joined to the base URL; the symbol is path-escaped
	historyEndpoint = "/currencies/%s/historical-data/"

	// maxErrorBodyBytes bounds how much of an error response is quoted in a FetchError
	maxErrorBodyBytes = 512
)

// Client talks to the historical-data site and the symbol listing endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	listingURL string
	userAgent  string
	logger     *slog.Logger
}

// NewClient creates a source client from configuration.
func NewClient(cfg config.SourceConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout(),
		},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		listingURL: cfg.ListingURL,
		userAgent:  cfg.UserAgent,
		logger:     logger,
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	c.httpClient = httpClient
	return c
}

// HistoryURL builds the historical-data URL for symbol over [start, end].
func (c *Client) HistoryURL(symbol string, start, end time.Time) string {
	params := url.Values{}
	params.Set("start", start.Format(requestDateLayout))
	params.Set("end", end.Format(requestDateLayout))

	return c.baseURL + fmt.Sprintf(historyEndpoint, url.PathEscape(symbol)) + "?" + params.Encode()
}

// FetchRawTable implements TableFetcher.
func (c *Client) FetchRawTable(ctx context.Context, symbol string, start, end time.Time) (*RawTable, error) {
	if strings.TrimSpace(symbol) == "" {
		return nil, &apperrors.FetchError{Symbol: symbol, Cause: fmt.Errorf("symbol cannot be empty")}
	}

	requestURL := c.HistoryURL(symbol, start, end)
	c.logger.Debug("fetching historical table", "symbol", symbol, "url", requestURL)

	body, status, err := c.get(ctx, requestURL, "text/html")
	if err != nil {
		return nil, &apperrors.FetchError{Symbol: symbol, StatusCode: status, Cause: err}
	}

	table, err := ParseTable(bytes.NewReader(body))
	if err != nil {
		return nil, &apperrors.FetchError{Symbol: symbol, StatusCode: status, Cause: err}
	}

	c.logger.Debug("parsed historical table",
		"symbol", symbol,
		"columns", len(table.Headers),
		"rows", table.Len())

	return table, nil
}

// ListSymbols implements SymbolLister. Symbols are returned sorted by ID.
func (c *Client) ListSymbols(ctx context.Context) ([]models.Symbol, error) {
	body, _, err := c.get(ctx, c.listingURL, "application/json")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch symbol listing: %w", err)
	}

	var listing []listingEntry
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("failed to parse symbol listing: %w", err)
	}

	symbols := make([]models.Symbol, 0, len(listing))
	for _, entry := range listing {
		if entry.ID == "" {
			continue
		}
		symbols = append(symbols, models.Symbol{
			ID:   entry.ID,
			Name: entry.Name,
			Rank: int(entry.Rank),
		})
	}

	sort.Slice(symbols, func(i, j int) bool {
		return symbols[i].ID < symbols[j].ID
	})

	c.logger.Debug("fetched symbol listing", "count", len(symbols))
	return symbols, nil
}

// get performs a single GET and returns the body of a 2xx response.
// The status code is returned whenever a response was received.
func (c *Client) get(ctx context.Context, requestURL, accept string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", accept)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(body))
		if len(snippet) > maxErrorBodyBytes {
			snippet = snippet[:maxErrorBodyBytes]
		}
		return nil, resp.StatusCode, fmt.Errorf("unexpected status %s: %s", resp.Status, snippet)
	}

	return body, resp.StatusCode, nil
}

// listingEntry mirrors one element of the listing response
type listingEntry struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Rank flexibleInt `json:"rank"`
}

// flexibleInt accepts integers encoded either as JSON numbers or as strings
type flexibleInt int

func (f *flexibleInt) UnmarshalJSON(data []byte) error {
	text := strings.Trim(string(data), `"`)
	if text == "" || text == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return fmt.Errorf("invalid integer %s: %w", string(data), err)
	}
	*f = flexibleInt(n)
	return nil
}
