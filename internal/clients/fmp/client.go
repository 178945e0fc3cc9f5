// Package fmp provides a client for the Financial Modeling Prep historical
// price API.
package fmp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfold/allocator-bot/internal/modules/prices"
)

const defaultBaseURL = "https://financialmodelingprep.com/api/v3"

// Client for financialmodelingprep.com
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// NewClient creates a new FMP client
func NewClient(apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     log.With().Str("client", "fmp").Logger(),
	}
}

// SetBaseURL overrides the API base URL (used in tests).
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// flexFloat decodes a JSON number that may arrive as a string.
// FMP occasionally returns stringified numerics on some plans.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid numeric value %q: %w", s, err)
	}
	*f = flexFloat(v)
	return nil
}

// historicalBar is a single day of history for one symbol.
type historicalBar struct {
	Date     string    `json:"date"`
	AdjClose flexFloat `json:"adjClose"`
	Close    flexFloat `json:"close"`
}

// symbolHistory is the per-symbol payload of the historical price endpoint.
type symbolHistory struct {
	Symbol     string          `json:"symbol"`
	Historical []historicalBar `json:"historical"`
}

// historicalResponse covers both response shapes of the endpoint: a bare
// symbolHistory for a single symbol, or a historicalStockList wrapper for a
// batched request.
type historicalResponse struct {
	symbolHistory
	HistoricalStockList []symbolHistory `json:"historicalStockList"`
}

// HistoricalPrices fetches adjusted close history for the symbol set in a
// single batched call. Implements prices.Provider.
func (c *Client) HistoricalPrices(ctx context.Context, symbols []string, startDate, endDate string) ([]prices.Record, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("no symbols provided")
	}

	endpoint := fmt.Sprintf("%s/historical-price-full/%s", c.baseURL, url.PathEscape(strings.Join(symbols, ",")))
	params := url.Values{}
	params.Set("from", startDate)
	params.Set("to", endDate)
	params.Set("apikey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	c.log.Debug().
		Strs("symbols", symbols).
		Str("from", startDate).
		Str("to", endDate).
		Msg("Fetching historical prices")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded historicalResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	histories := decoded.HistoricalStockList
	if len(histories) == 0 && decoded.Symbol != "" {
		histories = []symbolHistory{decoded.symbolHistory}
	}

	var records []prices.Record
	for _, history := range histories {
		for _, bar := range history.Historical {
			adjClose := float64(bar.AdjClose)
			if adjClose == 0 {
				adjClose = float64(bar.Close)
			}
			records = append(records, prices.Record{
				Symbol:   history.Symbol,
				Date:     bar.Date,
				AdjClose: adjClose,
			})
		}
	}

	if len(records) == 0 {
		return nil, fmt.Errorf("no price data returned for symbols %s", strings.Join(symbols, ","))
	}

	return records, nil
}
