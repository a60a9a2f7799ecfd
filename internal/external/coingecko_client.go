package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/holdr-fi/quest-n-script/pkg/config"
	"github.com/holdr-fi/quest-n-script/pkg/models"
)

// CoinGeckoClient handles CoinGecko API interactions
type CoinGeckoClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	keyHeader  string
	vsCurrency string
	days       string
	logger     *logrus.Entry
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

// NewCoinGeckoClient creates a new CoinGecko client
func NewCoinGeckoClient(cfg *config.PriceFeedConfig, logger *logrus.Logger) *CoinGeckoClient {
	entry := logger.WithField("component", "coingecko")

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Every(cfg.RateLimit)
	}

	keyHeader := "x-cg-demo-api-key"
	if cfg.APIKeyPro {
		keyHeader = "x-cg-pro-api-key"
	}

	return &CoinGeckoClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		keyHeader:  keyHeader,
		vsCurrency: cfg.VsCurrency,
		days:       cfg.Days,
		logger:     entry,
		limiter:    rate.NewLimiter(limit, 1),
		breaker:    newBreaker("coingecko", entry),
	}
}

// HistoricalPrices fetches the OHLC history of coinID, ascending by timestamp
func (c *CoinGeckoClient) HistoricalPrices(ctx context.Context, coinID string) ([]models.PricePoint, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchOHLC(ctx, coinID)
	})
	if err != nil {
		return nil, err
	}

	points := result.([]models.PricePoint)
	c.logger.WithFields(logrus.Fields{
		"coin_id": coinID,
		"points":  len(points),
	}).Debug("Fetched OHLC history")

	return points, nil
}

func (c *CoinGeckoClient) fetchOHLC(ctx context.Context, coinID string) ([]models.PricePoint, error) {
	query := url.Values{}
	query.Set("vs_currency", c.vsCurrency)
	query.Set("days", c.days)
	endpoint := fmt.Sprintf("%s/coins/%s/ohlc?%s", c.baseURL, url.PathEscape(coinID), query.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(c.keyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	// Rows are [timestamp_ms, open, high, low, close]
	var rows [][]decimal.Decimal
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	points := make([]models.PricePoint, 0, len(rows))
	for i, row := range rows {
		if len(row) < 5 {
			return nil, fmt.Errorf("malformed OHLC row %d: %d fields", i, len(row))
		}
		points = append(points, models.PricePoint{
			Timestamp: row[0].IntPart() / 1000,
			Open:      row[1],
			High:      row[2],
			Low:       row[3],
			Close:     row[4],
		})
	}

	series := models.PriceSeries(points)
	if !sort.IsSorted(series) {
		c.logger.WithField("coin_id", coinID).Warn("OHLC history out of order, sorting")
		sort.Stable(series)
	}

	return points, nil
}
