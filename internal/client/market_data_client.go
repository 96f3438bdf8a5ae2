package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/yourorg/backtest-service/internal/model"
)

// MarketDataClient fetches OHLCV bars from the platform's historical data
// service. It is the HTTP-backed alternative to the local bar repository,
// selected through the marketData.source configuration.
type MarketDataClient struct {
	baseURL    string
	serviceKey string
	maxRetries uint64
	httpClient *http.Client
	logger     *zap.Logger
}

// NewMarketDataClient creates a new market data client
func NewMarketDataClient(baseURL, serviceKey string, timeout time.Duration, maxRetries int, logger *zap.Logger) *MarketDataClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &MarketDataClient{
		baseURL:    baseURL,
		serviceKey: serviceKey,
		maxRetries: uint64(maxRetries),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// GetOHLCV retrieves bars for a symbol within the date range, retrying
// transient failures with exponential backoff.
func (c *MarketDataClient) GetOHLCV(ctx context.Context, symbol string, startDate, endDate time.Time) ([]model.Bar, error) {
	params := url.Values{}
	params.Add("symbol", symbol)
	params.Add("start_date", startDate.Format(model.DateLayout))
	params.Add("end_date", endDate.Format(model.DateLayout))

	reqURL := fmt.Sprintf("%s/api/v1/service/market-data/candles?%s", c.baseURL, params.Encode())

	var bars []model.Bar
	operation := func() error {
		fetched, err := c.fetch(ctx, reqURL)
		if err != nil {
			c.logger.Warn("Failed to fetch bars, will retry",
				zap.Error(err),
				zap.String("symbol", symbol))
			return err
		}
		bars = fetched
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf("failed to fetch bars for %s: %w", symbol, err)
	}

	return bars, nil
}

func (c *MarketDataClient) fetch(ctx context.Context, reqURL string) ([]model.Bar, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("X-Service-Key", c.serviceKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("market data service returned status %d: %s", resp.StatusCode, string(body))
		// Client errors will not succeed on retry
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	var response struct {
		Bars []model.Bar `json:"bars"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode bars: %w", err))
	}

	return response.Bars, nil
}
