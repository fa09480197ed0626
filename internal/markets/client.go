// Package markets fetches market snapshots from the Polymarket Gamma API.
package markets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

// ErrMarketNotFound is returned when neither lookup yields a market.
var ErrMarketNotFound = errors.New("market not found")

// Client is an HTTP client for the Gamma markets endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new Gamma API client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// FetchMarket looks a market up by slug first, accepting the result only when
// its condition id matches (or no condition id is given), then falls back to
// a condition id query.
func (c *Client) FetchMarket(ctx context.Context, conditionID, slug string) (*types.Market, error) {
	if slug != "" {
		market, err := c.fetchBySlug(ctx, slug)
		switch {
		case err != nil:
			c.logger.Debug("market-slug-lookup-failed",
				zap.String("slug", slug),
				zap.Error(err))
		case conditionID == "", strings.EqualFold(market.ConditionID, conditionID):
			return market, nil
		default:
			c.logger.Debug("market-slug-condition-mismatch",
				zap.String("slug", slug),
				zap.String("condition-id", conditionID),
				zap.String("slug-condition-id", market.ConditionID))
		}
	}

	return c.fetchByCondition(ctx, conditionID)
}

func (c *Client) fetchBySlug(ctx context.Context, slug string) (*types.Market, error) {
	var market types.Market
	err := c.getJSON(ctx, "slug", "/markets/slug/"+url.PathEscape(slug), nil, &market)
	if err != nil {
		return nil, err
	}
	return &market, nil
}

func (c *Client) fetchByCondition(ctx context.Context, conditionID string) (*types.Market, error) {
	if conditionID == "" {
		return nil, ErrMarketNotFound
	}

	params := url.Values{}
	params.Set("condition_ids", conditionID)

	var markets []types.Market
	err := c.getJSON(ctx, "condition", "/markets", params, &markets)
	if err != nil {
		return nil, err
	}

	if len(markets) == 0 {
		return nil, ErrMarketNotFound
	}

	for i := range markets {
		if strings.EqualFold(markets[i].ConditionID, conditionID) {
			return &markets[i], nil
		}
	}

	return &markets[0], nil
}

func (c *Client) getJSON(ctx context.Context, lookup, path string, params url.Values, out interface{}) (err error) {
	start := time.Now()
	defer func() {
		MarketFetchDuration.WithLabelValues(lookup).Observe(time.Since(start).Seconds())
		if err != nil && !errors.Is(err, ErrMarketNotFound) {
			MarketFetchErrorsTotal.WithLabelValues(lookup).Inc()
		}
	}()

	requestURL := c.baseURL + path
	if len(params) > 0 {
		requestURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "polymarket-redeemer/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrMarketNotFound
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, string(body))
	}

	err = json.Unmarshal(body, out)
	if err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}

	return nil
}
