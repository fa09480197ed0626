// Package wallet reads the positions held by a proxy wallet from the Polymarket Data API.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mselser95/polymarket-redeemer/pkg/types"
)

const (
	// PageSize is the Data API page size.
	PageSize = 100
	// MaxPages bounds pagination for a single wallet.
	MaxPages = 100
)

// Client fetches wallet positions from the Data API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a new wallet client.
func NewClient(dataAPIURL string, logger *zap.Logger) (c *Client, err error) {
	if dataAPIURL == "" {
		return nil, errors.New("data API URL cannot be empty")
	}

	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	client := &Client{
		baseURL: strings.TrimRight(dataAPIURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}

	return client, nil
}

// FetchPositions returns every position of user, following pagination until
// a short page or MaxPages. Any failed page fails the whole fetch so callers
// never act on a partial view.
func (c *Client) FetchPositions(ctx context.Context, user string) (positions []types.Position, err error) {
	start := time.Now()
	defer func() {
		FetchDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			FetchErrorsTotal.Inc()
		}
	}()

	for page := 0; page < MaxPages; page++ {
		batch, err := c.fetchPage(ctx, user, page*PageSize)
		if err != nil {
			return nil, fmt.Errorf("fetch page %d: %w", page, err)
		}

		positions = append(positions, batch...)

		c.logger.Debug("fetched-positions-page",
			zap.String("user", user),
			zap.Int("page", page),
			zap.Int("positions", len(batch)),
			zap.Int("total", len(positions)))

		if len(batch) < PageSize {
			break
		}
	}

	PositionsFetchedTotal.Add(float64(len(positions)))
	return positions, nil
}

func (c *Client) fetchPage(ctx context.Context, user string, offset int) ([]types.Position, error) {
	params := url.Values{}
	params.Set("user", user)
	params.Set("limit", strconv.Itoa(PageSize))
	params.Set("offset", strconv.Itoa(offset))

	requestURL := fmt.Sprintf("%s/positions?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error: status %d: %s", resp.StatusCode, string(body))
	}

	var positions []types.Position
	err = json.Unmarshal(body, &positions)
	if err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return positions, nil
}
