package serp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopagent/backend/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const providerName = "serper"

// Client handles communication with the Serper shopping-results API
type Client struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	rateLimiter *rate.Limiter
	logger      *zap.Logger
}

// NewClient creates a new shopping-results client
func NewClient(apiKey, baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	// Serper free tier allows roughly 50 requests per minute
	limiter := rate.NewLimiter(rate.Limit(50.0/60.0), 5)

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		apiKey:      apiKey,
		baseURL:     baseURL,
		rateLimiter: limiter,
		logger:      logger,
	}
}

// searchRequest is the JSON body sent to the provider.
type searchRequest struct {
	Query string `json:"q"`
	Num   int    `json:"num"`
}

// searchResponse is the subset of the provider payload the pipeline uses.
type searchResponse struct {
	Shopping []domain.RawRecord `json:"shopping"`
	Credits  int                `json:"credits"`
}

// Search fetches raw shopping records for a query. A query with no results
// returns an empty slice, not an error.
func (c *Client) Search(ctx context.Context, query string, numResults int) ([]domain.RawRecord, error) {
	if numResults <= 0 {
		numResults = 30
	}

	payload, err := json.Marshal(searchRequest{Query: query, Num: numResults})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	// Retry up to 3 times for transient failures
	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		body, status, err := c.doRequest(ctx, payload)
		if err != nil {
			c.logger.Warn("search request failed",
				zap.Int("attempt", attempt),
				zap.Error(err))
			lastErr = err
			time.Sleep(time.Duration(attempt*500) * time.Millisecond)
			continue
		}

		if status != http.StatusOK {
			lastErr = &domain.ProviderError{
				Provider:   providerName,
				StatusCode: status,
				Message:    string(body),
			}
			c.logger.Warn("search provider returned error status",
				zap.Int("attempt", attempt),
				zap.Int("status", status))
			// 4xx responses will not get better on retry
			if status >= 400 && status < 500 {
				return nil, lastErr
			}
			time.Sleep(time.Duration(attempt*500) * time.Millisecond)
			continue
		}

		var resp searchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, &domain.ProviderError{
				Provider: providerName,
				Message:  "malformed response payload",
				Err:      err,
			}
		}

		c.logger.Info("search completed",
			zap.String("query", query),
			zap.Int("results", len(resp.Shopping)),
			zap.Int("credits", resp.Credits))

		if resp.Shopping == nil {
			return []domain.RawRecord{}, nil
		}
		return resp.Shopping, nil
	}

	return nil, lastErr
}

// doRequest executes one HTTP POST against the provider endpoint.
func (c *Client) doRequest(ctx context.Context, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &domain.ProviderError{
			Provider: providerName,
			Message:  "request failed",
			Err:      err,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response body: %w", err)
	}

	return body, resp.StatusCode, nil
}
