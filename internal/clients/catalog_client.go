package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/campusdine/preorder-api/internal/models"
	"github.com/campusdine/preorder-api/pkg/circuitbreaker"
	"github.com/campusdine/preorder-api/pkg/errors"
	"github.com/campusdine/preorder-api/pkg/logger"
	"github.com/campusdine/preorder-api/pkg/retry"
)

// CatalogClient talks to the meal catalog service. Order placement snapshots
// the price it returns; the catalog is never consulted again for an
// existing order.
type CatalogClient struct {
	baseURL     string
	httpClient  *http.Client
	breaker     *circuitbreaker.CircuitBreaker
	logger      logger.Logger
	retryConfig *retry.RetryConfig
}

// mealResponse is the catalog service's meal representation
type mealResponse struct {
	ID         string `json:"id,omitempty"`
	Name       string `json:"name,omitempty"`
	PriceCents int64  `json:"price_cents,omitempty"`
	Available  bool   `json:"available,omitempty"`
	Error      string `json:"error,omitempty"`
	Code       string `json:"code,omitempty"`
}

// NewCatalogClient creates a new CatalogClient instance
func NewCatalogClient(baseURL string, logger logger.Logger) *CatalogClient {
	httpClient := &http.Client{
		Timeout: 5 * time.Second,
	}

	retryConfig := &retry.RetryConfig{
		MaxAttempts: 3,
		BackoffStrategy: &retry.ExponentialBackoff{
			InitialInterval: 500 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      1.5,
			JitterFactor:    0.2,
		},
		Logger: logger,
		RetryableErrors: []error{
			errors.ErrTimeout,
			errors.ErrTemporaryFailure,
			errors.ErrServiceUnavailable,
		},
	}

	breaker := circuitbreaker.NewCircuitBreaker(circuitbreaker.CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 2,
	})

	return &CatalogClient{
		baseURL:     baseURL,
		httpClient:  httpClient,
		breaker:     breaker,
		logger:      logger,
		retryConfig: retryConfig,
	}
}

// GetMeal fetches a meal by ID from the catalog service
func (c *CatalogClient) GetMeal(ctx context.Context, mealID string) (*models.Meal, error) {
	if !c.breaker.Allow() {
		c.logger.Warn("Catalog circuit breaker open, rejecting request", "mealID", mealID)
		return nil, errors.NewAppError(
			errors.ErrServiceUnavailable,
			"meal catalog is temporarily unavailable",
			http.StatusServiceUnavailable,
			true,
		)
	}

	url := fmt.Sprintf("%s/api/v1/meals/%s", c.baseURL, mealID)

	var response *mealResponse

	retryFunc := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)

		if err != nil {
			return errors.NewInternalError(fmt.Sprintf("failed to create request: %v", err))
		}

		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)

		if err != nil {
			if err, ok := err.(net.Error); ok && err.Timeout() {
				return errors.NewTimeoutError("catalog request timed out")
			}
			return errors.NewTemporaryError(fmt.Sprintf("failed to reach catalog: %v", err))
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)

		if err != nil {
			return errors.NewInternalError(fmt.Sprintf("failed to read response body: %v", err))
		}

		if resp.StatusCode == http.StatusNotFound {
			return errors.NewNotFoundError(fmt.Sprintf("meal %s not found in catalog", mealID))
		}

		if resp.StatusCode >= 400 {
			if resp.StatusCode == http.StatusRequestTimeout {
				return errors.NewTimeoutError("catalog request timed out")
			}

			if resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode >= 500 {
				return errors.NewTemporaryError(fmt.Sprintf("catalog service error: %d", resp.StatusCode))
			}

			return errors.NewAppError(
				errors.ErrInternal,
				fmt.Sprintf("catalog returned error: %d", resp.StatusCode),
				resp.StatusCode,
				false,
			)
		}

		response = &mealResponse{}

		if err := json.Unmarshal(body, response); err != nil {
			return errors.NewInternalError(fmt.Sprintf("failed to parse response: %v", err))
		}

		if response.Error != "" {
			if response.Code == "TIMEOUT" {
				return errors.NewTimeoutError(response.Error)
			}
			return errors.NewTemporaryError(response.Error)
		}

		return nil
	}

	err := retry.Retry(ctx, retryFunc, c.retryConfig)

	if err != nil {
		c.breaker.Failure()
		c.logger.Error("Failed to fetch meal after retries",
			"error", err,
			"mealID", mealID)
		return nil, err
	}

	c.breaker.Success()

	return &models.Meal{
		ID:         response.ID,
		Name:       response.Name,
		PriceCents: response.PriceCents,
		Available:  response.Available,
	}, nil
}

// Breaker exposes the catalog circuit breaker for admin inspection
func (c *CatalogClient) Breaker() *circuitbreaker.CircuitBreaker {
	return c.breaker
}
