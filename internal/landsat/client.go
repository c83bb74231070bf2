package landsat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/orbiter/internal/common"
	"github.com/ternarybob/orbiter/internal/interfaces"
)

const (
	// DefaultTimeout is the default HTTP timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the default rate limit (requests per second).
	DefaultRateLimit = 5
)

// Client talks to the Landsat archive's ordering API.
type Client struct {
	baseURL    string
	username   string
	token      string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter
}

var _ interfaces.LandsatArchive = (*Client)(nil)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
}

// NewClient creates a new archive client from configuration.
func NewClient(cfg *common.Config, logger arbor.ILogger, opts ...ClientOption) *Client {
	timeout := cfg.Landsat.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limit := cfg.Landsat.RateLimit
	if limit <= 0 {
		limit = DefaultRateLimit
	}

	c := &Client{
		baseURL:  cfg.Landsat.BaseURL,
		username: cfg.Landsat.Username,
		token:    cfg.Landsat.Token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		limiter: rate.NewLimiter(rate.Limit(limit), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Verify asks the archive which of the given scene identifiers it knows.
func (c *Client) Verify(ctx context.Context, sceneIDs []string) (map[string]bool, error) {
	var result verifyResponse
	if err := c.do(ctx, http.MethodPost, "/scenes/verify", &verifyRequest{SceneIDs: sceneIDs}, &result); err != nil {
		return nil, err
	}
	return result.Known, nil
}

// OrderScenes places a bulk order under the given contact and returns the
// archive's per-scene verdict.
func (c *Client) OrderScenes(ctx context.Context, sceneIDs []string, contactID, priority string) (*interfaces.OrderVerdict, error) {
	req := &orderRequest{
		SceneIDs:  sceneIDs,
		ContactID: contactID,
		Priority:  priority,
	}
	var result orderResponse
	if err := c.do(ctx, http.MethodPost, "/orders", req, &result); err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("contact_id", contactID).
		Int("requested", len(sceneIDs)).
		Int("available", len(result.Available)).
		Int("ordered", len(result.Ordered)).
		Int("invalid", len(result.Invalid)).
		Msg("Archive bulk order placed")

	return &interfaces.OrderVerdict{
		Available:        result.Available,
		Ordered:          result.Ordered,
		Invalid:          result.Invalid,
		ExternalOrderRef: result.OrderRef,
	}, nil
}

// PollStatus returns the per-unit status of an external batch.
func (c *Client) PollStatus(ctx context.Context, externalOrderRef string) ([]interfaces.UnitStatus, error) {
	var result unitStatusResponse
	if err := c.do(ctx, http.MethodGet, "/orders/"+externalOrderRef+"/units", nil, &result); err != nil {
		return nil, err
	}

	units := make([]interfaces.UnitStatus, 0, len(result.Units))
	for _, u := range result.Units {
		units = append(units, interfaces.UnitStatus{
			SceneID:    u.SceneID,
			UnitNumber: u.UnitNumber,
			Status:     u.Status,
		})
	}
	return units, nil
}

// PushStatus reports a unit's local processing outcome back to the archive.
func (c *Client) PushStatus(ctx context.Context, externalOrderRef string, unitNumber int, code string) error {
	req := &statusUpdateRequest{
		UnitNumber: unitNumber,
		Status:     code,
	}
	return c.do(ctx, http.MethodPut, "/orders/"+externalOrderRef+"/units/status", req, nil)
}

// FetchPendingOrders returns units ordered through the archive's own
// surface that await local processing, grouped by order.
func (c *Client) FetchPendingOrders(ctx context.Context) (map[interfaces.ExternalOrderKey][]interfaces.ExternalUnit, error) {
	var result pendingOrdersResponse
	if err := c.do(ctx, http.MethodGet, "/orders/pending", nil, &result); err != nil {
		return nil, err
	}

	pending := make(map[interfaces.ExternalOrderKey][]interfaces.ExternalUnit, len(result.Orders))
	for _, order := range result.Orders {
		key := interfaces.ExternalOrderKey{
			OrderRef:  order.OrderRef,
			Email:     order.Email,
			ContactID: order.ContactID,
		}
		for _, u := range order.Units {
			pending[key] = append(pending[key], interfaces.ExternalUnit{
				SceneID:    u.SceneID,
				UnitNumber: u.UnitNumber,
			})
		}
	}
	return pending, nil
}

// do performs one request against the API with rate limiting and auth.
func (c *Client) do(ctx context.Context, method, path string, body, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return &RateLimitError{RetryAfter: time.Second}
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.username != "" {
		req.Header.Set("X-Archive-User", c.username)
	}

	if c.logger != nil {
		c.logger.Debug().
			Str("method", method).
			Str("url", c.baseURL+path).
			Msg("Archive API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(respBody),
			Endpoint:   path,
		}
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
