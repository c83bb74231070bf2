// Package grid queries the processing grid for the jobs it is currently
// running, the ground truth for orphan detection.
package grid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/orbiter/internal/common"
	"github.com/ternarybob/orbiter/internal/interfaces"
)

// DefaultTimeout is the default HTTP timeout.
const DefaultTimeout = 30 * time.Second

// Client queries the grid's job listing endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     arbor.ILogger
}

var _ interfaces.JobGrid = (*Client)(nil)

type jobsResponse struct {
	Jobs []struct {
		Name string `json:"name"`
	} `json:"jobs"`
}

// NewClient creates a new grid client from configuration.
func NewClient(cfg *common.Config, logger arbor.ILogger) *Client {
	timeout := cfg.Grid.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.Grid.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// ActiveJobNames returns the names of every job the grid currently knows,
// running or queued.
func (c *Client) ActiveJobNames(ctx context.Context) (map[string]struct{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/active", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("grid query failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("grid query returned status %d: %s", resp.StatusCode, string(body))
	}

	var result jobsResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode grid response: %w", err)
	}

	names := make(map[string]struct{}, len(result.Jobs))
	for _, job := range result.Jobs {
		names[job.Name] = struct{}{}
	}
	c.logger.Debug().Int("count", len(names)).Msg("Fetched active grid jobs")
	return names, nil
}
