// Package modis probes the MODIS data pool for scene availability. The
// pool is a static HTTP tree laid out by product, collection and
// acquisition date; a scene either exists at its computed path or never
// will.
package modis

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/orbiter/internal/common"
	"github.com/ternarybob/orbiter/internal/interfaces"
	"github.com/ternarybob/orbiter/internal/models"
)

// DefaultTimeout is the default HTTP timeout.
const DefaultTimeout = 30 * time.Second

// Client probes the MODIS data pool.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     arbor.ILogger
}

var _ interfaces.ModisArchive = (*Client)(nil)

// NewClient creates a new data pool client from configuration.
func NewClient(cfg *common.Config, logger arbor.ILogger) *Client {
	timeout := cfg.Modis.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.Modis.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Exists probes the scene's computed path with a HEAD request. A 404 is a
// definitive miss; other failures are transport errors the caller should
// treat as transient.
func (c *Client) Exists(ctx context.Context, sceneID string) (bool, error) {
	path, err := ScenePath(sceneID)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("data pool probe failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		c.logger.Debug().Str("scene", sceneID).Str("path", path).Msg("Scene absent from data pool")
		return false, nil
	default:
		return false, fmt.Errorf("data pool probe for %s returned status %d", sceneID, resp.StatusCode)
	}
}

// ScenePath computes a scene's location in the data pool tree:
// /<platform-dir>/<product>.<collection>/<acquisition-date>/<scene>.hdf
func ScenePath(sceneID string) (string, error) {
	parts := strings.Split(sceneID, ".")
	if len(parts) < 4 {
		return "", fmt.Errorf("malformed modis scene id: %s", sceneID)
	}
	product := strings.ToUpper(parts[0])
	collection := parts[3]

	acquired, err := models.AcquisitionDate(sceneID)
	if err != nil {
		return "", err
	}

	var platformDir string
	switch {
	case strings.HasPrefix(product, "MOD"):
		platformDir = "MOLT"
	case strings.HasPrefix(product, "MYD"):
		platformDir = "MOLA"
	default:
		return "", fmt.Errorf("unrecognized modis product: %s", product)
	}

	return fmt.Sprintf("/%s/%s.%s/%s/%s.hdf",
		platformDir, product, collection, acquired.Format("2006.01.02"), sceneID), nil
}
