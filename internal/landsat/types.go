// Package landsat provides the client for the Landsat archive's ordering
// API. This package centralizes all archive interactions for the engine.
package landsat

import (
	"fmt"
	"time"
)

// APIError represents an error response from the archive API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("landsat archive error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// RateLimitError represents a client-side rate limit interruption.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("landsat archive rate limit exceeded, retry after %v", e.RetryAfter)
}

// Wire types for the archive's JSON surface.

type verifyRequest struct {
	SceneIDs []string `json:"scene_ids"`
}

type verifyResponse struct {
	Known map[string]bool `json:"known"`
}

type orderRequest struct {
	SceneIDs  []string `json:"scene_ids"`
	ContactID string   `json:"contact_id"`
	Priority  string   `json:"priority"`
}

type orderResponse struct {
	Available []string `json:"available"`
	Ordered   []string `json:"ordered"`
	Invalid   []string `json:"invalid"`
	OrderRef  string   `json:"order_ref"`
}

type unitStatusResponse struct {
	Units []unitEntry `json:"units"`
}

type unitEntry struct {
	SceneID    string `json:"scene_id"`
	UnitNumber int    `json:"unit_number"`
	Status     string `json:"status"`
}

type statusUpdateRequest struct {
	UnitNumber int    `json:"unit_number"`
	Status     string `json:"status"`
}

type pendingOrdersResponse struct {
	Orders []pendingOrderEntry `json:"orders"`
}

type pendingOrderEntry struct {
	OrderRef  string      `json:"order_ref"`
	Email     string      `json:"email"`
	ContactID string      `json:"contact_id"`
	Units     []unitEntry `json:"units"`
}
