// -----------------------------------------------------------------------
// Scene - single requested processing unit within an order
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"time"
)

// SceneStatus is the scene lifecycle state.
type SceneStatus string

const (
	SceneStatusSubmitted   SceneStatus = "submitted"
	SceneStatusOnCache     SceneStatus = "oncache"
	SceneStatusOnOrder     SceneStatus = "onorder"
	SceneStatusQueued      SceneStatus = "queued"
	SceneStatusProcessing  SceneStatus = "processing"
	SceneStatusComplete    SceneStatus = "complete"
	SceneStatusUnavailable SceneStatus = "unavailable"
	SceneStatusError       SceneStatus = "error"
	SceneStatusRetry       SceneStatus = "retry"
	SceneStatusPurged      SceneStatus = "purged"
)

// ValidSceneStatuses enumerates every representable scene status.
var ValidSceneStatuses = []SceneStatus{
	SceneStatusSubmitted,
	SceneStatusOnCache,
	SceneStatusOnOrder,
	SceneStatusQueued,
	SceneStatusProcessing,
	SceneStatusComplete,
	SceneStatusUnavailable,
	SceneStatusError,
	SceneStatusRetry,
	SceneStatusPurged,
}

// IsValidSceneStatus reports whether s is one of the enumerated statuses.
func IsValidSceneStatus(s SceneStatus) bool {
	for _, v := range ValidSceneStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// SensorType is the coarse input family of a scene.
type SensorType string

const (
	SensorTypeLandsat SensorType = "landsat"
	SensorTypeModis   SensorType = "modis"
	SensorTypePlot    SensorType = "plot"
)

// PlotSceneName is the reserved name of the synthetic statistics scene.
const PlotSceneName = "plot"

// Scene represents one requested unit of work: a satellite acquisition, or
// the synthetic "plot" aggregate created when statistics were requested.
// Scenes are created once with their order and mutated in place afterwards;
// purge scrubs their fields but keeps the row for audit.
type Scene struct {
	Name       string      `json:"name" badgerhold:"index"`
	OrderID    string      `json:"order_id" badgerhold:"index"`
	SensorType SensorType  `json:"sensor_type"`
	Status     SceneStatus `json:"status" badgerhold:"index"`

	// Dispatch correlation with the processing grid
	ProcessingLocation string `json:"processing_location,omitempty"`
	JobName            string `json:"job_name,omitempty"`

	// Retry bookkeeping
	RetryCount int        `json:"retry_count"`
	RetryLimit int        `json:"retry_limit"`
	RetryAfter *time.Time `json:"retry_after,omitempty"`

	// External archive correlation, set only for scenes that originated
	// from, or were ordered against, the Landsat archive
	ExternalOrderRef   string `json:"external_order_ref,omitempty"`
	ExternalUnitRef    int    `json:"external_unit_ref,omitempty"`
	FailedExternalSync string `json:"failed_external_sync,omitempty"`

	// Operator-facing diagnostics
	Note        string `json:"note,omitempty"`
	LogContents string `json:"log_contents,omitempty"`

	// Completed product artifacts
	CompletionDate         *time.Time `json:"completion_date,omitempty"`
	ProductDistroLocation  string     `json:"product_distro_location,omitempty"`
	ProductDownloadURL     string     `json:"product_download_url,omitempty"`
	ChecksumDistroLocation string     `json:"cksum_distro_location,omitempty"`
	ChecksumDownloadURL    string     `json:"cksum_download_url,omitempty"`

	// Orphan diagnostics: ReportedOrphan is the first pass the scene's job
	// was missing from the grid, Orphaned is set once the threshold elapses
	Orphaned       bool       `json:"orphaned"`
	ReportedOrphan *time.Time `json:"reported_orphan,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewScene creates a scene in the submitted state.
func NewScene(orderID, name string, sensorType SensorType) *Scene {
	now := time.Now()
	return &Scene{
		Name:       name,
		OrderID:    orderID,
		SensorType: sensorType,
		Status:     SceneStatusSubmitted,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Key returns the storage key, scenes are identified by order + name.
func (s *Scene) Key() string {
	return s.OrderID + "/" + s.Name
}

// IsPlot returns true for the synthetic statistics scene.
func (s *Scene) IsPlot() bool {
	return s.SensorType == SensorTypePlot
}

// IsTerminal reports whether the scene has reached a terminal state for
// order-completion purposes.
func (s *Scene) IsTerminal() bool {
	return s.Status == SceneStatusComplete || s.Status == SceneStatusUnavailable
}

// Validate checks scene integrity before persistence.
func (s *Scene) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scene name is required")
	}
	if s.OrderID == "" {
		return fmt.Errorf("scene order id is required")
	}
	if !IsValidSceneStatus(s.Status) {
		return fmt.Errorf("invalid scene status: %s", s.Status)
	}
	if s.RetryLimit > 0 && s.RetryCount > s.RetryLimit {
		return fmt.Errorf("retry count %d exceeds limit %d", s.RetryCount, s.RetryLimit)
	}
	return nil
}

// Scrub clears artifact, dispatch and log fields during purge. Identity and
// audit timestamps are retained.
func (s *Scene) Scrub() {
	s.ProcessingLocation = ""
	s.JobName = ""
	s.Note = ""
	s.LogContents = ""
	s.ProductDistroLocation = ""
	s.ProductDownloadURL = ""
	s.ChecksumDistroLocation = ""
	s.ChecksumDownloadURL = ""
	s.Status = SceneStatusPurged
	s.UpdatedAt = time.Now()
}
