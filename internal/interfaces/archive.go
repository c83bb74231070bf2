// -----------------------------------------------------------------------
// Archive contracts - the two upstream systems supplying raw inputs
// -----------------------------------------------------------------------

package interfaces

import (
	"context"
)

// External unit status vocabulary used by the Landsat archive.
const (
	UnitStatusComplete  = "C" // product staged, including archive-side duplicate collapsing
	UnitStatusRejected  = "R"
	UnitStatusInProcess = "I"
	UnitStatusQueued    = "Q"
	UnitStatusDuplicate = "D"
)

// OrderVerdict is the archive's per-scene answer to a bulk order request.
type OrderVerdict struct {
	Available        []string // already staged, ready to pull
	Ordered          []string // accepted, will be staged later
	Invalid          []string // unknown to the archive
	ExternalOrderRef string   // batch reference for the ordered set
}

// UnitStatus is one unit's verdict when polling an external batch.
type UnitStatus struct {
	SceneID    string
	UnitNumber int
	Status     string
}

// ExternalUnit is one scene of an externally-placed order.
type ExternalUnit struct {
	SceneID    string
	UnitNumber int
}

// ExternalOrderKey identifies a group of pending external units.
type ExternalOrderKey struct {
	OrderRef  string
	Email     string
	ContactID string
}

// LandsatArchive is the client contract for the Landsat archive: bulk
// ordering, batch polling, status pushback and external-order discovery.
type LandsatArchive interface {
	Verify(ctx context.Context, sceneIDs []string) (map[string]bool, error)
	OrderScenes(ctx context.Context, sceneIDs []string, contactID, priority string) (*OrderVerdict, error)
	PollStatus(ctx context.Context, externalOrderRef string) ([]UnitStatus, error)
	PushStatus(ctx context.Context, externalOrderRef string, unitNumber int, code string) error
	FetchPendingOrders(ctx context.Context) (map[ExternalOrderKey][]ExternalUnit, error)
}

// ModisArchive is the client contract for the MODIS archive, a direct
// existence probe against the computed download path.
type ModisArchive interface {
	Exists(ctx context.Context, sceneID string) (bool, error)
}

// JobGrid exposes the set of job names currently known to the processing
// grid, used for orphan detection.
type JobGrid interface {
	ActiveJobNames(ctx context.Context) (map[string]struct{}, error)
}
