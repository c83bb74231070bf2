// Package reconcile keeps local scene state consistent with the two
// external archives: it places and polls bulk orders against the Landsat
// archive, probes MODIS availability, imports externally-originated orders
// and re-pushes failed status syncs.
package reconcile

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/orbiter/internal/common"
	"github.com/ternarybob/orbiter/internal/interfaces"
	"github.com/ternarybob/orbiter/internal/services/production"
)

// Service is the archive reconciler.
type Service struct {
	store      interfaces.StorageManager
	landsat    interfaces.LandsatArchive
	modis      interfaces.ModisArchive
	production *production.Service
	cfg        *common.Config
	logger     arbor.ILogger
}

// NewService creates a new reconcile service.
func NewService(store interfaces.StorageManager, landsat interfaces.LandsatArchive, modis interfaces.ModisArchive, prod *production.Service, cfg *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		store:      store,
		landsat:    landsat,
		modis:      modis,
		production: prod,
		cfg:        cfg,
		logger:     logger,
	}
}
