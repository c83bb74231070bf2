package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/orbiter/internal/common"
	"github.com/ternarybob/orbiter/internal/interfaces"
)

// Manager is the composite StorageManager over one Badger connection
type Manager struct {
	db         *BadgerDB
	scenes     interfaces.SceneStorage
	orders     interfaces.OrderStorage
	requesters interfaces.RequesterStorage
	kv         interfaces.KeyValueStorage
	logger     arbor.ILogger
}

// NewManager opens the database and builds all storage services
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	return &Manager{
		db:         db,
		scenes:     NewSceneStorage(db, logger),
		orders:     NewOrderStorage(db, logger),
		requesters: NewRequesterStorage(db, logger),
		kv:         NewKVStorage(db, logger),
		logger:     logger,
	}, nil
}

func (m *Manager) Scenes() interfaces.SceneStorage         { return m.scenes }
func (m *Manager) Orders() interfaces.OrderStorage         { return m.orders }
func (m *Manager) Requesters() interfaces.RequesterStorage { return m.requesters }
func (m *Manager) KV() interfaces.KeyValueStorage          { return m.kv }

// Close closes the underlying database
func (m *Manager) Close() error {
	return m.db.Close()
}

// Ensure Manager implements StorageManager interface
var _ interfaces.StorageManager = (*Manager)(nil)
