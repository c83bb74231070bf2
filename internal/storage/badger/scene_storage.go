package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/orbiter/internal/interfaces"
	"github.com/ternarybob/orbiter/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SceneStorage implements the SceneStorage interface for Badger
type SceneStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSceneStorage creates a new SceneStorage instance
func NewSceneStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SceneStorage {
	return &SceneStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SceneStorage) InsertScenes(ctx context.Context, scenes []*models.Scene) error {
	for _, scene := range scenes {
		if err := scene.Validate(); err != nil {
			return fmt.Errorf("invalid scene %s: %w", scene.Key(), err)
		}
	}
	for i, scene := range scenes {
		if err := s.db.Store().Insert(scene.Key(), scene); err != nil {
			if err == badgerhold.ErrKeyExists {
				return fmt.Errorf("scene already exists: %s", scene.Key())
			}
			return fmt.Errorf("failed to insert scene %s (%d of %d): %w", scene.Key(), i+1, len(scenes), err)
		}
	}
	return nil
}

func (s *SceneStorage) GetScene(ctx context.Context, orderID, name string) (*models.Scene, error) {
	var scene models.Scene
	key := orderID + "/" + name
	if err := s.db.Store().Get(key, &scene); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrSceneNotFound
		}
		return nil, fmt.Errorf("failed to get scene %s: %w", key, err)
	}
	return &scene, nil
}

func (s *SceneStorage) UpdateScene(ctx context.Context, scene *models.Scene) error {
	if err := scene.Validate(); err != nil {
		return fmt.Errorf("invalid scene %s: %w", scene.Key(), err)
	}
	scene.UpdatedAt = time.Now()
	if err := s.db.Store().Upsert(scene.Key(), scene); err != nil {
		return fmt.Errorf("failed to update scene %s: %w", scene.Key(), err)
	}
	return nil
}

func (s *SceneStorage) ListScenes(ctx context.Context, filter *interfaces.SceneFilter) ([]*models.Scene, error) {
	scenes, err := s.find(filter)
	if err != nil {
		return nil, err
	}
	return scenes, nil
}

// UpdateMatching applies mutate to every matched scene and upserts each one
// keyed by scene identity, so re-running a pass over the same criteria is
// safe.
func (s *SceneStorage) UpdateMatching(ctx context.Context, filter *interfaces.SceneFilter, mutate func(*models.Scene)) (int, error) {
	scenes, err := s.find(filter)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, scene := range scenes {
		mutate(scene)
		scene.UpdatedAt = time.Now()
		if err := s.db.Store().Upsert(scene.Key(), scene); err != nil {
			return updated, fmt.Errorf("failed to update scene %s: %w", scene.Key(), err)
		}
		updated++
	}
	return updated, nil
}

// find runs the indexed part of the filter against badgerhold and applies
// the comparison criteria (retry cutoff, failed-sync presence) in a second
// pass, since those live on nullable fields.
func (s *SceneStorage) find(filter *interfaces.SceneFilter) ([]*models.Scene, error) {
	query := badgerhold.Where("OrderID").Ne("")

	if filter != nil {
		if filter.OrderID != "" {
			query = badgerhold.Where("OrderID").Eq(filter.OrderID)
		}
		if filter.Name != "" {
			query = query.And("Name").Eq(filter.Name)
		}
		if len(filter.Statuses) > 0 {
			values := make([]interface{}, len(filter.Statuses))
			for i, st := range filter.Statuses {
				values[i] = st
			}
			query = query.And("Status").In(values...)
		}
		if len(filter.SensorTypes) > 0 {
			values := make([]interface{}, len(filter.SensorTypes))
			for i, t := range filter.SensorTypes {
				values[i] = t
			}
			query = query.And("SensorType").In(values...)
		}
	}

	var records []models.Scene
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list scenes: %w", err)
	}

	result := make([]*models.Scene, 0, len(records))
	for i := range records {
		scene := &records[i]
		if filter != nil {
			if filter.RetryAfterBefore != nil {
				if scene.RetryAfter == nil || !scene.RetryAfter.Before(*filter.RetryAfterBefore) {
					continue
				}
			}
			if filter.FailedSyncOnly && scene.FailedExternalSync == "" {
				continue
			}
		}
		result = append(result, scene)
	}

	if filter != nil && filter.SortBy != "" {
		sortScenes(result, filter.SortBy, filter.Descending)
	}
	if filter != nil && filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func sortScenes(scenes []*models.Scene, field string, descending bool) {
	less := func(a, b *models.Scene) bool { return a.Key() < b.Key() }
	switch field {
	case "ExternalOrderRef":
		less = func(a, b *models.Scene) bool { return a.ExternalOrderRef < b.ExternalOrderRef }
	case "Name":
		less = func(a, b *models.Scene) bool { return a.Name < b.Name }
	case "CreatedAt":
		less = func(a, b *models.Scene) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "UpdatedAt":
		less = func(a, b *models.Scene) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	}
	sort.SliceStable(scenes, func(i, j int) bool {
		if descending {
			return less(scenes[j], scenes[i])
		}
		return less(scenes[i], scenes[j])
	})
}
