package badger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/orbiter/internal/interfaces"
	"github.com/ternarybob/orbiter/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// OrderStorage implements the OrderStorage interface for Badger
type OrderStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewOrderStorage creates a new OrderStorage instance
func NewOrderStorage(db *BadgerDB, logger arbor.ILogger) interfaces.OrderStorage {
	return &OrderStorage{
		db:     db,
		logger: logger,
	}
}

func (s *OrderStorage) InsertOrder(ctx context.Context, order *models.Order) error {
	if err := order.Validate(); err != nil {
		return fmt.Errorf("invalid order: %w", err)
	}
	if err := s.db.Store().Insert(order.OrderID, order); err != nil {
		if err == badgerhold.ErrKeyExists {
			return fmt.Errorf("order already exists: %s", order.OrderID)
		}
		return fmt.Errorf("failed to insert order %s: %w", order.OrderID, err)
	}
	return nil
}

func (s *OrderStorage) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	var order models.Order
	if err := s.db.Store().Get(orderID, &order); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, interfaces.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order %s: %w", orderID, err)
	}
	return &order, nil
}

func (s *OrderStorage) UpdateOrder(ctx context.Context, order *models.Order) error {
	if err := order.Validate(); err != nil {
		return fmt.Errorf("invalid order: %w", err)
	}
	if err := s.db.Store().Upsert(order.OrderID, order); err != nil {
		return fmt.Errorf("failed to update order %s: %w", order.OrderID, err)
	}
	return nil
}

func (s *OrderStorage) ListOrders(ctx context.Context, filter *interfaces.OrderFilter) ([]*models.Order, error) {
	query := badgerhold.Where("OrderID").Ne("")

	if filter != nil {
		if filter.OrderID != "" {
			query = badgerhold.Where("OrderID").Eq(filter.OrderID)
		}
		if len(filter.Statuses) > 0 {
			values := make([]interface{}, len(filter.Statuses))
			for i, st := range filter.Statuses {
				values[i] = st
			}
			query = query.And("Status").In(values...)
		}
		if filter.Source != "" {
			query = query.And("OrderSource").Eq(filter.Source)
		}
	}

	var records []models.Order
	if err := s.db.Store().Find(&records, query); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	result := make([]*models.Order, 0, len(records))
	for i := range records {
		order := &records[i]
		if filter != nil {
			if filter.CompletedBefore != nil {
				if order.CompletionDate == nil || !order.CompletionDate.Before(*filter.CompletedBefore) {
					continue
				}
			}
			if filter.InitialEmailPending && order.InitialEmailSent != nil {
				continue
			}
		}
		result = append(result, order)
		if filter != nil && filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

// RequesterStorage implements the RequesterStorage interface for Badger
type RequesterStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewRequesterStorage creates a new RequesterStorage instance
func NewRequesterStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RequesterStorage {
	return &RequesterStorage{
		db:     db,
		logger: logger,
	}
}

// GetOrCreate finds a requester by external identity, creating the record
// when absent.
func (s *RequesterStorage) GetOrCreate(ctx context.Context, email, contactID string) (*models.Requester, error) {
	if email == "" {
		return nil, fmt.Errorf("requester email is required")
	}

	var existing []models.Requester
	if err := s.db.Store().Find(&existing, badgerhold.Where("Email").Eq(email)); err != nil {
		return nil, fmt.Errorf("failed to look up requester %s: %w", email, err)
	}
	if len(existing) > 0 {
		requester := &existing[0]
		// Contact ids can change archive-side; keep ours current
		if contactID != "" && requester.ContactID != contactID {
			requester.ContactID = contactID
			if err := s.db.Store().Upsert(requester.ID, requester); err != nil {
				return nil, fmt.Errorf("failed to update requester %s: %w", email, err)
			}
		}
		return requester, nil
	}

	requester := &models.Requester{
		ID:        uuid.New().String(),
		Email:     email,
		ContactID: contactID,
		CreatedAt: time.Now(),
	}
	if err := s.db.Store().Insert(requester.ID, requester); err != nil {
		return nil, fmt.Errorf("failed to create requester %s: %w", email, err)
	}

	s.logger.Info().Str("email", email).Str("contact_id", contactID).Msg("Created requester")
	return requester, nil
}
