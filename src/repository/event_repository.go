package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"dcaengine/src/database"
	"dcaengine/src/model"
)

// EventRepository persists order events, one per state transition.
type EventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new repository instance using the main read/write database.
func NewEventRepository() *EventRepository {
	return &EventRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *EventRepository) WithDB(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create inserts a new order event.
func (r *EventRepository) Create(ctx context.Context, event *model.OrderEvent) error {

	err := r.db.WithContext(ctx).Create(event).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "EventRepository",
			"op":       "Create",
			"order_id": event.OrderID,
			"type":     event.Type,
		}).WithError(err).Error("Failed to create order event")

		return err
	}

	return nil
}

// FindByOrderID fetches all events for one order, oldest first.
func (r *EventRepository) FindByOrderID(ctx context.Context, orderID uint) ([]model.OrderEvent, error) {

	var events []model.OrderEvent

	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("id ASC").
		Find(&events).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo":     "EventRepository",
			"op":       "FindByOrderID",
			"order_id": orderID,
		}).WithError(err).Error("Failed to fetch order events")

		return nil, err
	}

	return events, nil
}
