package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dcaengine/src/database"
	"dcaengine/src/model"
)

// OrderRepository handles read/write operations for orders. It is the only
// component that touches the orders table; the lifecycle rules themselves
// live in the orders service and the execution engine.
type OrderRepository struct {
	db *gorm.DB
}

// NewOrderRepository creates a new repository instance using the main read/write database.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *OrderRepository) WithDB(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create inserts a new order. The autoincrement primary key gives every
// order a fresh, monotonically increasing identifier.
func (r *OrderRepository) Create(ctx context.Context, order *model.Order) error {

	logger.WithFields(map[string]interface{}{
		"repo":        "OrderRepository",
		"op":          "Create",
		"owner":       order.Owner,
		"input_asset": order.InputAsset,
	}).Debug("Creating new order")

	err := r.db.WithContext(ctx).Create(order).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "Create",
		}).WithError(err).Error("Failed to create order")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":     "OrderRepository",
		"op":       "Create",
		"order_id": order.ID,
	}).Info("Order created successfully")

	return nil
}

// FindByID fetches a single order by its primary ID.
// Returns (nil, nil) if the order is not found.
func (r *OrderRepository) FindByID(ctx context.Context, id uint) (*model.Order, error) {

	var order model.Order

	err := r.db.WithContext(ctx).First(&order, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "OrderRepository",
			"op":   "FindByID",
			"id":   id,
		}).WithError(err).Error("Failed to fetch order by ID")

		return nil, err
	}

	return &order, nil
}

// FindByOwner returns one page of an owner's orders plus the total count,
// so callers can detect truncation. A non-positive limit disables paging.
func (r *OrderRepository) FindByOwner(
	ctx context.Context,
	owner string,
	limit int,
	offset int,
) ([]model.Order, int64, error) {

	var total int64
	base := r.db.WithContext(ctx).Model(&model.Order{}).Where("owner = ?", owner)

	if err := base.Count(&total).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "OrderRepository",
			"op":    "FindByOwner",
			"owner": owner,
		}).WithError(err).Error("Failed to count owner orders")

		return nil, 0, err
	}

	query := r.db.WithContext(ctx).Where("owner = ?", owner).Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit).Offset(offset)
	}

	var orders []model.Order
	if err := query.Find(&orders).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "OrderRepository",
			"op":    "FindByOwner",
			"owner": owner,
		}).WithError(err).Error("Failed to fetch owner orders")

		return nil, 0, err
	}

	return orders, total, nil
}

// FindActive returns up to limit active orders, oldest first. Used by the
// executor loop to build execution batches.
func (r *OrderRepository) FindActive(ctx context.Context, limit int) ([]model.Order, error) {

	if limit <= 0 {
		limit = 100
	}

	var orders []model.Order

	err := r.db.WithContext(ctx).
		Where("status = ?", model.OrderStatusActive).
		Order("id ASC").
		Limit(limit).
		Find(&orders).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":  "OrderRepository",
			"op":    "FindActive",
			"limit": limit,
		}).WithError(err).Error("Failed to fetch active orders")

		return nil, err
	}

	return orders, nil
}

// SaveGuarded persists an execution mutation only while the stored row
// still matches the state the mutation was computed from: active status,
// same remaining amount and slice count. Reports whether the write
// landed; a miss means another process finalized or executed the order
// between the read and this write.
func (r *OrderRepository) SaveGuarded(
	ctx context.Context,
	order *model.Order,
	priorRemaining decimal.Decimal,
	priorSlices uint,
) (bool, error) {

	res := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("id = ? AND status = ? AND remaining_amount = ? AND slices_executed = ?",
			order.ID, model.OrderStatusActive, priorRemaining, priorSlices).
		Updates(map[string]interface{}{
			"remaining_amount": order.RemainingAmount,
			"slices_executed":  order.SlicesExecuted,
			"last_executed_at": order.LastExecutedAt,
			"status":           order.Status,
		})

	if res.Error != nil {
		logger.WithFields(map[string]interface{}{
			"repo":     "OrderRepository",
			"op":       "SaveGuarded",
			"order_id": order.ID,
		}).WithError(res.Error).Error("Failed to save order")

		return false, res.Error
	}

	return res.RowsAffected > 0, nil
}

// MutateLocked loads the order under a FOR UPDATE row lock inside a
// transaction, applies mutate, persists the result and runs commit
// before the transaction commits. Any error rolls the whole transaction
// back, so external settlement in commit either lands together with the
// state change or not at all.
// Returns (nil, nil) if the order is not found; errors from mutate and
// commit propagate untouched.
func (r *OrderRepository) MutateLocked(
	ctx context.Context,
	orderID uint,
	mutate func(order *model.Order) error,
	commit func(order *model.Order) error,
) (*model.Order, error) {

	var order model.Order

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&order, orderID).Error; err != nil {
			return err
		}
		if err := mutate(&order); err != nil {
			return err
		}
		if err := tx.Save(&order).Error; err != nil {
			return err
		}
		if commit != nil {
			return commit(&order)
		}
		return nil
	})

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	return &order, nil
}

// SumRemainingByAsset returns the custodial liability in the given input
// asset: the summed remaining amount of all active orders. Anything the
// treasury holds above this is recoverable by the admin surface.
func (r *OrderRepository) SumRemainingByAsset(ctx context.Context, inputAsset string) (decimal.Decimal, error) {

	var sum decimal.NullDecimal

	err := r.db.WithContext(ctx).
		Model(&model.Order{}).
		Where("input_asset = ? AND status = ?", inputAsset, model.OrderStatusActive).
		Select("SUM(remaining_amount)").
		Scan(&sum).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo":        "OrderRepository",
			"op":          "SumRemainingByAsset",
			"input_asset": inputAsset,
		}).WithError(err).Error("Failed to sum remaining amounts")

		return decimal.Zero, err
	}

	if !sum.Valid {
		return decimal.Zero, nil
	}

	return sum.Decimal, nil
}
