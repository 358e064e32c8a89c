package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"dcaengine/src/database"
	"dcaengine/src/model"
)

// ParamsRepository manages the single engine params row.
type ParamsRepository struct {
	db *gorm.DB
}

// NewParamsRepository creates a new repository instance using the main read/write database.
func NewParamsRepository() *ParamsRepository {
	return &ParamsRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *ParamsRepository) WithDB(db *gorm.DB) *ParamsRepository {
	return &ParamsRepository{db: db}
}

// Current returns the engine params row.
// Returns (nil, nil) if the row has not been seeded yet.
func (r *ParamsRepository) Current(ctx context.Context) (*model.EngineParams, error) {

	var params model.EngineParams

	err := r.db.WithContext(ctx).Order("id ASC").First(&params).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "ParamsRepository",
			"op":   "Current",
		}).WithError(err).Error("Failed to fetch engine params")

		return nil, err
	}

	return &params, nil
}

// Seed inserts the initial params row if none exists yet.
func (r *ParamsRepository) Seed(ctx context.Context, params *model.EngineParams) error {

	existing, err := r.Current(ctx)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	if err := r.db.WithContext(ctx).Create(params).Error; err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "ParamsRepository",
			"op":   "Seed",
		}).WithError(err).Error("Failed to seed engine params")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":    "ParamsRepository",
		"op":      "Seed",
		"fee_bps": params.FeeBps,
	}).Info("Engine params seeded")

	return nil
}

// Update overwrites the tunable params fields.
func (r *ParamsRepository) Update(ctx context.Context, params *model.EngineParams) error {

	err := r.db.WithContext(ctx).Save(params).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "ParamsRepository",
			"op":   "Update",
		}).WithError(err).Error("Failed to update engine params")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo":    "ParamsRepository",
		"op":      "Update",
		"fee_bps": params.FeeBps,
	}).Info("Engine params updated")

	return nil
}
