package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"dcaengine/src/database"
	"dcaengine/src/model"
)

// VenueRepository manages the allow-list of exchange venues. Mutations go
// through the admin surface only.
type VenueRepository struct {
	db *gorm.DB
}

// NewVenueRepository creates a new repository instance using the main read/write database.
func NewVenueRepository() *VenueRepository {
	return &VenueRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *VenueRepository) WithDB(db *gorm.DB) *VenueRepository {
	return &VenueRepository{db: db}
}

// FindByName fetches a venue by its unique name.
// Returns (nil, nil) if the venue is not found.
func (r *VenueRepository) FindByName(ctx context.Context, name string) (*model.Venue, error) {

	var venue model.Venue

	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		First(&venue).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "VenueRepository",
			"op":   "FindByName",
			"name": name,
		}).WithError(err).Error("Failed to fetch venue by name")

		return nil, err
	}

	return &venue, nil
}

// Upsert adds a venue to the allow-list, or updates its account/endpoint
// and re-whitelists it when the name already exists.
func (r *VenueRepository) Upsert(ctx context.Context, venue *model.Venue) error {

	existing, err := r.FindByName(ctx, venue.Name)
	if err != nil {
		return err
	}

	if existing != nil {
		existing.Account = venue.Account
		existing.Endpoint = venue.Endpoint
		existing.Whitelisted = venue.Whitelisted
		*venue = *existing
		return r.db.WithContext(ctx).Save(existing).Error
	}

	err = r.db.WithContext(ctx).Create(venue).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "VenueRepository",
			"op":   "Upsert",
			"name": venue.Name,
		}).WithError(err).Error("Failed to create venue")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo": "VenueRepository",
		"op":   "Upsert",
		"name": venue.Name,
	}).Info("Venue whitelisted")

	return nil
}

// Remove deletes a venue from the allow-list.
func (r *VenueRepository) Remove(ctx context.Context, name string) error {

	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		Delete(&model.Venue{}).Error

	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "VenueRepository",
			"op":   "Remove",
			"name": name,
		}).WithError(err).Error("Failed to remove venue")

		return err
	}

	logger.WithFields(map[string]interface{}{
		"repo": "VenueRepository",
		"op":   "Remove",
		"name": name,
	}).Info("Venue removed from whitelist")

	return nil
}
