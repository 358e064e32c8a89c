package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"dcaengine/src/database"
	"dcaengine/src/model"
)

// UserRepository handles lookups of API callers.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new repository instance using the main read/write database.
func NewUserRepository() *UserRepository {
	return &UserRepository{db: database.MainDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *UserRepository) WithDB(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByName fetches a user by its unique name.
// Returns (nil, nil) if the user is not found.
func (r *UserRepository) FindByName(ctx context.Context, name string) (*model.User, error) {

	var user model.User

	err := r.db.WithContext(ctx).
		Where("name = ?", name).
		First(&user).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}

		logger.WithFields(map[string]interface{}{
			"repo": "UserRepository",
			"op":   "FindByName",
			"name": name,
		}).WithError(err).Error("Failed to fetch user by name")

		return nil, err
	}

	return &user, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *model.User) error {

	err := r.db.WithContext(ctx).Create(user).Error
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"repo": "UserRepository",
			"op":   "Create",
			"name": user.Name,
		}).WithError(err).Error("Failed to create user")

		return err
	}

	return nil
}
