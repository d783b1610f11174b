package users

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
)

// Repository exposes user directory persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new directory entry and returns the persisted model.
func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	user := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// FindByNationalID retrieves the active entry matching the national id.
func (r *Repository) FindByNationalID(ctx context.Context, nationalID string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).
		Where("national_id = ? AND active = ?", NormalizeNationalID(nationalID), true).
		First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// Deactivate hides an entry from lookups without deleting it.
func (r *Repository) Deactivate(ctx context.Context, nationalID string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("national_id = ?", NormalizeNationalID(nationalID)).
		UpdateColumn("active", false).Error
}
