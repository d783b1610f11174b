package plans

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
)

// Repository persists payment plans.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, plan *models.Plan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// FindForUpdate loads the plan locked for the rest of the transaction.
func (r *Repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// UpdateFields writes the given columns and returns gorm.ErrRecordNotFound when
// no row matched.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		_, err := r.FindByID(ctx, id)
		return err
	}
	res := r.db.WithContext(ctx).Model(&models.Plan{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountActiveEnrollments counts active enrollments pointing at the plan.
func (r *Repository) CountActiveEnrollments(ctx context.Context, planID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("plan_id = ? AND state = ?", planID, enums.EnrollmentStateActive).
		Count(&n).Error
	return n, err
}

// List returns plans ordered for display.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]models.Plan, error) {
	qb := r.db.WithContext(ctx).Model(&models.Plan{})
	if filter.ActiveOnly {
		qb = qb.Where("active = ?", true)
	}
	if filter.Category != nil {
		qb = qb.Where("category = ?", *filter.Category)
	}
	var rows []models.Plan
	err := qb.Order("sort_order ASC").Order("name ASC").Find(&rows).Error
	return rows, err
}
