package enrollments

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	"github.com/angelmondragon/clubledger-backend/pkg/pagination"
)

// Repository persists enrollments.
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

func (r *Repository) Create(ctx context.Context, e *models.Enrollment) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Enrollment, error) {
	var e models.Enrollment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *Repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Enrollment, error) {
	var e models.Enrollment
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// LockPlan loads the referenced plan FOR UPDATE so a concurrent deactivation
// waits for this transaction.
func (r *Repository) LockPlan(ctx context.Context, planID uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", planID).
		First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

// NationalIDExists checks every enrollment regardless of state.
func (r *Repository) NationalIDExists(ctx context.Context, nationalID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Enrollment{}).Where("national_id = ?", nationalID).Count(&n).Error
	return n > 0, err
}

func (r *Repository) StudentCodeExists(ctx context.Context, code string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Enrollment{}).Where("student_code = ?", code).Count(&n).Error
	return n > 0, err
}

// UpdateFields writes fields only while the row is still in state from. It
// reports false when the row moved on.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, from enums.EnrollmentState, fields map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Enrollment{}).
		Where("id = ? AND state = ?", id, from).
		Updates(fields)
	return res.RowsAffected == 1, res.Error
}

func (r *Repository) List(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[models.Enrollment], error) {
	scope, err := pagination.Scope(params)
	if err != nil {
		return pagination.Page[models.Enrollment]{}, err
	}
	qb := r.db.WithContext(ctx).Model(&models.Enrollment{})
	if filter.State != nil {
		qb = qb.Where("state = ?", *filter.State)
	}
	if filter.PlanID != nil {
		qb = qb.Where("plan_id = ?", *filter.PlanID)
	}
	if filter.GuardianNationalID != "" {
		qb = qb.Where("guardian_national_id = ?", filter.GuardianNationalID)
	}
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		like := "%" + q + "%"
		qb = qb.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(student_code) LIKE ? OR LOWER(national_id) LIKE ?",
			like, like, like, like,
		)
	}

	var rows []models.Enrollment
	if err := qb.Scopes(scope).Find(&rows).Error; err != nil {
		return pagination.Page[models.Enrollment]{}, err
	}
	return pagination.Trim(rows, params, func(e models.Enrollment) pagination.Cursor {
		return pagination.Cursor{CreatedAt: e.CreatedAt, ID: e.ID}
	}), nil
}
