package payments

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/clubledger-backend/pkg/db/models"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	"github.com/angelmondragon/clubledger-backend/pkg/pagination"
)

// Repository persists payment proofs.
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

func (r *Repository) Create(ctx context.Context, proof *models.PaymentProof) error {
	return r.db.WithContext(ctx).Create(proof).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PaymentProof, error) {
	var proof models.PaymentProof
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&proof).Error; err != nil {
		return nil, err
	}
	return &proof, nil
}

func (r *Repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.PaymentProof, error) {
	var proof models.PaymentProof
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&proof).Error; err != nil {
		return nil, err
	}
	return &proof, nil
}

// TransactionNumberTaken reports whether another proof already uses number.
func (r *Repository) TransactionNumberTaken(ctx context.Context, number string, except *uuid.UUID) (bool, error) {
	qb := r.db.WithContext(ctx).Model(&models.PaymentProof{}).Where("transaction_number = ?", number)
	if except != nil {
		qb = qb.Where("id <> ?", *except)
	}
	var n int64
	err := qb.Count(&n).Error
	return n > 0, err
}

// UpdateFields writes fields while the proof is still in state from.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, from enums.ProofState, fields map[string]any) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PaymentProof{}).
		Where("id = ? AND state = ?", id, from).
		Updates(fields)
	return res.RowsAffected == 1, res.Error
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.PaymentProof{})
	return res.RowsAffected == 1, res.Error
}

func (r *Repository) filtered(ctx context.Context, filter ListFilter) *gorm.DB {
	qb := r.db.WithContext(ctx).Model(&models.PaymentProof{})
	if filter.EnrollmentID != nil {
		qb = qb.Where("enrollment_id = ?", *filter.EnrollmentID)
	}
	if filter.State != nil {
		qb = qb.Where("state = ?", *filter.State)
	}
	if filter.SubmittedBy != "" {
		qb = qb.Where("submitted_by = ?", filter.SubmittedBy)
	}
	if filter.From != nil {
		qb = qb.Where("payment_date >= ?", *filter.From)
	}
	if filter.To != nil {
		qb = qb.Where("payment_date <= ?", *filter.To)
	}
	return qb
}

func (r *Repository) List(ctx context.Context, filter ListFilter, params pagination.Params) (pagination.Page[models.PaymentProof], error) {
	scope, err := pagination.Scope(params)
	if err != nil {
		return pagination.Page[models.PaymentProof]{}, err
	}
	var rows []models.PaymentProof
	if err := r.filtered(ctx, filter).Scopes(scope).Find(&rows).Error; err != nil {
		return pagination.Page[models.PaymentProof]{}, err
	}
	return pagination.Trim(rows, params, func(p models.PaymentProof) pagination.Cursor {
		return pagination.Cursor{CreatedAt: p.CreatedAt, ID: p.ID}
	}), nil
}

// StateTotal aggregates proofs per state.
type StateTotal struct {
	State  enums.ProofState `json:"state"`
	Count  int64            `json:"count"`
	Amount int64            `json:"amount"`
}

// MethodTotal aggregates validated proofs per payment method.
type MethodTotal struct {
	Method enums.PaymentMethod `json:"method"`
	Count  int64               `json:"count"`
	Amount int64               `json:"amount"`
}

func (r *Repository) TotalsByState(ctx context.Context, filter ListFilter) ([]StateTotal, error) {
	var rows []StateTotal
	err := r.filtered(ctx, filter).
		Select("state, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Group("state").
		Order("state").
		Scan(&rows).Error
	return rows, err
}

func (r *Repository) ValidatedByMethod(ctx context.Context, filter ListFilter) ([]MethodTotal, error) {
	var rows []MethodTotal
	err := r.filtered(ctx, filter).
		Where("state = ?", enums.ProofStateValidated).
		Select("method, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Group("method").
		Order("method").
		Scan(&rows).Error
	return rows, err
}
