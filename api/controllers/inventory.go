package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/clubledger-backend/api/responses"
	"github.com/angelmondragon/clubledger-backend/api/validators"
	"github.com/angelmondragon/clubledger-backend/internal/inventory"
	"github.com/angelmondragon/clubledger-backend/pkg/auth"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
	"github.com/angelmondragon/clubledger-backend/pkg/pagination"
)

// MovementApplier records manual stock movements.
type MovementApplier interface {
	ApplyMovement(ctx context.Context, actor auth.Actor, input inventory.MovementInput) (*inventory.MovementDTO, error)
}

type createProductRequest struct {
	Code         string  `json:"code" validate:"required,max=40"`
	Name         string  `json:"name" validate:"required,max=120"`
	Description  *string `json:"description,omitempty"`
	Category     string  `json:"category" validate:"required"`
	Size         *string `json:"size,omitempty"`
	Color        *string `json:"color,omitempty"`
	SalePrice    int64   `json:"sale_price" validate:"min=0"`
	MemberPrice  *int64  `json:"member_price,omitempty" validate:"omitempty,min=0"`
	CostPrice    *int64  `json:"cost_price,omitempty" validate:"omitempty,min=0"`
	InitialStock int     `json:"initial_stock" validate:"min=0"`
	MinStock     int     `json:"min_stock" validate:"min=0"`
	MaxStock     *int    `json:"max_stock,omitempty" validate:"omitempty,min=0"`
	Supplier     *string `json:"supplier,omitempty"`
}

func (p createProductRequest) toInput() (inventory.CreateProductInput, error) {
	category, err := enums.ParseProductCategory(strings.TrimSpace(p.Category))
	if err != nil {
		return inventory.CreateProductInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
	}
	return inventory.CreateProductInput{
		Code:         strings.TrimSpace(p.Code),
		Name:         strings.TrimSpace(p.Name),
		Description:  trimmed(p.Description),
		Category:     category,
		Size:         trimmed(p.Size),
		Color:        trimmed(p.Color),
		SalePrice:    p.SalePrice,
		MemberPrice:  p.MemberPrice,
		CostPrice:    p.CostPrice,
		InitialStock: p.InitialStock,
		MinStock:     p.MinStock,
		MaxStock:     p.MaxStock,
		Supplier:     trimmed(p.Supplier),
	}, nil
}

type updateProductRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,max=120"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
	Size        *string `json:"size,omitempty"`
	Color       *string `json:"color,omitempty"`
	SalePrice   *int64  `json:"sale_price,omitempty" validate:"omitempty,min=0"`
	MemberPrice *int64  `json:"member_price,omitempty" validate:"omitempty,min=0"`
	CostPrice   *int64  `json:"cost_price,omitempty" validate:"omitempty,min=0"`
	MinStock    *int    `json:"min_stock,omitempty" validate:"omitempty,min=0"`
	MaxStock    *int    `json:"max_stock,omitempty" validate:"omitempty,min=0"`
	Supplier    *string `json:"supplier,omitempty"`
	Active      *bool   `json:"active,omitempty"`
}

func (p updateProductRequest) toInput() (inventory.UpdateProductInput, error) {
	in := inventory.UpdateProductInput{
		Name:        trimmed(p.Name),
		Description: trimmed(p.Description),
		Size:        trimmed(p.Size),
		Color:       trimmed(p.Color),
		SalePrice:   p.SalePrice,
		MemberPrice: p.MemberPrice,
		CostPrice:   p.CostPrice,
		MinStock:    p.MinStock,
		MaxStock:    p.MaxStock,
		Supplier:    trimmed(p.Supplier),
		Active:      p.Active,
	}
	if p.Category != nil {
		c, err := enums.ParseProductCategory(strings.TrimSpace(*p.Category))
		if err != nil {
			return in, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
		}
		in.Category = &c
	}
	return in, nil
}

type movementRequest struct {
	Type     string `json:"type" validate:"required"`
	Quantity int    `json:"quantity" validate:"min=0"`
	Reason   string `json:"reason" validate:"required,max=500"`
}

func ProductList(svc inventory.Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "product")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		category, err := validators.ParseQueryEnum(r, "category", enums.ParseProductCategory)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := inventory.ProductFilter{
			Category:   category,
			ActiveOnly: !actor.Role.IsStaff() || !validators.ParseQueryBool(r, "include_inactive"),
			Query:      validators.SearchTerm(r),
		}
		page, err := svc.List(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pagination.Page[inventory.ProductDTO]{
			Items:      projectAll(actor.Role, page.Items, projectProduct),
			NextCursor: page.NextCursor,
		})
	}
}

func ProductCategories(svc inventory.Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "product")
			return
		}
		counts, err := svc.Categories(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, counts)
	}
}

func ProductLowStock(svc inventory.Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "product")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		items, err := svc.LowStock(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, projectAll(actor.Role, items, projectProduct))
	}
}

func ProductGet(svc inventory.Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "product")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if !product.Active && !actor.Role.IsStaff() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
			return
		}
		responses.WriteSuccess(w, projectProduct(actor.Role, *product))
	}
}

func ProductCreate(svc inventory.Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "product")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var payload createProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Create(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, product)
	}
}

func ProductUpdate(svc inventory.Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "product")
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload updateProductRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func ProductDeactivate(svc inventory.Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "product")
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, err := svc.Deactivate(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, product)
	}
}

func ProductMovements(svc inventory.Catalog, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "product")
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.Movements(r.Context(), id, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// ProductApplyMovement records a manual inbound, outbound or adjustment.
func ProductApplyMovement(ledger MovementApplier, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			serviceUnavailable(w, r, logg, "inventory")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload movementRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		kind, err := enums.ParseMovementType(strings.TrimSpace(payload.Type))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid movement type"))
			return
		}
		movement, err := ledger.ApplyMovement(r.Context(), actor, inventory.MovementInput{
			ProductID: id,
			Type:      kind,
			Quantity:  payload.Quantity,
			Reason:    strings.TrimSpace(payload.Reason),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, movement)
	}
}
