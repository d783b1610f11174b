package controllers

import (
	"net/http"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/clubledger-backend/api/responses"
	"github.com/angelmondragon/clubledger-backend/api/validators"
	"github.com/angelmondragon/clubledger-backend/internal/sales"
	"github.com/angelmondragon/clubledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clubledger-backend/pkg/errors"
	"github.com/angelmondragon/clubledger-backend/pkg/logger"
	"github.com/angelmondragon/clubledger-backend/pkg/pagination"
	"github.com/angelmondragon/clubledger-backend/pkg/visibility"
)

type quoteRequest struct {
	Items         []sales.LineInput `json:"items" validate:"required,min=1,dive"`
	MemberPricing bool              `json:"member_pricing"`
	DiscountPct   *decimal.Decimal  `json:"discount_pct,omitempty"`
}

type createSaleRequest struct {
	BuyerID       string            `json:"buyer_id" validate:"required"`
	BuyerName     *string           `json:"buyer_name,omitempty"`
	PaymentMethod string            `json:"payment_method" validate:"required"`
	MemberPricing bool              `json:"member_pricing"`
	DiscountPct   *decimal.Decimal  `json:"discount_pct,omitempty"`
	Notes         *string           `json:"notes,omitempty"`
	Items         []sales.LineInput `json:"items" validate:"required,min=1,dive"`
}

func (p createSaleRequest) toInput() (sales.CreateSaleInput, error) {
	method, err := enums.ParseSalePaymentMethod(strings.TrimSpace(p.PaymentMethod))
	if err != nil {
		return sales.CreateSaleInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method")
	}
	return sales.CreateSaleInput{
		BuyerID:       strings.TrimSpace(p.BuyerID),
		BuyerName:     trimmed(p.BuyerName),
		PaymentMethod: method,
		MemberPricing: p.MemberPricing,
		DiscountPct:   decimalOrZero(p.DiscountPct),
		Notes:         trimmed(p.Notes),
		Items:         p.Items,
	}, nil
}

type cancelSaleRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// SaleQuote prices a basket without persisting anything.
func SaleQuote(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "sale")
			return
		}
		var payload quoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		quote, err := svc.Quote(r.Context(), sales.QuoteInput{
			Items:         payload.Items,
			MemberPricing: payload.MemberPricing,
			DiscountPct:   decimalOrZero(payload.DiscountPct),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

func SaleCreate(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "sale")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var payload createSaleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sale, err := svc.CreateSale(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, projectSale(actor.Role, *sale))
	}
}

func SaleCancel(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "sale")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload cancelSaleRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sale, err := svc.CancelSale(r.Context(), actor, id, payload.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, projectSale(actor.Role, *sale))
	}
}

func SaleGet(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "sale")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "saleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sale, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := visibility.EnsureOwner(actor, sale.BuyerID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, projectSale(actor.Role, *sale))
	}
}

// SaleList lists sales; non-staff callers only see their own purchases.
func SaleList(svc sales.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "sale")
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
		var filter sales.ListFilter
		if filter.State, err = validators.ParseQueryEnum(r, "state", enums.ParseSaleState); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.PaymentMethod, err = validators.ParseQueryEnum(r, "payment_method", enums.ParseSalePaymentMethod); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.From, err = validators.ParseQueryDate(r, "from"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.To, err = validators.ParseQueryDate(r, "to"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if actor.Role.IsStaff() {
			filter.BuyerID = strings.TrimSpace(r.URL.Query().Get("buyer_id"))
		} else {
			filter.BuyerID = actor.ID
		}
		page, err := svc.List(r.Context(), filter, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, pagination.Page[sales.SaleDTO]{
			Items:      projectAll(actor.Role, page.Items, projectSale),
			NextCursor: page.NextCursor,
		})
	}
}
