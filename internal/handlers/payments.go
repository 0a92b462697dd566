package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/cinevault/backend/internal/billing"
	"github.com/cinevault/backend/internal/logging"
	"github.com/cinevault/backend/internal/models"
)

// PaymentHandler serves the pro plan checkout and its admin review.
type PaymentHandler struct {
	Billing BillingService
	Users   UserStore
}

type submitPaymentRequest struct {
	Cards []models.Card `json:"cards"`
}

type providersResponse struct {
	Providers []models.ServiceProvider `json:"providers"`
	Price     float64                  `json:"price"`
}

// Providers handles GET /api/v1/payments/providers.
func (h PaymentHandler) Providers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	providers, err := h.Billing.Providers(ctx)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to list providers")
		return
	}

	respondJSON(ctx, w, http.StatusOK, providersResponse{Providers: providers, Price: h.Billing.Price()})
}

// Submit handles POST /api/v1/payments.
func (h PaymentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req submitPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.Users.FindByID(ctx, logging.UserIDFromContext(ctx))
	if err != nil {
		respondStoreError(ctx, w, err, "failed to load account")
		return
	}

	payment, err := h.Billing.Submit(ctx, user, req.Cards)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrAlreadyPro):
			respondError(ctx, w, http.StatusConflict, err.Error())
		case errors.Is(err, billing.ErrNoCards),
			errors.Is(err, billing.ErrIncomplete),
			errors.Is(err, billing.ErrProviderNotAllowed),
			errors.Is(err, billing.ErrInvalidAmount),
			errors.Is(err, billing.ErrDuplicateCard):
			respondError(ctx, w, http.StatusUnprocessableEntity, err.Error())
		default:
			respondStoreError(ctx, w, err, "failed to submit payment")
		}
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]models.Payment{"payment": redactCards(payment)})
}

// History handles GET /api/v1/payments.
func (h PaymentHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payments, err := h.Billing.History(ctx, logging.UserIDFromContext(ctx))
	if err != nil {
		respondStoreError(ctx, w, err, "failed to list payments")
		return
	}

	out := make([]models.Payment, len(payments))
	for i, p := range payments {
		out[i] = redactCards(p)
	}
	respondJSON(ctx, w, http.StatusOK, map[string][]models.Payment{"payments": out})
}

// Pending handles GET /api/v1/admin/payments. Admins see card pins so they
// can redeem them.
func (h PaymentHandler) Pending(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	payments, err := h.Billing.Pending(ctx)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to list pending payments")
		return
	}
	if payments == nil {
		payments = []models.Payment{}
	}

	respondJSON(ctx, w, http.StatusOK, map[string][]models.Payment{"payments": payments})
}

// Approve handles POST /api/v1/admin/payments/{id}/approve.
func (h PaymentHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Billing.Approve)
}

// Reject handles POST /api/v1/admin/payments/{id}/reject.
func (h PaymentHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.Billing.Reject)
}

func (h PaymentHandler) decide(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) (models.Payment, error)) {
	ctx := r.Context()

	id, ok := pathID(r, "id")
	if !ok {
		respondError(ctx, w, http.StatusNotFound, "payment not found")
		return
	}

	payment, err := fn(ctx, id)
	if err != nil {
		respondStoreError(ctx, w, err, "failed to update payment")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]models.Payment{"payment": payment})
}

// redactCards hides card pins from the submitting user once stored.
func redactCards(p models.Payment) models.Payment {
	cards := make([]models.Card, len(p.Cards))
	for i, c := range p.Cards {
		c.PIN = maskPIN(c.PIN)
		cards[i] = c
	}
	p.Cards = cards
	return p
}

func maskPIN(pin string) string {
	if len(pin) <= 4 {
		return "****"
	}
	return "****" + pin[len(pin)-4:]
}
