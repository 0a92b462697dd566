package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/cinevault/backend/internal/logging"
	"github.com/cinevault/backend/internal/models"
)

// Store persists payments and providers.
type Store interface {
	ListProviders(ctx context.Context) ([]models.ServiceProvider, error)
	Create(ctx context.Context, payment models.Payment) error
	ListPending(ctx context.Context) ([]models.Payment, error)
	ListForUser(ctx context.Context, userID string) ([]models.Payment, error)
	Decide(ctx context.Context, paymentID string, approve bool, at time.Time) (models.Payment, error)
}

// Service implements the pro plan checkout.
type Service struct {
	store Store
	price float64
	now   func() time.Time
}

// NewService constructs a Service charging price for the pro plan.
func NewService(store Store, price float64) *Service {
	return &Service{store: store, price: price, now: func() time.Time { return time.Now().UTC() }}
}

// Price returns the pro plan price.
func (s *Service) Price() float64 { return s.price }

// Providers returns the providers whose cards are accepted.
func (s *Service) Providers(ctx context.Context) ([]models.ServiceProvider, error) {
	all, err := s.store.ListProviders(ctx)
	if err != nil {
		return nil, err
	}
	allowed := make([]models.ServiceProvider, 0, len(all))
	for _, p := range all {
		if p.Allowed() {
			allowed = append(allowed, p)
		}
	}
	return allowed, nil
}

// Submit validates the cards and records a pending payment for user.
func (s *Service) Submit(ctx context.Context, user models.User, cards []models.Card) (models.Payment, error) {
	if user.CanAccess(models.AccessPro) {
		return models.Payment{}, ErrAlreadyPro
	}

	providers, err := s.store.ListProviders(ctx)
	if err != nil {
		return models.Payment{}, err
	}

	valid, total, err := Checkout(cards, providers, s.price)
	if err != nil {
		return models.Payment{}, err
	}

	now := s.now()
	payment := models.Payment{
		ID:          uuid.NewString(),
		UserID:      user.ID,
		UserName:    user.DisplayName,
		TotalAmount: total,
		Status:      models.PaymentPending,
		Cards:       valid,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.store.Create(ctx, payment); err != nil {
		return models.Payment{}, err
	}

	logging.FromContext(ctx).Info("payment submitted", "payment_id", payment.ID, "total", total, "cards", len(valid))
	return payment, nil
}

// History returns the user's payments, newest first.
func (s *Service) History(ctx context.Context, userID string) ([]models.Payment, error) {
	return s.store.ListForUser(ctx, userID)
}

// Pending returns payments awaiting review.
func (s *Service) Pending(ctx context.Context) ([]models.Payment, error) {
	return s.store.ListPending(ctx)
}

// Approve completes the payment and grants pro access.
func (s *Service) Approve(ctx context.Context, paymentID string) (models.Payment, error) {
	return s.decide(ctx, paymentID, true)
}

// Reject fails the payment.
func (s *Service) Reject(ctx context.Context, paymentID string) (models.Payment, error) {
	return s.decide(ctx, paymentID, false)
}

func (s *Service) decide(ctx context.Context, paymentID string, approve bool) (models.Payment, error) {
	payment, err := s.store.Decide(ctx, paymentID, approve, s.now())
	if err != nil {
		return models.Payment{}, err
	}
	logging.FromContext(ctx).Info("payment decided", "payment_id", paymentID, "user_id", payment.UserID, "status", payment.Status)
	return payment, nil
}
