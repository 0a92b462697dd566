// Package billing validates recharge card payments for the pro plan and
// records the admin decisions on them.
package billing

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/cinevault/backend/internal/models"
)

var (
	// ErrNoCards indicates an empty submission.
	ErrNoCards = errors.New("at least one card is required")
	// ErrIncomplete indicates a card is missing its provider, amount or pin,
	// or that the cards do not add up to the pro price.
	ErrIncomplete = errors.New("payment is incomplete")
	// ErrProviderNotAllowed indicates an unknown or denied provider.
	ErrProviderNotAllowed = errors.New("service provider is not accepted")
	// ErrInvalidAmount indicates an amount the provider does not offer.
	ErrInvalidAmount = errors.New("amount is not offered by the provider")
	// ErrDuplicateCard indicates the same card was submitted twice.
	ErrDuplicateCard = errors.New("card submitted more than once")
	// ErrAlreadyPro indicates the user already has pro access.
	ErrAlreadyPro = errors.New("user already has pro access")
)

// CardError ties a validation failure to the offending card.
type CardError struct {
	Index int
	Err   error
}

func (e *CardError) Error() string {
	return fmt.Sprintf("card %d: %v", e.Index+1, e.Err)
}

func (e *CardError) Unwrap() error { return e.Err }

// Checkout validates the submitted cards against the allowed providers and
// returns the normalised cards with their total.
func Checkout(cards []models.Card, providers []models.ServiceProvider, price float64) ([]models.Card, float64, error) {
	if len(cards) == 0 {
		return nil, 0, ErrNoCards
	}

	byName := make(map[string]models.ServiceProvider, len(providers))
	for _, p := range providers {
		byName[strings.ToLower(p.Name)] = p
	}

	seen := make(map[string]bool, len(cards))
	out := make([]models.Card, 0, len(cards))
	var total float64

	for i, card := range cards {
		card.Provider = strings.TrimSpace(card.Provider)
		card.PIN = strings.TrimSpace(card.PIN)
		if card.Provider == "" || card.PIN == "" || card.Amount <= 0 {
			return nil, 0, &CardError{Index: i, Err: ErrIncomplete}
		}

		provider, ok := byName[strings.ToLower(card.Provider)]
		if !ok || !provider.Allowed() {
			return nil, 0, &CardError{Index: i, Err: ErrProviderNotAllowed}
		}
		if !offers(provider, card.Amount) {
			return nil, 0, &CardError{Index: i, Err: ErrInvalidAmount}
		}

		key := strings.ToLower(provider.Name) + "/" + card.PIN
		if seen[key] {
			return nil, 0, &CardError{Index: i, Err: ErrDuplicateCard}
		}
		seen[key] = true

		card.Provider = provider.Name
		total += card.Amount
		out = append(out, card)
	}

	if total < price {
		return nil, total, fmt.Errorf("%w: total %.2f is below %.2f", ErrIncomplete, total, price)
	}
	return out, total, nil
}

func offers(p models.ServiceProvider, amount float64) bool {
	for _, a := range p.Amounts {
		if math.Abs(a-amount) < 0.005 {
			return true
		}
	}
	return false
}
