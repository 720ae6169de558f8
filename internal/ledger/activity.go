package ledger

import (
	"context"
	"fmt"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

func checkFilter(filter models.ActivityFilter) error {
	switch filter.Kind {
	case "", models.FactExpense, models.FactSettlement:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidFilter, filter.Kind)
	}
	if filter.Category != "" && !filter.Category.Valid() {
		return fmt.Errorf("%w: unknown category %q", ErrInvalidFilter, filter.Category)
	}
	return nil
}

// ListActivity returns the feed of a group or pair, newest first.
func (s *Service) ListActivity(ctx context.Context, scope models.Scope, currency string, filter models.ActivityFilter) ([]models.Activity, error) {
	if !scope.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidScope, scope)
	}
	if err := checkFilter(filter); err != nil {
		return nil, err
	}
	currency, err := money.NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}

	log, err := s.store.ListFacts(ctx, scope, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", scope, err)
	}
	return models.Activities(log.Facts, filter), nil
}

// ListUserActivity returns every expense and settlement entry involving a
// user, newest first.
func (s *Service) ListUserActivity(ctx context.Context, userID, currency string, filter models.ActivityFilter) ([]models.Activity, error) {
	if err := validateUserID(userID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScope, err)
	}
	if err := checkFilter(filter); err != nil {
		return nil, err
	}
	currency, err := money.NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}

	facts, err := s.store.ListUserFacts(ctx, userID, currency)
	if err != nil {
		return nil, fmt.Errorf("failed to list facts of %s: %w", userID, err)
	}
	return models.Activities(facts, filter), nil
}
