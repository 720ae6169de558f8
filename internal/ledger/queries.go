package ledger

import (
	"context"
	"fmt"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

type readOptions struct {
	strong bool
}

// ReadOption tunes a query.
type ReadOption func(*readOptions)

// Strong makes a read wait for writes in flight on the scope, so it observes
// every write that finished before it started.
func Strong() ReadOption {
	return func(o *readOptions) { o.strong = true }
}

func (s *Service) read(ctx context.Context, scope models.Scope, currency string, opts []ReadOption) (map[string]money.Amount, error) {
	var o readOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.strong {
		unlock := s.locks.RLock(scope)
		defer unlock()
	}
	return s.view(ctx, scope, currency)
}

// GetBalance returns the pairwise balance between two users. Positive means
// userB owes userA.
func (s *Service) GetBalance(ctx context.Context, userA, userB, currency string, opts ...ReadOption) (money.Amount, error) {
	if err := validateUserID(userA); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidScope, err)
	}
	if err := validateUserID(userB); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidScope, err)
	}
	if userA == userB {
		return 0, fmt.Errorf("%w: %w", ErrInvalidScope, calculator.ErrSameUser)
	}
	currency, err := money.NormalizeCurrency(currency)
	if err != nil {
		return 0, err
	}

	positions, err := s.read(ctx, models.PairScope(userA, userB), currency, opts)
	if err != nil {
		return 0, err
	}
	return positions[userA], nil
}

// GetGroupPositions returns every non-zero net position in a group. A group
// without facts has no positions.
func (s *Service) GetGroupPositions(ctx context.Context, groupID, currency string, opts ...ReadOption) (map[string]money.Amount, error) {
	if groupID == "" {
		return nil, fmt.Errorf("%w: group id is required", ErrInvalidScope)
	}
	currency, err := money.NormalizeCurrency(currency)
	if err != nil {
		return nil, err
	}
	return s.read(ctx, models.GroupScope(groupID), currency, opts)
}

// GetSimplifiedPlan returns transfers that would settle a group.
func (s *Service) GetSimplifiedPlan(ctx context.Context, groupID, currency string, opts ...ReadOption) (models.SettlementPlan, error) {
	positions, err := s.GetGroupPositions(ctx, groupID, currency, opts...)
	if err != nil {
		return models.SettlementPlan{}, err
	}
	currency, _ = money.NormalizeCurrency(currency)
	return calculator.Simplify(currency, positions)
}

// GetUserSummary returns a user's pairwise balance with everyone they share
// an expense or settlement with, plus the totals owed in each direction.
func (s *Service) GetUserSummary(ctx context.Context, userID, currency string, opts ...ReadOption) (models.UserSummary, error) {
	if err := validateUserID(userID); err != nil {
		return models.UserSummary{}, fmt.Errorf("%w: %w", ErrInvalidScope, err)
	}
	currency, err := money.NormalizeCurrency(currency)
	if err != nil {
		return models.UserSummary{}, err
	}

	others, err := s.store.ListCounterparties(ctx, userID, currency)
	if err != nil {
		return models.UserSummary{}, fmt.Errorf("failed to list counterparties of %s: %w", userID, err)
	}

	summary := models.UserSummary{UserID: userID, Currency: currency}
	for _, other := range others {
		balance, err := s.GetBalance(ctx, userID, other, currency, opts...)
		if err != nil {
			return models.UserSummary{}, err
		}
		if balance == 0 {
			continue
		}
		summary.Counterparties = append(summary.Counterparties, models.CounterpartyBalance{UserID: other, Amount: balance})
		if balance > 0 {
			summary.TotalOwed, err = money.Add(summary.TotalOwed, balance)
		} else {
			summary.TotalOwing, err = money.Add(summary.TotalOwing, -balance)
		}
		if err != nil {
			return models.UserSummary{}, fmt.Errorf("summary of %s: %w", userID, err)
		}
	}
	return summary, nil
}
