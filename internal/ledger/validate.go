package ledger

import (
	"fmt"
	"strings"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

func validateUserID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("user id cannot be empty")
	}
	// Scope keys are colon separated.
	if strings.Contains(id, ":") {
		return fmt.Errorf("user id %q cannot contain ':'", id)
	}
	return nil
}

func validateShares(field string, shares []models.Share) error {
	if len(shares) == 0 {
		return fmt.Errorf("%s must not be empty", field)
	}
	seen := make(map[string]bool, len(shares))
	for _, s := range shares {
		if err := validateUserID(s.UserID); err != nil {
			return fmt.Errorf("%s: %w", field, err)
		}
		if seen[s.UserID] {
			return fmt.Errorf("%s lists %s more than once", field, s.UserID)
		}
		seen[s.UserID] = true
		if s.Amount <= 0 {
			return fmt.Errorf("%s: share of %s must be positive", field, s.UserID)
		}
	}
	return nil
}

// normalizeExpense checks an expense and returns its home scope. Currency and
// category are normalized in place.
func normalizeExpense(e *models.Expense) (models.Scope, error) {
	currency, err := money.NormalizeCurrency(e.Currency)
	if err != nil {
		return models.Scope{}, fmt.Errorf("%w: %w", ErrInvalidExpense, err)
	}
	e.Currency = currency

	if e.Amount <= 0 {
		return models.Scope{}, fmt.Errorf("%w: %w: amount must be positive", ErrInvalidExpense, money.ErrInvalidAmount)
	}
	if e.Category == "" {
		e.Category = models.CategoryOther
	}
	if !e.Category.Valid() {
		return models.Scope{}, fmt.Errorf("%w: unknown category %q", ErrInvalidExpense, e.Category)
	}
	if err := validateShares("paid_by", e.PaidBy); err != nil {
		return models.Scope{}, fmt.Errorf("%w: %w", ErrInvalidExpense, err)
	}
	if err := validateShares("split_between", e.SplitBetween); err != nil {
		return models.Scope{}, fmt.Errorf("%w: %w", ErrInvalidExpense, err)
	}
	if err := calculator.CheckExpenseSums(e); err != nil {
		return models.Scope{}, err
	}

	home, err := models.ExpenseFact(e).HomeScope()
	if err != nil {
		return models.Scope{}, fmt.Errorf("%w: %w", ErrInvalidScope, err)
	}
	return home, nil
}

// normalizeSettlement checks a settlement and returns its home scope.
func normalizeSettlement(s *models.Settlement) (models.Scope, error) {
	currency, err := money.NormalizeCurrency(s.Currency)
	if err != nil {
		return models.Scope{}, fmt.Errorf("%w: %w", ErrInvalidSettlement, err)
	}
	s.Currency = currency

	if err := validateUserID(s.FromUserID); err != nil {
		return models.Scope{}, fmt.Errorf("%w: from: %w", ErrInvalidSettlement, err)
	}
	if err := validateUserID(s.ToUserID); err != nil {
		return models.Scope{}, fmt.Errorf("%w: to: %w", ErrInvalidSettlement, err)
	}
	if s.FromUserID == s.ToUserID {
		return models.Scope{}, fmt.Errorf("%w: cannot settle with yourself", ErrInvalidSettlement)
	}
	if s.Amount <= 0 {
		return models.Scope{}, fmt.Errorf("%w: %w: amount must be positive", ErrInvalidSettlement, money.ErrInvalidAmount)
	}
	if s.Status == "" {
		s.Status = models.SettlementPending
	}
	if !s.Status.Valid() {
		return models.Scope{}, fmt.Errorf("%w: unknown status %q", ErrInvalidSettlement, s.Status)
	}
	if s.Method == "" {
		s.Method = models.MethodCash
	}
	if !s.Method.Valid() {
		return models.Scope{}, fmt.Errorf("%w: unknown payment method %q", ErrInvalidSettlement, s.Method)
	}

	home, err := models.SettlementFact(s).HomeScope()
	if err != nil {
		return models.Scope{}, fmt.Errorf("%w: %w", ErrInvalidScope, err)
	}
	return home, nil
}
