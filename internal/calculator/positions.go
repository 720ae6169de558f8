package calculator

import (
	"errors"
	"fmt"
	"sort"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

var (
	// ErrSplitSumMismatch means paidBy or splitBetween does not sum to the expense amount.
	ErrSplitSumMismatch = errors.New("split amounts do not sum to expense amount")

	// ErrScopeCurrencyMismatch means a fact belongs to another scope or currency.
	ErrScopeCurrencyMismatch = errors.New("fact does not match requested scope and currency")

	// ErrUnbalancedInput means a set of net positions does not sum to zero.
	ErrUnbalancedInput = errors.New("net positions do not sum to zero")
)

// CheckExpenseSums verifies that both share lists add up to the expense amount.
func CheckExpenseSums(e *models.Expense) error {
	paid, err := models.SumShares(e.PaidBy)
	if err != nil {
		return fmt.Errorf("%w: expense %s paid_by: %w", ErrSplitSumMismatch, e.ID, err)
	}
	if paid != e.Amount {
		return fmt.Errorf("%w: expense %s paid %d of %d", ErrSplitSumMismatch, e.ID, paid, e.Amount)
	}
	owed, err := models.SumShares(e.SplitBetween)
	if err != nil {
		return fmt.Errorf("%w: expense %s split_between: %w", ErrSplitSumMismatch, e.ID, err)
	}
	if owed != e.Amount {
		return fmt.Errorf("%w: expense %s split %d of %d", ErrSplitSumMismatch, e.ID, owed, e.Amount)
	}
	return nil
}

// checkAmounts rejects non-positive amounts so that negating them is safe.
func checkAmounts(f models.Fact) error {
	switch f.Kind {
	case models.FactExpense:
		if f.Expense.Amount <= 0 {
			return fmt.Errorf("%w: expense %s amount %d", money.ErrInvalidAmount, f.Expense.ID, f.Expense.Amount)
		}
		for _, shares := range [][]models.Share{f.Expense.PaidBy, f.Expense.SplitBetween} {
			for _, s := range shares {
				if s.Amount <= 0 {
					return fmt.Errorf("%w: expense %s share of %s is %d", money.ErrInvalidAmount, f.Expense.ID, s.UserID, s.Amount)
				}
			}
		}
	case models.FactSettlement:
		if f.Settlement.Amount <= 0 {
			return fmt.Errorf("%w: settlement %s amount %d", money.ErrInvalidAmount, f.Settlement.ID, f.Settlement.Amount)
		}
	}
	return nil
}

// checkFacts rejects any fact outside the scope or currency before any
// arithmetic happens.
func checkFacts(scope *models.Scope, currency string, facts []models.Fact) error {
	for _, f := range facts {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("fact %s: %w", f.ID, err)
		}
		if err := checkAmounts(f); err != nil {
			return fmt.Errorf("fact %s: %w", f.ID, err)
		}
		if f.Currency() != currency {
			return fmt.Errorf("%w: fact %s is in %s, want %s", ErrScopeCurrencyMismatch, f.ID, f.Currency(), currency)
		}
		if scope != nil && !f.Involves(*scope) {
			return fmt.Errorf("%w: fact %s is outside %s", ErrScopeCurrencyMismatch, f.ID, scope)
		}
	}
	return nil
}

// ComputeNetPositions folds a scope's facts into a signed position per user.
// Positive = owed money, negative = owes money. Users that net to zero are
// omitted.
//
// Algorithm:
//   - Expense: each payer gets +paid, each participant gets -share
//   - Completed settlement: payer gets -amount, receiver gets +amount
//   - Reversal facts contribute the negation; pending settlements nothing
//
// The result always sums to exactly zero; anything else is reported as
// ErrUnbalancedInput instead of being absorbed.
func ComputeNetPositions(scope models.Scope, currency string, facts []models.Fact) (map[string]money.Amount, error) {
	if err := checkFacts(&scope, currency, facts); err != nil {
		return nil, err
	}

	positions := make(map[string]money.Amount)
	for _, f := range facts {
		sign := money.Amount(1)
		if f.Reversal {
			sign = -1
		}

		switch f.Kind {
		case models.FactExpense:
			if err := CheckExpenseSums(f.Expense); err != nil {
				return nil, err
			}
			for _, p := range f.Expense.PaidBy {
				if err := shift(positions, p.UserID, sign*p.Amount); err != nil {
					return nil, err
				}
			}
			for _, s := range f.Expense.SplitBetween {
				if err := shift(positions, s.UserID, -sign*s.Amount); err != nil {
					return nil, err
				}
			}
		case models.FactSettlement:
			s := f.Settlement
			if s.Status != models.SettlementCompleted {
				continue
			}
			if err := shift(positions, s.FromUserID, -sign*s.Amount); err != nil {
				return nil, err
			}
			if err := shift(positions, s.ToUserID, sign*s.Amount); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("%w: %q", models.ErrUnknownFact, f.Kind)
		}
	}

	for user, amount := range positions {
		if amount == 0 {
			delete(positions, user)
		}
	}
	if err := checkZeroSum(positions); err != nil {
		return nil, fmt.Errorf("%s %s: %w", scope, currency, err)
	}

	return positions, nil
}

// shift moves one user's position by delta.
func shift(positions map[string]money.Amount, user string, delta money.Amount) error {
	next, err := money.Add(positions[user], delta)
	if err != nil {
		return fmt.Errorf("position of %s: %w", user, err)
	}
	positions[user] = next
	return nil
}

// checkZeroSum verifies that positions add up to zero. Totals that do not
// fit in an Amount fail with money.ErrOverflow instead of wrapping.
func checkZeroSum(positions map[string]money.Amount) error {
	users := make([]string, 0, len(positions))
	for user := range positions {
		users = append(users, user)
	}
	sort.Strings(users)

	var credit, debit money.Amount
	for _, user := range users {
		var err error
		switch amount := positions[user]; {
		case amount > 0:
			credit, err = money.Add(credit, amount)
		case amount < 0:
			debit, err = money.Add(debit, -amount)
		}
		if err != nil {
			return fmt.Errorf("positions total: %w", err)
		}
	}
	if credit != debit {
		return fmt.Errorf("%w: off by %d", ErrUnbalancedInput, credit-debit)
	}
	return nil
}
