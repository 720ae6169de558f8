package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/models"
)

// ApplyExpense validates and records a new expense. ID, Version and
// CreatedAt are assigned when missing. The stored expense is returned.
func (s *Service) ApplyExpense(ctx context.Context, expense *models.Expense) (*models.Expense, error) {
	e := expense.Clone()
	home, err := normalizeExpense(e)
	if err != nil {
		return nil, err
	}
	if e.ID == "" {
		e.ID = s.newID()
	}
	e.Version = 1
	if e.CreatedAt == 0 {
		e.CreatedAt = s.now().Unix()
	}

	_, err = s.commit(ctx, "apply_expense", func(ctx context.Context) (*mutation, error) {
		_, err := s.store.ListEntityFacts(ctx, e.ID)
		if err == nil {
			return nil, fmt.Errorf("%w: expense %s", ErrAlreadyExists, e.ID)
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return &mutation{
			home:     home,
			currency: e.Currency,
			facts:    []models.Fact{models.ExpenseFact(e)},
			event:    events.ExpenseApplied,
			entityID: e.ID,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

// AmendExpense replaces the current version of an expense. The old version is
// reversed and the new one appended in the same write. An amendment may change
// anything except the group or pair the expense belongs to.
func (s *Service) AmendExpense(ctx context.Context, expense *models.Expense) (*models.Expense, error) {
	if expense.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidExpense)
	}
	e := expense.Clone()
	home, err := normalizeExpense(e)
	if err != nil {
		return nil, err
	}

	var amended *models.Expense
	_, err = s.commit(ctx, "amend_expense", func(ctx context.Context) (*mutation, error) {
		current, err := s.expenseRecord(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		if current.Reversed {
			return nil, fmt.Errorf("%w: expense %s", ErrAlreadyReversed, e.ID)
		}
		oldHome, err := models.ExpenseFact(current.Expense).HomeScope()
		if err != nil {
			return nil, err
		}
		if oldHome != home {
			return nil, fmt.Errorf("%w: expense %s cannot move from %s to %s", ErrInvalidScope, e.ID, oldHome, home)
		}

		next := e.Clone()
		next.Version = current.Expense.Version + 1
		next.CreatedAt = current.Expense.CreatedAt
		amended = next

		return &mutation{
			home:     home,
			currency: next.Currency,
			facts: []models.Fact{
				models.ExpenseReversal(current.Expense),
				models.ExpenseFact(next),
			},
			event:    events.ExpenseAmended,
			entityID: e.ID,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return amended, nil
}

// ReverseExpense voids an expense by appending its reversal.
func (s *Service) ReverseExpense(ctx context.Context, expenseID string) error {
	_, err := s.commit(ctx, "reverse_expense", func(ctx context.Context) (*mutation, error) {
		current, err := s.expenseRecord(ctx, expenseID)
		if err != nil {
			return nil, err
		}
		if current.Reversed {
			return nil, fmt.Errorf("%w: expense %s", ErrAlreadyReversed, expenseID)
		}
		home, err := models.ExpenseFact(current.Expense).HomeScope()
		if err != nil {
			return nil, err
		}
		return &mutation{
			home:     home,
			currency: current.Expense.Currency,
			facts:    []models.Fact{models.ExpenseReversal(current.Expense)},
			event:    events.ExpenseReversed,
			entityID: expenseID,
		}, nil
	})
	return err
}

// GetExpense returns the current version of an expense and whether it has
// been reversed.
func (s *Service) GetExpense(ctx context.Context, expenseID string) (models.ExpenseRecord, error) {
	return s.expenseRecord(ctx, expenseID)
}

// expenseRecord replays the facts of one expense.
func (s *Service) expenseRecord(ctx context.Context, expenseID string) (models.ExpenseRecord, error) {
	if expenseID == "" {
		return models.ExpenseRecord{}, fmt.Errorf("%w: id is required", ErrInvalidExpense)
	}
	facts, err := s.store.ListEntityFacts(ctx, expenseID)
	if err != nil {
		return models.ExpenseRecord{}, fmt.Errorf("expense %s: %w", expenseID, err)
	}

	var rec models.ExpenseRecord
	for _, f := range facts {
		if f.Kind != models.FactExpense {
			return models.ExpenseRecord{}, fmt.Errorf("%w: expense %s", ErrNotFound, expenseID)
		}
		if f.Reversal {
			rec.Reversed = true
			continue
		}
		rec = models.ExpenseRecord{Expense: f.Expense}
	}
	if rec.Expense == nil {
		return models.ExpenseRecord{}, fmt.Errorf("%w: expense %s", ErrNotFound, expenseID)
	}
	return rec, nil
}
