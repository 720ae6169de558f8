package models

import (
	"fmt"
	"sort"

	"github.com/mmynk/splitledger/internal/money"
)

// Share is one user's part of an expense, either paid or owed.
type Share struct {
	UserID string
	Amount money.Amount
}

// Category classifies an expense for display. It has no effect on balances.
type Category string

const (
	CategoryFood           Category = "food"
	CategoryTransportation Category = "transportation"
	CategoryHousing        Category = "housing"
	CategoryUtilities      Category = "utilities"
	CategoryEntertainment  Category = "entertainment"
	CategoryShopping       Category = "shopping"
	CategoryHealth         Category = "health"
	CategoryTravel         Category = "travel"
	CategoryEducation      Category = "education"
	CategoryOther          Category = "other"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryFood, CategoryTransportation, CategoryHousing, CategoryUtilities,
		CategoryEntertainment, CategoryShopping, CategoryHealth, CategoryTravel,
		CategoryEducation, CategoryOther:
		return true
	}
	return false
}

// Expense is a shared cost paid by one or more users and split between one or
// more users.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// Version starts at 1 and increases with every amendment.
	Version int

	// GroupID is the group the expense belongs to. Empty for friend expenses.
	GroupID string

	Title    string
	Category Category
	Notes    string

	// Amount is the positive total of the expense.
	Amount money.Amount

	// Currency is the normalized ISO currency code.
	Currency string

	// PaidBy lists who paid and how much, in the order entered.
	// Amounts sum to Amount.
	PaidBy []Share

	// SplitBetween lists who owes what. Amounts sum to Amount.
	SplitBetween []Share

	// CreatedAt is the Unix timestamp when the expense was first recorded.
	CreatedAt int64
}

// Participants returns the sorted set of users that paid for or share the expense.
func (e *Expense) Participants() []string {
	seen := make(map[string]bool, len(e.PaidBy)+len(e.SplitBetween))
	var users []string
	for _, list := range [][]Share{e.PaidBy, e.SplitBetween} {
		for _, s := range list {
			if !seen[s.UserID] {
				seen[s.UserID] = true
				users = append(users, s.UserID)
			}
		}
	}
	sort.Strings(users)
	return users
}

// Clone returns a deep copy of the expense.
func (e *Expense) Clone() *Expense {
	c := *e
	c.PaidBy = append([]Share(nil), e.PaidBy...)
	c.SplitBetween = append([]Share(nil), e.SplitBetween...)
	return &c
}

// SumShares adds the amounts of a share list. It fails with
// money.ErrOverflow rather than wrapping around.
func SumShares(shares []Share) (money.Amount, error) {
	var total money.Amount
	for _, s := range shares {
		var err error
		if total, err = money.Add(total, s.Amount); err != nil {
			return 0, fmt.Errorf("share of %s: %w", s.UserID, err)
		}
	}
	return total, nil
}

// ExpenseRecord is the current state of an expense reconstructed from its facts.
type ExpenseRecord struct {
	Expense  *Expense
	Reversed bool
}
