package models

import (
	"sort"

	"github.com/mmynk/splitledger/internal/money"
)

// Position is one user's signed stake within a scope and currency.
// Positive means the user is owed money, negative means they owe money.
type Position struct {
	UserID string
	Amount money.Amount
}

// SortedPositions flattens a position map into a slice ordered by user ID.
func SortedPositions(positions map[string]money.Amount) []Position {
	out := make([]Position, 0, len(positions))
	for user, amount := range positions {
		out = append(out, Position{UserID: user, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Transfer is a suggested payment from a debtor to a creditor.
type Transfer struct {
	From   string
	To     string
	Amount money.Amount
}

// SettlementPlan is an ordered list of transfers that zeroes a set of net
// positions in one currency.
type SettlementPlan struct {
	Currency  string
	Transfers []Transfer
}

// Total returns the sum of all transfer amounts.
func (p SettlementPlan) Total() money.Amount {
	var total money.Amount
	for _, t := range p.Transfers {
		total += t.Amount
	}
	return total
}

// CounterpartyBalance is the pairwise balance between a user and one other user.
// Positive means the counterparty owes the user.
type CounterpartyBalance struct {
	UserID string
	Amount money.Amount
}

// UserSummary aggregates a user's pairwise balances in one currency.
type UserSummary struct {
	UserID         string
	Currency       string
	Counterparties []CounterpartyBalance

	// TotalOwed is what others owe the user.
	TotalOwed money.Amount

	// TotalOwing is what the user owes others, as a positive amount.
	TotalOwing money.Amount
}

// Net returns TotalOwed minus TotalOwing.
func (s UserSummary) Net() money.Amount {
	return s.TotalOwed - s.TotalOwing
}
