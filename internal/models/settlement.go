package models

import "github.com/mmynk/splitledger/internal/money"

// SettlementStatus tracks whether a payment has actually happened.
type SettlementStatus string

const (
	SettlementPending   SettlementStatus = "pending"
	SettlementCompleted SettlementStatus = "completed"
)

// Valid reports whether s is a known status.
func (s SettlementStatus) Valid() bool {
	return s == SettlementPending || s == SettlementCompleted
}

// PaymentMethod records how a settlement was paid. Informational only.
type PaymentMethod string

const (
	MethodCash   PaymentMethod = "cash"
	MethodOnline PaymentMethod = "online"
	MethodBank   PaymentMethod = "bank"
)

// Valid reports whether m is a known payment method.
func (m PaymentMethod) Valid() bool {
	return m == MethodCash || m == MethodOnline || m == MethodBank
}

// Settlement represents a payment between two users to clear debts.
// Only completed settlements affect balances.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	ID string

	// GroupID is the group this settlement belongs to. Empty for friend settlements.
	GroupID string

	// FromUserID is the user who paid (debtor settling up).
	FromUserID string

	// ToUserID is the user who received payment (creditor being paid).
	ToUserID string

	// Amount is the positive payment amount.
	Amount money.Amount

	Currency string
	Status   SettlementStatus
	Method   PaymentMethod

	// Note is an optional description for the settlement.
	Note string

	// CreatedAt is the Unix timestamp when the settlement was recorded.
	CreatedAt int64
}

// Clone returns a copy of the settlement.
func (s *Settlement) Clone() *Settlement {
	c := *s
	return &c
}

// Participants returns the two users of the settlement in sorted order.
func (s *Settlement) Participants() []string {
	if s.FromUserID < s.ToUserID {
		return []string{s.FromUserID, s.ToUserID}
	}
	return []string{s.ToUserID, s.FromUserID}
}
