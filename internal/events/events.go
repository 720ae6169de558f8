// Package events announces ledger changes to downstream consumers such as
// notification or activity-feed services.
package events

import (
	"context"
	"time"
)

// Type names what happened to the ledger.
type Type string

const (
	ExpenseApplied          Type = "expense.applied"
	ExpenseAmended          Type = "expense.amended"
	ExpenseReversed         Type = "expense.reversed"
	SettlementApplied       Type = "settlement.applied"
	SettlementStatusChanged Type = "settlement.status_changed"
)

// ScopeChanged is published after a successful append. Delivery order is not
// guaranteed; consumers use the version to order events and to drop stale or
// duplicate deliveries.
type ScopeChanged struct {
	Type     Type   `json:"type"`
	Scope    string `json:"scope"`
	Version  int64  `json:"version"`
	Currency string `json:"currency"`
	EntityID string `json:"entity_id"`

	// AffectedScopes lists every scope key whose balances moved, home first.
	AffectedScopes []string `json:"affected_scopes"`

	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers events. Publishing happens after the append commits, so
// a failed publish never undoes a ledger write.
type Publisher interface {
	Publish(ctx context.Context, events ...ScopeChanged) error
	Close() error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, ...ScopeChanged) error { return nil }
func (Nop) Close() error                                   { return nil }
