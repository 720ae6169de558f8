package models

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownFact is returned for a fact whose kind is not handled.
	ErrUnknownFact = errors.New("unknown fact kind")

	// ErrNoHomeScope is returned when a fact cannot be attributed to exactly
	// one group or pair scope.
	ErrNoHomeScope = errors.New("fact has no single home scope")
)

// FactKind discriminates the Fact variant.
type FactKind string

const (
	FactExpense    FactKind = "expense"
	FactSettlement FactKind = "settlement"
)

// Fact is one immutable entry of the ledger log. Exactly one of Expense and
// Settlement is set, matching Kind. A reversal fact voids the payload it
// carries and contributes its negation to every view.
type Fact struct {
	// ID is the log entry identifier (ULID, time ordered).
	ID string

	Kind     FactKind
	Reversal bool

	Expense    *Expense
	Settlement *Settlement

	// RecordedAt is the Unix timestamp when the fact was appended.
	RecordedAt int64
}

// ExpenseFact wraps an expense version.
func ExpenseFact(e *Expense) Fact {
	return Fact{Kind: FactExpense, Expense: e}
}

// ExpenseReversal voids an expense version.
func ExpenseReversal(e *Expense) Fact {
	return Fact{Kind: FactExpense, Reversal: true, Expense: e}
}

// SettlementFact wraps a settlement state.
func SettlementFact(s *Settlement) Fact {
	return Fact{Kind: FactSettlement, Settlement: s}
}

// SettlementReversal voids a completed settlement.
func SettlementReversal(s *Settlement) Fact {
	return Fact{Kind: FactSettlement, Reversal: true, Settlement: s}
}

// Validate checks that the payload matches the kind.
func (f Fact) Validate() error {
	switch f.Kind {
	case FactExpense:
		if f.Expense == nil || f.Settlement != nil {
			return fmt.Errorf("%w: expense fact without expense payload", ErrUnknownFact)
		}
	case FactSettlement:
		if f.Settlement == nil || f.Expense != nil {
			return fmt.Errorf("%w: settlement fact without settlement payload", ErrUnknownFact)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFact, f.Kind)
	}
	return nil
}

// EntityID returns the ID of the expense or settlement the fact is about.
func (f Fact) EntityID() string {
	switch f.Kind {
	case FactExpense:
		return f.Expense.ID
	case FactSettlement:
		return f.Settlement.ID
	}
	return ""
}

// Currency returns the currency of the payload.
func (f Fact) Currency() string {
	switch f.Kind {
	case FactExpense:
		return f.Expense.Currency
	case FactSettlement:
		return f.Settlement.Currency
	}
	return ""
}

// GroupID returns the group of the payload, or "".
func (f Fact) GroupID() string {
	switch f.Kind {
	case FactExpense:
		return f.Expense.GroupID
	case FactSettlement:
		return f.Settlement.GroupID
	}
	return ""
}

// Participants returns the sorted set of users the fact involves.
func (f Fact) Participants() []string {
	switch f.Kind {
	case FactExpense:
		return f.Expense.Participants()
	case FactSettlement:
		return f.Settlement.Participants()
	}
	return nil
}

// HomeScope returns the single scope the fact is attributed to.
func (f Fact) HomeScope() (Scope, error) {
	if err := f.Validate(); err != nil {
		return Scope{}, err
	}
	if g := f.GroupID(); g != "" {
		return GroupScope(g), nil
	}
	users := f.Participants()
	if len(users) != 2 {
		return Scope{}, fmt.Errorf("%w: %d participants outside a group", ErrNoHomeScope, len(users))
	}
	return PairScope(users[0], users[1]), nil
}

// Involves reports whether the fact contributes to the given scope. Group
// scopes see their own facts; pair scopes see every fact involving both users.
func (f Fact) Involves(s Scope) bool {
	switch s.Kind {
	case ScopeGroup:
		return f.GroupID() == s.GroupID
	case ScopePair:
		var a, b bool
		for _, u := range f.Participants() {
			a = a || u == s.UserA
			b = b || u == s.UserB
		}
		return a && b
	}
	return false
}

// AffectedScopes returns the home scope followed by every pair scope implied
// by the fact's participants, without duplicates.
func (f Fact) AffectedScopes() ([]Scope, error) {
	home, err := f.HomeScope()
	if err != nil {
		return nil, err
	}
	scopes := []Scope{home}
	for _, p := range PairScopes(f.Participants()) {
		if p != home {
			scopes = append(scopes, p)
		}
	}
	return scopes, nil
}

// Clone returns a copy of the fact with its payload deep-copied.
func (f Fact) Clone() Fact {
	if f.Expense != nil {
		f.Expense = f.Expense.Clone()
	}
	if f.Settlement != nil {
		f.Settlement = f.Settlement.Clone()
	}
	return f
}
