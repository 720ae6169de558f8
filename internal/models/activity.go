package models

// ActivityType says what a log entry meant to the people involved.
type ActivityType string

const (
	ActivityExpenseAdded        ActivityType = "expense_added"
	ActivityExpenseAmended      ActivityType = "expense_amended"
	ActivityExpenseReversed     ActivityType = "expense_reversed"
	ActivitySettlementRecorded  ActivityType = "settlement_recorded"
	ActivitySettlementCompleted ActivityType = "settlement_completed"
	ActivitySettlementReopened  ActivityType = "settlement_reopened"
)

// Activity is one feed entry. Like Fact, exactly one of Expense and
// Settlement is set, matching Kind.
type Activity struct {
	// ID is the ID of the fact the entry was derived from.
	ID   string
	Type ActivityType
	Kind FactKind

	Expense    *Expense
	Settlement *Settlement

	RecordedAt int64
}

// ActivityFilter narrows a feed. Zero values match everything; a Category
// only matches expenses.
type ActivityFilter struct {
	Kind     FactKind
	Category Category
}

func (f ActivityFilter) matches(a Activity) bool {
	if f.Kind != "" && a.Kind != f.Kind {
		return false
	}
	if f.Category != "" && (a.Kind != FactExpense || a.Expense.Category != f.Category) {
		return false
	}
	return true
}

// Activities turns facts in append order into a feed, newest first.
//
// The reversal that an amendment appends next to the new version is folded
// into a single expense_amended entry. A settlement's first fact records it;
// a later non-reversal fact completes it and a reversal reopens it.
func Activities(facts []Fact, filter ActivityFilter) []Activity {
	type version struct {
		id string
		v  int
	}
	replaced := make(map[version]bool)
	for _, f := range facts {
		if f.Kind == FactExpense && !f.Reversal && f.Expense.Version > 1 {
			replaced[version{f.Expense.ID, f.Expense.Version - 1}] = true
		}
	}

	seen := make(map[string]bool)
	out := make([]Activity, 0, len(facts))
	for _, f := range facts {
		a := Activity{
			ID:         f.ID,
			Kind:       f.Kind,
			Expense:    f.Expense,
			Settlement: f.Settlement,
			RecordedAt: f.RecordedAt,
		}

		switch f.Kind {
		case FactExpense:
			switch {
			case f.Reversal && replaced[version{f.Expense.ID, f.Expense.Version}]:
				continue
			case f.Reversal:
				a.Type = ActivityExpenseReversed
			case f.Expense.Version > 1:
				a.Type = ActivityExpenseAmended
			default:
				a.Type = ActivityExpenseAdded
			}
		case FactSettlement:
			switch {
			case f.Reversal:
				a.Type = ActivitySettlementReopened
			case seen[f.Settlement.ID]:
				a.Type = ActivitySettlementCompleted
			default:
				a.Type = ActivitySettlementRecorded
			}
			seen[f.Settlement.ID] = true
		default:
			continue
		}

		if filter.matches(a) {
			out = append(out, a)
		}
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}
