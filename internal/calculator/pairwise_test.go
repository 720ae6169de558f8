package calculator

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

func TestComputePairwiseBalance(t *testing.T) {
	tests := []struct {
		name  string
		facts []models.Fact
		want  money.Amount
	}{
		{
			name: "even split less completed settlement",
			facts: []models.Fact{
				models.ExpenseFact(expense("e1", "", 10000,
					map[string]money.Amount{"A": 10000},
					map[string]money.Amount{"A": 5000, "B": 5000})),
				models.SettlementFact(settlement("s1", "", "B", "A", 2000, models.SettlementCompleted)),
			},
			want: 3000,
		},
		{
			name: "pending settlement does not count",
			facts: []models.Fact{
				models.ExpenseFact(expense("e1", "", 10000,
					map[string]money.Amount{"A": 10000},
					map[string]money.Amount{"A": 5000, "B": 5000})),
				models.SettlementFact(settlement("s1", "", "B", "A", 2000, models.SettlementPending)),
			},
			want: 5000,
		},
		{
			name: "B paid so A owes B",
			facts: []models.Fact{
				models.ExpenseFact(expense("e1", "", 3000,
					map[string]money.Amount{"B": 3000},
					map[string]money.Amount{"A": 1000, "B": 2000})),
			},
			want: -1000,
		},
		{
			name: "group expense counts only the pair's part",
			facts: []models.Fact{
				models.ExpenseFact(expense("e1", "g1", 9000,
					map[string]money.Amount{"A": 9000},
					map[string]money.Amount{"A": 3000, "B": 3000, "C": 3000})),
			},
			want: 3000,
		},
		{
			name: "third party payer does not move the pair",
			facts: []models.Fact{
				models.ExpenseFact(expense("e1", "g1", 9000,
					map[string]money.Amount{"C": 9000},
					map[string]money.Amount{"A": 3000, "B": 3000, "C": 3000})),
			},
			want: 0,
		},
		{
			name: "settlements with others are ignored",
			facts: []models.Fact{
				models.SettlementFact(settlement("s1", "g1", "B", "C", 700, models.SettlementCompleted)),
			},
			want: 0,
		},
		{
			name: "A paying B increases what B owes",
			facts: []models.Fact{
				models.SettlementFact(settlement("s1", "", "A", "B", 700, models.SettlementCompleted)),
			},
			want: 700,
		},
		{
			name: "two payers attribute proportionally",
			// A financed 60% of B's 4000 share, B financed 40% of A's 2000 share.
			facts: []models.Fact{
				models.ExpenseFact(expense("e1", "g1", 10000,
					map[string]money.Amount{"A": 6000, "B": 4000},
					map[string]money.Amount{"A": 2000, "B": 4000, "C": 4000})),
			},
			want: 2400 - 800,
		},
		{
			name: "reversed expense nets out",
			facts: func() []models.Fact {
				e := expense("e1", "", 10000,
					map[string]money.Amount{"A": 10000},
					map[string]money.Amount{"A": 5000, "B": 5000})
				return []models.Fact{models.ExpenseFact(e), models.ExpenseReversal(e)}
			}(),
			want: 0,
		},
		{
			name: "reopened settlement no longer counts",
			facts: func() []models.Fact {
				s := settlement("s1", "", "B", "A", 2000, models.SettlementCompleted)
				return []models.Fact{models.SettlementFact(s), models.SettlementReversal(s)}
			}(),
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputePairwiseBalance("A", "B", "USD", tt.facts)
			if err != nil {
				t.Fatalf("ComputePairwiseBalance() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ComputePairwiseBalance() = %d, want %d", got, tt.want)
			}

			flipped, err := ComputePairwiseBalance("B", "A", "USD", tt.facts)
			if err != nil {
				t.Fatalf("ComputePairwiseBalance(B, A) error = %v", err)
			}
			if flipped != -got {
				t.Errorf("swapping users gave %d, want %d", flipped, -got)
			}
		})
	}
}

func TestComputePairwiseBalanceRoundsOnce(t *testing.T) {
	repeat := func(n int, amount money.Amount, paid, split map[string]money.Amount) []models.Fact {
		var facts []models.Fact
		for i := 0; i < n; i++ {
			facts = append(facts, models.ExpenseFact(expense(fmt.Sprintf("e%d", i), "g1", amount, paid, split)))
		}
		return facts
	}

	tests := []struct {
		name  string
		facts []models.Fact
		want  money.Amount
	}{
		{
			// 3 x 1/3 is exactly one minor unit.
			name: "thirds add up",
			facts: repeat(3, 3,
				map[string]money.Amount{"A": 1, "C": 2},
				map[string]money.Amount{"B": 1, "C": 2}),
			want: 1,
		},
		{
			// 3 x 1/6 is exactly one half, which rounds to even.
			name: "half rounds down to even",
			facts: repeat(3, 6,
				map[string]money.Amount{"A": 1, "C": 5},
				map[string]money.Amount{"B": 1, "C": 5}),
			want: 0,
		},
		{
			name: "one and a half rounds up to even",
			facts: repeat(9, 6,
				map[string]money.Amount{"A": 1, "C": 5},
				map[string]money.Amount{"B": 1, "C": 5}),
			want: 2,
		},
		{
			name: "negative half rounds to even",
			facts: repeat(3, 6,
				map[string]money.Amount{"B": 1, "C": 5},
				map[string]money.Amount{"A": 1, "C": 5}),
			want: 0,
		},
		{
			name: "just above half",
			facts: repeat(4, 6,
				map[string]money.Amount{"A": 1, "C": 5},
				map[string]money.Amount{"B": 1, "C": 5}),
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputePairwiseBalance("A", "B", "USD", tt.facts)
			if err != nil {
				t.Fatalf("ComputePairwiseBalance() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ComputePairwiseBalance() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestComputePairwiseBalanceErrors(t *testing.T) {
	if _, err := ComputePairwiseBalance("A", "A", "USD", nil); !errors.Is(err, ErrSameUser) {
		t.Errorf("expected ErrSameUser, got %v", err)
	}

	e := expense("e1", "", 1000,
		map[string]money.Amount{"A": 1000},
		map[string]money.Amount{"A": 500, "B": 500})
	e.Currency = "EUR"
	if _, err := ComputePairwiseBalance("A", "B", "USD", []models.Fact{models.ExpenseFact(e)}); !errors.Is(err, ErrScopeCurrencyMismatch) {
		t.Errorf("expected ErrScopeCurrencyMismatch, got %v", err)
	}
}
