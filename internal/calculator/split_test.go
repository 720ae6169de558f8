package calculator

import (
	"testing"

	"github.com/mmynk/splitledger/internal/money"
)

func TestCalculateSplit(t *testing.T) {
	tests := []struct {
		name         string
		items        []Item
		billTotal    money.Amount
		billSubtotal money.Amount
		participants []string
		wantErr      bool
		validateFunc func(t *testing.T, splits map[string]*PersonSplit)
	}{
		{
			name: "simple two-person split with tax",
			items: []Item{
				{Description: "Pizza", Amount: 2000, AssignedTo: []string{"Alice", "Bob"}},
				{Description: "Salad", Amount: 1000, AssignedTo: []string{"Alice"}},
			},
			billTotal:    3300,
			billSubtotal: 3000,
			participants: []string{"Alice", "Bob"},
			validateFunc: func(t *testing.T, splits map[string]*PersonSplit) {
				// Alice: subtotal = 10 + 10 = 20, tax = 2, total = 22
				// Bob: subtotal = 10, tax = 1, total = 11
				assertSplit(t, "Alice", splits["Alice"], 2000, 200, 2200)
				assertSplit(t, "Bob", splits["Bob"], 1000, 100, 1100)
			},
		},
		{
			name:         "zero subtotal should error",
			items:        []Item{{Description: "Item", Amount: 1000, AssignedTo: []string{"Alice"}}},
			billTotal:    1000,
			billSubtotal: 0,
			participants: []string{"Alice"},
			wantErr:      true,
		},
		{
			name:         "no participants should error",
			items:        []Item{{Description: "Item", Amount: 1000, AssignedTo: []string{"Alice"}}},
			billTotal:    1000,
			billSubtotal: 1000,
			participants: []string{},
			wantErr:      true,
		},
		{
			name:         "duplicate participants should error",
			billTotal:    1000,
			billSubtotal: 1000,
			participants: []string{"Alice", "Alice"},
			wantErr:      true,
		},
		{
			name:         "items must add up to subtotal",
			items:        []Item{{Description: "Item", Amount: 900, AssignedTo: []string{"Alice"}}},
			billTotal:    1000,
			billSubtotal: 1000,
			participants: []string{"Alice"},
			wantErr:      true,
		},
		{
			name:         "unassigned item should error",
			items:        []Item{{Description: "Mystery", Amount: 1000, AssignedTo: []string{"Nobody"}}},
			billTotal:    1000,
			billSubtotal: 1000,
			participants: []string{"Alice"},
			wantErr:      true,
		},
		{
			name:         "no items - split equally among participants",
			items:        []Item{},
			billTotal:    3300,
			billSubtotal: 3000,
			participants: []string{"Alice", "Bob"},
			validateFunc: func(t *testing.T, splits map[string]*PersonSplit) {
				for _, person := range []string{"Alice", "Bob"} {
					assertSplit(t, person, splits[person], 1500, 150, 1650)
				}
			},
		},
		{
			name:         "no items - three people split",
			items:        []Item{},
			billTotal:    9000,
			billSubtotal: 7500,
			participants: []string{"Alice", "Bob", "Charlie"},
			validateFunc: func(t *testing.T, splits map[string]*PersonSplit) {
				for _, person := range []string{"Alice", "Bob", "Charlie"} {
					assertSplit(t, person, splits[person], 2500, 500, 3000)
				}
			},
		},
		{
			name:         "indivisible total leaves the extra cent with the first participant",
			billTotal:    1000,
			billSubtotal: 1000,
			participants: []string{"Alice", "Bob", "Charlie"},
			validateFunc: func(t *testing.T, splits map[string]*PersonSplit) {
				assertSplit(t, "Alice", splits["Alice"], 334, 0, 334)
				assertSplit(t, "Bob", splits["Bob"], 333, 0, 333)
				assertSplit(t, "Charlie", splits["Charlie"], 333, 0, 333)
			},
		},
		{
			name: "tax remainder goes to the largest fractional share",
			items: []Item{
				{Description: "Soup", Amount: 1000, AssignedTo: []string{"Alice"}},
				{Description: "Steak", Amount: 2000, AssignedTo: []string{"Bob"}},
			},
			billTotal:    3301,
			billSubtotal: 3000,
			participants: []string{"Alice", "Bob"},
			validateFunc: func(t *testing.T, splits map[string]*PersonSplit) {
				assertSplit(t, "Alice", splits["Alice"], 1000, 100, 1100)
				assertSplit(t, "Bob", splits["Bob"], 2000, 201, 2201)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			splits, err := CalculateSplit(tt.items, tt.billTotal, tt.billSubtotal, tt.participants)
			if (err != nil) != tt.wantErr {
				t.Errorf("CalculateSplit() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if tt.wantErr {
				return
			}
			var total money.Amount
			for _, s := range splits {
				total += s.Total
			}
			if total != tt.billTotal {
				t.Errorf("totals add up to %d, want %d", total, tt.billTotal)
			}
			if tt.validateFunc != nil {
				tt.validateFunc(t, splits)
			}
		})
	}
}

func TestAllocate(t *testing.T) {
	parts, err := Allocate(100, []int64{1, 1, 1})
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if parts[0] != 34 || parts[1] != 33 || parts[2] != 33 {
		t.Errorf("Allocate(100, 1:1:1) = %v", parts)
	}

	if _, err := Allocate(100, []int64{0, 0}); err == nil {
		t.Error("expected error for all-zero weights")
	}
	if _, err := Allocate(-1, []int64{1}); err == nil {
		t.Error("expected error for negative total")
	}
}

func TestSplitShares(t *testing.T) {
	shares := SplitShares(map[string]*PersonSplit{
		"Bob":   {Total: 1100},
		"Alice": {Total: 2200},
		"Carol": {Total: 0},
	})
	if len(shares) != 2 {
		t.Fatalf("expected 2 shares, got %v", shares)
	}
	if shares[0].UserID != "Alice" || shares[0].Amount != 2200 || shares[1].UserID != "Bob" {
		t.Errorf("unexpected shares %v", shares)
	}
}

func assertSplit(t *testing.T, person string, got *PersonSplit, subtotal, tax, total money.Amount) {
	t.Helper()
	if got == nil {
		t.Fatalf("missing split for %s", person)
	}
	if got.Subtotal != subtotal {
		t.Errorf("%s subtotal = %d, want %d", person, got.Subtotal, subtotal)
	}
	if got.Tax != tax {
		t.Errorf("%s tax = %d, want %d", person, got.Tax, tax)
	}
	if got.Total != total {
		t.Errorf("%s total = %d, want %d", person, got.Total, total)
	}
}
