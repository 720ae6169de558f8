package calculator

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// PersonSplit represents the calculated split for one person
type PersonSplit struct {
	Subtotal money.Amount
	Tax      money.Amount
	Total    money.Amount
}

// Item represents a single item on the bill
type Item struct {
	Description string
	Amount      money.Amount
	AssignedTo  []string
}

// Allocate divides total into parts proportional to weights so that the
// parts sum to exactly total. Leftover minor units go to the largest
// fractional remainders, earlier indexes first on ties.
func Allocate(total money.Amount, weights []int64) ([]money.Amount, error) {
	if total < 0 {
		return nil, fmt.Errorf("cannot allocate negative amount %d", total)
	}
	var sum int64
	for _, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("negative weight %d", w)
		}
		sum += w
	}
	if sum == 0 {
		return nil, fmt.Errorf("weights must not all be zero")
	}

	parts := make([]money.Amount, len(weights))
	remainders := make([]decimal.Decimal, len(weights))
	divisor := decimal.NewFromInt(sum)
	var allocated money.Amount
	for i, w := range weights {
		q, r := decimal.NewFromInt(int64(total)).Mul(decimal.NewFromInt(w)).QuoRem(divisor, 0)
		parts[i] = money.Amount(q.IntPart())
		remainders[i] = r
		allocated += parts[i]
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return remainders[order[a]].GreaterThan(remainders[order[b]])
	})
	for k := 0; allocated < total; k++ {
		parts[order[k]]++
		allocated++
	}

	return parts, nil
}

// EqualSplit divides total evenly between participants. The first
// participants absorb any leftover minor units.
func EqualSplit(total money.Amount, participants []string) ([]models.Share, error) {
	if len(participants) == 0 {
		return nil, fmt.Errorf("must have at least one participant")
	}
	if err := checkDistinct(participants); err != nil {
		return nil, err
	}
	weights := make([]int64, len(participants))
	for i := range weights {
		weights[i] = 1
	}
	parts, err := Allocate(total, weights)
	if err != nil {
		return nil, err
	}
	shares := make([]models.Share, len(participants))
	for i, p := range participants {
		shares[i] = models.Share{UserID: p, Amount: parts[i]}
	}
	return shares, nil
}

// CalculateSplit computes how much each person owes including proportional tax.
// Each item is split equally among its assignees; the bill total is then
// allocated in proportion to each person's subtotal, so
// person_total ≈ person_subtotal × (bill_total / bill_subtotal) and the
// totals add up to bill_total exactly.
func CalculateSplit(items []Item, billTotal, billSubtotal money.Amount, participants []string) (map[string]*PersonSplit, error) {
	if billSubtotal <= 0 {
		return nil, fmt.Errorf("subtotal must be positive")
	}
	if billTotal < 0 {
		return nil, fmt.Errorf("total cannot be negative")
	}
	if len(participants) == 0 {
		return nil, fmt.Errorf("must have at least one participant")
	}
	if err := checkDistinct(participants); err != nil {
		return nil, err
	}

	splits := make(map[string]*PersonSplit, len(participants))
	for _, p := range participants {
		splits[p] = &PersonSplit{}
	}

	// If no items, split total equally among all participants
	if len(items) == 0 {
		totals, err := EqualSplit(billTotal, participants)
		if err != nil {
			return nil, err
		}
		subtotals, err := EqualSplit(billSubtotal, participants)
		if err != nil {
			return nil, err
		}
		for i, p := range participants {
			splits[p].Subtotal = subtotals[i].Amount
			splits[p].Total = totals[i].Amount
			splits[p].Tax = totals[i].Amount - subtotals[i].Amount
		}
		return splits, nil
	}

	var itemsTotal money.Amount
	for _, item := range items {
		if item.Amount < 0 {
			return nil, fmt.Errorf("item %q has negative amount", item.Description)
		}
		var assignees []string
		for _, person := range item.AssignedTo {
			if _, ok := splits[person]; ok {
				assignees = append(assignees, person)
			}
		}
		if len(assignees) == 0 {
			return nil, fmt.Errorf("item %q is not assigned to any participant", item.Description)
		}
		shares, err := EqualSplit(item.Amount, assignees)
		if err != nil {
			return nil, fmt.Errorf("item %q: %w", item.Description, err)
		}
		for _, s := range shares {
			splits[s.UserID].Subtotal += s.Amount
		}
		itemsTotal += item.Amount
	}
	if itemsTotal != billSubtotal {
		return nil, fmt.Errorf("items sum to %d but subtotal is %d", itemsTotal, billSubtotal)
	}

	weights := make([]int64, len(participants))
	for i, p := range participants {
		weights[i] = int64(splits[p].Subtotal)
	}
	totals, err := Allocate(billTotal, weights)
	if err != nil {
		return nil, err
	}
	for i, p := range participants {
		splits[p].Total = totals[i]
		splits[p].Tax = totals[i] - splits[p].Subtotal
	}

	return splits, nil
}

// SplitShares converts calculated splits into the SplitBetween shares of an
// expense, ordered by user and skipping people who owe nothing.
func SplitShares(splits map[string]*PersonSplit) []models.Share {
	shares := make([]models.Share, 0, len(splits))
	for person, split := range splits {
		if split.Total > 0 {
			shares = append(shares, models.Share{UserID: person, Amount: split.Total})
		}
	}
	sort.Slice(shares, func(i, j int) bool { return shares[i].UserID < shares[j].UserID })
	return shares
}

func checkDistinct(users []string) error {
	seen := make(map[string]bool, len(users))
	for _, u := range users {
		if u == "" {
			return fmt.Errorf("participant id cannot be empty")
		}
		if seen[u] {
			return fmt.Errorf("duplicate participant %q", u)
		}
		seen[u] = true
	}
	return nil
}
