package calculator

import (
	"slices"
	"sort"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// party is a creditor or debtor with the amount still to settle, always positive.
type party struct {
	user   string
	amount money.Amount
}

// Simplify turns zero-summing net positions into a list of transfers that
// settles all of them.
//
// Greedy largest-pair matching: repeatedly match the largest creditor with
// the largest debtor (ties go to the smaller user ID) and transfer the smaller
// of the two amounts. Every step zeroes at least one party, so n non-zero
// participants need at most n-1 transfers. The result is ordered by
// (From, To) and never depends on map iteration order.
func Simplify(currency string, positions map[string]money.Amount) (models.SettlementPlan, error) {
	if err := checkZeroSum(positions); err != nil {
		return models.SettlementPlan{}, err
	}

	var creditors, debtors []party
	for user, amount := range positions {
		switch {
		case amount > 0:
			creditors = append(creditors, party{user: user, amount: amount})
		case amount < 0:
			debtors = append(debtors, party{user: user, amount: -amount})
		}
	}
	plan := models.SettlementPlan{Currency: currency}
	for len(creditors) > 0 && len(debtors) > 0 {
		ci, di := largest(creditors), largest(debtors)
		t := money.Min(creditors[ci].amount, debtors[di].amount)

		plan.Transfers = append(plan.Transfers, models.Transfer{
			From:   debtors[di].user,
			To:     creditors[ci].user,
			Amount: t,
		})

		creditors[ci].amount -= t
		debtors[di].amount -= t
		if creditors[ci].amount == 0 {
			creditors = slices.Delete(creditors, ci, ci+1)
		}
		if debtors[di].amount == 0 {
			debtors = slices.Delete(debtors, di, di+1)
		}
	}

	sort.Slice(plan.Transfers, func(i, j int) bool {
		a, b := plan.Transfers[i], plan.Transfers[j]
		if a.From != b.From {
			return a.From < b.From
		}
		return a.To < b.To
	})

	return plan, nil
}

// largest returns the index of the party with the most left to settle.
func largest(parties []party) int {
	best := 0
	for i := 1; i < len(parties); i++ {
		p, b := parties[i], parties[best]
		if p.amount > b.amount || (p.amount == b.amount && p.user < b.user) {
			best = i
		}
	}
	return best
}
