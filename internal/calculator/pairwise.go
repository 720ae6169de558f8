package calculator

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// ErrSameUser is returned when a pairwise balance is requested for one user.
var ErrSameUser = errors.New("pairwise balance needs two distinct users")

// ComputePairwiseBalance returns the literal balance between two users over
// the given facts. Positive means userB owes userA.
//
// Each expense is treated as a two-party sub-ledger: every participant's share
// is financed by the payers in proportion to what they paid, and only the part
// of B's share financed by A (and of A's share financed by B) moves the pair.
// With a single payer this is exactly the other user's share. Completed
// settlements between exactly these two users count in full. No group-wide
// netting is attempted.
//
// Proportional parts are accumulated exactly and rounded once, half to even,
// to the currency's minor unit.
func ComputePairwiseBalance(userA, userB, currency string, facts []models.Fact) (money.Amount, error) {
	if userA == userB {
		return 0, fmt.Errorf("%w: %s", ErrSameUser, userA)
	}
	if err := checkFacts(nil, currency, facts); err != nil {
		return 0, err
	}

	balance := new(big.Rat)
	for _, f := range facts {
		var flow *big.Rat

		switch f.Kind {
		case models.FactExpense:
			e := f.Expense
			if err := CheckExpenseSums(e); err != nil {
				return 0, err
			}
			paidA, paidB := shareOf(e.PaidBy, userA), shareOf(e.PaidBy, userB)
			owesA, owesB := shareOf(e.SplitBetween, userA), shareOf(e.SplitBetween, userB)
			if paidA == 0 && paidB == 0 {
				continue
			}
			// B's share financed by A, minus A's share financed by B.
			num := new(big.Int).Mul(big.NewInt(int64(owesB)), big.NewInt(int64(paidA)))
			num.Sub(num, new(big.Int).Mul(big.NewInt(int64(owesA)), big.NewInt(int64(paidB))))
			flow = new(big.Rat).SetFrac(num, big.NewInt(int64(e.Amount)))
		case models.FactSettlement:
			s := f.Settlement
			if s.Status != models.SettlementCompleted {
				continue
			}
			switch {
			case s.FromUserID == userB && s.ToUserID == userA:
				flow = new(big.Rat).SetInt64(-int64(s.Amount))
			case s.FromUserID == userA && s.ToUserID == userB:
				flow = new(big.Rat).SetInt64(int64(s.Amount))
			default:
				continue
			}
		default:
			return 0, fmt.Errorf("%w: %q", models.ErrUnknownFact, f.Kind)
		}

		if f.Reversal {
			flow.Neg(flow)
		}
		balance.Add(balance, flow)
	}

	rounded := roundHalfEven(balance)
	if !rounded.IsInt64() {
		return 0, fmt.Errorf("balance between %s and %s: %w", userA, userB, money.ErrOverflow)
	}
	return money.Amount(rounded.Int64()), nil
}

// roundHalfEven rounds r to the nearest integer, ties to even.
func roundHalfEven(r *big.Rat) *big.Int {
	q, m := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	if m.Sign() == 0 {
		return q
	}
	// Compare twice the remainder with the (positive) denominator.
	twice := new(big.Int).Abs(m)
	twice.Lsh(twice, 1)
	switch cmp := twice.Cmp(r.Denom()); {
	case cmp > 0, cmp == 0 && q.Bit(0) == 1:
		q.Add(q, big.NewInt(int64(r.Sign())))
	}
	return q
}

func shareOf(shares []models.Share, user string) money.Amount {
	var total money.Amount
	for _, s := range shares {
		if s.UserID == user {
			total += s.Amount
		}
	}
	return total
}
