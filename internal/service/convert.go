package service

import (
	"fmt"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/pkg/api"
)

func parseShares(field string, shares []*api.Share, currency string) ([]models.Share, error) {
	out := make([]models.Share, 0, len(shares))
	for _, s := range shares {
		if s == nil {
			return nil, fmt.Errorf("%w: %s has an empty entry", errInvalidRequest, field)
		}
		amount, err := money.Parse(s.Amount, currency)
		if err != nil {
			return nil, fmt.Errorf("%s of %s: %w", field, s.UserID, err)
		}
		out = append(out, models.Share{UserID: s.UserID, Amount: amount})
	}
	return out, nil
}

func formatShares(shares []models.Share, currency string) []*api.Share {
	out := make([]*api.Share, len(shares))
	for i, s := range shares {
		out[i] = &api.Share{UserID: s.UserID, Amount: s.Amount.Format(currency)}
	}
	return out
}

// expenseFromAPI converts a request expense into the model. Amounts are read
// in the expense's own currency.
func expenseFromAPI(e *api.Expense) (*models.Expense, error) {
	if e == nil {
		return nil, fmt.Errorf("%w: expense is required", errInvalidRequest)
	}
	currency, err := money.NormalizeCurrency(e.Currency)
	if err != nil {
		return nil, err
	}
	amount, err := money.Parse(e.Amount, currency)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	paidBy, err := parseShares("paid_by", e.PaidBy, currency)
	if err != nil {
		return nil, err
	}
	splitBetween, err := parseShares("split_between", e.SplitBetween, currency)
	if err != nil {
		return nil, err
	}

	return &models.Expense{
		ID:           e.ID,
		GroupID:      e.GroupID,
		Title:        e.Title,
		Category:     models.Category(e.Category),
		Notes:        e.Notes,
		Amount:       amount,
		Currency:     currency,
		PaidBy:       paidBy,
		SplitBetween: splitBetween,
		CreatedAt:    e.CreatedAt,
	}, nil
}

func expenseToAPI(e *models.Expense) *api.Expense {
	return &api.Expense{
		ID:           e.ID,
		Version:      e.Version,
		GroupID:      e.GroupID,
		Title:        e.Title,
		Category:     string(e.Category),
		Notes:        e.Notes,
		Amount:       e.Amount.Format(e.Currency),
		Currency:     e.Currency,
		PaidBy:       formatShares(e.PaidBy, e.Currency),
		SplitBetween: formatShares(e.SplitBetween, e.Currency),
		CreatedAt:    e.CreatedAt,
	}
}

func settlementFromAPI(s *api.Settlement) (*models.Settlement, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: settlement is required", errInvalidRequest)
	}
	currency, err := money.NormalizeCurrency(s.Currency)
	if err != nil {
		return nil, err
	}
	amount, err := money.Parse(s.Amount, currency)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	return &models.Settlement{
		ID:         s.ID,
		GroupID:    s.GroupID,
		FromUserID: s.FromUserID,
		ToUserID:   s.ToUserID,
		Amount:     amount,
		Currency:   currency,
		Status:     models.SettlementStatus(s.Status),
		Method:     models.PaymentMethod(s.Method),
		Note:       s.Note,
		CreatedAt:  s.CreatedAt,
	}, nil
}

func settlementToAPI(s *models.Settlement) *api.Settlement {
	return &api.Settlement{
		ID:         s.ID,
		GroupID:    s.GroupID,
		FromUserID: s.FromUserID,
		ToUserID:   s.ToUserID,
		Amount:     s.Amount.Format(s.Currency),
		Currency:   s.Currency,
		Status:     string(s.Status),
		Method:     string(s.Method),
		Note:       s.Note,
		CreatedAt:  s.CreatedAt,
	}
}

// positionsToAPI lists positions ordered by user.
func positionsToAPI(positions map[string]money.Amount, currency string) []*api.Position {
	sorted := models.SortedPositions(positions)
	out := make([]*api.Position, len(sorted))
	for i, p := range sorted {
		out[i] = &api.Position{UserID: p.UserID, Amount: p.Amount.Format(currency)}
	}
	return out
}

func normalizeCurrency(code string) string {
	c, err := money.NormalizeCurrency(code)
	if err != nil {
		return code
	}
	return c
}

func activitiesToAPI(feed []models.Activity) []*api.Activity {
	out := make([]*api.Activity, len(feed))
	for i, a := range feed {
		entry := &api.Activity{
			ID:         a.ID,
			Type:       string(a.Type),
			Kind:       string(a.Kind),
			RecordedAt: a.RecordedAt,
		}
		switch a.Kind {
		case models.FactExpense:
			entry.Expense = expenseToAPI(a.Expense)
		case models.FactSettlement:
			entry.Settlement = settlementToAPI(a.Settlement)
		}
		out[i] = entry
	}
	return out
}
