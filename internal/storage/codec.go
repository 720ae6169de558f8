package storage

import (
	"encoding/json"
	"fmt"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
)

// Persisted payload shapes. Database backends keep the variant payload as a
// JSON document next to the indexed columns.

type shareRecord struct {
	UserID string `json:"user_id"`
	Amount int64  `json:"amount"`
}

type expenseRecord struct {
	ID           string        `json:"id"`
	Version      int           `json:"version"`
	GroupID      string        `json:"group_id,omitempty"`
	Title        string        `json:"title"`
	Category     string        `json:"category,omitempty"`
	Notes        string        `json:"notes,omitempty"`
	Amount       int64         `json:"amount"`
	Currency     string        `json:"currency"`
	PaidBy       []shareRecord `json:"paid_by"`
	SplitBetween []shareRecord `json:"split_between"`
	CreatedAt    int64         `json:"created_at"`
}

type settlementRecord struct {
	ID         string `json:"id"`
	GroupID    string `json:"group_id,omitempty"`
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	Status     string `json:"status"`
	Method     string `json:"method"`
	Note       string `json:"note,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

// EncodePayload serializes the expense or settlement carried by a fact.
func EncodePayload(f models.Fact) ([]byte, error) {
	switch f.Kind {
	case models.FactExpense:
		e := f.Expense
		return json.Marshal(expenseRecord{
			ID:           e.ID,
			Version:      e.Version,
			GroupID:      e.GroupID,
			Title:        e.Title,
			Category:     string(e.Category),
			Notes:        e.Notes,
			Amount:       int64(e.Amount),
			Currency:     e.Currency,
			PaidBy:       toShareRecords(e.PaidBy),
			SplitBetween: toShareRecords(e.SplitBetween),
			CreatedAt:    e.CreatedAt,
		})
	case models.FactSettlement:
		s := f.Settlement
		return json.Marshal(settlementRecord{
			ID:         s.ID,
			GroupID:    s.GroupID,
			FromUserID: s.FromUserID,
			ToUserID:   s.ToUserID,
			Amount:     int64(s.Amount),
			Currency:   s.Currency,
			Status:     string(s.Status),
			Method:     string(s.Method),
			Note:       s.Note,
			CreatedAt:  s.CreatedAt,
		})
	}
	return nil, fmt.Errorf("%w: %q", models.ErrUnknownFact, f.Kind)
}

// DecodeFact rebuilds a fact from its stored columns.
func DecodeFact(id string, kind models.FactKind, reversal bool, payload []byte, recordedAt int64) (models.Fact, error) {
	f := models.Fact{ID: id, Kind: kind, Reversal: reversal, RecordedAt: recordedAt}

	switch kind {
	case models.FactExpense:
		var r expenseRecord
		if err := json.Unmarshal(payload, &r); err != nil {
			return models.Fact{}, fmt.Errorf("failed to decode expense fact %s: %w", id, err)
		}
		f.Expense = &models.Expense{
			ID:           r.ID,
			Version:      r.Version,
			GroupID:      r.GroupID,
			Title:        r.Title,
			Category:     models.Category(r.Category),
			Notes:        r.Notes,
			Amount:       money.Amount(r.Amount),
			Currency:     r.Currency,
			PaidBy:       fromShareRecords(r.PaidBy),
			SplitBetween: fromShareRecords(r.SplitBetween),
			CreatedAt:    r.CreatedAt,
		}
	case models.FactSettlement:
		var r settlementRecord
		if err := json.Unmarshal(payload, &r); err != nil {
			return models.Fact{}, fmt.Errorf("failed to decode settlement fact %s: %w", id, err)
		}
		f.Settlement = &models.Settlement{
			ID:         r.ID,
			GroupID:    r.GroupID,
			FromUserID: r.FromUserID,
			ToUserID:   r.ToUserID,
			Amount:     money.Amount(r.Amount),
			Currency:   r.Currency,
			Status:     models.SettlementStatus(r.Status),
			Method:     models.PaymentMethod(r.Method),
			Note:       r.Note,
			CreatedAt:  r.CreatedAt,
		}
	default:
		return models.Fact{}, fmt.Errorf("%w: %q", models.ErrUnknownFact, kind)
	}

	return f, nil
}

func toShareRecords(shares []models.Share) []shareRecord {
	out := make([]shareRecord, len(shares))
	for i, s := range shares {
		out[i] = shareRecord{UserID: s.UserID, Amount: int64(s.Amount)}
	}
	return out
}

func fromShareRecords(records []shareRecord) []models.Share {
	out := make([]models.Share, len(records))
	for i, r := range records {
		out[i] = models.Share{UserID: r.UserID, Amount: money.Amount(r.Amount)}
	}
	return out
}
