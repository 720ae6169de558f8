package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/models"
)

// ApplySettlement records a payment between two users. Status defaults to
// pending and Method to cash. Only completed settlements move balances.
func (s *Service) ApplySettlement(ctx context.Context, settlement *models.Settlement) (*models.Settlement, error) {
	st := settlement.Clone()
	home, err := normalizeSettlement(st)
	if err != nil {
		return nil, err
	}
	if st.ID == "" {
		st.ID = s.newID()
	}
	if st.CreatedAt == 0 {
		st.CreatedAt = s.now().Unix()
	}

	_, err = s.commit(ctx, "apply_settlement", func(ctx context.Context) (*mutation, error) {
		_, err := s.store.ListEntityFacts(ctx, st.ID)
		if err == nil {
			return nil, fmt.Errorf("%w: settlement %s", ErrAlreadyExists, st.ID)
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return &mutation{
			home:     home,
			currency: st.Currency,
			facts:    []models.Fact{models.SettlementFact(st)},
			event:    events.SettlementApplied,
			entityID: st.ID,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

// UpdateSettlementStatus moves a settlement between pending and completed.
// Completing appends the completed settlement; reopening appends the reversal
// of the completed one. Setting the current status again changes nothing.
func (s *Service) UpdateSettlementStatus(ctx context.Context, settlementID string, status models.SettlementStatus) (*models.Settlement, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidSettlement, status)
	}

	var updated *models.Settlement
	_, err := s.commit(ctx, "update_settlement_status", func(ctx context.Context) (*mutation, error) {
		current, err := s.settlementState(ctx, settlementID)
		if err != nil {
			return nil, err
		}
		if current.Status == status {
			updated = current
			return nil, nil
		}
		home, err := models.SettlementFact(current).HomeScope()
		if err != nil {
			return nil, err
		}

		var fact models.Fact
		switch status {
		case models.SettlementCompleted:
			next := current.Clone()
			next.Status = models.SettlementCompleted
			fact = models.SettlementFact(next)
			updated = next
		case models.SettlementPending:
			fact = models.SettlementReversal(current)
			next := current.Clone()
			next.Status = models.SettlementPending
			updated = next
		}

		return &mutation{
			home:     home,
			currency: current.Currency,
			facts:    []models.Fact{fact},
			event:    events.SettlementStatusChanged,
			entityID: settlementID,
		}, nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetSettlement returns the current state of a settlement.
func (s *Service) GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	return s.settlementState(ctx, settlementID)
}

// settlementState replays the facts of one settlement. A reversal leaves the
// settlement pending.
func (s *Service) settlementState(ctx context.Context, settlementID string) (*models.Settlement, error) {
	if settlementID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidSettlement)
	}
	facts, err := s.store.ListEntityFacts(ctx, settlementID)
	if err != nil {
		return nil, fmt.Errorf("settlement %s: %w", settlementID, err)
	}

	var current *models.Settlement
	for _, f := range facts {
		if f.Kind != models.FactSettlement {
			return nil, fmt.Errorf("%w: settlement %s", ErrNotFound, settlementID)
		}
		current = f.Settlement.Clone()
		if f.Reversal {
			current.Status = models.SettlementPending
		}
	}
	return current, nil
}
