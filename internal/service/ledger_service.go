package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/middleware"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/pkg/api"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
)

// LedgerService implements the Connect LedgerService on top of the ledger.
type LedgerService struct {
	apiconnect.UnimplementedLedgerServiceHandler
	ledger *ledger.Service
}

// NewLedgerService creates a new LedgerService backed by l.
func NewLedgerService(l *ledger.Service) *LedgerService {
	return &LedgerService{ledger: l}
}

// requireParticipant checks that an authenticated caller takes part in what
// they are writing. Unauthenticated servers skip the check.
func requireParticipant(ctx context.Context, participants []string) error {
	userID := middleware.GetUserID(ctx)
	if userID == "" || slices.Contains(participants, userID) {
		return nil
	}
	return connect.NewError(connect.CodePermissionDenied, fmt.Errorf("you must be a participant to record this"))
}

// authorizeExpense checks the caller against the stored expense, so a caller
// cannot rewrite or void an expense by naming themselves in the new version.
func (s *LedgerService) authorizeExpense(ctx context.Context, procedure, expenseID string) error {
	if middleware.GetUserID(ctx) == "" {
		return nil
	}
	rec, err := s.ledger.GetExpense(ctx, expenseID)
	if err != nil {
		return toConnectError(procedure, err)
	}
	return requireParticipant(ctx, rec.Expense.Participants())
}

// authorizeSettlement checks the caller against the stored settlement.
func (s *LedgerService) authorizeSettlement(ctx context.Context, procedure, settlementID string) error {
	if middleware.GetUserID(ctx) == "" {
		return nil
	}
	st, err := s.ledger.GetSettlement(ctx, settlementID)
	if err != nil {
		return toConnectError(procedure, err)
	}
	return requireParticipant(ctx, st.Participants())
}

func readOptions(strong bool) []ledger.ReadOption {
	if strong {
		return []ledger.ReadOption{ledger.Strong()}
	}
	return nil
}

// ApplyExpense records a new expense.
func (s *LedgerService) ApplyExpense(ctx context.Context, req *connect.Request[api.ApplyExpenseRequest]) (*connect.Response[api.ApplyExpenseResponse], error) {
	e, err := expenseFromAPI(req.Msg.GetExpense())
	if err != nil {
		return nil, toConnectError(apiconnect.LedgerServiceApplyExpenseProcedure, err)
	}
	if err := requireParticipant(ctx, e.Participants()); err != nil {
		return nil, err
	}

	stored, err := s.ledger.ApplyExpense(ctx, e)
	if err != nil {
		return nil, toConnectError(apiconnect.LedgerServiceApplyExpenseProcedure, err)
	}
	return connect.NewResponse(&api.ApplyExpenseResponse{Expense: expenseToAPI(stored)}), nil
}

// AmendExpense replaces the current version of an expense.
func (s *LedgerService) AmendExpense(ctx context.Context, req *connect.Request[api.AmendExpenseRequest]) (*connect.Response[api.AmendExpenseResponse], error) {
	e, err := expenseFromAPI(req.Msg.GetExpense())
	if err != nil {
		return nil, toConnectError(apiconnect.LedgerServiceAmendExpenseProcedure, err)
	}
	if err := s.authorizeExpense(ctx, apiconnect.LedgerServiceAmendExpenseProcedure, e.ID); err != nil {
		return nil, err
	}
	if err := requireParticipant(ctx, e.Participants()); err != nil {
		return nil, err
	}

	amended, err := s.ledger.AmendExpense(ctx, e)
	if err != nil {
		return nil, toConnectError(apiconnect.LedgerServiceAmendExpenseProcedure, err)
	}
	return connect.NewResponse(&api.AmendExpenseResponse{Expense: expenseToAPI(amended)}), nil
}

// ReverseExpense voids an expense.
func (s *LedgerService) ReverseExpense(ctx context.Context, req *connect.Request[api.ReverseExpenseRequest]) (*connect.Response[api.ReverseExpenseResponse], error) {
	if err := s.authorizeExpense(ctx, apiconnect.LedgerServiceReverseExpenseProcedure, req.Msg.ExpenseID); err != nil {
		return nil, err
	}
	if err := s.ledger.ReverseExpense(ctx, req.Msg.ExpenseID); err != nil {
		return nil, toConnectError(apiconnect.LedgerServiceReverseExpenseProcedure, err)
	}
	return connect.NewResponse(&api.ReverseExpenseResponse{}), nil
}

// GetExpense returns the current version of an expense.
func (s *LedgerService) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	rec, err := s.ledger.GetExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, toConnectError(apiconnect.LedgerServiceGetExpenseProcedure, err)
	}
	return connect.NewResponse(&api.GetExpenseResponse{
		Expense:  expenseToAPI(rec.Expense),
		Reversed: rec.Reversed,
	}), nil
}

// ApplySettlement records a payment between two users.
func (s *LedgerService) ApplySettlement(ctx context.Context, req *connect.Request[api.ApplySettlementRequest]) (*connect.Response[api.ApplySettlementResponse], error) {
	st, err := settlementFromAPI(req.Msg.GetSettlement())
	if err != nil {
		return nil, toConnectError(apiconnect.LedgerServiceApplySettlementProcedure, err)
	}
	if err := requireParticipant(ctx, st.Participants()); err != nil {
		return nil, err
	}

	stored, err := s.ledger.ApplySettlement(ctx, st)
	if err != nil {
		return nil, toConnectError(apiconnect.LedgerServiceApplySettlementProcedure, err)
	}
	return connect.NewResponse(&api.ApplySettlementResponse{Settlement: settlementToAPI(stored)}), nil
}

// UpdateSettlementStatus marks a settlement completed or pending.
func (s *LedgerService) UpdateSettlementStatus(ctx context.Context, req *connect.Request[api.UpdateSettlementStatusRequest]) (*connect.Response[api.UpdateSettlementStatusResponse], error) {
	if err := s.authorizeSettlement(ctx, apiconnect.LedgerServiceUpdateSettlementStatusProcedure, req.Msg.SettlementID); err != nil {
		return nil, err
	}
	st, err := s.ledger.UpdateSettlementStatus(ctx, req.Msg.SettlementID, models.SettlementStatus(req.Msg.Status))
	if err != nil {
		return nil, toConnectError(apiconnect.LedgerServiceUpdateSettlementStatusProcedure, err)
	}
	return connect.NewResponse(&api.UpdateSettlementStatusResponse{Settlement: settlementToAPI(st)}), nil
}

// GetSettlement returns the current state of a settlement.
func (s *LedgerService) GetSettlement(ctx context.Context, req *connect.Request[api.GetSettlementRequest]) (*connect.Response[api.GetSettlementResponse], error) {
	st, err := s.ledger.GetSettlement(ctx, req.Msg.SettlementID)
	if err != nil {
		return nil, toConnectError(apiconnect.LedgerServiceGetSettlementProcedure, err)
	}
	return connect.NewResponse(&api.GetSettlementResponse{Settlement: settlementToAPI(st)}), nil
}

// GetBalance returns what UserB owes UserA.
func (s *LedgerService) GetBalance(ctx context.Context, req *connect.Request[api.GetBalanceRequest]) (*connect.Response[api.GetBalanceResponse], error) {
	balance, err := s.ledger.GetBalance(ctx, req.Msg.UserA, req.Msg.UserB, req.Msg.Currency, readOptions(req.Msg.Strong)...)
	if err != nil {
		return nil, toConnectError(apiconnect.LedgerServiceGetBalanceProcedure, err)
	}
	currency := normalizeCurrency(req.Msg.Currency)
	return connect.NewResponse(&api.GetBalanceResponse{
		Currency: currency,
		Balance:  balance.Format(currency),
	}), nil
}

// GetGroupPositions returns the net position of every member of a group.
func (s *LedgerService) GetGroupPositions(ctx context.Context, req *connect.Request[api.GetGroupPositionsRequest]) (*connect.Response[api.GetGroupPositionsResponse], error) {
	positions, err := s.ledger.GetGroupPositions(ctx, req.Msg.GroupID, req.Msg.Currency, readOptions(req.Msg.Strong)...)
	if err != nil {
		return nil, toConnectError(apiconnect.LedgerServiceGetGroupPositionsProcedure, err)
	}
	currency := normalizeCurrency(req.Msg.Currency)
	return connect.NewResponse(&api.GetGroupPositionsResponse{
		Currency:  currency,
		Positions: positionsToAPI(positions, currency),
	}), nil
}

// GetSimplifiedPlan returns the transfers that settle a group.
func (s *LedgerService) GetSimplifiedPlan(ctx context.Context, req *connect.Request[api.GetSimplifiedPlanRequest]) (*connect.Response[api.GetSimplifiedPlanResponse], error) {
	plan, err := s.ledger.GetSimplifiedPlan(ctx, req.Msg.GroupID, req.Msg.Currency, readOptions(req.Msg.Strong)...)
	if err != nil {
		return nil, toConnectError(apiconnect.LedgerServiceGetSimplifiedPlanProcedure, err)
	}

	transfers := make([]*api.Transfer, len(plan.Transfers))
	for i, t := range plan.Transfers {
		transfers[i] = &api.Transfer{From: t.From, To: t.To, Amount: t.Amount.Format(plan.Currency)}
	}
	slog.Debug("Simplified plan", "group_id", req.Msg.GroupID, "currency", plan.Currency, "transfers", len(transfers))

	return connect.NewResponse(&api.GetSimplifiedPlanResponse{
		Currency:  plan.Currency,
		Transfers: transfers,
		Total:     plan.Total().Format(plan.Currency),
	}), nil
}

// GetUserSummary returns a user's balances with everyone they share costs with.
func (s *LedgerService) GetUserSummary(ctx context.Context, req *connect.Request[api.GetUserSummaryRequest]) (*connect.Response[api.GetUserSummaryResponse], error) {
	summary, err := s.ledger.GetUserSummary(ctx, req.Msg.UserID, req.Msg.Currency, readOptions(req.Msg.Strong)...)
	if err != nil {
		return nil, toConnectError(apiconnect.LedgerServiceGetUserSummaryProcedure, err)
	}

	currency := summary.Currency
	counterparties := make([]*api.Position, len(summary.Counterparties))
	for i, c := range summary.Counterparties {
		counterparties[i] = &api.Position{UserID: c.UserID, Amount: c.Amount.Format(currency)}
	}
	return connect.NewResponse(&api.GetUserSummaryResponse{
		UserID:         summary.UserID,
		Currency:       currency,
		Counterparties: counterparties,
		TotalOwed:      summary.TotalOwed.Format(currency),
		TotalOwing:     summary.TotalOwing.Format(currency),
		Net:            summary.Net().Format(currency),
	}), nil
}
