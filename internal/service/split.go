package service

import (
	"context"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/calculator"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/pkg/api"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
)

// CalculateSplit handles bill split calculation. Nothing is recorded; the
// returned shares can be sent as the split of an expense.
func (s *LedgerService) CalculateSplit(ctx context.Context, req *connect.Request[api.CalculateSplitRequest]) (*connect.Response[api.CalculateSplitResponse], error) {
	currency, err := money.NormalizeCurrency(req.Msg.Currency)
	if err != nil {
		return nil, toConnectError(apiconnect.LedgerServiceCalculateSplitProcedure, err)
	}
	total, err := money.Parse(req.Msg.Total, currency)
	if err != nil {
		return nil, toConnectError(apiconnect.LedgerServiceCalculateSplitProcedure, fmt.Errorf("total: %w", err))
	}
	subtotal, err := money.Parse(req.Msg.Subtotal, currency)
	if err != nil {
		return nil, toConnectError(apiconnect.LedgerServiceCalculateSplitProcedure, fmt.Errorf("subtotal: %w", err))
	}

	items := make([]calculator.Item, len(req.Msg.Items))
	for i, item := range req.Msg.Items {
		if item == nil {
			return nil, toConnectError(apiconnect.LedgerServiceCalculateSplitProcedure, fmt.Errorf("%w: item %d is empty", errInvalidRequest, i+1))
		}
		amount, err := money.Parse(item.Amount, currency)
		if err != nil {
			return nil, toConnectError(apiconnect.LedgerServiceCalculateSplitProcedure, fmt.Errorf("item %q: %w", item.Description, err))
		}
		slog.Debug("Processing item",
			"index", i+1,
			"description", item.Description,
			"amount", amount,
			"participants", item.ParticipantIDs,
		)
		items[i] = calculator.Item{
			Description: item.Description,
			Amount:      amount,
			AssignedTo:  item.ParticipantIDs,
		}
	}

	splits, err := calculator.CalculateSplit(items, total, subtotal, req.Msg.ParticipantIDs)
	if err != nil {
		slog.Warn("CalculateSplit failed", "error", err)
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	out := make(map[string]*api.PersonSplit, len(splits))
	for person, split := range splits {
		out[person] = &api.PersonSplit{
			Subtotal: split.Subtotal.Format(currency),
			Tax:      split.Tax.Format(currency),
			Total:    split.Total.Format(currency),
		}
	}

	return connect.NewResponse(&api.CalculateSplitResponse{
		Currency:  currency,
		Splits:    out,
		Shares:    formatShares(calculator.SplitShares(splits), currency),
		TaxAmount: (total - subtotal).Format(currency),
		Subtotal:  subtotal.Format(currency),
	}), nil
}
