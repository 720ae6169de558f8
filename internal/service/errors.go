package service

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/ledger"
	"github.com/mmynk/splitledger/internal/money"
)

// errInvalidRequest marks malformed requests caught before the ledger sees them.
var errInvalidRequest = errors.New("invalid request")

// toConnectError maps ledger errors to Connect codes.
func toConnectError(procedure string, err error) error {
	code := connect.CodeInternal
	switch {
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	case errors.Is(err, ledger.ErrUnbalancedInput):
		code = connect.CodeDataLoss
	case errors.Is(err, ledger.ErrNotFound):
		code = connect.CodeNotFound
	case errors.Is(err, ledger.ErrAlreadyExists):
		code = connect.CodeAlreadyExists
	case errors.Is(err, ledger.ErrAlreadyReversed):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, ledger.ErrConcurrentModification):
		code = connect.CodeAborted
	case errors.Is(err, errInvalidRequest),
		errors.Is(err, ledger.ErrInvalidExpense),
		errors.Is(err, ledger.ErrInvalidSettlement),
		errors.Is(err, ledger.ErrInvalidScope),
		errors.Is(err, ledger.ErrSplitSumMismatch),
		errors.Is(err, ledger.ErrScopeCurrencyMismatch),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, money.ErrInvalidCurrency):
		code = connect.CodeInvalidArgument
	}

	switch code {
	case connect.CodeInternal, connect.CodeDataLoss:
		slog.Error("Ledger request failed", "procedure", procedure, "error", err)
	}
	return connect.NewError(code, err)
}
