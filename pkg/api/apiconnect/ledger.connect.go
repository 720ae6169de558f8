// Package apiconnect serves and calls the LedgerService messages of package
// api over Connect. Messages are encoded as JSON.
package apiconnect

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/pkg/api"
)

// LedgerServiceName is the fully-qualified name of the service.
const LedgerServiceName = "splitledger.v1.LedgerService"

// Procedure paths, also seen by interceptors as Spec().Procedure.
const (
	LedgerServiceApplyExpenseProcedure           = "/splitledger.v1.LedgerService/ApplyExpense"
	LedgerServiceAmendExpenseProcedure           = "/splitledger.v1.LedgerService/AmendExpense"
	LedgerServiceReverseExpenseProcedure         = "/splitledger.v1.LedgerService/ReverseExpense"
	LedgerServiceGetExpenseProcedure             = "/splitledger.v1.LedgerService/GetExpense"
	LedgerServiceApplySettlementProcedure        = "/splitledger.v1.LedgerService/ApplySettlement"
	LedgerServiceUpdateSettlementStatusProcedure = "/splitledger.v1.LedgerService/UpdateSettlementStatus"
	LedgerServiceGetSettlementProcedure          = "/splitledger.v1.LedgerService/GetSettlement"
	LedgerServiceGetBalanceProcedure             = "/splitledger.v1.LedgerService/GetBalance"
	LedgerServiceGetGroupPositionsProcedure      = "/splitledger.v1.LedgerService/GetGroupPositions"
	LedgerServiceGetSimplifiedPlanProcedure      = "/splitledger.v1.LedgerService/GetSimplifiedPlan"
	LedgerServiceGetUserSummaryProcedure         = "/splitledger.v1.LedgerService/GetUserSummary"
	LedgerServiceListActivityProcedure           = "/splitledger.v1.LedgerService/ListActivity"
	LedgerServiceListUserActivityProcedure       = "/splitledger.v1.LedgerService/ListUserActivity"
	LedgerServiceCalculateSplitProcedure         = "/splitledger.v1.LedgerService/CalculateSplit"
)

// LedgerServiceClient calls the LedgerService.
type LedgerServiceClient interface {
	ApplyExpense(context.Context, *connect.Request[api.ApplyExpenseRequest]) (*connect.Response[api.ApplyExpenseResponse], error)
	AmendExpense(context.Context, *connect.Request[api.AmendExpenseRequest]) (*connect.Response[api.AmendExpenseResponse], error)
	ReverseExpense(context.Context, *connect.Request[api.ReverseExpenseRequest]) (*connect.Response[api.ReverseExpenseResponse], error)
	GetExpense(context.Context, *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error)
	ApplySettlement(context.Context, *connect.Request[api.ApplySettlementRequest]) (*connect.Response[api.ApplySettlementResponse], error)
	UpdateSettlementStatus(context.Context, *connect.Request[api.UpdateSettlementStatusRequest]) (*connect.Response[api.UpdateSettlementStatusResponse], error)
	GetSettlement(context.Context, *connect.Request[api.GetSettlementRequest]) (*connect.Response[api.GetSettlementResponse], error)
	GetBalance(context.Context, *connect.Request[api.GetBalanceRequest]) (*connect.Response[api.GetBalanceResponse], error)
	GetGroupPositions(context.Context, *connect.Request[api.GetGroupPositionsRequest]) (*connect.Response[api.GetGroupPositionsResponse], error)
	GetSimplifiedPlan(context.Context, *connect.Request[api.GetSimplifiedPlanRequest]) (*connect.Response[api.GetSimplifiedPlanResponse], error)
	GetUserSummary(context.Context, *connect.Request[api.GetUserSummaryRequest]) (*connect.Response[api.GetUserSummaryResponse], error)
	ListActivity(context.Context, *connect.Request[api.ListActivityRequest]) (*connect.Response[api.ListActivityResponse], error)
	ListUserActivity(context.Context, *connect.Request[api.ListUserActivityRequest]) (*connect.Response[api.ListUserActivityResponse], error)
	CalculateSplit(context.Context, *connect.Request[api.CalculateSplitRequest]) (*connect.Response[api.CalculateSplitResponse], error)
}

// NewLedgerServiceClient returns a client for the server at baseURL, for
// example http://localhost:8080. Requests use the JSON codec unless opts
// override it.
func NewLedgerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) LedgerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{connect.WithCodec(Codec{})}, opts...)
	return &ledgerServiceClient{
		applyExpense:           connect.NewClient[api.ApplyExpenseRequest, api.ApplyExpenseResponse](httpClient, baseURL+LedgerServiceApplyExpenseProcedure, opts...),
		amendExpense:           connect.NewClient[api.AmendExpenseRequest, api.AmendExpenseResponse](httpClient, baseURL+LedgerServiceAmendExpenseProcedure, opts...),
		reverseExpense:         connect.NewClient[api.ReverseExpenseRequest, api.ReverseExpenseResponse](httpClient, baseURL+LedgerServiceReverseExpenseProcedure, opts...),
		getExpense:             connect.NewClient[api.GetExpenseRequest, api.GetExpenseResponse](httpClient, baseURL+LedgerServiceGetExpenseProcedure, opts...),
		applySettlement:        connect.NewClient[api.ApplySettlementRequest, api.ApplySettlementResponse](httpClient, baseURL+LedgerServiceApplySettlementProcedure, opts...),
		updateSettlementStatus: connect.NewClient[api.UpdateSettlementStatusRequest, api.UpdateSettlementStatusResponse](httpClient, baseURL+LedgerServiceUpdateSettlementStatusProcedure, opts...),
		getSettlement:          connect.NewClient[api.GetSettlementRequest, api.GetSettlementResponse](httpClient, baseURL+LedgerServiceGetSettlementProcedure, opts...),
		getBalance:             connect.NewClient[api.GetBalanceRequest, api.GetBalanceResponse](httpClient, baseURL+LedgerServiceGetBalanceProcedure, opts...),
		getGroupPositions:      connect.NewClient[api.GetGroupPositionsRequest, api.GetGroupPositionsResponse](httpClient, baseURL+LedgerServiceGetGroupPositionsProcedure, opts...),
		getSimplifiedPlan:      connect.NewClient[api.GetSimplifiedPlanRequest, api.GetSimplifiedPlanResponse](httpClient, baseURL+LedgerServiceGetSimplifiedPlanProcedure, opts...),
		getUserSummary:         connect.NewClient[api.GetUserSummaryRequest, api.GetUserSummaryResponse](httpClient, baseURL+LedgerServiceGetUserSummaryProcedure, opts...),
		listActivity:           connect.NewClient[api.ListActivityRequest, api.ListActivityResponse](httpClient, baseURL+LedgerServiceListActivityProcedure, opts...),
		listUserActivity:       connect.NewClient[api.ListUserActivityRequest, api.ListUserActivityResponse](httpClient, baseURL+LedgerServiceListUserActivityProcedure, opts...),
		calculateSplit:         connect.NewClient[api.CalculateSplitRequest, api.CalculateSplitResponse](httpClient, baseURL+LedgerServiceCalculateSplitProcedure, opts...),
	}
}

type ledgerServiceClient struct {
	applyExpense           *connect.Client[api.ApplyExpenseRequest, api.ApplyExpenseResponse]
	amendExpense           *connect.Client[api.AmendExpenseRequest, api.AmendExpenseResponse]
	reverseExpense         *connect.Client[api.ReverseExpenseRequest, api.ReverseExpenseResponse]
	getExpense             *connect.Client[api.GetExpenseRequest, api.GetExpenseResponse]
	applySettlement        *connect.Client[api.ApplySettlementRequest, api.ApplySettlementResponse]
	updateSettlementStatus *connect.Client[api.UpdateSettlementStatusRequest, api.UpdateSettlementStatusResponse]
	getSettlement          *connect.Client[api.GetSettlementRequest, api.GetSettlementResponse]
	getBalance             *connect.Client[api.GetBalanceRequest, api.GetBalanceResponse]
	getGroupPositions      *connect.Client[api.GetGroupPositionsRequest, api.GetGroupPositionsResponse]
	getSimplifiedPlan      *connect.Client[api.GetSimplifiedPlanRequest, api.GetSimplifiedPlanResponse]
	getUserSummary         *connect.Client[api.GetUserSummaryRequest, api.GetUserSummaryResponse]
	listActivity           *connect.Client[api.ListActivityRequest, api.ListActivityResponse]
	listUserActivity       *connect.Client[api.ListUserActivityRequest, api.ListUserActivityResponse]
	calculateSplit         *connect.Client[api.CalculateSplitRequest, api.CalculateSplitResponse]
}

func (c *ledgerServiceClient) ApplyExpense(ctx context.Context, req *connect.Request[api.ApplyExpenseRequest]) (*connect.Response[api.ApplyExpenseResponse], error) {
	return c.applyExpense.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) AmendExpense(ctx context.Context, req *connect.Request[api.AmendExpenseRequest]) (*connect.Response[api.AmendExpenseResponse], error) {
	return c.amendExpense.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) ReverseExpense(ctx context.Context, req *connect.Request[api.ReverseExpenseRequest]) (*connect.Response[api.ReverseExpenseResponse], error) {
	return c.reverseExpense.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	return c.getExpense.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) ApplySettlement(ctx context.Context, req *connect.Request[api.ApplySettlementRequest]) (*connect.Response[api.ApplySettlementResponse], error) {
	return c.applySettlement.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) UpdateSettlementStatus(ctx context.Context, req *connect.Request[api.UpdateSettlementStatusRequest]) (*connect.Response[api.UpdateSettlementStatusResponse], error) {
	return c.updateSettlementStatus.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) GetSettlement(ctx context.Context, req *connect.Request[api.GetSettlementRequest]) (*connect.Response[api.GetSettlementResponse], error) {
	return c.getSettlement.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) GetBalance(ctx context.Context, req *connect.Request[api.GetBalanceRequest]) (*connect.Response[api.GetBalanceResponse], error) {
	return c.getBalance.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) GetGroupPositions(ctx context.Context, req *connect.Request[api.GetGroupPositionsRequest]) (*connect.Response[api.GetGroupPositionsResponse], error) {
	return c.getGroupPositions.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) GetSimplifiedPlan(ctx context.Context, req *connect.Request[api.GetSimplifiedPlanRequest]) (*connect.Response[api.GetSimplifiedPlanResponse], error) {
	return c.getSimplifiedPlan.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) GetUserSummary(ctx context.Context, req *connect.Request[api.GetUserSummaryRequest]) (*connect.Response[api.GetUserSummaryResponse], error) {
	return c.getUserSummary.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) ListActivity(ctx context.Context, req *connect.Request[api.ListActivityRequest]) (*connect.Response[api.ListActivityResponse], error) {
	return c.listActivity.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) ListUserActivity(ctx context.Context, req *connect.Request[api.ListUserActivityRequest]) (*connect.Response[api.ListUserActivityResponse], error) {
	return c.listUserActivity.CallUnary(ctx, req)
}

func (c *ledgerServiceClient) CalculateSplit(ctx context.Context, req *connect.Request[api.CalculateSplitRequest]) (*connect.Response[api.CalculateSplitResponse], error) {
	return c.calculateSplit.CallUnary(ctx, req)
}

// LedgerServiceHandler implements the LedgerService.
type LedgerServiceHandler interface {
	ApplyExpense(context.Context, *connect.Request[api.ApplyExpenseRequest]) (*connect.Response[api.ApplyExpenseResponse], error)
	AmendExpense(context.Context, *connect.Request[api.AmendExpenseRequest]) (*connect.Response[api.AmendExpenseResponse], error)
	ReverseExpense(context.Context, *connect.Request[api.ReverseExpenseRequest]) (*connect.Response[api.ReverseExpenseResponse], error)
	GetExpense(context.Context, *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error)
	ApplySettlement(context.Context, *connect.Request[api.ApplySettlementRequest]) (*connect.Response[api.ApplySettlementResponse], error)
	UpdateSettlementStatus(context.Context, *connect.Request[api.UpdateSettlementStatusRequest]) (*connect.Response[api.UpdateSettlementStatusResponse], error)
	GetSettlement(context.Context, *connect.Request[api.GetSettlementRequest]) (*connect.Response[api.GetSettlementResponse], error)
	GetBalance(context.Context, *connect.Request[api.GetBalanceRequest]) (*connect.Response[api.GetBalanceResponse], error)
	GetGroupPositions(context.Context, *connect.Request[api.GetGroupPositionsRequest]) (*connect.Response[api.GetGroupPositionsResponse], error)
	GetSimplifiedPlan(context.Context, *connect.Request[api.GetSimplifiedPlanRequest]) (*connect.Response[api.GetSimplifiedPlanResponse], error)
	GetUserSummary(context.Context, *connect.Request[api.GetUserSummaryRequest]) (*connect.Response[api.GetUserSummaryResponse], error)
	ListActivity(context.Context, *connect.Request[api.ListActivityRequest]) (*connect.Response[api.ListActivityResponse], error)
	ListUserActivity(context.Context, *connect.Request[api.ListUserActivityRequest]) (*connect.Response[api.ListUserActivityResponse], error)
	CalculateSplit(context.Context, *connect.Request[api.CalculateSplitRequest]) (*connect.Response[api.CalculateSplitResponse], error)
}

// NewLedgerServiceHandler returns the path prefix to mount the service on and
// the handler serving every RPC below it. Unknown procedures get a 404.
func NewLedgerServiceHandler(svc LedgerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec{})}, opts...)

	mux := http.NewServeMux()
	mux.Handle(LedgerServiceApplyExpenseProcedure, connect.NewUnaryHandler(LedgerServiceApplyExpenseProcedure, svc.ApplyExpense, opts...))
	mux.Handle(LedgerServiceAmendExpenseProcedure, connect.NewUnaryHandler(LedgerServiceAmendExpenseProcedure, svc.AmendExpense, opts...))
	mux.Handle(LedgerServiceReverseExpenseProcedure, connect.NewUnaryHandler(LedgerServiceReverseExpenseProcedure, svc.ReverseExpense, opts...))
	mux.Handle(LedgerServiceGetExpenseProcedure, connect.NewUnaryHandler(LedgerServiceGetExpenseProcedure, svc.GetExpense, opts...))
	mux.Handle(LedgerServiceApplySettlementProcedure, connect.NewUnaryHandler(LedgerServiceApplySettlementProcedure, svc.ApplySettlement, opts...))
	mux.Handle(LedgerServiceUpdateSettlementStatusProcedure, connect.NewUnaryHandler(LedgerServiceUpdateSettlementStatusProcedure, svc.UpdateSettlementStatus, opts...))
	mux.Handle(LedgerServiceGetSettlementProcedure, connect.NewUnaryHandler(LedgerServiceGetSettlementProcedure, svc.GetSettlement, opts...))
	mux.Handle(LedgerServiceGetBalanceProcedure, connect.NewUnaryHandler(LedgerServiceGetBalanceProcedure, svc.GetBalance, opts...))
	mux.Handle(LedgerServiceGetGroupPositionsProcedure, connect.NewUnaryHandler(LedgerServiceGetGroupPositionsProcedure, svc.GetGroupPositions, opts...))
	mux.Handle(LedgerServiceGetSimplifiedPlanProcedure, connect.NewUnaryHandler(LedgerServiceGetSimplifiedPlanProcedure, svc.GetSimplifiedPlan, opts...))
	mux.Handle(LedgerServiceGetUserSummaryProcedure, connect.NewUnaryHandler(LedgerServiceGetUserSummaryProcedure, svc.GetUserSummary, opts...))
	mux.Handle(LedgerServiceListActivityProcedure, connect.NewUnaryHandler(LedgerServiceListActivityProcedure, svc.ListActivity, opts...))
	mux.Handle(LedgerServiceListUserActivityProcedure, connect.NewUnaryHandler(LedgerServiceListUserActivityProcedure, svc.ListUserActivity, opts...))
	mux.Handle(LedgerServiceCalculateSplitProcedure, connect.NewUnaryHandler(LedgerServiceCalculateSplitProcedure, svc.CalculateSplit, opts...))
	return "/" + LedgerServiceName + "/", mux
}

// UnimplementedLedgerServiceHandler answers CodeUnimplemented. Embed it to
// implement the service one RPC at a time.
type UnimplementedLedgerServiceHandler struct{}

func unimplemented(method string) error {
	return connect.NewError(connect.CodeUnimplemented, errors.New(LedgerServiceName+"."+method+" is not implemented"))
}

func (UnimplementedLedgerServiceHandler) ApplyExpense(context.Context, *connect.Request[api.ApplyExpenseRequest]) (*connect.Response[api.ApplyExpenseResponse], error) {
	return nil, unimplemented("ApplyExpense")
}

func (UnimplementedLedgerServiceHandler) AmendExpense(context.Context, *connect.Request[api.AmendExpenseRequest]) (*connect.Response[api.AmendExpenseResponse], error) {
	return nil, unimplemented("AmendExpense")
}

func (UnimplementedLedgerServiceHandler) ReverseExpense(context.Context, *connect.Request[api.ReverseExpenseRequest]) (*connect.Response[api.ReverseExpenseResponse], error) {
	return nil, unimplemented("ReverseExpense")
}

func (UnimplementedLedgerServiceHandler) GetExpense(context.Context, *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	return nil, unimplemented("GetExpense")
}

func (UnimplementedLedgerServiceHandler) ApplySettlement(context.Context, *connect.Request[api.ApplySettlementRequest]) (*connect.Response[api.ApplySettlementResponse], error) {
	return nil, unimplemented("ApplySettlement")
}

func (UnimplementedLedgerServiceHandler) UpdateSettlementStatus(context.Context, *connect.Request[api.UpdateSettlementStatusRequest]) (*connect.Response[api.UpdateSettlementStatusResponse], error) {
	return nil, unimplemented("UpdateSettlementStatus")
}

func (UnimplementedLedgerServiceHandler) GetSettlement(context.Context, *connect.Request[api.GetSettlementRequest]) (*connect.Response[api.GetSettlementResponse], error) {
	return nil, unimplemented("GetSettlement")
}

func (UnimplementedLedgerServiceHandler) GetBalance(context.Context, *connect.Request[api.GetBalanceRequest]) (*connect.Response[api.GetBalanceResponse], error) {
	return nil, unimplemented("GetBalance")
}

func (UnimplementedLedgerServiceHandler) GetGroupPositions(context.Context, *connect.Request[api.GetGroupPositionsRequest]) (*connect.Response[api.GetGroupPositionsResponse], error) {
	return nil, unimplemented("GetGroupPositions")
}

func (UnimplementedLedgerServiceHandler) GetSimplifiedPlan(context.Context, *connect.Request[api.GetSimplifiedPlanRequest]) (*connect.Response[api.GetSimplifiedPlanResponse], error) {
	return nil, unimplemented("GetSimplifiedPlan")
}

func (UnimplementedLedgerServiceHandler) GetUserSummary(context.Context, *connect.Request[api.GetUserSummaryRequest]) (*connect.Response[api.GetUserSummaryResponse], error) {
	return nil, unimplemented("GetUserSummary")
}

func (UnimplementedLedgerServiceHandler) ListActivity(context.Context, *connect.Request[api.ListActivityRequest]) (*connect.Response[api.ListActivityResponse], error) {
	return nil, unimplemented("ListActivity")
}

func (UnimplementedLedgerServiceHandler) ListUserActivity(context.Context, *connect.Request[api.ListUserActivityRequest]) (*connect.Response[api.ListUserActivityResponse], error) {
	return nil, unimplemented("ListUserActivity")
}

func (UnimplementedLedgerServiceHandler) CalculateSplit(context.Context, *connect.Request[api.CalculateSplitRequest]) (*connect.Response[api.CalculateSplitResponse], error) {
	return nil, unimplemented("CalculateSplit")
}
