package service

import (
	"context"

	"connectrpc.com/connect"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/pkg/api"
	"github.com/mmynk/splitledger/pkg/api/apiconnect"
)

// ListActivity returns the feed of a group or of a pair of users.
func (s *LedgerService) ListActivity(ctx context.Context, req *connect.Request[api.ListActivityRequest]) (*connect.Response[api.ListActivityResponse], error) {
	scope := models.GroupScope(req.Msg.GroupID)
	if req.Msg.GroupID == "" {
		scope = models.PairScope(req.Msg.UserA, req.Msg.UserB)
	}
	filter := models.ActivityFilter{
		Kind:     models.FactKind(req.Msg.Kind),
		Category: models.Category(req.Msg.Category),
	}

	feed, err := s.ledger.ListActivity(ctx, scope, req.Msg.Currency, filter)
	if err != nil {
		return nil, toConnectError(apiconnect.LedgerServiceListActivityProcedure, err)
	}
	return connect.NewResponse(&api.ListActivityResponse{Activities: activitiesToAPI(feed)}), nil
}

// ListUserActivity returns every expense and settlement entry involving a user.
func (s *LedgerService) ListUserActivity(ctx context.Context, req *connect.Request[api.ListUserActivityRequest]) (*connect.Response[api.ListUserActivityResponse], error) {
	filter := models.ActivityFilter{
		Kind:     models.FactKind(req.Msg.Kind),
		Category: models.Category(req.Msg.Category),
	}

	feed, err := s.ledger.ListUserActivity(ctx, req.Msg.UserID, req.Msg.Currency, filter)
	if err != nil {
		return nil, toConnectError(apiconnect.LedgerServiceListUserActivityProcedure, err)
	}
	return connect.NewResponse(&api.ListUserActivityResponse{Activities: activitiesToAPI(feed)}), nil
}
