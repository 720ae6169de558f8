// Package api holds the request and response messages of the
// splitledger.v1.LedgerService RPC. Money amounts are decimal strings in major
// units ("12.50") and are interpreted in the currency carried next to them.
package api

// Share is one user's part of an expense.
type Share struct {
	UserID string `json:"userId"`
	Amount string `json:"amount"`
}

// Expense is a shared cost paid by one or more users.
type Expense struct {
	ID           string   `json:"id,omitempty"`
	Version      int      `json:"version,omitempty"`
	GroupID      string   `json:"groupId,omitempty"`
	Title        string   `json:"title,omitempty"`
	Category     string   `json:"category,omitempty"`
	Notes        string   `json:"notes,omitempty"`
	Amount       string   `json:"amount"`
	Currency     string   `json:"currency"`
	PaidBy       []*Share `json:"paidBy"`
	SplitBetween []*Share `json:"splitBetween"`
	CreatedAt    int64    `json:"createdAt,omitempty"`
}

// Settlement is a payment from one user to another.
type Settlement struct {
	ID         string `json:"id,omitempty"`
	GroupID    string `json:"groupId,omitempty"`
	FromUserID string `json:"fromUserId"`
	ToUserID   string `json:"toUserId"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
	Status     string `json:"status,omitempty"`
	Method     string `json:"method,omitempty"`
	Note       string `json:"note,omitempty"`
	CreatedAt  int64  `json:"createdAt,omitempty"`
}

// Position is a user's signed amount. Positive means the user is owed.
type Position struct {
	UserID string `json:"userId"`
	Amount string `json:"amount"`
}

// Transfer is one payment of a settlement plan.
type Transfer struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type ApplyExpenseRequest struct {
	Expense *Expense `json:"expense"`
}

func (r *ApplyExpenseRequest) GetExpense() *Expense {
	if r == nil {
		return nil
	}
	return r.Expense
}

type ApplyExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type AmendExpenseRequest struct {
	Expense *Expense `json:"expense"`
}

func (r *AmendExpenseRequest) GetExpense() *Expense {
	if r == nil {
		return nil
	}
	return r.Expense
}

type AmendExpenseResponse struct {
	Expense *Expense `json:"expense"`
}

type ReverseExpenseRequest struct {
	ExpenseID string `json:"expenseId"`
}

type ReverseExpenseResponse struct{}

type GetExpenseRequest struct {
	ExpenseID string `json:"expenseId"`
}

type GetExpenseResponse struct {
	Expense  *Expense `json:"expense"`
	Reversed bool     `json:"reversed,omitempty"`
}

type ApplySettlementRequest struct {
	Settlement *Settlement `json:"settlement"`
}

func (r *ApplySettlementRequest) GetSettlement() *Settlement {
	if r == nil {
		return nil
	}
	return r.Settlement
}

type ApplySettlementResponse struct {
	Settlement *Settlement `json:"settlement"`
}

type UpdateSettlementStatusRequest struct {
	SettlementID string `json:"settlementId"`
	Status       string `json:"status"`
}

type UpdateSettlementStatusResponse struct {
	Settlement *Settlement `json:"settlement"`
}

type GetSettlementRequest struct {
	SettlementID string `json:"settlementId"`
}

type GetSettlementResponse struct {
	Settlement *Settlement `json:"settlement"`
}

// GetBalanceRequest asks for the balance between two users. A positive
// balance means UserB owes UserA. Strong waits for writes in flight.
type GetBalanceRequest struct {
	UserA    string `json:"userA"`
	UserB    string `json:"userB"`
	Currency string `json:"currency"`
	Strong   bool   `json:"strong,omitempty"`
}

type GetBalanceResponse struct {
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
}

type GetGroupPositionsRequest struct {
	GroupID  string `json:"groupId"`
	Currency string `json:"currency"`
	Strong   bool   `json:"strong,omitempty"`
}

type GetGroupPositionsResponse struct {
	Currency  string      `json:"currency"`
	Positions []*Position `json:"positions"`
}

type GetSimplifiedPlanRequest struct {
	GroupID  string `json:"groupId"`
	Currency string `json:"currency"`
	Strong   bool   `json:"strong,omitempty"`
}

type GetSimplifiedPlanResponse struct {
	Currency  string      `json:"currency"`
	Transfers []*Transfer `json:"transfers"`
	Total     string      `json:"total"`
}

type GetUserSummaryRequest struct {
	UserID   string `json:"userId"`
	Currency string `json:"currency"`
	Strong   bool   `json:"strong,omitempty"`
}

type GetUserSummaryResponse struct {
	UserID         string      `json:"userId"`
	Currency       string      `json:"currency"`
	Counterparties []*Position `json:"counterparties"`
	TotalOwed      string      `json:"totalOwed"`
	TotalOwing     string      `json:"totalOwing"`
	Net            string      `json:"net"`
}

// Activity is one feed entry. Exactly one of Expense and Settlement is set,
// matching Kind.
type Activity struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	Kind       string      `json:"kind"`
	Expense    *Expense    `json:"expense,omitempty"`
	Settlement *Settlement `json:"settlement,omitempty"`
	RecordedAt int64       `json:"recordedAt"`
}

// ListActivityRequest asks for the feed of a group, or of a pair of users
// when GroupID is empty. Kind ("expense" or "settlement") and Category
// narrow the feed.
type ListActivityRequest struct {
	GroupID  string `json:"groupId,omitempty"`
	UserA    string `json:"userA,omitempty"`
	UserB    string `json:"userB,omitempty"`
	Currency string `json:"currency"`
	Kind     string `json:"kind,omitempty"`
	Category string `json:"category,omitempty"`
}

type ListActivityResponse struct {
	Activities []*Activity `json:"activities"`
}

type ListUserActivityRequest struct {
	UserID   string `json:"userId"`
	Currency string `json:"currency"`
	Kind     string `json:"kind,omitempty"`
	Category string `json:"category,omitempty"`
}

type ListUserActivityResponse struct {
	Activities []*Activity `json:"activities"`
}
