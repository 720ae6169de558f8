package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/mmynk/splitledger/internal/cache"
	"github.com/mmynk/splitledger/internal/events"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/money"
	"github.com/mmynk/splitledger/internal/storage"
	"github.com/mmynk/splitledger/internal/storage/memory"
	"github.com/mmynk/splitledger/internal/storage/sqlite"
)

// recorder collects published events.
type recorder struct {
	mu     sync.Mutex
	events []events.ScopeChanged
}

func (r *recorder) Publish(_ context.Context, evts ...events.ScopeChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evts...)
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// conflictingStore reports a version conflict for the first n appends.
type conflictingStore struct {
	storage.Store
	mu sync.Mutex
	n  int
}

func (c *conflictingStore) AppendFacts(ctx context.Context, home models.Scope, expected storage.Version, facts ...models.Fact) (storage.Version, error) {
	c.mu.Lock()
	if c.n > 0 {
		c.n--
		c.mu.Unlock()
		return 0, fmt.Errorf("%w: injected", storage.ErrVersionConflict)
	}
	c.mu.Unlock()
	return c.Store.AppendFacts(ctx, home, expected, facts...)
}

// gatedStore blocks appends until the gate is closed.
type gatedStore struct {
	storage.Store
	entered chan struct{}
	gate    chan struct{}
}

func (g *gatedStore) AppendFacts(ctx context.Context, home models.Scope, expected storage.Version, facts ...models.Fact) (storage.Version, error) {
	if g.gate != nil {
		g.entered <- struct{}{}
		<-g.gate
	}
	return g.Store.AppendFacts(ctx, home, expected, facts...)
}

func newTestService(t *testing.T, opts ...Option) (*Service, storage.Store) {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { store.Close() })
	return New(store, opts...), store
}

func dinner(group string) *models.Expense {
	return &models.Expense{
		GroupID:  group,
		Title:    "Dinner",
		Category: models.CategoryFood,
		Amount:   9000,
		Currency: "usd",
		PaidBy:   []models.Share{{UserID: "alice", Amount: 9000}},
		SplitBetween: []models.Share{
			{UserID: "alice", Amount: 3000},
			{UserID: "bob", Amount: 3000},
			{UserID: "carol", Amount: 3000},
		},
	}
}

func friendExpense(payer, other string, amount money.Amount) *models.Expense {
	return &models.Expense{
		Title:    "Lunch",
		Amount:   amount,
		Currency: "USD",
		PaidBy:   []models.Share{{UserID: payer, Amount: amount}},
		SplitBetween: []models.Share{
			{UserID: payer, Amount: amount / 2},
			{UserID: other, Amount: amount - amount/2},
		},
	}
}

func assertPositions(t *testing.T, got, want map[string]money.Amount) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("positions = %v, want %v", got, want)
	}
	for user, amount := range want {
		if got[user] != amount {
			t.Fatalf("positions = %v, want %v", got, want)
		}
	}
}

func TestApplyExpenseAndPlan(t *testing.T) {
	pub := &recorder{}
	svc, _ := newTestService(t, WithPublisher(pub), WithSnapshots(cache.NewMemory()))
	ctx := context.Background()

	stored, err := svc.ApplyExpense(ctx, dinner("trip"))
	if err != nil {
		t.Fatalf("ApplyExpense failed: %v", err)
	}
	if stored.ID == "" || stored.Version != 1 || stored.CreatedAt == 0 {
		t.Errorf("expected ID, version and timestamp to be assigned, got %+v", stored)
	}
	if stored.Currency != "USD" {
		t.Errorf("currency not normalized: %q", stored.Currency)
	}

	positions, err := svc.GetGroupPositions(ctx, "trip", "USD")
	if err != nil {
		t.Fatalf("GetGroupPositions failed: %v", err)
	}
	assertPositions(t, positions, map[string]money.Amount{"alice": 6000, "bob": -3000, "carol": -3000})

	plan, err := svc.GetSimplifiedPlan(ctx, "trip", "USD")
	if err != nil {
		t.Fatalf("GetSimplifiedPlan failed: %v", err)
	}
	want := []models.Transfer{
		{From: "bob", To: "alice", Amount: 3000},
		{From: "carol", To: "alice", Amount: 3000},
	}
	if !reflect.DeepEqual(plan.Transfers, want) || plan.Currency != "USD" {
		t.Errorf("plan = %+v, want %v", plan, want)
	}

	if got := pub.types(); !reflect.DeepEqual(got, []events.Type{events.ExpenseApplied}) {
		t.Errorf("published %v", got)
	}
	evt := pub.events[0]
	if evt.Scope != "group:trip" || evt.Version != 1 || evt.EntityID != stored.ID {
		t.Errorf("unexpected event %+v", evt)
	}
	wantScopes := []string{"group:trip", "pair:alice:bob", "pair:alice:carol", "pair:bob:carol"}
	if !reflect.DeepEqual(evt.AffectedScopes, wantScopes) {
		t.Errorf("affected scopes = %v, want %v", evt.AffectedScopes, wantScopes)
	}
}

func TestApplyExpenseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(e *models.Expense)
		wantErr error
	}{
		{"split does not add up", func(e *models.Expense) { e.SplitBetween[0].Amount = 2999 }, ErrSplitSumMismatch},
		{"paid does not add up", func(e *models.Expense) { e.PaidBy[0].Amount = 8000 }, ErrSplitSumMismatch},
		{"zero amount", func(e *models.Expense) { e.Amount = 0 }, ErrInvalidExpense},
		{"bad currency", func(e *models.Expense) { e.Currency = "dollars" }, money.ErrInvalidCurrency},
		{"negative share", func(e *models.Expense) {
			e.SplitBetween = []models.Share{{UserID: "alice", Amount: 12000}, {UserID: "bob", Amount: -3000}}
		}, ErrInvalidExpense},
		{"duplicate participant", func(e *models.Expense) {
			e.SplitBetween = []models.Share{{UserID: "bob", Amount: 4500}, {UserID: "bob", Amount: 4500}}
		}, ErrInvalidExpense},
		{"unknown category", func(e *models.Expense) { e.Category = "gambling" }, ErrInvalidExpense},
		{"colon in user id", func(e *models.Expense) { e.PaidBy[0].UserID = "ali:ce" }, ErrInvalidExpense},
		{"three people without a group", func(e *models.Expense) { e.GroupID = "" }, ErrInvalidScope},
		{"payers wrap around", func(e *models.Expense) {
			e.Amount = 1
			e.PaidBy = []models.Share{
				{UserID: "alice", Amount: math.MaxInt64},
				{UserID: "bob", Amount: math.MaxInt64},
				{UserID: "carol", Amount: 3},
			}
			e.SplitBetween = []models.Share{{UserID: "dave", Amount: 1}}
		}, money.ErrOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store := newTestService(t)
			e := dinner("trip")
			tt.mutate(e)

			_, err := svc.ApplyExpense(context.Background(), e)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ApplyExpense() error = %v, want %v", err, tt.wantErr)
			}

			v, err := store.CurrentVersion(context.Background(), models.GroupScope("trip"))
			if err != nil {
				t.Fatalf("CurrentVersion failed: %v", err)
			}
			if v != 0 {
				t.Errorf("rejected expense was appended (version %d)", v)
			}
		})
	}
}

func TestPositionsNeverWrap(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	huge := money.Amount(math.MaxInt64 - 10)
	yacht := &models.Expense{
		GroupID:      "trip",
		Title:        "Yacht",
		Amount:       huge,
		Currency:     "USD",
		PaidBy:       []models.Share{{UserID: "alice", Amount: huge}},
		SplitBetween: []models.Share{{UserID: "bob", Amount: huge}},
	}
	if _, err := svc.ApplyExpense(ctx, yacht); err != nil {
		t.Fatalf("ApplyExpense failed: %v", err)
	}

	more := yacht.Clone()
	more.Amount = 100
	more.PaidBy = []models.Share{{UserID: "alice", Amount: 100}}
	more.SplitBetween = []models.Share{{UserID: "bob", Amount: 100}}
	if _, err := svc.ApplyExpense(ctx, more); !errors.Is(err, money.ErrOverflow) {
		t.Fatalf("ApplyExpense() error = %v, want ErrOverflow", err)
	}

	v, err := store.CurrentVersion(ctx, models.GroupScope("trip"))
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if v != 1 {
		t.Errorf("overflowing expense was appended (version %d)", v)
	}

	positions, err := svc.GetGroupPositions(ctx, "trip", "USD")
	if err != nil {
		t.Fatalf("GetGroupPositions failed: %v", err)
	}
	assertPositions(t, positions, map[string]money.Amount{"alice": huge, "bob": -huge})
}

func TestActivityFeeds(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	stored, err := svc.ApplyExpense(ctx, dinner("trip"))
	if err != nil {
		t.Fatalf("ApplyExpense failed: %v", err)
	}
	amended := stored.Clone()
	amended.Title = "Late dinner"
	if _, err := svc.AmendExpense(ctx, amended); err != nil {
		t.Fatalf("AmendExpense failed: %v", err)
	}
	st, err := svc.ApplySettlement(ctx, &models.Settlement{FromUserID: "bob", ToUserID: "alice", Amount: 3000, Currency: "USD"})
	if err != nil {
		t.Fatalf("ApplySettlement failed: %v", err)
	}
	if _, err := svc.UpdateSettlementStatus(ctx, st.ID, models.SettlementCompleted); err != nil {
		t.Fatalf("UpdateSettlementStatus failed: %v", err)
	}
	if _, err := svc.ApplyExpense(ctx, friendExpense("carol", "dave", 1000)); err != nil {
		t.Fatalf("ApplyExpense failed: %v", err)
	}

	types := func(feed []models.Activity) []models.ActivityType {
		out := make([]models.ActivityType, len(feed))
		for i, a := range feed {
			out[i] = a.Type
		}
		return out
	}

	tests := []struct {
		name string
		list func() ([]models.Activity, error)
		want []models.ActivityType
	}{
		{
			name: "group",
			list: func() ([]models.Activity, error) {
				return svc.ListActivity(ctx, models.GroupScope("trip"), "usd", models.ActivityFilter{})
			},
			want: []models.ActivityType{models.ActivityExpenseAmended, models.ActivityExpenseAdded},
		},
		{
			name: "pair sees group expense and settlement",
			list: func() ([]models.Activity, error) {
				return svc.ListActivity(ctx, models.PairScope("bob", "alice"), "USD", models.ActivityFilter{})
			},
			want: []models.ActivityType{
				models.ActivitySettlementCompleted,
				models.ActivitySettlementRecorded,
				models.ActivityExpenseAmended,
				models.ActivityExpenseAdded,
			},
		},
		{
			name: "user settlements",
			list: func() ([]models.Activity, error) {
				return svc.ListUserActivity(ctx, "bob", "USD", models.ActivityFilter{Kind: models.FactSettlement})
			},
			want: []models.ActivityType{models.ActivitySettlementCompleted, models.ActivitySettlementRecorded},
		},
		{
			name: "user expenses by category",
			list: func() ([]models.Activity, error) {
				return svc.ListUserActivity(ctx, "carol", "USD", models.ActivityFilter{Category: models.CategoryOther})
			},
			want: []models.ActivityType{models.ActivityExpenseAdded},
		},
		{
			name: "other currency is empty",
			list: func() ([]models.Activity, error) {
				return svc.ListUserActivity(ctx, "alice", "EUR", models.ActivityFilter{})
			},
			want: []models.ActivityType{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed, err := tt.list()
			if err != nil {
				t.Fatalf("list failed: %v", err)
			}
			if got := types(feed); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("feed = %v, want %v", got, tt.want)
			}
		})
	}

	if _, err := svc.ListUserActivity(ctx, "bob", "USD", models.ActivityFilter{Kind: "refund"}); !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("expected ErrInvalidFilter, got %v", err)
	}
	if _, err := svc.ListActivity(ctx, models.Scope{}, "USD", models.ActivityFilter{}); !errors.Is(err, ErrInvalidScope) {
		t.Errorf("expected ErrInvalidScope, got %v", err)
	}
}

func TestApplyExpenseDuplicateID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	e := dinner("trip")
	e.ID = "exp-1"
	if _, err := svc.ApplyExpense(ctx, e); err != nil {
		t.Fatalf("ApplyExpense failed: %v", err)
	}
	if _, err := svc.ApplyExpense(ctx, e); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestPairwiseBalanceScenario(t *testing.T) {
	svc, _ := newTestService(t, WithSnapshots(cache.NewMemory()))
	ctx := context.Background()

	if _, err := svc.ApplyExpense(ctx, friendExpense("alice", "bob", 10000)); err != nil {
		t.Fatalf("ApplyExpense failed: %v", err)
	}
	_, err := svc.ApplySettlement(ctx, &models.Settlement{
		FromUserID: "bob",
		ToUserID:   "alice",
		Amount:     2000,
		Currency:   "USD",
		Status:     models.SettlementCompleted,
	})
	if err != nil {
		t.Fatalf("ApplySettlement failed: %v", err)
	}

	balance, err := svc.GetBalance(ctx, "alice", "bob", "USD")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 3000 {
		t.Errorf("GetBalance(alice, bob) = %d, want 3000", balance)
	}

	reverse, err := svc.GetBalance(ctx, "bob", "alice", "usd")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if reverse != -3000 {
		t.Errorf("GetBalance(bob, alice) = %d, want -3000", reverse)
	}

	if _, err := svc.GetBalance(ctx, "alice", "alice", "USD"); !errors.Is(err, ErrInvalidScope) {
		t.Errorf("expected ErrInvalidScope for one user, got %v", err)
	}
}

func TestGroupExpenseShowsInPairBalance(t *testing.T) {
	svc, _ := newTestService(t, WithSnapshots(cache.NewMemory()))
	ctx := context.Background()

	if _, err := svc.ApplyExpense(ctx, dinner("trip")); err != nil {
		t.Fatalf("ApplyExpense failed: %v", err)
	}
	// Prime the pair snapshot, then move the pair through the group.
	if _, err := svc.GetBalance(ctx, "alice", "bob", "USD"); err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if _, err := svc.ApplyExpense(ctx, dinner("trip")); err != nil {
		t.Fatalf("ApplyExpense failed: %v", err)
	}

	balance, err := svc.GetBalance(ctx, "alice", "bob", "USD")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 6000 {
		t.Errorf("GetBalance(alice, bob) = %d, want 6000", balance)
	}

	balance, err = svc.GetBalance(ctx, "bob", "carol", "USD")
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if balance != 0 {
		t.Errorf("GetBalance(bob, carol) = %d, want 0", balance)
	}
}

func TestReverseExpense(t *testing.T) {
	svc, _ := newTestService(t, WithSnapshots(cache.NewMemory()))
	ctx := context.Background()

	if _, err := svc.ApplyExpense(ctx, dinner("trip")); err != nil {
		t.Fatalf("ApplyExpense failed: %v", err)
	}
	before, err := svc.GetGroupPositions(ctx, "trip", "USD")
	if err != nil {
		t.Fatalf("GetGroupPositions failed: %v", err)
	}

	extra, err := svc.ApplyExpense(ctx, dinner("trip"))
	if err != nil {
		t.Fatalf("ApplyExpense failed: %v", err)
	}
	if err := svc.ReverseExpense(ctx, extra.ID); err != nil {
		t.Fatalf("ReverseExpense failed: %v", err)
	}

	after, err := svc.GetGroupPositions(ctx, "trip", "USD")
	if err != nil {
		t.Fatalf("GetGroupPositions failed: %v", err)
	}
	assertPositions(t, after, before)

	rec, err := svc.GetExpense(ctx, extra.ID)
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}
	if !rec.Reversed || rec.Expense.ID != extra.ID {
		t.Errorf("unexpected record %+v", rec)
	}

	if err := svc.ReverseExpense(ctx, extra.ID); !errors.Is(err, ErrAlreadyReversed) {
		t.Errorf("expected ErrAlreadyReversed, got %v", err)
	}
	if err := svc.ReverseExpense(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAmendExpense(t *testing.T) {
	svc, _ := newTestService(t, WithSnapshots(cache.NewMemory()))
	ctx := context.Background()

	original, err := svc.ApplyExpense(ctx, dinner("trip"))
	if err != nil {
		t.Fatalf("ApplyExpense failed: %v", err)
	}

	t.Run("replaces the current version", func(t *testing.T) {
		fixed := original.Clone()
		fixed.Title = "Dinner (two people)"
		fixed.SplitBetween = []models.Share{
			{UserID: "alice", Amount: 4500},
			{UserID: "bob", Amount: 4500},
		}

		amended, err := svc.AmendExpense(ctx, fixed)
		if err != nil {
			t.Fatalf("AmendExpense failed: %v", err)
		}
		if amended.Version != 2 || amended.CreatedAt != original.CreatedAt {
			t.Errorf("unexpected amended expense %+v", amended)
		}

		positions, err := svc.GetGroupPositions(ctx, "trip", "USD")
		if err != nil {
			t.Fatalf("GetGroupPositions failed: %v", err)
		}
		assertPositions(t, positions, map[string]money.Amount{"alice": 4500, "bob": -4500})

		// carol dropped out of the expense, so her pair with alice is clear.
		balance, err := svc.GetBalance(ctx, "alice", "carol", "USD")
		if err != nil {
			t.Fatalf("GetBalance failed: %v", err)
		}
		if balance != 0 {
			t.Errorf("GetBalance(alice, carol) = %d, want 0", balance)
		}

		rec, err := svc.GetExpense(ctx, original.ID)
		if err != nil {
			t.Fatalf("GetExpense failed: %v", err)
		}
		if rec.Reversed || rec.Expense.Version != 2 || rec.Expense.Title != "Dinner (two people)" {
			t.Errorf("unexpected record %+v", rec)
		}
	})

	t.Run("cannot move to another group", func(t *testing.T) {
		moved := original.Clone()
		moved.GroupID = "other-trip"
		if _, err := svc.AmendExpense(ctx, moved); !errors.Is(err, ErrInvalidScope) {
			t.Errorf("expected ErrInvalidScope, got %v", err)
		}
	})

	t.Run("requires an id", func(t *testing.T) {
		if _, err := svc.AmendExpense(ctx, dinner("trip")); !errors.Is(err, ErrInvalidExpense) {
			t.Errorf("expected ErrInvalidExpense, got %v", err)
		}
	})

	t.Run("reversed expense cannot be amended", func(t *testing.T) {
		if err := svc.ReverseExpense(ctx, original.ID); err != nil {
			t.Fatalf("ReverseExpense failed: %v", err)
		}
		if _, err := svc.AmendExpense(ctx, original); !errors.Is(err, ErrAlreadyReversed) {
			t.Errorf("expected ErrAlreadyReversed, got %v", err)
		}
	})
}

func TestSettlementStatusTransitions(t *testing.T) {
	pub := &recorder{}
	svc, store := newTestService(t, WithPublisher(pub), WithSnapshots(cache.NewMemory()))
	ctx := context.Background()

	if _, err := svc.ApplyExpense(ctx, dinner("trip")); err != nil {
		t.Fatalf("ApplyExpense failed: %v", err)
	}
	st, err := svc.ApplySettlement(ctx, &models.Settlement{
		GroupID:    "trip",
		FromUserID: "bob",
		ToUserID:   "alice",
		Amount:     3000,
		Currency:   "USD",
		Note:       "venmo",
	})
	if err != nil {
		t.Fatalf("ApplySettlement failed: %v", err)
	}
	if st.Status != models.SettlementPending || st.Method != models.MethodCash {
		t.Errorf("expected pending cash settlement by default, got %+v", st)
	}

	positionsOf := func() map[string]money.Amount {
		t.Helper()
		p, err := svc.GetGroupPositions(ctx, "trip", "USD")
		if err != nil {
			t.Fatalf("GetGroupPositions failed: %v", err)
		}
		return p
	}

	assertPositions(t, positionsOf(), map[string]money.Amount{"alice": 6000, "bob": -3000, "carol": -3000})

	completed, err := svc.UpdateSettlementStatus(ctx, st.ID, models.SettlementCompleted)
	if err != nil {
		t.Fatalf("UpdateSettlementStatus failed: %v", err)
	}
	if completed.Status != models.SettlementCompleted || completed.Note != "venmo" {
		t.Errorf("unexpected settlement %+v", completed)
	}
	assertPositions(t, positionsOf(), map[string]money.Amount{"alice": 3000, "carol": -3000})

	version, _ := store.CurrentVersion(ctx, models.GroupScope("trip"))
	again, err := svc.UpdateSettlementStatus(ctx, st.ID, models.SettlementCompleted)
	if err != nil {
		t.Fatalf("UpdateSettlementStatus failed: %v", err)
	}
	if again.Status != models.SettlementCompleted {
		t.Errorf("unexpected settlement %+v", again)
	}
	if v, _ := store.CurrentVersion(ctx, models.GroupScope("trip")); v != version {
		t.Errorf("same status must not append, version moved %d -> %d", version, v)
	}

	reopened, err := svc.UpdateSettlementStatus(ctx, st.ID, models.SettlementPending)
	if err != nil {
		t.Fatalf("UpdateSettlementStatus failed: %v", err)
	}
	if reopened.Status != models.SettlementPending {
		t.Errorf("unexpected settlement %+v", reopened)
	}
	assertPositions(t, positionsOf(), map[string]money.Amount{"alice": 6000, "bob": -3000, "carol": -3000})

	got, err := svc.GetSettlement(ctx, st.ID)
	if err != nil {
		t.Fatalf("GetSettlement failed: %v", err)
	}
	if got.Status != models.SettlementPending {
		t.Errorf("GetSettlement status = %s", got.Status)
	}

	if _, err := svc.UpdateSettlementStatus(ctx, "missing", models.SettlementCompleted); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.UpdateSettlementStatus(ctx, st.ID, "refunded"); !errors.Is(err, ErrInvalidSettlement) {
		t.Errorf("expected ErrInvalidSettlement, got %v", err)
	}

	want := []events.Type{
		events.ExpenseApplied,
		events.SettlementApplied,
		events.SettlementStatusChanged,
		events.SettlementStatusChanged,
	}
	if got := pub.types(); !reflect.DeepEqual(got, want) {
		t.Errorf("published %v, want %v", got, want)
	}
}

func TestApplySettlementRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		st   models.Settlement
	}{
		{"same user", models.Settlement{FromUserID: "bob", ToUserID: "bob", Amount: 100, Currency: "USD"}},
		{"zero amount", models.Settlement{FromUserID: "bob", ToUserID: "alice", Amount: 0, Currency: "USD"}},
		{"missing payer", models.Settlement{ToUserID: "alice", Amount: 100, Currency: "USD"}},
		{"unknown method", models.Settlement{FromUserID: "bob", ToUserID: "alice", Amount: 100, Currency: "USD", Method: "cheque"}},
		{"unknown status", models.Settlement{FromUserID: "bob", ToUserID: "alice", Amount: 100, Currency: "USD", Status: "lost"}},
	}

	svc, _ := newTestService(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.ApplySettlement(context.Background(), &tt.st); !errors.Is(err, ErrInvalidSettlement) {
				t.Errorf("expected ErrInvalidSettlement, got %v", err)
			}
		})
	}
}

func TestEmptyGroup(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	positions, err := svc.GetGroupPositions(ctx, "nobody-here", "USD")
	if err != nil {
		t.Fatalf("GetGroupPositions failed: %v", err)
	}
	if len(positions) != 0 {
		t.Errorf("expected no positions, got %v", positions)
	}

	plan, err := svc.GetSimplifiedPlan(ctx, "nobody-here", "USD")
	if err != nil {
		t.Fatalf("GetSimplifiedPlan failed: %v", err)
	}
	if len(plan.Transfers) != 0 {
		t.Errorf("expected empty plan, got %v", plan.Transfers)
	}

	if _, err := svc.GetGroupPositions(ctx, "", "USD"); !errors.Is(err, ErrInvalidScope) {
		t.Errorf("expected ErrInvalidScope, got %v", err)
	}
}

func TestCurrenciesAreSeparate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	eur := dinner("trip")
	eur.Currency = "EUR"
	if _, err := svc.ApplyExpense(ctx, eur); err != nil {
		t.Fatalf("ApplyExpense failed: %v", err)
	}

	usd, err := svc.GetGroupPositions(ctx, "trip", "USD")
	if err != nil {
		t.Fatalf("GetGroupPositions failed: %v", err)
	}
	if len(usd) != 0 {
		t.Errorf("EUR expense leaked into USD positions: %v", usd)
	}
}

func TestOrderIndependence(t *testing.T) {
	ctx := context.Background()
	build := func(i int) *models.Expense {
		e := dinner("trip")
		e.ID = fmt.Sprintf("e%d", i)
		e.PaidBy = []models.Share{{UserID: []string{"alice", "bob", "carol"}[i], Amount: 9000}}
		return e
	}

	run := func(order []int) map[string]money.Amount {
		svc, _ := newTestService(t)
		for _, i := range order {
			if _, err := svc.ApplyExpense(ctx, build(i)); err != nil {
				t.Fatalf("ApplyExpense failed: %v", err)
			}
		}
		if err := svc.ReverseExpense(ctx, "e1"); err != nil {
			t.Fatalf("ReverseExpense failed: %v", err)
		}
		positions, err := svc.GetGroupPositions(ctx, "trip", "USD")
		if err != nil {
			t.Fatalf("GetGroupPositions failed: %v", err)
		}
		return positions
	}

	a := run([]int{0, 1, 2})
	b := run([]int{2, 0, 1})
	assertPositions(t, a, b)
	assertPositions(t, a, map[string]money.Amount{"alice": 3000, "bob": -6000, "carol": 3000})
}

func TestUserSummary(t *testing.T) {
	svc, _ := newTestService(t, WithSnapshots(cache.NewMemory()))
	ctx := context.Background()

	if _, err := svc.ApplyExpense(ctx, dinner("trip")); err != nil {
		t.Fatalf("ApplyExpense failed: %v", err)
	}
	if _, err := svc.ApplyExpense(ctx, friendExpense("dave", "alice", 2000)); err != nil {
		t.Fatalf("ApplyExpense failed: %v", err)
	}

	summary, err := svc.GetUserSummary(ctx, "alice", "USD")
	if err != nil {
		t.Fatalf("GetUserSummary failed: %v", err)
	}
	want := []models.CounterpartyBalance{
		{UserID: "bob", Amount: 3000},
		{UserID: "carol", Amount: 3000},
		{UserID: "dave", Amount: -1000},
	}
	if !reflect.DeepEqual(summary.Counterparties, want) {
		t.Errorf("counterparties = %v, want %v", summary.Counterparties, want)
	}
	if summary.TotalOwed != 6000 || summary.TotalOwing != 1000 || summary.Net() != 5000 {
		t.Errorf("unexpected totals %+v", summary)
	}
}

func TestStaleSnapshotIsRecomputed(t *testing.T) {
	snapshots := cache.NewMemory()
	svc, store := newTestService(t, WithSnapshots(snapshots))
	ctx := context.Background()

	if _, err := svc.ApplyExpense(ctx, dinner("trip")); err != nil {
		t.Fatalf("ApplyExpense failed: %v", err)
	}
	if _, err := svc.GetGroupPositions(ctx, "trip", "USD"); err != nil {
		t.Fatalf("GetGroupPositions failed: %v", err)
	}

	// Another process appends directly; the cached snapshot is now behind.
	e := dinner("trip")
	e.ID = "external"
	e.Version = 1
	e.Currency = "USD"
	e.Category = models.CategoryFood
	if _, err := store.AppendFacts(ctx, models.GroupScope("trip"), 1, models.ExpenseFact(e)); err != nil {
		t.Fatalf("AppendFacts failed: %v", err)
	}

	positions, err := svc.GetGroupPositions(ctx, "trip", "USD")
	if err != nil {
		t.Fatalf("GetGroupPositions failed: %v", err)
	}
	assertPositions(t, positions, map[string]money.Amount{"alice": 12000, "bob": -6000, "carol": -6000})

	snap, err := snapshots.Get(ctx, models.GroupScope("trip"), "USD")
	if err != nil {
		t.Fatalf("snapshot missing after recompute: %v", err)
	}
	if snap.Version != 2 {
		t.Errorf("snapshot version = %d, want 2", snap.Version)
	}
}

func TestRetryOnVersionConflict(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds within the retry budget", func(t *testing.T) {
		store := &conflictingStore{Store: memory.New(), n: 2}
		svc := New(store, WithMaxRetries(3))
		if _, err := svc.ApplyExpense(ctx, dinner("trip")); err != nil {
			t.Fatalf("ApplyExpense failed: %v", err)
		}
	})

	t.Run("gives up with a retryable error", func(t *testing.T) {
		store := &conflictingStore{Store: memory.New(), n: 100}
		svc := New(store, WithMaxRetries(3))

		_, err := svc.ApplyExpense(ctx, dinner("trip"))
		if !errors.Is(err, ErrConcurrentModification) {
			t.Fatalf("expected ErrConcurrentModification, got %v", err)
		}
		if !IsRetryable(err) {
			t.Error("expected error to be retryable")
		}
		if store.n != 97 {
			t.Errorf("expected exactly 3 attempts, store saw %d", 100-store.n)
		}
		if IsRetryable(ErrNotFound) {
			t.Error("ErrNotFound must not be retryable")
		}
	})
}

func TestStrongReadWaitsForWriter(t *testing.T) {
	ctx := context.Background()
	store := &gatedStore{Store: memory.New()}
	svc := New(store)

	if _, err := svc.ApplyExpense(ctx, dinner("trip")); err != nil {
		t.Fatalf("ApplyExpense failed: %v", err)
	}

	store.entered = make(chan struct{})
	store.gate = make(chan struct{})

	writeDone := make(chan error, 1)
	go func() {
		_, err := svc.ApplyExpense(ctx, dinner("trip"))
		writeDone <- err
	}()
	<-store.entered

	// A plain read does not wait and sees the old state.
	positions, err := svc.GetGroupPositions(ctx, "trip", "USD")
	if err != nil {
		t.Fatalf("GetGroupPositions failed: %v", err)
	}
	assertPositions(t, positions, map[string]money.Amount{"alice": 6000, "bob": -3000, "carol": -3000})

	strong := make(chan map[string]money.Amount, 1)
	go func() {
		p, err := svc.GetGroupPositions(ctx, "trip", "USD", Strong())
		if err != nil {
			t.Errorf("strong GetGroupPositions failed: %v", err)
		}
		strong <- p
	}()

	select {
	case <-strong:
		t.Fatal("strong read returned while a write was in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.gate)
	if err := <-writeDone; err != nil {
		t.Fatalf("ApplyExpense failed: %v", err)
	}
	assertPositions(t, <-strong, map[string]money.Amount{"alice": 12000, "bob": -6000, "carol": -6000})
}

func TestConcurrentWritersSameScope(t *testing.T) {
	svc, _ := newTestService(t, WithSnapshots(cache.NewMemory()))
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.ApplyExpense(ctx, dinner("trip"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("ApplyExpense failed: %v", err)
		}
	}

	positions, err := svc.GetGroupPositions(ctx, "trip", "USD", Strong())
	if err != nil {
		t.Fatalf("GetGroupPositions failed: %v", err)
	}
	assertPositions(t, positions, map[string]money.Amount{
		"alice": 6000 * writers,
		"bob":   -3000 * writers,
		"carol": -3000 * writers,
	})
	if n := svc.locks.size(); n != 0 {
		t.Errorf("expected scope locks to be released, %d remain", n)
	}
}

func TestServiceWithSQLiteStore(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "splitledger-ledger-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	store, err := sqlite.New(filepath.Join(tempDir, "ledger.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	svc := New(store, WithSnapshots(cache.NewMemory()))
	ctx := context.Background()

	original, err := svc.ApplyExpense(ctx, dinner("trip"))
	if err != nil {
		t.Fatalf("ApplyExpense failed: %v", err)
	}
	fixed := original.Clone()
	fixed.Amount = 6000
	fixed.PaidBy = []models.Share{{UserID: "alice", Amount: 6000}}
	fixed.SplitBetween = []models.Share{
		{UserID: "alice", Amount: 2000},
		{UserID: "bob", Amount: 2000},
		{UserID: "carol", Amount: 2000},
	}
	if _, err := svc.AmendExpense(ctx, fixed); err != nil {
		t.Fatalf("AmendExpense failed: %v", err)
	}

	plan, err := svc.GetSimplifiedPlan(ctx, "trip", "USD")
	if err != nil {
		t.Fatalf("GetSimplifiedPlan failed: %v", err)
	}
	want := []models.Transfer{
		{From: "bob", To: "alice", Amount: 2000},
		{From: "carol", To: "alice", Amount: 2000},
	}
	if !reflect.DeepEqual(plan.Transfers, want) {
		t.Errorf("plan = %v, want %v", plan.Transfers, want)
	}
}
