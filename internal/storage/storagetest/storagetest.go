// Package storagetest holds the behaviour every storage.Store backend must share.
package storagetest

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

// Run exercises a fresh store returned by newStore. Each subtest gets its own store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	ctx := context.Background()

	t.Run("empty scope is at version zero", func(t *testing.T) {
		store := newStore(t)

		log, err := store.ListFacts(ctx, models.GroupScope("g1"), "USD")
		if err != nil {
			t.Fatalf("ListFacts failed: %v", err)
		}
		if log.Version != 0 || len(log.Facts) != 0 {
			t.Errorf("expected empty log at version 0, got %+v", log)
		}
	})

	t.Run("append stamps facts and bumps versions", func(t *testing.T) {
		store := newStore(t)
		e := groupExpense("e1", "g1", "USD")

		v, err := store.AppendFacts(ctx, models.GroupScope("g1"), 0, models.ExpenseFact(e))
		if err != nil {
			t.Fatalf("AppendFacts failed: %v", err)
		}
		if v != 1 {
			t.Errorf("expected home version 1, got %d", v)
		}

		log, err := store.ListFacts(ctx, models.GroupScope("g1"), "USD")
		if err != nil {
			t.Fatalf("ListFacts failed: %v", err)
		}
		if log.Version != 1 || len(log.Facts) != 1 {
			t.Fatalf("expected one fact at version 1, got %+v", log)
		}
		got := log.Facts[0]
		if got.ID == "" || got.RecordedAt == 0 {
			t.Errorf("expected fact ID and timestamp to be set, got %+v", got)
		}
		if !reflect.DeepEqual(got.Expense, e) {
			t.Errorf("payload mismatch:\n got %+v\nwant %+v", got.Expense, e)
		}

		// Every implied pair scope moved too.
		for _, pair := range models.PairScopes(e.Participants()) {
			pv, err := store.CurrentVersion(ctx, pair)
			if err != nil {
				t.Fatalf("CurrentVersion failed: %v", err)
			}
			if pv != 1 {
				t.Errorf("expected %s at version 1, got %d", pair, pv)
			}
		}
	})

	t.Run("stale expected version conflicts", func(t *testing.T) {
		store := newStore(t)
		home := models.GroupScope("g1")

		if _, err := store.AppendFacts(ctx, home, 0, models.ExpenseFact(groupExpense("e1", "g1", "USD"))); err != nil {
			t.Fatalf("AppendFacts failed: %v", err)
		}
		_, err := store.AppendFacts(ctx, home, 0, models.ExpenseFact(groupExpense("e2", "g1", "USD")))
		if !errors.Is(err, storage.ErrVersionConflict) {
			t.Fatalf("expected ErrVersionConflict, got %v", err)
		}

		log, err := store.ListFacts(ctx, home, "USD")
		if err != nil {
			t.Fatalf("ListFacts failed: %v", err)
		}
		if len(log.Facts) != 1 {
			t.Errorf("conflicting append must not write, got %d facts", len(log.Facts))
		}
	})

	t.Run("facts must belong to the home scope", func(t *testing.T) {
		store := newStore(t)

		_, err := store.AppendFacts(ctx, models.GroupScope("g2"), 0, models.ExpenseFact(groupExpense("e1", "g1", "USD")))
		if err == nil {
			t.Fatal("expected error for fact outside home scope")
		}
		v, err := store.CurrentVersion(ctx, models.GroupScope("g1"))
		if err != nil {
			t.Fatalf("CurrentVersion failed: %v", err)
		}
		if v != 0 {
			t.Errorf("rejected append moved version to %d", v)
		}
	})

	t.Run("scopes and currencies are isolated", func(t *testing.T) {
		store := newStore(t)

		mustAppend(t, store, models.GroupScope("g1"), models.ExpenseFact(groupExpense("e1", "g1", "USD")))
		mustAppend(t, store, models.GroupScope("g1"), models.ExpenseFact(groupExpense("e2", "g1", "EUR")))
		mustAppend(t, store, models.GroupScope("g2"), models.ExpenseFact(groupExpense("e3", "g2", "USD")))

		log, err := store.ListFacts(ctx, models.GroupScope("g1"), "USD")
		if err != nil {
			t.Fatalf("ListFacts failed: %v", err)
		}
		if ids := entityIDs(log.Facts); !reflect.DeepEqual(ids, []string{"e1"}) {
			t.Errorf("g1 USD facts = %v", ids)
		}
		if log.Version != 2 {
			t.Errorf("scope version counts every currency, got %d", log.Version)
		}
	})

	t.Run("pair scope sees group and friend facts", func(t *testing.T) {
		store := newStore(t)

		mustAppend(t, store, models.GroupScope("g1"), models.ExpenseFact(groupExpense("e1", "g1", "USD")))
		mustAppend(t, store, models.PairScope("alice", "bob"), models.SettlementFact(&models.Settlement{
			ID: "s1", FromUserID: "bob", ToUserID: "alice", Amount: 500, Currency: "USD",
			Status: models.SettlementCompleted, Method: models.MethodCash,
		}))
		mustAppend(t, store, models.PairScope("alice", "dave"), models.SettlementFact(&models.Settlement{
			ID: "s2", FromUserID: "dave", ToUserID: "alice", Amount: 100, Currency: "USD",
			Status: models.SettlementCompleted, Method: models.MethodCash,
		}))

		log, err := store.ListFacts(ctx, models.PairScope("bob", "alice"), "USD")
		if err != nil {
			t.Fatalf("ListFacts failed: %v", err)
		}
		if ids := entityIDs(log.Facts); !reflect.DeepEqual(ids, []string{"e1", "s1"}) {
			t.Errorf("alice/bob facts = %v", ids)
		}
		if log.Version != 2 {
			t.Errorf("alice/bob version = %d, want 2", log.Version)
		}
	})

	t.Run("entity facts in append order", func(t *testing.T) {
		store := newStore(t)
		home := models.GroupScope("g1")
		e := groupExpense("e1", "g1", "USD")
		amended := e.Clone()
		amended.Version = 2
		amended.Title = "Groceries (fixed)"

		mustAppend(t, store, home, models.ExpenseFact(e))
		mustAppend(t, store, home, models.ExpenseReversal(e), models.ExpenseFact(amended))

		facts, err := store.ListEntityFacts(ctx, "e1")
		if err != nil {
			t.Fatalf("ListEntityFacts failed: %v", err)
		}
		if len(facts) != 3 {
			t.Fatalf("expected 3 facts, got %d", len(facts))
		}
		if facts[0].Reversal || !facts[1].Reversal || facts[2].Reversal {
			t.Errorf("unexpected reversal flags: %v %v %v", facts[0].Reversal, facts[1].Reversal, facts[2].Reversal)
		}
		if facts[2].Expense.Version != 2 || facts[2].Expense.Title != "Groceries (fixed)" {
			t.Errorf("unexpected amended payload %+v", facts[2].Expense)
		}

		_, err = store.ListEntityFacts(ctx, "missing")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("counterparties by currency", func(t *testing.T) {
		store := newStore(t)

		mustAppend(t, store, models.GroupScope("g1"), models.ExpenseFact(groupExpense("e1", "g1", "USD")))
		mustAppend(t, store, models.PairScope("alice", "dave"), models.SettlementFact(&models.Settlement{
			ID: "s1", FromUserID: "dave", ToUserID: "alice", Amount: 100, Currency: "EUR",
			Status: models.SettlementCompleted, Method: models.MethodBank,
		}))

		users, err := store.ListCounterparties(ctx, "alice", "USD")
		if err != nil {
			t.Fatalf("ListCounterparties failed: %v", err)
		}
		if !reflect.DeepEqual(users, []string{"bob", "carol"}) {
			t.Errorf("USD counterparties = %v", users)
		}

		users, err = store.ListCounterparties(ctx, "alice", "EUR")
		if err != nil {
			t.Fatalf("ListCounterparties failed: %v", err)
		}
		if !reflect.DeepEqual(users, []string{"dave"}) {
			t.Errorf("EUR counterparties = %v", users)
		}
	})

	t.Run("user facts in append order", func(t *testing.T) {
		store := newStore(t)

		mustAppend(t, store, models.GroupScope("g1"), models.ExpenseFact(groupExpense("e1", "g1", "USD")))
		mustAppend(t, store, models.PairScope("alice", "dave"), models.SettlementFact(&models.Settlement{
			ID: "s1", FromUserID: "dave", ToUserID: "alice", Amount: 100, Currency: "USD",
			Status: models.SettlementPending, Method: models.MethodCash,
		}))
		mustAppend(t, store, models.PairScope("bob", "carol"), models.SettlementFact(&models.Settlement{
			ID: "s2", FromUserID: "bob", ToUserID: "carol", Amount: 100, Currency: "USD",
			Status: models.SettlementCompleted, Method: models.MethodCash,
		}))
		mustAppend(t, store, models.GroupScope("g2"), models.ExpenseFact(groupExpense("e2", "g2", "EUR")))

		facts, err := store.ListUserFacts(ctx, "alice", "USD")
		if err != nil {
			t.Fatalf("ListUserFacts failed: %v", err)
		}
		if got := entityIDs(facts); !reflect.DeepEqual(got, []string{"e1", "s1"}) {
			t.Errorf("alice USD facts = %v", got)
		}

		facts, err = store.ListUserFacts(ctx, "erin", "USD")
		if err != nil {
			t.Fatalf("ListUserFacts failed: %v", err)
		}
		if len(facts) != 0 {
			t.Errorf("expected no facts for a stranger, got %v", entityIDs(facts))
		}
	})

	t.Run("concurrent appends at the same version admit one", func(t *testing.T) {
		store := newStore(t)
		home := models.GroupScope("g1")

		const writers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			ok        int
			conflicts int
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := store.AppendFacts(ctx, home, 0, models.ExpenseFact(groupExpense(string(rune('a'+i)), "g1", "USD")))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case errors.Is(err, storage.ErrVersionConflict):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()

		if ok != 1 || conflicts != writers-1 {
			t.Errorf("expected 1 success and %d conflicts, got %d and %d", writers-1, ok, conflicts)
		}
	})
}

func groupExpense(id, group, currency string) *models.Expense {
	return &models.Expense{
		ID:       id,
		Version:  1,
		GroupID:  group,
		Title:    "Groceries",
		Category: models.CategoryFood,
		Amount:   9000,
		Currency: currency,
		PaidBy:   []models.Share{{UserID: "alice", Amount: 9000}},
		SplitBetween: []models.Share{
			{UserID: "alice", Amount: 3000},
			{UserID: "bob", Amount: 3000},
			{UserID: "carol", Amount: 3000},
		},
		CreatedAt: 1700000000,
	}
}

func mustAppend(t *testing.T, store storage.Store, home models.Scope, facts ...models.Fact) {
	t.Helper()
	v, err := store.CurrentVersion(context.Background(), home)
	if err != nil {
		t.Fatalf("CurrentVersion failed: %v", err)
	}
	if _, err := store.AppendFacts(context.Background(), home, v, facts...); err != nil {
		t.Fatalf("AppendFacts failed: %v", err)
	}
}

func entityIDs(facts []models.Fact) []string {
	ids := make([]string, len(facts))
	for i, f := range facts {
		ids[i] = f.EntityID()
	}
	return ids
}
