// Package models defines the domain types of the balance ledger.
//
// # Facts
//
// The ledger is an append-only log of facts. A Fact is a tagged variant over
// Expense and Settlement; reversal facts carry the payload they void and
// contribute its negation, so every derived view is a pure fold over the log.
//
// # Scopes
//
// Every fact has exactly one home scope: its group when GroupID is set,
// otherwise the pair of users it involves. Balances are always computed per
// scope and per currency.
//
// # Amounts
//
// Amounts are money.Amount values in currency minor units. There are no
// floating-point fields in this package.
package models
