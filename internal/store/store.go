package store

import (
	"context"
	"errors"

	"tradewatch/internal/types"
)

// ErrNotFound is returned when the addressed row does not exist.
var ErrNotFound = errors.New("not found")

// HistoryFilter narrows a history listing. Limit -1 means everything.
type HistoryFilter struct {
	AccNumber *int64
	StartDate string
	EndDate   string
	Limit     int
	Offset    int
}

// AccountUpdate carries the editable display fields of an account.
type AccountUpdate struct {
	Name       string
	Email      string
	CategoryID *int64
}

// Store is the data-store boundary. All mutations are single-statement
// server-side atomic operations except UpsertSnapshot, DeleteAccount and
// DeleteCategory, which apply their related statements in one
// all-or-nothing transaction.
type Store interface {
	// UpsertSnapshot writes the account row and its per-date history row
	// atomically, returning the account id.
	UpsertSnapshot(ctx context.Context, snap types.TradeSnapshot) (int64, error)

	Accounts(ctx context.Context, accNumber *int64) ([]types.Account, error)
	AccountsWithHistory(ctx context.Context, startDate, endDate string) ([]types.AccountWithHistory, error)
	History(ctx context.Context, f HistoryFilter) ([]types.History, error)
	Stats(ctx context.Context, accNumber *int64) (types.TradeStats, error)

	UpdateAccount(ctx context.Context, accNumber int64, upd AccountUpdate) (types.Account, error)
	// DeleteAccount removes the account and all of its history rows.
	DeleteAccount(ctx context.Context, accNumber int64) error

	Categories(ctx context.Context) ([]types.Category, error)
	CreateCategory(ctx context.Context, title string) (types.Category, error)
	UpdateCategory(ctx context.Context, id int64, title string) (types.Category, error)
	// DeleteCategory nulls the category reference on all dependent
	// accounts before removing the category itself.
	DeleteCategory(ctx context.Context, id int64) error
	AccountsCountByCategory(ctx context.Context, id int64) (int, error)

	Close() error
}
