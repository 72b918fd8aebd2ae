package types

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Wire format uses bare JSON numbers for money fields.
	decimal.MarshalJSONWithoutQuotes = true
}

// Category is a user-defined label attached to accounts for grouping.
type Category struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Account is a monitored trading account.
type Account struct {
	ID            int64           `json:"id"`
	AccNumber     int64           `json:"acc_number"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Balance       decimal.Decimal `json:"balance"`
	Equity        decimal.Decimal `json:"equity"`
	CategoryID    *int64          `json:"category_id"`
	CategoryTitle string          `json:"category_title,omitempty"`
	UpdatedAt     time.Time       `json:"updated_at"`
	HistoryCount  int             `json:"history_count"`
}

// OpenCounters are the counters over currently open positions.
type OpenCounters struct {
	TotalTrade     int             `json:"total_trade"`
	Profit         decimal.Decimal `json:"profit"`
	Lot            decimal.Decimal `json:"lot"`
	OrderBuyCount  int             `json:"order_buy_count"`
	OrderSellCount int             `json:"order_sell_count"`
}

// ClosedCounters are the counters over trades closed so far today.
type ClosedCounters struct {
	TotalTrade     int             `json:"total_trade"`
	Profit         decimal.Decimal `json:"profit"`
	Lot            decimal.Decimal `json:"lot"`
	OrderBuyCount  int             `json:"order_buy_count"`
	OrderSellCount int             `json:"order_sell_count"`
	Win            int             `json:"win"`
	Loss           int             `json:"loss"`
}

// TradeSnapshot is the ingest payload posted by the external writer,
// keyed by account number and date.
type TradeSnapshot struct {
	AccNumber int64           `json:"acc_number"`
	Date      string          `json:"date"`
	Balance   decimal.Decimal `json:"balance"`
	Equity    decimal.Decimal `json:"equity"`
	Current   OpenCounters    `json:"current"`
	History   ClosedCounters  `json:"history"`
}

// History is one per-account-per-date row of trading counters.
type History struct {
	ID        int64           `json:"id"`
	AccountID int64           `json:"account_id"`
	AccNumber int64           `json:"acc_number"`
	Email     string          `json:"email"`
	Date      string          `json:"date"`
	Balance   decimal.Decimal `json:"balance"`
	Equity    decimal.Decimal `json:"equity"`

	CurrentTotalTrade     int             `json:"current_total_trade"`
	CurrentProfit         decimal.Decimal `json:"current_profit"`
	CurrentLot            decimal.Decimal `json:"current_lot"`
	CurrentOrderBuyCount  int             `json:"current_order_buy_count"`
	CurrentOrderSellCount int             `json:"current_order_sell_count"`

	HistoryTotalTrade     int             `json:"history_total_trade"`
	HistoryProfit         decimal.Decimal `json:"history_profit"`
	HistoryLot            decimal.Decimal `json:"history_lot"`
	HistoryOrderBuyCount  int             `json:"history_order_buy_count"`
	HistoryOrderSellCount int             `json:"history_order_sell_count"`
	HistoryWin            int             `json:"history_win"`
	HistoryLoss           int             `json:"history_loss"`

	UpdatedAt time.Time `json:"updated_at"`
}

// FloatingPL is the open profit/loss implied by the snapshot: equity - balance.
func (h History) FloatingPL() decimal.Decimal {
	return h.Equity.Sub(h.Balance)
}

// AccountWithHistory is the denormalized dashboard row: the account joined
// with the most recent history row inside the requested date range.
type AccountWithHistory struct {
	Account
	History *History `json:"history"`
}

// TradeStats are the aggregate sums shown on the dashboard header,
// today's values alongside the previous business day's.
type TradeStats struct {
	TotalAccounts int             `json:"total_accounts"`
	TotalBalance  decimal.Decimal `json:"total_balance"`
	TotalEquity   decimal.Decimal `json:"total_equity"`

	TotalOpenTrades   int             `json:"total_open_trades"`
	TotalOpenProfit   decimal.Decimal `json:"total_open_profit"`
	TotalClosedTrades int             `json:"total_closed_trades"`
	TotalClosedProfit decimal.Decimal `json:"total_closed_profit"`
	TotalWins         int             `json:"total_wins"`
	TotalLosses       int             `json:"total_losses"`
	WinRate           float64         `json:"win_rate"`

	BeforeTotalOpenTrades   int             `json:"before_total_open_trades"`
	BeforeTotalOpenProfit   decimal.Decimal `json:"before_total_open_profit"`
	BeforeTotalClosedTrades int             `json:"before_total_closed_trades"`
	BeforeTotalClosedProfit decimal.Decimal `json:"before_total_closed_profit"`
	BeforeTotalWins         int             `json:"before_total_wins"`
	BeforeTotalLosses       int             `json:"before_total_losses"`
}
