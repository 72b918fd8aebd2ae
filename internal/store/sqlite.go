package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/juju/clock"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite" // register pure-Go SQLite driver

	"tradewatch/internal/types"
)

const dateLayout = "2006-01-02"

// SQLite implements Store on a single SQLite database. The pure-Go
// driver keeps deployment to one static binary plus one file.
type SQLite struct {
	db    *sql.DB
	clock clock.Clock

	// test seam between the two statements of DeleteCategory
	beforeCategoryDelete func() error
}

// OpenSQLite opens (and if needed creates) the database at dsn and
// applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The driver is single-writer; serialize access instead of
	// surfacing SQLITE_BUSY to handlers.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, clock: clock.WallClock}
	for _, ddl := range schemaDDL() {
		if _, err := db.Exec(ddl); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return s, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) UpsertSnapshot(ctx context.Context, snap types.TradeSnapshot) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := s.clock.Now().UTC()

	var accountID int64
	err = tx.QueryRowContext(ctx,
		`INSERT INTO accounts (acc_number, balance, equity, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (acc_number)
		 DO UPDATE SET balance = excluded.balance,
		               equity = excluded.equity,
		               updated_at = excluded.updated_at
		 RETURNING id`,
		snap.AccNumber, snap.Balance, snap.Equity, now).Scan(&accountID)
	if err != nil {
		return 0, fmt.Errorf("upsert account %d: %w", snap.AccNumber, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO history (
		     account_id, date,
		     current_total_trade, current_profit, current_lot,
		     current_order_buy_count, current_order_sell_count,
		     history_total_trade, history_profit, history_lot,
		     history_order_buy_count, history_order_sell_count,
		     history_win, history_loss, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (account_id, date)
		 DO UPDATE SET
		     current_total_trade = excluded.current_total_trade,
		     current_profit = excluded.current_profit,
		     current_lot = excluded.current_lot,
		     current_order_buy_count = excluded.current_order_buy_count,
		     current_order_sell_count = excluded.current_order_sell_count,
		     history_total_trade = excluded.history_total_trade,
		     history_profit = excluded.history_profit,
		     history_lot = excluded.history_lot,
		     history_order_buy_count = excluded.history_order_buy_count,
		     history_order_sell_count = excluded.history_order_sell_count,
		     history_win = excluded.history_win,
		     history_loss = excluded.history_loss,
		     updated_at = excluded.updated_at`,
		accountID, snap.Date,
		snap.Current.TotalTrade, snap.Current.Profit, snap.Current.Lot,
		snap.Current.OrderBuyCount, snap.Current.OrderSellCount,
		snap.History.TotalTrade, snap.History.Profit, snap.History.Lot,
		snap.History.OrderBuyCount, snap.History.OrderSellCount,
		snap.History.Win, snap.History.Loss, now)
	if err != nil {
		return 0, fmt.Errorf("upsert history for account %d on %s: %w", snap.AccNumber, snap.Date, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return accountID, nil
}

func (s *SQLite) Accounts(ctx context.Context, accNumber *int64) ([]types.Account, error) {
	q := `SELECT a.id, a.acc_number, a.name, a.email, a.balance, a.equity,
	             a.category_id, COALESCE(c.title, ''), a.updated_at,
	             COUNT(h.id)
	      FROM accounts a
	      LEFT JOIN categories c ON a.category_id = c.id
	      LEFT JOIN history h ON h.account_id = a.id`
	var args []any
	if accNumber != nil {
		q += ` WHERE a.acc_number = ?`
		args = append(args, *accNumber)
	}
	q += ` GROUP BY a.id ORDER BY a.updated_at DESC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Account
	for rows.Next() {
		var a types.Account
		if err := rows.Scan(&a.ID, &a.AccNumber, &a.Name, &a.Email, &a.Balance,
			&a.Equity, &a.CategoryID, &a.CategoryTitle, &a.UpdatedAt, &a.HistoryCount); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLite) AccountsWithHistory(ctx context.Context, startDate, endDate string) ([]types.AccountWithHistory, error) {
	// Latest history row inside the range, resolved per account via a
	// correlated subquery (no LATERAL in SQLite).
	q := `SELECT a.id, a.acc_number, a.name, a.email, a.balance, a.equity,
	             a.category_id, COALESCE(c.title, ''), a.updated_at,
	             (SELECT COUNT(*) FROM history h2 WHERE h2.account_id = a.id),
	             h.id, h.date,
	             h.current_total_trade, h.current_profit, h.current_lot,
	             h.current_order_buy_count, h.current_order_sell_count,
	             h.history_total_trade, h.history_profit, h.history_lot,
	             h.history_order_buy_count, h.history_order_sell_count,
	             h.history_win, h.history_loss, h.updated_at
	      FROM accounts a
	      LEFT JOIN categories c ON a.category_id = c.id
	      LEFT JOIN history h ON h.id = (
	          SELECT h3.id FROM history h3
	          WHERE h3.account_id = a.id AND h3.date BETWEEN ? AND ?
	          ORDER BY h3.date DESC, h3.updated_at DESC
	          LIMIT 1)
	      ORDER BY a.updated_at DESC`

	rows, err := s.db.QueryContext(ctx, q, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.AccountWithHistory
	for rows.Next() {
		var r types.AccountWithHistory
		var (
			hID                   sql.NullInt64
			hDate                 sql.NullString
			hCurTotal             sql.NullInt64
			hCurProfit, hCurLot   decimal.NullDecimal
			hCurBuy, hCurSell     sql.NullInt64
			hHistTotal            sql.NullInt64
			hHistProfit, hHistLot decimal.NullDecimal
			hHistBuy, hHistSell   sql.NullInt64
			hWin, hLoss           sql.NullInt64
			hUpdated              sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.AccNumber, &r.Name, &r.Email, &r.Balance,
			&r.Equity, &r.CategoryID, &r.CategoryTitle, &r.UpdatedAt, &r.HistoryCount,
			&hID, &hDate,
			&hCurTotal, &hCurProfit, &hCurLot, &hCurBuy, &hCurSell,
			&hHistTotal, &hHistProfit, &hHistLot, &hHistBuy, &hHistSell,
			&hWin, &hLoss, &hUpdated); err != nil {
			return nil, err
		}
		if hID.Valid {
			r.History = &types.History{
				ID:                    hID.Int64,
				AccountID:             r.ID,
				AccNumber:             r.AccNumber,
				Email:                 r.Email,
				Date:                  hDate.String,
				Balance:               r.Balance,
				Equity:                r.Equity,
				CurrentTotalTrade:     int(hCurTotal.Int64),
				CurrentProfit:         hCurProfit.Decimal,
				CurrentLot:            hCurLot.Decimal,
				CurrentOrderBuyCount:  int(hCurBuy.Int64),
				CurrentOrderSellCount: int(hCurSell.Int64),
				HistoryTotalTrade:     int(hHistTotal.Int64),
				HistoryProfit:         hHistProfit.Decimal,
				HistoryLot:            hHistLot.Decimal,
				HistoryOrderBuyCount:  int(hHistBuy.Int64),
				HistoryOrderSellCount: int(hHistSell.Int64),
				HistoryWin:            int(hWin.Int64),
				HistoryLoss:           int(hLoss.Int64),
				UpdatedAt:             hUpdated.Time,
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLite) History(ctx context.Context, f HistoryFilter) ([]types.History, error) {
	q := `SELECT h.id, h.account_id, a.acc_number, a.email, h.date,
	             a.balance, a.equity,
	             h.current_total_trade, h.current_profit, h.current_lot,
	             h.current_order_buy_count, h.current_order_sell_count,
	             h.history_total_trade, h.history_profit, h.history_lot,
	             h.history_order_buy_count, h.history_order_sell_count,
	             h.history_win, h.history_loss, h.updated_at
	      FROM history h
	      JOIN accounts a ON h.account_id = a.id
	      WHERE 1=1`
	var args []any
	if f.AccNumber != nil {
		q += ` AND a.acc_number = ?`
		args = append(args, *f.AccNumber)
	}
	if f.StartDate != "" {
		q += ` AND h.date >= ?`
		args = append(args, f.StartDate)
	}
	if f.EndDate != "" {
		q += ` AND h.date <= ?`
		args = append(args, f.EndDate)
	}
	// SQLite treats LIMIT -1 as unbounded, which matches the "return
	// everything" sentinel of the listing contract.
	q += ` ORDER BY h.date DESC, h.updated_at DESC LIMIT ? OFFSET ?`
	args = append(args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.History
	for rows.Next() {
		var h types.History
		if err := rows.Scan(&h.ID, &h.AccountID, &h.AccNumber, &h.Email, &h.Date,
			&h.Balance, &h.Equity,
			&h.CurrentTotalTrade, &h.CurrentProfit, &h.CurrentLot,
			&h.CurrentOrderBuyCount, &h.CurrentOrderSellCount,
			&h.HistoryTotalTrade, &h.HistoryProfit, &h.HistoryLot,
			&h.HistoryOrderBuyCount, &h.HistoryOrderSellCount,
			&h.HistoryWin, &h.HistoryLoss, &h.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *SQLite) Stats(ctx context.Context, accNumber *int64) (types.TradeStats, error) {
	var st types.TradeStats

	accQ := `SELECT COUNT(a.id), COALESCE(SUM(a.balance), 0), COALESCE(SUM(a.equity), 0) FROM accounts a`
	var accArgs []any
	if accNumber != nil {
		accQ += ` WHERE a.acc_number = ?`
		accArgs = append(accArgs, *accNumber)
	}
	if err := s.db.QueryRowContext(ctx, accQ, accArgs...).Scan(
		&st.TotalAccounts, &st.TotalBalance, &st.TotalEquity); err != nil {
		return st, err
	}

	today := s.clock.Now().UTC()
	sumDay := func(date string) (open int, openProfit decimal.Decimal, closed int, closedProfit decimal.Decimal, wins, losses int, err error) {
		q := `SELECT COALESCE(SUM(h.current_total_trade), 0),
		             COALESCE(SUM(h.current_profit), 0),
		             COALESCE(SUM(h.history_total_trade), 0),
		             COALESCE(SUM(h.history_profit), 0),
		             COALESCE(SUM(h.history_win), 0),
		             COALESCE(SUM(h.history_loss), 0)
		      FROM history h
		      JOIN accounts a ON h.account_id = a.id
		      WHERE h.date = ?`
		args := []any{date}
		if accNumber != nil {
			q += ` AND a.acc_number = ?`
			args = append(args, *accNumber)
		}
		err = s.db.QueryRowContext(ctx, q, args...).Scan(
			&open, &openProfit, &closed, &closedProfit, &wins, &losses)
		return
	}

	var err error
	st.TotalOpenTrades, st.TotalOpenProfit, st.TotalClosedTrades,
		st.TotalClosedProfit, st.TotalWins, st.TotalLosses,
		err = sumDay(today.Format(dateLayout))
	if err != nil {
		return st, err
	}

	prev := PreviousBusinessDay(today)
	st.BeforeTotalOpenTrades, st.BeforeTotalOpenProfit, st.BeforeTotalClosedTrades,
		st.BeforeTotalClosedProfit, st.BeforeTotalWins, st.BeforeTotalLosses,
		err = sumDay(prev.Format(dateLayout))
	if err != nil {
		return st, err
	}

	st.WinRate = WinRate(st.TotalWins, st.TotalClosedTrades)
	return st, nil
}

// WinRate is wins over closed trades as a percentage, rounded to two
// decimal places. Zero closed trades yields 0.
func WinRate(wins, closedTrades int) float64 {
	if closedTrades <= 0 {
		return 0
	}
	rate := float64(wins) / float64(closedTrades) * 100
	return math.Round(rate*100) / 100
}

// PreviousBusinessDay returns the most recent weekday strictly before
// the given day: Friday for Monday and Sunday, otherwise yesterday.
func PreviousBusinessDay(day time.Time) time.Time {
	switch day.Weekday() {
	case time.Monday:
		return day.AddDate(0, 0, -3)
	case time.Sunday:
		return day.AddDate(0, 0, -2)
	default:
		return day.AddDate(0, 0, -1)
	}
}

func (s *SQLite) UpdateAccount(ctx context.Context, accNumber int64, upd AccountUpdate) (types.Account, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET name = ?, email = ?, category_id = ?, updated_at = ?
		 WHERE acc_number = ?`,
		upd.Name, upd.Email, upd.CategoryID, s.clock.Now().UTC(), accNumber)
	if err != nil {
		return types.Account{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.Account{}, ErrNotFound
	}

	accounts, err := s.Accounts(ctx, &accNumber)
	if err != nil {
		return types.Account{}, err
	}
	if len(accounts) == 0 {
		return types.Account{}, ErrNotFound
	}
	return accounts[0], nil
}

func (s *SQLite) DeleteAccount(ctx context.Context, accNumber int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var accountID int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM accounts WHERE acc_number = ?`, accNumber).Scan(&accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM history WHERE account_id = ?`, accountID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM accounts WHERE id = ?`, accountID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLite) Categories(ctx context.Context) ([]types.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at, updated_at FROM categories ORDER BY title ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []types.Category
	for rows.Next() {
		var c types.Category
		if err := rows.Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLite) CreateCategory(ctx context.Context, title string) (types.Category, error) {
	now := s.clock.Now().UTC()
	var c types.Category
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO categories (title, created_at, updated_at) VALUES (?, ?, ?)
		 RETURNING id, title, created_at, updated_at`,
		title, now, now).Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return types.Category{}, err
	}
	return c, nil
}

func (s *SQLite) UpdateCategory(ctx context.Context, id int64, title string) (types.Category, error) {
	var c types.Category
	err := s.db.QueryRowContext(ctx,
		`UPDATE categories SET title = ?, updated_at = ? WHERE id = ?
		 RETURNING id, title, created_at, updated_at`,
		title, s.clock.Now().UTC(), id).Scan(&c.ID, &c.Title, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Category{}, ErrNotFound
	}
	if err != nil {
		return types.Category{}, err
	}
	return c, nil
}

func (s *SQLite) DeleteCategory(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE accounts SET category_id = NULL WHERE category_id = ?`, id); err != nil {
		return err
	}

	if s.beforeCategoryDelete != nil {
		if err := s.beforeCategoryDelete(); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (s *SQLite) AccountsCountByCategory(ctx context.Context, id int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM accounts WHERE category_id = ?`, id).Scan(&n)
	return n, err
}
