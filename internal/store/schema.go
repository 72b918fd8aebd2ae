package store

// Schema is kept minimal: only the fields the dashboard and the ingest
// pipeline touch. Money columns are NUMERIC and written through
// decimal's driver.Valuer, so aggregate SUMs stay exact enough for
// display while scans round-trip via decimal.

const categoriesDDL = `CREATE TABLE IF NOT EXISTS categories (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    title      TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);`

const accountsDDL = `CREATE TABLE IF NOT EXISTS accounts (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    acc_number  INTEGER NOT NULL UNIQUE,
    name        TEXT NOT NULL DEFAULT '',
    email       TEXT NOT NULL DEFAULT '',
    balance     NUMERIC NOT NULL DEFAULT 0,
    equity      NUMERIC NOT NULL DEFAULT 0,
    category_id INTEGER REFERENCES categories(id),
    updated_at  TIMESTAMP NOT NULL
);`

const historyDDL = `CREATE TABLE IF NOT EXISTS history (
    id                       INTEGER PRIMARY KEY AUTOINCREMENT,
    account_id               INTEGER NOT NULL REFERENCES accounts(id),
    date                     TEXT NOT NULL,
    current_total_trade      INTEGER NOT NULL DEFAULT 0,
    current_profit           NUMERIC NOT NULL DEFAULT 0,
    current_lot              NUMERIC NOT NULL DEFAULT 0,
    current_order_buy_count  INTEGER NOT NULL DEFAULT 0,
    current_order_sell_count INTEGER NOT NULL DEFAULT 0,
    history_total_trade      INTEGER NOT NULL DEFAULT 0,
    history_profit           NUMERIC NOT NULL DEFAULT 0,
    history_lot              NUMERIC NOT NULL DEFAULT 0,
    history_order_buy_count  INTEGER NOT NULL DEFAULT 0,
    history_order_sell_count INTEGER NOT NULL DEFAULT 0,
    history_win              INTEGER NOT NULL DEFAULT 0,
    history_loss             INTEGER NOT NULL DEFAULT 0,
    updated_at               TIMESTAMP NOT NULL,
    UNIQUE(account_id, date)
);`

const historyDateIdxDDL = `CREATE INDEX IF NOT EXISTS idx_history_date ON history(date);`

func schemaDDL() []string {
	return []string{categoriesDDL, accountsDDL, historyDDL, historyDateIdxDDL}
}
