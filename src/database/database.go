package database

import (
	"database/sql"
	stdlog "log"

	"github.com/alejo7774/crypto-tax-calculator-2025/src/logger"
	_ "modernc.org/sqlite"
)

var DB *sql.DB

func InitDB(databasePath string) {
	db, err := sql.Open("sqlite", databasePath)
	if err != nil {
		stdlog.Fatalf("failed to open database at %s: %v", databasePath, err)
	}

	DB = db

	if logger.L != nil {
		logger.L.Info("Checking database migrations", "databasePath", databasePath)
	}
	migrateTransactionTable()

	createTableStatement := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL UNIQUE,
		password TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		token TEXT NOT NULL,
		refresh_token TEXT NOT NULL,
		user_agent TEXT,
		client_ip TEXT,
		is_blocked BOOLEAN DEFAULT FALSE,
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY(user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS crypto_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		kind TEXT NOT NULL,
		asset TEXT NOT NULL,
		quantity REAL NOT NULL,
		gross_value_eur REAL NOT NULL,
		fee_eur REAL NOT NULL,
		source TEXT NOT NULL,
		input_string TEXT,
		hash_id TEXT,
		FOREIGN KEY(user_id) REFERENCES users(id),
		UNIQUE(user_id, hash_id)
	);
	`

	_, err = DB.Exec(createTableStatement)
	if err != nil {
		if logger.L != nil {
			logger.L.Error("failed to create tables", "error", err)
		}
		stdlog.Fatalf("failed to create tables: %v", err)
	}
	if logger.L != nil {
		logger.L.Info("Database tables ensured/created.")
	}
}

// migrateTransactionTable backfills the fee_eur column on databases created
// before fees were stored separately from the gross value.
func migrateTransactionTable() {
	var tableName string
	err := DB.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='crypto_transactions'").Scan(&tableName)
	if err != nil {
		if err == sql.ErrNoRows {
			return
		}
		if logger.L != nil {
			logger.L.Error("Error checking for 'crypto_transactions' table", "error", err)
		}
		return
	}

	rows, err := DB.Query("PRAGMA table_info(crypto_transactions)")
	if err != nil {
		if logger.L != nil {
			logger.L.Error("Error reading 'crypto_transactions' schema", "error", err)
		}
		return
	}
	defer rows.Close()

	hasFeeColumn := false
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull, pk int
		var dfltValue sql.NullString
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			continue
		}
		if name == "fee_eur" {
			hasFeeColumn = true
		}
	}

	if !hasFeeColumn {
		if logger.L != nil {
			logger.L.Info("Adding 'fee_eur' column to 'crypto_transactions' table.")
		}
		if _, err := DB.Exec("ALTER TABLE crypto_transactions ADD COLUMN fee_eur REAL NOT NULL DEFAULT 0"); err != nil {
			if logger.L != nil {
				logger.L.Error("Failed to add 'fee_eur' column", "error", err)
			}
		}
	}
}
