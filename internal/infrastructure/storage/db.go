package storage

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// DB обёртка над sqlite-базой приложения
type DB struct {
	conn *sql.DB
}

// NewDB открывает базу по пути и создаёт таблицы
func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

func (db *DB) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS auth_sessions (
		token TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
		expires_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS detection_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT NOT NULL,
		filename TEXT NOT NULL,
		label TEXT NOT NULL,
		real_confidence REAL NOT NULL,
		fake_confidence REAL NOT NULL,
		raw_response TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_detection_logs_account ON detection_logs(account_id, created_at);
	`

	_, err := db.conn.Exec(query)
	return err
}

// Close закрывает соединение
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn возвращает *sql.DB для репозиториев
func (db *DB) Conn() *sql.DB {
	return db.conn
}
