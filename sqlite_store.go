package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"slidesmith/deck"
)

// SQLiteStore persists presentation records in a single sqlite database.
// It implements the same PresentationStore contract as FileStore and can
// replace it without touching callers.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// _pragma parameters apply to every pooled connection.
	// busy_timeout(5000): wait up to 5s on lock contention instead of failing
	// journal_mode(WAL): concurrent readers while one writer is active
	// synchronous(NORMAL): safe with WAL, reduces fsync overhead
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, WrapError("store", "NewSQLiteStore", err)
	}

	// Small pool avoids excessive lock contention on the single database file
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(0)

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS presentations (
			id TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at DATETIME
		);
	`)
	if err != nil {
		db.Close()
		return nil, WrapError("store", "NewSQLiteStore", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Get(id string) (*deck.Presentation, error) {
	var data string
	err := s.db.QueryRow("SELECT data FROM presentations WHERE id = ?", id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, WrapError("store", "Get", err)
	}
	var p deck.Presentation
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, WrapError("store", "Get", fmt.Errorf("corrupt record %s: %w", id, err))
	}
	return &p, nil
}

func (s *SQLiteStore) Put(p *deck.Presentation) error {
	data, err := json.Marshal(p)
	if err != nil {
		return WrapError("store", "Put", err)
	}
	_, err = s.db.Exec(
		"INSERT INTO presentations (id, data, updated_at) VALUES (?, ?, ?) ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at",
		p.ID, string(data), time.Now().UTC().Format(time.RFC3339),
	)
	return WrapError("store", "Put", err)
}

func (s *SQLiteStore) Delete(id string) error {
	_, err := s.db.Exec("DELETE FROM presentations WHERE id = ?", id)
	return WrapError("store", "Delete", err)
}

func (s *SQLiteStore) Exists(id string) bool {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM presentations WHERE id = ?", id).Scan(&one)
	return err == nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
