package pipeline

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aluiziolira/go-scrape-phones/models"
)

const phonesSchema = `
CREATE TABLE IF NOT EXISTS phones (
	run_id TEXT NOT NULL,
	product_number INTEGER NOT NULL,
	name TEXT NOT NULL,
	price TEXT NOT NULL,
	battery TEXT NOT NULL,
	processor TEXT NOT NULL,
	camera TEXT NOT NULL,
	rating TEXT NOT NULL,
	PRIMARY KEY (run_id, product_number)
);`

// SQLiteWriter stores rows in a phones table keyed by run and row index,
// so several runs can share one database file.
type SQLiteWriter struct {
	db    *sql.DB
	runID string
	mu    sync.Mutex
}

// NewSQLiteWriter opens (or creates) the database at filename.
func NewSQLiteWriter(filename, runID string) (*SQLiteWriter, error) {
	if runID == "" {
		return nil, fmt.Errorf("run id cannot be empty")
	}
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_timeout=5000", filename)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}
	if _, err := db.Exec(phonesSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create phones table: %w", err)
	}

	return &SQLiteWriter{db: db, runID: runID}, nil
}

// Write inserts phones in a single transaction.
func (sw *SQLiteWriter) Write(phones []*models.Phone) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	tx, err := sw.db.Begin()
	if err != nil {
		return fmt.Errorf("begin sqlite transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO phones
		(run_id, product_number, name, price, battery, processor, camera, rating)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, phone := range phones {
		if _, err := stmt.Exec(sw.runID, phone.Number, phone.Name, phone.Price, phone.Battery, phone.Processor, phone.Camera, phone.Rating); err != nil {
			return fmt.Errorf("insert phone %d: %w", phone.Number, err)
		}
	}
	return tx.Commit()
}

// Close closes the database handle.
func (sw *SQLiteWriter) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.db.Close()
}

// Validate ensures the phones table exists. A run without rows stores none.
func (sw *SQLiteWriter) Validate() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	var name string
	err := sw.db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'phones'`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("phones table missing")
	}
	if err != nil {
		return fmt.Errorf("check phones table: %w", err)
	}
	return nil
}

// Count returns the number of rows stored for the current run.
func (sw *SQLiteWriter) Count() (int, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	var count int
	err := sw.db.QueryRow(`SELECT COUNT(*) FROM phones WHERE run_id = ?`, sw.runID).Scan(&count)
	return count, err
}
