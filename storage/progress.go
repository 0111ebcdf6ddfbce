package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ProgressStore is a local SQLite checkpoint file for long historical
// backfills. One row per completed (district, month) unit lets an
// interrupted run resume without refetching months it already saved.
type ProgressStore struct {
	db *sql.DB
}

func NewProgressStore(dbPath string) (*ProgressStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &ProgressStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *ProgressStore) Close() error {
	return s.db.Close()
}

func (s *ProgressStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS backfill_progress (
		district_code TEXT NOT NULL,
		deal_ymd TEXT NOT NULL,
		saved INTEGER NOT NULL DEFAULT 0,
		completed_at DATETIME NOT NULL,
		PRIMARY KEY (district_code, deal_ymd)
	);`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("migrate progress store: %w", err)
	}
	return nil
}

// IsDone reports whether a (district, month) unit was already collected.
func (s *ProgressStore) IsDone(districtCode, dealYmd string) (bool, error) {
	var n int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM backfill_progress WHERE district_code = ? AND deal_ymd = ?`,
		districtCode, dealYmd).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkDone records a completed unit with its saved-row count.
func (s *ProgressStore) MarkDone(districtCode, dealYmd string, saved int) error {
	_, err := s.db.Exec(`
		INSERT INTO backfill_progress (district_code, deal_ymd, saved, completed_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (district_code, deal_ymd) DO UPDATE SET
			saved = excluded.saved, completed_at = excluded.completed_at`,
		districtCode, dealYmd, saved, time.Now().UTC())
	return err
}

// DoneCount returns how many units have been completed so far.
func (s *ProgressStore) DoneCount() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM backfill_progress`).Scan(&n)
	return n, err
}
