package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/defilens/wallet_lens/internal/domain"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS scan_cursor (
			vault TEXT PRIMARY KEY,
			last_block INTEGER NOT NULL,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS scan_runs (
			id TEXT PRIMARY KEY,
			started_at DATETIME NOT NULL,
			finished_at DATETIME NOT NULL,
			candidates INTEGER NOT NULL,
			loops_found INTEGER NOT NULL,
			from_block INTEGER NOT NULL,
			to_block INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS loop_wallets (
			wallet TEXT PRIMARY KEY,
			strategy TEXT NOT NULL,
			total_apy REAL NOT NULL,
			total_value REAL NOT NULL,
			steps INTEGER NOT NULL,
			scanned_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_loop_wallets_apy ON loop_wallets(total_apy DESC);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ScanRepository implementation

func (s *SQLiteStore) GetCursor(ctx context.Context, vault string) (uint64, error) {
	query := `SELECT last_block FROM scan_cursor WHERE vault = ?`
	row := s.db.QueryRowContext(ctx, query, strings.ToLower(vault))

	var block uint64
	if err := row.Scan(&block); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return block, nil
}

func (s *SQLiteStore) SaveCursor(ctx context.Context, vault string, block uint64) error {
	query := `INSERT INTO scan_cursor (vault, last_block, updated_at)
			  VALUES (?, ?, CURRENT_TIMESTAMP)
			  ON CONFLICT(vault) DO UPDATE SET
			  last_block=excluded.last_block,
			  updated_at=excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query, strings.ToLower(vault), block)
	return err
}

func (s *SQLiteStore) SaveScanRun(ctx context.Context, run *domain.ScanRun) error {
	query := `INSERT INTO scan_runs (id, started_at, finished_at, candidates, loops_found, from_block, to_block)
			  VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.StartedAt, run.FinishedAt, run.Candidates, run.LoopsFound, run.FromBlock, run.ToBlock)
	return err
}

func (s *SQLiteStore) ListScanRuns(ctx context.Context, limit int) ([]*domain.ScanRun, error) {
	query := `SELECT id, started_at, finished_at, candidates, loops_found, from_block, to_block
			  FROM scan_runs ORDER BY started_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.ScanRun
	for rows.Next() {
		var r domain.ScanRun
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Candidates, &r.LoopsFound, &r.FromBlock, &r.ToBlock); err != nil {
			return nil, err
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) SaveLoopWallets(ctx context.Context, wallets []*domain.LoopWallet) error {
	query := `INSERT INTO loop_wallets (wallet, strategy, total_apy, total_value, steps, scanned_at)
			  VALUES (?, ?, ?, ?, ?, ?)
			  ON CONFLICT(wallet) DO UPDATE SET
			  strategy=excluded.strategy,
			  total_apy=excluded.total_apy,
			  total_value=excluded.total_value,
			  steps=excluded.steps,
			  scanned_at=excluded.scanned_at`
	for _, w := range wallets {
		if _, err := s.db.ExecContext(ctx, query,
			strings.ToLower(w.Wallet), w.Strategy, w.TotalAPY, w.TotalValue, w.Steps, w.ScannedAt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) ListLoopWallets(ctx context.Context, limit int) ([]*domain.LoopWallet, error) {
	query := `SELECT wallet, strategy, total_apy, total_value, steps, scanned_at
			  FROM loop_wallets ORDER BY total_apy DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var wallets []*domain.LoopWallet
	for rows.Next() {
		var w domain.LoopWallet
		if err := rows.Scan(&w.Wallet, &w.Strategy, &w.TotalAPY, &w.TotalValue, &w.Steps, &w.ScannedAt); err != nil {
			return nil, err
		}
		wallets = append(wallets, &w)
	}
	return wallets, rows.Err()
}
