// Package store implements AuditStore, the SQLite-backed reference
// implementation of §6's "persisted state" collaborator: two rows-per-entity
// tables (signals, positions) with the fields of §3 plus timestamps and a
// free-form metadata blob.
//
// No donor analog exists (the donor has no DB layer); grounded on the
// pack's AlejandroRuiz99-polybot SQLite storage adapter — same
// sql.Open("sqlite", path)/schema-on-open/single-writer-conn shape.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yjx-labs/swapscalp/order"
)

const schema = `
CREATE TABLE IF NOT EXISTS signals (
	id          TEXT PRIMARY KEY,
	symbol      TEXT NOT NULL,
	direction   TEXT NOT NULL,
	entry_price REAL NOT NULL,
	tp1_price   REAL NOT NULL,
	tp2_price   REAL NOT NULL,
	sl_price    REAL NOT NULL,
	strength    REAL NOT NULL,
	status      TEXT NOT NULL,
	metadata    TEXT NOT NULL DEFAULT '{}',
	created_at  DATETIME NOT NULL,
	updated_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol        TEXT NOT NULL,
	side          TEXT NOT NULL,
	entry_price   REAL NOT NULL,
	quantity      REAL NOT NULL,
	leverage      INTEGER NOT NULL,
	tp_price      REAL NOT NULL,
	sl_price      REAL NOT NULL,
	status        TEXT NOT NULL,
	close_reason  TEXT NOT NULL DEFAULT '',
	pnl_pct       REAL NOT NULL DEFAULT 0,
	metadata      TEXT NOT NULL DEFAULT '{}',
	created_at    DATETIME NOT NULL,
	updated_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_signals_symbol   ON signals(symbol);
CREATE INDEX IF NOT EXISTS idx_signals_created  ON signals(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_positions_symbol ON positions(symbol);
CREATE INDEX IF NOT EXISTS idx_positions_status  ON positions(status);
`

// SignalRow mirrors one signal lifecycle event plus persistence timestamps
// and a free-form metadata blob, per SPEC_FULL §3's addition.
type SignalRow struct {
	ID         string
	Symbol     string
	Direction  string
	EntryPrice float64
	TP1Price   float64
	TP2Price   float64
	SLPrice    float64
	Strength   float64
	Status     string
	Metadata   map[string]string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// PositionRow mirrors one position lifecycle event plus persistence
// timestamps and a free-form metadata blob.
type PositionRow struct {
	ID          int64
	Symbol      string
	Side        string
	EntryPrice  float64
	Quantity    float64
	Leverage    int
	TPPrice     float64
	SLPrice     float64
	Status      string
	CloseReason string
	PnlPct      float64
	Metadata    map[string]string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AuditStore persists SignalRow/PositionRow to SQLite, implementing
// order.AuditSink so Coordinator can depend on the narrow interface
// without importing this package.
type AuditStore struct {
	db *sql.DB
}

// Open creates (or reuses) the database at path and applies the schema.
func Open(path string) (*AuditStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store.Open: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // sqlite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store.Open: apply schema: %w", err)
	}
	return &AuditStore{db: db}, nil
}

// Close closes the underlying connection.
func (s *AuditStore) Close() error { return s.db.Close() }

// RecordSignal upserts one signal lifecycle row, implementing
// order.AuditSink.
func (s *AuditStore) RecordSignal(ctx context.Context, e order.SignalEvent) error {
	now := time.Now().UTC()
	meta, _ := json.Marshal(map[string]string{})
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO signals (id, symbol, direction, entry_price, tp1_price, tp2_price, sl_price, strength, status, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status     = excluded.status,
			updated_at = excluded.updated_at
	`, e.ID, e.Symbol, e.Direction, e.EntryPrice, e.TP1Price, e.TP2Price, e.SLPrice, e.Strength, e.Status, string(meta), now, now)
	if err != nil {
		return fmt.Errorf("store.RecordSignal: upsert %s: %w", e.ID, err)
	}
	return nil
}

// RecordPosition inserts one position lifecycle row. Unlike signals,
// positions are append-only (OPEN and CLOSED land as separate rows) so the
// audit trail keeps the full lifecycle rather than overwriting it.
func (s *AuditStore) RecordPosition(ctx context.Context, e order.PositionEvent) error {
	now := time.Now().UTC()
	meta, _ := json.Marshal(map[string]string{})
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (symbol, side, entry_price, quantity, leverage, tp_price, sl_price, status, close_reason, pnl_pct, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Symbol, e.Side, e.EntryPrice, e.Quantity, e.Leverage, e.TPPrice, e.SLPrice, e.Status, e.CloseReason, e.PnlPct, string(meta), now, now)
	if err != nil {
		return fmt.Errorf("store.RecordPosition: insert %s: %w", e.Symbol, err)
	}
	return nil
}

// RecentSignals returns the most recent signal rows, newest first, for
// status reporting.
func (s *AuditStore) RecentSignals(ctx context.Context, limit int) ([]SignalRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, direction, entry_price, tp1_price, tp2_price, sl_price, strength, status, created_at, updated_at
		FROM signals ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store.RecentSignals: query: %w", err)
	}
	defer rows.Close()

	var out []SignalRow
	for rows.Next() {
		var r SignalRow
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Direction, &r.EntryPrice, &r.TP1Price, &r.TP2Price, &r.SLPrice, &r.Strength, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store.RecentSignals: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentPositions returns the most recent position rows, newest first, for
// status reporting.
func (s *AuditStore) RecentPositions(ctx context.Context, limit int) ([]PositionRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, symbol, side, entry_price, quantity, leverage, tp_price, sl_price, status, close_reason, pnl_pct, created_at, updated_at
		FROM positions ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("store.RecentPositions: query: %w", err)
	}
	defer rows.Close()

	var out []PositionRow
	for rows.Next() {
		var r PositionRow
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Side, &r.EntryPrice, &r.Quantity, &r.Leverage, &r.TPPrice, &r.SLPrice, &r.Status, &r.CloseReason, &r.PnlPct, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("store.RecentPositions: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
