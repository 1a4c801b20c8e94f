// Package position stores tracked positions (§3.3) and the watchlist
// query the Tiered Collector schedules against.
package position

import (
	"fmt"
	"time"

	"github.com/aristath/sentinel/internal/database"
)

// Status is a position's lifecycle state.
type Status string

const (
	StatusActive    Status = "active"
	StatusWatchlist Status = "watchlist"
	StatusDormant   Status = "dormant"
	StatusClosed    Status = "closed"
)

// Position is a tracked token holding and its reconciled P&L fields.
type Position struct {
	ID                  string
	TokenContract       string
	TokenChain          string
	Status              Status
	Timeframe           string
	TotalTokensBought   float64
	TotalTokensSold     float64
	TotalQuantity       float64
	TotalAllocationUSD  float64
	TotalExtractedUSD   float64
	CurrentUSDValue     float64
	TotalPnLUSD         float64
	TotalPnLPct         float64
	PnLLastCalculatedAt time.Time
}

const schemaSQL = `
CREATE TABLE IF NOT EXISTS lowcap_positions (
	id                    TEXT PRIMARY KEY,
	token_contract        TEXT NOT NULL,
	token_chain           TEXT NOT NULL,
	status                TEXT NOT NULL,
	timeframe             TEXT NOT NULL DEFAULT '',
	total_tokens_bought   REAL NOT NULL DEFAULT 0,
	total_tokens_sold     REAL NOT NULL DEFAULT 0,
	total_quantity        REAL NOT NULL DEFAULT 0,
	total_allocation_usd  REAL NOT NULL DEFAULT 0,
	total_extracted_usd   REAL NOT NULL DEFAULT 0,
	current_usd_value     REAL NOT NULL DEFAULT 0,
	total_pnl_usd         REAL NOT NULL DEFAULT 0,
	total_pnl_pct         REAL NOT NULL DEFAULT 0,
	pnl_last_calculated_at TEXT
);
CREATE INDEX IF NOT EXISTS idx_positions_status ON lowcap_positions(status);
CREATE INDEX IF NOT EXISTS idx_positions_token ON lowcap_positions(token_contract, token_chain);
`

// Store is the position repository.
type Store struct {
	db *database.DB
}

// New opens the position store at path.
func New(path string) (*Store, error) {
	db, err := database.New(database.Config{Path: path, Profile: database.ProfileLedger, Name: "positions"})
	if err != nil {
		return nil, err
	}
	if err := db.EnsureSchema(schemaSQL); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying database, for integrity checks and backups.
func (s *Store) DB() *database.DB { return s.db }

// TrackedTokens returns the distinct (token_contract, chain) pairs across
// positions with status in {active, watchlist, dormant} — the Tiered
// Collector's input set T (§4.3).
type TrackedToken struct {
	TokenContract string
	Chain         string
}

func (s *Store) TrackedTokens() ([]TrackedToken, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT token_contract, token_chain FROM lowcap_positions
		WHERE status IN ('active','watchlist','dormant')`)
	if err != nil {
		return nil, fmt.Errorf("tracked tokens: %w", err)
	}
	defer rows.Close()

	var out []TrackedToken
	for rows.Next() {
		var t TrackedToken
		if err := rows.Scan(&t.TokenContract, &t.Chain); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// PrioritySet returns tokens with timeframe "1m" and status in
// {active, watchlist} — always scheduled every cycle (§4.3).
func (s *Store) PrioritySet(priorityTimeframe string) (map[TrackedToken]bool, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT token_contract, token_chain FROM lowcap_positions
		WHERE timeframe = ? AND status IN ('active','watchlist')`, priorityTimeframe)
	if err != nil {
		return nil, fmt.Errorf("priority set: %w", err)
	}
	defer rows.Close()

	out := make(map[TrackedToken]bool)
	for rows.Next() {
		var t TrackedToken
		if err := rows.Scan(&t.TokenContract, &t.Chain); err != nil {
			return nil, err
		}
		out[t] = true
	}
	return out, rows.Err()
}

// ActivePositions returns every position with status active, the set the
// Reconciliation Engine walks each cycle.
func (s *Store) ActivePositions() ([]Position, error) {
	rows, err := s.db.Query(`
		SELECT id, token_contract, token_chain, status, timeframe, total_tokens_bought,
			total_tokens_sold, total_quantity, total_allocation_usd, total_extracted_usd,
			current_usd_value, total_pnl_usd, total_pnl_pct, pnl_last_calculated_at
		FROM lowcap_positions WHERE status = 'active'`)
	if err != nil {
		return nil, fmt.Errorf("active positions: %w", err)
	}
	defer rows.Close()

	var out []Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPosition(rows rowScanner) (Position, error) {
	var p Position
	var status string
	var calculatedAt *string
	err := rows.Scan(&p.ID, &p.TokenContract, &p.TokenChain, &status, &p.Timeframe,
		&p.TotalTokensBought, &p.TotalTokensSold, &p.TotalQuantity, &p.TotalAllocationUSD,
		&p.TotalExtractedUSD, &p.CurrentUSDValue, &p.TotalPnLUSD, &p.TotalPnLPct, &calculatedAt)
	if err != nil {
		return p, fmt.Errorf("scan position: %w", err)
	}
	p.Status = Status(status)
	if calculatedAt != nil && *calculatedAt != "" {
		p.PnLLastCalculatedAt, _ = time.Parse(time.RFC3339, *calculatedAt)
	}
	return p, nil
}

// UpdateReconciliation writes the four reconciled fields plus the
// recalculation timestamp atomically (§4.4 step 6).
func (s *Store) UpdateReconciliation(id string, quantity, currentValue, pnlUSD, pnlPct float64) error {
	_, err := s.db.Exec(`
		UPDATE lowcap_positions SET
			total_quantity = ?, current_usd_value = ?, total_pnl_usd = ?,
			total_pnl_pct = ?, pnl_last_calculated_at = ?
		WHERE id = ?`,
		quantity, currentValue, pnlUSD, pnlPct, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("update reconciliation: %w", err)
	}
	return nil
}

// Upsert inserts or replaces a position row, used by fixtures and tests.
func (s *Store) Upsert(p Position) error {
	_, err := s.db.Exec(`
		INSERT INTO lowcap_positions (
			id, token_contract, token_chain, status, timeframe, total_tokens_bought,
			total_tokens_sold, total_quantity, total_allocation_usd, total_extracted_usd,
			current_usd_value, total_pnl_usd, total_pnl_pct, pnl_last_calculated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			token_contract=excluded.token_contract, token_chain=excluded.token_chain,
			status=excluded.status, timeframe=excluded.timeframe,
			total_tokens_bought=excluded.total_tokens_bought, total_tokens_sold=excluded.total_tokens_sold,
			total_quantity=excluded.total_quantity, total_allocation_usd=excluded.total_allocation_usd,
			total_extracted_usd=excluded.total_extracted_usd, current_usd_value=excluded.current_usd_value,
			total_pnl_usd=excluded.total_pnl_usd, total_pnl_pct=excluded.total_pnl_pct,
			pnl_last_calculated_at=excluded.pnl_last_calculated_at`,
		p.ID, p.TokenContract, p.TokenChain, string(p.Status), p.Timeframe, p.TotalTokensBought,
		p.TotalTokensSold, p.TotalQuantity, p.TotalAllocationUSD, p.TotalExtractedUSD,
		p.CurrentUSDValue, p.TotalPnLUSD, p.TotalPnLPct, formatTimePtr(p.PnLLastCalculatedAt))
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

func formatTimePtr(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// Get fetches a position by id.
func (s *Store) Get(id string) (Position, bool, error) {
	row := s.db.QueryRow(`
		SELECT id, token_contract, token_chain, status, timeframe, total_tokens_bought,
			total_tokens_sold, total_quantity, total_allocation_usd, total_extracted_usd,
			current_usd_value, total_pnl_usd, total_pnl_pct, pnl_last_calculated_at
		FROM lowcap_positions WHERE id = ?`, id)
	p, err := scanPosition(row)
	if err != nil {
		return Position{}, false, nil
	}
	return p, true, nil
}
