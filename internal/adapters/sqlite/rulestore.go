// Package sqlite provides a durable ports.RuleStore so armed profit rules
// survive process restarts.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Embedded-Nature/invest-pilot/internal/domain"
	"github.com/Embedded-Nature/invest-pilot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Compile-time interface check.
var _ ports.RuleStore = (*RuleStore)(nil)

// RuleStore implements ports.RuleStore using SQLite. State transitions are
// compare-and-swap UPDATEs, so concurrent monitor and caller operations on
// the same symbol cannot lose updates.
type RuleStore struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite rule store.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// New creates a SQLite rule store and initializes its schema.
func New(cfg Config) (*RuleStore, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite rule store")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/invest_pilot.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory %q: %w", filepath.Dir(dbPath), err)
	}

	// WAL mode for better concurrency between the monitor and callers.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database at %q: %w", dbPath, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database at %q: %w", dbPath, err)
	}

	// The Go driver benefits from a single connection with SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	store := &RuleStore{db: db, logger: cfg.Logger}
	if err := store.initializeSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize rule schema: %w", err)
	}

	cfg.Logger.Info(context.Background(), "SQLite rule store ready", map[string]interface{}{"path": dbPath})
	return store, nil
}

func (s *RuleStore) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS profit_rules (
		symbol           TEXT PRIMARY KEY,
		profit_threshold REAL NOT NULL,
		close_percentage REAL NOT NULL,
		state            TEXT NOT NULL,
		created_at       TIMESTAMP NOT NULL,
		updated_at       TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_profit_rules_state ON profit_rules(state);`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating profit_rules table: %w", err)
	}
	return nil
}

// Create registers a new rule. An armed rule for the same symbol is a
// conflict; a terminal rule for the symbol is overwritten. The upsert is
// one statement with the armed check in its conflict clause, so two
// concurrent creates for the same symbol cannot both succeed.
func (s *RuleStore) Create(ctx context.Context, rule *domain.ProfitTakingRule) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO profit_rules (symbol, profit_threshold, close_percentage, state, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET
			profit_threshold = excluded.profit_threshold,
			close_percentage = excluded.close_percentage,
			state            = excluded.state,
			created_at       = excluded.created_at,
			updated_at       = excluded.updated_at
		WHERE profit_rules.state != ?`,
		rule.Symbol, rule.ProfitThreshold, rule.ClosePercentage, string(rule.State), now, now,
		string(domain.RuleArmed))
	if err != nil {
		return fmt.Errorf("inserting profit rule for %s: %w", rule.Symbol, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows for %s: %w", rule.Symbol, err)
	}
	if affected == 0 {
		return ports.ErrRuleExists
	}
	return nil
}

// Get retrieves the rule for a symbol. Returns nil, nil if none exists.
func (s *RuleStore) Get(ctx context.Context, symbol string) (*domain.ProfitTakingRule, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT symbol, profit_threshold, close_percentage, state, created_at, updated_at
		FROM profit_rules WHERE symbol = ?`, symbol)

	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying profit rule for %s: %w", symbol, err)
	}
	return rule, nil
}

// ListByState returns all rules currently in the given state.
func (s *RuleStore) ListByState(ctx context.Context, state domain.RuleState) ([]*domain.ProfitTakingRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT symbol, profit_threshold, close_percentage, state, created_at, updated_at
		FROM profit_rules WHERE state = ? ORDER BY symbol`, string(state))
	if err != nil {
		return nil, fmt.Errorf("querying profit rules by state %s: %w", state, err)
	}
	defer rows.Close()

	var out []*domain.ProfitTakingRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning profit rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// Transition atomically moves the symbol's rule from one state to another
// via a conditional UPDATE. Zero rows affected means the rule is missing
// or not in the expected state.
func (s *RuleStore) Transition(ctx context.Context, symbol string, from, to domain.RuleState) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE profit_rules SET state = ?, updated_at = ?
		WHERE symbol = ? AND state = ?`,
		string(to), time.Now().UTC(), symbol, string(from))
	if err != nil {
		return fmt.Errorf("transitioning profit rule for %s: %w", symbol, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows for %s: %w", symbol, err)
	}
	if affected == 0 {
		existing, getErr := s.Get(ctx, symbol)
		if getErr != nil {
			return getErr
		}
		if existing == nil {
			return ports.ErrRuleNotFound
		}
		return ports.ErrRuleStateConflict
	}
	return nil
}

// Close closes the underlying database.
func (s *RuleStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRule(row rowScanner) (*domain.ProfitTakingRule, error) {
	var rule domain.ProfitTakingRule
	var state string
	if err := row.Scan(&rule.Symbol, &rule.ProfitThreshold, &rule.ClosePercentage, &state, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
		return nil, err
	}
	rule.State = domain.RuleState(state)
	return &rule, nil
}
