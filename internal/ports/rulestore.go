package ports

import (
	"context"

	"github.com/Embedded-Nature/invest-pilot/internal/domain"
)

// RuleStore holds active profit-taking rules. One armed rule per symbol.
//
// Implementations must tolerate concurrent create/cancel/fire operations
// without lost updates: Transition is an atomic compare-and-swap on the
// rule's state. Rules live for the store's lifetime: the in-memory
// implementation drops them on shutdown, the SQLite implementation keeps
// them across restarts.
type RuleStore interface {
	// Create registers a new rule. Returns ErrRuleExists if an armed rule
	// for the symbol is already present.
	Create(ctx context.Context, rule *domain.ProfitTakingRule) error

	// Get retrieves the most recent rule for a symbol.
	// Returns nil, nil if none exists.
	Get(ctx context.Context, symbol string) (*domain.ProfitTakingRule, error)

	// ListByState returns all rules currently in the given state.
	ListByState(ctx context.Context, state domain.RuleState) ([]*domain.ProfitTakingRule, error)

	// Transition atomically moves the symbol's rule from one state to
	// another. Returns ErrRuleNotFound if no rule exists, or
	// ErrRuleStateConflict if the rule is not in the expected from state.
	Transition(ctx context.Context, symbol string, from, to domain.RuleState) error

	// Close releases any resources held by the store.
	Close() error
}
