// Package memstore provides an in-memory ports.RuleStore. Rules live for
// the lifetime of the process; use the sqlite store when rules must
// survive a restart.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/Embedded-Nature/invest-pilot/internal/domain"
	"github.com/Embedded-Nature/invest-pilot/internal/ports"
)

// Compile-time interface check.
var _ ports.RuleStore = (*RuleStore)(nil)

// RuleStore keeps profit-taking rules in a mutex-guarded map keyed by
// symbol. State changes go through Transition, a compare-and-swap, so
// concurrent create/cancel/fire operations cannot lose updates.
type RuleStore struct {
	mu    sync.Mutex
	rules map[string]*domain.ProfitTakingRule
}

// New creates an empty in-memory rule store.
func New() *RuleStore {
	return &RuleStore{rules: make(map[string]*domain.ProfitTakingRule)}
}

// Create registers a new rule. An existing armed rule for the same symbol
// is a conflict; a terminal rule is replaced.
func (s *RuleStore) Create(_ context.Context, rule *domain.ProfitTakingRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.rules[rule.Symbol]; ok && existing.State == domain.RuleArmed {
		return ports.ErrRuleExists
	}

	cp := *rule
	now := time.Now().UTC()
	cp.CreatedAt = now
	cp.UpdatedAt = now
	s.rules[rule.Symbol] = &cp
	return nil
}

// Get returns a copy of the rule for the symbol, or nil, nil if none.
func (s *RuleStore) Get(_ context.Context, symbol string) (*domain.ProfitTakingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[symbol]
	if !ok {
		return nil, nil
	}
	cp := *rule
	return &cp, nil
}

// ListByState returns copies of all rules in the given state.
func (s *RuleStore) ListByState(_ context.Context, state domain.RuleState) ([]*domain.ProfitTakingRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*domain.ProfitTakingRule
	for _, rule := range s.rules {
		if rule.State == state {
			cp := *rule
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Transition atomically moves the symbol's rule from one state to another.
func (s *RuleStore) Transition(_ context.Context, symbol string, from, to domain.RuleState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rule, ok := s.rules[symbol]
	if !ok {
		return ports.ErrRuleNotFound
	}
	if rule.State != from {
		return ports.ErrRuleStateConflict
	}
	rule.State = to
	rule.UpdatedAt = time.Now().UTC()
	return nil
}

// Close is a no-op for the in-memory store.
func (s *RuleStore) Close() error {
	return nil
}
