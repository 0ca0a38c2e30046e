package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Embedded-Nature/invest-pilot/internal/domain"
	"github.com/Embedded-Nature/invest-pilot/internal/orders"
	"github.com/Embedded-Nature/invest-pilot/internal/ports"
)

// ProfitMonitor is the recurring evaluator that inspects live positions
// and takes partial profit exactly once per qualifying threshold crossing.
//
// Each armed rule walks ARMED -> FIRED (close submitted) or
// ARMED -> CANCELLED (position gone, caller cancel, or invariant
// violation). Firing is a one-shot intent, not a fill guarantee: an
// accepted submission fires the rule regardless of eventual fill outcome.
type ProfitMonitor struct {
	gateway     ports.BrokerageGateway
	rules       ports.RuleStore
	coordinator *SubmissionCoordinator
	logger      ports.Logger
	interval    time.Duration
	evalTimeout time.Duration

	// inFlight marks symbols whose evaluation has not finished yet. A rule
	// awaiting gateway confirmation is in an implicit transient state
	// distinct from ARMED; skipping it prevents double-firing on slow
	// responses.
	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewProfitMonitor creates a monitor that evaluates armed rules every
// interval, bounding each symbol's evaluation by evalTimeout.
func NewProfitMonitor(
	gateway ports.BrokerageGateway,
	rules ports.RuleStore,
	coordinator *SubmissionCoordinator,
	logger ports.Logger,
	interval, evalTimeout time.Duration,
) (*ProfitMonitor, error) {
	if gateway == nil || rules == nil || coordinator == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for ProfitMonitor")
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if evalTimeout <= 0 {
		evalTimeout = 10 * time.Second
	}
	return &ProfitMonitor{
		gateway:     gateway,
		rules:       rules,
		coordinator: coordinator,
		logger:      logger,
		interval:    interval,
		evalTimeout: evalTimeout,
		inFlight:    make(map[string]struct{}),
	}, nil
}

// Start runs the evaluation loop until the context is cancelled. It
// returns only on shutdown.
func (m *ProfitMonitor) Start(ctx context.Context) error {
	m.logger.Info(ctx, "Profit-taking monitor started", map[string]interface{}{
		"interval":    m.interval.String(),
		"evalTimeout": m.evalTimeout.String(),
	})

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info(ctx, "Profit-taking monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			m.EvaluateCycle(ctx)
		}
	}
}

// EvaluateCycle runs one evaluation pass over all armed rules. Symbols
// evaluate concurrently and independently: a slow or failing gateway call
// for one symbol never blocks the others. Symbols still in flight from a
// previous cycle are skipped, so the cycle itself never waits.
func (m *ProfitMonitor) EvaluateCycle(ctx context.Context) {
	armed, err := m.rules.ListByState(ctx, domain.RuleArmed)
	if err != nil {
		m.logger.Error(ctx, err, "Failed to list armed rules, skipping cycle")
		return
	}

	for _, rule := range armed {
		if !m.acquire(rule.Symbol) {
			m.logger.Debug(ctx, "Evaluation still in flight, skipping", map[string]interface{}{"symbol": rule.Symbol})
			continue
		}
		go func(rule *domain.ProfitTakingRule) {
			defer m.release(rule.Symbol)
			evalCtx, cancel := context.WithTimeout(ctx, m.evalTimeout)
			defer cancel()
			m.evaluateRule(evalCtx, rule)
		}(rule)
	}
}

// evaluateRule runs the per-rule state machine for a single tick.
func (m *ProfitMonitor) evaluateRule(ctx context.Context, rule *domain.ProfitTakingRule) {
	fields := map[string]interface{}{
		"symbol":          rule.Symbol,
		"profitThreshold": rule.ProfitThreshold,
		"closePercentage": rule.ClosePercentage,
	}

	position, err := m.gateway.GetPosition(ctx, rule.Symbol)
	if err != nil {
		// Transient gateway trouble: rule stays armed, next cycle retries.
		m.logger.Warn(ctx, "Position lookup failed, will retry next cycle", map[string]interface{}{
			"symbol": rule.Symbol, "error": err.Error(),
		})
		return
	}

	if position == nil {
		// Position closed externally, nothing left to protect.
		m.logger.Info(ctx, "Position gone, cancelling profit rule", fields)
		if err := m.rules.Transition(ctx, rule.Symbol, domain.RuleArmed, domain.RuleCancelled); err != nil {
			m.logger.Warn(ctx, "Rule already transitioned during cancel", map[string]interface{}{
				"symbol": rule.Symbol, "error": err.Error(),
			})
		}
		return
	}

	unrealized := position.UnrealizedReturn()
	if unrealized < rule.ProfitThreshold {
		m.logger.Debug(ctx, "Profit threshold not met", map[string]interface{}{
			"symbol": rule.Symbol, "return": unrealized, "threshold": rule.ProfitThreshold,
		})
		return
	}

	plan, err := orders.BuildPartialClose(position, rule.ClosePercentage)
	if err != nil {
		if errors.Is(err, orders.ErrCloseRoundsToZero) {
			// Too small to close a whole share: decline the trigger, the
			// rule stays armed in case the position grows.
			m.logger.Warn(ctx, "Close size rounds to zero shares, leaving rule armed", fields)
			return
		}
		m.logger.Error(ctx, err, "Failed to build partial close plan", fields)
		return
	}

	result := m.coordinator.Submit(ctx, plan)
	if !result.Accepted {
		// Sole retry path: the rule stays armed and the next cycle
		// re-evaluates, naturally rate-limited by the cadence.
		m.logger.Warn(ctx, "Partial close submission failed, rule stays armed", map[string]interface{}{
			"symbol": rule.Symbol, "reason": result.Reason, "partial": result.Partial,
		})
		return
	}

	firedFields := map[string]interface{}{
		"symbol":   rule.Symbol,
		"return":   unrealized,
		"orderIDs": result.OrderIDs,
		"quantity": plan.Root.Quantity,
	}
	// Best effort: a quote at trigger time helps diagnose fills later, but
	// the firing already happened and must be recorded either way.
	if quote, err := m.gateway.GetLatestQuote(ctx, rule.Symbol); err == nil && quote != nil {
		firedFields["bid"] = quote.BidPrice
		firedFields["ask"] = quote.AskPrice
	}
	m.logger.Info(ctx, "Profit rule fired", firedFields)

	if err := m.rules.Transition(ctx, rule.Symbol, domain.RuleArmed, domain.RuleFired); err != nil {
		// The rule changed underneath an accepted submission. Fatal to
		// this rule only: force it terminal rather than leave it armed to
		// fire twice.
		m.logger.Error(ctx, fmt.Errorf("%w: %v", ports.ErrInvariantViolation, err),
			"Rule state changed during firing, forcing CANCELLED", fields)
		m.forceCancel(ctx, rule.Symbol)
	}
}

// forceCancel drives a corrupted rule to CANCELLED if it is not already in
// a terminal state.
func (m *ProfitMonitor) forceCancel(ctx context.Context, symbol string) {
	current, err := m.rules.Get(ctx, symbol)
	if err != nil || current == nil {
		return
	}
	if current.State == domain.RuleArmed {
		_ = m.rules.Transition(ctx, symbol, domain.RuleArmed, domain.RuleCancelled)
	}
}

func (m *ProfitMonitor) acquire(symbol string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, busy := m.inFlight[symbol]; busy {
		return false
	}
	m.inFlight[symbol] = struct{}{}
	return true
}

func (m *ProfitMonitor) release(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inFlight, symbol)
}
