package app

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/Embedded-Nature/invest-pilot/internal/domain"
	"github.com/Embedded-Nature/invest-pilot/internal/orders"
	"github.com/Embedded-Nature/invest-pilot/internal/ports"
)

// TradingService is the surface exposed to calling layers (tool adapters,
// CLIs). Every operation returns either a normalized payload or an error
// whose reason is specific and distinguishable; raw gateway errors never
// escape.
type TradingService struct {
	logger      ports.Logger
	gateway     ports.BrokerageGateway
	rules       ports.RuleStore
	coordinator *SubmissionCoordinator
}

// NewTradingService creates the application service instance.
func NewTradingService(
	logger ports.Logger,
	gateway ports.BrokerageGateway,
	rules ports.RuleStore,
	coordinator *SubmissionCoordinator,
) (*TradingService, error) {
	if logger == nil || gateway == nil || rules == nil || coordinator == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}
	return &TradingService{
		logger:      logger,
		gateway:     gateway,
		rules:       rules,
		coordinator: coordinator,
	}, nil
}

// --- Order placement operations ---
//
// Each builds a plan (which validates it) and hands it to the coordinator.
// Validation failures return an error; gateway outcomes, including
// failures, come back in the SubmissionResult.

// PlaceMarketOrder submits a plain market order.
func (s *TradingService) PlaceMarketOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity float64) (*SubmissionResult, error) {
	plan, err := orders.BuildSimple(orders.SimpleParams{
		Symbol:   symbol,
		Side:     side,
		Quantity: quantity,
		Type:     domain.Market,
	})
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, plan), nil
}

// PlaceLimitOrder submits a plain limit order.
func (s *TradingService) PlaceLimitOrder(ctx context.Context, symbol string, side domain.OrderSide, quantity, limitPrice float64) (*SubmissionResult, error) {
	plan, err := orders.BuildSimple(orders.SimpleParams{
		Symbol:     symbol,
		Side:       side,
		Quantity:   quantity,
		Type:       domain.Limit,
		LimitPrice: limitPrice,
	})
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, plan), nil
}

// PlaceBracketOrder submits an entry with paired take-profit and stop-loss
// exits.
func (s *TradingService) PlaceBracketOrder(ctx context.Context, p orders.BracketParams) (*SubmissionResult, error) {
	plan, err := orders.BuildBracket(p)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, plan), nil
}

// PlaceOCOOrder submits an exit pair on an existing position. The held
// position is fetched so the requested quantity can be checked against it
// rather than trusted from upstream.
func (s *TradingService) PlaceOCOOrder(ctx context.Context, p orders.OCOParams) (*SubmissionResult, error) {
	position, err := s.gateway.GetPosition(ctx, strings.ToUpper(strings.TrimSpace(p.Symbol)))
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, fmt.Errorf("%w: no open position for %s", ports.ErrValidation, p.Symbol)
	}
	if p.ExitSide == "" {
		p.ExitSide = position.CloseSide()
	}

	plan, err := orders.BuildOCO(p, position)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, plan), nil
}

// PlaceOTOOrder submits an entry with exactly one conditional exit.
func (s *TradingService) PlaceOTOOrder(ctx context.Context, p orders.OTOParams) (*SubmissionResult, error) {
	plan, err := orders.BuildOTO(p)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, plan), nil
}

// PlaceTrailingStopOrder submits a trailing-stop order. A PERCENT trail
// amount is a fraction: 0.03 trails by 3%; whole-number percentages are
// rejected by validation.
func (s *TradingService) PlaceTrailingStopOrder(ctx context.Context, p orders.TrailingStopParams) (*SubmissionResult, error) {
	plan, err := orders.BuildTrailingStop(p)
	if err != nil {
		return nil, err
	}
	return s.submit(ctx, plan), nil
}

func (s *TradingService) submit(ctx context.Context, plan *domain.OrderPlan) *SubmissionResult {
	result := s.coordinator.Submit(ctx, plan)
	return &result
}

// --- Profit-taking rule operations ---

// ArmProfitTakingRule registers a recurring profit-taking rule for the
// monitor. threshold is the unrealized-return trigger (0.2 = 20%),
// closePercentage the fraction of the position to close, in (0, 1].
func (s *TradingService) ArmProfitTakingRule(ctx context.Context, symbol string, threshold, closePercentage float64) (*domain.ProfitTakingRule, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ports.ErrValidation)
	}
	if !(threshold > 0) || math.IsInf(threshold, 0) || math.IsNaN(threshold) {
		return nil, fmt.Errorf("%w: profit threshold must be a positive finite fraction", ports.ErrValidation)
	}
	if !(closePercentage > 0) || closePercentage > 1 || math.IsNaN(closePercentage) {
		return nil, fmt.Errorf("%w: close percentage must be a fraction in (0, 1]", ports.ErrValidation)
	}

	rule := &domain.ProfitTakingRule{
		Symbol:          symbol,
		ProfitThreshold: threshold,
		ClosePercentage: closePercentage,
		State:           domain.RuleArmed,
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Profit rule armed", map[string]interface{}{
		"symbol": symbol, "threshold": threshold, "closePercentage": closePercentage,
	})
	return rule, nil
}

// CancelProfitTakingRule cancels an armed rule. Cancelling a rule that has
// already fired or was already cancelled returns ErrRuleStateConflict.
func (s *TradingService) CancelProfitTakingRule(ctx context.Context, symbol string) error {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if err := s.rules.Transition(ctx, symbol, domain.RuleArmed, domain.RuleCancelled); err != nil {
		return err
	}
	s.logger.Info(ctx, "Profit rule cancelled", map[string]interface{}{"symbol": symbol})
	return nil
}

// GetProfitTakingRule returns the rule for a symbol, or nil if none.
func (s *TradingService) GetProfitTakingRule(ctx context.Context, symbol string) (*domain.ProfitTakingRule, error) {
	return s.rules.Get(ctx, strings.ToUpper(strings.TrimSpace(symbol)))
}

// ListProfitTakingRules returns all rules currently in the given state.
func (s *TradingService) ListProfitTakingRules(ctx context.Context, state domain.RuleState) ([]*domain.ProfitTakingRule, error) {
	return s.rules.ListByState(ctx, state)
}

// TakeProfitResult reports a one-shot profit-taking check.
type TakeProfitResult struct {
	Triggered        bool
	UnrealizedReturn float64
	Submission       *SubmissionResult
}

// TakePartialProfit performs a single immediate evaluation of a position
// against a threshold without arming a recurring rule: if the unrealized
// return meets the threshold, closePercentage of the position is closed at
// market. A threshold that is not met is a normal outcome, not an error.
func (s *TradingService) TakePartialProfit(ctx context.Context, symbol string, threshold, closePercentage float64) (*TakeProfitResult, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	position, err := s.gateway.GetPosition(ctx, symbol)
	if err != nil {
		return nil, err
	}
	if position == nil {
		return nil, fmt.Errorf("%w: no open position for %s", ports.ErrNotFound, symbol)
	}

	unrealized := position.UnrealizedReturn()
	if unrealized < threshold {
		s.logger.Info(ctx, "Profit threshold not met, no action taken", map[string]interface{}{
			"symbol": symbol, "return": unrealized, "threshold": threshold,
		})
		return &TakeProfitResult{Triggered: false, UnrealizedReturn: unrealized}, nil
	}

	plan, err := orders.BuildPartialClose(position, closePercentage)
	if err != nil {
		return nil, err
	}
	result := s.coordinator.Submit(ctx, plan)
	return &TakeProfitResult{
		Triggered:        true,
		UnrealizedReturn: unrealized,
		Submission:       &result,
	}, nil
}
