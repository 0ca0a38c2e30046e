// Package app coordinates order submission and automated profit taking on
// top of the pure orders package and the brokerage gateway.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Embedded-Nature/invest-pilot/internal/domain"
	"github.com/Embedded-Nature/invest-pilot/internal/ids"
	"github.com/Embedded-Nature/invest-pilot/internal/ports"
)

// SubmissionResult is the normalized outcome of submitting a plan.
//
// Accepted carries the brokerage order IDs (root first, then legs).
// A failed result carries a specific reason; Partial marks ambiguous
// outcomes (timeout or cancellation with no confirmation) where the order
// may be live and the caller must reconcile via an open-orders query
// before resubmitting.
type SubmissionResult struct {
	Accepted      bool
	OrderIDs      []string
	ClientOrderID string
	Symbol        string
	Class         domain.OrderClass
	Reason        string
	Partial       bool
}

// SubmissionCoordinator submits validated plans to the brokerage gateway.
//
// Each plan maps to exactly one gateway call carrying the whole order
// class; the gateway enforces sibling-leg cancel-on-fill server-side.
// The coordinator never retries: conditional-order submission is not
// idempotent-safe, and a retry after an ambiguous timeout could
// double-submit live risk. Retrying is the caller's explicit decision.
type SubmissionCoordinator struct {
	gateway ports.BrokerageGateway
	logger  ports.Logger
	timeout time.Duration
}

// NewSubmissionCoordinator creates a coordinator whose gateway calls are
// bounded by the given timeout.
func NewSubmissionCoordinator(gateway ports.BrokerageGateway, logger ports.Logger, timeout time.Duration) (*SubmissionCoordinator, error) {
	if gateway == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for SubmissionCoordinator")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SubmissionCoordinator{gateway: gateway, logger: logger, timeout: timeout}, nil
}

// Submit sends the plan to the gateway and reports a normalized result.
// No cancellation of an in-flight submission is attempted mid-call; once
// sent, reconciliation happens via a status query, not an abort.
func (c *SubmissionCoordinator) Submit(ctx context.Context, plan *domain.OrderPlan) SubmissionResult {
	clientOrderID := ids.NewClientOrderID()

	subCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	status, err := c.gateway.SubmitOrderPlan(subCtx, clientOrderID, plan)
	if err != nil {
		return c.failed(ctx, plan, clientOrderID, err)
	}

	orderIDs := append([]string{status.ID}, status.LegIDs...)
	c.logger.Info(ctx, "Order plan accepted", map[string]interface{}{
		"symbol":        plan.Symbol(),
		"class":         plan.Class,
		"orderIDs":      orderIDs,
		"clientOrderID": clientOrderID,
	})

	return SubmissionResult{
		Accepted:      true,
		OrderIDs:      orderIDs,
		ClientOrderID: clientOrderID,
		Symbol:        plan.Symbol(),
		Class:         plan.Class,
	}
}

// failed builds a failure result. The gateway's reason is kept untouched;
// symbol and class ride alongside for diagnosis.
func (c *SubmissionCoordinator) failed(ctx context.Context, plan *domain.OrderPlan, clientOrderID string, err error) SubmissionResult {
	// Cancellation is as ambiguous as a timeout: the request may already
	// have been dispatched when the caller's context was canceled.
	partial := errors.Is(err, ports.ErrGatewayTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, ports.ErrContextCanceled) ||
		errors.Is(err, context.Canceled)

	reason := err.Error()
	if partial {
		// The order may or may not be live at the brokerage.
		reason = ports.ErrGatewayTimeout.Error()
		c.logger.Warn(ctx, "Submission outcome unknown, reconcile via open orders before resubmitting", map[string]interface{}{
			"symbol":        plan.Symbol(),
			"class":         plan.Class,
			"clientOrderID": clientOrderID,
		})
	} else {
		c.logger.Error(ctx, err, "Order plan submission failed", map[string]interface{}{
			"symbol": plan.Symbol(),
			"class":  plan.Class,
		})
	}

	return SubmissionResult{
		Accepted:      false,
		ClientOrderID: clientOrderID,
		Symbol:        plan.Symbol(),
		Class:         plan.Class,
		Reason:        reason,
		Partial:       partial,
	}
}
