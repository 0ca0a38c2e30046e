package ports

import (
	"context"

	"github.com/Embedded-Nature/invest-pilot/internal/domain"
)

// Quote is the latest bid/ask snapshot for a symbol.
type Quote struct {
	Symbol   string
	BidPrice float64
	BidSize  int64
	AskPrice float64
	AskSize  int64
}

// BrokerageGateway defines the interface for interacting with a brokerage.
// This abstraction decouples the order engine and the profit monitor from
// the concrete brokerage implementation.
//
// The gateway enforces sibling-leg cancel-on-fill semantics for multi-leg
// order classes natively; SubmitOrderPlan therefore carries a whole plan
// in one call, never leg by leg.
type BrokerageGateway interface {
	// GetPosition retrieves the open position for a symbol.
	// Returns nil, nil if no position exists, which is a normal outcome.
	GetPosition(ctx context.Context, symbol string) (*domain.Position, error)

	// GetOpenOrders lists all open orders, used to reconcile after an
	// ambiguous submission timeout.
	GetOpenOrders(ctx context.Context) ([]domain.OrderStatus, error)

	// SubmitOrderPlan submits a validated plan as a single logical order.
	// clientOrderID is a caller-generated idempotency handle attached to
	// the root order so the submission can be found again after a timeout.
	SubmitOrderPlan(ctx context.Context, clientOrderID string, plan *domain.OrderPlan) (*domain.OrderStatus, error)

	// CancelOrder requests cancellation of an open order by its ID.
	CancelOrder(ctx context.Context, orderID string) error

	// GetLatestQuote retrieves the latest quote for a symbol.
	GetLatestQuote(ctx context.Context, symbol string) (*Quote, error)
}
