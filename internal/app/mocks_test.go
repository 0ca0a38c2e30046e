package app

import (
	"context"
	"sync"

	"github.com/Embedded-Nature/invest-pilot/internal/domain"
	"github.com/Embedded-Nature/invest-pilot/internal/ports"
)

// mockGateway implements ports.BrokerageGateway with overridable function
// fields. It counts SubmitOrderPlan calls and remembers the last plan so
// tests can assert on what was sent.
type mockGateway struct {
	mu          sync.Mutex
	submitCalls int
	lastPlan    *domain.OrderPlan

	getPositionFn   func(ctx context.Context, symbol string) (*domain.Position, error)
	submitFn        func(ctx context.Context, clientOrderID string, plan *domain.OrderPlan) (*domain.OrderStatus, error)
	getOpenOrdersFn func(ctx context.Context) ([]domain.OrderStatus, error)
	cancelOrderFn   func(ctx context.Context, orderID string) error
	getQuoteFn      func(ctx context.Context, symbol string) (*ports.Quote, error)
}

func (m *mockGateway) GetPosition(ctx context.Context, symbol string) (*domain.Position, error) {
	if m.getPositionFn != nil {
		return m.getPositionFn(ctx, symbol)
	}
	return nil, nil
}

func (m *mockGateway) SubmitOrderPlan(ctx context.Context, clientOrderID string, plan *domain.OrderPlan) (*domain.OrderStatus, error) {
	m.mu.Lock()
	m.submitCalls++
	m.lastPlan = plan
	m.mu.Unlock()
	if m.submitFn != nil {
		return m.submitFn(ctx, clientOrderID, plan)
	}
	return &domain.OrderStatus{ID: "order-1", ClientOrderID: clientOrderID, Symbol: plan.Symbol()}, nil
}

func (m *mockGateway) GetOpenOrders(ctx context.Context) ([]domain.OrderStatus, error) {
	if m.getOpenOrdersFn != nil {
		return m.getOpenOrdersFn(ctx)
	}
	return nil, nil
}

func (m *mockGateway) CancelOrder(ctx context.Context, orderID string) error {
	if m.cancelOrderFn != nil {
		return m.cancelOrderFn(ctx, orderID)
	}
	return nil
}

func (m *mockGateway) GetLatestQuote(ctx context.Context, symbol string) (*ports.Quote, error) {
	if m.getQuoteFn != nil {
		return m.getQuoteFn(ctx, symbol)
	}
	return &ports.Quote{Symbol: symbol}, nil
}

func (m *mockGateway) submitted() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitCalls
}

func (m *mockGateway) sentPlan() *domain.OrderPlan {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPlan
}

// noopLogger discards everything. Tests assert on state, not log output.
type noopLogger struct{}

func (noopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (noopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}
