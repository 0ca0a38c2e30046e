// Package alpacaclient implements the ports.BrokerageGateway interface
// using the Alpaca trading API.
package alpacaclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/Embedded-Nature/invest-pilot/internal/domain"
	"github.com/Embedded-Nature/invest-pilot/internal/ports"
)

const (
	// Base URLs
	baseURLLive  = "https://api.alpaca.markets"
	baseURLPaper = "https://paper-api.alpaca.markets"
)

// Compile-time interface check.
var _ ports.BrokerageGateway = (*Client)(nil)

// Client implements the ports.BrokerageGateway interface using the
// alpaca-trade-api-go library.
type Client struct {
	trading    *alpaca.Client
	data       *marketdata.Client
	logger     ports.Logger
	reqTimeout time.Duration
}

// Config holds configuration specific to the Alpaca client adapter.
type Config struct {
	APIKey    string
	SecretKey string
	Paper     bool   // paper trading endpoint; defaults to true upstream for safety
	BaseURL   string // optional explicit override
	Logger    ports.Logger
	// RequestTimeout caps every gateway call. Submissions exceeding it
	// surface as ports.ErrGatewayTimeout; the order may still be live.
	RequestTimeout time.Duration
}

// New creates a new Alpaca client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Alpaca client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: Alpaca API key and secret key are required", ports.ErrConfigurationError)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		if cfg.Paper {
			baseURL = baseURLPaper
		} else {
			baseURL = baseURLLive
		}
	}

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	cfg.Logger.Info(context.Background(), "Alpaca client configured", map[string]interface{}{
		"baseURL": baseURL,
		"paper":   cfg.Paper,
	})

	return &Client{
		trading: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:     cfg.APIKey,
			APISecret:  cfg.SecretKey,
			BaseURL:    baseURL,
			HTTPClient: httpClient,
		}),
		data: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:     cfg.APIKey,
			APISecret:  cfg.SecretKey,
			HTTPClient: httpClient,
		}),
		logger:     cfg.Logger,
		reqTimeout: timeout,
	}, nil
}

// call runs a blocking SDK call in a goroutine so the caller's context
// bounds the wait. The SDK call itself is capped by the HTTP client
// timeout; once sent, a request cannot be revoked mid-transit, so on
// context expiry the result is simply discarded and the timeout surfaced.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case r := <-ch:
		return r.v, r.err
	}
}

// handleError translates Alpaca API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}

	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	// Ambiguous outcomes first: the request may or may not have landed.
	if errors.Is(err, context.DeadlineExceeded) {
		c.logger.Warn(ctx, "Alpaca call timed out, outcome unknown", fields)
		return fmt.Errorf("%w: %s: %v", ports.ErrGatewayTimeout, operation, err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %v", ports.ErrContextCanceled, operation, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		c.logger.Warn(ctx, "Alpaca call timed out, outcome unknown", fields)
		return fmt.Errorf("%w: %s: %v", ports.ErrGatewayTimeout, operation, err)
	}

	var apiErr *alpaca.APIError
	if errors.As(err, &apiErr) {
		fields["statusCode"] = apiErr.StatusCode
		fields["apiMessage"] = apiErr.Message

		var mappedErr error
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			mappedErr = ports.ErrRateLimited
		case apiErr.StatusCode == http.StatusUnauthorized || (apiErr.StatusCode == http.StatusForbidden && apiErr.Code == 40110000):
			mappedErr = ports.ErrAuthenticationFailed
		case apiErr.StatusCode == http.StatusNotFound:
			mappedErr = ports.ErrNotFound
		case apiErr.StatusCode >= 500:
			mappedErr = ports.ErrGatewayUnavailable
		default:
			// 403 insufficient buying power, 422 unprocessable order and
			// the like: definitive refusals, reason preserved verbatim.
			mappedErr = ports.ErrGatewayRejected
		}

		c.logger.Error(ctx, err, "Alpaca API error", fields)
		return fmt.Errorf("%w: %s: %s", mappedErr, operation, apiErr.Message)
	}

	c.logger.Error(ctx, err, "Unexpected Alpaca client error", fields)
	return fmt.Errorf("%w: %s: %v", ports.ErrUnknown, operation, err)
}

// GetPosition retrieves the open position for a symbol.
// A missing position is a normal outcome and returns nil, nil.
func (c *Client) GetPosition(ctx context.Context, symbol string) (*domain.Position, error) {
	pos, err := call(ctx, func() (*alpaca.Position, error) {
		return c.trading.GetPosition(symbol)
	})
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, c.handleError(ctx, err, "GetPosition")
	}
	return toPosition(pos), nil
}

// GetOpenOrders lists all open orders with their legs.
func (c *Client) GetOpenOrders(ctx context.Context) ([]domain.OrderStatus, error) {
	alpacaOrders, err := call(ctx, func() ([]alpaca.Order, error) {
		return c.trading.GetOrders(alpaca.GetOrdersRequest{Status: "open", Nested: true})
	})
	if err != nil {
		return nil, c.handleError(ctx, err, "GetOpenOrders")
	}

	out := make([]domain.OrderStatus, 0, len(alpacaOrders))
	for i := range alpacaOrders {
		out = append(out, toOrderStatus(&alpacaOrders[i]))
	}
	return out, nil
}

// SubmitOrderPlan maps a plan to a single PlaceOrder call carrying the
// whole order class. Splitting the legs into independent calls would
// forfeit the brokerage's atomic cancel-on-fill guarantee, so it is never
// done here.
func (c *Client) SubmitOrderPlan(ctx context.Context, clientOrderID string, plan *domain.OrderPlan) (*domain.OrderStatus, error) {
	req, err := toPlaceOrderRequest(clientOrderID, plan)
	if err != nil {
		return nil, err
	}

	c.logger.Debug(ctx, "Submitting order plan", map[string]interface{}{
		"symbol":        plan.Symbol(),
		"class":         plan.Class,
		"clientOrderID": clientOrderID,
	})

	order, err := call(ctx, func() (*alpaca.Order, error) {
		return c.trading.PlaceOrder(req)
	})
	if err != nil {
		return nil, c.handleError(ctx, err, "SubmitOrderPlan")
	}

	status := toOrderStatus(order)
	return &status, nil
}

// CancelOrder requests cancellation of an open order by its ID.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	_, err := call(ctx, func() (struct{}, error) {
		return struct{}{}, c.trading.CancelOrder(orderID)
	})
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ports.ErrOrderNotFound, orderID)
		}
		return c.handleError(ctx, err, "CancelOrder")
	}
	return nil
}

// GetLatestQuote retrieves the latest bid/ask for a symbol.
func (c *Client) GetLatestQuote(ctx context.Context, symbol string) (*ports.Quote, error) {
	quote, err := call(ctx, func() (*marketdata.Quote, error) {
		return c.data.GetLatestQuote(symbol, marketdata.GetLatestQuoteRequest{})
	})
	if err != nil {
		return nil, c.handleError(ctx, err, "GetLatestQuote")
	}
	return &ports.Quote{
		Symbol:   symbol,
		BidPrice: quote.BidPrice,
		BidSize:  int64(quote.BidSize),
		AskPrice: quote.AskPrice,
		AskSize:  int64(quote.AskSize),
	}, nil
}
