package ports

import "errors"

// Standard application-level errors.
// Adapters wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Validation errors are caller-fixable and never retried. The orders
	// package wraps this sentinel with a per-rule reason so callers can
	// tell rejections apart.
	ErrValidation = errors.New("order validation failed")

	// Gateway Errors
	//
	// ErrGatewayRejected covers definitive refusals by the brokerage
	// (insufficient buying power, market closed, invalid symbol). The
	// original brokerage message is preserved in the wrap chain.
	//
	// ErrGatewayTimeout covers ambiguous outcomes: the request may or may
	// not have reached the brokerage. Callers must reconcile via an open
	// orders query, never blind-retry.
	ErrGatewayRejected      = errors.New("order rejected by brokerage")
	ErrGatewayTimeout       = errors.New("submission status unknown")
	ErrGatewayUnavailable   = errors.New("brokerage API is unavailable")
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrAuthenticationFailed = errors.New("brokerage authentication failed (check API keys)")
	ErrOrderNotFound        = errors.New("order not found at the brokerage")

	// Rule Store Errors
	ErrRuleExists        = errors.New("an armed profit rule already exists for this symbol")
	ErrRuleNotFound      = errors.New("no profit rule found for this symbol")
	ErrRuleStateConflict = errors.New("profit rule is not in the expected state")

	// ErrInvariantViolation marks internal corruption (a rule observed in
	// an impossible state). The affected rule is forced to CANCELLED.
	ErrInvariantViolation = errors.New("internal invariant violation")
)
