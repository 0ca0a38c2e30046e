package orders

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Embedded-Nature/invest-pilot/internal/domain"
	"github.com/Embedded-Nature/invest-pilot/internal/ports"
)

func buyBracket(qty, entryLimit, tp, sl, slLimit float64) *domain.OrderPlan {
	return buildUncheckedBracket(domain.Buy, qty, entryLimit, tp, sl, slLimit)
}

// buildUncheckedBracket assembles a bracket plan without going through the
// builder, so tests can hand Validate shapes the builder would refuse to
// produce.
func buildUncheckedBracket(side domain.OrderSide, qty, entryLimit, tp, sl, slLimit float64) *domain.OrderPlan {
	entryType := domain.Market
	if entryLimit != 0 {
		entryType = domain.Limit
	}
	exitSide := side.Opposite()
	slLeg := domain.OrderLeg{
		Symbol: "AAPL", Side: exitSide, Quantity: qty,
		Type: domain.Stop, StopPrice: sl, TimeInForce: domain.GTC,
	}
	if slLimit != 0 {
		slLeg.Type = domain.StopLimit
		slLeg.LimitPrice = slLimit
	}
	return &domain.OrderPlan{
		Class: domain.ClassBracket,
		Root: domain.OrderLeg{
			Symbol: "AAPL", Side: side, Quantity: qty,
			Type: entryType, LimitPrice: entryLimit, TimeInForce: domain.GTC,
		},
		Attached: []domain.OrderLeg{
			{Symbol: "AAPL", Side: exitSide, Quantity: qty, Type: domain.Limit, LimitPrice: tp, TimeInForce: domain.GTC},
			slLeg,
		},
	}
}

func TestValidate_BracketOrdering(t *testing.T) {
	tests := []struct {
		name    string
		side    domain.OrderSide
		entry   float64 // 0 means market entry
		tp      float64
		sl      float64
		wantErr error
	}{
		{name: "buy bracket valid", side: domain.Buy, entry: 100, tp: 110, sl: 95},
		{name: "buy market entry valid", side: domain.Buy, entry: 0, tp: 110, sl: 95},
		{name: "buy tp below sl", side: domain.Buy, entry: 100, tp: 94, sl: 95, wantErr: ErrExitOrderingBuy},
		{name: "buy tp equals sl", side: domain.Buy, entry: 100, tp: 95, sl: 95, wantErr: ErrExitOrderingBuy},
		{name: "buy tp below entry limit", side: domain.Buy, entry: 100, tp: 99, sl: 95, wantErr: ErrTakeProfitBelowEntry},
		{name: "sell bracket valid", side: domain.Sell, entry: 100, tp: 90, sl: 105},
		{name: "sell sl below tp", side: domain.Sell, entry: 100, tp: 105, sl: 104, wantErr: ErrExitOrderingSell},
		{name: "sell tp above entry limit", side: domain.Sell, entry: 100, tp: 101, sl: 110, wantErr: ErrTakeProfitAboveEntry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := buildUncheckedBracket(tt.side, 10, tt.entry, tt.tp, tt.sl, 0)

			err := Validate(plan, nil)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				assert.ErrorIs(t, err, ports.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_StopLimitFillability(t *testing.T) {
	// Long entry, protective exits sell. A sell stop-limit whose limit sits
	// above the stop can never fill once triggered.
	plan := buyBracket(10, 100, 110, 95, 96)
	err := Validate(plan, nil)
	assert.ErrorIs(t, err, ErrStopLimitWrongSide)

	// Limit at or below the stop is fine (worse fills are legal).
	plan = buyBracket(10, 100, 110, 95, 95)
	assert.NoError(t, Validate(plan, nil))

	plan = buyBracket(10, 100, 110, 95, 94.5)
	assert.NoError(t, Validate(plan, nil))

	// Short entry, protective exits buy. Limit below the stop can never fill.
	shortPlan := buildUncheckedBracket(domain.Sell, 10, 100, 90, 105, 104)
	assert.ErrorIs(t, Validate(shortPlan, nil), ErrStopLimitWrongSide)

	shortPlan = buildUncheckedBracket(domain.Sell, 10, 100, 90, 105, 106)
	assert.NoError(t, Validate(shortPlan, nil))
}

func TestValidate_QuantityAndPrices(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*domain.OrderPlan)
		wantErr error
	}{
		{
			name:    "zero quantity",
			mutate:  func(p *domain.OrderPlan) { p.Root.Quantity = 0 },
			wantErr: ErrQuantityNotPositive,
		},
		{
			name:    "negative quantity",
			mutate:  func(p *domain.OrderPlan) { p.Root.Quantity = -5 },
			wantErr: ErrQuantityNotPositive,
		},
		{
			name:    "NaN quantity",
			mutate:  func(p *domain.OrderPlan) { p.Root.Quantity = math.NaN() },
			wantErr: ErrQuantityNotPositive,
		},
		{
			name:    "infinite limit price",
			mutate:  func(p *domain.OrderPlan) { p.Root.LimitPrice = math.Inf(1) },
			wantErr: ports.ErrValidation,
		},
		{
			name:    "attached quantity mismatch",
			mutate:  func(p *domain.OrderPlan) { p.Attached[0].Quantity = 7 },
			wantErr: ErrLegQuantityMismatch,
		},
		{
			name:    "attached symbol mismatch",
			mutate:  func(p *domain.OrderPlan) { p.Attached[1].Symbol = "TSLA" },
			wantErr: ErrLegSymbolMismatch,
		},
		{
			name:    "missing attached leg",
			mutate:  func(p *domain.OrderPlan) { p.Attached = p.Attached[:1] },
			wantErr: ErrAttachedLegCount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := buyBracket(10, 100, 110, 95, 0)
			tt.mutate(plan)
			assert.ErrorIs(t, Validate(plan, nil), tt.wantErr)
		})
	}
}

func TestValidate_LegShape(t *testing.T) {
	tests := []struct {
		name    string
		leg     domain.OrderLeg
		wantErr error
	}{
		{
			name:    "limit without limit price",
			leg:     domain.OrderLeg{Symbol: "AAPL", Side: domain.Buy, Quantity: 1, Type: domain.Limit},
			wantErr: ErrLimitPriceMissing,
		},
		{
			name:    "market with limit price",
			leg:     domain.OrderLeg{Symbol: "AAPL", Side: domain.Buy, Quantity: 1, Type: domain.Market, LimitPrice: 100},
			wantErr: ErrLimitPriceUnexpected,
		},
		{
			name:    "stop without stop price",
			leg:     domain.OrderLeg{Symbol: "AAPL", Side: domain.Sell, Quantity: 1, Type: domain.Stop},
			wantErr: ErrStopPriceMissing,
		},
		{
			name:    "market with stop price",
			leg:     domain.OrderLeg{Symbol: "AAPL", Side: domain.Sell, Quantity: 1, Type: domain.Market, StopPrice: 90},
			wantErr: ErrStopPriceUnexpected,
		},
		{
			name: "market clean",
			leg:  domain.OrderLeg{Symbol: "AAPL", Side: domain.Buy, Quantity: 1, Type: domain.Market, TimeInForce: domain.Day},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := &domain.OrderPlan{Class: domain.ClassSimple, Root: tt.leg}
			err := Validate(plan, nil)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidate_TrailingStop(t *testing.T) {
	mk := func(trailType domain.TrailType, amount float64) *domain.OrderPlan {
		return &domain.OrderPlan{
			Class: domain.ClassTrailingStop,
			Root: domain.OrderLeg{
				Symbol: "AAPL", Side: domain.Sell, Quantity: 10,
				Type: domain.TrailingStop, TrailType: trailType, TrailAmount: amount,
				TimeInForce: domain.Day,
			},
		}
	}

	assert.NoError(t, Validate(mk(domain.TrailPercent, 0.03), nil))
	assert.NoError(t, Validate(mk(domain.TrailPercent, 1), nil))
	assert.NoError(t, Validate(mk(domain.TrailPrice, 2.50), nil))

	assert.ErrorIs(t, Validate(mk(domain.TrailPercent, 0), nil), ErrTrailAmountNotPositive)
	assert.ErrorIs(t, Validate(mk(domain.TrailPercent, -0.03), nil), ErrTrailAmountNotPositive)
	// Whole-number percentages are a different mistake than a bad sign.
	assert.ErrorIs(t, Validate(mk(domain.TrailPercent, 5), nil), ErrTrailPercentOutOfRange)
	assert.ErrorIs(t, Validate(mk(domain.TrailPrice, math.NaN()), nil), ErrTrailAmountNotPositive)
	assert.ErrorIs(t, Validate(mk("", 0.03), nil), ErrTrailTypeUnknown)
}

func TestValidate_ExitOnlyAgainstPosition(t *testing.T) {
	position := &domain.Position{
		Symbol: "AAPL", Side: domain.Long, Quantity: 100, AvgEntryPrice: 100, CurrentPrice: 120,
	}

	mk := func(qty float64) *domain.OrderPlan {
		tp := domain.OrderLeg{Symbol: "AAPL", Side: domain.Sell, Quantity: qty, Type: domain.Limit, LimitPrice: 130, TimeInForce: domain.GTC}
		sl := domain.OrderLeg{Symbol: "AAPL", Side: domain.Sell, Quantity: qty, Type: domain.Stop, StopPrice: 110, TimeInForce: domain.GTC}
		return &domain.OrderPlan{
			Class:    domain.ClassOCO,
			Root:     tp,
			Attached: []domain.OrderLeg{tp, sl},
			ExitOnly: true,
		}
	}

	assert.NoError(t, Validate(mk(100), position))
	assert.NoError(t, Validate(mk(50), position))
	assert.ErrorIs(t, Validate(mk(150), position), ErrQuantityExceedsHeld)
	assert.ErrorIs(t, Validate(mk(100), nil), ErrNoPositionHeld)
}

func TestValidate_EmptyPlan(t *testing.T) {
	assert.ErrorIs(t, Validate(nil, nil), ErrNoLegs)
	assert.ErrorIs(t, Validate(&domain.OrderPlan{}, nil), ErrNoLegs)
}
