package orders

import (
	"fmt"
	"math"
	"strings"

	"github.com/Embedded-Nature/invest-pilot/internal/domain"
	"github.com/Embedded-Nature/invest-pilot/internal/ports"
)

// ErrCloseRoundsToZero signals that a partial close sized to whole shares
// would round down to nothing. The monitor leaves the rule armed when it
// sees this.
var ErrCloseRoundsToZero = fmt.Errorf("%w: computed close size rounds to zero shares", ports.ErrValidation)

// SimpleParams describes a plain market or limit order.
type SimpleParams struct {
	Symbol      string
	Side        domain.OrderSide
	Quantity    float64
	Type        domain.OrderType // MARKET or LIMIT
	LimitPrice  float64          // required for LIMIT
	TimeInForce domain.TimeInForce
}

// BracketParams describes an entry order with a paired take-profit and
// stop-loss exit. The exits are mutually cancelling once one fills; that
// relationship is enforced by the brokerage, not rebuilt here.
type BracketParams struct {
	Symbol             string
	Side               domain.OrderSide
	Quantity           float64
	EntryType          domain.OrderType // MARKET or LIMIT
	EntryLimitPrice    float64          // required for LIMIT entry
	TakeProfitPrice    float64
	StopLossPrice      float64
	StopLossLimitPrice float64 // optional; turns the stop into a STOP_LIMIT
	TimeInForce        domain.TimeInForce
}

// OCOParams describes a pair of exit orders on an existing position.
type OCOParams struct {
	Symbol             string
	ExitSide           domain.OrderSide // side that reduces the position
	Quantity           float64
	TakeProfitPrice    float64
	StopLossPrice      float64
	StopLossLimitPrice float64 // optional
	TimeInForce        domain.TimeInForce
}

// OTOParams describes an entry order with exactly one conditional exit.
// Exactly one of TakeProfitPrice and StopLossPrice must be set (non-zero);
// supplying both or neither is rejected with distinct reasons.
type OTOParams struct {
	Symbol             string
	Side               domain.OrderSide
	Quantity           float64
	EntryType          domain.OrderType // MARKET or LIMIT
	EntryLimitPrice    float64          // required for LIMIT entry
	TakeProfitPrice    float64
	StopLossPrice      float64
	StopLossLimitPrice float64 // optional, only with StopLossPrice
	TimeInForce        domain.TimeInForce
}

// TrailingStopParams describes a single trailing-stop order.
// A PERCENT trail amount is a fraction: 0.03 trails by 3%.
type TrailingStopParams struct {
	Symbol      string
	Side        domain.OrderSide
	Quantity    float64
	TrailType   domain.TrailType
	TrailAmount float64
	TimeInForce domain.TimeInForce
}

// Plan building is deterministic and stateless: identical params produce
// structurally identical plans, and every returned plan has already passed
// Validate.

// BuildSimple maps a plain market/limit request to a one-leg plan.
func BuildSimple(p SimpleParams) (*domain.OrderPlan, error) {
	if p.Type != domain.Market && p.Type != domain.Limit {
		return nil, fmt.Errorf("%w: simple orders must be MARKET or LIMIT", ports.ErrValidation)
	}
	plan := &domain.OrderPlan{
		Class: domain.ClassSimple,
		Root: domain.OrderLeg{
			Symbol:      normalizeSymbol(p.Symbol),
			Side:        p.Side,
			Quantity:    p.Quantity,
			Type:        p.Type,
			LimitPrice:  p.LimitPrice,
			TimeInForce: defaultTIF(p.TimeInForce, domain.Day),
		},
	}
	if err := Validate(plan, nil); err != nil {
		return nil, err
	}
	return plan, nil
}

// BuildBracket maps a bracket request to an entry leg plus a take-profit
// and a stop-loss exit leg on the inverse side.
func BuildBracket(p BracketParams) (*domain.OrderPlan, error) {
	if p.EntryType != domain.Market && p.EntryType != domain.Limit {
		return nil, fmt.Errorf("%w: bracket entry must be MARKET or LIMIT", ports.ErrValidation)
	}
	symbol := normalizeSymbol(p.Symbol)
	tif := defaultTIF(p.TimeInForce, domain.GTC)
	exitSide := p.Side.Opposite()

	plan := &domain.OrderPlan{
		Class: domain.ClassBracket,
		Root: domain.OrderLeg{
			Symbol:      symbol,
			Side:        p.Side,
			Quantity:    p.Quantity,
			Type:        p.EntryType,
			LimitPrice:  p.EntryLimitPrice,
			TimeInForce: tif,
		},
		Attached: []domain.OrderLeg{
			takeProfitLeg(symbol, exitSide, p.Quantity, p.TakeProfitPrice, tif),
			stopLossLeg(symbol, exitSide, p.Quantity, p.StopLossPrice, p.StopLossLimitPrice, tif),
		},
	}
	if err := Validate(plan, nil); err != nil {
		return nil, err
	}
	return plan, nil
}

// BuildOCO maps an exit-pair request on an existing position. The root leg
// carries the take-profit limit (the brokerage submits the pair as one
// limit order of class OCO); both exits ride in the attached legs. The
// plan is exit-only, so its quantity is validated against the held
// position.
func BuildOCO(p OCOParams, position *domain.Position) (*domain.OrderPlan, error) {
	symbol := normalizeSymbol(p.Symbol)
	tif := defaultTIF(p.TimeInForce, domain.GTC)

	tp := takeProfitLeg(symbol, p.ExitSide, p.Quantity, p.TakeProfitPrice, tif)
	sl := stopLossLeg(symbol, p.ExitSide, p.Quantity, p.StopLossPrice, p.StopLossLimitPrice, tif)

	plan := &domain.OrderPlan{
		Class:    domain.ClassOCO,
		Root:     tp,
		Attached: []domain.OrderLeg{tp, sl},
		ExitOnly: true,
	}
	if err := Validate(plan, position); err != nil {
		return nil, err
	}
	return plan, nil
}

// BuildOTO maps an entry plus its single conditional exit. Exactly one of
// the two exit prices must be supplied.
func BuildOTO(p OTOParams) (*domain.OrderPlan, error) {
	hasTP := p.TakeProfitPrice != 0
	hasSL := p.StopLossPrice != 0
	if hasTP && hasSL {
		return nil, ErrOTOBothExits
	}
	if !hasTP && !hasSL {
		return nil, ErrOTONoExit
	}
	if p.EntryType != domain.Market && p.EntryType != domain.Limit {
		return nil, fmt.Errorf("%w: OTO entry must be MARKET or LIMIT", ports.ErrValidation)
	}

	symbol := normalizeSymbol(p.Symbol)
	tif := defaultTIF(p.TimeInForce, domain.GTC)
	exitSide := p.Side.Opposite()

	var exit domain.OrderLeg
	if hasTP {
		exit = takeProfitLeg(symbol, exitSide, p.Quantity, p.TakeProfitPrice, tif)
	} else {
		exit = stopLossLeg(symbol, exitSide, p.Quantity, p.StopLossPrice, p.StopLossLimitPrice, tif)
	}

	plan := &domain.OrderPlan{
		Class: domain.ClassOTO,
		Root: domain.OrderLeg{
			Symbol:      symbol,
			Side:        p.Side,
			Quantity:    p.Quantity,
			Type:        p.EntryType,
			LimitPrice:  p.EntryLimitPrice,
			TimeInForce: tif,
		},
		Attached: []domain.OrderLeg{exit},
	}
	if err := Validate(plan, nil); err != nil {
		return nil, err
	}
	return plan, nil
}

// BuildTrailingStop maps a trailing-stop request to a single-leg plan.
func BuildTrailingStop(p TrailingStopParams) (*domain.OrderPlan, error) {
	plan := &domain.OrderPlan{
		Class: domain.ClassTrailingStop,
		Root: domain.OrderLeg{
			Symbol:      normalizeSymbol(p.Symbol),
			Side:        p.Side,
			Quantity:    p.Quantity,
			Type:        domain.TrailingStop,
			TrailType:   p.TrailType,
			TrailAmount: p.TrailAmount,
			TimeInForce: defaultTIF(p.TimeInForce, domain.Day),
		},
	}
	if err := Validate(plan, nil); err != nil {
		return nil, err
	}
	return plan, nil
}

// BuildPartialClose produces the simple market close the profit monitor
// submits when a rule fires: closePercentage of the position, floored to
// whole shares, on the side that reduces it. Returns
// ErrCloseRoundsToZero when the floor leaves nothing to close.
func BuildPartialClose(position *domain.Position, closePercentage float64) (*domain.OrderPlan, error) {
	if position == nil {
		return nil, ErrNoPositionHeld
	}
	if !finitePositive(closePercentage) || closePercentage > 1 {
		return nil, fmt.Errorf("%w: close percentage must be a fraction in (0, 1]", ports.ErrValidation)
	}

	qty := math.Floor(position.Quantity * closePercentage)
	if qty <= 0 {
		return nil, ErrCloseRoundsToZero
	}

	plan := &domain.OrderPlan{
		Class: domain.ClassSimple,
		Root: domain.OrderLeg{
			Symbol:      normalizeSymbol(position.Symbol),
			Side:        position.CloseSide(),
			Quantity:    qty,
			Type:        domain.Market,
			TimeInForce: domain.Day,
		},
		ExitOnly: true,
	}
	if err := Validate(plan, position); err != nil {
		return nil, err
	}
	return plan, nil
}

func takeProfitLeg(symbol string, side domain.OrderSide, qty, limitPrice float64, tif domain.TimeInForce) domain.OrderLeg {
	return domain.OrderLeg{
		Symbol:      symbol,
		Side:        side,
		Quantity:    qty,
		Type:        domain.Limit,
		LimitPrice:  limitPrice,
		TimeInForce: tif,
	}
}

func stopLossLeg(symbol string, side domain.OrderSide, qty, stopPrice, limitPrice float64, tif domain.TimeInForce) domain.OrderLeg {
	leg := domain.OrderLeg{
		Symbol:      symbol,
		Side:        side,
		Quantity:    qty,
		Type:        domain.Stop,
		StopPrice:   stopPrice,
		TimeInForce: tif,
	}
	if limitPrice != 0 {
		leg.Type = domain.StopLimit
		leg.LimitPrice = limitPrice
	}
	return leg
}

func defaultTIF(tif, def domain.TimeInForce) domain.TimeInForce {
	if tif == "" {
		return def
	}
	return tif
}

func normalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
