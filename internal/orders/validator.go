// Package orders contains the pure core of the order engine: the
// price/quantity validator and the order plan builder. Nothing in this
// package performs I/O or holds mutable state; every function is safe to
// call concurrently.
package orders

import (
	"fmt"
	"math"

	"github.com/Embedded-Nature/invest-pilot/internal/domain"
	"github.com/Embedded-Nature/invest-pilot/internal/ports"
)

// Named validation errors. Each rejection reason is distinguishable via
// errors.Is so a caller (or an LLM-style agent driving the tools) can
// decide whether to adjust and retry. All wrap ports.ErrValidation.
var (
	ErrNoLegs              = fmt.Errorf("%w: plan has no legs", ports.ErrValidation)
	ErrSymbolMissing       = fmt.Errorf("%w: symbol is required", ports.ErrValidation)
	ErrLegSymbolMismatch   = fmt.Errorf("%w: all legs of a plan must trade the same symbol", ports.ErrValidation)
	ErrLegQuantityMismatch = fmt.Errorf("%w: attached legs must carry the same quantity as the root leg", ports.ErrValidation)
	ErrAttachedLegCount    = fmt.Errorf("%w: wrong number of attached legs for order class", ports.ErrValidation)

	ErrQuantityNotPositive = fmt.Errorf("%w: quantity must be a positive finite number", ports.ErrValidation)
	ErrQuantityExceedsHeld = fmt.Errorf("%w: requested quantity exceeds held position quantity", ports.ErrValidation)
	ErrNoPositionHeld      = fmt.Errorf("%w: no position held for a position-closing plan", ports.ErrValidation)

	ErrLimitPriceMissing    = fmt.Errorf("%w: limit price is required for this leg type", ports.ErrValidation)
	ErrLimitPriceUnexpected = fmt.Errorf("%w: limit price supplied for a leg type that takes none", ports.ErrValidation)
	ErrStopPriceMissing     = fmt.Errorf("%w: stop price is required for this leg type", ports.ErrValidation)
	ErrStopPriceUnexpected  = fmt.Errorf("%w: stop price supplied for a leg type that takes none", ports.ErrValidation)

	ErrExitOrderingBuy  = fmt.Errorf("%w: take-profit price must be strictly above stop-loss price for a BUY entry", ports.ErrValidation)
	ErrExitOrderingSell = fmt.Errorf("%w: stop-loss price must be strictly above take-profit price for a SELL entry", ports.ErrValidation)

	ErrTakeProfitBelowEntry = fmt.Errorf("%w: take-profit price must be above the entry limit price for a BUY entry", ports.ErrValidation)
	ErrTakeProfitAboveEntry = fmt.Errorf("%w: take-profit price must be below the entry limit price for a SELL entry", ports.ErrValidation)

	ErrStopLimitWrongSide = fmt.Errorf("%w: stop-loss limit price is on the wrong side of the stop price, order could never fill", ports.ErrValidation)

	ErrOTOBothExits = fmt.Errorf("%w: OTO accepts exactly one exit, both take-profit and stop-loss were supplied", ports.ErrValidation)
	ErrOTONoExit    = fmt.Errorf("%w: OTO requires one exit, neither take-profit nor stop-loss was supplied", ports.ErrValidation)

	ErrTrailAmountNotPositive = fmt.Errorf("%w: trail amount must be positive", ports.ErrValidation)
	ErrTrailPercentOutOfRange = fmt.Errorf("%w: percent trail amount must be a fraction in (0, 1]; whole-number percentages such as 5 are rejected", ports.ErrValidation)
	ErrTrailTypeUnknown       = fmt.Errorf("%w: trail type must be PRICE or PERCENT", ports.ErrValidation)
)

// errPrice builds a by-name rejection for a non-finite or non-positive
// price field.
func errPrice(name string) error {
	return fmt.Errorf("%w: %s must be a positive finite number", ports.ErrValidation, name)
}

// finitePositive reports whether v is a usable price or quantity.
func finitePositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// Validate checks the numeric and ordering invariants of a plan.
// position may be nil; it is required only for exit-only plans, whose
// quantity must not exceed the held quantity.
//
// Validate is pure: no side effects, no I/O.
func Validate(plan *domain.OrderPlan, position *domain.Position) error {
	if plan == nil || plan.Root == (domain.OrderLeg{}) {
		return ErrNoLegs
	}
	if plan.Root.Symbol == "" {
		return ErrSymbolMissing
	}

	if err := validateLegShape(&plan.Root); err != nil {
		return err
	}
	for i := range plan.Attached {
		leg := &plan.Attached[i]
		if leg.Symbol != plan.Root.Symbol {
			return ErrLegSymbolMismatch
		}
		if leg.Quantity != plan.Root.Quantity {
			return ErrLegQuantityMismatch
		}
		if err := validateLegShape(leg); err != nil {
			return err
		}
	}

	if err := validateAttachedCount(plan); err != nil {
		return err
	}

	if plan.ExitOnly {
		if position == nil {
			return ErrNoPositionHeld
		}
		if plan.Root.Quantity > position.Quantity {
			return ErrQuantityExceedsHeld
		}
	}

	switch plan.Class {
	case domain.ClassBracket:
		return validateBracket(plan)
	case domain.ClassOCO:
		return validateOCO(plan)
	case domain.ClassOTO:
		return validateOTO(plan)
	case domain.ClassTrailingStop:
		return validateTrailing(&plan.Root)
	case domain.ClassSimple:
		return nil
	default:
		return fmt.Errorf("%w: unknown order class %q", ports.ErrValidation, plan.Class)
	}
}

// validateLegShape enforces the field-presence invariants of a single leg:
// limit price iff LIMIT/STOP_LIMIT, stop price iff STOP/STOP_LIMIT, trail
// fields iff TRAILING_STOP, and finiteness of everything supplied.
func validateLegShape(leg *domain.OrderLeg) error {
	if !finitePositive(leg.Quantity) {
		return ErrQuantityNotPositive
	}

	needsLimit := leg.Type == domain.Limit || leg.Type == domain.StopLimit
	needsStop := leg.Type == domain.Stop || leg.Type == domain.StopLimit

	if needsLimit {
		if leg.LimitPrice == 0 {
			return ErrLimitPriceMissing
		}
		if !finitePositive(leg.LimitPrice) {
			return errPrice("limit price")
		}
	} else if leg.LimitPrice != 0 {
		return ErrLimitPriceUnexpected
	}

	if needsStop {
		if leg.StopPrice == 0 {
			return ErrStopPriceMissing
		}
		if !finitePositive(leg.StopPrice) {
			return errPrice("stop price")
		}
	} else if leg.StopPrice != 0 {
		return ErrStopPriceUnexpected
	}

	if leg.Type == domain.TrailingStop {
		return validateTrailing(leg)
	}
	if leg.TrailAmount != 0 || leg.TrailType != "" {
		return fmt.Errorf("%w: trail parameters supplied for a non-trailing leg", ports.ErrValidation)
	}
	return nil
}

func validateAttachedCount(plan *domain.OrderPlan) error {
	want := 0
	switch plan.Class {
	case domain.ClassBracket, domain.ClassOCO:
		want = 2
	case domain.ClassOTO:
		want = 1
	}
	if len(plan.Attached) != want {
		return ErrAttachedLegCount
	}
	return nil
}

// exitLegs interprets the attached pair of a bracket or OCO plan: the
// take-profit LIMIT leg first, the stop-loss STOP/STOP_LIMIT leg second.
func exitLegs(plan *domain.OrderPlan) (tp, sl *domain.OrderLeg, err error) {
	tp = &plan.Attached[0]
	sl = &plan.Attached[1]
	if tp.Type != domain.Limit {
		return nil, nil, fmt.Errorf("%w: take-profit leg must be a LIMIT order", ports.ErrValidation)
	}
	if sl.Type != domain.Stop && sl.Type != domain.StopLimit {
		return nil, nil, fmt.Errorf("%w: stop-loss leg must be a STOP or STOP_LIMIT order", ports.ErrValidation)
	}
	return tp, sl, nil
}

// validateExitPair checks the relative ordering of a take-profit/stop-loss
// pair and the stop-limit fill-ability rule. entrySide is the side that
// opens (or opened) the position the exits protect.
//
// Entry price is unknown for market entries, so the ordering check is
// purely relative between the two exit prices; the entry-vs-take-profit
// check applies only when an entry limit price is known (entryLimit > 0).
func validateExitPair(entrySide domain.OrderSide, entryLimit float64, tp, sl *domain.OrderLeg) error {
	switch entrySide {
	case domain.Buy:
		if tp.LimitPrice <= sl.StopPrice {
			return ErrExitOrderingBuy
		}
		if entryLimit > 0 && tp.LimitPrice <= entryLimit {
			return ErrTakeProfitBelowEntry
		}
	case domain.Sell:
		if tp.LimitPrice >= sl.StopPrice {
			return ErrExitOrderingSell
		}
		if entryLimit > 0 && tp.LimitPrice >= entryLimit {
			return ErrTakeProfitAboveEntry
		}
	}

	// A protective stop exits on the inverse side of the entry. A sell-side
	// stop-limit may fill at or below its stop (worse fills are legal), but
	// a limit above the stop can never execute once triggered; mirrored for
	// a buy-side stop.
	if sl.Type == domain.StopLimit {
		exitSide := entrySide.Opposite()
		if exitSide == domain.Sell && sl.LimitPrice > sl.StopPrice {
			return ErrStopLimitWrongSide
		}
		if exitSide == domain.Buy && sl.LimitPrice < sl.StopPrice {
			return ErrStopLimitWrongSide
		}
	}
	return nil
}

func validateBracket(plan *domain.OrderPlan) error {
	tp, sl, err := exitLegs(plan)
	if err != nil {
		return err
	}
	entryLimit := 0.0
	if plan.Root.Type == domain.Limit {
		entryLimit = plan.Root.LimitPrice
	}
	return validateExitPair(plan.Root.Side, entryLimit, tp, sl)
}

// validateOCO treats the exit pair as protecting a position entered on the
// opposite side of the exits: a sell-side OCO protects a long position.
func validateOCO(plan *domain.OrderPlan) error {
	tp, sl, err := exitLegs(plan)
	if err != nil {
		return err
	}
	return validateExitPair(plan.Root.Side.Opposite(), 0, tp, sl)
}

func validateOTO(plan *domain.OrderPlan) error {
	exit := &plan.Attached[0]
	entryLimit := 0.0
	if plan.Root.Type == domain.Limit {
		entryLimit = plan.Root.LimitPrice
	}

	switch exit.Type {
	case domain.Limit:
		// Take-profit exit: check against the entry limit when known.
		if entryLimit > 0 {
			if plan.Root.Side == domain.Buy && exit.LimitPrice <= entryLimit {
				return ErrTakeProfitBelowEntry
			}
			if plan.Root.Side == domain.Sell && exit.LimitPrice >= entryLimit {
				return ErrTakeProfitAboveEntry
			}
		}
	case domain.Stop, domain.StopLimit:
		if exit.Type == domain.StopLimit {
			exitSide := plan.Root.Side.Opposite()
			if exitSide == domain.Sell && exit.LimitPrice > exit.StopPrice {
				return ErrStopLimitWrongSide
			}
			if exitSide == domain.Buy && exit.LimitPrice < exit.StopPrice {
				return ErrStopLimitWrongSide
			}
		}
	default:
		return fmt.Errorf("%w: OTO exit leg must be LIMIT, STOP or STOP_LIMIT", ports.ErrValidation)
	}
	return nil
}

func validateTrailing(leg *domain.OrderLeg) error {
	switch leg.TrailType {
	case domain.TrailPrice:
		if !finitePositive(leg.TrailAmount) {
			return ErrTrailAmountNotPositive
		}
	case domain.TrailPercent:
		if !finitePositive(leg.TrailAmount) {
			return ErrTrailAmountNotPositive
		}
		// Contract fixed to a fraction: 0.03 means 3%. A caller passing 5
		// almost certainly meant 5% and must normalize before calling.
		if leg.TrailAmount > 1 {
			return ErrTrailPercentOutOfRange
		}
	default:
		return ErrTrailTypeUnknown
	}
	return nil
}
