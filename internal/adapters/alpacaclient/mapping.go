package alpacaclient

import (
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"github.com/Embedded-Nature/invest-pilot/internal/domain"
	"github.com/Embedded-Nature/invest-pilot/internal/ports"
)

// toPlaceOrderRequest maps an OrderPlan to the single Alpaca request that
// carries the whole order class. The exits of multi-leg classes travel as
// take_profit/stop_loss sub-requests; Alpaca wires the cancel-on-fill
// relationship between them server-side.
func toPlaceOrderRequest(clientOrderID string, plan *domain.OrderPlan) (alpaca.PlaceOrderRequest, error) {
	root := plan.Root
	qty := decimal.NewFromFloat(root.Quantity)

	req := alpaca.PlaceOrderRequest{
		Symbol:        root.Symbol,
		Qty:           &qty,
		Side:          toSide(root.Side),
		TimeInForce:   toTimeInForce(root.TimeInForce),
		ClientOrderID: clientOrderID,
	}

	switch plan.Class {
	case domain.ClassSimple:
		req.Type = toOrderType(root.Type)
		if root.Type == domain.Limit {
			req.LimitPrice = decimalPtr(root.LimitPrice)
		}

	case domain.ClassBracket:
		req.Type = toOrderType(root.Type)
		if root.Type == domain.Limit {
			req.LimitPrice = decimalPtr(root.LimitPrice)
		}
		req.OrderClass = alpaca.Bracket
		req.TakeProfit = takeProfitReq(&plan.Attached[0])
		req.StopLoss = stopLossReq(&plan.Attached[1])

	case domain.ClassOCO:
		// The pair rides a single limit order at the take-profit price.
		req.Type = alpaca.Limit
		req.LimitPrice = decimalPtr(plan.Attached[0].LimitPrice)
		req.OrderClass = alpaca.OCO
		req.TakeProfit = takeProfitReq(&plan.Attached[0])
		req.StopLoss = stopLossReq(&plan.Attached[1])

	case domain.ClassOTO:
		req.Type = toOrderType(root.Type)
		if root.Type == domain.Limit {
			req.LimitPrice = decimalPtr(root.LimitPrice)
		}
		req.OrderClass = alpaca.OTO
		exit := &plan.Attached[0]
		if exit.Type == domain.Limit {
			req.TakeProfit = takeProfitReq(exit)
		} else {
			req.StopLoss = stopLossReq(exit)
		}

	case domain.ClassTrailingStop:
		req.Type = alpaca.TrailingStop
		switch root.TrailType {
		case domain.TrailPrice:
			req.TrailPrice = decimalPtr(root.TrailAmount)
		case domain.TrailPercent:
			// Domain carries a fraction; Alpaca expects whole percents.
			req.TrailPercent = decimalPtr(root.TrailAmount * 100)
		}

	default:
		return alpaca.PlaceOrderRequest{}, fmt.Errorf("%w: unsupported order class %q", ports.ErrInvalidRequest, plan.Class)
	}

	return req, nil
}

func takeProfitReq(leg *domain.OrderLeg) *alpaca.TakeProfit {
	return &alpaca.TakeProfit{LimitPrice: decimalPtr(leg.LimitPrice)}
}

func stopLossReq(leg *domain.OrderLeg) *alpaca.StopLoss {
	sl := &alpaca.StopLoss{StopPrice: decimalPtr(leg.StopPrice)}
	if leg.Type == domain.StopLimit {
		sl.LimitPrice = decimalPtr(leg.LimitPrice)
	}
	return sl
}

func toSide(side domain.OrderSide) alpaca.Side {
	if side == domain.Sell {
		return alpaca.Sell
	}
	return alpaca.Buy
}

func fromSide(side alpaca.Side) domain.OrderSide {
	if side == alpaca.Sell {
		return domain.Sell
	}
	return domain.Buy
}

func toTimeInForce(tif domain.TimeInForce) alpaca.TimeInForce {
	if tif == domain.GTC {
		return alpaca.GTC
	}
	return alpaca.Day
}

func toOrderType(t domain.OrderType) alpaca.OrderType {
	switch t {
	case domain.Limit:
		return alpaca.Limit
	case domain.Stop:
		return alpaca.Stop
	case domain.StopLimit:
		return alpaca.StopLimit
	case domain.TrailingStop:
		return alpaca.TrailingStop
	default:
		return alpaca.Market
	}
}

func fromOrderType(t alpaca.OrderType) domain.OrderType {
	switch t {
	case alpaca.Limit:
		return domain.Limit
	case alpaca.Stop:
		return domain.Stop
	case alpaca.StopLimit:
		return domain.StopLimit
	case alpaca.TrailingStop:
		return domain.TrailingStop
	default:
		return domain.Market
	}
}

func fromOrderClass(c alpaca.OrderClass) domain.OrderClass {
	switch c {
	case alpaca.Bracket:
		return domain.ClassBracket
	case alpaca.OCO:
		return domain.ClassOCO
	case alpaca.OTO:
		return domain.ClassOTO
	default:
		return domain.ClassSimple
	}
}

func toOrderStatus(order *alpaca.Order) domain.OrderStatus {
	status := domain.OrderStatus{
		ID:            order.ID,
		ClientOrderID: order.ClientOrderID,
		Symbol:        order.Symbol,
		Side:          fromSide(order.Side),
		Type:          fromOrderType(order.Type),
		Class:         fromOrderClass(order.OrderClass),
		FilledQty:     toFloat(order.FilledQty),
		Status:        order.Status,
	}
	if order.Qty != nil {
		status.Quantity = toFloat(*order.Qty)
	}
	if order.LimitPrice != nil {
		status.LimitPrice = toFloat(*order.LimitPrice)
	}
	if order.StopPrice != nil {
		status.StopPrice = toFloat(*order.StopPrice)
	}
	for i := range order.Legs {
		status.LegIDs = append(status.LegIDs, order.Legs[i].ID)
	}
	return status
}

// toPosition normalizes an Alpaca position: quantity is reported signed
// (negative for shorts), the domain keeps it positive with the direction
// on Side.
func toPosition(pos *alpaca.Position) *domain.Position {
	qty := toFloat(pos.Qty)
	side := domain.Long
	if pos.Side == "short" || qty < 0 {
		side = domain.Short
	}
	if qty < 0 {
		qty = -qty
	}

	p := &domain.Position{
		Symbol:        pos.Symbol,
		Side:          side,
		Quantity:      qty,
		AvgEntryPrice: toFloat(pos.AvgEntryPrice),
	}
	if pos.CurrentPrice != nil {
		p.CurrentPrice = toFloat(*pos.CurrentPrice)
	}
	return p
}

func decimalPtr(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}

func toFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
