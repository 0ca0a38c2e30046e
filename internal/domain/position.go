package domain

// PositionSide indicates the direction of an open position.
type PositionSide string

const (
	Long  PositionSide = "long"
	Short PositionSide = "short"
)

// Position is a read-only snapshot of a brokerage position. The gateway
// owns position state; the core only inspects it.
type Position struct {
	Symbol        string
	Side          PositionSide
	Quantity      float64 // always positive, direction carried by Side
	AvgEntryPrice float64
	CurrentPrice  float64
}

// UnrealizedReturn computes the fractional unrealized return of the
// position relative to its average entry price. For short positions the
// sign is flipped so that a favorable move is always positive.
func (p *Position) UnrealizedReturn() float64 {
	if p.AvgEntryPrice == 0 {
		return 0
	}
	r := (p.CurrentPrice - p.AvgEntryPrice) / p.AvgEntryPrice
	if p.Side == Short {
		return -r
	}
	return r
}

// CloseSide returns the order side that reduces the position.
func (p *Position) CloseSide() OrderSide {
	if p.Side == Short {
		return Buy
	}
	return Sell
}
