package domain

// OrderSide represents the side of an order (BUY or SELL).
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// Opposite returns the inverse side. Exit legs of a bracket or OTO plan
// always carry the opposite side of the entry.
func (s OrderSide) Opposite() OrderSide {
	if s == Buy {
		return Sell
	}
	return Buy
}

// TimeInForce indicates how long an order remains active.
type TimeInForce string

const (
	Day TimeInForce = "DAY"
	GTC TimeInForce = "GTC"
)

// OrderType represents the execution type of a single order leg.
type OrderType string

const (
	Market       OrderType = "MARKET"
	Limit        OrderType = "LIMIT"
	Stop         OrderType = "STOP"
	StopLimit    OrderType = "STOP_LIMIT"
	TrailingStop OrderType = "TRAILING_STOP"
)

// OrderClass identifies the logical order class of a plan.
type OrderClass string

const (
	ClassSimple       OrderClass = "SIMPLE"
	ClassBracket      OrderClass = "BRACKET"
	ClassOCO          OrderClass = "OCO"
	ClassOTO          OrderClass = "OTO"
	ClassTrailingStop OrderClass = "TRAILING_STOP"
)

// TrailType indicates whether a trailing stop trails by an absolute price
// distance or by a percentage of the high-water mark.
type TrailType string

const (
	TrailPrice   TrailType = "PRICE"
	TrailPercent TrailType = "PERCENT"
)

// OrderLeg is one concrete order within a plan.
//
// Field presence follows the leg type: LimitPrice is set iff the type is
// LIMIT or STOP_LIMIT, StopPrice iff STOP or STOP_LIMIT, and the trailing
// fields iff TRAILING_STOP. Prices are zero when absent; the validator
// enforces presence before a plan leaves the orders package.
type OrderLeg struct {
	Symbol      string
	Side        OrderSide
	Quantity    float64
	Type        OrderType
	LimitPrice  float64
	StopPrice   float64
	TrailType   TrailType
	TrailAmount float64
	TimeInForce TimeInForce
}

// OrderPlan is the fully-shaped submission for one logical order class.
// A plan is transient: it is built, validated, submitted once, and
// discarded. Plans carry no timestamps or nonces, so building the same
// request twice yields structurally identical values.
type OrderPlan struct {
	Class    OrderClass
	Root     OrderLeg
	Attached []OrderLeg

	// ExitOnly marks plans that reduce an existing position (OCO and
	// monitor-built partial closes). The validator caps the quantity of
	// these plans at the held position quantity.
	ExitOnly bool
}

// Symbol returns the symbol the plan trades.
func (p *OrderPlan) Symbol() string {
	return p.Root.Symbol
}

// Legs returns the root leg followed by the attached legs.
func (p *OrderPlan) Legs() []OrderLeg {
	legs := make([]OrderLeg, 0, 1+len(p.Attached))
	legs = append(legs, p.Root)
	legs = append(legs, p.Attached...)
	return legs
}

// OrderStatus is the brokerage's view of a submitted order.
type OrderStatus struct {
	ID            string
	ClientOrderID string
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Class         OrderClass
	Quantity      float64
	FilledQty     float64
	LimitPrice    float64
	StopPrice     float64
	Status        string
	LegIDs        []string
}
