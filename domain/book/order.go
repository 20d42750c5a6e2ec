package book

import "fmt"

type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Opposite returns the contra side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

type OrderType int

const (
	Limit OrderType = iota
	Market
)

func (t OrderType) String() string {
	if t == Market {
		return "MARKET"
	}
	return "LIMIT"
}

// OrderState tracks an order through its lifecycle.
// Processing is the only non-terminal state.
type OrderState int

const (
	StateUnknown OrderState = iota
	StateProcessing
	StateFilled
	StateCancelled
	StateRejected
	StateExpired
)

func (s OrderState) String() string {
	switch s {
	case StateProcessing:
		return "PROCESSING"
	case StateFilled:
		return "FILLED"
	case StateCancelled:
		return "CANCELLED"
	case StateRejected:
		return "REJECTED"
	case StateExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

// Order is a pure domain entity. Identity, side, price and type are fixed
// at construction; only the remaining quantity mutates, and only through
// Fill while the matching worker owns the order.
type Order struct {
	ID    uint64
	Side  Side
	Type  OrderType
	Price int64 // integer tick; ignored for market orders

	initial   int64
	remaining int64

	// intrusive FIFO links, owned by the price level
	next  *Order
	prev  *Order
	level *PriceLevel // non-nil while resting
}

// NewOrder validates the quantity invariants before the order can reach
// any shared structure: 1 <= remaining <= initial.
func NewOrder(id uint64, side Side, otype OrderType, price, initial, remaining int64) (*Order, error) {
	if initial < 1 {
		return nil, fmt.Errorf("order %d: initial quantity must be >= 1, got %d", id, initial)
	}
	if remaining < 1 {
		return nil, fmt.Errorf("order %d: remaining quantity must be >= 1, got %d", id, remaining)
	}
	if remaining > initial {
		return nil, fmt.Errorf("order %d: remaining quantity %d exceeds initial %d", id, remaining, initial)
	}
	if otype == Market {
		price = 0
	}
	return &Order{
		ID:        id,
		Side:      side,
		Type:      otype,
		Price:     price,
		initial:   initial,
		remaining: remaining,
	}, nil
}

func (o *Order) Initial() int64   { return o.initial }
func (o *Order) Remaining() int64 { return o.remaining }

func (o *Order) FilledQuantity() int64 { return o.initial - o.remaining }

func (o *Order) IsFilled() bool { return o.remaining == 0 }

// Fill reduces the remaining quantity. Call sites must clamp qty to
// min(incoming.Remaining(), resting.Remaining()) first; a larger amount is
// a bug in the matching walk, not a user error.
func (o *Order) Fill(qty int64) {
	if qty > o.remaining {
		panic(fmt.Sprintf("order %d: fill %d exceeds remaining %d", o.ID, qty, o.remaining))
	}
	o.remaining -= qty
}

// Read-only traversal helper
func (o *Order) Next() *Order {
	return o.next
}
