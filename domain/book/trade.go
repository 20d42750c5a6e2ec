package book

import "fmt"

// Trade is an immutable execution record. Trade ids run on their own
// monotonic sequence, independent of order ids. The price is always the
// maker's resting price.
type Trade struct {
	ID           uint64
	TakerOrderID uint64
	MakerOrderID uint64
	Quantity     int64
	Price        int64
}

func NewTrade(id, takerID, makerID uint64, qty, price int64) (Trade, error) {
	if qty <= 0 {
		return Trade{}, fmt.Errorf("trade %d: quantity must be > 0, got %d", id, qty)
	}
	return Trade{
		ID:           id,
		TakerOrderID: takerID,
		MakerOrderID: makerID,
		Quantity:     qty,
		Price:        price,
	}, nil
}
