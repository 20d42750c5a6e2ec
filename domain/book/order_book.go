package book

import "errors"

var (
	// ErrDuplicateOrder is returned when an order id has already been seen.
	ErrDuplicateOrder = errors.New("book: duplicate order id")
	// ErrOrderNotFound is returned by cancel/modify for unknown or
	// already-terminal order ids. It is an expected outcome, not a fault.
	ErrOrderNotFound = errors.New("book: order not found")
)

// StatusSnapshot is a value copy of an order's status record. It stays
// queryable after the order has left the book.
type StatusSnapshot struct {
	OrderID   uint64
	Side      Side
	Type      OrderType
	Price     int64
	State     OrderState
	Remaining int64
	Filled    int64
}

// ExecutionResult reports what a single ProcessOrder call did. Trades are
// value copies in execution order. FilledMakers carries the terminal
// snapshot of every resting order the walk fully consumed, so downstream
// logging sees their transitions, not just the incoming order's.
type ExecutionResult struct {
	OrderID      uint64
	State        OrderState
	Trades       []Trade
	FilledMakers []StatusSnapshot
}

// LevelSnapshot is one price level of a depth view.
type LevelSnapshot struct {
	Price    int64
	Quantity int64
	Orders   int
}

// DepthSnapshot is a point-in-time view of both sides, best price first.
type DepthSnapshot struct {
	Bids []LevelSnapshot
	Asks []LevelSnapshot
}

// OrderBook is the two-sided price-level book. It is single-writer: only
// the matching stage may call its methods, which is what lets it run
// without any lock.
type OrderBook struct {
	bids *RBTree
	asks *RBTree

	// resting orders only; an id is present iff the order is in a FIFO
	orders map[uint64]*Order

	// every order ever seen, terminal or not
	statuses map[uint64]StatusSnapshot

	trades      []Trade
	nextTradeID uint64

	// scratch, reset per process call
	filledMakers []StatusSnapshot

	qtyBids int64
	qtyAsks int64
}

func NewOrderBook() *OrderBook {
	return &OrderBook{
		bids:        NewRBTree(),
		asks:        NewRBTree(),
		orders:      make(map[uint64]*Order),
		statuses:    make(map[uint64]StatusSnapshot),
		nextTradeID: 1,
	}
}

// ProcessOrder matches an incoming order against resting liquidity and
// rests any limit remainder. Re-submission of a previously seen id is a
// no-op and returns ErrDuplicateOrder.
func (b *OrderBook) ProcessOrder(o *Order) (ExecutionResult, error) {
	if _, seen := b.statuses[o.ID]; seen {
		return ExecutionResult{OrderID: o.ID}, ErrDuplicateOrder
	}
	return b.process(o), nil
}

// process runs the matching algorithm without the duplicate guard; the
// modify path re-enters here with a reused id.
func (b *OrderBook) process(o *Order) ExecutionResult {
	b.syncStatus(o, StateProcessing)
	b.filledMakers = b.filledMakers[:0]
	mark := len(b.trades)

	if o.Type == Market {
		// All-or-nothing against the O(1) aggregate, decided before any
		// mutation. A market order that cannot fully fill leaves the
		// book untouched.
		if o.Remaining() > b.opposingQuantity(o.Side) {
			b.syncStatus(o, StateExpired)
			return b.result(o, mark)
		}
		b.fillAgainst(o)
		b.syncStatus(o, StateFilled)
		return b.result(o, mark)
	}

	b.fillAgainst(o)
	if o.IsFilled() {
		b.syncStatus(o, StateFilled)
		return b.result(o, mark)
	}
	b.rest(o)
	return b.result(o, mark)
}

// fillAgainst walks opposing price levels in priority order. One code
// path serves both sides; the crossing predicate carries the asymmetry.
func (b *OrderBook) fillAgainst(o *Order) {
	opp, best, crosses := b.opposing(o.Side)

	for o.Remaining() > 0 {
		lvl := best()
		if lvl == nil {
			return
		}
		if o.Type == Limit && !crosses(lvl.Price, o.Price) {
			return
		}

		for maker := lvl.Head(); maker != nil && o.Remaining() > 0; maker = lvl.Head() {
			qty := min64(o.Remaining(), maker.Remaining())

			o.Fill(qty)
			maker.Fill(qty)
			lvl.TotalQty -= qty
			b.adjustQuantity(o.Side.Opposite(), -qty)

			// price is the maker's resting price, never the taker's limit
			b.appendTrade(o.ID, maker.ID, qty, maker.Price)

			if maker.IsFilled() {
				lvl.Remove(maker)
				delete(b.orders, maker.ID)
				b.syncStatus(maker, StateFilled)
				b.filledMakers = append(b.filledMakers, b.statuses[maker.ID])
			} else {
				b.syncStatus(maker, StateProcessing)
			}
		}

		if lvl.Empty() {
			opp.DeleteLevel(lvl.Price)
		}
	}
}

// rest inserts a limit remainder at the tail of its price level.
func (b *OrderBook) rest(o *Order) {
	var lvl *PriceLevel
	if o.Side == Buy {
		lvl = b.bids.UpsertLevel(o.Price)
	} else {
		lvl = b.asks.UpsertLevel(o.Price)
	}
	lvl.Enqueue(o)
	b.orders[o.ID] = o
	b.adjustQuantity(o.Side, o.Remaining())
	b.syncStatus(o, StateProcessing)
}

// CancelOrder removes a resting order. The FIFO unlink, the index removal
// and the aggregate decrement happen in the same step so no stale handle
// survives.
func (b *OrderBook) CancelOrder(id uint64) error {
	o, ok := b.orders[id]
	if !ok {
		return ErrOrderNotFound
	}

	lvl := o.level
	price := lvl.Price
	lvl.Remove(o)
	if lvl.Empty() {
		if o.Side == Buy {
			b.bids.DeleteLevel(price)
		} else {
			b.asks.DeleteLevel(price)
		}
	}
	b.adjustQuantity(o.Side, -o.Remaining())
	delete(b.orders, id)
	b.syncStatus(o, StateCancelled)
	return nil
}

// ModifyOrder is cancel-then-resubmit with the same id, side and type.
// The new order is treated as a fresh arrival, so it deliberately loses
// time priority. A failed resubmission does not resurrect the cancelled
// order.
func (b *OrderBook) ModifyOrder(id uint64, qty, price int64) (ExecutionResult, error) {
	o, ok := b.orders[id]
	if !ok {
		return ExecutionResult{OrderID: id}, ErrOrderNotFound
	}
	side, otype := o.Side, o.Type

	if err := b.CancelOrder(id); err != nil {
		return ExecutionResult{OrderID: id}, err
	}

	replacement, err := NewOrder(id, side, otype, price, qty, qty)
	if err != nil {
		return ExecutionResult{OrderID: id, State: StateCancelled}, err
	}
	return b.process(replacement), nil
}

// OrderStatus returns a value snapshot; unknown ids get the Unknown
// sentinel rather than an error.
func (b *OrderBook) OrderStatus(id uint64) StatusSnapshot {
	if snap, ok := b.statuses[id]; ok {
		return snap
	}
	return StatusSnapshot{OrderID: id, State: StateUnknown}
}

// RecordRejection registers an order that failed construction and never
// entered the book, so its status is still queryable.
func (b *OrderBook) RecordRejection(id uint64, side Side, otype OrderType, price, qty int64) {
	b.statuses[id] = StatusSnapshot{
		OrderID:   id,
		Side:      side,
		Type:      otype,
		Price:     price,
		State:     StateRejected,
		Remaining: qty,
	}
}

// BestBid reports the highest resting bid price; ok is false when the
// side is empty, which keeps an empty book distinguishable from price 0.
func (b *OrderBook) BestBid() (int64, bool) {
	lvl := b.bids.MaxLevel()
	if lvl == nil {
		return 0, false
	}
	return lvl.Price, true
}

func (b *OrderBook) BestAsk() (int64, bool) {
	lvl := b.asks.MinLevel()
	if lvl == nil {
		return 0, false
	}
	return lvl.Price, true
}

func (b *OrderBook) QuantityOfBids() int64 { return b.qtyBids }
func (b *OrderBook) QuantityOfAsks() int64 { return b.qtyAsks }

// Trades returns a copy of the full execution ledger in execution order.
func (b *OrderBook) Trades() []Trade {
	out := make([]Trade, len(b.trades))
	copy(out, b.trades)
	return out
}

func (b *OrderBook) TradeCount() int { return len(b.trades) }

// Depth snapshots both sides, best price first, limited to maxLevels per
// side (0 means all levels).
func (b *OrderBook) Depth(maxLevels int) DepthSnapshot {
	var snap DepthSnapshot
	b.bids.ForEachDescending(func(lvl *PriceLevel) bool {
		snap.Bids = append(snap.Bids, LevelSnapshot{Price: lvl.Price, Quantity: lvl.TotalQty, Orders: lvl.OrderCount})
		return maxLevels == 0 || len(snap.Bids) < maxLevels
	})
	b.asks.ForEachAscending(func(lvl *PriceLevel) bool {
		snap.Asks = append(snap.Asks, LevelSnapshot{Price: lvl.Price, Quantity: lvl.TotalQty, Orders: lvl.OrderCount})
		return maxLevels == 0 || len(snap.Asks) < maxLevels
	})
	return snap
}

/******************** internals ********************/

func (b *OrderBook) opposing(s Side) (tree *RBTree, best func() *PriceLevel, crosses func(levelPrice, limit int64) bool) {
	if s == Buy {
		return b.asks, b.asks.MinLevel, func(levelPrice, limit int64) bool { return levelPrice <= limit }
	}
	return b.bids, b.bids.MaxLevel, func(levelPrice, limit int64) bool { return levelPrice >= limit }
}

func (b *OrderBook) opposingQuantity(s Side) int64 {
	if s == Buy {
		return b.qtyAsks
	}
	return b.qtyBids
}

func (b *OrderBook) adjustQuantity(s Side, delta int64) {
	if s == Buy {
		b.qtyBids += delta
	} else {
		b.qtyAsks += delta
	}
}

func (b *OrderBook) appendTrade(takerID, makerID uint64, qty, price int64) {
	t, err := NewTrade(b.nextTradeID, takerID, makerID, qty, price)
	if err != nil {
		// qty is clamped by the walk; reaching here is a matching bug
		panic(err)
	}
	b.nextTradeID++
	b.trades = append(b.trades, t)
}

func (b *OrderBook) syncStatus(o *Order, state OrderState) {
	b.statuses[o.ID] = StatusSnapshot{
		OrderID:   o.ID,
		Side:      o.Side,
		Type:      o.Type,
		Price:     o.Price,
		State:     state,
		Remaining: o.Remaining(),
		Filled:    o.FilledQuantity(),
	}
}

func (b *OrderBook) result(o *Order, mark int) ExecutionResult {
	res := ExecutionResult{
		OrderID: o.ID,
		State:   b.statuses[o.ID].State,
	}
	if len(b.trades) > mark {
		res.Trades = append(res.Trades, b.trades[mark:]...)
	}
	if len(b.filledMakers) > 0 {
		res.FilledMakers = append(res.FilledMakers, b.filledMakers...)
	}
	return res
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
