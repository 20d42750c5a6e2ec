// Package service wires the matching core to its collaborators. Engine is
// the only component that touches the pipeline: every mutation and every
// query flows Sequencer -> Matching, so the book sees one deterministic
// total order of operations.
package service

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"vela/domain/book"
	"vela/infra/memory"
	"vela/infra/outbox"
	"vela/infra/pipeline"
	"vela/infra/sequence"
	"vela/infra/wal"
	"vela/metrics"
)

// TradeEvent is the immutable value copy handed to the Logger stage and
// published downstream. It never references live book structures.
type TradeEvent struct {
	TradeID      uint64 `json:"trade_id"`
	TakerOrderID uint64 `json:"taker_order_id"`
	MakerOrderID uint64 `json:"maker_order_id"`
	Quantity     int64  `json:"quantity"`
	Price        int64  `json:"price"`
	Time         int64  `json:"time"`
}

// StatusEvent records a terminal status transition.
type StatusEvent struct {
	OrderID   uint64 `json:"order_id"`
	State     string `json:"state"`
	Remaining int64  `json:"remaining"`
	Filled    int64  `json:"filled"`
	Time      int64  `json:"time"`
}

// TradeSink receives trade events for live distribution (the websocket
// hub). Implementations must not block the Logger worker for long.
type TradeSink interface {
	PublishTrade(TradeEvent)
}

// Engine owns the pipeline and the book. Collaborators other than the
// book may be nil; the corresponding side effects are skipped.
type Engine struct {
	book    *book.OrderBook
	pipe    *pipeline.Pipeline
	pool    *memory.Pool[book.Order]
	orderID *sequence.Sequencer
	eventID *sequence.Sequencer

	journal *wal.WAL
	box     *outbox.Outbox
	metrics *metrics.Metrics
	feed    TradeSink

	// serializes external producers so the Sequencer queue keeps a
	// single logical producer
	submitMu sync.Mutex
}

func NewEngine(
	b *book.OrderBook,
	pipe *pipeline.Pipeline,
	journal *wal.WAL,
	box *outbox.Outbox,
	m *metrics.Metrics,
	feed TradeSink,
) *Engine {
	return &Engine{
		book:    b,
		pipe:    pipe,
		pool:    memory.NewPool(func() *book.Order { return &book.Order{} }),
		orderID: sequence.New(0),
		eventID: sequence.New(0),
		journal: journal,
		box:     box,
		metrics: m,
		feed:    feed,
	}
}

//
// ────────────────────────────────────────────────────────── Commands ──
//

// Submit hands one raw text-protocol line to the Sequencer stage. The
// line is parsed there; malformed input is dropped before any Order is
// constructed. Fire-and-forget: results are observable via status and
// trade queries.
func (e *Engine) Submit(line string) {
	e.submitMu.Lock()
	defer e.submitMu.Unlock()
	e.pipe.Submit(pipeline.Sequencer, func() { e.sequence(line) })
}

// PlaceOrder validates and sequences a new order, returning its assigned
// id immediately. Execution is asynchronous; a construction failure is
// recorded as Rejected and returned to the caller.
func (e *Engine) PlaceOrder(side book.Side, otype book.OrderType, price, qty int64) (uint64, error) {
	id := e.orderID.Next()
	o, err := book.NewOrder(id, side, otype, price, qty, qty)
	if err != nil {
		e.forward(func() { e.book.RecordRejection(id, side, otype, price, qty) })
		if e.metrics != nil {
			e.metrics.OrderRejected()
		}
		return id, err
	}
	e.dispatch(o)
	return id, nil
}

// CancelOrder routes a cancel through the pipeline so it is ordered
// consistently relative to fills, and waits for the result. Unknown or
// already-terminal ids return book.ErrOrderNotFound.
func (e *Engine) CancelOrder(id uint64) error {
	return inquire(e, func(b *book.OrderBook) error {
		if err := b.CancelOrder(id); err != nil {
			return err
		}
		e.logStatus(b.OrderStatus(id))
		return nil
	})
}

// ModifyOrder cancels and resubmits under the same id, losing time
// priority by design.
func (e *Engine) ModifyOrder(id uint64, qty, price int64) error {
	return inquire(e, func(b *book.OrderBook) error {
		res, err := b.ModifyOrder(id, qty, price)
		if err != nil {
			return err
		}
		e.afterExecution(res)
		return nil
	})
}

//
// ─────────────────────────────────────────────────────────── Queries ──
//

func (e *Engine) OrderStatus(id uint64) book.StatusSnapshot {
	return inquire(e, func(b *book.OrderBook) book.StatusSnapshot {
		return b.OrderStatus(id)
	})
}

func (e *Engine) BestBid() (int64, bool) {
	type best struct {
		price int64
		ok    bool
	}
	r := inquire(e, func(b *book.OrderBook) best {
		p, ok := b.BestBid()
		return best{p, ok}
	})
	return r.price, r.ok
}

func (e *Engine) BestAsk() (int64, bool) {
	type best struct {
		price int64
		ok    bool
	}
	r := inquire(e, func(b *book.OrderBook) best {
		p, ok := b.BestAsk()
		return best{p, ok}
	})
	return r.price, r.ok
}

func (e *Engine) Quantities() (bids, asks int64) {
	type agg struct{ bids, asks int64 }
	r := inquire(e, func(b *book.OrderBook) agg {
		return agg{b.QuantityOfBids(), b.QuantityOfAsks()}
	})
	return r.bids, r.asks
}

func (e *Engine) Trades() []book.Trade {
	return inquire(e, func(b *book.OrderBook) []book.Trade {
		return b.Trades()
	})
}

func (e *Engine) Depth(maxLevels int) book.DepthSnapshot {
	return inquire(e, func(b *book.OrderBook) book.DepthSnapshot {
		return b.Depth(maxLevels)
	})
}

// BookSnapshot is one coherent view of prices, aggregates and depth,
// taken in a single pass on the Matching stage.
type BookSnapshot struct {
	BestBid     int64
	BestAsk     int64
	HasBid      bool
	HasAsk      bool
	BidQuantity int64
	AskQuantity int64
	Depth       book.DepthSnapshot
}

// Snapshot gathers everything a depth publisher needs in one round-trip,
// so no mutation can land between the pieces of one published view.
func (e *Engine) Snapshot(maxLevels int) BookSnapshot {
	return inquire(e, func(b *book.OrderBook) BookSnapshot {
		var s BookSnapshot
		s.BestBid, s.HasBid = b.BestBid()
		s.BestAsk, s.HasAsk = b.BestAsk()
		s.BidQuantity = b.QuantityOfBids()
		s.AskQuantity = b.QuantityOfAsks()
		s.Depth = b.Depth(maxLevels)
		return s
	})
}

// Close drains the pipeline, then syncs and closes the journal. External
// producers must have stopped first.
func (e *Engine) Close() {
	e.pipe.Close()
	if e.journal != nil {
		if err := e.journal.Close(); err != nil {
			log.Printf("[engine] journal close: %v", err)
		}
	}
}

//
// ───────────────────────────────────────────────────────── Internals ──
//

// sequence runs on the Sequencer worker: parse, assign id, construct,
// forward to Matching.
func (e *Engine) sequence(line string) {
	in, err := ParseInstruction(line)
	if err != nil {
		log.Printf("[sequencer] dropped instruction: %v", err)
		if e.metrics != nil {
			e.metrics.OrderRejected()
		}
		return
	}

	switch in.Op {
	case OpCancel:
		id := in.OrderID
		e.pipe.Submit(pipeline.Matching, func() {
			if err := e.book.CancelOrder(id); err != nil {
				log.Printf("[matching] cancel %d: %v", id, err)
				return
			}
			e.logStatus(e.book.OrderStatus(id))
		})

	case OpModify:
		id, qty, price := in.OrderID, in.Qty, in.Price
		e.pipe.Submit(pipeline.Matching, func() {
			res, err := e.book.ModifyOrder(id, qty, price)
			if err != nil {
				log.Printf("[matching] modify %d: %v", id, err)
				return
			}
			e.afterExecution(res)
		})

	case OpPlace:
		id := e.orderID.Next()
		o, err := book.NewOrder(id, in.Side, in.Type, in.Price, in.Qty, in.Qty)
		if err != nil {
			log.Printf("[sequencer] order %d rejected: %v", id, err)
			e.pipe.Submit(pipeline.Matching, func() {
				e.book.RecordRejection(id, in.Side, in.Type, in.Price, in.Qty)
			})
			if e.metrics != nil {
				e.metrics.OrderRejected()
			}
			return
		}
		e.pipe.Submit(pipeline.Matching, e.matchTask(o))
	}
}

// dispatch routes an already-constructed order through the Sequencer
// queue so ordering matches the text path.
func (e *Engine) dispatch(o *book.Order) {
	pooled := e.pool.Get()
	*pooled = *o

	e.submitMu.Lock()
	defer e.submitMu.Unlock()
	e.pipe.Submit(pipeline.Sequencer, func() {
		e.pipe.Submit(pipeline.Matching, e.matchTask(pooled))
	})
}

// matchTask is the Matching-stage work for one incoming order.
func (e *Engine) matchTask(o *book.Order) pipeline.Task {
	return func() {
		start := time.Now()
		res, err := e.book.ProcessOrder(o)
		if e.metrics != nil {
			e.metrics.ObserveMatchLatency(time.Since(start))
			e.metrics.OrderProcessed()
		}
		if err != nil {
			log.Printf("[matching] order %d: %v", o.ID, err)
			e.pool.Put(o)
			return
		}
		e.afterExecution(res)
		// resting orders stay referenced by the book
		if res.State != book.StateProcessing {
			e.pool.Put(o)
		}
	}
}

// afterExecution runs on the Matching worker. It snapshots everything the
// Logger stage needs as values, then hands off; the Logger never sees the
// live book.
func (e *Engine) afterExecution(res book.ExecutionResult) {
	now := time.Now().UnixNano()

	trades := make([]TradeEvent, 0, len(res.Trades))
	for _, t := range res.Trades {
		trades = append(trades, TradeEvent{
			TradeID:      t.ID,
			TakerOrderID: t.TakerOrderID,
			MakerOrderID: t.MakerOrderID,
			Quantity:     t.Quantity,
			Price:        t.Price,
			Time:         now,
		})
	}

	// makers consumed by the walk reach the journal too, not just the
	// incoming order
	statuses := make([]StatusEvent, 0, len(res.FilledMakers)+1)
	for _, snap := range res.FilledMakers {
		statuses = append(statuses, statusEvent(snap, now))
	}
	if res.State != book.StateProcessing {
		statuses = append(statuses, statusEvent(e.book.OrderStatus(res.OrderID), now))
	}

	bids, asks := e.book.QuantityOfBids(), e.book.QuantityOfAsks()

	e.pipe.Submit(pipeline.Logger, func() {
		e.record(trades, statuses, bids, asks)
	})
}

func statusEvent(snap book.StatusSnapshot, now int64) StatusEvent {
	return StatusEvent{
		OrderID:   snap.OrderID,
		State:     snap.State.String(),
		Remaining: snap.Remaining,
		Filled:    snap.Filled,
		Time:      now,
	}
}

// logStatus hands a single terminal transition to the Logger stage.
func (e *Engine) logStatus(snap book.StatusSnapshot) {
	statuses := []StatusEvent{statusEvent(snap, time.Now().UnixNano())}
	bids, asks := e.book.QuantityOfBids(), e.book.QuantityOfAsks()
	e.pipe.Submit(pipeline.Logger, func() {
		e.record(nil, statuses, bids, asks)
	})
}

// record runs on the Logger worker: journal, outbox, live feed, metrics.
func (e *Engine) record(trades []TradeEvent, statuses []StatusEvent, bids, asks int64) {
	for _, te := range trades {
		data, err := json.Marshal(te)
		if err != nil {
			log.Printf("[logger] encode trade %d: %v", te.TradeID, err)
			continue
		}
		if e.journal != nil {
			if err := e.journal.Append(wal.NewRecord(wal.RecordTrade, data)); err != nil {
				log.Printf("[logger] journal trade %d: %v", te.TradeID, err)
			}
		}
		if e.box != nil {
			if err := e.box.PutNew(e.eventID.Next(), data); err != nil {
				log.Printf("[logger] outbox trade %d: %v", te.TradeID, err)
			}
		}
		if e.feed != nil {
			e.feed.PublishTrade(te)
		}
	}

	for _, status := range statuses {
		data, err := json.Marshal(status)
		if err != nil {
			log.Printf("[logger] encode status %d: %v", status.OrderID, err)
			continue
		}
		if e.journal != nil {
			if err := e.journal.Append(wal.NewRecord(wal.RecordStatus, data)); err != nil {
				log.Printf("[logger] journal status %d: %v", status.OrderID, err)
			}
		}
	}

	if e.metrics != nil {
		e.metrics.TradesExecuted(len(trades))
		e.metrics.SetDepth(bids, asks)
	}
}

// forward pushes a Matching-stage task through the Sequencer queue,
// preserving the single-producer discipline on the Matching queue.
func (e *Engine) forward(task pipeline.Task) {
	e.submitMu.Lock()
	defer e.submitMu.Unlock()
	e.pipe.Submit(pipeline.Sequencer, func() {
		e.pipe.Submit(pipeline.Matching, task)
	})
}

// inquire serializes a read or mutation through the Matching stage and
// waits for its result, so callers never observe book internals while
// they are being mutated.
func inquire[T any](e *Engine, fn func(*book.OrderBook) T) T {
	ch := make(chan T, 1)
	e.forward(func() { ch <- fn(e.book) })
	return <-ch
}
