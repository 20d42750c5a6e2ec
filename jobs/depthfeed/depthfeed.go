// Package depthfeed periodically publishes book depth snapshots to a
// Kafka topic.
package depthfeed

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"time"

	"vela/infra/kafka"
	"vela/service"
)

type snapshot struct {
	BestBid     *int64         `json:"best_bid"`
	BestAsk     *int64         `json:"best_ask"`
	BidQuantity int64          `json:"bid_quantity"`
	AskQuantity int64          `json:"ask_quantity"`
	Bids        []levelPayload `json:"bids,omitempty"`
	Asks        []levelPayload `json:"asks,omitempty"`
	Time        int64          `json:"time"`
}

type levelPayload struct {
	Price    int64 `json:"price"`
	Quantity int64 `json:"quantity"`
	Orders   int   `json:"orders"`
}

type Feed struct {
	engine   *service.Engine
	producer *kafka.Producer
	levels   int
	interval time.Duration
}

func New(engine *service.Engine, producer *kafka.Producer, levels int, interval time.Duration) *Feed {
	return &Feed{
		engine:   engine,
		producer: producer,
		levels:   levels,
		interval: interval,
	}
}

// Start publishes a depth snapshot every interval until ctx is done.
func (f *Feed) Start(ctx context.Context) {
	log.Println("[depthfeed] started")

	go func() {
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		seq := uint64(0)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				seq++
				f.publish(ctx, seq)
			}
		}
	}()
}

func (f *Feed) publish(ctx context.Context, seq uint64) {
	// one serialized round-trip, so the published view cannot mix book
	// states from either side of a mutation
	s := f.engine.Snapshot(f.levels)

	snap := snapshot{Time: time.Now().UnixNano()}
	if s.HasBid {
		bid := s.BestBid
		snap.BestBid = &bid
	}
	if s.HasAsk {
		ask := s.BestAsk
		snap.BestAsk = &ask
	}
	snap.BidQuantity, snap.AskQuantity = s.BidQuantity, s.AskQuantity

	if f.levels > 0 {
		for _, l := range s.Depth.Bids {
			snap.Bids = append(snap.Bids, levelPayload{Price: l.Price, Quantity: l.Quantity, Orders: l.Orders})
		}
		for _, l := range s.Depth.Asks {
			snap.Asks = append(snap.Asks, levelPayload{Price: l.Price, Quantity: l.Quantity, Orders: l.Orders})
		}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		log.Printf("[depthfeed] marshal: %v", err)
		return
	}
	if err := f.producer.Send(ctx, []byte(strconv.FormatUint(seq, 10)), data); err != nil {
		log.Printf("[depthfeed] publish: %v", err)
	}
}
