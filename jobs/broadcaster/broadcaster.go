// Package broadcaster drains the trade-event outbox into Kafka. Events
// move NEW -> SENT -> ACKED; anything not ACKED is retried on the next
// tick, so delivery is at-least-once and survives a crash between the
// outbox write and the publish.
package broadcaster

import (
	"context"
	"log"
	"time"

	"github.com/IBM/sarama"

	"vela/infra/outbox"
)

type Broadcaster struct {
	box      *outbox.Outbox
	producer sarama.SyncProducer
	topic    string
	interval time.Duration
}

func New(box *outbox.Outbox, brokers []string, topic string, interval time.Duration) (*Broadcaster, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	return &Broadcaster{
		box:      box,
		producer: producer,
		topic:    topic,
		interval: interval,
	}, nil
}

// Start runs the publish loop until ctx is cancelled.
func (b *Broadcaster) Start(ctx context.Context) {
	log.Println("[broadcaster] started")

	go func() {
		ticker := time.NewTicker(b.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				b.publishPending()
			}
		}
	}()
}

func (b *Broadcaster) publishPending() {
	err := b.box.ScanPending(func(rec *outbox.Record) error {
		// mark SENT first so a crash mid-publish is retried, not lost
		if err := b.box.MarkSent(rec.Seq); err != nil {
			return err
		}

		msg := &sarama.ProducerMessage{
			Topic: b.topic,
			Value: sarama.ByteEncoder(rec.Payload),
		}
		if _, _, err := b.producer.SendMessage(msg); err != nil {
			return nil // leave SENT; retried next tick
		}

		return b.box.MarkAcked(rec.Seq)
	})
	if err != nil {
		log.Printf("[broadcaster] scan: %v", err)
	}
}

func (b *Broadcaster) Close() error {
	return b.producer.Close()
}
