package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAndGauges(t *testing.T) {
	m := New("test")

	m.OrderProcessed()
	m.OrderProcessed()
	m.OrderRejected()
	m.TradesExecuted(3)
	m.SetDepth(15, 8)
	m.ObserveMatchLatency(500 * time.Nanosecond)

	if got := testutil.ToFloat64(m.ordersProcessed); got != 2 {
		t.Errorf("orders_processed_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ordersRejected); got != 1 {
		t.Errorf("orders_rejected_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.tradesExecuted); got != 3 {
		t.Errorf("trades_executed_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.bidDepth); got != 15 {
		t.Errorf("book_bid_quantity = %v, want 15", got)
	}
	if got := testutil.ToFloat64(m.askDepth); got != 8 {
		t.Errorf("book_ask_quantity = %v, want 8", got)
	}
}

func TestSeparateRegistries(t *testing.T) {
	a := New("a")
	b := New("b")
	a.OrderProcessed()
	if got := testutil.ToFloat64(b.ordersProcessed); got != 0 {
		t.Errorf("registries leaked: %v", got)
	}
}
