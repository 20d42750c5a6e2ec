package textline

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"vela/domain/book"
	"vela/infra/pipeline"
	"vela/service"
)

func TestServeSubmitsLines(t *testing.T) {
	engine := service.NewEngine(book.NewOrderBook(), pipeline.New(64), nil, nil, nil, nil)
	defer engine.Close()

	srv, err := Listen("127.0.0.1:0", engine)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.Serve(ctx)

	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	fmt.Fprintf(conn, "SELL LIMIT 105 10\n")
	fmt.Fprintf(conn, "\n") // blank lines are skipped
	fmt.Fprintf(conn, "BUY LIMIT 105 10\n")
	conn.Close()

	// the connection handler runs concurrently; wait for both orders to
	// reach the book
	deadline := time.Now().Add(2 * time.Second)
	for {
		if trades := engine.Trades(); len(trades) == 1 {
			if trades[0].Price != 105 || trades[0].Quantity != 10 {
				t.Fatalf("trade = %+v", trades[0])
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("orders never crossed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	engine := service.NewEngine(book.NewOrderBook(), pipeline.New(64), nil, nil, nil, nil)
	defer engine.Close()

	srv, err := Listen("127.0.0.1:0", engine)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		srv.Serve(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
