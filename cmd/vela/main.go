package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"vela/api/gateway"
	"vela/api/textline"
	"vela/domain/book"
	"vela/infra/kafka"
	"vela/infra/outbox"
	"vela/infra/pipeline"
	"vela/infra/wal"
	"vela/ingest"
	"vela/jobs/broadcaster"
	"vela/jobs/depthfeed"
	"vela/metrics"
	"vela/service"
)

func main() {
	var (
		httpAddr     = flag.String("http", ":8080", "REST/websocket/metrics listen address")
		tcpAddr      = flag.String("tcp", ":1030", "text-protocol listen address")
		walDir       = flag.String("wal", "./wal_data", "trade journal directory")
		outboxDir    = flag.String("outbox", "./outbox_data", "trade outbox directory")
		brokers      = flag.String("brokers", "", "comma-separated Kafka brokers (empty disables Kafka)")
		tradeTopic   = flag.String("trade-topic", "vela.trades", "Kafka topic for trade events")
		depthTopic   = flag.String("depth-topic", "vela.depth", "Kafka topic for depth snapshots")
		ordersFile   = flag.String("orders", "", "instruction file to load at startup")
		queueSize    = flag.Uint64("queue", 1024, "per-stage pipeline queue capacity (power of two)")
		depthEvery   = flag.Duration("depth-interval", 2*time.Second, "depth feed publish interval")
		publishEvery = flag.Duration("broadcast-interval", 250*time.Millisecond, "outbox publish interval")
		depthLevels  = flag.Int("depth-levels", 10, "levels per side in depth snapshots")
	)
	flag.Parse()

	// ---------------- Journal ----------------

	journal, err := wal.Open(wal.Config{
		Dir:             *walDir,
		SegmentSize:     2 * 1024 * 1024,
		SegmentDuration: time.Minute,
	})
	if err != nil {
		log.Fatalf("journal init failed: %v", err)
	}

	// ---------------- Outbox ----------------

	box, err := outbox.Open(*outboxDir)
	if err != nil {
		log.Fatalf("outbox init failed: %v", err)
	}
	defer box.Close()

	// ---------------- Core ----------------

	m := metrics.New("vela")
	hub := gateway.NewHub()
	pipe := pipeline.New(*queueSize)
	engine := service.NewEngine(book.NewOrderBook(), pipe, journal, box, m, hub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---------------- Background jobs ----------------

	if *brokers != "" {
		brokerList := strings.Split(*brokers, ",")

		bc, err := broadcaster.New(box, brokerList, *tradeTopic, *publishEvery)
		if err != nil {
			log.Fatalf("broadcaster init failed: %v", err)
		}
		defer bc.Close()
		bc.Start(ctx)

		producer := kafka.NewProducer(brokerList, *depthTopic)
		defer producer.Close()
		depthfeed.New(engine, producer, *depthLevels, *depthEvery).Start(ctx)
	}

	// ---------------- Ingress ----------------

	if *ordersFile != "" {
		n, err := ingest.LoadFile(*ordersFile, engine)
		if err != nil {
			log.Fatalf("order file load failed: %v", err)
		}
		log.Printf("loaded %d instructions from %s", n, *ordersFile)
	}

	tcpSrv, err := textline.Listen(*tcpAddr, engine)
	if err != nil {
		log.Fatalf("tcp listen failed: %v", err)
	}
	go tcpSrv.Serve(ctx)

	handler := gateway.NewHandler(engine, hub)
	httpSrv := &http.Server{
		Addr:    *httpAddr,
		Handler: handler.Router(m),
	}
	go func() {
		log.Printf("vela engine on %s (tcp %s)", *httpAddr, *tcpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server exited: %v", err)
		}
	}()

	// ---------------- Shutdown ----------------

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Println("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	cancel()
	hub.Close()

	// ingress is stopped; drain the pipeline and close the journal
	engine.Close()
}
