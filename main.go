package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"futures-core/internal/api"
	"futures-core/internal/events"
	"futures-core/internal/execution"
	"futures-core/internal/market"
	"futures-core/internal/persistence"
	"futures-core/internal/strategy"
	"futures-core/internal/verify"
	"futures-core/pkg/config"
	"futures-core/pkg/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ config: %v", err)
	}
	if err := cfg.ValidateCredentials(); err != nil {
		log.Fatalf("❌ config: %v", err)
	}

	stratCfg, err := strategy.LoadConfig(cfg.StrategyConfigPath)
	if err != nil {
		log.Fatalf("❌ strategy config: %v", err)
	}
	stratCfg.StatePersistInterval = cfg.StatePersistInterval

	store, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("❌ database: %v", err)
	}
	defer store.Close()
	if err := db.ApplyMigrations(store); err != nil {
		log.Fatalf("❌ migrations: %v", err)
	}

	bus := events.NewBus()

	pq, err := execution.NewPersistentQueue(cfg.QueueWALDir, cfg.QueueSize)
	if err != nil {
		log.Fatalf("❌ execution queue: %v", err)
	}
	defer pq.Close()

	// The simulated broker stands in for the real session dialer; a live
	// deployment plugs its own execution.Dialer here.
	dialer := execution.NewSimBroker(map[string]float64{stratCfg.Symbol: 21000})

	worker := execution.NewWorker(pq, dialer, execution.Options{
		MaxRetries:          cfg.RequestMaxRetries,
		RetryDelay:          cfg.RequestRetryDelay,
		HealthCheckInterval: cfg.HealthCheckInterval,
		SessionStaleAfter:   cfg.SessionStaleAfter,
	})
	client := worker.Client(cfg.Simulation)

	verifier := verify.NewVerifier(client, store, bus,
		cfg.OrderStatusCheckDelay, cfg.OrderStatusCheckInterval, cfg.OrderStatusMaxAttempts)

	var quotes *persistence.QuoteWriter
	if cfg.QuoteStorageEnabled {
		quotes = persistence.NewQuoteWriter(store, cfg.QuoteStorageBufferSize, cfg.QuoteStorageFlushEvery)
	}

	loop := strategy.NewLoop(stratCfg, client, verifier, store, bus, quotes, cfg.Simulation)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := loop.Restore(ctx); err != nil {
		log.Printf("⚠️ snapshot restore failed, starting fresh: %v", err)
	}

	var feed market.Feed
	if cfg.UseMockFeed {
		feed = market.NewMockFeed(21000, 500*time.Millisecond)
	} else {
		feed = market.NewWebSocketFeed(cfg.QuoteFeedURL)
	}
	ticks, err := feed.Subscribe(ctx, stratCfg.Symbol)
	if err != nil {
		log.Fatalf("❌ quote feed: %v", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := worker.Run(ctx); err != nil {
			log.Printf("❌ execution worker: %v", err)
			stop()
		}
	}()

	if quotes != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			quotes.Run(ctx)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := loop.Run(ctx, ticks); err != nil && ctx.Err() == nil {
			log.Printf("❌ strategy loop: %v", err)
			stop()
		}
	}()

	server := api.NewServer(client, loop, store)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.Run(ctx, ":"+cfg.Port); err != nil {
			log.Printf("⚠️ ops server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down...")
	wg.Wait()
	log.Printf("✓ Shutdown complete")
}
