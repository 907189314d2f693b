package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-custom-orders/internal/catalog"
	"github.com/ariefcatur/go-custom-orders/internal/config"
	"github.com/ariefcatur/go-custom-orders/internal/events"
	"github.com/ariefcatur/go-custom-orders/internal/httpx"
	"github.com/ariefcatur/go-custom-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-custom-orders/internal/kafka"
	"github.com/ariefcatur/go-custom-orders/internal/logx"
	"github.com/ariefcatur/go-custom-orders/internal/orders"
	"github.com/ariefcatur/go-custom-orders/internal/postgres"
	"github.com/ariefcatur/go-custom-orders/internal/redisx"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	lg, err := logx.New(cfg.LogLevel, cfg.LogEncoding, cfg.ServiceName)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolOptions{MaxConns: int32(cfg.PostgresPool)})
	if err != nil {
		lg.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()
	if cfg.MigrateOnStart {
		if err := postgres.Migrate(ctx, db); err != nil {
			lg.Fatal("migrate", zap.Error(err))
		}
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer, shared by every topic
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, lg)
	prod.Start(ctx)
	em := &events.Emitter{Sink: prod, Producer: cfg.ServiceName}

	ledger := inventory.NewLedger(db, em, lg)
	svc := orders.NewService(db, catalog.Store{}, em, lg)

	router := httpx.NewRouter(lg, cfg.RequestTimeout)
	(&httpx.OrdersHandler{Orders: svc, Cache: &redisx.StatusCache{Client: rdb}, Log: lg}).Register(router)
	(&httpx.InventoryHandler{Ledger: ledger, Log: lg}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		lg.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	lg.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close() // flush queued events
	cancel()
	prod.WaitClosed()
}
