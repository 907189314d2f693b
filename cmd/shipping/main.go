package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/ariefcatur/go-custom-orders/internal/catalog"
	"github.com/ariefcatur/go-custom-orders/internal/config"
	"github.com/ariefcatur/go-custom-orders/internal/events"
	kafkax "github.com/ariefcatur/go-custom-orders/internal/kafka"
	"github.com/ariefcatur/go-custom-orders/internal/logx"
	"github.com/ariefcatur/go-custom-orders/internal/orders"
	"github.com/ariefcatur/go-custom-orders/internal/postgres"
	"github.com/ariefcatur/go-custom-orders/internal/redisx"
	"github.com/ariefcatur/go-custom-orders/internal/shipping"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	name := cfg.ServiceName + "-shipping"
	lg, err := logx.New(cfg.LogLevel, cfg.LogEncoding, name)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer lg.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN, postgres.PoolOptions{MaxConns: int32(cfg.PostgresPool)})
	if err != nil {
		lg.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	svc := &shipping.Service{
		Provider: shipping.StubProvider{},
		Orders:   orders.NewService(db, catalog.Store{}, nil, lg),
		Dedup:    &redisx.Dedup{Client: rdb, Service: name},
		Log:      lg,
	}

	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.ShippingGroup, events.TopicOrderStatusChanged, cfg.ShippingWorkers, lg)
	done := make(chan struct{})
	go func() {
		defer close(done)
		lg.Info("shipping consumer started",
			zap.String("group", cfg.ShippingGroup),
			zap.String("topic", events.TopicOrderStatusChanged),
			zap.Int("workers", cfg.ShippingWorkers))
		if err := cons.Start(ctx, svc.HandleStatusChanged); err != nil {
			lg.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	lg.Info("shutting down consumer")
	cancel()
	<-done
}
