package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/barcomanda/comanda-backend/internal/comanda"
	"github.com/barcomanda/comanda-backend/internal/config"
	kafkax "github.com/barcomanda/comanda-backend/internal/kafka"
	"github.com/barcomanda/comanda-backend/internal/kitchen"
	"github.com/barcomanda/comanda-backend/internal/pgstore"
	"github.com/barcomanda/comanda-backend/internal/postgres"
	"github.com/barcomanda/comanda-backend/internal/redisx"
)

func mustAtoi(s, def string) int {
	if s == "" {
		s = def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return 1
	}
	return i
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// the consumer shares the API's database; no in-memory fallback here
	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(ctx)

	engine := comanda.NewEngine(pgstore.New(db), prod, log, cfg.ServiceName+"-kitchen")
	svc := &kitchen.Service{
		Engine:      engine,
		Redis:       rdb,
		ServiceName: cfg.ServiceName + "-kitchen",
		Log:         log,
	}

	group := getenv("KITCHEN_GROUP", "kitchen-svc")
	workers := mustAtoi(os.Getenv("KITCHEN_WORKERS"), "4")
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, comanda.TopicItemFulfilled, workers, log)

	go func() {
		log.Info("kitchen consumer started",
			zap.String("group", group),
			zap.String("topic", comanda.TopicItemFulfilled),
			zap.Int("workers", workers))
		if err := cons.Start(ctx, svc.HandleItemFulfilled); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down consumer...")
	cancel()
	time.Sleep(500 * time.Millisecond)
	prod.Close()
	prod.WaitClosed()
}
