package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/barcomanda/comanda-backend/internal/comanda"
	"github.com/barcomanda/comanda-backend/internal/config"
	"github.com/barcomanda/comanda-backend/internal/httpx"
	kafkax "github.com/barcomanda/comanda-backend/internal/kafka"
	"github.com/barcomanda/comanda-backend/internal/memstore"
	"github.com/barcomanda/comanda-backend/internal/pgstore"
	"github.com/barcomanda/comanda-backend/internal/postgres"
	"github.com/barcomanda/comanda-backend/internal/redisx"
)

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

	// Store: postgres, or in-memory when no DSN (dev mode)
	var store comanda.Store
	if cfg.PostgresDSN != "" {
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatal("db connect", zap.Error(err))
		}
		defer db.Close()
		store = pgstore.New(db)
	} else {
		log.Warn("POSTGRES_DSN not set, using in-memory store; all data is lost on exit")
		store = memstore.New()
	}

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	// Kafka producer (one writer, per-message topics)
	prod := kafkax.NewProducer(cfg.KafkaBrokers, 1024, log)
	prod.Start(ctx)

	engine := comanda.NewEngine(store, prod, log, cfg.ServiceName)
	validate := validator.New()

	router := httpx.NewRouter()
	(&httpx.ComandasHandler{Engine: engine, Redis: rdb, Validate: validate, Log: log}).Register(router)
	(&httpx.CashierHandler{Engine: engine, Validate: validate}).Register(router)
	(&httpx.ProductsHandler{Engine: engine, Validate: validate}).Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("HTTP listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down...")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	prod.Close()      // close inbox -> flush & close writer
	cancel()          // stop producer loop
	prod.WaitClosed() // drain
}
