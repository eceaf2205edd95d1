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

	"github.com/senyabanana/licitacao-service/internal/auth"
	"github.com/senyabanana/licitacao-service/internal/db"
	"github.com/senyabanana/licitacao-service/internal/feed"
	"github.com/senyabanana/licitacao-service/internal/handlers"
	"github.com/senyabanana/licitacao-service/internal/models"
	"github.com/senyabanana/licitacao-service/internal/policy"
	"github.com/senyabanana/licitacao-service/internal/repository"
	"github.com/senyabanana/licitacao-service/internal/router"
	"github.com/senyabanana/licitacao-service/internal/router/config"
	"github.com/senyabanana/licitacao-service/internal/services"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

const tokenTTL = 12 * time.Hour

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file found, using app.env and the environment")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatal("cannot load config:", err)
	}

	pol, err := policy.Load(cfg.PolicyPath)
	if err != nil {
		log.Fatalf("cannot load policy: %v", err)
	}

	tokens, err := auth.NewTokens(cfg.JWTSecret, tokenTTL)
	if err != nil {
		log.Fatalf("cannot init tokens: %v", err)
	}

	logger := log.New(os.Stdout, "INFO: ", log.LstdFlags)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, cfg)
	defer closeStore()

	if cfg.SeedPath != "" {
		seed, err := repository.LoadSeed(cfg.SeedPath)
		if err != nil {
			log.Fatalf("cannot load seed: %v", err)
		}
		n, err := seed.Apply(ctx, store, time.Now())
		if err != nil {
			log.Fatalf("cannot apply seed: %v", err)
		}
		logger.Printf("seeded %d tender(s) from %s", n, cfg.SeedPath)
	}

	instanceID := cfg.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}

	var publisher feed.Publisher = feed.NopPublisher{}
	var amqpFeed *feed.AMQPFeed
	if cfg.AMQPURL != "" {
		amqpFeed, err = feed.NewAMQPFeed(cfg.AMQPURL, cfg.FeedExchange, instanceID, logger)
		if err != nil {
			log.Fatalf("cannot connect to the change feed: %v", err)
		}
		defer amqpFeed.Close()
		publisher = amqpFeed
	}

	svc := services.NewServices(store, publisher, auth.ClaimsChecker{}, pol, logger)

	if amqpFeed != nil {
		keys := []string{
			feed.Event{Kind: feed.KindBid, Status: string(models.BidCanceled)}.RoutingKey(),
			feed.Event{Kind: feed.KindBid, Status: string(models.BidActive)}.RoutingKey(),
		}
		if err = amqpFeed.Consume(ctx, svc.Dispute.ApplyRemote, keys...); err != nil {
			log.Fatalf("cannot consume the change feed: %v", err)
		}
	}

	go services.NewSweeper(svc, cfg.SweepInterval).Run(ctx)

	routes := router.InitRoutes(router.Handlers{
		Ping:      handlers.NewPingHandler(store.Ping, logger, cfg.RequestTimeout),
		Tenders:   handlers.NewTenderHandler(svc.Workflow, logger, cfg.RequestTimeout),
		Lots:      handlers.NewLotHandler(svc.Workflow, logger, cfg.RequestTimeout),
		Bids:      handlers.NewBidHandler(svc.Dispute, logger, cfg.RequestTimeout),
		Resources: handlers.NewResourceHandler(svc.Resources, logger, cfg.RequestTimeout),
	}, handlers.AuthMiddleware(tokens, logger))

	server := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("server is listening on %s...", cfg.ServerAddress)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}

// openStore открывает хранилище, выбранное STORE_DRIVER.
func openStore(ctx context.Context, cfg config.Config) (repository.Store, func()) {
	if cfg.StoreDriver == "memory" {
		log.Println("using in-memory store, state is lost on restart")
		return repository.NewMemoryStore().Store(), func() {}
	}

	dsn, err := cfg.PostgresDSN()
	if err != nil {
		log.Fatal(err)
	}
	if err = db.RunMigrations(cfg.MigrationURL, dsn); err != nil {
		log.Fatal(err)
	}

	dbPool, err := db.InitDb(ctx, cfg)
	if err != nil {
		log.Fatalf("error initializing database: %v", err)
	}
	return repository.NewPostgresStore(dbPool), dbPool.Close
}
