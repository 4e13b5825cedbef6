/**
 * @description
 * This is the main entry point for the ledger-service. It is responsible for
 * initializing all components of the service: configuration, database pool,
 * Redis-backed pipeline cache, RabbitMQ producer and consumer, the external
 * aggregation and classification clients, the six pipeline stages, the cron
 * fetch driver, and the thin HTTP surface. It wires everything together and
 * starts the service.
 *
 * @dependencies
 * - log, net/http: Standard Go libraries for logging and HTTP server functionality.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - github.com/redis/go-redis/v9: Pipeline cache backend.
 * - internal/api, internal/app, internal/cache, internal/category,
 *   internal/config, internal/store: Internal packages for the service.
 * - pkg/aiclient, pkg/bankclient, pkg/rabbitmq: External clients and broker glue.
 */

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/moabank/ledger-service/internal/api"
	"github.com/moabank/ledger-service/internal/app"
	"github.com/moabank/ledger-service/internal/cache"
	"github.com/moabank/ledger-service/internal/category"
	"github.com/moabank/ledger-service/internal/config"
	"github.com/moabank/ledger-service/internal/domain"
	"github.com/moabank/ledger-service/internal/store"
	"github.com/moabank/ledger-service/pkg/aiclient"
	"github.com/moabank/ledger-service/pkg/bankclient"
	rmrabbit "github.com/moabank/ledger-service/pkg/rabbitmq"
)

func main() {
	// Load .env file for local development. In production, env vars are set directly.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"config load failed\" err=%v", err)
	}
	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		log.Fatalf("level=fatal component=bootstrap msg=\"internal api key must be configured\" env=INTERNAL_API_KEY")
	}

	log.Printf("level=info component=bootstrap msg=\"starting ledger-service\" port=%s", cfg.ServerPort)

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database url parse failed\" err=%v", err)
	}

	poolConfig.MaxConns = 50
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"database connection failed\" err=%v", err)
	}
	defer dbpool.Close()
	log.Println("level=info component=bootstrap msg=\"database connected\"")

	// The pipeline cache is load-bearing: classification results rendezvous
	// there between stages, so Redis is a hard dependency.
	redisOptions, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"redis url parse failed\" err=%v", err)
	}
	redisClient := redis.NewClient(redisOptions)
	defer redisClient.Close()
	if err := cache.Ping(context.Background(), redisClient); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"redis ping failed\" err=%v", err)
	}
	log.Println("level=info component=bootstrap msg=\"redis connected\"")

	pipelineCache := cache.NewRedisPipeline(redisClient, cfg.RedisKeyPrefix)

	// Initialize the RabbitMQ producer. Without the broker the pipeline
	// cannot move, but the HTTP surface can still report status; degrade to
	// the fallback producer rather than refusing to boot.
	var producer rmrabbit.Publisher
	eventProducer, err := rmrabbit.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Printf("level=warn component=bootstrap msg=\"rabbitmq producer unavailable; using fallback\" err=%v", err)
		producer = &rmrabbit.EventProducerFallback{}
	} else {
		defer eventProducer.Close()
		producer = eventProducer
		log.Println("level=info component=bootstrap msg=\"rabbitmq producer connected\"")
	}

	// External clients.
	bankClient := bankclient.NewClient(cfg.BankAPIBaseURL, cfg.BankAPIKey)

	classifier, err := aiclient.NewClient(context.Background(), cfg.ClassifierModel)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"classifier client init failed\" err=%v", err)
	}

	// Data access and the resolver's rule table.
	repository := store.NewPostgresRepository(dbpool)
	resolver := category.NewResolver(nil)

	// Wire the six stages and register them against their routing keys.
	pipeline := app.NewPipeline(repository, pipelineCache, bankClient, classifier, producer, resolver)

	rabbitConsumer, err := rmrabbit.NewConsumer(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"rabbitmq consumer init failed\" err=%v", err)
	}
	defer rabbitConsumer.Close()
	rabbitConsumer.MaxRetries = cfg.ConsumerMaxRetries

	if err := rabbitConsumer.ConsumeStages(domain.PipelineExchange, cfg.PipelineQueuePrefix, pipeline.Bindings()); err != nil {
		log.Fatalf("level=fatal component=bootstrap msg=\"pipeline consumer start failed\" err=%v", err)
	}
	log.Println("level=info component=bootstrap msg=\"pipeline consumer started\"")

	// The scheduled driver issues one fetch message per linked account.
	slogger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	driver := app.NewFetchDriver(repository, producer, slogger)
	scheduler := app.NewScheduler(driver, slogger)
	scheduler.Start(cfg.FetchSchedule)
	defer scheduler.Stop()

	// Thin HTTP surface: health, on-demand sync, status lookup.
	handlers := api.NewHandlers(driver, pipelineCache)
	router := api.Routes(handlers, cfg.InternalAPIKey)

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	log.Printf("level=info component=http msg=\"server listening\" addr=%s", serverAddr)

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("level=fatal component=http msg=\"server stopped unexpectedly\" err=%v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("level=info component=http msg=\"shutdown started\"")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("level=error component=http msg=\"shutdown failed\" err=%v", err)
	}

	log.Println("level=info component=http msg=\"shutdown complete\"")
}
