package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/Kavyam172/E-commerce-FSE/internal/auth"
	"github.com/Kavyam172/E-commerce-FSE/internal/cache"
	"github.com/Kavyam172/E-commerce-FSE/internal/orders"
	"github.com/Kavyam172/E-commerce-FSE/internal/publisher"
	"github.com/Kavyam172/E-commerce-FSE/internal/repository"
	"github.com/Kavyam172/E-commerce-FSE/internal/server"
	"github.com/Kavyam172/E-commerce-FSE/internal/service"
)

type Config struct {
	HTTPPort string

	MongoURI      string
	MongoDatabase string

	RedisAddr     string
	RedisPassword string

	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	MigrationsPath   string

	KafkaBrokers []string

	AccessTokenSecret  string
	RefreshTokenSecret string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration

	TaxRate      decimal.Decimal
	ShippingCost decimal.Decimal

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

func loadConfig() *Config {
	return &Config{
		HTTPPort: getEnv("HTTP_PORT", "8080"),

		MongoURI:      getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnv("MONGODB_DATABASE", "cartdb"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnvInt("POSTGRES_PORT", 5432),
		PostgresUser:     getEnv("POSTGRES_USER", "postgres"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getEnv("POSTGRES_DB", "orders"),
		MigrationsPath:   getEnv("MIGRATIONS_PATH", "./internal/orders/migrations"),

		KafkaBrokers: []string{getEnv("KAFKA_BROKER", "localhost:9092")},

		AccessTokenSecret:  getEnv("ACCESS_TOKEN_SECRET", ""),
		RefreshTokenSecret: getEnv("REFRESH_TOKEN_SECRET", ""),
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    7 * 24 * time.Hour,

		TaxRate:      getEnvDecimal("TAX_RATE", "0"),
		ShippingCost: getEnvDecimal("SHIPPING_COST", "5.00"),

		RequestTimeout:  30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDecimal(key, defaultValue string) decimal.Decimal {
	raw := getEnv(key, defaultValue)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		log.Fatalf("invalid decimal for %s: %q", key, raw)
	}
	return d
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file loaded: %v", err)
	}

	cfg := loadConfig()
	if cfg.AccessTokenSecret == "" || cfg.RefreshTokenSecret == "" {
		log.Fatal("ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET are required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MongoDB holds the authoritative carts and user accounts.
	db, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		log.Fatalf("failed to connect to MongoDB: %v", err)
	}
	defer func() {
		if err := db.Client().Disconnect(context.Background()); err != nil {
			log.Printf("failed to disconnect MongoDB: %v", err)
		}
	}()

	cartRepo := repository.NewMongoRepository(db)
	if err := cartRepo.CreateIndexes(ctx); err != nil {
		log.Fatalf("failed to create cart indexes: %v", err)
	}
	userRepo := repository.NewMongoUserRepository(db)
	if err := userRepo.CreateIndexes(ctx); err != nil {
		log.Fatalf("failed to create user indexes: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	defer redisClient.Close()

	cartService := service.NewCartService(cartRepo, cache.NewRedisCache(redisClient))

	// Postgres holds confirmed orders and their outbox events.
	cred := &orders.Credentials{
		Host:              cfg.PostgresHost,
		Port:              cfg.PostgresPort,
		User:              cfg.PostgresUser,
		Password:          cfg.PostgresPassword,
		DBName:            cfg.PostgresDB,
		MigrationsDirPath: cfg.MigrationsPath,
	}
	ordersRepo, err := orders.NewRepository(cred)
	if err != nil {
		log.Fatalf("failed to connect to Postgres: %v", err)
	}
	defer ordersRepo.Close()

	if err := ordersRepo.RunMigrations(cred); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	checkoutService := orders.NewCheckoutService(
		cartService,
		ordersRepo,
		orders.SandboxCharger{},
		cfg.TaxRate,
		cfg.ShippingCost,
	)

	poller := publisher.NewOutboxPoller(ordersRepo, cfg.KafkaBrokers...)
	go poller.Run(ctx)

	issuer := auth.NewIssuer(
		[]byte(cfg.AccessTokenSecret),
		[]byte(cfg.RefreshTokenSecret),
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
	)

	router := server.NewRouter(
		server.NewCartHandler(cartService, cfg.RequestTimeout),
		server.NewOrdersHandler(checkoutService, cfg.RequestTimeout),
		server.NewAuthHandler(userRepo, issuer, cfg.RequestTimeout),
		issuer,
		cfg.RequestTimeout,
	)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("cart server starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}

	log.Println("server exited")
}
