package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/jpalmad/go_orders/internal/client"
	"github.com/jpalmad/go_orders/internal/consumer"
	"github.com/jpalmad/go_orders/internal/publisher"
	"github.com/jpalmad/go_orders/internal/repository"
	"github.com/jpalmad/go_orders/internal/service"
	"github.com/jpalmad/go_orders/internal/transport"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	log.Println("orders-service starting...")

	// Configuration
	natsURL := getEnv("NATS_URL", nats.DefaultURL)
	kafkaBrokers := strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	requestTimeout := 5 * time.Second

	// Database setup
	dbHost := getEnv("DB_HOST", "localhost")
	dbPort := getEnv("DB_PORT", "5432")
	dbUser := getEnv("DB_USER", "postgres")
	dbPass := getEnv("DB_PASSWORD", "postgres")
	dbName := getEnv("DB_NAME", "orders")
	migrationsPath := getEnv("MIGRATIONS_PATH", "./internal/repository/migrations")

	port, err := strconv.Atoi(dbPort)
	if err != nil {
		log.Fatalf("Invalid DB_PORT: %v", err)
	}

	creds := &repository.Credentials{
		Host:              dbHost,
		Port:              port,
		User:              dbUser,
		Password:          dbPass,
		DBName:            dbName,
		MigrationsDirPath: migrationsPath,
	}

	repo, err := repository.NewRepository(creds)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer repo.Close()

	if err := repo.RunMigrations(creds); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// Message bus connection
	nc, err := nats.Connect(natsURL,
		nats.Name("orders-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		log.Fatalf("Failed to connect to NATS at %s: %v", natsURL, err)
	}
	log.Printf("Connected to NATS at %s", natsURL)

	// Collaborator clients
	products := client.NewProductClient(nc, requestTimeout)
	payments := client.NewPaymentClient(nc, requestTimeout)

	// Services
	cartService := service.NewCartService(repo, products)
	orderService := service.NewOrderService(repo, products, payments)

	// RPC surface
	handler := transport.NewHandler(cartService, orderService, requestTimeout)
	if err := handler.Subscribe(nc); err != nil {
		log.Fatalf("Failed to subscribe handlers: %v", err)
	}
	log.Println("Subscribed to cart.* and order.* subjects")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Payment confirmations from the provider's event stream
	paymentConsumer := consumer.NewConsumer(orderService, kafkaBrokers...)
	go paymentConsumer.Run(ctx)

	// Outbox events out to Kafka
	poller := publisher.NewOutboxPoller(repo, kafkaBrokers...)
	go poller.Run(ctx)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down orders-service...")
	cancel()
	paymentConsumer.Close()
	if err := nc.Drain(); err != nil {
		log.Printf("Failed to drain NATS connection: %v", err)
	}

	log.Println("orders-service stopped")
}
