package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/streadway/amqp"

	"warung/internal/config"
	"warung/internal/handlers"
	"warung/internal/identity"
	"warung/internal/middleware"
	"warung/internal/services"
	"warung/internal/store"
	"warung/internal/workflow"
	"warung/pkg/rabbitmq"
)

// NewApp wires the full application: store, identity resolver, workflow
// engine and HTTP surface. events may be nil, in which case deferred effects
// degrade to logging.
func NewApp(cfg config.Config, events workflow.EventPublisher) (*fiber.App, *store.Store, error) {
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Bootstrap(context.Background(), cfg.DevReset); err != nil {
		db.Close()
		return nil, nil, err
	}

	resolver := identity.NewResolver(db)
	authService := services.NewAuthService(db, cfg.SessionTTL)
	tokenService := services.NewTokenService(cfg.TokenSecret)
	engine := workflow.New(db, tokenService, services.SimulatedPayment{}, events)

	authHandler := handlers.NewAuthHandler(authService)
	cartHandler := handlers.NewCartHandler(engine)
	productHandler := handlers.NewProductHandler(engine)
	newsletterHandler := handlers.NewNewsletterHandler(engine)

	app := fiber.New()
	app.Use(logger.New())
	app.Use(middleware.SessionContext(resolver))

	authHandler.RegisterRoutes(app)
	cartHandler.RegisterRoutes(app)
	productHandler.RegisterRoutes(app)
	newsletterHandler.RegisterRoutes(app)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	return app, db, nil
}

func main() {
	cfg := config.Load()

	// RabbitMQ is optional; an empty URL runs the service without deferred
	// event publication.
	var events workflow.EventPublisher
	var mqClient *rabbitmq.Client
	if cfg.RabbitMQURL != "" {
		var err error
		mqClient, err = rabbitmq.NewClient(rabbitmq.Config{URL: cfg.RabbitMQURL})
		if err != nil {
			log.Fatalf("Failed to initialize RabbitMQ client: %v", err)
		}
		defer mqClient.Close()
		events = mqClient
	}

	app, db, err := NewApp(cfg, events)
	if err != nil {
		log.Fatalf("Failed to create app: %v", err)
	}
	defer db.Close()

	if mqClient != nil {
		log.Println("Starting RabbitMQ consumer for order events...")
		err := mqClient.ConsumeOrderEvents(func(msg amqp.Delivery) error {
			log.Printf("Received order event (tag %d): %s", msg.DeliveryTag, string(msg.Body))
			return nil
		})
		if err != nil {
			log.Printf("Failed to start RabbitMQ consumer: %v", err)
		}
	}

	log.Printf("Starting server on port %s", cfg.AppPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := app.Listen(cfg.AppPort); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	<-quit
	log.Println("Shutting down server...")
	if err := app.Shutdown(); err != nil {
		log.Printf("Error during Fiber shutdown: %v", err)
	}
	log.Println("Server gracefully stopped")
}
