package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/campusdine/preorder-api/internal/clients"
	"github.com/campusdine/preorder-api/internal/config"
	"github.com/campusdine/preorder-api/internal/database"
	"github.com/campusdine/preorder-api/internal/handlers"
	"github.com/campusdine/preorder-api/internal/outbox"
	"github.com/campusdine/preorder-api/internal/repository"
	"github.com/campusdine/preorder-api/internal/service"
	"github.com/campusdine/preorder-api/pkg/kafka"
	"github.com/campusdine/preorder-api/pkg/logger"
	"github.com/campusdine/preorder-api/pkg/middleware"
	"github.com/campusdine/preorder-api/pkg/retry"
)

// Server wires the HTTP surface to the order services and the background
// processors
type Server struct {
	config              *config.Config
	logger              logger.Logger
	router              *mux.Router
	httpServer          *http.Server
	db                  *database.Database
	orderRepo           *repository.OrderRepository
	outboxRepo          *repository.OutboxRepository
	dlqRepo             *repository.DeadLetterRepository
	orderService        *service.OrderService
	redemption          *service.RedemptionCoordinator
	queryService        *service.QueryService
	reminderScheduler   *service.PickupReminderScheduler
	outboxProcessor     *outbox.Processor
	deadLetterProcessor *outbox.DeadLetterProcessor
	catalogClient       *clients.CatalogClient
	kafkaProducer       *kafka.Producer
	kafkaConsumer       *kafka.Consumer
	rateLimiter         *middleware.RateLimiterMiddleware
	endpointRateLimiter *middleware.EndpointRateLimiterMiddleware
	gracefulDegradation *middleware.GracefulDegradation
}

// NewServer creates a new API server with the given configuration and logger
func NewServer(cfg *config.Config, logger logger.Logger) (*Server, error) {
	r := mux.NewRouter()

	db, err := database.New(cfg, logger)

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.RunMigrations(); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}

	orderRepo := repository.NewOrderRepository(db, logger)
	outboxRepo := repository.NewOutboxRepository(db, logger)
	dlqRepo := repository.NewDeadLetterRepository(db, logger)

	catalogClient := clients.NewCatalogClient(cfg.Catalog.BaseURL, logger)

	hook := outbox.NewHook(outboxRepo, logger)

	orderService := service.NewOrderService(orderRepo, catalogClient, hook, logger)
	redemption := service.NewRedemptionCoordinator(orderRepo, hook, logger)
	queryService := service.NewQueryService(orderRepo, logger)
	reminderScheduler := service.NewPickupReminderScheduler(
		orderRepo, hook, logger, cfg.Reminder.LeadTime, cfg.Reminder.PollInterval)

	outboxProcessor := outbox.NewProcessor(outboxRepo, dlqRepo, outbox.ProcessorConfig{
		PollingInterval: 5 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
	}, logger)

	deadLetterProcessor := outbox.NewDeadLetterProcessor(dlqRepo, logger, &outbox.DeadLetterProcessorConfig{
		PollingInterval: 30 * time.Second,
		BatchSize:       5,
		MaxRetries:      5,
		BackoffStrategy: &retry.ExponentialBackoff{
			InitialInterval: 1 * time.Second,
			MaxInterval:     2 * time.Minute,
			Multiplier:      2.0,
			JitterFactor:    0.1,
		},
	})

	// Publish through Kafka when brokers are reachable, otherwise fall back
	// to the logging handler so events are never silently dropped.
	var eventHandler outbox.MessageHandler
	var kafkaProducer *kafka.Producer
	var kafkaConsumer *kafka.Consumer

	kafkaProducer, err = kafka.NewProducer(cfg.Kafka.Brokers, logger)

	if err != nil {
		logger.Warn("Kafka producer unavailable, falling back to log delivery", "error", err)
		kafkaProducer = nil
		eventHandler = outbox.NewLoggingHandler(logger)
	} else {
		eventHandler = outbox.NewKafkaHandler(kafkaProducer, cfg.Kafka.NotificationsTopic, logger)

		kafkaConsumer, err = kafka.NewConsumer(&kafka.ConsumerConfig{
			Brokers:       cfg.Kafka.Brokers,
			Topics:        []string{cfg.Kafka.NotificationsTopic},
			ConsumerGroup: cfg.Kafka.ConsumerGroup,
		}, logger)

		if err != nil {
			logger.Warn("Kafka consumer unavailable, notifications will not be delivered", "error", err)
			kafkaConsumer = nil
		} else {
			kafkaConsumer.RegisterHandler(cfg.Kafka.NotificationsTopic, handlers.NewOrderEventsHandler(logger))
		}
	}

	for _, kind := range []string{
		"order_approved",
		"order_ready",
		"order_picked_up",
		"order_cancelled",
		"pickup_reminder",
	} {
		outboxProcessor.RegisterHandler(kind, eventHandler)
		deadLetterProcessor.RegisterHandler(kind, eventHandler)
	}

	rateLimiter := middleware.NewRateLimiterMiddleware(&middleware.RateLimiterConfig{
		GlobalMaxTokens:   200,
		GlobalMaxRate:     100,
		GlobalMinRate:     10,
		GlobalThreshold:   0.7,
		IPMaxTokens:       30,
		IPRefillRate:      10,
		TrustForwardedFor: cfg.Env != "production",
	}, logger)

	endpointRateLimiter := middleware.NewEndpointRateLimiterMiddleware(50, 25, logger)
	// Redemption codes are guessable only by brute force; keep this tight.
	endpointRateLimiter.SetLimit("POST:/api/v1/orders/redeem", 10, 2)

	gracefulDegradation := middleware.NewGracefulDegradation(logger)

	server := &Server{
		config: cfg,
		logger: logger,
		router: r,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      r,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		db:                  db,
		orderRepo:           orderRepo,
		outboxRepo:          outboxRepo,
		dlqRepo:             dlqRepo,
		orderService:        orderService,
		redemption:          redemption,
		queryService:        queryService,
		reminderScheduler:   reminderScheduler,
		outboxProcessor:     outboxProcessor,
		deadLetterProcessor: deadLetterProcessor,
		catalogClient:       catalogClient,
		kafkaProducer:       kafkaProducer,
		kafkaConsumer:       kafkaConsumer,
		rateLimiter:         rateLimiter,
		endpointRateLimiter: endpointRateLimiter,
		gracefulDegradation: gracefulDegradation,
	}

	server.setupRoutes()

	outboxProcessor.Start()
	deadLetterProcessor.Start()
	reminderScheduler.Start(context.Background())

	if kafkaConsumer != nil {
		if err := kafkaConsumer.Start(); err != nil {
			logger.Error("Failed to start Kafka consumer", "error", err)
			// Non-fatal, the producer side still works
		}
	}

	return server, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server and its background workers
func (s *Server) Shutdown(ctx context.Context) error {
	s.reminderScheduler.Stop()
	s.outboxProcessor.Stop()
	s.deadLetterProcessor.Stop()
	s.rateLimiter.Stop()

	if s.kafkaConsumer != nil {
		if err := s.kafkaConsumer.Stop(); err != nil {
			s.logger.Error("Error stopping Kafka consumer", "error", err)
		}
	}

	if s.kafkaProducer != nil {
		if err := s.kafkaProducer.Close(); err != nil {
			s.logger.Error("Error closing Kafka producer", "error", err)
		}
	}

	if err := s.db.Close(); err != nil {
		s.logger.Error("Error closing database connection", "error", err)
	}

	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all the routes for the API
func (s *Server) setupRoutes() {
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.rateLimiter.Middleware)
	s.router.Use(s.endpointRateLimiter.Middleware)
	s.router.Use(s.gracefulDegradation.Middleware)

	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.healthCheckHandler).Methods(http.MethodGet)

	// Fixed paths before the {id} routes so mux never treats them as IDs
	api.HandleFunc("/orders/redeem", s.redeemOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders/stats/status-counts", s.statusCountsHandler).Methods(http.MethodGet)

	api.HandleFunc("/orders", s.createOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}", s.getOrderHandler).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/approve", s.approveOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/reject", s.rejectOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/ready", s.readyOrderHandler).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/cancel", s.cancelOrderHandler).Methods(http.MethodPost)

	api.HandleFunc("/customers/{id}/orders/active", s.activeOrdersHandler).Methods(http.MethodGet)
	api.HandleFunc("/customers/{id}/orders/history", s.orderHistoryHandler).Methods(http.MethodGet)

	admin := s.router.PathPrefix("/api/v1/admin").Subrouter()
	admin.HandleFunc("/dead-letters", s.getDeadLettersHandler).Methods(http.MethodGet)
	admin.HandleFunc("/dead-letters/{id}/retry", s.retryDeadLetterHandler).Methods(http.MethodPost)
	admin.HandleFunc("/dead-letters/{id}/discard", s.discardDeadLetterHandler).Methods(http.MethodPost)
	admin.HandleFunc("/rate-limits", s.getRateLimitsHandler).Methods(http.MethodGet)
	admin.HandleFunc("/rate-limits", s.setEndpointRateLimitHandler).Methods(http.MethodPut)
	admin.HandleFunc("/circuit-breaker", s.getCircuitBreakerStatusHandler).Methods(http.MethodGet)
	admin.HandleFunc("/circuit-breaker/reset", s.resetCircuitBreakerHandler).Methods(http.MethodPost)
}

// loggingMiddleware logs every request after it is served
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		s.logger.Info("Request processed",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(start),
			"remoteAddr", r.RemoteAddr,
		)
	})
}
