package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"tripmate/internal/config"
	"tripmate/internal/database"
	"tripmate/internal/external"
	"tripmate/internal/handlers"
	"tripmate/internal/messaging"
	"tripmate/internal/metrics"
	"tripmate/internal/middleware"
	"tripmate/internal/repository"
	"tripmate/internal/search"
	"tripmate/internal/service"
	"tripmate/internal/tracing"
)

// Server представляет HTTP сервер API
type Server struct {
	router   *gin.Engine
	handler  http.Handler
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	search   *search.ElasticsearchClient
	tracing  *tracing.Provider
	registry *prometheus.Registry
	services *service.Services
}

// NewServer создает новый экземпляр сервера
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}

	// Устанавливаем режим Gin
	gin.SetMode(cfg.GinMode)

	tp, err := tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}

	// Подключаемся к базе данных
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	// Запускаем миграции
	if err := db.RunMigrations(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	// Подключаемся к NATS
	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.NewMetrics()
	if err := appMetrics.Register(registry); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to register http metrics: %w", err)
	}

	deps := service.Deps{
		Store:     repository.NewRepositories(db),
		Publisher: natsClient,
		Gateway:   external.NewPaymentClient(cfg.Payment),
		Metrics:   appMetrics,
		Callbacks: service.CallbackURLs{
			Success: cfg.PublicBaseURL + "/api/payments/success",
			Fail:    cfg.PublicBaseURL + "/api/payments/fail",
			Cancel:  cfg.PublicBaseURL + "/api/payments/cancel",
			IPN:     cfg.PublicBaseURL + "/api/payments/ipn",
		},
	}

	// Поиск через Elasticsearch необязателен, без него ищем в Postgres
	var es *search.ElasticsearchClient
	if cfg.Elasticsearch.Enabled {
		es, err = search.NewElasticsearchClient(cfg.Elasticsearch)
		if err != nil {
			slog.Error("Elasticsearch unavailable, plan search uses Postgres", "error", err)
			es = nil
		} else {
			deps.Search = es
		}
	}

	services := service.NewServices(deps)

	// Создаем роутер
	router := gin.New()
	router.Use(
		middleware.Recovery(),
		otelgin.Middleware(cfg.Tracing.ServiceName),
		middleware.RequestID(),
		middleware.Logger(),
		httpMetrics.Middleware(),
		middleware.Timeout(cfg.RequestTimeout),
	)

	server := &Server{
		router:   router,
		config:   cfg,
		db:       db,
		nats:     natsClient,
		search:   es,
		tracing:  tp,
		registry: registry,
		services: services,
	}

	// Настраиваем роуты
	server.setupRoutes()

	server.handler = cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	}).Handler(router)

	return server, nil
}

// setupRoutes настраивает все API роуты
func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services)
	h.Register(s.router, middleware.Auth(s.config.JWTSecret))

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})))
}

// healthCheck обрабатывает health check запросы
func (s *Server) healthCheck(c *gin.Context) {
	dbHealth := s.db.HealthCheck(c.Request.Context())

	status := http.StatusOK
	if dbHealth.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}

	// Elasticsearch не влияет на статус: поиск откатывается на Postgres
	esStatus := "disabled"
	if s.search != nil {
		esStatus = "healthy"
		if err := s.search.HealthCheck(c.Request.Context()); err != nil {
			esStatus = "unhealthy"
		}
	}

	c.JSON(status, gin.H{
		"status":        dbHealth.Status,
		"service":       "tripmate-api",
		"database":      dbHealth,
		"nats":          s.nats.Connected(),
		"elasticsearch": esStatus,
	})
}

// Handler возвращает обработчик с CORS
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Cleanup закрывает соединения
func (s *Server) Cleanup(ctx context.Context) error {
	var errs []error

	if err := s.tracing.Shutdown(ctx); err != nil {
		slog.Error("Error shutting down tracing", "error", err)
		errs = append(errs, err)
	}

	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
			errs = append(errs, err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
