package consumers

import (
	"context"
	"errors"
	"log/slog"

	"tripmate/internal/config"
	"tripmate/internal/database"
	"tripmate/internal/messaging"
	"tripmate/internal/models"
	"tripmate/internal/repository"
	"tripmate/internal/search"
)

const queueGroup = "tripmate-consumers"

type ConsumerService struct {
	db       *database.DB
	nats     *messaging.NATSClient
	repos    *repository.Repositories
	handlers *Handlers
}

func NewConsumerService(cfg *config.Config) (*ConsumerService, error) {
	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	// Connect to NATS
	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, err
	}

	repos := repository.NewRepositories(db)

	var indexer PlanIndexer
	if cfg.Elasticsearch.Enabled {
		es, err := search.NewElasticsearchClient(cfg.Elasticsearch)
		if err != nil {
			// Search falls back to Postgres; only index sync is lost.
			slog.Error("Elasticsearch unavailable, plan index sync disabled", "error", err)
		} else {
			indexer = es
		}
	}

	return &ConsumerService{
		db:       db,
		nats:     natsClient,
		repos:    repos,
		handlers: NewHandlers(repos.Plans(), indexer),
	}, nil
}

// Repositories exposes the store so the sweep job can share the pool.
func (cs *ConsumerService) Repositories() *repository.Repositories {
	return cs.repos
}

// NATS exposes the broker connection for publishing from background jobs.
func (cs *ConsumerService) NATS() *messaging.NATSClient {
	return cs.nats
}

func (cs *ConsumerService) subscriptions() map[string]func(context.Context, []byte) error {
	h := cs.handlers
	return map[string]func(context.Context, []byte) error{
		models.EventPlanCreated:       h.HandlePlanChanged,
		models.EventPlanUpdated:       h.HandlePlanChanged,
		models.EventPlanDeleted:       h.HandlePlanDeleted,
		models.EventPlanStatusChanged: h.HandlePlanStatusChanged,
		models.EventTripCreated:       h.HandleTripCreated,
		models.EventTripStatusChanged: h.HandleTripStatusChanged,
		models.EventPaymentInitiated:  h.HandlePayment(models.EventPaymentInitiated),
		models.EventPaymentCompleted:  h.HandlePayment(models.EventPaymentCompleted),
		models.EventPaymentFailed:     h.HandlePayment(models.EventPaymentFailed),
		models.EventPaymentRefunded:   h.HandlePayment(models.EventPaymentRefunded),
	}
}

func (cs *ConsumerService) Start() error {
	slog.Info("Starting NATS consumers...")

	if !cs.nats.Connected() {
		slog.Warn("NATS disabled, event consumers not started")
		return nil
	}

	for subject, handle := range cs.subscriptions() {
		if _, err := cs.nats.SubscribeQueue(subject, queueGroup, ack(subject, handle)); err != nil {
			return err
		}
	}

	slog.Info("All consumers started successfully")
	return nil
}

func (cs *ConsumerService) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down consumer service...")

	var errs []error
	if cs.nats != nil {
		if err := cs.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
			errs = append(errs, err)
		}
	}

	if cs.db != nil {
		if err := cs.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
