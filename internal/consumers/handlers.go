package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/stan.go"

	"tripmate/internal/models"
)

// PlanLoader reads the current state of a plan; satisfied by repository.PlanStore.
type PlanLoader interface {
	GetByID(ctx context.Context, id int64) (*models.TravelPlan, error)
}

// PlanIndexer keeps the search index in step with Postgres; satisfied by
// *search.ElasticsearchClient.
type PlanIndexer interface {
	IndexPlan(ctx context.Context, plan *models.TravelPlan) error
	DeletePlan(ctx context.Context, id int64) error
}

type Handlers struct {
	plans   PlanLoader
	indexer PlanIndexer
}

// NewHandlers builds the event handlers. indexer may be nil when search is
// disabled; plan events are then only logged.
func NewHandlers(plans PlanLoader, indexer PlanIndexer) *Handlers {
	return &Handlers{
		plans:   plans,
		indexer: indexer,
	}
}

// ack wraps a handler with manual acknowledgement. Messages that fail are
// left unacked and redelivered after AckWait; malformed payloads are acked
// and dropped.
func ack(subject string, handle func(ctx context.Context, data []byte) error) stan.MsgHandler {
	return func(m *stan.Msg) {
		if err := handle(context.Background(), m.Data); err != nil {
			var perr *payloadError
			if errors.As(err, &perr) {
				slog.Error("Dropping malformed event", "subject", subject, "error", err)
				m.Ack()
				return
			}
			slog.Error("Failed to process event", "subject", subject, "error", err)
			return
		}
		m.Ack()
	}
}

type payloadError struct {
	err error
}

func (e *payloadError) Error() string { return fmt.Sprintf("malformed payload: %v", e.err) }
func (e *payloadError) Unwrap() error { return e.err }

func decode(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &payloadError{err: err}
	}
	return nil
}

// HandlePlanChanged reindexes the plan from its stored state. Plans that are
// gone or no longer open are removed from the index.
func (h *Handlers) HandlePlanChanged(ctx context.Context, data []byte) error {
	var event models.PlanEvent
	if err := decode(data, &event); err != nil {
		return err
	}
	return h.syncPlan(ctx, event.PlanID)
}

func (h *Handlers) HandlePlanDeleted(ctx context.Context, data []byte) error {
	var event models.PlanEvent
	if err := decode(data, &event); err != nil {
		return err
	}

	slog.Info("Processing plan deleted event", "plan_id", event.PlanID, "user_id", event.UserID)
	if h.indexer == nil {
		return nil
	}
	if err := h.indexer.DeletePlan(ctx, event.PlanID); err != nil {
		return fmt.Errorf("failed to remove plan %d from index: %w", event.PlanID, err)
	}
	return nil
}

func (h *Handlers) HandlePlanStatusChanged(ctx context.Context, data []byte) error {
	var event models.PlanStatusChangedEvent
	if err := decode(data, &event); err != nil {
		return err
	}

	slog.Info("Processing plan status change",
		"plan_id", event.PlanID,
		"from", event.From,
		"to", event.To,
		"reason", event.Reason)

	return h.syncPlan(ctx, event.PlanID)
}

func (h *Handlers) syncPlan(ctx context.Context, planID int64) error {
	if h.indexer == nil {
		return nil
	}

	plan, err := h.plans.GetByID(ctx, planID)
	if err != nil {
		return fmt.Errorf("failed to load plan %d: %w", planID, err)
	}
	if plan == nil || plan.Status != models.PlanStatusOpen {
		if err := h.indexer.DeletePlan(ctx, planID); err != nil {
			return fmt.Errorf("failed to remove plan %d from index: %w", planID, err)
		}
		return nil
	}

	if err := h.indexer.IndexPlan(ctx, plan); err != nil {
		return fmt.Errorf("failed to index plan %d: %w", planID, err)
	}
	return nil
}

// HandleTripCreated notifies the participants of a newly formed trip.
func (h *Handlers) HandleTripCreated(_ context.Context, data []byte) error {
	var event models.TripCreatedEvent
	if err := decode(data, &event); err != nil {
		return err
	}

	for _, userID := range event.Participants {
		slog.Info("Notify participant: trip formed",
			"trip_id", event.TripID,
			"plan_id", event.PlanID,
			"user_id", userID)
	}
	return nil
}

func (h *Handlers) HandleTripStatusChanged(_ context.Context, data []byte) error {
	var event models.TripStatusChangedEvent
	if err := decode(data, &event); err != nil {
		return err
	}

	slog.Info("Processing trip status change",
		"trip_id", event.TripID,
		"from", event.From,
		"to", event.To)
	return nil
}

// HandlePayment logs payment notifications for every payment subject.
func (h *Handlers) HandlePayment(subject string) func(context.Context, []byte) error {
	return func(_ context.Context, data []byte) error {
		var event models.PaymentEvent
		if err := decode(data, &event); err != nil {
			return err
		}

		args := []any{
			"subject", subject,
			"transaction_id", event.TransactionID,
			"user_id", event.UserID,
			"amount", event.Amount,
		}
		if event.TripID != nil {
			args = append(args, "trip_id", *event.TripID)
		}
		if event.PlanID != nil {
			args = append(args, "plan_id", *event.PlanID)
		}
		if event.Reason != "" {
			args = append(args, "reason", event.Reason)
		}
		slog.Info("Notify user: payment update", args...)
		return nil
	}
}
