package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"tripmate/internal/logger"
	"tripmate/internal/metrics"
	"tripmate/internal/models"
	"tripmate/internal/repository"
	"tripmate/internal/tracing"
)

// Sweep steps, also used as metric labels
const (
	StepCloseExpired   = "close_expired"
	StepRejectUnfunded = "reject_unfunded"
	StepMaterialize    = "materialize"
	StepTripLifecycle  = "trip_lifecycle"
)

type SweepReport struct {
	Closed    int           `json:"closed"`
	Rejected  int           `json:"rejected"`
	Formed    int           `json:"formed"`
	Ongoing   int           `json:"ongoing"`
	Completed int           `json:"completed"`
	Errors    []string      `json:"errors,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Changed reports whether the run moved anything.
func (r *SweepReport) Changed() bool {
	return r.Closed+r.Rejected+r.Formed+r.Ongoing+r.Completed > 0
}

// Sweeper applies every time-driven transition. Each step is a set of guarded
// conditional updates, so running it again with no time elapsed changes nothing.
type Sweeper struct {
	store     repository.Store
	formation *FormationEngine
	events    *eventBus
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewSweeper(store repository.Store, formation *FormationEngine, events *eventBus, m *metrics.Metrics, now func() time.Time) *Sweeper {
	return &Sweeper{store: store, formation: formation, events: events, metrics: m, now: now}
}

// Run executes the steps in order. A failing step does not stop the others;
// their errors are joined.
func (s *Sweeper) Run(ctx context.Context) (*SweepReport, error) {
	started := time.Now()
	report := &SweepReport{}
	var errs []error

	steps := []struct {
		name string
		fn   func(context.Context, *SweepReport) (int, error)
	}{
		{StepCloseExpired, s.closeExpired},
		{StepRejectUnfunded, func(ctx context.Context, r *SweepReport) (int, error) {
			n, err := s.formation.RejectUnfunded(ctx)
			r.Rejected = n
			return n, err
		}},
		{StepMaterialize, func(ctx context.Context, r *SweepReport) (int, error) {
			n, err := s.formation.MaterializeAll(ctx)
			r.Formed = n
			return n, err
		}},
		{StepTripLifecycle, s.advanceTrips},
	}

	for _, step := range steps {
		stepCtx, end := tracing.StartSpan(ctx, "sweep."+step.name)
		n, err := step.fn(stepCtx, report)
		tracing.SetAttributes(stepCtx, attribute.Int("sweep.transitions", n))
		end(err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
			report.Errors = append(report.Errors, err.Error())
		}
		s.metrics.AddSweepTransitions(step.name, n)
	}

	report.Duration = time.Since(started)
	err := errors.Join(errs...)

	status := metrics.StatusSuccess
	if err != nil {
		status = metrics.StatusFailure
	}
	s.metrics.ObserveSweep(status, report.Duration.Seconds())

	log := logger.WithContext(ctx)
	if report.Changed() || err != nil {
		log.Info("Sweep finished",
			"closed", report.Closed,
			"rejected", report.Rejected,
			"formed", report.Formed,
			"ongoing", report.Ongoing,
			"completed", report.Completed,
			"errors", len(report.Errors),
			"duration", report.Duration)
	} else {
		log.Debug("Sweep finished, nothing to do", "duration", report.Duration)
	}
	return report, err
}

func (s *Sweeper) closeExpired(ctx context.Context, r *SweepReport) (int, error) {
	now := s.now()
	ids, err := s.store.Plans().CloseExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to close expired plans: %w", err)
	}
	for _, id := range ids {
		s.events.planStatusChanged(ctx, id, models.PlanStatusOpen, models.PlanStatusClosed, "join window expired", now)
	}
	r.Closed = len(ids)
	return len(ids), nil
}

func (s *Sweeper) advanceTrips(ctx context.Context, r *SweepReport) (int, error) {
	trips, err := s.store.Trips().ListByStatus(ctx, []string{models.TripStatusConfirmed, models.TripStatusOngoing})
	if err != nil {
		return 0, fmt.Errorf("failed to list active trips: %w", err)
	}

	now := s.now()
	moved := 0
	for _, trip := range trips {
		next, ok := trip.NextLifecycleStatus(now)
		if !ok {
			continue
		}

		changed, err := s.store.Trips().TransitionStatus(ctx, trip.ID, []string{trip.TripStatus}, next)
		if err != nil {
			logger.WithContext(ctx).Error("Failed to advance trip", "trip_id", trip.ID, "error", err)
			continue
		}
		if !changed {
			continue
		}

		moved++
		switch next {
		case models.TripStatusOngoing:
			r.Ongoing++
		case models.TripStatusCompleted:
			r.Completed++
		}
		s.events.tripStatusChanged(ctx, &models.TripStatusChangedEvent{
			TripID:    trip.ID,
			From:      trip.TripStatus,
			To:        next,
			Timestamp: now,
		})
	}
	return moved, nil
}
