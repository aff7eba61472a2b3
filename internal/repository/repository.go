package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"tripmate/internal/database"
	"tripmate/internal/models"
)

// DBTX is satisfied by both *database.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PlanStore persists travel plans. Status changes are conditional updates
// guarded by the expected source status; the bool result says whether the
// row actually moved.
type PlanStore interface {
	Create(ctx context.Context, plan *models.TravelPlan) error
	GetByID(ctx context.Context, id int64) (*models.TravelPlan, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*models.TravelPlan, error)
	ListByUser(ctx context.Context, userID int64) ([]models.TravelPlan, error)
	Search(ctx context.Context, filter models.PlanSearchFilter) ([]models.TravelPlan, error)
	UpdateDetails(ctx context.Context, plan *models.TravelPlan) (bool, error)
	Delete(ctx context.Context, id, userID int64) (bool, error)
	Finalize(ctx context.Context, plan *models.TravelPlan) (bool, error)
	TransitionStatus(ctx context.Context, id int64, from []string, to string) (bool, error)
	CloseExpired(ctx context.Context, now time.Time) ([]int64, error)
	ListFinalizedWithoutTrip(ctx context.Context) ([]models.TravelPlan, error)
}

type InterestStore interface {
	Create(ctx context.Context, interest *models.TravelPlanInterest) error
	Get(ctx context.Context, planID, userID int64) (*models.TravelPlanInterest, error)
	Delete(ctx context.Context, planID, userID int64) (bool, error)
	Agree(ctx context.Context, planID, userID int64, at time.Time) (bool, error)
	CountByPlan(ctx context.Context, planID int64) (int, error)
	ListAgreed(ctx context.Context, planID int64) ([]models.TravelPlanInterest, error)
}

type TripStore interface {
	Create(ctx context.Context, trip *models.OrganizedTrip) error
	GetByID(ctx context.Context, id int64) (*models.OrganizedTrip, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*models.OrganizedTrip, error)
	GetByPlanID(ctx context.Context, planID int64) (*models.OrganizedTrip, error)
	ListByStatus(ctx context.Context, statuses []string) ([]models.OrganizedTrip, error)
	Update(ctx context.Context, trip *models.OrganizedTrip) error
	Confirm(ctx context.Context, id int64, departure, ret time.Time) (bool, error)
	TransitionStatus(ctx context.Context, id int64, from []string, to string) (bool, error)
	AdjustParticipants(ctx context.Context, id int64, delta int) error
}

type ParticipantStore interface {
	Create(ctx context.Context, p *models.TripParticipant) (bool, error)
	Get(ctx context.Context, tripID, userID int64) (*models.TripParticipant, error)
	ListByTrip(ctx context.Context, tripID int64) ([]models.TripParticipant, error)
	MarkPaid(ctx context.Context, tripID, userID int64, amount decimal.Decimal) (bool, error)
	MarkRefunded(ctx context.Context, tripID, userID int64) (bool, error)
	CountPaid(ctx context.Context, tripID int64) (int, error)
	Delete(ctx context.Context, tripID, userID int64) (bool, error)
}

type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByTransactionID(ctx context.Context, tranID string) (*models.Payment, error)
	SetSessionKey(ctx context.Context, id int64, sessionKey string) error
	MarkCompleted(ctx context.Context, tranID, method string) (bool, error)
	MarkFailed(ctx context.Context, tranID string) (bool, error)
	ClaimRefund(ctx context.Context, id int64) (bool, error)
	ReleaseRefund(ctx context.Context, id int64) (bool, error)
	MarkRefunded(ctx context.Context, id int64) (bool, error)
	AttachToTrip(ctx context.Context, id, tripID int64) (bool, error)
	LatestCompleted(ctx context.Context, tripID, userID int64) (*models.Payment, error)
	HasCompletedForPlan(ctx context.Context, planID, userID int64, since time.Time) (bool, error)
	LinkToTrip(ctx context.Context, planID int64, userIDs []int64, since time.Time, tripID int64) (int64, error)
	ListByUser(ctx context.Context, userID int64) ([]models.Payment, error)
}

// Store groups the stores and opens transactions across them.
type Store interface {
	Plans() PlanStore
	Interests() InterestStore
	Trips() TripStore
	Participants() ParticipantStore
	Payments() PaymentStore
	WithTx(ctx context.Context, fn func(Store) error) error
}

// Repositories is the Postgres implementation of Store.
type Repositories struct {
	db *database.DB

	plans        *PlanRepository
	interests    *InterestRepository
	trips        *TripRepository
	participants *ParticipantRepository
	payments     *PaymentRepository
}

func NewRepositories(db *database.DB) *Repositories {
	r := newRepositories(db)
	r.db = db
	return r
}

func newRepositories(q DBTX) *Repositories {
	return &Repositories{
		plans:        NewPlanRepository(q),
		interests:    NewInterestRepository(q),
		trips:        NewTripRepository(q),
		participants: NewParticipantRepository(q),
		payments:     NewPaymentRepository(q),
	}
}

func (r *Repositories) Plans() PlanStore               { return r.plans }
func (r *Repositories) Interests() InterestStore       { return r.interests }
func (r *Repositories) Trips() TripStore               { return r.trips }
func (r *Repositories) Participants() ParticipantStore { return r.participants }
func (r *Repositories) Payments() PaymentStore         { return r.payments }

// WithTx runs fn against repositories bound to a single transaction. Nested
// calls reuse the outer transaction.
func (r *Repositories) WithTx(ctx context.Context, fn func(Store) error) error {
	if r.db == nil {
		return fn(r)
	}
	return r.db.InTx(ctx, func(tx *sql.Tx) error {
		return fn(newRepositories(tx))
	})
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
