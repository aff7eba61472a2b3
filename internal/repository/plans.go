package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"tripmate/internal/models"
)

const planColumns = `id, user_id, destination, start_date, end_date, purpose, budget_range,
	description, max_participants, status, join_deadline, payment_deadline, finalized_at,
	accommodation_cost, food_cost, transportation_cost, driver_payment, other_costs,
	platform_commission, combined_transportation_cost, final_cost_per_person,
	transportation_details, accommodation_details, meal_arrangements, itinerary,
	created_at, updated_at`

type PlanRepository struct {
	db DBTX
}

func NewPlanRepository(db DBTX) *PlanRepository {
	return &PlanRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner, p *models.TravelPlan) error {
	return row.Scan(
		&p.ID,
		&p.UserID,
		&p.Destination,
		&p.StartDate,
		&p.EndDate,
		&p.Purpose,
		&p.BudgetRange,
		&p.Description,
		&p.MaxParticipants,
		&p.Status,
		&p.JoinDeadline,
		&p.PaymentDeadline,
		&p.FinalizedAt,
		&p.AccommodationCost,
		&p.FoodCost,
		&p.TransportationCost,
		&p.DriverPayment,
		&p.OtherCosts,
		&p.PlatformCommission,
		&p.CombinedTransportationCost,
		&p.FinalCostPerPerson,
		&p.TransportationDetails,
		&p.AccommodationDetails,
		&p.MealArrangements,
		&p.Itinerary,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
}

func (r *PlanRepository) Create(ctx context.Context, plan *models.TravelPlan) error {
	query := `
		INSERT INTO travel_plans (user_id, destination, start_date, end_date, purpose, budget_range,
		                          description, max_participants, status, join_deadline, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING id`

	return r.db.QueryRowContext(ctx, query,
		plan.UserID,
		plan.Destination,
		plan.StartDate,
		plan.EndDate,
		plan.Purpose,
		plan.BudgetRange,
		plan.Description,
		plan.MaxParticipants,
		plan.Status,
		plan.JoinDeadline,
		plan.CreatedAt,
	).Scan(&plan.ID)
}

func (r *PlanRepository) get(ctx context.Context, query string, id int64) (*models.TravelPlan, error) {
	plan := &models.TravelPlan{}
	err := scanPlan(r.db.QueryRowContext(ctx, query, id), plan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return plan, nil
}

func (r *PlanRepository) GetByID(ctx context.Context, id int64) (*models.TravelPlan, error) {
	return r.get(ctx, `SELECT `+planColumns+` FROM travel_plans WHERE id = $1`, id)
}

// GetByIDForUpdate locks the plan row until the surrounding transaction ends.
func (r *PlanRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.TravelPlan, error) {
	return r.get(ctx, `SELECT `+planColumns+` FROM travel_plans WHERE id = $1 FOR UPDATE`, id)
}

func (r *PlanRepository) list(ctx context.Context, query string, args ...any) ([]models.TravelPlan, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []models.TravelPlan
	for rows.Next() {
		var plan models.TravelPlan
		if err := scanPlan(rows, &plan); err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

func (r *PlanRepository) ListByUser(ctx context.Context, userID int64) ([]models.TravelPlan, error) {
	return r.list(ctx, `SELECT `+planColumns+` FROM travel_plans WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// ListOpenAfter pages through open plans by id, for rebuilding the search index.
func (r *PlanRepository) ListOpenAfter(ctx context.Context, afterID int64, limit int) ([]models.TravelPlan, error) {
	return r.list(ctx, `SELECT `+planColumns+` FROM travel_plans
		WHERE status = 'open' AND id > $1 ORDER BY id LIMIT $2`, afterID, limit)
}

// Search is the database fallback for finding open plans of other users.
func (r *PlanRepository) Search(ctx context.Context, filter models.PlanSearchFilter) ([]models.TravelPlan, error) {
	conds := []string{"status = 'open'", "user_id <> $1", "start_date >= $2"}
	args := []any{filter.ExcludeUserID, filter.Today}

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.Destination != "" {
		add("destination ILIKE '%%' || $%d || '%%'", filter.Destination)
	}
	if filter.StartDate != nil {
		add("start_date >= $%d", *filter.StartDate)
	}
	if filter.BudgetRange != "" {
		add("budget_range = $%d", filter.BudgetRange)
	}
	if filter.Purpose != "" {
		add("purpose = $%d", filter.Purpose)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 100 {
		limit = 100
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM travel_plans WHERE %s ORDER BY start_date, id LIMIT $%d`,
		planColumns, strings.Join(conds, " AND "), len(args))
	return r.list(ctx, query, args...)
}

// UpdateDetails edits user-owned fields while the plan is still open.
func (r *PlanRepository) UpdateDetails(ctx context.Context, plan *models.TravelPlan) (bool, error) {
	query := `
		UPDATE travel_plans
		SET destination = $1, start_date = $2, end_date = $3, purpose = $4, budget_range = $5,
		    description = $6, max_participants = $7, updated_at = NOW()
		WHERE id = $8 AND user_id = $9 AND status = 'open'`

	return affected(r.db.ExecContext(ctx, query,
		plan.Destination,
		plan.StartDate,
		plan.EndDate,
		plan.Purpose,
		plan.BudgetRange,
		plan.Description,
		plan.MaxParticipants,
		plan.ID,
		plan.UserID,
	))
}

func (r *PlanRepository) Delete(ctx context.Context, id, userID int64) (bool, error) {
	return affected(r.db.ExecContext(ctx,
		`DELETE FROM travel_plans WHERE id = $1 AND user_id = $2 AND status = 'open'`, id, userID))
}

// Finalize stores costs, logistics and the payment window of a closed plan.
func (r *PlanRepository) Finalize(ctx context.Context, plan *models.TravelPlan) (bool, error) {
	query := `
		UPDATE travel_plans
		SET status = 'finalized', payment_deadline = $1, finalized_at = $2,
		    accommodation_cost = $3, food_cost = $4, transportation_cost = $5, driver_payment = $6,
		    other_costs = $7, platform_commission = $8, combined_transportation_cost = $9,
		    final_cost_per_person = $10, transportation_details = $11, accommodation_details = $12,
		    meal_arrangements = $13, itinerary = $14, updated_at = NOW()
		WHERE id = $15 AND status = 'closed'`

	return affected(r.db.ExecContext(ctx, query,
		plan.PaymentDeadline,
		plan.FinalizedAt,
		plan.AccommodationCost,
		plan.FoodCost,
		plan.TransportationCost,
		plan.DriverPayment,
		plan.OtherCosts,
		plan.PlatformCommission,
		plan.CombinedTransportationCost,
		plan.FinalCostPerPerson,
		plan.TransportationDetails,
		plan.AccommodationDetails,
		plan.MealArrangements,
		plan.Itinerary,
		plan.ID,
	))
}

func (r *PlanRepository) TransitionStatus(ctx context.Context, id int64, from []string, to string) (bool, error) {
	return affected(r.db.ExecContext(ctx,
		`UPDATE travel_plans SET status = $1, updated_at = NOW() WHERE id = $2 AND status = ANY($3)`,
		to, id, pq.Array(from)))
}

// CloseExpired moves every open plan past its join deadline to closed.
func (r *PlanRepository) CloseExpired(ctx context.Context, now time.Time) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE travel_plans SET status = 'closed', updated_at = NOW()
		WHERE status = 'open' AND join_deadline < $1
		RETURNING id`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListFinalizedWithoutTrip returns finalized plans that have no trip yet or
// only an eagerly created planning trip.
func (r *PlanRepository) ListFinalizedWithoutTrip(ctx context.Context) ([]models.TravelPlan, error) {
	return r.list(ctx, `
		SELECT `+planColumns+` FROM travel_plans p
		WHERE p.status = 'finalized'
		  AND NOT EXISTS (
		      SELECT 1 FROM organized_trips t
		      WHERE t.travel_plan_id = p.id AND t.trip_status <> 'planning')
		ORDER BY p.id`)
}
