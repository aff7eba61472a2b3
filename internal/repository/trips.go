package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"tripmate/internal/models"
)

const tripColumns = `id, travel_plan_id, trip_name, destination, max_participants, total_participants,
	base_cost, platform_commission, final_cost_per_person, driver_payment,
	transportation_details, accommodation_details, meal_arrangements, itinerary,
	trip_status, departure_time, return_time, created_at, updated_at`

type TripRepository struct {
	db DBTX
}

func NewTripRepository(db DBTX) *TripRepository {
	return &TripRepository{db: db}
}

func scanTrip(row rowScanner, t *models.OrganizedTrip) error {
	return row.Scan(
		&t.ID,
		&t.TravelPlanID,
		&t.TripName,
		&t.Destination,
		&t.MaxParticipants,
		&t.TotalParticipants,
		&t.BaseCost,
		&t.PlatformCommission,
		&t.FinalCostPerPerson,
		&t.DriverPayment,
		&t.TransportationDetails,
		&t.AccommodationDetails,
		&t.MealArrangements,
		&t.Itinerary,
		&t.TripStatus,
		&t.DepartureTime,
		&t.ReturnTime,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
}

func (r *TripRepository) Create(ctx context.Context, trip *models.OrganizedTrip) error {
	query := `
		INSERT INTO organized_trips (travel_plan_id, trip_name, destination, max_participants,
		                             total_participants, base_cost, platform_commission,
		                             final_cost_per_person, driver_payment, transportation_details,
		                             accommodation_details, meal_arrangements, itinerary,
		                             trip_status, departure_time, return_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at`

	return r.db.QueryRowContext(ctx, query,
		trip.TravelPlanID,
		trip.TripName,
		trip.Destination,
		trip.MaxParticipants,
		trip.TotalParticipants,
		trip.BaseCost,
		trip.PlatformCommission,
		trip.FinalCostPerPerson,
		trip.DriverPayment,
		trip.TransportationDetails,
		trip.AccommodationDetails,
		trip.MealArrangements,
		trip.Itinerary,
		trip.TripStatus,
		trip.DepartureTime,
		trip.ReturnTime,
	).Scan(&trip.ID, &trip.CreatedAt, &trip.UpdatedAt)
}

func (r *TripRepository) get(ctx context.Context, query string, arg int64) (*models.OrganizedTrip, error) {
	trip := &models.OrganizedTrip{}
	err := scanTrip(r.db.QueryRowContext(ctx, query, arg), trip)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return trip, nil
}

func (r *TripRepository) GetByID(ctx context.Context, id int64) (*models.OrganizedTrip, error) {
	return r.get(ctx, `SELECT `+tripColumns+` FROM organized_trips WHERE id = $1`, id)
}

func (r *TripRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.OrganizedTrip, error) {
	return r.get(ctx, `SELECT `+tripColumns+` FROM organized_trips WHERE id = $1 FOR UPDATE`, id)
}

func (r *TripRepository) GetByPlanID(ctx context.Context, planID int64) (*models.OrganizedTrip, error) {
	return r.get(ctx, `SELECT `+tripColumns+` FROM organized_trips WHERE travel_plan_id = $1`, planID)
}

func (r *TripRepository) ListByStatus(ctx context.Context, statuses []string) ([]models.OrganizedTrip, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tripColumns+` FROM organized_trips WHERE trip_status = ANY($1) ORDER BY departure_time, id`,
		pq.Array(statuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trips []models.OrganizedTrip
	for rows.Next() {
		var trip models.OrganizedTrip
		if err := scanTrip(rows, &trip); err != nil {
			return nil, err
		}
		trips = append(trips, trip)
	}
	return trips, rows.Err()
}

// Update rewrites the snapshot of an existing trip, used when formation
// adopts an eagerly created planning trip.
func (r *TripRepository) Update(ctx context.Context, trip *models.OrganizedTrip) error {
	query := `
		UPDATE organized_trips
		SET trip_name = $1, destination = $2, max_participants = $3, total_participants = $4,
		    base_cost = $5, platform_commission = $6, final_cost_per_person = $7, driver_payment = $8,
		    transportation_details = $9, accommodation_details = $10, meal_arrangements = $11,
		    itinerary = $12, trip_status = $13, departure_time = $14, return_time = $15,
		    updated_at = NOW()
		WHERE id = $16
		RETURNING updated_at`

	return r.db.QueryRowContext(ctx, query,
		trip.TripName,
		trip.Destination,
		trip.MaxParticipants,
		trip.TotalParticipants,
		trip.BaseCost,
		trip.PlatformCommission,
		trip.FinalCostPerPerson,
		trip.DriverPayment,
		trip.TransportationDetails,
		trip.AccommodationDetails,
		trip.MealArrangements,
		trip.Itinerary,
		trip.TripStatus,
		trip.DepartureTime,
		trip.ReturnTime,
		trip.ID,
	).Scan(&trip.UpdatedAt)
}

// Confirm flips an open or planning trip to confirmed with the given schedule.
func (r *TripRepository) Confirm(ctx context.Context, id int64, departure, ret time.Time) (bool, error) {
	return affected(r.db.ExecContext(ctx, `
		UPDATE organized_trips
		SET trip_status = 'confirmed', departure_time = $2, return_time = $3, updated_at = NOW()
		WHERE id = $1 AND trip_status IN ('open', 'planning')`,
		id, departure, ret))
}

func (r *TripRepository) TransitionStatus(ctx context.Context, id int64, from []string, to string) (bool, error) {
	return affected(r.db.ExecContext(ctx,
		`UPDATE organized_trips SET trip_status = $1, updated_at = NOW() WHERE id = $2 AND trip_status = ANY($3)`,
		to, id, pq.Array(from)))
}

// AdjustParticipants never lets the counter drop below zero.
func (r *TripRepository) AdjustParticipants(ctx context.Context, id int64, delta int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE organized_trips
		SET total_participants = GREATEST(total_participants + $2, 0), updated_at = NOW()
		WHERE id = $1`, id, delta)
	return err
}
