package database

import (
	"context"
	"fmt"
	"log/slog"
)

func (db *DB) RunMigrations(ctx context.Context) error {
	slog.Info("Running database migrations...")

	migrations := []string{
		createTravelPlansTable,
		createTravelPlanInterestsTable,
		createOrganizedTripsTable,
		createTripParticipantsTable,
		createPaymentsTable,
		createRevenuesTable,
		createFunnelIndexes,
	}

	for i, migration := range migrations {
		slog.Info("Running migration", "step", i+1)
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	slog.Info("All migrations completed successfully")
	return nil
}

const createTravelPlansTable = `
CREATE TABLE IF NOT EXISTS travel_plans (
    id BIGSERIAL PRIMARY KEY,
    user_id BIGINT NOT NULL,
    destination VARCHAR(200) NOT NULL,
    start_date DATE NOT NULL,
    end_date DATE NOT NULL,
    purpose VARCHAR(20) NOT NULL DEFAULT 'leisure'
        CHECK (purpose IN ('leisure','business','adventure','cultural','religious','family','other')),
    budget_range VARCHAR(20) NOT NULL DEFAULT 'mid-range'
        CHECK (budget_range IN ('budget','mid-range','luxury')),
    description TEXT NOT NULL DEFAULT '',
    max_participants INTEGER NOT NULL DEFAULT 4 CHECK (max_participants BETWEEN 2 AND 5),
    status VARCHAR(20) NOT NULL DEFAULT 'open'
        CHECK (status IN ('open','closed','finalized','approved','rejected')),
    join_deadline TIMESTAMPTZ NOT NULL,
    payment_deadline TIMESTAMPTZ,
    finalized_at TIMESTAMPTZ,
    accommodation_cost NUMERIC(10,2),
    food_cost NUMERIC(10,2),
    transportation_cost NUMERIC(10,2),
    driver_payment NUMERIC(10,2),
    other_costs NUMERIC(10,2),
    platform_commission NUMERIC(10,2),
    combined_transportation_cost NUMERIC(10,2),
    final_cost_per_person NUMERIC(10,2),
    transportation_details TEXT NOT NULL DEFAULT '',
    accommodation_details TEXT NOT NULL DEFAULT '',
    meal_arrangements TEXT NOT NULL DEFAULT '',
    itinerary TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    CHECK (end_date - start_date + 1 BETWEEN 2 AND 14)
);`

const createTravelPlanInterestsTable = `
CREATE TABLE IF NOT EXISTS travel_plan_interests (
    id BIGSERIAL PRIMARY KEY,
    plan_id BIGINT NOT NULL REFERENCES travel_plans(id) ON DELETE CASCADE,
    user_id BIGINT NOT NULL,
    agreed BOOLEAN NOT NULL DEFAULT FALSE,
    agreed_at TIMESTAMPTZ,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (plan_id, user_id)
);`

const createOrganizedTripsTable = `
CREATE TABLE IF NOT EXISTS organized_trips (
    id BIGSERIAL PRIMARY KEY,
    travel_plan_id BIGINT UNIQUE REFERENCES travel_plans(id) ON DELETE CASCADE,
    trip_name VARCHAR(200) NOT NULL,
    destination VARCHAR(200) NOT NULL,
    max_participants INTEGER NOT NULL DEFAULT 4,
    total_participants INTEGER NOT NULL DEFAULT 0 CHECK (total_participants >= 0),
    base_cost NUMERIC(10,2) NOT NULL DEFAULT 0,
    platform_commission NUMERIC(10,2) NOT NULL DEFAULT 0,
    final_cost_per_person NUMERIC(10,2) NOT NULL DEFAULT 0,
    driver_payment NUMERIC(10,2) NOT NULL DEFAULT 0,
    transportation_details TEXT NOT NULL DEFAULT '',
    accommodation_details TEXT NOT NULL DEFAULT '',
    meal_arrangements TEXT NOT NULL DEFAULT '',
    itinerary TEXT NOT NULL DEFAULT '',
    trip_status VARCHAR(20) NOT NULL DEFAULT 'planning'
        CHECK (trip_status IN ('planning','open','confirmed','ongoing','completed','cancelled')),
    departure_time TIMESTAMPTZ NOT NULL,
    return_time TIMESTAMPTZ NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createTripParticipantsTable = `
CREATE TABLE IF NOT EXISTS trip_participants (
    id BIGSERIAL PRIMARY KEY,
    trip_id BIGINT NOT NULL REFERENCES organized_trips(id) ON DELETE CASCADE,
    user_id BIGINT NOT NULL,
    payment_status VARCHAR(20) NOT NULL DEFAULT 'pending'
        CHECK (payment_status IN ('pending','partial','paid','refunded')),
    amount_paid NUMERIC(10,2) NOT NULL DEFAULT 0,
    commission_charged NUMERIC(10,2) NOT NULL DEFAULT 0,
    attendance_status VARCHAR(20) NOT NULL DEFAULT 'registered'
        CHECK (attendance_status IN ('registered','confirmed','attended','no_show','cancelled')),
    emergency_contact VARCHAR(100) NOT NULL DEFAULT '',
    special_requirements TEXT NOT NULL DEFAULT '',
    join_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    UNIQUE (trip_id, user_id)
);`

const createPaymentsTable = `
CREATE TABLE IF NOT EXISTS payments (
    id BIGSERIAL PRIMARY KEY,
    trip_id BIGINT REFERENCES organized_trips(id) ON DELETE CASCADE,
    plan_id BIGINT REFERENCES travel_plans(id) ON DELETE CASCADE,
    user_id BIGINT NOT NULL,
    total_amount NUMERIC(10,2) NOT NULL,
    platform_commission NUMERIC(10,2) NOT NULL DEFAULT 0,
    payment_method VARCHAR(50) NOT NULL DEFAULT '',
    payment_status VARCHAR(20) NOT NULL DEFAULT 'pending'
        CHECK (payment_status IN ('pending','processing','completed','refunding','failed','refunded')),
    transaction_id VARCHAR(100) NOT NULL UNIQUE,
    session_key VARCHAR(255),
    payment_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    refund_status BOOLEAN NOT NULL DEFAULT FALSE,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createRevenuesTable = `
CREATE TABLE IF NOT EXISTS revenues (
    id BIGSERIAL PRIMARY KEY,
    trip_id BIGINT NOT NULL UNIQUE REFERENCES organized_trips(id) ON DELETE CASCADE,
    total_revenue NUMERIC(10,2) NOT NULL DEFAULT 0,
    platform_commission NUMERIC(10,2) NOT NULL DEFAULT 0,
    driver_payment NUMERIC(10,2) NOT NULL DEFAULT 0,
    net_profit NUMERIC(10,2) NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

const createFunnelIndexes = `
CREATE INDEX IF NOT EXISTS idx_travel_plans_status_join ON travel_plans(status, join_deadline);
CREATE INDEX IF NOT EXISTS idx_travel_plans_user ON travel_plans(user_id);
CREATE INDEX IF NOT EXISTS idx_organized_trips_status ON organized_trips(trip_status, departure_time);
CREATE INDEX IF NOT EXISTS idx_payments_plan_user ON payments(plan_id, user_id, payment_status);
CREATE INDEX IF NOT EXISTS idx_payments_trip_user ON payments(trip_id, user_id, payment_status);`
