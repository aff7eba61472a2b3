package repository

import (
	"context"
	"database/sql"
	"time"

	apperrors "tripmate/internal/errors"
	"tripmate/internal/models"
)

type InterestRepository struct {
	db DBTX
}

func NewInterestRepository(db DBTX) *InterestRepository {
	return &InterestRepository{db: db}
}

// Create returns ErrAlreadyJoined when the user already expressed interest.
func (r *InterestRepository) Create(ctx context.Context, interest *models.TravelPlanInterest) error {
	query := `
		INSERT INTO travel_plan_interests (plan_id, user_id, agreed, created_at)
		VALUES ($1, $2, FALSE, $3)
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query, interest.PlanID, interest.UserID, interest.CreatedAt).Scan(&interest.ID)
	if isUniqueViolation(err) {
		return apperrors.ErrAlreadyJoined
	}
	return err
}

func (r *InterestRepository) Get(ctx context.Context, planID, userID int64) (*models.TravelPlanInterest, error) {
	interest := &models.TravelPlanInterest{}
	query := `
		SELECT id, plan_id, user_id, agreed, agreed_at, created_at
		FROM travel_plan_interests
		WHERE plan_id = $1 AND user_id = $2`

	err := r.db.QueryRowContext(ctx, query, planID, userID).Scan(
		&interest.ID,
		&interest.PlanID,
		&interest.UserID,
		&interest.Agreed,
		&interest.AgreedAt,
		&interest.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return interest, nil
}

// Delete withdraws an interest; agreed interests are never removed.
func (r *InterestRepository) Delete(ctx context.Context, planID, userID int64) (bool, error) {
	return affected(r.db.ExecContext(ctx,
		`DELETE FROM travel_plan_interests WHERE plan_id = $1 AND user_id = $2 AND agreed = FALSE`,
		planID, userID))
}

func (r *InterestRepository) Agree(ctx context.Context, planID, userID int64, at time.Time) (bool, error) {
	return affected(r.db.ExecContext(ctx, `
		UPDATE travel_plan_interests SET agreed = TRUE, agreed_at = $3
		WHERE plan_id = $1 AND user_id = $2 AND agreed = FALSE`,
		planID, userID, at))
}

func (r *InterestRepository) CountByPlan(ctx context.Context, planID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM travel_plan_interests WHERE plan_id = $1`, planID).Scan(&count)
	return count, err
}

func (r *InterestRepository) ListAgreed(ctx context.Context, planID int64) ([]models.TravelPlanInterest, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, plan_id, user_id, agreed, agreed_at, created_at
		FROM travel_plan_interests
		WHERE plan_id = $1 AND agreed = TRUE
		ORDER BY agreed_at, id`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var interests []models.TravelPlanInterest
	for rows.Next() {
		var i models.TravelPlanInterest
		if err := rows.Scan(&i.ID, &i.PlanID, &i.UserID, &i.Agreed, &i.AgreedAt, &i.CreatedAt); err != nil {
			return nil, err
		}
		interests = append(interests, i)
	}
	return interests, rows.Err()
}
