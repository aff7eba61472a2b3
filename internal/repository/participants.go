package repository

import (
	"context"
	"database/sql"

	"github.com/shopspring/decimal"

	"tripmate/internal/models"
)

const participantColumns = `id, trip_id, user_id, payment_status, amount_paid, commission_charged,
	attendance_status, emergency_contact, special_requirements, join_date`

type ParticipantRepository struct {
	db DBTX
}

func NewParticipantRepository(db DBTX) *ParticipantRepository {
	return &ParticipantRepository{db: db}
}

func scanParticipant(row rowScanner, p *models.TripParticipant) error {
	return row.Scan(
		&p.ID,
		&p.TripID,
		&p.UserID,
		&p.PaymentStatus,
		&p.AmountPaid,
		&p.CommissionCharged,
		&p.AttendanceStatus,
		&p.EmergencyContact,
		&p.SpecialRequirements,
		&p.JoinDate,
	)
}

// Create inserts the participant unless the (trip, user) pair already exists.
// Reports whether a row was inserted.
func (r *ParticipantRepository) Create(ctx context.Context, p *models.TripParticipant) (bool, error) {
	query := `
		INSERT INTO trip_participants (trip_id, user_id, payment_status, amount_paid, commission_charged,
		                               attendance_status, emergency_contact, special_requirements, join_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (trip_id, user_id) DO NOTHING
		RETURNING id`

	err := r.db.QueryRowContext(ctx, query,
		p.TripID,
		p.UserID,
		p.PaymentStatus,
		p.AmountPaid,
		p.CommissionCharged,
		p.AttendanceStatus,
		p.EmergencyContact,
		p.SpecialRequirements,
		p.JoinDate,
	).Scan(&p.ID)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *ParticipantRepository) Get(ctx context.Context, tripID, userID int64) (*models.TripParticipant, error) {
	p := &models.TripParticipant{}
	err := scanParticipant(r.db.QueryRowContext(ctx,
		`SELECT `+participantColumns+` FROM trip_participants WHERE trip_id = $1 AND user_id = $2`,
		tripID, userID), p)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ParticipantRepository) ListByTrip(ctx context.Context, tripID int64) ([]models.TripParticipant, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+participantColumns+` FROM trip_participants WHERE trip_id = $1 ORDER BY join_date, id`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []models.TripParticipant
	for rows.Next() {
		var p models.TripParticipant
		if err := scanParticipant(rows, &p); err != nil {
			return nil, err
		}
		participants = append(participants, p)
	}
	return participants, rows.Err()
}

// MarkPaid sets amount_paid, it does not add to it, so a repeated call
// cannot double count.
func (r *ParticipantRepository) MarkPaid(ctx context.Context, tripID, userID int64, amount decimal.Decimal) (bool, error) {
	return affected(r.db.ExecContext(ctx, `
		UPDATE trip_participants SET payment_status = 'paid', amount_paid = $3
		WHERE trip_id = $1 AND user_id = $2 AND payment_status <> 'paid'`,
		tripID, userID, amount))
}

func (r *ParticipantRepository) MarkRefunded(ctx context.Context, tripID, userID int64) (bool, error) {
	return affected(r.db.ExecContext(ctx, `
		UPDATE trip_participants SET payment_status = 'refunded'
		WHERE trip_id = $1 AND user_id = $2 AND payment_status = 'paid'`,
		tripID, userID))
}

func (r *ParticipantRepository) CountPaid(ctx context.Context, tripID int64) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM trip_participants WHERE trip_id = $1 AND payment_status = 'paid'`,
		tripID).Scan(&count)
	return count, err
}

// Delete removes an unpaid participant.
func (r *ParticipantRepository) Delete(ctx context.Context, tripID, userID int64) (bool, error) {
	return affected(r.db.ExecContext(ctx,
		`DELETE FROM trip_participants WHERE trip_id = $1 AND user_id = $2 AND payment_status <> 'paid'`,
		tripID, userID))
}
