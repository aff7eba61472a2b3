package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"tripmate/internal/models"
)

const paymentColumns = `id, trip_id, plan_id, user_id, total_amount, platform_commission, payment_method,
	payment_status, transaction_id, session_key, payment_date, refund_status, updated_at`

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func scanPayment(row rowScanner, p *models.Payment) error {
	return row.Scan(
		&p.ID,
		&p.TripID,
		&p.PlanID,
		&p.UserID,
		&p.TotalAmount,
		&p.PlatformCommission,
		&p.PaymentMethod,
		&p.PaymentStatus,
		&p.TransactionID,
		&p.SessionKey,
		&p.PaymentDate,
		&p.RefundStatus,
		&p.UpdatedAt,
	)
}

func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (trip_id, plan_id, user_id, total_amount, platform_commission,
		                      payment_method, payment_status, transaction_id, payment_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, updated_at`

	return r.db.QueryRowContext(ctx, query,
		payment.TripID,
		payment.PlanID,
		payment.UserID,
		payment.TotalAmount,
		payment.PlatformCommission,
		payment.PaymentMethod,
		payment.PaymentStatus,
		payment.TransactionID,
		payment.PaymentDate,
	).Scan(&payment.ID, &payment.UpdatedAt)
}

func (r *PaymentRepository) get(ctx context.Context, query string, args ...any) (*models.Payment, error) {
	p := &models.Payment{}
	err := scanPayment(r.db.QueryRowContext(ctx, query, args...), p)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PaymentRepository) GetByTransactionID(ctx context.Context, tranID string) (*models.Payment, error) {
	return r.get(ctx, `SELECT `+paymentColumns+` FROM payments WHERE transaction_id = $1`, tranID)
}

// SetSessionKey stores the gateway session next to the transaction id,
// which stays unchanged so callbacks can still find the row.
func (r *PaymentRepository) SetSessionKey(ctx context.Context, id int64, sessionKey string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE payments SET session_key = $1, updated_at = NOW() WHERE id = $2`, sessionKey, id)
	return err
}

// MarkCompleted is the compare-and-swap used by confirm: only the caller
// that actually flips the row gets true.
func (r *PaymentRepository) MarkCompleted(ctx context.Context, tranID, method string) (bool, error) {
	return affected(r.db.ExecContext(ctx, `
		UPDATE payments
		SET payment_status = 'completed', payment_method = COALESCE(NULLIF($2, ''), payment_method), updated_at = NOW()
		WHERE transaction_id = $1 AND payment_status NOT IN ('completed', 'refunding', 'refunded')`,
		tranID, method))
}

func (r *PaymentRepository) MarkFailed(ctx context.Context, tranID string) (bool, error) {
	return affected(r.db.ExecContext(ctx, `
		UPDATE payments SET payment_status = 'failed', updated_at = NOW()
		WHERE transaction_id = $1 AND payment_status IN ('pending', 'processing')`,
		tranID))
}

// ClaimRefund moves a completed payment to refunding before the gateway is
// called, so only one refund request per payment reaches the gateway.
func (r *PaymentRepository) ClaimRefund(ctx context.Context, id int64) (bool, error) {
	return affected(r.db.ExecContext(ctx, `
		UPDATE payments SET payment_status = 'refunding', updated_at = NOW()
		WHERE id = $1 AND payment_status = 'completed'`,
		id))
}

// ReleaseRefund returns a claimed payment to completed after the gateway
// refused the refund.
func (r *PaymentRepository) ReleaseRefund(ctx context.Context, id int64) (bool, error) {
	return affected(r.db.ExecContext(ctx, `
		UPDATE payments SET payment_status = 'completed', updated_at = NOW()
		WHERE id = $1 AND payment_status = 'refunding'`,
		id))
}

func (r *PaymentRepository) MarkRefunded(ctx context.Context, id int64) (bool, error) {
	return affected(r.db.ExecContext(ctx, `
		UPDATE payments SET payment_status = 'refunded', refund_status = TRUE, updated_at = NOW()
		WHERE id = $1 AND payment_status = 'refunding'`,
		id))
}

// AttachToTrip links a single completed, still trip-less payment to a trip.
func (r *PaymentRepository) AttachToTrip(ctx context.Context, id, tripID int64) (bool, error) {
	return affected(r.db.ExecContext(ctx, `
		UPDATE payments SET trip_id = $1, updated_at = NOW()
		WHERE id = $2 AND trip_id IS NULL AND payment_status = 'completed'`,
		tripID, id))
}

func (r *PaymentRepository) LatestCompleted(ctx context.Context, tripID, userID int64) (*models.Payment, error) {
	return r.get(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE trip_id = $1 AND user_id = $2 AND payment_status = 'completed'
		ORDER BY payment_date DESC, id DESC
		LIMIT 1`, tripID, userID)
}

// HasCompletedForPlan checks for a completed payment made for the plan at or
// after since.
func (r *PaymentRepository) HasCompletedForPlan(ctx context.Context, planID, userID int64, since time.Time) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
		    SELECT 1 FROM payments
		    WHERE plan_id = $1 AND user_id = $2 AND payment_status = 'completed' AND payment_date >= $3
		)`, planID, userID, since).Scan(&exists)
	return exists, err
}

// LinkToTrip attaches qualifying, still trip-less plan payments to the trip.
func (r *PaymentRepository) LinkToTrip(ctx context.Context, planID int64, userIDs []int64, since time.Time, tripID int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments SET trip_id = $1, updated_at = NOW()
		WHERE plan_id = $2 AND user_id = ANY($3) AND payment_status = 'completed'
		  AND trip_id IS NULL AND payment_date >= $4`,
		tripID, planID, pq.Array(userIDs), since)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *PaymentRepository) ListByUser(ctx context.Context, userID int64) ([]models.Payment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE user_id = $1 ORDER BY payment_date DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		if err := scanPayment(rows, &p); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
