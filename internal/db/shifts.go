package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const shiftColumns = `id, rep_id, brand_id, account_name, account_key, hours, miles, toll_cents, has_vehicle, payment_status, reimbursement_cents, revenue_cents, created_at`

func scanShift(row pgx.Row) (Shift, error) {
	var s Shift
	err := row.Scan(&s.ID, &s.RepID, &s.BrandID, &s.AccountName, &s.AccountKey, &s.Hours, &s.Miles,
		&s.TollCents, &s.HasVehicle, &s.PaymentStatus, &s.ReimbursementCents, &s.RevenueCents, &s.CreatedAt)
	return s, err
}

// InsertShiftParams carries a new shift record with its derived amounts.
type InsertShiftParams struct {
	ID                 uuid.UUID
	RepID              uuid.UUID
	BrandID            string
	AccountName        *string
	AccountKey         *string
	Hours              float64
	Miles              float64
	TollCents          int64
	HasVehicle         bool
	ReimbursementCents int64
	RevenueCents       int64
}

// InsertShift records an activation shift with payment pending.
func (q *Queries) InsertShift(ctx context.Context, arg InsertShiftParams) (Shift, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO shifts (id, rep_id, brand_id, account_name, account_key, hours, miles, toll_cents, has_vehicle, payment_status, reimbursement_cents, revenue_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending', $10, $11)
		RETURNING `+shiftColumns,
		arg.ID, arg.RepID, arg.BrandID, arg.AccountName, arg.AccountKey, arg.Hours, arg.Miles,
		arg.TollCents, arg.HasVehicle, arg.ReimbursementCents, arg.RevenueCents)
	return scanShift(row)
}

// GetShiftByID fetches a shift by primary key.
func (q *Queries) GetShiftByID(ctx context.Context, id uuid.UUID) (Shift, error) {
	row := q.db.QueryRow(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = $1`, id)
	return scanShift(row)
}

// MarkShiftPaid applies the one-way pending→paid transition.
func (q *Queries) MarkShiftPaid(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE shifts SET payment_status = 'paid' WHERE id = $1 AND payment_status = 'pending'`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ShiftPaymentStatus reports the current payment state of a shift.
func (q *Queries) ShiftPaymentStatus(ctx context.Context, id uuid.UUID) (PaymentStatus, error) {
	var status PaymentStatus
	err := q.db.QueryRow(ctx, `SELECT payment_status FROM shifts WHERE id = $1`, id).Scan(&status)
	return status, err
}

// ListShiftsInRange returns shifts created within [from, to).
func (q *Queries) ListShiftsInRange(ctx context.Context, from, to time.Time) ([]Shift, error) {
	rows, err := q.db.Query(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE created_at >= $1 AND created_at < $2 ORDER BY created_at`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var shifts []Shift
	for rows.Next() {
		shift, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, shift)
	}
	return shifts, rows.Err()
}
