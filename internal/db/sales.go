package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const saleColumns = `id, rep_id, lead_id, account_name, account_key, amount_cents, sale_date, items, payment_status, commission_cents, created_at`

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	err := row.Scan(&s.ID, &s.RepID, &s.LeadID, &s.AccountName, &s.AccountKey, &s.AmountCents,
		&s.SaleDate, &s.Items, &s.PaymentStatus, &s.CommissionCents, &s.CreatedAt)
	return s, err
}

// InsertSaleParams carries a new sale record.
type InsertSaleParams struct {
	ID              uuid.UUID
	RepID           uuid.UUID
	LeadID          *uuid.UUID
	AccountName     string
	AccountKey      string
	AmountCents     int64
	SaleDate        time.Time
	Items           []byte
	CommissionCents int64
}

// InsertSale records a sale with payment pending.
func (q *Queries) InsertSale(ctx context.Context, arg InsertSaleParams) (Sale, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO sales (id, rep_id, lead_id, account_name, account_key, amount_cents, sale_date, items, payment_status, commission_cents)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'pending', $9)
		RETURNING `+saleColumns,
		arg.ID, arg.RepID, arg.LeadID, arg.AccountName, arg.AccountKey, arg.AmountCents, arg.SaleDate, arg.Items, arg.CommissionCents)
	return scanSale(row)
}

// GetSaleByID fetches a sale by primary key.
func (q *Queries) GetSaleByID(ctx context.Context, id uuid.UUID) (Sale, error) {
	row := q.db.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
	return scanSale(row)
}

// MarkSalePaid applies the one-way pending→paid transition. Zero rows
// affected means the sale was missing or already paid.
func (q *Queries) MarkSalePaid(ctx context.Context, id uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE sales SET payment_status = 'paid' WHERE id = $1 AND payment_status = 'pending'`, id)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SalePaymentStatus reports the current payment state of a sale.
func (q *Queries) SalePaymentStatus(ctx context.Context, id uuid.UUID) (PaymentStatus, error) {
	var status PaymentStatus
	err := q.db.QueryRow(ctx, `SELECT payment_status FROM sales WHERE id = $1`, id).Scan(&status)
	return status, err
}

// ListSalesInRange returns sales dated within [from, to).
func (q *Queries) ListSalesInRange(ctx context.Context, from, to time.Time) ([]Sale, error) {
	rows, err := q.db.Query(ctx, `SELECT `+saleColumns+` FROM sales WHERE sale_date >= $1 AND sale_date < $2 ORDER BY sale_date`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sales []Sale
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}
