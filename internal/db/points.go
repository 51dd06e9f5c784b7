package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// InsertLedgerParams carries a new append-only points ledger entry.
type InsertLedgerParams struct {
	RepID          uuid.UUID
	Kind           string
	RefID          string
	PointsMillis   int64
	Breakdown      []byte
	IdempotencyKey string
}

// InsertLedgerEntry appends to the points ledger. The unique constraint on
// the idempotency key makes retried awards a no-op; inserted=false reports
// that the entry was already applied.
func (q *Queries) InsertLedgerEntry(ctx context.Context, arg InsertLedgerParams) (bool, error) {
	tag, err := q.db.Exec(ctx, `
		INSERT INTO points_ledger (id, rep_id, kind, ref_id, points_millis, breakdown, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (idempotency_key) DO NOTHING`,
		uuid.New(), arg.RepID, arg.Kind, arg.RefID, arg.PointsMillis, arg.Breakdown, arg.IdempotencyKey)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// ListLedgerForRep returns a rep's ledger entries, newest first.
func (q *Queries) ListLedgerForRep(ctx context.Context, repID uuid.UUID, limit, offset int32) ([]PointsLedgerEntry, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, rep_id, kind, ref_id, points_millis, breakdown, idempotency_key, created_at
		FROM points_ledger WHERE rep_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		repID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []PointsLedgerEntry
	for rows.Next() {
		var e PointsLedgerEntry
		if err := rows.Scan(&e.ID, &e.RepID, &e.Kind, &e.RefID, &e.PointsMillis, &e.Breakdown, &e.IdempotencyKey, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SumLedgerForRep totals all ledger entries for a rep.
func (q *Queries) SumLedgerForRep(ctx context.Context, repID uuid.UUID) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, `SELECT COALESCE(SUM(points_millis), 0) FROM points_ledger WHERE rep_id = $1`, repID).Scan(&total)
	return total, err
}

// SumLedgerForRepSince totals ledger entries recorded at or after the cutoff.
func (q *Queries) SumLedgerForRepSince(ctx context.Context, repID uuid.UUID, since time.Time) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, `SELECT COALESCE(SUM(points_millis), 0) FROM points_ledger WHERE rep_id = $1 AND created_at >= $2`, repID, since).Scan(&total)
	return total, err
}

// GetRep fetches a rep account by id.
func (q *Queries) GetRep(ctx context.Context, id uuid.UUID) (Rep, error) {
	var r Rep
	err := q.db.QueryRow(ctx, `
		SELECT id, name, lifetime_points_millis, period_key, period_points_millis, created_at
		FROM reps WHERE id = $1`, id).
		Scan(&r.ID, &r.Name, &r.LifetimePointsMillis, &r.PeriodKey, &r.PeriodPointsMillis, &r.CreatedAt)
	return r, err
}

// EnsureRep creates the rep row on first contact.
func (q *Queries) EnsureRep(ctx context.Context, id uuid.UUID, name string) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO reps (id, name, lifetime_points_millis, period_key, period_points_millis)
		VALUES ($1, $2, 0, '', 0)
		ON CONFLICT (id) DO NOTHING`, id, name)
	return err
}

// AddRepPoints increments the cached counters. A stale period key rolls the
// period counter over instead of accumulating across months.
func (q *Queries) AddRepPoints(ctx context.Context, repID uuid.UUID, millis int64, periodKey string) error {
	_, err := q.db.Exec(ctx, `
		UPDATE reps SET
			lifetime_points_millis = lifetime_points_millis + $2,
			period_points_millis = CASE WHEN period_key = $3 THEN period_points_millis + $2 ELSE $2 END,
			period_key = $3
		WHERE id = $1`, repID, millis, periodKey)
	return err
}

// SetRepPoints overwrites the cached counters; used by the
// rebuild-from-ledger reconciliation path.
func (q *Queries) SetRepPoints(ctx context.Context, repID uuid.UUID, lifetimeMillis, periodMillis int64, periodKey string) error {
	_, err := q.db.Exec(ctx, `
		UPDATE reps SET lifetime_points_millis = $2, period_points_millis = $3, period_key = $4
		WHERE id = $1`, repID, lifetimeMillis, periodMillis, periodKey)
	return err
}

// TouchStore grows the rep's distinct touched-store set.
func (q *Queries) TouchStore(ctx context.Context, repID uuid.UUID, accountKey string) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO rep_touched_stores (rep_id, account_key) VALUES ($1, $2)
		ON CONFLICT DO NOTHING`, repID, accountKey)
	return err
}

// CountRepStores returns the rep's all-time distinct-store count.
func (q *Queries) CountRepStores(ctx context.Context, repID uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM rep_touched_stores WHERE rep_id = $1`, repID).Scan(&count)
	return count, err
}

// ListRepStoreCounts returns distinct-store counts for all reps.
func (q *Queries) ListRepStoreCounts(ctx context.Context) ([]RepStoreCount, error) {
	rows, err := q.db.Query(ctx, `SELECT rep_id, COUNT(*) FROM rep_touched_stores GROUP BY rep_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var counts []RepStoreCount
	for rows.Next() {
		var c RepStoreCount
		if err := rows.Scan(&c.RepID, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// GetBrandHistory returns the set of brand ids ever sold into an account.
func (q *Queries) GetBrandHistory(ctx context.Context, accountKey string) ([]string, error) {
	rows, err := q.db.Query(ctx, `SELECT brand_id FROM store_brand_history WHERE account_key = $1`, accountKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var brands []string
	for rows.Next() {
		var brand string
		if err := rows.Scan(&brand); err != nil {
			return nil, err
		}
		brands = append(brands, brand)
	}
	return brands, rows.Err()
}

// UnionBrandHistory adds brand ids to an account's purchase history.
// Existing entries are untouched; the set only ever grows.
func (q *Queries) UnionBrandHistory(ctx context.Context, accountKey string, brandIDs []string) error {
	if len(brandIDs) == 0 {
		return nil
	}
	_, err := q.db.Exec(ctx, `
		INSERT INTO store_brand_history (account_key, brand_id)
		SELECT $1, unnest($2::text[])
		ON CONFLICT DO NOTHING`, accountKey, brandIDs)
	return err
}
