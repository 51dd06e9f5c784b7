package db

import "context"

// ListBrandRates returns all configured activation billing rates.
func (q *Queries) ListBrandRates(ctx context.Context) ([]BrandRate, error) {
	rows, err := q.db.Query(ctx, `SELECT brand_id, hourly_rate_cents FROM brand_rates ORDER BY brand_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rates []BrandRate
	for rows.Next() {
		var r BrandRate
		if err := rows.Scan(&r.BrandID, &r.HourlyRateCents); err != nil {
			return nil, err
		}
		rates = append(rates, r)
	}
	return rates, rows.Err()
}

// UpsertBrandRate sets the hourly activation rate for a brand.
func (q *Queries) UpsertBrandRate(ctx context.Context, brandID string, hourlyRateCents int64) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO brand_rates (brand_id, hourly_rate_cents) VALUES ($1, $2)
		ON CONFLICT (brand_id) DO UPDATE SET hourly_rate_cents = EXCLUDED.hourly_rate_cents`,
		brandID, hourlyRateCents)
	return err
}
