package db

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const leadColumns = `id, name, name_key, rep_id, status, priority, license_number, contacts, sample_brands, created_at, updated_at`

func scanLead(row pgx.Row) (Lead, error) {
	var l Lead
	err := row.Scan(&l.ID, &l.Name, &l.NameKey, &l.RepID, &l.Status, &l.Priority,
		&l.LicenseNumber, &l.Contacts, &l.SampleBrands, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}

// GetLeadByKey fetches the lead owning the provided normalized name key.
func (q *Queries) GetLeadByKey(ctx context.Context, nameKey string) (Lead, error) {
	row := q.db.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE name_key = $1`, nameKey)
	return scanLead(row)
}

// GetLeadByID fetches a lead by primary key.
func (q *Queries) GetLeadByID(ctx context.Context, id uuid.UUID) (Lead, error) {
	row := q.db.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE id = $1`, id)
	return scanLead(row)
}

// InsertLeadParams carries the fields of a new lead record.
type InsertLeadParams struct {
	Name          string
	NameKey       string
	RepID         uuid.UUID
	Priority      int32
	LicenseNumber *string
	Contacts      []byte
	SampleBrands  []string
}

// InsertLeadIfAbsent atomically inserts a lead unless one already exists
// for the same name key. The unique index on name_key is the
// mutual-exclusion primitive: the loser of a racing insert gets
// inserted=false together with the surviving row.
func (q *Queries) InsertLeadIfAbsent(ctx context.Context, arg InsertLeadParams) (Lead, bool, error) {
	row := q.db.QueryRow(ctx, `
		INSERT INTO leads (id, name, name_key, rep_id, status, priority, license_number, contacts, sample_brands)
		VALUES ($1, $2, $3, $4, 'prospect', $5, $6, $7, $8)
		ON CONFLICT (name_key) DO NOTHING
		RETURNING `+leadColumns,
		uuid.New(), arg.Name, arg.NameKey, arg.RepID, arg.Priority, arg.LicenseNumber, arg.Contacts, arg.SampleBrands)
	lead, err := scanLead(row)
	if err == nil {
		return lead, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, false, err
	}
	existing, err := q.GetLeadByKey(ctx, arg.NameKey)
	if err != nil {
		return Lead{}, false, err
	}
	return existing, false, nil
}

// ListLeads returns leads ordered by creation time, newest first.
func (q *Queries) ListLeads(ctx context.Context, limit, offset int32) ([]Lead, error) {
	rows, err := q.db.Query(ctx, `SELECT `+leadColumns+` FROM leads ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var leads []Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// CountLeads returns the total number of lead records.
func (q *Queries) CountLeads(ctx context.Context) (int64, error) {
	var total int64
	err := q.db.QueryRow(ctx, `SELECT COUNT(*) FROM leads`).Scan(&total)
	return total, err
}

// UpdateLeadStatus transitions a lead's status. Callers enforce the
// forward-only rule; the query only refuses to touch sold leads so the
// immutability invariant holds even under racing writers.
func (q *Queries) UpdateLeadStatus(ctx context.Context, id uuid.UUID, status LeadStatus) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE leads SET status = $2, updated_at = now() WHERE id = $1 AND status <> 'sold'`, id, status)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ForceLeadStatus applies an explicit admin override, bypassing the
// sold-lead guard.
func (q *Queries) ForceLeadStatus(ctx context.Context, id uuid.UUID, status LeadStatus) (int64, error) {
	tag, err := q.db.Exec(ctx, `UPDATE leads SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// SetLeadLicense records the license number captured at first sale.
func (q *Queries) SetLeadLicense(ctx context.Context, id uuid.UUID, license string) error {
	_, err := q.db.Exec(ctx, `UPDATE leads SET license_number = $2, updated_at = now() WHERE id = $1 AND license_number IS NULL`, id, license)
	return err
}
