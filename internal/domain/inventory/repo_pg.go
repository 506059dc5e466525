package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/rxchain/rxchain/internal/platform/apperr"
	"github.com/rxchain/rxchain/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Queryable {
	return db.Conn(ctx, r.pool)
}

const recordColumns = `id, organization_id, batch_id, product_name, unit_dosage, unit_price::text,
	available_quantity, reserved_quantity, status, created_at, updated_at`

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var price, status string
	if err := row.Scan(&rec.ID, &rec.OrganizationID, &rec.BatchID, &rec.ProductName, &rec.UnitDosage, &price,
		&rec.AvailableQuantity, &rec.ReservedQuantity, &status, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("parse unit price %q: %w", price, err)
	}
	rec.UnitPrice = p
	rec.Status = Status(status)
	return &rec, nil
}

func (r *repoPG) Create(ctx context.Context, rec *Record) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO inventory_record (id, organization_id, batch_id, product_name, unit_dosage, unit_price,
			available_quantity, reserved_quantity, status)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9)
		RETURNING created_at, updated_at`,
		rec.ID, rec.OrganizationID, rec.BatchID, rec.ProductName, rec.UnitDosage, rec.UnitPrice.StringFixed(2),
		rec.AvailableQuantity, rec.ReservedQuantity, string(rec.Status),
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("inventory record for batch %s in organization %s already exists",
			rec.BatchID, rec.OrganizationID)
	}
	if err != nil {
		return fmt.Errorf("insert inventory record: %w", err)
	}
	return nil
}

func (r *repoPG) Get(ctx context.Context, key Key) (*Record, error) {
	rec, err := scanRecord(r.conn(ctx).QueryRow(ctx,
		`SELECT `+recordColumns+` FROM inventory_record WHERE organization_id = $1 AND batch_id = $2`,
		key.OrganizationID, key.BatchID))
	if db.IsNoRows(err) {
		return nil, notFound(key)
	}
	return rec, err
}

// Update locks the row with SELECT ... FOR UPDATE so concurrent writers on
// the same key queue behind each other.
func (r *repoPG) Update(ctx context.Context, key Key, fn func(*Record) error) (*Record, error) {
	var out *Record
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		rec, err := scanRecord(r.conn(ctx).QueryRow(ctx,
			`SELECT `+recordColumns+` FROM inventory_record
			 WHERE organization_id = $1 AND batch_id = $2 FOR UPDATE`,
			key.OrganizationID, key.BatchID))
		if db.IsNoRows(err) {
			return notFound(key)
		}
		if err != nil {
			return fmt.Errorf("lock inventory record: %w", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
		err = r.conn(ctx).QueryRow(ctx, `
			UPDATE inventory_record
			SET available_quantity = $3, reserved_quantity = $4, status = $5, updated_at = NOW()
			WHERE organization_id = $1 AND batch_id = $2
			RETURNING updated_at`,
			key.OrganizationID, key.BatchID, rec.AvailableQuantity, rec.ReservedQuantity, string(rec.Status),
		).Scan(&rec.UpdatedAt)
		if db.IsCheckViolation(err) {
			return apperr.InsufficientStock("inventory quantities for batch %s cannot go negative", key.BatchID)
		}
		if err != nil {
			return fmt.Errorf("update inventory record: %w", err)
		}
		out = rec
		return nil
	})
	return out, err
}

func (r *repoPG) ListByOrganization(ctx context.Context, orgID string) ([]*Record, error) {
	return r.list(ctx, `SELECT `+recordColumns+` FROM inventory_record
		WHERE organization_id = $1 ORDER BY product_name, batch_id`, orgID)
}

func (r *repoPG) FindAvailable(ctx context.Context, productName string, minQuantity int) ([]*Record, error) {
	pattern := "%" + escapeLike(productName) + "%"
	return r.list(ctx, `SELECT `+recordColumns+` FROM inventory_record
		WHERE product_name ILIKE $1 AND status = $2 AND available_quantity >= $3
		ORDER BY available_quantity DESC, organization_id, batch_id`,
		pattern, string(StatusAvailable), minQuantity)
}

func (r *repoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Record, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list inventory records: %w", err)
	}
	defer rows.Close()

	var out []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func notFound(key Key) error {
	return apperr.NotFound("no inventory record for batch %s in organization %s", key.BatchID, key.OrganizationID)
}
