package medrequest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

const requestColumns = `id, request_number, consumer_id, product_name, requested_quantity, unit_dosage,
	prescription_required, prescription_document, notes, assigned_manufacturer_id, assigned_batch_id,
	status, rejection_reason, approved_by, created_at, updated_at, approved_at, delivered_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*Request, error) {
	var req Request
	var status string
	err := row.Scan(&req.ID, &req.RequestNumber, &req.ConsumerID, &req.ProductName, &req.RequestedQuantity,
		&req.UnitDosage, &req.PrescriptionRequired, &req.PrescriptionDocument, &req.Notes,
		&req.AssignedManufacturerID, &req.AssignedBatchID, &status, &req.RejectionReason, &req.ApprovedBy,
		&req.CreatedAt, &req.UpdatedAt, &req.ApprovedAt, &req.DeliveredAt)
	if err != nil {
		return nil, err
	}
	req.Status = Status(status)
	return &req, nil
}

func (r *repoPG) Create(ctx context.Context, req *Request) error {
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO medication_request (id, request_number, consumer_id, product_name, requested_quantity,
			unit_dosage, prescription_required, prescription_document, notes, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		req.ID, req.RequestNumber, req.ConsumerID, req.ProductName, req.RequestedQuantity,
		req.UnitDosage, req.PrescriptionRequired, req.PrescriptionDocument, req.Notes, string(req.Status),
		req.CreatedAt, req.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("request number %s already exists", req.RequestNumber)
	}
	if err != nil {
		return fmt.Errorf("insert medication request: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Request, error) {
	req, err := scanRequest(r.conn(ctx).QueryRow(ctx,
		`SELECT `+requestColumns+` FROM medication_request WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("medication request %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get medication request: %w", err)
	}
	return req, nil
}

// Transition holds the row lock for the duration of fn. The transaction
// travels in the ctx handed to fn, so inventory updates made through it use
// the same connection and commit or roll back with the status write.
func (r *repoPG) Transition(ctx context.Context, id uuid.UUID, fn func(context.Context, *Request) error) (*Request, error) {
	var out *Request
	err := db.WithTx(ctx, r.pool, func(ctx context.Context) error {
		req, err := scanRequest(r.conn(ctx).QueryRow(ctx,
			`SELECT `+requestColumns+` FROM medication_request WHERE id = $1 FOR UPDATE`, id))
		if db.IsNoRows(err) {
			return apperr.NotFound("medication request %s not found", id)
		}
		if err != nil {
			return fmt.Errorf("lock medication request: %w", err)
		}

		if err := fn(ctx, req); err != nil {
			return err
		}
		if err := req.check(); err != nil {
			return err
		}

		_, err = r.conn(ctx).Exec(ctx, `
			UPDATE medication_request
			SET status = $2, assigned_manufacturer_id = $3, assigned_batch_id = $4, rejection_reason = $5,
				approved_by = $6, approved_at = $7, delivered_at = $8, updated_at = $9
			WHERE id = $1`,
			req.ID, string(req.Status), req.AssignedManufacturerID, req.AssignedBatchID, req.RejectionReason,
			req.ApprovedBy, req.ApprovedAt, req.DeliveredAt, req.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update medication request: %w", err)
		}
		out = req
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Request, int, error) {
	var (
		where []string
		args  []interface{}
	)
	add := func(clause string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.ConsumerID != "" {
		add("consumer_id = $%d", f.ConsumerID)
	}
	if f.ManufacturerID != "" {
		add("assigned_manufacturer_id = $%d", f.ManufacturerID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("status = ANY($%d)", statuses)
	}

	query := `SELECT ` + requestColumns + `, COUNT(*) OVER() FROM medication_request`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list medication requests: %w", err)
	}
	defer rows.Close()

	var (
		out   []*Request
		total int
	)
	for rows.Next() {
		req, err := scanRequest(totalScanner{rows, &total})
		if err != nil {
			return nil, 0, err
		}
		out = append(out, req)
	}
	return out, total, rows.Err()
}

// totalScanner appends the window COUNT(*) target to a row scan.
type totalScanner struct {
	rows  pgx.Rows
	total *int
}

func (s totalScanner) Scan(dest ...interface{}) error {
	return s.rows.Scan(append(dest, s.total)...)
}
