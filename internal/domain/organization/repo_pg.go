package organization

import (
	"context"
	"fmt"

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

const orgColumns = `org_id, name, org_type, active, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, org *Organization) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO organization (org_id, name, org_type, active)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		org.OrgID, org.Name, string(org.Type), org.Active,
	).Scan(&org.CreatedAt, &org.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.Conflict("organization %s already exists", org.OrgID)
	}
	if err != nil {
		return fmt.Errorf("insert organization: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, orgID string) (*Organization, error) {
	org, err := scanOrg(r.conn(ctx).QueryRow(ctx,
		`SELECT `+orgColumns+` FROM organization WHERE org_id = $1`, orgID))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("organization %s not found", orgID)
	}
	return org, err
}

func (r *repoPG) ListByType(ctx context.Context, t Type) ([]*Organization, error) {
	return r.list(ctx, `SELECT `+orgColumns+` FROM organization WHERE org_type = $1 AND active ORDER BY org_id`, string(t))
}

func (r *repoPG) List(ctx context.Context) ([]*Organization, error) {
	return r.list(ctx, `SELECT `+orgColumns+` FROM organization ORDER BY org_id`)
}

func (r *repoPG) list(ctx context.Context, query string, args ...interface{}) ([]*Organization, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*Organization
	for rows.Next() {
		org, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		orgs = append(orgs, org)
	}
	return orgs, rows.Err()
}

func scanOrg(row pgx.Row) (*Organization, error) {
	var org Organization
	var t string
	if err := row.Scan(&org.OrgID, &org.Name, &t, &org.Active, &org.CreatedAt, &org.UpdatedAt); err != nil {
		return nil, err
	}
	org.Type = Type(t)
	return &org, nil
}

func (r *repoPG) AddMember(ctx context.Context, m *Member) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO organization_member (organization_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (organization_id, user_id) DO UPDATE SET role = EXCLUDED.role
		RETURNING created_at`,
		m.OrganizationID, m.UserID, m.Role,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert organization member: %w", err)
	}
	return nil
}

func (r *repoPG) MemberIDs(ctx context.Context, orgID, role string) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT user_id FROM organization_member
		WHERE organization_id = $1 AND role = $2
		ORDER BY user_id`, orgID, role)
	if err != nil {
		return nil, fmt.Errorf("list organization members: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
