package integration

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rxchain/rxchain/internal/domain/organization"
	"github.com/rxchain/rxchain/internal/platform/auth"
	"github.com/rxchain/rxchain/internal/platform/db"
	"github.com/rxchain/rxchain/migrations"
)

// pool is the shared test database. It stays nil when docker is not
// available, and every test then skips.
var (
	pool *pgxpool.Pool
	dsn  string
)

func TestMain(m *testing.M) {
	if _, err := exec.LookPath("docker"); err != nil || os.Getenv("SKIP_INTEGRATION") != "" {
		os.Exit(m.Run())
	}

	ctx := context.Background()
	connStr, cleanup, err := startPostgres(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "postgres container unavailable, skipping integration tests: %v\n", err)
		os.Exit(m.Run())
	}

	p, err := db.NewPool(ctx, connStr, 10, 1)
	if err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "create pool: %v\n", err)
		os.Exit(1)
	}
	if _, err := db.NewMigrator(p, migrations.FS).Up(ctx); err != nil {
		p.Close()
		cleanup()
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	pool = p
	dsn = connStr
	code := m.Run()
	p.Close()
	cleanup()
	os.Exit(code)
}

// requireDB skips the test without a database and empties every table.
func requireDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if pool == nil {
		t.Skip("docker not available")
	}
	_, err := pool.Exec(context.Background(),
		`TRUNCATE notification, medication_request, inventory_record, organization_member, organization`)
	if err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return pool
}

func asCaller(id string, role auth.Role, org string) context.Context {
	return auth.WithCaller(context.Background(), &auth.Caller{ID: id, Role: role, OrganizationID: org})
}

func createOrg(t *testing.T, svc *organization.Service, id string, typ organization.Type) {
	t.Helper()
	if err := svc.Create(context.Background(), &organization.Organization{OrgID: id, Name: id, Type: typ, Active: true}); err != nil {
		t.Fatalf("create org %s: %v", id, err)
	}
}
