package integration

import (
	"context"
	"testing"

	"github.com/rxchain/rxchain/internal/platform/db"
	"github.com/rxchain/rxchain/migrations"
)

func TestMigrator_AllApplied(t *testing.T) {
	p := requireDB(t)
	ctx := context.Background()
	m := db.NewMigrator(p, migrations.FS)

	count, err := m.Up(ctx)
	if err != nil {
		t.Fatalf("Up: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no pending migrations, applied %d", count)
	}

	statuses, err := m.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(statuses) != 4 {
		t.Fatalf("expected 4 migrations, got %d", len(statuses))
	}
	for _, s := range statuses {
		if !s.Applied || s.AppliedAt == nil {
			t.Errorf("expected %s to be applied", s.Name)
		}
	}
}
