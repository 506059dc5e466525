// Package sandbox seeds reproducible demo data: organizations of every
// type, their members and a few ledger batches per manufacturer. It is used
// by `serve --seed-demo` so an in-memory deployment is usable out of the box.
package sandbox

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/rxchain/rxchain/internal/domain/batch"
	"github.com/rxchain/rxchain/internal/domain/organization"
	"github.com/rxchain/rxchain/internal/platform/apperr"
	"github.com/rxchain/rxchain/internal/platform/auth"
)

// SeedConfig controls the volume and shape of generated data.
type SeedConfig struct {
	Manufacturers          int   `json:"manufacturers"`
	Distributors           int   `json:"distributors"`
	Pharmacies             int   `json:"pharmacies"`
	BatchesPerManufacturer int   `json:"batches_per_manufacturer"`
	QuantityPerBatch       int   `json:"quantity_per_batch"`
	Seed                   int64 `json:"seed"`
}

func DefaultSeedConfig() SeedConfig {
	return SeedConfig{
		Manufacturers:          2,
		Distributors:           1,
		Pharmacies:             2,
		BatchesPerManufacturer: 3,
		QuantityPerBatch:       500,
		Seed:                   42,
	}
}

type product struct {
	name   string
	dosage string
	price  string
}

var products = []product{
	{"Amoxicillin 500mg", "500mg capsule", "0.45"},
	{"Paracetamol 500mg", "500mg tablet", "0.08"},
	{"Metformin 850mg", "850mg tablet", "0.12"},
	{"Atorvastatin 20mg", "20mg tablet", "0.30"},
	{"Insulin Glargine", "100IU/ml 3ml pen", "18.75"},
	{"Salbutamol Inhaler", "100mcg/dose", "4.20"},
}

// Summary counts what a Seed call created. Records that already existed are
// counted as skipped.
type Summary struct {
	Organizations int      `json:"organizations"`
	Members       int      `json:"members"`
	Batches       int      `json:"batches"`
	Skipped       int      `json:"skipped"`
	Warnings      []string `json:"warnings,omitempty"`
}

type Seeder struct {
	orgs    *organization.Service
	batches *batch.Service
	logger  zerolog.Logger
}

func NewSeeder(orgs *organization.Service, batches *batch.Service, logger zerolog.Logger) *Seeder {
	return &Seeder{orgs: orgs, batches: batches, logger: logger.With().Str("component", "sandbox").Logger()}
}

func orgID(prefix string, n int) string {
	return fmt.Sprintf("ORG-%s-%02d", prefix, n)
}

// UserID is the demo member id for an organization, e.g. "org-mfg-01-user".
func UserID(orgID string) string {
	return fmt.Sprintf("%s-user", lower(orgID))
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// Seed creates the demo data. Running it twice against the same stores
// creates nothing new the second time.
func (s *Seeder) Seed(ctx context.Context, cfg SeedConfig) (*Summary, error) {
	rng := rand.New(rand.NewSource(cfg.Seed))
	sum := &Summary{}
	ctx = auth.WithCaller(ctx, &auth.Caller{ID: "sandbox-seeder", Role: auth.RoleAdmin})

	groups := []struct {
		prefix string
		count  int
		typ    organization.Type
		role   auth.Role
		label  string
	}{
		{"MFG", cfg.Manufacturers, organization.TypeManufacturer, auth.RoleManufacturer, "Manufacturing"},
		{"DIST", cfg.Distributors, organization.TypeDistributor, auth.RoleDistributor, "Distribution"},
		{"PHARM", cfg.Pharmacies, organization.TypePharmacy, auth.RolePharmacist, "Pharmacy"},
	}
	var manufacturers []string
	for _, g := range groups {
		for i := 1; i <= g.count; i++ {
			id := orgID(g.prefix, i)
			org := &organization.Organization{OrgID: id, Name: fmt.Sprintf("Demo %s %02d", g.label, i), Type: g.typ, Active: true}
			if err := s.orgs.Create(ctx, org); err != nil {
				if !apperr.Is(err, apperr.KindConflict) {
					return sum, fmt.Errorf("seed organization %s: %w", id, err)
				}
				sum.Skipped++
			} else {
				sum.Organizations++
			}
			if _, err := s.orgs.AddMember(ctx, id, UserID(id), g.role); err != nil {
				return sum, fmt.Errorf("seed member of %s: %w", id, err)
			}
			sum.Members++
			if g.typ == organization.TypeManufacturer {
				manufacturers = append(manufacturers, id)
			}
		}
	}

	made := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	for _, owner := range manufacturers {
		for n := 1; n <= cfg.BatchesPerManufacturer; n++ {
			p := products[rng.Intn(len(products))]
			in := batch.CreateInput{
				BatchID:         fmt.Sprintf("BATCH-%s-%03d", owner[len("ORG-"):], n),
				ProductName:     p.name,
				ManufactureDate: made.AddDate(0, 0, n).Format("2006-01-02"),
				ExpiryDate:      made.AddDate(2, 0, n).Format("2006-01-02"),
				TotalQuantity:   cfg.QuantityPerBatch,
				UnitDosage:      p.dosage,
				UnitPrice:       decimal.RequireFromString(p.price),
				OwnerOrgID:      owner,
			}
			res, err := s.batches.CreateBatch(ctx, in)
			switch {
			case apperr.Is(err, apperr.KindLedgerRejected):
				sum.Skipped++
				continue
			case err != nil:
				return sum, fmt.Errorf("seed batch %s: %w", in.BatchID, err)
			}
			sum.Batches++
			sum.Warnings = append(sum.Warnings, res.Warnings...)
		}
	}

	s.logger.Info().
		Int("organizations", sum.Organizations).
		Int("members", sum.Members).
		Int("batches", sum.Batches).
		Int("skipped", sum.Skipped).
		Msg("demo data seeded")
	return sum, nil
}
