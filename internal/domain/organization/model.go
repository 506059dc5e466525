package organization

import (
	"strings"
	"time"

	"github.com/rxchain/rxchain/internal/platform/apperr"
)

// Type is the kind of supply-chain party.
type Type string

const (
	TypeManufacturer Type = "manufacturer"
	TypeDistributor  Type = "distributor"
	TypePharmacy     Type = "pharmacy"
)

func ParseType(s string) (Type, bool) {
	switch t := Type(strings.ToLower(strings.TrimSpace(s))); t {
	case TypeManufacturer, TypeDistributor, TypePharmacy:
		return t, true
	}
	return "", false
}

type Organization struct {
	OrgID     string    `json:"org_id"`
	Name      string    `json:"name"`
	Type      Type      `json:"org_type"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (o *Organization) Validate() error {
	if strings.TrimSpace(o.OrgID) == "" {
		return apperr.Validation("org_id is required")
	}
	if len(o.OrgID) > 64 {
		return apperr.Validation("org_id must be at most 64 characters")
	}
	if strings.TrimSpace(o.Name) == "" {
		return apperr.Validation("name is required")
	}
	if _, ok := ParseType(string(o.Type)); !ok {
		return apperr.Validation("org_type must be manufacturer, distributor or pharmacy")
	}
	return nil
}

// Member links a user to an organization under a role.
type Member struct {
	OrganizationID string    `json:"organization_id"`
	UserID         string    `json:"user_id"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}
