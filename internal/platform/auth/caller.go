package auth

import "context"

// Role is the single role carried by an authenticated caller.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleManufacturer Role = "manufacturer"
	RoleDistributor  Role = "distributor"
	RolePharmacist   Role = "pharmacist"
	RoleConsumer     Role = "consumer"
)

var knownRoles = map[Role]bool{
	RoleAdmin:        true,
	RoleManufacturer: true,
	RoleDistributor:  true,
	RolePharmacist:   true,
	RoleConsumer:     true,
}

// ParseRole returns the role named by s and whether it is known.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, knownRoles[r]
}

// Caller identifies who is performing an operation.
type Caller struct {
	ID             string
	Role           Role
	OrganizationID string
}

func (c *Caller) IsAdmin() bool {
	return c != nil && c.Role == RoleAdmin
}

// InOrganization reports whether the caller belongs to orgID.
func (c *Caller) InOrganization(orgID string) bool {
	return c != nil && c.OrganizationID != "" && c.OrganizationID == orgID
}

type contextKey string

const callerKey contextKey = "caller"

// WithCaller returns a copy of ctx carrying caller.
func WithCaller(ctx context.Context, caller *Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext returns the authenticated caller, if any.
func CallerFromContext(ctx context.Context) (*Caller, bool) {
	c, ok := ctx.Value(callerKey).(*Caller)
	return c, ok && c != nil && c.ID != ""
}

func UserIDFromContext(ctx context.Context) string {
	if c, ok := CallerFromContext(ctx); ok {
		return c.ID
	}
	return ""
}
