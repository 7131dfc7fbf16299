// Package identity adapts already-verified bearer credentials into
// request-scoped session descriptors. Token issuance and the
// cryptographic verification contract live with an external collaborator
// behind the Verifier interface; this package owns no session storage.
package identity

import "context"

// Membership statuses. Only an active membership grants cross-tenant
// access during a school switch.
const (
	MembershipActive    = "active"
	MembershipInvited   = "invited"
	MembershipSuspended = "suspended"
)

// Membership links a user to one tenant with a role.
type Membership struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}

// SessionDescriptor is the verified identity for one request. It is
// derived from the bearer credential on every request and never stored
// server-side by this subsystem.
type SessionDescriptor struct {
	UserID       string       `json:"user_id"`
	Role         string       `json:"role"`
	HomeTenantID string       `json:"home_tenant_id"`
	Permissions  []string     `json:"permissions,omitempty"`
	Memberships  []Membership `json:"memberships,omitempty"`
}

// ActiveMembership returns the user's active membership in the tenant.
// Cross-tenant access is legal only via a matching active membership,
// independent of the home tenant.
func (s *SessionDescriptor) ActiveMembership(tenantID string) (*Membership, bool) {
	for i := range s.Memberships {
		m := &s.Memberships[i]
		if m.TenantID == tenantID && m.Status == MembershipActive {
			return m, true
		}
	}
	return nil, false
}

// Verifier validates a raw credential and produces a session descriptor.
// Implementations own expiry and signature checks; callers treat any
// error as an invalid credential.
type Verifier interface {
	Verify(ctx context.Context, token string) (*SessionDescriptor, error)
}
