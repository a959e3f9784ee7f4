// Package access holds the permission gate: which role may perform which
// action, and the explicit caller context every service operation receives.
package access

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tendant/agencyhub/pkg/domain"
)

// Action is a capability checked by the gate, named "resource:verb".
type Action string

const (
	ActionAgencyRead         Action = "agency:read"
	ActionAgencyUpdate       Action = "agency:update"
	ActionAgencyDelete       Action = "agency:delete"
	ActionAgencyExport       Action = "agency:export"
	ActionMembersRead        Action = "members:read"
	ActionMembersManage      Action = "members:manage"
	ActionConsultationsRead  Action = "consultations:read"
	ActionConsultationsWrite Action = "consultations:write"
	ActionPackagesRead       Action = "packages:read"
	ActionPackagesWrite      Action = "packages:write"
	ActionInvoicesRead       Action = "invoices:read"
	ActionInvoicesWrite      Action = "invoices:write"
	ActionPaymentsManage     Action = "payments:manage"
	ActionActivityRead       Action = "activity:read"
)

// AllActions lists every action known to the gate.
var AllActions = []Action{
	ActionAgencyRead,
	ActionAgencyUpdate,
	ActionAgencyDelete,
	ActionAgencyExport,
	ActionMembersRead,
	ActionMembersManage,
	ActionConsultationsRead,
	ActionConsultationsWrite,
	ActionPackagesRead,
	ActionPackagesWrite,
	ActionInvoicesRead,
	ActionInvoicesWrite,
	ActionPaymentsManage,
	ActionActivityRead,
}

// Mutates returns true if the action changes persisted state.
func (a Action) Mutates() bool {
	_, verb, ok := strings.Cut(string(a), ":")
	if !ok {
		return false
	}
	switch verb {
	case "update", "delete", "write", "manage":
		return true
	}
	return false
}

// Known returns true if the action is one of AllActions.
func (a Action) Known() bool {
	for _, known := range AllActions {
		if a == known {
			return true
		}
	}
	return false
}

// Caller is the authenticated actor of a request, resolved once per request
// and passed explicitly to every service operation.
type Caller struct {
	UserID       uuid.UUID
	AgencyID     uuid.UUID
	MembershipID uuid.UUID
	Role         domain.Role
	Email        string
	Name         string
	IP           string
	UserAgent    string
	SessionID    string
	// ReadOnly is set when the agency's scheduled deletion time has passed.
	ReadOnly bool
}

type contextKey struct{}

// WithCaller stores the caller in the context.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// CallerFromContext extracts the caller stored by WithCaller.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(contextKey{}).(Caller)
	return c, ok
}

// Policy maps roles to the set of actions they may perform.
type Policy struct {
	roles map[domain.Role]map[Action]struct{}
}

// NewPolicy builds a policy from role -> actions.
func NewPolicy(roles map[domain.Role][]Action) (*Policy, error) {
	p := &Policy{roles: make(map[domain.Role]map[Action]struct{}, len(roles))}
	for role, actions := range roles {
		if !role.Valid() {
			return nil, fmt.Errorf("unknown role %q", role)
		}
		set := make(map[Action]struct{}, len(actions))
		for _, a := range actions {
			if !a.Known() {
				return nil, fmt.Errorf("unknown action %q for role %q", a, role)
			}
			set[a] = struct{}{}
		}
		p.roles[role] = set
	}
	return p, nil
}

// DefaultPolicy returns the built-in role matrix.
func DefaultPolicy() *Policy {
	admin := make([]Action, 0, len(AllActions))
	for _, a := range AllActions {
		if a != ActionAgencyDelete {
			admin = append(admin, a)
		}
	}

	p, err := NewPolicy(map[domain.Role][]Action{
		domain.RoleOwner: AllActions,
		domain.RoleAdmin: admin,
		domain.RoleMember: {
			ActionAgencyRead,
			ActionMembersRead,
			ActionConsultationsRead,
			ActionConsultationsWrite,
			ActionPackagesRead,
			ActionInvoicesRead,
		},
	})
	if err != nil {
		panic(err)
	}
	return p
}

// Allowed reports whether role may perform action.
func (p *Policy) Allowed(role domain.Role, action Action) bool {
	actions, ok := p.roles[role]
	if !ok {
		return false
	}
	_, ok = actions[action]
	return ok
}

// Require fails with domain.ErrPermissionDenied when the caller's role lacks
// the action, and with domain.ErrAgencyReadOnly when a mutating action is
// attempted on an agency past its scheduled deletion.
func (p *Policy) Require(c Caller, action Action) error {
	if !p.Allowed(c.Role, action) {
		return fmt.Errorf("%w: role %s cannot %s", domain.ErrPermissionDenied, c.Role, action)
	}
	if c.ReadOnly && action.Mutates() {
		return domain.ErrAgencyReadOnly
	}
	return nil
}
