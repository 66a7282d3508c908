package keycloak

import (
	"sync"
)

// Permission names one protected action of the prediction API.
type Permission string

const (
	PermPredict     Permission = "prediction:create"
	PermModelRead   Permission = "model:read"
	PermModelReload Permission = "model:reload"
)

// Role is a realm or client role as it appears in the token.
type Role string

const (
	RoleAdmin    Role = "ppi_admin"
	RoleOperator Role = "ppi_operator"
	RoleClient   Role = "ppi_client"
)

// RolePermissionMapping maps roles to the permissions they grant.
type RolePermissionMapping map[Role][]Permission

// DefaultRolePermissionMapping grants prediction to every role and model
// reload to operators and admins.
func DefaultRolePermissionMapping() RolePermissionMapping {
	return RolePermissionMapping{
		RoleAdmin:    {PermPredict, PermModelRead, PermModelReload},
		RoleOperator: {PermPredict, PermModelRead, PermModelReload},
		RoleClient:   {PermPredict, PermModelRead},
	}
}

// Enforcer answers permission questions for verified claims.  The mapping
// can be swapped at runtime.
type Enforcer struct {
	mu      sync.RWMutex
	mapping RolePermissionMapping
}

// NewEnforcer uses DefaultRolePermissionMapping when mapping is nil.
func NewEnforcer(mapping RolePermissionMapping) *Enforcer {
	if mapping == nil {
		mapping = DefaultRolePermissionMapping()
	}
	return &Enforcer{mapping: mapping}
}

// UpdateMapping replaces the role table.
func (e *Enforcer) UpdateMapping(mapping RolePermissionMapping) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.mapping = mapping
}

// Permissions lists what claims grant, without duplicates.
func (e *Enforcer) Permissions(claims *TokenClaims) []Permission {
	if claims == nil {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	seen := make(map[Permission]bool)
	var out []Permission
	for _, r := range claims.Roles() {
		for _, p := range e.mapping[Role(r)] {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out
}

// Allowed reports whether claims grant perm.
func (e *Enforcer) Allowed(claims *TokenClaims, perm Permission) bool {
	for _, p := range e.Permissions(claims) {
		if p == perm {
			return true
		}
	}
	return false
}

//Personal.AI order the ending
