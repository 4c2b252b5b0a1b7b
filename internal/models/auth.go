package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles recognised by the access layer. Accounts
// live in the external identity system; tokens carry everything needed.
type UserRole string

const (
	RoleCoordinator UserRole = "COORDINATOR"
	RoleApprover    UserRole = "APPROVER"
	RoleOperator    UserRole = "OPERATOR"
	RoleAdmin       UserRole = "ADMIN"
)

// Capability names one permission checked before an operation.
type Capability string

const (
	CapabilityViewRequests    Capability = "requests:view"
	CapabilitySubmitRequests  Capability = "requests:submit"
	CapabilityApproveRequests Capability = "requests:approve"
	CapabilityCancelRequests  Capability = "requests:cancel"
	CapabilityOperateSync     Capability = "sync:operate"
	CapabilityManagePurchases Capability = "purchases:manage"
)

// roleCapabilities maps each role onto the capabilities it grants.
var roleCapabilities = map[UserRole]map[Capability]struct{}{
	RoleCoordinator: {
		CapabilityViewRequests:   {},
		CapabilitySubmitRequests: {},
		CapabilityCancelRequests: {},
	},
	RoleApprover: {
		CapabilityViewRequests:    {},
		CapabilityApproveRequests: {},
	},
	RoleOperator: {
		CapabilityViewRequests:    {},
		CapabilityOperateSync:     {},
		CapabilityManagePurchases: {},
	},
	RoleAdmin: {
		CapabilityViewRequests:    {},
		CapabilitySubmitRequests:  {},
		CapabilityApproveRequests: {},
		CapabilityCancelRequests:  {},
		CapabilityOperateSync:     {},
		CapabilityManagePurchases: {},
	},
}

// HasCapability reports whether the role grants the capability.
func (r UserRole) HasCapability(capability Capability) bool {
	caps, ok := roleCapabilities[r]
	if !ok {
		return false
	}
	_, ok = caps[capability]
	return ok
}

// JWTClaims represents the JWT payload for access tokens. SectorID scopes
// approvers to their own sector; it is empty for every other role.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	SectorID string   `json:"sector_id,omitempty"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
