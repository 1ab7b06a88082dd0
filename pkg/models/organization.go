package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization is a VA agency tenant.
type Organization struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	CreatedAt     time.Time  `json:"created_at"`
	DeactivatedAt *time.Time `json:"deactivated_at,omitempty"`
}

// IsActive reports whether the organization has not been deactivated.
func (o *Organization) IsActive() bool {
	return o.DeactivatedAt == nil
}

// Membership links a user to an organization.
type Membership struct {
	UserID         string    `json:"user_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

// Organization roles.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)
