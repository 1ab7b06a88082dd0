package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/vaforge/vaforge-engine/pkg/apperrors"
	"github.com/vaforge/vaforge-engine/pkg/database"
	"github.com/vaforge/vaforge-engine/pkg/models"
)

// OrganizationRepository provides data access for organizations and memberships.
type OrganizationRepository interface {
	Create(ctx context.Context, org *models.Organization) error
	Get(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	AddMember(ctx context.Context, m *models.Membership) error
	GetMembership(ctx context.Context, orgID uuid.UUID, userID string) (*models.Membership, error)
	IsMember(ctx context.Context, orgID uuid.UUID, userID string) (bool, error)
}

type organizationRepository struct{}

// NewOrganizationRepository creates a new OrganizationRepository.
func NewOrganizationRepository() OrganizationRepository {
	return &organizationRepository{}
}

var _ OrganizationRepository = (*organizationRepository)(nil)

func (r *organizationRepository) Create(ctx context.Context, org *models.Organization) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	if org.ID == uuid.Nil {
		org.ID = uuid.New()
	}
	org.CreatedAt = time.Now()

	_, err := scope.Conn.Exec(ctx, `
		INSERT INTO organizations (id, name, created_at)
		VALUES ($1, $2, $3)`,
		org.ID, org.Name, org.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

func (r *organizationRepository) Get(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	var org models.Organization
	err := scope.Conn.QueryRow(ctx, `
		SELECT id, name, created_at, deactivated_at
		FROM organizations
		WHERE id = $1`, id).
		Scan(&org.ID, &org.Name, &org.CreatedAt, &org.DeactivatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

func (r *organizationRepository) AddMember(ctx context.Context, m *models.Membership) error {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return fmt.Errorf("no tenant scope in context")
	}

	if m.Role == "" {
		m.Role = models.RoleMember
	}
	m.CreatedAt = time.Now()

	_, err := scope.Conn.Exec(ctx, `
		INSERT INTO user_organizations (user_id, organization_id, role, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, organization_id) DO UPDATE SET role = EXCLUDED.role`,
		m.UserID, m.OrganizationID, m.Role, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

func (r *organizationRepository) GetMembership(ctx context.Context, orgID uuid.UUID, userID string) (*models.Membership, error) {
	scope, ok := database.GetTenantScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no tenant scope in context")
	}

	var m models.Membership
	err := scope.Conn.QueryRow(ctx, `
		SELECT uo.user_id, uo.organization_id, uo.role, uo.created_at
		FROM user_organizations uo
		JOIN organizations o ON o.id = uo.organization_id
		WHERE uo.organization_id = $1 AND uo.user_id = $2 AND o.deactivated_at IS NULL`,
		orgID, userID).
		Scan(&m.UserID, &m.OrganizationID, &m.Role, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotMember
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, nil
}

// IsMember reports whether userID belongs to an active organization.
func (r *organizationRepository) IsMember(ctx context.Context, orgID uuid.UUID, userID string) (bool, error) {
	_, err := r.GetMembership(ctx, orgID, userID)
	if errors.Is(err, apperrors.ErrNotMember) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
