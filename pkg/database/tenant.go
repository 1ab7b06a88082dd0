package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantScope wraps a connection with organization context and ensures cleanup.
// The connection has app.current_organization_id set for RLS policy evaluation.
type TenantScope struct {
	Conn  *pgxpool.Conn
	OrgID uuid.UUID
}

// Close resets tenant context and releases connection to pool.
// This MUST be called to prevent tenant context from leaking to the next request.
func (s *TenantScope) Close() {
	if s.Conn == nil {
		return
	}
	_, _ = s.Conn.Exec(context.Background(), "RESET app.current_organization_id")
	s.Conn.Release()
}

// WithTenant acquires a connection and sets the organization context for RLS.
// The returned TenantScope MUST be closed with defer scope.Close().
func (db *DB) WithTenant(ctx context.Context, orgID uuid.UUID) (*TenantScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}

	_, err = conn.Exec(ctx, "SELECT set_config('app.current_organization_id', $1, false)", orgID.String())
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("failed to set organization context: %w", err)
	}

	return &TenantScope{Conn: conn, OrgID: orgID}, nil
}

// WithoutTenant acquires a connection without tenant context.
// Use this for cross-organization operations such as migrations checks or onboarding.
// The returned TenantScope MUST be closed with defer scope.Close().
func (db *DB) WithoutTenant(ctx context.Context) (*TenantScope, error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &TenantScope{Conn: conn}, nil
}
