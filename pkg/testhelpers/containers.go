// Package testhelpers provides utilities for testing vaforge-engine components.
package testhelpers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/vaforge/vaforge-engine/pkg/database"
	"github.com/vaforge/vaforge-engine/pkg/retry"
)

// PostgresImage is the PostgreSQL image used for integration tests.
const PostgresImage = "postgres:16-alpine"

// EngineDB holds the engine database connection with migrations applied.
// Use this for testing handlers, services, and repositories against a real database.
type EngineDB struct {
	Container testcontainers.Container
	DB        *database.DB
	ConnStr   string
}

var (
	sharedEngineDB     *EngineDB
	sharedEngineDBOnce sync.Once
	sharedEngineDBErr  error
)

// GetEngineDB returns a shared engine database for integration tests.
// The container is created once and reused across all tests in the run,
// with migrations applied.
func GetEngineDB(t *testing.T) *EngineDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedEngineDBOnce.Do(func() {
		sharedEngineDB, sharedEngineDBErr = setupEngineDB()
	})

	if sharedEngineDBErr != nil {
		t.Fatalf("Failed to setup engine database: %v", sharedEngineDBErr)
	}

	return sharedEngineDB
}

func setupEngineDB() (*EngineDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        PostgresImage,
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_DB":       "vaforge_engine_test",
			"POSTGRES_USER":     "vaforge",
			"POSTGRES_PASSWORD": "test_password",
		},
		// Postgres logs readiness twice: once for the init server, once for the real one.
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	connStr := fmt.Sprintf("postgres://vaforge:test_password@%s:%s/vaforge_engine_test?sslmode=disable",
		host, port.Port())

	db, err := database.NewConnection(ctx, &database.Config{
		URL:             connStr,
		ApplicationName: "vaforge-engine-test",
		MaxConnections:  5,
		Connect:         &retry.Config{MaxRetries: 10, InitialDelay: 500 * time.Millisecond, MaxDelay: 500 * time.Millisecond, Multiplier: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to engine database: %w", err)
	}

	if err := database.RunMigrationsOnPool(db, zap.NewNop()); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &EngineDB{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
	}, nil
}

// CreateOrganization inserts an organization with a member, bypassing tenant scope.
func (e *EngineDB) CreateOrganization(t *testing.T, name, userID string) (orgID string) {
	t.Helper()
	ctx := context.Background()

	scope, err := e.DB.WithoutTenant(ctx)
	if err != nil {
		t.Fatalf("failed to create scope for organization setup: %v", err)
	}
	defer scope.Close()

	err = scope.Conn.QueryRow(ctx,
		`INSERT INTO organizations (name) VALUES ($1) RETURNING id::text`, name).Scan(&orgID)
	if err != nil {
		t.Fatalf("failed to create organization: %v", err)
	}

	if userID != "" {
		_, err = scope.Conn.Exec(ctx,
			`INSERT INTO user_organizations (user_id, organization_id, role) VALUES ($1, $2, 'owner')`,
			userID, orgID)
		if err != nil {
			t.Fatalf("failed to add member: %v", err)
		}
	}
	return orgID
}
