//go:build integration

package repositories_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"catalog/internal/repositories"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func newPostgresSet(t *testing.T) *repositories.Set {
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:alpine",
		postgres.WithDatabase("catalog"),
		postgres.WithUsername("catalog"),
		postgres.WithPassword("catalog"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(connStr), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, repositories.Migrate(db))

	set := repositories.NewGORMSet(db)
	t.Cleanup(func() { _ = set.Close(ctx) })
	return set
}

func newMongoSet(t *testing.T) *repositories.Set {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForListeningPort("27017/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start MongoDB container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.PortEndpoint(ctx, "27017/tcp", "mongodb")
	require.NoError(t, err)

	client, err := repositories.ConnectMongo(ctx, endpoint)
	require.NoError(t, err)
	db := client.Database(fmt.Sprintf("catalog_%d", time.Now().UnixNano()))
	require.NoError(t, repositories.EnsureIndexes(ctx, db))

	set := repositories.NewMongoSet(client, db)
	t.Cleanup(func() { _ = set.Close(ctx) })
	return set
}

func TestIntegration_Backends(t *testing.T) {
	integrationBackends := map[string]setFactory{
		"postgres": newPostgresSet,
		"mongo":    newMongoSet,
	}

	for name, newSet := range integrationBackends {
		t.Run(name, func(t *testing.T) {
			set := newSet(t)
			t.Run("products", func(t *testing.T) { testProductRepository(t, set.Products) })
			t.Run("unique names", func(t *testing.T) { testUniqueNames(t, set) })
		})
	}
}
