// Package dbtest starts a throwaway postgres for integration tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/pubshark/backend/internal/config"
	"github.com/pubshark/backend/internal/database"
)

// New returns a migrated database backed by a fresh container. The test is
// skipped under -short or when no container runtime is reachable.
func New(t *testing.T) database.Service {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("pubshark"),
		tcpostgres.WithUsername("pubshark"),
		tcpostgres.WithPassword("pubshark"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}

	svc, err := database.Open(postgres.Open(dsn), config.DBConfig{Name: "pubshark"}, zap.NewNop())
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

// DB is New(t).GetDB().
func DB(t *testing.T) *gorm.DB {
	t.Helper()
	return New(t).GetDB()
}
