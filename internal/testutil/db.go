// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"communityos/internal/tenant"
	"communityos/internal/tenantdb"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	TenantSE = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	TenantIT = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

var dbSeq atomic.Int64

// OpenDB returns a private in-memory SQLite database with the tenant plugin
// installed and models migrated.
func OpenDB(t testing.TB, models ...any) *gorm.DB {
	t.Helper()
	db, _ := OpenDBWithPlugin(t, models...)
	return db
}

// OpenDBWithPlugin is OpenDB that also returns the installed plugin.
func OpenDBWithPlugin(t testing.TB, models ...any) (*gorm.DB, *tenantdb.Plugin) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	plugin := tenantdb.New()
	require.NoError(t, db.Use(plugin))
	if len(models) > 0 {
		require.NoError(t, db.WithContext(tenantdb.ForMigration(context.Background())).AutoMigrate(models...))
		require.NoError(t, plugin.Register(db, models...))
	}
	return db, plugin
}

// SE returns a unit of work bound to the SE tenant.
func SE() context.Context {
	return tenant.ForTenant(context.Background(), TenantSE, false)
}

// IT returns a unit of work bound to the IT tenant.
func IT() context.Context {
	return tenant.ForTenant(context.Background(), TenantIT, false)
}

// Owner returns a platform-owner unit of work.
func Owner() context.Context {
	return tenant.ForTenant(context.Background(), TenantSE, true)
}
