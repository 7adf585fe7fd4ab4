package tenantdb

import (
	"context"
	"fmt"

	"communityos/internal/tenant"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ReassignTenant moves row to newTenant. It is the only path that rewrites
// tenant_id after creation and is reserved for platform-owner units of work.
func ReassignTenant(ctx context.Context, db *gorm.DB, row any, newTenant uuid.UUID) error {
	sc, ok := row.(Scoped)
	if !ok {
		return fmt.Errorf("tenantdb: %T is not tenant-scoped", row)
	}
	if !tenant.Current(ctx).IsPlatformOwner() {
		return tenant.ErrCrossTenantWrite
	}
	if newTenant == uuid.Nil {
		return tenant.ErrInvalidTenantClaim
	}

	ctx = context.WithValue(ctx, keyAllowReassign, true)
	res := db.WithContext(ctx).Model(row).UpdateColumn(columnTenantID, newTenant)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	sc.tenantModel().TenantID = newTenant
	return nil
}
