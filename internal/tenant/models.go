package tenant

import "github.com/google/uuid"

// Tenant is the root of tenancy. It is deliberately not tenant-scoped: tenant
// codes must resolve before any tenant context exists (login, registration).
type Tenant struct {
	TenantID uuid.UUID `json:"tenantId" gorm:"primaryKey;type:uuid"`
	Code     string    `json:"code" gorm:"size:8;not null;uniqueIndex"`
	Name     string    `json:"name" gorm:"size:200;not null"`
}

// TableName pins the table name.
func (Tenant) TableName() string {
	return "tenants"
}
