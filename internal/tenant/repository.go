package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads and writes the tenants table. Tenants are visible to every
// caller, so none of these methods consult the tenant holder.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Tenant, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, tenants ...*Tenant) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a gorm-backed tenant repository.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

// NormalizeCode upper-cases and trims a tenant code ("se " -> "SE").
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (r *repository) FindByCode(ctx context.Context, code string) (*Tenant, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, ErrTenantNotFound
	}
	var t Tenant
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("find tenant by code: %w", err)
	}
	return &t, nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	var t Tenant
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("find tenant by id: %w", err)
	}
	return &t, nil
}

func (r *repository) List(ctx context.Context) ([]Tenant, error) {
	var items []Tenant
	if err := r.db.WithContext(ctx).Order("code ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	return items, nil
}

func (r *repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&Tenant{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count tenants: %w", err)
	}
	return n, nil
}

func (r *repository) Create(ctx context.Context, tenants ...*Tenant) error {
	if len(tenants) == 0 {
		return nil
	}
	for _, t := range tenants {
		t.Code = NormalizeCode(t.Code)
		if t.TenantID == uuid.Nil {
			t.TenantID = uuid.New()
		}
	}
	if err := r.db.WithContext(ctx).Create(&tenants).Error; err != nil {
		return fmt.Errorf("create tenants: %w", err)
	}
	return nil
}
