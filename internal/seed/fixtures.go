package seed

import (
	"fmt"
	"os"

	"communityos/internal/tenant"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Fixtures describes the tenants and accounts created on an empty database.
type Fixtures struct {
	Tenants       []TenantFixture `yaml:"tenants"`
	PlatformOwner *OwnerFixture   `yaml:"platform_owner"`
}

// TenantFixture is one tenant and its initial members.
type TenantFixture struct {
	ID    uuid.UUID     `yaml:"id"`
	Code  string        `yaml:"code"`
	Name  string        `yaml:"name"`
	Users []UserFixture `yaml:"users"`
}

// UserFixture is one seeded account.
type UserFixture struct {
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	City      string `yaml:"city"`
	Role      string `yaml:"role"`
}

// OwnerFixture is the platform owner account, homed in TenantCode.
type OwnerFixture struct {
	TenantCode string `yaml:"tenant_code"`
	UserFixture `yaml:",inline"`
}

var (
	sweden = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	italy  = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

// Default returns the two demo tenants with no accounts.
func Default() *Fixtures {
	return &Fixtures{Tenants: []TenantFixture{
		{ID: sweden, Code: "SE", Name: "Sweden"},
		{ID: italy, Code: "IT", Name: "Italy"},
	}}
}

// LoadFile reads fixtures from a YAML file.
func LoadFile(path string) (*Fixtures, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and checks YAML fixtures.
func Parse(raw []byte) (*Fixtures, error) {
	var f Fixtures
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("decode seed file: %w", err)
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Fixtures) validate() error {
	codes := make(map[string]bool, len(f.Tenants))
	for i := range f.Tenants {
		t := &f.Tenants[i]
		t.Code = tenant.NormalizeCode(t.Code)
		if t.Code == "" || len(t.Code) > 8 {
			return fmt.Errorf("seed: tenant %d has invalid code %q", i, t.Code)
		}
		if codes[t.Code] {
			return fmt.Errorf("seed: duplicate tenant code %q", t.Code)
		}
		codes[t.Code] = true
		for _, u := range t.Users {
			if err := u.validate(); err != nil {
				return fmt.Errorf("seed: tenant %s: %w", t.Code, err)
			}
		}
	}
	if o := f.PlatformOwner; o != nil {
		o.TenantCode = tenant.NormalizeCode(o.TenantCode)
		if !codes[o.TenantCode] {
			return fmt.Errorf("seed: platform owner tenant %q is not seeded", o.TenantCode)
		}
		if o.Email == "" || o.Password == "" {
			return fmt.Errorf("seed: platform owner needs email and password")
		}
	}
	return nil
}

func (u UserFixture) validate() error {
	if u.Email == "" || u.Password == "" {
		return fmt.Errorf("user %q needs email and password", u.Email)
	}
	if u.Role != "" {
		if _, ok := tenant.ParseRole(u.Role); !ok {
			return fmt.Errorf("user %s has unknown role %q", u.Email, u.Role)
		}
	}
	return nil
}

func (f *Fixtures) tenantByCode(code string) *TenantFixture {
	for i := range f.Tenants {
		if f.Tenants[i].Code == code {
			return &f.Tenants[i]
		}
	}
	return nil
}
