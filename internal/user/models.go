package user

import (
	"strings"

	"communityos/internal/tenant"
	"communityos/internal/tenantdb"

	"github.com/google/uuid"
)

// Status is the account state of a member.
type Status string

const (
	StatusActive    Status = "Active"
	StatusSuspended Status = "Suspended"
	StatusBanned    Status = "Banned"
)

// User is a member of one tenant. Emails are unique per tenant, not globally:
// the same address may register in SE and in IT.
type User struct {
	tenantdb.Model
	Email        string      `json:"email" gorm:"size:255;not null;index"`
	PasswordHash string      `json:"-" gorm:"size:255;not null"`
	FirstName    string      `json:"firstName" gorm:"size:100;not null"`
	LastName     string      `json:"lastName" gorm:"size:100;not null"`
	City         *string     `json:"city,omitempty" gorm:"size:100"`
	Bio          *string     `json:"bio,omitempty" gorm:"size:2000"`
	AvatarURL    *string     `json:"avatarUrl,omitempty" gorm:"size:2048"`
	Role         tenant.Role `json:"role" gorm:"size:32;not null"`
	Status       Status      `json:"status" gorm:"size:16;not null"`
}

func (User) TableName() string {
	return "users"
}

// DisplayName is "First Last".
func (u *User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Handle is the local part of the email, used for @mentions.
func (u *User) Handle() string {
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// Blocked reports whether the account may not sign in.
func (u *User) Blocked() bool {
	return u.Status == StatusSuspended || u.Status == StatusBanned
}

// Actor returns the principal u acts as.
func (u *User) Actor() tenant.Actor {
	return tenant.Actor{UserID: u.ID, Role: u.Role}
}

// Profile is the public shape of a member.
type Profile struct {
	UserID    uuid.UUID   `json:"userId"`
	TenantID  uuid.UUID   `json:"tenantId"`
	Email     string      `json:"email"`
	FirstName string      `json:"firstName"`
	LastName  string      `json:"lastName"`
	City      *string     `json:"city"`
	Bio       *string     `json:"bio"`
	AvatarURL *string     `json:"avatarUrl"`
	Role      tenant.Role `json:"role"`
	Status    Status      `json:"status"`
}

// Profile returns the public shape of u.
func (u *User) Profile() Profile {
	return Profile{
		UserID:    u.ID,
		TenantID:  u.TenantID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		City:      u.City,
		Bio:       u.Bio,
		AvatarURL: u.AvatarURL,
		Role:      u.Role,
		Status:    u.Status,
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
