package tenantdb

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Model carries the columns every tenant-scoped entity has. Embedding it is
// what makes an entity tenant-scoped: the plugin filters its reads and stamps
// or guards its writes.
type Model struct {
	ID        uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	TenantID  uuid.UUID `json:"tenantId" gorm:"type:uuid;not null;index"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null"`
}

func (m *Model) tenantModel() *Model { return m }

// BeforeCreate assigns a random id to rows created without one.
func (m *Model) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// SoftDeleteModel marks an entity as soft-deletable. Rows with SoftDeletedAt
// set are hidden from every read regardless of tenant.
type SoftDeleteModel struct {
	SoftDeletedAt *time.Time `json:"softDeletedAt,omitempty" gorm:"index"`
}

func (m *SoftDeleteModel) softDeleteModel() *SoftDeleteModel { return m }

// IsDeleted reports whether the row has been soft-deleted.
func (m *SoftDeleteModel) IsDeleted() bool {
	return m.SoftDeletedAt != nil
}

// MarkDeleted sets the soft-delete marker. Persisting it is an ordinary
// update and goes through the cross-tenant guard like any other.
func (m *SoftDeleteModel) MarkDeleted(at time.Time) {
	m.SoftDeletedAt = &at
}

// Restore clears the soft-delete marker.
func (m *SoftDeleteModel) Restore() {
	m.SoftDeletedAt = nil
}

// Scoped is implemented by pointers to entities embedding Model.
type Scoped interface {
	tenantModel() *Model
}

// SoftDeletable is implemented by pointers to entities embedding SoftDeleteModel.
type SoftDeletable interface {
	softDeleteModel() *SoftDeleteModel
}
