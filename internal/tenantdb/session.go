package tenantdb

import (
	"context"
	"fmt"

	"communityos/internal/tenant"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Session collects pending inserts and updates and writes them in a single
// transaction. Either every change lands or none does.
//
// A Session is not safe for concurrent use; it belongs to one unit of work.
type Session struct {
	db      *gorm.DB
	inserts []any
	updates []any
}

// NewSession returns an empty change set bound to db.
func NewSession(db *gorm.DB) *Session {
	return &Session{db: db}
}

// Add queues rows for insertion. Rows must be pointers.
func (s *Session) Add(rows ...any) {
	s.inserts = append(s.inserts, rows...)
}

// Update queues rows whose full column set is written back on commit.
func (s *Session) Update(rows ...any) {
	s.updates = append(s.updates, rows...)
}

// Len returns the number of pending changes.
func (s *Session) Len() int {
	return len(s.inserts) + len(s.updates)
}

// Reset drops every pending change.
func (s *Session) Reset() {
	s.inserts = nil
	s.updates = nil
}

// Validate runs the tenant checks of Commit without touching the database or
// the queued rows.
func (s *Session) Validate(ctx context.Context) error {
	tc := tenant.Current(ctx)
	if tc.IsPlatformOwner() {
		if !tc.HasTenant() && anyScoped(s.inserts) {
			return tenant.ErrTenantNotSet
		}
		return nil
	}
	id, err := tc.CurrentTenantID()
	if err != nil {
		if anyScoped(s.inserts) || anyScoped(s.updates) {
			return err
		}
		return nil
	}
	for _, row := range s.updates {
		sc, ok := row.(Scoped)
		if !ok {
			continue
		}
		if owner := sc.tenantModel().TenantID; owner != uuid.Nil && owner != id {
			return tenant.ErrCrossTenantWrite
		}
	}
	return nil
}

func anyScoped(rows []any) bool {
	for _, row := range rows {
		if _, ok := row.(Scoped); ok {
			return true
		}
	}
	return false
}

// Commit writes every pending change in one transaction and clears the
// session on success. Committing an empty session is a no-op. On failure the
// transaction is rolled back and the pending changes are kept.
func (s *Session) Commit(ctx context.Context) error {
	if s.Len() == 0 {
		return nil
	}
	if err := s.Validate(ctx); err != nil {
		return err
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, row := range s.inserts {
			if err := tx.Omit(clause.Associations).Create(row).Error; err != nil {
				return fmt.Errorf("insert %T: %w", row, err)
			}
		}
		for _, row := range s.updates {
			res := tx.Model(row).Select("*").Omit(clause.Associations).Updates(row)
			if res.Error != nil {
				return fmt.Errorf("update %T: %w", row, res.Error)
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("update %T: %w", row, ErrNotFound)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.Reset()
	return nil
}
