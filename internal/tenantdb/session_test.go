package tenantdb

import (
	"context"
	"testing"

	"communityos/internal/tenant"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func countAll(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	owner := tenant.ForTenant(context.Background(), tenantSE, true)
	var n int64
	require.NoError(t, db.WithContext(IncludeSoftDeleted(owner)).Model(&testNote{}).Count(&n).Error)
	return n
}

func TestSessionCommitEmptyIsNoop(t *testing.T) {
	db, _ := openTestDB(t)
	s := NewSession(db)
	assert.NoError(t, s.Commit(context.Background()))
	assert.Zero(t, s.Len())
}

func TestSessionCommitsInsertsAndUpdates(t *testing.T) {
	db, _ := openTestDB(t)
	se, _ := seedNotes(t, db)

	var existing testNote
	require.NoError(t, db.WithContext(se).Where("title = ?", "se-1").First(&existing).Error)
	existing.Title = "se-1 edited"

	s := NewSession(db)
	fresh := &testNote{Title: "se-3"}
	s.Add(fresh)
	s.Update(&existing)
	require.NoError(t, s.Commit(se))
	assert.Zero(t, s.Len())

	assert.Equal(t, tenantSE, fresh.TenantID)
	var reloaded testNote
	require.NoError(t, db.WithContext(se).First(&reloaded, "id = ?", existing.ID).Error)
	assert.Equal(t, "se-1 edited", reloaded.Title)
	assert.Equal(t, tenantSE, reloaded.TenantID)
	assert.EqualValues(t, 4, countAll(t, db))
}

func TestSessionCrossTenantEntityAbortsBatch(t *testing.T) {
	db, _ := openTestDB(t)
	se, it := seedNotes(t, db)

	var itNote testNote
	require.NoError(t, db.WithContext(it).First(&itNote).Error)
	itNote.Title = "hijacked"

	s := NewSession(db)
	s.Add(&testNote{Title: "se-new-1"}, &testNote{Title: "se-new-2"})
	s.Update(&itNote)

	assert.ErrorIs(t, s.Validate(se), tenant.ErrCrossTenantWrite)
	assert.ErrorIs(t, s.Commit(se), tenant.ErrCrossTenantWrite)
	assert.Equal(t, 3, s.Len())
	assert.EqualValues(t, 3, countAll(t, db))

	var untouched testNote
	require.NoError(t, db.WithContext(it).First(&untouched, "id = ?", itNote.ID).Error)
	assert.Equal(t, "it-1", untouched.Title)
}

func TestSessionDatabaseFailureRollsBack(t *testing.T) {
	db, _ := openTestDB(t)
	se, _ := seedNotes(t, db)

	var existing testNote
	require.NoError(t, db.WithContext(se).First(&existing).Error)

	s := NewSession(db)
	s.Add(&testNote{Title: "ok"})
	duplicate := &testNote{Title: "dup"}
	duplicate.ID = existing.ID
	s.Add(duplicate)

	require.Error(t, s.Commit(se))
	assert.EqualValues(t, 3, countAll(t, db))
}

func TestSessionUpdateOfInvisibleRowFails(t *testing.T) {
	db, _ := openTestDB(t)
	se, _ := seedNotes(t, db)

	ghost := &testNote{Title: "ghost"}
	ghost.ID = uuid.New()

	s := NewSession(db)
	s.Add(&testNote{Title: "before ghost"})
	s.Update(ghost)
	assert.ErrorIs(t, s.Commit(se), ErrNotFound)
	assert.EqualValues(t, 3, countAll(t, db))
}

func TestSessionWithoutTenantFails(t *testing.T) {
	db, _ := openTestDB(t)

	s := NewSession(db)
	s.Add(&testNote{Title: "orphan"})
	assert.ErrorIs(t, s.Validate(context.Background()), tenant.ErrTenantNotSet)
	assert.ErrorIs(t, s.Commit(context.Background()), tenant.ErrTenantNotSet)

	s.Reset()
	s.Add(&testCountry{Name: "Italy"})
	assert.NoError(t, s.Commit(context.Background()))
}

func TestValidateDoesNotStamp(t *testing.T) {
	db, _ := openTestDB(t)
	se := tenant.ForTenant(context.Background(), tenantSE, false)

	row := &testNote{Title: "pending"}
	s := NewSession(db)
	s.Add(row)
	require.NoError(t, s.Validate(se))
	require.NoError(t, s.Validate(se))
	assert.Equal(t, uuid.Nil, row.TenantID)
	assert.True(t, row.CreatedAt.IsZero())
}
