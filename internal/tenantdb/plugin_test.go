package tenantdb

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"communityos/internal/tenant"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var (
	tenantSE = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	tenantIT = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

type testNote struct {
	Model
	SoftDeleteModel
	Title    string
	Comments []testComment `gorm:"foreignKey:NoteID"`
}

type testComment struct {
	Model
	NoteID uuid.UUID `gorm:"type:uuid"`
	Body   string
}

type testCountry struct {
	ID   uint `gorm:"primaryKey"`
	Name string
}

type countingObserver struct {
	denied map[string]int
	bypass map[string]int
}

func (o *countingObserver) ObserveDenied(op, reason string) { o.denied[op+":"+reason]++ }
func (o *countingObserver) ObserveBypass(op string)         { o.bypass[op]++ }

func openTestDB(t *testing.T) (*gorm.DB, *countingObserver) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	obs := &countingObserver{denied: map[string]int{}, bypass: map[string]int{}}
	plugin := New(WithObserver(obs))
	require.NoError(t, db.Use(plugin))
	require.NoError(t, db.WithContext(ForMigration(context.Background())).AutoMigrate(&testNote{}, &testComment{}, &testCountry{}))
	require.NoError(t, plugin.Register(db, &testNote{}, &testComment{}))
	return db, obs
}

func seedNotes(t *testing.T, db *gorm.DB) (se, it context.Context) {
	t.Helper()
	se = tenant.ForTenant(context.Background(), tenantSE, false)
	it = tenant.ForTenant(context.Background(), tenantIT, false)
	require.NoError(t, db.WithContext(se).Create(&[]testNote{{Title: "se-1"}, {Title: "se-2"}}).Error)
	require.NoError(t, db.WithContext(it).Create(&testNote{Title: "it-1"}).Error)
	return se, it
}

func titles(notes []testNote) []string {
	out := make([]string, 0, len(notes))
	for _, n := range notes {
		out = append(out, n.Title)
	}
	return out
}

func TestReadsAreIsolatedPerTenant(t *testing.T) {
	db, _ := openTestDB(t)
	se, it := seedNotes(t, db)

	var seNotes, itNotes []testNote
	require.NoError(t, db.WithContext(se).Order("title").Find(&seNotes).Error)
	require.NoError(t, db.WithContext(it).Find(&itNotes).Error)

	assert.Equal(t, []string{"se-1", "se-2"}, titles(seNotes))
	assert.Equal(t, []string{"it-1"}, titles(itNotes))
	for _, n := range seNotes {
		assert.Equal(t, tenantSE, n.TenantID)
	}

	var count int64
	require.NoError(t, db.WithContext(it).Model(&testNote{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestReadByIDAcrossTenantsFindsNothing(t *testing.T) {
	db, _ := openTestDB(t)
	se, it := seedNotes(t, db)

	var itNote testNote
	require.NoError(t, db.WithContext(it).First(&itNote).Error)

	var got testNote
	err := db.WithContext(se).First(&got, "id = ?", itNote.ID).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestOrConditionsCannotEscapeTenant(t *testing.T) {
	db, _ := openTestDB(t)
	se, _ := seedNotes(t, db)

	var notes []testNote
	err := db.WithContext(se).Where("title = ?", "se-1").Or("title = ?", "it-1").Find(&notes).Error
	require.NoError(t, err)
	assert.Equal(t, []string{"se-1"}, titles(notes))
}

func TestTableOnlyStatementsAreFiltered(t *testing.T) {
	db, _ := openTestDB(t)
	se, _ := seedNotes(t, db)

	var count int64
	require.NoError(t, db.WithContext(se).Table("test_notes").Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestPreloadedChildrenAreFiltered(t *testing.T) {
	db, _ := openTestDB(t)
	se, it := seedNotes(t, db)

	var seNote testNote
	require.NoError(t, db.WithContext(se).Where("title = ?", "se-1").First(&seNote).Error)
	require.NoError(t, db.WithContext(se).Create(&testComment{NoteID: seNote.ID, Body: "mine"}).Error)
	// a row in IT pointing at the SE note must not surface in SE
	require.NoError(t, db.WithContext(it).Create(&testComment{NoteID: seNote.ID, Body: "foreign"}).Error)

	var loaded testNote
	require.NoError(t, db.WithContext(se).Preload("Comments").First(&loaded, "id = ?", seNote.ID).Error)
	require.Len(t, loaded.Comments, 1)
	assert.Equal(t, "mine", loaded.Comments[0].Body)
}

func TestUnsetTenantFailsClosed(t *testing.T) {
	db, obs := openTestDB(t)
	seedNotes(t, db)

	cases := map[string]context.Context{
		"no holder":    context.Background(),
		"empty holder": tenant.WithTenantContext(context.Background(), tenant.NewTenantContext()),
	}
	for name, ctx := range cases {
		t.Run(name, func(t *testing.T) {
			var notes []testNote
			err := db.WithContext(ctx).Find(&notes).Error
			assert.ErrorIs(t, err, tenant.ErrTenantNotSet)
			assert.Empty(t, notes)

			var count int64
			assert.ErrorIs(t, db.WithContext(ctx).Model(&testNote{}).Count(&count).Error, tenant.ErrTenantNotSet)

			assert.ErrorIs(t, db.WithContext(ctx).Create(&testNote{Title: "orphan"}).Error, tenant.ErrTenantNotSet)
		})
	}
	assert.Positive(t, obs.denied["query:tenant_not_set"])
	assert.Positive(t, obs.denied["create:tenant_not_set"])
}

func TestUnscopedModelsAreNotFiltered(t *testing.T) {
	db, _ := openTestDB(t)
	require.NoError(t, db.Create(&testCountry{Name: "Sweden"}).Error)

	var countries []testCountry
	require.NoError(t, db.WithContext(context.Background()).Find(&countries).Error)
	assert.Len(t, countries, 1)
}

func TestPlatformOwnerSeesEveryTenant(t *testing.T) {
	db, obs := openTestDB(t)
	seedNotes(t, db)

	owner := tenant.ForTenant(context.Background(), tenantSE, true)
	var notes []testNote
	require.NoError(t, db.WithContext(owner).Find(&notes).Error)
	assert.Len(t, notes, 3)
	assert.Positive(t, obs.bypass["query"])
}

func TestCreateStampsCurrentTenant(t *testing.T) {
	db, _ := openTestDB(t)
	se := tenant.ForTenant(context.Background(), tenantSE, false)

	note := &testNote{Model: Model{TenantID: tenantIT}, Title: "forged"}
	require.NoError(t, db.WithContext(se).Create(note).Error)
	assert.Equal(t, tenantSE, note.TenantID)
	assert.NotEqual(t, uuid.Nil, note.ID)
	assert.False(t, note.CreatedAt.IsZero())
	assert.Equal(t, note.CreatedAt, note.UpdatedAt)

	batch := []*testNote{{Title: "a"}, {Model: Model{TenantID: tenantIT}, Title: "b"}}
	require.NoError(t, db.WithContext(se).Create(&batch).Error)
	for _, n := range batch {
		assert.Equal(t, tenantSE, n.TenantID)
	}

	owner := tenant.ForTenant(context.Background(), tenantSE, true)
	var stored []testNote
	require.NoError(t, db.WithContext(owner).Find(&stored).Error)
	for _, n := range stored {
		assert.Equal(t, tenantSE, n.TenantID, n.Title)
	}
}

func TestUpsertIsRefused(t *testing.T) {
	db, obs := openTestDB(t)
	se := tenant.ForTenant(context.Background(), tenantSE, false)

	err := db.WithContext(se).Clauses(clause.OnConflict{UpdateAll: true}).Create(&testNote{Title: "x"}).Error
	assert.ErrorIs(t, err, tenant.ErrCrossTenantWrite)
	assert.Equal(t, 1, obs.denied["create:cross_tenant_write"])

	err = db.WithContext(se).Clauses(clause.OnConflict{DoNothing: true}).Create(&testNote{Title: "y"}).Error
	assert.NoError(t, err)
}

func TestCrossTenantUpdateIsRejected(t *testing.T) {
	db, _ := openTestDB(t)
	se, it := seedNotes(t, db)

	var itNote testNote
	require.NoError(t, db.WithContext(it).First(&itNote).Error)

	itNote.Title = "hijacked"
	err := db.WithContext(se).Model(&itNote).Update("title", "hijacked").Error
	assert.ErrorIs(t, err, tenant.ErrCrossTenantWrite)

	// the same row addressed only by id is outside SE's predicate
	res := db.WithContext(se).Model(&testNote{}).Where("id = ?", itNote.ID).Update("title", "hijacked")
	require.NoError(t, res.Error)
	assert.Zero(t, res.RowsAffected)

	var reloaded testNote
	require.NoError(t, db.WithContext(it).First(&reloaded, "id = ?", itNote.ID).Error)
	assert.Equal(t, "it-1", reloaded.Title)
}

func TestCrossTenantDeleteIsRejected(t *testing.T) {
	db, _ := openTestDB(t)
	se, it := seedNotes(t, db)

	var itNote testNote
	require.NoError(t, db.WithContext(it).First(&itNote).Error)

	assert.ErrorIs(t, db.WithContext(se).Delete(&itNote).Error, tenant.ErrCrossTenantWrite)

	res := db.WithContext(se).Where("id = ?", itNote.ID).Delete(&testNote{})
	require.NoError(t, res.Error)
	assert.Zero(t, res.RowsAffected)
}

func TestUpdateCannotRewriteTenant(t *testing.T) {
	db, _ := openTestDB(t)
	se, _ := seedNotes(t, db)

	var note testNote
	require.NoError(t, db.WithContext(se).Where("title = ?", "se-1").First(&note).Error)

	err := db.WithContext(se).Model(&note).Updates(map[string]any{"tenant_id": tenantIT, "title": "renamed"}).Error
	require.NoError(t, err)

	var reloaded testNote
	require.NoError(t, db.WithContext(se).First(&reloaded, "id = ?", note.ID).Error)
	assert.Equal(t, "renamed", reloaded.Title)
	assert.Equal(t, tenantSE, reloaded.TenantID)
}

func TestGlobalWriteStillNeedsWhere(t *testing.T) {
	db, obs := openTestDB(t)
	se, _ := seedNotes(t, db)

	err := db.WithContext(se).Model(&testNote{}).Update("title", "all").Error
	assert.ErrorIs(t, err, gorm.ErrMissingWhereClause)
	assert.Equal(t, 1, obs.denied["update:missing_where"])
}

func TestUnsetTenantCannotWrite(t *testing.T) {
	db, _ := openTestDB(t)
	se, _ := seedNotes(t, db)

	var note testNote
	require.NoError(t, db.WithContext(se).First(&note).Error)

	ctx := context.Background()
	assert.ErrorIs(t, db.WithContext(ctx).Model(&note).Update("title", "x").Error, tenant.ErrTenantNotSet)
	assert.ErrorIs(t, db.WithContext(ctx).Delete(&note).Error, tenant.ErrTenantNotSet)
}

func TestRawSQLOnScopedModelNeedsPlatformOwner(t *testing.T) {
	db, obs := openTestDB(t)
	se, _ := seedNotes(t, db)

	var notes []testNote
	err := db.WithContext(se).Raw("SELECT * FROM test_notes").Find(&notes).Error
	assert.ErrorIs(t, err, ErrRawStatement)
	assert.Equal(t, 1, obs.denied["query:raw_statement"])

	owner := tenant.ForTenant(context.Background(), tenantSE, true)
	require.NoError(t, db.WithContext(owner).Raw("SELECT * FROM test_notes").Find(&notes).Error)
	assert.Len(t, notes, 3)
}

func TestRawSQLScannedIntoPlainStructIsDenied(t *testing.T) {
	db, obs := openTestDB(t)
	se, _ := seedNotes(t, db)

	var rows []struct{ Title string }
	err := db.WithContext(se).Raw("SELECT title FROM test_notes").Scan(&rows).Error
	assert.ErrorIs(t, err, ErrRawStatement)
	assert.Empty(t, rows)
	assert.Positive(t, obs.denied["query:raw_statement"])

	var count int64
	err = db.WithContext(se).Raw(`SELECT count(*) FROM "test_comments"`).Scan(&count).Error
	assert.ErrorIs(t, err, ErrRawStatement)
}

func TestExecOnScopedTableIsDenied(t *testing.T) {
	db, obs := openTestDB(t)
	se, it := seedNotes(t, db)

	res := db.WithContext(se).Model(&testNote{}).Exec("UPDATE test_notes SET title = 'changed'")
	assert.ErrorIs(t, res.Error, ErrRawStatement)
	assert.Zero(t, res.RowsAffected)

	res = db.WithContext(se).Exec("DELETE FROM test_notes")
	assert.ErrorIs(t, res.Error, ErrRawStatement)
	assert.Equal(t, 2, obs.denied["exec:raw_statement"])

	var itNotes []testNote
	require.NoError(t, db.WithContext(it).Find(&itNotes).Error)
	assert.Equal(t, []string{"it-1"}, titles(itNotes))
}

func TestRawSQLOnUnscopedTablePasses(t *testing.T) {
	db, obs := openTestDB(t)
	se, _ := seedNotes(t, db)

	require.NoError(t, db.WithContext(se).Exec("INSERT INTO test_countries (name) VALUES (?)", "Sweden").Error)
	var names []string
	require.NoError(t, db.WithContext(se).Raw("SELECT name FROM test_countries").Scan(&names).Error)
	assert.Equal(t, []string{"Sweden"}, names)
	assert.Empty(t, obs.denied)
}

func TestExecAllowedForOwnerAndMigration(t *testing.T) {
	db, obs := openTestDB(t)
	_, it := seedNotes(t, db)

	owner := tenant.ForTenant(context.Background(), tenantSE, true)
	require.NoError(t, db.WithContext(owner).Exec("UPDATE test_notes SET title = upper(title)").Error)
	assert.Positive(t, obs.bypass["raw"])

	migration := ForMigration(context.Background())
	require.NoError(t, db.WithContext(migration).Exec("CREATE INDEX IF NOT EXISTS ix_test_notes_title ON test_notes (title)").Error)
	require.NoError(t, db.WithContext(migration).AutoMigrate(&testNote{}, &testComment{}))
	assert.Positive(t, obs.bypass["migrate"])

	var itNotes []testNote
	require.NoError(t, db.WithContext(it).Find(&itNotes).Error)
	assert.Equal(t, []string{"IT-1"}, titles(itNotes))
}

func TestMigrationWithoutMarkerFailsOnceTablesAreKnown(t *testing.T) {
	db, _ := openTestDB(t)
	assert.Error(t, db.AutoMigrate(&testNote{}))
}

func TestSoftDeletedRowsAreHidden(t *testing.T) {
	db, _ := openTestDB(t)
	se, _ := seedNotes(t, db)
	repo := NewRepository[testNote](db)

	var note testNote
	require.NoError(t, db.WithContext(se).Where("title = ?", "se-1").First(&note).Error)
	require.NoError(t, repo.SoftDelete(se, &note))
	assert.True(t, note.IsDeleted())

	_, err := repo.Get(se, note.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := repo.Count(se)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	withDeleted := IncludeSoftDeleted(se)
	got, err := repo.Get(withDeleted, note.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted())

	// lifting soft delete never lifts the tenant predicate
	it := IncludeSoftDeleted(tenant.ForTenant(context.Background(), tenantIT, false))
	_, err = repo.Get(it, note.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReusedStatementIsNarrowedOnce(t *testing.T) {
	db, _ := openTestDB(t)
	se, _ := seedNotes(t, db)

	q := db.WithContext(se).Model(&testNote{}).Where("title LIKE ?", "se-%")
	var count int64
	require.NoError(t, q.Count(&count).Error)
	var notes []testNote
	require.NoError(t, q.Find(&notes).Error)
	assert.EqualValues(t, 2, count)
	assert.Len(t, notes, 2)
}

func TestSetIsIdempotent(t *testing.T) {
	db, _ := openTestDB(t)
	seedNotes(t, db)

	ctx, tc := tenant.BeginUnit(context.Background())
	tc.Set(tenantSE, false)
	var first []testNote
	require.NoError(t, db.WithContext(ctx).Find(&first).Error)

	tc.Set(tenantSE, false)
	var second []testNote
	require.NoError(t, db.WithContext(ctx).Find(&second).Error)
	assert.Equal(t, titles(first), titles(second))
}

func TestHolderIsReadPerStatement(t *testing.T) {
	db, _ := openTestDB(t)
	seedNotes(t, db)

	ctx, tc := tenant.BeginUnit(context.Background())
	tc.Set(tenantSE, false)
	var notes []testNote
	require.NoError(t, db.WithContext(ctx).Find(&notes).Error)
	assert.Len(t, notes, 2)

	tc.Clear()
	tc.Set(tenantIT, false)
	require.NoError(t, db.WithContext(ctx).Find(&notes).Error)
	assert.Equal(t, []string{"it-1"}, titles(notes))
}

func TestReassignTenant(t *testing.T) {
	db, _ := openTestDB(t)
	se, it := seedNotes(t, db)

	var note testNote
	require.NoError(t, db.WithContext(se).Where("title = ?", "se-1").First(&note).Error)

	assert.ErrorIs(t, ReassignTenant(se, db, &note, tenantIT), tenant.ErrCrossTenantWrite)

	owner := tenant.ForTenant(context.Background(), tenantSE, true)
	require.NoError(t, ReassignTenant(owner, db, &note, tenantIT))
	assert.Equal(t, tenantIT, note.TenantID)

	var moved testNote
	require.NoError(t, db.WithContext(it).First(&moved, "id = ?", note.ID).Error)
	assert.Equal(t, "se-1", moved.Title)
}
