package tenantdb

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"communityos/internal/tenant"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

const (
	columnTenantID      = "tenant_id"
	columnSoftDeletedAt = "soft_deleted_at"

	// clause markers that keep a reused statement from being narrowed twice
	markerRead  = "tenantdb:read"
	markerWrite = "tenantdb:write"
)

// ErrScopeChanged is returned when a statement already narrowed for one
// tenant is executed again under another.
var ErrScopeChanged = errors.New("tenantdb: statement reused under a different tenant scope")

// scopeMark records the scope a statement was narrowed for. It builds no SQL.
type scopeMark struct {
	tenantID uuid.UUID
	owner    bool
}

func (scopeMark) Build(clause.Builder) {}

func currentMark(tc *tenant.TenantContext) scopeMark {
	id, _ := tc.CurrentTenantID()
	return scopeMark{tenantID: id, owner: tc.IsPlatformOwner()}
}

// checkMark reports whether stmt was already narrowed under name. A mark left
// by a different scope fails the statement.
func (p *Plugin) checkMark(stmt *gorm.Statement, name, op string, mark scopeMark) (marked bool) {
	c, ok := stmt.Clauses[name]
	if !ok {
		return false
	}
	if prev, _ := c.Expression.(scopeMark); prev != mark {
		p.deny(stmt, op, ErrScopeChanged)
	}
	return true
}

func setMark(stmt *gorm.Statement, name string, mark scopeMark) {
	stmt.Clauses[name] = clause.Clause{Name: name, Expression: mark}
}

// Observer receives guard decisions. The metrics package implements it.
type Observer interface {
	ObserveDenied(operation, reason string)
	ObserveBypass(operation string)
}

type nopObserver struct{}

func (nopObserver) ObserveDenied(string, string) {}
func (nopObserver) ObserveBypass(string)         {}

// Option configures the plugin.
type Option func(*Plugin)

// WithLogger routes guard warnings to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Plugin) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithObserver reports guard decisions to o.
func WithObserver(o Observer) Option {
	return func(p *Plugin) {
		if o != nil {
			p.observer = o
		}
	}
}

// Plugin is a gorm plugin enforcing tenant isolation on every statement that
// touches a tenant-scoped table. It holds no tenant state of its own: each
// statement consults the holder found on its context.
type Plugin struct {
	logger   *zap.Logger
	observer Observer

	// model type -> traits
	types sync.Map
	// table name -> traits, for statements built without a model
	tables sync.Map
}

type traits struct {
	scoped      bool
	softDeletes bool
}

// New returns a plugin ready to be passed to db.Use.
func New(opts ...Option) *Plugin {
	p := &Plugin{logger: zap.NewNop(), observer: nopObserver{}}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements gorm.Plugin.
func (p *Plugin) Name() string {
	return "communityos:tenantdb"
}

// Initialize implements gorm.Plugin.
func (p *Plugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	steps := []struct {
		name string
		err  error
	}{
		{"query", cb.Query().Before("gorm:query").Register("tenantdb:filter_query", p.filterRead)},
		{"row", cb.Row().Before("gorm:row").Register("tenantdb:filter_row", p.filterRead)},
		{"raw", cb.Raw().Before("gorm:raw").Register("tenantdb:guard_raw", p.guardExec)},
		{"create", cb.Create().After("gorm:before_create").Before("gorm:create").Register("tenantdb:stamp_create", p.stampCreate)},
		{"update", cb.Update().After("gorm:before_update").Before("gorm:update").Register("tenantdb:guard_update", p.guardUpdate)},
		{"delete", cb.Delete().After("gorm:before_delete").Before("gorm:delete").Register("tenantdb:guard_delete", p.guardDelete)},
	}
	for _, s := range steps {
		if s.err != nil {
			return fmt.Errorf("register tenant %s callback: %w", s.name, s.err)
		}
	}
	return nil
}

// Register records the tables of models so that statements issued with
// db.Table(...) and no model are still recognised as tenant-scoped.
func (p *Plugin) Register(db *gorm.DB, models ...any) error {
	for _, m := range models {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(m); err != nil {
			return fmt.Errorf("parse model %T: %w", m, err)
		}
		p.traitsFor(stmt.Schema)
	}
	return nil
}

// traitsFor classifies a schema and remembers its table.
func (p *Plugin) traitsFor(s *schema.Schema) traits {
	if v, ok := p.types.Load(s.ModelType); ok {
		return v.(traits)
	}
	inst := reflect.New(s.ModelType).Interface()
	_, scoped := inst.(Scoped)
	_, soft := inst.(SoftDeletable)
	t := traits{scoped: scoped, softDeletes: scoped && soft}
	p.types.Store(s.ModelType, t)
	if scoped {
		p.tables.Store(s.Table, t)
	}
	return t
}

// statementTraits resolves the traits of the table a statement targets.
func (p *Plugin) statementTraits(stmt *gorm.Statement) traits {
	if stmt.Schema != nil {
		return p.traitsFor(stmt.Schema)
	}
	if v, ok := p.tables.Load(statementTable(stmt)); ok {
		return v.(traits)
	}
	return traits{}
}

func statementTable(stmt *gorm.Statement) string {
	if stmt.TableExpr != nil {
		if fields := strings.Fields(stmt.TableExpr.SQL); len(fields) > 0 {
			return strings.Trim(fields[0], "`\"")
		}
	}
	return stmt.Table
}

func (p *Plugin) deny(stmt *gorm.Statement, op string, err error) {
	reason := "tenant_not_set"
	switch {
	case errors.Is(err, tenant.ErrCrossTenantWrite):
		reason = "cross_tenant_write"
	case errors.Is(err, gorm.ErrMissingWhereClause):
		reason = "missing_where"
	case errors.Is(err, ErrRawStatement):
		reason = "raw_statement"
	case errors.Is(err, ErrScopeChanged):
		reason = "scope_changed"
	}
	p.observer.ObserveDenied(op, reason)
	p.logger.Warn("tenant guard rejected statement",
		zap.String("operation", op),
		zap.String("table", statementTable(stmt)),
		zap.String("reason", reason),
	)
	_ = stmt.AddError(err)
}

type ctxKey int

const (
	keyIncludeSoftDeleted ctxKey = iota
	keyAllowReassign
	keyMigration
)

// ForMigration marks ctx as a schema migration. Statements issued with it
// pass the guard: migrators inspect and alter scoped tables before any tenant
// exists. Only bootstrap code calls it.
func ForMigration(ctx context.Context) context.Context {
	return context.WithValue(ctx, keyMigration, true)
}

func migrating(ctx context.Context) bool {
	if ctx == nil {
		return false
	}
	v, _ := ctx.Value(keyMigration).(bool)
	return v
}

// IncludeSoftDeleted lifts the soft-delete predicate for reads issued with
// the returned context. The tenant predicate still applies.
func IncludeSoftDeleted(ctx context.Context) context.Context {
	return context.WithValue(ctx, keyIncludeSoftDeleted, true)
}

func includesSoftDeleted(ctx context.Context) bool {
	v, _ := ctx.Value(keyIncludeSoftDeleted).(bool)
	return v
}

func reassignAllowed(ctx context.Context) bool {
	v, _ := ctx.Value(keyAllowReassign).(bool)
	return v
}
