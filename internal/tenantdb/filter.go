package tenantdb

import (
	"errors"
	"strings"
	"unicode"

	"communityos/internal/tenant"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrRawStatement is returned when hand-written SQL touches a tenant-scoped
// table outside a platform-owner unit of work.
var ErrRawStatement = errors.New("tenantdb: raw sql against a tenant-scoped model")

// filterRead narrows SELECT statements on scoped tables to the current tenant
// and hides soft-deleted rows.
func (p *Plugin) filterRead(db *gorm.DB) {
	stmt := db.Statement
	if db.Error != nil {
		return
	}
	if stmt.SQL.Len() > 0 {
		p.guardRaw(stmt, "query")
		return
	}
	t := p.statementTraits(stmt)
	if !t.scoped {
		return
	}
	if migrating(stmt.Context) {
		p.observer.ObserveBypass("migrate")
		return
	}
	tc := tenant.Current(stmt.Context)
	owner := tc.IsPlatformOwner()
	mark := currentMark(tc)
	if p.checkMark(stmt, markerRead, "query", mark) {
		return
	}

	var exprs []clause.Expression
	if owner {
		p.observer.ObserveBypass("query")
	} else {
		id, err := tc.CurrentTenantID()
		if err != nil {
			p.deny(stmt, "query", err)
			return
		}
		exprs = append(exprs, tenantPredicate(id))
	}
	if t.softDeletes && !includesSoftDeleted(stmt.Context) {
		exprs = append(exprs, clause.Eq{
			Column: clause.Column{Table: clause.CurrentTable, Name: columnSoftDeletedAt},
			Value:  nil,
		})
	}

	setMark(stmt, markerRead, mark)
	addConditions(stmt, exprs)
}

// guardExec screens statements run through db.Exec.
func (p *Plugin) guardExec(db *gorm.DB) {
	if db.Error != nil || db.Statement.SQL.Len() == 0 {
		return
	}
	p.guardRaw(db.Statement, "exec")
}

// guardRaw rejects hand-written SQL that targets a scoped model or names a
// scoped table anywhere in its text, whatever it scans into. Raw SQL cannot
// be narrowed, so only platform owners and migrations may run it.
func (p *Plugin) guardRaw(stmt *gorm.Statement, op string) {
	if !p.rawTouchesScoped(stmt) {
		return
	}
	switch {
	case migrating(stmt.Context):
		p.observer.ObserveBypass("migrate")
	case tenant.Current(stmt.Context).IsPlatformOwner():
		p.observer.ObserveBypass("raw")
	default:
		p.deny(stmt, op, ErrRawStatement)
	}
}

func (p *Plugin) rawTouchesScoped(stmt *gorm.Statement) bool {
	if stmt.Schema != nil && p.traitsFor(stmt.Schema).scoped {
		return true
	}
	if _, ok := p.tables.Load(statementTable(stmt)); ok {
		return true
	}
	words := strings.FieldsFunc(strings.ToLower(stmt.SQL.String()), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
	for _, w := range words {
		if _, ok := p.tables.Load(w); ok {
			return true
		}
	}
	return false
}

func tenantPredicate(id any) clause.Expression {
	return clause.Eq{
		Column: clause.Column{Table: clause.CurrentTable, Name: columnTenantID},
		Value:  id,
	}
}

// addConditions ANDs exprs onto the statement's WHERE. Existing conditions
// containing an OR are grouped first so the new predicates bind to all of them.
func addConditions(stmt *gorm.Statement, exprs []clause.Expression) {
	if len(exprs) == 0 {
		return
	}
	if c, ok := stmt.Clauses["WHERE"]; ok {
		if where, ok := c.Expression.(clause.Where); ok && len(where.Exprs) > 0 {
			for _, expr := range where.Exprs {
				if _, isOr := expr.(clause.OrConditions); isOr {
					where.Exprs = []clause.Expression{clause.AndConditions{Exprs: where.Exprs}}
					c.Expression = where
					stmt.Clauses["WHERE"] = c
					break
				}
			}
		}
	}
	stmt.AddClause(clause.Where{Exprs: exprs})
}
