package tenantdb

import (
	"reflect"

	"communityos/internal/tenant"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// stampCreate assigns the current tenant and timestamps to every row of an
// INSERT on a scoped table.
func (p *Plugin) stampCreate(db *gorm.DB) {
	stmt := db.Statement
	if db.Error != nil {
		return
	}
	t := p.statementTraits(stmt)
	if !t.scoped {
		return
	}

	tc := tenant.Current(stmt.Context)
	id, err := tc.CurrentTenantID()
	if err != nil {
		p.deny(stmt, "create", err)
		return
	}
	if c, ok := stmt.Clauses["ON CONFLICT"]; ok && !tc.IsPlatformOwner() {
		if oc, ok := c.Expression.(clause.OnConflict); ok && (oc.UpdateAll || len(oc.DoUpdates) > 0) {
			p.deny(stmt, "create", tenant.ErrCrossTenantWrite)
			return
		}
	}

	now := stmt.DB.NowFunc()
	eachRow(stmt.ReflectValue, func(m *Model) {
		m.TenantID = id
		m.CreatedAt = now
		m.UpdatedAt = now
	}, func(row map[string]any) {
		delete(row, "TenantID")
		row[columnTenantID] = id
	})
}

// guardUpdate rejects updates of rows owned by another tenant, narrows the
// statement to the current tenant and keeps tenant_id out of the SET list.
func (p *Plugin) guardUpdate(db *gorm.DB) {
	stmt := db.Statement
	if db.Error != nil {
		return
	}
	t := p.statementTraits(stmt)
	if !t.scoped {
		return
	}
	if !p.guardWrite(stmt, "update") {
		return
	}

	if !reassignAllowed(stmt.Context) {
		stmt.Omits = append(stmt.Omits, columnTenantID, "TenantID")
	}
	now := stmt.DB.NowFunc()
	eachRow(stmt.ReflectValue, func(m *Model) {
		m.UpdatedAt = now
	}, nil)
}

func (p *Plugin) guardDelete(db *gorm.DB) {
	stmt := db.Statement
	if db.Error != nil {
		return
	}
	if !p.statementTraits(stmt).scoped {
		return
	}
	p.guardWrite(stmt, "delete")
}

// guardWrite applies the checks shared by UPDATE and DELETE. It reports
// whether the statement may proceed.
func (p *Plugin) guardWrite(stmt *gorm.Statement, op string) bool {
	tc := tenant.Current(stmt.Context)
	mark := currentMark(tc)
	if p.checkMark(stmt, markerWrite, op, mark) {
		return stmt.DB.Error == nil
	}
	if tc.IsPlatformOwner() {
		p.observer.ObserveBypass(op)
		setMark(stmt, markerWrite, mark)
		return true
	}
	id, err := tc.CurrentTenantID()
	if err != nil {
		p.deny(stmt, op, err)
		return false
	}

	foreign := false
	eachRow(stmt.ReflectValue, func(m *Model) {
		if m.TenantID != uuid.Nil && m.TenantID != id {
			foreign = true
		}
	}, nil)
	if foreign {
		p.deny(stmt, op, tenant.ErrCrossTenantWrite)
		return false
	}

	// The tenant predicate must not stand in for the primary-key condition
	// gorm derives from the model, or a bare Model(&T{}) write would hit the
	// whole tenant.
	if _, hasWhere := stmt.Clauses["WHERE"]; !hasWhere && !stmt.AllowGlobalUpdate && !hasPrimaryKey(stmt) {
		p.deny(stmt, op, gorm.ErrMissingWhereClause)
		return false
	}

	setMark(stmt, markerWrite, mark)
	addConditions(stmt, []clause.Expression{tenantPredicate(id)})
	return true
}

// hasPrimaryKey reports whether the statement's model carries a non-zero
// primary key that gorm will turn into a WHERE condition.
func hasPrimaryKey(stmt *gorm.Statement) bool {
	if stmt.Schema == nil || len(stmt.Schema.PrimaryFields) == 0 {
		return false
	}
	rv := stmt.ReflectValue
	switch rv.Kind() {
	case reflect.Struct:
		return primaryKeySet(stmt, rv)
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if primaryKeySet(stmt, reflect.Indirect(rv.Index(i))) {
				return true
			}
		}
	}
	return false
}

func primaryKeySet(stmt *gorm.Statement, rv reflect.Value) bool {
	if rv.Kind() != reflect.Struct || rv.Type() != stmt.Schema.ModelType {
		return false
	}
	for _, f := range stmt.Schema.PrimaryFields {
		if _, zero := f.ValueOf(stmt.Context, rv); zero {
			return false
		}
	}
	return true
}

// eachRow calls onModel with the embedded Model of every scoped struct held by
// rv, and onMap with every map row.
func eachRow(rv reflect.Value, onModel func(*Model), onMap func(map[string]any)) {
	rv = reflect.Indirect(rv)
	switch rv.Kind() {
	case reflect.Struct:
		if m := modelOf(rv); m != nil {
			onModel(m)
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			eachRow(rv.Index(i), onModel, onMap)
		}
	case reflect.Map:
		if onMap == nil {
			return
		}
		if row, ok := rv.Interface().(map[string]any); ok {
			onMap(row)
		}
	}
}

func modelOf(rv reflect.Value) *Model {
	if !rv.CanAddr() {
		return nil
	}
	if s, ok := rv.Addr().Interface().(Scoped); ok {
		return s.tenantModel()
	}
	return nil
}
