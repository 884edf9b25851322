package config

import (
	"strings"

	"github.com/MerlinStacks/overseek-sub002/appctx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const tenantColumn = "tenant_id"

// TenantGuardPlugin adds "tenant_id = <ctx tenant>" to reads, updates and deletes of
// models that carry a tenant_id column.
//
// NOTE:
// - Raw SQL is not covered. Raw statements must filter tenant_id themselves.
// - Creates are not rewritten; callers set TenantId on the row.
// - appctx.ContextKeySkipTenantScope turns the guard off (ops tooling only).
type TenantGuardPlugin struct{}

func NewTenantGuardPlugin() *TenantGuardPlugin { return &TenantGuardPlugin{} }

func (p *TenantGuardPlugin) Name() string { return "tenant_guard" }

func (p *TenantGuardPlugin) Initialize(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		name string
		reg  func(string, func(*gorm.DB)) error
	}{
		{"tenant_guard:query", func(n string, f func(*gorm.DB)) error { return cb.Query().Before("gorm:query").Register(n, f) }},
		{"tenant_guard:row", func(n string, f func(*gorm.DB)) error { return cb.Row().Before("gorm:row").Register(n, f) }},
		{"tenant_guard:update", func(n string, f func(*gorm.DB)) error { return cb.Update().Before("gorm:update").Register(n, f) }},
		{"tenant_guard:delete", func(n string, f func(*gorm.DB)) error { return cb.Delete().Before("gorm:delete").Register(n, f) }},
	}
	for _, h := range hooks {
		if err := h.reg(h.name, scopeToTenant); err != nil {
			return err
		}
	}
	return nil
}

func scopeToTenant(db *gorm.DB) {
	stmt := db.Statement
	if stmt == nil || stmt.Context == nil || stmt.Schema == nil {
		return
	}
	if skip, _ := appctx.GetBool(stmt.Context, appctx.ContextKeySkipTenantScope); skip {
		return
	}
	tenantId, _ := appctx.GetString(stmt.Context, appctx.ContextKeyTenantId)
	if tenantId == "" || stmt.Schema.LookUpField(tenantColumn) == nil {
		return
	}
	if where, ok := stmt.Clauses["WHERE"].Expression.(clause.Where); ok && filtersTenant(where.Exprs) {
		return
	}
	stmt.AddClause(clause.Where{Exprs: []clause.Expression{
		clause.Eq{Column: clause.Column{Table: stmt.Table, Name: tenantColumn}, Value: tenantId},
	}})
}

// filtersTenant reports whether any condition already mentions tenant_id.
func filtersTenant(exprs []clause.Expression) bool {
	for _, e := range exprs {
		switch v := e.(type) {
		case clause.Eq:
			if isTenantColumn(v.Column) {
				return true
			}
		case clause.IN:
			if isTenantColumn(v.Column) {
				return true
			}
		case clause.AndConditions:
			if filtersTenant(v.Exprs) {
				return true
			}
		case clause.Expr:
			// raw fragments such as "tenant_id = ? AND id IN ?"
			if strings.Contains(strings.ToLower(v.SQL), tenantColumn) {
				return true
			}
		}
	}
	return false
}

func isTenantColumn(col any) bool {
	switch c := col.(type) {
	case string:
		return strings.EqualFold(c, tenantColumn)
	case clause.Column:
		return strings.EqualFold(c.Name, tenantColumn)
	}
	return false
}
