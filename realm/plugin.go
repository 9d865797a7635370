package realm

import (
	"context"
	"reflect"

	"github.com/mmdatafocus/rms_backend/models"
	"github.com/mmdatafocus/rms_backend/store"
	"github.com/mmdatafocus/rms_backend/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

const realmColumn = "realm_entity"

// Plugin resolves realm_entity on every gorm create, and on updates of a
// loaded record, of models carrying a realm_entity column.
type Plugin struct {
	Resolver *Resolver
}

func NewPlugin(r *Resolver) *Plugin { return &Plugin{Resolver: r} }

func (p *Plugin) Name() string { return "realm_entity" }

func (p *Plugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register("realm_entity:create", p.beforeCreate); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("realm_entity:update", p.beforeUpdate); err != nil {
		return err
	}
	return nil
}

// realmField returns the realm_entity field of the statement's model, or nil
// when the statement must be left alone.
func realmField(db *gorm.DB) *schema.Field {
	if db == nil || db.Statement == nil || db.Statement.Schema == nil {
		return nil
	}
	ctx := db.Statement.Context
	if ctx == nil || utils.IsRealmSkipped(ctx) {
		return nil
	}
	return db.Statement.Schema.LookUpField(realmColumn)
}

// session gives the resolver a store bound to the statement's connection,
// so its reads and realm writes join the same transaction.
func session(db *gorm.DB) *store.Store {
	return store.New(db.Session(&gorm.Session{NewDB: true, Context: db.Statement.Context}))
}

func rowOf(ctx context.Context, sch *schema.Schema, rv reflect.Value) models.Row {
	row := make(models.Row, len(sch.Fields))
	for _, f := range sch.Fields {
		if f.DBName == "" {
			continue
		}
		v, zero := f.ValueOf(ctx, rv)
		if zero {
			continue
		}
		row[f.DBName] = v
	}
	return row
}

func (p *Plugin) beforeCreate(db *gorm.DB) {
	field := realmField(db)
	if field == nil {
		return
	}
	rv := db.Statement.ReflectValue
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			p.assign(db, field, reflect.Indirect(rv.Index(i)))
		}
	case reflect.Struct:
		p.assign(db, field, rv)
	}
}

func (p *Plugin) assign(db *gorm.DB, field *schema.Field, rv reflect.Value) {
	ctx := db.Statement.Context
	sch := db.Statement.Schema
	id, ok, err := p.Resolver.Resolve(ctx, session(db), sch.Table, rowOf(ctx, sch, rv))
	if err != nil {
		_ = db.AddError(err)
		return
	}
	if !ok {
		return
	}
	if err := field.Set(ctx, rv, &id); err != nil {
		_ = db.AddError(err)
	}
}

// beforeUpdate only handles updates through a loaded model; bulk updates
// (Model(&T{}).Where(...)) keep their realm.
func (p *Plugin) beforeUpdate(db *gorm.DB) {
	field := realmField(db)
	if field == nil {
		return
	}
	ctx := db.Statement.Context
	sch := db.Statement.Schema
	rv := db.Statement.ReflectValue
	if rv.Kind() != reflect.Struct || sch.PrioritizedPrimaryField == nil {
		return
	}
	if _, zero := sch.PrioritizedPrimaryField.ValueOf(ctx, rv); zero {
		return
	}

	row := rowOf(ctx, sch, rv)
	if m, ok := db.Statement.Dest.(map[string]interface{}); ok {
		for k, v := range m {
			if f := sch.LookUpField(k); f != nil {
				row[f.DBName] = v
			}
		}
	}
	id, ok, err := p.Resolver.Resolve(ctx, session(db), sch.Table, row)
	if err != nil {
		_ = db.AddError(err)
		return
	}
	if ok {
		db.Statement.SetColumn(realmColumn, id)
	}
}
