package sqlbind

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/sirnewton01/sqlbind/internal/typeinfo"
)

// Statement is embedded in a statement proxy struct to override the
// location of its statement resource:
//
//	type GetPerson struct {
//		sqlbind.Statement `stmt:"queries/get_person.sql"`
//		...
//	}
//
// Without it the resource is "<TypeName>.sql" at the root of the
// catalog file system.
type Statement = typeinfo.StmtMarker

// ResultRow marks a struct as a result row proxy. The type returned
// by an ExecuteQuery field must embed it.
type ResultRow = typeinfo.RowMarker

// DB couples a database handle with the catalog holding the statement
// text of the proxy types bound on it.
type DB struct {
	sqldb   *sql.DB
	catalog *Catalog
}

// NewDB creates a [DB] from a [sql.DB] and a [Catalog].
func NewDB(sqldb *sql.DB, catalog *Catalog) *DB {
	if sqldb == nil || catalog == nil {
		return nil
	}
	return &DB{sqldb: sqldb, catalog: catalog}
}

// PlainDB returns the underlying database object.
func (db *DB) PlainDB() *sql.DB {
	return db.sqldb
}

// Bind resolves the statement text of the proxy's type, prepares it on
// the database, and fills the proxy's function fields:
//
//   - a field tagged pos:"N" stores its argument in the 1-based
//     parameter slot N;
//   - ExecuteQuery runs the statement as a query and returns its
//     declared result row proxy;
//   - ExecuteUpdate runs the statement and returns the affected row
//     count;
//   - Execute runs the statement; declared as func() (bool, error) the
//     bool reports whether the statement produced a result set;
//   - Close releases the prepared statement.
//
// Execute-family fields may take a leading context.Context; without
// one they run under context.Background. The ctx given to Bind covers
// only resource loading and statement preparation.
//
// The prepared statement is owned by this proxy alone. Setter calls
// mutate shared parameter slots without synchronization, so concurrent
// calls through one proxy are a caller error. Function fields matching
// no operation are left nil; Validate reports them.
func (db *DB) Bind(ctx context.Context, proxy any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	v := reflect.ValueOf(proxy)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("cannot bind %T: need pointer to struct", proxy)
	}
	elem := v.Elem()

	plan, err := typeinfo.Statement(elem.Type())
	if err != nil {
		return fmt.Errorf("%w: %s", ErrShapeMismatch, err)
	}
	text, err := db.catalog.text(elem.Type(), plan.Resource)
	if err != nil {
		return err
	}
	stmt, err := db.sqldb.PrepareContext(ctx, text)
	if err != nil {
		return fmt.Errorf("cannot prepare statement for %s: %w", elem.Type().Name(), err)
	}

	b := &binding{stmt: stmt, params: make([]any, plan.ParamCount)}
	for _, s := range plan.Setters {
		elem.Field(s.Index).Set(b.setter(elem.Type().Field(s.Index).Type, s.Pos))
	}
	if tr := plan.Query; tr != nil {
		elem.Field(tr.Index).Set(b.query(tr))
	}
	if tr := plan.Update; tr != nil {
		elem.Field(tr.Index).Set(b.update(tr))
	}
	if tr := plan.Exec; tr != nil {
		elem.Field(tr.Index).Set(b.execute(tr))
	}
	if tr := plan.Closer; tr != nil {
		elem.Field(tr.Index).Set(reflect.ValueOf(stmt.Close))
	}
	return nil
}

// binding is the state shared by the function fields of one proxy: the
// prepared statement and its parameter slots.
type binding struct {
	stmt   *sql.Stmt
	params []any
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// errValue returns err as a reflect.Value of static type error,
// usable as a MakeFunc result.
func errValue(err error) reflect.Value {
	v := reflect.New(errType).Elem()
	if err != nil {
		v.Set(reflect.ValueOf(err))
	}
	return v
}

// triggerCtx picks the context an execute-family call runs under.
func triggerCtx(tr *typeinfo.Trigger, args []reflect.Value) context.Context {
	if tr.WantsCtx {
		if ctx, ok := args[0].Interface().(context.Context); ok && ctx != nil {
			return ctx
		}
	}
	return context.Background()
}

func (b *binding) setter(ft reflect.Type, pos int) reflect.Value {
	return reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
		b.params[pos-1] = args[0].Interface()
		return nil
	})
}

func (b *binding) query(tr *typeinfo.Trigger) reflect.Value {
	rowType := tr.Row
	return reflect.MakeFunc(tr.Type, func(args []reflect.Value) []reflect.Value {
		fail := func(err error) []reflect.Value {
			return []reflect.Value{reflect.Zero(rowType), errValue(err)}
		}
		rows, err := b.stmt.QueryContext(triggerCtx(tr, args), b.params...)
		if err != nil {
			return fail(err)
		}
		row, err := newRowProxy(rowType, rows)
		if err != nil {
			rows.Close()
			return fail(err)
		}
		return []reflect.Value{row, errValue(nil)}
	})
}

func (b *binding) update(tr *typeinfo.Trigger) reflect.Value {
	return reflect.MakeFunc(tr.Type, func(args []reflect.Value) []reflect.Value {
		fail := func(err error) []reflect.Value {
			return []reflect.Value{reflect.ValueOf(int64(0)), errValue(err)}
		}
		res, err := b.stmt.ExecContext(triggerCtx(tr, args), b.params...)
		if err != nil {
			return fail(err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fail(err)
		}
		return []reflect.Value{reflect.ValueOf(n), errValue(nil)}
	})
}

func (b *binding) execute(tr *typeinfo.Trigger) reflect.Value {
	if tr.Type.NumOut() == 1 {
		return reflect.MakeFunc(tr.Type, func(args []reflect.Value) []reflect.Value {
			_, err := b.stmt.ExecContext(triggerCtx(tr, args), b.params...)
			return []reflect.Value{errValue(err)}
		})
	}

	// The bool form reports whether the statement produced a result
	// set, so it must run as a query.
	return reflect.MakeFunc(tr.Type, func(args []reflect.Value) []reflect.Value {
		fail := func(err error) []reflect.Value {
			return []reflect.Value{reflect.ValueOf(false), errValue(err)}
		}
		rows, err := b.stmt.QueryContext(triggerCtx(tr, args), b.params...)
		if err != nil {
			return fail(err)
		}
		cols, err := rows.Columns()
		if err != nil {
			rows.Close()
			return fail(err)
		}
		hasResultSet := len(cols) > 0
		if !hasResultSet {
			// Drivers run a statement lazily on the first row fetch;
			// step once so statements without a result set still take
			// effect.
			rows.Next()
		}
		err = rows.Err()
		if cerr := rows.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fail(err)
		}
		return []reflect.Value{reflect.ValueOf(hasResultSet), errValue(nil)}
	})
}
