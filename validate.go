package sqlbind

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"strings"

	"github.com/sirnewton01/sqlbind/internal/sqltext"
	"github.com/sirnewton01/sqlbind/internal/typeinfo"
	"github.com/sirnewton01/sqlbind/internal/typemap"
)

// Validate cross-checks a proxy type against its statement as prepared
// by a live database, so that discrepancies between the declared
// fields and the statement surface at startup (or in a build check)
// rather than on first use. It accepts a proxy value or a pointer to
// one; only the type is examined.
//
// Validate resolves the statement text through the same catalog cache
// as Bind but prepares its own statement handle and releases it before
// returning. Checks run in field declaration order and the first
// violation found is returned:
//
//   - positional setter fields must be named Set*, take exactly one
//     argument of a bindable type and return nothing, and no two may
//     bind the same slot (ErrShapeMismatch);
//   - exported function fields matching no operation are rejected
//     (ErrShapeMismatch);
//   - the number of setters must equal the statement's parameter
//     count and their positions must cover every parameter slot
//     (ErrCountMismatch);
//   - when ExecuteQuery is declared, the statement is run once as a
//     query with every parameter NULL to obtain the result column
//     metadata; each accessor must name an existing column
//     (ErrColumnMismatch) of an equivalent database type
//     (ErrTypeMismatch).
//
// Statements without an ExecuteQuery field are never executed. A type
// that wrongly declares ExecuteQuery on a mutation statement may have
// the mutation executed, with NULL parameters, by the column check.
//
// The shapes of the execute-family fields and of the result row type
// are checked as well, as they are during Bind.
func (db *DB) Validate(ctx context.Context, proxy any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	t := reflect.TypeOf(proxy)
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	plan, err := typeinfo.Statement(t)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrShapeMismatch, err)
	}

	bound := map[int]string{}
	for _, s := range plan.Setters {
		if !strings.HasPrefix(s.Name, "Set") {
			return fmt.Errorf("%w: positional setter %s.%s must begin with Set", ErrShapeMismatch, t.Name(), s.Name)
		}
		if prev, ok := bound[s.Pos]; ok {
			return fmt.Errorf("%w: setters %s and %s on %s both bind parameter %d", ErrShapeMismatch, prev, s.Name, t.Name(), s.Pos)
		}
		bound[s.Pos] = s.Name
		if !typemap.Bindable(s.Param) {
			return fmt.Errorf("%w: setter %s.%s takes %s, which cannot be bound as a statement parameter", ErrShapeMismatch, t.Name(), s.Name, s.Param)
		}
	}
	if len(plan.Unknown) > 0 {
		return fmt.Errorf("%w: func field %s.%s matches no statement operation", ErrShapeMismatch, t.Name(), plan.Unknown[0])
	}

	text, err := db.catalog.text(t, plan.Resource)
	if err != nil {
		return err
	}
	params, err := sqltext.CountPlaceholders(text)
	if err != nil {
		return err
	}
	if len(plan.Setters) != params {
		return fmt.Errorf("%w: statement for %s has %d parameters but %d positional setters are declared",
			ErrCountMismatch, t.Name(), params, len(plan.Setters))
	}
	// The counts matching is not enough: a setter past the last
	// parameter leaves a gap, and execution would then send more
	// arguments than the statement takes.
	for pos := 1; pos <= params; pos++ {
		if _, ok := bound[pos]; !ok {
			return fmt.Errorf("%w: statement for %s has %d parameters but no setter binds parameter %d",
				ErrCountMismatch, t.Name(), params, pos)
		}
	}

	stmt, err := db.sqldb.PrepareContext(ctx, text)
	if err != nil {
		return fmt.Errorf("cannot prepare statement for %s: %w", t.Name(), err)
	}
	defer stmt.Close()

	if plan.Query != nil {
		rowPlan, err := typeinfo.Row(plan.Query.Row.Elem())
		if err != nil {
			return fmt.Errorf("%w: %s", ErrShapeMismatch, err)
		}
		if err := validateColumns(ctx, stmt, params, rowPlan); err != nil {
			return err
		}
	}
	return nil
}

// validateColumns runs the statement with every parameter NULL, which
// yields the result column metadata without requiring any rows, and
// checks each accessor against it.
func validateColumns(ctx context.Context, stmt *sql.Stmt, params int, rowPlan *typeinfo.RowPlan) error {
	rows, err := stmt.QueryContext(ctx, make([]any, params)...)
	if err != nil {
		return fmt.Errorf("cannot inspect result columns of statement for %s: %w", rowPlan.Type.Name(), err)
	}
	types, err := rows.ColumnTypes()
	cerr := rows.Close()
	if err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("cannot inspect result columns of statement for %s: %w", rowPlan.Type.Name(), err)
	}

	for _, a := range rowPlan.Accessors {
		found := false
		dbType := ""
		for _, ct := range types {
			if typeinfo.FoldLabel(ct.Name()) == a.Column {
				found = true
				dbType = ct.DatabaseTypeName()
				break
			}
		}
		if !found {
			return fmt.Errorf("%w: %s has an accessor %s for column %q that doesn't exist",
				ErrColumnMismatch, rowPlan.Type.Name(), a.Name, a.Column)
		}
		if err := typemap.Equivalent(dbType, a.Ret); err != nil {
			return fmt.Errorf("%w: accessor %s.%s: %s", ErrTypeMismatch, rowPlan.Type.Name(), a.Name, err)
		}
	}
	return nil
}
