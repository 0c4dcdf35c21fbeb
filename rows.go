package sqlbind

import (
	"database/sql"
	"fmt"
	"reflect"

	"github.com/sirnewton01/sqlbind/internal/typeinfo"
)

// newRowProxy wraps rows in a freshly allocated result row proxy of
// the given pointer-to-struct type. Every accessor is bound to its
// column index here, once, so a call never searches by name: the
// accessor reads the typed slot the column was scanned into.
func newRowProxy(ptrType reflect.Type, rows *sql.Rows) (reflect.Value, error) {
	plan, err := typeinfo.Row(ptrType.Elem())
	if err != nil {
		return reflect.Value{}, fmt.Errorf("%w: %s", ErrShapeMismatch, err)
	}
	cols, err := rows.Columns()
	if err != nil {
		return reflect.Value{}, err
	}
	folded := make([]string, len(cols))
	for i, col := range cols {
		folded[i] = typeinfo.FoldLabel(col)
	}

	// Columns without an accessor are scanned into throwaway slots.
	dests := make([]any, len(cols))
	for i := range dests {
		dests[i] = new(any)
	}
	slots := make(map[int]reflect.Value, len(plan.Accessors))
	claimed := make(map[int]reflect.Value, len(plan.Accessors))
	for _, a := range plan.Accessors {
		index := -1
		for i, label := range folded {
			if label == a.Column {
				index = i
				break
			}
		}
		if index == -1 {
			return reflect.Value{}, fmt.Errorf("%w: %s has an accessor %s for column %q that doesn't exist",
				ErrColumnMismatch, plan.Type.Name(), a.Name, a.Column)
		}
		if prev, ok := claimed[index]; ok {
			if prev.Type().Elem() != a.Ret {
				return reflect.Value{}, fmt.Errorf("%w: accessors for column %q on %s disagree on its type",
					ErrColumnMismatch, a.Column, plan.Type.Name())
			}
			slots[a.Index] = prev
			continue
		}
		ptr := reflect.New(a.Ret)
		dests[index] = ptr.Interface()
		claimed[index] = ptr
		slots[a.Index] = ptr
	}

	it := &rowIter{rows: rows, dests: dests}
	out := reflect.New(plan.Type)
	row := out.Elem()
	row.Field(plan.NextIndex).Set(reflect.ValueOf(it.next))
	row.Field(plan.CloseIndex).Set(reflect.ValueOf(it.close))
	for _, a := range plan.Accessors {
		ptr := slots[a.Index]
		ft := plan.Type.Field(a.Index).Type
		row.Field(a.Index).Set(reflect.MakeFunc(ft, func(args []reflect.Value) []reflect.Value {
			return []reflect.Value{ptr.Elem()}
		}))
	}
	return out, nil
}

// rowIter advances and releases the cursor behind a result row proxy.
type rowIter struct {
	rows  *sql.Rows
	dests []any
	err   error
}

// next advances the cursor and scans the row into the accessor slots.
// A scan or iteration error ends the iteration and is returned by
// close.
func (it *rowIter) next() bool {
	if it.rows == nil || it.err != nil {
		return false
	}
	if !it.rows.Next() {
		it.err = it.rows.Err()
		return false
	}
	if err := it.rows.Scan(it.dests...); err != nil {
		it.err = err
		return false
	}
	return true
}

// close releases the cursor. It can be called multiple times and
// returns the same error. After close, next reports no more rows.
func (it *rowIter) close() error {
	if it.rows == nil {
		return it.err
	}
	err := it.rows.Close()
	it.rows = nil
	if it.err != nil {
		return it.err
	}
	it.err = err
	return err
}
