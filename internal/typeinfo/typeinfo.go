package typeinfo

import (
	"context"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

// StmtMarker is embedded in a statement proxy struct to override the
// location of its statement resource. The override is given in the
// stmt tag of the embedded field:
//
//	type GetPerson struct {
//		sqlbind.Statement `stmt:"queries/get_person.sql"`
//		...
//	}
//
// Without an override the resource is "<TypeName>.sql" at the root of
// the catalog file system.
type StmtMarker struct{}

// RowMarker marks a struct as a result row proxy. A type returned by
// an ExecuteQuery field must embed it.
type RowMarker struct{}

var (
	stmtMarkerType = reflect.TypeOf(StmtMarker{})
	rowMarkerType  = reflect.TypeOf(RowMarker{})
	ctxType        = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType        = reflect.TypeOf((*error)(nil)).Elem()
	int64Type      = reflect.TypeOf(int64(0))
	boolType       = reflect.TypeOf(false)
)

// Setter is a function field that binds one positional statement
// parameter. Pos is the 1-based parameter slot from the pos tag.
type Setter struct {
	Name  string
	Index int
	Pos   int
	Param reflect.Type
}

// Trigger is a function field that runs the prepared statement. Row is
// the declared return type of an ExecuteQuery trigger and is nil for
// the other triggers.
type Trigger struct {
	Name     string
	Index    int
	Type     reflect.Type
	WantsCtx bool
	Row      reflect.Type
}

// Plan holds the binding information extracted from a statement proxy
// struct type. Fields are recorded in declaration order.
type Plan struct {
	Type     reflect.Type
	Resource string
	Setters  []Setter
	Query    *Trigger
	Update   *Trigger
	Exec     *Trigger
	Closer   *Trigger
	// Unknown lists exported function fields that match no statement
	// operation. They are left nil when the proxy is bound.
	Unknown []string
	// ParamCount is the highest parameter slot bound by a setter.
	ParamCount int
}

// Accessor is a function field on a result row proxy that reads one
// column of the current row. Column is the folded column label it
// binds to.
type Accessor struct {
	Name   string
	Index  int
	Column string
	Ret    reflect.Type
}

// RowPlan holds the binding information extracted from a result row
// proxy struct type.
type RowPlan struct {
	Type       reflect.Type
	NextIndex  int
	CloseIndex int
	Accessors  []Accessor
	Unknown    []string
}

var stmtMutex sync.RWMutex
var stmtCache = make(map[reflect.Type]*Plan)

var rowMutex sync.RWMutex
var rowCache = make(map[reflect.Type]*RowPlan)

// Statement returns the plan of the given statement proxy struct type,
// generating and caching as required.
func Statement(t reflect.Type) (*Plan, error) {
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("can only bind a struct type, got %s", kindOf(t))
	}

	stmtMutex.RLock()
	plan, found := stmtCache[t]
	stmtMutex.RUnlock()
	if found {
		return plan, nil
	}

	plan, err := parseStatement(t)
	if err != nil {
		return nil, err
	}

	stmtMutex.Lock()
	stmtCache[t] = plan
	stmtMutex.Unlock()

	return plan, nil
}

// Row returns the plan of the given result row proxy struct type,
// generating and caching as required.
func Row(t reflect.Type) (*RowPlan, error) {
	if t == nil || t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("result row type must be a struct, got %s", kindOf(t))
	}

	rowMutex.RLock()
	plan, found := rowCache[t]
	rowMutex.RUnlock()
	if found {
		return plan, nil
	}

	plan, err := parseRow(t)
	if err != nil {
		return nil, err
	}

	rowMutex.Lock()
	rowCache[t] = plan
	rowMutex.Unlock()

	return plan, nil
}

func parseStatement(t reflect.Type) (*Plan, error) {
	plan := &Plan{Type: t}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type == stmtMarkerType {
			plan.Resource = f.Tag.Get("stmt")
			continue
		}
		if f.Type.Kind() != reflect.Func || f.PkgPath != "" {
			continue
		}
		if tag, ok := f.Tag.Lookup("pos"); ok {
			setter, err := parseSetter(t, f, i, tag)
			if err != nil {
				return nil, err
			}
			plan.Setters = append(plan.Setters, setter)
			if setter.Pos > plan.ParamCount {
				plan.ParamCount = setter.Pos
			}
			continue
		}
		switch f.Name {
		case "ExecuteQuery":
			tr, err := parseTrigger(t, f, i)
			if err != nil {
				return nil, err
			}
			ft := f.Type
			if ft.NumOut() != 2 || ft.Out(1) != errType {
				return nil, fmt.Errorf("%s.ExecuteQuery must return a result row type and an error", typeName(t))
			}
			row := ft.Out(0)
			if row.Kind() != reflect.Pointer || row.Elem().Kind() != reflect.Struct {
				return nil, fmt.Errorf("%s.ExecuteQuery must return a pointer to a result row struct, got %s", typeName(t), row)
			}
			if !embedsRowMarker(row.Elem()) {
				return nil, fmt.Errorf("result row type %s must embed sqlbind.ResultRow", typeName(row.Elem()))
			}
			tr.Row = row
			plan.Query = tr
		case "ExecuteUpdate":
			tr, err := parseTrigger(t, f, i)
			if err != nil {
				return nil, err
			}
			ft := f.Type
			if ft.NumOut() != 2 || ft.Out(0) != int64Type || ft.Out(1) != errType {
				return nil, fmt.Errorf("%s.ExecuteUpdate must return an int64 affected row count and an error", typeName(t))
			}
			plan.Update = tr
		case "Execute":
			tr, err := parseTrigger(t, f, i)
			if err != nil {
				return nil, err
			}
			ft := f.Type
			switch {
			case ft.NumOut() == 1 && ft.Out(0) == errType:
			case ft.NumOut() == 2 && ft.Out(0) == boolType && ft.Out(1) == errType:
			default:
				return nil, fmt.Errorf("%s.Execute must return an error, or a bool and an error", typeName(t))
			}
			plan.Exec = tr
		case "Close":
			ft := f.Type
			if ft.IsVariadic() || ft.NumIn() != 0 || ft.NumOut() != 1 || ft.Out(0) != errType {
				return nil, fmt.Errorf("%s.Close must be a func() error", typeName(t))
			}
			plan.Closer = &Trigger{Name: f.Name, Index: i, Type: ft}
		default:
			plan.Unknown = append(plan.Unknown, f.Name)
		}
	}
	if plan.Resource == "" {
		if t.Name() == "" {
			return nil, fmt.Errorf("anonymous statement struct needs an explicit stmt location")
		}
		plan.Resource = t.Name() + ".sql"
	}
	return plan, nil
}

func parseSetter(t reflect.Type, f reflect.StructField, index int, tag string) (Setter, error) {
	pos, err := strconv.Atoi(tag)
	if err != nil {
		return Setter{}, fmt.Errorf("invalid pos tag %q on %s.%s", tag, typeName(t), f.Name)
	}
	if pos < 1 {
		return Setter{}, fmt.Errorf("pos tag on %s.%s must be at least 1, got %d", typeName(t), f.Name, pos)
	}
	ft := f.Type
	if ft.IsVariadic() || ft.NumIn() != 1 || ft.NumOut() != 0 {
		return Setter{}, fmt.Errorf("positional setter %s.%s must take exactly one argument and return nothing", typeName(t), f.Name)
	}
	return Setter{Name: f.Name, Index: index, Pos: pos, Param: ft.In(0)}, nil
}

// parseTrigger checks the argument list shared by the execute family:
// no arguments, or a single leading context.Context.
func parseTrigger(t reflect.Type, f reflect.StructField, index int) (*Trigger, error) {
	ft := f.Type
	tr := &Trigger{Name: f.Name, Index: index, Type: ft}
	ins := ft.NumIn()
	if ins == 1 && ft.In(0) == ctxType {
		tr.WantsCtx = true
		ins = 0
	}
	if ins != 0 || ft.IsVariadic() {
		return nil, fmt.Errorf("%s.%s must take no arguments, or a single context.Context", typeName(t), f.Name)
	}
	return tr, nil
}

func parseRow(t reflect.Type) (*RowPlan, error) {
	if !embedsRowMarker(t) {
		return nil, fmt.Errorf("result row type %s must embed sqlbind.ResultRow", typeName(t))
	}
	plan := &RowPlan{Type: t, NextIndex: -1, CloseIndex: -1}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type == rowMarkerType {
			continue
		}
		if f.Type.Kind() != reflect.Func || f.PkgPath != "" {
			continue
		}
		ft := f.Type
		switch {
		case f.Name == "Next":
			if ft.IsVariadic() || ft.NumIn() != 0 || ft.NumOut() != 1 || ft.Out(0) != boolType {
				return nil, fmt.Errorf("%s.Next must be a func() bool", typeName(t))
			}
			plan.NextIndex = i
		case f.Name == "Close":
			if ft.IsVariadic() || ft.NumIn() != 0 || ft.NumOut() != 1 || ft.Out(0) != errType {
				return nil, fmt.Errorf("%s.Close must be a func() error", typeName(t))
			}
			plan.CloseIndex = i
		case strings.HasPrefix(f.Name, "Get") && len(f.Name) > len("Get"):
			if ft.IsVariadic() || ft.NumIn() != 0 || ft.NumOut() != 1 {
				return nil, fmt.Errorf("column accessor %s.%s must take no arguments and return exactly one value", typeName(t), f.Name)
			}
			column, ok := f.Tag.Lookup("col")
			if !ok {
				column = DeriveColumn(f.Name)
			}
			plan.Accessors = append(plan.Accessors, Accessor{
				Name:   f.Name,
				Index:  i,
				Column: FoldLabel(column),
				Ret:    ft.Out(0),
			})
		default:
			plan.Unknown = append(plan.Unknown, f.Name)
		}
	}
	if plan.NextIndex == -1 {
		return nil, fmt.Errorf("result row type %s must declare Next func() bool", typeName(t))
	}
	if plan.CloseIndex == -1 {
		return nil, fmt.Errorf("result row type %s must declare Close func() error", typeName(t))
	}
	return plan, nil
}

func embedsRowMarker(t reflect.Type) bool {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if f.Anonymous && f.Type == rowMarkerType {
			return true
		}
	}
	return false
}

// DeriveColumn maps an accessor name to its column label: the Get
// prefix is stripped and the first remaining character lower-cased,
// so GetName reads the column labelled "name".
func DeriveColumn(name string) string {
	s := strings.TrimPrefix(name, "Get")
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToLower(r)) + s[size:]
}

// FoldLabel replaces characters that cannot appear in a Go identifier
// with underscores, so that an accessor named GetP_name can read a
// column labelled "p.name". Labels are folded on both sides before
// they are compared.
func FoldLabel(label string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return '_'
	}, label)
}

func typeName(t reflect.Type) string {
	if t.Name() == "" {
		return t.String()
	}
	return t.Name()
}

func kindOf(t reflect.Type) string {
	if t == nil {
		return "nil"
	}
	return t.Kind().String()
}
