// Package typemap maps database type names onto equivalent Go types.
// The names cover the SQLite, PostgreSQL and MySQL vocabularies so the
// validator works against any of those drivers.
package typemap

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"reflect"
	"strings"
	"time"
)

type class int

const (
	classUnknown class = iota
	classInt
	classFloat
	classText
	classBool
	classTime
	classBytes
)

var nameClasses = map[string]class{
	"INT":              classInt,
	"INTEGER":          classInt,
	"TINYINT":          classInt,
	"SMALLINT":         classInt,
	"MEDIUMINT":        classInt,
	"BIGINT":           classInt,
	"UNSIGNED BIG INT": classInt,
	"INT2":             classInt,
	"INT4":             classInt,
	"INT8":             classInt,
	"SERIAL":           classInt,
	"BIGSERIAL":        classInt,

	"REAL":             classFloat,
	"FLOAT":            classFloat,
	"DOUBLE":           classFloat,
	"DOUBLE PRECISION": classFloat,
	"NUMERIC":          classFloat,
	"DECIMAL":          classFloat,

	"CHARACTER": classText,
	"CHAR":      classText,
	"NCHAR":     classText,
	"VARCHAR":   classText,
	"NVARCHAR":  classText,
	"TEXT":      classText,
	"CLOB":      classText,
	"UUID":      classText,
	"JSON":      classText,

	"BOOL":    classBool,
	"BOOLEAN": classBool,

	"DATE":        classTime,
	"DATETIME":    classTime,
	"TIME":        classTime,
	"TIMESTAMP":   classTime,
	"TIMESTAMPTZ": classTime,

	"BLOB":      classBytes,
	"BYTEA":     classBytes,
	"BINARY":    classBytes,
	"VARBINARY": classBytes,
}

var (
	timeType    = reflect.TypeOf(time.Time{})
	bytesType   = reflect.TypeOf([]byte(nil))
	scannerType = reflect.TypeOf((*sql.Scanner)(nil)).Elem()
	valuerType  = reflect.TypeOf((*driver.Valuer)(nil)).Elem()
)

// classify normalises a database type name reported by the driver.
// Size arguments such as VARCHAR(70) are stripped before lookup.
func classify(name string) class {
	name = strings.ToUpper(strings.TrimSpace(name))
	if i := strings.IndexByte(name, '('); i != -1 {
		name = strings.TrimSpace(name[:i])
	}
	return nameClasses[name]
}

// Equivalent reports whether a Go type can hold values of the named
// database type. An empty or unrecognised database type name passes;
// drivers report nothing for computed columns and every driver has
// names of its own.
func Equivalent(dbType string, t reflect.Type) error {
	// An untyped accessor takes any column.
	if t.Kind() == reflect.Interface && t.NumMethod() == 0 {
		return nil
	}
	if t.Implements(scannerType) || reflect.PointerTo(t).Implements(scannerType) {
		return nil
	}
	cls := classify(dbType)
	if cls == classUnknown {
		return nil
	}

	// A pointer accessor type reads a nullable column.
	elem := t
	if elem.Kind() == reflect.Pointer {
		elem = elem.Elem()
	}

	ok := false
	switch cls {
	case classInt:
		ok = isIntegerKind(elem.Kind())
	case classFloat:
		ok = elem.Kind() == reflect.Float32 || elem.Kind() == reflect.Float64 || isIntegerKind(elem.Kind())
	case classText:
		ok = elem.Kind() == reflect.String || elem == bytesType
	case classBool:
		ok = elem.Kind() == reflect.Bool || isIntegerKind(elem.Kind())
	case classTime:
		ok = elem == timeType || elem.Kind() == reflect.String
	case classBytes:
		ok = elem == bytesType || elem.Kind() == reflect.String
	}
	if !ok {
		return fmt.Errorf("database type %s is not equivalent to Go type %s", dbType, t)
	}
	return nil
}

// Bindable reports whether a value of the Go type can be passed as a
// statement parameter through database/sql.
func Bindable(t reflect.Type) bool {
	if t == nil {
		return false
	}
	if t.Implements(valuerType) {
		return true
	}
	if t == timeType || t == bytesType {
		return true
	}
	if t.Kind() == reflect.Pointer {
		return Bindable(t.Elem())
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String, reflect.Float32, reflect.Float64:
		return true
	}
	return isIntegerKind(t.Kind())
}

func isIntegerKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
