package sqlbind

import "errors"

// Validation failures wrap one of these sentinels so callers can test
// the failure category with errors.Is while the message names the
// offending field or column.
var (
	// ErrShapeMismatch reports a function field whose name, arguments
	// or results do not fit the operation it declares.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrCountMismatch reports a statement whose parameter count
	// differs from the number of positional setters declared on the
	// proxy type.
	ErrCountMismatch = errors.New("parameter count mismatch")

	// ErrColumnMismatch reports a column accessor naming a column the
	// statement does not produce.
	ErrColumnMismatch = errors.New("column mismatch")

	// ErrTypeMismatch reports a column accessor whose return type is
	// not equivalent to the column's database type.
	ErrTypeMismatch = errors.New("type mismatch")
)
