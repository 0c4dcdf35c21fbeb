/*
Package sqlbind binds developer-declared statement types to SQL kept in external files.

The statement text never appears in application code and is never assembled from strings at
runtime, so it cannot be tainted with user data. Each statement is declared as a struct type
whose exported function fields name and type the statement's parameters and triggers, and the
text itself lives in a file resolved by convention from the type's name. Bind prepares the
statement and fills the function fields once; after that every call dispatches directly,
without name lookups.

# Declaring a statement

A statement proxy is a struct with function fields:

	type GetPerson struct {
		SetId        func(int64) `pos:"1"`
		ExecuteQuery func() (*PersonRows, error)
		Close        func() error
	}

Fields tagged pos bind the 1-based positional parameters of the statement. The execute family
is recognised by name: ExecuteQuery runs the statement as a query, ExecuteUpdate runs it and
returns the affected row count, and Execute runs it generically. Each may optionally take a
leading context.Context. The optional Close field releases the prepared statement.

The statement text is read from the file system given to NewCatalog, by default from
"<TypeName>.sql" at its root. With an embed.FS the file sits in the same directory as the
type that declares it. An embedded sqlbind.Statement field overrides the location:

	type GetPerson struct {
		sqlbind.Statement `stmt:"queries/get_person.sql"`
		...
	}

# Result rows

The return type of ExecuteQuery is a second proxy struct describing the result set. It must
embed sqlbind.ResultRow and declare Next and Close along with an accessor per column of
interest:

	type PersonRows struct {
		sqlbind.ResultRow
		Next    func() bool
		Close   func() error
		GetId   func() int64
		GetName func() string
		GetDob  func() time.Time
	}

An accessor reads the column whose label is the accessor name with the Get prefix stripped
and the first character lower-cased, so GetName reads "name". A col tag names the column
explicitly instead. Characters that cannot appear in a Go identifier are matched as
underscores, so GetP_name reads a column labelled "p.name". Rows are scanned into
destinations typed by the accessor return types, so a value that cannot be converted
surfaces as an error rather than a silent misread.

Next advances the cursor and reports whether a row is available. Errors encountered while
advancing or scanning end the iteration and are returned by Close.

# Binding and running

	catalog := sqlbind.NewCatalog(queriesFS)
	db := sqlbind.NewDB(sqldb, catalog)

	get := GetPerson{}
	if err := db.Bind(ctx, &get); err != nil {
		...
	}
	defer get.Close()

	get.SetId(42)
	people, err := get.ExecuteQuery()

A proxy owns its prepared statement. Setters store values into shared parameter slots with
no synchronization, so a proxy must not be used from multiple goroutines at once; bind one
proxy per concurrent unit of work instead. The catalog caches the statement text per type,
so repeated binds only pay for preparation.

# Validation

Mismatches between a declared type and its statement would otherwise only surface when the
statement runs. Validate prepares the statement on a live database and cross-checks the
declared setters against the statement's parameter count and the declared accessors against
its result columns, so every known statement type can be checked in one early startup pass:

	for _, proxy := range []any{GetPerson{}, InsertPerson{}, CreatePeople{}} {
		if err := db.Validate(ctx, proxy); err != nil {
			...
		}
	}

Validation failures wrap ErrShapeMismatch, ErrCountMismatch, ErrColumnMismatch or
ErrTypeMismatch and name the offending field or column.
*/
package sqlbind
