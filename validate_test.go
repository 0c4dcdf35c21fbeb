package sqlbind_test

import (
	"context"
	"errors"
	"time"

	. "gopkg.in/check.v1"

	"github.com/sirnewton01/sqlbind"
)

type ValidateSuite struct{}

var _ = Suite(&ValidateSuite{})

func setupValidationDB(c *C) *sqlbind.DB {
	db := setupDB(c)
	createPeopleTable(c, db)
	return db
}

func (s *ValidateSuite) TestValidTypesPass(c *C) {
	db := setupValidationDB(c)
	defer db.PlainDB().Close()

	for _, proxy := range []any{CreatePeople{}, InsertPerson{}, GetPerson{}, &AllPeople{}, CountPeople{}} {
		err := db.Validate(context.Background(), proxy)
		c.Assert(err, IsNil)
	}
}

func (s *ValidateSuite) TestValidateDoesNotRunMutations(c *C) {
	db := setupValidationDB(c)
	defer db.PlainDB().Close()

	err := db.Validate(nil, InsertPerson{})
	c.Assert(err, IsNil)

	var count int
	err = db.PlainDB().QueryRow("SELECT count(*) FROM people").Scan(&count)
	c.Assert(err, IsNil)
	c.Assert(count, Equals, 0)
}

func (s *ValidateSuite) TestTooFewSetters(c *C) {
	db := setupValidationDB(c)
	defer db.PlainDB().Close()

	type ShortInsert struct {
		sqlbind.Statement `stmt:"InsertPerson.sql"`
		SetId             func(int64)  `pos:"1"`
		SetName           func(string) `pos:"2"`
		ExecuteUpdate     func() (int64, error)
	}
	err := db.Validate(nil, ShortInsert{})
	c.Assert(errors.Is(err, sqlbind.ErrCountMismatch), Equals, true)
	c.Assert(err, ErrorMatches, "parameter count mismatch: statement for ShortInsert has 3 parameters but 2 positional setters are declared")
}

func (s *ValidateSuite) TestTooManySetters(c *C) {
	db := setupValidationDB(c)
	defer db.PlainDB().Close()

	type LongGet struct {
		sqlbind.Statement `stmt:"GetPerson.sql"`
		SetId             func(int64)  `pos:"1"`
		SetName           func(string) `pos:"2"`
		ExecuteQuery      func() (*PersonRows, error)
	}
	err := db.Validate(nil, LongGet{})
	c.Assert(errors.Is(err, sqlbind.ErrCountMismatch), Equals, true)
}

func (s *ValidateSuite) TestSetterPositionsMustCoverParameters(c *C) {
	db := setupValidationDB(c)
	defer db.PlainDB().Close()

	// Three setters over three parameters, but slot 3 is skipped for a
	// slot 4 the statement does not have. Execution would send four
	// arguments to a three-parameter statement, so the count check
	// alone is not enough.
	type SkewedInsert struct {
		sqlbind.Statement `stmt:"InsertPerson.sql"`
		SetId             func(int64)     `pos:"1"`
		SetName           func(string)    `pos:"2"`
		SetDob            func(time.Time) `pos:"4"`
		ExecuteUpdate     func() (int64, error)
	}
	err := db.Validate(nil, SkewedInsert{})
	c.Assert(errors.Is(err, sqlbind.ErrCountMismatch), Equals, true)
	c.Assert(err, ErrorMatches, "parameter count mismatch: statement for SkewedInsert has 3 parameters but no setter binds parameter 3")
}

func (s *ValidateSuite) TestSetterMustBeginWithSet(c *C) {
	db := setupValidationDB(c)
	defer db.PlainDB().Close()

	type PutInsert struct {
		sqlbind.Statement `stmt:"GetPerson.sql"`
		PutId             func(int64) `pos:"1"`
		ExecuteQuery      func() (*PersonRows, error)
	}
	err := db.Validate(nil, PutInsert{})
	c.Assert(errors.Is(err, sqlbind.ErrShapeMismatch), Equals, true)
	c.Assert(err, ErrorMatches, "shape mismatch: positional setter PutInsert.PutId must begin with Set")
}

func (s *ValidateSuite) TestSetterArgumentShape(c *C) {
	db := setupValidationDB(c)
	defer db.PlainDB().Close()

	type PairInsert struct {
		sqlbind.Statement `stmt:"GetPerson.sql"`
		SetPair           func(int64, string) `pos:"1"`
		ExecuteQuery      func() (*PersonRows, error)
	}
	err := db.Validate(nil, PairInsert{})
	c.Assert(errors.Is(err, sqlbind.ErrShapeMismatch), Equals, true)
	c.Assert(err, ErrorMatches, ".*SetPair must take exactly one argument and return nothing")

	type ReturningInsert struct {
		sqlbind.Statement `stmt:"GetPerson.sql"`
		SetId             func(int64) error `pos:"1"`
		ExecuteQuery      func() (*PersonRows, error)
	}
	err = db.Validate(nil, ReturningInsert{})
	c.Assert(errors.Is(err, sqlbind.ErrShapeMismatch), Equals, true)
}

func (s *ValidateSuite) TestDuplicatePosition(c *C) {
	db := setupValidationDB(c)
	defer db.PlainDB().Close()

	type DoubleBind struct {
		sqlbind.Statement `stmt:"GetPerson.sql"`
		SetId             func(int64) `pos:"1"`
		SetOther          func(int64) `pos:"1"`
		ExecuteQuery      func() (*PersonRows, error)
	}
	err := db.Validate(nil, DoubleBind{})
	c.Assert(errors.Is(err, sqlbind.ErrShapeMismatch), Equals, true)
	c.Assert(err, ErrorMatches, ".*SetId and SetOther on DoubleBind both bind parameter 1")
}

func (s *ValidateSuite) TestUnbindableParameterType(c *C) {
	db := setupValidationDB(c)
	defer db.PlainDB().Close()

	type ChannelInsert struct {
		sqlbind.Statement `stmt:"GetPerson.sql"`
		SetId             func(chan int) `pos:"1"`
		ExecuteQuery      func() (*PersonRows, error)
	}
	err := db.Validate(nil, ChannelInsert{})
	c.Assert(errors.Is(err, sqlbind.ErrShapeMismatch), Equals, true)
	c.Assert(err, ErrorMatches, ".*cannot be bound as a statement parameter")
}

func (s *ValidateSuite) TestUnmatchedFuncField(c *C) {
	db := setupValidationDB(c)
	defer db.PlainDB().Close()

	type MistypedStatement struct {
		sqlbind.Statement `stmt:"CountPeople.sql"`
		Execute           func() (bool, error)
		FindEverything    func() error
	}
	err := db.Validate(nil, MistypedStatement{})
	c.Assert(errors.Is(err, sqlbind.ErrShapeMismatch), Equals, true)
	c.Assert(err, ErrorMatches, ".*FindEverything matches no statement operation")
}

func (s *ValidateSuite) TestUpdateReturnShape(c *C) {
	db := setupValidationDB(c)
	defer db.PlainDB().Close()

	type BadUpdate struct {
		sqlbind.Statement `stmt:"InsertPerson.sql"`
		SetId             func(int64)     `pos:"1"`
		SetName           func(string)    `pos:"2"`
		SetDob            func(time.Time) `pos:"3"`
		ExecuteUpdate     func() (int, error)
	}
	err := db.Validate(nil, BadUpdate{})
	c.Assert(errors.Is(err, sqlbind.ErrShapeMismatch), Equals, true)
	c.Assert(err, ErrorMatches, ".*ExecuteUpdate must return an int64 affected row count and an error")
}

func (s *ValidateSuite) TestQueryReturnMustBeRowType(c *C) {
	db := setupValidationDB(c)
	defer db.PlainDB().Close()

	type BareRows struct {
		Next  func() bool
		Close func() error
	}
	type BadQuery struct {
		sqlbind.Statement `stmt:"GetPerson.sql"`
		SetId             func(int64) `pos:"1"`
		ExecuteQuery      func() (*BareRows, error)
	}
	err := db.Validate(nil, BadQuery{})
	c.Assert(errors.Is(err, sqlbind.ErrShapeMismatch), Equals, true)
	c.Assert(err, ErrorMatches, ".*BareRows must embed sqlbind.ResultRow")

	type PrimitiveQuery struct {
		sqlbind.Statement `stmt:"GetPerson.sql"`
		SetId             func(int64) `pos:"1"`
		ExecuteQuery      func() (int, error)
	}
	err = db.Validate(nil, PrimitiveQuery{})
	c.Assert(errors.Is(err, sqlbind.ErrShapeMismatch), Equals, true)
}

func (s *ValidateSuite) TestAccessorColumnMissing(c *C) {
	db := setupValidationDB(c)
	defer db.PlainDB().Close()

	type NicknameRows struct {
		sqlbind.ResultRow
		Next        func() bool
		Close       func() error
		GetNickname func() string
	}
	type NicknameQuery struct {
		sqlbind.Statement `stmt:"GetPerson.sql"`
		SetId             func(int64) `pos:"1"`
		ExecuteQuery      func() (*NicknameRows, error)
	}
	err := db.Validate(nil, NicknameQuery{})
	c.Assert(errors.Is(err, sqlbind.ErrColumnMismatch), Equals, true)
	c.Assert(err, ErrorMatches, `column mismatch: NicknameRows has an accessor GetNickname for column "nickname" that doesn't exist`)
}

func (s *ValidateSuite) TestAccessorColumnTypeMismatch(c *C) {
	db := setupValidationDB(c)
	defer db.PlainDB().Close()

	type MistypedRows struct {
		sqlbind.ResultRow
		Next    func() bool
		Close   func() error
		GetName func() time.Time
	}
	type MistypedQuery struct {
		sqlbind.Statement `stmt:"GetPerson.sql"`
		SetId             func(int64) `pos:"1"`
		ExecuteQuery      func() (*MistypedRows, error)
	}
	err := db.Validate(nil, MistypedQuery{})
	c.Assert(errors.Is(err, sqlbind.ErrTypeMismatch), Equals, true)
	c.Assert(err, ErrorMatches, ".*GetName: database type text is not equivalent to Go type time.Time")
}

func (s *ValidateSuite) TestQueryDeclaredOnMutationReportsNoColumns(c *C) {
	db := setupValidationDB(c)
	defer db.PlainDB().Close()

	// ExecuteQuery on a statement without a result set does not pass
	// silently: the first accessor fails the column check.
	type MisdeclaredInsert struct {
		sqlbind.Statement `stmt:"InsertPerson.sql"`
		SetId             func(int64)     `pos:"1"`
		SetName           func(string)    `pos:"2"`
		SetDob            func(time.Time) `pos:"3"`
		ExecuteQuery      func() (*PersonRows, error)
	}
	err := db.Validate(nil, MisdeclaredInsert{})
	c.Assert(errors.Is(err, sqlbind.ErrColumnMismatch), Equals, true)
	c.Assert(err, ErrorMatches, `column mismatch: PersonRows has an accessor GetId for column "id" that doesn't exist`)
}

func (s *ValidateSuite) TestValidationFailureIsNotCachedAsText(c *C) {
	// A failed validation must not poison later binds: the statement
	// text cache is shared, the prepared handle is not.
	db := setupValidationDB(c)
	defer db.PlainDB().Close()

	type ShortInsert struct {
		sqlbind.Statement `stmt:"InsertPerson.sql"`
		SetId             func(int64) `pos:"1"`
		ExecuteUpdate     func() (int64, error)
	}
	err := db.Validate(nil, ShortInsert{})
	c.Assert(errors.Is(err, sqlbind.ErrCountMismatch), Equals, true)

	insert := InsertPerson{}
	c.Assert(db.Bind(nil, &insert), IsNil)
	c.Assert(insert.Close(), IsNil)
}
