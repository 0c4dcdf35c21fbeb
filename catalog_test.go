package sqlbind

import (
	"reflect"
	"sync"
	"testing/fstest"

	. "gopkg.in/check.v1"
)

type CatalogSuite struct{}

var _ = Suite(&CatalogSuite{})

type teaRecipe struct{}
type coffeeRecipe struct{}

func recipesFS() fstest.MapFS {
	return fstest.MapFS{
		"teaRecipe.sql":    &fstest.MapFile{Data: []byte("SELECT 'tea';")},
		"coffeeRecipe.sql": &fstest.MapFile{Data: []byte("SELECT 'coffee';")},
	}
}

func (s *CatalogSuite) TestLoadAndCache(c *C) {
	fsys := recipesFS()
	catalog := NewCatalog(fsys)
	t := reflect.TypeOf(teaRecipe{})

	text, err := catalog.text(t, "teaRecipe.sql")
	c.Assert(err, IsNil)
	c.Assert(text, Equals, "SELECT 'tea';")

	// The first resolution wins; later file changes are not seen.
	fsys["teaRecipe.sql"] = &fstest.MapFile{Data: []byte("SELECT 'chai';")}
	text, err = catalog.text(t, "teaRecipe.sql")
	c.Assert(err, IsNil)
	c.Assert(text, Equals, "SELECT 'tea';")
}

func (s *CatalogSuite) TestEntriesKeyedByType(c *C) {
	catalog := NewCatalog(recipesFS())

	tea, err := catalog.text(reflect.TypeOf(teaRecipe{}), "teaRecipe.sql")
	c.Assert(err, IsNil)
	coffee, err := catalog.text(reflect.TypeOf(coffeeRecipe{}), "coffeeRecipe.sql")
	c.Assert(err, IsNil)
	c.Assert(tea, Equals, "SELECT 'tea';")
	c.Assert(coffee, Equals, "SELECT 'coffee';")
}

func (s *CatalogSuite) TestMissingResource(c *C) {
	catalog := NewCatalog(recipesFS())
	_, err := catalog.text(reflect.TypeOf(teaRecipe{}), "noSuchRecipe.sql")
	c.Assert(err, ErrorMatches, "cannot load statement for teaRecipe: .*file does not exist")
}

func (s *CatalogSuite) TestMalformedResourcePath(c *C) {
	catalog := NewCatalog(recipesFS())
	for _, path := range []string{"../teaRecipe.sql", "/teaRecipe.sql", ""} {
		_, err := catalog.text(reflect.TypeOf(teaRecipe{}), path)
		c.Assert(err, ErrorMatches, `cannot load statement for teaRecipe: malformed resource path .*`)
	}
}

func (s *CatalogSuite) TestConcurrentResolution(c *C) {
	catalog := NewCatalog(recipesFS())
	t := reflect.TypeOf(teaRecipe{})

	wg := sync.WaitGroup{}
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			text, err := catalog.text(t, "teaRecipe.sql")
			c.Check(err, IsNil)
			c.Check(text, Equals, "SELECT 'tea';")
		}()
	}
	wg.Wait()
}
