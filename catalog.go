package sqlbind

import (
	"fmt"
	"io/fs"
	"reflect"
	"sync"
)

// Catalog resolves and caches the statement text of each proxy type.
// The text is read from the file system given to NewCatalog, so an
// embed.FS keeps statements next to the types that declare them while
// tests can use an fstest.MapFS or os.DirFS.
//
// Text is cached per proxy type for the lifetime of the Catalog. The
// first resolution wins; there is no invalidation.
type Catalog struct {
	fsys fs.FS

	// mutex guards texts.
	mutex sync.RWMutex
	texts map[reflect.Type]string
}

// NewCatalog returns a Catalog reading statement resources from fsys.
func NewCatalog(fsys fs.FS) *Catalog {
	if fsys == nil {
		return nil
	}
	return &Catalog{fsys: fsys, texts: map[reflect.Type]string{}}
}

// text returns the statement text for the proxy type t, loading
// resource from the catalog file system on first use.
func (c *Catalog) text(t reflect.Type, resource string) (string, error) {
	c.mutex.RLock()
	text, found := c.texts[t]
	c.mutex.RUnlock()
	if found {
		return text, nil
	}

	if !fs.ValidPath(resource) {
		return "", fmt.Errorf("cannot load statement for %s: malformed resource path %q", t.Name(), resource)
	}
	raw, err := fs.ReadFile(c.fsys, resource)
	if err != nil {
		return "", fmt.Errorf("cannot load statement for %s: %w", t.Name(), err)
	}

	c.mutex.Lock()
	// The text may have been loaded by someone else since we last
	// checked. The first resolution wins.
	if prev, found := c.texts[t]; found {
		text = prev
	} else {
		text = string(raw)
		c.texts[t] = text
	}
	c.mutex.Unlock()

	return text, nil
}
