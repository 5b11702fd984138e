// Package catalog loads the static diagnostic test catalog. The catalog is
// validated once at load time and is read-only afterwards.
package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/diagnostic-test-advisor/internal/domain"
)

//go:embed default_catalog.json
var defaultCatalog []byte

// Catalog is an immutable, ordered collection of tests. Catalog order is the
// tie-break order for every stable sort in the engine.
type Catalog struct {
	tests []domain.Test
	index map[string]int
}

// New validates tests and builds a catalog preserving their order.
func New(tests []domain.Test) (*Catalog, error) {
	c := &Catalog{
		tests: make([]domain.Test, 0, len(tests)),
		index: make(map[string]int, len(tests)),
	}

	var errs []error
	for i := range tests {
		t := tests[i]
		if err := t.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("test %d (%q): %w", i, t.ID, err))
			continue
		}
		if _, dup := c.index[t.ID]; dup {
			errs = append(errs, fmt.Errorf("test %d: duplicate id %q", i, t.ID))
			continue
		}
		c.index[t.ID] = len(c.tests)
		c.tests = append(c.tests, cloneTest(t))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidCatalog, errors.Join(errs...))
	}

	return c, nil
}

// Default returns the catalog bundled with the binary.
func Default() (*Catalog, error) {
	return Decode(defaultCatalog)
}

// Load reads a JSON catalog from path. An empty path loads the bundled catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a JSON catalog from r.
func Read(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return Decode(data)
}

// Decode parses the catalog document format: {"version": "...", "tests": [...]}.
func Decode(data []byte) (*Catalog, error) {
	var doc struct {
		Version string        `json:"version"`
		Tests   []domain.Test `json:"tests"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}
	return New(doc.Tests)
}

// All returns a copy of every test in catalog order.
func (c *Catalog) All() []domain.Test {
	out := make([]domain.Test, len(c.tests))
	for i := range c.tests {
		out[i] = cloneTest(c.tests[i])
	}
	return out
}

// Get returns the test with the given id.
func (c *Catalog) Get(id string) (domain.Test, bool) {
	i, ok := c.index[id]
	if !ok {
		return domain.Test{}, false
	}
	return cloneTest(c.tests[i]), true
}

// Position returns the catalog index of id, or -1 if absent.
func (c *Catalog) Position(id string) int {
	if i, ok := c.index[id]; ok {
		return i
	}
	return -1
}

// Len returns the number of tests in the catalog.
func (c *Catalog) Len() int {
	return len(c.tests)
}

// cloneTest copies the slice fields so callers cannot mutate catalog state.
func cloneTest(t domain.Test) domain.Test {
	t.PreparationSteps = cloneStrings(t.PreparationSteps)
	t.Indications = cloneStrings(t.Indications)
	t.Contraindications = cloneStrings(t.Contraindications)
	return t
}

// cloneStrings never returns nil so tests always encode list fields as arrays.
func cloneStrings(in []string) []string {
	return append(make([]string, 0, len(in)), in...)
}
