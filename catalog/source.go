package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/deft-pm/deft/internal/core"
	"github.com/deft-pm/deft/version"
)

// FromFile loads the catalog document from a local JSON file. This is
// the common case: the catalog's storage format is out of scope per
// spec §1, so there is no remote index to reach for a typical build.
func FromFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: reading %s: %w", path, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parsing %s: %w", path, err)
	}

	releases, err := doc.decode()
	if err != nil {
		return nil, err
	}
	return build(releases)
}

// FromHTTP fetches the catalog document from a centrally hosted URL
// using core's retrying HTTP client. If c is nil, core.DefaultClient()
// is used.
func FromHTTP(ctx context.Context, url string, c *core.Client) (*Catalog, error) {
	if c == nil {
		c = core.DefaultClient()
	}

	var doc document
	if err := c.GetJSON(ctx, url, &doc); err != nil {
		return nil, fmt.Errorf("catalog: fetching %s: %w", url, err)
	}

	releases, err := doc.decode()
	if err != nil {
		return nil, err
	}
	return build(releases)
}

// build constructs a Catalog and checks spec §3's load-time invariant
// before handing it to a caller, so a malformed catalog is rejected up
// front rather than surfacing as a confusing resolve-time failure.
func build(releases []version.Release) (*Catalog, error) {
	c := New(releases)
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("catalog: %w", err)
	}
	return c, nil
}
