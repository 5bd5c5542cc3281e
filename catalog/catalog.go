// Package catalog implements Deft's central catalog: a name-indexed set
// of releases, loaded once per invocation from a flat document (local
// file or HTTP), with the load-time invariant spec §3 requires.
package catalog

import (
	"fmt"
	"sort"

	"github.com/deft-pm/deft/internal/core"
	"github.com/deft-pm/deft/version"
)

// Catalog is an immutable mapping from package name to its releases,
// ordered ascending by version.
type Catalog struct {
	releases map[string][]version.Release
}

// New builds a Catalog from an unordered slice of releases, sorting each
// package's releases ascending by version. Numeric releases sort before
// branch releases of the same package (branch releases have no total
// order among themselves beyond identifier equality, so they are left
// in input order after the numeric ones).
func New(releases []version.Release) *Catalog {
	c := &Catalog{releases: make(map[string][]version.Release)}
	for _, r := range releases {
		c.releases[r.Name] = append(c.releases[r.Name], r)
	}
	for name, rs := range c.releases {
		sort.SliceStable(rs, func(i, j int) bool {
			a, b := rs[i].Version, rs[j].Version
			if a.Kind != b.Kind {
				return a.Kind == version.KindNumeric
			}
			if a.Kind == version.KindNumeric {
				return a.Less(b)
			}
			return false
		})
		c.releases[name] = rs
	}
	return c
}

// Releases returns the ascending-by-version release list for name, and
// whether the package is present at all.
func (c *Catalog) Releases(name string) ([]version.Release, bool) {
	rs, ok := c.releases[name]
	return rs, ok
}

// Release returns the single release matching name and an exact version
// string.
func (c *Catalog) Release(name string, v version.Version) (version.Release, bool) {
	for _, r := range c.releases[name] {
		if r.Version.Equal(v) {
			return r, true
		}
	}
	return version.Release{}, false
}

// Validate checks the load-time invariant from spec §3: every prod-dep
// of every release must name a package present in the catalog with at
// least one release whose version is >= the constraint and whose major
// matches. Dev-deps are exempt, per spec.
func (c *Catalog) Validate() error {
	for _, releases := range c.releases {
		for _, r := range releases {
			for _, d := range r.ProdDeps {
				if err := c.validateDep(r, d); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (c *Catalog) validateDep(owner version.Release, d version.Dep) error {
	candidates, ok := c.releases[d.Name]
	if !ok {
		return &core.DepError{
			Package: d.Name,
			Chain:   []string{owner.ID()},
			Cause:   fmt.Errorf("%w: no catalog entry for %q (required by %s)", core.ErrNoCandidate, d.Name, owner.ID()),
		}
	}

	if d.Version.Kind == version.KindNone {
		return nil
	}

	for _, cand := range candidates {
		if version.Compatible(cand.Version, d.Version) && !cand.Version.Less(d.Version) {
			return nil
		}
	}

	return &core.DepError{
		Package: d.Name,
		Chain:   []string{owner.ID()},
		Cause: fmt.Errorf("%w: no release of %q satisfies %s (required by %s)",
			core.ErrNoCandidate, d.Name, d.String(), owner.ID()),
	}
}
