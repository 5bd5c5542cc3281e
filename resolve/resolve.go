// Package resolve implements Deft's Minimum Version Selection resolver:
// prod-dep transitive closure, non-transitive dev-deps consulted only
// for roots, cycle detection, and prod-vs-dev conflict classification.
package resolve

import (
	"fmt"

	"github.com/deft-pm/deft/catalog"
	"github.com/deft-pm/deft/internal/core"
	"github.com/deft-pm/deft/version"
)

// Result is the resolver's output: the transitive closure of chosen
// releases, plus reporting data the distilled algorithm doesn't strictly
// need but spec §4.C's "dependency chain" error context and §7's
// end-of-run reporting call for.
type Result struct {
	// Releases maps package name to the release MVS selected.
	Releases map[string]version.Release

	// RequiredBy records, for each package named by some dependency
	// (active packages included), the names of the packages whose
	// dependency named it. It is reporting data only; no error reads it.
	RequiredBy map[string][]string

	// Warnings accumulates non-fatal prod-vs-dev disagreements (spec
	// §4.C "Prod-vs-dev conflict rule").
	Warnings []string
}

// Resolve runs MVS over the active packages' prod- and dev-deps against
// cat, which active shadows per spec §4.F/§9 "Active shadowing".
func Resolve(cat *catalog.Catalog, active map[string]version.Release) (*Result, error) {
	r := &Result{
		Releases:   make(map[string]version.Release, len(active)),
		RequiredBy: make(map[string][]string),
	}
	for name, rel := range active {
		r.Releases[name] = rel
	}

	prodChosen := make(map[string]bool, len(active))
	for name := range active {
		prodChosen[name] = true
	}

	if err := r.resolveProd(cat, active, prodChosen); err != nil {
		return nil, err
	}
	if err := r.resolveDev(cat, active, prodChosen); err != nil {
		return nil, err
	}

	if cycle := detectCycle(r.Releases); cycle != nil {
		return nil, &core.DepError{
			Package: cycle[0],
			Chain:   cycle,
			Cause:   core.ErrCycle,
		}
	}

	return r, nil
}

type queuedDep struct {
	dep version.Dep
	by  string
}

// resolveProd runs the transitive prod-dep closure: steps 2–3 of spec
// §4.C restricted to ProdDeps.
func (r *Result) resolveProd(cat *catalog.Catalog, active map[string]version.Release, prodChosen map[string]bool) error {
	var worklist []queuedDep
	for name, rel := range active {
		for _, d := range rel.ProdDeps {
			worklist = append(worklist, queuedDep{d, name})
		}
	}

	for len(worklist) > 0 {
		q := worklist[0]
		worklist = worklist[1:]
		d := q.dep

		r.RequiredBy[d.Name] = appendUnique(r.RequiredBy[d.Name], q.by)

		if existing, ok := r.Releases[d.Name]; ok {
			if _, isActive := active[d.Name]; isActive {
				if !version.Compatible(existing.Version, d.Version) {
					return conflictError(d.Name, existing.Version, d.Version)
				}
				continue
			}

			if !version.Compatible(existing.Version, d.Version) {
				return conflictError(d.Name, existing.Version, d.Version)
			}
			maxV, err := version.Max(existing.Version, d.Version)
			if err != nil {
				return conflictError(d.Name, existing.Version, d.Version)
			}
			if maxV.Equal(existing.Version) {
				continue
			}

			cand, err := candidateRelease(cat, d.Name, maxV)
			if err != nil {
				return err
			}
			r.Releases[d.Name] = cand
			prodChosen[d.Name] = true
			for _, pd := range cand.ProdDeps {
				worklist = append(worklist, queuedDep{pd, d.Name})
			}
			continue
		}

		cand, err := candidateRelease(cat, d.Name, d.Version)
		if err != nil {
			return err
		}
		r.Releases[d.Name] = cand
		prodChosen[d.Name] = true
		for _, pd := range cand.ProdDeps {
			worklist = append(worklist, queuedDep{pd, d.Name})
		}
	}

	return nil
}

// resolveDev applies each active package's dev-dep roots. Dev-deps are
// not transitive (spec §4.C step 3): a dev-root's own deps are never
// pushed onto any worklist. A dev-root whose name was already settled
// by the prod closure always yields to prod per the prod-vs-dev
// conflict rule; a dev-root introducing a brand-new name, or competing
// only with other dev-roots, is merged with ordinary MVS semantics.
func (r *Result) resolveDev(cat *catalog.Catalog, active map[string]version.Release, prodChosen map[string]bool) error {
	for name, rel := range active {
		for _, d := range rel.DevDeps {
			if err := r.applyDevRoot(cat, name, d, prodChosen); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Result) applyDevRoot(cat *catalog.Catalog, owner string, d version.Dep, prodChosen map[string]bool) error {
	r.RequiredBy[d.Name] = appendUnique(r.RequiredBy[d.Name], owner)

	existing, ok := r.Releases[d.Name]
	if !ok {
		cand, err := candidateRelease(cat, d.Name, d.Version)
		if err != nil {
			return err
		}
		r.Releases[d.Name] = cand
		return nil
	}

	if !version.Compatible(existing.Version, d.Version) {
		return conflictError(d.Name, existing.Version, d.Version)
	}

	if prodChosen[d.Name] {
		if !existing.Version.Equal(d.Version) && d.Version.Kind != version.KindNone {
			r.Warnings = append(r.Warnings, fmt.Sprintf(
				"%s: prod requirement %s@%s wins over dev requirement %s@%s",
				owner, d.Name, existing.Version, d.Name, d.Version))
		}
		return nil
	}

	maxV, err := version.Max(existing.Version, d.Version)
	if err != nil {
		return conflictError(d.Name, existing.Version, d.Version)
	}
	if maxV.Equal(existing.Version) {
		return nil
	}
	cand, err := candidateRelease(cat, d.Name, maxV)
	if err != nil {
		return err
	}
	r.Releases[d.Name] = cand
	return nil
}

// candidateRelease selects the smallest catalog release compatible with
// and at least v (spec §4.C "Candidate rule").
func candidateRelease(cat *catalog.Catalog, name string, v version.Version) (version.Release, error) {
	if v.Kind == version.KindBranch {
		rel, ok := cat.Release(name, v)
		if !ok {
			return version.Release{}, &core.DepError{
				Package: name,
				Cause:   fmt.Errorf("%w: no release of %q on branch %s", core.ErrNoCandidate, name, v.Branch),
			}
		}
		return rel, nil
	}

	releases, ok := cat.Releases(name)
	if !ok {
		return version.Release{}, &core.DepError{
			Package: name,
			Cause:   fmt.Errorf("%w: no catalog entry for %q", core.ErrNoCandidate, name),
		}
	}

	for _, rel := range releases {
		if rel.Version.Kind != version.KindNumeric {
			continue
		}
		if v.Kind == version.KindNone {
			return rel, nil
		}
		if version.Compatible(rel.Version, v) && !rel.Version.Less(v) {
			return rel, nil
		}
	}

	return version.Release{}, &core.DepError{
		Package: name,
		Cause:   fmt.Errorf("%w: no release of %q satisfies %s", core.ErrNoCandidate, name, v),
	}
}

func conflictError(name string, a, b version.Version) error {
	return &core.DepConflictError{Package: name, A: a.String(), B: b.String()}
}

func appendUnique(list []string, s string) []string {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}

// detectCycle runs a DFS three-coloring pass over the chosen prod-dep
// graph (edges by package name, per spec §9 "Cyclic graphs") and
// returns the cycle's package names, or nil if the graph is acyclic.
func detectCycle(chosen map[string]version.Release) []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(chosen))
	var stack []string

	var visit func(name string) []string
	visit = func(name string) []string {
		color[name] = gray
		stack = append(stack, name)

		rel, ok := chosen[name]
		if ok {
			for _, dep := range rel.ProdDeps {
				next := dep.Name
				if _, present := chosen[next]; !present {
					continue
				}
				switch color[next] {
				case white:
					if cyc := visit(next); cyc != nil {
						return cyc
					}
				case gray:
					// found the back-edge; slice the stack from next's
					// first occurrence to here.
					for i, s := range stack {
						if s == next {
							cyc := append([]string{}, stack[i:]...)
							return append(cyc, next)
						}
					}
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[name] = black
		return nil
	}

	for name := range chosen {
		if color[name] == white {
			if cyc := visit(name); cyc != nil {
				return cyc
			}
		}
	}
	return nil
}
