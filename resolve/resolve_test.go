package resolve

import (
	"errors"
	"testing"

	"github.com/deft-pm/deft/catalog"
	"github.com/deft-pm/deft/internal/core"
	"github.com/deft-pm/deft/version"
)

func rel(t *testing.T, name, ver string, prodDeps ...string) version.Release {
	return relDeps(t, name, ver, prodDeps, nil)
}

func relDeps(t *testing.T, name, ver string, prodDeps, devDeps []string) version.Release {
	t.Helper()
	v, err := version.ParseVersion(ver)
	if err != nil {
		t.Fatalf("ParseVersion(%q): %v", ver, err)
	}
	return version.Release{
		Name:     name,
		Version:  v,
		ProdDeps: parseDeps(t, prodDeps),
		DevDeps:  parseDeps(t, devDeps),
	}
}

func parseDeps(t *testing.T, raw []string) []version.Dep {
	t.Helper()
	deps := make([]version.Dep, 0, len(raw))
	for _, s := range raw {
		d, err := version.ParseDep(s)
		if err != nil {
			t.Fatalf("ParseDep(%q): %v", s, err)
		}
		deps = append(deps, d)
	}
	return deps
}

func active(releases ...version.Release) map[string]version.Release {
	m := make(map[string]version.Release, len(releases))
	for _, r := range releases {
		m[r.Name] = r
	}
	return m
}

func mustResolve(t *testing.T, cat *catalog.Catalog, act map[string]version.Release) *Result {
	t.Helper()
	r, err := Resolve(cat, act)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	return r
}

func versionOf(t *testing.T, r *Result, name string) string {
	t.Helper()
	got, ok := r.Releases[name]
	if !ok {
		t.Fatalf("package %q not in result", name)
	}
	return got.Version.String()
}

// Scenario 1: A requires B@1.3 and C@1.8; B requires D@1.3; C requires
// D@1.4. D has releases 1.3.0 and 1.4.0. The higher transitive minimum
// wins.
func TestScenario1_UpgradeAcrossSiblings(t *testing.T) {
	cat := catalog.New([]version.Release{
		rel(t, "b", "1.3.0", "d@1.3"),
		rel(t, "c", "1.8.0", "d@1.4"),
		rel(t, "d", "1.3.0"),
		rel(t, "d", "1.4.0"),
	})
	a := rel(t, "a", "1.20.0", "b@1.3", "c@1.8")
	r := mustResolve(t, cat, active(a))

	if got := versionOf(t, r, "d"); got != "1.4.0" {
		t.Errorf("d = %s, want 1.4.0", got)
	}
	if got := versionOf(t, r, "b"); got != "1.3.0" {
		t.Errorf("b = %s, want 1.3.0", got)
	}
	if got := versionOf(t, r, "c"); got != "1.8.0" {
		t.Errorf("c = %s, want 1.8.0", got)
	}
}

// Scenario 2: adding a higher, unrequested release of D does not change
// the outcome (minimum, not maximum, version selection).
func TestScenario2_UnrequestedHigherReleaseIgnored(t *testing.T) {
	cat := catalog.New([]version.Release{
		rel(t, "b", "1.3.0", "d@1.3"),
		rel(t, "c", "1.8.0", "d@1.4"),
		rel(t, "d", "1.3.0"),
		rel(t, "d", "1.4.0"),
		rel(t, "d", "1.5.0"),
	})
	a := rel(t, "a", "1.20.0", "b@1.3", "c@1.8")
	r := mustResolve(t, cat, active(a))

	if got := versionOf(t, r, "d"); got != "1.4.0" {
		t.Errorf("d = %s, want 1.4.0 (unrequested 1.5.0 must not be picked)", got)
	}
}

// Scenario 3: the candidate rule always picks the smallest satisfying
// release, not the newest available.
func TestScenario3_CandidateIsSmallestSatisfying(t *testing.T) {
	cat := catalog.New([]version.Release{
		rel(t, "b", "2.0.0"),
		rel(t, "b", "2.1.0"),
		rel(t, "b", "2.2.0"),
	})
	a := rel(t, "a", "1.0.0", "b@2.0")
	r := mustResolve(t, cat, active(a))

	if got := versionOf(t, r, "b"); got != "2.0.0" {
		t.Errorf("b = %s, want 2.0.0", got)
	}
}

// Scenario 4: two prod-deps disagree on major for the same package;
// resolution fails dep-conflict regardless of worklist order.
func TestScenario4_MajorMismatchIsDepConflict(t *testing.T) {
	cat := catalog.New([]version.Release{
		rel(t, "b", "1.0.0", "strings@1.0"),
		rel(t, "c", "1.0.0", "strings@2.0"),
		rel(t, "strings", "1.0.0"),
		rel(t, "strings", "2.0.0"),
	})
	a := rel(t, "a", "1.0.0", "b@1.0", "c@1.0")
	_, err := Resolve(cat, active(a))
	if err == nil {
		t.Fatal("expected dep-conflict error")
	}
	var conflict *core.DepConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want *core.DepConflictError", err)
	}
	if conflict.Package != "strings" {
		t.Errorf("conflict.Package = %q, want %q", conflict.Package, "strings")
	}
}

// Scenario 5: an active package's own dev-dep root disagrees on
// minor/patch with a name the prod graph already settled on; prod wins
// and a warning is surfaced, with no error.
func TestScenario5_ProdWinsOverDevOnMinorDisagreement(t *testing.T) {
	cat := catalog.New([]version.Release{
		rel(t, "b", "1.0.0", "c@1.0"),
		rel(t, "c", "1.0.0"),
		rel(t, "c", "1.1.0"),
	})
	a := relDeps(t, "a", "1.0.0", []string{"b@1.0"}, []string{"c@1.1"})
	r := mustResolve(t, cat, active(a))

	if got := versionOf(t, r, "c"); got != "1.0.0" {
		t.Errorf("c = %s, want 1.0.0 (prod requirement must win)", got)
	}
	if len(r.Warnings) == 0 {
		t.Error("expected a prod-vs-dev warning")
	}
}

// Scenario 5b: the same disagreement, but on major, fails dep-conflict
// instead of warning.
func TestScenario5b_ProdVsDevMajorMismatchIsDepConflict(t *testing.T) {
	cat := catalog.New([]version.Release{
		rel(t, "b", "1.0.0", "c@1.0"),
		rel(t, "c", "1.0.0"),
		rel(t, "c", "2.0.0"),
	})
	a := relDeps(t, "a", "1.0.0", []string{"b@1.0"}, []string{"c@2.0"})
	_, err := Resolve(cat, active(a))
	if err == nil {
		t.Fatal("expected dep-conflict error")
	}
	var conflict *core.DepConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("err = %v, want *core.DepConflictError", err)
	}
}

// Scenario 6: dev-deps are not transitive. A prod-depends on B and
// dev-depends on C; D prod-depends on A. C never surfaces because D
// never declared it and A is not itself active.
func TestScenario6_DevDepsAreNotTransitive(t *testing.T) {
	cat := catalog.New([]version.Release{
		relDeps(t, "a", "1.0.0", []string{"b@1.0"}, []string{"c@1.0"}),
		rel(t, "b", "1.0.0"),
		rel(t, "c", "1.0.0"),
	})
	d := rel(t, "d", "1.0.0", "a@1.0")
	r := mustResolve(t, cat, active(d))

	if _, ok := r.Releases["c"]; ok {
		t.Error("c must be absent: dev-deps of a non-active transitive dependency must not surface")
	}
	for _, name := range []string{"a", "b", "d"} {
		if _, ok := r.Releases[name]; !ok {
			t.Errorf("expected %q in result", name)
		}
	}
}

// A cyclic prod-dep graph fails with a dep-error wrapping ErrCycle.
func TestCycleDetection(t *testing.T) {
	cat := catalog.New([]version.Release{
		rel(t, "b", "1.0.0", "c@1.0"),
		rel(t, "c", "1.0.0", "b@1.0"),
	})
	a := rel(t, "a", "1.0.0", "b@1.0")
	_, err := Resolve(cat, active(a))
	if err == nil {
		t.Fatal("expected a cycle error")
	}
	if !errors.Is(err, core.ErrCycle) {
		t.Fatalf("err = %v, want wrapping core.ErrCycle", err)
	}
}

// A dev-dep introducing a brand-new package (never touched by the prod
// graph) is still resolved via ordinary MVS, smallest satisfying release.
func TestDevDepIntroducesNewPackage(t *testing.T) {
	cat := catalog.New([]version.Release{
		rel(t, "testlib", "1.0.0"),
		rel(t, "testlib", "1.1.0"),
	})
	a := relDeps(t, "a", "1.0.0", nil, []string{"testlib@1.0"})
	r := mustResolve(t, cat, active(a))

	if got := versionOf(t, r, "testlib"); got != "1.0.0" {
		t.Errorf("testlib = %s, want 1.0.0", got)
	}
}

// Missing catalog entries fail dep-error, wrapping ErrNoCandidate.
func TestMissingCatalogEntryFails(t *testing.T) {
	cat := catalog.New(nil)
	a := rel(t, "a", "1.0.0", "ghost@1.0")
	_, err := Resolve(cat, active(a))
	if !errors.Is(err, core.ErrNoCandidate) {
		t.Fatalf("err = %v, want wrapping core.ErrNoCandidate", err)
	}
}

// Active packages are pinned: a prod-dep on an active package's name
// must be compatible but never substitutes a catalog release.
func TestActivePackageShadowsCatalog(t *testing.T) {
	cat := catalog.New([]version.Release{
		rel(t, "shared", "9.9.9"), // must never be picked
	})
	sharedActive := rel(t, "shared", "1.0.0")
	a := rel(t, "a", "1.0.0", "shared@1.0")
	r := mustResolve(t, cat, active(a, sharedActive))

	if got := versionOf(t, r, "shared"); got != "1.0.0" {
		t.Errorf("shared = %s, want 1.0.0 (active shadow, not catalog's 9.9.9)", got)
	}
}
