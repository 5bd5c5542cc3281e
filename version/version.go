// Package version implements Deft's version and dependency-constraint
// algebra: parsing, comparison, and the compatibility/max operations the
// resolver builds on.
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind distinguishes the two disjoint version variants. A Version with
// KindNone carries no constraint at all and arises only from a bare
// "name" dependency string with no "@version" suffix.
type Kind int

const (
	KindNone Kind = iota
	KindNumeric
	KindBranch
)

// Version is either a numeric (major, minor, patch) triple or a branch
// identifier. The two are incomparable except through Compatible/Max,
// which fail closed on a kind mismatch.
type Version struct {
	Kind                Kind
	Major, Minor, Patch int
	Branch              string
}

// String renders the canonical form: "M.N.P" for numeric versions, the
// bare identifier for branch versions, and "" for KindNone.
func (v Version) String() string {
	switch v.Kind {
	case KindNumeric:
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	case KindBranch:
		return v.Branch
	default:
		return ""
	}
}

// Equal reports whether two versions are the same value.
func (v Version) Equal(o Version) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNumeric:
		return v.Major == o.Major && v.Minor == o.Minor && v.Patch == o.Patch
	case KindBranch:
		return v.Branch == o.Branch
	default:
		return true
	}
}

// Less orders two numeric versions lexicographically by (major, minor,
// patch). Only meaningful when both are KindNumeric; callers must check
// Compatible first.
func (v Version) Less(o Version) bool {
	if v.Major != o.Major {
		return v.Major < o.Major
	}
	if v.Minor != o.Minor {
		return v.Minor < o.Minor
	}
	return v.Patch < o.Patch
}

// isDigit reports whether the byte is an ASCII digit.
func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// ParseVersion accepts "M", "M.N", or "M.N.P" (missing trailing
// components default to 0) and returns a numeric Version. Any other
// non-empty string that isn't a numeric form is treated as a branch
// identifier.
func ParseVersion(s string) (Version, error) {
	if s == "" {
		return Version{}, fmt.Errorf("version: empty string")
	}

	parts := strings.Split(s, ".")
	if len(parts) <= 3 && isNumericForm(parts) {
		nums := [3]int{}
		for i, p := range parts {
			n, err := strconv.Atoi(p)
			if err != nil || n < 0 {
				return Version{}, fmt.Errorf("version: invalid numeric component %q in %q", p, s)
			}
			nums[i] = n
		}
		return Version{Kind: KindNumeric, Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
	}

	return Version{Kind: KindBranch, Branch: s}, nil
}

// isNumericForm reports whether every dot-separated component is a
// non-empty run of ASCII digits.
func isNumericForm(parts []string) bool {
	if len(parts) == 0 {
		return false
	}
	for _, p := range parts {
		if p == "" {
			return false
		}
		for i := 0; i < len(p); i++ {
			if !isDigit(p[i]) {
				return false
			}
		}
	}
	return true
}

// Compatible reports whether two versions may be compared: both numeric
// with equal majors, or both branch with equal identifiers. A KindNone
// operand is compatible with any version.
func Compatible(a, b Version) bool {
	if a.Kind == KindNone || b.Kind == KindNone {
		return true
	}
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNumeric:
		return a.Major == b.Major
	case KindBranch:
		return a.Branch == b.Branch
	default:
		return true
	}
}

// ErrVersionConflict is returned by Max when the two versions cannot be
// compared (different majors, or different branch identifiers).
type ErrVersionConflict struct {
	A, B Version
}

func (e *ErrVersionConflict) Error() string {
	return fmt.Sprintf("version conflict: %s incompatible with %s", e.A, e.B)
}

// Max returns the greater of two compatible versions. Numeric versions
// of equal major compare by (minor, patch); branch versions of equal
// identifier are interchangeable. KindNone yields to the other operand.
// Incompatible versions fail with *ErrVersionConflict.
func Max(a, b Version) (Version, error) {
	if a.Kind == KindNone {
		return b, nil
	}
	if b.Kind == KindNone {
		return a, nil
	}
	if !Compatible(a, b) {
		return Version{}, &ErrVersionConflict{A: a, B: b}
	}
	switch a.Kind {
	case KindNumeric:
		if a.Less(b) {
			return b, nil
		}
		return a, nil
	default: // KindBranch, identifiers already known equal
		return a, nil
	}
}
