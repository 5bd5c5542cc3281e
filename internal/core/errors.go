package core

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a remote catalog document or archive URL
// is not found.
var ErrNotFound = errors.New("not found")

// HTTPError represents an HTTP error response from the catalog or
// archive host.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.URL)
}

// RateLimitError is returned when the remote host rate limits requests.
type RateLimitError struct {
	RetryAfter int // seconds
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %d seconds", e.RetryAfter)
}

// ErrDepConflict, ErrCycle, and ErrNoCandidate are the sentinels the
// resolver's typed errors wrap, so callers can classify failures with
// errors.Is without matching on concrete types.
var (
	ErrDepConflict = errors.New("dep-conflict")
	ErrCycle       = errors.New("dep-error: cycle")
	ErrNoCandidate = errors.New("dep-error: no-candidate")
)

// PackageError reports a malformed package name, version, or dep
// string (spec §7 "package-error").
type PackageError struct {
	Input string
	Cause error
}

func (e *PackageError) Error() string {
	return fmt.Sprintf("package-error: %q: %v", e.Input, e.Cause)
}

func (e *PackageError) Unwrap() error { return e.Cause }

// DepError reports a resolution failure that isn't a version conflict:
// a missing catalog entry, no compatible candidate, or a prod-dep cycle
// (spec §7 "dep-error").
type DepError struct {
	Package string
	Chain   []string // dependency chain that led to the failure
	Cause   error
}

func (e *DepError) Error() string {
	if len(e.Chain) > 0 {
		return fmt.Sprintf("dep-error: %s (via %s): %v", e.Package, chainString(e.Chain), e.Cause)
	}
	return fmt.Sprintf("dep-error: %s: %v", e.Package, e.Cause)
}

func (e *DepError) Unwrap() error { return e.Cause }

func chainString(chain []string) string {
	s := chain[0]
	for _, c := range chain[1:] {
		s += " -> " + c
	}
	return s
}

// DepConflictError reports incompatible majors or incompatible branch
// identifiers required simultaneously for the same package (spec §7
// "dep-conflict").
type DepConflictError struct {
	Package string
	A, B    string // the two conflicting version/branch requirements, stringified
}

func (e *DepConflictError) Error() string {
	return fmt.Sprintf("dep-conflict: %s requires both %s and %s", e.Package, e.A, e.B)
}

func (e *DepConflictError) Unwrap() error { return ErrDepConflict }

// InstallError reports a fetch or filesystem failure while populating
// the store (spec §7 "install-error").
type InstallError struct {
	Package string
	Version string
	Cause   error
}

func (e *InstallError) Error() string {
	return fmt.Sprintf("install-error: %s@%s: %v", e.Package, e.Version, e.Cause)
}

func (e *InstallError) Unwrap() error { return e.Cause }

// WorkspaceError reports a missing workspace, invalid manifest JSON, or
// a structural contradiction such as a workspace nested inside another
// (spec §7 "workspace-error").
type WorkspaceError struct {
	Path  string
	Cause error
}

func (e *WorkspaceError) Error() string {
	return fmt.Sprintf("workspace-error: %s: %v", e.Path, e.Cause)
}

func (e *WorkspaceError) Unwrap() error { return e.Cause }
