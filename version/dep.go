package version

import (
	"fmt"
	"strings"
)

// Dep is a dependency constraint: a package name plus a minimum
// acceptable numeric version, an exact branch, or no constraint at all
// (KindNone, from a bare "name" dependency string).
type Dep struct {
	Name    string
	Version Version
}

// ErrInvalidName is the sentinel wrapped by name-validation failures.
var ErrInvalidName = fmt.Errorf("invalid package name")

// ValidateName reports whether name matches [A-Za-z][A-Za-z0-9._-]*.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidName)
	}
	first := name[0]
	if !isAlpha(first) {
		return fmt.Errorf("%w: %q must start with a letter", ErrInvalidName, name)
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if !isAlpha(c) && !isDigit(c) && c != '.' && c != '_' && c != '-' {
			return fmt.Errorf("%w: %q contains invalid character %q", ErrInvalidName, name, c)
		}
	}
	return nil
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// ParseDep tokenizes "name" or "name@version" on the first '@'. An
// empty right-hand side after '@' fails.
func ParseDep(s string) (Dep, error) {
	name := s
	verStr := ""
	hasVersion := false

	if idx := strings.IndexByte(s, '@'); idx >= 0 {
		name = s[:idx]
		verStr = s[idx+1:]
		hasVersion = true
		if verStr == "" {
			return Dep{}, fmt.Errorf("dep: empty version after '@' in %q", s)
		}
	}

	if err := ValidateName(name); err != nil {
		return Dep{}, err
	}

	if !hasVersion {
		return Dep{Name: name, Version: Version{Kind: KindNone}}, nil
	}

	v, err := ParseVersion(verStr)
	if err != nil {
		return Dep{}, fmt.Errorf("dep %q: %w", s, err)
	}
	return Dep{Name: name, Version: v}, nil
}

// String renders the canonical dep string: "name" when unconstrained,
// "name@version" otherwise.
func (d Dep) String() string {
	if d.Version.Kind == KindNone {
		return d.Name
	}
	return d.Name + "@" + d.Version.String()
}

// Equal reports whether two deps have the same name and version.
func (d Dep) Equal(o Dep) bool {
	return d.Name == o.Name && d.Version.Equal(o.Version)
}
