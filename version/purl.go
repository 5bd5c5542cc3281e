package version

import (
	"fmt"

	packageurl "github.com/package-url/packageurl-go"
)

// PURL returns the canonical Package URL for a release, "pkg:deft/name@
// version". Deft's catalog has no scope/namespace concept (package names
// are flat, per the name grammar), unlike the multi-ecosystem namespacing
// the teacher's PURL helper had to account for (npm scopes, Maven
// groupIds), so this is a direct construction rather than a lookup table.
func (r Release) PURL() string {
	p := packageurl.PackageURL{
		Type:    "deft",
		Name:    r.Name,
		Version: r.Version.String(),
	}
	return p.ToString()
}

// ParsePURL parses a "pkg:deft/name@version" string back into a name and
// version, validating the PURL shape with the same library the teacher
// uses to parse upstream PURLs.
func ParsePURL(s string) (name string, v Version, err error) {
	p, err := packageurl.FromString(s)
	if err != nil {
		return "", Version{}, fmt.Errorf("version: parsing purl %q: %w", s, err)
	}
	if p.Type != "deft" {
		return "", Version{}, fmt.Errorf("version: purl %q is not type deft", s)
	}
	if p.Version == "" {
		return p.Name, Version{Kind: KindNone}, nil
	}
	ver, err := ParseVersion(p.Version)
	if err != nil {
		return "", Version{}, fmt.Errorf("version: purl %q: %w", s, err)
	}
	return p.Name, ver, nil
}
