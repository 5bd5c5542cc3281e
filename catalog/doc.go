package catalog

import (
	"github.com/git-pkgs/spdx"

	"github.com/deft-pm/deft/internal/core"
	"github.com/deft-pm/deft/version"
)

// document is the flat catalog wire format: an array of release
// records. Spec §1 leaves the catalog's storage format out of scope
// beyond what the resolver needs, so this shape is Deft's own rather
// than a model of any real registry's wire format.
type document struct {
	Releases []releaseDoc `json:"releases"`
}

type releaseDoc struct {
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	ProdDeps    []string  `json:"dependencies,omitempty"`
	DevDeps     []string  `json:"dev_dependencies,omitempty"`
	Source      sourceDoc `json:"source,omitempty"`
	Description string    `json:"description,omitempty"`
	Homepage    string    `json:"homepage,omitempty"`
	Repository  string    `json:"repository,omitempty"`
	Licenses    string    `json:"licenses,omitempty"`
}

type sourceDoc struct {
	Kind string `json:"kind,omitempty"` // "vcs" or "archive"
	URL  string `json:"url,omitempty"`
	Ref  string `json:"ref,omitempty"`
}

// decode converts the wire document into the in-memory release set,
// validating every name, version, and dep string per spec §3/§8.
func (doc document) decode() ([]version.Release, error) {
	releases := make([]version.Release, 0, len(doc.Releases))
	for _, rd := range doc.Releases {
		r, err := rd.decode()
		if err != nil {
			return nil, err
		}
		releases = append(releases, r)
	}
	return releases, nil
}

func (rd releaseDoc) decode() (version.Release, error) {
	if err := version.ValidateName(rd.Name); err != nil {
		return version.Release{}, &core.PackageError{Input: rd.Name, Cause: err}
	}

	v, err := version.ParseVersion(rd.Version)
	if err != nil {
		return version.Release{}, &core.PackageError{Input: rd.Version, Cause: err}
	}

	prodDeps, err := decodeDeps(rd.ProdDeps)
	if err != nil {
		return version.Release{}, err
	}
	devDeps, err := decodeDeps(rd.DevDeps)
	if err != nil {
		return version.Release{}, err
	}

	licenses := rd.Licenses
	if licenses != "" {
		if _, err := spdx.Parse(licenses); err != nil {
			// A malformed license expression doesn't block resolution or
			// install; it only means Release.Licenses can't be trusted for
			// reporting, so it's dropped rather than failing the catalog
			// load.
			licenses = ""
		}
	}

	return version.Release{
		Name:     rd.Name,
		Version:  v,
		ProdDeps: prodDeps,
		DevDeps:  devDeps,
		Source: version.SourceDescriptor{
			Kind: decodeSourceKind(rd.Source.Kind),
			URL:  rd.Source.URL,
			Ref:  rd.Source.Ref,
		},
		Description: rd.Description,
		Homepage:    rd.Homepage,
		Repository:  rd.Repository,
		Licenses:    licenses,
	}, nil
}

func decodeDeps(raw []string) ([]version.Dep, error) {
	deps := make([]version.Dep, 0, len(raw))
	for _, s := range raw {
		d, err := version.ParseDep(s)
		if err != nil {
			return nil, &core.PackageError{Input: s, Cause: err}
		}
		deps = append(deps, d)
	}
	return deps, nil
}

func decodeSourceKind(s string) version.SourceKind {
	switch s {
	case "vcs":
		return version.SourceVCS
	case "archive":
		return version.SourceArchive
	default:
		return version.SourceUnknown
	}
}
