package version

// Scope distinguishes a production dependency from a development-only
// one. Grounded on the teacher's richer core.Scope (Runtime/Development/
// Test/Build/Optional); a flat-registry build tool only ever needs two.
type Scope string

const (
	ScopeProd Scope = "prod"
	ScopeDev  Scope = "dev"
)

// SourceKind selects how a release's source tree is acquired.
type SourceKind int

const (
	SourceUnknown SourceKind = iota
	SourceVCS
	SourceArchive
)

// SourceDescriptor names where a release's source lives. For SourceVCS,
// Ref is the tag or branch corresponding to the version. For
// SourceArchive, URL is the archive to download and extract.
type SourceDescriptor struct {
	Kind SourceKind
	URL  string
	Ref  string
}

// Release is an immutable (package, version) pair together with its
// declared dependencies and a source descriptor. Identity is (Name,
// Version).
type Release struct {
	Name     string
	Version  Version
	ProdDeps []Dep
	DevDeps  []Dep
	Source   SourceDescriptor

	// Description, Homepage, Repository, and Licenses are carried from
	// the catalog document when present (Licenses is dropped when it is
	// not a valid SPDX expression); workspace manifests do not set them.
	// Resolution and install never consult them.
	Description string
	Homepage    string
	Repository  string
	Licenses    string
}

// ID returns the canonical "name@version" identity string, used in
// error context such as dependency chains.
func (r Release) ID() string {
	return r.Name + "@" + r.Version.String()
}
