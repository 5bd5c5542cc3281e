// Package workspace discovers and loads Deft workspaces: a root
// directory containing an optional workspace.json and one or more
// package manifests, per spec §4.F.
package workspace

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/deft-pm/deft/internal/core"
	"github.com/deft-pm/deft/version"
)

const (
	workspaceFile  = "workspace.json"
	manifestFile   = "dylan-package.json"
	legacyManifest = "pkg.json"
)

// Package is one active package contributed to the workspace: its
// manifest-derived release plus the directory it lives in.
type Package struct {
	Release   version.Release
	Directory string
	File      string
}

// Workspace is a loaded root directory together with its active
// packages and workspace-level settings.
type Workspace struct {
	root           string
	defaultLibrary string
	active         map[string]Package
}

// Discover walks from startDir toward the filesystem root and returns
// the nearest ancestor containing workspace.json, or failing that, a
// manifest file (dylan-package.json or the legacy pkg.json).
func Discover(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", &core.WorkspaceError{Path: startDir, Cause: err}
	}

	for d := dir; ; d = filepath.Dir(d) {
		if fileExists(filepath.Join(d, workspaceFile)) {
			return d, nil
		}
		if filepath.Dir(d) == d {
			break
		}
	}

	for {
		if fileExists(filepath.Join(dir, manifestFile)) || fileExists(filepath.Join(dir, legacyManifest)) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", &core.WorkspaceError{
				Path:  startDir,
				Cause: fmt.Errorf("no workspace.json or manifest found in any ancestor"),
			}
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Load builds a Workspace rooted at root, the value Discover returns.
func Load(root string) (*Workspace, error) {
	ws := &Workspace{root: root, active: make(map[string]Package)}

	if err := ws.loadWorkspaceFile(); err != nil {
		return nil, err
	}

	rootManifest, rootManifestPath, err := readManifestIfPresent(root)
	if err != nil {
		return nil, err
	}

	if rootManifest != nil {
		pkg, err := decodePackage(root, rootManifestPath, *rootManifest)
		if err != nil {
			return nil, err
		}
		ws.active[pkg.Release.Name] = pkg
		if hasSubdirManifests(root) {
			log.Warn("workspace has a root manifest; subdirectory manifests are ignored", "root", root)
		}
		return ws, nil
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, &core.WorkspaceError{Path: root, Cause: err}
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		subdir := filepath.Join(root, e.Name())
		manifest, manifestPath, err := readManifestIfPresent(subdir)
		if err != nil {
			return nil, err
		}
		if manifest == nil {
			continue
		}
		pkg, err := decodePackage(subdir, manifestPath, *manifest)
		if err != nil {
			return nil, err
		}
		ws.active[pkg.Release.Name] = pkg
	}

	if len(ws.active) == 0 {
		return nil, &core.WorkspaceError{
			Path:  root,
			Cause: fmt.Errorf("no active packages found: no root manifest and no subdirectory manifests"),
		}
	}

	return ws, nil
}

func hasSubdirManifests(root string) bool {
	entries, err := os.ReadDir(root)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		subdir := filepath.Join(root, e.Name())
		if fileExists(filepath.Join(subdir, manifestFile)) || fileExists(filepath.Join(subdir, legacyManifest)) {
			return true
		}
	}
	return false
}

type manifestDoc struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	ProdDeps []string `json:"dependencies,omitempty"`
	DevDeps  []string `json:"dev-dependencies,omitempty"`
	URL      string   `json:"url,omitempty"`
	Branch   string   `json:"branch,omitempty"`
}

// readManifestIfPresent reads dylan-package.json, falling back to the
// legacy pkg.json with a warning, from dir. Returns (nil, "", nil) if
// neither is present.
func readManifestIfPresent(dir string) (*manifestDoc, string, error) {
	path := filepath.Join(dir, manifestFile)
	if !fileExists(path) {
		legacy := filepath.Join(dir, legacyManifest)
		if !fileExists(legacy) {
			return nil, "", nil
		}
		log.Warn("pkg.json is a legacy manifest name; rename to dylan-package.json", "path", legacy)
		path = legacy
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", &core.WorkspaceError{Path: path, Cause: err}
	}
	var doc manifestDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, "", &core.WorkspaceError{Path: path, Cause: fmt.Errorf("parsing manifest: %w", err)}
	}
	return &doc, path, nil
}

func decodePackage(dir, path string, doc manifestDoc) (Package, error) {
	if err := version.ValidateName(doc.Name); err != nil {
		return Package{}, &core.WorkspaceError{Path: path, Cause: err}
	}
	v, err := version.ParseVersion(doc.Version)
	if err != nil {
		return Package{}, &core.WorkspaceError{Path: path, Cause: err}
	}
	prodDeps, err := decodeDeps(doc.ProdDeps)
	if err != nil {
		return Package{}, &core.WorkspaceError{Path: path, Cause: err}
	}
	devDeps, err := decodeDeps(doc.DevDeps)
	if err != nil {
		return Package{}, &core.WorkspaceError{Path: path, Cause: err}
	}

	src := version.SourceDescriptor{}
	switch {
	case doc.Branch != "":
		src = version.SourceDescriptor{Kind: version.SourceVCS, URL: doc.URL, Ref: doc.Branch}
	case doc.URL != "":
		src = version.SourceDescriptor{Kind: version.SourceArchive, URL: doc.URL}
	}

	return Package{
		Directory: dir,
		File:      path,
		Release: version.Release{
			Name:     doc.Name,
			Version:  v,
			ProdDeps: prodDeps,
			DevDeps:  devDeps,
			Source:   src,
		},
	}, nil
}

func decodeDeps(raw []string) ([]version.Dep, error) {
	deps := make([]version.Dep, 0, len(raw))
	for _, s := range raw {
		d, err := version.ParseDep(s)
		if err != nil {
			return nil, err
		}
		deps = append(deps, d)
	}
	return deps, nil
}

func (ws *Workspace) loadWorkspaceFile() error {
	path := filepath.Join(ws.root, workspaceFile)
	if !fileExists(path) {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return &core.WorkspaceError{Path: path, Cause: err}
	}
	var doc struct {
		DefaultLibrary string `json:"default-library"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &doc); err != nil {
			return &core.WorkspaceError{Path: path, Cause: fmt.Errorf("parsing workspace file: %w", err)}
		}
	}
	ws.defaultLibrary = doc.DefaultLibrary
	return nil
}

// Directory returns the workspace root.
func (ws *Workspace) Directory() string { return ws.root }

// RegistryDirectory returns "<root>/registry".
func (ws *Workspace) RegistryDirectory() string { return filepath.Join(ws.root, "registry") }

// DefaultLibrary returns the workspace.json "default-library" value, or
// "" if unset.
func (ws *Workspace) DefaultLibrary() string { return ws.defaultLibrary }

// ActivePackages returns every active package's release, keyed by name.
func (ws *Workspace) ActivePackages() map[string]version.Release {
	releases := make(map[string]version.Release, len(ws.active))
	for name, pkg := range ws.active {
		releases[name] = pkg.Release
	}
	return releases
}

// ActivePackageDirectory returns the directory of the active package
// named name, and whether it exists.
func (ws *Workspace) ActivePackageDirectory(name string) (string, bool) {
	pkg, ok := ws.active[name]
	return pkg.Directory, ok
}

// ActivePackageFile returns the manifest path of the active package
// named name, and whether it exists.
func (ws *Workspace) ActivePackageFile(name string) (string, bool) {
	pkg, ok := ws.active[name]
	return pkg.File, ok
}
