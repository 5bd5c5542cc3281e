// Package registry implements Deft's registry generator: it scans
// active and installed package trees for *.lid files and writes one
// flat registry entry per (library, platform) pair, per spec §4.G.
package registry

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/deft-pm/deft/store"
	"github.com/deft-pm/deft/version"
	"github.com/deft-pm/deft/workspace"
)

const genericPlatform = "generic"

// Report summarizes one generation run for end-of-run reporting
// (spec §4.G "Write discipline").
type Report struct {
	// Written is the number of registry files actually written
	// (absent→current or stale→current transitions).
	Written int

	// MissingLID names library×platform pairs with no eligible LID
	// found, as "<library>/<platform>" strings.
	MissingLID []string
}

// Generate scans ws's active packages and the store directories backing
// resolved, parses every *.lid file, and writes registry entries under
// ws.RegistryDirectory().
func Generate(ws *workspace.Workspace, resolved map[string]version.Release, inst *store.Installer) (*Report, error) {
	active := ws.ActivePackages()

	var packageDirs []string
	for _, pkg := range active {
		if dir, ok := ws.ActivePackageDirectory(pkg.Name); ok {
			packageDirs = append(packageDirs, dir)
		}
	}
	for _, r := range resolved {
		if _, isActive := active[r.Name]; isActive {
			continue
		}
		packageDirs = append(packageDirs, inst.Dir(r))
	}

	lids, err := scanLIDs(packageDirs)
	if err != nil {
		return nil, err
	}

	report := &Report{}
	requestedPlatforms := collectPlatforms(lids)

	for _, lid := range eligibleLIDs(lids) {
		platforms := lid.Platforms
		if len(platforms) == 0 {
			platforms = []string{genericPlatform}
		}
		for _, platform := range platforms {
			wrote, err := writeEntry(ws, lid, platform)
			if err != nil {
				return nil, err
			}
			if wrote {
				report.Written++
			}
		}
	}

	eligible := eligibleLIDs(lids)
	for _, platform := range requestedPlatforms {
		covered := make(map[string]bool)
		for _, lid := range eligible {
			if hasPlatform(lid, platform) {
				covered[lid.Library] = true
			}
		}
		for _, lid := range eligible {
			if !covered[lid.Library] {
				covered[lid.Library] = true // report each library once
				report.MissingLID = append(report.MissingLID,
					fmt.Sprintf("%s/%s", lid.Library, platform))
			}
		}
	}

	return report, nil
}

func hasPlatform(lid *LID, platform string) bool {
	if len(lid.Platforms) == 0 {
		return platform == genericPlatform
	}
	for _, p := range lid.Platforms {
		if p == platform {
			return true
		}
	}
	return false
}

func collectPlatforms(lids []*LID) []string {
	seen := map[string]bool{genericPlatform: true}
	for _, lid := range lids {
		for _, p := range lid.Platforms {
			seen[p] = true
		}
	}
	platforms := make([]string, 0, len(seen))
	for p := range seen {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)
	return platforms
}

// scanLIDs recursively finds every *.lid file under each of dirs and
// parses it.
func scanLIDs(dirs []string) ([]*LID, error) {
	var lids []*LID
	for _, root := range dirs {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), ".lid") {
				return nil
			}
			lid, err := parseLID(path)
			if err != nil {
				log.Warn("skipping malformed LID file", "path", path, "error", err)
				return nil
			}
			lids = append(lids, lid)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s for LID files: %w", root, err)
		}
	}
	return lids, nil
}

// eligibleLIDs filters out LIDs that are named by another LID's "LID:"
// include directive within the same package directory (spec §4.G
// "Eligibility").
func eligibleLIDs(lids []*LID) []*LID {
	included := make(map[string]bool)
	for _, lid := range lids {
		dir := filepath.Dir(lid.Path)
		for _, name := range lid.Includes {
			included[filepath.Join(dir, name)] = true
		}
	}

	var eligible []*LID
	for _, lid := range lids {
		if included[lid.Path] {
			continue
		}
		eligible = append(eligible, lid)
	}
	return eligible
}

// writeEntry computes the desired registry entry for (lid, platform),
// writing only if the file is absent or its contents differ (spec
// §4.G "Write discipline").
func writeEntry(ws *workspace.Workspace, lid *LID, platform string) (bool, error) {
	entryPath := filepath.Join(ws.RegistryDirectory(), platform, lid.Library)

	rel, err := filepath.Rel(ws.Directory(), lid.Path)
	if err != nil {
		rel = lid.Path
	}
	desired := "abstract://" + filepath.ToSlash(rel) + "\n"

	current, err := os.ReadFile(entryPath)
	if err == nil && string(current) == desired {
		return false, nil // current: no-op
	}
	if err != nil && !os.IsNotExist(err) {
		return false, fmt.Errorf("reading registry entry %s: %w", entryPath, err)
	}

	if err := os.MkdirAll(filepath.Dir(entryPath), 0o755); err != nil {
		return false, fmt.Errorf("creating registry directory: %w", err)
	}
	if err := os.WriteFile(entryPath, []byte(desired), 0o644); err != nil {
		return false, fmt.Errorf("writing registry entry %s: %w", entryPath, err)
	}
	return true, nil
}
