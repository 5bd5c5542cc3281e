// Package store implements Deft's content-addressed release store: an
// idempotent, concurrency-safe installer that populates
// "<root>/_packages/<name>/<version>/src/" directories via a temp-dir-
// then-rename commit point (spec §4.D).
package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/deft-pm/deft/internal/core"
	"github.com/deft-pm/deft/version"
)

// Fetcher acquires a release's source tree into an empty directory. A
// *fetch.Dispatcher satisfies this.
type Fetcher interface {
	Fetch(ctx context.Context, src version.SourceDescriptor, destDir string) error
}

// Installer installs releases into a content-addressed store rooted at
// Root.
type Installer struct {
	Root string

	// Concurrency bounds InstallAll's simultaneous fetches. Zero means
	// unbounded.
	Concurrency int
}

// NewInstaller returns an Installer rooted at root.
func NewInstaller(root string) *Installer {
	return &Installer{Root: root}
}

// packagesDir is "<root>/_packages".
func (i *Installer) packagesDir() string {
	return filepath.Join(i.Root, "_packages")
}

// Dir returns the final, content-addressed source directory for r —
// "<root>/_packages/<name>/<version>/src" — whether or not it has been
// installed yet.
func (i *Installer) Dir(r version.Release) string {
	return filepath.Join(i.packagesDir(), r.Name, r.Version.String(), "src")
}

// Installed reports whether r is already present in the store.
func (i *Installer) Installed(r version.Release) bool {
	_, err := os.Stat(i.Dir(r))
	return err == nil
}

// Install fetches r's source via f and commits it into the store.
// Installing an already-present release is a no-op (spec §4.D
// idempotence). Concurrent callers installing the same release race
// harmlessly: whichever rename lands first wins, and the loser discards
// its temp directory having observed the destination already exists.
func (i *Installer) Install(ctx context.Context, r version.Release, f Fetcher) error {
	dest := i.Dir(r)
	if _, err := os.Stat(dest); err == nil {
		return nil
	}

	nameDir := filepath.Join(i.packagesDir(), r.Name)
	if err := os.MkdirAll(nameDir, 0o755); err != nil {
		return &core.InstallError{Package: r.Name, Version: r.Version.String(), Cause: err}
	}

	tmp := filepath.Join(nameDir, ".tmp-"+uuid.NewString())
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return &core.InstallError{Package: r.Name, Version: r.Version.String(), Cause: err}
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmp)
		}
	}()

	if err := f.Fetch(ctx, r.Source, tmp); err != nil {
		return &core.InstallError{Package: r.Name, Version: r.Version.String(), Cause: err}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return &core.InstallError{Package: r.Name, Version: r.Version.String(), Cause: err}
	}

	if err := os.Rename(tmp, dest); err != nil {
		if _, statErr := os.Stat(dest); statErr == nil {
			// A concurrent installer won the race; our copy is
			// redundant.
			committed = false
			return nil
		}
		return &core.InstallError{
			Package: r.Name,
			Version: r.Version.String(),
			Cause:   fmt.Errorf("committing install directory: %w", err),
		}
	}
	committed = true
	log.Debug("installed release", "purl", r.PURL(), "dir", dest)
	return nil
}

// InstallAll installs every release in releases, fetching up to
// i.Concurrency releases at once. It returns the first error encountered;
// other in-flight installs are canceled via ctx.
func (i *Installer) InstallAll(ctx context.Context, releases map[string]version.Release, f Fetcher) error {
	g, ctx := errgroup.WithContext(ctx)
	if i.Concurrency > 0 {
		g.SetLimit(i.Concurrency)
	}
	for _, r := range releases {
		r := r
		g.Go(func() error {
			return i.Install(ctx, r, f)
		})
	}
	return g.Wait()
}
