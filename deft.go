// Package deft is Deft's top-level facade: Update runs the full
// resolve → install-all → write-registry pipeline against a workspace,
// in that strict phase order (spec §5).
package deft

import (
	"context"
	"fmt"
	"sort"

	"github.com/deft-pm/deft/catalog"
	"github.com/deft-pm/deft/fetch"
	"github.com/deft-pm/deft/registry"
	"github.com/deft-pm/deft/resolve"
	"github.com/deft-pm/deft/store"
	"github.com/deft-pm/deft/version"
	"github.com/deft-pm/deft/workspace"
)

// Report is Update's end-of-run summary, carrying everything needed for
// reporting per spec §7's "non-fatal warnings accumulate" requirement.
type Report struct {
	Resolved map[string]version.Release

	// Installed lists the canonical Package URL (version.Release.PURL)
	// of every release installed into the store, sorted.
	Installed []string

	Registry *registry.Report
	Warnings []string
}

// Options configures Update. At least one of CatalogPath or CatalogURL
// must be set; CatalogPath is used when both are.
type Options struct {
	CatalogPath string
	CatalogURL  string

	// Concurrency bounds simultaneous installs. Zero means unbounded.
	Concurrency int

	// Fetcher overrides the default dispatching fetcher
	// (fetch.NewDispatcher). Tests supply a fake here.
	Fetcher store.Fetcher
}

// Update discovers the workspace containing workspaceDir, resolves its
// active packages' dependencies against the configured catalog,
// installs every resolved release, and regenerates the registry.
func Update(ctx context.Context, workspaceDir string, opts Options) (*Report, error) {
	root, err := workspace.Discover(workspaceDir)
	if err != nil {
		return nil, err
	}
	ws, err := workspace.Load(root)
	if err != nil {
		return nil, err
	}

	cat, err := loadCatalog(ctx, opts)
	if err != nil {
		return nil, err
	}

	result, err := resolve.Resolve(cat, ws.ActivePackages())
	if err != nil {
		return nil, err
	}

	inst := store.NewInstaller(root)
	inst.Concurrency = opts.Concurrency

	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = fetch.NewDispatcher()
	}
	if err := inst.InstallAll(ctx, result.Releases, fetcher); err != nil {
		return nil, err
	}

	regReport, err := registry.Generate(ws, result.Releases, inst)
	if err != nil {
		return nil, err
	}

	installed := make([]string, 0, len(result.Releases))
	for _, r := range result.Releases {
		installed = append(installed, r.PURL())
	}
	sort.Strings(installed)

	return &Report{
		Resolved:  result.Releases,
		Installed: installed,
		Registry:  regReport,
		Warnings:  result.Warnings,
	}, nil
}

func loadCatalog(ctx context.Context, opts Options) (*catalog.Catalog, error) {
	switch {
	case opts.CatalogPath != "":
		return catalog.FromFile(opts.CatalogPath)
	case opts.CatalogURL != "":
		return catalog.FromHTTP(ctx, opts.CatalogURL, nil)
	default:
		return nil, fmt.Errorf("deft: Options must set CatalogPath or CatalogURL")
	}
}
