package deft

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/deft-pm/deft/version"
)

type fakeFetcher struct{}

func (fakeFetcher) Fetch(ctx context.Context, src version.SourceDescriptor, destDir string) error {
	return os.WriteFile(filepath.Join(destDir, "marker"), []byte("ok"), 0o644)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestUpdateEndToEnd(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dylan-package.json"), `{
		"name": "app",
		"version": "1.0.0",
		"dependencies": ["gizmo@1.0"]
	}`)
	writeFile(t, filepath.Join(root, "app.lid"), "Library: app\n")

	catalogPath := filepath.Join(root, "catalog.json")
	writeFile(t, catalogPath, `{
		"releases": [
			{"name": "gizmo", "version": "1.0.0"},
			{"name": "gizmo", "version": "1.1.0"}
		]
	}`)

	report, err := Update(context.Background(), root, Options{
		CatalogPath: catalogPath,
		Fetcher:     fakeFetcher{},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, ok := report.Resolved["gizmo"]; !ok {
		t.Fatal("gizmo not resolved")
	}
	if report.Resolved["gizmo"].Version.String() != "1.0.0" {
		t.Errorf("gizmo = %s, want 1.0.0 (smallest satisfying release)", report.Resolved["gizmo"].Version)
	}
	if report.Registry.Written != 1 {
		t.Errorf("Registry.Written = %d, want 1", report.Registry.Written)
	}

	entry := filepath.Join(root, "registry", "generic", "app")
	if _, err := os.Stat(entry); err != nil {
		t.Errorf("expected registry entry for app: %v", err)
	}
}

func TestUpdateIsIdempotent(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dylan-package.json"), `{"name":"app","version":"1.0.0"}`)
	writeFile(t, filepath.Join(root, "app.lid"), "Library: app\n")

	catalogPath := filepath.Join(root, "catalog.json")
	writeFile(t, catalogPath, `{"releases": []}`)

	opts := Options{CatalogPath: catalogPath, Fetcher: fakeFetcher{}}

	if _, err := Update(context.Background(), root, opts); err != nil {
		t.Fatalf("first Update: %v", err)
	}
	report, err := Update(context.Background(), root, opts)
	if err != nil {
		t.Fatalf("second Update: %v", err)
	}
	if report.Registry.Written != 0 {
		t.Errorf("second Update Written = %d, want 0", report.Registry.Written)
	}
}

func TestUpdateRequiresCatalogSource(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "dylan-package.json"), `{"name":"app","version":"1.0.0"}`)

	if _, err := Update(context.Background(), root, Options{}); err == nil {
		t.Error("expected an error when neither CatalogPath nor CatalogURL is set")
	}
}
