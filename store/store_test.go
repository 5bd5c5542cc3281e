package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/deft-pm/deft/version"
)

type fakeFetcher struct {
	calls   atomic.Int32
	fail    bool
	content string
}

func (f *fakeFetcher) Fetch(ctx context.Context, src version.SourceDescriptor, destDir string) error {
	f.calls.Add(1)
	if f.fail {
		return errors.New("simulated fetch failure")
	}
	content := f.content
	if content == "" {
		content = "source"
	}
	return os.WriteFile(filepath.Join(destDir, "marker"), []byte(content), 0o644)
}

func release(t *testing.T, name, ver string) version.Release {
	t.Helper()
	v, err := version.ParseVersion(ver)
	if err != nil {
		t.Fatalf("ParseVersion: %v", err)
	}
	return version.Release{Name: name, Version: v}
}

func TestInstallPopulatesStore(t *testing.T) {
	root := t.TempDir()
	i := NewInstaller(root)
	r := release(t, "widget", "1.0.0")
	f := &fakeFetcher{}

	if err := i.Install(context.Background(), r, f); err != nil {
		t.Fatalf("Install: %v", err)
	}
	if !i.Installed(r) {
		t.Error("Installed() = false after a successful Install")
	}
	marker := filepath.Join(i.Dir(r), "marker")
	if data, err := os.ReadFile(marker); err != nil || string(data) != "source" {
		t.Errorf("marker file = %q, %v", data, err)
	}
}

func TestInstallIsIdempotent(t *testing.T) {
	root := t.TempDir()
	i := NewInstaller(root)
	r := release(t, "widget", "1.0.0")
	f := &fakeFetcher{}

	if err := i.Install(context.Background(), r, f); err != nil {
		t.Fatalf("first Install: %v", err)
	}
	if err := i.Install(context.Background(), r, f); err != nil {
		t.Fatalf("second Install: %v", err)
	}
	if f.calls.Load() != 1 {
		t.Errorf("fetcher called %d times, want 1 (idempotent no-op on second call)", f.calls.Load())
	}
}

func TestInstallLeavesNoTempDirOnFailure(t *testing.T) {
	root := t.TempDir()
	i := NewInstaller(root)
	r := release(t, "widget", "1.0.0")
	f := &fakeFetcher{fail: true}

	if err := i.Install(context.Background(), r, f); err == nil {
		t.Fatal("expected an install error")
	}
	if i.Installed(r) {
		t.Error("Installed() = true after a failed Install")
	}

	entries, err := os.ReadDir(filepath.Join(root, "_packages", "widget"))
	if err != nil {
		if !os.IsNotExist(err) {
			t.Fatalf("ReadDir: %v", err)
		}
		return
	}
	for _, e := range entries {
		if e.Name() != r.Version.String() {
			t.Errorf("leftover entry after failed install: %s", e.Name())
		}
	}
}

func TestInstallAllInstallsEverything(t *testing.T) {
	root := t.TempDir()
	i := NewInstaller(root)
	i.Concurrency = 2

	releases := map[string]version.Release{
		"a": release(t, "a", "1.0.0"),
		"b": release(t, "b", "2.0.0"),
		"c": release(t, "c", "3.0.0"),
	}
	f := &fakeFetcher{}

	if err := i.InstallAll(context.Background(), releases, f); err != nil {
		t.Fatalf("InstallAll: %v", err)
	}
	for _, r := range releases {
		if !i.Installed(r) {
			t.Errorf("%s not installed", r.ID())
		}
	}
	if f.calls.Load() != 3 {
		t.Errorf("fetcher called %d times, want 3", f.calls.Load())
	}
}

func TestInstallAllPropagatesFirstError(t *testing.T) {
	root := t.TempDir()
	i := NewInstaller(root)

	releases := map[string]version.Release{
		"a": release(t, "a", "1.0.0"),
	}
	f := &fakeFetcher{fail: true}

	err := i.InstallAll(context.Background(), releases, f)
	if err == nil {
		t.Fatal("expected an error")
	}
}
