package fetch

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/deft-pm/deft/version"
)

// SourceFetcher acquires a release's source tree into destDir, which is
// guaranteed empty and owned exclusively by the caller (store.Installer
// hands it a fresh sibling temp directory per spec §4.D).
type SourceFetcher interface {
	Fetch(ctx context.Context, src version.SourceDescriptor, destDir string) error
}

// GitFetcher acquires a source tree by shallow-cloning a tag or branch
// with the system git binary.
type GitFetcher struct {
	// GitPath overrides the git binary looked up on PATH. Empty means
	// "git".
	GitPath string
}

// NewGitFetcher returns a GitFetcher that invokes "git" from PATH.
func NewGitFetcher() *GitFetcher {
	return &GitFetcher{}
}

// Fetch shallow-clones src.URL at src.Ref into destDir.
func (g *GitFetcher) Fetch(ctx context.Context, src version.SourceDescriptor, destDir string) error {
	gitPath := g.GitPath
	if gitPath == "" {
		gitPath = "git"
	}

	args := []string{"clone", "--depth", "1"}
	if src.Ref != "" {
		args = append(args, "--branch", src.Ref)
	}
	args = append(args, src.URL, destDir)

	cmd := exec.CommandContext(ctx, gitPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("git clone %s: %w: %s", src.URL, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// ArchiveFetcher acquires a source tree by downloading and extracting an
// archive, using the circuit-breaking, DNS-cached Fetcher for the
// download.
type ArchiveFetcher struct {
	breaker *CircuitBreakerFetcher
}

// NewArchiveFetcher builds an ArchiveFetcher whose underlying Fetcher is
// configured with opts.
func NewArchiveFetcher(opts ...Option) *ArchiveFetcher {
	return &ArchiveFetcher{breaker: NewCircuitBreakerFetcher(NewFetcher(opts...))}
}

// Fetch downloads src.URL and extracts it into destDir.
func (a *ArchiveFetcher) Fetch(ctx context.Context, src version.SourceDescriptor, destDir string) error {
	archive, err := a.breaker.Fetch(ctx, src.URL)
	if err != nil {
		return fmt.Errorf("fetching archive %s: %w", src.URL, err)
	}
	defer func() { _ = archive.Body.Close() }()

	return extractArchive(archive.Body, archive.ContentType, src.URL, destDir)
}

func extractArchive(body io.Reader, contentType, sourceURL, destDir string) error {
	if looksLikeZip(contentType, sourceURL) {
		data, err := io.ReadAll(body)
		if err != nil {
			return fmt.Errorf("reading zip archive: %w", err)
		}
		return extractZip(bytes.NewReader(data), int64(len(data)), destDir)
	}
	return extractTarGz(body, destDir)
}

func looksLikeZip(contentType, sourceURL string) bool {
	if contentType == "application/zip" {
		return true
	}
	return strings.HasSuffix(strings.ToLower(sourceURL), ".zip")
}

func extractZip(r io.ReaderAt, size int64, destDir string) error {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return fmt.Errorf("opening zip archive: %w", err)
	}
	for _, f := range zr.File {
		target, err := safeJoin(destDir, f.Name)
		if err != nil {
			return err
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		src, err := f.Open()
		if err != nil {
			return fmt.Errorf("opening %s in zip archive: %w", f.Name, err)
		}
		err = writeFile(target, src, f.Mode())
		_ = src.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func extractTarGz(body io.Reader, destDir string) error {
	gz, err := gzip.NewReader(body)
	if err != nil {
		return fmt.Errorf("opening gzip stream: %w", err)
	}
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		target, err := safeJoin(destDir, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			if err := writeFile(target, tr, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		default:
			// symlinks and other special entries are skipped; source
			// archives for registered releases do not rely on them.
		}
	}
}

// safeJoin resolves name against destDir and rejects any entry that
// would escape destDir via ".." or an absolute path (zip-slip).
func safeJoin(destDir, name string) (string, error) {
	target := filepath.Join(destDir, name)
	if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) && target != filepath.Clean(destDir) {
		return "", fmt.Errorf("archive entry %q escapes destination directory", name)
	}
	return target, nil
}

func writeFile(path string, r io.Reader, mode os.FileMode) error {
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	_, copyErr := io.Copy(out, r)
	closeErr := out.Close()
	if copyErr != nil {
		return fmt.Errorf("writing %s: %w", path, copyErr)
	}
	return closeErr
}

// Dispatcher routes a SourceDescriptor to the GitFetcher or
// ArchiveFetcher by its Kind.
type Dispatcher struct {
	git     *GitFetcher
	archive *ArchiveFetcher
}

// NewDispatcher builds a Dispatcher with default git and archive
// fetchers, the archive fetcher configured with opts.
func NewDispatcher(opts ...Option) *Dispatcher {
	return &Dispatcher{
		git:     NewGitFetcher(),
		archive: NewArchiveFetcher(opts...),
	}
}

// Fetch implements SourceFetcher by dispatching on src.Kind.
func (d *Dispatcher) Fetch(ctx context.Context, src version.SourceDescriptor, destDir string) error {
	switch src.Kind {
	case version.SourceVCS:
		return d.git.Fetch(ctx, src, destDir)
	case version.SourceArchive:
		return d.archive.Fetch(ctx, src, destDir)
	default:
		return fmt.Errorf("fetch: release has no usable source descriptor (url=%q)", src.URL)
	}
}
