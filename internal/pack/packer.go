// Package pack arranges staged export files into the final deliverable
// units placed in a rule's outbox.
package pack

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Kind selects the packing strategy for a rule.
type Kind string

// Packing strategies.
const (
	KindFlat    Kind = "flat"
	KindArchive Kind = "archive"
)

// Packer assembles the staged files under workDir into deliverables in
// outboxDir and returns the final file paths. Packing failures are fatal for
// the rule's run: a partial deliverable must never be sent.
type Packer interface {
	Pack(workDir, outboxDir string, staged []string) ([]string, error)
}

// New returns the packer for the given kind. archiveName is only used by the
// archive strategy.
func New(kind Kind, archiveName string) (Packer, error) {
	switch kind {
	case KindFlat:
		return &FlatPacker{}, nil
	case KindArchive:
		return &ArchivePacker{ArchiveName: archiveName}, nil
	default:
		return nil, fmt.Errorf("unknown packer kind %q", kind)
	}
}

// FlatPacker moves each staged file into the outbox, preserving the path
// relative to the working directory.
type FlatPacker struct{}

// Pack moves staged files to the outbox.
func (p *FlatPacker) Pack(workDir, outboxDir string, staged []string) ([]string, error) {
	outbox := make([]string, 0, len(staged))
	for _, f := range staged {
		rel, err := filepath.Rel(workDir, f)
		if err != nil {
			return nil, fmt.Errorf("relative path for %s: %w", f, err)
		}

		dest := filepath.Join(outboxDir, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return nil, fmt.Errorf("create outbox directory: %w", err)
		}
		if err := os.Rename(f, dest); err != nil {
			return nil, fmt.Errorf("move %s to outbox: %w", f, err)
		}
		outbox = append(outbox, dest)
	}
	return outbox, nil
}

// ArchivePacker writes the whole working directory tree into a single zip
// archive placed in the outbox, with entry paths relative to the working
// directory root.
type ArchivePacker struct {
	ArchiveName string
}

// Pack builds the archive. The staged list is ignored: the archive always
// reflects the full working tree, so related binaries staged by linkers are
// included without extra bookkeeping.
func (p *ArchivePacker) Pack(workDir, outboxDir string, _ []string) ([]string, error) {
	if err := os.MkdirAll(outboxDir, 0o755); err != nil {
		return nil, fmt.Errorf("create outbox directory: %w", err)
	}

	archivePath := filepath.Join(outboxDir, p.ArchiveName)
	if err := zipTree(workDir, archivePath); err != nil {
		slog.Error("cannot create archive",
			"archive", archivePath,
			"work_dir", workDir,
			"error", err,
		)
		return nil, fmt.Errorf("pack archive %s: %w", archivePath, err)
	}

	return []string{archivePath}, nil
}

// zipTree writes every file under baseDir into a compressed archive at
// archivePath, preserving paths relative to baseDir.
func zipTree(baseDir, archivePath string) error {
	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	zw := zip.NewWriter(out)

	err = filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(baseDir, path)
		if err != nil {
			return err
		}

		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()

		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		_ = zw.Close()
		return err
	}

	if err := zw.Close(); err != nil {
		return err
	}
	return out.Close()
}

// Unpack extracts a zip archive into destDir, recreating the relative tree.
// Used for local/remote integrity verification.
func Unpack(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = zr.Close() }()

	for _, f := range zr.File {
		dest := filepath.Join(destDir, filepath.FromSlash(f.Name))
		rel, err := filepath.Rel(destDir, dest)
		if err != nil || rel == ".." || filepath.IsAbs(rel) || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("archive entry escapes destination: %s", f.Name)
		}

		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("open archive entry %s: %w", f.Name, err)
		}

		out, err := os.Create(dest)
		if err != nil {
			_ = rc.Close()
			return fmt.Errorf("create %s: %w", dest, err)
		}

		_, err = io.Copy(out, rc)
		_ = rc.Close()
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("extract %s: %w", f.Name, err)
		}
	}
	return nil
}
