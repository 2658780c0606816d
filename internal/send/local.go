package send

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalTransport copies files into a directory on the local filesystem. The
// destination path is the url path. With Discard set it accepts every upload
// without writing anything, which is the "dummy" scheme used by tests and
// staging environments.
type LocalTransport struct {
	Discard bool
}

// Connect opens a local session; the upload directory comes from EnsureDir.
func (t *LocalTransport) Connect(_ context.Context, _ URL) (Session, error) {
	return &localSession{discard: t.Discard}, nil
}

type localSession struct {
	dir     string
	discard bool
}

func (s *localSession) EnsureDir(path string) error {
	s.dir = path
	if s.discard {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create directory %s: %w", s.dir, err)
	}
	return nil
}

func (s *localSession) Upload(localPath, remoteName string) error {
	if s.discard {
		return nil
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer func() { _ = src.Close() }()

	dest := filepath.Join(s.dir, remoteName)
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}

	_, err = io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("copy to %s: %w", dest, err)
	}
	return nil
}

func (s *localSession) Close() error {
	return nil
}
