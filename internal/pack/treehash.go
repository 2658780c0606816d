package pack

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// FileDigest describes one file in a tree digest.
type FileDigest struct {
	RelativePath string
	Size         int64
	Hash         string
}

// TreeHash computes a content digest for a directory tree: the ordered list
// of (relative path, size, sha256) tuples, itself hashed. Packing a tree,
// unpacking it elsewhere and rehashing reproduces the same digest.
func TreeHash(baseDir string) (string, []FileDigest, error) {
	digests := make([]FileDigest, 0)

	err := filepath.WalkDir(baseDir, func(path string, d fs.DirEntry, err error) error {
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

		info, err := d.Info()
		if err != nil {
			return err
		}

		sum, err := hashFile(path)
		if err != nil {
			return err
		}

		digests = append(digests, FileDigest{
			RelativePath: filepath.ToSlash(rel),
			Size:         info.Size(),
			Hash:         sum,
		})
		return nil
	})
	if err != nil {
		return "", nil, fmt.Errorf("hash tree %s: %w", baseDir, err)
	}

	sort.Slice(digests, func(i, j int) bool {
		return digests[i].RelativePath < digests[j].RelativePath
	})

	h := sha256.New()
	for _, d := range digests {
		fmt.Fprintf(h, "%s\x00%d\x00%s\x00", d.RelativePath, d.Size, d.Hash)
	}
	return hex.EncodeToString(h.Sum(nil)), digests, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
